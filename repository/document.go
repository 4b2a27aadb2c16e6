package repository

import (
	"fmt"
	"time"

	"checkout-service/models"
)

// storeManaged fields are assigned by the adapters and never written from a
// caller-supplied map.
var storeManaged = map[string]bool{
	models.FieldID:        true,
	"_id":                 true,
	models.FieldCreatedAt: true,
	models.FieldUpdatedAt: true,
}

// documentFromOrder returns the caller-owned fields of an order as a plain
// document. id and timestamps are left to the adapter.
func documentFromOrder(o *models.Order) map[string]interface{} {
	doc := make(map[string]interface{}, 10+len(o.Extra))
	for k, v := range o.Extra {
		if !storeManaged[k] {
			doc[k] = v
		}
	}

	items := o.Items
	if items == nil {
		items = []interface{}{}
	}
	details := o.UserDetails
	if details == nil {
		details = map[string]interface{}{}
	}

	doc[models.FieldUserID] = o.UserID
	doc[models.FieldUserEmail] = o.UserEmail
	doc[models.FieldItems] = items
	doc[models.FieldTotalAmount] = o.TotalAmount
	doc[models.FieldUserDetails] = details
	doc[models.FieldPaymentMethod] = o.PaymentMethod
	doc[models.FieldGatewayOrderID] = o.GatewayOrderID
	doc[models.FieldGatewayPaymentID] = stringOrNil(o.GatewayPaymentID)
	doc[models.FieldGatewaySignature] = stringOrNil(o.GatewaySignature)
	doc[models.FieldStatus] = string(o.Status)
	return doc
}

// orderFromDocument maps a decoded document back to an Order. Values must
// already be plain Go types; times may be time.Time or RFC 3339 strings.
func orderFromDocument(id string, doc map[string]interface{}) (*models.Order, error) {
	o := &models.Order{ID: id}
	for k, v := range doc {
		var err error
		switch k {
		case "_id", models.FieldID:
		case models.FieldUserID:
			o.UserID = asString(v)
		case models.FieldUserEmail:
			o.UserEmail = asString(v)
		case models.FieldItems:
			o.Items, _ = v.([]interface{})
		case models.FieldTotalAmount:
			o.TotalAmount = asFloat(v)
		case models.FieldUserDetails:
			o.UserDetails, _ = v.(map[string]interface{})
		case models.FieldPaymentMethod:
			o.PaymentMethod = asString(v)
		case models.FieldGatewayOrderID:
			o.GatewayOrderID = asString(v)
		case models.FieldGatewayPaymentID:
			o.GatewayPaymentID = asStringPtr(v)
		case models.FieldGatewaySignature:
			o.GatewaySignature = asStringPtr(v)
		case models.FieldStatus:
			o.Status = models.OrderStatus(asString(v))
		case models.FieldCreatedAt:
			o.CreatedAt, err = asTime(v)
		case models.FieldUpdatedAt:
			o.UpdatedAt, err = asTime(v)
		case models.FieldPaidAt:
			if v != nil {
				var t time.Time
				if t, err = asTime(v); err == nil {
					o.PaidAt = &t
				}
			}
		default:
			if o.Extra == nil {
				o.Extra = make(map[string]interface{})
			}
			o.Extra[k] = v
		}
		if err != nil {
			return nil, fmt.Errorf("decode field %s: %w", k, err)
		}
	}
	return o, nil
}

// updatableFields drops store-managed keys from a partial update.
func updatableFields(fields map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		if !storeManaged[k] {
			out[k] = v
		}
	}
	return out
}

func stringOrNil(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func asString(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	default:
		return fmt.Sprint(s)
	}
}

func asStringPtr(v interface{}) *string {
	if v == nil {
		return nil
	}
	s := asString(v)
	return &s
}

func asFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}

func asTime(v interface{}) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), nil
	case string:
		return time.Parse(time.RFC3339Nano, t)
	case nil:
		return time.Time{}, nil
	default:
		return time.Time{}, fmt.Errorf("unexpected timestamp type %T", v)
	}
}
