package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"checkout-service/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoAdapter stores orders in a MongoDB collection keyed by ObjectID.
// Timestamps come from the server via $currentDate.
type MongoAdapter struct {
	collection *mongo.Collection
	timeout    time.Duration
}

func NewMongoAdapter(db *mongo.Database, collection string, timeout time.Duration) *MongoAdapter {
	return &MongoAdapter{collection: db.Collection(collection), timeout: timeout}
}

func (m *MongoAdapter) Create(ctx context.Context, order *models.Order) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	id := primitive.NewObjectID()
	update := bson.M{
		"$setOnInsert": documentFromOrder(order),
		"$currentDate": bson.M{models.FieldCreatedAt: true, models.FieldUpdatedAt: true},
	}
	_, err := m.collection.UpdateOne(ctx, bson.M{"_id": id}, update, options.Update().SetUpsert(true))
	if err != nil {
		return "", fmt.Errorf("mongo insert order failed: %w", err)
	}
	order.ID = id.Hex()
	return order.ID, nil
}

func (m *MongoAdapter) FindByID(ctx context.Context, id string) (*models.Order, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	var doc bson.M
	if err := m.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("mongo find order failed: %w", err)
	}
	return orderFromDocument(oid.Hex(), normalizeDocument(doc))
}

func (m *MongoAdapter) UpdateByID(ctx context.Context, id string, fields map[string]interface{}) error {
	return m.update(ctx, id, "", fields)
}

func (m *MongoAdapter) UpdateByIDIfStatus(ctx context.Context, id string, expected models.OrderStatus, fields map[string]interface{}) error {
	return m.update(ctx, id, expected, fields)
}

func (m *MongoAdapter) update(ctx context.Context, id string, expected models.OrderStatus, fields map[string]interface{}) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	filter := bson.M{"_id": oid}
	if expected != "" {
		filter[models.FieldStatus] = string(expected)
	}
	res, err := m.collection.UpdateOne(ctx, filter, buildMongoUpdate(fields))
	if err != nil {
		return fmt.Errorf("mongo update order failed: %w", err)
	}
	if res.MatchedCount > 0 {
		return nil
	}
	if expected == "" {
		return ErrNotFound
	}

	// the status filter missed; tell a missing order from a moved one
	err = m.collection.FindOne(ctx, bson.M{"_id": oid}, options.FindOne().SetProjection(bson.M{"_id": 1})).Err()
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case err != nil:
		return fmt.Errorf("mongo find order failed: %w", err)
	}
	return ErrStatusConflict
}

func (m *MongoAdapter) FindByUserID(ctx context.Context, userID string) ([]models.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	// $currentDate has millisecond resolution; _id breaks ties
	findOptions := options.Find().SetSort(bson.D{
		{Key: models.FieldCreatedAt, Value: -1},
		{Key: "_id", Value: -1},
	})
	cursor, err := m.collection.Find(ctx, bson.M{models.FieldUserID: userID}, findOptions)
	if err != nil {
		return nil, fmt.Errorf("mongo query orders failed: %w", err)
	}
	defer cursor.Close(ctx)

	orders := make([]models.Order, 0)
	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("mongo decode order failed: %w", err)
		}
		id := ""
		if oid, ok := doc["_id"].(primitive.ObjectID); ok {
			id = oid.Hex()
		}
		order, err := orderFromDocument(id, normalizeDocument(doc))
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("mongo cursor failed: %w", err)
	}
	return orders, nil
}

// EnsureIndexes creates the index backing FindByUserID.
func (m *MongoAdapter) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	_, err := m.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: models.FieldUserID, Value: 1}, {Key: models.FieldCreatedAt, Value: -1}},
		Options: options.Index().SetName("userId_createdAt"),
	})
	if err != nil {
		return fmt.Errorf("mongo create index failed: %w", err)
	}
	return nil
}

// buildMongoUpdate turns a partial update into $set and $currentDate
// operators. updatedAt is always refreshed.
func buildMongoUpdate(fields map[string]interface{}) bson.M {
	set := bson.M{}
	current := bson.M{models.FieldUpdatedAt: true}
	for k, v := range updatableFields(fields) {
		if _, ok := v.(serverTimestamp); ok {
			current[k] = true
			continue
		}
		set[k] = v
	}

	update := bson.M{"$currentDate": current}
	if len(set) > 0 {
		update["$set"] = set
	}
	return update
}

// normalizeDocument converts driver types to the plain Go types used by
// orderFromDocument and the JSON layer.
func normalizeDocument(doc bson.M) map[string]interface{} {
	out := make(map[string]interface{}, len(doc))
	for k, v := range doc {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v interface{}) interface{} {
	switch val := v.(type) {
	case bson.M:
		return normalizeDocument(val)
	case map[string]interface{}:
		return normalizeDocument(bson.M(val))
	case bson.D:
		m := make(bson.M, len(val))
		for _, e := range val {
			m[e.Key] = e.Value
		}
		return normalizeDocument(m)
	case bson.A:
		out := make([]interface{}, len(val))
		for i, e := range val {
			out[i] = normalizeValue(e)
		}
		return out
	case []interface{}:
		return normalizeValue(bson.A(val))
	case primitive.DateTime:
		return val.Time().UTC()
	case primitive.ObjectID:
		return val.Hex()
	case primitive.Decimal128:
		return val.String()
	default:
		return val
	}
}
