package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"checkout-service/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
)

// dynamoTimeLayout has a fixed width so that lexical order of stored
// timestamps equals chronological order.
const dynamoTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type dynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// DynamoAdapter stores orders in a DynamoDB table with partition key `id`.
// A global secondary index on (userId, createdAt) serves FindByUserID.
type DynamoAdapter struct {
	client    dynamoAPI
	table     string
	userIndex string
	timeout   time.Duration
	clock     *monotonicClock
}

func NewDynamoAdapter(client *dynamodb.Client, table, userIndex string, timeout time.Duration) *DynamoAdapter {
	return newDynamoAdapter(client, table, userIndex, timeout, time.Now)
}

func newDynamoAdapter(client dynamoAPI, table, userIndex string, timeout time.Duration, now func() time.Time) *DynamoAdapter {
	return &DynamoAdapter{
		client:    client,
		table:     table,
		userIndex: userIndex,
		timeout:   timeout,
		clock:     &monotonicClock{now: now},
	}
}

func (d *DynamoAdapter) Create(ctx context.Context, order *models.Order) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	id := uuid.New().String()
	ts := d.clock.Now().Format(dynamoTimeLayout)

	doc := documentFromOrder(order)
	doc[models.FieldID] = id
	doc[models.FieldCreatedAt] = ts
	doc[models.FieldUpdatedAt] = ts

	item, err := attributevalue.MarshalMap(doc)
	if err != nil {
		return "", fmt.Errorf("marshal order: %w", err)
	}
	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(d.table),
		Item:                     item,
		ConditionExpression:      aws.String("attribute_not_exists(#id)"),
		ExpressionAttributeNames: map[string]string{"#id": models.FieldID},
	})
	if err != nil {
		return "", fmt.Errorf("dynamodb PutItem failed: %w", err)
	}
	order.ID = id
	return id, nil
}

func (d *DynamoAdapter) FindByID(ctx context.Context, id string) (*models.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	key, err := attributevalue.MarshalMap(map[string]string{models.FieldID: id})
	if err != nil {
		return nil, fmt.Errorf("marshal key: %w", err)
	}
	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(d.table),
		Key:            key,
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("dynamodb GetItem failed: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, ErrNotFound
	}
	return orderFromItem(out.Item)
}

func (d *DynamoAdapter) UpdateByID(ctx context.Context, id string, fields map[string]interface{}) error {
	return d.update(ctx, id, "", fields)
}

func (d *DynamoAdapter) UpdateByIDIfStatus(ctx context.Context, id string, expected models.OrderStatus, fields map[string]interface{}) error {
	return d.update(ctx, id, expected, fields)
}

func (d *DynamoAdapter) update(ctx context.Context, id string, expected models.OrderStatus, fields map[string]interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	key, err := attributevalue.MarshalMap(map[string]string{models.FieldID: id})
	if err != nil {
		return fmt.Errorf("marshal key: %w", err)
	}
	input, err := buildDynamoUpdate(d.table, key, expected, fields, d.clock.Now().Format(dynamoTimeLayout))
	if err != nil {
		return err
	}

	_, err = d.client.UpdateItem(ctx, input)
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			if expected != "" && len(ccf.Item) > 0 {
				return ErrStatusConflict
			}
			return ErrNotFound
		}
		return fmt.Errorf("dynamodb UpdateItem failed: %w", err)
	}
	return nil
}

func (d *DynamoAdapter) FindByUserID(ctx context.Context, userID string) ([]models.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	input := &dynamodb.QueryInput{
		TableName:                aws.String(d.table),
		IndexName:                aws.String(d.userIndex),
		KeyConditionExpression:   aws.String("#u = :u"),
		ExpressionAttributeNames: map[string]string{"#u": models.FieldUserID},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":u": &types.AttributeValueMemberS{Value: userID},
		},
		ScanIndexForward: aws.Bool(false),
	}

	orders := make([]models.Order, 0)
	paginator := dynamodb.NewQueryPaginator(d.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("dynamodb Query failed: %w", err)
		}
		for _, it := range page.Items {
			order, err := orderFromItem(it)
			if err != nil {
				return nil, err
			}
			orders = append(orders, *order)
		}
	}
	return orders, nil
}

// EnsureIndexes is a no-op; the table and its index are provisioned by
// infrastructure.
func (d *DynamoAdapter) EnsureIndexes(ctx context.Context) error {
	return nil
}

func orderFromItem(item map[string]types.AttributeValue) (*models.Order, error) {
	var doc map[string]interface{}
	if err := attributevalue.UnmarshalMap(item, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal item: %w", err)
	}
	return orderFromDocument(asString(doc[models.FieldID]), doc)
}

// buildDynamoUpdate renders fields as a SET expression with attribute name
// placeholders, so reserved words such as "status" are safe. The condition
// turns a missing item into ConditionalCheckFailedException instead of an
// upsert. A non-empty expected status is added to the condition, and the old
// item is returned on failure so a status conflict can be told apart.
func buildDynamoUpdate(table string, key map[string]types.AttributeValue, expected models.OrderStatus, fields map[string]interface{}, now string) (*dynamodb.UpdateItemInput, error) {
	fields = updatableFields(fields)

	names := make([]string, 0, len(fields))
	for k := range fields {
		names = append(names, k)
	}
	sort.Strings(names)

	exprNames := map[string]string{"#id": models.FieldID, "#updatedAt": models.FieldUpdatedAt}
	exprVals := map[string]types.AttributeValue{":updatedAt": &types.AttributeValueMemberS{Value: now}}
	expr := "SET #updatedAt = :updatedAt"

	for i, k := range names {
		v := fields[k]
		if _, ok := v.(serverTimestamp); ok {
			v = now
		}
		av, err := attributevalue.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("marshal update value %s: %w", k, err)
		}
		np, vp := fmt.Sprintf("#n%d", i), fmt.Sprintf(":v%d", i)
		exprNames[np] = k
		exprVals[vp] = av
		expr += fmt.Sprintf(", %s = %s", np, vp)
	}

	input := &dynamodb.UpdateItemInput{
		TableName:                 aws.String(table),
		Key:                       key,
		UpdateExpression:          aws.String(expr),
		ConditionExpression:       aws.String("attribute_exists(#id)"),
		ExpressionAttributeNames:  exprNames,
		ExpressionAttributeValues: exprVals,
	}
	if expected != "" {
		exprNames["#status"] = models.FieldStatus
		exprVals[":expectedStatus"] = &types.AttributeValueMemberS{Value: string(expected)}
		input.ConditionExpression = aws.String("attribute_exists(#id) AND #status = :expectedStatus")
		input.ReturnValuesOnConditionCheckFailure = types.ReturnValuesOnConditionCheckFailureAllOld
	}
	return input, nil
}

// monotonicClock never returns the same or an earlier instant twice, so
// timestamps assigned by one process are strictly increasing.
type monotonicClock struct {
	mu   sync.Mutex
	now  func() time.Time
	last time.Time
}

func (c *monotonicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.now().UTC()
	if !t.After(c.last) {
		t = c.last.Add(time.Nanosecond)
	}
	c.last = t
	return t
}
