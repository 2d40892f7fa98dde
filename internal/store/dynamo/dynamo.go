// Package dynamo implements the store.Store interface backed by an Amazon
// DynamoDB table with string partition key "pk" and string sort key "sk".
//
// Item bodies are stored as a native map attribute ("body") so that counter
// fields can be addressed by document path in condition and update
// expressions.
package dynamo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/alfredjeanlab/evreg/internal/store"
)

const (
	attrPK   = "pk"
	attrSK   = "sk"
	attrBody = "body"

	defaultLimit = 100
)

// API is the subset of *dynamodb.Client used by Store.
type API interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, opts ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, opts ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// Store implements store.Store on a DynamoDB table.
type Store struct {
	api   API
	table string
}

// Compile-time check that Store implements store.Store.
var _ store.Store = (*Store)(nil)

// New creates a Store for table. If endpoint is non-empty it overrides the
// service endpoint (for DynamoDB Local and similar).
func New(ctx context.Context, table, region, endpoint string) (*Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var opts []func(*dynamodb.Options)
	if endpoint != "" {
		opts = append(opts, func(o *dynamodb.Options) {
			o.BaseEndpoint = aws.String(endpoint)
		})
	}
	return NewWithAPI(dynamodb.NewFromConfig(cfg, opts...), table), nil
}

// NewWithAPI creates a Store around an existing client.
func NewWithAPI(api API, table string) *Store {
	return &Store{api: api, table: table}
}

// Close is a no-op; the SDK client holds no resources that need releasing.
func (s *Store) Close() error { return nil }

func (s *Store) GetItem(ctx context.Context, key store.Key) (store.Item, error) {
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            keyAttributes(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return store.Item{}, fmt.Errorf("dynamodb get item: %w", err)
	}
	if len(out.Item) == 0 {
		return store.Item{}, store.ErrNotFound
	}
	return decodeItem(out.Item)
}

func (s *Store) PutItem(ctx context.Context, item store.Item, opts store.PutOptions) error {
	av, err := encodeItem(item)
	if err != nil {
		return err
	}
	in := &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      av,
	}
	if opts.FailIfExists {
		in.ConditionExpression = aws.String("attribute_not_exists(#pk)")
		in.ExpressionAttributeNames = map[string]string{"#pk": attrPK}
	}
	if _, err := s.api.PutItem(ctx, in); err != nil {
		if isConditionFailed(err) {
			return store.ErrAlreadyExists
		}
		return fmt.Errorf("dynamodb put item: %w", err)
	}
	return nil
}

func (s *Store) ConditionalUpdate(ctx context.Context, key store.Key, upd store.CounterUpdate) error {
	if len(upd.Field) == 0 {
		return fmt.Errorf("conditional update: empty field path")
	}
	path, names := documentPath(upd.Field)
	_, err := s.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                aws.String(s.table),
		Key:                      keyAttributes(key),
		UpdateExpression:         aws.String("SET " + path + " = :next"),
		ConditionExpression:      aws.String(path + " = :expected"),
		ExpressionAttributeNames: names,
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":expected": numberAttribute(upd.Expected),
			":next":     numberAttribute(upd.Next),
		},
	})
	if err != nil {
		if isConditionFailed(err) {
			return store.ErrPreconditionFailed
		}
		return fmt.Errorf("dynamodb conditional update: %w", err)
	}
	return nil
}

func (s *Store) Query(ctx context.Context, in store.QueryInput) (store.Page, error) {
	start, err := startKey(in.Cursor)
	if err != nil {
		return store.Page{}, err
	}
	out, err := s.api.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		KeyConditionExpression: aws.String("#pk = :pk AND begins_with(#sk, :prefix)"),
		ExpressionAttributeNames: map[string]string{
			"#pk": attrPK,
			"#sk": attrSK,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: in.PartitionKey},
			":prefix": &types.AttributeValueMemberS{Value: in.SortKeyPrefix},
		},
		ExclusiveStartKey: start,
		Limit:             aws.Int32(pageLimit(in.Limit)),
		ConsistentRead:    aws.Bool(true),
	})
	if err != nil {
		return store.Page{}, fmt.Errorf("dynamodb query: %w", err)
	}
	return decodePage(out.Items, out.LastEvaluatedKey)
}

// Scan walks the whole table filtering on the sort key. DynamoDB applies the
// limit before the filter, so a page may hold fewer items than asked for (or
// none) while Next is still set.
func (s *Store) Scan(ctx context.Context, in store.ScanInput) (store.Page, error) {
	start, err := startKey(in.Cursor)
	if err != nil {
		return store.Page{}, err
	}
	out, err := s.api.Scan(ctx, &dynamodb.ScanInput{
		TableName:                aws.String(s.table),
		FilterExpression:         aws.String("#sk = :sk"),
		ExpressionAttributeNames: map[string]string{"#sk": attrSK},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":sk": &types.AttributeValueMemberS{Value: in.SortKey},
		},
		ExclusiveStartKey: start,
		Limit:             aws.Int32(pageLimit(in.Limit)),
		ConsistentRead:    aws.Bool(true),
	})
	if err != nil {
		return store.Page{}, fmt.Errorf("dynamodb scan: %w", err)
	}
	return decodePage(out.Items, out.LastEvaluatedKey)
}

func pageLimit(limit int) int32 {
	if limit <= 0 {
		return defaultLimit
	}
	return int32(limit)
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

func keyAttributes(key store.Key) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrPK: &types.AttributeValueMemberS{Value: key.PartitionKey},
		attrSK: &types.AttributeValueMemberS{Value: key.SortKey},
	}
}

func numberAttribute(n int64) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(n, 10)}
}

// documentPath turns {"capacity","registered"} into "#body.#f0.#f1" with the
// matching attribute-name placeholders.
func documentPath(field []string) (string, map[string]string) {
	names := map[string]string{"#body": attrBody}
	parts := []string{"#body"}
	for i, f := range field {
		ph := "#f" + strconv.Itoa(i)
		names[ph] = f
		parts = append(parts, ph)
	}
	return strings.Join(parts, "."), names
}

func startKey(cursor string) (map[string]types.AttributeValue, error) {
	key, ok, err := store.DecodeCursor(cursor)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return keyAttributes(key), nil
}

func encodeItem(item store.Item) (map[string]types.AttributeValue, error) {
	var doc map[string]any
	if err := json.Unmarshal(item.Body, &doc); err != nil {
		return nil, fmt.Errorf("decode item body: %w", err)
	}
	body, err := attributevalue.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal item body: %w", err)
	}
	av := keyAttributes(item.Key)
	av[attrBody] = body
	return av, nil
}

func decodeKey(av map[string]types.AttributeValue) (store.Key, error) {
	var key store.Key
	if err := attributevalue.Unmarshal(av[attrPK], &key.PartitionKey); err != nil {
		return store.Key{}, fmt.Errorf("unmarshal %s: %w", attrPK, err)
	}
	if err := attributevalue.Unmarshal(av[attrSK], &key.SortKey); err != nil {
		return store.Key{}, fmt.Errorf("unmarshal %s: %w", attrSK, err)
	}
	return key, nil
}

func decodeItem(av map[string]types.AttributeValue) (store.Item, error) {
	key, err := decodeKey(av)
	if err != nil {
		return store.Item{}, err
	}
	var doc map[string]any
	if body, ok := av[attrBody]; ok {
		if err := attributevalue.Unmarshal(body, &doc); err != nil {
			return store.Item{}, fmt.Errorf("unmarshal item body: %w", err)
		}
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return store.Item{}, fmt.Errorf("encode item body: %w", err)
	}
	return store.Item{Key: key, Body: raw}, nil
}

func decodePage(items []map[string]types.AttributeValue, last map[string]types.AttributeValue) (store.Page, error) {
	var page store.Page
	for _, av := range items {
		item, err := decodeItem(av)
		if err != nil {
			return store.Page{}, err
		}
		page.Items = append(page.Items, item)
	}
	if len(last) > 0 {
		key, err := decodeKey(last)
		if err != nil {
			return store.Page{}, err
		}
		page.Next = store.EncodeCursor(key)
	}
	return page, nil
}
