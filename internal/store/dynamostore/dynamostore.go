// Package dynamostore stores the counter as a DynamoDB item shaped like
// {"stats": "viewCount", "viewCount": 1}: the hash attribute holds the key and
// an attribute named after the key holds the count.
package dynamostore

import (
	"context"
	"errors"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/tckz/view-counter/internal/counter"
)

const DefaultKeyAttribute = "stats"

// Client is the subset of *dynamodb.Client used by Store.
type Client interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

var _ Client = (*dynamodb.Client)(nil)

var _ counter.Store = (*Store)(nil)

type Store struct {
	client       Client
	keyAttribute string
}

func New(client Client, keyAttribute string) *Store {
	if keyAttribute == "" {
		keyAttribute = DefaultKeyAttribute
	}
	return &Store{client: client, keyAttribute: keyAttribute}
}

// NewClient builds a DynamoDB client from the default AWS credential chain.
// endpoint overrides the service URL, e.g. for DynamoDB Local.
func NewClient(ctx context.Context, region, endpoint string) (*dynamodb.Client, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, counter.Unavailable("config.LoadDefaultConfig", err)
	}
	return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	}), nil
}

func (s *Store) itemKey(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		s.keyAttribute: &types.AttributeValueMemberS{Value: key},
	}
}

func (s *Store) GetItem(ctx context.Context, table, key string) (counter.Record, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(table),
		Key:            s.itemKey(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return counter.Record{}, classify("dynamodb.GetItem", err)
	}
	if len(out.Item) == 0 {
		return counter.Record{}, counter.ErrNotFound
	}

	v, err := decodeCount(key, out.Item[key])
	if err != nil {
		return counter.Record{}, err
	}
	return counter.Record{Key: key, Value: v}, nil
}

func decodeCount(key string, av types.AttributeValue) (int64, error) {
	switch av := av.(type) {
	case nil:
		return 0, counter.Malformed(key, "attribute missing")
	case *types.AttributeValueMemberN:
		v, err := strconv.ParseInt(av.Value, 10, 64)
		if err != nil {
			return 0, counter.Malformed(key, "number=%q", av.Value)
		}
		return counter.CheckValue(key, v)
	default:
		return 0, counter.Malformed(key, "unexpected attribute type %T", av)
	}
}

func (s *Store) PutItem(ctx context.Context, table string, rec counter.Record, pre *counter.Precondition) error {
	item := s.itemKey(rec.Key)
	item[rec.Key] = &types.AttributeValueMemberN{Value: strconv.FormatInt(rec.Value, 10)}

	in := &dynamodb.PutItemInput{
		TableName: aws.String(table),
		Item:      item,
	}
	if pre != nil {
		if pre.Exists {
			in.ConditionExpression = aws.String("#v = :prev")
			in.ExpressionAttributeNames = map[string]string{"#v": rec.Key}
			in.ExpressionAttributeValues = map[string]types.AttributeValue{
				":prev": &types.AttributeValueMemberN{Value: strconv.FormatInt(pre.Value, 10)},
			}
		} else {
			in.ConditionExpression = aws.String("attribute_not_exists(#k)")
			in.ExpressionAttributeNames = map[string]string{"#k": s.keyAttribute}
		}
	}

	if _, err := s.client.PutItem(ctx, in); err != nil {
		return classify("dynamodb.PutItem", err)
	}
	return nil
}

func classify(call string, err error) error {
	var ccf *types.ConditionalCheckFailedException
	var tce *types.TransactionConflictException
	if errors.As(err, &ccf) || errors.As(err, &tce) {
		return counter.Conflict(call, err)
	}
	return counter.Unavailable(call, err)
}
