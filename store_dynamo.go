package catalog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoAPI captures the subset of DynamoDB client methods used by the store.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// Snapshot item attributes. Times are unix milliseconds; an expires_at of
// zero never expires.
const (
	dynamoAttrKey     = "snapshot_key"
	dynamoAttrBody    = "body"
	dynamoAttrWritten = "written_at"
	dynamoAttrExpires = "expires_at"
)

const (
	dynamoEnsureTableMaxAttempts = 20
	dynamoEnsureTableRetryDelay  = 150 * time.Millisecond
)

type dynamoStore struct {
	client     DynamoAPI
	table      string
	prefix     string
	defaultTTL time.Duration
}

func newDynamoStore(ctx context.Context, cfg StoreConfig) (Store, error) {
	client := cfg.DynamoClient
	if client == nil {
		c, err := newDynamoClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		client = c
	}
	if err := ensureDynamoTable(ctx, client, cfg.DynamoTable); err != nil {
		return nil, err
	}
	return &dynamoStore{
		client:     client,
		table:      cfg.DynamoTable,
		prefix:     cfg.Prefix,
		defaultTTL: cfg.DefaultTTL,
	}, nil
}

func newDynamoClient(ctx context.Context, cfg StoreConfig) (*dynamodb.Client, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.DynamoRegion)}
	if cfg.DynamoEndpoint != "" {
		// dynamodb-local and localstack accept any static credentials.
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("local", "local", "")))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.DynamoEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.DynamoEndpoint)
		}
	}), nil
}

func (s *dynamoStore) Driver() Driver { return DriverDynamo }

func (s *dynamoStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	st, ok, err := s.GetStamped(ctx, key)
	return st.Value, ok, err
}

// GetStamped implements StampedReader. Expired items are deleted on read.
func (s *dynamoStore) GetStamped(ctx context.Context, key string) (Stamped, bool, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            s.itemKey(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return Stamped{}, false, err
	}
	if out.Item == nil {
		return Stamped{}, false, nil
	}
	body, ok := out.Item[dynamoAttrBody].(*types.AttributeValueMemberB)
	if !ok {
		return Stamped{}, false, fmt.Errorf("dynamodb snapshot %q has no binary %s", key, dynamoAttrBody)
	}
	st := stampFromMillis(body.Value, dynamoMillis(out.Item, dynamoAttrWritten), dynamoMillis(out.Item, dynamoAttrExpires))
	if stampExpired(st, time.Now()) {
		_ = s.Delete(ctx, key)
		return Stamped{}, false, nil
	}
	return st, true, nil
}

func (s *dynamoStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	expires := unixMilli(expiresAt(ttl, s.defaultTTL))
	_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item: map[string]types.AttributeValue{
			dynamoAttrKey:     &types.AttributeValueMemberS{Value: s.itemName(key)},
			dynamoAttrBody:    &types.AttributeValueMemberB{Value: cloneBytes(value)},
			dynamoAttrWritten: dynamoNumber(time.Now().UnixMilli()),
			dynamoAttrExpires: dynamoNumber(expires),
		},
	})
	return err
}

func (s *dynamoStore) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key:       s.itemKey(key),
	})
	return err
}

func (s *dynamoStore) itemKey(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		dynamoAttrKey: &types.AttributeValueMemberS{Value: s.itemName(key)},
	}
}

func (s *dynamoStore) itemName(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + ":" + key
}

func dynamoNumber(n int64) *types.AttributeValueMemberN {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(n, 10)}
}

// dynamoMillis reads a numeric attribute, treating absent or malformed
// values as unset.
func dynamoMillis(item map[string]types.AttributeValue, name string) int64 {
	av, ok := item[name].(*types.AttributeValueMemberN)
	if !ok {
		return 0
	}
	n, err := strconv.ParseInt(av.Value, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func dynamoSnapshotTable(table string) *dynamodb.CreateTableInput {
	return &dynamodb.CreateTableInput{
		TableName: aws.String(table),
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(dynamoAttrKey), KeyType: types.KeyTypeHash},
		},
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(dynamoAttrKey), AttributeType: types.ScalarAttributeTypeS},
		},
		BillingMode: types.BillingModePayPerRequest,
	}
}

// ensureDynamoTable creates the snapshot table when it is missing. Errors
// that look like a local endpoint still starting up are retried; any other
// error is returned unchanged.
func ensureDynamoTable(ctx context.Context, client DynamoAPI, table string) error {
	var lastErr error
	for attempt := 0; attempt < dynamoEnsureTableMaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(dynamoEnsureTableRetryDelay):
			}
		}
		err := tryEnsureDynamoTable(ctx, client, table)
		if err == nil {
			return nil
		}
		if !isDynamoStartupRetryable(err) {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("ensure dynamo table %q: %w", table, lastErr)
}

func tryEnsureDynamoTable(ctx context.Context, client DynamoAPI, table string) error {
	_, err := client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(table)})
	var missing *types.ResourceNotFoundException
	if err == nil || !errors.As(err, &missing) {
		return err
	}
	_, err = client.CreateTable(ctx, dynamoSnapshotTable(table))
	var inUse *types.ResourceInUseException
	if errors.As(err, &inUse) {
		return nil
	}
	return err
}

func isDynamoStartupRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, hint := range []string{"request send failed", "connection reset by peer", "connection refused", "timeout", "eof"} {
		if strings.Contains(msg, hint) {
			return true
		}
	}
	return false
}
