// Package dynamocache provides a memoize storage backend on DynamoDB.
// Records live in a table keyed by "k" with a binary value "v" and an expiry
// timestamp "ea" (unix millis, 0 = never); pair "ea" with a DynamoDB TTL
// attribute for server-side cleanup.
package dynamocache

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/goforj/memoize/memocore"
)

// API captures the subset of DynamoDB client methods used by the storage.
type API interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// Config configures a DynamoDB-backed storage.
type Config struct {
	// Client overrides the constructed client; required unless Region is set.
	Client API
	// Table holds the records; required.
	Table string
	// Region used when constructing a client.
	Region string
	// Endpoint overrides the service endpoint, typically for dynamodb-local.
	Endpoint string
	// Prefix namespaces keys within a shared table.
	Prefix string
}

type store struct {
	client API
	table  string
	prefix string
}

// New builds a DynamoDB-backed memocore.Storage.
func New(ctx context.Context, cfg Config) (memocore.Storage, error) {
	if cfg.Table == "" {
		return nil, &memocore.ConfigurationError{Message: "dynamocache: table is required"}
	}
	client := cfg.Client
	if client == nil {
		built, err := newClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		client = built
	}
	return &store{client: client, table: cfg.Table, prefix: cfg.Prefix}, nil
}

func newClient(ctx context.Context, cfg Config) (*dynamodb.Client, error) {
	if cfg.Region == "" {
		return nil, &memocore.ConfigurationError{Message: "dynamocache: region or client is required"}
	}
	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.Endpoint != "" {
		// Local endpoints do not validate credentials.
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider("local", "local", ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, err
	}
	if cfg.Endpoint != "" {
		awsCfg.EndpointResolverWithOptions = aws.EndpointResolverWithOptionsFunc(
			func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				return aws.Endpoint{URL: cfg.Endpoint, HostnameImmutable: true}, nil
			})
	}
	return dynamodb.NewFromConfig(awsCfg), nil
}

func (s *store) Driver() memocore.Driver { return memocore.DriverDynamo }

func (s *store) Ready(ctx context.Context) error {
	_, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(s.table),
	})
	return err
}

func (s *store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key:       s.itemKey(key),
	})
	if err != nil {
		return nil, false, err
	}
	if out.Item == nil {
		return nil, false, nil
	}
	if expired(out.Item) {
		_, _ = s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(s.table),
			Key:       s.itemKey(key),
		})
		return nil, false, nil
	}
	v, ok := out.Item["v"].(*types.AttributeValueMemberB)
	if !ok {
		return nil, false, errors.New("dynamocache: item missing binary value")
	}
	return append([]byte(nil), v.Value...), true, nil
}

func (s *store) Set(ctx context.Context, key string, value []byte, expiresIn time.Duration) error {
	var expiresAt int64
	if expiresIn > 0 {
		expiresAt = time.Now().Add(expiresIn).UnixMilli()
	}
	_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item: map[string]types.AttributeValue{
			"k":  &types.AttributeValueMemberS{Value: s.storageKey(key)},
			"v":  &types.AttributeValueMemberB{Value: append([]byte(nil), value...)},
			"ea": &types.AttributeValueMemberN{Value: strconv.FormatInt(expiresAt, 10)},
		},
	})
	return err
}

func (s *store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key:       s.itemKey(key),
	})
	return err
}

func (s *store) itemKey(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"k": &types.AttributeValueMemberS{Value: s.storageKey(key)},
	}
}

func (s *store) storageKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + ":" + key
}

func expired(item map[string]types.AttributeValue) bool {
	ea, ok := item["ea"].(*types.AttributeValueMemberN)
	if !ok {
		return false
	}
	at, err := strconv.ParseInt(ea.Value, 10, 64)
	if err != nil {
		return false
	}
	return at > 0 && time.Now().UnixMilli() > at
}
