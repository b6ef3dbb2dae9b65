package dynamodb

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"cardtree-backend/application/ports"
)

// DurableCache implements the durable cache tier on DynamoDB. Entries
// carry a TTL attribute so the table expires them without a sweeper.
// It is scoped per session: keys are prefixed with the session id so
// one client's warm cache never leaks into another's.
type DurableCache struct {
	client    *dynamodb.Client
	tableName string
	sessionID string
	logger    *zap.Logger
}

// NewDurableCache creates a DynamoDB-backed durable cache tier
func NewDurableCache(client *dynamodb.Client, tableName, sessionID string, logger *zap.Logger) ports.DurableStore {
	return &DurableCache{
		client:    client,
		tableName: tableName,
		sessionID: sessionID,
		logger:    logger,
	}
}

// cacheRecord represents a cached entry in DynamoDB
type cacheRecord struct {
	PK        string `dynamodbav:"PK"` // SESSION#<session_id>
	SK        string `dynamodbav:"SK"` // CACHE#<key>
	Value     []byte `dynamodbav:"Value"`
	StoredAt  string `dynamodbav:"StoredAt"`
	ExpiresAt int64  `dynamodbav:"TTL"`
}

func (c *DurableCache) pk() string {
	return fmt.Sprintf("SESSION#%s", c.sessionID)
}

func (c *DurableCache) sk(key string) string {
	return fmt.Sprintf("CACHE#%s", key)
}

// Get returns a cached value, with a hit flag. Entries past their TTL
// count as misses even before DynamoDB reaps them.
func (c *DurableCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	input := &dynamodb.GetItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: c.pk()},
			"SK": &types.AttributeValueMemberS{Value: c.sk(key)},
		},
	}

	result, err := c.client.GetItem(ctx, input)
	if err != nil {
		return nil, false, fmt.Errorf("durable cache get: %w", err)
	}
	if result.Item == nil {
		return nil, false, nil
	}

	var record cacheRecord
	if err := attributevalue.UnmarshalMap(result.Item, &record); err != nil {
		return nil, false, fmt.Errorf("durable cache unmarshal: %w", err)
	}
	if record.ExpiresAt > 0 && time.Now().Unix() >= record.ExpiresAt {
		return nil, false, nil
	}
	return record.Value, true, nil
}

// Set stores a value with the given TTL
func (c *DurableCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	now := time.Now()
	record := cacheRecord{
		PK:       c.pk(),
		SK:       c.sk(key),
		Value:    value,
		StoredAt: now.Format(time.RFC3339),
	}
	if ttl > 0 {
		record.ExpiresAt = now.Add(ttl).Unix()
	}

	av, err := attributevalue.MarshalMap(record)
	if err != nil {
		return fmt.Errorf("durable cache marshal: %w", err)
	}

	input := &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item:      av,
	}
	if _, err := c.client.PutItem(ctx, input); err != nil {
		return fmt.Errorf("durable cache set: %w", err)
	}

	c.logger.Debug("durable cache entry stored",
		zap.String("key", key),
		zap.Duration("ttl", ttl),
	)
	return nil
}

// Remove deletes a cached entry
func (c *DurableCache) Remove(ctx context.Context, key string) error {
	input := &dynamodb.DeleteItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: c.pk()},
			"SK": &types.AttributeValueMemberS{Value: c.sk(key)},
		},
	}
	if _, err := c.client.DeleteItem(ctx, input); err != nil {
		return fmt.Errorf("durable cache remove: %w", err)
	}
	return nil
}
