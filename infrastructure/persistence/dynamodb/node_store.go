// Package dynamodb implements the persistence ports on a single-table
// DynamoDB layout. Node records key on NODE#<id> with a GSI keyed by
// parent for children listings.
package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"cardtree-backend/application/ports"
	"cardtree-backend/domain/core/entities"
	"cardtree-backend/domain/core/valueobjects"
	appErrors "cardtree-backend/pkg/errors"
)

const (
	entityTypeNode = "NODE"
	parentIndex    = "GSI1"
	rootPartition  = "ROOT"
)

// NodeStore implements ports.NodeStore on DynamoDB
type NodeStore struct {
	client    *dynamodb.Client
	tableName string
	logger    *zap.Logger
}

// NewNodeStore creates a new NodeStore
func NewNodeStore(client *dynamodb.Client, tableName string, logger *zap.Logger) ports.NodeStore {
	return &NodeStore{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

// nodeItem represents the DynamoDB item structure for a node
type nodeItem struct {
	PK          string   `dynamodbav:"PK"`
	SK          string   `dynamodbav:"SK"`
	GSI1PK      string   `dynamodbav:"GSI1PK"`
	GSI1SK      string   `dynamodbav:"GSI1SK"`
	EntityType  string   `dynamodbav:"EntityType"`
	NodeID      string   `dynamodbav:"NodeID"`
	Kind        string   `dynamodbav:"Kind"`
	ParentID    string   `dynamodbav:"ParentID,omitempty"`
	ChildIDs    []string `dynamodbav:"ChildIDs,omitempty"`
	Title       string   `dynamodbav:"Title"`
	Description string   `dynamodbav:"Description,omitempty"`
	Owner       string   `dynamodbav:"Owner"`
	CreatedAt   string   `dynamodbav:"CreatedAt"`
	UpdatedAt   string   `dynamodbav:"UpdatedAt"`
	Version     int      `dynamodbav:"Version"`
}

func nodePK(id valueobjects.NodeID) string {
	return fmt.Sprintf("NODE#%s", id.String())
}

func parentPartition(parentID valueobjects.NodeID) string {
	if parentID.IsZero() {
		return fmt.Sprintf("PARENT#%s", rootPartition)
	}
	return fmt.Sprintf("PARENT#%s", parentID.String())
}

func toItem(node *entities.Node) nodeItem {
	childIDs := node.ChildIDs()
	ids := make([]string, 0, len(childIDs))
	for _, id := range childIDs {
		ids = append(ids, id.String())
	}
	return nodeItem{
		PK:          nodePK(node.ID()),
		SK:          "METADATA",
		GSI1PK:      parentPartition(node.ParentID()),
		GSI1SK:      nodePK(node.ID()),
		EntityType:  entityTypeNode,
		NodeID:      node.ID().String(),
		Kind:        string(node.Kind()),
		ParentID:    node.ParentID().String(),
		ChildIDs:    ids,
		Title:       node.Content().Title(),
		Description: node.Content().Description(),
		Owner:       node.Owner(),
		CreatedAt:   node.CreatedAt().Format(time.RFC3339Nano),
		UpdatedAt:   node.UpdatedAt().Format(time.RFC3339Nano),
		Version:     node.Version(),
	}
}

func fromItem(item nodeItem) (*entities.Node, error) {
	id, err := valueobjects.NewNodeIDFromString(item.NodeID)
	if err != nil {
		return nil, fmt.Errorf("corrupt node item %q: %w", item.PK, err)
	}

	parentID := valueobjects.RootID
	if item.ParentID != "" {
		parentID, err = valueobjects.NewNodeIDFromString(item.ParentID)
		if err != nil {
			return nil, fmt.Errorf("corrupt parent reference on %q: %w", item.PK, err)
		}
	}

	childIDs := make([]valueobjects.NodeID, 0, len(item.ChildIDs))
	for _, raw := range item.ChildIDs {
		childID, err := valueobjects.NewNodeIDFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("corrupt child reference on %q: %w", item.PK, err)
		}
		childIDs = append(childIDs, childID)
	}

	createdAt, err := time.Parse(time.RFC3339Nano, item.CreatedAt)
	if err != nil {
		createdAt = time.Time{}
	}
	updatedAt, err := time.Parse(time.RFC3339Nano, item.UpdatedAt)
	if err != nil {
		updatedAt = createdAt
	}

	content := valueobjects.ReconstructNodeContent(item.Title, item.Description)
	return entities.ReconstructNode(
		id,
		entities.NodeKind(item.Kind),
		item.Owner,
		content,
		parentID,
		childIDs,
		createdAt,
		updatedAt,
		item.Version,
	)
}

// Get retrieves a node by id
func (s *NodeStore) Get(ctx context.Context, id valueobjects.NodeID) (*entities.Node, error) {
	input := &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: nodePK(id)},
			"SK": &types.AttributeValueMemberS{Value: "METADATA"},
		},
	}

	result, err := s.client.GetItem(ctx, input)
	if err != nil {
		return nil, appErrors.NewStoreUnavailableError("get_item", err)
	}
	if result.Item == nil {
		return nil, appErrors.NewNotFoundError("node").
			WithDetail("node_id", id.String())
	}

	var item nodeItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal node: %w", err)
	}
	return fromItem(item)
}

// Query returns nodes matching the filter. A parent filter uses the
// parent GSI; kind and owner narrow the result with filter expressions.
func (s *NodeStore) Query(ctx context.Context, q ports.NodeQuery) ([]*entities.Node, error) {
	if q.ParentID == nil {
		return s.scanFiltered(ctx, q)
	}

	keyCond := expression.Key("GSI1PK").Equal(expression.Value(parentPartition(*q.ParentID)))
	builder := expression.NewBuilder().WithKeyCondition(keyCond)

	filter, hasFilter := buildFilter(q)
	if hasFilter {
		builder = builder.WithFilter(filter)
	}

	expr, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build query expression: %w", err)
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(s.tableName),
		IndexName:                 aws.String(parentIndex),
		KeyConditionExpression:    expr.KeyCondition(),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}
	if q.Limit > 0 {
		input.Limit = aws.Int32(int32(q.Limit))
	}

	var nodes []*entities.Node
	paginator := dynamodb.NewQueryPaginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, appErrors.NewStoreUnavailableError("query_children", err)
		}
		for _, raw := range page.Items {
			var item nodeItem
			if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
				return nil, fmt.Errorf("failed to unmarshal node: %w", err)
			}
			node, err := fromItem(item)
			if err != nil {
				s.logger.Warn("skipping corrupt node item", zap.Error(err))
				continue
			}
			nodes = append(nodes, node)
		}
		if q.Limit > 0 && len(nodes) >= q.Limit {
			nodes = nodes[:q.Limit]
			break
		}
	}
	return nodes, nil
}

// Insert persists a new node record, failing when the id already exists
func (s *NodeStore) Insert(ctx context.Context, node *entities.Node) error {
	av, err := attributevalue.MarshalMap(toItem(node))
	if err != nil {
		return fmt.Errorf("failed to marshal node: %w", err)
	}

	input := &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	}

	if _, err := s.client.PutItem(ctx, input); err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			return appErrors.NewValidationError("node already exists").
				WithDetail("node_id", node.ID().String())
		}
		return appErrors.NewStoreUnavailableError("put_item", err)
	}

	s.logger.Debug("node inserted",
		zap.String("node_id", node.ID().String()),
		zap.String("kind", string(node.Kind())),
	)
	return nil
}

// Update overwrites an existing node record
func (s *NodeStore) Update(ctx context.Context, node *entities.Node) error {
	av, err := attributevalue.MarshalMap(toItem(node))
	if err != nil {
		return fmt.Errorf("failed to marshal node: %w", err)
	}

	input := &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                av,
		ConditionExpression: aws.String("attribute_exists(PK)"),
	}

	if _, err := s.client.PutItem(ctx, input); err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			return appErrors.NewNotFoundError("node").
				WithDetail("node_id", node.ID().String())
		}
		return appErrors.NewStoreUnavailableError("put_item", err)
	}
	return nil
}

// Delete removes a node record. Deleting a missing node is not an error.
func (s *NodeStore) Delete(ctx context.Context, id valueobjects.NodeID) error {
	input := &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: nodePK(id)},
			"SK": &types.AttributeValueMemberS{Value: "METADATA"},
		},
	}

	if _, err := s.client.DeleteItem(ctx, input); err != nil {
		return appErrors.NewStoreUnavailableError("delete_item", err)
	}
	return nil
}

// Scan returns every node record
func (s *NodeStore) Scan(ctx context.Context) ([]*entities.Node, error) {
	return s.scanFiltered(ctx, ports.NodeQuery{})
}

func (s *NodeStore) scanFiltered(ctx context.Context, q ports.NodeQuery) ([]*entities.Node, error) {
	filter := expression.Name("EntityType").Equal(expression.Value(entityTypeNode))
	if extra, ok := buildFilter(q); ok {
		filter = filter.And(extra)
	}

	expr, err := expression.NewBuilder().WithFilter(filter).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build scan expression: %w", err)
	}

	input := &dynamodb.ScanInput{
		TableName:                 aws.String(s.tableName),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}

	var nodes []*entities.Node
	paginator := dynamodb.NewScanPaginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, appErrors.NewStoreUnavailableError("scan_nodes", err)
		}
		for _, raw := range page.Items {
			var item nodeItem
			if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
				return nil, fmt.Errorf("failed to unmarshal node: %w", err)
			}
			node, err := fromItem(item)
			if err != nil {
				s.logger.Warn("skipping corrupt node item", zap.Error(err))
				continue
			}
			nodes = append(nodes, node)
			if q.Limit > 0 && len(nodes) >= q.Limit {
				return nodes, nil
			}
		}
	}
	return nodes, nil
}

func buildFilter(q ports.NodeQuery) (expression.ConditionBuilder, bool) {
	var cond expression.ConditionBuilder
	has := false

	if q.Kind != nil {
		cond = expression.Name("Kind").Equal(expression.Value(string(*q.Kind)))
		has = true
	}
	if q.Owner != "" {
		ownerCond := expression.Name("Owner").Equal(expression.Value(q.Owner))
		if has {
			cond = cond.And(ownerCond)
		} else {
			cond = ownerCond
			has = true
		}
	}
	return cond, has
}
