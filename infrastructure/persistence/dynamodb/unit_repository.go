package dynamodb

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"studypace/application/ports"
	"studypace/domain/core/entities"
	"studypace/domain/core/valueobjects"
	pkgerrors "studypace/pkg/errors"
)

const (
	materialKeyPrefix = "MATERIAL#"
	unitKeyPrefix     = "UNIT#"
)

// unitItem is the DynamoDB representation of a material unit. Units are keyed
// under their material; GSI1 carries UNIT#<id> for direct lookups by ID.
type unitItem struct {
	PK               string  `dynamodbav:"PK"`
	SK               string  `dynamodbav:"SK"`
	EntityType       string  `dynamodbav:"EntityType"`
	UnitID           string  `dynamodbav:"UnitID"`
	MaterialID       string  `dynamodbav:"MaterialID"`
	Title            string  `dynamodbav:"Title"`
	OrderIndex       int     `dynamodbav:"OrderIndex"`
	StartOffset      int     `dynamodbav:"StartOffset"`
	EndOffset        int     `dynamodbav:"EndOffset"`
	WordCount        int     `dynamodbav:"WordCount"`
	Difficulty       float64 `dynamodbav:"Difficulty"`
	EstimatedMinutes int     `dynamodbav:"EstimatedMinutes"`
	CreatedAt        string  `dynamodbav:"CreatedAt"`
	GSI1PK           string  `dynamodbav:"GSI1PK"`
	GSI1SK           string  `dynamodbav:"GSI1SK"`
}

// UnitRepository implements ports.UnitRepository using DynamoDB
type UnitRepository struct {
	client    *dynamodb.Client
	tableName string
	indexName string
	logger    *zap.Logger
}

var _ ports.UnitRepository = (*UnitRepository)(nil)

// NewUnitRepository creates a new unit repository
func NewUnitRepository(client *dynamodb.Client, tableName, indexName string, logger *zap.Logger) *UnitRepository {
	return &UnitRepository{
		client:    client,
		tableName: tableName,
		indexName: indexName,
		logger:    logger,
	}
}

func (r *UnitRepository) Save(ctx context.Context, unit *entities.MaterialUnit) error {
	item := unitItem{
		PK:               materialKeyPrefix + unit.MaterialID(),
		SK:               unitKeyPrefix + unit.ID().String(),
		EntityType:       "UNIT",
		UnitID:           unit.ID().String(),
		MaterialID:       unit.MaterialID(),
		Title:            unit.Title(),
		OrderIndex:       unit.OrderIndex(),
		StartOffset:      unit.StartOffset(),
		EndOffset:        unit.EndOffset(),
		WordCount:        unit.WordCount(),
		Difficulty:       unit.Difficulty().Value(),
		EstimatedMinutes: unit.EstimatedMinutes(),
		CreatedAt:        unit.CreatedAt().UTC().Format(time.RFC3339Nano),
		GSI1PK:           unitKeyPrefix + unit.ID().String(),
		GSI1SK:           materialKeyPrefix + unit.MaterialID(),
	}

	itemMap, err := attributevalue.MarshalMap(item)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to marshal unit")
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      itemMap,
	})
	if err != nil {
		return pkgerrors.NewDatabaseError("save unit", err)
	}

	r.logger.Debug("Unit saved",
		zap.String("unitID", unit.ID().String()),
		zap.String("materialID", unit.MaterialID()),
	)
	return nil
}

func (r *UnitRepository) GetByID(ctx context.Context, id valueobjects.UnitID) (*entities.MaterialUnit, error) {
	result, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(r.indexName),
		KeyConditionExpression: aws.String("GSI1PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: unitKeyPrefix + id.String()},
		},
		Limit: aws.Int32(1),
	})
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("get unit", err)
	}
	if len(result.Items) == 0 {
		return nil, pkgerrors.NewNotFoundError("unit")
	}

	var item unitItem
	if err := attributevalue.UnmarshalMap(result.Items[0], &item); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to unmarshal unit")
	}
	return unitFromItem(item)
}

func (r *UnitRepository) ListByMaterial(ctx context.Context, materialID string) ([]*entities.MaterialUnit, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :sk)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: materialKeyPrefix + materialID},
			":sk": &types.AttributeValueMemberS{Value: unitKeyPrefix},
		},
	}

	units := make([]*entities.MaterialUnit, 0)
	paginator := dynamodb.NewQueryPaginator(r.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, pkgerrors.NewDatabaseError("query units", err)
		}
		for _, raw := range page.Items {
			var item unitItem
			if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
				r.logger.Warn("Failed to unmarshal unit", zap.Error(err))
				continue
			}
			unit, err := unitFromItem(item)
			if err != nil {
				r.logger.Warn("Failed to reconstruct unit", zap.String("unitID", item.UnitID), zap.Error(err))
				continue
			}
			units = append(units, unit)
		}
	}

	sort.Slice(units, func(i, j int) bool { return units[i].OrderIndex() < units[j].OrderIndex() })
	return units, nil
}

func unitFromItem(item unitItem) (*entities.MaterialUnit, error) {
	unitID, err := valueobjects.NewUnitIDFromString(item.UnitID)
	if err != nil {
		return nil, fmt.Errorf("invalid unit ID: %w", err)
	}
	difficulty, err := valueobjects.NewDifficulty(item.Difficulty)
	if err != nil {
		return nil, fmt.Errorf("invalid difficulty: %w", err)
	}
	createdAt, _ := time.Parse(time.RFC3339Nano, item.CreatedAt)

	return entities.ReconstructMaterialUnit(
		unitID,
		item.MaterialID,
		item.Title,
		item.OrderIndex,
		item.StartOffset,
		item.EndOffset,
		item.WordCount,
		difficulty,
		item.EstimatedMinutes,
		createdAt,
	), nil
}
