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

const reviewKeyPrefix = "REVIEW#"

// reviewItem is the DynamoDB representation of a review record. The sort key
// embeds unit and timestamp so per-unit history reads are a begins_with query
// that already comes back in recording order.
type reviewItem struct {
	PK              string  `dynamodbav:"PK"`
	SK              string  `dynamodbav:"SK"`
	EntityType      string  `dynamodbav:"EntityType"`
	RecordID        string  `dynamodbav:"RecordID"`
	LearnerID       string  `dynamodbav:"LearnerID"`
	UnitID          string  `dynamodbav:"UnitID"`
	EventID         string  `dynamodbav:"EventID"`
	Score           float64 `dynamodbav:"Score"`
	ElapsedMinutes  float64 `dynamodbav:"ElapsedMinutes"`
	PredictedRecall float64 `dynamodbav:"PredictedRecall"`
	HalfLifeDays    float64 `dynamodbav:"HalfLifeDays"`
	RecordedAt      string  `dynamodbav:"RecordedAt"`
}

// ReviewRepository implements ports.ReviewRepository using DynamoDB
type ReviewRepository struct {
	client    *dynamodb.Client
	tableName string
	logger    *zap.Logger
}

var _ ports.ReviewRepository = (*ReviewRepository)(nil)

// NewReviewRepository creates a new review repository
func NewReviewRepository(client *dynamodb.Client, tableName string, logger *zap.Logger) *ReviewRepository {
	return &ReviewRepository{client: client, tableName: tableName, logger: logger}
}

func reviewSortKey(unitID string, recordedAt time.Time, recordID string) string {
	return fmt.Sprintf("%s%s#%s#%s", reviewKeyPrefix, unitID, recordedAt.UTC().Format(time.RFC3339Nano), recordID)
}

func (r *ReviewRepository) Append(ctx context.Context, record *entities.ReviewRecord) error {
	item := reviewItem{
		PK:              learnerKeyPrefix + record.LearnerID().String(),
		SK:              reviewSortKey(record.UnitID().String(), record.RecordedAt(), record.ID()),
		EntityType:      "REVIEW",
		RecordID:        record.ID(),
		LearnerID:       record.LearnerID().String(),
		UnitID:          record.UnitID().String(),
		EventID:         record.EventID(),
		Score:           record.Score().Value(),
		ElapsedMinutes:  record.ElapsedMinutes(),
		PredictedRecall: record.PredictedRecall(),
		HalfLifeDays:    record.HalfLifeDays(),
		RecordedAt:      record.RecordedAt().UTC().Format(time.RFC3339Nano),
	}

	itemMap, err := attributevalue.MarshalMap(item)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to marshal review record")
	}

	// Records are append-only, a key collision means a bug upstream
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                itemMap,
		ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
	})
	if err != nil {
		return pkgerrors.NewDatabaseError("append review record", err)
	}

	r.logger.Debug("Review record appended",
		zap.String("recordID", record.ID()),
		zap.String("unitID", record.UnitID().String()),
	)
	return nil
}

func (r *ReviewRepository) ListByUnit(ctx context.Context, learnerID valueobjects.LearnerID, unitID valueobjects.UnitID) ([]*entities.ReviewRecord, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :sk)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: learnerKeyPrefix + learnerID.String()},
			":sk": &types.AttributeValueMemberS{Value: reviewKeyPrefix + unitID.String() + "#"},
		},
	}
	return r.queryRecords(ctx, input)
}

func (r *ReviewRepository) ListByLearner(ctx context.Context, learnerID valueobjects.LearnerID, from, to time.Time) ([]*entities.ReviewRecord, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :sk)"),
		FilterExpression:       aws.String("RecordedAt >= :from AND RecordedAt < :to"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":   &types.AttributeValueMemberS{Value: learnerKeyPrefix + learnerID.String()},
			":sk":   &types.AttributeValueMemberS{Value: reviewKeyPrefix},
			":from": &types.AttributeValueMemberS{Value: from.UTC().Format(time.RFC3339Nano)},
			":to":   &types.AttributeValueMemberS{Value: to.UTC().Format(time.RFC3339Nano)},
		},
	}
	return r.queryRecords(ctx, input)
}

func (r *ReviewRepository) queryRecords(ctx context.Context, input *dynamodb.QueryInput) ([]*entities.ReviewRecord, error) {
	records := make([]*entities.ReviewRecord, 0)

	paginator := dynamodb.NewQueryPaginator(r.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, pkgerrors.NewDatabaseError("query review records", err)
		}
		for _, raw := range page.Items {
			var item reviewItem
			if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
				r.logger.Warn("Failed to unmarshal review record", zap.Error(err))
				continue
			}
			record, err := reviewFromItem(item)
			if err != nil {
				r.logger.Warn("Failed to reconstruct review record", zap.String("recordID", item.RecordID), zap.Error(err))
				continue
			}
			records = append(records, record)
		}
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].RecordedAt().Before(records[j].RecordedAt())
	})
	return records, nil
}

func reviewFromItem(item reviewItem) (*entities.ReviewRecord, error) {
	learnerID, err := valueobjects.NewLearnerID(item.LearnerID)
	if err != nil {
		return nil, fmt.Errorf("invalid learner ID: %w", err)
	}
	unitID, err := valueobjects.NewUnitIDFromString(item.UnitID)
	if err != nil {
		return nil, fmt.Errorf("invalid unit ID: %w", err)
	}
	score, err := valueobjects.NewScore(item.Score)
	if err != nil {
		return nil, fmt.Errorf("invalid score: %w", err)
	}
	recordedAt, err := time.Parse(time.RFC3339Nano, item.RecordedAt)
	if err != nil {
		return nil, fmt.Errorf("invalid recording time: %w", err)
	}

	return entities.ReconstructReviewRecord(
		item.RecordID,
		learnerID,
		unitID,
		item.EventID,
		score,
		item.ElapsedMinutes,
		item.PredictedRecall,
		item.HalfLifeDays,
		recordedAt,
	), nil
}
