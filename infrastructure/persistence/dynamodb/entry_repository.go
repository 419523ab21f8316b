package dynamodb

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"studypace/application/ports"
	"studypace/domain/core/entities"
	"studypace/domain/core/valueobjects"
	pkgerrors "studypace/pkg/errors"
)

// Single-table layout: every learner-owned item lives under PK LEARNER#<id>.
// Open entries are additionally indexed on GSI1 under STATUS#scheduled so the
// sweeper can find learners with work outstanding without scanning the table.
const (
	learnerKeyPrefix = "LEARNER#"
	entryKeyPrefix   = "ENTRY#"
	statusKeyPrefix  = "STATUS#"
)

// entryItem is the DynamoDB representation of a schedule entry
type entryItem struct {
	PK                 string  `dynamodbav:"PK"`
	SK                 string  `dynamodbav:"SK"`
	EntityType         string  `dynamodbav:"EntityType"`
	EntryID            string  `dynamodbav:"EntryID"`
	LearnerID          string  `dynamodbav:"LearnerID"`
	UnitID             string  `dynamodbav:"UnitID"`
	SessionType        string  `dynamodbav:"SessionType"`
	ScheduledAt        string  `dynamodbav:"ScheduledAt"`
	DurationMinutes    int     `dynamodbav:"DurationMinutes"`
	PriorityScore      float64 `dynamodbav:"PriorityScore"`
	CognitiveLoadScore float64 `dynamodbav:"CognitiveLoadScore"`
	IntervalDays       int     `dynamodbav:"IntervalDays"`
	Status             string  `dynamodbav:"Status"`
	StartOffset        int     `dynamodbav:"StartOffset"`
	EndOffset          int     `dynamodbav:"EndOffset"`
	ReplacedBy         string  `dynamodbav:"ReplacedBy,omitempty"`
	CompletedAt        string  `dynamodbav:"CompletedAt,omitempty"`
	CreatedAt          string  `dynamodbav:"CreatedAt"`
	UpdatedAt          string  `dynamodbav:"UpdatedAt"`
	Version            int     `dynamodbav:"Version"`
	GSI1PK             string  `dynamodbav:"GSI1PK"`
	GSI1SK             string  `dynamodbav:"GSI1SK"`
}

// EntryRepository implements ports.EntryRepository using DynamoDB
type EntryRepository struct {
	client    *dynamodb.Client
	tableName string
	indexName string
	logger    *zap.Logger
}

var _ ports.EntryRepository = (*EntryRepository)(nil)

// NewEntryRepository creates a new entry repository
func NewEntryRepository(client *dynamodb.Client, tableName, indexName string, logger *zap.Logger) *EntryRepository {
	return &EntryRepository{
		client:    client,
		tableName: tableName,
		indexName: indexName,
		logger:    logger,
	}
}

func entryToItem(entry *entities.ScheduleEntry) entryItem {
	item := entryItem{
		PK:                 learnerKeyPrefix + entry.LearnerID().String(),
		SK:                 entryKeyPrefix + entry.ID().String(),
		EntityType:         "ENTRY",
		EntryID:            entry.ID().String(),
		LearnerID:          entry.LearnerID().String(),
		UnitID:             entry.UnitID().String(),
		SessionType:        string(entry.SessionType()),
		ScheduledAt:        entry.ScheduledAt().UTC().Format(time.RFC3339Nano),
		DurationMinutes:    entry.DurationMinutes(),
		PriorityScore:      entry.PriorityScore(),
		CognitiveLoadScore: entry.CognitiveLoadScore(),
		IntervalDays:       entry.IntervalDays(),
		Status:             string(entry.Status()),
		StartOffset:        entry.StartOffset(),
		EndOffset:          entry.EndOffset(),
		CreatedAt:          entry.CreatedAt().UTC().Format(time.RFC3339Nano),
		UpdatedAt:          entry.UpdatedAt().UTC().Format(time.RFC3339Nano),
		Version:            entry.Version(),
		GSI1PK:             statusKeyPrefix + string(entry.Status()),
		GSI1SK:             entry.ScheduledAt().UTC().Format(time.RFC3339Nano) + "#" + entry.LearnerID().String(),
	}
	if !entry.ReplacedBy().IsZero() {
		item.ReplacedBy = entry.ReplacedBy().String()
	}
	if entry.CompletedAt() != nil {
		item.CompletedAt = entry.CompletedAt().UTC().Format(time.RFC3339Nano)
	}
	return item
}

func entryFromItem(item entryItem) (*entities.ScheduleEntry, error) {
	entryID, err := valueobjects.NewEntryIDFromString(item.EntryID)
	if err != nil {
		return nil, fmt.Errorf("invalid entry ID: %w", err)
	}
	learnerID, err := valueobjects.NewLearnerID(item.LearnerID)
	if err != nil {
		return nil, fmt.Errorf("invalid learner ID: %w", err)
	}
	unitID, err := valueobjects.NewUnitIDFromString(item.UnitID)
	if err != nil {
		return nil, fmt.Errorf("invalid unit ID: %w", err)
	}

	scheduledAt, err := time.Parse(time.RFC3339Nano, item.ScheduledAt)
	if err != nil {
		return nil, fmt.Errorf("invalid scheduled time: %w", err)
	}
	createdAt, _ := time.Parse(time.RFC3339Nano, item.CreatedAt)
	updatedAt, _ := time.Parse(time.RFC3339Nano, item.UpdatedAt)

	var replacedBy valueobjects.EntryID
	if item.ReplacedBy != "" {
		replacedBy, err = valueobjects.NewEntryIDFromString(item.ReplacedBy)
		if err != nil {
			return nil, fmt.Errorf("invalid replacement ID: %w", err)
		}
	}

	var completedAt *time.Time
	if item.CompletedAt != "" {
		t, err := time.Parse(time.RFC3339Nano, item.CompletedAt)
		if err != nil {
			return nil, fmt.Errorf("invalid completion time: %w", err)
		}
		completedAt = &t
	}

	return entities.ReconstructScheduleEntry(
		entryID,
		learnerID,
		unitID,
		entities.SessionType(item.SessionType),
		scheduledAt,
		item.DurationMinutes,
		item.PriorityScore,
		item.CognitiveLoadScore,
		item.IntervalDays,
		entities.EntryStatus(item.Status),
		item.StartOffset,
		item.EndOffset,
		replacedBy,
		completedAt,
		createdAt,
		updatedAt,
		item.Version,
	), nil
}

func (r *EntryRepository) Save(ctx context.Context, entry *entities.ScheduleEntry) error {
	item, err := attributevalue.MarshalMap(entryToItem(entry))
	if err != nil {
		return pkgerrors.Wrap(err, "failed to marshal entry")
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	if err != nil {
		return pkgerrors.NewDatabaseError("save entry", err)
	}

	r.logger.Debug("Entry saved",
		zap.String("entryID", entry.ID().String()),
		zap.String("learnerID", entry.LearnerID().String()),
		zap.String("status", string(entry.Status())),
	)
	return nil
}

// SaveBatch writes all entries in a single transaction so a generation run
// never leaves a partial schedule behind. DynamoDB caps transactions at 100
// items, which also bounds one generation batch.
func (r *EntryRepository) SaveBatch(ctx context.Context, entries []*entities.ScheduleEntry) error {
	if len(entries) == 0 {
		return nil
	}
	if len(entries) > 100 {
		return pkgerrors.NewValidationErrorf("batch of %d entries exceeds the transaction limit of 100", len(entries))
	}

	transactItems := make([]types.TransactWriteItem, 0, len(entries))
	for _, entry := range entries {
		item, err := attributevalue.MarshalMap(entryToItem(entry))
		if err != nil {
			return pkgerrors.Wrap(err, "failed to marshal entry")
		}
		transactItems = append(transactItems, types.TransactWriteItem{
			Put: &types.Put{
				TableName: aws.String(r.tableName),
				Item:      item,
			},
		})
	}

	_, err := r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: transactItems,
	})
	if err != nil {
		return pkgerrors.NewDatabaseError("save entry batch", err)
	}

	r.logger.Debug("Entry batch saved", zap.Int("count", len(entries)))
	return nil
}

func (r *EntryRepository) GetByID(ctx context.Context, learnerID valueobjects.LearnerID, id valueobjects.EntryID) (*entities.ScheduleEntry, error) {
	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: learnerKeyPrefix + learnerID.String()},
			"SK": &types.AttributeValueMemberS{Value: entryKeyPrefix + id.String()},
		},
	})
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("get entry", err)
	}
	if result.Item == nil {
		return nil, pkgerrors.NewNotFoundError("entry")
	}

	var item entryItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to unmarshal entry")
	}
	return entryFromItem(item)
}

func (r *EntryRepository) ListOpen(ctx context.Context, learnerID valueobjects.LearnerID) ([]*entities.ScheduleEntry, error) {
	filter := expression.Name("Status").Equal(expression.Value(string(entities.StatusScheduled)))
	return r.queryEntries(ctx, learnerID, &filter)
}

func (r *EntryRepository) ListByDateRange(ctx context.Context, learnerID valueobjects.LearnerID, from, to time.Time) ([]*entities.ScheduleEntry, error) {
	filter := expression.Name("ScheduledAt").
		GreaterThanEqual(expression.Value(from.UTC().Format(time.RFC3339Nano))).
		And(expression.Name("ScheduledAt").LessThan(expression.Value(to.UTC().Format(time.RFC3339Nano))))
	return r.queryEntries(ctx, learnerID, &filter)
}

func (r *EntryRepository) ListByUnit(ctx context.Context, learnerID valueobjects.LearnerID, unitID valueobjects.UnitID) ([]*entities.ScheduleEntry, error) {
	filter := expression.Name("UnitID").Equal(expression.Value(unitID.String()))
	return r.queryEntries(ctx, learnerID, &filter)
}

// queryEntries runs a filtered query over one learner partition and returns
// the matches sorted by scheduled time
func (r *EntryRepository) queryEntries(
	ctx context.Context,
	learnerID valueobjects.LearnerID,
	filter *expression.ConditionBuilder,
) ([]*entities.ScheduleEntry, error) {
	keyExpr := expression.Key("PK").Equal(expression.Value(learnerKeyPrefix + learnerID.String())).
		And(expression.Key("SK").BeginsWith(entryKeyPrefix))

	builder := expression.NewBuilder().WithKeyCondition(keyExpr)
	if filter != nil {
		builder = builder.WithFilter(*filter)
	}
	expr, err := builder.Build()
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to build entry query expression")
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		KeyConditionExpression:    expr.KeyCondition(),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}

	entries := make([]*entities.ScheduleEntry, 0)
	paginator := dynamodb.NewQueryPaginator(r.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, pkgerrors.NewDatabaseError("query entries", err)
		}
		for _, raw := range page.Items {
			var item entryItem
			if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
				r.logger.Warn("Failed to unmarshal entry", zap.Error(err))
				continue
			}
			entry, err := entryFromItem(item)
			if err != nil {
				r.logger.Warn("Failed to reconstruct entry", zap.String("entryID", item.EntryID), zap.Error(err))
				continue
			}
			entries = append(entries, entry)
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].ScheduledAt().Before(entries[j].ScheduledAt())
	})
	return entries, nil
}

func (r *EntryRepository) ListLearnersWithOpen(ctx context.Context) ([]valueobjects.LearnerID, error) {
	keyExpr := expression.Key("GSI1PK").Equal(expression.Value(statusKeyPrefix + string(entities.StatusScheduled)))
	expr, err := expression.NewBuilder().
		WithKeyCondition(keyExpr).
		WithProjection(expression.NamesList(expression.Name("LearnerID"))).
		Build()
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to build open learners expression")
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(r.indexName),
		KeyConditionExpression:    expr.KeyCondition(),
		ProjectionExpression:      expr.Projection(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}

	seen := make(map[string]struct{})
	learners := make([]valueobjects.LearnerID, 0)

	paginator := dynamodb.NewQueryPaginator(r.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, pkgerrors.NewDatabaseError("query open learners", err)
		}
		for _, raw := range page.Items {
			v, ok := raw["LearnerID"].(*types.AttributeValueMemberS)
			if !ok {
				continue
			}
			if _, dup := seen[v.Value]; dup {
				continue
			}
			seen[v.Value] = struct{}{}
			learnerID, err := valueobjects.NewLearnerID(v.Value)
			if err != nil {
				continue
			}
			learners = append(learners, learnerID)
		}
	}

	sort.Slice(learners, func(i, j int) bool { return learners[i].String() < learners[j].String() })
	return learners, nil
}
