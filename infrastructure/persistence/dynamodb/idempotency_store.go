package dynamodb

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"studypace/application/ports"
	"studypace/domain/core/valueobjects"
	pkgerrors "studypace/pkg/errors"
)

const eventKeyPrefix = "EVENT#"

// IdempotencyStore guards performance event processing with a conditional
// write: exactly one caller wins the reservation for a given event ID.
// DynamoDB TTL prunes old reservations.
type IdempotencyStore struct {
	client    *dynamodb.Client
	tableName string
	ttl       time.Duration
	logger    *zap.Logger
}

var _ ports.IdempotencyStore = (*IdempotencyStore)(nil)

// NewIdempotencyStore creates a new DynamoDB-backed idempotency store
func NewIdempotencyStore(client *dynamodb.Client, tableName string, ttl time.Duration, logger *zap.Logger) *IdempotencyStore {
	if ttl == 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &IdempotencyStore{
		client:    client,
		tableName: tableName,
		ttl:       ttl,
		logger:    logger,
	}
}

func (s *IdempotencyStore) Reserve(ctx context.Context, learnerID valueobjects.LearnerID, eventID string) (bool, error) {
	expiresAt := time.Now().Add(s.ttl).Unix()

	_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item: map[string]types.AttributeValue{
			"PK":         &types.AttributeValueMemberS{Value: learnerKeyPrefix + learnerID.String()},
			"SK":         &types.AttributeValueMemberS{Value: eventKeyPrefix + eventID},
			"EntityType": &types.AttributeValueMemberS{Value: "EVENT"},
			"CreatedAt":  &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339Nano)},
			"TTL":        &types.AttributeValueMemberN{Value: strconv.FormatInt(expiresAt, 10)},
		},
		ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			// Event already processed, the duplicate loses the reservation
			return false, nil
		}
		return false, pkgerrors.NewDatabaseError("reserve event", err)
	}

	s.logger.Debug("Event reserved",
		zap.String("learnerID", learnerID.String()),
		zap.String("eventID", eventID),
	)
	return true, nil
}

func (s *IdempotencyStore) Release(ctx context.Context, learnerID valueobjects.LearnerID, eventID string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: learnerKeyPrefix + learnerID.String()},
			"SK": &types.AttributeValueMemberS{Value: eventKeyPrefix + eventID},
		},
	})
	if err != nil {
		return pkgerrors.NewDatabaseError("release event", err)
	}
	return nil
}
