package dynamodb

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"studypace/application/ports"
	"studypace/domain/core/valueobjects"
	pkgerrors "studypace/pkg/errors"
)

const lockKeyPrefix = "LOCK#"

// defaultLockTTL bounds how long a crashed holder can block a learner
const defaultLockTTL = 30 * time.Second

// LearnerLocker implements per-learner mutual exclusion with a conditional
// write. Acquisition is fail-fast: a held lock surfaces as a concurrency
// conflict instead of blocking.
type LearnerLocker struct {
	client    *dynamodb.Client
	tableName string
	ttl       time.Duration
	logger    *zap.Logger
}

var _ ports.LearnerLocker = (*LearnerLocker)(nil)

// NewLearnerLocker creates a new distributed learner locker
func NewLearnerLocker(client *dynamodb.Client, tableName string, logger *zap.Logger) *LearnerLocker {
	return &LearnerLocker{
		client:    client,
		tableName: tableName,
		ttl:       defaultLockTTL,
		logger:    logger,
	}
}

func (l *LearnerLocker) Acquire(ctx context.Context, learnerID valueobjects.LearnerID) (ports.Unlocker, error) {
	token := uuid.New().String()
	now := time.Now()
	expiresAt := now.Add(l.ttl).Unix()

	_, err := l.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(l.tableName),
		Item: map[string]types.AttributeValue{
			"PK":         &types.AttributeValueMemberS{Value: lockKeyPrefix + learnerID.String()},
			"SK":         &types.AttributeValueMemberS{Value: "LOCK"},
			"EntityType": &types.AttributeValueMemberS{Value: "LOCK"},
			"Token":      &types.AttributeValueMemberS{Value: token},
			"ExpiresAt":  &types.AttributeValueMemberN{Value: strconv.FormatInt(expiresAt, 10)},
			"AcquiredAt": &types.AttributeValueMemberS{Value: now.UTC().Format(time.RFC3339Nano)},
		},
		// Stale locks from crashed holders are claimable once expired
		ConditionExpression: aws.String("attribute_not_exists(PK) OR ExpiresAt < :now"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Unix(), 10)},
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return nil, pkgerrors.NewConcurrencyError("learner " + learnerID.String())
		}
		return nil, pkgerrors.NewDatabaseError("acquire learner lock", err)
	}

	l.logger.Debug("Learner lock acquired",
		zap.String("learnerID", learnerID.String()),
		zap.String("token", token),
	)

	return &learnerUnlocker{
		locker:    l,
		learnerID: learnerID,
		token:     token,
	}, nil
}

// learnerUnlocker releases a held lock, verifying the token so an expired
// lock stolen by another holder is never released by the original one
type learnerUnlocker struct {
	locker    *LearnerLocker
	learnerID valueobjects.LearnerID
	token     string
	once      sync.Once
}

func (u *learnerUnlocker) Release(ctx context.Context) error {
	var err error
	u.once.Do(func() {
		_, delErr := u.locker.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(u.locker.tableName),
			Key: map[string]types.AttributeValue{
				"PK": &types.AttributeValueMemberS{Value: lockKeyPrefix + u.learnerID.String()},
				"SK": &types.AttributeValueMemberS{Value: "LOCK"},
			},
			ConditionExpression: aws.String("#token = :token"),
			ExpressionAttributeNames: map[string]string{
				"#token": "Token",
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":token": &types.AttributeValueMemberS{Value: u.token},
			},
		})
		if delErr != nil {
			var ccf *types.ConditionalCheckFailedException
			if errors.As(delErr, &ccf) {
				// Lock expired and was claimed elsewhere, nothing to release
				u.locker.logger.Warn("Learner lock expired before release",
					zap.String("learnerID", u.learnerID.String()),
				)
				return
			}
			err = pkgerrors.NewDatabaseError("release learner lock", delErr)
		}
	})
	return err
}
