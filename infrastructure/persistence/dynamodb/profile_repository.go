package dynamodb

import (
	"context"
	"errors"
	"fmt"
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

const profileSortKey = "PROFILE"

// profileItem is the DynamoDB representation of a learner profile
type profileItem struct {
	PK                   string  `dynamodbav:"PK"`
	SK                   string  `dynamodbav:"SK"`
	EntityType           string  `dynamodbav:"EntityType"`
	LearnerID            string  `dynamodbav:"LearnerID"`
	RetentionRate        float64 `dynamodbav:"RetentionRate"`
	CognitiveLoadLimit   float64 `dynamodbav:"CognitiveLoadLimit"`
	DifficultyPreference float64 `dynamodbav:"DifficultyPreference"`
	ReadingSpeed         float64 `dynamodbav:"ReadingSpeed"`
	UpdatedAt            string  `dynamodbav:"UpdatedAt"`
	Version              int     `dynamodbav:"Version"`
}

// ProfileRepository implements ports.ProfileRepository using DynamoDB
type ProfileRepository struct {
	client    *dynamodb.Client
	tableName string
	logger    *zap.Logger
}

var _ ports.ProfileRepository = (*ProfileRepository)(nil)

// NewProfileRepository creates a new profile repository
func NewProfileRepository(client *dynamodb.Client, tableName string, logger *zap.Logger) *ProfileRepository {
	return &ProfileRepository{client: client, tableName: tableName, logger: logger}
}

func (r *ProfileRepository) Save(ctx context.Context, profile *entities.LearnerProfile) error {
	item := profileItem{
		PK:                   learnerKeyPrefix + profile.LearnerID().String(),
		SK:                   profileSortKey,
		EntityType:           "PROFILE",
		LearnerID:            profile.LearnerID().String(),
		RetentionRate:        profile.RetentionRate(),
		CognitiveLoadLimit:   profile.CognitiveLoadLimit(),
		DifficultyPreference: profile.DifficultyPreference(),
		ReadingSpeed:         profile.ReadingSpeed(),
		UpdatedAt:            profile.UpdatedAt().UTC().Format(time.RFC3339Nano),
		Version:              profile.Version(),
	}

	itemMap, err := attributevalue.MarshalMap(item)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to marshal profile")
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      itemMap,
	})
	if err != nil {
		return pkgerrors.NewDatabaseError("save profile", err)
	}

	r.logger.Debug("Profile saved",
		zap.String("learnerID", profile.LearnerID().String()),
		zap.Int("version", profile.Version()),
	)
	return nil
}

func (r *ProfileRepository) GetByLearnerID(ctx context.Context, learnerID valueobjects.LearnerID) (*entities.LearnerProfile, error) {
	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: learnerKeyPrefix + learnerID.String()},
			"SK": &types.AttributeValueMemberS{Value: profileSortKey},
		},
	})
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("get profile", err)
	}
	if result.Item == nil {
		return nil, pkgerrors.NewNotFoundError("profile")
	}

	var item profileItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to unmarshal profile")
	}
	return profileFromItem(item)
}

// GetOrCreate returns the stored profile, or persists a defaulted one when the
// learner is new. The create is conditional so concurrent first requests
// converge on a single stored profile.
func (r *ProfileRepository) GetOrCreate(ctx context.Context, learnerID valueobjects.LearnerID) (*entities.LearnerProfile, error) {
	profile, err := r.GetByLearnerID(ctx, learnerID)
	if err == nil {
		return profile, nil
	}
	if !pkgerrors.IsNotFound(err) {
		return nil, err
	}

	fresh, err := entities.NewLearnerProfile(learnerID)
	if err != nil {
		return nil, err
	}

	item := profileItem{
		PK:                   learnerKeyPrefix + learnerID.String(),
		SK:                   profileSortKey,
		EntityType:           "PROFILE",
		LearnerID:            learnerID.String(),
		RetentionRate:        fresh.RetentionRate(),
		CognitiveLoadLimit:   fresh.CognitiveLoadLimit(),
		DifficultyPreference: fresh.DifficultyPreference(),
		ReadingSpeed:         fresh.ReadingSpeed(),
		UpdatedAt:            fresh.UpdatedAt().UTC().Format(time.RFC3339Nano),
		Version:              fresh.Version(),
	}
	itemMap, err := attributevalue.MarshalMap(item)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to marshal profile")
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                itemMap,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			// Another request created the profile first, read theirs
			return r.GetByLearnerID(ctx, learnerID)
		}
		return nil, pkgerrors.NewDatabaseError("create profile", err)
	}

	r.logger.Debug("Profile created", zap.String("learnerID", learnerID.String()))
	return fresh, nil
}

func profileFromItem(item profileItem) (*entities.LearnerProfile, error) {
	learnerID, err := valueobjects.NewLearnerID(item.LearnerID)
	if err != nil {
		return nil, fmt.Errorf("invalid learner ID: %w", err)
	}
	updatedAt, _ := time.Parse(time.RFC3339Nano, item.UpdatedAt)

	return entities.ReconstructLearnerProfile(
		learnerID,
		item.RetentionRate,
		item.CognitiveLoadLimit,
		item.DifficultyPreference,
		item.ReadingSpeed,
		updatedAt,
		item.Version,
	), nil
}
