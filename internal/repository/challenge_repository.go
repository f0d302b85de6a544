package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/duoauth/duoauth/internal/models"
	"github.com/duoauth/duoauth/internal/service"
	"github.com/sirupsen/logrus"
)

// ChallengeRepository keeps the pending OTP challenge on the account item
// itself, as otp_* attributes. Issue overwrites them in place; clear removes
// them only while the stored digest is unchanged, so a clear racing a fresh
// issue never drops the newer challenge.
//
// The item must never carry a DynamoDB native-TTL attribute: table TTL
// deletes whole items, and here that item is the account. Stale challenge
// attributes simply sit until overwritten or checked; expiry is decided
// lazily at verify time.
type ChallengeRepository struct {
	client    dynamoAPI
	tableName string
	logger    *logrus.Logger
}

func NewChallengeRepository(client dynamoAPI, tableName string, logger *logrus.Logger) *ChallengeRepository {
	return &ChallengeRepository{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

func (r *ChallengeRepository) Set(ctx context.Context, identity string, ch models.OTPChallenge) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 accountKey(identity),
		UpdateExpression:    aws.String("SET otp_code_hash = :hash, otp_session_id = :session, otp_created_at = :created, otp_expires_at = :expires"),
		ConditionExpression: aws.String("attribute_exists(PK)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":hash":    &types.AttributeValueMemberS{Value: ch.CodeHash},
			":session": &types.AttributeValueMemberS{Value: ch.SessionID},
			":created": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", ch.CreatedAt)},
			":expires": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", ch.ExpiresAt)},
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return service.ErrAccountNotFound
		}
		r.logger.WithError(err).Error("Failed to store challenge in DynamoDB")
		return fmt.Errorf("%w: failed to store challenge: %v", service.ErrStoreUnavailable, err)
	}

	return nil
}

func (r *ChallengeRepository) Get(ctx context.Context, identity string) (*models.OTPChallenge, error) {
	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       accountKey(identity),
	})
	if err != nil {
		r.logger.WithError(err).Error("Failed to get challenge from DynamoDB")
		return nil, fmt.Errorf("%w: failed to get challenge: %v", service.ErrStoreUnavailable, err)
	}

	if result.Item == nil {
		return nil, service.ErrAccountNotFound
	}

	if _, ok := result.Item["otp_code_hash"]; !ok {
		return nil, service.ErrNoChallenge
	}

	var ch models.OTPChallenge
	if err := attributevalue.UnmarshalMap(result.Item, &ch); err != nil {
		return nil, fmt.Errorf("failed to unmarshal challenge: %w", err)
	}

	return &ch, nil
}

func (r *ChallengeRepository) Clear(ctx context.Context, identity string, codeHash string) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 accountKey(identity),
		UpdateExpression:    aws.String("REMOVE otp_code_hash, otp_session_id, otp_created_at, otp_expires_at"),
		ConditionExpression: aws.String("attribute_exists(PK) AND otp_code_hash = :hash"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":hash": &types.AttributeValueMemberS{Value: codeHash},
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			// Already cleared, or replaced by a newer issue. Either way
			// there is nothing left to remove.
			return nil
		}
		r.logger.WithError(err).Error("Failed to clear challenge in DynamoDB")
		return fmt.Errorf("%w: failed to clear challenge: %v", service.ErrStoreUnavailable, err)
	}

	return nil
}
