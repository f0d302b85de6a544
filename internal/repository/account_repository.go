package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/duoauth/duoauth/internal/models"
	"github.com/duoauth/duoauth/internal/service"
	"github.com/sirupsen/logrus"
)

const accountPKPrefix = "ACCOUNT#"

// AccountRepository stores accounts in DynamoDB using the single-table
// PK/SK scheme. Challenge attributes live on the same item (see
// ChallengeRepository) so an account and its pending challenge are one record.
type AccountRepository struct {
	client    dynamoAPI
	tableName string
	logger    *logrus.Logger
}

func NewAccountRepository(client dynamoAPI, tableName string, logger *logrus.Logger) *AccountRepository {
	return &AccountRepository{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

func (r *AccountRepository) Get(ctx context.Context, id string) (*models.Account, error) {
	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       accountKey(id),
	})
	if err != nil {
		r.logger.WithError(err).Error("Failed to get account from DynamoDB")
		return nil, fmt.Errorf("%w: failed to get account: %v", service.ErrStoreUnavailable, err)
	}

	if result.Item == nil {
		return nil, service.ErrAccountNotFound
	}

	return unmarshalAccount(result.Item)
}

// FindByEmail scans for the account with the given email. Email is unique by
// invariant; more than one match is a data-integrity error, not a lookup
// result.
func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	result, err := r.client.Scan(ctx, &dynamodb.ScanInput{
		TableName:        aws.String(r.tableName),
		FilterExpression: aws.String("begins_with(PK, :prefix) AND #email = :email"),
		ExpressionAttributeNames: map[string]string{
			"#email": "email",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":prefix": &types.AttributeValueMemberS{Value: accountPKPrefix},
			":email":  &types.AttributeValueMemberS{Value: email},
		},
	})
	if err != nil {
		r.logger.WithError(err).Error("Failed to query account by email")
		return nil, fmt.Errorf("%w: failed to find account by email: %v", service.ErrStoreUnavailable, err)
	}

	switch len(result.Items) {
	case 0:
		return nil, service.ErrAccountNotFound
	case 1:
		return unmarshalAccount(result.Items[0])
	default:
		r.logger.WithField("email", email).Error("Duplicate account records for email")
		return nil, fmt.Errorf("%w: duplicate accounts for email", service.ErrDataIntegrity)
	}
}

func (r *AccountRepository) Create(ctx context.Context, account *models.Account) error {
	now := time.Now()
	account.CreatedAt = now
	account.UpdatedAt = now

	item, err := attributevalue.MarshalMap(account)
	if err != nil {
		return fmt.Errorf("failed to marshal account: %w", err)
	}
	item["PK"] = &types.AttributeValueMemberS{Value: account.GetPK()}
	item["SK"] = &types.AttributeValueMemberS{Value: account.GetSK()}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return fmt.Errorf("%w: account already exists", service.ErrDataIntegrity)
		}
		r.logger.WithError(err).Error("Failed to create account in DynamoDB")
		return fmt.Errorf("%w: failed to create account: %v", service.ErrStoreUnavailable, err)
	}

	return nil
}

func (r *AccountRepository) Update(ctx context.Context, account *models.Account) error {
	account.UpdatedAt = time.Now()

	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 accountKey(account.ID),
		UpdateExpression:    aws.String("SET #email = :email, password_hash = :password_hash, #role = :role, updated_at = :updated_at"),
		ConditionExpression: aws.String("attribute_exists(PK)"),
		ExpressionAttributeNames: map[string]string{
			"#email": "email",
			"#role":  "role",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":email":         &types.AttributeValueMemberS{Value: account.Email},
			":password_hash": &types.AttributeValueMemberS{Value: account.PasswordHash},
			":role":          &types.AttributeValueMemberS{Value: string(account.Role)},
			":updated_at":    &types.AttributeValueMemberS{Value: account.UpdatedAt.Format(time.RFC3339)},
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return service.ErrAccountNotFound
		}
		r.logger.WithError(err).Error("Failed to update account in DynamoDB")
		return fmt.Errorf("%w: failed to update account: %v", service.ErrStoreUnavailable, err)
	}

	return nil
}

func (r *AccountRepository) Delete(ctx context.Context, id string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 accountKey(id),
		ConditionExpression: aws.String("attribute_exists(PK)"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return service.ErrAccountNotFound
		}
		r.logger.WithError(err).Error("Failed to delete account from DynamoDB")
		return fmt.Errorf("%w: failed to delete account: %v", service.ErrStoreUnavailable, err)
	}

	return nil
}

func (r *AccountRepository) List(ctx context.Context) ([]models.Account, error) {
	result, err := r.client.Scan(ctx, &dynamodb.ScanInput{
		TableName:        aws.String(r.tableName),
		FilterExpression: aws.String("begins_with(PK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":prefix": &types.AttributeValueMemberS{Value: accountPKPrefix},
		},
	})
	if err != nil {
		r.logger.WithError(err).Error("Failed to list accounts from DynamoDB")
		return nil, fmt.Errorf("%w: failed to list accounts: %v", service.ErrStoreUnavailable, err)
	}

	accounts := make([]models.Account, 0, len(result.Items))
	for _, item := range result.Items {
		account, err := unmarshalAccount(item)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *account)
	}

	return accounts, nil
}

func accountKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: accountPKPrefix + id},
		"SK": &types.AttributeValueMemberS{Value: "METADATA"},
	}
}

func unmarshalAccount(item map[string]types.AttributeValue) (*models.Account, error) {
	var account models.Account
	if err := attributevalue.UnmarshalMap(item, &account); err != nil {
		return nil, fmt.Errorf("failed to unmarshal account: %w", err)
	}

	if pk, ok := item["PK"].(*types.AttributeValueMemberS); ok {
		account.ID = strings.TrimPrefix(pk.Value, accountPKPrefix)
	}

	return &account, nil
}
