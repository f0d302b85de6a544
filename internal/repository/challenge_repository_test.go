package repository

import (
	"context"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/duoauth/duoauth/internal/models"
	"github.com/duoauth/duoauth/internal/service"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubDynamo records inputs and returns canned outputs.
type stubDynamo struct {
	getOut *dynamodb.GetItemOutput
	getErr error

	updateIn  *dynamodb.UpdateItemInput
	updateErr error
}

func (s *stubDynamo) GetItem(_ context.Context, _ *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	return s.getOut, s.getErr
}

func (s *stubDynamo) PutItem(_ context.Context, _ *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	return &dynamodb.PutItemOutput{}, nil
}

func (s *stubDynamo) UpdateItem(_ context.Context, params *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	s.updateIn = params
	return &dynamodb.UpdateItemOutput{}, s.updateErr
}

func (s *stubDynamo) DeleteItem(_ context.Context, _ *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	return &dynamodb.DeleteItemOutput{}, nil
}

func (s *stubDynamo) Scan(_ context.Context, _ *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	return &dynamodb.ScanOutput{}, nil
}

func newChallengeRepo(stub *stubDynamo) *ChallengeRepository {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewChallengeRepository(stub, "TestTable", logger)
}

func testChallenge() models.OTPChallenge {
	return models.OTPChallenge{
		CodeHash:  "$2a$10$digest",
		SessionID: "session_1748779200_abcd1234",
		CreatedAt: 1_748_779_200_000,
		ExpiresAt: 1_748_779_230_000,
	}
}

// The challenge shares its item with the account, so no native-TTL attribute
// may ever be written: table TTL deletes whole items, account included.
func TestChallengeRepository_SetWritesOnlyChallengeAttributes(t *testing.T) {
	stub := &stubDynamo{}
	repo := newChallengeRepo(stub)

	require.NoError(t, repo.Set(context.Background(), "u1", testChallenge()))
	require.NotNil(t, stub.updateIn)

	assert.NotContains(t, *stub.updateIn.UpdateExpression, "otp_ttl")
	assert.NotContains(t, stub.updateIn.ExpressionAttributeValues, ":ttl")
	assert.Equal(t, "attribute_exists(PK)", *stub.updateIn.ConditionExpression)

	for _, placeholder := range []string{":hash", ":session", ":created", ":expires"} {
		assert.Contains(t, stub.updateIn.ExpressionAttributeValues, placeholder)
	}
}

func TestChallengeRepository_ClearRemovesOnlyChallengeAttributes(t *testing.T) {
	stub := &stubDynamo{}
	repo := newChallengeRepo(stub)

	require.NoError(t, repo.Clear(context.Background(), "u1", "$2a$10$digest"))
	require.NotNil(t, stub.updateIn)

	expr := *stub.updateIn.UpdateExpression
	assert.Contains(t, expr, "REMOVE")
	assert.NotContains(t, expr, "otp_ttl")
	for _, attr := range []string{"otp_code_hash", "otp_session_id", "otp_created_at", "otp_expires_at"} {
		assert.Contains(t, expr, attr)
	}

	// Clear stays conditional on the digest it verified.
	assert.Contains(t, *stub.updateIn.ConditionExpression, "otp_code_hash = :hash")
}

func TestChallengeRepository_SetMissingAccount(t *testing.T) {
	stub := &stubDynamo{updateErr: &types.ConditionalCheckFailedException{}}
	repo := newChallengeRepo(stub)

	err := repo.Set(context.Background(), "nobody", testChallenge())
	assert.ErrorIs(t, err, service.ErrAccountNotFound)
}

func TestChallengeRepository_ClearOfReplacedChallengeIsNoOp(t *testing.T) {
	stub := &stubDynamo{updateErr: &types.ConditionalCheckFailedException{}}
	repo := newChallengeRepo(stub)

	assert.NoError(t, repo.Clear(context.Background(), "u1", "stale-digest"))
}

func TestChallengeRepository_GetMapsStates(t *testing.T) {
	accountOnlyItem := map[string]types.AttributeValue{
		"PK":    &types.AttributeValueMemberS{Value: "ACCOUNT#u1"},
		"SK":    &types.AttributeValueMemberS{Value: "METADATA"},
		"email": &types.AttributeValueMemberS{Value: "u1@example.com"},
	}

	t.Run("account without challenge", func(t *testing.T) {
		stub := &stubDynamo{getOut: &dynamodb.GetItemOutput{Item: accountOnlyItem}}
		_, err := newChallengeRepo(stub).Get(context.Background(), "u1")
		assert.ErrorIs(t, err, service.ErrNoChallenge)
	})

	t.Run("missing account", func(t *testing.T) {
		stub := &stubDynamo{getOut: &dynamodb.GetItemOutput{}}
		_, err := newChallengeRepo(stub).Get(context.Background(), "nobody")
		assert.ErrorIs(t, err, service.ErrAccountNotFound)
	})

	t.Run("pending challenge", func(t *testing.T) {
		item := map[string]types.AttributeValue{}
		for k, v := range accountOnlyItem {
			item[k] = v
		}
		item["otp_code_hash"] = &types.AttributeValueMemberS{Value: "$2a$10$digest"}
		item["otp_session_id"] = &types.AttributeValueMemberS{Value: "session_1748779200_abcd1234"}
		item["otp_created_at"] = &types.AttributeValueMemberN{Value: "1748779200000"}
		item["otp_expires_at"] = &types.AttributeValueMemberN{Value: "1748779230000"}

		stub := &stubDynamo{getOut: &dynamodb.GetItemOutput{Item: item}}
		ch, err := newChallengeRepo(stub).Get(context.Background(), "u1")
		require.NoError(t, err)
		assert.Equal(t, testChallenge(), *ch)
	})
}
