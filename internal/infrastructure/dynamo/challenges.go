package dynamo

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/patrol-auth/internal/domain"
)

// ChallengeRepo manages pending OTP challenges.
// PK: contact, SK: purpose. The key makes a new challenge replace the old one.
type ChallengeRepo struct {
	client    API
	tableName string
}

func NewChallengeRepo(client API, tableName string) *ChallengeRepo {
	return &ChallengeRepo{client: client, tableName: tableName}
}

func (r *ChallengeRepo) key(contact string, purpose domain.OTPPurpose) map[string]types.AttributeValue {
	return compositeKey(attrContact, contact, attrPurpose, string(purpose))
}

func (r *ChallengeRepo) Put(ctx context.Context, c *domain.OTPChallenge) error {
	item, err := attributevalue.MarshalMap(c)
	if err != nil {
		return fmt.Errorf("marshal otp challenge: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *ChallengeRepo) Get(ctx context.Context, contact string, purpose domain.OTPPurpose) (*domain.OTPChallenge, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            r.key(contact, purpose),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("otp challenge not found: %w", domain.ErrNotFound)
	}
	var c domain.OTPChallenge
	if err := attributevalue.UnmarshalMap(out.Item, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// IncrementAttempts atomically adds one to the attempt counter of an
// existing challenge and returns the new count.
func (r *ChallengeRepo) IncrementAttempts(ctx context.Context, contact string, purpose domain.OTPPurpose) (int, error) {
	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 r.key(contact, purpose),
		UpdateExpression:    aws.String("ADD #n :one"),
		ConditionExpression: aws.String("attribute_exists(#c)"),
		ExpressionAttributeNames: map[string]string{
			"#n": attrAttempts,
			"#c": attrContact,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": &types.AttributeValueMemberN{Value: "1"},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if _, ok := conditionFailed(err); ok {
		return 0, fmt.Errorf("otp challenge not found: %w", domain.ErrNotFound)
	}
	if err != nil {
		return 0, err
	}
	n, ok := out.Attributes[attrAttempts].(*types.AttributeValueMemberN)
	if !ok {
		return 0, errors.New("attempts missing from update result")
	}
	return strconv.Atoi(n.Value)
}

func (r *ChallengeRepo) Delete(ctx context.Context, contact string, purpose domain.OTPPurpose) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       r.key(contact, purpose),
	})
	return err
}
