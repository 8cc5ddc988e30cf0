package dynamo

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/patrol-auth/internal/domain"
)

// AccountRepo provides typed DynamoDB operations for one account partition.
// Each partition (admins, supervisors, guards) is its own table with the
// same key schema and contact GSIs.
type AccountRepo struct {
	client    API
	tableName string
	partition domain.Partition
}

func NewAccountRepo(client API, tableName string, partition domain.Partition) *AccountRepo {
	return &AccountRepo{client: client, tableName: tableName, partition: partition}
}

func (r *AccountRepo) Partition() domain.Partition { return r.partition }

// Put creates a new account. It fails with domain.ErrConflict when an
// account with the same ID already exists.
func (r *AccountRepo) Put(ctx context.Context, a *domain.Account) error {
	item, err := attributevalue.MarshalMap(a)
	if err != nil {
		return fmt.Errorf("marshal account: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(#id)"),
		ExpressionAttributeNames: map[string]string{
			"#id": attrAccountID,
		},
	})
	if _, ok := conditionFailed(err); ok {
		return fmt.Errorf("account %s exists: %w", a.AccountID, domain.ErrConflict)
	}
	return err
}

func (r *AccountRepo) FindByID(ctx context.Context, accountID string) (*domain.Account, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(attrAccountID, accountID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("account not found: %w", domain.ErrNotFound)
	}
	var a domain.Account
	if err := attributevalue.UnmarshalMap(out.Item, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// FindByContact looks the contact up on the email or phone GSI, depending
// on its shape.
func (r *AccountRepo) FindByContact(ctx context.Context, contact string) (*domain.Account, error) {
	if domain.IsEmail(contact) {
		return r.queryGSI(ctx, indexEmail, attrEmail, contact)
	}
	return r.queryGSI(ctx, indexPhone, attrPhone, contact)
}

// Update applies a partial update. It fails with domain.ErrNotFound when
// the account does not exist instead of creating a stub item.
func (r *AccountRepo) Update(ctx context.Context, accountID string, updates map[string]interface{}) error {
	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return err
	}
	ue.Names["#id"] = attrAccountID
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey(attrAccountID, accountID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("attribute_exists(#id)"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	if _, ok := conditionFailed(err); ok {
		return fmt.Errorf("account not found: %w", domain.ErrNotFound)
	}
	return err
}

func (r *AccountRepo) queryGSI(ctx context.Context, index, attr, value string) (*domain.Account, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(index),
		KeyConditionExpression:    aws.String("#a = :v"),
		ExpressionAttributeNames:  map[string]string{"#a": attr},
		ExpressionAttributeValues: map[string]types.AttributeValue{":v": &types.AttributeValueMemberS{Value: value}},
		Limit:                     aws.Int32(2),
	})
	if err != nil {
		return nil, err
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("account not found: %w", domain.ErrNotFound)
	}
	if len(out.Items) > 1 {
		slog.Warn("duplicate contact within partition", "partition", r.partition, "index", index)
	}
	var a domain.Account
	if err := attributevalue.UnmarshalMap(out.Items[0], &a); err != nil {
		return nil, err
	}
	return &a, nil
}
