package dynamo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/patrol-auth/internal/domain"
)

// RefreshTokenRepo stores issued refresh tokens.
// PK: token_hash. GSI account_id-index lists the tokens of one account.
type RefreshTokenRepo struct {
	client    API
	tableName string
}

func NewRefreshTokenRepo(client API, tableName string) *RefreshTokenRepo {
	return &RefreshTokenRepo{client: client, tableName: tableName}
}

func (r *RefreshTokenRepo) Put(ctx context.Context, t *domain.RefreshToken) error {
	item, err := attributevalue.MarshalMap(t)
	if err != nil {
		return fmt.Errorf("marshal refresh token: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *RefreshTokenRepo) Get(ctx context.Context, tokenHash string) (*domain.RefreshToken, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(attrTokenHash, tokenHash),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("refresh token not found: %w", domain.ErrNotFound)
	}
	var t domain.RefreshToken
	if err := attributevalue.UnmarshalMap(out.Item, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// Revoke flips revoked from false to true. Of two concurrent rotations of
// the same token exactly one succeeds; the other gets domain.ErrConflict.
func (r *RefreshTokenRepo) Revoke(ctx context.Context, tokenHash string, at time.Time) error {
	atAV, err := attributevalue.Marshal(at)
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 strKey(attrTokenHash, tokenHash),
		UpdateExpression:    aws.String("SET #r = :t, #at = :at"),
		ConditionExpression: aws.String("attribute_exists(#h) AND #r = :f"),
		ExpressionAttributeNames: map[string]string{
			"#r":  attrRevoked,
			"#at": attrRotatedAt,
			"#h":  attrTokenHash,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":t":  &types.AttributeValueMemberBOOL{Value: true},
			":f":  &types.AttributeValueMemberBOOL{Value: false},
			":at": atAV,
		},
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if ccf, ok := conditionFailed(err); ok {
		if len(ccf.Item) == 0 {
			return fmt.Errorf("refresh token not found: %w", domain.ErrNotFound)
		}
		return fmt.Errorf("refresh token already revoked: %w", domain.ErrConflict)
	}
	return err
}

// RevokeAllForAccount revokes every live refresh token of accountID. It keeps
// going past individual failures and returns the first one.
func (r *RefreshTokenRepo) RevokeAllForAccount(ctx context.Context, accountID string) error {
	p := dynamodb.NewQueryPaginator(r.client, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(indexAccountID),
		KeyConditionExpression: aws.String("#a = :a"),
		FilterExpression:       aws.String("#r = :f"),
		ExpressionAttributeNames: map[string]string{
			"#a": attrAccountID,
			"#r": attrRevoked,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":a": &types.AttributeValueMemberS{Value: accountID},
			":f": &types.AttributeValueMemberBOOL{Value: false},
		},
	})
	now := time.Now().UTC()
	var firstErr error
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return err
		}
		for _, item := range page.Items {
			h, ok := item[attrTokenHash].(*types.AttributeValueMemberS)
			if !ok {
				continue
			}
			if err := r.Revoke(ctx, h.Value, now); err != nil {
				if errors.Is(err, domain.ErrConflict) || errors.Is(err, domain.ErrNotFound) {
					continue
				}
				slog.Warn("failed to revoke refresh token", "account_id", accountID, "err", err)
				if firstErr == nil {
					firstErr = err
				}
			}
		}
	}
	return firstErr
}
