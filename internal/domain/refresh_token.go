package domain

import "time"

// RefreshToken is the persisted form of an issued refresh token.
// PK: token_hash. ExpiresAt is a Unix timestamp used as DynamoDB TTL.
type RefreshToken struct {
	TokenHash string     `json:"-" dynamodbav:"token_hash"`
	TokenID   string     `json:"id" dynamodbav:"token_id"`
	AccountID string     `json:"account_id" dynamodbav:"account_id"`
	Role      Role       `json:"role" dynamodbav:"role"`
	ExpiresAt int64      `json:"expires_at" dynamodbav:"expires_at"`
	Revoked   bool       `json:"revoked" dynamodbav:"revoked"`
	CreatedAt time.Time  `json:"created" dynamodbav:"created_at"`
	RotatedAt *time.Time `json:"rotated_at,omitempty" dynamodbav:"rotated_at,omitempty"`
}
