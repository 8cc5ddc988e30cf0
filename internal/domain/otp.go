package domain

import (
	"strings"
	"time"
)

// OTPPurpose scopes a one-time code to the action it authorizes.
type OTPPurpose string

const (
	OTPPurposeSignup         OTPPurpose = "SIGNUP"
	OTPPurposeReset          OTPPurpose = "RESET"
	OTPPurposePasswordChange OTPPurpose = "PASSWORD_CHANGE"
)

// ParseOTPPurpose accepts a purpose name in any case.
func ParseOTPPurpose(s string) (OTPPurpose, bool) {
	p := OTPPurpose(strings.ToUpper(strings.TrimSpace(s)))
	switch p {
	case OTPPurposeSignup, OTPPurposeReset, OTPPurposePasswordChange:
		return p, true
	}
	return "", false
}

// OTPChallenge is a pending one-time code.
// PK: contact, SK: purpose. ExpiresAt is a Unix timestamp used as DynamoDB TTL.
// Only the SHA-256 of the code is stored.
type OTPChallenge struct {
	Contact   string     `json:"contact" dynamodbav:"contact"`
	Purpose   OTPPurpose `json:"purpose" dynamodbav:"purpose"`
	CodeHash  string     `json:"-" dynamodbav:"code_hash"`
	ExpiresAt int64      `json:"expires_at" dynamodbav:"expires_at"`
	Attempts  int        `json:"attempts" dynamodbav:"attempts"`
	CreatedAt time.Time  `json:"created" dynamodbav:"created_at"`
}

// Expired reports whether the challenge is past its lifetime at now.
func (c *OTPChallenge) Expired(now time.Time) bool {
	return now.Unix() > c.ExpiresAt
}
