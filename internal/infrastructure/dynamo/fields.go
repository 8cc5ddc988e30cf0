package dynamo

// DynamoDB attribute and index names used in key and update expressions.
// Using constants prevents silent runtime bugs caused by key typos.
const (
	attrAccountID = "account_id"
	attrEmail     = "email"
	attrPhone     = "phone"

	attrContact  = "contact"
	attrPurpose  = "purpose"
	attrAttempts = "attempts"

	attrTokenHash = "token_hash"
	attrRevoked   = "revoked"
	attrRotatedAt = "rotated_at"

	attrExpiresAt = "expires_at"

	indexEmail     = "email-index"
	indexPhone     = "phone-index"
	indexAccountID = "account_id-index"
)
