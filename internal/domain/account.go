package domain

import (
	"strings"
	"time"
	"unicode"
)

// Account attribute names used in partial update maps.
const (
	FieldName         = "name"
	FieldPasswordHash = "password_hash"
	FieldIsActive     = "is_active"
	FieldPending      = "pending_verification"
	FieldLastLogin    = "last_login"
	FieldUpdatedAt    = "updated_at"
)

// Account is the stored record of one login identity. Each partition has its
// own table with the same shape; partition-specific attributes are empty
// elsewhere. Empty contacts are omitted so the email/phone GSIs stay sparse.
type Account struct {
	AccountID    string     `json:"id" dynamodbav:"account_id"`
	Name         string     `json:"name" dynamodbav:"name"`
	Email        string     `json:"email,omitempty" dynamodbav:"email,omitempty"`
	Phone        string     `json:"phone,omitempty" dynamodbav:"phone,omitempty"`
	PasswordHash string     `json:"-" dynamodbav:"password_hash"`
	AdminRole    Role       `json:"-" dynamodbav:"role,omitempty"` // admins partition only
	State        string     `json:"state,omitempty" dynamodbav:"state,omitempty"`
	AreaCity     string     `json:"area_city,omitempty" dynamodbav:"area_city,omitempty"`
	SupervisorID string     `json:"supervisor_id,omitempty" dynamodbav:"supervisor_id,omitempty"`
	IsActive     bool       `json:"is_active" dynamodbav:"is_active"`
	CreatedBy    string     `json:"created_by,omitempty" dynamodbav:"created_by,omitempty"`
	LastLogin    *time.Time `json:"last_login,omitempty" dynamodbav:"last_login,omitempty"`
	CreatedAt    time.Time  `json:"created" dynamodbav:"created_at"`
	UpdatedAt    time.Time  `json:"updated" dynamodbav:"updated_at"`

	// PendingVerification is set on accounts created inactive until their
	// SIGNUP code is verified. Only such accounts may activate themselves.
	PendingVerification bool `json:"-" dynamodbav:"pending_verification,omitempty"`
}

// Contact returns the primary login identifier: the email when present,
// otherwise the phone number.
func (a *Account) Contact() string {
	if a.Email != "" {
		return a.Email
	}
	return a.Phone
}

// MatchesContact reports whether contact equals the account's email or phone.
func (a *Account) MatchesContact(contact string) bool {
	return contact != "" && (a.Email == contact || a.Phone == contact)
}

// Phones are stored as national numbers of this length in the home country.
const (
	HomeCountryCode   = "91"
	NationalNumberLen = 10
)

// NormalizeContact canonicalizes a login identifier: emails are trimmed and
// lower-cased, phone numbers are reduced to their digits. A home country
// code ("+91", "0091" or a bare "91") or a trunk "0" in front of a national
// number is dropped, so every spelling of one phone yields the stored form.
// Other digit strings are kept as they are.
func NormalizeContact(contact string) string {
	contact = strings.TrimSpace(contact)
	if IsEmail(contact) {
		return strings.ToLower(contact)
	}
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, contact)
	for _, prefix := range []string{"00" + HomeCountryCode, HomeCountryCode, "0"} {
		if len(digits) == len(prefix)+NationalNumberLen && strings.HasPrefix(digits, prefix) {
			return digits[len(prefix):]
		}
	}
	return digits
}

// IsEmail reports whether contact is an email address rather than a phone
// number.
func IsEmail(contact string) bool { return strings.Contains(contact, "@") }

// Identity is a resolved account tagged with the role its partition implies.
// The set of implementations is closed: AdminIdentity, SupervisorIdentity and
// GuardIdentity.
type Identity interface {
	Role() Role
	Partition() Partition
	Record() *Account
	isIdentity()
}

// AdminIdentity is an account from the admins partition (ADMIN or SUPER_ADMIN).
type AdminIdentity struct{ Account *Account }

// SupervisorIdentity is an account from the supervisors partition.
type SupervisorIdentity struct{ Account *Account }

// GuardIdentity is an account from the guards partition.
type GuardIdentity struct{ Account *Account }

func (i AdminIdentity) Role() Role {
	if i.Account.AdminRole == RoleSuperAdmin {
		return RoleSuperAdmin
	}
	return RoleAdmin
}
func (i AdminIdentity) Partition() Partition { return PartitionAdmins }
func (i AdminIdentity) Record() *Account     { return i.Account }
func (AdminIdentity) isIdentity()            {}

func (i SupervisorIdentity) Role() Role           { return RoleSupervisor }
func (i SupervisorIdentity) Partition() Partition { return PartitionSupervisors }
func (i SupervisorIdentity) Record() *Account     { return i.Account }
func (SupervisorIdentity) isIdentity()            {}

func (i GuardIdentity) Role() Role           { return RoleGuard }
func (i GuardIdentity) Partition() Partition { return PartitionGuards }
func (i GuardIdentity) Record() *Account     { return i.Account }
func (GuardIdentity) isIdentity()            {}

// NewIdentity tags an account with the identity type of partition p.
func NewIdentity(p Partition, a *Account) (Identity, bool) {
	switch p {
	case PartitionAdmins:
		return AdminIdentity{Account: a}, true
	case PartitionSupervisors:
		return SupervisorIdentity{Account: a}, true
	case PartitionGuards:
		return GuardIdentity{Account: a}, true
	}
	return nil, false
}

// IdentitySummary is the externally visible view of an identity.
type IdentitySummary struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email,omitempty"`
	Phone     string     `json:"phone,omitempty"`
	Role      Role       `json:"role"`
	State     string     `json:"state,omitempty"`
	AreaCity  string     `json:"area_city,omitempty"`
	IsActive  bool       `json:"is_active"`
	LastLogin *time.Time `json:"last_login,omitempty"`
}

// Summarize builds the external view of id.
func Summarize(id Identity) IdentitySummary {
	a := id.Record()
	return IdentitySummary{
		ID:        a.AccountID,
		Name:      a.Name,
		Email:     a.Email,
		Phone:     a.Phone,
		Role:      id.Role(),
		State:     a.State,
		AreaCity:  a.AreaCity,
		IsActive:  a.IsActive,
		LastLogin: a.LastLogin,
	}
}

// ProvisionRequest creates an account in the partition of Role.
type ProvisionRequest struct {
	Role         string `json:"role" validate:"required,oneof=ADMIN SUPERVISOR GUARD"`
	Name         string `json:"name" validate:"required,min=2,max=100"`
	Email        string `json:"email" validate:"omitempty,email"`
	Phone        string `json:"phone" validate:"omitempty,min=10,max=20"`
	Password     string `json:"password" validate:"required,min=8"`
	State        string `json:"state"`
	AreaCity     string `json:"area_city"`
	SupervisorID string `json:"supervisor_id"`
	// RequireVerification creates the account inactive and sends a SIGNUP
	// code to its contact; the account activates once the code is verified.
	RequireVerification bool `json:"require_verification"`
}
