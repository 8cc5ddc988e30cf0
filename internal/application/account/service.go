package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/patrol-auth/internal/application/authz"
	"github.com/patrol-auth/internal/application/otp"
	"github.com/patrol-auth/internal/domain"
	"github.com/patrol-auth/internal/pkg/id"
)

const phoneDigits = 10

type Service interface {
	Provision(ctx context.Context, actor domain.Identity, req domain.ProvisionRequest) (domain.Identity, error)
	SetActive(ctx context.Context, actor domain.Identity, role domain.Role, accountID string, active bool) (domain.Identity, error)
	// EnsureSuperAdmin creates the bootstrap super admin unless an admin
	// with that email already exists. Empty credentials make it a no-op.
	EnsureSuperAdmin(ctx context.Context, email, password, name string) error
}

type accountDirectory interface {
	FindInPartition(ctx context.Context, p domain.Partition, contact string) (*domain.Account, error)
	FindByID(ctx context.Context, role domain.Role, accountID string) (domain.Identity, error)
	Create(ctx context.Context, p domain.Partition, a *domain.Account) error
	Update(ctx context.Context, id domain.Identity, updates map[string]interface{}) error
}

type passwordHasher interface {
	Hash(ctx context.Context, password string) (string, error)
}

type otpIssuer interface {
	Issue(ctx context.Context, contact string, purpose domain.OTPPurpose) (*otp.Issued, error)
}

type notifier interface {
	SendOTP(contact, code string, purpose domain.OTPPurpose)
}

type tokenRevoker interface {
	RevokeAllForAccount(ctx context.Context, accountID string) error
}

type ServiceDeps struct {
	Accounts    accountDirectory
	Hasher      passwordHasher
	OTP         otpIssuer
	Notifier    notifier
	RefreshRepo tokenRevoker
	Now         func() time.Time
}

type service struct {
	accounts    accountDirectory
	hasher      passwordHasher
	otp         otpIssuer
	notifier    notifier
	refreshRepo tokenRevoker
	now         func() time.Time
}

func NewService(d ServiceDeps) Service {
	if d.Now == nil {
		d.Now = time.Now
	}
	return &service{
		accounts:    d.Accounts,
		hasher:      d.Hasher,
		otp:         d.OTP,
		notifier:    d.Notifier,
		refreshRepo: d.RefreshRepo,
		now:         d.Now,
	}
}

func (s *service) Provision(ctx context.Context, actor domain.Identity, req domain.ProvisionRequest) (domain.Identity, error) {
	role, ok := domain.ParseRole(req.Role)
	if !ok || role == domain.RoleSuperAdmin {
		return nil, fmt.Errorf("cannot provision role %q: %w", req.Role, domain.ErrBadRequest)
	}
	if err := authz.CheckManage(actor, role); err != nil {
		return nil, err
	}
	part, _ := domain.PartitionOf(role)

	email := domain.NormalizeContact(req.Email)
	phone := domain.NormalizeContact(req.Phone)
	if email == "" && phone == "" {
		return nil, fmt.Errorf("email or phone is required: %w", domain.ErrBadRequest)
	}
	if email != "" && !domain.IsEmail(email) {
		return nil, fmt.Errorf("invalid email: %w", domain.ErrBadRequest)
	}
	if phone != "" && len(phone) != phoneDigits {
		return nil, fmt.Errorf("phone must have %d digits: %w", phoneDigits, domain.ErrBadRequest)
	}

	a := &domain.Account{
		Name:      strings.TrimSpace(req.Name),
		Email:     email,
		Phone:     phone,
		CreatedBy: actor.Record().AccountID,
	}
	switch role {
	case domain.RoleAdmin:
		if req.State == "" {
			return nil, fmt.Errorf("state is required for an admin: %w", domain.ErrBadRequest)
		}
		a.AdminRole = domain.RoleAdmin
		a.State = strings.TrimSpace(req.State)
	case domain.RoleSupervisor:
		if req.AreaCity == "" {
			return nil, fmt.Errorf("area_city is required for a supervisor: %w", domain.ErrBadRequest)
		}
		a.AreaCity = strings.TrimSpace(req.AreaCity)
		a.State = actor.Record().State
	case domain.RoleGuard:
		a.SupervisorID = req.SupervisorID
		if actor.Role() == domain.RoleSupervisor {
			a.SupervisorID = actor.Record().AccountID
			a.AreaCity = actor.Record().AreaCity
		}
	}

	for _, c := range []string{email, phone} {
		if c == "" {
			continue
		}
		existing, err := s.accounts.FindInPartition(ctx, part, c)
		if err == nil && existing != nil {
			return nil, fmt.Errorf("contact already registered as %s: %w", role, domain.ErrConflict)
		}
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}

	hash, err := s.hasher.Hash(ctx, req.Password)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	a.AccountID = id.New()
	a.PasswordHash = hash
	a.IsActive = !req.RequireVerification
	a.PendingVerification = req.RequireVerification
	a.CreatedAt = now
	a.UpdatedAt = now
	if err := s.accounts.Create(ctx, part, a); err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}
	slog.Info("account provisioned", "account_id", a.AccountID, "role", role, "created_by", a.CreatedBy)

	if req.RequireVerification {
		issued, err := s.otp.Issue(ctx, a.Contact(), domain.OTPPurposeSignup)
		if err != nil {
			slog.Warn("failed to issue signup code", "account_id", a.AccountID, "err", err)
		} else {
			s.notifier.SendOTP(a.Contact(), issued.Code, domain.OTPPurposeSignup)
		}
	}
	ident, _ := domain.NewIdentity(part, a)
	return ident, nil
}

func (s *service) SetActive(ctx context.Context, actor domain.Identity, role domain.Role, accountID string, active bool) (domain.Identity, error) {
	if err := authz.CheckManage(actor, role); err != nil {
		return nil, err
	}
	target, err := s.accounts.FindByID(ctx, role, accountID)
	if err != nil {
		return nil, err
	}
	// FindByID reports the live role; a super admin behind an ADMIN path is
	// out of reach for the caller.
	if target.Role() != role {
		return nil, domain.ErrNotFound
	}
	if actor.Role() == domain.RoleSupervisor && target.Record().SupervisorID != actor.Record().AccountID {
		return nil, fmt.Errorf("guard belongs to another supervisor: %w", domain.ErrForbidden)
	}

	// A manager's decision replaces any pending self-service activation.
	now := s.now().UTC()
	if err := s.accounts.Update(ctx, target, map[string]interface{}{
		domain.FieldIsActive:  active,
		domain.FieldPending:   false,
		domain.FieldUpdatedAt: now,
	}); err != nil {
		return nil, fmt.Errorf("update account status: %w", err)
	}
	target.Record().IsActive = active
	target.Record().PendingVerification = false
	target.Record().UpdatedAt = now

	if !active {
		if err := s.refreshRepo.RevokeAllForAccount(ctx, accountID); err != nil {
			slog.Error("failed to revoke refresh tokens on deactivation", "account_id", accountID, "err", err)
		}
	}
	slog.Info("account status changed", "account_id", accountID, "role", role, "active", active,
		"actor_id", actor.Record().AccountID)
	return target, nil
}

func (s *service) EnsureSuperAdmin(ctx context.Context, email, password, name string) error {
	email = domain.NormalizeContact(email)
	if email == "" || password == "" {
		slog.Info("no default super admin configured")
		return nil
	}
	existing, err := s.accounts.FindInPartition(ctx, domain.PartitionAdmins, email)
	if err == nil && existing != nil {
		return nil
	}
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("look up default super admin: %w", err)
	}

	hash, err := s.hasher.Hash(ctx, password)
	if err != nil {
		return err
	}
	now := s.now().UTC()
	a := &domain.Account{
		AccountID:    id.New(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		AdminRole:    domain.RoleSuperAdmin,
		IsActive:     true,
		CreatedBy:    "system",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.accounts.Create(ctx, domain.PartitionAdmins, a); err != nil {
		return fmt.Errorf("create default super admin: %w", err)
	}
	slog.Info("default super admin created", "account_id", a.AccountID, "email", email)
	return nil
}
