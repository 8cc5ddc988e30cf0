package password

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/patrol-auth/internal/application/authz"
	"github.com/patrol-auth/internal/application/otp"
	"github.com/patrol-auth/internal/domain"
)

type OTPRequest struct {
	Contact string `json:"contact" validate:"required,contact"`
	Purpose string `json:"purpose" validate:"required"`
}

type ResetRequest struct {
	Contact     string `json:"contact" validate:"required,contact"`
	Code        string `json:"code" validate:"required,len=6,numeric"`
	NewPassword string `json:"new_password" validate:"required,min=8,max=128"`
}

type SignupVerifyRequest struct {
	Contact string `json:"contact" validate:"required,contact"`
	Code    string `json:"code" validate:"required,len=6,numeric"`
}

type ChangeRequest struct {
	Code        string `json:"code" validate:"required,len=6,numeric"`
	NewPassword string `json:"new_password" validate:"required,min=8,max=128"`
}

type SetPasswordRequest struct {
	Contact     string `json:"contact" validate:"required,contact"`
	NewPassword string `json:"new_password" validate:"required,min=8,max=128"`
}

type Service interface {
	// RequestOTP issues a SIGNUP or RESET code. The challenge is created
	// whether or not contact belongs to an account; delivery happens only
	// when it does.
	RequestOTP(ctx context.Context, req OTPRequest) error
	ResetWithOTP(ctx context.Context, req ResetRequest) error
	VerifySignup(ctx context.Context, req SignupVerifyRequest) (domain.Identity, error)
	RequestChangeOTP(ctx context.Context, id domain.Identity) error
	ChangeWithOTP(ctx context.Context, id domain.Identity, req ChangeRequest) error
	// SetPassword lets a super admin replace the password of any account.
	SetPassword(ctx context.Context, actor domain.Identity, req SetPasswordRequest) error
}

type identityResolver interface {
	FindByContact(ctx context.Context, contact string) (domain.Identity, error)
	Update(ctx context.Context, id domain.Identity, updates map[string]interface{}) error
}

type passwordHasher interface {
	Hash(ctx context.Context, password string) (string, error)
}

type otpManager interface {
	Issue(ctx context.Context, contact string, purpose domain.OTPPurpose) (*otp.Issued, error)
	Verify(ctx context.Context, contact string, purpose domain.OTPPurpose, code string) error
}

type notifier interface {
	SendOTP(contact, code string, purpose domain.OTPPurpose)
}

type tokenRevoker interface {
	RevokeAllForAccount(ctx context.Context, accountID string) error
}

type ServiceDeps struct {
	Resolver    identityResolver
	Hasher      passwordHasher
	OTP         otpManager
	Notifier    notifier
	RefreshRepo tokenRevoker
	Now         func() time.Time
}

type service struct {
	resolver    identityResolver
	hasher      passwordHasher
	otp         otpManager
	notifier    notifier
	refreshRepo tokenRevoker
	now         func() time.Time
}

func NewService(d ServiceDeps) Service {
	if d.Now == nil {
		d.Now = time.Now
	}
	return &service{
		resolver:    d.Resolver,
		hasher:      d.Hasher,
		otp:         d.OTP,
		notifier:    d.Notifier,
		refreshRepo: d.RefreshRepo,
		now:         d.Now,
	}
}

var superAdminOnly = authz.Require(domain.RoleSuperAdmin)

func (s *service) RequestOTP(ctx context.Context, req OTPRequest) error {
	contact := domain.NormalizeContact(req.Contact)
	if contact == "" {
		return fmt.Errorf("contact is required: %w", domain.ErrBadRequest)
	}
	purpose, ok := domain.ParseOTPPurpose(req.Purpose)
	if !ok || purpose == domain.OTPPurposePasswordChange {
		return fmt.Errorf("unsupported otp purpose %q: %w", req.Purpose, domain.ErrBadRequest)
	}

	issued, err := s.otp.Issue(ctx, contact, purpose)
	if err != nil {
		return err
	}
	id, err := s.resolver.FindByContact(ctx, contact)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}
	if purpose == domain.OTPPurposeSignup && !id.Record().PendingVerification {
		return nil
	}
	s.notifier.SendOTP(contact, issued.Code, purpose)
	return nil
}

func (s *service) ResetWithOTP(ctx context.Context, req ResetRequest) error {
	contact := domain.NormalizeContact(req.Contact)
	if err := s.verify(ctx, contact, domain.OTPPurposeReset, req.Code); err != nil {
		return err
	}
	id, err := s.resolve(ctx, contact)
	if err != nil {
		return err
	}
	return s.replacePassword(ctx, id, req.NewPassword)
}

func (s *service) VerifySignup(ctx context.Context, req SignupVerifyRequest) (domain.Identity, error) {
	contact := domain.NormalizeContact(req.Contact)
	if err := s.verify(ctx, contact, domain.OTPPurposeSignup, req.Code); err != nil {
		return nil, err
	}
	id, err := s.resolve(ctx, contact)
	if err != nil {
		return nil, err
	}
	// Accounts a manager deactivated are not pending and stay inactive.
	if !id.Record().PendingVerification {
		return nil, fmt.Errorf("account is not awaiting verification: %w", domain.ErrOTPInvalid)
	}
	now := s.now().UTC()
	if err := s.resolver.Update(ctx, id, map[string]interface{}{
		domain.FieldIsActive:  true,
		domain.FieldPending:   false,
		domain.FieldUpdatedAt: now,
	}); err != nil {
		return nil, fmt.Errorf("activate account: %w", err)
	}
	id.Record().IsActive = true
	id.Record().PendingVerification = false
	id.Record().UpdatedAt = now
	return id, nil
}

func (s *service) RequestChangeOTP(ctx context.Context, id domain.Identity) error {
	contact := id.Record().Contact()
	if contact == "" {
		return fmt.Errorf("account has no contact: %w", domain.ErrBadRequest)
	}
	issued, err := s.otp.Issue(ctx, contact, domain.OTPPurposePasswordChange)
	if err != nil {
		return err
	}
	s.notifier.SendOTP(contact, issued.Code, domain.OTPPurposePasswordChange)
	return nil
}

func (s *service) ChangeWithOTP(ctx context.Context, id domain.Identity, req ChangeRequest) error {
	if err := s.verify(ctx, id.Record().Contact(), domain.OTPPurposePasswordChange, req.Code); err != nil {
		return err
	}
	return s.replacePassword(ctx, id, req.NewPassword)
}

func (s *service) SetPassword(ctx context.Context, actor domain.Identity, req SetPasswordRequest) error {
	if err := superAdminOnly.Check(actor); err != nil {
		return err
	}
	id, err := s.resolver.FindByContact(ctx, domain.NormalizeContact(req.Contact))
	if err != nil {
		return err
	}
	slog.Info("password set by super admin", "actor_id", actor.Record().AccountID,
		"target_id", id.Record().AccountID, "target_role", id.Role())
	return s.replacePassword(ctx, id, req.NewPassword)
}

// verify maps a missing challenge to ErrOTPInvalid so callers cannot tell
// "never requested" from "wrong contact".
func (s *service) verify(ctx context.Context, contact string, purpose domain.OTPPurpose, code string) error {
	err := s.otp.Verify(ctx, contact, purpose, code)
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("no pending code: %w", domain.ErrOTPInvalid)
	}
	return err
}

func (s *service) resolve(ctx context.Context, contact string) (domain.Identity, error) {
	id, err := s.resolver.FindByContact(ctx, contact)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("no account for code: %w", domain.ErrOTPInvalid)
	}
	return id, err
}

func (s *service) replacePassword(ctx context.Context, id domain.Identity, newPassword string) error {
	hash, err := s.hasher.Hash(ctx, newPassword)
	if err != nil {
		return err
	}
	now := s.now().UTC()
	if err := s.resolver.Update(ctx, id, map[string]interface{}{
		domain.FieldPasswordHash: hash,
		domain.FieldUpdatedAt:    now,
	}); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	accountID := id.Record().AccountID
	if err := s.refreshRepo.RevokeAllForAccount(ctx, accountID); err != nil {
		slog.Error("failed to revoke refresh tokens after password change", "account_id", accountID, "err", err)
	}
	return nil
}
