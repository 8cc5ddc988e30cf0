package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/patrol-auth/internal/domain"
)

type mailer interface {
	SendEmail(to, subject, textBody, htmlBody string) error
}

type smsSender interface {
	SendSMS(ctx context.Context, to, message string) error
}

// Dispatcher delivers OTP codes in the background. Email contacts go through
// the mailer, everything else through SMS. Delivery failures are logged and
// never reach the caller.
type Dispatcher struct {
	mailer  mailer
	sms     smsSender
	timeout time.Duration
	ttl     time.Duration
	wg      sync.WaitGroup
}

// NewDispatcher builds a Dispatcher. ttl is the code lifetime quoted in
// messages. Either sender may be nil, in which case that channel is skipped.
func NewDispatcher(m mailer, sms smsSender, timeout, ttl time.Duration) *Dispatcher {
	return &Dispatcher{mailer: m, sms: sms, timeout: timeout, ttl: ttl}
}

// SendOTP schedules delivery of code to contact and returns immediately.
func (d *Dispatcher) SendOTP(contact, code string, purpose domain.OTPPurpose) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		if err := d.deliver(ctx, contact, code, purpose); err != nil {
			slog.Error("otp delivery failed", "purpose", purpose, "email", domain.IsEmail(contact), "err", err)
			return
		}
		slog.Info("otp delivered", "purpose", purpose, "email", domain.IsEmail(contact))
	}()
}

// Wait blocks until every scheduled delivery has finished or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) deliver(ctx context.Context, contact, code string, purpose domain.OTPPurpose) error {
	subject, text := Message(purpose, code, d.ttl)
	if domain.IsEmail(contact) {
		if d.mailer == nil {
			return fmt.Errorf("no mailer configured")
		}
		// go-mail has no context support; its dialer timeout bounds the call.
		errc := make(chan error, 1)
		go func() { errc <- d.mailer.SendEmail(contact, subject, text, "") }()
		select {
		case err := <-errc:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if d.sms == nil {
		return fmt.Errorf("no sms sender configured")
	}
	return d.sms.SendSMS(ctx, contact, text)
}

// Message renders the subject and body for an OTP of purpose.
func Message(purpose domain.OTPPurpose, code string, ttl time.Duration) (subject, body string) {
	minutes := int(ttl.Minutes())
	switch purpose {
	case domain.OTPPurposeSignup:
		subject = "Verify your account"
	case domain.OTPPurposeReset:
		subject = "Password reset code"
	default:
		subject = "Password change code"
	}
	body = fmt.Sprintf("Your verification code is %s. It expires in %d minutes. Do not share it with anyone.", code, minutes)
	return subject, body
}
