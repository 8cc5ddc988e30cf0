package smtp

import (
	"crypto/tls"
	"fmt"
	"time"

	mail "github.com/go-mail/mail"
	"github.com/patrol-auth/internal/config"
)

// Mailer sends emails.
type Mailer interface {
	SendEmail(to, subject, textBody, htmlBody string) error
}

type mailer struct {
	host     string
	port     int
	from     string
	username string
	password string
	timeout  time.Duration
}

func NewMailer(cfg *config.Config) Mailer {
	return &mailer{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		from:     cfg.SMTPFrom,
		username: cfg.SMTPUsername,
		password: cfg.SMTPPassword,
		timeout:  10 * time.Second,
	}
}

func (m *mailer) SendEmail(to, subject, textBody, htmlBody string) error {
	msg := mail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", textBody)
	if htmlBody != "" {
		msg.AddAlternative("text/html", htmlBody)
	}

	d := mail.NewDialer(m.host, m.port, m.username, m.password)
	d.TLSConfig = &tls.Config{ServerName: m.host}
	d.Timeout = m.timeout
	if m.port == 465 {
		d.SSL = true
	}
	if err := d.DialAndSend(msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}
