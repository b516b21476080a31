package service

import (
	"fmt"

	mail "github.com/go-mail/mail"
	"go.uber.org/zap"

	"github.com/iliyamo/todo-api/internal/config"
)

// EmailSender delivers the three transactional emails the identity core
// produces. Delivery is best-effort from the caller's perspective;
// implementations log failures instead of returning them.
type EmailSender interface {
	SendVerification(to, name, token string)
	SendPasswordReset(to, name, token string)
	SendPasswordChanged(to, name string)
}

// SMTPSender sends mail over SMTP.
type SMTPSender struct {
	Host        string
	Port        int
	From        string
	User        string
	Pass        string
	FrontendURL string
	Log         *zap.SugaredLogger
}

// NewEmailSender returns an SMTP sender when SMTP_HOST is configured, or
// a logging no-op otherwise so development setups work without a relay.
func NewEmailSender(cfg config.Config, log *zap.SugaredLogger) EmailSender {
	if cfg.SMTPHost == "" {
		return &NopEmailSender{Log: log}
	}
	return &SMTPSender{
		Host:        cfg.SMTPHost,
		Port:        cfg.SMTPPort,
		From:        cfg.SMTPFrom,
		User:        cfg.SMTPUser,
		Pass:        cfg.SMTPPass,
		FrontendURL: cfg.FrontendURL,
		Log:         log,
	}
}

func (s *SMTPSender) SendVerification(to, name, token string) {
	link := fmt.Sprintf("%s/verify-email?token=%s", s.FrontendURL, token)
	body := fmt.Sprintf("Hi %s,\n\nPlease verify your email address:\n%s\n\nThe link expires in 24 hours.", name, link)
	s.send(to, "Verify your email address", body)
}

func (s *SMTPSender) SendPasswordReset(to, name, token string) {
	link := fmt.Sprintf("%s/reset-password?token=%s", s.FrontendURL, token)
	body := fmt.Sprintf("Hi %s,\n\nA password reset was requested for your account:\n%s\n\nThe link expires in 1 hour. If you did not request this, ignore this email.", name, link)
	s.send(to, "Reset your password", body)
}

func (s *SMTPSender) SendPasswordChanged(to, name string) {
	body := fmt.Sprintf("Hi %s,\n\nYour password was changed and all sessions were signed out. If this was not you, reset your password immediately.", name)
	s.send(to, "Your password was changed", body)
}

func (s *SMTPSender) send(to, subject, textBody string) {
	m := mail.NewMessage()
	m.SetHeader("From", s.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", textBody)

	d := mail.NewDialer(s.Host, s.Port, s.User, s.Pass)
	if err := d.DialAndSend(m); err != nil {
		s.Log.Warnw("email send failed", "to", to, "subject", subject, "err", err)
	}
}

// NopEmailSender logs instead of sending. Tokens are not logged.
type NopEmailSender struct{ Log *zap.SugaredLogger }

func (n *NopEmailSender) SendVerification(to, _, _ string) {
	n.Log.Infow("email disabled, skipping verification mail", "to", to)
}
func (n *NopEmailSender) SendPasswordReset(to, _, _ string) {
	n.Log.Infow("email disabled, skipping reset mail", "to", to)
}
func (n *NopEmailSender) SendPasswordChanged(to, _ string) {
	n.Log.Infow("email disabled, skipping password-changed mail", "to", to)
}
