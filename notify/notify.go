// Package notify provides the outbound notification sink: an SMTP sender
// for real deployments and a log-only fallback. Senders here are plain
// collaborators; the engine already runs them fire-and-forget, so an
// implementation may block or fail without affecting any state change.
package notify

import (
	"fmt"
	"strings"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	log "github.com/sirupsen/logrus"
)

// Notifier matches absence.Notifier.
type Notifier interface {
	Notify(to, subject, body string) error
}

// =============================================================================
// SMTP SENDER
// =============================================================================

// SMTPConfig carries the mail relay settings, usually read from the
// environment.
type SMTPConfig struct {
	Host       string
	Port       string
	User       string
	Password   string
	From       string
	TLSEnabled bool
}

// Configured reports whether enough settings are present to send mail.
func (c SMTPConfig) Configured() bool {
	return c.Host != "" && c.Port != "" && c.From != ""
}

// SMTP sends plain-text mail through a relay using PLAIN auth.
type SMTP struct {
	cfg SMTPConfig
}

func NewSMTP(cfg SMTPConfig) *SMTP {
	return &SMTP{cfg: cfg}
}

// Notify sends one message. When the relay is not configured the message is
// skipped with a warning rather than failing, so a bare dev environment
// behaves like production minus the mail.
func (s *SMTP) Notify(to, subject, body string) error {
	if !s.cfg.Configured() {
		log.WithField("recipient", to).Warn("smtp not configured, skipping notification")
		return nil
	}

	auth := sasl.NewPlainClient("", s.cfg.User, s.cfg.Password)
	addr := s.cfg.Host + ":" + s.cfg.Port
	msg := strings.NewReader(fmt.Sprintf(
		"To: %s\r\nFrom: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=\"UTF-8\"\r\n\r\n%s\r\n",
		to, s.cfg.From, subject, body))

	var err error
	if s.cfg.TLSEnabled {
		err = smtp.SendMailTLS(addr, auth, s.cfg.From, []string{to}, msg)
	} else {
		err = smtp.SendMail(addr, auth, s.cfg.From, []string{to}, msg)
	}
	if err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}

	log.WithField("recipient", to).Info("notification sent")
	return nil
}

// =============================================================================
// LOG SENDER
// =============================================================================

// Log writes notifications to the application log instead of sending them.
type Log struct{}

func NewLog() *Log { return &Log{} }

func (l *Log) Notify(to, subject, body string) error {
	log.WithFields(log.Fields{
		"recipient": to,
		"subject":   subject,
	}).Info("notification (log sink)")
	return nil
}
