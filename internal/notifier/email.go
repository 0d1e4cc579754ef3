package notifier

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"SignalSentinel/internal/model"
)

// EmailConfig is the SMTP transport setup.
type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       string
}

// EmailNotifier mails each batch as a plain-text message.
type EmailNotifier struct {
	cfg     EmailConfig
	subject string
	timeout time.Duration
	// send is smtp.SendMail; swapped in tests.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewEmailNotifier creates a notifier for the given SMTP server.
func NewEmailNotifier(cfg EmailConfig) *EmailNotifier {
	return &EmailNotifier{
		cfg:     cfg,
		subject: "Stock Tracking Alerts",
		timeout: 30 * time.Second,
		send:    smtp.SendMail,
	}
}

// Dispatch mails the batch. smtp.SendMail upgrades to STARTTLS when the server offers it.
func (e *EmailNotifier) Dispatch(ctx context.Context, events []model.AlertEvent) error {
	if len(events) == 0 {
		return nil
	}
	addr := net.JoinHostPort(e.cfg.Host, strconv.Itoa(e.cfg.Port))
	var auth smtp.Auth
	if e.cfg.Username != "" {
		auth = smtp.PlainAuth("", e.cfg.Username, e.cfg.Password, e.cfg.Host)
	}
	msg := e.buildMessage(events, time.Now())

	done := make(chan error, 1)
	go func() {
		done <- e.send(addr, auth, e.cfg.From, []string{e.cfg.To}, msg)
	}()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send email to %s: %w", e.cfg.To, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(e.timeout):
		return fmt.Errorf("send email to %s: timed out after %v", e.cfg.To, e.timeout)
	}
}

func (e *EmailNotifier) buildMessage(events []model.AlertEvent, now time.Time) []byte {
	var b strings.Builder
	b.WriteString("From: " + e.cfg.From + "\r\n")
	b.WriteString("To: " + e.cfg.To + "\r\n")
	b.WriteString(fmt.Sprintf("Subject: %s (%d)\r\n", e.subject, len(events)))
	b.WriteString("Date: " + now.Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(strings.ReplaceAll(FormatPlain(events), "\n", "\r\n"))
	return []byte(b.String())
}
