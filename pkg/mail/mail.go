// Package mail sends email. Build one Mailer at boot and inject it:
//
//	m := mail.NewFromConfig()
//	err := m.Send(ctx, mail.Message{
//	    To:      []string{"user@example.com"},
//	    Subject: "Order Confirmation",
//	    HTML:    body,
//	})
package mail

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strings"

	"github.com/shashiranjanraj/kashvi-shop/config"
	"github.com/shashiranjanraj/kashvi-shop/pkg/logger"
)

var ErrNoRecipients = errors.New("mail: no recipients")

// Message is a single email. HTML wins over Text when both are set.
type Message struct {
	To      []string
	CC      []string
	BCC     []string
	Subject string
	HTML    string
	Text    string
}

// Mailer delivers messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SMTP holds connection credentials.
type SMTP struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
}

// SMTPFromConfig reads MAIL_* settings.
func SMTPFromConfig() SMTP {
	return SMTP{
		Host:     config.Get("MAIL_HOST", ""),
		Port:     config.Get("MAIL_PORT", "587"),
		Username: config.Get("MAIL_USERNAME", ""),
		Password: config.Get("MAIL_PASSWORD", ""),
		From:     config.Get("MAIL_FROM", "orders@kashvi.shop"),
		FromName: config.Get("MAIL_FROM_NAME", "Kashvi Shop"),
	}
}

// NewFromConfig returns an SMTPMailer when MAIL_HOST and MAIL_USERNAME are
// set, otherwise a LogMailer.
func NewFromConfig() Mailer {
	cfg := SMTPFromConfig()
	if cfg.Host == "" || cfg.Username == "" {
		logger.Info("mail: SMTP not configured, logging messages instead")
		return LogMailer{}
	}
	return &SMTPMailer{cfg: cfg}
}

// ------------------- SMTP -------------------

type SMTPMailer struct {
	cfg SMTP
}

func NewSMTPMailer(cfg SMTP) *SMTPMailer { return &SMTPMailer{cfg: cfg} }

// Send delivers msg. Port 465 uses implicit TLS; others use STARTTLS via
// smtp.SendMail.
func (s *SMTPMailer) Send(ctx context.Context, msg Message) error {
	allTo := append(append(append([]string{}, msg.To...), msg.CC...), msg.BCC...)
	if len(allTo) == 0 {
		return ErrNoRecipients
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	cfg := s.cfg
	raw := buildRaw(fmt.Sprintf("%s <%s>", cfg.FromName, cfg.From), msg)
	addr := net.JoinHostPort(cfg.Host, cfg.Port)
	auth := smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)

	if cfg.Port == "465" {
		return sendTLS(ctx, addr, auth, cfg.From, allTo, raw, cfg.Host)
	}
	if err := smtp.SendMail(addr, auth, cfg.From, allTo, raw); err != nil {
		return fmt.Errorf("mail: send: %w", err)
	}
	return nil
}

func sendTLS(ctx context.Context, addr string, auth smtp.Auth, from string, to []string, raw []byte, host string) error {
	dialer := &tls.Dialer{Config: &tls.Config{ServerName: host}}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("mail: TLS dial: %w", err)
	}
	client, err := smtp.NewClient(conn, host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("mail: smtp client: %w", err)
	}
	defer client.Quit() //nolint:errcheck

	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("mail: auth: %w", err)
	}
	if err := client.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("mail: rcpt %s: %w", rcpt, err)
		}
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(raw); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func buildRaw(from string, msg Message) []byte {
	contentType, body := "text/plain", msg.Text
	if msg.HTML != "" {
		contentType, body = "text/html", msg.HTML
	}

	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + strings.Join(msg.To, ", ") + "\r\n")
	if len(msg.CC) > 0 {
		b.WriteString("Cc: " + strings.Join(msg.CC, ", ") + "\r\n")
	}
	b.WriteString("Subject: " + msg.Subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString(fmt.Sprintf("Content-Type: %s; charset=\"UTF-8\"\r\n", contentType))
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}

// ------------------- Log -------------------

// LogMailer writes messages to the log instead of sending them.
type LogMailer struct{}

func (LogMailer) Send(ctx context.Context, msg Message) error {
	if len(msg.To)+len(msg.CC)+len(msg.BCC) == 0 {
		return ErrNoRecipients
	}
	logger.WithCtx(ctx).Info("mail: message",
		"to", strings.Join(msg.To, ","),
		"subject", msg.Subject,
		"bytes", len(msg.HTML)+len(msg.Text),
	)
	return nil
}
