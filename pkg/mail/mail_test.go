package mail

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shashiranjanraj/kashvi-shop/config"
)

func TestBuildRawHTML(t *testing.T) {
	raw := string(buildRaw("Shop <orders@shop.test>", Message{
		To:      []string{"a@x.test", "b@x.test"},
		CC:      []string{"c@x.test"},
		Subject: "Order Confirmation",
		HTML:    "<p>hi</p>",
		Text:    "hi",
	}))

	assert.Contains(t, raw, "From: Shop <orders@shop.test>\r\n")
	assert.Contains(t, raw, "To: a@x.test, b@x.test\r\n")
	assert.Contains(t, raw, "Cc: c@x.test\r\n")
	assert.Contains(t, raw, "Content-Type: text/html;")
	assert.True(t, strings.HasSuffix(raw, "\r\n\r\n<p>hi</p>"))
}

func TestBuildRawPlainText(t *testing.T) {
	raw := string(buildRaw("x", Message{To: []string{"a@x.test"}, Text: "plain"}))
	assert.Contains(t, raw, "Content-Type: text/plain;")
	assert.NotContains(t, raw, "Cc:")
}

func TestNoRecipients(t *testing.T) {
	assert.ErrorIs(t, LogMailer{}.Send(context.Background(), Message{}), ErrNoRecipients)
	assert.ErrorIs(t, NewSMTPMailer(SMTP{Host: "h"}).Send(context.Background(), Message{}), ErrNoRecipients)
}

func TestNewFromConfigFallsBackToLog(t *testing.T) {
	config.Set("MAIL_HOST", "")
	assert.IsType(t, LogMailer{}, NewFromConfig())

	config.Set("MAIL_HOST", "smtp.test")
	config.Set("MAIL_USERNAME", "user")
	t.Cleanup(func() {
		config.Set("MAIL_HOST", "")
		config.Set("MAIL_USERNAME", "")
	})
	assert.IsType(t, &SMTPMailer{}, NewFromConfig())
}
