// Package notification fans a notification out over several channels.
//
// Define a Notification:
//
//	type OrderShipped struct{ Order models.Order }
//	func (n OrderShipped) Via() []string { return []string{notification.ChannelMail} }
//	func (n OrderShipped) ToMail() (notification.MailData, error) {
//	    return notification.MailData{Subject: "Your order has shipped", Body: "..."}, nil
//	}
//
// Send:
//
//	d := notification.NewDispatcher(mailer, publisher, topic)
//	err := d.Send(ctx, "user@example.com", OrderShipped{Order: o})
package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	shophttp "github.com/shashiranjanraj/kashvi-shop/pkg/http"
	"github.com/shashiranjanraj/kashvi-shop/pkg/logger"
	"github.com/shashiranjanraj/kashvi-shop/pkg/mail"
)

const (
	ChannelMail    = "mail"
	ChannelEvent   = "kafka"
	ChannelWebhook = "webhook"
)

// ------------------- Channel data structs -------------------

// MailData carries the data needed to send an email notification.
type MailData struct {
	To      string // overrides the notifiable address if set
	Subject string
	Body    string // HTML
	Text    string // plain-text fallback
}

// EventData is a message for the event bus.
type EventData struct {
	Topic   string // overrides the dispatcher's default topic if set
	Key     string
	Payload any
}

// WebhookData carries an arbitrary JSON payload to POST to a URL.
type WebhookData struct {
	URL     string
	Payload any
	Headers map[string]string
}

// ------------------- Notification interface -------------------

// Notification is the interface every notification must satisfy.
type Notification interface {
	// Via returns the channel names to deliver on.
	Via() []string
}

// Mailable can be implemented to support the mail channel.
type Mailable interface {
	ToMail() (MailData, error)
}

// Eventable can be implemented to support the event channel.
type Eventable interface {
	ToEvent() EventData
}

// Webhookable can be implemented to support the webhook channel.
type Webhookable interface {
	ToWebhook() WebhookData
}

// EventPublisher is satisfied by *kafka.Publisher.
type EventPublisher interface {
	Publish(ctx context.Context, topic, key string, payload any) error
}

// ------------------- Dispatcher -------------------

// Dispatcher owns the transports. Nil transports disable their channel:
// a notification routed to a disabled channel is skipped with a debug log.
type Dispatcher struct {
	mailer          mail.Mailer
	events          EventPublisher
	eventTopic      string
	webhookAttempts int
}

func NewDispatcher(m mail.Mailer, events EventPublisher, eventTopic string) *Dispatcher {
	return &Dispatcher{
		mailer:          m,
		events:          events,
		eventTopic:      eventTopic,
		webhookAttempts: 2,
	}
}

// Send delivers n on every channel in Via. All channels are attempted; the
// returned error joins the individual failures.
func (d *Dispatcher) Send(ctx context.Context, address string, n Notification) error {
	var errs []error
	for _, channel := range n.Via() {
		if err := d.dispatch(ctx, address, channel, n); err != nil {
			logger.WithCtx(ctx).Error("notification: channel failed",
				"channel", channel, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) dispatch(ctx context.Context, address, channel string, n Notification) error {
	switch channel {
	case ChannelMail:
		m, ok := n.(Mailable)
		if !ok {
			return fmt.Errorf("notification: %T does not implement Mailable", n)
		}
		if d.mailer == nil {
			logger.WithCtx(ctx).Debug("notification: mail channel disabled")
			return nil
		}
		data, err := m.ToMail()
		if err != nil {
			return fmt.Errorf("notification: render mail: %w", err)
		}
		return d.sendMail(ctx, address, data)

	case ChannelEvent:
		e, ok := n.(Eventable)
		if !ok {
			return fmt.Errorf("notification: %T does not implement Eventable", n)
		}
		if d.events == nil {
			logger.WithCtx(ctx).Debug("notification: event channel disabled")
			return nil
		}
		return d.sendEvent(ctx, e.ToEvent())

	case ChannelWebhook:
		wh, ok := n.(Webhookable)
		if !ok {
			return fmt.Errorf("notification: %T does not implement Webhookable", n)
		}
		return d.sendWebhook(ctx, wh.ToWebhook())

	default:
		return fmt.Errorf("notification: unknown channel %q", channel)
	}
}

// ------------------- Mail channel -------------------

func (d *Dispatcher) sendMail(ctx context.Context, address string, data MailData) error {
	to := data.To
	if to == "" {
		to = address
	}
	if to == "" {
		return fmt.Errorf("notification: mail has no recipient")
	}
	return d.mailer.Send(ctx, mail.Message{
		To:      []string{to},
		Subject: data.Subject,
		HTML:    data.Body,
		Text:    data.Text,
	})
}

// ------------------- Event channel -------------------

func (d *Dispatcher) sendEvent(ctx context.Context, data EventData) error {
	topic := data.Topic
	if topic == "" {
		topic = d.eventTopic
	}
	if topic == "" {
		return fmt.Errorf("notification: event topic not configured")
	}
	return d.events.Publish(ctx, topic, data.Key, data.Payload)
}

// ------------------- Webhook channel -------------------

func (d *Dispatcher) sendWebhook(ctx context.Context, data WebhookData) error {
	if data.URL == "" {
		return fmt.Errorf("notification: webhook URL is empty")
	}

	resp, err := shophttp.Post(data.URL).
		Headers(data.Headers).
		Body(data.Payload).
		Timeout(10*time.Second).
		Retry(d.webhookAttempts, 200*time.Millisecond).
		Send(ctx)
	if err != nil {
		return fmt.Errorf("notification: webhook: %w", err)
	}
	if err := resp.Throw(); err != nil {
		return fmt.Errorf("notification: webhook: %w", err)
	}
	return nil
}
