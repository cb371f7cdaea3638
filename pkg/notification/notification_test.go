package notification

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/kashvi-shop/pkg/mail"
)

type mockMailer struct{ mock.Mock }

func (m *mockMailer) Send(ctx context.Context, msg mail.Message) error {
	return m.Called(msg).Error(0)
}

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) Publish(ctx context.Context, topic, key string, payload any) error {
	return m.Called(topic, key, payload).Error(0)
}

type orderNote struct {
	via     []string
	hookURL string
}

func (n orderNote) Via() []string { return n.via }

func (n orderNote) ToMail() (MailData, error) {
	return MailData{Subject: "Order Confirmation", Body: "<p>ok</p>"}, nil
}

func (n orderNote) ToEvent() EventData {
	return EventData{Key: "42", Payload: map[string]any{"order_id": 42}}
}

func (n orderNote) ToWebhook() WebhookData {
	return WebhookData{URL: n.hookURL, Payload: map[string]any{"order_id": 42}, Headers: map[string]string{"X-Sig": "abc"}}
}

func TestSendMailAndEvent(t *testing.T) {
	m := &mockMailer{}
	m.On("Send", mail.Message{To: []string{"a@x.test"}, Subject: "Order Confirmation", HTML: "<p>ok</p>"}).Return(nil)
	p := &mockPublisher{}
	p.On("Publish", "shop.orders", "42", map[string]any{"order_id": 42}).Return(nil)

	d := NewDispatcher(m, p, "shop.orders")
	err := d.Send(context.Background(), "a@x.test", orderNote{via: []string{ChannelMail, ChannelEvent}})

	require.NoError(t, err)
	m.AssertExpectations(t)
	p.AssertExpectations(t)
}

func TestSendJoinsChannelErrors(t *testing.T) {
	m := &mockMailer{}
	m.On("Send", mock.Anything).Return(errors.New("smtp down"))
	p := &mockPublisher{}
	p.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	d := NewDispatcher(m, p, "shop.orders")
	err := d.Send(context.Background(), "a@x.test", orderNote{via: []string{ChannelMail, ChannelEvent, "pager"}})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp down")
	assert.Contains(t, err.Error(), `unknown channel "pager"`)
	p.AssertNumberOfCalls(t, "Publish", 1)
}

func TestDisabledChannelsAreSkipped(t *testing.T) {
	d := NewDispatcher(nil, nil, "")
	err := d.Send(context.Background(), "a@x.test", orderNote{via: []string{ChannelMail, ChannelEvent}})
	assert.NoError(t, err)
}

func TestWebhookChannel(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "abc", r.Header.Get("X-Sig"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d := NewDispatcher(nil, nil, "")
	err := d.Send(context.Background(), "", orderNote{via: []string{ChannelWebhook}, hookURL: srv.URL})

	require.NoError(t, err)
	assert.Equal(t, float64(42), got["order_id"])
}

func TestWebhookNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	d := NewDispatcher(nil, nil, "")
	err := d.Send(context.Background(), "", orderNote{via: []string{ChannelWebhook}, hookURL: srv.URL})
	assert.ErrorContains(t, err, "HTTP 502")
}
