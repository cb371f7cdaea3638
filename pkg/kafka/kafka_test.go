package kafka

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientParsesBrokers(t *testing.T) {
	c := NewClient(" a:9092, ,b:9092 ")
	assert.Equal(t, []string{"a:9092", "b:9092"}, c.Brokers)
	assert.True(t, c.Enabled())

	assert.False(t, NewClient("").Enabled())
}

func TestPublishDisabled(t *testing.T) {
	p := NewPublisher(NewClient(""))
	err := p.Publish(context.Background(), "shop.orders", "1", map[string]any{"x": 1})
	assert.ErrorIs(t, err, ErrDisabled)
	assert.NoError(t, p.Close())
}

func TestWriterIsReusedPerTopic(t *testing.T) {
	p := NewPublisher(NewClient("localhost:9092"))
	w1 := p.writer("a")
	w2 := p.writer("a")
	w3 := p.writer("b")

	assert.Same(t, w1, w2)
	assert.NotSame(t, w1, w3)
	assert.Equal(t, "b", w3.Topic)
}

func TestNewEvent(t *testing.T) {
	ev := NewEvent("order.placed", map[string]any{"order_id": 3})
	assert.NotEmpty(t, ev.EventID)
	assert.False(t, ev.OccurredAt.IsZero())

	raw, err := json.Marshal(ev)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"type":"order.placed"`)
}
