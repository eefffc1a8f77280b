package messaging

import (
	"context"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToKafka_SortsHeadersAndLeavesTopicToWriter(t *testing.T) {
	msg := toKafka(Message{
		Topic:   "ignored",
		Key:     []byte("h-1"),
		Value:   []byte(`{}`),
		Headers: map[string]string{"event-type": "order_created", "content-type": "application/json"},
	})

	assert.Empty(t, msg.Topic)
	assert.Equal(t, []byte("h-1"), msg.Key)
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "content-type", msg.Headers[0].Key)
	assert.Equal(t, "event-type", msg.Headers[1].Key)
}

func TestFromKafka_CopiesPayload(t *testing.T) {
	key := []byte("h-1")
	src := kafka.Message{
		Topic:   "procurement.events",
		Key:     key,
		Value:   []byte("v"),
		Offset:  42,
		Headers: []kafka.Header{{Key: "event-type", Value: []byte("supplier_added")}},
	}

	msg := fromKafka(src)
	key[0] = 'x'

	assert.Equal(t, "procurement.events", msg.Topic)
	assert.Equal(t, []byte("h-1"), msg.Key)
	assert.Equal(t, int64(42), msg.Offset)
	assert.Equal(t, map[string]string{"event-type": "supplier_added"}, msg.Headers)
	assert.Nil(t, fromKafka(kafka.Message{}).Headers)
}

func TestNoop(t *testing.T) {
	client := Noop("procurement.events")
	assert.Equal(t, "procurement.events", client.Topic())
	assert.NoError(t, client.Publish(context.Background(), Message{Key: []byte("k")}))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := client.Consume(ctx, func(context.Context, Message) error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
