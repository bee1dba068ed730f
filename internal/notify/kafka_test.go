package notify_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/storefront/internal/notify"
)

type fakeWriter struct {
	messages []kafka.Message
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaPublisherWritesOrderEvent(t *testing.T) {
	writer := &fakeWriter{}
	publisher := notify.NewKafkaPublisher(writer)

	require.NoError(t, publisher.Send(context.Background(), notify.Message{Event: notify.EventOrderPlaced, Order: sampleOrder()}))
	require.Len(t, writer.messages, 1)

	msg := writer.messages[0]
	assert.Equal(t, "0b9f", string(msg.Key))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "event", msg.Headers[0].Key)
	assert.Equal(t, "order.placed", string(msg.Headers[0].Value))

	var decoded notify.Message
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, notify.EventOrderPlaced, decoded.Event)
	assert.Equal(t, "meera@example.com", decoded.Order.Email)
	assert.True(t, decoded.Order.TotalPrice.Equal(sampleOrder().TotalPrice))

	require.NoError(t, publisher.Close())
	assert.True(t, writer.closed)
}

func TestKafkaWriterConfig(t *testing.T) {
	w := notify.NewKafkaWriter("b1:9092,b2:9092", "order-events")
	defer w.Close()

	assert.Equal(t, "order-events", w.Topic)
	assert.NotNil(t, w.Addr)
	assert.IsType(t, &kafka.Hash{}, w.Balancer)
}
