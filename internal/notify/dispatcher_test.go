package notify_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/storefront/internal/notify"
)

type countingSender struct {
	name string
	err  error

	mu   sync.Mutex
	seen []notify.Message
}

func (s *countingSender) Name() string { return s.name }

func (s *countingSender) Send(_ context.Context, msg notify.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, msg)
	return s.err
}

func (s *countingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

type blockingSender struct{}

func (blockingSender) Name() string { return "blocking" }

func (blockingSender) Send(ctx context.Context, _ notify.Message) error {
	<-ctx.Done()
	return ctx.Err()
}

func placed(id string) notify.Message {
	return notify.Message{Event: notify.EventOrderPlaced, Order: notify.OrderSummary{OrderID: id}}
}

func TestDispatcherFansOutAndDrainsOnStop(t *testing.T) {
	failing := &countingSender{name: "failing", err: errors.New("smtp down")}
	ok := &countingSender{name: "ok"}

	d := notify.NewDispatcher(notify.Options{QueueSize: 10, Workers: 2}, zerolog.Nop(), failing, ok)
	d.Start(context.Background())

	for _, id := range []string{"a", "b", "c", "d", "e"} {
		require.True(t, d.Enqueue(placed(id)))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, d.Stop(ctx))

	assert.Equal(t, 5, failing.count())
	assert.Equal(t, 5, ok.count())

	for _, msg := range ok.seen {
		assert.False(t, msg.OccurredAt.IsZero())
	}
}

func TestDispatcherRejectsWhenStoppedOrFull(t *testing.T) {
	d := notify.NewDispatcher(notify.Options{QueueSize: 1, Workers: 1}, zerolog.Nop())

	// Not started, so the single slot stays occupied.
	assert.True(t, d.Enqueue(placed("a")))
	assert.False(t, d.Enqueue(placed("b")))

	d.Start(context.Background())
	require.NoError(t, d.Stop(context.Background()))
	assert.False(t, d.Enqueue(placed("c")))
	assert.NoError(t, d.Stop(context.Background()))
}

func TestDispatcherBoundsEachSend(t *testing.T) {
	after := &countingSender{name: "after"}
	d := notify.NewDispatcher(notify.Options{
		QueueSize:   4,
		Workers:     1,
		SendTimeout: 20 * time.Millisecond,
	}, zerolog.Nop(), blockingSender{}, after)
	d.Start(context.Background())

	require.True(t, d.Enqueue(placed("a")))
	require.True(t, d.Enqueue(placed("b")))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, d.Stop(ctx))
	assert.Equal(t, 2, after.count())
}

func TestDispatcherRateLimit(t *testing.T) {
	sender := &countingSender{name: "ok"}
	d := notify.NewDispatcher(notify.Options{QueueSize: 8, Workers: 1, RatePerSec: 50}, zerolog.Nop(), sender)
	d.Start(context.Background())

	start := time.Now()
	for i := 0; i < 6; i++ {
		require.True(t, d.Enqueue(placed("x")))
	}
	require.NoError(t, d.Stop(context.Background()))

	assert.Equal(t, 6, sender.count())
	// Burst of one, then 20ms per message.
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}
