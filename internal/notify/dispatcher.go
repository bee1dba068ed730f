// Package notify delivers order notifications in the background.
// Delivery is best-effort and at-most-once: failures are logged and dropped.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Sender delivers a message to one channel.
type Sender interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// Options configures a Dispatcher.
type Options struct {
	QueueSize   int
	Workers     int
	RatePerSec  float64
	SendTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.QueueSize <= 0 {
		o.QueueSize = 256
	}
	if o.Workers <= 0 {
		o.Workers = 2
	}
	if o.SendTimeout <= 0 {
		o.SendTimeout = 10 * time.Second
	}
	return o
}

// Dispatcher fans queued messages out to every configured sender.
type Dispatcher struct {
	opts    Options
	senders []Sender
	limiter *rate.Limiter
	log     zerolog.Logger

	mu      sync.RWMutex
	queue   chan Message
	stopped bool
	wg      sync.WaitGroup
	cancel  context.CancelFunc
}

// NewDispatcher returns a Dispatcher; Start must be called before messages are delivered.
func NewDispatcher(opts Options, log zerolog.Logger, senders ...Sender) *Dispatcher {
	opts = opts.withDefaults()

	limit := rate.Inf
	burst := 1
	if opts.RatePerSec > 0 {
		limit = rate.Limit(opts.RatePerSec)
		burst = opts.Workers
	}

	return &Dispatcher{
		opts:    opts,
		senders: senders,
		limiter: rate.NewLimiter(limit, burst),
		log:     log.With().Str("component", "notify").Logger(),
		queue:   make(chan Message, opts.QueueSize),
	}
}

// Start launches the worker goroutines.
func (d *Dispatcher) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	for i := 0; i < d.opts.Workers; i++ {
		d.wg.Add(1)
		go d.work(ctx)
	}
	d.log.Info().Int("workers", d.opts.Workers).Int("senders", len(d.senders)).Msg("dispatcher started")
}

// Enqueue hands msg to the workers without blocking. It returns false when the
// queue is full or the dispatcher has been stopped.
func (d *Dispatcher) Enqueue(msg Message) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.stopped {
		return false
	}
	if msg.OccurredAt.IsZero() {
		msg.OccurredAt = time.Now()
	}

	select {
	case d.queue <- msg:
		return true
	default:
		d.log.Warn().Str("event", string(msg.Event)).Str("order_id", msg.Order.OrderID).Msg("notification queue full, dropping message")
		return false
	}
}

// Stop rejects new messages, drains the queue and waits for the workers or ctx.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return nil
	}
	d.stopped = true
	close(d.queue)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		if d.cancel != nil {
			d.cancel()
		}
		return ctx.Err()
	}
}

func (d *Dispatcher) work(ctx context.Context) {
	defer d.wg.Done()
	for msg := range d.queue {
		d.deliver(ctx, msg)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, msg Message) {
	for _, sender := range d.senders {
		if err := d.limiter.Wait(ctx); err != nil {
			d.log.Warn().Err(err).Str("sender", sender.Name()).Msg("notification dropped")
			continue
		}

		sendCtx, cancel := context.WithTimeout(ctx, d.opts.SendTimeout)
		err := sender.Send(sendCtx, msg)
		cancel()

		if err != nil {
			d.log.Error().Err(err).
				Str("sender", sender.Name()).
				Str("event", string(msg.Event)).
				Str("order_id", msg.Order.OrderID).
				Msg("notification failed")
			continue
		}
		d.log.Debug().Str("sender", sender.Name()).Str("event", string(msg.Event)).Str("order_id", msg.Order.OrderID).Msg("notification sent")
	}
}
