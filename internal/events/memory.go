package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/MarcosLauremiro/miKan-api/pkg/logger"
	"github.com/MarcosLauremiro/miKan-api/pkg/metrics"
)

const defaultHandlerTimeout = 30 * time.Second

type subscription struct {
	id      uint64
	handler Handler
}

// MemoryBus delivers events to in-process handlers, each on its own goroutine.
type MemoryBus struct {
	mu       sync.RWMutex
	handlers map[string][]subscription
	nextID   uint64
	closed   bool

	inflight sync.WaitGroup
	timeout  time.Duration
	now      func() time.Time
	log      *zap.Logger
}

// MemoryOption customises a MemoryBus.
type MemoryOption func(*MemoryBus)

// WithHandlerTimeout bounds how long a single handler may run.
func WithHandlerTimeout(d time.Duration) MemoryOption {
	return func(b *MemoryBus) {
		if d > 0 {
			b.timeout = d
		}
	}
}

// WithClock overrides the clock used to stamp events.
func WithClock(now func() time.Time) MemoryOption {
	return func(b *MemoryBus) {
		if now != nil {
			b.now = now
		}
	}
}

// NewMemoryBus constructs an empty in-process bus.
func NewMemoryBus(opts ...MemoryOption) *MemoryBus {
	bus := &MemoryBus{
		handlers: make(map[string][]subscription),
		timeout:  defaultHandlerTimeout,
		now:      time.Now,
		log:      logger.WithModule("events"),
	}
	for _, opt := range opts {
		opt(bus)
	}
	return bus
}

// Subscribe registers h for name.
func (b *MemoryBus) Subscribe(name string, h Handler) func() {
	if h == nil {
		return func() {}
	}

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.handlers[name] = append(b.handlers[name], subscription{id: id, handler: h})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.unsubscribe(name, id) })
	}
}

func (b *MemoryBus) unsubscribe(name string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.handlers[name]
	for i, sub := range subs {
		if sub.id == id {
			b.handlers[name] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(b.handlers[name]) == 0 {
		delete(b.handlers, name)
	}
}

// Publish encodes payload and fans it out without waiting for handlers.
func (b *MemoryBus) Publish(ctx context.Context, name string, payload any) error {
	evt, err := NewEvent(name, payload, b.now())
	if err != nil {
		metrics.EventsPublished.WithLabelValues(name, "error").Inc()
		return err
	}
	err = b.Dispatch(ctx, evt)
	metrics.EventsPublished.WithLabelValues(name, metrics.Result(err)).Inc()
	return err
}

// Dispatch hands an already built envelope to the subscribers of its name
// and to wildcard subscribers.
func (b *MemoryBus) Dispatch(ctx context.Context, evt Event) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrBusClosed
	}
	targets := make([]Handler, 0, len(b.handlers[evt.Name])+len(b.handlers[Wildcard]))
	for _, sub := range b.handlers[evt.Name] {
		targets = append(targets, sub.handler)
	}
	if evt.Name != Wildcard {
		for _, sub := range b.handlers[Wildcard] {
			targets = append(targets, sub.handler)
		}
	}
	b.inflight.Add(len(targets))
	b.mu.RUnlock()

	if ctx == nil {
		ctx = context.Background()
	}
	// Handlers outlive the request that published the event.
	base := context.WithoutCancel(ctx)
	for _, h := range targets {
		go b.run(base, h, evt)
	}
	return nil
}

func (b *MemoryBus) run(ctx context.Context, h Handler, evt Event) {
	defer b.inflight.Done()
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("event handler panicked",
				zap.String("event", evt.Name),
				zap.String("event_id", evt.ID),
				zap.Any("panic", r))
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	if err := h(ctx, evt); err != nil {
		b.log.Warn("event handler failed",
			zap.String("event", evt.Name),
			zap.String("event_id", evt.ID),
			zap.Error(err))
	}
}

// Wait blocks until every handler started so far has returned.
func (b *MemoryBus) Wait() {
	b.inflight.Wait()
}

// Close rejects new events and waits for in-flight handlers or ctx.
func (b *MemoryBus) Close(ctx context.Context) error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		b.inflight.Wait()
		close(done)
	}()

	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("events: waiting for handlers: %w", ctx.Err())
	}
}
