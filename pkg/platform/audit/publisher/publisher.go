// Package publisher fans audit events out to a store and optional sinks.
//
// In synchronous mode Emit persists before returning. With WithAsyncBuffer,
// Emit enqueues and a background goroutine persists; Close drains the queue.
// Sink failures are logged and never surface to the caller.
package publisher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	id "proofid/pkg/domain"
	audit "proofid/pkg/platform/audit"

	"github.com/google/uuid"
)

var (
	// ErrBufferFull is returned by Emit in async mode when the queue is saturated.
	ErrBufferFull = errors.New("audit buffer full")
	// ErrClosed is returned by Emit once Close has started.
	ErrClosed = errors.New("audit publisher closed")
)

type Publisher struct {
	store   audit.Store
	sinks   []audit.Sink
	logger  *slog.Logger
	metrics *Metrics

	// mu guards closed and sends on buffer against Close.
	mu     sync.RWMutex
	closed bool
	buffer chan audit.Event
	wg     sync.WaitGroup
	once   sync.Once
}

type Option func(*Publisher)

// WithAsyncBuffer enables asynchronous persistence with a queue of size n.
func WithAsyncBuffer(n int) Option {
	return func(p *Publisher) {
		if n > 0 {
			p.buffer = make(chan audit.Event, n)
		}
	}
}

// WithSink adds a sink that receives every persisted event.
func WithSink(sink audit.Sink) Option {
	return func(p *Publisher) {
		if sink != nil {
			p.sinks = append(p.sinks, sink)
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store:  store,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.buffer != nil {
		p.wg.Add(1)
		go p.drain()
	}
	return p
}

// Emit records an event, filling in ID, category and timestamp when unset.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Category == "" {
		event.Category = event.Action.Category()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	if p.buffer == nil {
		return p.persist(ctx, event)
	}

	select {
	case p.buffer <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		if p.metrics != nil {
			p.metrics.IncDropped()
		}
		return ErrBufferFull
	}
}

// List returns events involving principal from the backing store.
func (p *Publisher) List(ctx context.Context, principal id.Principal) ([]audit.Event, error) {
	return p.store.ListByPrincipal(ctx, principal)
}

// Close rejects further events, drains any queued ones and closes sinks.
// It waits for in-flight synchronous Emits to finish.
func (p *Publisher) Close() error {
	var errs []error
	p.once.Do(func() {
		p.mu.Lock()
		p.closed = true
		if p.buffer != nil {
			close(p.buffer)
		}
		p.mu.Unlock()
		p.wg.Wait()

		for _, sink := range p.sinks {
			if err := sink.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	})
	return errors.Join(errs...)
}

func (p *Publisher) drain() {
	defer p.wg.Done()
	for event := range p.buffer {
		if err := p.persist(context.Background(), event); err != nil {
			p.logger.Error("async audit persist failed",
				"action", event.Action,
				"error", err,
			)
		}
	}
}

func (p *Publisher) persist(ctx context.Context, event audit.Event) error {
	start := time.Now()
	if err := p.store.Append(ctx, event); err != nil {
		if p.metrics != nil {
			p.metrics.IncPersistFailures()
		}
		return err
	}
	if p.metrics != nil {
		p.metrics.ObservePersistDuration(start)
		p.metrics.IncEmitted(event.Category)
	}

	for _, sink := range p.sinks {
		if err := sink.Send(ctx, event); err != nil {
			if p.metrics != nil {
				p.metrics.IncSinkFailures()
			}
			p.logger.WarnContext(ctx, "audit sink delivery failed",
				"action", event.Action,
				"request_id", event.RequestID,
				"error", err,
			)
		}
	}
	return nil
}
