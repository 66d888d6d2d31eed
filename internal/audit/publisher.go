package audit

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrBufferFull is returned by an async publisher when the inbox is full and
// the record was dropped. Audit writes never block the hot path.
var ErrBufferFull = errors.New("audit buffer full")

// Publisher emits audit records to a store. In sync mode (the default) Emit
// persists before returning; WithAsyncBuffer switches to a buffered channel
// drained by a background goroutine, with Close flushing the remainder.
type Publisher struct {
	store  Store
	logger *slog.Logger

	inbox chan Record
	done  chan struct{}
	once  sync.Once
	// external marks an inbox drained by a separate worker; Close then leaves
	// channel ownership with that worker.
	external bool
}

type PublisherOption func(p *Publisher)

// WithAsyncBuffer makes Emit non-blocking, buffering up to size records.
func WithAsyncBuffer(size int) PublisherOption {
	return func(p *Publisher) {
		p.inbox = make(chan Record, size)
	}
}

func WithPublisherLogger(logger *slog.Logger) PublisherOption {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func NewPublisher(store Store, opts ...PublisherOption) *Publisher {
	p := &Publisher{store: store, done: make(chan struct{})}
	for _, opt := range opts {
		opt(p)
	}
	if p.inbox != nil {
		go p.drain()
	}
	return p
}

// NewChannelPublisher emits into an inbox drained elsewhere (see the worker
// package); List still reads the store directly.
func NewChannelPublisher(store Store, inbox chan Record, opts ...PublisherOption) *Publisher {
	p := &Publisher{store: store, inbox: inbox, external: true, done: make(chan struct{})}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit records one audit entry, assigning ID and timestamp when unset. In
// async mode a full inbox drops the record and returns ErrBufferFull.
func (p *Publisher) Emit(ctx context.Context, record Record) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}

	if p.inbox == nil {
		return p.store.Append(ctx, record)
	}
	// Try the send first: a cancelled context must not drop a record while
	// the inbox still has room.
	select {
	case p.inbox <- record:
		return nil
	default:
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.logger != nil {
		p.logger.WarnContext(ctx, "audit record dropped", "action", record.Action)
	}
	return ErrBufferFull
}

// List exposes the underlying store for the audit read path.
func (p *Publisher) List(ctx context.Context, filter Filter) ([]Record, error) {
	return p.store.List(ctx, filter)
}

// Close stops the background drain after flushing buffered records. Safe to
// call more than once.
func (p *Publisher) Close() {
	p.once.Do(func() {
		if p.inbox == nil || p.external {
			close(p.done)
			return
		}
		close(p.inbox)
		<-p.done
	})
}

func (p *Publisher) drain() {
	defer close(p.done)
	for record := range p.inbox {
		if err := p.store.Append(context.Background(), record); err != nil && p.logger != nil {
			p.logger.Error("audit append failed", "action", record.Action, "error", err)
		}
	}
}
