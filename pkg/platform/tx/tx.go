// Package tx provides the atomic execution boundary shared by every service.
//
// All mutating operations run through a Runner. A Runner serializes operations
// into a single total order and guarantees that a failed fn leaves no
// observable state change.
package tx

import (
	"context"
	"database/sql"
	"sync"
	"time"

	dErrors "proofid/pkg/domain-errors"
)

type ctxKey struct{}

var txKey = ctxKey{}

// WithTx stores a SQL transaction in context for downstream store usage.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey, tx)
}

// From extracts a SQL transaction from context if present.
func From(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey).(*sql.Tx)
	return tx, ok
}

// Runner runs fn as one atomic, serialized unit of work.
type Runner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// DefaultTimeout bounds a single unit of work when the caller set no deadline.
const DefaultTimeout = 5 * time.Second

// Serial is the in-memory Runner. A single process-wide mutex gives every
// operation exclusive access; stores must only write after all checks in fn
// have passed so that an error return leaves nothing behind.
type Serial struct {
	mu      sync.Mutex
	timeout time.Duration
}

// NewSerial returns an in-memory Runner.
func NewSerial() *Serial {
	return &Serial{timeout: DefaultTimeout}
}

func (s *Serial) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := withDefaultTimeout(ctx, s.timeout)
	defer cancel()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Check again after acquiring lock
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	return fn(ctx)
}

// Postgres runs each unit of work in a SERIALIZABLE database transaction and
// exposes it to stores through WithTx.
type Postgres struct {
	db      *sql.DB
	timeout time.Duration
}

// NewPostgres returns a Runner backed by db.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db, timeout: DefaultTimeout}
}

func (p *Postgres) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, nested := From(ctx); nested {
		return fn(ctx)
	}

	ctx, cancel := withDefaultTimeout(ctx, p.timeout)
	defer cancel()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	sqlTx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to begin transaction")
	}
	defer func() {
		_ = sqlTx.Rollback()
	}()

	if err := fn(WithTx(ctx, sqlTx)); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to commit transaction")
	}
	return nil
}

func withDefaultTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return context.WithTimeout(ctx, timeout)
}
