package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"proofid/internal/identity/models"
	id "proofid/pkg/domain"
	"proofid/pkg/platform/sentinel"
	txcontext "proofid/pkg/platform/tx"
)

// PostgresStore persists identities in the identities table with attributes
// keyed by (principal, key) in identity_attributes.
type PostgresStore struct {
	db *sql.DB
	tx *txcontext.Postgres
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, tx: txcontext.NewPostgres(db)}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// CreateIfNotValid upserts identity unless the principal currently holds a
// valid credential. The existing row is locked for the check.
func (s *PostgresStore) CreateIfNotValid(ctx context.Context, identity *models.Identity, now time.Time) error {
	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		existing, err := s.findForUpdate(ctx, identity.Principal)
		if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return err
		}
		if existing.IsValid(now) {
			return sentinel.ErrAlreadyUsed
		}
		return s.write(ctx, identity, true)
	})
}

// Execute loads the identity with FOR UPDATE, mutates it and writes it back.
func (s *PostgresStore) Execute(ctx context.Context, principal id.Principal, mutate func(*models.Identity)) (*models.Identity, error) {
	var result *models.Identity
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		current, err := s.findForUpdate(ctx, principal)
		if err != nil {
			return err
		}
		mutate(current)
		if err := s.write(ctx, current, false); err != nil {
			return err
		}
		result = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *PostgresStore) FindByPrincipal(ctx context.Context, principal id.Principal) (*models.Identity, error) {
	return s.find(ctx, principal, false)
}

func (s *PostgresStore) findForUpdate(ctx context.Context, principal id.Principal) (*models.Identity, error) {
	return s.find(ctx, principal, true)
}

func (s *PostgresStore) find(ctx context.Context, principal id.Principal, forUpdate bool) (*models.Identity, error) {
	query := `
		SELECT issued_at, expires_at, revoked,
			   COALESCE(ARRAY(SELECT key FROM identity_attributes a WHERE a.principal = i.principal ORDER BY key), '{}'),
			   COALESCE(ARRAY(SELECT value FROM identity_attributes a WHERE a.principal = i.principal ORDER BY key), '{}')
		FROM identities i
		WHERE principal = $1
	`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	identity := &models.Identity{Principal: principal}
	var keys, values []string
	err := s.execer(ctx).QueryRowContext(ctx, query, principal.String()).Scan(
		&identity.IssuedAt,
		&identity.ExpiresAt,
		&identity.Revoked,
		pq.Array(&keys),
		pq.Array(&values),
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find identity: %w", err)
	}
	if len(keys) != len(values) {
		return nil, fmt.Errorf("find identity: attribute arity mismatch")
	}

	identity.Attributes = make(map[string]string, len(keys))
	for i, k := range keys {
		identity.Attributes[k] = values[i]
	}
	return identity, nil
}

// write upserts the identity row. When replaceAttributes is set the attribute
// rows are rewritten as well; revocation leaves them untouched.
func (s *PostgresStore) write(ctx context.Context, identity *models.Identity, replaceAttributes bool) error {
	exec := s.execer(ctx)
	_, err := exec.ExecContext(ctx, `
		INSERT INTO identities (principal, issued_at, expires_at, revoked)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (principal) DO UPDATE SET
			issued_at = EXCLUDED.issued_at,
			expires_at = EXCLUDED.expires_at,
			revoked = EXCLUDED.revoked
	`, identity.Principal.String(), identity.IssuedAt, identity.ExpiresAt, identity.Revoked)
	if err != nil {
		return fmt.Errorf("upsert identity: %w", err)
	}
	if !replaceAttributes {
		return nil
	}

	if _, err := exec.ExecContext(ctx, `DELETE FROM identity_attributes WHERE principal = $1`, identity.Principal.String()); err != nil {
		return fmt.Errorf("clear identity attributes: %w", err)
	}
	if len(identity.Attributes) == 0 {
		return nil
	}
	keys := make([]string, 0, len(identity.Attributes))
	values := make([]string, 0, len(identity.Attributes))
	for k, v := range identity.Attributes {
		keys = append(keys, k)
		values = append(values, v)
	}
	_, err = exec.ExecContext(ctx, `
		INSERT INTO identity_attributes (principal, key, value)
		SELECT $1, k, v FROM unnest($2::text[], $3::text[]) AS t(k, v)
	`, identity.Principal.String(), pq.Array(keys), pq.Array(values))
	if err != nil {
		return fmt.Errorf("insert identity attributes: %w", err)
	}
	return nil
}
