package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"proofid/internal/records/models"
	id "proofid/pkg/domain"
	"proofid/pkg/platform/sentinel"
	txcontext "proofid/pkg/platform/tx"
)

// PostgresStore persists records in health_records with grants in record_acl.
// Record ids are stored as the bit-identical BIGINT of the uint64 id.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func dbID(recordID id.RecordID) int64 {
	return int64(recordID) //nolint:gosec // bit-identical round trip
}

func (s *PostgresStore) Create(ctx context.Context, record *models.Record) error {
	res, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO health_records (id, owner, payload, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING
	`, dbID(record.ID), record.Owner.String(), record.Payload, record.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	if n == 0 {
		return sentinel.ErrAlreadyUsed
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, recordID id.RecordID) (*models.Record, error) {
	var (
		owner    string
		grantees []string
	)
	record := &models.Record{ID: recordID}
	err := s.execer(ctx).QueryRowContext(ctx, `
		SELECT owner, payload, created_at,
			   COALESCE(ARRAY(SELECT grantee FROM record_acl a WHERE a.record_id = r.id ORDER BY grantee), '{}')
		FROM health_records r
		WHERE id = $1
	`, dbID(recordID)).Scan(&owner, &record.Payload, &record.CreatedAt, pq.Array(&grantees))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find record: %w", err)
	}

	if record.Owner, err = id.ParsePrincipal(owner); err != nil {
		return nil, fmt.Errorf("find record: owner: %w", err)
	}
	record.ACL = make(map[id.Principal]struct{}, len(grantees))
	for _, g := range grantees {
		p, err := id.ParsePrincipal(g)
		if err != nil {
			return nil, fmt.Errorf("find record: grantee: %w", err)
		}
		record.ACL[p] = struct{}{}
	}
	return record, nil
}

func (s *PostgresStore) AddGrant(ctx context.Context, recordID id.RecordID, grantee id.Principal) (bool, error) {
	res, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO record_acl (record_id, grantee)
		SELECT id, $2 FROM health_records WHERE id = $1 AND owner <> $2
		ON CONFLICT (record_id, grantee) DO NOTHING
	`, dbID(recordID), grantee.String())
	if err != nil {
		return false, fmt.Errorf("insert grant: %w", err)
	}
	return changed(res)
}

func (s *PostgresStore) RemoveGrant(ctx context.Context, recordID id.RecordID, grantee id.Principal) (bool, error) {
	res, err := s.execer(ctx).ExecContext(ctx, `
		DELETE FROM record_acl WHERE record_id = $1 AND grantee = $2
	`, dbID(recordID), grantee.String())
	if err != nil {
		return false, fmt.Errorf("delete grant: %w", err)
	}
	return changed(res)
}

func changed(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}
