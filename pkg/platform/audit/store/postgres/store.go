package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	id "proofid/pkg/domain"
	audit "proofid/pkg/platform/audit"
	txcontext "proofid/pkg/platform/tx"
)

// Store implements audit.Store on the audit_events table.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Append inserts an event. Idempotent on event id.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	query := `
		INSERT INTO audit_events (
			id, category, occurred_at, action, actor, subject,
			record_id, decision, reason, request_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING
	`
	var subject, recordID sql.NullString
	if !event.Subject.IsZero() {
		subject = sql.NullString{String: event.Subject.String(), Valid: true}
	}
	if event.RecordID != nil {
		recordID = sql.NullString{String: event.RecordID.String(), Valid: true}
	}

	_, err := s.execer(ctx).ExecContext(ctx, query,
		event.ID,
		string(event.Category),
		event.Timestamp,
		string(event.Action),
		event.Actor.String(),
		subject,
		recordID,
		event.Decision,
		event.Reason,
		event.RequestID,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

const selectColumns = `
	SELECT id, category, occurred_at, action, actor, subject,
		   record_id, decision, reason, request_id
	FROM audit_events
`

// ListByPrincipal returns events where principal is actor or subject, oldest first.
func (s *Store) ListByPrincipal(ctx context.Context, principal id.Principal) ([]audit.Event, error) {
	query := selectColumns + `
		WHERE actor = $1 OR subject = $1
		ORDER BY occurred_at ASC
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, principal.String())
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// ListRecent returns the most recent limit events, oldest first.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.Event, error) {
	query := `SELECT * FROM (` + selectColumns + `
		ORDER BY occurred_at DESC
		LIMIT $1
	) recent ORDER BY occurred_at ASC`
	rows, err := s.execer(ctx).QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]audit.Event, error) {
	var events []audit.Event
	for rows.Next() {
		var (
			event             audit.Event
			category, action  string
			actor             string
			subject, recordID sql.NullString
		)
		err := rows.Scan(
			&event.ID,
			&category,
			&event.Timestamp,
			&action,
			&actor,
			&subject,
			&recordID,
			&event.Decision,
			&event.Reason,
			&event.RequestID,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}

		event.Category = audit.EventCategory(category)
		event.Action = audit.AuditEvent(action)
		if event.Actor, err = id.ParsePrincipal(actor); err != nil {
			return nil, fmt.Errorf("scan audit actor: %w", err)
		}
		if subject.Valid {
			if event.Subject, err = id.ParsePrincipal(subject.String); err != nil {
				return nil, fmt.Errorf("scan audit subject: %w", err)
			}
		}
		if recordID.Valid {
			raw, err := strconv.ParseUint(recordID.String, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("scan audit record id: %w", err)
			}
			rid := id.RecordID(raw)
			event.RecordID = &rid
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
