// Package service implements the health record store: identity-gated record
// creation, owner-managed delegated read access, and authorized reads.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"proofid/internal/gate"
	"proofid/internal/platform/telemetry"
	"proofid/internal/records/metrics"
	"proofid/internal/records/models"
	id "proofid/pkg/domain"
	dErrors "proofid/pkg/domain-errors"
	audit "proofid/pkg/platform/audit"
	"proofid/pkg/platform/sentinel"
	txcontext "proofid/pkg/platform/tx"
	"proofid/pkg/requestcontext"
)

const tracerName = "proofid/records"

// Store persists records. Implementations return sentinel errors and rely on
// the caller having checked existence before grant mutations.
type Store interface {
	// Create returns sentinel.ErrAlreadyUsed when the id is taken.
	Create(ctx context.Context, record *models.Record) error
	FindByID(ctx context.Context, recordID id.RecordID) (*models.Record, error)
	AddGrant(ctx context.Context, recordID id.RecordID, grantee id.Principal) (bool, error)
	RemoveGrant(ctx context.Context, recordID id.RecordID, grantee id.Principal) (bool, error)
}

// Verifier is the access gate.
type Verifier interface {
	Verify(ctx context.Context, principal id.Principal, pred gate.Predicate) (bool, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type Service struct {
	store             Store
	tx                txcontext.Runner
	gate              Verifier
	creationPredicate gate.Predicate
	logger            *slog.Logger
	auditPublisher    AuditPublisher
	metrics           *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithCreationPredicate sets what an owner's identity must satisfy to create
// a record. The default is gate.ValidIdentity.
func WithCreationPredicate(pred gate.Predicate) Option {
	return func(s *Service) {
		if pred != nil {
			s.creationPredicate = pred
		}
	}
}

func New(store Store, runner txcontext.Runner, verifier Verifier, opts ...Option) *Service {
	s := &Service{
		store:             store,
		tx:                runner,
		gate:              verifier,
		creationPredicate: gate.ValidIdentity,
		logger:            slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddHealthRecord creates a record owned by owner with an empty ACL.
//
// Errors, in check order: CodeUnauthorized if owner does not satisfy the
// creation predicate, CodeDuplicateID if the id is already in use.
func (s *Service) AddHealthRecord(ctx context.Context, owner id.Principal, recordID id.RecordID, payload []byte) (*models.Record, error) {
	const op = "add_record"
	start := time.Now()
	ctx, span := s.startSpan(ctx, "records.AddHealthRecord", owner, recordID)
	defer span.End()
	defer s.observe(op, start)

	record, err := models.NewRecord(recordID, owner, payload, requestcontext.Now(ctx))
	if err != nil {
		return nil, s.fail(span, op, err)
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.requireIdentity(ctx, owner, s.creationPredicate, "owner does not hold a qualifying identity"); err != nil {
			return err
		}
		if err := s.store.Create(ctx, record); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return dErrors.New(dErrors.CodeDuplicateID, "record id already exists")
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, s.fail(span, op, wrapStoreErr(err, "failed to create record"))
	}

	if s.metrics != nil {
		s.metrics.IncrementCreated()
	}
	s.logger.InfoContext(ctx, "health record created",
		"record_id", recordID.String(),
		"owner", owner.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	s.emitAudit(ctx, audit.Event{
		Action:   audit.EventRecordCreated,
		Actor:    owner,
		Subject:  owner,
		RecordID: &recordID,
		Decision: "created",
	})
	return record, nil
}

// GrantAccess adds grantee to the record's ACL. Granting to an existing
// grantee or to the owner succeeds without change.
//
// Errors, in check order: CodeNotFound, CodeNotOwner, CodeUnauthorized when
// the owner no longer holds a valid identity.
func (s *Service) GrantAccess(ctx context.Context, caller id.Principal, recordID id.RecordID, grantee id.Principal) error {
	const op = "grant_access"
	start := time.Now()
	ctx, span := s.startSpan(ctx, "records.GrantAccess", caller, recordID)
	span.SetAttributes(attribute.String(telemetry.AttrGrantee, grantee.String()))
	defer span.End()
	defer s.observe(op, start)

	if grantee.IsZero() {
		return s.fail(span, op, dErrors.New(dErrors.CodeBadRequest, "grantee is required"))
	}

	var changed bool
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.requireOwner(ctx, caller, recordID); err != nil {
			return err
		}
		var err error
		changed, err = s.store.AddGrant(ctx, recordID, grantee)
		return err
	})
	if err != nil {
		return s.fail(span, op, wrapStoreErr(err, "failed to grant access"))
	}
	if !changed {
		telemetry.AddEvent(span, "records.grant_noop")
		return nil
	}

	if s.metrics != nil {
		s.metrics.IncrementGranted()
	}
	s.logger.InfoContext(ctx, "record access granted",
		"record_id", recordID.String(),
		"grantee", grantee.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	s.emitAudit(ctx, audit.Event{
		Action:   audit.EventAccessGranted,
		Actor:    caller,
		Subject:  grantee,
		RecordID: &recordID,
		Decision: "granted",
	})
	return nil
}

// RevokeAccess removes grantee from the record's ACL. Revoking an absent
// grantee succeeds without change. Errors follow GrantAccess.
func (s *Service) RevokeAccess(ctx context.Context, caller id.Principal, recordID id.RecordID, grantee id.Principal) error {
	const op = "revoke_access"
	start := time.Now()
	ctx, span := s.startSpan(ctx, "records.RevokeAccess", caller, recordID)
	span.SetAttributes(attribute.String(telemetry.AttrGrantee, grantee.String()))
	defer span.End()
	defer s.observe(op, start)

	var changed bool
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.requireOwner(ctx, caller, recordID); err != nil {
			return err
		}
		var err error
		changed, err = s.store.RemoveGrant(ctx, recordID, grantee)
		return err
	})
	if err != nil {
		return s.fail(span, op, wrapStoreErr(err, "failed to revoke access"))
	}
	if !changed {
		telemetry.AddEvent(span, "records.revoke_noop")
		return nil
	}

	if s.metrics != nil {
		s.metrics.IncrementRevoked()
	}
	s.logger.InfoContext(ctx, "record access revoked",
		"record_id", recordID.String(),
		"grantee", grantee.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	s.emitAudit(ctx, audit.Event{
		Action:   audit.EventAccessRevoked,
		Actor:    caller,
		Subject:  grantee,
		RecordID: &recordID,
		Decision: "revoked",
	})
	return nil
}

// GetHealthRecord returns the record if caller is its owner or a grantee.
// The reader's own identity is not checked. Denials are audited.
func (s *Service) GetHealthRecord(ctx context.Context, caller id.Principal, recordID id.RecordID) (*models.Record, error) {
	const op = "get_record"
	start := time.Now()
	ctx, span := s.startSpan(ctx, "records.GetHealthRecord", caller, recordID)
	defer span.End()
	defer s.observe(op, start)

	record, err := s.find(ctx, recordID)
	if err != nil {
		return nil, s.fail(span, op, err)
	}
	if !record.IsAuthorized(caller) {
		if s.metrics != nil {
			s.metrics.IncrementReadsDenied()
		}
		s.logger.WarnContext(ctx, "record read denied",
			"record_id", recordID.String(),
			"caller", caller.String(),
			"request_id", requestcontext.RequestID(ctx),
		)
		s.emitAudit(ctx, audit.Event{
			Action:   audit.EventRecordReadDenied,
			Actor:    caller,
			Subject:  record.Owner,
			RecordID: &recordID,
			Decision: "denied",
			Reason:   "caller is neither owner nor grantee",
		})
		return nil, s.fail(span, op, dErrors.New(dErrors.CodeUnauthorized, "caller is not authorized to read this record"))
	}
	return record, nil
}

// IsAuthorized reports whether principal may read the record. A missing
// record is not an error.
func (s *Service) IsAuthorized(ctx context.Context, principal id.Principal, recordID id.RecordID) (bool, error) {
	record, err := s.find(ctx, recordID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return false, nil
		}
		return false, err
	}
	return record.IsAuthorized(principal), nil
}

// ListGrantees returns the record's ACL. Only the owner may list it.
func (s *Service) ListGrantees(ctx context.Context, caller id.Principal, recordID id.RecordID) ([]id.Principal, error) {
	record, err := s.find(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if !record.IsOwner(caller) {
		return nil, dErrors.New(dErrors.CodeNotOwner, "only the owner can list grantees")
	}
	return record.Grantees(), nil
}

// requireOwner checks existence, then ownership, then that the owner still
// holds a valid identity.
func (s *Service) requireOwner(ctx context.Context, caller id.Principal, recordID id.RecordID) error {
	record, err := s.find(ctx, recordID)
	if err != nil {
		return err
	}
	if !record.IsOwner(caller) {
		return dErrors.New(dErrors.CodeNotOwner, "caller does not own this record")
	}
	return s.requireIdentity(ctx, caller, gate.ValidIdentity, "owner does not hold a valid identity")
}

func (s *Service) requireIdentity(ctx context.Context, principal id.Principal, pred gate.Predicate, msg string) error {
	ok, err := s.gate.Verify(ctx, principal, pred)
	if err != nil {
		return err
	}
	if !ok {
		return dErrors.New(dErrors.CodeUnauthorized, msg)
	}
	return nil
}

func (s *Service) find(ctx context.Context, recordID id.RecordID) (*models.Record, error) {
	record, err := s.store.FindByID(ctx, recordID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "record not found")
		}
		return nil, wrapStoreErr(err, "failed to load record")
	}
	return record, nil
}

func (s *Service) startSpan(ctx context.Context, name string, caller id.Principal, recordID id.RecordID) (context.Context, trace.Span) {
	return telemetry.StartSpan(ctx, tracerName, name,
		attribute.String(telemetry.AttrCaller, caller.String()),
		attribute.String(telemetry.AttrRecordID, recordID.String()),
	)
}

func (s *Service) fail(span trace.Span, op string, err error) error {
	telemetry.RecordError(span, err)
	if s.metrics != nil {
		s.metrics.IncrementRejected(op, string(dErrors.CodeOf(err)))
	}
	return err
}

func (s *Service) observe(op string, start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveOperation(op, start)
	}
}

func (s *Service) emitAudit(ctx context.Context, event audit.Event) {
	if s.auditPublisher == nil {
		return
	}
	event.RequestID = requestcontext.RequestID(ctx)
	event.Timestamp = requestcontext.Now(ctx)
	if err := s.auditPublisher.Emit(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to emit audit event",
			"action", event.Action,
			"error", err,
			"request_id", event.RequestID,
		)
	}
}

// wrapStoreErr keeps coded errors and wraps everything else as internal.
func wrapStoreErr(err error, msg string) error {
	if _, ok := dErrors.From(err); ok {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}
