// Package service implements the identity registry: admin-only issuance and
// revocation of time-limited credentials, and validity reads.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"proofid/internal/identity/metrics"
	"proofid/internal/identity/models"
	"proofid/internal/platform/telemetry"
	id "proofid/pkg/domain"
	dErrors "proofid/pkg/domain-errors"
	audit "proofid/pkg/platform/audit"
	"proofid/pkg/platform/sentinel"
	txcontext "proofid/pkg/platform/tx"
	"proofid/pkg/requestcontext"
)

const tracerName = "proofid/identity"

// Store persists identities. Implementations return sentinel errors.
type Store interface {
	// CreateIfNotValid returns sentinel.ErrAlreadyUsed when the principal holds
	// a valid identity at now; otherwise it stores identity, replacing any prior one.
	CreateIfNotValid(ctx context.Context, identity *models.Identity, now time.Time) error
	// Execute atomically mutates an existing identity and returns the stored result.
	Execute(ctx context.Context, principal id.Principal, mutate func(*models.Identity)) (*models.Identity, error)
	FindByPrincipal(ctx context.Context, principal id.Principal) (*models.Identity, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type Service struct {
	store          Store
	tx             txcontext.Runner
	admins         map[id.Principal]struct{}
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
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

// New constructs the registry with a fixed admin set. The set must be
// non-empty; it cannot be changed after construction.
func New(store Store, runner txcontext.Runner, admins []id.Principal, opts ...Option) (*Service, error) {
	if len(admins) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "at least one admin principal is required")
	}
	set := make(map[id.Principal]struct{}, len(admins))
	for _, a := range admins {
		if a.IsZero() {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "admin principal cannot be the zero address")
		}
		set[a] = struct{}{}
	}

	s := &Service{
		store:  store,
		tx:     runner,
		admins: set,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// IsAdmin reports whether principal is in the admin set.
func (s *Service) IsAdmin(principal id.Principal) bool {
	_, ok := s.admins[principal]
	return ok
}

// IssueIdentity grants principal a credential valid until expiresAt.
//
// Errors, in check order: CodeUnauthorized if admin is not an admin,
// CodeInvalidExpiry if expiresAt is not in the future, CodeAlreadyIssued if
// principal already holds a valid identity.
func (s *Service) IssueIdentity(ctx context.Context, admin, principal id.Principal, attributes map[string]string, expiresAt time.Time) (*models.Identity, error) {
	start := time.Now()
	ctx, span := telemetry.StartSpan(ctx, tracerName, "identity.IssueIdentity",
		attribute.String(telemetry.AttrCaller, admin.String()),
		attribute.String(telemetry.AttrPrincipal, principal.String()),
	)
	defer span.End()

	identity, err := s.issue(ctx, admin, principal, attributes, expiresAt)
	if s.metrics != nil {
		s.metrics.ObserveIssue(start)
	}
	if err != nil {
		telemetry.RecordError(span, err)
		s.incrementIssueRejected(err)
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncrementIssued()
	}
	s.logger.InfoContext(ctx, "identity issued",
		"principal", principal.String(),
		"expires_at", identity.ExpiresAt,
		"request_id", requestcontext.RequestID(ctx),
	)
	s.emitAudit(ctx, audit.Event{
		Action:   audit.EventIdentityIssued,
		Actor:    admin,
		Subject:  principal,
		Decision: "issued",
	})
	return identity, nil
}

func (s *Service) issue(ctx context.Context, admin, principal id.Principal, attributes map[string]string, expiresAt time.Time) (*models.Identity, error) {
	if !s.IsAdmin(admin) {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "caller is not an admin")
	}

	now := requestcontext.Now(ctx)
	identity, err := models.NewIdentity(principal, attributes, now, expiresAt)
	if err != nil {
		return nil, err
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		return s.store.CreateIfNotValid(ctx, identity, now)
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.New(dErrors.CodeAlreadyIssued, "principal already holds a valid identity")
		}
		return nil, wrapStoreErr(err, "failed to issue identity")
	}
	return identity, nil
}

// RevokeIdentity revokes principal's credential. Revoking an already revoked
// identity succeeds without further change.
func (s *Service) RevokeIdentity(ctx context.Context, admin, principal id.Principal) (*models.Identity, error) {
	start := time.Now()
	ctx, span := telemetry.StartSpan(ctx, tracerName, "identity.RevokeIdentity",
		attribute.String(telemetry.AttrCaller, admin.String()),
		attribute.String(telemetry.AttrPrincipal, principal.String()),
	)
	defer span.End()
	defer func() {
		if s.metrics != nil {
			s.metrics.ObserveRevoke(start)
		}
	}()

	if !s.IsAdmin(admin) {
		err := dErrors.New(dErrors.CodeUnauthorized, "caller is not an admin")
		telemetry.RecordError(span, err)
		return nil, err
	}

	var changed bool
	var identity *models.Identity
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		identity, err = s.store.Execute(ctx, principal, func(i *models.Identity) { changed = i.Revoke() })
		return err
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			err = dErrors.New(dErrors.CodeNotFound, "identity not found")
		} else {
			err = wrapStoreErr(err, "failed to revoke identity")
		}
		telemetry.RecordError(span, err)
		return nil, err
	}

	if !changed {
		telemetry.AddEvent(span, "identity.already_revoked")
		return identity, nil
	}
	if s.metrics != nil {
		s.metrics.IncrementRevoked()
	}
	s.logger.InfoContext(ctx, "identity revoked",
		"principal", principal.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	s.emitAudit(ctx, audit.Event{
		Action:   audit.EventIdentityRevoked,
		Actor:    admin,
		Subject:  principal,
		Decision: "revoked",
	})
	return identity, nil
}

// GetIdentity returns the stored identity or CodeNotFound. Reads take no
// transaction of their own so they compose inside another operation's.
func (s *Service) GetIdentity(ctx context.Context, principal id.Principal) (*models.Identity, error) {
	identity, err := s.store.FindByPrincipal(ctx, principal)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "identity not found")
		}
		return nil, wrapStoreErr(err, "failed to load identity")
	}
	return identity, nil
}

// IsValid reports whether principal holds a non-revoked, unexpired identity.
// An absent identity is not an error.
func (s *Service) IsValid(ctx context.Context, principal id.Principal) (bool, error) {
	identity, err := s.GetIdentity(ctx, principal)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return false, nil
		}
		return false, err
	}
	return identity.IsValid(requestcontext.Now(ctx)), nil
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

func (s *Service) incrementIssueRejected(err error) {
	if s.metrics != nil {
		s.metrics.IncrementIssueRejected(string(dErrors.CodeOf(err)))
	}
}

// wrapStoreErr keeps coded errors (e.g. CodeTimeout from the runner) and
// wraps everything else as internal.
func wrapStoreErr(err error, msg string) error {
	if _, ok := dErrors.From(err); ok {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}
