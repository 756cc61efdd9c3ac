// Package gate answers whether a principal currently satisfies an identity
// predicate. It reads the identity registry at call time and keeps no cache
// of validity.
package gate

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"proofid/internal/gate/metrics"
	"proofid/internal/identity/models"
	"proofid/internal/platform/telemetry"
	id "proofid/pkg/domain"
	dErrors "proofid/pkg/domain-errors"
	"proofid/pkg/requestcontext"
)

const tracerName = "proofid/gate"

// IdentityReader is the read side of the identity registry.
type IdentityReader interface {
	GetIdentity(ctx context.Context, principal id.Principal) (*models.Identity, error)
}

type Gate struct {
	identities IdentityReader
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

type Option func(*Gate)

func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) {
		g.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gate) {
		g.metrics = m
	}
}

func New(identities IdentityReader, opts ...Option) *Gate {
	g := &Gate{
		identities: identities,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Verify reports whether principal holds a valid identity satisfying pred.
// A nil pred means ValidIdentity. An absent identity yields false; the error
// is non-nil only when the registry could not be read.
func (g *Gate) Verify(ctx context.Context, principal id.Principal, pred Predicate) (bool, error) {
	if pred == nil {
		pred = ValidIdentity
	}
	ctx, span := telemetry.StartSpan(ctx, tracerName, "gate.Verify",
		attribute.String(telemetry.AttrPrincipal, principal.String()),
		attribute.String(telemetry.AttrPredicate, pred.Name()),
	)
	defer span.End()

	identity, err := g.identities.GetIdentity(ctx, principal)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			g.record(pred, false)
			span.SetAttributes(attribute.Bool(telemetry.AttrAllowed, false))
			return false, nil
		}
		telemetry.RecordError(span, err)
		if g.metrics != nil {
			g.metrics.IncrementVerifyError()
		}
		g.logger.ErrorContext(ctx, "identity lookup failed during verification",
			"principal", principal.String(),
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		return false, err
	}

	allowed := identity.IsValid(requestcontext.Now(ctx)) && pred.Allows(identity)
	g.record(pred, allowed)
	span.SetAttributes(attribute.Bool(telemetry.AttrAllowed, allowed))
	return allowed, nil
}

func (g *Gate) record(pred Predicate, allowed bool) {
	if g.metrics != nil {
		g.metrics.IncrementVerification(pred.Name(), allowed)
	}
}
