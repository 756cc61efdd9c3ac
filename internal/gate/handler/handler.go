package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"proofid/internal/gate"
	id "proofid/pkg/domain"
	"proofid/pkg/platform/httputil"
	"proofid/pkg/requestcontext"
)

// Verifier checks a principal against a predicate.
type Verifier interface {
	Verify(ctx context.Context, principal id.Principal, pred gate.Predicate) (bool, error)
}

type Handler struct {
	verifier Verifier
	logger   *slog.Logger
}

func New(verifier Verifier, logger *slog.Logger) *Handler {
	return &Handler{verifier: verifier, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/v1/identities/{principal}/verify", h.handleVerify)
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, err := id.ParsePrincipal(chi.URLParam(r, "principal"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req gate.PredicateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil && !isEmptyBody(err) {
		httputil.WriteError(w, err)
		return
	}
	pred, err := req.Build()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	allowed, err := h.verifier.Verify(ctx, principal, pred)
	if err != nil {
		h.logger.ErrorContext(ctx, "verification failed",
			"principal", principal.String(),
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, gate.VerifyResponse{Allowed: allowed})
}

// isEmptyBody lets an empty body stand for the valid_identity predicate.
func isEmptyBody(err error) bool {
	return errors.Is(err, io.EOF)
}
