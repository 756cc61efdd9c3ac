package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"proofid/internal/identity/models"
	id "proofid/pkg/domain"
	"proofid/pkg/platform/httputil"
	"proofid/pkg/requestcontext"
)

// Service is the identity registry as seen by HTTP.
type Service interface {
	IssueIdentity(ctx context.Context, admin, principal id.Principal, attributes map[string]string, expiresAt time.Time) (*models.Identity, error)
	RevokeIdentity(ctx context.Context, admin, principal id.Principal) (*models.Identity, error)
	GetIdentity(ctx context.Context, principal id.Principal) (*models.Identity, error)
	IsValid(ctx context.Context, principal id.Principal) (bool, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts identity routes. Mutations require an authenticated caller;
// reads are public.
func (h *Handler) Register(r chi.Router, requireAuth func(http.Handler) http.Handler) {
	r.Get("/v1/identities/{principal}", h.handleGetIdentity)
	r.Get("/v1/identities/{principal}/valid", h.handleIsValid)

	r.Group(func(r chi.Router) {
		r.Use(requireAuth)
		r.Post("/v1/identities", h.handleIssueIdentity)
		r.Post("/v1/identities/{principal}/revoke", h.handleRevokeIdentity)
	})
}

func (h *Handler) handleIssueIdentity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := requestcontext.Principal(ctx)

	var req models.IssueIdentityRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	principal, err := req.Parse()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	identity, err := h.service.IssueIdentity(ctx, caller, principal, req.Attributes, req.ExpiresAt)
	if err != nil {
		h.logFailure(ctx, "issue identity failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, models.ToResponse(identity, requestcontext.Now(ctx)))
}

func (h *Handler) handleRevokeIdentity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, err := id.ParsePrincipal(chi.URLParam(r, "principal"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if _, err := h.service.RevokeIdentity(ctx, requestcontext.Principal(ctx), principal); err != nil {
		h.logFailure(ctx, "revoke identity failed", err)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGetIdentity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, err := id.ParsePrincipal(chi.URLParam(r, "principal"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	identity, err := h.service.GetIdentity(ctx, principal)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.ToResponse(identity, requestcontext.Now(ctx)))
}

func (h *Handler) handleIsValid(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, err := id.ParsePrincipal(chi.URLParam(r, "principal"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	valid, err := h.service.IsValid(ctx, principal)
	if err != nil {
		h.logFailure(ctx, "identity validity check failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.ValidityResponse{Valid: valid})
}

func (h *Handler) logFailure(ctx context.Context, msg string, err error) {
	h.logger.WarnContext(ctx, msg,
		"error", err,
		"caller", requestcontext.Principal(ctx).String(),
		"request_id", requestcontext.RequestID(ctx),
	)
}
