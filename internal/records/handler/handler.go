package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"proofid/internal/records/models"
	id "proofid/pkg/domain"
	dErrors "proofid/pkg/domain-errors"
	"proofid/pkg/platform/httputil"
	"proofid/pkg/requestcontext"
)

// Service is the health record store as seen by HTTP.
type Service interface {
	AddHealthRecord(ctx context.Context, owner id.Principal, recordID id.RecordID, payload []byte) (*models.Record, error)
	GrantAccess(ctx context.Context, caller id.Principal, recordID id.RecordID, grantee id.Principal) error
	RevokeAccess(ctx context.Context, caller id.Principal, recordID id.RecordID, grantee id.Principal) error
	GetHealthRecord(ctx context.Context, caller id.Principal, recordID id.RecordID) (*models.Record, error)
	IsAuthorized(ctx context.Context, principal id.Principal, recordID id.RecordID) (bool, error)
	ListGrantees(ctx context.Context, caller id.Principal, recordID id.RecordID) ([]id.Principal, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts record routes. Everything except the authorization probe
// requires an authenticated caller.
func (h *Handler) Register(r chi.Router, requireAuth func(http.Handler) http.Handler) {
	r.Get("/v1/records/{id}/authorized/{principal}", h.handleIsAuthorized)

	r.Group(func(r chi.Router) {
		r.Use(requireAuth)
		r.Post("/v1/records", h.handleAddRecord)
		r.Get("/v1/records/{id}", h.handleGetRecord)
		r.Get("/v1/records/{id}/grants", h.handleListGrantees)
		r.Post("/v1/records/{id}/grants", h.handleGrantAccess)
		r.Delete("/v1/records/{id}/grants/{grantee}", h.handleRevokeAccess)
	})
}

func (h *Handler) handleAddRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req models.AddRecordRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	recordID, err := req.Parse()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	record, err := h.service.AddHealthRecord(ctx, requestcontext.Principal(ctx), recordID, req.Payload)
	if err != nil {
		h.logFailure(ctx, "add health record failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, models.ToResponse(record))
}

func (h *Handler) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	recordID, err := id.ParseRecordID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	record, err := h.service.GetHealthRecord(ctx, requestcontext.Principal(ctx), recordID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.ToResponse(record))
}

func (h *Handler) handleGrantAccess(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	recordID, err := id.ParseRecordID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req models.GrantAccessRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	grantee, err := req.Parse()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.service.GrantAccess(ctx, requestcontext.Principal(ctx), recordID, grantee); err != nil {
		h.logFailure(ctx, "grant access failed", err)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRevokeAccess(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	recordID, grantee, err := parseRecordAndPrincipal(r, "grantee")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.service.RevokeAccess(ctx, requestcontext.Principal(ctx), recordID, grantee); err != nil {
		h.logFailure(ctx, "revoke access failed", err)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListGrantees(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	recordID, err := id.ParseRecordID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	grantees, err := h.service.ListGrantees(ctx, requestcontext.Principal(ctx), recordID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.ToGranteesResponse(grantees))
}

func (h *Handler) handleIsAuthorized(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	recordID, principal, err := parseRecordAndPrincipal(r, "principal")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	ok, err := h.service.IsAuthorized(ctx, principal, recordID)
	if err != nil {
		h.logFailure(ctx, "authorization check failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.AuthorizedResponse{Authorized: ok})
}

func parseRecordAndPrincipal(r *http.Request, param string) (id.RecordID, id.Principal, error) {
	recordID, err := id.ParseRecordID(chi.URLParam(r, "id"))
	if err != nil {
		return 0, id.Principal{}, err
	}
	principal, err := id.ParsePrincipal(chi.URLParam(r, param))
	if err != nil {
		return 0, id.Principal{}, err
	}
	return recordID, principal, nil
}

func (h *Handler) logFailure(ctx context.Context, msg string, err error) {
	level := slog.LevelWarn
	if dErrors.CodeOf(err).Category() == dErrors.CategoryInfrastructure {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, msg,
		"error", err,
		"caller", requestcontext.Principal(ctx).String(),
		"request_id", requestcontext.RequestID(ctx),
	)
}
