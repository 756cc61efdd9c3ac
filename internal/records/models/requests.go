package models

import (
	"time"

	id "proofid/pkg/domain"
	dErrors "proofid/pkg/domain-errors"
)

// AddRecordRequest is the body of POST /v1/records. Payload is base64 on the wire.
type AddRecordRequest struct {
	ID      *uint64 `json:"id"`
	Payload []byte  `json:"payload"`
}

func (r *AddRecordRequest) Parse() (id.RecordID, error) {
	if r.ID == nil {
		return 0, dErrors.New(dErrors.CodeBadRequest, "id is required")
	}
	return id.RecordID(*r.ID), nil
}

// GrantAccessRequest is the body of POST /v1/records/{id}/grants.
type GrantAccessRequest struct {
	Grantee string `json:"grantee"`
}

func (r *GrantAccessRequest) Parse() (id.Principal, error) {
	if r.Grantee == "" {
		return id.Principal{}, dErrors.New(dErrors.CodeBadRequest, "grantee is required")
	}
	return id.ParsePrincipal(r.Grantee)
}

type RecordResponse struct {
	ID        uint64    `json:"id"`
	Owner     string    `json:"owner"`
	Payload   []byte    `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
}

func ToResponse(r *Record) RecordResponse {
	return RecordResponse{
		ID:        uint64(r.ID),
		Owner:     r.Owner.String(),
		Payload:   r.Payload,
		CreatedAt: r.CreatedAt.UTC(),
	}
}

type GranteesResponse struct {
	Grantees []string `json:"grantees"`
}

func ToGranteesResponse(grantees []id.Principal) GranteesResponse {
	out := make([]string, 0, len(grantees))
	for _, g := range grantees {
		out = append(out, g.String())
	}
	return GranteesResponse{Grantees: out}
}

type AuthorizedResponse struct {
	Authorized bool `json:"authorized"`
}
