package models

import (
	"time"

	id "proofid/pkg/domain"
	dErrors "proofid/pkg/domain-errors"
)

// IssueIdentityRequest is the body of POST /v1/identities.
type IssueIdentityRequest struct {
	Principal  string            `json:"principal"`
	Attributes map[string]string `json:"attributes"`
	ExpiresAt  time.Time         `json:"expires_at"`
}

// Parse validates the request shape and returns the typed principal.
func (r *IssueIdentityRequest) Parse() (id.Principal, error) {
	if r.Principal == "" {
		return id.Principal{}, dErrors.New(dErrors.CodeBadRequest, "principal is required")
	}
	if r.ExpiresAt.IsZero() {
		return id.Principal{}, dErrors.New(dErrors.CodeBadRequest, "expires_at is required")
	}
	return id.ParsePrincipal(r.Principal)
}

// IdentityResponse is the wire form of an identity.
type IdentityResponse struct {
	Principal  string            `json:"principal"`
	Attributes map[string]string `json:"attributes"`
	IssuedAt   time.Time         `json:"issued_at"`
	ExpiresAt  time.Time         `json:"expires_at"`
	Revoked    bool              `json:"revoked"`
	Valid      bool              `json:"valid"`
}

// ToResponse renders an identity as seen at now.
func ToResponse(i *Identity, now time.Time) IdentityResponse {
	attrs := i.Attributes
	if attrs == nil {
		attrs = map[string]string{}
	}
	return IdentityResponse{
		Principal:  i.Principal.String(),
		Attributes: attrs,
		IssuedAt:   i.IssuedAt.UTC(),
		ExpiresAt:  i.ExpiresAt.UTC(),
		Revoked:    i.Revoked,
		Valid:      i.IsValid(now),
	}
}

// ValidityResponse is the body of GET /v1/identities/{principal}/valid.
type ValidityResponse struct {
	Valid bool `json:"valid"`
}
