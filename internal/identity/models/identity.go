package models

import (
	"maps"
	"strings"
	"time"

	id "proofid/pkg/domain"
	dErrors "proofid/pkg/domain-errors"
)

const (
	maxAttributes     = 64
	maxAttributeKey   = 128
	maxAttributeValue = 1024
)

// Identity is a time-limited, revocable credential held by a principal.
// Expiry is derived from ExpiresAt and never stored as a separate state.
type Identity struct {
	Principal  id.Principal
	Attributes map[string]string
	IssuedAt   time.Time
	ExpiresAt  time.Time
	Revoked    bool
}

// MaxExpiry is the latest expiry every backend and the JSON API can represent.
var MaxExpiry = time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC)

// NewIdentity builds a fresh, unrevoked identity issued at now.
// Returns CodeInvalidExpiry if expiresAt is not after now or past MaxExpiry.
// Times are truncated to microseconds so every store round-trips them exactly.
func NewIdentity(principal id.Principal, attributes map[string]string, now, expiresAt time.Time) (*Identity, error) {
	now = now.Truncate(time.Microsecond)
	expiresAt = expiresAt.Truncate(time.Microsecond)
	if !expiresAt.After(now) {
		return nil, dErrors.New(dErrors.CodeInvalidExpiry, "expiry must be in the future")
	}
	if expiresAt.After(MaxExpiry) {
		return nil, dErrors.New(dErrors.CodeInvalidExpiry, "expiry is too far in the future")
	}
	if principal.IsZero() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "principal is required")
	}
	if err := validateAttributes(attributes); err != nil {
		return nil, err
	}
	attrs := make(map[string]string, len(attributes))
	maps.Copy(attrs, attributes)

	return &Identity{
		Principal:  principal,
		Attributes: attrs,
		IssuedAt:   now,
		ExpiresAt:  expiresAt,
	}, nil
}

func validateAttributes(attributes map[string]string) error {
	if len(attributes) > maxAttributes {
		return dErrors.New(dErrors.CodeBadRequest, "too many attributes")
	}
	for k, v := range attributes {
		if strings.TrimSpace(k) == "" {
			return dErrors.New(dErrors.CodeBadRequest, "attribute key cannot be empty")
		}
		if len(k) > maxAttributeKey || len(v) > maxAttributeValue {
			return dErrors.New(dErrors.CodeBadRequest, "attribute too long: "+k)
		}
	}
	return nil
}

// IsValid reports whether the credential is usable at now.
func (i *Identity) IsValid(now time.Time) bool {
	return i != nil && !i.Revoked && now.Before(i.ExpiresAt)
}

// Revoke marks the identity revoked. Returns false if it already was.
func (i *Identity) Revoke() bool {
	if i.Revoked {
		return false
	}
	i.Revoked = true
	return true
}

// Attribute returns the value for key and whether it is present.
func (i *Identity) Attribute(key string) (string, bool) {
	v, ok := i.Attributes[key]
	return v, ok
}

// Clone returns a deep copy so stores never share maps with callers.
func (i *Identity) Clone() *Identity {
	if i == nil {
		return nil
	}
	c := *i
	c.Attributes = maps.Clone(i.Attributes)
	if c.Attributes == nil {
		c.Attributes = map[string]string{}
	}
	return &c
}
