package models

import (
	"bytes"
	"slices"
	"time"

	id "proofid/pkg/domain"
	dErrors "proofid/pkg/domain-errors"
)

// MaxPayloadBytes bounds a single record payload.
const MaxPayloadBytes = 512 << 10

// Record is an owner's opaque health-data blob and the set of principals the
// owner has delegated read access to. The owner is implicitly authorized and
// never appears in ACL.
type Record struct {
	ID        id.RecordID
	Owner     id.Principal
	Payload   []byte
	CreatedAt time.Time
	ACL       map[id.Principal]struct{}
}

// NewRecord builds a record with an empty ACL. The payload is copied.
func NewRecord(recordID id.RecordID, owner id.Principal, payload []byte, now time.Time) (*Record, error) {
	if owner.IsZero() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "owner is required")
	}
	if len(payload) > MaxPayloadBytes {
		return nil, dErrors.New(dErrors.CodeBadRequest, "payload too large")
	}
	return &Record{
		ID:        recordID,
		Owner:     owner,
		Payload:   bytes.Clone(payload),
		CreatedAt: now,
		ACL:       make(map[id.Principal]struct{}),
	}, nil
}

func (r *Record) IsOwner(p id.Principal) bool {
	return r.Owner == p
}

// IsAuthorized reports whether p may read the record.
func (r *Record) IsAuthorized(p id.Principal) bool {
	if r == nil {
		return false
	}
	if r.IsOwner(p) {
		return true
	}
	_, ok := r.ACL[p]
	return ok
}

// Grant adds p to the ACL and reports whether the ACL changed. Granting to
// the owner never changes anything.
func (r *Record) Grant(p id.Principal) bool {
	if r.IsOwner(p) {
		return false
	}
	if _, ok := r.ACL[p]; ok {
		return false
	}
	if r.ACL == nil {
		r.ACL = make(map[id.Principal]struct{})
	}
	r.ACL[p] = struct{}{}
	return true
}

// Revoke removes p from the ACL and reports whether the ACL changed.
func (r *Record) Revoke(p id.Principal) bool {
	if _, ok := r.ACL[p]; !ok {
		return false
	}
	delete(r.ACL, p)
	return true
}

// Grantees returns the ACL in canonical order.
func (r *Record) Grantees() []id.Principal {
	out := make([]id.Principal, 0, len(r.ACL))
	for p := range r.ACL {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b id.Principal) int {
		return bytes.Compare(a[:], b[:])
	})
	return out
}

func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	clone := *r
	clone.Payload = bytes.Clone(r.Payload)
	clone.ACL = make(map[id.Principal]struct{}, len(r.ACL))
	for p := range r.ACL {
		clone.ACL[p] = struct{}{}
	}
	return &clone
}
