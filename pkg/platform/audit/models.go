package audit

import (
	"context"
	"time"

	id "proofid/pkg/domain"

	"github.com/google/uuid"
)

// EventCategory classifies audit events by their primary purpose.
type EventCategory string

const (
	// CategoryCompliance covers state changes with regulatory significance:
	// credential issuance and revocation, record creation, ACL changes.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers denied access attempts.
	CategorySecurity EventCategory = "security"
)

type AuditEvent string

const (
	EventIdentityIssued   AuditEvent = "identity_issued"
	EventIdentityRevoked  AuditEvent = "identity_revoked"
	EventRecordCreated    AuditEvent = "record_created"
	EventAccessGranted    AuditEvent = "access_granted"
	EventAccessRevoked    AuditEvent = "access_revoked"
	EventRecordReadDenied AuditEvent = "record_read_denied"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventIdentityIssued:   CategoryCompliance,
	EventIdentityRevoked:  CategoryCompliance,
	EventRecordCreated:    CategoryCompliance,
	EventAccessGranted:    CategoryCompliance,
	EventAccessRevoked:    CategoryCompliance,
	EventRecordReadDenied: CategorySecurity,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategorySecurity.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategorySecurity
}

// Event is emitted from domain logic after a mutation commits or a read is
// denied. Keep it transport-agnostic so stores and sinks can fan out.
type Event struct {
	ID        uuid.UUID
	Category  EventCategory
	Timestamp time.Time
	Action    AuditEvent
	// Actor is the principal that performed the action.
	Actor id.Principal
	// Subject is the principal acted upon (issued identity, grantee), if any.
	Subject  id.Principal
	RecordID *id.RecordID
	Decision string
	Reason   string
	// RequestID is the correlation id from the HTTP request context.
	RequestID string
}

// Involves reports whether p is the actor or subject of the event.
func (e Event) Involves(p id.Principal) bool {
	return e.Actor == p || (!e.Subject.IsZero() && e.Subject == p)
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByPrincipal(ctx context.Context, principal id.Principal) ([]Event, error)
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}

// Sink receives a copy of every persisted event, e.g. a message broker.
type Sink interface {
	Send(ctx context.Context, event Event) error
	Close() error
}
