package audit

import (
	"context"
	"time"
)

// EventCategory classifies audit events by their primary purpose so sinks can
// route them to different retention policies.
type EventCategory string

const (
	// CategoryCompliance covers consent changes, which have legal significance.
	CategoryCompliance EventCategory = "compliance"
	// CategorySecurity covers failed client authentication and token misuse.
	CategorySecurity EventCategory = "security"
	// CategoryOperations covers routine token issuance.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	UserID    int64
	ClientID  string
	FlowID    int64
	Action    string
	Scopes    []string
	Reason    string
	RequestID string
}

type AuditEvent string

const (
	EventConsentGranted        AuditEvent = "oauth_consent_granted"
	EventSilentReauthorization AuditEvent = "oauth_silent_reauthorization"
	EventTokenIssued           AuditEvent = "oauth_token_issued"
	EventTokenRefreshed        AuditEvent = "oauth_token_refreshed"
	EventClientAuthFailed      AuditEvent = "oauth_client_auth_failed"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventConsentGranted:        CategoryCompliance,
	EventSilentReauthorization: CategoryCompliance,
	EventClientAuthFailed:      CategorySecurity,
	EventTokenIssued:           CategoryOperations,
	EventTokenRefreshed:        CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists audit events. The Postgres implementation joins the caller's
// transaction when one is present in ctx.
type Store interface {
	Append(ctx context.Context, event Event) error
}
