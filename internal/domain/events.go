package domain

import "time"

// AuditEventType enumerates the audit trail entry types this pipeline emits.
type AuditEventType string

const (
	AuditEmailDelivered  AuditEventType = "EMAIL_DELIVERED"
	AuditEmailBounced    AuditEventType = "EMAIL_BOUNCED"
	AuditEmailComplained AuditEventType = "EMAIL_COMPLAINED"
)

// ActorSystem is the actor recorded on audit events produced by automated
// feedback processing (as opposed to an admin or the subscriber themselves).
const ActorSystem = "system"

// AuditEvent is one append-only record of a state transition. Audit events
// are never mutated or deleted. Duplicate rows are possible under
// at-least-once delivery; downstream consumers deduplicate by ID.
type AuditEvent struct {
	ID         string            `json:"id"`
	Type       AuditEventType    `json:"type"`
	EntityType string            `json:"entity_type"`
	EntityID   string            `json:"entity_id"`
	ActorType  string            `json:"actor_type"`
	OccurredAt time.Time         `json:"occurred_at"`
	Detail     map[string]string `json:"detail,omitempty"`
}

// EngagementEventType enumerates the engagement telemetry record types.
type EngagementEventType string

const (
	EngagementDelivery  EngagementEventType = "DELIVERY"
	EngagementBounce    EngagementEventType = "BOUNCE"
	EngagementComplaint EngagementEventType = "COMPLAINT"
)

// EngagementEvent is one time-bounded telemetry record scoped to a
// subscriber, campaign, and delivery. The storage layer stamps a retention
// expiry on each record at write time; expired records are purged by the
// store itself, not by this pipeline.
type EngagementEvent struct {
	ID           string              `json:"id"`
	Type         EngagementEventType `json:"type"`
	SubscriberID string              `json:"subscriber_id"`
	CampaignID   string              `json:"campaign_id"`
	DeliveryID   string              `json:"delivery_id"`
	OccurredAt   time.Time           `json:"occurred_at"`
}
