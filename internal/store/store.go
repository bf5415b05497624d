// Package store persists deliveries, subscribers, and the audit/engagement
// event streams in a single DynamoDB table. Deliveries are stored as native
// attributes so feedback events can patch individual fields; subscribers
// and event records are stored as JSON blobs inside a thin key wrapper.
package store

import (
	"context"
	"time"

	"github.com/ignite/feedback-processor/internal/domain"
)

// Store is the persistence contract the feedback pipeline depends on. All
// writes are idempotent under re-application, which makes queue redelivery
// after a partial batch failure safe.
type Store interface {
	// GetDelivery loads a delivery record. Returns (nil, nil) if absent and
	// ErrCorruptRecord if the stored item cannot be parsed.
	GetDelivery(ctx context.Context, id string) (*domain.DeliveryRecord, error)

	// UpsertDelivery applies the decided delivery fields. CreatedAt is set
	// only if absent (first-write-wins); the listed fields are overwritten
	// unconditionally.
	UpsertDelivery(ctx context.Context, id string, fields DeliveryFields) error

	// GetSubscriber loads a subscriber record. Returns (nil, nil) if absent
	// and ErrCorruptRecord if the stored item cannot be parsed.
	GetSubscriber(ctx context.Context, id string) (*domain.Subscriber, error)

	// PutSubscriber overwrites the subscriber record.
	PutSubscriber(ctx context.Context, sub *domain.Subscriber) error

	// PutAuditEvents appends audit trail records. Audit rows are never
	// mutated or deleted.
	PutAuditEvents(ctx context.Context, events []domain.AuditEvent) error

	// PutEngagementEvents appends engagement telemetry records, stamping
	// each with a retention expiry ttlDays from its occurrence time. The
	// table's TTL mechanism purges them after expiry.
	PutEngagementEvents(ctx context.Context, events []domain.EngagementEvent, ttlDays int) error
}

// DeliveryFields is the per-event patch UpsertDelivery applies. Each feedback
// event type maps to a disjoint timestamp field, so last-write-wins on the
// shared fields is safe; bounce retries are disambiguated by the attempt
// count carried in the tags, not by overwrite order.
type DeliveryFields struct {
	CampaignID        string
	SubscriberID      string
	Status            domain.DeliveryStatus
	StatusAt          time.Time
	BounceReason      string
	AttemptCount      *int
	ProviderMessageID string
}
