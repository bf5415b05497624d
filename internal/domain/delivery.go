package domain

import "time"

// DeliveryStatus enumerates the states of one outbound message attempt.
type DeliveryStatus string

const (
	DeliveryPending    DeliveryStatus = "pending"
	DeliverySent       DeliveryStatus = "sent"
	DeliveryDelivered  DeliveryStatus = "delivered"
	DeliveryBounced    DeliveryStatus = "bounced"
	DeliveryComplained DeliveryStatus = "complained"
	DeliveryRejected   DeliveryStatus = "rejected"
	DeliveryFailed     DeliveryStatus = "failed"
)

// DeliveryRecord tracks one attempt to send a single email to a single
// subscriber within a campaign. Records are created when a send is attempted
// and mutated exactly once per distinct feedback event. They are never
// deleted.
type DeliveryRecord struct {
	ID           string         `json:"id" dynamodbav:"ID"`
	CampaignID   string         `json:"campaign_id" dynamodbav:"CampaignID"`
	SubscriberID string         `json:"subscriber_id" dynamodbav:"SubscriberID"`
	Status       DeliveryStatus `json:"status" dynamodbav:"Status"`

	SentAt       *time.Time `json:"sent_at,omitempty" dynamodbav:"SentAt,omitempty"`
	DeliveredAt  *time.Time `json:"delivered_at,omitempty" dynamodbav:"DeliveredAt,omitempty"`
	BouncedAt    *time.Time `json:"bounced_at,omitempty" dynamodbav:"BouncedAt,omitempty"`
	ComplainedAt *time.Time `json:"complained_at,omitempty" dynamodbav:"ComplainedAt,omitempty"`
	RejectedAt   *time.Time `json:"rejected_at,omitempty" dynamodbav:"RejectedAt,omitempty"`

	AttemptCount      int    `json:"attempt_count" dynamodbav:"AttemptCount"`
	BounceReason      string `json:"bounce_reason,omitempty" dynamodbav:"BounceReason,omitempty"`
	ProviderMessageID string `json:"provider_message_id,omitempty" dynamodbav:"ProviderMessageID,omitempty"`

	CreatedAt time.Time `json:"created_at" dynamodbav:"CreatedAt"`
	UpdatedAt time.Time `json:"updated_at" dynamodbav:"UpdatedAt"`
}

// StatusForEvent maps a feedback event type to the delivery status it
// implies. The boolean is false for event types that carry no delivery
// status (which cannot happen for the closed event union, but callers treat
// it as a drop rather than guessing).
func StatusForEvent(t EventType) (DeliveryStatus, bool) {
	switch t {
	case EventSend:
		return DeliverySent, true
	case EventDelivery:
		return DeliveryDelivered, true
	case EventBounce:
		return DeliveryBounced, true
	case EventComplaint:
		return DeliveryComplained, true
	case EventReject:
		return DeliveryRejected, true
	}
	return "", false
}
