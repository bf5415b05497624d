package lifecycle

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/feedback-processor/internal/domain"
)

// BounceClass is the coarse classification of a bounce event.
type BounceClass string

const (
	// BounceHard marks a permanent failure: the address is invalid and the
	// subscriber must stop receiving mail.
	BounceHard BounceClass = "hard"
	// BounceSoft marks a transient failure: counted, never suppressing.
	BounceSoft BounceClass = "soft"
)

// ClassifyBounce maps the provider's bounce type to a bounce class. The
// boolean is false for types that map to neither class; those events are
// rejected rather than guessed at.
func ClassifyBounce(bounceType string) (BounceClass, bool) {
	switch bounceType {
	case "Permanent":
		return BounceHard, true
	case "Transient":
		return BounceSoft, true
	}
	return "", false
}

// Rejection marks an event the state machine refuses to apply. It is a
// decision, not a failure: the caller consumes the record without retrying.
type Rejection struct {
	Reason string
}

func (r *Rejection) Error() string { return "event rejected: " + r.Reason }

// IsRejection reports whether err is a state machine rejection.
func IsRejection(err error) bool {
	var rej *Rejection
	return errors.As(err, &rej)
}

// Input is the slice of a feedback event the state machine needs. BounceType
// is the provider's raw bounce type and only read for bounce events.
type Input struct {
	Type          domain.EventType
	BounceType    string
	AttemptNumber *int
	CampaignID    string
	DeliveryID    string
	OccurredAt    time.Time
}

// Result is the decided outcome: the next subscriber state and the audit
// and engagement events to persist. The input subscriber is never mutated.
type Result struct {
	Subscriber domain.Subscriber
	Audit      []domain.AuditEvent
	Engagement []domain.EngagementEvent
}

// Apply decides how one feedback event mutates subscriber state. It is a
// total match over the closed event type union; event types that do not
// touch subscriber state (send, reject) and unknown types are rejections.
//
// Re-applying the same event is idempotent with respect to state: a
// delivery against an already-subscribed subscriber and a complaint against
// an already-suppressed one are both no-op transitions. Duplicate audit and
// engagement rows are the accepted cost of at-least-once delivery.
func Apply(in Input, sub domain.Subscriber) (*Result, error) {
	switch in.Type {
	case domain.EventDelivery:
		return applyDelivery(in, sub), nil
	case domain.EventBounce:
		return applyBounce(in, sub)
	case domain.EventComplaint:
		return applyComplaint(in, sub), nil
	case domain.EventSend, domain.EventReject:
		return nil, &Rejection{Reason: fmt.Sprintf("%s events do not mutate subscriber state", in.Type)}
	default:
		return nil, &Rejection{Reason: fmt.Sprintf("unknown event type %q", in.Type)}
	}
}

func applyDelivery(in Input, sub domain.Subscriber) *Result {
	out := sub
	detail := map[string]string{
		"delivery_id": in.DeliveryID,
		"campaign_id": in.CampaignID,
	}

	// Recovery is the only path out of bounced. A delivery-then-bounce
	// arrival order simply re-suppresses later, which is correct either way.
	if sub.Status == domain.SubscriberBounced {
		out.Status = domain.SubscriberSubscribed
		out.BounceCount = 0
		out.LastBounceAt = nil
		detail["recovered"] = "true"
	}
	out.UpdatedAt = in.OccurredAt

	return &Result{
		Subscriber: out,
		Audit:      []domain.AuditEvent{newAudit(domain.AuditEmailDelivered, sub.ID, in.OccurredAt, detail)},
		Engagement: []domain.EngagementEvent{newEngagement(domain.EngagementDelivery, sub.ID, in)},
	}
}

func applyBounce(in Input, sub domain.Subscriber) (*Result, error) {
	class, ok := ClassifyBounce(in.BounceType)
	if !ok {
		return nil, &Rejection{Reason: fmt.Sprintf("unsupported bounce type %q", in.BounceType)}
	}
	// A bounce without attempt context cannot be safely counted; arrival
	// order is not guaranteed, so the attempt number is the disambiguator.
	if class == BounceHard && in.AttemptNumber == nil {
		return nil, &Rejection{Reason: "hard bounce without attempt number"}
	}

	out := sub
	out.BounceCount++
	at := in.OccurredAt
	out.LastBounceAt = &at
	out.UpdatedAt = in.OccurredAt

	detail := map[string]string{
		"delivery_id":  in.DeliveryID,
		"campaign_id":  in.CampaignID,
		"bounce_class": string(class),
	}
	if in.AttemptNumber != nil {
		detail["attempt"] = strconv.Itoa(*in.AttemptNumber)
	}

	// Soft bounces are transient: counted, never suppressing. Hard bounces
	// move the subscriber to bounced unless a complaint already suppressed it.
	if class == BounceHard && sub.Status != domain.SubscriberSuppressed {
		out.Status = domain.SubscriberBounced
	}

	return &Result{
		Subscriber: out,
		Audit:      []domain.AuditEvent{newAudit(domain.AuditEmailBounced, sub.ID, in.OccurredAt, detail)},
		Engagement: []domain.EngagementEvent{newEngagement(domain.EngagementBounce, sub.ID, in)},
	}, nil
}

func applyComplaint(in Input, sub domain.Subscriber) *Result {
	out := sub
	// A complaint is an absolute signal: suppress regardless of current
	// state, with no automatic recovery.
	out.Status = domain.SubscriberSuppressed
	out.UpdatedAt = in.OccurredAt

	detail := map[string]string{
		"delivery_id": in.DeliveryID,
		"campaign_id": in.CampaignID,
	}

	return &Result{
		Subscriber: out,
		Audit:      []domain.AuditEvent{newAudit(domain.AuditEmailComplained, sub.ID, in.OccurredAt, detail)},
		Engagement: []domain.EngagementEvent{newEngagement(domain.EngagementComplaint, sub.ID, in)},
	}
}

func newAudit(t domain.AuditEventType, subscriberID string, at time.Time, detail map[string]string) domain.AuditEvent {
	return domain.AuditEvent{
		ID:         uuid.NewString(),
		Type:       t,
		EntityType: "subscriber",
		EntityID:   subscriberID,
		ActorType:  domain.ActorSystem,
		OccurredAt: at,
		Detail:     detail,
	}
}

func newEngagement(t domain.EngagementEventType, subscriberID string, in Input) domain.EngagementEvent {
	return domain.EngagementEvent{
		ID:           uuid.NewString(),
		Type:         t,
		SubscriberID: subscriberID,
		CampaignID:   in.CampaignID,
		DeliveryID:   in.DeliveryID,
		OccurredAt:   in.OccurredAt,
	}
}
