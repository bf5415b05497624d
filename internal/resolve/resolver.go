// Package resolve joins a feedback event to the delivery, campaign, and
// subscriber it concerns, using the correlation tags attached at send time
// and falling back to the stored delivery record when tags are incomplete.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ignite/feedback-processor/internal/domain"
	"github.com/ignite/feedback-processor/internal/store"
)

// Recognized tag key spellings, tried in order; first match wins. The
// ordered lists are the contract: new spellings are appended here, never
// handled ad hoc at call sites.
var (
	deliveryIDKeys   = []string{"deliveryId", "delivery_id"}
	campaignIDKeys   = []string{"campaignId", "campaign_id"}
	subscriberIDKeys = []string{"subscriberId", "subscriber_id"}
	attemptKeys      = []string{"attempt", "attemptNumber", "attempt_number"}
)

// DropError marks a resolution failure that queue redelivery cannot fix:
// the event is structurally incomplete or references data that does not
// exist. The consumer logs these and treats the record as consumed.
type DropError struct {
	Reason string
}

func (e *DropError) Error() string { return "dropping record: " + e.Reason }

// IsDrop reports whether err is a non-retryable resolution failure.
func IsDrop(err error) bool {
	var d *DropError
	return errors.As(err, &d)
}

// DeliveryContext is everything the rest of the pipeline needs to act on
// one feedback event.
type DeliveryContext struct {
	DeliveryID    string
	CampaignID    string
	SubscriberID  string
	AttemptNumber *int
	Subscriber    domain.Subscriber
	Timestamp     time.Time
}

// DeliveryReader loads stored delivery records. Returns (nil, nil) when the
// record does not exist.
type DeliveryReader interface {
	GetDelivery(ctx context.Context, id string) (*domain.DeliveryRecord, error)
}

// SubscriberReader loads stored subscriber records. Returns (nil, nil) when
// the record does not exist.
type SubscriberReader interface {
	GetSubscriber(ctx context.Context, id string) (*domain.Subscriber, error)
}

// Resolver resolves feedback events to their delivery context.
type Resolver struct {
	deliveries  DeliveryReader
	subscribers SubscriberReader
	now         func() time.Time
}

// NewResolver creates a resolver backed by the given stores.
func NewResolver(deliveries DeliveryReader, subscribers SubscriberReader) *Resolver {
	return &Resolver{deliveries: deliveries, subscribers: subscribers, now: time.Now}
}

// Resolve extracts correlation identity from the event's tags, falling back
// to the stored delivery record for campaign/subscriber when the tags are
// incomplete. When allowSubscriberLookup is true the subscriber record is
// loaded as well; events that only touch the delivery record get a
// zero-value placeholder subscriber instead.
//
// A *DropError means the record must be consumed without retry. Any other
// error is a store failure and retryable.
func (r *Resolver) Resolve(ctx context.Context, evt *domain.FeedbackEvent, allowSubscriberLookup bool) (*DeliveryContext, error) {
	tags := evt.Mail.Tags

	deliveryID, ok := firstTag(tags, deliveryIDKeys)
	if !ok {
		return nil, &DropError{Reason: "no delivery id in tags, nothing to correlate"}
	}

	dctx := &DeliveryContext{DeliveryID: deliveryID}
	dctx.CampaignID, _ = firstTag(tags, campaignIDKeys)
	dctx.SubscriberID, _ = firstTag(tags, subscriberIDKeys)
	if raw, ok := firstTag(tags, attemptKeys); ok {
		if n, err := strconv.Atoi(raw); err == nil {
			dctx.AttemptNumber = &n
		}
	}

	if dctx.CampaignID == "" || dctx.SubscriberID == "" {
		rec, err := r.deliveries.GetDelivery(ctx, deliveryID)
		if err != nil {
			if errors.Is(err, store.ErrCorruptRecord) {
				return nil, &DropError{Reason: fmt.Sprintf("stored delivery %s unparsable", deliveryID)}
			}
			return nil, fmt.Errorf("loading delivery %s: %w", deliveryID, err)
		}
		if rec != nil {
			if dctx.CampaignID == "" {
				dctx.CampaignID = rec.CampaignID
			}
			if dctx.SubscriberID == "" {
				dctx.SubscriberID = rec.SubscriberID
			}
		}
	}
	if dctx.CampaignID == "" || dctx.SubscriberID == "" {
		return nil, &DropError{Reason: fmt.Sprintf("delivery %s has no campaign/subscriber identity", deliveryID)}
	}

	if allowSubscriberLookup {
		sub, err := r.subscribers.GetSubscriber(ctx, dctx.SubscriberID)
		if err != nil {
			if errors.Is(err, store.ErrCorruptRecord) {
				return nil, &DropError{Reason: fmt.Sprintf("stored subscriber %s unparsable", dctx.SubscriberID)}
			}
			return nil, fmt.Errorf("loading subscriber %s: %w", dctx.SubscriberID, err)
		}
		if sub == nil {
			return nil, &DropError{Reason: fmt.Sprintf("subscriber %s not found", dctx.SubscriberID)}
		}
		dctx.Subscriber = *sub
	}

	dctx.Timestamp = r.eventTimestamp(evt)
	return dctx, nil
}

// eventTimestamp resolves the event's effective time by trying timestamp
// sources in priority order: the type-specific payload timestamp, then the
// mail timestamp, then processing time. The ordered chain is the contract.
func (r *Resolver) eventTimestamp(evt *domain.FeedbackEvent) time.Time {
	candidates := make([]string, 0, 2)
	switch evt.Type() {
	case domain.EventDelivery:
		if evt.Delivery != nil {
			candidates = append(candidates, evt.Delivery.Timestamp)
		}
	case domain.EventBounce:
		if evt.Bounce != nil {
			candidates = append(candidates, evt.Bounce.Timestamp)
		}
	case domain.EventComplaint:
		if evt.Complaint != nil {
			candidates = append(candidates, evt.Complaint.Timestamp)
		}
	}
	candidates = append(candidates, evt.Mail.Timestamp)

	for _, c := range candidates {
		if c == "" {
			continue
		}
		if ts, err := time.Parse(time.RFC3339, c); err == nil {
			return ts
		}
	}
	return r.now().UTC()
}

// firstTag returns the first non-empty value found under any of the given
// keys. Tag values are string arrays; only the first element counts.
func firstTag(tags map[string][]string, keys []string) (string, bool) {
	for _, k := range keys {
		if vals, ok := tags[k]; ok && len(vals) > 0 && vals[0] != "" {
			return vals[0], true
		}
	}
	return "", false
}
