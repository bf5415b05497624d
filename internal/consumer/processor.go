// Package consumer drives the per-batch feedback processing loop: decode,
// verify, resolve, decide, persist, count. Each record is isolated; the
// only contract exposed upward is the list of record identifiers that must
// be made visible on the queue again.
package consumer

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/ignite/feedback-processor/internal/domain"
	"github.com/ignite/feedback-processor/internal/envelope"
	"github.com/ignite/feedback-processor/internal/lifecycle"
	"github.com/ignite/feedback-processor/internal/params"
	"github.com/ignite/feedback-processor/internal/pkg/httpretry"
	"github.com/ignite/feedback-processor/internal/pkg/logger"
	"github.com/ignite/feedback-processor/internal/resolve"
	"github.com/ignite/feedback-processor/internal/store"
)

// Record is one queued notification to process.
type Record struct {
	MessageID string
	Body      []byte
}

// EnvelopeVerifier authenticates a decoded envelope.
type EnvelopeVerifier interface {
	Verify(ctx context.Context, env *envelope.Envelope) error
}

// ContextResolver joins an event to its delivery context.
type ContextResolver interface {
	Resolve(ctx context.Context, evt *domain.FeedbackEvent, allowSubscriberLookup bool) (*resolve.DeliveryContext, error)
}

// Archiver stores raw verified envelopes, best effort.
type Archiver interface {
	Archive(ctx context.Context, messageID string, raw []byte)
}

// MetricSink counts processed events, fire and forget.
type MetricSink interface {
	Emit(t domain.EventType)
}

// Processor runs the per-record pipeline for one batch at a time.
type Processor struct {
	verifier EnvelopeVerifier
	resolver ContextResolver
	store    store.Store
	params   *params.Provider
	metrics  MetricSink
	archiver Archiver          // nil disables archival
	confirm  httpretry.HTTPDoer // subscription confirmation fetches

	received  int64
	processed int64
	failed    int64
	dropped   int64
}

// NewProcessor wires a processor. archiver may be nil; confirm defaults to
// a retrying HTTP client.
func NewProcessor(verifier EnvelopeVerifier, resolver ContextResolver, st store.Store, prov *params.Provider, metrics MetricSink, archiver Archiver, confirm httpretry.HTTPDoer) *Processor {
	if confirm == nil {
		confirm = httpretry.NewRetryClient(nil, 3)
	}
	return &Processor{
		verifier: verifier,
		resolver: resolver,
		store:    st,
		params:   prov,
		metrics:  metrics,
		archiver: archiver,
		confirm:  confirm,
	}
}

// Process handles one batch of up to 10 records sequentially. It returns
// the message IDs that must be redelivered. Records that fail structurally
// (missing correlation, state machine rejection) are consumed, not retried,
// since redelivery cannot create data that does not exist.
func (p *Processor) Process(ctx context.Context, records []Record) []string {
	var failed []string
	for _, rec := range records {
		atomic.AddInt64(&p.received, 1)

		if err := p.processRecord(ctx, rec); err != nil {
			atomic.AddInt64(&p.failed, 1)
			logger.Error("record failed, returning to queue",
				"message_id", rec.MessageID, "error", err.Error())
			failed = append(failed, rec.MessageID)
			continue
		}
		atomic.AddInt64(&p.processed, 1)
	}
	return failed
}

// processRecord runs one record through the pipeline. A nil return means
// the record is consumed, whether it mutated anything or was deliberately
// dropped. Any error is a transport, integrity, or persistence failure and
// triggers redelivery.
func (p *Processor) processRecord(ctx context.Context, rec Record) error {
	env, evt, err := envelope.Decode(rec.Body)
	if err != nil {
		return err
	}

	if err := p.verifier.Verify(ctx, env); err != nil {
		return fmt.Errorf("verifying envelope %s: %w", env.MessageId, err)
	}

	switch env.Type {
	case envelope.TypeSubscriptionConfirmation:
		return p.confirmSubscription(ctx, env)
	case envelope.TypeUnsubscribeConfirmation:
		logger.Info("unsubscribe confirmation received", "topic", env.TopicArn)
		return nil
	}

	if evt == nil {
		return fmt.Errorf("envelope %s of type %q carries no feedback event", env.MessageId, env.Type)
	}

	etype := evt.Type()
	if !domain.KnownEventType(etype) {
		atomic.AddInt64(&p.dropped, 1)
		logger.Warn("unsupported event type, dropping record",
			"message_id", rec.MessageID, "event_type", string(etype))
		return nil
	}

	needsSubscriber := etype == domain.EventDelivery || etype == domain.EventBounce || etype == domain.EventComplaint

	dctx, err := p.resolver.Resolve(ctx, evt, needsSubscriber)
	if err != nil {
		if resolve.IsDrop(err) {
			atomic.AddInt64(&p.dropped, 1)
			logger.Warn("unresolvable record consumed without retry",
				"message_id", rec.MessageID, "event_type", string(etype), "reason", err.Error())
			return nil
		}
		return err
	}

	var result *lifecycle.Result
	if needsSubscriber {
		in := lifecycle.Input{
			Type:          etype,
			AttemptNumber: dctx.AttemptNumber,
			CampaignID:    dctx.CampaignID,
			DeliveryID:    dctx.DeliveryID,
			OccurredAt:    dctx.Timestamp,
		}
		if evt.Bounce != nil {
			in.BounceType = evt.Bounce.BounceType
		}

		result, err = lifecycle.Apply(in, dctx.Subscriber)
		if err != nil {
			if lifecycle.IsRejection(err) {
				atomic.AddInt64(&p.dropped, 1)
				logger.Warn("event rejected by state machine, consumed without retry",
					"message_id", rec.MessageID, "event_type", string(etype), "reason", err.Error())
				return nil
			}
			return err
		}
	}

	if err := p.store.UpsertDelivery(ctx, dctx.DeliveryID, deliveryFieldsFor(etype, evt, dctx)); err != nil {
		return err
	}

	if result != nil {
		if err := p.store.PutSubscriber(ctx, &result.Subscriber); err != nil {
			return err
		}
		if err := p.store.PutAuditEvents(ctx, result.Audit); err != nil {
			return err
		}
		ttlDays, err := p.params.EngagementTTLDays(ctx)
		if err != nil {
			return fmt.Errorf("resolving engagement TTL: %w", err)
		}
		if err := p.store.PutEngagementEvents(ctx, result.Engagement, ttlDays); err != nil {
			return err
		}
	}

	if p.archiver != nil {
		p.archiver.Archive(ctx, env.MessageId, rec.Body)
	}
	p.metrics.Emit(etype)
	return nil
}

// deliveryFieldsFor maps an event to the delivery record patch it implies.
func deliveryFieldsFor(etype domain.EventType, evt *domain.FeedbackEvent, dctx *resolve.DeliveryContext) store.DeliveryFields {
	status, _ := domain.StatusForEvent(etype)
	fields := store.DeliveryFields{
		CampaignID:        dctx.CampaignID,
		SubscriberID:      dctx.SubscriberID,
		Status:            status,
		StatusAt:          dctx.Timestamp,
		AttemptCount:      dctx.AttemptNumber,
		ProviderMessageID: evt.Mail.MessageID,
	}

	switch etype {
	case domain.EventBounce:
		if evt.Bounce != nil {
			fields.BounceReason = bounceReason(evt.Bounce)
		}
	case domain.EventReject:
		if evt.Reject != nil {
			fields.BounceReason = evt.Reject.Reason
		}
	}
	return fields
}

// bounceReason summarizes a bounce payload into the stored reason string:
// type/subtype plus the first recipient's diagnostic code when present.
func bounceReason(b *domain.BounceInfo) string {
	reason := b.BounceType
	if b.BounceSubType != "" {
		reason += "/" + b.BounceSubType
	}
	for _, r := range b.BouncedRecipients {
		if r.DiagnosticCode != "" {
			reason += ": " + r.DiagnosticCode
			break
		}
	}
	return strings.TrimSpace(reason)
}

// confirmSubscription completes the topic subscription handshake by
// fetching the confirmation URL from the verified envelope.
func (p *Processor) confirmSubscription(ctx context.Context, env *envelope.Envelope) error {
	if env.SubscribeURL == "" {
		return fmt.Errorf("subscription confirmation without SubscribeURL")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, env.SubscribeURL, nil)
	if err != nil {
		return fmt.Errorf("building confirmation request: %w", err)
	}
	resp, err := p.confirm.Do(req)
	if err != nil {
		return fmt.Errorf("confirming subscription: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("confirming subscription: status %d", resp.StatusCode)
	}

	logger.Info("topic subscription confirmed", "topic", env.TopicArn)
	return nil
}

// Stats returns running counters for the ops endpoint.
func (p *Processor) Stats() map[string]int64 {
	return map[string]int64{
		"records_received":  atomic.LoadInt64(&p.received),
		"records_processed": atomic.LoadInt64(&p.processed),
		"records_failed":    atomic.LoadInt64(&p.failed),
		"records_dropped":   atomic.LoadInt64(&p.dropped),
	}
}
