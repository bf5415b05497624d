package resolve

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/feedback-processor/internal/domain"
	"github.com/ignite/feedback-processor/internal/store"
)

type fakeDeliveries struct {
	records map[string]*domain.DeliveryRecord
	err     error
	calls   int
}

func (f *fakeDeliveries) GetDelivery(_ context.Context, id string) (*domain.DeliveryRecord, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.records[id], nil
}

type fakeSubscribers struct {
	records map[string]*domain.Subscriber
	err     error
	calls   int
}

func (f *fakeSubscribers) GetSubscriber(_ context.Context, id string) (*domain.Subscriber, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.records[id], nil
}

func fixedNow() time.Time {
	return time.Date(2026, 8, 30, 15, 0, 0, 0, time.UTC)
}

func newTestResolver(d *fakeDeliveries, s *fakeSubscribers) *Resolver {
	r := NewResolver(d, s)
	r.now = fixedNow
	return r
}

func deliveryEvent(tags map[string][]string) *domain.FeedbackEvent {
	return &domain.FeedbackEvent{
		EventType: domain.EventDelivery,
		Mail: domain.MailInfo{
			Timestamp: "2026-08-30T10:00:00Z",
			MessageID: "provider-msg-1",
			Tags:      tags,
		},
		Delivery: &domain.DeliveryInfo{Timestamp: "2026-08-30T10:00:05Z"},
	}
}

func TestResolve_FullyTaggedEvent(t *testing.T) {
	subs := &fakeSubscribers{records: map[string]*domain.Subscriber{
		"sub-1": {ID: "sub-1", Status: domain.SubscriberSubscribed},
	}}
	dels := &fakeDeliveries{}
	r := newTestResolver(dels, subs)

	evt := deliveryEvent(map[string][]string{
		"deliveryId":   {"del-1"},
		"campaignId":   {"camp-1"},
		"subscriberId": {"sub-1"},
		"attempt":      {"2"},
	})

	dctx, err := r.Resolve(context.Background(), evt, true)
	require.NoError(t, err)
	assert.Equal(t, "del-1", dctx.DeliveryID)
	assert.Equal(t, "camp-1", dctx.CampaignID)
	assert.Equal(t, "sub-1", dctx.SubscriberID)
	require.NotNil(t, dctx.AttemptNumber)
	assert.Equal(t, 2, *dctx.AttemptNumber)
	assert.Equal(t, "sub-1", dctx.Subscriber.ID)
	assert.Zero(t, dels.calls, "complete tags must not hit the delivery store")
}

func TestResolve_SnakeCaseTagVariants(t *testing.T) {
	subs := &fakeSubscribers{records: map[string]*domain.Subscriber{
		"sub-1": {ID: "sub-1"},
	}}
	r := newTestResolver(&fakeDeliveries{}, subs)

	evt := deliveryEvent(map[string][]string{
		"delivery_id":    {"del-1"},
		"campaign_id":    {"camp-1"},
		"subscriber_id":  {"sub-1"},
		"attempt_number": {"3"},
	})

	dctx, err := r.Resolve(context.Background(), evt, true)
	require.NoError(t, err)
	assert.Equal(t, "del-1", dctx.DeliveryID)
	assert.Equal(t, "camp-1", dctx.CampaignID)
	require.NotNil(t, dctx.AttemptNumber)
	assert.Equal(t, 3, *dctx.AttemptNumber)
}

func TestResolve_CamelCaseTagWinsOverSnakeCase(t *testing.T) {
	subs := &fakeSubscribers{records: map[string]*domain.Subscriber{
		"sub-camel": {ID: "sub-camel"},
	}}
	r := newTestResolver(&fakeDeliveries{}, subs)

	evt := deliveryEvent(map[string][]string{
		"deliveryId":    {"del-camel"},
		"delivery_id":   {"del-snake"},
		"campaignId":    {"camp-1"},
		"subscriberId":  {"sub-camel"},
		"subscriber_id": {"sub-snake"},
	})

	dctx, err := r.Resolve(context.Background(), evt, true)
	require.NoError(t, err)
	assert.Equal(t, "del-camel", dctx.DeliveryID)
	assert.Equal(t, "sub-camel", dctx.SubscriberID)
}

func TestResolve_MissingDeliveryIDIsDrop(t *testing.T) {
	r := newTestResolver(&fakeDeliveries{}, &fakeSubscribers{})

	evt := deliveryEvent(map[string][]string{"campaignId": {"camp-1"}})
	_, err := r.Resolve(context.Background(), evt, true)
	require.Error(t, err)
	assert.True(t, IsDrop(err))
}

func TestResolve_FallsBackToStoredDelivery(t *testing.T) {
	dels := &fakeDeliveries{records: map[string]*domain.DeliveryRecord{
		"del-1": {ID: "del-1", CampaignID: "camp-stored", SubscriberID: "sub-stored"},
	}}
	subs := &fakeSubscribers{records: map[string]*domain.Subscriber{
		"sub-stored": {ID: "sub-stored"},
	}}
	r := newTestResolver(dels, subs)

	evt := deliveryEvent(map[string][]string{"deliveryId": {"del-1"}})
	dctx, err := r.Resolve(context.Background(), evt, true)
	require.NoError(t, err)
	assert.Equal(t, "camp-stored", dctx.CampaignID)
	assert.Equal(t, "sub-stored", dctx.SubscriberID)
	assert.Equal(t, 1, dels.calls)
}

func TestResolve_TagsTakePriorityOverStoredDelivery(t *testing.T) {
	dels := &fakeDeliveries{records: map[string]*domain.DeliveryRecord{
		"del-1": {ID: "del-1", CampaignID: "camp-stored", SubscriberID: "sub-stored"},
	}}
	subs := &fakeSubscribers{records: map[string]*domain.Subscriber{
		"sub-tagged": {ID: "sub-tagged"},
	}}
	r := newTestResolver(dels, subs)

	// Campaign comes from the record, subscriber from the tags.
	evt := deliveryEvent(map[string][]string{
		"deliveryId":   {"del-1"},
		"subscriberId": {"sub-tagged"},
	})
	dctx, err := r.Resolve(context.Background(), evt, true)
	require.NoError(t, err)
	assert.Equal(t, "camp-stored", dctx.CampaignID)
	assert.Equal(t, "sub-tagged", dctx.SubscriberID)
}

func TestResolve_UnresolvableIdentityIsDrop(t *testing.T) {
	dels := &fakeDeliveries{} // no stored record either
	r := newTestResolver(dels, &fakeSubscribers{})

	evt := deliveryEvent(map[string][]string{"deliveryId": {"del-unknown"}})
	_, err := r.Resolve(context.Background(), evt, true)
	require.Error(t, err)
	assert.True(t, IsDrop(err))
}

func TestResolve_CorruptDeliveryRecordIsDrop(t *testing.T) {
	dels := &fakeDeliveries{err: store.ErrCorruptRecord}
	r := newTestResolver(dels, &fakeSubscribers{})

	evt := deliveryEvent(map[string][]string{"deliveryId": {"del-1"}})
	_, err := r.Resolve(context.Background(), evt, true)
	require.Error(t, err)
	assert.True(t, IsDrop(err))
}

func TestResolve_StoreFailureIsRetryable(t *testing.T) {
	boom := errors.New("throttled")
	dels := &fakeDeliveries{err: boom}
	r := newTestResolver(dels, &fakeSubscribers{})

	evt := deliveryEvent(map[string][]string{"deliveryId": {"del-1"}})
	_, err := r.Resolve(context.Background(), evt, true)
	require.Error(t, err)
	assert.False(t, IsDrop(err))
	assert.ErrorIs(t, err, boom)
}

func TestResolve_UnknownSubscriberIsDrop(t *testing.T) {
	subs := &fakeSubscribers{} // empty
	r := newTestResolver(&fakeDeliveries{}, subs)

	evt := deliveryEvent(map[string][]string{
		"deliveryId":   {"del-1"},
		"campaignId":   {"camp-1"},
		"subscriberId": {"sub-ghost"},
	})
	_, err := r.Resolve(context.Background(), evt, true)
	require.Error(t, err)
	assert.True(t, IsDrop(err))
}

func TestResolve_SubscriberLookupSkipped(t *testing.T) {
	subs := &fakeSubscribers{}
	r := newTestResolver(&fakeDeliveries{}, subs)

	evt := deliveryEvent(map[string][]string{
		"deliveryId":   {"del-1"},
		"campaignId":   {"camp-1"},
		"subscriberId": {"sub-1"},
	})
	dctx, err := r.Resolve(context.Background(), evt, false)
	require.NoError(t, err)
	assert.Zero(t, subs.calls)
	assert.Empty(t, dctx.Subscriber.ID)
}

func TestResolve_TimestampPriority(t *testing.T) {
	subs := &fakeSubscribers{records: map[string]*domain.Subscriber{"sub-1": {ID: "sub-1"}}}
	r := newTestResolver(&fakeDeliveries{}, subs)

	tags := map[string][]string{
		"deliveryId":   {"del-1"},
		"campaignId":   {"camp-1"},
		"subscriberId": {"sub-1"},
	}

	t.Run("payload timestamp wins", func(t *testing.T) {
		evt := deliveryEvent(tags)
		dctx, err := r.Resolve(context.Background(), evt, true)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2026, 8, 30, 10, 0, 5, 0, time.UTC), dctx.Timestamp)
	})

	t.Run("mail timestamp next", func(t *testing.T) {
		evt := deliveryEvent(tags)
		evt.Delivery.Timestamp = ""
		dctx, err := r.Resolve(context.Background(), evt, true)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC), dctx.Timestamp)
	})

	t.Run("processing time last", func(t *testing.T) {
		evt := deliveryEvent(tags)
		evt.Delivery.Timestamp = "garbage"
		evt.Mail.Timestamp = ""
		dctx, err := r.Resolve(context.Background(), evt, true)
		require.NoError(t, err)
		assert.Equal(t, fixedNow(), dctx.Timestamp)
	})
}

func TestResolve_UnparsableAttemptNumberIgnored(t *testing.T) {
	subs := &fakeSubscribers{records: map[string]*domain.Subscriber{"sub-1": {ID: "sub-1"}}}
	r := newTestResolver(&fakeDeliveries{}, subs)

	evt := deliveryEvent(map[string][]string{
		"deliveryId":   {"del-1"},
		"campaignId":   {"camp-1"},
		"subscriberId": {"sub-1"},
		"attempt":      {"three"},
	})
	dctx, err := r.Resolve(context.Background(), evt, true)
	require.NoError(t, err)
	assert.Nil(t, dctx.AttemptNumber)
}
