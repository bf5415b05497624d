package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/feedback-processor/internal/domain"
)

var eventTime = time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

func subscriber(status domain.SubscriberStatus) domain.Subscriber {
	return domain.Subscriber{
		ID:        "sub-001",
		ListID:    "list-001",
		EmailHash: "ab12cd34",
		Status:    status,
		CreatedAt: eventTime.Add(-30 * 24 * time.Hour),
		UpdatedAt: eventTime.Add(-24 * time.Hour),
	}
}

func input(t domain.EventType) Input {
	return Input{
		Type:       t,
		CampaignID: "camp-001",
		DeliveryID: "del-001",
		OccurredAt: eventTime,
	}
}

func intp(n int) *int { return &n }

func TestClassifyBounce(t *testing.T) {
	cases := []struct {
		bounceType string
		class      BounceClass
		ok         bool
	}{
		{"Permanent", BounceHard, true},
		{"Transient", BounceSoft, true},
		{"Undetermined", "", false},
		{"", "", false},
		{"permanent", "", false},
	}
	for _, tc := range cases {
		class, ok := ClassifyBounce(tc.bounceType)
		assert.Equal(t, tc.ok, ok, "bounceType %q", tc.bounceType)
		assert.Equal(t, tc.class, class, "bounceType %q", tc.bounceType)
	}
}

func TestApply_DeliveryRecoversBouncedSubscriber(t *testing.T) {
	sub := subscriber(domain.SubscriberBounced)
	sub.BounceCount = 3
	lastBounce := eventTime.Add(-48 * time.Hour)
	sub.LastBounceAt = &lastBounce

	res, err := Apply(input(domain.EventDelivery), sub)
	require.NoError(t, err)

	assert.Equal(t, domain.SubscriberSubscribed, res.Subscriber.Status)
	assert.Zero(t, res.Subscriber.BounceCount)
	assert.Nil(t, res.Subscriber.LastBounceAt)
	assert.Equal(t, eventTime, res.Subscriber.UpdatedAt)

	require.Len(t, res.Audit, 1)
	assert.Equal(t, domain.AuditEmailDelivered, res.Audit[0].Type)
	assert.Equal(t, "true", res.Audit[0].Detail["recovered"])

	require.Len(t, res.Engagement, 1)
	assert.Equal(t, domain.EngagementDelivery, res.Engagement[0].Type)
	assert.Equal(t, "sub-001", res.Engagement[0].SubscriberID)

	// Input subscriber stays untouched.
	assert.Equal(t, domain.SubscriberBounced, sub.Status)
	assert.Equal(t, 3, sub.BounceCount)
}

func TestApply_DeliveryLeavesOtherStatusesAlone(t *testing.T) {
	for _, status := range []domain.SubscriberStatus{
		domain.SubscriberPending,
		domain.SubscriberSubscribed,
		domain.SubscriberUnsubscribed,
		domain.SubscriberSuppressed,
	} {
		res, err := Apply(input(domain.EventDelivery), subscriber(status))
		require.NoError(t, err)
		assert.Equal(t, status, res.Subscriber.Status, "status %s", status)
		assert.NotContains(t, res.Audit[0].Detail, "recovered")
	}
}

func TestApply_DeliveryIsIdempotentOnState(t *testing.T) {
	sub := subscriber(domain.SubscriberSubscribed)

	first, err := Apply(input(domain.EventDelivery), sub)
	require.NoError(t, err)
	second, err := Apply(input(domain.EventDelivery), first.Subscriber)
	require.NoError(t, err)

	assert.Equal(t, first.Subscriber, second.Subscriber)
}

func TestApply_HardBounceSuppressesDelivery(t *testing.T) {
	in := input(domain.EventBounce)
	in.BounceType = "Permanent"
	in.AttemptNumber = intp(1)

	res, err := Apply(in, subscriber(domain.SubscriberSubscribed))
	require.NoError(t, err)

	assert.Equal(t, domain.SubscriberBounced, res.Subscriber.Status)
	assert.Equal(t, 1, res.Subscriber.BounceCount)
	require.NotNil(t, res.Subscriber.LastBounceAt)
	assert.Equal(t, eventTime, *res.Subscriber.LastBounceAt)

	require.Len(t, res.Audit, 1)
	assert.Equal(t, domain.AuditEmailBounced, res.Audit[0].Type)
	assert.Equal(t, "hard", res.Audit[0].Detail["bounce_class"])
	assert.Equal(t, "1", res.Audit[0].Detail["attempt"])
}

func TestApply_HardBounceWithoutAttemptNumberIsRejected(t *testing.T) {
	in := input(domain.EventBounce)
	in.BounceType = "Permanent"

	_, err := Apply(in, subscriber(domain.SubscriberSubscribed))
	require.Error(t, err)
	assert.True(t, IsRejection(err))
}

func TestApply_HardBounceDoesNotOverrideSuppression(t *testing.T) {
	in := input(domain.EventBounce)
	in.BounceType = "Permanent"
	in.AttemptNumber = intp(2)

	res, err := Apply(in, subscriber(domain.SubscriberSuppressed))
	require.NoError(t, err)

	// The bounce is still counted, but a complaint outranks it.
	assert.Equal(t, domain.SubscriberSuppressed, res.Subscriber.Status)
	assert.Equal(t, 1, res.Subscriber.BounceCount)
}

func TestApply_SoftBounceCountsWithoutChangingStatus(t *testing.T) {
	in := input(domain.EventBounce)
	in.BounceType = "Transient"

	sub := subscriber(domain.SubscriberSubscribed)
	sub.BounceCount = 4

	res, err := Apply(in, sub)
	require.NoError(t, err)

	assert.Equal(t, domain.SubscriberSubscribed, res.Subscriber.Status)
	assert.Equal(t, 5, res.Subscriber.BounceCount)
	require.NotNil(t, res.Subscriber.LastBounceAt)
	assert.Equal(t, "soft", res.Audit[0].Detail["bounce_class"])
}

func TestApply_UnknownBounceTypeIsRejected(t *testing.T) {
	in := input(domain.EventBounce)
	in.BounceType = "Undetermined"

	_, err := Apply(in, subscriber(domain.SubscriberSubscribed))
	require.Error(t, err)
	assert.True(t, IsRejection(err))
}

func TestApply_ComplaintSuppressesFromEveryState(t *testing.T) {
	for _, status := range []domain.SubscriberStatus{
		domain.SubscriberPending,
		domain.SubscriberSubscribed,
		domain.SubscriberBounced,
		domain.SubscriberUnsubscribed,
		domain.SubscriberSuppressed,
	} {
		res, err := Apply(input(domain.EventComplaint), subscriber(status))
		require.NoError(t, err)
		assert.Equal(t, domain.SubscriberSuppressed, res.Subscriber.Status, "from %s", status)
		assert.Equal(t, domain.AuditEmailComplained, res.Audit[0].Type)
		assert.Equal(t, domain.EngagementComplaint, res.Engagement[0].Type)
	}
}

func TestApply_DeliveryDoesNotRecoverFromComplaint(t *testing.T) {
	res, err := Apply(input(domain.EventComplaint), subscriber(domain.SubscriberSubscribed))
	require.NoError(t, err)

	after, err := Apply(input(domain.EventDelivery), res.Subscriber)
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriberSuppressed, after.Subscriber.Status)
}

func TestApply_SendAndRejectAreRejections(t *testing.T) {
	for _, et := range []domain.EventType{domain.EventSend, domain.EventReject} {
		_, err := Apply(input(et), subscriber(domain.SubscriberSubscribed))
		require.Error(t, err, "%s", et)
		assert.True(t, IsRejection(err), "%s", et)
	}
}

func TestApply_UnknownEventTypeIsRejection(t *testing.T) {
	_, err := Apply(input(domain.EventType("Open")), subscriber(domain.SubscriberSubscribed))
	require.Error(t, err)
	assert.True(t, IsRejection(err))
}

func TestIsRejection_FalseForOrdinaryErrors(t *testing.T) {
	assert.False(t, IsRejection(assert.AnError))
	assert.False(t, IsRejection(nil))
}
