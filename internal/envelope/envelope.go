package envelope

import (
	"encoding/json"
	"fmt"

	"github.com/ignite/feedback-processor/internal/domain"
)

// Envelope types as reported in the outer message's Type field.
const (
	TypeNotification             = "Notification"
	TypeSubscriptionConfirmation = "SubscriptionConfirmation"
	TypeUnsubscribeConfirmation  = "UnsubscribeConfirmation"
)

// Envelope is the signed wrapper around a feedback event. For Notification
// envelopes, Message holds a JSON-serialized FeedbackEvent; for subscription
// lifecycle envelopes it holds a human-readable confirmation string.
type Envelope struct {
	Type             string `json:"Type"`
	MessageId        string `json:"MessageId"`
	TopicArn         string `json:"TopicArn"`
	Subject          string `json:"Subject,omitempty"`
	Message          string `json:"Message"`
	Timestamp        string `json:"Timestamp"`
	SignatureVersion string `json:"SignatureVersion"`
	Signature        string `json:"Signature"`
	SigningCertURL   string `json:"SigningCertURL"`
	SubscribeURL     string `json:"SubscribeURL,omitempty"`
	Token            string `json:"Token,omitempty"`
	UnsubscribeURL   string `json:"UnsubscribeURL,omitempty"`
}

// Decode parses a raw queue record body into the outer envelope and, for
// Notification envelopes, the inner feedback event. Malformed JSON at either
// layer is a hard error; nothing is swallowed here.
func Decode(raw []byte) (*Envelope, *domain.FeedbackEvent, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, nil, fmt.Errorf("parsing notification envelope: %w", err)
	}

	if env.Type != TypeNotification {
		return &env, nil, nil
	}

	var evt domain.FeedbackEvent
	if err := json.Unmarshal([]byte(env.Message), &evt); err != nil {
		return nil, nil, fmt.Errorf("parsing feedback event payload: %w", err)
	}
	return &env, &evt, nil
}
