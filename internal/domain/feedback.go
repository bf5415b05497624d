package domain

// EventType enumerates the feedback notification types the provider emits
// for a previously sent email. This is a closed set: every consumer of
// FeedbackEvent switches over exactly these five values.
type EventType string

const (
	EventSend      EventType = "Send"
	EventDelivery  EventType = "Delivery"
	EventBounce    EventType = "Bounce"
	EventComplaint EventType = "Complaint"
	EventReject    EventType = "Reject"
)

// KnownEventType reports whether t is one of the five supported feedback
// event types.
func KnownEventType(t EventType) bool {
	switch t {
	case EventSend, EventDelivery, EventBounce, EventComplaint, EventReject:
		return true
	}
	return false
}

// FeedbackEvent is a single provider notification describing the fate of one
// outbound email. It is constructed once per notification and never mutated.
//
// Older bounce/complaint topics carry the type under "notificationType"
// instead of "eventType"; Type() resolves whichever is present.
type FeedbackEvent struct {
	EventType        EventType      `json:"eventType,omitempty"`
	NotificationType EventType      `json:"notificationType,omitempty"`
	Mail             MailInfo       `json:"mail"`
	Delivery         *DeliveryInfo  `json:"delivery,omitempty"`
	Bounce           *BounceInfo    `json:"bounce,omitempty"`
	Complaint        *ComplaintInfo `json:"complaint,omitempty"`
	Reject           *RejectInfo    `json:"reject,omitempty"`
}

// Type returns the event type, preferring eventType over the legacy
// notificationType field.
func (e *FeedbackEvent) Type() EventType {
	if e.EventType != "" {
		return e.EventType
	}
	return e.NotificationType
}

// MailInfo describes the original outbound message the event refers to.
type MailInfo struct {
	Timestamp   string              `json:"timestamp"`
	MessageID   string              `json:"messageId"`
	Source      string              `json:"source"`
	Destination []string            `json:"destination"`
	Tags        map[string][]string `json:"tags"`
}

// DeliveryInfo is the type-specific payload of a Delivery event.
type DeliveryInfo struct {
	Timestamp            string   `json:"timestamp"`
	Recipients           []string `json:"recipients"`
	ProcessingTimeMillis int64    `json:"processingTimeMillis"`
	SMTPResponse         string   `json:"smtpResponse"`
	ReportingMTA         string   `json:"reportingMTA"`
}

// BounceInfo is the type-specific payload of a Bounce event.
type BounceInfo struct {
	BounceType        string             `json:"bounceType"`
	BounceSubType     string             `json:"bounceSubType"`
	BouncedRecipients []BouncedRecipient `json:"bouncedRecipients"`
	Timestamp         string             `json:"timestamp"`
	FeedbackID        string             `json:"feedbackId"`
	ReportingMTA      string             `json:"reportingMTA"`
}

// BouncedRecipient is one recipient within a bounce report.
type BouncedRecipient struct {
	EmailAddress   string `json:"emailAddress"`
	Action         string `json:"action"`
	Status         string `json:"status"`
	DiagnosticCode string `json:"diagnosticCode"`
}

// ComplaintInfo is the type-specific payload of a Complaint event.
type ComplaintInfo struct {
	ComplainedRecipients  []ComplainedRecipient `json:"complainedRecipients"`
	Timestamp             string                `json:"timestamp"`
	FeedbackID            string                `json:"feedbackId"`
	UserAgent             string                `json:"userAgent"`
	ComplaintFeedbackType string                `json:"complaintFeedbackType"`
	ArrivalDate           string                `json:"arrivalDate"`
}

// ComplainedRecipient is one recipient within a complaint report.
type ComplainedRecipient struct {
	EmailAddress string `json:"emailAddress"`
}

// RejectInfo is the type-specific payload of a Reject event.
type RejectInfo struct {
	Reason string `json:"reason"`
}
