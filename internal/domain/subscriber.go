package domain

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// SubscriberStatus enumerates the lifecycle states a subscriber can be in.
//
// Bounced and suppressed are near-terminal: the only path out of bounced is
// a later successful delivery for the same subscriber, and suppressed has no
// automatic recovery at all.
type SubscriberStatus string

const (
	SubscriberPending      SubscriberStatus = "pending"
	SubscriberSubscribed   SubscriberStatus = "subscribed"
	SubscriberBounced      SubscriberStatus = "bounced"
	SubscriberUnsubscribed SubscriberStatus = "unsubscribed"
	SubscriberSuppressed   SubscriberStatus = "suppressed"
)

// Subscriber represents a single email recipient within a mailing list.
// The raw email address is never stored; EmailHash carries an HMAC of the
// normalized address instead.
type Subscriber struct {
	ID        string           `json:"id"`
	ListID    string           `json:"list_id"`
	EmailHash string           `json:"email_hash"`
	Status    SubscriberStatus `json:"status"`

	BounceCount  int        `json:"bounce_count"`
	LastBounceAt *time.Time `json:"last_bounce_at,omitempty"`

	ConfirmToken            string     `json:"confirm_token,omitempty"`
	ConfirmTokenExpiresAt   *time.Time `json:"confirm_token_expires_at,omitempty"`
	UnsubscribeToken        string     `json:"unsubscribe_token,omitempty"`
	UnsubscribeRequestedAt  *time.Time `json:"unsubscribe_requested_at,omitempty"`

	SubscribedAt *time.Time `json:"subscribed_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// HashEmail computes the HMAC-SHA256 hash of a normalized email address.
// The address is lowercased and trimmed before hashing so lookups are
// insensitive to the casing the provider reports.
func HashEmail(secret []byte, email string) string {
	normalized := strings.ToLower(strings.TrimSpace(email))
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(normalized))
	return hex.EncodeToString(mac.Sum(nil))
}
