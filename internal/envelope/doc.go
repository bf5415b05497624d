// Package envelope parses and authenticates the signed notification
// envelopes the email provider wraps around feedback events.
//
// Every inbound queue record passes through two layers here: Decode splits
// the outer envelope from the inner feedback payload, and Verifier checks
// the envelope's RSA signature against a certificate fetched from a pinned,
// validated URL. Verification is a hard gate: an envelope that fails any
// step is never processed, only retried by the queue.
package envelope
