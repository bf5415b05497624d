// Package lifecycle implements the subscriber lifecycle state machine.
//
// Apply is a pure decision function: given the current subscriber state and
// one feedback event, it produces the next subscriber state plus the audit
// and engagement events to persist. It performs no I/O and never panics on
// bad input; events it cannot safely act on come back as a *Rejection,
// which callers log and skip without retrying (retrying a pure-function
// rejection can never succeed).
//
// State invariants:
//   - bounced is near-terminal: only a later successful delivery for the
//     same subscriber recovers it to subscribed
//   - suppressed (from a complaint) has no automatic recovery path
//   - soft bounces count but never change state; there is deliberately no
//     threshold that escalates repeated soft bounces (see DESIGN.md)
package lifecycle
