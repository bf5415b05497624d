package envelope

import "errors"

// Sentinel errors for the distinct signature verification failure modes.
// Each step of Verify fails with exactly one of these (wrapped with
// context), so callers and tests can tell a rejected certificate URL apart
// from a bad signature.
var (
	ErrCertURL          = errors.New("signing certificate URL rejected")
	ErrCertFetch        = errors.New("signing certificate fetch failed")
	ErrCertParse        = errors.New("signing certificate unparsable")
	ErrMissingField     = errors.New("signed field missing from envelope")
	ErrSignatureVersion = errors.New("unsupported signature version")
	ErrSignatureInvalid = errors.New("signature verification failed")
)
