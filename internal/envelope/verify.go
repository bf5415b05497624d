package envelope

import (
	"bytes"
	"context"
	"crypto"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/ignite/feedback-processor/internal/pkg/httpretry"
)

// Hosts allowed to serve signing certificates. Anything else is treated as
// an attacker-controlled URL: accepting it would let a forged envelope
// validate against a forged certificate.
var certHostPattern = regexp.MustCompile(`^sns\.[a-z0-9-]+\.amazonaws\.com(\.cn)?$`)

// Cert fetches have their own timeout, separate from the invocation budget.
// A hanging fetch must not starve the rest of the batch.
const certFetchTimeout = 5 * time.Second

const maxCertBytes = 1 << 20

// Verifier authenticates notification envelopes against the provider's
// signing certificate. It is safe for concurrent use.
type Verifier struct {
	cache  *CertCache
	client httpretry.HTTPDoer
}

// NewVerifier creates a Verifier using the given certificate cache. If
// client is nil, a plain http.Client with the fetch timeout is used; the
// certificate fetch never retries internally, redelivery is the retry
// mechanism.
func NewVerifier(cache *CertCache, client httpretry.HTTPDoer) *Verifier {
	if client == nil {
		client = &http.Client{Timeout: certFetchTimeout}
	}
	return &Verifier{cache: cache, client: client}
}

// Verify checks that env was genuinely produced by the notification
// service. Any failure is hard: the caller must not process the record, only
// hand it back to the queue for redelivery.
func (v *Verifier) Verify(ctx context.Context, env *Envelope) error {
	certURL, err := validateCertURL(env.SigningCertURL)
	if err != nil {
		return err
	}

	signed, err := stringToSign(env)
	if err != nil {
		return err
	}

	sig, err := base64.StdEncoding.DecodeString(env.Signature)
	if err != nil {
		return fmt.Errorf("%w: decoding base64 signature: %v", ErrSignatureInvalid, err)
	}

	certPEM, err := v.cache.GetOrFetch(certURL, func() ([]byte, error) {
		return v.fetchCert(ctx, certURL)
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCertFetch, err)
	}

	pub, err := parseCertPublicKey(certPEM)
	if err != nil {
		return err
	}

	switch env.SignatureVersion {
	case "1":
		digest := sha1.Sum(signed)
		if err := rsa.VerifyPKCS1v15(pub, crypto.SHA1, digest[:], sig); err != nil {
			return fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
		}
	case "2":
		digest := sha256.Sum256(signed)
		if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], sig); err != nil {
			return fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
		}
	default:
		return fmt.Errorf("%w: %q", ErrSignatureVersion, env.SignatureVersion)
	}

	return nil
}

// validateCertURL enforces the signing certificate URL whitelist before any
// network activity: https on port 443, no embedded credentials, a
// recognized notification-service host, and a certificate file path.
func validateCertURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCertURL, err)
	}
	if u.Scheme != "https" {
		return "", fmt.Errorf("%w: scheme %q is not https", ErrCertURL, u.Scheme)
	}
	if u.User != nil {
		return "", fmt.Errorf("%w: URL contains credentials", ErrCertURL)
	}
	if port := u.Port(); port != "" && port != "443" {
		return "", fmt.Errorf("%w: port %s is not 443", ErrCertURL, port)
	}
	if !certHostPattern.MatchString(strings.ToLower(u.Hostname())) {
		return "", fmt.Errorf("%w: host %q is not a notification service host", ErrCertURL, u.Hostname())
	}
	if !strings.HasSuffix(u.Path, ".pem") {
		return "", fmt.Errorf("%w: path %q is not a certificate file", ErrCertURL, u.Path)
	}
	return u.String(), nil
}

// stringToSign reconstructs the exact byte sequence the provider signed.
// The field set and order are fixed per envelope type; a missing required
// field is an error, never a silent omission. Omitting a field from the
// signed string would let an attacker alter it without invalidating the
// signature.
func stringToSign(env *Envelope) ([]byte, error) {
	type field struct {
		name     string
		value    string
		optional bool
	}

	var fields []field
	switch env.Type {
	case TypeNotification:
		fields = []field{
			{"Message", env.Message, false},
			{"Subject", env.Subject, true},
			{"Timestamp", env.Timestamp, false},
			{"TopicArn", env.TopicArn, false},
			{"Type", env.Type, false},
		}
	case TypeSubscriptionConfirmation, TypeUnsubscribeConfirmation:
		fields = []field{
			{"Message", env.Message, false},
			{"MessageId", env.MessageId, false},
			{"SubscribeURL", env.SubscribeURL, false},
			{"Timestamp", env.Timestamp, false},
			{"Token", env.Token, false},
			{"TopicArn", env.TopicArn, false},
			{"Type", env.Type, false},
		}
	default:
		return nil, fmt.Errorf("%w: envelope type %q", ErrMissingField, env.Type)
	}

	var buf bytes.Buffer
	for _, f := range fields {
		if f.value == "" {
			if f.optional {
				continue
			}
			return nil, fmt.Errorf("%w: %s", ErrMissingField, f.name)
		}
		buf.WriteString(f.name)
		buf.WriteByte('\n')
		buf.WriteString(f.value)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

func (v *Verifier) fetchCert(ctx context.Context, certURL string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, certFetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, certURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxCertBytes))
}

func parseCertPublicKey(certPEM []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(certPEM)
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block found", ErrCertParse)
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCertParse, err)
	}
	pub, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: certificate does not carry an RSA key", ErrCertParse)
	}
	return pub, nil
}
