package envelope

import "sync"

// CertCache is a process-lifetime cache of fetched signing certificates,
// keyed by certificate URL. Entries never expire; a process restart is the
// only invalidation mechanism. Certificates rotate far slower than worker
// processes turn over, so this is safe in practice.
//
// The cache is constructor-injected into the Verifier so tests can run it
// cold or pre-warmed deterministically.
type CertCache struct {
	mu    sync.Mutex
	certs map[string][]byte
}

// NewCertCache creates an empty certificate cache.
func NewCertCache() *CertCache {
	return &CertCache{certs: make(map[string][]byte)}
}

// GetOrFetch returns the cached certificate for key, calling fetch at most
// once per key per process lifetime. A failed fetch is not cached, so the
// next record retries it.
func (c *CertCache) GetOrFetch(key string, fetch func() ([]byte, error)) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cert, ok := c.certs[key]; ok {
		return cert, nil
	}
	cert, err := fetch()
	if err != nil {
		return nil, err
	}
	c.certs[key] = cert
	return cert, nil
}

// Len returns the number of cached certificates.
func (c *CertCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.certs)
}
