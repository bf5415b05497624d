// Package params provides the secret/parameter collaborators the pipeline
// depends on, behind a process-lifetime read-through cache. Values are
// fetched lazily on first use and never invalidated within a process
// lifetime; a restart is the only refresh mechanism, which is acceptable
// because secrets rotate far slower than worker processes turn over.
package params

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"
)

// Cache is a process-wide read-through cache. It is constructor-injected so
// tests can run cold or pre-warmed deterministically.
type Cache struct {
	mu     sync.Mutex
	values map[string]any
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{values: make(map[string]any)}
}

// GetOrFetch returns the cached value for key, calling fetch at most once
// per key per process lifetime. A failed fetch is not cached.
func (c *Cache) GetOrFetch(key string, fetch func() (any, error)) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v, ok := c.values[key]; ok {
		return v, nil
	}
	v, err := fetch()
	if err != nil {
		return nil, err
	}
	c.values[key] = v
	return v, nil
}

// SecretSource retrieves named secrets (retrieval mechanics live outside
// this pipeline).
type SecretSource interface {
	GetSecret(ctx context.Context, name string) ([]byte, error)
}

// ParameterSource retrieves named configuration parameters.
type ParameterSource interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// EnvSource resolves secrets and parameters from environment variables,
// the default wiring for local runs and tests.
type EnvSource struct{}

// GetSecret reads the named environment variable as a secret.
func (EnvSource) GetSecret(_ context.Context, name string) ([]byte, error) {
	v := os.Getenv(name)
	if v == "" {
		return nil, fmt.Errorf("secret %s not set", name)
	}
	return []byte(v), nil
}

// GetParameter reads the named environment variable as a parameter.
func (EnvSource) GetParameter(_ context.Context, name string) (string, error) {
	v := os.Getenv(name)
	if v == "" {
		return "", fmt.Errorf("parameter %s not set", name)
	}
	return v, nil
}

// Provider exposes the typed values the pipeline needs, resolved through
// the cache.
type Provider struct {
	cache      *Cache
	secrets    SecretSource
	parameters ParameterSource

	emailHashSecretName string
	engagementTTLName   string
	defaultTTLDays      int
}

// NewProvider wires a provider. defaultTTLDays is used when the TTL
// parameter is unset or unparsable.
func NewProvider(cache *Cache, secrets SecretSource, parameters ParameterSource, emailHashSecretName, engagementTTLName string, defaultTTLDays int) *Provider {
	return &Provider{
		cache:               cache,
		secrets:             secrets,
		parameters:          parameters,
		emailHashSecretName: emailHashSecretName,
		engagementTTLName:   engagementTTLName,
		defaultTTLDays:      defaultTTLDays,
	}
}

// EmailHashSecret returns the HMAC secret for normalized email hashing.
func (p *Provider) EmailHashSecret(ctx context.Context) ([]byte, error) {
	v, err := p.cache.GetOrFetch("secret:"+p.emailHashSecretName, func() (any, error) {
		return p.secrets.GetSecret(ctx, p.emailHashSecretName)
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// EngagementTTLDays returns the retention window for engagement telemetry.
// Falls back to the configured default when the parameter is unavailable.
func (p *Provider) EngagementTTLDays(ctx context.Context) (int, error) {
	v, err := p.cache.GetOrFetch("param:"+p.engagementTTLName, func() (any, error) {
		raw, err := p.parameters.GetParameter(ctx, p.engagementTTLName)
		if err != nil {
			return p.defaultTTLDays, nil
		}
		days, err := strconv.Atoi(raw)
		if err != nil || days <= 0 {
			return p.defaultTTLDays, nil
		}
		return days, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}
