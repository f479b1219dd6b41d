// Package issuer implements the issuer registry: the map from issuer
// identifier to IssuerConfig, its lazy/background JWKS loading lifecycle,
// and healthy/degraded status tracking.
package issuer

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/tokenguard/jwtguard/pkg/events"
	"github.com/tokenguard/jwtguard/pkg/jwksload"
	"github.com/tokenguard/jwtguard/pkg/observability"
)

// Config is one issuer's full configuration: identity, expected audience
// and authorized-party, the allowed-algorithm subset, claim policy
// toggles, and its JWKS provider handle.
type Config struct {
	// Identifier is matched against the token's iss claim.
	Identifier string

	// ExpectedAudiences: if non-empty, the token's aud must contain at
	// least one of these. Empty disables the check.
	ExpectedAudiences []string

	// ExpectedClientID, if non-empty, requires azp to equal it exactly.
	ExpectedClientID string

	// AllowedAlgorithms is this issuer's subset of the global allow-list.
	AllowedAlgorithms []string

	// ClaimSubOptional waives the mandatory sub claim for access tokens.
	ClaimSubOptional bool

	// KeycloakRolesMapper/KeycloakGroupsMapper toggle the Keycloak-idiomatic
	// realm_access.roles / groups claim extraction.
	KeycloakRolesMapper  bool
	KeycloakGroupsMapper bool

	// Source configures where this issuer's JWKS come from.
	Source Source

	// HTTP client and retry policy used for HTTP-backed sources.
	HTTPClient *http.Client
	Retry      jwksload.RetryPolicy

	provider *Provider
}

// AllowsAlgorithm reports whether alg is in this issuer's allow-list.
func (c *Config) AllowsAlgorithm(alg string) bool {
	for _, a := range c.AllowedAlgorithms {
		if a == alg {
			return true
		}
	}
	return false
}

// Provider returns the JWKS provider handle built for this issuer. Only
// valid after the registry has ingested the config.
func (c *Config) Provider() *Provider { return c.provider }

// Status mirrors spec.md's LoaderStatus for external health reporting.
type Status int

const (
	StatusUnready Status = iota
	StatusHealthy
	StatusDegraded
)

// Registry maps issuer identifiers to their IssuerConfig. It is populated
// once at construction and is immutable thereafter (the map itself; the
// providers it holds mutate their own internal snapshot state).
type Registry struct {
	issuers map[string]*Config
	counter *events.Counter
	logger  *slog.Logger

	mu     sync.RWMutex
	status map[string]Status
}

// New builds a Registry from configs, constructing a JWKS Provider for
// each. HTTP-backed providers have not yet performed their first load;
// call StartBackgroundLoad to begin that asynchronously, or rely on
// lazy-on-first-validate loading.
func New(configs []*Config, counter *events.Counter, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		issuers: make(map[string]*Config, len(configs)),
		counter: counter,
		logger:  logger,
		status:  make(map[string]Status, len(configs)),
	}
	for _, cfg := range configs {
		if cfg.Identifier == "" {
			return nil, fmt.Errorf("issuer config missing identifier")
		}
		provider, err := NewProvider(cfg.Source, cfg.Identifier, cfg.HTTPClient, cfg.Retry, counter)
		if err != nil {
			return nil, fmt.Errorf("issuer %s: %w", cfg.Identifier, err)
		}
		cfg.provider = provider
		r.issuers[cfg.Identifier] = cfg
		r.setStatus(cfg.Identifier, StatusUnready)
	}
	return r, nil
}

// Resolve looks up an issuer by identifier. Unknown issuers fail with
// UnknownIssuer.
func (r *Registry) Resolve(identifier string) (*Config, *events.ValidationError) {
	cfg, ok := r.issuers[identifier]
	if !ok {
		return nil, r.counter.New(events.UnknownIssuer, "unknown issuer: "+identifier)
	}
	return cfg, nil
}

// StartBackgroundLoad launches one goroutine per HTTP-backed issuer that
// performs the initial load with the configured retry policy, honoring an
// optional process-wide startupDelay to let external IDPs become ready.
// Failures are logged and surfaced via per-issuer Status; they never abort
// the registry or the other issuers' loads.
func (r *Registry) StartBackgroundLoad(ctx context.Context, startupDelay time.Duration) {
	for identifier, cfg := range r.issuers {
		if cfg.Source.Kind == SourceStaticContent || cfg.Source.Kind == SourceFilePath {
			r.setStatus(identifier, StatusHealthy)
			continue
		}
		go r.loadOne(ctx, identifier, cfg, startupDelay)
	}
}

func (r *Registry) loadOne(ctx context.Context, identifier string, cfg *Config, startupDelay time.Duration) {
	if startupDelay > 0 {
		timer := time.NewTimer(startupDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
	}

	if _, verr := cfg.provider.Load(ctx, r.counter); verr != nil {
		r.logger.Warn("initial jwks load failed", "issuer", identifier, "event", verr.Event, "error", verr.Message)
		r.setStatus(identifier, StatusDegraded)
		return
	}
	r.setStatus(identifier, StatusHealthy)
}

func (r *Registry) setStatus(identifier string, s Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status[identifier] = s
	observability.IssuerStatus.WithLabelValues(identifier).Set(float64(s))
}

// StatusOf returns the current health status for an issuer.
func (r *Registry) StatusOf(identifier string) Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status[identifier]
}

// EnsureLoaded blocks until the issuer's first load has succeeded or
// failed permanently, for validations that arrive before background
// loading completes. Static/file sources return immediately.
func (r *Registry) EnsureLoaded(ctx context.Context, cfg *Config) *events.ValidationError {
	if cfg.provider.Snapshot() != nil {
		return nil
	}
	if cfg.Source.Kind == SourceStaticContent || cfg.Source.Kind == SourceFilePath {
		_, verr := cfg.provider.Load(ctx, r.counter)
		return verr
	}
	_, verr := cfg.provider.Load(ctx, r.counter)
	if verr != nil {
		r.setStatus(cfg.Identifier, StatusDegraded)
		return verr
	}
	r.setStatus(cfg.Identifier, StatusHealthy)
	return nil
}
