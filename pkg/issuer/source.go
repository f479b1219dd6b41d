package issuer

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/tokenguard/jwtguard/pkg/discovery"
	"github.com/tokenguard/jwtguard/pkg/events"
	"github.com/tokenguard/jwtguard/pkg/jwksload"
	"github.com/tokenguard/jwtguard/pkg/jwkset"
)

// SourceKind is the closed set of ways an issuer's JWKS can be configured.
// Exactly one must resolve to a JWKS source (§3 IssuerConfig invariant).
type SourceKind int

const (
	SourceStaticContent SourceKind = iota
	SourceDirectURL
	SourceWellKnownURL
	SourceFilePath
)

// Source describes where an issuer's keys come from. Exactly one of the
// Kind-specific fields is meaningful, selected by Kind.
type Source struct {
	Kind         SourceKind
	StaticJSON   []byte
	URL          string
	WellKnownURL string
	FilePath     string
}

// Validate enforces the "exactly one configured" invariant at construction
// time, matching the teacher's builder-with-many-optional-fields pattern
// replaced by validate-once-at-construction (see DESIGN.md REDESIGN notes).
func (s Source) Validate() error {
	set := 0
	if s.StaticJSON != nil {
		set++
	}
	if s.URL != "" {
		set++
	}
	if s.WellKnownURL != "" {
		set++
	}
	if s.FilePath != "" {
		set++
	}
	if set != 1 {
		return fmt.Errorf("issuer jwks_source must configure exactly one of {content, url, well-known-url, file-path}, got %d", set)
	}
	return nil
}

// Provider is the runtime handle an IssuerConfig holds for its JWKS source:
// a stable Snapshot/Status view plus a way to force a reload. HTTP-backed
// sources delegate to a jwksload.Loader; static/file sources resolve once
// at construction and never change.
type Provider struct {
	source     Source
	metricName string
	client     *http.Client
	retry      jwksload.RetryPolicy

	loader    *jwksload.Loader // non-nil for DirectURL/WellKnownURL
	staticGen uint64
	static    *jwkset.Snapshot // non-nil for StaticContent/FilePath
	staticErr *events.ValidationError

	discoveredURL string
}

// NewProvider builds the provider for source, resolving static/file
// sources synchronously. HTTP-backed sources are constructed lazily: the
// first Load call performs discovery (if needed) and the initial fetch.
// metricName labels any HTTP-backed loader's Prometheus series (normally
// the owning issuer's identifier).
func NewProvider(source Source, metricName string, client *http.Client, retry jwksload.RetryPolicy, counter *events.Counter) (*Provider, error) {
	if err := source.Validate(); err != nil {
		return nil, err
	}
	p := &Provider{source: source, metricName: metricName, client: client, retry: retry}

	switch source.Kind {
	case SourceStaticContent:
		snap, verr := jwkset.Parse(source.StaticJSON, "", 1, counter)
		p.static, p.staticErr = snap, verr
	case SourceFilePath:
		body, err := os.ReadFile(source.FilePath)
		if err != nil {
			return nil, fmt.Errorf("reading jwks file %s: %w", source.FilePath, err)
		}
		snap, verr := jwkset.Parse(body, "", 1, counter)
		p.static, p.staticErr = snap, verr
	case SourceDirectURL:
		p.loader = jwksload.New(source.URL, client, retry, nil).WithMetricName(metricName)
	case SourceWellKnownURL:
		// Loader is created lazily once discovery resolves jwks_uri.
	}
	return p, nil
}

// Load ensures a snapshot is available, performing discovery and/or the
// initial HTTP fetch as needed. Static/file sources return immediately.
func (p *Provider) Load(ctx context.Context, counter *events.Counter) (*jwkset.Snapshot, *events.ValidationError) {
	switch p.source.Kind {
	case SourceStaticContent, SourceFilePath:
		return p.static, p.staticErr
	case SourceDirectURL:
		return p.loader.Reload(ctx, jwksload.Conditional, counter)
	case SourceWellKnownURL:
		if p.loader == nil {
			doc, verr := discovery.Fetch(ctx, p.client, p.source.WellKnownURL, counter)
			if verr != nil {
				return nil, verr
			}
			p.discoveredURL = doc.JWKSURI
			p.loader = jwksload.New(doc.JWKSURI, p.client, p.retry, nil).WithMetricName(p.metricName)
		}
		return p.loader.Reload(ctx, jwksload.Conditional, counter)
	default:
		return nil, counter.New(events.JwksFetchFailed, "issuer has no configured jwks source")
	}
}

// Snapshot returns the last published snapshot without triggering a load.
func (p *Provider) Snapshot() *jwkset.Snapshot {
	if p.loader != nil {
		return p.loader.Snapshot()
	}
	return p.static
}

// Status returns the last published load status.
func (p *Provider) Status() jwksload.Status {
	switch {
	case p.loader != nil:
		return p.loader.Status()
	case p.staticErr != nil:
		return jwksload.StatusError
	case p.static != nil:
		return jwksload.StatusOK
	default:
		return jwksload.StatusUndefined
	}
}

// Reload forces a fresh load for HTTP-backed sources (Forced mode: no
// conditional GET; the previous snapshot is kept if the load fails);
// static/file sources are immutable and unaffected.
func (p *Provider) Reload(ctx context.Context, counter *events.Counter) (*jwkset.Snapshot, *events.ValidationError) {
	if p.loader == nil {
		return p.Load(ctx, counter)
	}
	return p.loader.Reload(ctx, jwksload.Forced, counter)
}
