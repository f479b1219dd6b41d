// Package jwksload implements the HTTP JWKS loader: conditional GET with
// ETag-aware caching, retry with exponential backoff and jitter, and
// single-flight coalescing of concurrent loads for the same source.
package jwksload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/tokenguard/jwtguard/pkg/events"
	"github.com/tokenguard/jwtguard/pkg/jwkset"
	"github.com/tokenguard/jwtguard/pkg/observability"
)

// Status is the per-source loader state, published under the same memory
// fence as the snapshot it describes so observers never see a status newer
// than the snapshot it refers to.
type Status int

const (
	StatusUndefined Status = iota
	StatusOK
	StatusError
)

// RetryPolicy configures the exponential backoff with jitter schedule from
// spec.md §4.5.
type RetryPolicy struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	Multiplier    float64
	MaxDelay      time.Duration
	JitterFactor  float64
}

// DefaultRetryPolicy matches spec.md's defaults.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  5,
		InitialDelay: 1 * time.Second,
		Multiplier:   2.0,
		MaxDelay:     60 * time.Second,
		JitterFactor: 0.1,
	}
}

func (p RetryPolicy) toBackOff() backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.InitialDelay
	eb.Multiplier = p.Multiplier
	eb.MaxInterval = p.MaxDelay
	eb.RandomizationFactor = p.JitterFactor
	eb.MaxElapsedTime = 0 // bounded by MaxAttempts via backoff.WithMaxRetries instead
	return backoff.WithMaxRetries(eb, uint64(p.MaxAttempts-1))
}

// state holds everything published atomically for one source.
type state struct {
	snapshot *jwkset.Snapshot
	status   Status
	lastErr  error
}

// Loader fetches and caches a single JWKS source over HTTP. Reload is
// single-writer: only refresh (directly or via single-flight) mutates
// current; readers observe atomically-published successor states.
type Loader struct {
	url        string
	metricName string
	client     *http.Client
	retry      RetryPolicy
	logger     *slog.Logger
	generation atomic.Uint64

	current atomic.Pointer[state]
	group   singleflight.Group
}

// New creates a Loader for the given JWKS URL. client defaults to
// http.DefaultClient if nil; logger defaults to slog.Default() if nil. The
// loader's JWKS URL also doubles as its Prometheus "issuer" label; callers
// that want a more readable label should set it via WithMetricName.
func New(url string, client *http.Client, retry RetryPolicy, logger *slog.Logger) *Loader {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	l := &Loader{url: url, metricName: url, client: client, retry: retry, logger: logger}
	l.current.Store(&state{status: StatusUndefined})
	return l
}

// WithMetricName overrides the Prometheus "issuer" label this loader
// reports under, defaulting to the JWKS URL itself.
func (l *Loader) WithMetricName(name string) *Loader {
	l.metricName = name
	return l
}

// Snapshot returns the most recently published snapshot, or nil if no load
// has ever succeeded.
func (l *Loader) Snapshot() *jwkset.Snapshot {
	return l.current.Load().snapshot
}

// Status returns the most recently published load status.
func (l *Loader) Status() Status {
	return l.current.Load().status
}

// ReloadMode selects how Reload treats the existing ETag/snapshot.
type ReloadMode int

const (
	// Conditional preserves the ETag and snapshot, issuing a conditional GET.
	Conditional ReloadMode = iota
	// Forced sends no If-None-Match, so a successful response replaces the
	// snapshot unconditionally. The stored snapshot is not cleared first: if
	// the load fails, the previous snapshot stays in place.
	Forced
)

// Reload fetches the JWKS source, applying the configured retry policy to
// retryable failures. Concurrent callers coalesce onto a single in-flight
// load (§4.5 "Concurrency"); all waiters observe the same resulting state.
// Cancellation mid-retry aborts without publishing a partial snapshot.
func (l *Loader) Reload(ctx context.Context, mode ReloadMode, counter *events.Counter) (*jwkset.Snapshot, *events.ValidationError) {
	v, err, _ := l.group.Do(l.url, func() (any, error) {
		return l.doReload(ctx, mode, counter)
	})
	if err != nil {
		if ve, ok := err.(*events.ValidationError); ok {
			return nil, ve
		}
		return nil, counter.New(events.JwksFetchFailed, err.Error())
	}
	return v.(*jwkset.Snapshot), nil
}

func (l *Loader) doReload(ctx context.Context, mode ReloadMode, counter *events.Counter) (*jwkset.Snapshot, error) {
	correlationID := uuid.NewString()
	prior := l.current.Load()

	etag := prior.snapshot
	priorETag := ""
	if mode == Conditional && etag != nil {
		priorETag = etag.ETag
	}

	var result *jwkset.Snapshot
	attempt := 0
	operation := func() error {
		attempt++
		select {
		case <-ctx.Done():
			return backoff.Permanent(ctx.Err())
		default:
		}

		snap, notModified, retryable, err := l.fetchOnce(ctx, priorETag, counter)
		if err != nil {
			if retryable {
				l.logger.Debug("jwks load attempt failed, retrying",
					"url", l.url, "correlation_id", correlationID, "attempt", attempt, "error", err)
				return err
			}
			return backoff.Permanent(err)
		}
		if notModified {
			result = prior.snapshot
			return nil
		}
		result = snap
		return nil
	}

	bo := backoff.WithContext(l.retry.toBackOff(), ctx)
	err := backoff.Retry(operation, bo)
	if err != nil {
		if ctx.Err() != nil {
			l.logger.Debug("jwks load canceled", "url", l.url, "correlation_id", correlationID)
			// No partial snapshot is ever published on cancellation.
			l.publish(&state{snapshot: prior.snapshot, status: StatusError, lastErr: ctx.Err()})
			return nil, counter.New(events.KeyUnavailable, "jwks load canceled: "+ctx.Err().Error())
		}
		l.publish(&state{snapshot: prior.snapshot, status: StatusError, lastErr: err})
		// A permanent failure may already be a categorized ValidationError
		// (e.g. JwksParseFailed from a 200 response with a malformed body);
		// propagate it as-is instead of double-counting under a generic
		// fetch-failed event.
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			if ve, ok := perm.Err.(*events.ValidationError); ok {
				return nil, ve
			}
		}
		return nil, counter.New(events.JwksFetchFailed, "jwks load failed after retries: "+err.Error())
	}

	l.publish(&state{snapshot: result, status: StatusOK})
	l.logger.Debug("jwks load succeeded", "url", l.url, "correlation_id", correlationID, "attempt", attempt)
	return result, nil
}

func (l *Loader) publish(s *state) {
	l.current.Store(s)
}

// fetchOnce issues one conditional GET and classifies the response per
// spec.md §4.5's 200/304/4xx/5xx state machine.
func (l *Loader) fetchOnce(ctx context.Context, etag string, counter *events.Counter) (snap *jwkset.Snapshot, notModified bool, retryable bool, err error) {
	start := time.Now()
	outcome := "retryable_error"
	defer func() {
		observability.LoaderLatency.WithLabelValues(l.metricName).Observe(time.Since(start).Seconds())
		observability.LoaderAttemptsTotal.WithLabelValues(l.metricName, outcome).Inc()
	}()

	req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, l.url, nil)
	if reqErr != nil {
		outcome = "permanent_error"
		return nil, false, false, fmt.Errorf("building jwks request: %w", reqErr)
	}
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}

	resp, doErr := l.client.Do(req)
	if doErr != nil {
		return nil, false, true, fmt.Errorf("fetching jwks: %w", doErr)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return nil, false, true, fmt.Errorf("reading jwks response: %w", readErr)
		}
		gen := l.generation.Add(1)
		parsed, verr := jwkset.Parse(body, resp.Header.Get("ETag"), gen, counter)
		if verr != nil {
			outcome = "permanent_error"
			return nil, false, false, verr
		}
		outcome = "ok"
		return parsed, false, false, nil

	case resp.StatusCode == http.StatusNotModified:
		outcome = "not_modified"
		return nil, true, false, nil

	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		outcome = "permanent_error"
		return nil, false, false, fmt.Errorf("jwks endpoint returned %d", resp.StatusCode)

	default:
		return nil, false, true, fmt.Errorf("jwks endpoint returned %d", resp.StatusCode)
	}
}
