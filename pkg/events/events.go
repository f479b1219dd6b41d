// Package events defines the closed taxonomy of validation failures and a
// lock-free counter for observing them.
package events

import "sync/atomic"

// EventType is a closed enum of every outcome the validation pipeline can
// report. Every rejection maps to exactly one EventType; success paths are
// not counted here.
type EventType string

// Structural failures: the token never made it past format/parse checks.
const (
	TokenEmpty      EventType = "TOKEN_EMPTY"
	TokenTooLarge   EventType = "TOKEN_TOO_LARGE"
	MalformedToken  EventType = "MALFORMED_TOKEN"
	JSONParseFailed EventType = "JSON_PARSE_FAILED"
)

// Header failures.
const (
	UnsupportedAlgorithm EventType = "UNSUPPORTED_ALGORITHM"
	NoneAlgorithm        EventType = "NONE_ALGORITHM"
	UnsupportedTokenType EventType = "UNSUPPORTED_TOKEN_TYPE"
)

// Issuer failures.
const (
	MissingIssuerClaim EventType = "MISSING_ISSUER_CLAIM"
	UnknownIssuer      EventType = "UNKNOWN_ISSUER"
	IssuerMismatch     EventType = "ISSUER_MISMATCH"
)

// Key/JWKS failures.
const (
	NoKeyForKid           EventType = "NO_KEY_FOR_KID"
	AmbiguousKeySelection EventType = "AMBIGUOUS_KEY_SELECTION"
	KeyAlgorithmMismatch  EventType = "KEY_ALGORITHM_MISMATCH"
	JwksFetchFailed       EventType = "JWKS_FETCH_FAILED"
	JwksParseFailed       EventType = "JWKS_PARSE_FAILED"
	KeyUnavailable        EventType = "KEY_UNAVAILABLE"
)

// Signature failures.
const (
	SignatureInvalid EventType = "SIGNATURE_INVALID"
)

// Claims failures.
const (
	MissingClaim      EventType = "MISSING_CLAIM"
	InvalidClaimShape EventType = "INVALID_CLAIM_SHAPE"
	TokenExpired      EventType = "TOKEN_EXPIRED"
	TokenNotYetValid  EventType = "TOKEN_NOT_YET_VALID"
	AudienceMismatch  EventType = "AUDIENCE_MISMATCH"
	AzpMismatch       EventType = "AZP_MISMATCH"
)

// Observability-only events: counted for visibility but never rejections by
// themselves (e.g. a duplicate JSON key, or a waived sub-optional claim).
const (
	DuplicateJSONKey    EventType = "DUPLICATE_JSON_KEY"
	SubjectClaimWaived  EventType = "SUBJECT_CLAIM_WAIVED"
	DuplicateKidDropped EventType = "DUPLICATE_KID_DROPPED"
	KeyDroppedUnknown   EventType = "KEY_DROPPED_UNKNOWN_KTY_ALG"
)

// allEvents is the closed set, used by Counter.Snapshot to always report
// every taxonomy member even when its count is zero.
var allEvents = []EventType{
	TokenEmpty, TokenTooLarge, MalformedToken, JSONParseFailed,
	UnsupportedAlgorithm, NoneAlgorithm, UnsupportedTokenType,
	MissingIssuerClaim, UnknownIssuer, IssuerMismatch,
	NoKeyForKid, AmbiguousKeySelection, KeyAlgorithmMismatch, JwksFetchFailed, JwksParseFailed, KeyUnavailable,
	SignatureInvalid,
	MissingClaim, InvalidClaimShape, TokenExpired, TokenNotYetValid, AudienceMismatch, AzpMismatch,
	DuplicateJSONKey, SubjectClaimWaived, DuplicateKidDropped, KeyDroppedUnknown,
}

// Counter is a lock-free, monotonically-increasing taxonomy-indexed counter.
// Writes never block; reads never block writers. The zero value is not
// usable, use NewCounter.
type Counter struct {
	counts map[EventType]*atomic.Uint64
}

// NewCounter allocates a Counter with every known EventType pre-registered,
// so Increment never needs to take a lock to grow the map.
func NewCounter() *Counter {
	c := &Counter{counts: make(map[EventType]*atomic.Uint64, len(allEvents))}
	for _, e := range allEvents {
		c.counts[e] = &atomic.Uint64{}
	}
	return c
}

// Increment bumps the counter for the given event by one. Incrementing an
// EventType outside the closed taxonomy panics: that indicates a library
// bug, not a runtime condition a caller can hit.
func (c *Counter) Increment(event EventType) {
	counter, ok := c.counts[event]
	if !ok {
		panic("events: unregistered EventType " + string(event))
	}
	counter.Add(1)
}

// Value returns the current count for the given event.
func (c *Counter) Value(event EventType) uint64 {
	counter, ok := c.counts[event]
	if !ok {
		return 0
	}
	return counter.Load()
}

// Snapshot returns a point-in-time copy of every event's count. Two calls
// racing with concurrent Increment calls may observe different totals for
// different keys, but no individual count is ever torn.
func (c *Counter) Snapshot() map[EventType]uint64 {
	out := make(map[EventType]uint64, len(c.counts))
	for e, counter := range c.counts {
		out[e] = counter.Load()
	}
	return out
}

// ValidationError is the error type returned by every rejection in the
// validation pipeline. It carries the EventType for programmatic decisions
// and a short message for logging. It never carries the raw token; it may
// carry header-derived fields (kid, alg) and the issuer identifier.
type ValidationError struct {
	Event   EventType
	Message string

	// Issuer is the issuer identifier, if resolved before the failure.
	Issuer string
	// Kid is the header's key id, if extracted before the failure.
	Kid string
	// Alg is the header's algorithm, if extracted before the failure.
	Alg string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// New constructs a ValidationError for the given event and also increments
// the matching counter, so every rejection is counted exactly once at the
// point it is created.
func (c *Counter) New(event EventType, message string) *ValidationError {
	c.Increment(event)
	return &ValidationError{Event: event, Message: message}
}

// NewWithContext is like New but attaches issuer/kid/alg fields useful for
// logging at the call site, without ever including the raw token.
func (c *Counter) NewWithContext(event EventType, message, issuer, kid, alg string) *ValidationError {
	c.Increment(event)
	return &ValidationError{Event: event, Message: message, Issuer: issuer, Kid: kid, Alg: alg}
}
