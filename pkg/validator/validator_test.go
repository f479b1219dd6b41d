package validator_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokenguard/jwtguard/pkg/events"
	"github.com/tokenguard/jwtguard/pkg/issuer"
	"github.com/tokenguard/jwtguard/pkg/validator"
)

func TestValidateAccessHappyPath(t *testing.T) {
	key := generateRSAKey(t)
	now := time.Unix(1700000000, 0)
	reg, counter := newTestRegistry(t, key, "kid-1", "https://issuer.example", nil)

	token := signToken(t, key, "kid-1", nil, map[string]any{
		"iss":   "https://issuer.example",
		"sub":   "alice",
		"exp":   now.Add(1 * time.Hour).Unix(),
		"iat":   now.Unix(),
		"scope": "read write",
	})

	tv := validator.NewTokenValidator(reg, counter, defaultOptionsWithClock(now))
	at, verr := tv.ValidateAccess(context.Background(), token)
	require.Nil(t, verr)
	assert.Equal(t, "alice", at.Subject)
	assert.Equal(t, "https://issuer.example", at.Issuer)
	assert.Equal(t, []string{"read", "write"}, at.Scopes)
}

func TestValidateAccessRejectsExpiredToken(t *testing.T) {
	key := generateRSAKey(t)
	now := time.Unix(1700000000, 0)
	reg, counter := newTestRegistry(t, key, "kid-1", "https://issuer.example", nil)

	token := signToken(t, key, "kid-1", nil, map[string]any{
		"iss": "https://issuer.example",
		"sub": "alice",
		"exp": now.Add(-1 * time.Hour).Unix(),
		"iat": now.Add(-2 * time.Hour).Unix(),
	})

	tv := validator.NewTokenValidator(reg, counter, defaultOptionsWithClock(now))
	_, verr := tv.ValidateAccess(context.Background(), token)
	require.NotNil(t, verr)
	assert.Equal(t, events.TokenExpired, verr.Event)
}

func TestValidateAccessExpBoundaryWithinLeewayPasses(t *testing.T) {
	key := generateRSAKey(t)
	now := time.Unix(1700000000, 0)
	reg, counter := newTestRegistry(t, key, "kid-1", "https://issuer.example", nil)

	// exp 10s in the past, default leeway 30s: should still pass.
	token := signToken(t, key, "kid-1", nil, map[string]any{
		"iss":   "https://issuer.example",
		"sub":   "alice",
		"exp":   now.Add(-10 * time.Second).Unix(),
		"iat":   now.Add(-1 * time.Hour).Unix(),
		"scope": "read",
	})

	tv := validator.NewTokenValidator(reg, counter, defaultOptionsWithClock(now))
	_, verr := tv.ValidateAccess(context.Background(), token)
	assert.Nil(t, verr)
}

func TestValidateAccessNbfBoundaryOutsideLeewayFails(t *testing.T) {
	key := generateRSAKey(t)
	now := time.Unix(1700000000, 0)
	reg, counter := newTestRegistry(t, key, "kid-1", "https://issuer.example", nil)

	token := signToken(t, key, "kid-1", nil, map[string]any{
		"iss": "https://issuer.example",
		"sub": "alice",
		"exp": now.Add(1 * time.Hour).Unix(),
		"iat": now.Unix(),
		"nbf": now.Add(1 * time.Minute).Unix(),
	})

	tv := validator.NewTokenValidator(reg, counter, defaultOptionsWithClock(now))
	_, verr := tv.ValidateAccess(context.Background(), token)
	require.NotNil(t, verr)
	assert.Equal(t, events.TokenNotYetValid, verr.Event)
}

func TestValidateAccessRejectsMissingSub(t *testing.T) {
	key := generateRSAKey(t)
	now := time.Unix(1700000000, 0)
	reg, counter := newTestRegistry(t, key, "kid-1", "https://issuer.example", nil)

	token := signToken(t, key, "kid-1", nil, map[string]any{
		"iss": "https://issuer.example",
		"exp": now.Add(1 * time.Hour).Unix(),
		"iat": now.Unix(),
	})

	tv := validator.NewTokenValidator(reg, counter, defaultOptionsWithClock(now))
	_, verr := tv.ValidateAccess(context.Background(), token)
	require.NotNil(t, verr)
	assert.Equal(t, events.MissingClaim, verr.Event)
}

func TestValidateAccessAllowsMissingSubWhenWaived(t *testing.T) {
	key := generateRSAKey(t)
	now := time.Unix(1700000000, 0)
	reg, counter := newTestRegistry(t, key, "kid-1", "https://issuer.example", func(cfg *issuer.Config) {
		cfg.ClaimSubOptional = true
	})

	token := signToken(t, key, "kid-1", nil, map[string]any{
		"iss":   "https://issuer.example",
		"exp":   now.Add(1 * time.Hour).Unix(),
		"iat":   now.Unix(),
		"scope": "read",
	})

	tv := validator.NewTokenValidator(reg, counter, defaultOptionsWithClock(now))
	at, verr := tv.ValidateAccess(context.Background(), token)
	require.Nil(t, verr)
	assert.Equal(t, "", at.Subject)
	assert.Equal(t, uint64(1), counter.Value(events.SubjectClaimWaived))
}

func TestValidateAccessRejectsMissingScopeAndScp(t *testing.T) {
	key := generateRSAKey(t)
	now := time.Unix(1700000000, 0)
	reg, counter := newTestRegistry(t, key, "kid-1", "https://issuer.example", nil)

	token := signToken(t, key, "kid-1", nil, map[string]any{
		"iss": "https://issuer.example",
		"sub": "alice",
		"exp": now.Add(1 * time.Hour).Unix(),
		"iat": now.Unix(),
	})

	tv := validator.NewTokenValidator(reg, counter, defaultOptionsWithClock(now))
	_, verr := tv.ValidateAccess(context.Background(), token)
	require.NotNil(t, verr)
	assert.Equal(t, events.MissingClaim, verr.Event)
}

func TestValidateAccessAcceptsScpClaim(t *testing.T) {
	key := generateRSAKey(t)
	now := time.Unix(1700000000, 0)
	reg, counter := newTestRegistry(t, key, "kid-1", "https://issuer.example", nil)

	token := signToken(t, key, "kid-1", nil, map[string]any{
		"iss": "https://issuer.example",
		"sub": "alice",
		"exp": now.Add(1 * time.Hour).Unix(),
		"iat": now.Unix(),
		"scp": []string{"read", "write"},
	})

	tv := validator.NewTokenValidator(reg, counter, defaultOptionsWithClock(now))
	at, verr := tv.ValidateAccess(context.Background(), token)
	require.Nil(t, verr)
	assert.Equal(t, []string{"read", "write"}, at.Scopes)
}

func TestValidateAccessRejectsWrongAudience(t *testing.T) {
	key := generateRSAKey(t)
	now := time.Unix(1700000000, 0)
	reg, counter := newTestRegistry(t, key, "kid-1", "https://issuer.example", func(cfg *issuer.Config) {
		cfg.ExpectedAudiences = []string{"wanted-aud"}
	})

	token := signToken(t, key, "kid-1", nil, map[string]any{
		"iss": "https://issuer.example",
		"sub": "alice",
		"aud": "other-aud",
		"exp": now.Add(1 * time.Hour).Unix(),
		"iat": now.Unix(),
	})

	tv := validator.NewTokenValidator(reg, counter, defaultOptionsWithClock(now))
	_, verr := tv.ValidateAccess(context.Background(), token)
	require.NotNil(t, verr)
	assert.Equal(t, events.AudienceMismatch, verr.Event)
}

func TestValidateAccessAcceptsMatchingAudience(t *testing.T) {
	key := generateRSAKey(t)
	now := time.Unix(1700000000, 0)
	reg, counter := newTestRegistry(t, key, "kid-1", "https://issuer.example", func(cfg *issuer.Config) {
		cfg.ExpectedAudiences = []string{"wanted-aud"}
	})

	token := signToken(t, key, "kid-1", nil, map[string]any{
		"iss":   "https://issuer.example",
		"sub":   "alice",
		"aud":   []string{"other-aud", "wanted-aud"},
		"exp":   now.Add(1 * time.Hour).Unix(),
		"iat":   now.Unix(),
		"scope": "read",
	})

	tv := validator.NewTokenValidator(reg, counter, defaultOptionsWithClock(now))
	at, verr := tv.ValidateAccess(context.Background(), token)
	require.Nil(t, verr)
	assert.ElementsMatch(t, []string{"other-aud", "wanted-aud"}, at.Audience)
}

func TestValidateAccessRejectsMissingAzpWhenRequired(t *testing.T) {
	key := generateRSAKey(t)
	now := time.Unix(1700000000, 0)
	reg, counter := newTestRegistry(t, key, "kid-1", "https://issuer.example", func(cfg *issuer.Config) {
		cfg.ExpectedClientID = "client-1"
	})

	token := signToken(t, key, "kid-1", nil, map[string]any{
		"iss": "https://issuer.example",
		"sub": "alice",
		"exp": now.Add(1 * time.Hour).Unix(),
		"iat": now.Unix(),
	})

	tv := validator.NewTokenValidator(reg, counter, defaultOptionsWithClock(now))
	_, verr := tv.ValidateAccess(context.Background(), token)
	require.NotNil(t, verr)
	assert.Equal(t, events.MissingClaim, verr.Event)
}

func TestValidateAccessRejectsMismatchedAzp(t *testing.T) {
	key := generateRSAKey(t)
	now := time.Unix(1700000000, 0)
	reg, counter := newTestRegistry(t, key, "kid-1", "https://issuer.example", func(cfg *issuer.Config) {
		cfg.ExpectedClientID = "client-1"
	})

	token := signToken(t, key, "kid-1", nil, map[string]any{
		"iss": "https://issuer.example",
		"sub": "alice",
		"azp": "client-2",
		"exp": now.Add(1 * time.Hour).Unix(),
		"iat": now.Unix(),
	})

	tv := validator.NewTokenValidator(reg, counter, defaultOptionsWithClock(now))
	_, verr := tv.ValidateAccess(context.Background(), token)
	require.NotNil(t, verr)
	assert.Equal(t, events.AzpMismatch, verr.Event)
}

func TestValidateAccessRejectsUnknownIssuer(t *testing.T) {
	key := generateRSAKey(t)
	now := time.Unix(1700000000, 0)
	reg, counter := newTestRegistry(t, key, "kid-1", "https://issuer.example", nil)

	token := signToken(t, key, "kid-1", nil, map[string]any{
		"iss": "https://someone-else.example",
		"sub": "alice",
		"exp": now.Add(1 * time.Hour).Unix(),
		"iat": now.Unix(),
	})

	tv := validator.NewTokenValidator(reg, counter, defaultOptionsWithClock(now))
	_, verr := tv.ValidateAccess(context.Background(), token)
	require.NotNil(t, verr)
	assert.Equal(t, events.UnknownIssuer, verr.Event)
}

func TestValidateAccessRejectsNoneAlgorithm(t *testing.T) {
	key := generateRSAKey(t)
	now := time.Unix(1700000000, 0)
	reg, counter := newTestRegistry(t, key, "kid-1", "https://issuer.example", nil)

	token := signToken(t, key, "kid-1", map[string]any{"alg": "none"}, map[string]any{
		"iss": "https://issuer.example",
		"sub": "alice",
		"exp": now.Add(1 * time.Hour).Unix(),
		"iat": now.Unix(),
	})

	tv := validator.NewTokenValidator(reg, counter, defaultOptionsWithClock(now))
	_, verr := tv.ValidateAccess(context.Background(), token)
	require.NotNil(t, verr)
	assert.Equal(t, events.NoneAlgorithm, verr.Event)
}

func TestValidateAccessRejectsHMACAlgorithm(t *testing.T) {
	key := generateRSAKey(t)
	now := time.Unix(1700000000, 0)
	reg, counter := newTestRegistry(t, key, "kid-1", "https://issuer.example", nil)

	token := signToken(t, key, "kid-1", map[string]any{"alg": "HS256"}, map[string]any{
		"iss": "https://issuer.example",
		"sub": "alice",
		"exp": now.Add(1 * time.Hour).Unix(),
		"iat": now.Unix(),
	})

	tv := validator.NewTokenValidator(reg, counter, defaultOptionsWithClock(now))
	_, verr := tv.ValidateAccess(context.Background(), token)
	require.NotNil(t, verr)
	assert.Equal(t, events.UnsupportedAlgorithm, verr.Event)
}

func TestValidateAccessRejectsTamperedSignature(t *testing.T) {
	key := generateRSAKey(t)
	now := time.Unix(1700000000, 0)
	reg, counter := newTestRegistry(t, key, "kid-1", "https://issuer.example", nil)

	token := signToken(t, key, "kid-1", nil, map[string]any{
		"iss": "https://issuer.example",
		"sub": "alice",
		"exp": now.Add(1 * time.Hour).Unix(),
		"iat": now.Unix(),
	})
	tampered := token[:len(token)-2] + "xx"

	tv := validator.NewTokenValidator(reg, counter, defaultOptionsWithClock(now))
	_, verr := tv.ValidateAccess(context.Background(), tampered)
	require.NotNil(t, verr)
	assert.Equal(t, events.SignatureInvalid, verr.Event)
}

func TestValidateAccessRejectsUnknownKid(t *testing.T) {
	key := generateRSAKey(t)
	now := time.Unix(1700000000, 0)
	reg, counter := newTestRegistry(t, key, "kid-1", "https://issuer.example", nil)

	token := signToken(t, key, "kid-does-not-exist", nil, map[string]any{
		"iss": "https://issuer.example",
		"sub": "alice",
		"exp": now.Add(1 * time.Hour).Unix(),
		"iat": now.Unix(),
	})

	tv := validator.NewTokenValidator(reg, counter, defaultOptionsWithClock(now))
	_, verr := tv.ValidateAccess(context.Background(), token)
	require.NotNil(t, verr)
	assert.Equal(t, events.NoKeyForKid, verr.Event)
}

func TestValidateIDRequiresAudEvenWithoutExpectedAudiences(t *testing.T) {
	key := generateRSAKey(t)
	now := time.Unix(1700000000, 0)
	reg, counter := newTestRegistry(t, key, "kid-1", "https://issuer.example", nil)

	token := signToken(t, key, "kid-1", nil, map[string]any{
		"iss": "https://issuer.example",
		"sub": "alice",
		"exp": now.Add(1 * time.Hour).Unix(),
		"iat": now.Unix(),
	})

	tv := validator.NewTokenValidator(reg, counter, defaultOptionsWithClock(now))
	_, verr := tv.ValidateID(context.Background(), token)
	require.NotNil(t, verr)
	assert.Equal(t, events.MissingClaim, verr.Event)
}

func TestValidateIDHappyPath(t *testing.T) {
	key := generateRSAKey(t)
	now := time.Unix(1700000000, 0)
	reg, counter := newTestRegistry(t, key, "kid-1", "https://issuer.example", nil)

	token := signToken(t, key, "kid-1", nil, map[string]any{
		"iss":   "https://issuer.example",
		"sub":   "alice",
		"aud":   "client-1",
		"exp":   now.Add(1 * time.Hour).Unix(),
		"iat":   now.Unix(),
		"nonce": "abc123",
	})

	tv := validator.NewTokenValidator(reg, counter, defaultOptionsWithClock(now))
	idt, verr := tv.ValidateID(context.Background(), token)
	require.Nil(t, verr)
	assert.Equal(t, "abc123", idt.Nonce)
	assert.Equal(t, []string{"client-1"}, idt.Audience)
}

func TestValidateRefreshOpaqueTokenPassesThrough(t *testing.T) {
	key := generateRSAKey(t)
	reg, counter := newTestRegistry(t, key, "kid-1", "https://issuer.example", nil)

	tv := validator.NewTokenValidator(reg, counter, validator.DefaultOptions())
	rt, verr := tv.ValidateRefresh(context.Background(), "opaque-refresh-token-value")
	require.Nil(t, verr)
	assert.True(t, rt.Opaque)
	assert.Equal(t, "opaque-refresh-token-value", rt.RawToken)
}

func TestValidateRefreshJWTShapedValidatesNormally(t *testing.T) {
	key := generateRSAKey(t)
	now := time.Unix(1700000000, 0)
	reg, counter := newTestRegistry(t, key, "kid-1", "https://issuer.example", nil)

	token := signToken(t, key, "kid-1", nil, map[string]any{
		"iss": "https://issuer.example",
		"sub": "alice",
	})

	tv := validator.NewTokenValidator(reg, counter, defaultOptionsWithClock(now))
	rt, verr := tv.ValidateRefresh(context.Background(), token)
	require.Nil(t, verr)
	assert.False(t, rt.Opaque)
	assert.Equal(t, "alice", rt.Subject)
}

func TestValidateAccessRejectsEmptyToken(t *testing.T) {
	key := generateRSAKey(t)
	reg, counter := newTestRegistry(t, key, "kid-1", "https://issuer.example", nil)

	tv := validator.NewTokenValidator(reg, counter, validator.DefaultOptions())
	_, verr := tv.ValidateAccess(context.Background(), "")
	require.NotNil(t, verr)
	assert.Equal(t, events.TokenEmpty, verr.Event)
}

func TestValidateAccessKeyRotationReloadsOnceOnMiss(t *testing.T) {
	key1 := generateRSAKey(t)
	key2 := generateRSAKey(t)
	now := time.Unix(1700000000, 0)

	counter := events.NewCounter()
	cfg := &issuer.Config{
		Identifier:        "https://issuer.example",
		AllowedAlgorithms: []string{"RS256"},
		Source:            issuer.Source{StaticJSON: jwksBodyFor(key1, "kid-1")},
	}
	reg, err := issuer.New([]*issuer.Config{cfg}, counter, nil)
	require.NoError(t, err)

	// Prime the snapshot with key1/kid-1.
	require.Nil(t, reg.EnsureLoaded(context.Background(), cfg))

	// Sign with key2 under a kid the current static snapshot doesn't have.
	// Since the source is static, a reload returns the same snapshot parsed
	// at construction and still misses - this exercises the single-retry path returning NoKeyForKid.
	token := signToken(t, key2, "kid-2", nil, map[string]any{
		"iss": "https://issuer.example",
		"sub": "alice",
		"exp": now.Add(1 * time.Hour).Unix(),
		"iat": now.Unix(),
	})

	tv := validator.NewTokenValidator(reg, counter, defaultOptionsWithClock(now))
	_, verr := tv.ValidateAccess(context.Background(), token)
	require.NotNil(t, verr)
	assert.Equal(t, events.NoKeyForKid, verr.Event)
}

func TestValidateAccessAlgorithmConfusionRejected(t *testing.T) {
	key := generateRSAKey(t)
	now := time.Unix(1700000000, 0)
	reg, counter := newTestRegistry(t, key, "kid-1", "https://issuer.example", func(cfg *issuer.Config) {
		cfg.AllowedAlgorithms = []string{"RS256", "ES256"}
	})

	// alg header claims ES256 but the key served is RSA: key/alg type mismatch.
	token := signToken(t, key, "kid-1", map[string]any{"alg": "ES256"}, map[string]any{
		"iss": "https://issuer.example",
		"sub": "alice",
		"exp": now.Add(1 * time.Hour).Unix(),
		"iat": now.Unix(),
	})

	tv := validator.NewTokenValidator(reg, counter, defaultOptionsWithClock(now))
	_, verr := tv.ValidateAccess(context.Background(), token)
	require.NotNil(t, verr)
	assert.Equal(t, events.KeyAlgorithmMismatch, verr.Event)
}
