// Package integration exercises jwtguard end to end: real httptest-backed
// identity providers (JWKS and OIDC discovery endpoints) feeding a
// configuration-driven issuer registry and validator pipeline, the way a
// deployed service would be wired at startup.
package integration

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tokenguard/jwtguard/pkg/events"
	"github.com/tokenguard/jwtguard/pkg/issuer"
	"github.com/tokenguard/jwtguard/pkg/jwtconfig"
	"github.com/tokenguard/jwtguard/pkg/validator"
)

func b64url(b []byte) string { return base64.RawURLEncoding.EncodeToString(b) }

// issuerKey is one RSA keypair published under a kid, usable to both sign
// tokens and to render a JWK entry.
type issuerKey struct {
	kid string
	key *rsa.PrivateKey
}

func newIssuerKey(t *testing.T, kid string) issuerKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return issuerKey{kid: kid, key: key}
}

func (k issuerKey) jwk() map[string]any {
	return map[string]any{
		"kty": "RSA",
		"kid": k.kid,
		"alg": "RS256",
		"n":   b64url(k.key.PublicKey.N.Bytes()),
		"e":   b64url([]byte{1, 0, 1}),
	}
}

func jwksBody(keys ...issuerKey) []byte {
	jwks := make([]map[string]any, 0, len(keys))
	for _, k := range keys {
		jwks = append(jwks, k.jwk())
	}
	body, _ := json.Marshal(map[string]any{"keys": jwks})
	return body
}

// sign builds a compact RS256 JWT over payload, signed by k.
func (k issuerKey) sign(t *testing.T, payload map[string]any) string {
	t.Helper()
	header := map[string]any{"alg": "RS256", "typ": "JWT", "kid": k.kid}
	headerJSON, err := json.Marshal(header)
	require.NoError(t, err)
	payloadJSON, err := json.Marshal(payload)
	require.NoError(t, err)

	signingInput := b64url(headerJSON) + "." + b64url(payloadJSON)
	digest := sha256.Sum256([]byte(signingInput))
	sig, err := rsa.SignPKCS1v15(rand.Reader, k.key, crypto.SHA256, digest[:])
	require.NoError(t, err)
	return signingInput + "." + b64url(sig)
}

// mockIDP is an httptest-backed identity provider serving a JWKS document
// (and optionally an OIDC discovery document pointing back at it). The
// JWKS body can be swapped mid-test to simulate key rotation.
type mockIDP struct {
	server    *httptest.Server
	keys      []issuerKey
	unhealthy bool
}

func newMockIDP(t *testing.T) *mockIDP {
	t.Helper()
	idp := &mockIDP{}
	mux := http.NewServeMux()
	mux.HandleFunc("/jwks.json", func(w http.ResponseWriter, r *http.Request) {
		if idp.unhealthy {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(jwksBody(idp.keys...))
	})
	idp.server = httptest.NewServer(nil)
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"issuer":   idp.server.URL,
			"jwks_uri": idp.server.URL + "/jwks.json",
		})
	})
	idp.server.Config.Handler = mux
	return idp
}

func (idp *mockIDP) rotate(keys ...issuerKey) { idp.keys = keys }

func (idp *mockIDP) close() { idp.server.Close() }

func (idp *mockIDP) jwksURL() string { return idp.server.URL + "/jwks.json" }

func (idp *mockIDP) wellKnownURL() string { return idp.server.URL + "/.well-known/openid-configuration" }

func (idp *mockIDP) issuer() string { return idp.server.URL }

func fastRetryYAML() string {
	return `
    retry:
      max_attempts: 3
      initial_delay: 5ms
      multiplier: 2.0
      max_delay: 50ms
      jitter_factor: 0
`
}

func unixAt(base time.Time, d time.Duration) int64 { return base.Add(d).Unix() }

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "jwtguard.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func newCounter() *events.Counter { return events.NewCounter() }

// newRegistry builds the issuer registry from cfg, sharing counter with
// whatever validator will be built on top of it, the way a service's
// startup code would.
func newRegistry(t *testing.T, cfg *jwtconfig.Config, counter *events.Counter) *issuer.Registry {
	t.Helper()
	reg, err := issuer.New(cfg.IssuerConfigs(nil), counter, nil)
	require.NoError(t, err)
	return reg
}

// newValidator builds a TokenValidator wired from cfg's validation section
// against registry, sharing counter with the registry.
func newValidator(cfg *jwtconfig.Config, registry *issuer.Registry, counter *events.Counter) *validator.TokenValidator {
	return validator.NewTokenValidator(registry, counter, cfg.ValidatorOptions())
}
