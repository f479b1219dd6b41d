package validator_test

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tokenguard/jwtguard/pkg/events"
	"github.com/tokenguard/jwtguard/pkg/issuer"
	"github.com/tokenguard/jwtguard/pkg/validator"
)

func b64url(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

func generateRSAKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func jwksBodyFor(key *rsa.PrivateKey, kid string) []byte {
	n := b64url(key.PublicKey.N.Bytes())
	e := b64url([]byte{1, 0, 1})
	return []byte(fmt.Sprintf(`{"keys":[{"kty":"RSA","kid":%q,"alg":"RS256","n":%q,"e":%q}]}`, kid, n, e))
}

// signToken builds an RS256 compact JWT from the given header and payload
// maps, signed by key. kid is merged into the header if non-empty.
func signToken(t *testing.T, key *rsa.PrivateKey, kid string, header, payload map[string]any) string {
	t.Helper()
	if header == nil {
		header = map[string]any{}
	}
	if _, ok := header["alg"]; !ok {
		header["alg"] = "RS256"
	}
	if _, ok := header["typ"]; !ok {
		header["typ"] = "JWT"
	}
	if kid != "" {
		header["kid"] = kid
	}
	headerJSON, err := json.Marshal(header)
	require.NoError(t, err)
	payloadJSON, err := json.Marshal(payload)
	require.NoError(t, err)

	signingInput := b64url(headerJSON) + "." + b64url(payloadJSON)
	digest := sha256.Sum256([]byte(signingInput))
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, digest[:])
	require.NoError(t, err)

	return signingInput + "." + b64url(sig)
}

func unixSeconds(d time.Duration) int64 {
	return time.Now().Add(d).Unix()
}

// newTestRegistry builds a one-issuer registry backed by a static JWKS
// containing key's public half under kid, for identifier issuerID.
func newTestRegistry(t *testing.T, key *rsa.PrivateKey, kid, issuerID string, configure func(*issuer.Config)) (*issuer.Registry, *events.Counter) {
	t.Helper()
	counter := events.NewCounter()
	cfg := &issuer.Config{
		Identifier:        issuerID,
		AllowedAlgorithms: []string{"RS256"},
		Source:            issuer.Source{StaticJSON: jwksBodyFor(key, kid)},
	}
	if configure != nil {
		configure(cfg)
	}
	reg, err := issuer.New([]*issuer.Config{cfg}, counter, nil)
	require.NoError(t, err)
	return reg, counter
}

func defaultOptionsWithClock(now time.Time) validator.Options {
	opts := validator.DefaultOptions()
	opts.Clock = validator.FixedClock{At: now}
	return opts
}
