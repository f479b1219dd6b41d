package events_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokenguard/jwtguard/pkg/events"
)

func TestCounterIncrementsAndSnapshots(t *testing.T) {
	c := events.NewCounter()

	assert.Equal(t, uint64(0), c.Value(events.TokenExpired))

	c.Increment(events.TokenExpired)
	c.Increment(events.TokenExpired)
	c.Increment(events.SignatureInvalid)

	assert.Equal(t, uint64(2), c.Value(events.TokenExpired))
	assert.Equal(t, uint64(1), c.Value(events.SignatureInvalid))

	snap := c.Snapshot()
	assert.Equal(t, uint64(2), snap[events.TokenExpired])
	assert.Equal(t, uint64(0), snap[events.UnknownIssuer])
}

func TestCounterIncrementUnregisteredPanics(t *testing.T) {
	c := events.NewCounter()
	assert.Panics(t, func() {
		c.Increment(events.EventType("NOT_A_REAL_EVENT"))
	})
}

func TestCounterNewIncrementsAndReturnsError(t *testing.T) {
	c := events.NewCounter()

	err := c.New(events.MissingClaim, "sub is required")
	require.Error(t, err)
	assert.Equal(t, events.MissingClaim, err.Event)
	assert.Equal(t, "sub is required", err.Message)
	assert.Equal(t, uint64(1), c.Value(events.MissingClaim))
}

func TestCounterNewWithContextAttachesFields(t *testing.T) {
	c := events.NewCounter()

	err := c.NewWithContext(events.SignatureInvalid, "bad signature", "https://issuer.example", "kid-1", "RS256")
	require.Error(t, err)
	assert.Equal(t, "https://issuer.example", err.Issuer)
	assert.Equal(t, "kid-1", err.Kid)
	assert.Equal(t, "RS256", err.Alg)
	assert.Equal(t, uint64(1), c.Value(events.SignatureInvalid))
}
