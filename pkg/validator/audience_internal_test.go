package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokenguard/jwtguard/pkg/events"
	"github.com/tokenguard/jwtguard/pkg/issuer"
)

func TestCheckAudienceSkippedWhenNoExpectation(t *testing.T) {
	tv := &TokenValidator{counter: events.NewCounter()}
	cfg := &issuer.Config{Identifier: "iss"}
	aud, verr := tv.checkAudience(cfg, decodePayload(t, `{}`))
	assert.Nil(t, verr)
	assert.Nil(t, aud)
}

func TestCheckAudienceRequiredButAbsent(t *testing.T) {
	tv := &TokenValidator{counter: events.NewCounter()}
	cfg := &issuer.Config{Identifier: "iss", ExpectedAudiences: []string{"a"}}
	_, verr := tv.checkAudience(cfg, decodePayload(t, `{}`))
	require.NotNil(t, verr)
	assert.Equal(t, events.MissingClaim, verr.Event)
}

func TestCheckAuthorizedPartyPassesThroughWhenUnconfigured(t *testing.T) {
	tv := &TokenValidator{counter: events.NewCounter()}
	cfg := &issuer.Config{Identifier: "iss"}
	azp, verr := tv.checkAuthorizedParty(cfg, decodePayload(t, `{"azp":"whatever"}`))
	assert.Nil(t, verr)
	assert.Equal(t, "whatever", azp)
}
