package validator

import (
	"time"

	"github.com/tokenguard/jwtguard/pkg/jsonlimits"
)

// Options carries the global (cross-issuer) policy knobs from spec.md §6's
// configuration surface.
type Options struct {
	MaxTokenSize            int
	JSONLimits              jsonlimits.Limits
	GlobalAllowedAlgorithms []string
	Leeway                  time.Duration
	Clock                   Clock
}

// DefaultOptions matches spec.md's defaults: 30s leeway, stdlib-bound JSON
// limits, and the system clock. GlobalAllowedAlgorithms defaults to every
// asymmetric algorithm the crypto registry supports.
func DefaultOptions() Options {
	return Options{
		MaxTokenSize:            16 * 1024,
		JSONLimits:              jsonlimits.DefaultLimits(),
		GlobalAllowedAlgorithms: []string{"RS256", "RS384", "RS512", "PS256", "PS384", "PS512", "ES256", "ES384", "ES512"},
		Leeway:                  30 * time.Second,
		Clock:                   SystemClock{},
	}
}

func (o Options) allowsGlobally(alg string) bool {
	for _, a := range o.GlobalAllowedAlgorithms {
		if a == alg {
			return true
		}
	}
	return false
}
