// Package jwtconfig provides unified configuration for jwtguard.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (JWTGUARD_ prefix)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package jwtconfig

import "time"

// Config holds all configuration for a jwtguard validator instance.
type Config struct {
	Issuers       []IssuerConfig `yaml:"issuers"`
	Validation    ValidationConfig `yaml:"validation"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// IssuerConfig describes one trusted token issuer.
type IssuerConfig struct {
	Identifier        string   `yaml:"identifier"`         // required, matched against iss
	ExpectedAudiences []string `yaml:"expected_audiences"` // optional
	ExpectedClientID  string   `yaml:"expected_client_id"` // optional, checked against azp
	AllowedAlgorithms []string `yaml:"allowed_algorithms"` // default: all asymmetric algs
	ClaimSubOptional  bool     `yaml:"claim_sub_optional"` // default: false

	KeycloakRolesMapper  bool `yaml:"keycloak_roles_mapper"`  // default: false
	KeycloakGroupsMapper bool `yaml:"keycloak_groups_mapper"` // default: false

	// Source selects exactly one of the following. See issuer.Source.
	JWKSStaticJSON     string `yaml:"jwks_static_json"`      // inline JWKS document
	JWKSStaticJSONFile string `yaml:"jwks_static_json_file"` // _file variant for jwks_static_json
	JWKSFilePath       string `yaml:"jwks_file_path"`        // local file, read and parsed once at startup
	JWKSURL            string `yaml:"jwks_url"`              // direct JWKS endpoint
	WellKnownURL       string `yaml:"well_known_url"`        // OIDC discovery document URL

	Retry RetryConfig `yaml:"retry"`
}

// RetryConfig mirrors jwksload.RetryPolicy in YAML-friendly form.
type RetryConfig struct {
	MaxAttempts   int           `yaml:"max_attempts"`   // default: 5
	InitialDelay  time.Duration `yaml:"initial_delay"`  // default: 1s
	Multiplier    float64       `yaml:"multiplier"`     // default: 2.0
	MaxDelay      time.Duration `yaml:"max_delay"`      // default: 60s
	JitterFactor  float64       `yaml:"jitter_factor"`  // default: 0.1
}

// ValidationConfig holds the cross-issuer policy knobs.
type ValidationConfig struct {
	MaxTokenSize            int           `yaml:"max_token_size"`             // default: 16384
	MaxPayloadSize          int           `yaml:"max_payload_size"`           // default: 8192
	MaxStringSize           int           `yaml:"max_string_size"`            // default: 4096
	MaxArraySize            int           `yaml:"max_array_size"`             // default: 64
	MaxDepth                int           `yaml:"max_depth"`                  // default: 10
	GlobalAllowedAlgorithms []string      `yaml:"global_allowed_algorithms"`  // default: all asymmetric algs
	Leeway                  time.Duration `yaml:"leeway"`                     // default: 30s
	StartupDelay            time.Duration `yaml:"startup_delay"`              // default: 0
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
}

// Defaults returns a Config with all default values filled in. Issuers is
// left empty; callers populate it from the YAML file or by hand.
func Defaults() Config {
	return Config{
		Validation: ValidationConfig{
			MaxTokenSize:   16 * 1024,
			MaxPayloadSize: 8 * 1024,
			MaxStringSize:  4 * 1024,
			MaxArraySize:   64,
			MaxDepth:       10,
			GlobalAllowedAlgorithms: []string{
				"RS256", "RS384", "RS512",
				"PS256", "PS384", "PS512",
				"ES256", "ES384", "ES512",
			},
			Leeway: 30 * time.Second,
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
	}
}

func defaultRetry() RetryConfig {
	return RetryConfig{
		MaxAttempts:  5,
		InitialDelay: time.Second,
		Multiplier:   2.0,
		MaxDelay:     60 * time.Second,
		JitterFactor: 0.1,
	}
}
