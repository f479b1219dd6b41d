package jwtconfig

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

func secondsToDuration(secs int) time.Duration {
	return time.Duration(secs) * time.Second
}

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, JWTGUARD_CONFIG env, ./jwtguard.yaml, /etc/jwtguard/config.yaml)
//  3. Environment variable overrides
//  4. File reference resolution (_file suffix)
//  5. Validation
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
	}

	applyEnvOverrides(&cfg)
	applyRetryDefaults(&cfg)

	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. JWTGUARD_CONFIG environment variable
// 3. ./jwtguard.yaml in the current directory
// 4. /etc/jwtguard/config.yaml
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}
	if envPath := os.Getenv("JWTGUARD_CONFIG"); envPath != "" {
		return envPath
	}
	candidates := []string{
		"jwtguard.yaml",
		"/etc/jwtguard/config.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct. Fields
// not present in the YAML retain their current (default) values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides maps a small set of environment variables onto the
// config, for deployments that prefer not to template the leeway/size knobs
// into the YAML file directly.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("JWTGUARD_LEEWAY_SECONDS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			cfg.Validation.Leeway = secondsToDuration(secs)
		}
	}
	if v := os.Getenv("JWTGUARD_MAX_TOKEN_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Validation.MaxTokenSize = n
		}
	}
	if v := os.Getenv("JWTGUARD_METRICS_ENABLED"); v != "" {
		cfg.Observability.Metrics.Enabled = v != "false" && v != "0"
	}
}

// applyRetryDefaults fills zero-valued retry fields per issuer so the YAML
// file only needs to override what it cares about.
func applyRetryDefaults(cfg *Config) {
	d := defaultRetry()
	for i := range cfg.Issuers {
		r := &cfg.Issuers[i].Retry
		if r.MaxAttempts == 0 {
			r.MaxAttempts = d.MaxAttempts
		}
		if r.InitialDelay == 0 {
			r.InitialDelay = d.InitialDelay
		}
		if r.Multiplier == 0 {
			r.Multiplier = d.Multiplier
		}
		if r.MaxDelay == 0 {
			r.MaxDelay = d.MaxDelay
		}
		if r.JitterFactor == 0 {
			r.JitterFactor = d.JitterFactor
		}
		if len(cfg.Issuers[i].AllowedAlgorithms) == 0 {
			cfg.Issuers[i].AllowedAlgorithms = cfg.Validation.GlobalAllowedAlgorithms
		}
	}
}

// resolveFileReferences reads _file fields and populates the corresponding
// value fields. For each field ending in _file, if the value field is empty
// and the file field is set, the file is read, whitespace is trimmed, and
// the value field is populated.
func resolveFileReferences(cfg *Config) error {
	for i := range cfg.Issuers {
		iss := &cfg.Issuers[i]
		if iss.JWKSStaticJSONFile != "" && iss.JWKSStaticJSON == "" {
			val, err := readSecretFile(iss.JWKSStaticJSONFile)
			if err != nil {
				return fmt.Errorf("issuers[%d].jwks_static_json_file: %w", i, err)
			}
			iss.JWKSStaticJSON = val
		}
	}
	return nil
}

// readSecretFile reads a file and returns its content with surrounding
// whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
