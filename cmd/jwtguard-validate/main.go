// Command jwtguard-validate validates a single token against a configured
// set of issuers and prints the decoded result.
//
// Configuration can be provided via:
//   - YAML config file (--config flag, JWTGUARD_CONFIG env, ./jwtguard.yaml, /etc/jwtguard/config.yaml)
//   - Environment variables with JWTGUARD_ prefix (override config file values)
//
// The token to validate is read from the --token flag, the JWTGUARD_TOKEN
// environment variable, or stdin (in that order of precedence).
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/tokenguard/jwtguard/pkg/events"
	"github.com/tokenguard/jwtguard/pkg/issuer"
	"github.com/tokenguard/jwtguard/pkg/jwtconfig"
	"github.com/tokenguard/jwtguard/pkg/validator"
)

func main() {
	if err := run(); err != nil {
		slog.Error("validation failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to YAML config file")
	tokenFlag := flag.String("token", "", "token to validate (default: JWTGUARD_TOKEN env or stdin)")
	tokenType := flag.String("type", "access", "token type to validate: access, id, or refresh")
	startupWait := flag.Duration("startup-wait", 2*time.Second, "how long to wait for issuer JWKS to become ready")
	flag.Parse()

	cfg, err := jwtconfig.Load(*configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	token, err := resolveToken(*tokenFlag)
	if err != nil {
		return err
	}

	counter := events.NewCounter()
	registry, err := issuer.New(cfg.IssuerConfigs(nil), counter, nil)
	if err != nil {
		return fmt.Errorf("building issuer registry: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *startupWait)
	defer cancel()
	registry.StartBackgroundLoad(ctx, cfg.Validation.StartupDelay)
	<-ctx.Done()

	tv := validator.NewTokenValidator(registry, counter, cfg.ValidatorOptions())

	result, verr := validateByType(ctx, tv, *tokenType, token)
	if verr != nil {
		return printRejection(verr)
	}
	return printResult(result)
}

// resolveToken returns the token to validate, preferring the --token flag,
// then JWTGUARD_TOKEN, then a single line read from stdin.
func resolveToken(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if envValue := os.Getenv("JWTGUARD_TOKEN"); envValue != "" {
		return envValue, nil
	}
	scanner := bufio.NewScanner(os.Stdin)
	if scanner.Scan() {
		return strings.TrimSpace(scanner.Text()), nil
	}
	return "", fmt.Errorf("no token provided via --token, JWTGUARD_TOKEN, or stdin")
}

func validateByType(ctx context.Context, tv *validator.TokenValidator, tokenType, token string) (any, *events.ValidationError) {
	switch tokenType {
	case "access":
		return tv.ValidateAccess(ctx, token)
	case "id":
		return tv.ValidateID(ctx, token)
	case "refresh":
		return tv.ValidateRefresh(ctx, token)
	default:
		return nil, counterForUnknownType(tokenType)
	}
}

func counterForUnknownType(tokenType string) *events.ValidationError {
	c := events.NewCounter()
	return c.New(events.UnsupportedTokenType, fmt.Sprintf("unknown --type %q: must be access, id, or refresh", tokenType))
}

func printResult(result any) error {
	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

func printRejection(verr *events.ValidationError) error {
	out, err := json.MarshalIndent(map[string]string{
		"event":   string(verr.Event),
		"message": verr.Message,
		"issuer":  verr.Issuer,
		"kid":     verr.Kid,
		"alg":     verr.Alg,
	}, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return fmt.Errorf("token rejected: %s", verr.Event)
}
