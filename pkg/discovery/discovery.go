// Package discovery implements OpenID Connect discovery: fetching a
// well-known configuration document and validating its issuer against the
// well-known URL before handing the jwks_uri to the HTTP loader.
package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/tokenguard/jwtguard/pkg/events"
)

// Document is the subset of the OpenID well-known configuration this
// library consumes; every other field is ignored.
type Document struct {
	Issuer  string `json:"issuer"`
	JWKSURI string `json:"jwks_uri"`
}

// Fetch retrieves and validates the well-known document at wellKnownURL.
// On success it returns the jwks_uri to feed to the HTTP loader. Mismatch
// between the document's issuer and the well-known URL (per the OpenID
// Connect rule: scheme/host/port match, and path is
// issuer.path + "/.well-known/openid-configuration") fails with
// IssuerMismatch and the issuer is never registered.
func Fetch(ctx context.Context, client *http.Client, wellKnownURL string, counter *events.Counter) (*Document, *events.ValidationError) {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, wellKnownURL, nil)
	if err != nil {
		return nil, counter.New(events.JwksFetchFailed, "building discovery request: "+err.Error())
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, counter.New(events.JwksFetchFailed, "fetching discovery document: "+err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, counter.New(events.JwksFetchFailed, fmt.Sprintf("discovery endpoint returned %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, counter.New(events.JwksFetchFailed, "reading discovery document: "+err.Error())
	}

	var doc Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, counter.New(events.JwksParseFailed, "parsing discovery document: "+err.Error())
	}

	if doc.Issuer == "" || doc.JWKSURI == "" {
		return nil, counter.New(events.JwksParseFailed, "discovery document missing issuer or jwks_uri")
	}

	if err := checkIssuerConsistency(doc.Issuer, wellKnownURL); err != nil {
		return nil, counter.New(events.IssuerMismatch, err.Error())
	}

	return &doc, nil
}

// checkIssuerConsistency implements the OpenID Connect discovery rule:
// scheme, host, and port of issuer must match the well-known URL, and the
// well-known URL's path must be issuer.path + "/.well-known/openid-configuration"
// (or exactly that suffix when issuer.path is empty or "/").
func checkIssuerConsistency(issuer, wellKnownURL string) error {
	issuerURL, err := url.Parse(issuer)
	if err != nil {
		return fmt.Errorf("discovery document issuer is not a valid URL: %w", err)
	}
	wkURL, err := url.Parse(wellKnownURL)
	if err != nil {
		return fmt.Errorf("well-known URL is not a valid URL: %w", err)
	}

	if issuerURL.Scheme != wkURL.Scheme || issuerURL.Host != wkURL.Host {
		return fmt.Errorf("discovery document issuer %q is inconsistent with well-known URL %q", issuer, wellKnownURL)
	}

	issuerPath := strings.TrimSuffix(issuerURL.Path, "/")
	expectedPath := issuerPath + "/.well-known/openid-configuration"
	if wkURL.Path != expectedPath {
		return fmt.Errorf("discovery document issuer %q is inconsistent with well-known URL path %q (expected %q)",
			issuer, wkURL.Path, expectedPath)
	}

	return nil
}
