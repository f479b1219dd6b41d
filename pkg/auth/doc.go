// Package auth provides pluggable authentication for HTTP services.
//
// Authentication uses a chain-of-responsibility pattern with three-outcome
// voting: each authenticator returns Yes (identity found), No (credentials
// invalid), or Abstain (can't handle). A configurable default voter decides
// when all authenticators abstain.
//
// The package holds the voting chain and helpers for carrying the resulting
// Identity in a request context; it contains no HTTP middleware of its own.
package auth
