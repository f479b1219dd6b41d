package validator

import "time"

// TokenType is the closed set of token kinds the pipeline assembles.
type TokenType int

const (
	AccessTokenType TokenType = iota
	IDTokenType
	RefreshTokenType
)

// AccessToken is the typed content of a validated access token. Every
// mandatory claim for the type is guaranteed present and type-correct
// before an AccessToken is constructed.
type AccessToken struct {
	Issuer     string
	Subject    string
	Expiration time.Time
	IssuedAt   time.Time
	NotBefore  time.Time
	RawToken   string

	Scopes          []string
	Roles           []string
	Groups          []string
	Audience        []string
	AuthorizedParty string
}

// IdToken is the typed content of a validated ID token.
type IdToken struct {
	Issuer     string
	Subject    string
	Expiration time.Time
	IssuedAt   time.Time
	NotBefore  time.Time
	RawToken   string

	Audience        []string
	AuthorizedParty string
	Nonce           string
}

// RefreshToken is the typed content of a validated refresh token. Refresh
// tokens may be opaque (not JWT-shaped at all), in which case only
// RawToken is populated, Opaque is true, and every other field is zero.
type RefreshToken struct {
	Issuer     string
	Subject    string
	Expiration time.Time
	IssuedAt   time.Time
	NotBefore  time.Time
	RawToken   string

	Opaque bool
}
