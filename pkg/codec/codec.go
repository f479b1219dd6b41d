// Package codec implements the compact-JWT split and Base64URL transport
// encoding used by every later validation stage. It never interprets the
// decoded bytes; that is the json decoder's job.
package codec

import (
	"encoding/base64"
	"strings"

	"github.com/tokenguard/jwtguard/pkg/events"
)

// DecodedJwt is the result of splitting and Base64URL-decoding a compact
// JWT. SigningInput is reconstructed from the original string slices (not
// re-encoded bytes), so it remains byte-for-byte identical to what was
// signed regardless of any decoder idiosyncrasy.
type DecodedJwt struct {
	HeaderJSON    []byte
	PayloadJSON   []byte
	Signature     []byte
	SigningInput  []byte
	HeaderSegment string
	PayloadSegment string
}

// Split separates a compact JWT into its three Base64URL segments and
// decodes the header and payload. raw must already have passed a
// max_token_size check by the caller (checked before decoding, per spec).
func Split(raw string, counter *events.Counter) (*DecodedJwt, *events.ValidationError) {
	if raw == "" {
		return nil, counter.New(events.TokenEmpty, "token is empty")
	}

	segments := strings.Split(raw, ".")
	if len(segments) != 3 {
		return nil, counter.New(events.MalformedToken, "token must have exactly three segments")
	}
	for _, s := range segments {
		if s == "" {
			return nil, counter.New(events.MalformedToken, "token segment is empty")
		}
	}

	header, err := decodeSegment(segments[0])
	if err != nil {
		return nil, counter.New(events.MalformedToken, "header is not valid base64url: "+err.Error())
	}
	payload, err := decodeSegment(segments[1])
	if err != nil {
		return nil, counter.New(events.MalformedToken, "payload is not valid base64url: "+err.Error())
	}
	signature, err := decodeSegment(segments[2])
	if err != nil {
		return nil, counter.New(events.MalformedToken, "signature is not valid base64url: "+err.Error())
	}

	// Reconstruct the canonical signing input from the original segment
	// strings, never from re-encoded bytes.
	signingInput := segments[0] + "." + segments[1]

	return &DecodedJwt{
		HeaderJSON:     header,
		PayloadJSON:    payload,
		Signature:      signature,
		SigningInput:   []byte(signingInput),
		HeaderSegment:  segments[0],
		PayloadSegment: segments[1],
	}, nil
}

// CheckSize enforces max_token_size before any decoding takes place.
func CheckSize(raw string, maxTokenSize int, counter *events.Counter) *events.ValidationError {
	if len(raw) > maxTokenSize {
		return counter.New(events.TokenTooLarge, "token exceeds max_token_size")
	}
	return nil
}

func decodeSegment(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(s)
}
