// Package claims implements the variant-specific mappers that turn a raw
// JSON value at a named claim into a typed ClaimValue.
package claims

import (
	"fmt"
	"strings"
	"time"

	"github.com/tokenguard/jwtguard/pkg/jsonlimits"
)

// Kind tags the ClaimValue variant.
type Kind int

const (
	Absent Kind = iota
	KString
	KStringList
	KDateTime
	KNumber
)

// Value is a tagged variant carrying both the typed value and the original
// JSON source text, so downstream code can re-emit or hash the source form.
// Absent <-> the claim key was not present in the payload, or was JSON null.
type Value struct {
	Kind       Kind
	Str        string
	StrList    []string
	Time       time.Time
	Number     float64
	SourceJSON string
}

// IsAbsent reports whether the claim was missing or explicit JSON null.
func (v Value) IsAbsent() bool { return v.Kind == Absent }

// ErrInvalidClaimShape is returned (wrapped) when a mapper finds a claim
// value that is present but of the wrong JSON type for what it maps.
type ErrInvalidClaimShape struct {
	Claim string
	Want  string
}

func (e *ErrInvalidClaimShape) Error() string {
	return fmt.Sprintf("claim %q must be %s", e.Claim, e.Want)
}

func lookup(payload map[string]jsonlimits.Value, claim string) (jsonlimits.Value, bool) {
	v, ok := payload[claim]
	if !ok || v.Kind == jsonlimits.KindNull {
		return jsonlimits.Value{}, false
	}
	return v, true
}

// Identity maps a JSON string claim directly to a string ClaimValue.
func Identity(payload map[string]jsonlimits.Value, claim string) (Value, error) {
	v, ok := lookup(payload, claim)
	if !ok {
		return Value{Kind: Absent}, nil
	}
	if v.Kind != jsonlimits.KindString {
		return Value{}, &ErrInvalidClaimShape{Claim: claim, Want: "a string"}
	}
	return Value{Kind: KString, Str: v.Str, SourceJSON: v.Source}, nil
}

// Collection maps a JSON array of strings to a string-list ClaimValue. A
// lone string is wrapped as a singleton list.
func Collection(payload map[string]jsonlimits.Value, claim string) (Value, error) {
	v, ok := lookup(payload, claim)
	if !ok {
		return Value{Kind: Absent}, nil
	}
	switch v.Kind {
	case jsonlimits.KindString:
		return Value{Kind: KStringList, StrList: []string{v.Str}, SourceJSON: v.Source}, nil
	case jsonlimits.KindArray:
		list, err := stringArray(claim, v)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KStringList, StrList: list, SourceJSON: v.Source}, nil
	default:
		return Value{}, &ErrInvalidClaimShape{Claim: claim, Want: "a string or array of strings"}
	}
}

func stringArray(claim string, v jsonlimits.Value) ([]string, error) {
	out := make([]string, 0, len(v.Arr))
	for _, item := range v.Arr {
		if item.Kind != jsonlimits.KindString {
			return nil, &ErrInvalidClaimShape{Claim: claim, Want: "an array of strings"}
		}
		out = append(out, item.Str)
	}
	return out, nil
}

// StringSplitter maps a single JSON string, split on delim, to a
// string-list ClaimValue. Used for the OAuth "scope" claim, default
// delimiter is a single space.
func StringSplitter(payload map[string]jsonlimits.Value, claim, delim string) (Value, error) {
	v, ok := lookup(payload, claim)
	if !ok {
		return Value{Kind: Absent}, nil
	}
	if v.Kind != jsonlimits.KindString {
		return Value{}, &ErrInvalidClaimShape{Claim: claim, Want: "a string"}
	}
	if delim == "" {
		delim = " "
	}
	var parts []string
	for _, p := range strings.Split(v.Str, delim) {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return Value{Kind: KStringList, StrList: parts, SourceJSON: v.Source}, nil
}

// DateTime maps a JSON number (NumericDate, RFC 7519 §2: seconds since the
// Unix epoch) to an instant. Strings are rejected; NumericDate is a JSON
// number per spec, not a spec-compliant string form.
func DateTime(payload map[string]jsonlimits.Value, claim string) (Value, error) {
	v, ok := lookup(payload, claim)
	if !ok {
		return Value{Kind: Absent}, nil
	}
	if v.Kind != jsonlimits.KindNumber {
		return Value{}, &ErrInvalidClaimShape{Claim: claim, Want: "a NumericDate (JSON number)"}
	}
	var t time.Time
	if v.IsInt {
		t = time.Unix(v.Int, 0).UTC()
	} else {
		sec := int64(v.Num)
		nsec := int64((v.Num - float64(sec)) * 1e9)
		t = time.Unix(sec, nsec).UTC()
	}
	return Value{Kind: KDateTime, Time: t, Number: v.Num, SourceJSON: v.Source}, nil
}

// KeycloakRoles extracts realm_access.roles (an array) from the nested
// Keycloak object, surfacing it as a roles ClaimValue.
func KeycloakRoles(payload map[string]jsonlimits.Value) (Value, error) {
	return nestedArray(payload, "realm_access", "roles")
}

// KeycloakGroups extracts the top-level groups array as a ClaimValue.
func KeycloakGroups(payload map[string]jsonlimits.Value) (Value, error) {
	return Collection(payload, "groups")
}

func nestedArray(payload map[string]jsonlimits.Value, outer, inner string) (Value, error) {
	v, ok := lookup(payload, outer)
	if !ok {
		return Value{Kind: Absent}, nil
	}
	if v.Kind != jsonlimits.KindObject {
		return Value{}, &ErrInvalidClaimShape{Claim: outer, Want: "an object"}
	}
	innerVal, ok := v.Obj[inner]
	if !ok || innerVal.Kind == jsonlimits.KindNull {
		return Value{Kind: Absent}, nil
	}
	if innerVal.Kind != jsonlimits.KindArray {
		return Value{}, &ErrInvalidClaimShape{Claim: outer + "." + inner, Want: "an array of strings"}
	}
	list, err := stringArray(outer+"."+inner, innerVal)
	if err != nil {
		return Value{}, err
	}
	return Value{Kind: KStringList, StrList: list, SourceJSON: innerVal.Source}, nil
}
