package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"github.com/go-faster/errors"
)

// Junction types understood by the location builder.
const (
	JunctionParachain       = "parachain"
	JunctionAccountID32     = "accountId32"
	JunctionAccountIndex64  = "accountIndex64"
	JunctionAccountKey20    = "accountKey20"
	JunctionPalletInstance  = "palletInstance"
	JunctionGeneralIndex    = "generalIndex"
	JunctionGeneralKey      = "generalKey"
	JunctionOnlyChild       = "onlyChild"
	JunctionGlobalConsensus = "globalConsensus"
)

var knownJunctions = map[string]struct{}{
	JunctionParachain:       {},
	JunctionAccountID32:     {},
	JunctionAccountIndex64:  {},
	JunctionAccountKey20:    {},
	JunctionPalletInstance:  {},
	JunctionGeneralIndex:    {},
	JunctionGeneralKey:      {},
	JunctionOnlyChild:       {},
	JunctionGlobalConsensus: {},
}

const maxJunctions = 8

// Junction is one hop of an XCM location in the builder format used by clients:
// {"type": "parachain", "value": {"parachain": 2000}}.
type Junction struct {
	Type  string         `json:"type"`
	Value map[string]any `json:"value,omitempty"`
}

// Location is an XCM location in the builder format.
// An empty Interior means "Here".
type Location struct {
	Parents  uint8      `json:"parents"`
	Interior []Junction `json:"interior"`
}

// Validate checks junction types and the payloads the chain requires.
func (l Location) Validate() error {
	if len(l.Interior) > maxJunctions {
		return errors.Wrapf(ErrInvalidArgument, "location has %d junctions, at most %d allowed", len(l.Interior), maxJunctions)
	}
	for i, j := range l.Interior {
		if _, ok := knownJunctions[j.Type]; !ok {
			return errors.Wrapf(ErrInvalidArgument, "junction %d: unknown type %q", i, j.Type)
		}
		switch j.Type {
		case JunctionParachain, JunctionPalletInstance, JunctionGeneralIndex:
			if _, ok := AsUint64(j.Value[j.Type]); !ok {
				return errors.Wrapf(ErrInvalidArgument, "junction %d: %s requires a numeric %q", i, j.Type, j.Type)
			}
		case JunctionAccountID32:
			if _, ok := j.Value["id"]; !ok {
				return errors.Wrapf(ErrInvalidArgument, "junction %d: accountId32 requires an id", i)
			}
		case JunctionAccountKey20:
			if _, ok := j.Value["key"]; !ok {
				return errors.Wrapf(ErrInvalidArgument, "junction %d: accountKey20 requires a key", i)
			}
		}
	}
	return nil
}

// ToWire converts the builder format into the chain's capitalised-variant format:
// {"parents": 1, "interior": {"X1": [{"Parachain": 2000}]}}.
func (l Location) ToWire() map[string]any {
	var interior any = "Here"
	if len(l.Interior) > 0 {
		junctions := make([]any, 0, len(l.Interior))
		for _, j := range l.Interior {
			junctions = append(junctions, j.ToWire())
		}
		interior = map[string]any{fmt.Sprintf("X%d", len(l.Interior)): junctions}
	}
	return map[string]any{
		"parents":  l.Parents,
		"interior": interior,
	}
}

// ToWire converts a single junction: a payload holding only the junction's own name
// collapses to a scalar, {"type":"parachain","value":{"parachain":5}} becomes {"Parachain":5}.
func (j Junction) ToWire() any {
	name := upperFirst(j.Type)
	if len(j.Value) == 0 {
		return name
	}
	if v, ok := j.Value[j.Type]; ok && len(j.Value) == 1 {
		return map[string]any{name: v}
	}
	return map[string]any{name: j.Value}
}

// LocationFromWire converts a location decoded from the chain back into the builder format.
// It accepts capitalised, camelCase and snake_case variants and both the v3 single-junction
// and v4 array forms of X1.
func LocationFromWire(v any) (Location, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return Location{}, errors.Wrapf(ErrInvalidArgument, "location must be an object, got %T", v)
	}
	var loc Location
	if p, ok := Pick(m, "parents", "Parents"); ok {
		n, ok := AsUint64(p)
		if !ok || n > 255 {
			return Location{}, errors.Wrapf(ErrInvalidArgument, "bad parents %v", p)
		}
		loc.Parents = uint8(n)
	}
	interior, _ := Pick(m, "interior", "Interior")
	switch x := interior.(type) {
	case nil:
		return loc, nil
	case string:
		if !strings.EqualFold(x, "here") {
			return Location{}, errors.Wrapf(ErrInvalidArgument, "bad interior %q", x)
		}
		return loc, nil
	case map[string]any:
		if len(x) != 1 {
			return Location{}, errors.Wrapf(ErrInvalidArgument, "interior must have exactly one variant")
		}
		for variant, payload := range x {
			if strings.EqualFold(variant, "here") {
				return loc, nil
			}
			var raw []any
			switch p := payload.(type) {
			case []any:
				raw = p
			default:
				raw = []any{p}
			}
			for _, rj := range raw {
				j, err := junctionFromWire(rj)
				if err != nil {
					return Location{}, err
				}
				loc.Interior = append(loc.Interior, j)
			}
		}
		return loc, nil
	default:
		return Location{}, errors.Wrapf(ErrInvalidArgument, "bad interior type %T", interior)
	}
}

// LocationFromJSON decodes a wire-format location from raw JSON.
func LocationFromJSON(raw json.RawMessage) (Location, error) {
	v, err := DecodeLoose(raw)
	if err != nil {
		return Location{}, err
	}
	return LocationFromWire(v)
}

func junctionFromWire(v any) (Junction, error) {
	switch x := v.(type) {
	case string:
		return Junction{Type: variantName(x)}, nil
	case map[string]any:
		if len(x) != 1 {
			return Junction{}, errors.Wrapf(ErrInvalidArgument, "junction must have exactly one variant")
		}
		for name, payload := range x {
			typ := variantName(name)
			switch p := payload.(type) {
			case nil:
				return Junction{Type: typ}, nil
			case map[string]any:
				value := make(map[string]any, len(p))
				for k, pv := range p {
					value[variantName(k)] = pv
				}
				return Junction{Type: typ, Value: value}, nil
			default:
				return Junction{Type: typ, Value: map[string]any{typ: p}}, nil
			}
		}
	}
	return Junction{}, errors.Wrapf(ErrInvalidArgument, "bad junction %v", v)
}

// variantName maps "AccountId32", "accountId32" and "account_id32" to "accountId32".
func variantName(s string) string {
	var b strings.Builder
	upperNext := false
	for i, r := range s {
		switch {
		case r == '_':
			upperNext = true
		case i == 0:
			b.WriteRune(unicode.ToLower(r))
		case upperNext:
			b.WriteRune(unicode.ToUpper(r))
			upperNext = false
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
