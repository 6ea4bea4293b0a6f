package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ideal-lab5/idn-explorer/internal/g"
)

// DecodeLoose decodes a chain payload into generic values.
// Object keys are normalised to snake_case so "subId", "SubId" and "sub_id" match the same lookup.
// Numbers are kept as json.Number.
func DecodeLoose(raw json.RawMessage) (any, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	normalized := g.ChangeJsonKeys(raw, g.CamelToSnake)
	dec := json.NewDecoder(bytes.NewReader(normalized))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// Pick returns the first present, non-null field among keys.
func Pick(m map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// AsUint64 converts JSON numbers, decimal strings and 0x-prefixed big-endian hex to uint64.
func AsUint64(v any) (uint64, bool) {
	switch x := v.(type) {
	case json.Number:
		if n, err := strconv.ParseUint(x.String(), 10, 64); err == nil {
			return n, true
		}
		if f, err := x.Float64(); err == nil && f >= 0 {
			return uint64(f), true
		}
	case float64:
		if x >= 0 {
			return uint64(x), true
		}
	case int:
		if x >= 0 {
			return uint64(x), true
		}
	case int64:
		if x >= 0 {
			return uint64(x), true
		}
	case uint64:
		return x, true
	case uint32:
		return uint64(x), true
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(x), ",", "")
		if strings.HasPrefix(s, "0x") {
			n, ok := new(big.Int).SetString(s[2:], 16)
			if !ok || !n.IsUint64() {
				return 0, false
			}
			return n.Uint64(), true
		}
		if n, err := strconv.ParseUint(s, 10, 64); err == nil {
			return n, true
		}
	case map[string]any:
		// single-field wrappers like {"value": 10}
		if len(x) == 1 {
			for _, inner := range x {
				return AsUint64(inner)
			}
		}
	}
	return 0, false
}

// AsString renders scalars as text and composite values as compact JSON.
func AsString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case fmt.Stringer:
		return x.String()
	case map[string]any, []any:
		bs, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(bs)
	default:
		return fmt.Sprint(x)
	}
}
