package sidecar

import (
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/go-faster/errors"

	"github.com/ideal-lab5/idn-explorer/pkg/core"
)

type Field struct {
	Name     string `json:"name"`
	TypeName string `json:"typeName"`
}

// Variant is a call, event or error of a pallet.
type Variant struct {
	Name   string   `json:"name"`
	Index  uint8    `json:"index"`
	Fields []Field  `json:"fields"`
	Docs   []string `json:"docs"`
}

type Pallet struct {
	Name   string    `json:"name"`
	Index  uint8     `json:"index"`
	Calls  []Variant `json:"calls"`
	Events []Variant `json:"events"`
	Errors []Variant `json:"errors"`
}

// Metadata is the part of the runtime metadata needed for introspection and error decoding.
type Metadata struct {
	Version string
	Pallets []Pallet
}

// Pallet finds a pallet by name, ignoring case so both "IdnManager" and "idnManager" match.
func (m *Metadata) Pallet(name string) (*Pallet, bool) {
	for i := range m.Pallets {
		if strings.EqualFold(m.Pallets[i].Name, name) {
			return &m.Pallets[i], true
		}
	}
	return nil, false
}

func (m *Metadata) PalletByIndex(index uint8) (*Pallet, bool) {
	for i := range m.Pallets {
		if m.Pallets[i].Index == index {
			return &m.Pallets[i], true
		}
	}
	return nil, false
}

// Call finds a call of the pallet by name. Names are compared without case and underscores,
// so "create_subscription" and "createSubscription" are the same call.
func (p *Pallet) Call(name string) (*Variant, bool) {
	for i := range p.Calls {
		if sameName(p.Calls[i].Name, name) {
			return &p.Calls[i], true
		}
	}
	return nil, false
}

func (p *Pallet) CallByIndex(index uint8) (*Variant, bool) {
	return variantByIndex(p.Calls, index)
}

// CallName resolves a call index pair to "pallet.call".
func (m *Metadata) CallName(palletIndex, callIndex uint8) (string, bool) {
	p, ok := m.PalletByIndex(palletIndex)
	if !ok {
		return "", false
	}
	c, ok := p.CallByIndex(callIndex)
	if !ok {
		return "", false
	}
	return lowerFirst(p.Name) + "." + c.Name, true
}

// ModuleError decodes a dispatch error of the form {"module": {"index": 12, "error": "0x03000000"}}.
// Other dispatch errors ("BadOrigin", {"token": "FundsUnavailable"}) are reported by their variant name.
func (m *Metadata) ModuleError(dispatchError json.RawMessage) *core.DispatchError {
	v, err := core.DecodeLoose(dispatchError)
	if err != nil || v == nil {
		return &core.DispatchError{Section: "system", Name: "Unknown"}
	}
	switch x := v.(type) {
	case string:
		return &core.DispatchError{Section: "system", Name: x}
	case map[string]any:
		if module, ok := x["module"].(map[string]any); ok {
			return m.decodeModule(module)
		}
		for variant, payload := range x {
			if name := core.AsString(payload); name != "" {
				return &core.DispatchError{Section: variant, Name: name}
			}
			return &core.DispatchError{Section: "system", Name: variant}
		}
	}
	return &core.DispatchError{Section: "system", Name: core.AsString(v)}
}

func (m *Metadata) decodeModule(module map[string]any) *core.DispatchError {
	palletIndex, _ := core.AsUint64(module["index"])
	var errorIndex uint64
	switch e := module["error"].(type) {
	case string:
		raw, err := hex.DecodeString(strings.TrimPrefix(e, "0x"))
		if err == nil && len(raw) > 0 {
			errorIndex = uint64(raw[0])
		}
	case []any:
		if len(e) > 0 {
			errorIndex, _ = core.AsUint64(e[0])
		}
	default:
		errorIndex, _ = core.AsUint64(e)
	}
	p, ok := m.PalletByIndex(uint8(palletIndex))
	if !ok {
		return &core.DispatchError{Section: "unknown", Name: "ModuleError"}
	}
	v, ok := variantByIndex(p.Errors, uint8(errorIndex))
	if !ok {
		return &core.DispatchError{Section: lowerFirst(p.Name), Name: "Unknown"}
	}
	return &core.DispatchError{
		Section: lowerFirst(p.Name),
		Name:    v.Name,
		Docs:    strings.TrimSpace(strings.Join(v.Docs, " ")),
	}
}

type rawMetadata struct {
	MagicNumber string                     `json:"magicNumber"`
	Metadata    map[string]json.RawMessage `json:"metadata"`
}

type rawLookup struct {
	Types []struct {
		ID   Uint `json:"id"`
		Type struct {
			Def struct {
				Variant *struct {
					Variants []rawVariant `json:"variants"`
				} `json:"variant"`
			} `json:"def"`
		} `json:"type"`
	} `json:"types"`
}

type rawVariant struct {
	Name   string `json:"name"`
	Index  Uint   `json:"index"`
	Fields []struct {
		Name     *string `json:"name"`
		TypeName *string `json:"typeName"`
	} `json:"fields"`
	Docs []string `json:"docs"`
}

type rawTypeRef struct {
	Type Uint `json:"type"`
}

type rawPallet struct {
	Name   string      `json:"name"`
	Index  Uint        `json:"index"`
	Calls  *rawTypeRef `json:"calls"`
	Events *rawTypeRef `json:"events"`
	Errors *rawTypeRef `json:"errors"`
}

func (r rawMetadata) parse() (*Metadata, error) {
	for version, body := range r.Metadata {
		var v struct {
			Lookup  rawLookup   `json:"lookup"`
			Pallets []rawPallet `json:"pallets"`
		}
		if err := json.Unmarshal(body, &v); err != nil {
			return nil, errors.Wrapf(err, "decode metadata %s", version)
		}
		variants := make(map[uint64][]Variant, len(v.Lookup.Types))
		for _, t := range v.Lookup.Types {
			if t.Type.Def.Variant == nil {
				continue
			}
			list := make([]Variant, 0, len(t.Type.Def.Variant.Variants))
			for _, rv := range t.Type.Def.Variant.Variants {
				list = append(list, rv.convert())
			}
			variants[uint64(t.ID)] = list
		}
		resolve := func(ref *rawTypeRef) []Variant {
			if ref == nil {
				return nil
			}
			return variants[uint64(ref.Type)]
		}
		md := &Metadata{Version: version}
		for _, p := range v.Pallets {
			md.Pallets = append(md.Pallets, Pallet{
				Name:   p.Name,
				Index:  uint8(p.Index),
				Calls:  resolve(p.Calls),
				Events: resolve(p.Events),
				Errors: resolve(p.Errors),
			})
		}
		return md, nil
	}
	return nil, errors.New("runtime metadata is empty")
}

func (rv rawVariant) convert() Variant {
	v := Variant{Name: rv.Name, Index: uint8(rv.Index), Docs: rv.Docs}
	for _, f := range rv.Fields {
		var field Field
		if f.Name != nil {
			field.Name = *f.Name
		}
		if f.TypeName != nil {
			field.TypeName = *f.TypeName
		}
		v.Fields = append(v.Fields, field)
	}
	return v
}

func variantByIndex(list []Variant, index uint8) (*Variant, bool) {
	for i := range list {
		if list[i].Index == index {
			return &list[i], true
		}
	}
	return nil, false
}

func sameName(a, b string) bool {
	strip := func(s string) string {
		return strings.ToLower(strings.ReplaceAll(s, "_", ""))
	}
	return strip(a) == strip(b)
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

func equalHex(a, b string) bool {
	return strings.EqualFold(strings.TrimPrefix(a, "0x"), strings.TrimPrefix(b, "0x"))
}
