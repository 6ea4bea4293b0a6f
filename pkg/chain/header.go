package chain

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"

	"github.com/ideal-lab5/idn-explorer/pkg/core"
)

type rawHeader struct {
	ParentHash     string          `json:"parentHash"`
	Number         json.RawMessage `json:"number"`
	StateRoot      string          `json:"stateRoot"`
	ExtrinsicsRoot string          `json:"extrinsicsRoot"`
}

// ParseHeader decodes a header as returned by chain_getHeader and chain_subscribeNewHeads.
// The node encodes the number as a hex string.
func ParseHeader(raw json.RawMessage) (core.Header, error) {
	var h rawHeader
	if err := json.Unmarshal(raw, &h); err != nil {
		return core.Header{}, errors.Wrap(err, "decode header")
	}
	v, err := core.DecodeLoose(h.Number)
	if err != nil {
		return core.Header{}, errors.Wrap(err, "decode header number")
	}
	number, ok := core.AsUint64(v)
	if !ok {
		return core.Header{}, errors.Errorf("bad header number %s", string(h.Number))
	}
	return core.Header{
		Number:         number,
		ParentHash:     h.ParentHash,
		StateRoot:      h.StateRoot,
		ExtrinsicsRoot: h.ExtrinsicsRoot,
	}, nil
}

// GetHeader returns the header of the block with the given hash, or of the best block when hash is empty.
func GetHeader(ctx context.Context, api RPC, hash string) (core.Header, error) {
	var raw json.RawMessage
	var err error
	if hash == "" {
		err = api.Call(ctx, &raw, "chain_getHeader")
	} else {
		err = api.Call(ctx, &raw, "chain_getHeader", hash)
	}
	if err != nil {
		return core.Header{}, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return core.Header{}, errors.Wrapf(core.ErrEntityNotFound, "header %s", hash)
	}
	h, err := ParseHeader(raw)
	if err != nil {
		return core.Header{}, err
	}
	h.Hash = hash
	return h, nil
}

// BlockHash returns the hash of the block at number.
func BlockHash(ctx context.Context, api RPC, number uint64) (string, error) {
	var hash *string
	if err := api.Call(ctx, &hash, "chain_getBlockHash", number); err != nil {
		return "", err
	}
	if hash == nil {
		return "", errors.Wrapf(core.ErrEntityNotFound, "block %d", number)
	}
	return *hash, nil
}

// Properties are the token settings from system_properties.
type Properties struct {
	TokenDecimals int32
	TokenSymbol   string
	SS58Format    uint16
}

// GetProperties reads system_properties. Multi-token chains report arrays; the first entry is the native token.
func GetProperties(ctx context.Context, api RPC) (Properties, error) {
	var raw json.RawMessage
	if err := api.Call(ctx, &raw, "system_properties"); err != nil {
		return Properties{}, err
	}
	v, err := core.DecodeLoose(raw)
	if err != nil {
		return Properties{}, errors.Wrap(err, "decode system_properties")
	}
	m, _ := v.(map[string]any)
	first := func(x any) any {
		if arr, ok := x.([]any); ok {
			if len(arr) == 0 {
				return nil
			}
			return arr[0]
		}
		return x
	}
	props := Properties{TokenSymbol: "UNIT", TokenDecimals: 12, SS58Format: 42}
	if d, ok := core.AsUint64(first(m["token_decimals"])); ok {
		props.TokenDecimals = int32(d)
	}
	if s := core.AsString(first(m["token_symbol"])); s != "" {
		props.TokenSymbol = s
	}
	if f, ok := core.AsUint64(first(m["ss58_format"])); ok {
		props.SS58Format = uint16(f)
	}
	return props, nil
}
