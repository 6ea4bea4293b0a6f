package signer

import (
	"encoding/hex"
	"math/big"
	"strings"

	"github.com/centrifuge/go-substrate-rpc-client/v4/scale"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/go-faster/errors"

	"github.com/ideal-lab5/idn-explorer/pkg/chain"
	"github.com/ideal-lab5/idn-explorer/pkg/core"
)

// scaleArg converts a call argument into a value the SCALE codec can encode.
func scaleArg(arg any) (any, error) {
	switch x := arg.(type) {
	case uint8:
		return types.NewU8(x), nil
	case uint32:
		return types.NewU32(x), nil
	case uint64:
		return types.NewU64(x), nil
	case bool:
		return types.NewBool(x), nil
	case []byte:
		return types.NewBytes(x), nil
	case string:
		return types.NewBytes([]byte(x)), nil
	case core.CallIndex:
		return [2]byte(x), nil
	case chain.Hash:
		return hash32(string(x))
	case core.Location:
		if err := x.Validate(); err != nil {
			return nil, err
		}
		return location(x), nil
	case chain.Opt:
		if !x.Set {
			return option{}, nil
		}
		inner, err := scaleArg(x.Value)
		if err != nil {
			return nil, err
		}
		return option{set: true, value: inner}, nil
	}
	return nil, errors.Errorf("unsupported call argument %T", arg)
}

type option struct {
	set   bool
	value any
}

func (o option) Encode(encoder scale.Encoder) error {
	return encoder.EncodeOption(o.set, o.value)
}

// location encodes an XCM v4 Location.
type location core.Location

func (l location) Encode(encoder scale.Encoder) error {
	if err := encoder.PushByte(l.Parents); err != nil {
		return err
	}
	// Junctions: Here = 0, X1..X8 = 1..8
	if err := encoder.PushByte(byte(len(l.Interior))); err != nil {
		return err
	}
	for i, j := range l.Interior {
		if err := encodeJunction(encoder, j); err != nil {
			return errors.Wrapf(err, "junction %d", i)
		}
	}
	return nil
}

func encodeJunction(encoder scale.Encoder, j core.Junction) error {
	switch j.Type {
	case core.JunctionParachain:
		return pushCompact(encoder, 0, j.Value[j.Type])
	case core.JunctionAccountID32:
		if err := encoder.PushByte(1); err != nil {
			return err
		}
		if err := encodeNetwork(encoder, j.Value["network"]); err != nil {
			return err
		}
		id, err := fixedBytes(j.Value["id"], 32)
		if err != nil {
			return err
		}
		return encoder.Write(id)
	case core.JunctionAccountIndex64:
		if err := encoder.PushByte(2); err != nil {
			return err
		}
		if err := encodeNetwork(encoder, j.Value["network"]); err != nil {
			return err
		}
		return compact(encoder, j.Value["index"])
	case core.JunctionAccountKey20:
		if err := encoder.PushByte(3); err != nil {
			return err
		}
		if err := encodeNetwork(encoder, j.Value["network"]); err != nil {
			return err
		}
		key, err := fixedBytes(j.Value["key"], 20)
		if err != nil {
			return err
		}
		return encoder.Write(key)
	case core.JunctionPalletInstance:
		n, ok := core.AsUint64(j.Value[j.Type])
		if !ok || n > 255 {
			return errors.Errorf("bad pallet instance %v", j.Value[j.Type])
		}
		if err := encoder.PushByte(4); err != nil {
			return err
		}
		return encoder.PushByte(byte(n))
	case core.JunctionGeneralIndex:
		return pushCompact(encoder, 5, j.Value[j.Type])
	case core.JunctionGeneralKey:
		data, err := variableBytes(j.Value["data"])
		if err != nil {
			return err
		}
		if len(data) > 32 {
			return errors.Errorf("general key longer than 32 bytes")
		}
		length := len(data)
		if l, ok := core.AsUint64(j.Value["length"]); ok && int(l) <= 32 {
			length = int(l)
		}
		padded := make([]byte, 32)
		copy(padded, data)
		if err := encoder.PushByte(6); err != nil {
			return err
		}
		if err := encoder.PushByte(byte(length)); err != nil {
			return err
		}
		return encoder.Write(padded)
	case core.JunctionOnlyChild:
		return encoder.PushByte(7)
	case core.JunctionGlobalConsensus:
		if err := encoder.PushByte(9); err != nil {
			return err
		}
		v, ok := j.Value[j.Type]
		if !ok {
			v = j.Value["network"]
		}
		return encodeNetworkID(encoder, v)
	}
	return errors.Errorf("junction %q cannot be encoded", j.Type)
}

var namedNetworks = map[string]byte{
	"polkadot":         2,
	"kusama":           3,
	"westend":          4,
	"rococo":           5,
	"wococo":           6,
	"bitcoincore":      8,
	"bitcoincash":      9,
	"polkadotbulletin": 10,
}

// encodeNetwork writes Option<NetworkId>.
func encodeNetwork(encoder scale.Encoder, v any) error {
	if v == nil {
		return encoder.PushByte(0)
	}
	if err := encoder.PushByte(1); err != nil {
		return err
	}
	return encodeNetworkID(encoder, v)
}

func encodeNetworkID(encoder scale.Encoder, v any) error {
	switch x := v.(type) {
	case string:
		idx, ok := namedNetworks[strings.ToLower(strings.ReplaceAll(x, "_", ""))]
		if !ok {
			return errors.Errorf("unknown network %q", x)
		}
		return encoder.PushByte(idx)
	case map[string]any:
		for name, payload := range x {
			switch strings.ToLower(strings.ReplaceAll(name, "_", "")) {
			case "bygenesis":
				genesis, err := fixedBytes(payload, 32)
				if err != nil {
					return err
				}
				if err := encoder.PushByte(0); err != nil {
					return err
				}
				return encoder.Write(genesis)
			case "ethereum":
				chainID := payload
				if m, ok := payload.(map[string]any); ok {
					chainID, _ = core.Pick(m, "chainId", "chain_id")
				}
				if err := encoder.PushByte(7); err != nil {
					return err
				}
				return compact(encoder, chainID)
			default:
				return encodeNetworkID(encoder, name)
			}
		}
	}
	return errors.Errorf("bad network %v", v)
}

func pushCompact(encoder scale.Encoder, variant byte, v any) error {
	if err := encoder.PushByte(variant); err != nil {
		return err
	}
	return compact(encoder, v)
}

func compact(encoder scale.Encoder, v any) error {
	n, ok := core.AsUint64(v)
	if !ok {
		return errors.Errorf("bad number %v", v)
	}
	return encoder.EncodeUintCompact(*new(big.Int).SetUint64(n))
}

func hash32(s string) (types.H256, error) {
	raw, err := fixedBytes(s, 32)
	if err != nil {
		return types.H256{}, err
	}
	return types.NewH256(raw), nil
}

func fixedBytes(v any, size int) ([]byte, error) {
	raw, err := variableBytes(v)
	if err != nil {
		return nil, err
	}
	if len(raw) != size {
		return nil, errors.Errorf("expected %d bytes, got %d", size, len(raw))
	}
	return raw, nil
}

// variableBytes accepts 0x hex strings, SS58 addresses (for 32-byte account ids) and byte arrays.
func variableBytes(v any) ([]byte, error) {
	switch x := v.(type) {
	case string:
		if strings.HasPrefix(x, "0x") {
			raw, err := hex.DecodeString(x[2:])
			if err != nil {
				return nil, errors.Wrap(err, "hex")
			}
			return raw, nil
		}
		pub, _, err := core.DecodeSS58(x)
		if err != nil {
			return nil, err
		}
		return pub[:], nil
	case []byte:
		return x, nil
	case []any:
		out := make([]byte, 0, len(x))
		for _, b := range x {
			n, ok := core.AsUint64(b)
			if !ok || n > 255 {
				return nil, errors.Errorf("bad byte %v", b)
			}
			out = append(out, byte(n))
		}
		return out, nil
	}
	return nil, errors.Errorf("expected bytes, got %T", v)
}
