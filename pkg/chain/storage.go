package chain

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/go-faster/errors"
)

// Twox128 is the storage hasher substrate uses for pallet and item prefixes.
func Twox128(data []byte) []byte {
	out := make([]byte, 16)
	for seed := uint64(0); seed < 2; seed++ {
		h := xxhash.NewWithSeed(seed)
		h.Write(data)
		binary.LittleEndian.PutUint64(out[seed*8:], h.Sum64())
	}
	return out
}

// StoragePrefix returns the hex key prefix of a storage item: twox128(pallet) ++ twox128(item).
// Names are the runtime's own, e.g. "IdnManager" and "Subscriptions".
func StoragePrefix(pallet, item string) string {
	key := append(Twox128([]byte(pallet)), Twox128([]byte(item))...)
	return "0x" + hex.EncodeToString(key)
}

// Blake2_128ConcatKey extracts the trailing map key of a storage key hashed with Blake2_128Concat.
func Blake2_128ConcatKey(storageKey string, keyLen int) (string, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(storageKey, "0x"))
	if err != nil {
		return "", errors.Wrap(err, "storage key")
	}
	// 32 bytes of prefix and 16 bytes of blake2 hash come first
	if len(raw) < 48+keyLen {
		return "", errors.Errorf("storage key too short: %d bytes", len(raw))
	}
	return "0x" + hex.EncodeToString(raw[len(raw)-keyLen:]), nil
}

// Twox64ConcatU32 extracts a little-endian u32 key hashed with Twox64Concat, as used by scheduler agendas.
func Twox64ConcatU32(storageKey string) (uint32, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(storageKey, "0x"))
	if err != nil {
		return 0, errors.Wrap(err, "storage key")
	}
	if len(raw) < 32+8+4 {
		return 0, errors.Errorf("storage key too short: %d bytes", len(raw))
	}
	return binary.LittleEndian.Uint32(raw[len(raw)-4:]), nil
}

// StorageKeysPaged lists up to count keys under prefix, starting after startKey.
func StorageKeysPaged(ctx context.Context, api RPC, prefix string, count int, startKey, at string) ([]string, error) {
	params := []any{prefix, count}
	if startKey != "" || at != "" {
		params = append(params, nullable(startKey))
	}
	if at != "" {
		params = append(params, at)
	}
	var keys []string
	if err := api.Call(ctx, &keys, "state_getKeysPaged", params...); err != nil {
		return nil, err
	}
	return keys, nil
}

// QueryStorageAt returns the raw SCALE values of keys; absent keys are omitted.
func QueryStorageAt(ctx context.Context, api RPC, keys []string, at string) (map[string]string, error) {
	params := []any{keys}
	if at != "" {
		params = append(params, at)
	}
	var changeSets []struct {
		Block   string      `json:"block"`
		Changes [][]*string `json:"changes"`
	}
	if err := api.Call(ctx, &changeSets, "state_queryStorageAt", params...); err != nil {
		return nil, err
	}
	values := make(map[string]string, len(keys))
	for _, set := range changeSets {
		for _, change := range set.Changes {
			if len(change) != 2 || change[0] == nil || change[1] == nil {
				continue
			}
			values[*change[0]] = *change[1]
		}
	}
	return values, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
