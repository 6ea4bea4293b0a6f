package core

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// ExtractMetadataString turns a subscription metadata field into readable text.
// It accepts 0x-prefixed hex byte strings, plain strings, arrays of byte codes,
// raw bytes and values implementing fmt.Stringer. Control characters are removed after decoding.
func ExtractMetadataString(v any) string {
	var s string
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		s = decodeHexString(x)
	case []byte:
		s = string(x)
	case []any:
		s = bytesFromCodes(x)
	case []int:
		buf := make([]byte, 0, len(x))
		for _, c := range x {
			buf = append(buf, byte(c))
		}
		s = string(buf)
	case fmt.Stringer:
		s = decodeHexString(x.String())
	default:
		s = decodeHexString(AsString(x))
	}
	return stripControl(s)
}

func decodeHexString(s string) string {
	if !strings.HasPrefix(s, "0x") || len(s)%2 != 0 {
		return s
	}
	raw, err := hex.DecodeString(s[2:])
	if err != nil {
		return s
	}
	return string(raw)
}

func bytesFromCodes(codes []any) string {
	buf := make([]byte, 0, len(codes))
	for _, c := range codes {
		n, ok := AsUint64(c)
		if !ok || n > 0xff {
			return AsString(codes)
		}
		buf = append(buf, byte(n))
	}
	return string(buf)
}

func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
}
