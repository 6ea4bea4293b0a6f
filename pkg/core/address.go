package core

import (
	"bytes"
	"encoding/hex"
	"strings"

	"github.com/go-faster/errors"
	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"
)

var ss58Prefix = []byte("SS58PRE")

// PublicKey is a 32-byte sr25519/ed25519 account id.
type PublicKey [32]byte

func (p PublicKey) Hex() string {
	return "0x" + hex.EncodeToString(p[:])
}

// DecodeSS58 returns the account id and network prefix of an SS58 address.
// A 0x-prefixed 32-byte hex string is accepted as a raw account id with prefix 0.
func DecodeSS58(address string) (PublicKey, uint16, error) {
	var pub PublicKey
	address = strings.TrimSpace(address)
	if strings.HasPrefix(address, "0x") {
		raw, err := hex.DecodeString(address[2:])
		if err != nil || len(raw) != 32 {
			return pub, 0, errors.Wrapf(ErrInvalidArgument, "bad account id %q", address)
		}
		copy(pub[:], raw)
		return pub, 0, nil
	}
	data, err := base58.Decode(address)
	if err != nil {
		return pub, 0, errors.Wrapf(ErrInvalidArgument, "bad address %q", address)
	}
	if len(data) < 1 {
		return pub, 0, errors.Wrapf(ErrInvalidArgument, "empty address")
	}
	var prefix uint16
	prefixLen := 1
	switch {
	case data[0] < 64:
		prefix = uint16(data[0])
	case data[0] < 128:
		if len(data) < 2 {
			return pub, 0, errors.Wrapf(ErrInvalidArgument, "bad address %q", address)
		}
		lower := (data[0] << 2) | (data[1] >> 6)
		upper := data[1] & 0x3f
		prefix = uint16(lower) | uint16(upper)<<8
		prefixLen = 2
	default:
		return pub, 0, errors.Wrapf(ErrInvalidArgument, "unsupported address prefix in %q", address)
	}
	if len(data) != prefixLen+32+2 {
		return pub, 0, errors.Wrapf(ErrInvalidArgument, "unexpected address length %q", address)
	}
	body := data[:prefixLen+32]
	sum := ss58Checksum(body)
	if !bytes.Equal(sum[:2], data[prefixLen+32:]) {
		return pub, 0, errors.Wrapf(ErrInvalidArgument, "bad address checksum %q", address)
	}
	copy(pub[:], data[prefixLen:prefixLen+32])
	return pub, prefix, nil
}

// EncodeSS58 encodes an account id with the given network prefix.
func EncodeSS58(pub PublicKey, prefix uint16) string {
	var body []byte
	if prefix < 64 {
		body = append(body, byte(prefix))
	} else {
		first := byte((prefix&0x00fc)>>2) | 0x40
		second := byte(prefix>>8) | byte((prefix&0x0003)<<6)
		body = append(body, first, second)
	}
	body = append(body, pub[:]...)
	sum := ss58Checksum(body)
	return base58.Encode(append(body, sum[:2]...))
}

// SameAccount reports whether two addresses refer to the same account id,
// regardless of their network prefixes.
func SameAccount(a, b string) bool {
	pa, _, err := DecodeSS58(a)
	if err != nil {
		return a == b
	}
	pb, _, err := DecodeSS58(b)
	if err != nil {
		return false
	}
	return pa == pb
}

func ss58Checksum(body []byte) [64]byte {
	payload := make([]byte, 0, len(ss58Prefix)+len(body))
	payload = append(payload, ss58Prefix...)
	payload = append(payload, body...)
	return blake2b.Sum512(payload)
}
