package core

import (
	"strings"
)

// Header is a block header as pushed by chain_subscribeNewHeads.
type Header struct {
	Number         uint64 `json:"number"`
	Hash           string `json:"hash,omitempty"`
	ParentHash     string `json:"parent_hash"`
	StateRoot      string `json:"state_root"`
	ExtrinsicsRoot string `json:"extrinsics_root"`
}

// SessionInfo describes progress through the current session and era, in blocks.
type SessionInfo struct {
	SessionProgress uint64 `json:"session_progress"`
	SessionLength   uint64 `json:"session_length"`
	EraProgress     uint64 `json:"era_progress"`
	SessionsPerEra  uint64 `json:"sessions_per_era"`
}

// Balance is an account's free balance formatted with the chain's token decimals.
type Balance struct {
	Address   string `json:"address"`
	Free      string `json:"free"`
	Formatted string `json:"formatted"`
	Symbol    string `json:"symbol"`
	Decimals  int32  `json:"decimals"`
}

// ExtrinsicParameter is one argument of a runtime call.
type ExtrinsicParameter struct {
	Name     string `json:"name"`
	TypeName string `json:"type_name"`
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func equalFold(a, b string) bool {
	return strings.EqualFold(a, b)
}
