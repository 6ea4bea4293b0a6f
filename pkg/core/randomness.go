package core

import (
	"fmt"
)

const RandomnessGenerated = "Generated"

// Randomness is the beacon output stored at a block.
type Randomness struct {
	Block     uint64 `json:"block"`
	Value     string `json:"value"`
	Signature string `json:"signature"`
	Status    string `json:"status"`
}

// RandomnessDistributionEvent is a delivery of randomness to a subscription's target.
type RandomnessDistributionEvent struct {
	ID             string `json:"id"`
	Block          uint64 `json:"block"`
	Timestamp      *int64 `json:"timestamp,omitempty"`
	SubscriptionID string `json:"subscription_id"`
	Value          string `json:"value"`
	Target         string `json:"target"`
	CallIndex      string `json:"call_index"`
}

// positional order of the distribution event fields when the event data is an array.
var distributionPositions = []string{"subscription_id", "value", "target", "call_index"}

// NewRandomnessDistributionEvent builds an event from raw event data.
// Runtime versions emit the fields under different names or positionally, so every known
// variant is tried and a missing field stays empty.
func NewRandomnessDistributionEvent(block uint64, eventIndex int, timestamp *int64, data any) RandomnessDistributionEvent {
	ev := RandomnessDistributionEvent{
		ID:        fmt.Sprintf("%d-%d", block, eventIndex),
		Block:     block,
		Timestamp: timestamp,
	}
	fields := map[string]any{}
	switch x := data.(type) {
	case map[string]any:
		fields = x
	case []any:
		for i, v := range x {
			if i >= len(distributionPositions) {
				break
			}
			fields[distributionPositions[i]] = v
		}
	}
	if v, ok := Pick(fields, "subscription_id", "sub_id", "subscription", "id"); ok {
		ev.SubscriptionID = AsString(v)
	}
	if v, ok := Pick(fields, "value", "randomness", "rand", "pulse"); ok {
		ev.Value = AsString(v)
	}
	if v, ok := Pick(fields, "target", "destination", "location"); ok {
		ev.Target = AsString(v)
	}
	if v, ok := Pick(fields, "call_index", "call"); ok {
		ev.CallIndex = AsString(v)
	}
	return ev
}
