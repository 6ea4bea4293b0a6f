package core

import (
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/go-faster/errors"
)

type SubscriptionState string

const (
	SubscriptionActive SubscriptionState = "Active"
	SubscriptionPaused SubscriptionState = "Paused"
)

// CallIndex is the [pallet index, call index] pair of the call the chain dispatches on delivery.
type CallIndex [2]uint8

// SubscriptionDetails are the fields a subscriber fixes on create and can later update.
type SubscriptionDetails struct {
	Subscriber string    `json:"subscriber"`
	CreatedAt  uint64    `json:"created_at"`
	UpdatedAt  uint64    `json:"updated_at"`
	Amount     uint64    `json:"amount"`
	Frequency  uint32    `json:"frequency"`
	Target     Location  `json:"target"`
	Metadata   string    `json:"metadata"`
	CallIndex  CallIndex `json:"call_index"`
}

type Subscription struct {
	ID          string              `json:"id"`
	Details     SubscriptionDetails `json:"details"`
	CreditsLeft uint64              `json:"credits_left"`
	State       SubscriptionState   `json:"state"`
}

// CreditsConsumed saturates at zero when the chain reports more credits left than were bought.
func (s Subscription) CreditsConsumed() uint64 {
	if s.CreditsLeft >= s.Details.Amount {
		return 0
	}
	return s.Details.Amount - s.CreditsLeft
}

func (s Subscription) MarshalJSON() ([]byte, error) {
	type plain Subscription
	return json.Marshal(struct {
		plain
		CreditsConsumed uint64 `json:"credits_consumed"`
	}{plain: plain(s), CreditsConsumed: s.CreditsConsumed()})
}

// NormalizeSubscriptionID returns a lower-case 0x-prefixed id.
func NormalizeSubscriptionID(id string) string {
	id = strings.ToLower(strings.TrimSpace(id))
	if !strings.HasPrefix(id, "0x") {
		id = "0x" + id
	}
	return id
}

// ValidSubscriptionID reports whether id is a 32-byte hex hash.
func ValidSubscriptionID(id string) bool {
	id = NormalizeSubscriptionID(id)
	if len(id) != 66 {
		return false
	}
	_, err := hex.DecodeString(id[2:])
	return err == nil
}

// ParseSubscription builds a Subscription from a decoded storage value.
// The runtime query method, sidecar and older runtimes disagree on layout: fields may sit at
// the top level or under "details", and numbers may be JSON numbers, decimal or hex strings.
// fallbackID is used when the value itself carries no id (storage values keyed by id).
func ParseSubscription(fallbackID string, v any) (Subscription, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return Subscription{}, errors.Errorf("subscription must be an object, got %T", v)
	}
	details, _ := m["details"].(map[string]any)
	field := func(keys ...string) (any, bool) {
		if x, ok := Pick(m, keys...); ok {
			return x, true
		}
		if details != nil {
			return Pick(details, keys...)
		}
		return nil, false
	}
	uintField := func(keys ...string) uint64 {
		x, ok := field(keys...)
		if !ok {
			return 0
		}
		n, _ := AsUint64(x)
		return n
	}

	sub := Subscription{ID: fallbackID}
	if id, ok := Pick(m, "id", "sub_id", "subscription_id"); ok {
		sub.ID = AsString(id)
	}
	if sub.ID == "" {
		return Subscription{}, errors.New("subscription has no id")
	}
	sub.ID = NormalizeSubscriptionID(sub.ID)

	if s, ok := field("subscriber"); ok {
		sub.Details.Subscriber = AsString(s)
	}
	sub.Details.CreatedAt = uintField("created_at")
	sub.Details.UpdatedAt = uintField("updated_at")
	sub.Details.Amount = uintField("credits", "amount")
	sub.Details.Frequency = uint32(uintField("frequency"))
	sub.CreditsLeft = uintField("credits_left")
	if md, ok := field("metadata"); ok {
		sub.Details.Metadata = ExtractMetadataString(md)
	}
	if ci, ok := field("call_index"); ok {
		sub.Details.CallIndex = parseCallIndex(ci)
	}
	if t, ok := field("target"); ok {
		loc, err := LocationFromWire(t)
		if err != nil {
			return Subscription{}, errors.Wrap(err, "target")
		}
		sub.Details.Target = loc
	}
	sub.State = SubscriptionActive
	if st, ok := field("state", "status"); ok {
		sub.State = parseState(st)
	}
	return sub, nil
}

func parseState(v any) SubscriptionState {
	name := AsString(v)
	if m, ok := v.(map[string]any); ok {
		// enum variants with payload: {"paused": null}
		for k := range m {
			name = k
		}
	}
	if strings.EqualFold(name, string(SubscriptionPaused)) {
		return SubscriptionPaused
	}
	return SubscriptionActive
}

func parseCallIndex(v any) CallIndex {
	var ci CallIndex
	switch x := v.(type) {
	case []any:
		for i := 0; i < len(x) && i < 2; i++ {
			n, _ := AsUint64(x[i])
			ci[i] = uint8(n)
		}
	case string:
		bs, err := hex.DecodeString(strings.TrimPrefix(x, "0x"))
		if err == nil && len(bs) == 2 {
			ci[0], ci[1] = bs[0], bs[1]
		}
	}
	return ci
}
