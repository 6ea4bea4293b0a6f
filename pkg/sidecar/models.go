package sidecar

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/ideal-lab5/idn-explorer/pkg/core"
)

// Uint accepts both JSON numbers and the decimal or hex strings sidecar uses for large integers.
type Uint uint64

func (u *Uint) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*u = 0
		return nil
	}
	var v any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return err
	}
	n, ok := core.AsUint64(v)
	if !ok {
		return fmt.Errorf("not an unsigned integer: %s", string(data))
	}
	*u = Uint(n)
	return nil
}

type At struct {
	Hash   string `json:"hash"`
	Height Uint   `json:"height"`
}

type BalanceInfo struct {
	At          At     `json:"at"`
	Nonce       Uint   `json:"nonce"`
	TokenSymbol string `json:"tokenSymbol"`
	Free        string `json:"free"`
	Reserved    string `json:"reserved"`
	Frozen      string `json:"frozen"`
}

// MethodName identifies a call or an event by pallet and name.
type MethodName struct {
	Pallet string `json:"pallet"`
	Method string `json:"method"`
}

func (m MethodName) String() string {
	return m.Pallet + "." + m.Method
}

type Event struct {
	Method MethodName      `json:"method"`
	Data   json.RawMessage `json:"data"`
	Docs   string          `json:"docs,omitempty"`
}

type Signer struct {
	ID string `json:"id"`
}

type Signature struct {
	Signature string `json:"signature"`
	Signer    Signer `json:"signer"`
}

type Extrinsic struct {
	Method    MethodName      `json:"method"`
	Signature *Signature      `json:"signature"`
	Nonce     *Uint           `json:"nonce"`
	Args      json.RawMessage `json:"args"`
	Tip       *Uint           `json:"tip"`
	Hash      string          `json:"hash"`
	Events    []Event         `json:"events"`
	Success   bool            `json:"success"`
	PaysFee   bool            `json:"paysFee"`
}

func (e Extrinsic) Signed() bool {
	return e.Signature != nil && e.Signature.Signer.ID != ""
}

// Failure returns the dispatch error of a failed extrinsic, nil when it succeeded.
func (e Extrinsic) Failure() json.RawMessage {
	for _, ev := range e.Events {
		if ev.Method.Pallet == "system" && ev.Method.Method == "ExtrinsicFailed" {
			if len(ev.Data) == 0 {
				return json.RawMessage("null")
			}
			var data []json.RawMessage
			if json.Unmarshal(ev.Data, &data) == nil && len(data) > 0 {
				return data[0]
			}
			return ev.Data
		}
	}
	return nil
}

type EventsHolder struct {
	Events []Event `json:"events"`
}

type Block struct {
	Number         Uint         `json:"number"`
	Hash           string       `json:"hash"`
	ParentHash     string       `json:"parentHash"`
	StateRoot      string       `json:"stateRoot"`
	ExtrinsicsRoot string       `json:"extrinsicsRoot"`
	AuthorID       string       `json:"authorId"`
	OnInitialize   EventsHolder `json:"onInitialize"`
	Extrinsics     []Extrinsic  `json:"extrinsics"`
	OnFinalize     EventsHolder `json:"onFinalize"`
	Finalized      *bool        `json:"finalized"`
}

// IndexedEvent is an event with its position among all events of the block.
type IndexedEvent struct {
	Index int
	Event
}

// AllEvents returns the block's events in execution order: initialization, extrinsics, finalization.
func (b *Block) AllEvents() []IndexedEvent {
	var events []IndexedEvent
	add := func(evs []Event) {
		for _, ev := range evs {
			events = append(events, IndexedEvent{Index: len(events), Event: ev})
		}
	}
	add(b.OnInitialize.Events)
	for _, ex := range b.Extrinsics {
		add(ex.Events)
	}
	add(b.OnFinalize.Events)
	return events
}

// ExtrinsicByHash returns the extrinsic with the given hash, nil when the block has none.
func (b *Block) ExtrinsicByHash(hash string) *Extrinsic {
	for i := range b.Extrinsics {
		if equalHex(b.Extrinsics[i].Hash, hash) {
			return &b.Extrinsics[i]
		}
	}
	return nil
}

type StorageItem struct {
	At          At              `json:"at"`
	Pallet      string          `json:"pallet"`
	PalletIndex Uint            `json:"palletIndex"`
	StorageItem string          `json:"storageItem"`
	Keys        []string        `json:"keys"`
	Value       json.RawMessage `json:"value"`
}

// Empty reports whether the storage slot holds no value.
func (s *StorageItem) Empty() bool {
	v := bytes.TrimSpace(s.Value)
	return len(v) == 0 || bytes.Equal(v, []byte("null"))
}
