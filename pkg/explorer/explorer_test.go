package explorer

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ideal-lab5/idn-explorer/pkg/chain"
	"github.com/ideal-lab5/idn-explorer/pkg/chain/chaintest"
	"github.com/ideal-lab5/idn-explorer/pkg/core"
	"github.com/ideal-lab5/idn-explorer/pkg/sidecar"
)

const alice = "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY"

func newExplorer(t *testing.T, api *chaintest.FakeAPI, opts ...Option) *Explorer {
	e, err := New(chaintest.Provider{API: api}, zap.NewNop(), opts...)
	require.Nil(t, err)
	return e
}

func withHead(api *chaintest.FakeAPI, number uint64) {
	api.Methods["chain_getHeader"] = func(params []any) (any, error) {
		return map[string]any{"number": fmt.Sprintf("0x%x", number), "parentHash": "0xp"}, nil
	}
}

func testBlock(number uint64) *sidecar.Block {
	finalized := true
	return &sidecar.Block{
		Number:    sidecar.Uint(number),
		Hash:      fmt.Sprintf("0x%02x", number),
		Finalized: &finalized,
		OnInitialize: sidecar.EventsHolder{Events: []sidecar.Event{
			{Method: sidecar.MethodName{Pallet: "scheduler", Method: "Dispatched"}, Data: json.RawMessage(`[[10, 0], "0x6a6f62", {"err": {"module": {"index": 1}}}]`)},
		}},
		Extrinsics: []sidecar.Extrinsic{
			{Method: sidecar.MethodName{Pallet: "timestamp", Method: "set"}, Args: json.RawMessage(`{"now": "1700000000000"}`)},
			{
				Method:    sidecar.MethodName{Pallet: "idnManager", Method: "createSubscription"},
				Signature: &sidecar.Signature{Signer: sidecar.Signer{ID: alice}},
				Args:      json.RawMessage(`{"credits": "100", "frequency": "5"}`),
				Hash:      fmt.Sprintf("0xtx%d", number),
				Events: []sidecar.Event{
					{Method: sidecar.MethodName{Pallet: "balances", Method: "Withdraw"}},
					{Method: sidecar.MethodName{Pallet: "idnManager", Method: "SubscriptionCreated"}, Data: json.RawMessage(`["0x11"]`)},
					{Method: sidecar.MethodName{Pallet: "idnManager", Method: "RandomnessDistributed"}, Data: json.RawMessage(`{"subId": "0x11", "randomness": "0xbeef", "target": "para-2000", "callIndex": "0x2a01"}`)},
					{Method: sidecar.MethodName{Pallet: "system", Method: "ExtrinsicSuccess"}},
				},
				Success: true,
			},
		},
	}
}

func TestExecutedTransactions(t *testing.T) {
	txs := ExecutedTransactions(12, testBlock(12))
	require.Equal(t, []core.ExecutedTransaction{
		{
			Block:     12,
			ID:        "12-0",
			Operation: "scheduler.Dispatched",
			Status:    core.TxStatusFailed,
			EventData: `[[10,0],"0x6a6f62",{"err":{"module":{"index":1}}}]`,
			Metadata:  "job",
			Delayed:   true,
		},
		{
			Block:     12,
			ID:        "0xtx12",
			Owner:     alice,
			Operation: "idnManager.createSubscription",
			Status:    core.TxStatusSuccess,
			EventData: `["idnManager.SubscriptionCreated","idnManager.RandomnessDistributed"]`,
			Metadata:  `{"credits":"100","frequency":"5"}`,
		},
	}, txs)
}

func TestExplorer_QueryHistoricalEvents(t *testing.T) {
	api := chaintest.NewFakeAPI()
	api.OnBlock = func(id string) (*sidecar.Block, error) {
		var n uint64
		_, err := fmt.Sscan(id, &n)
		require.Nil(t, err)
		return testBlock(n), nil
	}
	e := newExplorer(t, api, WithMaxRange(10), WithConcurrency(3))
	ctx := context.Background()

	txs, err := e.QueryHistoricalEvents(ctx, 5, 9)
	require.Nil(t, err)
	require.Len(t, txs, 10)
	for i := 0; i < 5; i++ {
		require.Equal(t, uint64(5+i), txs[2*i].Block)
		require.True(t, txs[2*i].Delayed)
		require.Equal(t, uint64(5+i), txs[2*i+1].Block)
	}
	require.Equal(t, 5, api.Calls("Block"))

	_, err = e.QueryHistoricalEvents(ctx, 9, 5)
	require.ErrorIs(t, err, core.ErrInvalidArgument)
	_, err = e.QueryHistoricalEvents(ctx, 1, 11)
	require.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestExplorer_QueryHistoricalEventsFails(t *testing.T) {
	api := chaintest.NewFakeAPI()
	e := newExplorer(t, api)
	_, err := e.QueryHistoricalEvents(context.Background(), 1, 3)
	require.ErrorIs(t, err, core.ErrEntityNotFound)
}

func TestParsePulse(t *testing.T) {
	// sha256 of 0x00
	const zeroHash = "0x6e340b9cffb37a989ca544e6bb780a2c78901d3fb33738768511a30617afa01d"
	tests := []struct {
		name  string
		value any
		want  core.Randomness
	}{
		{name: "bare signature", value: "0x00", want: core.Randomness{Signature: "0x00", Value: zeroHash, Status: core.RandomnessGenerated}},
		{name: "signature field", value: map[string]any{"signature": "0x00"}, want: core.Randomness{Signature: "0x00", Value: zeroHash, Status: core.RandomnessGenerated}},
		{name: "stored randomness", value: map[string]any{"asig": "0x00", "randomness": "0xabcd"}, want: core.Randomness{Signature: "0x00", Value: "0xabcd", Status: core.RandomnessGenerated}},
		{name: "nothing", value: []any{}, want: core.Randomness{Status: core.RandomnessGenerated}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, ParsePulse(tt.value))
		})
	}
}

func TestExplorer_GetRandomness(t *testing.T) {
	api := chaintest.NewFakeAPI()
	withHead(api, 20)
	api.Methods["chain_getBlockHash"] = func(params []any) (any, error) {
		return fmt.Sprintf("0xhash%d", params[0]), nil
	}
	api.OnStorageItem = func(pallet, item string, keys []string, at string) (*sidecar.StorageItem, error) {
		require.Equal(t, "randBeacon", pallet)
		require.Equal(t, "sparseAccumulation", item)
		if at == "0xhash19" {
			return &sidecar.StorageItem{Value: json.RawMessage("null")}, nil
		}
		return &sidecar.StorageItem{Value: chaintest.Raw(map[string]any{"signature": "0x00", "randomness": "0x" + at[6:]})}, nil
	}
	e := newExplorer(t, api)

	samples, err := e.GetRandomness(context.Background(), 0, 3)
	require.Nil(t, err)
	require.Len(t, samples, 2)
	require.Equal(t, uint64(18), samples[0].Block)
	require.Equal(t, "0x18", samples[0].Value)
	require.Equal(t, uint64(20), samples[1].Block)
	require.Equal(t, core.RandomnessGenerated, samples[1].Status)

	samples, err = e.GetRandomness(context.Background(), 2, 5)
	require.Nil(t, err)
	require.Len(t, samples, 2)

	_, err = e.GetRandomness(context.Background(), 500, 1000)
	require.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestExplorer_GetScheduledTransactions(t *testing.T) {
	api := chaintest.NewFakeAPI()
	withHead(api, 100)
	prefix := chain.StoragePrefix("Scheduler", "Agenda")
	// twox64 hash followed by the little-endian block number
	agendaKey := func(le string) string { return prefix + "0011223344556677" + le }
	api.Methods["state_getKeysPaged"] = func(params []any) (any, error) {
		require.Equal(t, prefix, params[0])
		return []string{agendaKey("c8000000"), agendaKey("32000000"), agendaKey("96000000")}, nil
	}
	api.OnRuntimeMetadata = func(at string) (*sidecar.Metadata, error) {
		return &sidecar.Metadata{Pallets: []sidecar.Pallet{{Name: "IdnManager", Index: 42, Calls: []sidecar.Variant{{Name: "kill_subscription", Index: 3}}}}}, nil
	}
	api.OnStorageItem = func(pallet, item string, keys []string, at string) (*sidecar.StorageItem, error) {
		require.Equal(t, "scheduler", pallet)
		switch keys[0] {
		case "200":
			return &sidecar.StorageItem{Value: chaintest.Raw([]any{
				nil,
				map[string]any{"maybeId": "0x6964", "call": map[string]any{"inline": "0x2a0311"}, "origin": map[string]any{"system": map[string]any{"Signed": alice}}},
			})}, nil
		case "150":
			return &sidecar.StorageItem{Value: chaintest.Raw([]any{
				map[string]any{"call": map[string]any{"lookup": map[string]any{"hash": "0xfeed", "len": 10}}, "origin": map[string]any{"system": "Root"}},
			})}, nil
		}
		t.Fatalf("agenda of past block %s read", keys[0])
		return nil, nil
	}
	e := newExplorer(t, api)

	txs, err := e.GetScheduledTransactions(context.Background())
	require.Nil(t, err)
	require.Equal(t, []core.DelayedTransaction{
		{Block: 100, ID: "150-0", Operation: "preimage:0xfeed", DeadlineBlock: 150},
		{Block: 100, ID: "0x6964", Owner: alice, Operation: "idnManager.kill_subscription", DeadlineBlock: 200},
	}, txs)
}

func TestRandomnessService(t *testing.T) {
	api := chaintest.NewFakeAPI()
	var heads atomic.Int32
	api.OnFinalizedHead = func() (*sidecar.Block, error) {
		heads.Add(1)
		return testBlock(12), nil
	}
	s := NewRandomnessService(chaintest.Provider{API: api}, zap.NewNop())
	ctx := context.Background()

	events, err := s.GetRandomnessDistributionEvents(ctx, 10, 20)
	require.Nil(t, err)
	require.Len(t, events, 1)
	ev := events[0]
	require.Equal(t, "12-3", ev.ID)
	require.Equal(t, "0x11", ev.SubscriptionID)
	require.Equal(t, "0xbeef", ev.Value)
	require.Equal(t, "para-2000", ev.Target)
	require.Equal(t, "0x2a01", ev.CallIndex)
	require.NotNil(t, ev.Timestamp)
	require.Equal(t, int64(1700000000000), *ev.Timestamp)

	_, err = s.GetRandomnessDistributionEvents(ctx, 10, 20)
	require.Nil(t, err)
	require.Equal(t, int32(1), heads.Load())

	// another range has its own entry and is fetched
	events, err = s.GetRandomnessDistributionEvents(ctx, 30, 40)
	require.Nil(t, err)
	require.Empty(t, events)
	require.Equal(t, int32(2), heads.Load())
}
