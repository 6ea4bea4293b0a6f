package chain_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ideal-lab5/idn-explorer/pkg/chain"
	"github.com/ideal-lab5/idn-explorer/pkg/chain/chaintest"
	"github.com/ideal-lab5/idn-explorer/pkg/chain/rpc"
	"github.com/ideal-lab5/idn-explorer/pkg/core"
	"github.com/ideal-lab5/idn-explorer/pkg/sidecar"
)

func TestStoragePrefix(t *testing.T) {
	require.Equal(t, "0x26aa394eea5630e07c48ae0c9558cef7b99d880ec681799c0cf30e8886371da9", chain.StoragePrefix("System", "Account"))
	require.Equal(t, "0xf0c365c3cf59d671eb72da0e7a4113c4ba7fb8745735dc3be2a2c61a72c39e78", chain.StoragePrefix("Timestamp", "Now"))
}

func TestMapKeys(t *testing.T) {
	prefix := chain.StoragePrefix("IdnManager", "Subscriptions")
	id := "0101010101010101010101010101010101010101010101010101010101010101"
	key := prefix + "00112233445566778899aabbccddeeff" + id
	got, err := chain.Blake2_128ConcatKey(key, 32)
	require.Nil(t, err)
	require.Equal(t, "0x"+id, got)

	_, err = chain.Blake2_128ConcatKey(prefix, 32)
	require.NotNil(t, err)

	agenda := chain.StoragePrefix("Scheduler", "Agenda") + "0011223344556677" + "e8030000"
	block, err := chain.Twox64ConcatU32(agenda)
	require.Nil(t, err)
	require.Equal(t, uint32(1000), block)
}

func TestStorageCalls(t *testing.T) {
	api := chaintest.NewFakeAPI()
	api.Methods["state_getKeysPaged"] = func(params []any) (any, error) {
		require.Equal(t, []any{"0xprefix", 2, "0xstart"}, params)
		return []string{"0xa", "0xb"}, nil
	}
	api.Methods["state_queryStorageAt"] = func(params []any) (any, error) {
		return []any{map[string]any{"block": "0x1", "changes": [][]any{{"0xa", "0x01"}, {"0xb", nil}}}}, nil
	}
	ctx := context.Background()
	keys, err := chain.StorageKeysPaged(ctx, api, "0xprefix", 2, "0xstart", "")
	require.Nil(t, err)
	require.Equal(t, []string{"0xa", "0xb"}, keys)

	values, err := chain.QueryStorageAt(ctx, api, keys, "")
	require.Nil(t, err)
	require.Equal(t, map[string]string{"0xa": "0x01"}, values)
}

func TestParseHeader(t *testing.T) {
	h, err := chain.ParseHeader(json.RawMessage(`{"parentHash":"0xp","number":"0x1a","stateRoot":"0xs","extrinsicsRoot":"0xe","digest":{"logs":[]}}`))
	require.Nil(t, err)
	require.Equal(t, core.Header{Number: 26, ParentHash: "0xp", StateRoot: "0xs", ExtrinsicsRoot: "0xe"}, h)

	_, err = chain.ParseHeader(json.RawMessage(`{"number":"zz"}`))
	require.NotNil(t, err)
}

func TestGetProperties(t *testing.T) {
	api := chaintest.NewFakeAPI()
	api.Methods["system_properties"] = func(params []any) (any, error) {
		return map[string]any{"tokenDecimals": []int{10}, "tokenSymbol": []string{"IDN"}, "ss58Format": 0}, nil
	}
	props, err := chain.GetProperties(context.Background(), api)
	require.Nil(t, err)
	require.Equal(t, chain.Properties{TokenDecimals: 10, TokenSymbol: "IDN", SS58Format: 0}, props)
}

func TestParseTxStatus(t *testing.T) {
	tests := []struct {
		raw      string
		want     chain.TxStatus
		included bool
		rejected bool
	}{
		{raw: `"ready"`, want: chain.TxStatus{Kind: chain.TxReady}},
		{raw: `{"broadcast":["peer"]}`, want: chain.TxStatus{Kind: chain.TxBroadcast}},
		{raw: `{"inBlock":"0xb"}`, want: chain.TxStatus{Kind: chain.TxInBlock, Block: "0xb"}, included: true},
		{raw: `{"finalized":"0xf"}`, want: chain.TxStatus{Kind: chain.TxFinalized, Block: "0xf"}, included: true},
		{raw: `{"usurped":"0xu"}`, want: chain.TxStatus{Kind: chain.TxUsurped, Block: "0xu"}, rejected: true},
		{raw: `"dropped"`, want: chain.TxStatus{Kind: chain.TxDropped}, rejected: true},
		{raw: `"invalid"`, want: chain.TxStatus{Kind: chain.TxInvalid}, rejected: true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := chain.ParseTxStatus(json.RawMessage(tt.raw))
			require.Nil(t, err)
			require.Equal(t, tt.want, got)
			require.Equal(t, tt.included, got.Included())
			require.Equal(t, tt.rejected, got.Rejected())
		})
	}
}

func TestExtrinsicHash(t *testing.T) {
	// blake2b-256 of the empty input
	h, err := chain.ExtrinsicHash("0x")
	require.Nil(t, err)
	require.Equal(t, "0x0e5751c026e543b2e8ab2eb06099daa1d1e5df47778f7787faab45cdf12fe3a8", h)
}

const signedExtrinsic = "0x0102"

func inclusionBlock(t *testing.T, failed bool) *sidecar.Block {
	hash, err := chain.ExtrinsicHash(signedExtrinsic)
	require.Nil(t, err)
	events := []sidecar.Event{{Method: sidecar.MethodName{Pallet: "idnManager", Method: "SubscriptionPaused"}, Data: chaintest.Raw([]any{"0x01"})}}
	if failed {
		events = []sidecar.Event{{
			Method: sidecar.MethodName{Pallet: "system", Method: "ExtrinsicFailed"},
			Data:   chaintest.Raw([]any{map[string]any{"module": map[string]any{"index": "42", "error": "0x03000000"}}}),
		}}
	}
	return &sidecar.Block{
		Hash: "0xblock",
		Extrinsics: []sidecar.Extrinsic{
			{Hash: "0xother"},
			{Hash: hash, Events: events, Success: !failed},
		},
	}
}

func testMetadata() *sidecar.Metadata {
	return &sidecar.Metadata{Pallets: []sidecar.Pallet{{
		Name:   "IdnManager",
		Index:  42,
		Errors: []sidecar.Variant{{Name: "NotSubscriber", Index: 3, Docs: []string{"The origin isn't the subscriber"}}},
	}}}
}

func TestSubmitAndWait(t *testing.T) {
	ctx := context.Background()

	t.Run("included", func(t *testing.T) {
		api := chaintest.NewFakeAPI()
		api.Subscriptions["author_submitAndWatchExtrinsic"] = chaintest.Watch("ready", map[string]any{"broadcast": []string{}}, map[string]any{"inBlock": "0xblock"})
		api.OnBlock = func(id string) (*sidecar.Block, error) {
			require.Equal(t, "0xblock", id)
			return inclusionBlock(t, false), nil
		}
		inc, err := chain.SubmitAndWait(ctx, api, signedExtrinsic, time.Second, zap.NewNop())
		require.Nil(t, err)
		require.Equal(t, "0xblock", inc.BlockHash)
		require.NotNil(t, inc.Extrinsic)
		_, ok := inc.FindEvent("idnManager", "subscriptionPaused")
		require.True(t, ok)
	})

	t.Run("dispatch error", func(t *testing.T) {
		api := chaintest.NewFakeAPI()
		api.Subscriptions["author_submitAndWatchExtrinsic"] = chaintest.Watch(map[string]any{"inBlock": "0xblock"})
		api.OnBlock = func(id string) (*sidecar.Block, error) { return inclusionBlock(t, true), nil }
		api.OnRuntimeMetadata = func(at string) (*sidecar.Metadata, error) { return testMetadata(), nil }

		_, err := chain.SubmitAndWait(ctx, api, signedExtrinsic, time.Second, zap.NewNop())
		var dispatchErr *core.DispatchError
		require.True(t, errors.As(err, &dispatchErr))
		require.Equal(t, "idnManager.NotSubscriber: The origin isn't the subscriber", dispatchErr.Error())
		require.False(t, errors.Is(err, core.ErrInclusionTimeout))
	})

	t.Run("block unavailable still resolves", func(t *testing.T) {
		api := chaintest.NewFakeAPI()
		api.Subscriptions["author_submitAndWatchExtrinsic"] = chaintest.Watch(map[string]any{"finalized": "0xblock"})
		inc, err := chain.SubmitAndWait(ctx, api, signedExtrinsic, time.Second, zap.NewNop())
		require.Nil(t, err)
		require.Nil(t, inc.Extrinsic)
		require.Equal(t, chain.TxFinalized, inc.Status)
	})

	t.Run("dropped", func(t *testing.T) {
		api := chaintest.NewFakeAPI()
		api.Subscriptions["author_submitAndWatchExtrinsic"] = chaintest.Watch("ready", "dropped")
		_, err := chain.SubmitAndWait(ctx, api, signedExtrinsic, time.Second, zap.NewNop())
		require.ErrorIs(t, err, core.ErrTxRejected)
	})

	t.Run("pool refuses", func(t *testing.T) {
		api := chaintest.NewFakeAPI()
		api.Subscriptions["author_submitAndWatchExtrinsic"] = func(deliver func(json.RawMessage), params []any) (rpc.CancelFn, error) {
			return nil, &rpc.Error{Code: 1010, Message: "Invalid Transaction", Data: json.RawMessage(`"Inability to pay some fees"`)}
		}
		_, err := chain.SubmitAndWait(ctx, api, signedExtrinsic, time.Second, zap.NewNop())
		require.ErrorIs(t, err, core.ErrTxRejected)
		require.ErrorContains(t, err, "Inability to pay some fees")
	})

	t.Run("timeout", func(t *testing.T) {
		api := chaintest.NewFakeAPI()
		api.Subscriptions["author_submitAndWatchExtrinsic"] = chaintest.Watch("ready")
		_, err := chain.SubmitAndWait(ctx, api, signedExtrinsic, 50*time.Millisecond, zap.NewNop())
		require.ErrorIs(t, err, core.ErrInclusionTimeout)
		var dispatchErr *core.DispatchError
		require.False(t, errors.As(err, &dispatchErr))
	})

	t.Run("connection lost", func(t *testing.T) {
		api := chaintest.NewFakeAPI()
		api.Subscriptions["author_submitAndWatchExtrinsic"] = chaintest.Watch()
		go func() {
			time.Sleep(10 * time.Millisecond)
			api.Drop(errors.New("websocket: close 1006"))
		}()
		_, err := chain.SubmitAndWait(ctx, api, signedExtrinsic, time.Second, zap.NewNop())
		require.ErrorContains(t, err, "1006")
		require.False(t, errors.Is(err, core.ErrInclusionTimeout))
	})
}
