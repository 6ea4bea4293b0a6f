package sidecar

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ideal-lab5/idn-explorer/pkg/core"
)

const metadataJSON = `{
  "magicNumber": "1635018093",
  "metadata": {
    "v14": {
      "lookup": {
        "types": [
          {"id": "0", "type": {"path": [], "params": [], "def": {"primitive": "u32"}, "docs": []}},
          {"id": "10", "type": {"path": ["pallet_idn_manager", "pallet", "Call"], "def": {"variant": {"variants": [
            {"name": "create_subscription", "index": "0", "docs": ["Creates a subscription."], "fields": [
              {"name": "credits", "type": "6", "typeName": "T::Credits", "docs": []},
              {"name": "target", "type": "7", "typeName": "Location", "docs": []}
            ]},
            {"name": "pause_subscription", "index": "1", "docs": [], "fields": [
              {"name": "sub_id", "type": "8", "typeName": "T::SubscriptionId", "docs": []}
            ]}
          ]}}}},
          {"id": "11", "type": {"def": {"variant": {"variants": [
            {"name": "SubscriptionDoesNotExist", "index": "0", "docs": ["The subscription does not exist"], "fields": []},
            {"name": "NotSubscriber", "index": "3", "docs": ["The origin isn't the subscriber"], "fields": []}
          ]}}}},
          {"id": "12", "type": {"def": {"variant": {"variants": [
            {"name": "remark", "index": "0", "docs": [], "fields": [{"name": "remark", "type": "14", "typeName": "Vec<u8>", "docs": []}]}
          ]}}}}
        ]
      },
      "pallets": [
        {"name": "System", "index": "0", "calls": {"type": "12"}, "events": null, "errors": null},
        {"name": "IdnManager", "index": "42", "calls": {"type": "10"}, "events": null, "errors": {"type": "11"}}
      ]
    }
  }
}`

const blockJSON = `{
  "number": "120",
  "hash": "0xblock",
  "parentHash": "0xparent",
  "stateRoot": "0xstate",
  "extrinsicsRoot": "0xroot",
  "authorId": "5author",
  "onInitialize": {"events": [{"method": {"pallet": "randBeacon", "method": "SignatureVerificationSuccess"}, "data": []}]},
  "extrinsics": [
    {
      "method": {"pallet": "timestamp", "method": "set"},
      "signature": null,
      "nonce": null,
      "args": {"now": "1700000000000"},
      "tip": null,
      "hash": "0xaaa",
      "events": [{"method": {"pallet": "system", "method": "ExtrinsicSuccess"}, "data": [{}]}],
      "success": true,
      "paysFee": false
    },
    {
      "method": {"pallet": "idnManager", "method": "pauseSubscription"},
      "signature": {"signature": "0xsig", "signer": {"id": "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY"}},
      "nonce": "3",
      "args": {"sub_id": "0x01"},
      "tip": "0",
      "hash": "0xBBB",
      "events": [
        {"method": {"pallet": "system", "method": "ExtrinsicFailed"}, "data": [{"module": {"index": "42", "error": "0x03000000"}}, {}]}
      ],
      "success": false,
      "paysFee": true
    }
  ],
  "onFinalize": {"events": []},
  "finalized": true
}`

func newTestServer(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/runtime/metadata", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(metadataJSON))
	})
	mux.HandleFunc("/blocks/head", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("finalized") != "true" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Write([]byte(blockJSON))
	})
	mux.HandleFunc("/blocks/120", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(blockJSON))
	})
	mux.HandleFunc("/blocks/999999", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":400,"message":"Specified block number is larger than chain head"}`))
	})
	mux.HandleFunc("/accounts/5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY/balance-info", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"at":{"hash":"0xh","height":"120"},"nonce":"3","tokenSymbol":"IDN","free":"1500000000000","reserved":"0","frozen":"0"}`))
	})
	mux.HandleFunc("/pallets/idnManager/storage/subscriptions", func(w http.ResponseWriter, r *http.Request) {
		keys := r.URL.Query()["keys[]"]
		resp := map[string]any{"pallet": "idnManager", "palletIndex": "42", "storageItem": "subscriptions", "keys": keys, "value": nil}
		if len(keys) == 1 && keys[0] == "0x01" {
			resp["value"] = map[string]any{"state": "Active", "creditsLeft": "10"}
		}
		if r.URL.Query().Get("at") != "" {
			resp["at"] = map[string]any{"hash": r.URL.Query().Get("at"), "height": "7"}
		}
		json.NewEncoder(w).Encode(resp)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestClient_Block(t *testing.T) {
	server := newTestServer(t)
	client := NewClient(server.URL + "/")
	ctx := context.Background()

	block, err := client.BlockByNumber(ctx, 120)
	require.Nil(t, err)
	require.Equal(t, Uint(120), block.Number)
	require.Len(t, block.Extrinsics, 2)
	require.False(t, block.Extrinsics[0].Signed())
	require.True(t, block.Extrinsics[1].Signed())
	require.Equal(t, Uint(3), *block.Extrinsics[1].Nonce)
	require.Equal(t, "idnManager.pauseSubscription", block.Extrinsics[1].Method.String())

	require.Nil(t, block.Extrinsics[0].Failure())
	require.JSONEq(t, `{"module": {"index": "42", "error": "0x03000000"}}`, string(block.Extrinsics[1].Failure()))

	found := block.ExtrinsicByHash("0xbbb")
	require.NotNil(t, found)
	require.Equal(t, "0xBBB", found.Hash)
	require.Nil(t, block.ExtrinsicByHash("0xccc"))

	events := block.AllEvents()
	require.Len(t, events, 3)
	require.Equal(t, 0, events[0].Index)
	require.Equal(t, "randBeacon", events[0].Method.Pallet)
	require.Equal(t, 2, events[2].Index)

	head, err := client.FinalizedHead(ctx)
	require.Nil(t, err)
	require.Equal(t, "0xblock", head.Hash)

	_, err = client.BlockByNumber(ctx, 999999)
	require.ErrorContains(t, err, "larger than chain head")

	_, err = client.Block(ctx, "0xmissing")
	require.ErrorIs(t, err, core.ErrEntityNotFound)
}

func TestClient_BalanceInfo(t *testing.T) {
	server := newTestServer(t)
	client := NewClient(server.URL)

	info, err := client.BalanceInfo(context.Background(), "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY")
	require.Nil(t, err)
	require.Equal(t, "1500000000000", info.Free)
	require.Equal(t, "IDN", info.TokenSymbol)
	require.Equal(t, Uint(120), info.At.Height)
}

func TestClient_StorageItem(t *testing.T) {
	server := newTestServer(t)
	client := NewClient(server.URL)
	ctx := context.Background()

	item, err := client.StorageItem(ctx, "idnManager", "subscriptions", []string{"0x01"}, "0xat")
	require.Nil(t, err)
	require.False(t, item.Empty())
	require.Equal(t, Uint(42), item.PalletIndex)
	require.Equal(t, "0xat", item.At.Hash)
	require.JSONEq(t, `{"state": "Active", "creditsLeft": "10"}`, string(item.Value))

	item, err = client.StorageItem(ctx, "idnManager", "subscriptions", []string{"0x02"}, "")
	require.Nil(t, err)
	require.True(t, item.Empty())
}

func TestClient_RuntimeMetadata(t *testing.T) {
	server := newTestServer(t)
	client := NewClient(server.URL)

	md, err := client.RuntimeMetadata(context.Background(), "")
	require.Nil(t, err)
	require.Equal(t, "v14", md.Version)
	require.Len(t, md.Pallets, 2)

	p, ok := md.Pallet("idnManager")
	require.True(t, ok)
	require.Equal(t, uint8(42), p.Index)
	require.Len(t, p.Calls, 2)

	call, ok := p.Call("createSubscription")
	require.True(t, ok)
	require.Equal(t, "create_subscription", call.Name)
	require.Equal(t, []Field{{Name: "credits", TypeName: "T::Credits"}, {Name: "target", TypeName: "Location"}}, call.Fields)

	name, ok := md.CallName(42, 1)
	require.True(t, ok)
	require.Equal(t, "idnManager.pause_subscription", name)
	_, ok = md.CallName(42, 9)
	require.False(t, ok)

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "module error", input: `{"module": {"index": "42", "error": "0x03000000"}}`, want: "idnManager.NotSubscriber: The origin isn't the subscriber"},
		{name: "numeric module error", input: `{"Module": {"index": 42, "error": [0, 0, 0, 0]}}`, want: "idnManager.SubscriptionDoesNotExist: The subscription does not exist"},
		{name: "unknown error index", input: `{"module": {"index": 42, "error": "0x09000000"}}`, want: "idnManager.Unknown"},
		{name: "plain variant", input: `"BadOrigin"`, want: "system.BadOrigin"},
		{name: "nested variant", input: `{"token": "FundsUnavailable"}`, want: "token.FundsUnavailable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, md.ModuleError(json.RawMessage(tt.input)).Error())
		})
	}
}
