package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRequest struct {
	ID     uint64            `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

type fakeNode struct {
	t        *testing.T
	handlers map[string]func(send func(any), req fakeRequest)

	mu       sync.Mutex
	methods  []string
	upgrader websocket.Upgrader
	conns    []*websocket.Conn
}

func newFakeNode(t *testing.T, handlers map[string]func(send func(any), req fakeRequest)) (*fakeNode, *httptest.Server) {
	node := &fakeNode{t: t, handlers: handlers}
	server := httptest.NewServer(http.HandlerFunc(node.serve))
	t.Cleanup(server.Close)
	return node, server
}

func (n *fakeNode) serve(w http.ResponseWriter, r *http.Request) {
	conn, err := n.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	n.mu.Lock()
	n.conns = append(n.conns, conn)
	n.mu.Unlock()
	var writeMu sync.Mutex
	send := func(v any) {
		writeMu.Lock()
		defer writeMu.Unlock()
		_ = conn.WriteJSON(v)
	}
	for {
		var req fakeRequest
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		n.mu.Lock()
		n.methods = append(n.methods, req.Method)
		n.mu.Unlock()
		handler, ok := n.handlers[req.Method]
		if !ok {
			send(map[string]any{"jsonrpc": "2.0", "id": req.ID, "error": map[string]any{"code": -32601, "message": "Method not found"}})
			continue
		}
		handler(send, req)
	}
}

func (n *fakeNode) called(method string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, m := range n.methods {
		if m == method {
			return true
		}
	}
	return false
}

func (n *fakeNode) dropConnections() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, c := range n.conns {
		c.Close()
	}
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func result(id uint64, v any) map[string]any {
	return map[string]any{"jsonrpc": "2.0", "id": id, "result": v}
}

func notification(method, sub string, v any) map[string]any {
	return map[string]any{"jsonrpc": "2.0", "method": method, "params": map[string]any{"subscription": sub, "result": v}}
}

func TestClient_Call(t *testing.T) {
	_, server := newFakeNode(t, map[string]func(send func(any), req fakeRequest){
		"chain_getBlockHash": func(send func(any), req fakeRequest) {
			if len(req.Params) == 1 && string(req.Params[0]) == "0" {
				send(result(req.ID, "0xgenesis"))
				return
			}
			send(result(req.ID, nil))
		},
		"system_properties": func(send func(any), req fakeRequest) {
			send(result(req.ID, map[string]any{"tokenDecimals": 12, "tokenSymbol": "IDN"}))
		},
	})
	ctx := context.Background()
	client, err := Dial(ctx, wsURL(server), zap.NewNop())
	require.Nil(t, err)
	defer client.Close()

	var hash string
	require.Nil(t, client.Call(ctx, &hash, "chain_getBlockHash", 0))
	require.Equal(t, "0xgenesis", hash)

	var props struct {
		TokenDecimals int    `json:"tokenDecimals"`
		TokenSymbol   string `json:"tokenSymbol"`
	}
	require.Nil(t, client.Call(ctx, &props, "system_properties"))
	require.Equal(t, 12, props.TokenDecimals)
	require.Equal(t, "IDN", props.TokenSymbol)

	err = client.Call(ctx, nil, "idn_getSubscription", "0x01")
	require.NotNil(t, err)
	require.True(t, IsMethodNotFound(err))
}

func TestClient_ConcurrentCalls(t *testing.T) {
	_, server := newFakeNode(t, map[string]func(send func(any), req fakeRequest){
		"echo": func(send func(any), req fakeRequest) {
			// answer out of order
			go func() {
				time.Sleep(time.Duration(req.ID%3) * 5 * time.Millisecond)
				var v int
				_ = json.Unmarshal(req.Params[0], &v)
				send(result(req.ID, v))
			}()
		},
	})
	ctx := context.Background()
	client, err := Dial(ctx, wsURL(server), zap.NewNop())
	require.Nil(t, err)
	defer client.Close()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var got int
			require.Nil(t, client.Call(ctx, &got, "echo", i))
			require.Equal(t, i, got)
		}(i)
	}
	wg.Wait()
}

func TestClient_SubscribeDeliversImmediateNotifications(t *testing.T) {
	node, server := newFakeNode(t, map[string]func(send func(any), req fakeRequest){
		"chain_subscribeNewHeads": func(send func(any), req fakeRequest) {
			send(result(req.ID, "sub-1"))
			for i := 1; i <= 3; i++ {
				send(notification("chain_newHead", "sub-1", map[string]any{"number": i}))
			}
		},
		"chain_unsubscribeNewHeads": func(send func(any), req fakeRequest) {
			send(result(req.ID, true))
		},
	})
	ctx := context.Background()
	client, err := Dial(ctx, wsURL(server), zap.NewNop())
	require.Nil(t, err)
	defer client.Close()

	got := make(chan int, 10)
	cancel, err := client.Subscribe(ctx, "chain_subscribeNewHeads", "chain_unsubscribeNewHeads", func(raw json.RawMessage) {
		var head struct {
			Number int `json:"number"`
		}
		require.Nil(t, json.Unmarshal(raw, &head))
		got <- head.Number
	})
	require.Nil(t, err)

	for want := 1; want <= 3; want++ {
		select {
		case n := <-got:
			require.Equal(t, want, n)
		case <-time.After(time.Second):
			t.Fatalf("notification %d not delivered", want)
		}
	}

	cancel()
	require.Eventually(t, func() bool { return node.called("chain_unsubscribeNewHeads") }, time.Second, 10*time.Millisecond)
}

func TestClient_SlowConsumerDoesNotBlockCalls(t *testing.T) {
	_, server := newFakeNode(t, map[string]func(send func(any), req fakeRequest){
		"author_submitAndWatchExtrinsic": func(send func(any), req fakeRequest) {
			send(result(req.ID, "watch"))
			send(notification("author_extrinsicUpdate", "watch", "ready"))
		},
		"chain_getHeader": func(send func(any), req fakeRequest) {
			send(result(req.ID, map[string]any{"number": "0x10"}))
		},
	})
	ctx := context.Background()
	client, err := Dial(ctx, wsURL(server), zap.NewNop())
	require.Nil(t, err)
	defer client.Close()

	done := make(chan struct{})
	_, err = client.Subscribe(ctx, "author_submitAndWatchExtrinsic", "", func(json.RawMessage) {
		// a consumer issuing calls from its callback must not deadlock the read loop
		var header map[string]any
		require.Nil(t, client.Call(ctx, &header, "chain_getHeader"))
		close(done)
	}, "0x00")
	require.Nil(t, err)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("callback blocked")
	}
}

func TestClient_Disconnect(t *testing.T) {
	node, server := newFakeNode(t, map[string]func(send func(any), req fakeRequest){
		"never": func(send func(any), req fakeRequest) {},
	})
	ctx := context.Background()
	client, err := Dial(ctx, wsURL(server), zap.NewNop())
	require.Nil(t, err)

	errCh := make(chan error, 1)
	go func() {
		errCh <- client.Call(ctx, nil, "never")
	}()
	require.Eventually(t, func() bool { return node.called("never") }, time.Second, 10*time.Millisecond)
	node.dropConnections()

	select {
	case <-client.Done():
	case <-time.After(time.Second):
		t.Fatal("Done not closed")
	}
	require.NotNil(t, client.Err())
	require.NotNil(t, <-errCh)
	require.NotNil(t, client.Call(ctx, nil, "never"))
}

func TestClient_CallContextCancel(t *testing.T) {
	_, server := newFakeNode(t, map[string]func(send func(any), req fakeRequest){
		"never": func(send func(any), req fakeRequest) {},
	})
	client, err := Dial(context.Background(), wsURL(server), zap.NewNop())
	require.Nil(t, err)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err = client.Call(ctx, nil, "never")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	require.Nil(t, client.Close())
	<-client.Done()
	require.ErrorIs(t, client.Err(), ErrClosed)
}
