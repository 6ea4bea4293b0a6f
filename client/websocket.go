package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
)

// JsonRPCRequest represents a request in the JSON-RPC protocol supported by "/v1/ws" endpoint.
type JsonRPCRequest struct {
	ID      uint64   `json:"id,omitempty"`
	JSONRPC string   `json:"jsonrpc,omitempty"`
	Method  string   `json:"method,omitempty"`
	Params  []string `json:"params,omitempty"`
}

// JsonRPCResponse represents a response in the JSON-RPC protocol supported by "/v1/ws" endpoint.
type JsonRPCResponse struct {
	ID      uint64          `json:"id,omitempty"`
	JSONRPC string          `json:"jsonrpc,omitempty"`
	Method  string          `json:"method,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Websocket configures an open websocket connection.
type Websocket interface {
	// SubscribeToHeads subscribes to new heads, every n-th one when every > 1.
	SubscribeToHeads(every uint64) error
	UnsubscribeFromHeads() error

	// SubscribeToSnapshots subscribes to dashboard snapshots. The current one is pushed right away.
	SubscribeToSnapshots() error
	UnsubscribeFromSnapshots() error

	SetHeadHandler(handler HeadHandler)
	SetSnapshotHandler(handler SnapshotHandler)
	// SetResultHandler defines a callback for the server's answers to (un)subscribe requests.
	SetResultHandler(handler func(method, result string))
}

// WebsocketConfigurator configures an open websocket connection.
// If it returns an error, the connection is closed and WebsocketHandleRequests returns the error.
type WebsocketConfigurator func(ws Websocket) error

// WebsocketHandleRequests opens a new websocket connection and runs the JSON-RPC protocol.
// Unlike SubscribeTo* methods, one connection can subscribe and unsubscribe to/from both streams
// at any time and in any order.
//
// The configurator runs in its own goroutine once the connection is established.
// It can return nil right away, or loop and reconfigure the connection as needed.
func (s *StreamingAPI) WebsocketHandleRequests(ctx context.Context, fn WebsocketConfigurator) error {
	ws, err := websocketConnect(ctx, s.endpoint, s.clientName)
	if err != nil {
		return err
	}
	return ws.runJsonRPC(ctx, fn)
}

type websocketConnection struct {
	// mu protects the handler fields below.
	mu              sync.Mutex
	conn            *websocket.Conn
	nextID          uint64
	headHandler     HeadHandler
	snapshotHandler SnapshotHandler
	resultHandler   func(method, result string)
}

func (w *websocketConnection) send(method string, params ...string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.nextID++
	return w.conn.WriteJSON(JsonRPCRequest{
		ID:      w.nextID,
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
	})
}

func (w *websocketConnection) SubscribeToHeads(every uint64) error {
	if every > 1 {
		return w.send("subscribe_heads", fmt.Sprintf("every=%d", every))
	}
	return w.send("subscribe_heads")
}

func (w *websocketConnection) UnsubscribeFromHeads() error {
	return w.send("unsubscribe_heads")
}

func (w *websocketConnection) SubscribeToSnapshots() error {
	return w.send("subscribe_snapshots")
}

func (w *websocketConnection) UnsubscribeFromSnapshots() error {
	return w.send("unsubscribe_snapshots")
}

func (w *websocketConnection) SetHeadHandler(handler HeadHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.headHandler = handler
}

func (w *websocketConnection) SetSnapshotHandler(handler SnapshotHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.snapshotHandler = handler
}

func (w *websocketConnection) SetResultHandler(handler func(method, result string)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.resultHandler = handler
}

func websocketConnect(ctx context.Context, endpoint string, clientName string) (*websocketConnection, error) {
	header := http.Header{}
	if len(clientName) > 0 {
		header.Set("X-Client-Name", clientName)
	}
	endpointUrl, err := url.Parse(endpoint)
	if err != nil {
		return nil, err
	}
	switch endpointUrl.Scheme {
	case "http":
		endpointUrl.Scheme = "ws"
	case "https":
		endpointUrl.Scheme = "wss"
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, fmt.Sprintf("%s/v1/ws", endpointUrl.String()), header)
	if err != nil {
		return nil, err
	}
	return &websocketConnection{
		conn:            conn,
		headHandler:     func(data HeadEventData) {},
		snapshotHandler: func(data SnapshotEventData) {},
		resultHandler:   func(method, result string) {},
	}, nil
}

func (w *websocketConnection) runJsonRPC(ctx context.Context, fn WebsocketConfigurator) error {
	defer w.conn.Close()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return fn(w)
	})
	g.Go(func() error {
		// unblocks ReadMessage below
		<-ctx.Done()
		return w.conn.Close()
	})
	g.Go(func() error {
		for {
			_, msg, err := w.conn.ReadMessage()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err != nil {
				return err
			}
			var response JsonRPCResponse
			if err := json.Unmarshal(msg, &response); err != nil {
				return err
			}
			if len(response.Result) > 0 {
				var result string
				if err := json.Unmarshal(response.Result, &result); err != nil {
					return err
				}
				w.processHandler(func() {
					w.resultHandler(response.Method, result)
				})
				continue
			}
			switch response.Method {
			case "head":
				var headEvent HeadEventData
				if err := json.Unmarshal(response.Params, &headEvent); err != nil {
					return err
				}
				w.processHandler(func() {
					w.headHandler(headEvent)
				})
			case "snapshot":
				var snapshotEvent SnapshotEventData
				if err := json.Unmarshal(response.Params, &snapshotEvent); err != nil {
					return err
				}
				w.processHandler(func() {
					w.snapshotHandler(snapshotEvent)
				})
			}
		}
	})
	return g.Wait()
}

func (w *websocketConnection) processHandler(fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fn()
}
