package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/errors"
	"github.com/gorilla/websocket"
	"github.com/puzpuzpuz/xsync/v2"
	"go.uber.org/zap"
)

const (
	readLimit    = 32 << 20
	writeTimeout = 10 * time.Second
)

var ErrClosed = errors.New("rpc connection closed")

// CancelFn stops a subscription.
type CancelFn func()

// Request represents a JSON-RPC 2.0 request sent to the node.
type Request struct {
	ID      uint64 `json:"id"`
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

// message is anything the node sends: a response to a request or a subscription notification.
type message struct {
	ID     json.RawMessage `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *Error          `json:"error,omitempty"`
	Params *struct {
		Subscription json.RawMessage `json:"subscription"`
		Result       json.RawMessage `json:"result"`
	} `json:"params,omitempty"`
}

type response struct {
	result json.RawMessage
	err    error
}

type pendingCall struct {
	resp chan response
	sub  *subscription

	// mu protects abandoned and subID.
	mu        sync.Mutex
	abandoned bool
	subID     string
}

// Client is a JSON-RPC 2.0 client over a single websocket connection.
// It multiplexes concurrent calls and push subscriptions.
type Client struct {
	endpoint string
	conn     *websocket.Conn
	logger   *zap.Logger
	nextID   atomic.Uint64

	writeMu sync.Mutex
	pending *xsync.MapOf[string, *pendingCall]
	subs    *xsync.MapOf[string, *subscription]

	closeOnce sync.Once
	done      chan struct{}
	errMu     sync.Mutex
	err       error
}

// Dial connects to a node websocket endpoint. http(s) endpoints are converted to ws(s).
func Dial(ctx context.Context, endpoint string, logger *zap.Logger) (*Client, error) {
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
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpointUrl.String(), nil)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", endpointUrl.String())
	}
	conn.SetReadLimit(readLimit)
	c := &Client{
		endpoint: endpointUrl.String(),
		conn:     conn,
		logger:   logger,
		pending:  xsync.NewMapOf[*pendingCall](),
		subs:     xsync.NewMapOf[*subscription](),
		done:     make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) Endpoint() string {
	return c.endpoint
}

// Done is closed when the connection is lost or closed.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err returns the reason the connection stopped, nil while it is alive.
func (c *Client) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

func (c *Client) Close() error {
	c.shutdown(ErrClosed)
	return nil
}

// Call invokes method and decodes the result into result, which may be nil.
func (c *Client) Call(ctx context.Context, result any, method string, params ...any) error {
	raw, err := c.roundTrip(ctx, method, params, nil)
	if err != nil {
		return err
	}
	if result == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, result); err != nil {
		return errors.Wrapf(err, "decode %s result", method)
	}
	return nil
}

// Subscribe starts a push subscription. deliver receives notifications in order on a dedicated goroutine,
// starting with those the node sends immediately after confirming the subscription.
// The returned CancelFn sends unsubscribe to the node and stops delivery.
func (c *Client) Subscribe(ctx context.Context, method, unsubscribe string, deliver func(json.RawMessage), params ...any) (CancelFn, error) {
	sub := newSubscription(deliver, unsubscribe)
	raw, err := c.roundTrip(ctx, method, params, sub)
	if err != nil {
		return nil, err
	}
	id := subscriptionID(raw)
	return func() {
		c.dropSubscription(id)
	}, nil
}

func (c *Client) roundTrip(ctx context.Context, method string, params []any, sub *subscription) (json.RawMessage, error) {
	select {
	case <-c.done:
		return nil, c.Err()
	default:
	}
	start := time.Now()
	defer func() {
		rpcCallDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	}()

	id := c.nextID.Add(1)
	key := strconv.FormatUint(id, 10)
	call := &pendingCall{resp: make(chan response, 1), sub: sub}
	c.pending.Store(key, call)
	defer c.pending.Delete(key)

	if params == nil {
		params = []any{}
	}
	if err := c.write(Request{ID: id, JSONRPC: "2.0", Method: method, Params: params}); err != nil {
		return nil, errors.Wrapf(err, "send %s", method)
	}
	select {
	case r := <-call.resp:
		if r.err != nil {
			return nil, r.err
		}
		return r.result, nil
	case <-ctx.Done():
		call.mu.Lock()
		call.abandoned = true
		subID := call.subID
		call.mu.Unlock()
		if subID != "" {
			c.logger.Debug("subscription confirmed after caller gave up", zap.String("method", method))
			c.dropSubscription(subID)
		}
		return nil, ctx.Err()
	case <-c.done:
		return nil, c.Err()
	}
}

func (c *Client) write(req Request) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return c.conn.WriteJSON(req)
}

func (c *Client) readLoop() {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.shutdown(errors.Wrap(err, "read"))
			return
		}
		var msg message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Warn("skip malformed rpc message", zap.Error(err))
			continue
		}
		if msg.Params != nil && msg.Method != "" {
			c.notify(msg)
			continue
		}
		c.respond(msg)
	}
}

func (c *Client) respond(msg message) {
	key := strings.Trim(string(msg.ID), `"`)
	call, ok := c.pending.LoadAndDelete(key)
	if !ok {
		return
	}
	r := response{result: msg.Result}
	if msg.Error != nil {
		r.err = msg.Error
	}
	call.mu.Lock()
	if call.sub != nil && r.err == nil && !call.abandoned {
		// registered before the next frame is read so no notification slips past
		id := subscriptionID(msg.Result)
		call.subID = id
		c.subs.Store(id, call.sub)
		go call.sub.run()
	}
	call.mu.Unlock()
	call.resp <- r
}

func (c *Client) notify(msg message) {
	id := subscriptionID(msg.Params.Subscription)
	sub, ok := c.subs.Load(id)
	if !ok {
		c.logger.Debug("notification for unknown subscription", zap.String("method", msg.Method), zap.String("subscription", id))
		return
	}
	sub.push(msg.Params.Result)
}

func (c *Client) dropSubscription(id string) {
	sub, ok := c.subs.LoadAndDelete(id)
	if !ok {
		return
	}
	sub.stop()
	if sub.unsubscribe == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		if err := c.Call(ctx, nil, sub.unsubscribe, id); err != nil && !errors.Is(err, ErrClosed) {
			c.logger.Debug("unsubscribe failed", zap.String("method", sub.unsubscribe), zap.Error(err))
		}
	}()
}

func (c *Client) shutdown(reason error) {
	c.closeOnce.Do(func() {
		c.errMu.Lock()
		c.err = reason
		c.errMu.Unlock()
		c.conn.Close()
		c.subs.Range(func(id string, sub *subscription) bool {
			sub.stop()
			c.subs.Delete(id)
			return true
		})
		close(c.done)
	})
}

func subscriptionID(raw json.RawMessage) string {
	return strings.Trim(strings.TrimSpace(string(raw)), `"`)
}

func (c *Client) String() string {
	return fmt.Sprintf("rpc(%s)", c.endpoint)
}
