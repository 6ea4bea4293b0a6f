package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ideal-lab5/idn-explorer/pkg/pusher/events"
	"github.com/ideal-lab5/idn-explorer/pkg/pusher/metrics"
	"github.com/ideal-lab5/idn-explorer/pkg/pusher/sources"
	"github.com/ideal-lab5/idn-explorer/pkg/pusher/utils"
)

// session is a light-weight implementation of JSON-RPC protocol over an HTTP connection from a client.
type session struct {
	logger               *zap.Logger
	conn                 *websocket.Conn
	headSource           sources.HeadSource
	snapshotSource       sources.SnapshotSource
	eventCh              chan event
	headSubscription     sources.CancelFn
	snapshotSubscription sources.CancelFn
	pingInterval         time.Duration
	// done is closed when Run's loop exits.
	done chan struct{}
}

type event struct {
	Name   events.Name
	Method string
	Params []byte
}

func newSession(logger *zap.Logger, headSource sources.HeadSource, snapshotSource sources.SnapshotSource, conn *websocket.Conn) *session {
	return &session{
		logger:         logger,
		eventCh:        make(chan event, 100),
		conn:           conn,
		headSource:     headSource,
		snapshotSource: snapshotSource,
		pingInterval:   5 * time.Second,
		done:           make(chan struct{}),
	}
}

func (s *session) cancel() {
	if s.headSubscription != nil {
		s.headSubscription()
		s.headSubscription = nil
	}
	if s.snapshotSubscription != nil {
		s.snapshotSubscription()
		s.snapshotSubscription = nil
	}
}

func (s *session) Run(ctx context.Context) chan JsonRPCRequest {
	requestCh := make(chan JsonRPCRequest)
	client := utils.ClientNameFromContext(ctx)
	go func() {
		defer close(s.done)
		defer s.cancel()

		ticker := time.NewTicker(s.pingInterval)
		defer ticker.Stop()
		for {
			var err error
			select {
			case <-ctx.Done():
				return
			case e := <-s.eventCh:
				response := JsonRPCResponse{
					JSONRPC: "2.0",
					Method:  e.Method,
					Params:  e.Params,
				}
				metrics.WebsocketEventSent(e.Name, client)
				err = s.conn.WriteJSON(response)
			case request := <-requestCh:
				err = s.writeResponse(s.handle(ctx, request), request)
			case <-ticker.C:
				metrics.WebsocketEventSent(events.PingEvent, client)
				err = s.conn.WriteMessage(websocket.PingMessage, []byte{})
			}
			if err != nil {
				s.logger.Error("websocket session failed", zap.Error(err))
				return
			}
		}
	}()
	return requestCh
}

func (s *session) handle(ctx context.Context, request JsonRPCRequest) string {
	switch request.Method {
	case "subscribe_heads":
		return s.subscribeToHeads(ctx, request.Params)
	case "unsubscribe_heads":
		return s.unsubscribeFromHeads()
	case "subscribe_snapshots":
		return s.subscribeToSnapshots(ctx)
	case "unsubscribe_snapshots":
		return s.unsubscribeFromSnapshots()
	}
	return fmt.Sprintf("method '%v' is not supported", request.Method)
}

func (s *session) sendEvent(e event) {
	metrics.WebsocketQueueLength(e.Name, len(s.eventCh))
	select {
	case s.eventCh <- e:
	default:
		metrics.WebsocketEventDropped(e.Name)
		s.logger.Warn("event channel is full, dropping event",
			zap.String("event", string(e.Name)))
	}
}

// headParamsToOptions accepts no params or a single "every=<n>" param.
func headParamsToOptions(params []string) (*sources.SubscribeToHeadsOptions, error) {
	if len(params) == 0 {
		return &sources.SubscribeToHeadsOptions{}, nil
	}
	if len(params) > 1 {
		return nil, fmt.Errorf("failed to process params: supported only one parameter")
	}
	parts := strings.Split(params[0], "=")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "every" {
		return nil, fmt.Errorf("failed to process params: invalid format")
	}
	every, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil || every == 0 {
		return nil, fmt.Errorf("failed to process params: invalid 'every' value '%v'", parts[1])
	}
	return &sources.SubscribeToHeadsOptions{Every: every}, nil
}

func (s *session) subscribeToHeads(ctx context.Context, params []string) string {
	if s.headSource == nil {
		return "head source is not configured"
	}
	if s.headSubscription != nil {
		return "you are already subscribed to heads"
	}
	options, err := headParamsToOptions(params)
	if err != nil {
		return err.Error()
	}
	s.headSubscription = s.headSource.SubscribeToHeads(ctx, func(eventData []byte) {
		s.sendEvent(event{Name: events.HeadEvent, Method: "head", Params: eventData})
	}, *options)
	return "success! you have subscribed to heads"
}

func (s *session) unsubscribeFromHeads() string {
	if s.headSubscription == nil {
		return "you are not subscribed to heads"
	}
	s.headSubscription()
	s.headSubscription = nil
	return "success! you have unsubscribed from heads"
}

func (s *session) subscribeToSnapshots(ctx context.Context) string {
	if s.snapshotSource == nil {
		return "snapshot source is not configured"
	}
	if s.snapshotSubscription != nil {
		return "you are already subscribed to snapshots"
	}
	s.snapshotSubscription = s.snapshotSource.SubscribeToSnapshots(ctx, func(eventData []byte) {
		s.sendEvent(event{Name: events.SnapshotEvent, Method: "snapshot", Params: eventData})
	})
	return "success! you have subscribed to snapshots"
}

func (s *session) unsubscribeFromSnapshots() string {
	if s.snapshotSubscription == nil {
		return "you are not subscribed to snapshots"
	}
	s.snapshotSubscription()
	s.snapshotSubscription = nil
	return "success! you have unsubscribed from snapshots"
}

func jsonRPCResponseMessage(message string, id uint64, jsonrpc, method string) (JsonRPCResponse, error) {
	mes, err := json.Marshal(message)
	if err != nil {
		return JsonRPCResponse{}, err
	}
	resp := JsonRPCResponse{
		ID:      id,
		JSONRPC: jsonrpc,
		Method:  method,
		Result:  mes,
	}
	return resp, nil
}

func (s *session) writeResponse(message string, request JsonRPCRequest) error {
	resp, err := jsonRPCResponseMessage(message, request.ID, request.JSONRPC, request.Method)
	if err != nil {
		return err
	}
	return s.conn.WriteJSON(resp)
}
