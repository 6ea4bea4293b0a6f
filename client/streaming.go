package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	sse "github.com/r3labs/sse/v2"

	"github.com/ideal-lab5/idn-explorer/pkg/dashboard"
)

// DefaultURL is where a locally started explorer listens.
const DefaultURL = "http://127.0.0.1:8081"

// HeadEventData is a new finalized head seen by the explorer.
type HeadEventData struct {
	Number     uint64              `json:"number"`
	Hash       string              `json:"hash,omitempty"`
	ParentHash string              `json:"parent_hash"`
	State      dashboard.ConnState `json:"state"`
}

// SnapshotEventData is a complete dashboard snapshot.
type SnapshotEventData = dashboard.Snapshot

// HeadHandler is a callback that handles a new head event.
type HeadHandler func(data HeadEventData)

// SnapshotHandler is a callback that handles a new snapshot event.
type SnapshotHandler func(data SnapshotEventData)

type Logger interface {
	Errorf(format string, args ...interface{})
}

type noopLogger struct{}

func (l noopLogger) Errorf(format string, args ...interface{}) {}

// StreamingAPI receives head and dashboard updates pushed by an explorer instance.
type StreamingAPI struct {
	logger     Logger
	endpoint   string
	clientName string
}

type StreamingOptions struct {
	logger     Logger
	endpoint   string
	clientName string
}

type StreamingOption func(*StreamingOptions)

// WithStreamingEndpoint configures a StreamingAPI instance to use the specified endpoint instead of DefaultURL.
func WithStreamingEndpoint(endpoint string) StreamingOption {
	return func(o *StreamingOptions) {
		o.endpoint = endpoint
	}
}

// WithClientName sets the X-Client-Name header, which the explorer uses to label its streaming metrics.
func WithClientName(name string) StreamingOption {
	return func(o *StreamingOptions) {
		o.clientName = name
	}
}

func WithStreamingLogger(logger Logger) StreamingOption {
	return func(o *StreamingOptions) {
		o.logger = logger
	}
}

func NewStreamingAPI(opts ...StreamingOption) *StreamingAPI {
	options := &StreamingOptions{
		endpoint: DefaultURL,
		logger:   &noopLogger{},
	}
	for _, o := range opts {
		o(options)
	}
	return &StreamingAPI{
		logger:     options.logger,
		endpoint:   options.endpoint,
		clientName: options.clientName,
	}
}

// SubscribeToHeads opens a new sse connection and calls handler for every head, or for every n-th one when every > 1.
// This function returns an error when the underlying connection fails or context is canceled.
func (s *StreamingAPI) SubscribeToHeads(ctx context.Context, every uint64, handler HeadHandler) error {
	u := fmt.Sprintf("%s/v1/sse/heads", s.endpoint)
	if every > 1 {
		u += "?" + url.Values{"every": {fmt.Sprint(every)}}.Encode()
	}
	return s.subscribe(ctx, u, "head", func(data []byte) {
		var eventData HeadEventData
		if err := json.Unmarshal(data, &eventData); err != nil {
			s.logger.Errorf("sse connection received invalid head event data: %v", err)
			return
		}
		handler(eventData)
	})
}

// SubscribeToSnapshots opens a new sse connection and calls handler with the current dashboard snapshot
// and then with every update.
func (s *StreamingAPI) SubscribeToSnapshots(ctx context.Context, handler SnapshotHandler) error {
	u := fmt.Sprintf("%s/v1/sse/snapshots", s.endpoint)
	return s.subscribe(ctx, u, "snapshot", func(data []byte) {
		var eventData SnapshotEventData
		if err := json.Unmarshal(data, &eventData); err != nil {
			s.logger.Errorf("sse connection received invalid snapshot event data: %v", err)
			return
		}
		handler(eventData)
	})
}

func (s *StreamingAPI) subscribe(ctx context.Context, url string, event string, handler func(data []byte)) error {
	client := sse.NewClient(url)
	if len(s.clientName) > 0 {
		client.Headers = map[string]string{
			"X-Client-Name": s.clientName,
		}
	}
	return client.SubscribeWithContext(ctx, "", func(msg *sse.Event) {
		if string(msg.Event) == event {
			handler(msg.Data)
		}
	})
}
