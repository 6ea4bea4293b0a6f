package sse

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ideal-lab5/idn-explorer/pkg/pusher/events"
	"github.com/ideal-lab5/idn-explorer/pkg/pusher/metrics"
	"github.com/ideal-lab5/idn-explorer/pkg/pusher/sources"
)

// session represents an HTTP connection from a client and
// implements a loop to stream events from a channel to http.ResponseWriter.
type session struct {
	eventCh      chan Event
	cancel       sources.CancelFn
	pingInterval time.Duration
	client       string
}

func newSession(client string) *session {
	return &session{
		eventCh:      make(chan Event, 100),
		pingInterval: 5 * time.Second,
		client:       client,
	}
}

// SendEvent queues event. When the client is too slow to drain the queue the event is dropped.
func (s *session) SendEvent(event Event) {
	metrics.SseQueueLength(event.Name, len(s.eventCh))
	select {
	case s.eventCh <- event:
	default:
		metrics.SseEventDropped(event.Name)
	}
}

func (s *session) SetCancelFn(cancel sources.CancelFn) {
	s.cancel = cancel
}

func (s *session) StreamEvents(ctx context.Context, writer http.ResponseWriter) error {
	defer func() {
		if s.cancel != nil {
			s.cancel()
		}
	}()

	flusher := writer.(http.Flusher)
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()
	for {
		var err error
		select {
		case <-ctx.Done():
			return nil
		case msg, open := <-s.eventCh:
			if !open {
				return nil
			}
			_, err = fmt.Fprintf(writer, "event: %v\nid: %v\ndata: %v\n\n", msg.Name, msg.EventID, string(msg.Data))
			metrics.SseEventSent(msg.Name, s.client)
		case <-ticker.C:
			_, err = fmt.Fprintf(writer, "event: heartbeat\n\n")
			metrics.SseEventSent(events.PingEvent, s.client)
		}
		if err != nil {
			// closing a connection
			return err
		}
		flusher.Flush()
	}
}
