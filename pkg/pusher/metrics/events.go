package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ideal-lab5/idn-explorer/pkg/pusher/events"
)

var eventsQuantity = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "streaming_api_events",
	},
	[]string{
		"type",
		"event",
		"client",
	},
)

var droppedEvents = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "streaming_api_dropped_events",
		Help: "Events not delivered because a connection's queue was full.",
	},
	[]string{
		"type",
		"event",
	},
)

func SseEventSent(event events.Name, client string) {
	eventsQuantity.With(map[string]string{"type": "sse", "event": event.String(), "client": client}).Inc()
}

func WebsocketEventSent(event events.Name, client string) {
	eventsQuantity.With(map[string]string{"type": "websocket", "event": event.String(), "client": client}).Inc()
}

func SseEventDropped(event events.Name) {
	droppedEvents.With(map[string]string{"type": "sse", "event": event.String()}).Inc()
}

func WebsocketEventDropped(event events.Name) {
	droppedEvents.With(map[string]string{"type": "websocket", "event": event.String()}).Inc()
}
