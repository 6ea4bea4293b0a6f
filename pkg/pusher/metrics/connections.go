package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var openConnections = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "streaming_api_open_connections",
	},
	[]string{
		"type",
		"client",
	},
)

func OpenWebsocketConnection(client string) {
	openConnections.With(map[string]string{"type": "websocket", "client": client}).Inc()
}

func CloseWebsocketConnection(client string) {
	openConnections.With(map[string]string{"type": "websocket", "client": client}).Dec()
}

func OpenSseConnection(client string) {
	openConnections.With(map[string]string{"type": "sse", "client": client}).Inc()
}

func CloseSseConnection(client string) {
	openConnections.With(map[string]string{"type": "sse", "client": client}).Dec()
}
