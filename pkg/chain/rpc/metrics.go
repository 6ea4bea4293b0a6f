package rpc

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var rpcCallDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "node_rpc_call_duration_seconds",
		Help:    "Node JSON-RPC call latency by method",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
	},
	[]string{"method"},
)
