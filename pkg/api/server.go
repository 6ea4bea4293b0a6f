package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Narasimha1997/ratelimiter"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ideal-lab5/idn-explorer/pkg/pusher/sources"
	"github.com/ideal-lab5/idn-explorer/pkg/pusher/sse"
	"github.com/ideal-lab5/idn-explorer/pkg/pusher/websocket"
)

type Server struct {
	logger     *zap.Logger
	httpServer *http.Server
	limiter    *ratelimiter.DefaultLimiter
}

type ServerOptions struct {
	headSource     sources.HeadSource
	snapshotSource sources.SnapshotSource
	writeRateLimit uint64
}

type ServerOption func(options *ServerOptions)

func WithHeadSource(s sources.HeadSource) ServerOption {
	return func(options *ServerOptions) {
		options.headSource = s
	}
}

func WithSnapshotSource(s sources.SnapshotSource) ServerOption {
	return func(options *ServerOptions) {
		options.snapshotSource = s
	}
}

// WithWriteRateLimit sets how many subscription writes per second the whole server accepts.
func WithWriteRateLimit(perSecond uint64) ServerOption {
	return func(options *ServerOptions) {
		options.writeRateLimit = perSecond
	}
}

func NewServer(log *zap.Logger, handler *Handler, address string, opts ...ServerOption) (*Server, error) {
	options := &ServerOptions{writeRateLimit: 10}
	for _, o := range opts {
		o(options)
	}
	if options.writeRateLimit == 0 {
		return nil, errors.New("write rate limit must be positive")
	}
	limiter := ratelimiter.NewDefaultLimiter(options.writeRateLimit, time.Second)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestIDMiddleware(), loggingMiddleware(log), metricsMiddleware)

	v1 := router.Group("/v1")
	v1.GET("/status", handler.GetStatus)
	v1.GET("/session", handler.GetSessionInfo)
	v1.GET("/dashboard", handler.GetDashboard)
	v1.GET("/openapi.json", handler.GetOpenAPIJSON)
	v1.GET("/openapi.yml", handler.GetOpenAPIYAML)

	v1.GET("/accounts/:address", handler.GetAccount)
	v1.GET("/accounts/:address/balance", handler.GetBalance)
	v1.GET("/accounts/:address/subscriptions", handler.GetAccountSubscriptions)

	v1.GET("/pallets", handler.GetPallets)
	v1.GET("/pallets/:pallet/extrinsics", handler.GetExtrinsics)
	v1.GET("/pallets/:pallet/extrinsics/:extrinsic", handler.GetExtrinsicParameters)

	v1.GET("/subscriptions", handler.GetSubscriptions)
	v1.GET("/subscriptions/:id", handler.GetSubscription)
	writes := v1.Group("/subscriptions", writeLimitMiddleware(limiter))
	writes.POST("", handler.CreateSubscription)
	writes.PATCH("/:id", handler.UpdateSubscription)
	writes.POST("/:id/pause", handler.PauseSubscription)
	writes.POST("/:id/kill", handler.KillSubscription)
	writes.POST("/:id/reactivate", handler.ReactivateSubscription)

	v1.GET("/randomness", handler.GetRandomness)
	v1.GET("/randomness/events", handler.GetDistributionEvents)

	v1.GET("/transactions/executed", handler.GetExecutedTransactions)
	v1.GET("/transactions/scheduled", handler.GetScheduledTransactions)
	v1.GET("/transactions/history", handler.GetHistoricalTransactions)

	v1.GET("/beacon/latest", handler.GetLatestBeacon)
	v1.GET("/beacon/info", handler.GetBeaconInfo)
	v1.GET("/beacon/round", handler.GetRoundAtTime)
	v1.GET("/beacon/rounds/:round/time", handler.GetTimeOfRound)

	sseHandler := sse.NewHandler(options.headSource, options.snapshotSource)
	v1.GET("/sse/heads", stream(sseHandler.Heads))
	v1.GET("/sse/snapshots", stream(sseHandler.Snapshots))
	v1.GET("/ws", stream(websocket.Handler(log, options.headSource, options.snapshotSource)))

	serv := Server{
		logger:  log,
		limiter: limiter,
		httpServer: &http.Server{
			Addr:    address,
			Handler: router,
		},
	}
	return &serv, nil
}

// stream adapts a streaming handler that writes its own response.
func stream(fn func(http.ResponseWriter, *http.Request) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := fn(c.Writer, c.Request); err != nil {
			_ = c.Error(err)
		}
	}
}

func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) Run() {
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		s.logger.Info("idn-explorer quit")
		return
	}
	s.logger.Fatal("ListenAndServe() failed", zap.Error(err))
}

func (s *Server) Shutdown(ctx context.Context) error {
	defer s.limiter.Kill()
	return s.httpServer.Shutdown(ctx)
}
