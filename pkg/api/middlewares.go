package api

import (
	"net/http"
	"strings"

	"github.com/Narasimha1997/ratelimiter"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/ideal-lab5/idn-explorer/pkg/pusher/utils"
)

const (
	requestIDHeader  = "X-Request-ID"
	clientNameHeader = "X-Client-Name"
	requestIDKey     = "request_id"
	maxClientName    = 32
)

// requestIDMiddleware keeps a well-formed incoming request id or generates one,
// and stores the caller's self-reported name for streaming metrics.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)

		name := strings.TrimSpace(c.GetHeader(clientNameHeader))
		if len(name) > maxClientName {
			name = name[:maxClientName]
		}
		c.Request = c.Request.WithContext(utils.WithClientName(c.Request.Context(), name))
		c.Next()
	}
}

func operation(c *gin.Context) string {
	if path := c.FullPath(); path != "" {
		return c.Request.Method + " " + path
	}
	return "unknown"
}

func loggingMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := logger.With(
			zap.String("operation", operation(c)),
			zap.String("path", c.Request.URL.Path),
			zap.String("request_id", c.GetString(requestIDKey)),
		)
		logger.Debug("Handling request")
		c.Next()
		status := c.Writer.Status()
		err := c.Errors.Last()
		switch {
		case err != nil && status >= http.StatusInternalServerError:
			logger.Error("Fail", zap.Int("status", status), zap.Error(err.Err))
		case err != nil:
			logger.Info("Fail", zap.Int("status", status), zap.Error(err.Err))
		default:
			logger.Debug("Success", zap.Int("status", status))
		}
	}
}

var httpResponseTimeMetric = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Subsystem: "http",
	Name:      "request_duration_seconds",
	Help:      "Time spent serving HTTP requests, by route.",
	Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 10, 30},
}, []string{"operation"})

func metricsMiddleware(c *gin.Context) {
	t := prometheus.NewTimer(httpResponseTimeMetric.WithLabelValues(operation(c)))
	defer t.ObserveDuration()
	c.Next()
}

// writeLimitMiddleware rejects write requests above the process-wide rate.
func writeLimitMiddleware(limiter *ratelimiter.DefaultLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, err := limiter.ShouldAllow(1)
		if err != nil || !allowed {
			abortWithError(c, ErrRateLimit)
			return
		}
		c.Next()
	}
}
