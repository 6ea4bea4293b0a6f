package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"

	"github.com/ideal-lab5/idn-explorer/pkg/core"
)

var ErrRateLimit = errors.New("rate limit")

type errorJSON struct {
	Error string `json:"error"`
}

func badRequest(format string, args ...any) error {
	return errors.Wrapf(core.ErrInvalidArgument, format, args...)
}

func statusCode(err error) int {
	var dispatchErr *core.DispatchError
	switch {
	case errors.Is(err, core.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrEntityNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, core.ErrUnsupported):
		return http.StatusNotImplemented
	case errors.Is(err, core.ErrInclusionTimeout):
		return http.StatusGatewayTimeout
	case errors.As(err, &dispatchErr), errors.Is(err, core.ErrTxRejected):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrRateLimit):
		return http.StatusTooManyRequests
	}
	return http.StatusInternalServerError
}

// abortWithError records err for the logging middleware and writes the JSON error body.
func abortWithError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(statusCode(err), errorJSON{Error: err.Error()})
}
