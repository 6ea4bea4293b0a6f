package sse

import (
	"net/http"

	"github.com/ideal-lab5/idn-explorer/pkg/pusher/errors"
	"github.com/ideal-lab5/idn-explorer/pkg/pusher/metrics"
	"github.com/ideal-lab5/idn-explorer/pkg/pusher/utils"
)

func writeError(writer http.ResponseWriter, err error) {
	if httpErr, ok := errors.AsHTTPError(err); ok {
		writer.WriteHeader(httpErr.Code)
		writer.Write([]byte(httpErr.Message))
		return
	}
	writer.WriteHeader(http.StatusInternalServerError)
	writer.Write([]byte(err.Error()))
}

// Stream turns handler into an HTTP handler serving a text/event-stream response.
func Stream(handler handlerFunc) func(http.ResponseWriter, *http.Request) error {
	return func(writer http.ResponseWriter, request *http.Request) error {
		flusher, ok := writer.(http.Flusher)
		if !ok {
			err := errors.InternalServerError("streaming unsupported")
			writeError(writer, err)
			return err
		}

		client := utils.ClientNameFromContext(request.Context())
		session := newSession(client)
		if err := handler(session, request); err != nil {
			writeError(writer, err)
			return err
		}

		writer.Header().Set("Content-Type", "text/event-stream")
		writer.Header().Set("Cache-Control", "no-cache")
		writer.Header().Set("Connection", "keep-alive")
		writer.WriteHeader(http.StatusOK)
		flusher.Flush()

		metrics.OpenSseConnection(client)
		defer metrics.CloseSseConnection(client)

		return session.StreamEvents(request.Context(), writer)
	}
}
