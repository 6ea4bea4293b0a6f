package sse

import (
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/ideal-lab5/idn-explorer/pkg/pusher/errors"
	"github.com/ideal-lab5/idn-explorer/pkg/pusher/events"
	"github.com/ideal-lab5/idn-explorer/pkg/pusher/sources"
)

// Handler handles http methods for sse.
type Handler struct {
	headSource     sources.HeadSource
	snapshotSource sources.SnapshotSource
	currentEventID int64
}

type handlerFunc func(session *session, request *http.Request) error

func NewHandler(headSource sources.HeadSource, snapshotSource sources.SnapshotSource) *Handler {
	h := Handler{
		headSource:     headSource,
		snapshotSource: snapshotSource,
		currentEventID: time.Now().UnixNano(),
	}
	return &h
}

func parseHeadOptions(request *http.Request) (sources.SubscribeToHeadsOptions, error) {
	opts := sources.SubscribeToHeadsOptions{}
	every := request.URL.Query().Get("every")
	if len(every) == 0 {
		return opts, nil
	}
	value, err := strconv.ParseUint(every, 10, 64)
	if err != nil || value == 0 {
		return opts, errors.BadRequest("failed to parse 'every' parameter in query")
	}
	opts.Every = value
	return opts, nil
}

func (h *Handler) SubscribeToHeads(session *session, request *http.Request) error {
	if h.headSource == nil {
		return errors.BadRequest("head source is not configured")
	}
	opts, err := parseHeadOptions(request)
	if err != nil {
		return err
	}
	cancelFn := h.headSource.SubscribeToHeads(request.Context(), func(data []byte) {
		session.SendEvent(Event{
			Name:    events.HeadEvent,
			EventID: h.nextID(),
			Data:    data,
		})
	}, opts)
	session.SetCancelFn(cancelFn)
	return nil
}

func (h *Handler) SubscribeToSnapshots(session *session, request *http.Request) error {
	if h.snapshotSource == nil {
		return errors.BadRequest("snapshot source is not configured")
	}
	cancelFn := h.snapshotSource.SubscribeToSnapshots(request.Context(), func(data []byte) {
		session.SendEvent(Event{
			Name:    events.SnapshotEvent,
			EventID: h.nextID(),
			Data:    data,
		})
	})
	session.SetCancelFn(cancelFn)
	return nil
}

// Heads serves the head stream.
func (h *Handler) Heads(writer http.ResponseWriter, request *http.Request) error {
	return Stream(h.SubscribeToHeads)(writer, request)
}

// Snapshots serves the dashboard snapshot stream.
func (h *Handler) Snapshots(writer http.ResponseWriter, request *http.Request) error {
	return Stream(h.SubscribeToSnapshots)(writer, request)
}

func (h *Handler) nextID() int64 {
	return atomic.AddInt64(&h.currentEventID, 1)
}
