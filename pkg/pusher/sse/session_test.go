package sse

import (
	"context"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ideal-lab5/idn-explorer/pkg/pusher/events"
)

func Test_session_Stream(t *testing.T) {
	// to make "go test -race" happy
	cancelIsCalled := atomic.Bool{}
	s := &session{
		eventCh: make(chan Event, 10),
		cancel: func() {
			cancelIsCalled.Store(true)
		},
		pingInterval: time.Second,
	}
	s.SendEvent(Event{Name: events.HeadEvent, EventID: 1, Data: []byte("hello")})
	s.SendEvent(Event{Name: events.SnapshotEvent, EventID: 2, Data: []byte("world")})

	ctx, cancel := context.WithTimeout(context.Background(), 1500*time.Millisecond)
	defer cancel()

	rec := httptest.NewRecorder()
	done := make(chan error)
	go func() {
		done <- s.StreamEvents(ctx, rec)
	}()
	require.Nil(t, <-done)
	require.True(t, cancelIsCalled.Load())
	expectedBody := `event: head
id: 1
data: hello

event: snapshot
id: 2
data: world

event: heartbeat

`
	require.Equal(t, expectedBody, rec.Body.String())
}

func Test_session_SendEventDropsWhenFull(t *testing.T) {
	s := &session{eventCh: make(chan Event, 1)}
	s.SendEvent(Event{Name: events.HeadEvent, EventID: 1})
	s.SendEvent(Event{Name: events.HeadEvent, EventID: 2})
	require.Len(t, s.eventCh, 1)
	require.Equal(t, int64(1), (<-s.eventCh).EventID)
}
