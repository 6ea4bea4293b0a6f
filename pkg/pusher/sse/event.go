package sse

import (
	"github.com/ideal-lab5/idn-explorer/pkg/pusher/events"
)

type Event struct {
	Name    events.Name
	EventID int64  `json:"event_id"`
	Data    []byte `json:"data"`
}
