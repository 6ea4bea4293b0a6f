package rpc

import (
	"encoding/json"
	"sync"
)

// subscription queues notifications so a slow consumer never blocks the read loop.
type subscription struct {
	deliver     func(json.RawMessage)
	unsubscribe string

	mu    sync.Mutex
	queue []json.RawMessage

	wake     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func newSubscription(deliver func(json.RawMessage), unsubscribe string) *subscription {
	return &subscription{
		deliver:     deliver,
		unsubscribe: unsubscribe,
		wake:        make(chan struct{}, 1),
		done:        make(chan struct{}),
	}
}

func (s *subscription) push(msg json.RawMessage) {
	s.mu.Lock()
	s.queue = append(s.queue, msg)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscription) run() {
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
		}
		for {
			s.mu.Lock()
			if len(s.queue) == 0 {
				s.mu.Unlock()
				break
			}
			msg := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()

			select {
			case <-s.done:
				return
			default:
			}
			s.deliver(msg)
		}
	}
}

func (s *subscription) stop() {
	s.stopOnce.Do(func() {
		close(s.done)
	})
}
