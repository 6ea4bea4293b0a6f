package sources

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/go-faster/jx"
	"go.uber.org/zap"

	"github.com/ideal-lab5/idn-explorer/pkg/dashboard"
)

type subscriberID int64

// HeadEvent is what head subscribers receive.
type HeadEvent struct {
	Number     uint64
	Hash       string
	ParentHash string
	State      dashboard.ConnState
}

// Encode writes the event as a JSON object.
func (e HeadEvent) Encode(enc *jx.Encoder) {
	enc.Obj(func(enc *jx.Encoder) {
		enc.Field("number", func(enc *jx.Encoder) {
			enc.UInt64(e.Number)
		})
		if e.Hash != "" {
			enc.Field("hash", func(enc *jx.Encoder) {
				enc.Str(e.Hash)
			})
		}
		enc.Field("parent_hash", func(enc *jx.Encoder) {
			enc.Str(e.ParentHash)
		})
		enc.Field("state", func(enc *jx.Encoder) {
			enc.Str(string(e.State))
		})
	})
}

// HeadDispatcher tracks all subscribers and works as a fan-out queue:
// on receiving a new head, HeadDispatcher sends a notification about it to all subscribers.
type HeadDispatcher struct {
	logger *zap.Logger

	// mu protects "subscribes" and "currentID" fields.
	mu         sync.RWMutex
	currentID  subscriberID
	subscribes map[subscriberID]headDeliveryFn
}

type headDeliveryFn func(eventData []byte, number uint64)

func NewHeadDispatcher(logger *zap.Logger) *HeadDispatcher {
	return &HeadDispatcher{
		logger:     logger,
		currentID:  1,
		subscribes: map[subscriberID]headDeliveryFn{},
	}
}

func (disp *HeadDispatcher) Run(ctx context.Context) chan HeadEvent {
	ch := make(chan HeadEvent, 100)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case event := <-ch:
				disp.logger.Debug("handling head", zap.Uint64("number", event.Number))
				disp.dispatch(event)
			}
		}
	}()
	return ch
}

func (disp *HeadDispatcher) dispatch(event HeadEvent) {
	var enc jx.Encoder
	event.Encode(&enc)
	eventData := enc.Bytes()

	disp.mu.RLock()
	defer disp.mu.RUnlock()

	for _, deliveryFn := range disp.subscribes {
		deliveryFn(eventData, event.Number)
	}
}

func (disp *HeadDispatcher) RegisterSubscriber(fn DeliveryFn, opts SubscribeToHeadsOptions) CancelFn {
	disp.mu.Lock()
	defer disp.mu.Unlock()

	id := disp.currentID
	disp.currentID += 1

	disp.subscribes[id] = createHeadDeliveryFnBasedOnOptions(fn, opts)
	return func() {
		disp.unsubscribe(id)
	}
}

func createHeadDeliveryFnBasedOnOptions(fn DeliveryFn, options SubscribeToHeadsOptions) headDeliveryFn {
	if options.Every <= 1 {
		return func(eventData []byte, number uint64) {
			fn(eventData)
		}
	}
	return func(eventData []byte, number uint64) {
		if number%options.Every == 0 {
			fn(eventData)
		}
	}
}

func (disp *HeadDispatcher) unsubscribe(id subscriberID) {
	disp.mu.Lock()
	defer disp.mu.Unlock()
	delete(disp.subscribes, id)
}

// SnapshotDispatcher fans dashboard snapshots out to every subscriber.
type SnapshotDispatcher struct {
	logger *zap.Logger

	mu         sync.RWMutex
	currentID  subscriberID
	subscribes map[subscriberID]DeliveryFn
}

func NewSnapshotDispatcher(logger *zap.Logger) *SnapshotDispatcher {
	return &SnapshotDispatcher{
		logger:     logger,
		currentID:  1,
		subscribes: map[subscriberID]DeliveryFn{},
	}
}

func (disp *SnapshotDispatcher) Run(ctx context.Context) chan dashboard.Snapshot {
	ch := make(chan dashboard.Snapshot, 10)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case snapshot := <-ch:
				disp.dispatch(snapshot)
			}
		}
	}()
	return ch
}

func (disp *SnapshotDispatcher) dispatch(snapshot dashboard.Snapshot) {
	eventData, err := json.Marshal(snapshot)
	if err != nil {
		disp.logger.Error("json.Marshal() failed", zap.Error(err))
		return
	}
	disp.mu.RLock()
	defer disp.mu.RUnlock()
	for _, deliveryFn := range disp.subscribes {
		deliveryFn(eventData)
	}
}

func (disp *SnapshotDispatcher) RegisterSubscriber(fn DeliveryFn) CancelFn {
	disp.mu.Lock()
	defer disp.mu.Unlock()

	id := disp.currentID
	disp.currentID += 1
	disp.subscribes[id] = fn
	return func() {
		disp.mu.Lock()
		defer disp.mu.Unlock()
		delete(disp.subscribes, id)
	}
}

func (disp *SnapshotDispatcher) deliverTo(fn DeliveryFn, snapshot dashboard.Snapshot) {
	eventData, err := json.Marshal(snapshot)
	if err != nil {
		disp.logger.Error("json.Marshal() failed", zap.Error(err))
		return
	}
	fn(eventData)
}
