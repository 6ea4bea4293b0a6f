package sources

import "context"

// DeliveryFn describes a callback that will be triggered once a new event happens.
type DeliveryFn func(eventData []byte)

// CancelFn has to be called to unsubscribe.
type CancelFn func()

type SubscribeToHeadsOptions struct {
	// Every delivers only heads whose number is a multiple of Every. Zero or one delivers all heads.
	Every uint64
}

// HeadSource provides a method to subscribe to notifications about new chain heads.
type HeadSource interface {
	SubscribeToHeads(ctx context.Context, deliveryFn DeliveryFn, opts SubscribeToHeadsOptions) CancelFn
}

// SnapshotSource provides a method to subscribe to dashboard snapshots.
type SnapshotSource interface {
	SubscribeToSnapshots(ctx context.Context, deliveryFn DeliveryFn) CancelFn
}
