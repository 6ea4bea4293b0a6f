package sources

import (
	"context"

	"go.uber.org/zap"

	"github.com/ideal-lab5/idn-explorer/pkg/dashboard"
)

// SnapshotNotifier is implemented by *dashboard.Dashboard.
type SnapshotNotifier interface {
	OnSnapshot(cb func(dashboard.Snapshot)) func()
	Snapshot() dashboard.Snapshot
}

// DashboardSource turns dashboard updates into head and snapshot streams.
type DashboardSource struct {
	notifier  SnapshotNotifier
	heads     *HeadDispatcher
	snapshots *SnapshotDispatcher
	logger    *zap.Logger
}

var _ HeadSource = (*DashboardSource)(nil)
var _ SnapshotSource = (*DashboardSource)(nil)

func NewDashboardSource(notifier SnapshotNotifier, logger *zap.Logger) *DashboardSource {
	return &DashboardSource{
		notifier:  notifier,
		heads:     NewHeadDispatcher(logger),
		snapshots: NewSnapshotDispatcher(logger),
		logger:    logger,
	}
}

// Run forwards dashboard updates until ctx is done. A head event is emitted only when the head
// or the connection state changes; every update produces a snapshot event.
func (s *DashboardSource) Run(ctx context.Context) {
	headCh := s.heads.Run(ctx)
	snapshotCh := s.snapshots.Run(ctx)

	updates := make(chan dashboard.Snapshot, 10)
	cancel := s.notifier.OnSnapshot(func(snapshot dashboard.Snapshot) {
		select {
		case updates <- snapshot:
		default:
			s.logger.Warn("dashboard update dropped", zap.Uint64("head", snapshot.Head.Number))
		}
	})
	defer cancel()

	var last HeadEvent
	for {
		select {
		case <-ctx.Done():
			return
		case snapshot := <-updates:
			head := HeadEvent{
				Number:     snapshot.Head.Number,
				Hash:       snapshot.Head.Hash,
				ParentHash: snapshot.Head.ParentHash,
				State:      snapshot.State,
			}
			if head != last {
				last = head
				forward(ctx, headCh, head)
			}
			forward(ctx, snapshotCh, snapshot)
		}
	}
}

func forward[T any](ctx context.Context, ch chan T, v T) {
	select {
	case ch <- v:
	case <-ctx.Done():
	}
}

func (s *DashboardSource) SubscribeToHeads(ctx context.Context, deliveryFn DeliveryFn, opts SubscribeToHeadsOptions) CancelFn {
	return s.heads.RegisterSubscriber(deliveryFn, opts)
}

// SubscribeToSnapshots registers deliveryFn and immediately sends it the current snapshot.
func (s *DashboardSource) SubscribeToSnapshots(ctx context.Context, deliveryFn DeliveryFn) CancelFn {
	cancel := s.snapshots.RegisterSubscriber(deliveryFn)
	s.snapshots.deliverTo(deliveryFn, s.notifier.Snapshot())
	return cancel
}
