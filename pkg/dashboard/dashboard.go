// Package dashboard keeps an aggregated view of the chain that is refreshed on every new head.
package dashboard

import (
	"context"
	"sync"
	"time"

	"github.com/sourcegraph/conc"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ideal-lab5/idn-explorer/pkg/core"
	"github.com/ideal-lab5/idn-explorer/pkg/drand"
)

type ConnState string

const (
	Disconnected ConnState = "disconnected"
	Connecting   ConnState = "connecting"
	Connected    ConnState = "connected"
)

// Field names used as keys of Snapshot.Errors.
const (
	FieldSession    = "session"
	FieldScheduled  = "scheduled"
	FieldExecuted   = "executed"
	FieldRandomness = "randomness"
	FieldBeacon     = "beacon"
)

type ChainReader interface {
	SubscribeToNewHeads(ctx context.Context, cb func(core.Header)) (func(), error)
	GetSessionInfo(ctx context.Context) (core.SessionInfo, error)
	GetBalance(ctx context.Context, address string) (core.Balance, error)
}

type History interface {
	GetScheduledTransactions(ctx context.Context) ([]core.DelayedTransaction, error)
	QueryHistoricalEvents(ctx context.Context, start, end uint64) ([]core.ExecutedTransaction, error)
	GetRandomness(ctx context.Context, number uint64, size int) ([]core.Randomness, error)
}

type Beacon interface {
	Latest(ctx context.Context) (drand.Beacon, error)
}

type Subscriptions interface {
	GetSubscriptionsForAccount(ctx context.Context, address string) ([]core.Subscription, error)
}

// Disconnects reports transport losses, see chain.Accessor.OnDisconnect.
type Disconnects interface {
	OnDisconnect(cb func()) func()
}

// Snapshot is a consistent view: every field comes from the refresh of the same head.
// A field whose read failed keeps its previous value and has an entry in Errors.
type Snapshot struct {
	State       ConnState                  `json:"state"`
	Head        core.Header                `json:"head"`
	UpdatedAt   time.Time                  `json:"updated_at"`
	Session     core.SessionInfo           `json:"session"`
	Scheduled   []core.DelayedTransaction  `json:"scheduled"`
	Executed    []core.ExecutedTransaction `json:"executed"`
	Randomness  []core.Randomness          `json:"randomness"`
	BeaconRound uint64                     `json:"beacon_round"`
	Errors      map[string]string          `json:"errors,omitempty"`
}

type Config struct {
	// ExecutedWindow is how many recent blocks are searched for executed transactions.
	ExecutedWindow uint64
	RandomnessSize int
	RetryDelay     time.Duration
}

type Dashboard struct {
	chain         ChainReader
	history       History
	beacon        Beacon
	subscriptions Subscriptions
	disconnects   Disconnects
	logger        *zap.Logger
	cfg           Config

	mu           sync.RWMutex
	snapshot     Snapshot
	nextListener int
	listeners    map[int]func(Snapshot)

	heads chan core.Header
}

func New(chain ChainReader, history History, beacon Beacon, subscriptions Subscriptions, disconnects Disconnects, logger *zap.Logger, cfg Config) *Dashboard {
	if cfg.ExecutedWindow == 0 {
		cfg.ExecutedWindow = 20
	}
	if cfg.RandomnessSize <= 0 {
		cfg.RandomnessSize = 5
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 5 * time.Second
	}
	return &Dashboard{
		chain:         chain,
		history:       history,
		beacon:        beacon,
		subscriptions: subscriptions,
		disconnects:   disconnects,
		logger:        logger,
		cfg:           cfg,
		snapshot:      Snapshot{State: Disconnected},
		listeners:     map[int]func(Snapshot){},
		heads:         make(chan core.Header, 1),
	}
}

// Snapshot returns the current view.
func (d *Dashboard) Snapshot() Snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.snapshot
}

// OnSnapshot registers cb for every applied snapshot and state change.
func (d *Dashboard) OnSnapshot(cb func(Snapshot)) func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextListener++
	id := d.nextListener
	d.listeners[id] = cb
	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.listeners, id)
	}
}

// Run drives the connection lifecycle until ctx is cancelled:
// disconnected -> connecting -> connected, and back to connecting after a transport loss.
func (d *Dashboard) Run(ctx context.Context) {
	lost := make(chan struct{}, 1)
	cancelWatch := d.disconnects.OnDisconnect(func() {
		select {
		case lost <- struct{}{}:
		default:
		}
	})
	defer cancelWatch()

	go d.refresher(ctx)

	for {
		// a loss reported before this subscription belongs to the previous one
		select {
		case <-lost:
		default:
		}
		d.setState(Connecting)
		unsubscribe, err := d.chain.SubscribeToNewHeads(ctx, d.onHead)
		if err != nil {
			d.setState(Disconnected)
			if ctx.Err() != nil {
				return
			}
			d.logger.Warn("dashboard cannot subscribe to heads", zap.Error(err))
			select {
			case <-time.After(d.cfg.RetryDelay):
				continue
			case <-ctx.Done():
				return
			}
		}
		d.setState(Connected)
		select {
		case <-lost:
			unsubscribe()
			d.setState(Disconnected)
			d.logger.Warn("dashboard lost the chain connection")
		case <-ctx.Done():
			unsubscribe()
			d.setState(Disconnected)
			return
		}
	}
}

// onHead keeps only the newest pending head, so a slow refresh never queues up stale work.
func (d *Dashboard) onHead(h core.Header) {
	for {
		select {
		case d.heads <- h:
			return
		default:
		}
		select {
		case <-d.heads:
		default:
		}
	}
}

func (d *Dashboard) refresher(ctx context.Context) {
	for {
		select {
		case h := <-d.heads:
			d.Refresh(ctx, h)
		case <-ctx.Done():
			return
		}
	}
}

// Refresh reads everything for head concurrently and applies the results together.
func (d *Dashboard) Refresh(ctx context.Context, head core.Header) {
	var (
		session    core.SessionInfo
		scheduled  []core.DelayedTransaction
		executed   []core.ExecutedTransaction
		randomness []core.Randomness
		beacon     drand.Beacon
		sessionErr error
		schedErr   error
		execErr    error
		randErr    error
		beaconErr  error
	)
	start := uint64(1)
	if head.Number >= d.cfg.ExecutedWindow {
		start = head.Number - d.cfg.ExecutedWindow + 1
	}

	var wg conc.WaitGroup
	wg.Go(func() { session, sessionErr = d.chain.GetSessionInfo(ctx) })
	wg.Go(func() { scheduled, schedErr = d.history.GetScheduledTransactions(ctx) })
	wg.Go(func() { executed, execErr = d.history.QueryHistoricalEvents(ctx, start, head.Number) })
	wg.Go(func() { randomness, randErr = d.history.GetRandomness(ctx, head.Number, d.cfg.RandomnessSize) })
	wg.Go(func() { beacon, beaconErr = d.beacon.Latest(ctx) })
	if r := wg.WaitAndRecover(); r != nil {
		d.logger.Error("dashboard refresh panicked", zap.String("panic", r.String()))
		return
	}
	if ctx.Err() != nil {
		return
	}

	d.mu.Lock()
	next := d.snapshot
	next.Head = head
	next.UpdatedAt = time.Now()
	next.Errors = map[string]string{}
	apply := func(field string, err error, set func()) {
		if err != nil {
			next.Errors[field] = err.Error()
			return
		}
		set()
	}
	apply(FieldSession, sessionErr, func() { next.Session = session })
	apply(FieldScheduled, schedErr, func() { next.Scheduled = scheduled })
	apply(FieldExecuted, execErr, func() { next.Executed = executed })
	apply(FieldRandomness, randErr, func() { next.Randomness = randomness })
	apply(FieldBeacon, beaconErr, func() { next.BeaconRound = beacon.Round })
	if len(next.Errors) == 0 {
		next.Errors = nil
	}
	d.snapshot = next
	listeners := d.listenersLocked()
	d.mu.Unlock()

	if err := multierr.Combine(sessionErr, schedErr, execErr, randErr, beaconErr); err != nil {
		d.logger.Warn("dashboard refreshed partially", zap.Uint64("head", head.Number), zap.Error(err))
	}
	for _, cb := range listeners {
		cb(next)
	}
}

func (d *Dashboard) setState(state ConnState) {
	d.mu.Lock()
	if d.snapshot.State == state {
		d.mu.Unlock()
		return
	}
	d.snapshot.State = state
	next := d.snapshot
	listeners := d.listenersLocked()
	d.mu.Unlock()
	d.logger.Info("dashboard connection state", zap.String("state", string(state)))
	for _, cb := range listeners {
		cb(next)
	}
}

func (d *Dashboard) listenersLocked() []func(Snapshot) {
	cbs := make([]func(Snapshot), 0, len(d.listeners))
	for _, cb := range d.listeners {
		cbs = append(cbs, cb)
	}
	return cbs
}
