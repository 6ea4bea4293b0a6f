package explorer

import (
	"context"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/ideal-lab5/idn-explorer/pkg/cache"
	"github.com/ideal-lab5/idn-explorer/pkg/chain"
	"github.com/ideal-lab5/idn-explorer/pkg/sidecar"
)

const (
	defaultMaxRange    = 100
	defaultConcurrency = 8
	defaultBlockCache  = 2000
	blockCacheTTL      = time.Hour
	maxAgendaEntries   = 1000
)

// Explorer reads transaction history, beacon output and the scheduler agenda.
// Nothing is retried here: a failed read is returned to the caller.
type Explorer struct {
	provider     chain.Provider
	logger       *zap.Logger
	blocks       cache.ICache[*sidecar.Block]
	beaconPallet string
	beaconItem   string
	maxRange     uint64
	concurrency  int
}

type Option func(e *Explorer)

// WithBeaconStorage sets the storage item holding the beacon pulse, in sidecar naming.
func WithBeaconStorage(pallet, item string) Option {
	return func(e *Explorer) {
		e.beaconPallet = pallet
		e.beaconItem = item
	}
}

// WithMaxRange limits how many blocks a single history or randomness query may span.
func WithMaxRange(blocks uint64) Option {
	return func(e *Explorer) {
		if blocks > 0 {
			e.maxRange = blocks
		}
	}
}

func WithConcurrency(n int) Option {
	return func(e *Explorer) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

func WithBlockCache(c cache.ICache[*sidecar.Block]) Option {
	return func(e *Explorer) {
		e.blocks = c
	}
}

func New(provider chain.Provider, logger *zap.Logger, opts ...Option) (*Explorer, error) {
	e := &Explorer{
		provider:     provider,
		logger:       logger,
		beaconPallet: "randBeacon",
		beaconItem:   "sparseAccumulation",
		maxRange:     defaultMaxRange,
		concurrency:  defaultConcurrency,
	}
	for _, o := range opts {
		o(e)
	}
	if e.blocks == nil {
		blocks, err := cache.NewInMemoryCache[*sidecar.Block](defaultBlockCache)
		if err != nil {
			return nil, errors.Wrap(err, "block cache")
		}
		e.blocks = blocks
	}
	return e, nil
}

// block returns a block by number. Finalized blocks never change and are cached.
func (e *Explorer) block(ctx context.Context, api chain.API, number uint64) (*sidecar.Block, error) {
	key := strconv.FormatUint(number, 10)
	if b, err := e.blocks.Get(ctx, key); err == nil && b != nil {
		return b, nil
	}
	b, err := api.BlockByNumber(ctx, number)
	if err != nil {
		return nil, errors.Wrapf(err, "block %d", number)
	}
	if b.Finalized != nil && *b.Finalized {
		if err := e.blocks.Set(ctx, key, b, blockCacheTTL); err != nil {
			e.logger.Debug("block cache set failed", zap.Uint64("block", number), zap.Error(err))
		}
	}
	return b, nil
}

// blockRange validates [start, end] against the range limit.
func (e *Explorer) blockRange(start, end uint64) error {
	if start > end {
		return errors.Wrapf(errInvalidRange, "start %d is after end %d", start, end)
	}
	if end-start+1 > e.maxRange {
		return errors.Wrapf(errInvalidRange, "%d blocks requested, at most %d allowed", end-start+1, e.maxRange)
	}
	return nil
}
