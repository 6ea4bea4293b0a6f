package explorer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/sourcegraph/conc/iter"
	"go.uber.org/zap"

	"github.com/ideal-lab5/idn-explorer/internal/g"
	"github.com/ideal-lab5/idn-explorer/pkg/cache"
	"github.com/ideal-lab5/idn-explorer/pkg/chain"
	"github.com/ideal-lab5/idn-explorer/pkg/core"
	"github.com/ideal-lab5/idn-explorer/pkg/sidecar"
)

// GetRandomness returns the beacon output of the size blocks ending at number.
// A zero number means the best block. Blocks without a stored pulse are left out.
func (e *Explorer) GetRandomness(ctx context.Context, number uint64, size int) ([]core.Randomness, error) {
	if size <= 0 {
		size = 1
	}
	if uint64(size) > e.maxRange {
		return nil, errors.Wrapf(errInvalidRange, "%d samples requested, at most %d allowed", size, e.maxRange)
	}
	api, err := e.provider.GetAPI(ctx)
	if err != nil {
		return nil, err
	}
	if number == 0 {
		head, err := chain.GetHeader(ctx, api, "")
		if err != nil {
			return nil, err
		}
		number = head.Number
	}
	var numbers []uint64
	for n := number; n > 0 && len(numbers) < size; n-- {
		numbers = append([]uint64{n}, numbers...)
	}
	mapper := iter.Mapper[uint64, *core.Randomness]{MaxGoroutines: e.concurrency}
	samples, err := mapper.MapErr(numbers, func(n *uint64) (*core.Randomness, error) {
		return e.pulseAt(ctx, api, *n)
	})
	if err != nil {
		return nil, err
	}
	out := make([]core.Randomness, 0, len(samples))
	for _, s := range samples {
		if s != nil {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (e *Explorer) pulseAt(ctx context.Context, api chain.API, number uint64) (*core.Randomness, error) {
	hash, err := chain.BlockHash(ctx, api, number)
	if err != nil {
		return nil, err
	}
	item, err := api.StorageItem(ctx, e.beaconPallet, e.beaconItem, nil, hash)
	if err != nil {
		if errors.Is(err, core.ErrEntityNotFound) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "beacon pulse at %d", number)
	}
	if item.Empty() {
		return nil, nil
	}
	v, err := core.DecodeLoose(item.Value)
	if err != nil {
		return nil, errors.Wrapf(err, "beacon pulse at %d", number)
	}
	r := ParsePulse(v)
	if r.Signature == "" && r.Value == "" {
		return nil, nil
	}
	r.Block = number
	return &r, nil
}

// ParsePulse reads a stored beacon pulse. A bare value is the signature; when no randomness is
// stored alongside it, it is derived as sha256 of the signature bytes.
func ParsePulse(v any) core.Randomness {
	r := core.Randomness{Status: core.RandomnessGenerated}
	switch x := v.(type) {
	case string:
		r.Signature = x
	case map[string]any:
		if sig, ok := core.Pick(x, "signature", "sig", "asig"); ok {
			r.Signature = core.AsString(sig)
		}
		if rand, ok := core.Pick(x, "randomness", "value", "rand"); ok {
			r.Value = core.AsString(rand)
		}
	}
	if r.Value == "" && r.Signature != "" {
		if sig, err := hex.DecodeString(strings.TrimPrefix(r.Signature, "0x")); err == nil {
			sum := sha256.Sum256(sig)
			r.Value = "0x" + hex.EncodeToString(sum[:])
		}
	}
	return r
}

const (
	distributionTTL    = time.Minute
	distributionRanges = 1024
)

// RandomnessService reports randomness deliveries to subscriptions.
type RandomnessService struct {
	provider chain.Provider
	logger   *zap.Logger
	events   cache.Cache[string, []core.RandomnessDistributionEvent]
}

func NewRandomnessService(provider chain.Provider, logger *zap.Logger) *RandomnessService {
	return &RandomnessService{
		provider: provider,
		logger:   logger,
		events:   cache.NewLRUCache[string, []core.RandomnessDistributionEvent](distributionRanges, distributionTTL, "distribution_events"),
	}
}

// GetRandomnessDistributionEvents returns the distribution events of the finalized head when it lies
// in [start, end]; zero bounds are open. Old blocks are not replayed. Results are cached per range
// for a minute, each range on its own clock.
func (s *RandomnessService) GetRandomnessDistributionEvents(ctx context.Context, start, end uint64) ([]core.RandomnessDistributionEvent, error) {
	key := fmt.Sprintf("%d-%d", start, end)
	if events, ok := s.events.Get(key); ok {
		return events, nil
	}
	api, err := s.provider.GetAPI(ctx)
	if err != nil {
		return nil, err
	}
	head, err := api.FinalizedHead(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "finalized head")
	}
	number := uint64(head.Number)
	events := []core.RandomnessDistributionEvent{}
	if (start == 0 || number >= start) && (end == 0 || number <= end) {
		events = DistributionEvents(number, head)
	}
	s.events.Set(key, events)
	return events, nil
}

// DistributionEvents extracts randomness deliveries from a block.
func DistributionEvents(number uint64, b *sidecar.Block) []core.RandomnessDistributionEvent {
	timestamp := blockTimestamp(b)
	events := []core.RandomnessDistributionEvent{}
	for _, ev := range b.AllEvents() {
		if !isDistribution(ev.Method) {
			continue
		}
		data, err := core.DecodeLoose(ev.Data)
		if err != nil {
			continue
		}
		events = append(events, core.NewRandomnessDistributionEvent(number, ev.Index, timestamp, data))
	}
	return events
}

func isDistribution(m sidecar.MethodName) bool {
	method := strings.ToLower(m.Method)
	return strings.Contains(method, "randomness") &&
		(strings.Contains(method, "distributed") || strings.Contains(method, "delivered"))
}

// blockTimestamp reads the timestamp.set inherent, in milliseconds.
func blockTimestamp(b *sidecar.Block) *int64 {
	for _, ex := range b.Extrinsics {
		if ex.Method.Pallet != "timestamp" || ex.Method.Method != "set" {
			continue
		}
		v, err := core.DecodeLoose(ex.Args)
		if err != nil {
			return nil
		}
		args, ok := v.(map[string]any)
		if !ok {
			return nil
		}
		now, ok := core.Pick(args, "now")
		if !ok {
			return nil
		}
		ms, ok := core.AsUint64(now)
		if !ok {
			return nil
		}
		return g.Pointer(int64(ms))
	}
	return nil
}
