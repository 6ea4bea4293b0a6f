// Package subscriptions reads and manages randomness subscriptions of the IdnManager pallet.
package subscriptions

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ideal-lab5/idn-explorer/pkg/cache"
	"github.com/ideal-lab5/idn-explorer/pkg/chain"
	"github.com/ideal-lab5/idn-explorer/pkg/chain/rpc"
	"github.com/ideal-lab5/idn-explorer/pkg/core"
)

const (
	palletName  = "IdnManager"
	sidecarName = "idnManager"
	storageName = "Subscriptions"

	// MaxScanEntries bounds the raw storage scan.
	MaxScanEntries = 1000
	scanPageSize   = 250

	defaultAccountTTL = 30 * time.Second
)

// Service is the subscription read/write service.
type Service struct {
	provider         chain.Provider
	logger           *zap.Logger
	tracer           trace.Tracer
	inclusionTimeout time.Duration
	accounts         *cache.AccountCache[[]core.Subscription]
}

type Option func(s *Service)

// WithInclusionTimeout overrides how long writes wait for block inclusion.
func WithInclusionTimeout(timeout time.Duration) Option {
	return func(s *Service) {
		s.inclusionTimeout = timeout
	}
}

func WithAccountCacheTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.accounts = cache.NewAccountCache[[]core.Subscription](ttl, "account_subscriptions")
	}
}

func NewService(provider chain.Provider, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		provider:         provider,
		logger:           logger,
		tracer:           otel.Tracer("idn-explorer/subscriptions"),
		inclusionTimeout: chain.DefaultInclusionTimeout,
	}
	for _, o := range opts {
		o(s)
	}
	if s.accounts == nil {
		s.accounts = cache.NewAccountCache[[]core.Subscription](defaultAccountTTL, "account_subscriptions")
	}
	return s
}

func (s *Service) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "subscriptions."+name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// lookup is one way of finding a subscription. A miss is (nil, nil).
type lookup func(ctx context.Context, api chain.API, id string) (*core.Subscription, error)

// GetSubscription finds a subscription by id, trying the runtime query, then the storage map,
// then a bounded scan of the raw storage.
func (s *Service) GetSubscription(ctx context.Context, id string) (sub *core.Subscription, err error) {
	ctx, span := s.startSpan(ctx, "GetSubscription", attribute.String("subscription.id", id))
	defer func() { endSpan(span, err) }()

	if strings.TrimSpace(id) == "" {
		return nil, errors.Wrap(core.ErrInvalidArgument, "empty subscription id")
	}
	id = core.NormalizeSubscriptionID(id)
	api, err := s.provider.GetAPI(ctx)
	if err != nil {
		return nil, err
	}
	strategies := []struct {
		name string
		fn   lookup
	}{
		{"runtime", s.runtimeSubscription},
		{"storage", s.storedSubscription},
		{"scan", s.scanSubscription},
	}
	for _, strategy := range strategies {
		sub, err := strategy.fn(ctx, api, id)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.logger.Debug("subscription lookup failed", zap.String("strategy", strategy.name), zap.String("id", id), zap.Error(err))
			continue
		}
		if sub != nil {
			span.SetAttributes(attribute.String("subscription.strategy", strategy.name))
			return sub, nil
		}
	}
	return nil, errors.Wrapf(core.ErrEntityNotFound, "subscription %s", id)
}

func (s *Service) runtimeSubscription(ctx context.Context, api chain.API, id string) (*core.Subscription, error) {
	var raw json.RawMessage
	if err := api.Call(ctx, &raw, "idn_getSubscription", id); err != nil {
		return nil, err
	}
	v, err := core.DecodeLoose(raw)
	if err != nil || v == nil {
		return nil, err
	}
	sub, err := core.ParseSubscription(id, v)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (s *Service) storedSubscription(ctx context.Context, api chain.API, id string) (*core.Subscription, error) {
	if !core.ValidSubscriptionID(id) {
		return nil, nil
	}
	item, err := api.StorageItem(ctx, sidecarName, "subscriptions", []string{id}, "")
	if err != nil {
		return nil, err
	}
	if item.Empty() {
		return nil, nil
	}
	v, err := core.DecodeLoose(item.Value)
	if err != nil {
		return nil, err
	}
	sub, err := core.ParseSubscription(id, v)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// scanSubscription walks the raw storage map. Entries whose key and value do not contain the
// searched id as text are skipped before anything is decoded.
func (s *Service) scanSubscription(ctx context.Context, api chain.API, id string) (*core.Subscription, error) {
	needle := strings.TrimPrefix(strings.ToLower(id), "0x")
	var found *core.Subscription
	err := s.scan(ctx, api, func(subID, key, value string) (bool, error) {
		if !strings.Contains(strings.ToLower(key), needle) && !strings.Contains(strings.ToLower(value), needle) {
			return false, nil
		}
		sub, err := s.storedSubscription(ctx, api, subID)
		if err != nil || sub == nil {
			return false, err
		}
		found = sub
		return true, nil
	})
	return found, err
}

// scan visits at most MaxScanEntries raw entries of the subscriptions map until visit returns true.
func (s *Service) scan(ctx context.Context, api chain.API, visit func(subID, key, value string) (bool, error)) error {
	prefix := chain.StoragePrefix(palletName, storageName)
	var (
		start   string
		visited int
	)
	for visited < MaxScanEntries {
		count := scanPageSize
		if left := MaxScanEntries - visited; left < count {
			count = left
		}
		keys, err := chain.StorageKeysPaged(ctx, api, prefix, count, start, "")
		if err != nil {
			return errors.Wrap(err, "list subscription keys")
		}
		if len(keys) == 0 {
			return nil
		}
		values, err := chain.QueryStorageAt(ctx, api, keys, "")
		if err != nil {
			return errors.Wrap(err, "read subscription entries")
		}
		for _, key := range keys {
			visited++
			value, ok := values[key]
			if !ok {
				continue
			}
			subID, err := chain.Blake2_128ConcatKey(key, 32)
			if err != nil {
				s.logger.Debug("skip malformed subscription key", zap.String("key", key), zap.Error(err))
				continue
			}
			done, err := visit(subID, key, value)
			if err != nil {
				return err
			}
			if done {
				return nil
			}
		}
		if len(keys) < count {
			return nil
		}
		start = keys[len(keys)-1]
	}
	s.logger.Warn("subscription scan stopped at the entry cap", zap.Int("cap", MaxScanEntries))
	return nil
}

// GetSubscriptionsForAccount lists the subscriptions owned by address. Results are cached per account.
func (s *Service) GetSubscriptionsForAccount(ctx context.Context, address string) (subs []core.Subscription, err error) {
	ctx, span := s.startSpan(ctx, "GetSubscriptionsForAccount", attribute.String("account", address))
	defer func() { endSpan(span, err) }()

	pub, _, err := core.DecodeSS58(address)
	if err != nil {
		return nil, err
	}
	if cached, ok := s.accounts.Get(address); ok {
		return cached, nil
	}
	api, err := s.provider.GetAPI(ctx)
	if err != nil {
		return nil, err
	}
	subs, err = s.runtimeSubscriptions(ctx, api, address)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !rpc.IsMethodNotFound(err) {
			s.logger.Debug("runtime subscription query failed", zap.String("account", address), zap.Error(err))
		}
		subs, err = s.scanAccount(ctx, api, address, pub)
		if err != nil {
			return nil, err
		}
	}
	if subs == nil {
		subs = []core.Subscription{}
	}
	s.accounts.Set(address, subs)
	return subs, nil
}

func (s *Service) runtimeSubscriptions(ctx context.Context, api chain.API, address string) ([]core.Subscription, error) {
	var raw []json.RawMessage
	if err := api.Call(ctx, &raw, "idn_getSubscriptionsForSubscriber", address); err != nil {
		return nil, err
	}
	subs := make([]core.Subscription, 0, len(raw))
	for _, r := range raw {
		v, err := core.DecodeLoose(r)
		if err != nil {
			return nil, err
		}
		sub, err := core.ParseSubscription("", v)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

// scanAccount filters the raw scan by subscriber. The subscriber account id leads the encoded value,
// so entries not containing it are skipped undecoded.
func (s *Service) scanAccount(ctx context.Context, api chain.API, address string, pub core.PublicKey) ([]core.Subscription, error) {
	needle := strings.TrimPrefix(pub.Hex(), "0x")
	var subs []core.Subscription
	err := s.scan(ctx, api, func(subID, key, value string) (bool, error) {
		if !strings.Contains(strings.ToLower(value), needle) {
			return false, nil
		}
		sub, err := s.storedSubscription(ctx, api, subID)
		if err != nil {
			return false, err
		}
		if sub != nil && core.SameAccount(sub.Details.Subscriber, address) {
			subs = append(subs, *sub)
		}
		return false, nil
	})
	return subs, err
}

// GetAllSubscriptions is not supported: the chain offers no enumeration of all subscriptions.
func (s *Service) GetAllSubscriptions(ctx context.Context) ([]core.Subscription, error) {
	s.logger.Warn("listing all subscriptions is not supported")
	return []core.Subscription{}, errors.Wrap(core.ErrUnsupported, "list all subscriptions")
}

// InvalidateAccount drops the cached subscription list of address.
func (s *Service) InvalidateAccount(address string) {
	if address != "" {
		s.accounts.Invalidate(address)
	}
}

// eventSubscriptionID reads the subscription id from event data, which is either positional
// with the id first or an object with a sub_id field.
func eventSubscriptionID(data json.RawMessage) string {
	v, err := core.DecodeLoose(data)
	if err != nil {
		return ""
	}
	switch x := v.(type) {
	case []any:
		if len(x) > 0 {
			if id := core.AsString(x[0]); core.ValidSubscriptionID(id) {
				return core.NormalizeSubscriptionID(id)
			}
		}
	case map[string]any:
		if id, ok := core.Pick(x, "sub_id", "subscription_id", "id"); ok {
			return core.NormalizeSubscriptionID(core.AsString(id))
		}
	}
	return ""
}
