package chainstate

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ideal-lab5/idn-explorer/pkg/cache"
	"github.com/ideal-lab5/idn-explorer/pkg/chain"
	"github.com/ideal-lab5/idn-explorer/pkg/core"
	"github.com/ideal-lab5/idn-explorer/pkg/sidecar"
)

const (
	metadataTTL     = 10 * time.Minute
	balanceDecimals = 4
)

// ChainState reads balances, heads, session progress and runtime introspection data.
type ChainState struct {
	provider       chain.Provider
	logger         *zap.Logger
	sessionLength  uint64
	sessionsPerEra uint64
	metadata       cache.Cache[string, *sidecar.Metadata]

	mu    sync.RWMutex
	props *chain.Properties
}

type Option func(s *ChainState)

func WithSession(length, perEra uint64) Option {
	return func(s *ChainState) {
		if length > 0 {
			s.sessionLength = length
		}
		if perEra > 0 {
			s.sessionsPerEra = perEra
		}
	}
}

func NewChainState(provider chain.Provider, logger *zap.Logger, opts ...Option) *ChainState {
	s := &ChainState{
		provider:       provider,
		logger:         logger,
		sessionLength:  600,
		sessionsPerEra: 6,
		metadata:       cache.NewTTLCache[string, *sidecar.Metadata](metadataTTL, "runtime_metadata"),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// GetBalance returns the free balance of address formatted with the chain's token decimals and symbol.
func (s *ChainState) GetBalance(ctx context.Context, address string) (core.Balance, error) {
	if _, _, err := core.DecodeSS58(address); err != nil {
		return core.Balance{}, err
	}
	api, err := s.provider.GetAPI(ctx)
	if err != nil {
		return core.Balance{}, err
	}
	props, err := s.properties(ctx, api)
	if err != nil {
		return core.Balance{}, err
	}
	info, err := api.BalanceInfo(ctx, address)
	if err != nil {
		return core.Balance{}, errors.Wrapf(err, "balance of %s", address)
	}
	free, err := decimal.NewFromString(info.Free)
	if err != nil {
		return core.Balance{}, errors.Wrapf(err, "bad free balance %q", info.Free)
	}
	symbol := props.TokenSymbol
	if info.TokenSymbol != "" {
		symbol = info.TokenSymbol
	}
	return core.Balance{
		Address:   address,
		Free:      info.Free,
		Formatted: FormatBalance(free, props.TokenDecimals, symbol),
		Symbol:    symbol,
		Decimals:  props.TokenDecimals,
	}, nil
}

// FormatBalance renders planck units as "1.5000 IDN".
func FormatBalance(planck decimal.Decimal, decimals int32, symbol string) string {
	return planck.Shift(-decimals).Truncate(balanceDecimals).StringFixed(balanceDecimals) + " " + symbol
}

func (s *ChainState) properties(ctx context.Context, api chain.API) (chain.Properties, error) {
	s.mu.RLock()
	props := s.props
	s.mu.RUnlock()
	if props != nil {
		return *props, nil
	}
	p, err := chain.GetProperties(ctx, api)
	if err != nil {
		return chain.Properties{}, errors.Wrap(err, "chain properties")
	}
	s.mu.Lock()
	s.props = &p
	s.mu.Unlock()
	return p, nil
}

// SubscribeToNewHeads calls cb with every new best header. The returned function unsubscribes
// and must be called when the caller is done.
func (s *ChainState) SubscribeToNewHeads(ctx context.Context, cb func(core.Header)) (func(), error) {
	api, err := s.provider.GetAPI(ctx)
	if err != nil {
		return nil, err
	}
	cancel, err := api.Subscribe(ctx, "chain_subscribeNewHeads", "chain_unsubscribeNewHeads", func(raw json.RawMessage) {
		header, err := chain.ParseHeader(raw)
		if err != nil {
			s.logger.Warn("skip malformed header", zap.Error(err))
			return
		}
		cb(header)
	})
	if err != nil {
		return nil, errors.Wrap(err, "subscribe to new heads")
	}
	return cancel, nil
}

// SubscribeToBlocks calls cb with the number of every new best block.
func (s *ChainState) SubscribeToBlocks(ctx context.Context, cb func(uint64)) (func(), error) {
	return s.SubscribeToNewHeads(ctx, func(h core.Header) {
		cb(h.Number)
	})
}

// LatestHeader returns the current best header.
func (s *ChainState) LatestHeader(ctx context.Context) (core.Header, error) {
	api, err := s.provider.GetAPI(ctx)
	if err != nil {
		return core.Header{}, err
	}
	return chain.GetHeader(ctx, api, "")
}

// GetSessionInfo derives session and era progress from the best block number and session.currentIndex.
func (s *ChainState) GetSessionInfo(ctx context.Context) (core.SessionInfo, error) {
	api, err := s.provider.GetAPI(ctx)
	if err != nil {
		return core.SessionInfo{}, err
	}
	head, err := chain.GetHeader(ctx, api, "")
	if err != nil {
		return core.SessionInfo{}, err
	}
	index := head.Number / s.sessionLength
	item, err := api.StorageItem(ctx, "session", "currentIndex", nil, "")
	switch {
	case err != nil:
		s.logger.Debug("session index unavailable, deriving from block number", zap.Error(err))
	case !item.Empty():
		var v sidecar.Uint
		if err := json.Unmarshal(item.Value, &v); err == nil {
			index = uint64(v)
		}
	}
	return SessionProgress(head.Number, index, s.sessionLength, s.sessionsPerEra), nil
}

// SessionProgress computes progress counters for block number at session index.
func SessionProgress(number, sessionIndex, sessionLength, sessionsPerEra uint64) core.SessionInfo {
	progress := number % sessionLength
	return core.SessionInfo{
		SessionProgress: progress,
		SessionLength:   sessionLength,
		EraProgress:     (sessionIndex%sessionsPerEra)*sessionLength + progress,
		SessionsPerEra:  sessionsPerEra,
	}
}

func (s *ChainState) runtimeMetadata(ctx context.Context) (*sidecar.Metadata, error) {
	if md, ok := s.metadata.Get("latest"); ok {
		return md, nil
	}
	api, err := s.provider.GetAPI(ctx)
	if err != nil {
		return nil, err
	}
	md, err := api.RuntimeMetadata(ctx, "")
	if err != nil {
		return nil, errors.Wrap(err, "runtime metadata")
	}
	s.metadata.Set("latest", md)
	return md, nil
}

// Metadata returns the cached runtime metadata.
func (s *ChainState) Metadata(ctx context.Context) (*sidecar.Metadata, error) {
	return s.runtimeMetadata(ctx)
}

// GetPallets lists the pallets exposing calls.
func (s *ChainState) GetPallets(ctx context.Context) ([]string, error) {
	md, err := s.runtimeMetadata(ctx)
	if err != nil {
		return nil, err
	}
	var pallets []string
	for _, p := range md.Pallets {
		if len(p.Calls) > 0 {
			pallets = append(pallets, p.Name)
		}
	}
	return pallets, nil
}

func (s *ChainState) GetExtrinsics(ctx context.Context, pallet string) ([]string, error) {
	md, err := s.runtimeMetadata(ctx)
	if err != nil {
		return nil, err
	}
	p, ok := md.Pallet(pallet)
	if !ok {
		return nil, errors.Wrapf(core.ErrEntityNotFound, "pallet %s", pallet)
	}
	calls := make([]string, 0, len(p.Calls))
	for _, c := range p.Calls {
		calls = append(calls, c.Name)
	}
	return calls, nil
}

func (s *ChainState) GetExtrinsicParameters(ctx context.Context, pallet, extrinsic string) ([]core.ExtrinsicParameter, error) {
	md, err := s.runtimeMetadata(ctx)
	if err != nil {
		return nil, err
	}
	p, ok := md.Pallet(pallet)
	if !ok {
		return nil, errors.Wrapf(core.ErrEntityNotFound, "pallet %s", pallet)
	}
	call, ok := p.Call(extrinsic)
	if !ok {
		return nil, errors.Wrapf(core.ErrEntityNotFound, "extrinsic %s.%s", pallet, extrinsic)
	}
	params := make([]core.ExtrinsicParameter, 0, len(call.Fields))
	for _, f := range call.Fields {
		params = append(params, core.ExtrinsicParameter{Name: f.Name, TypeName: f.TypeName})
	}
	return params, nil
}
