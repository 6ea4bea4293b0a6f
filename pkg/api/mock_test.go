package api

import (
	"context"
	"time"

	"github.com/ideal-lab5/idn-explorer/pkg/chain"
	"github.com/ideal-lab5/idn-explorer/pkg/core"
	"github.com/ideal-lab5/idn-explorer/pkg/dashboard"
	"github.com/ideal-lab5/idn-explorer/pkg/drand"
	"github.com/ideal-lab5/idn-explorer/pkg/subscriptions"
)

type mockChainState struct {
	OnGetBalance             func(address string) (core.Balance, error)
	OnGetSessionInfo         func() (core.SessionInfo, error)
	OnGetPallets             func() ([]string, error)
	OnGetExtrinsics          func(pallet string) ([]string, error)
	OnGetExtrinsicParameters func(pallet, extrinsic string) ([]core.ExtrinsicParameter, error)
}

func (m *mockChainState) GetBalance(ctx context.Context, address string) (core.Balance, error) {
	return m.OnGetBalance(address)
}

func (m *mockChainState) GetSessionInfo(ctx context.Context) (core.SessionInfo, error) {
	return m.OnGetSessionInfo()
}

func (m *mockChainState) GetPallets(ctx context.Context) ([]string, error) {
	return m.OnGetPallets()
}

func (m *mockChainState) GetExtrinsics(ctx context.Context, pallet string) ([]string, error) {
	return m.OnGetExtrinsics(pallet)
}

func (m *mockChainState) GetExtrinsicParameters(ctx context.Context, pallet, extrinsic string) ([]core.ExtrinsicParameter, error) {
	return m.OnGetExtrinsicParameters(pallet, extrinsic)
}

type mockSubscriptions struct {
	OnGetSubscription            func(id string) (*core.Subscription, error)
	OnGetSubscriptionsForAccount func(address string) ([]core.Subscription, error)
	OnCreateSubscription         func(signer chain.Signer, params subscriptions.CreateParams) (*subscriptions.Receipt, error)
	OnManage                     func(name string, signer chain.Signer, id string) (*subscriptions.Receipt, error)
	OnUpdateSubscription         func(signer chain.Signer, id string, params subscriptions.UpdateParams) (*subscriptions.Receipt, error)
}

func (m *mockSubscriptions) GetSubscription(ctx context.Context, id string) (*core.Subscription, error) {
	return m.OnGetSubscription(id)
}

func (m *mockSubscriptions) GetSubscriptionsForAccount(ctx context.Context, address string) ([]core.Subscription, error) {
	return m.OnGetSubscriptionsForAccount(address)
}

func (m *mockSubscriptions) GetAllSubscriptions(ctx context.Context) ([]core.Subscription, error) {
	return []core.Subscription{}, core.ErrUnsupported
}

func (m *mockSubscriptions) CreateSubscription(ctx context.Context, signer chain.Signer, params subscriptions.CreateParams) (*subscriptions.Receipt, error) {
	return m.OnCreateSubscription(signer, params)
}

func (m *mockSubscriptions) PauseSubscription(ctx context.Context, signer chain.Signer, id string) (*subscriptions.Receipt, error) {
	return m.OnManage("pause", signer, id)
}

func (m *mockSubscriptions) KillSubscription(ctx context.Context, signer chain.Signer, id string) (*subscriptions.Receipt, error) {
	return m.OnManage("kill", signer, id)
}

func (m *mockSubscriptions) ReactivateSubscription(ctx context.Context, signer chain.Signer, id string) (*subscriptions.Receipt, error) {
	return m.OnManage("reactivate", signer, id)
}

func (m *mockSubscriptions) UpdateSubscription(ctx context.Context, signer chain.Signer, id string, params subscriptions.UpdateParams) (*subscriptions.Receipt, error) {
	return m.OnUpdateSubscription(signer, id, params)
}

type mockExplorer struct {
	OnQueryHistoricalEvents func(start, end uint64) ([]core.ExecutedTransaction, error)
	OnGetRandomness         func(number uint64, size int) ([]core.Randomness, error)
	OnDistributionEvents    func(start, end uint64) ([]core.RandomnessDistributionEvent, error)
}

func (m *mockExplorer) QueryHistoricalEvents(ctx context.Context, start, end uint64) ([]core.ExecutedTransaction, error) {
	return m.OnQueryHistoricalEvents(start, end)
}

func (m *mockExplorer) GetRandomness(ctx context.Context, number uint64, size int) ([]core.Randomness, error) {
	return m.OnGetRandomness(number, size)
}

func (m *mockExplorer) GetRandomnessDistributionEvents(ctx context.Context, start, end uint64) ([]core.RandomnessDistributionEvent, error) {
	return m.OnDistributionEvents(start, end)
}

type mockBeacon struct {
	info drand.Info
}

func (m *mockBeacon) Latest(ctx context.Context) (drand.Beacon, error) {
	return drand.Beacon{Round: drand.RoundAt(m.info, time.Unix(m.info.GenesisTime+30, 0)), Randomness: "0xr"}, nil
}

func (m *mockBeacon) Info(ctx context.Context) (drand.Info, error) {
	return m.info, nil
}

func (m *mockBeacon) GetRoundAtTime(ctx context.Context, t time.Time) (uint64, error) {
	return drand.RoundAt(m.info, t), nil
}

func (m *mockBeacon) GetTimeOfRound(ctx context.Context, round uint64) (time.Time, error) {
	return drand.TimeOfRound(m.info, round), nil
}

type mockDashboard struct {
	snapshot  dashboard.Snapshot
	OnAccount func(address string) (dashboard.AccountView, error)

	executedFilter core.TransactionFilter
	offset, limit  int
}

func (m *mockDashboard) Snapshot() dashboard.Snapshot {
	return m.snapshot
}

func (m *mockDashboard) Account(ctx context.Context, address string) (dashboard.AccountView, error) {
	return m.OnAccount(address)
}

func (m *mockDashboard) Executed(filter core.TransactionFilter, offset, limit int) dashboard.Page[core.ExecutedTransaction] {
	m.executedFilter, m.offset, m.limit = filter, offset, limit
	return dashboard.Page[core.ExecutedTransaction]{Items: m.snapshot.Executed, Total: len(m.snapshot.Executed), Offset: offset, Limit: limit}
}

func (m *mockDashboard) Scheduled(owner string, offset, limit int) dashboard.Page[core.DelayedTransaction] {
	m.offset, m.limit = offset, limit
	return dashboard.Page[core.DelayedTransaction]{Items: m.snapshot.Scheduled, Total: len(m.snapshot.Scheduled), Offset: offset, Limit: limit}
}

var (
	_ chainState          = (*mockChainState)(nil)
	_ subscriptionService = (*mockSubscriptions)(nil)
	_ explorer            = (*mockExplorer)(nil)
	_ randomnessEvents    = (*mockExplorer)(nil)
	_ beacon              = (*mockBeacon)(nil)
	_ dashboardView       = (*mockDashboard)(nil)
)
