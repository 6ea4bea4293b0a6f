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

type chainState interface {
	GetBalance(ctx context.Context, address string) (core.Balance, error)
	GetSessionInfo(ctx context.Context) (core.SessionInfo, error)
	GetPallets(ctx context.Context) ([]string, error)
	GetExtrinsics(ctx context.Context, pallet string) ([]string, error)
	GetExtrinsicParameters(ctx context.Context, pallet, extrinsic string) ([]core.ExtrinsicParameter, error)
}

type subscriptionService interface {
	GetSubscription(ctx context.Context, id string) (*core.Subscription, error)
	GetSubscriptionsForAccount(ctx context.Context, address string) ([]core.Subscription, error)
	GetAllSubscriptions(ctx context.Context) ([]core.Subscription, error)
	CreateSubscription(ctx context.Context, signer chain.Signer, params subscriptions.CreateParams) (*subscriptions.Receipt, error)
	PauseSubscription(ctx context.Context, signer chain.Signer, id string) (*subscriptions.Receipt, error)
	KillSubscription(ctx context.Context, signer chain.Signer, id string) (*subscriptions.Receipt, error)
	ReactivateSubscription(ctx context.Context, signer chain.Signer, id string) (*subscriptions.Receipt, error)
	UpdateSubscription(ctx context.Context, signer chain.Signer, id string, params subscriptions.UpdateParams) (*subscriptions.Receipt, error)
}

type explorer interface {
	QueryHistoricalEvents(ctx context.Context, start, end uint64) ([]core.ExecutedTransaction, error)
	GetRandomness(ctx context.Context, number uint64, size int) ([]core.Randomness, error)
}

type randomnessEvents interface {
	GetRandomnessDistributionEvents(ctx context.Context, start, end uint64) ([]core.RandomnessDistributionEvent, error)
}

type beacon interface {
	Latest(ctx context.Context) (drand.Beacon, error)
	Info(ctx context.Context) (drand.Info, error)
	GetRoundAtTime(ctx context.Context, t time.Time) (uint64, error)
	GetTimeOfRound(ctx context.Context, round uint64) (time.Time, error)
}

type dashboardView interface {
	Snapshot() dashboard.Snapshot
	Account(ctx context.Context, address string) (dashboard.AccountView, error)
	Executed(filter core.TransactionFilter, offset, limit int) dashboard.Page[core.ExecutedTransaction]
	Scheduled(owner string, offset, limit int) dashboard.Page[core.DelayedTransaction]
}
