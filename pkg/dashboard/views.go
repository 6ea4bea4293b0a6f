package dashboard

import (
	"context"

	"github.com/sourcegraph/conc"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ideal-lab5/idn-explorer/internal/g"
	"github.com/ideal-lab5/idn-explorer/pkg/core"
)

// AccountView is the per-account part of the dashboard.
type AccountView struct {
	Address       string              `json:"address"`
	Balance       *core.Balance       `json:"balance,omitempty"`
	Subscriptions []core.Subscription `json:"subscriptions"`
	Errors        map[string]string   `json:"errors,omitempty"`
}

// Account builds the view of address. Each part degrades on its own.
func (d *Dashboard) Account(ctx context.Context, address string) (AccountView, error) {
	if _, _, err := core.DecodeSS58(address); err != nil {
		return AccountView{}, err
	}
	var (
		balance    core.Balance
		subs       []core.Subscription
		balanceErr error
		subsErr    error
	)
	var wg conc.WaitGroup
	wg.Go(func() { balance, balanceErr = d.chain.GetBalance(ctx, address) })
	wg.Go(func() { subs, subsErr = d.subscriptions.GetSubscriptionsForAccount(ctx, address) })
	wg.Wait()

	view := AccountView{Address: address, Subscriptions: []core.Subscription{}, Errors: map[string]string{}}
	if balanceErr != nil {
		view.Errors["balance"] = balanceErr.Error()
	} else {
		view.Balance = &balance
	}
	if subsErr != nil {
		view.Errors["subscriptions"] = subsErr.Error()
	} else if subs != nil {
		view.Subscriptions = subs
	}
	if err := multierr.Combine(balanceErr, subsErr); err != nil {
		d.logger.Warn("account view degraded", zap.String("account", address), zap.Error(err))
	} else {
		view.Errors = nil
	}
	return view, nil
}

// Page is a slice of a larger result.
type Page[T any] struct {
	Items  []T `json:"items"`
	Total  int `json:"total"`
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// Executed returns the filtered executed transactions of the snapshot, newest first.
func (d *Dashboard) Executed(filter core.TransactionFilter, offset, limit int) Page[core.ExecutedTransaction] {
	snapshot := d.Snapshot()
	matched := make([]core.ExecutedTransaction, 0, len(snapshot.Executed))
	for i := len(snapshot.Executed) - 1; i >= 0; i-- {
		if tx := snapshot.Executed[i]; filter.Match(tx) {
			matched = append(matched, tx)
		}
	}
	return Page[core.ExecutedTransaction]{
		Items:  g.Page(matched, offset, limit),
		Total:  len(matched),
		Offset: offset,
		Limit:  limit,
	}
}

// Scheduled returns the snapshot's delayed transactions, optionally only those of owner.
func (d *Dashboard) Scheduled(owner string, offset, limit int) Page[core.DelayedTransaction] {
	snapshot := d.Snapshot()
	matched := make([]core.DelayedTransaction, 0, len(snapshot.Scheduled))
	for _, tx := range snapshot.Scheduled {
		if owner == "" || core.SameAccount(owner, tx.Owner) {
			matched = append(matched, tx)
		}
	}
	return Page[core.DelayedTransaction]{
		Items:  g.Page(matched, offset, limit),
		Total:  len(matched),
		Offset: offset,
		Limit:  limit,
	}
}
