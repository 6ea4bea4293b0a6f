package dashboard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ideal-lab5/idn-explorer/pkg/core"
	"github.com/ideal-lab5/idn-explorer/pkg/drand"
)

const alice = "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY"

type mockChain struct {
	mu           sync.Mutex
	subscribed   int
	unsubscribed int
	deliver      func(core.Header)
	subscribeErr error
	sessionErr   error
	balanceErr   error
}

func (m *mockChain) SubscribeToNewHeads(ctx context.Context, cb func(core.Header)) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subscribeErr != nil {
		return nil, m.subscribeErr
	}
	m.subscribed++
	m.deliver = cb
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.unsubscribed++
	}, nil
}

func (m *mockChain) push(h core.Header) {
	m.mu.Lock()
	cb := m.deliver
	m.mu.Unlock()
	cb(h)
}

func (m *mockChain) counts() (int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.subscribed, m.unsubscribed
}

func (m *mockChain) GetSessionInfo(ctx context.Context) (core.SessionInfo, error) {
	if m.sessionErr != nil {
		return core.SessionInfo{}, m.sessionErr
	}
	return core.SessionInfo{SessionProgress: 3, SessionLength: 600}, nil
}

func (m *mockChain) GetBalance(ctx context.Context, address string) (core.Balance, error) {
	if m.balanceErr != nil {
		return core.Balance{}, m.balanceErr
	}
	return core.Balance{Address: address, Formatted: "1.0000 IDN"}, nil
}

type mockHistory struct {
	mu          sync.Mutex
	ranges      [][2]uint64
	scheduleErr error
}

func (m *mockHistory) GetScheduledTransactions(ctx context.Context) ([]core.DelayedTransaction, error) {
	if m.scheduleErr != nil {
		return nil, m.scheduleErr
	}
	return []core.DelayedTransaction{
		{ID: "a", Owner: alice, DeadlineBlock: 50},
		{ID: "b", DeadlineBlock: 60},
	}, nil
}

func (m *mockHistory) QueryHistoricalEvents(ctx context.Context, start, end uint64) ([]core.ExecutedTransaction, error) {
	m.mu.Lock()
	m.ranges = append(m.ranges, [2]uint64{start, end})
	m.mu.Unlock()
	return []core.ExecutedTransaction{
		{Block: start, ID: "1", Owner: alice, Operation: "idnManager.createSubscription", Status: core.TxStatusSuccess},
		{Block: start, ID: "2", Operation: "balances.transfer", Status: core.TxStatusFailed},
		{Block: end, ID: "3", Owner: alice, Operation: "idnManager.pauseSubscription", Status: core.TxStatusSuccess},
	}, nil
}

func (m *mockHistory) GetRandomness(ctx context.Context, number uint64, size int) ([]core.Randomness, error) {
	return []core.Randomness{{Block: number, Value: "0x01", Status: core.RandomnessGenerated}}, nil
}

type mockBeacon struct {
	round uint64
	err   error
}

func (m *mockBeacon) Latest(ctx context.Context) (drand.Beacon, error) {
	return drand.Beacon{Round: m.round}, m.err
}

type mockSubscriptions struct{ err error }

func (m *mockSubscriptions) GetSubscriptionsForAccount(ctx context.Context, address string) ([]core.Subscription, error) {
	if m.err != nil {
		return nil, m.err
	}
	return []core.Subscription{{ID: "0x01", Details: core.SubscriptionDetails{Subscriber: address}}}, nil
}

type mockDisconnects struct {
	mu sync.Mutex
	cb func()
}

func (m *mockDisconnects) OnDisconnect(cb func()) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cb = cb
	return func() {}
}

func (m *mockDisconnects) fire() {
	m.mu.Lock()
	cb := m.cb
	m.mu.Unlock()
	cb()
}

func newDashboard(ch *mockChain, history *mockHistory, beacon *mockBeacon, subs *mockSubscriptions, disc *mockDisconnects) *Dashboard {
	return New(ch, history, beacon, subs, disc, zap.NewNop(), Config{ExecutedWindow: 10, RetryDelay: 10 * time.Millisecond})
}

func TestDashboard_Refresh(t *testing.T) {
	history := &mockHistory{}
	beacon := &mockBeacon{round: 77}
	d := newDashboard(&mockChain{}, history, beacon, &mockSubscriptions{}, &mockDisconnects{})
	ctx := context.Background()

	d.Refresh(ctx, core.Header{Number: 25})
	s := d.Snapshot()
	require.Equal(t, uint64(25), s.Head.Number)
	require.Equal(t, uint64(3), s.Session.SessionProgress)
	require.Len(t, s.Scheduled, 2)
	require.Len(t, s.Executed, 3)
	require.Equal(t, uint64(77), s.BeaconRound)
	require.Nil(t, s.Errors)
	require.Equal(t, [][2]uint64{{16, 25}}, history.ranges)

	// the beacon fails: its field keeps the last good value, the others move on
	beacon.err = errors.New("drand unreachable")
	d.Refresh(ctx, core.Header{Number: 26})
	s = d.Snapshot()
	require.Equal(t, uint64(26), s.Head.Number)
	require.Equal(t, uint64(77), s.BeaconRound)
	require.Equal(t, map[string]string{FieldBeacon: "drand unreachable"}, s.Errors)
	require.Equal(t, uint64(26), s.Randomness[0].Block)
}

func TestDashboard_RefreshFromGenesis(t *testing.T) {
	history := &mockHistory{}
	d := newDashboard(&mockChain{sessionErr: errors.New("boom")}, history, &mockBeacon{}, &mockSubscriptions{}, &mockDisconnects{})
	d.Refresh(context.Background(), core.Header{Number: 4})
	require.Equal(t, [][2]uint64{{1, 4}}, history.ranges)
	s := d.Snapshot()
	require.Equal(t, core.SessionInfo{}, s.Session)
	require.Contains(t, s.Errors, FieldSession)
}

func TestDashboard_Run(t *testing.T) {
	ch := &mockChain{}
	disc := &mockDisconnects{}
	d := newDashboard(ch, &mockHistory{}, &mockBeacon{round: 1}, &mockSubscriptions{}, disc)

	var mu sync.Mutex
	var states []ConnState
	heads := make(chan uint64, 10)
	d.OnSnapshot(func(s Snapshot) {
		mu.Lock()
		if len(states) == 0 || states[len(states)-1] != s.State {
			states = append(states, s.State)
		}
		mu.Unlock()
		if s.Head.Number > 0 {
			heads <- s.Head.Number
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return d.Snapshot().State == Connected }, time.Second, 5*time.Millisecond)
	ch.push(core.Header{Number: 9})
	select {
	case n := <-heads:
		require.Equal(t, uint64(9), n)
	case <-time.After(time.Second):
		t.Fatal("head not applied")
	}

	disc.fire()
	require.Eventually(t, func() bool {
		subscribed, _ := ch.counts()
		return subscribed == 2 && d.Snapshot().State == Connected
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
	subscribed, unsubscribed := ch.counts()
	require.Equal(t, subscribed, unsubscribed)
	require.Equal(t, Disconnected, d.Snapshot().State)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []ConnState{Connecting, Connected, Disconnected, Connecting, Connected, Disconnected}, states)
}

func TestDashboard_RunRetriesSubscribe(t *testing.T) {
	ch := &mockChain{subscribeErr: errors.New("node down")}
	d := newDashboard(ch, &mockHistory{}, &mockBeacon{}, &mockSubscriptions{}, &mockDisconnects{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	time.Sleep(30 * time.Millisecond)
	require.NotEqual(t, Connected, d.Snapshot().State)

	ch.mu.Lock()
	ch.subscribeErr = nil
	ch.mu.Unlock()
	require.Eventually(t, func() bool { return d.Snapshot().State == Connected }, time.Second, 5*time.Millisecond)
}

func TestDashboard_Account(t *testing.T) {
	ch := &mockChain{}
	subs := &mockSubscriptions{}
	d := newDashboard(ch, &mockHistory{}, &mockBeacon{}, subs, &mockDisconnects{})
	ctx := context.Background()

	view, err := d.Account(ctx, alice)
	require.Nil(t, err)
	require.Equal(t, "1.0000 IDN", view.Balance.Formatted)
	require.Len(t, view.Subscriptions, 1)
	require.Nil(t, view.Errors)

	subs.err = errors.New("scan failed")
	view, err = d.Account(ctx, alice)
	require.Nil(t, err)
	require.NotNil(t, view.Balance)
	require.Empty(t, view.Subscriptions)
	require.Equal(t, map[string]string{"subscriptions": "scan failed"}, view.Errors)

	_, err = d.Account(ctx, "bogus")
	require.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestDashboard_Pages(t *testing.T) {
	d := newDashboard(&mockChain{}, &mockHistory{}, &mockBeacon{}, &mockSubscriptions{}, &mockDisconnects{})
	d.Refresh(context.Background(), core.Header{Number: 30})

	page := d.Executed(core.TransactionFilter{}, 0, 2)
	require.Equal(t, 3, page.Total)
	require.Equal(t, []string{"3", "2"}, ids(page.Items))

	page = d.Executed(core.TransactionFilter{Owner: alice, Operation: "SUBSCRIPTION"}, 0, 0)
	require.Equal(t, []string{"3", "1"}, ids(page.Items))

	page = d.Executed(core.TransactionFilter{Status: "failed"}, 0, 10)
	require.Equal(t, []string{"2"}, ids(page.Items))

	page = d.Executed(core.TransactionFilter{}, 5, 10)
	require.Empty(t, page.Items)
	require.Equal(t, 3, page.Total)

	scheduled := d.Scheduled(alice, 0, 10)
	require.Equal(t, 1, scheduled.Total)
	require.Equal(t, "a", scheduled.Items[0].ID)
}

func ids(txs []core.ExecutedTransaction) []string {
	out := make([]string, 0, len(txs))
	for _, tx := range txs {
		out = append(out, tx.ID)
	}
	return out
}
