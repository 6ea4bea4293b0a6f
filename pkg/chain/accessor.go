package chain

import (
	"context"
	"sync"
	"time"

	"github.com/avast/retry-go"
	"github.com/go-faster/errors"
	sentrylib "github.com/getsentry/sentry-go"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/ideal-lab5/idn-explorer/pkg/chain/rpc"
	"github.com/ideal-lab5/idn-explorer/pkg/sentry"
)

const (
	defaultDialTimeout  = 30 * time.Second
	defaultDialAttempts = 3
	defaultDialDelay    = 500 * time.Millisecond
)

// Accessor owns the single chain connection of the process.
// The first GetAPI dials, concurrent callers wait for the same dial, and a lost
// connection is forgotten so the next GetAPI dials again.
type Accessor struct {
	dial   DialFunc
	logger *zap.Logger
	group  singleflight.Group

	dialTimeout  time.Duration
	dialAttempts uint
	dialDelay    time.Duration

	// mu protects the fields below.
	mu           sync.Mutex
	api          API
	nextListener int
	onReady      map[int]func(API)
	onDisconnect map[int]func()
	onError      map[int]func(error)
}

type AccessorOption func(a *Accessor)

// WithDialRetry sets how many times a dial is attempted and the pause between attempts.
func WithDialRetry(attempts uint, delay time.Duration) AccessorOption {
	return func(a *Accessor) {
		a.dialAttempts = attempts
		a.dialDelay = delay
	}
}

func WithDialTimeout(timeout time.Duration) AccessorOption {
	return func(a *Accessor) {
		a.dialTimeout = timeout
	}
}

func NewAccessor(dial DialFunc, logger *zap.Logger, opts ...AccessorOption) *Accessor {
	a := &Accessor{
		dial:         dial,
		logger:       logger,
		dialTimeout:  defaultDialTimeout,
		dialAttempts: defaultDialAttempts,
		dialDelay:    defaultDialDelay,
		onReady:      map[int]func(API){},
		onDisconnect: map[int]func(){},
		onError:      map[int]func(error){},
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// GetAPI returns the live handle, connecting first if needed.
// ctx only bounds the wait: an abandoned dial still completes for the other callers.
func (a *Accessor) GetAPI(ctx context.Context) (API, error) {
	if api := a.current(); api != nil {
		return api, nil
	}
	ch := a.group.DoChan("api", func() (interface{}, error) {
		return a.connect()
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(API), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (a *Accessor) IsReady() bool {
	return a.current() != nil
}

// Disconnect closes the current handle. Disconnect callbacks fire once the transport is down.
func (a *Accessor) Disconnect() error {
	a.mu.Lock()
	api := a.api
	a.api = nil
	a.mu.Unlock()
	if api == nil {
		return nil
	}
	return api.Close()
}

// OnReady registers cb for every successful connection. If the accessor is already connected
// cb is called immediately.
func (a *Accessor) OnReady(cb func(API)) func() {
	a.mu.Lock()
	id := a.register()
	a.onReady[id] = cb
	api := a.api
	a.mu.Unlock()
	if api != nil {
		cb(api)
	}
	return func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		delete(a.onReady, id)
	}
}

func (a *Accessor) OnDisconnect(cb func()) func() {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := a.register()
	a.onDisconnect[id] = cb
	return func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		delete(a.onDisconnect, id)
	}
}

func (a *Accessor) OnError(cb func(error)) func() {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := a.register()
	a.onError[id] = cb
	return func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		delete(a.onError, id)
	}
}

func (a *Accessor) register() int {
	a.nextListener++
	return a.nextListener
}

func (a *Accessor) current() API {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.api
}

func (a *Accessor) connect() (API, error) {
	if api := a.current(); api != nil {
		return api, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), a.dialTimeout)
	defer cancel()

	var api API
	err := retry.Do(func() error {
		var err error
		api, err = a.dial(ctx)
		return err
	},
		retry.Context(ctx),
		retry.Attempts(a.dialAttempts),
		retry.Delay(a.dialDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			a.logger.Warn("chain dial attempt failed", zap.Uint("attempt", n+1), zap.Error(err))
		}),
	)
	if err != nil {
		err = errors.Wrap(err, "connect to chain")
		a.logger.Error("chain connection failed", zap.Error(err))
		sentry.Send("chain connection failed", sentry.SentryInfoData{"error": err.Error()}, sentrylib.LevelError)
		a.fireError(err)
		return nil, err
	}

	a.mu.Lock()
	a.api = api
	a.mu.Unlock()
	a.logger.Info("chain connected")

	go a.watch(api)
	a.fireReady(api)
	return api, nil
}

func (a *Accessor) watch(api API) {
	<-api.Done()
	a.mu.Lock()
	if a.api == api {
		a.api = nil
	}
	a.mu.Unlock()

	if err := api.Err(); err != nil && !errors.Is(err, rpc.ErrClosed) {
		a.logger.Warn("chain connection lost", zap.Error(err))
		sentry.Send("chain connection lost", sentry.SentryInfoData{"error": err.Error()}, sentrylib.LevelWarning)
		a.fireError(err)
	}
	a.fireDisconnect()
}

func (a *Accessor) fireReady(api API) {
	a.mu.Lock()
	cbs := make([]func(API), 0, len(a.onReady))
	for _, cb := range a.onReady {
		cbs = append(cbs, cb)
	}
	a.mu.Unlock()
	for _, cb := range cbs {
		cb(api)
	}
}

func (a *Accessor) fireDisconnect() {
	a.mu.Lock()
	cbs := make([]func(), 0, len(a.onDisconnect))
	for _, cb := range a.onDisconnect {
		cbs = append(cbs, cb)
	}
	a.mu.Unlock()
	for _, cb := range cbs {
		cb()
	}
}

func (a *Accessor) fireError(err error) {
	a.mu.Lock()
	cbs := make([]func(error), 0, len(a.onError))
	for _, cb := range a.onError {
		cbs = append(cbs, cb)
	}
	a.mu.Unlock()
	for _, cb := range cbs {
		cb(err)
	}
}
