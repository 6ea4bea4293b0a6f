package api

import (
	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/ideal-lab5/idn-explorer/pkg/chain"
)

type Handler struct {
	logger        *zap.Logger
	state         chainState
	subscriptions subscriptionService
	explorer      explorer
	events        randomnessEvents
	beacon        beacon
	dashboard     dashboardView
	// signer is nil when the service runs read-only.
	signer chain.Signer
	limits Limits
}

// Options configures the Handler.
type Options struct {
	chainState    chainState
	subscriptions subscriptionService
	explorer      explorer
	events        randomnessEvents
	beacon        beacon
	dashboard     dashboardView
	signer        chain.Signer
	limits        Limits
}

type Option func(o *Options)

func WithChainState(state chainState) Option {
	return func(o *Options) {
		o.chainState = state
	}
}

func WithSubscriptions(s subscriptionService) Option {
	return func(o *Options) {
		o.subscriptions = s
	}
}

func WithExplorer(e explorer) Option {
	return func(o *Options) {
		o.explorer = e
	}
}

func WithRandomnessEvents(e randomnessEvents) Option {
	return func(o *Options) {
		o.events = e
	}
}

func WithBeacon(b beacon) Option {
	return func(o *Options) {
		o.beacon = b
	}
}

func WithDashboard(d dashboardView) Option {
	return func(o *Options) {
		o.dashboard = d
	}
}

// WithSigner enables the subscription write endpoints.
func WithSigner(s chain.Signer) Option {
	return func(o *Options) {
		o.signer = s
	}
}

func WithLimits(limits Limits) Option {
	return func(o *Options) {
		o.limits = limits
	}
}

func NewHandler(logger *zap.Logger, opts ...Option) (*Handler, error) {
	options := &Options{}
	for _, o := range opts {
		o(options)
	}
	switch {
	case options.chainState == nil:
		return nil, errors.New("chain state is not configured")
	case options.subscriptions == nil:
		return nil, errors.New("subscription service is not configured")
	case options.explorer == nil:
		return nil, errors.New("explorer is not configured")
	case options.events == nil:
		return nil, errors.New("randomness events are not configured")
	case options.beacon == nil:
		return nil, errors.New("beacon client is not configured")
	case options.dashboard == nil:
		return nil, errors.New("dashboard is not configured")
	}
	return &Handler{
		logger:        logger,
		state:         options.chainState,
		subscriptions: options.subscriptions,
		explorer:      options.explorer,
		events:        options.events,
		beacon:        options.beacon,
		dashboard:     options.dashboard,
		signer:        options.signer,
		limits:        options.limits,
	}, nil
}
