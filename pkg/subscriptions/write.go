package subscriptions

import (
	"context"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/ideal-lab5/idn-explorer/pkg/chain"
	"github.com/ideal-lab5/idn-explorer/pkg/core"
)

// Receipt describes an included subscription transaction.
type Receipt struct {
	TxHash         string `json:"tx_hash"`
	BlockHash      string `json:"block_hash"`
	Status         string `json:"status"`
	SubscriptionID string `json:"subscription_id,omitempty"`
	// Confirmed is set when the expected pallet event was found in the block.
	Confirmed bool `json:"confirmed"`
}

type CreateParams struct {
	Credits   uint64
	Target    core.Location
	CallIndex core.CallIndex
	Frequency uint32
	Metadata  *string
	// SubscriptionID is optional; the chain derives one when it is empty.
	SubscriptionID string
}

func (p CreateParams) validate() error {
	if p.Credits == 0 {
		return errors.Wrap(core.ErrInvalidArgument, "credits must be positive")
	}
	if p.Frequency == 0 {
		return errors.Wrap(core.ErrInvalidArgument, "frequency must be positive")
	}
	if p.SubscriptionID != "" && !core.ValidSubscriptionID(p.SubscriptionID) {
		return errors.Wrapf(core.ErrInvalidArgument, "subscription id %q", p.SubscriptionID)
	}
	return p.Target.Validate()
}

// UpdateParams changes the fields that are set.
type UpdateParams struct {
	Credits   *uint64
	Frequency *uint32
	// Metadata replaces the metadata when set; an empty string clears it.
	Metadata *string
}

// CreateSubscription submits create_subscription signed by signer and waits for block inclusion.
func (s *Service) CreateSubscription(ctx context.Context, signer chain.Signer, params CreateParams) (receipt *Receipt, err error) {
	ctx, span := s.startSpan(ctx, "CreateSubscription", attribute.String("signer", signer.Address()))
	defer func() { endSpan(span, err) }()

	if err := params.validate(); err != nil {
		return nil, err
	}
	metadata := chain.None
	if params.Metadata != nil {
		metadata = chain.Some([]byte(*params.Metadata))
	}
	subID := chain.None
	if params.SubscriptionID != "" {
		subID = chain.Some(chain.Hash(core.NormalizeSubscriptionID(params.SubscriptionID)))
	}
	call := chain.Call{
		Pallet: palletName,
		Name:   "create_subscription",
		Args:   []any{params.Credits, params.Target, params.CallIndex, params.Frequency, metadata, subID},
	}
	receipt, err = s.submit(ctx, signer, call, "SubscriptionCreated")
	if err != nil {
		return nil, err
	}
	if receipt.SubscriptionID == "" && params.SubscriptionID != "" {
		receipt.SubscriptionID = core.NormalizeSubscriptionID(params.SubscriptionID)
	}
	s.InvalidateAccount(signer.Address())
	return receipt, nil
}

func (s *Service) PauseSubscription(ctx context.Context, signer chain.Signer, id string) (*Receipt, error) {
	return s.manage(ctx, signer, id, "pause_subscription", "SubscriptionPaused")
}

func (s *Service) KillSubscription(ctx context.Context, signer chain.Signer, id string) (*Receipt, error) {
	return s.manage(ctx, signer, id, "kill_subscription", "SubscriptionTerminated")
}

func (s *Service) ReactivateSubscription(ctx context.Context, signer chain.Signer, id string) (*Receipt, error) {
	return s.manage(ctx, signer, id, "reactivate_subscription", "SubscriptionReactivated")
}

func (s *Service) UpdateSubscription(ctx context.Context, signer chain.Signer, id string, params UpdateParams) (*Receipt, error) {
	credits, frequency, metadata := chain.None, chain.None, chain.None
	if params.Credits != nil {
		if *params.Credits == 0 {
			return nil, errors.Wrap(core.ErrInvalidArgument, "credits must be positive")
		}
		credits = chain.Some(*params.Credits)
	}
	if params.Frequency != nil {
		if *params.Frequency == 0 {
			return nil, errors.Wrap(core.ErrInvalidArgument, "frequency must be positive")
		}
		frequency = chain.Some(*params.Frequency)
	}
	if params.Metadata != nil {
		inner := chain.None
		if *params.Metadata != "" {
			inner = chain.Some([]byte(*params.Metadata))
		}
		metadata = chain.Some(inner)
	}
	return s.manage(ctx, signer, id, "update_subscription", "SubscriptionUpdated", credits, frequency, metadata)
}

// manage runs a call on an existing subscription. Only its subscriber may do that; anyone else
// gets core.ErrUnauthorized and nothing is submitted.
func (s *Service) manage(ctx context.Context, signer chain.Signer, id, name, event string, extra ...any) (receipt *Receipt, err error) {
	ctx, span := s.startSpan(ctx, name,
		attribute.String("signer", signer.Address()),
		attribute.String("subscription.id", id))
	defer func() { endSpan(span, err) }()

	sub, err := s.GetSubscription(ctx, id)
	if err != nil {
		return nil, err
	}
	if !core.SameAccount(signer.Address(), sub.Details.Subscriber) {
		return nil, errors.Wrapf(core.ErrUnauthorized, "%s is not the subscriber of %s", signer.Address(), sub.ID)
	}
	defer func() {
		s.InvalidateAccount(sub.Details.Subscriber)
		s.InvalidateAccount(signer.Address())
	}()

	args := append([]any{chain.Hash(sub.ID)}, extra...)
	receipt, err = s.submit(ctx, signer, chain.Call{Pallet: palletName, Name: name, Args: args}, event)
	if err != nil {
		return nil, err
	}
	receipt.SubscriptionID = sub.ID
	return receipt, nil
}

func (s *Service) submit(ctx context.Context, signer chain.Signer, call chain.Call, event string) (*Receipt, error) {
	api, err := s.provider.GetAPI(ctx)
	if err != nil {
		return nil, err
	}
	extrinsic, err := signer.Sign(ctx, api, call)
	if err != nil {
		return nil, errors.Wrapf(err, "sign %s", call.Name)
	}
	inc, err := chain.SubmitAndWait(ctx, api, extrinsic, s.inclusionTimeout, s.logger)
	if err != nil {
		s.logger.Info("subscription transaction failed", zap.String("call", call.Name), zap.Error(err))
		return nil, err
	}
	receipt := &Receipt{TxHash: inc.Hash, BlockHash: inc.BlockHash, Status: inc.Status}
	if ev, ok := inc.FindEvent(sidecarName, event); ok {
		receipt.Confirmed = true
		receipt.SubscriptionID = eventSubscriptionID(ev.Data)
	} else {
		s.logger.Debug("confirming event not found", zap.String("call", call.Name), zap.String("event", event), zap.String("tx", inc.Hash))
	}
	s.logger.Info("subscription transaction included",
		zap.String("call", call.Name),
		zap.String("tx", inc.Hash),
		zap.String("block", inc.BlockHash))
	return receipt, nil
}
