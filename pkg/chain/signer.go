package chain

import (
	"context"
)

// Call is a runtime call to be signed, addressed by pallet and call name as they appear in the metadata.
type Call struct {
	Pallet string
	Name   string
	Args   []any
}

// Signer signs calls on behalf of one account.
type Signer interface {
	// Address is the SS58 address of the signing account.
	Address() string
	// Sign returns the hex encoded signed extrinsic ready for submission.
	Sign(ctx context.Context, api RPC, call Call) (string, error)
}

// Opt is an optional call argument, encoded as SCALE Option.
type Opt struct {
	Value any
	Set   bool
}

func Some(v any) Opt {
	return Opt{Value: v, Set: true}
}

var None = Opt{}

// Hash is a 32-byte hex encoded hash argument such as a subscription id.
type Hash string
