package chain

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/ideal-lab5/idn-explorer/pkg/chain/rpc"
	"github.com/ideal-lab5/idn-explorer/pkg/sidecar"
)

// RPC is the raw node interface: method calls and push subscriptions.
type RPC interface {
	Call(ctx context.Context, result any, method string, params ...any) error
	Subscribe(ctx context.Context, method, unsubscribe string, deliver func(json.RawMessage), params ...any) (rpc.CancelFn, error)
}

// Decoder returns chain data decoded with the runtime metadata.
type Decoder interface {
	BalanceInfo(ctx context.Context, address string) (*sidecar.BalanceInfo, error)
	Block(ctx context.Context, id string) (*sidecar.Block, error)
	BlockByNumber(ctx context.Context, number uint64) (*sidecar.Block, error)
	FinalizedHead(ctx context.Context) (*sidecar.Block, error)
	StorageItem(ctx context.Context, pallet, item string, keys []string, at string) (*sidecar.StorageItem, error)
	RuntimeMetadata(ctx context.Context, at string) (*sidecar.Metadata, error)
}

// API is a live connection handle to the chain.
// Done is closed when the underlying transport is lost; the handle must not be reused after that.
type API interface {
	RPC
	Decoder
	Done() <-chan struct{}
	Err() error
	Close() error
}

// Conn is the production API: node RPC over websocket plus the sidecar decoder.
type Conn struct {
	*rpc.Client
	decoder *sidecar.Client
}

func (c *Conn) BalanceInfo(ctx context.Context, address string) (*sidecar.BalanceInfo, error) {
	return c.decoder.BalanceInfo(ctx, address)
}

func (c *Conn) Block(ctx context.Context, id string) (*sidecar.Block, error) {
	return c.decoder.Block(ctx, id)
}

func (c *Conn) BlockByNumber(ctx context.Context, number uint64) (*sidecar.Block, error) {
	return c.decoder.BlockByNumber(ctx, number)
}

func (c *Conn) FinalizedHead(ctx context.Context) (*sidecar.Block, error) {
	return c.decoder.FinalizedHead(ctx)
}

func (c *Conn) StorageItem(ctx context.Context, pallet, item string, keys []string, at string) (*sidecar.StorageItem, error) {
	return c.decoder.StorageItem(ctx, pallet, item, keys, at)
}

func (c *Conn) RuntimeMetadata(ctx context.Context, at string) (*sidecar.Metadata, error) {
	return c.decoder.RuntimeMetadata(ctx, at)
}

var _ API = (*Conn)(nil)

// DialFunc establishes a new API handle.
type DialFunc func(ctx context.Context) (API, error)

// Dialer returns a DialFunc connecting to the node websocket endpoint and the sidecar.
func Dialer(endpoint string, decoder *sidecar.Client, logger *zap.Logger) DialFunc {
	return func(ctx context.Context) (API, error) {
		client, err := rpc.Dial(ctx, endpoint, logger)
		if err != nil {
			return nil, err
		}
		return &Conn{Client: client, decoder: decoder}, nil
	}
}

// Provider hands out the current API handle. *Accessor is the production Provider.
type Provider interface {
	GetAPI(ctx context.Context) (API, error)
}

var _ Provider = (*Accessor)(nil)
