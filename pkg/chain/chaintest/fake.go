// Package chaintest provides an in-memory chain.API for tests.
package chaintest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ideal-lab5/idn-explorer/pkg/chain"
	"github.com/ideal-lab5/idn-explorer/pkg/chain/rpc"
	"github.com/ideal-lab5/idn-explorer/pkg/core"
	"github.com/ideal-lab5/idn-explorer/pkg/sidecar"
)

// MethodFn answers one RPC method. The returned value is JSON encoded into the caller's result.
type MethodFn func(params []any) (any, error)

// SubscribeFn starts a fake subscription; it may call deliver from any goroutine.
type SubscribeFn func(deliver func(json.RawMessage), params []any) (rpc.CancelFn, error)

// FakeAPI implements chain.API. Unset handlers answer with "method not found" or core.ErrEntityNotFound.
type FakeAPI struct {
	Methods       map[string]MethodFn
	Subscriptions map[string]SubscribeFn

	OnBalanceInfo     func(address string) (*sidecar.BalanceInfo, error)
	OnBlock           func(id string) (*sidecar.Block, error)
	OnFinalizedHead   func() (*sidecar.Block, error)
	OnStorageItem     func(pallet, item string, keys []string, at string) (*sidecar.StorageItem, error)
	OnRuntimeMetadata func(at string) (*sidecar.Metadata, error)

	mu        sync.Mutex
	calls     map[string]int
	done      chan struct{}
	closeOnce sync.Once
	err       error
}

var _ chain.API = (*FakeAPI)(nil)
var _ chain.Signer = (*StaticSigner)(nil)

func NewFakeAPI() *FakeAPI {
	return &FakeAPI{
		Methods:       map[string]MethodFn{},
		Subscriptions: map[string]SubscribeFn{},
		calls:         map[string]int{},
		done:          make(chan struct{}),
	}
}

// Calls returns how many times name (an RPC method or a decoder method like "StorageItem") was invoked.
func (f *FakeAPI) Calls(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *FakeAPI) count(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
}

func (f *FakeAPI) Call(ctx context.Context, result any, method string, params ...any) error {
	f.count(method)
	fn, ok := f.Methods[method]
	if !ok {
		return &rpc.Error{Code: -32601, Message: "Method not found"}
	}
	v, err := fn(params)
	if err != nil {
		return err
	}
	return Fill(result, v)
}

func (f *FakeAPI) Subscribe(ctx context.Context, method, unsubscribe string, deliver func(json.RawMessage), params ...any) (rpc.CancelFn, error) {
	f.count(method)
	fn, ok := f.Subscriptions[method]
	if !ok {
		return nil, &rpc.Error{Code: -32601, Message: "Method not found"}
	}
	return fn(deliver, params)
}

func (f *FakeAPI) BalanceInfo(ctx context.Context, address string) (*sidecar.BalanceInfo, error) {
	f.count("BalanceInfo")
	if f.OnBalanceInfo == nil {
		return nil, core.ErrEntityNotFound
	}
	return f.OnBalanceInfo(address)
}

func (f *FakeAPI) Block(ctx context.Context, id string) (*sidecar.Block, error) {
	f.count("Block")
	if f.OnBlock == nil {
		return nil, core.ErrEntityNotFound
	}
	return f.OnBlock(id)
}

func (f *FakeAPI) BlockByNumber(ctx context.Context, number uint64) (*sidecar.Block, error) {
	return f.Block(ctx, fmt.Sprintf("%d", number))
}

func (f *FakeAPI) FinalizedHead(ctx context.Context) (*sidecar.Block, error) {
	f.count("FinalizedHead")
	if f.OnFinalizedHead == nil {
		return nil, core.ErrEntityNotFound
	}
	return f.OnFinalizedHead()
}

func (f *FakeAPI) StorageItem(ctx context.Context, pallet, item string, keys []string, at string) (*sidecar.StorageItem, error) {
	f.count("StorageItem")
	if f.OnStorageItem == nil {
		return nil, core.ErrEntityNotFound
	}
	return f.OnStorageItem(pallet, item, keys, at)
}

func (f *FakeAPI) RuntimeMetadata(ctx context.Context, at string) (*sidecar.Metadata, error) {
	f.count("RuntimeMetadata")
	if f.OnRuntimeMetadata == nil {
		return nil, core.ErrEntityNotFound
	}
	return f.OnRuntimeMetadata(at)
}

func (f *FakeAPI) Done() <-chan struct{} {
	return f.done
}

func (f *FakeAPI) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *FakeAPI) Close() error {
	f.Drop(rpc.ErrClosed)
	return nil
}

// Drop simulates a lost transport.
func (f *FakeAPI) Drop(err error) {
	f.closeOnce.Do(func() {
		f.mu.Lock()
		f.err = err
		f.mu.Unlock()
		close(f.done)
	})
}

// Fill JSON encodes v into result, the way a real RPC response would be decoded.
func Fill(result any, v any) error {
	if result == nil {
		return nil
	}
	bs, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(bs, result)
}

// Raw JSON encodes v, panicking on failure. Handy for building sidecar fixtures.
func Raw(v any) json.RawMessage {
	bs, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return bs
}

// StaticSigner is a chain.Signer that returns a fixed extrinsic.
type StaticSigner struct {
	Addr      string
	Extrinsic string
	Err       error

	mu    sync.Mutex
	Calls []chain.Call
}

func (s *StaticSigner) Address() string {
	return s.Addr
}

func (s *StaticSigner) Sign(ctx context.Context, api chain.RPC, call chain.Call) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = append(s.Calls, call)
	if s.Err != nil {
		return "", s.Err
	}
	return s.Extrinsic, nil
}

// Signed returns the calls signed so far.
func (s *StaticSigner) Signed() []chain.Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]chain.Call(nil), s.Calls...)
}

// Watch returns a SubscribeFn for author_submitAndWatchExtrinsic that pushes statuses in order.
func Watch(statuses ...any) SubscribeFn {
	return func(deliver func(json.RawMessage), params []any) (rpc.CancelFn, error) {
		go func() {
			for _, s := range statuses {
				deliver(Raw(s))
			}
		}()
		return func() {}, nil
	}
}

// Provider always returns the same API.
type Provider struct {
	API chain.API
	Err error
}

func (p Provider) GetAPI(ctx context.Context) (chain.API, error) {
	if p.Err != nil {
		return nil, p.Err
	}
	return p.API, nil
}
