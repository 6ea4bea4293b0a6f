package chain

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"

	"github.com/ideal-lab5/idn-explorer/pkg/chain/rpc"
	"github.com/ideal-lab5/idn-explorer/pkg/core"
	"github.com/ideal-lab5/idn-explorer/pkg/sidecar"
)

// DefaultInclusionTimeout bounds how long a submitted extrinsic may take to land in a block.
const DefaultInclusionTimeout = 20 * time.Second

// Transaction pool statuses pushed by author_submitAndWatchExtrinsic.
const (
	TxFuture          = "future"
	TxReady           = "ready"
	TxBroadcast       = "broadcast"
	TxInBlock         = "inBlock"
	TxRetracted       = "retracted"
	TxFinalityTimeout = "finalityTimeout"
	TxFinalized       = "finalized"
	TxUsurped         = "usurped"
	TxDropped         = "dropped"
	TxInvalid         = "invalid"
)

type TxStatus struct {
	Kind  string
	Block string
}

func (s TxStatus) Included() bool {
	return s.Kind == TxInBlock || s.Kind == TxFinalized
}

func (s TxStatus) Rejected() bool {
	return s.Kind == TxDropped || s.Kind == TxInvalid || s.Kind == TxUsurped
}

// ParseTxStatus decodes "ready" style plain statuses and {"inBlock": "0x.."} style ones.
func ParseTxStatus(raw json.RawMessage) (TxStatus, error) {
	var plain string
	if err := json.Unmarshal(raw, &plain); err == nil {
		return TxStatus{Kind: plain}, nil
	}
	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(raw, &tagged); err != nil {
		return TxStatus{}, errors.Wrap(err, "decode tx status")
	}
	for kind, payload := range tagged {
		var block string
		_ = json.Unmarshal(payload, &block)
		return TxStatus{Kind: kind, Block: block}, nil
	}
	return TxStatus{}, errors.New("empty tx status")
}

// ExtrinsicHash is the blake2b-256 hash of the encoded extrinsic, as shown by explorers and sidecar.
func ExtrinsicHash(extrinsic string) (string, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(extrinsic, "0x"))
	if err != nil {
		return "", errors.Wrap(err, "decode extrinsic")
	}
	sum := blake2b.Sum256(raw)
	return "0x" + hex.EncodeToString(sum[:]), nil
}

// Inclusion describes where a submitted extrinsic landed.
type Inclusion struct {
	Hash      string
	BlockHash string
	Status    string
	Block     *sidecar.Block
	Extrinsic *sidecar.Extrinsic
}

// SubmitAndWait submits a signed extrinsic and waits until it is in a block.
// It fails with *core.DispatchError when the extrinsic was included but failed, with core.ErrTxRejected
// when the pool drops it, and with core.ErrInclusionTimeout when no block confirms it within timeout.
func SubmitAndWait(ctx context.Context, api API, extrinsic string, timeout time.Duration, logger *zap.Logger) (*Inclusion, error) {
	hash, err := ExtrinsicHash(extrinsic)
	if err != nil {
		return nil, err
	}
	stop := make(chan struct{})
	defer close(stop)
	statuses := make(chan TxStatus, 8)
	deliver := func(raw json.RawMessage) {
		status, err := ParseTxStatus(raw)
		if err != nil {
			logger.Warn("skip tx status", zap.String("tx", hash), zap.Error(err))
			return
		}
		select {
		case statuses <- status:
		case <-stop:
		}
	}
	cancel, err := api.Subscribe(ctx, "author_submitAndWatchExtrinsic", "author_unwatchExtrinsic", deliver, extrinsic)
	if err != nil {
		var rpcErr *rpc.Error
		if errors.As(err, &rpcErr) {
			return nil, errors.Wrapf(core.ErrTxRejected, "submit %s: %s", hash, rpcErr.Error())
		}
		return nil, errors.Wrap(err, "submit extrinsic")
	}
	defer cancel()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case status := <-statuses:
			logger.Debug("tx status", zap.String("tx", hash), zap.String("status", status.Kind))
			switch {
			case status.Included():
				return inspect(ctx, api, hash, status, logger)
			case status.Rejected():
				return nil, errors.Wrapf(core.ErrTxRejected, "transaction %s %s", hash, status.Kind)
			}
		case <-timer.C:
			return nil, errors.Wrapf(core.ErrInclusionTimeout, "transaction %s after %s", hash, timeout)
		case <-api.Done():
			return nil, errors.Wrap(api.Err(), "connection lost while waiting for inclusion")
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// inspect looks the extrinsic up in its block. Failing to read the block does not fail the submission:
// the chain has accepted it, only its outcome is unknown.
func inspect(ctx context.Context, api API, hash string, status TxStatus, logger *zap.Logger) (*Inclusion, error) {
	inc := &Inclusion{Hash: hash, BlockHash: status.Block, Status: status.Kind}
	block, err := api.Block(ctx, status.Block)
	if err != nil {
		logger.Warn("included block unavailable", zap.String("tx", hash), zap.String("block", status.Block), zap.Error(err))
		return inc, nil
	}
	inc.Block = block
	inc.Extrinsic = block.ExtrinsicByHash(hash)
	if inc.Extrinsic == nil {
		logger.Warn("extrinsic not found in its block", zap.String("tx", hash), zap.String("block", status.Block))
		return inc, nil
	}
	failure := inc.Extrinsic.Failure()
	if failure == nil {
		return inc, nil
	}
	md, err := api.RuntimeMetadata(ctx, status.Block)
	if err != nil {
		logger.Warn("runtime metadata unavailable", zap.Error(err))
		return nil, &core.DispatchError{Section: "system", Name: "ExtrinsicFailed"}
	}
	return nil, md.ModuleError(failure)
}

// FindEvent returns the first event of the included extrinsic emitted by pallet with the given name.
func (inc *Inclusion) FindEvent(pallet, method string) (*sidecar.Event, bool) {
	if inc == nil || inc.Extrinsic == nil {
		return nil, false
	}
	for i, ev := range inc.Extrinsic.Events {
		if strings.EqualFold(ev.Method.Pallet, pallet) && strings.EqualFold(ev.Method.Method, method) {
			return &inc.Extrinsic.Events[i], true
		}
	}
	return nil, false
}
