package explorer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/sourcegraph/conc/iter"

	"github.com/ideal-lab5/idn-explorer/pkg/core"
	"github.com/ideal-lab5/idn-explorer/pkg/sidecar"
)

var errInvalidRange = errors.Wrap(core.ErrInvalidArgument, "invalid block range")

// bookkeeping events every extrinsic emits; they say nothing about what the call did.
var bookkeeping = map[string]struct{}{
	"system":             {},
	"transactionPayment": {},
	"balances":           {},
}

// QueryHistoricalEvents returns the signed extrinsics and scheduler dispatches of blocks start..end.
func (e *Explorer) QueryHistoricalEvents(ctx context.Context, start, end uint64) ([]core.ExecutedTransaction, error) {
	if err := e.blockRange(start, end); err != nil {
		return nil, err
	}
	api, err := e.provider.GetAPI(ctx)
	if err != nil {
		return nil, err
	}
	numbers := make([]uint64, 0, end-start+1)
	for n := start; n <= end; n++ {
		numbers = append(numbers, n)
	}
	mapper := iter.Mapper[uint64, []core.ExecutedTransaction]{MaxGoroutines: e.concurrency}
	perBlock, err := mapper.MapErr(numbers, func(n *uint64) ([]core.ExecutedTransaction, error) {
		b, err := e.block(ctx, api, *n)
		if err != nil {
			return nil, err
		}
		return ExecutedTransactions(*n, b), nil
	})
	if err != nil {
		return nil, err
	}
	var txs []core.ExecutedTransaction
	for _, list := range perBlock {
		txs = append(txs, list...)
	}
	return txs, nil
}

// ExecutedTransactions extracts the transactions of a block: signed extrinsics, and calls the
// scheduler dispatched while initializing the block, which are marked delayed.
func ExecutedTransactions(number uint64, b *sidecar.Block) []core.ExecutedTransaction {
	var txs []core.ExecutedTransaction
	for i, ev := range b.OnInitialize.Events {
		if !strings.EqualFold(ev.Method.Pallet, "scheduler") || ev.Method.Method != "Dispatched" {
			continue
		}
		txs = append(txs, dispatched(number, i, ev))
	}
	for i, ex := range b.Extrinsics {
		if !ex.Signed() {
			continue
		}
		status := core.TxStatusSuccess
		if ex.Failure() != nil {
			status = core.TxStatusFailed
		}
		id := ex.Hash
		if id == "" {
			id = fmt.Sprintf("%d-%d", number, i)
		}
		txs = append(txs, core.ExecutedTransaction{
			Block:     number,
			ID:        id,
			Owner:     ex.Signature.Signer.ID,
			Operation: ex.Method.String(),
			Status:    status,
			EventData: eventSummary(ex.Events),
			Metadata:  compact(ex.Args),
		})
	}
	return txs
}

func dispatched(number uint64, index int, ev sidecar.Event) core.ExecutedTransaction {
	tx := core.ExecutedTransaction{
		Block:     number,
		ID:        fmt.Sprintf("%d-%d", number, index),
		Operation: ev.Method.String(),
		Status:    core.TxStatusSuccess,
		EventData: compact(ev.Data),
		Delayed:   true,
	}
	v, err := core.DecodeLoose(ev.Data)
	if err != nil {
		return tx
	}
	var result any
	switch x := v.(type) {
	case map[string]any:
		result, _ = core.Pick(x, "result")
		if id, ok := core.Pick(x, "id"); ok {
			tx.Metadata = core.ExtractMetadataString(id)
		}
	case []any:
		// task, id, result
		if len(x) == 3 {
			result = x[2]
			tx.Metadata = core.ExtractMetadataString(x[1])
		}
	}
	if m, ok := result.(map[string]any); ok {
		if _, failed := m["err"]; failed {
			tx.Status = core.TxStatusFailed
		}
	}
	return tx
}

// eventSummary lists the meaningful events of an extrinsic, e.g. ["idnManager.SubscriptionCreated"].
func eventSummary(events []sidecar.Event) string {
	names := make([]string, 0, len(events))
	for _, ev := range events {
		if _, skip := bookkeeping[ev.Method.Pallet]; skip {
			continue
		}
		names = append(names, ev.Method.String())
	}
	bs, _ := json.Marshal(names)
	return string(bs)
}

func compact(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}
