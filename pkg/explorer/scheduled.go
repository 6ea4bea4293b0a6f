package explorer

import (
	"context"
	"cmp"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"golang.org/x/exp/slices"

	"github.com/ideal-lab5/idn-explorer/pkg/chain"
	"github.com/ideal-lab5/idn-explorer/pkg/core"
	"github.com/ideal-lab5/idn-explorer/pkg/sidecar"
)

// GetScheduledTransactions lists the calls queued in the scheduler agenda for future blocks.
func (e *Explorer) GetScheduledTransactions(ctx context.Context) ([]core.DelayedTransaction, error) {
	api, err := e.provider.GetAPI(ctx)
	if err != nil {
		return nil, err
	}
	head, err := chain.GetHeader(ctx, api, "")
	if err != nil {
		return nil, err
	}
	keys, err := chain.StorageKeysPaged(ctx, api, chain.StoragePrefix("Scheduler", "Agenda"), maxAgendaEntries, "", "")
	if err != nil {
		return nil, errors.Wrap(err, "list agenda")
	}
	md, err := api.RuntimeMetadata(ctx, "")
	if err != nil {
		// operations are reported as unknown
		md = &sidecar.Metadata{}
	}
	txs := []core.DelayedTransaction{}
	for _, key := range keys {
		deadline, err := chain.Twox64ConcatU32(key)
		if err != nil || uint64(deadline) < head.Number {
			continue
		}
		item, err := api.StorageItem(ctx, "scheduler", "agenda", []string{strconv.FormatUint(uint64(deadline), 10)}, "")
		if err != nil {
			return nil, errors.Wrapf(err, "agenda of block %d", deadline)
		}
		if item.Empty() {
			continue
		}
		v, err := core.DecodeLoose(item.Value)
		if err != nil {
			return nil, errors.Wrapf(err, "agenda of block %d", deadline)
		}
		entries, _ := v.([]any)
		for i, entry := range entries {
			m, ok := entry.(map[string]any)
			if !ok {
				// cancelled tasks leave a null slot
				continue
			}
			txs = append(txs, agendaEntry(md, head.Number, uint64(deadline), i, m))
		}
	}
	slices.SortStableFunc(txs, func(a, b core.DelayedTransaction) int {
		return cmp.Compare(a.DeadlineBlock, b.DeadlineBlock)
	})
	return txs, nil
}

func agendaEntry(md *sidecar.Metadata, head, deadline uint64, index int, m map[string]any) core.DelayedTransaction {
	tx := core.DelayedTransaction{
		Block:         head,
		ID:            strconv.FormatUint(deadline, 10) + "-" + strconv.Itoa(index),
		DeadlineBlock: deadline,
		Operation:     "unknown",
	}
	if id, ok := core.Pick(m, "maybe_id"); ok {
		tx.ID = core.AsString(id)
	}
	if origin, ok := core.Pick(m, "origin"); ok {
		tx.Owner = signedOrigin(origin)
	}
	if call, ok := core.Pick(m, "call"); ok {
		if name, ok := callName(md, call); ok {
			tx.Operation = name
		}
	}
	return tx
}

// signedOrigin finds the account of a {"system": {"signed": "5..."}} origin.
func signedOrigin(v any) string {
	m, ok := v.(map[string]any)
	if !ok {
		return ""
	}
	if signed, ok := core.Pick(m, "signed"); ok {
		return core.AsString(signed)
	}
	for _, inner := range m {
		if owner := signedOrigin(inner); owner != "" {
			return owner
		}
	}
	return ""
}

// callName resolves a bounded call. Inline calls start with the pallet and call indices;
// calls stored by hash are named by their hash.
func callName(md *sidecar.Metadata, v any) (string, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return "", false
	}
	if inline, ok := core.Pick(m, "inline"); ok {
		raw, err := hex.DecodeString(strings.TrimPrefix(core.AsString(inline), "0x"))
		if err != nil || len(raw) < 2 {
			return "", false
		}
		return md.CallName(raw[0], raw[1])
	}
	if lookup, ok := core.Pick(m, "lookup", "legacy"); ok {
		if l, ok := lookup.(map[string]any); ok {
			if hash, ok := core.Pick(l, "hash"); ok {
				return "preimage:" + core.AsString(hash), true
			}
		}
	}
	return "", false
}
