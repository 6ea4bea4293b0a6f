package core

// Transaction statuses reported for executed transactions.
const (
	TxStatusSuccess = "Success"
	TxStatusFailed  = "Failed"
)

// ExecutedTransaction is a signed extrinsic or a scheduler dispatch found in a block.
type ExecutedTransaction struct {
	Block     uint64 `json:"block"`
	ID        string `json:"id"`
	Owner     string `json:"owner"`
	Operation string `json:"operation"`
	Status    string `json:"status"`
	EventData string `json:"event_data"`
	Metadata  string `json:"metadata"`
	Delayed   bool   `json:"delayed"`
}

// DelayedTransaction is a call queued in the scheduler agenda.
// Block is the head the agenda was read at, DeadlineBlock the block it is scheduled for.
type DelayedTransaction struct {
	Block         uint64 `json:"block"`
	ID            string `json:"id"`
	Owner         string `json:"owner"`
	Operation     string `json:"operation"`
	DeadlineBlock uint64 `json:"deadline_block"`
}

// TransactionFilter selects executed transactions; empty fields match everything.
type TransactionFilter struct {
	Owner     string
	Operation string
	Status    string
}

func (f TransactionFilter) Match(tx ExecutedTransaction) bool {
	if f.Owner != "" && !SameAccount(f.Owner, tx.Owner) {
		return false
	}
	if f.Operation != "" && !containsFold(tx.Operation, f.Operation) {
		return false
	}
	if f.Status != "" && !equalFold(f.Status, tx.Status) {
		return false
	}
	return true
}
