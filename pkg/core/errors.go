package core

import (
	"fmt"

	"github.com/go-faster/errors"
)

var (
	ErrEntityNotFound   = errors.New("entity not found")
	ErrUnauthorized     = errors.New("signer is not the subscriber")
	ErrUnsupported      = errors.New("operation is not supported")
	ErrInclusionTimeout = errors.New("transaction was not included in a block in time")
	ErrTxRejected       = errors.New("transaction rejected")
	ErrInvalidArgument  = errors.New("invalid argument")
)

// DispatchError is a failed on-chain call decoded with the runtime metadata.
type DispatchError struct {
	Section string
	Name    string
	Docs    string
}

func (e *DispatchError) Error() string {
	if e.Docs == "" {
		return fmt.Sprintf("%s.%s", e.Section, e.Name)
	}
	return fmt.Sprintf("%s.%s: %s", e.Section, e.Name, e.Docs)
}
