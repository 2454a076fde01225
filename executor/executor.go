// Package executor runs one transaction against a read-only view of the
// ledger and returns the resulting state diff.
package executor

import (
	"github.com/airchains-network/devchain/state"
	"github.com/airchains-network/devchain/types"
	"github.com/ethereum/go-ethereum/common"
)

// Result is the outcome of executing one transaction. Diff is always set,
// including for reverted transactions, which still pay for gas and consume
// their nonce.
type Result struct {
	Diff            *types.StateDiff
	GasUsed         uint64
	Status          uint64
	RevertReason    string
	ContractAddress *common.Address
	Logs            []*types.Log
}

// Executor is the transaction execution backend. A returned error wrapping
// types.ErrExecutionReverted carries a failed Result. A *fork.MissError is
// passed through unchanged so the caller can resolve it and retry. Any
// other error is treated as a fault of the engine.
type Executor interface {
	Execute(reader state.Reader, tx *types.PendingTransaction, bctx types.BlockContext) (*Result, error)
}
