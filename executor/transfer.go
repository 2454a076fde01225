package executor

import (
	"fmt"

	"github.com/airchains-network/devchain/state"
	"github.com/airchains-network/devchain/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Gas schedule for the parts of a transaction the transfer executor prices
const (
	TxGas                 uint64 = 21000
	TxGasContractCreation uint64 = 53000
	TxDataZeroGas         uint64 = 4
	TxDataNonZeroGas      uint64 = 16
	InitCodeWordGas       uint64 = 2
)

// TransferExecutor moves value, deploys init code verbatim as runtime code
// and charges intrinsic gas. It does not interpret bytecode.
type TransferExecutor struct{}

// NewTransferExecutor creates a transfer executor
func NewTransferExecutor() *TransferExecutor {
	return &TransferExecutor{}
}

// IntrinsicGas returns the gas charged before any execution
func IntrinsicGas(data []byte, isCreate bool) uint64 {
	gas := TxGas
	if isCreate {
		gas = TxGasContractCreation
		gas += InitCodeWordGas * ((uint64(len(data)) + 31) / 32)
	}
	for _, b := range data {
		if b == 0 {
			gas += TxDataZeroGas
		} else {
			gas += TxDataNonZeroGas
		}
	}
	return gas
}

// ledger tracks balances already touched by this transaction so that
// repeated addresses see earlier writes
type ledger struct {
	reader   state.Reader
	diff     *types.StateDiff
	balances map[common.Address]*uint256.Int
}

func (l *ledger) balance(addr common.Address) (*uint256.Int, error) {
	if b, ok := l.balances[addr]; ok {
		return b, nil
	}
	b, err := l.reader.Balance(addr)
	if err != nil {
		return nil, err
	}
	l.balances[addr] = b
	return b, nil
}

func (l *ledger) sub(addr common.Address, amount *uint256.Int) error {
	b, err := l.balance(addr)
	if err != nil {
		return err
	}
	b.Sub(b, amount)
	l.diff.SetBalance(addr, b)
	return nil
}

func (l *ledger) add(addr common.Address, amount *uint256.Int) error {
	b, err := l.balance(addr)
	if err != nil {
		return err
	}
	if _, overflow := b.AddOverflow(b, amount); overflow {
		return fmt.Errorf("%w: balance of %s overflows", types.ErrEngineFault, addr.Hex())
	}
	l.diff.SetBalance(addr, b)
	return nil
}

// Execute applies tx on top of reader
func (e *TransferExecutor) Execute(reader state.Reader, tx *types.PendingTransaction, bctx types.BlockContext) (*Result, error) {
	if tx == nil {
		return nil, fmt.Errorf("%w: transaction is nil", types.ErrEngineFault)
	}
	l := &ledger{
		reader:   reader,
		diff:     types.NewStateDiff(),
		balances: make(map[common.Address]*uint256.Int),
	}
	res := &Result{Diff: l.diff, Status: types.ReceiptStatusSuccessful}

	nonce, err := reader.Nonce(tx.From)
	if err != nil {
		return nil, err
	}
	l.diff.SetNonce(tx.From, nonce+1)

	intrinsic := IntrinsicGas(tx.Data, tx.IsCreate())
	if tx.Gas < intrinsic {
		res.GasUsed = 0
		return revert(res, fmt.Sprintf("intrinsic gas too low: have %d, want %d", tx.Gas, intrinsic))
	}
	res.GasUsed = intrinsic

	gasPrice := new(uint256.Int)
	if tx.GasPrice != nil {
		gasPrice.Set(tx.GasPrice)
	}
	fee, overflow := new(uint256.Int).MulOverflow(gasPrice, uint256.NewInt(res.GasUsed))
	if overflow {
		return nil, fmt.Errorf("%w: fee overflows", types.ErrEngineFault)
	}
	value := new(uint256.Int)
	if tx.Value != nil {
		value.Set(tx.Value)
	}

	balance, err := l.balance(tx.From)
	if err != nil {
		return nil, err
	}
	if balance.Lt(fee) {
		res.GasUsed = 0
		return revert(res, fmt.Sprintf("insufficient funds for gas: have %s, want %s", balance.ToBig().String(), fee.ToBig().String()))
	}

	// gas is paid to the block's coinbase whatever happens next
	if err := l.sub(tx.From, fee); err != nil {
		return nil, err
	}
	if err := l.add(bctx.Coinbase, fee); err != nil {
		return nil, err
	}

	balance, err = l.balance(tx.From)
	if err != nil {
		return nil, err
	}
	if balance.Lt(value) {
		return revert(res, fmt.Sprintf("insufficient balance for transfer: have %s, want %s", balance.ToBig().String(), value.ToBig().String()))
	}

	to := tx.To
	if tx.IsCreate() {
		addr := tx.ContractAddress()
		existing, err := reader.Code(addr)
		if err != nil {
			return nil, err
		}
		existingNonce, err := reader.Nonce(addr)
		if err != nil {
			return nil, err
		}
		if len(existing) > 0 || existingNonce > 0 {
			return revert(res, "contract address collision")
		}
		l.diff.SetCode(addr, tx.Data)
		l.diff.SetNonce(addr, 1)
		res.ContractAddress = &addr
		to = &addr
	}

	if err := l.sub(tx.From, value); err != nil {
		return nil, err
	}
	if err := l.add(*to, value); err != nil {
		return nil, err
	}
	return res, nil
}

// revert marks res as failed. The nonce increment and any fee already in
// the diff stay.
func revert(res *Result, reason string) (*Result, error) {
	res.Status = types.ReceiptStatusFailed
	res.RevertReason = reason
	return res, fmt.Errorf("%w: %s", types.ErrExecutionReverted, reason)
}

var _ Executor = (*TransferExecutor)(nil)
