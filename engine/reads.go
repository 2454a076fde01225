package engine

import (
	"context"
	"fmt"

	"github.com/airchains-network/devchain/state"
	"github.com/airchains-network/devchain/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/holiman/uint256"
)

// stateAt picks the ledger a read at ref is served from. Heights without a
// retained snapshot are answered from the current ledger.
func (e *Engine) stateAt(ref rpc.BlockNumber) (state.Reader, error) {
	if ref < 0 {
		return e.store, nil
	}
	number := uint64(ref)
	if ref == rpc.EarliestBlockNumber {
		number = e.chain.Genesis().Number
	}
	head := e.chain.Head().Number
	if number > head {
		return nil, fmt.Errorf("%w: %d is ahead of head %d", types.ErrUnknownBlock, number, head)
	}
	if number == head {
		return e.store, nil
	}
	if s, ok := e.chain.StateAt(number); ok {
		return s, nil
	}
	return e.store, nil
}

// Balance returns the balance of addr at ref
func (e *Engine) Balance(ctx context.Context, addr common.Address, ref rpc.BlockNumber) (*uint256.Int, error) {
	var balance *uint256.Int
	err := e.read(ctx, func() error {
		r, err := e.stateAt(ref)
		if err != nil {
			return err
		}
		balance, err = r.Balance(addr)
		return err
	})
	return balance, err
}

// Nonce returns the transaction count of addr at ref
func (e *Engine) Nonce(ctx context.Context, addr common.Address, ref rpc.BlockNumber) (uint64, error) {
	var nonce uint64
	err := e.read(ctx, func() error {
		r, err := e.stateAt(ref)
		if err != nil {
			return err
		}
		nonce, err = r.Nonce(addr)
		return err
	})
	return nonce, err
}

// Code returns the code of addr at ref
func (e *Engine) Code(ctx context.Context, addr common.Address, ref rpc.BlockNumber) ([]byte, error) {
	var code []byte
	err := e.read(ctx, func() error {
		r, err := e.stateAt(ref)
		if err != nil {
			return err
		}
		code, err = r.Code(addr)
		return err
	})
	return code, err
}

// StorageAt returns one storage slot of addr at ref
func (e *Engine) StorageAt(ctx context.Context, addr common.Address, slot common.Hash, ref rpc.BlockNumber) (common.Hash, error) {
	var value common.Hash
	err := e.read(ctx, func() error {
		r, err := e.stateAt(ref)
		if err != nil {
			return err
		}
		value, err = r.StorageAt(addr, slot)
		return err
	})
	return value, err
}

// BlockNumber returns the number of the chain head
func (e *Engine) BlockNumber() uint64 {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	return e.chain.Head().Number
}

// BlockByNumber returns the block at ref
func (e *Engine) BlockByNumber(ref rpc.BlockNumber) (*types.Block, error) {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	if ref < 0 {
		return e.chain.Head(), nil
	}
	number := uint64(ref)
	if ref == rpc.EarliestBlockNumber {
		number = e.chain.Genesis().Number
	}
	block, ok := e.chain.BlockByNumber(number)
	if !ok {
		return nil, fmt.Errorf("%w: %d", types.ErrUnknownBlock, number)
	}
	return block, nil
}

// BlockByHash returns the block with hash
func (e *Engine) BlockByHash(hash common.Hash) (*types.Block, error) {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	block, ok := e.chain.BlockByHash(hash)
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrUnknownBlock, hash.Hex())
	}
	return block, nil
}

// TransactionReceipt returns the receipt of a mined transaction, or nil
func (e *Engine) TransactionReceipt(hash common.Hash) *types.Receipt {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	receipt, ok := e.chain.Receipt(hash)
	if !ok {
		return nil
	}
	return receipt
}

// Transaction returns a mined or pooled transaction. block is nil while pooled.
func (e *Engine) Transaction(hash common.Hash) (*types.PendingTransaction, *types.Block, bool) {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	if tx, block, ok := e.chain.Transaction(hash); ok {
		return tx, block, true
	}
	tx, ok := e.pool.Get(hash)
	return tx, nil, ok
}

// GasPrice returns the gas price suggested to clients. An explicitly set
// minimum is returned as is.
func (e *Engine) GasPrice() *uint256.Int {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	return e.gasPrice()
}

func (e *Engine) gasPrice() *uint256.Int {
	floor := e.pool.MinGasPrice()
	if e.minGasPriceSet {
		return floor
	}
	if e.cfg.BaseFee.Gt(floor) {
		return e.cfg.BaseFee.Clone()
	}
	return floor
}

// ChainID returns the chain id
func (e *Engine) ChainID() uint64 {
	return e.cfg.ChainID
}

// Accounts returns the addresses the node signs for
func (e *Engine) Accounts() []common.Address {
	if e.wallet == nil {
		return []common.Address{}
	}
	return e.wallet.Addresses()
}

// NodeInfo describes the running node
type NodeInfo struct {
	CurrentBlockNumber    uint64
	CurrentBlockTimestamp uint64
	CurrentBlockHash      common.Hash
	ChainID               uint64
	Mode                  string
	GasLimit              uint64
	BaseFee               *uint256.Int
	GasPrice              *uint256.Int
	ForkURL               string
	ForkBlockNumber       *uint64
	Impersonated          []common.Address
	AutoImpersonate       bool
	PendingTransactions   int
}

// NodeInfo returns a description of the node
func (e *Engine) NodeInfo() *NodeInfo {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	head := e.chain.Head()
	info := &NodeInfo{
		CurrentBlockNumber:    head.Number,
		CurrentBlockTimestamp: head.Timestamp,
		CurrentBlockHash:      head.Hash,
		ChainID:               e.cfg.ChainID,
		Mode:                  e.mode.String(),
		GasLimit:              e.cfg.GasLimit,
		BaseFee:               e.cfg.BaseFee.Clone(),
		GasPrice:              e.gasPrice(),
		Impersonated:          e.imp.Active(),
		AutoImpersonate:       e.imp.AutoImpersonate(),
		PendingTransactions:   e.pool.Len(),
	}
	if e.overlay != nil {
		n := e.overlay.BlockNumber()
		info.ForkURL = e.cfg.ForkURL
		info.ForkBlockNumber = &n
	}
	return info
}

// TxPoolContent splits the pool per sender into executable and queued
// transactions
func (e *Engine) TxPoolContent(ctx context.Context) (pending, queued map[common.Address][]*types.PendingTransaction, err error) {
	err = e.read(ctx, func() error {
		var err error
		pending, queued, err = e.pool.Content(e.store.Nonce)
		return err
	})
	return pending, queued, err
}
