package engine

import (
	"context"
	"fmt"
	"math/big"

	"github.com/airchains-network/devchain/executor"
	"github.com/airchains-network/devchain/miner"
	"github.com/airchains-network/devchain/types"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
)

// TransactionArgs is a transaction the node builds for the sender. Nil
// fields get defaults.
type TransactionArgs struct {
	From     common.Address
	To       *common.Address
	Value    *uint256.Int
	Data     []byte
	Gas      *uint64
	GasPrice *uint256.Int
	Nonce    *uint64
}

// Submission is an accepted transaction
type Submission struct {
	Hash common.Hash
	// Block is set when automine included the transaction right away
	Block *types.Block
}

// SendTransaction accepts a transaction from a wallet account, signing it,
// or from an impersonated account, unsigned
func (e *Engine) SendTransaction(ctx context.Context, args TransactionArgs) (*Submission, error) {
	var tx *types.PendingTransaction
	err := e.read(ctx, func() error {
		var err error
		tx, err = e.buildTransaction(args)
		return err
	})
	if err != nil {
		return nil, err
	}
	return e.submit(ctx, tx)
}

// buildTransaction fills defaults and signs when the wallet holds the key.
// Caller holds the read lock.
func (e *Engine) buildTransaction(args TransactionArgs) (*types.PendingTransaction, error) {
	signable := e.wallet != nil && e.wallet.Has(args.From)
	if !signable && !e.imp.IsAuthorizedUnsigned(args.From) {
		return nil, fmt.Errorf("%w: %s", types.ErrUnauthorized, args.From.Hex())
	}

	value := args.Value
	if value == nil {
		value = new(uint256.Int)
	}
	gasPrice := args.GasPrice
	if gasPrice == nil {
		gasPrice = e.gasPrice()
	}
	gas := executor.IntrinsicGas(args.Data, args.To == nil)
	if args.Gas != nil {
		gas = *args.Gas
	}
	var nonce uint64
	if args.Nonce != nil {
		nonce = *args.Nonce
	} else {
		next, err := e.store.Nonce(args.From)
		if err != nil {
			return nil, err
		}
		// queue behind transactions the sender already has pooled
		for _, pooled := range e.pool.Pending(0) {
			if pooled.From == args.From && pooled.Nonce >= next {
				next = pooled.Nonce + 1
			}
		}
		nonce = next
	}

	if !signable {
		return types.NewUnsigned(args.From, args.To, value, args.Data, gas, gasPrice, nonce), nil
	}
	signed, err := e.wallet.SignTx(args.From, &gethtypes.LegacyTx{
		Nonce:    nonce,
		To:       args.To,
		Value:    value.ToBig(),
		Gas:      gas,
		GasPrice: gasPrice.ToBig(),
		Data:     args.Data,
	}, e.cfg.ChainID)
	if err != nil {
		return nil, err
	}
	return types.FromSigned(signed, e.signer())
}

func (e *Engine) signer() gethtypes.Signer {
	return gethtypes.LatestSignerForChainID(new(big.Int).SetUint64(e.cfg.ChainID))
}

// SendRawTransaction accepts a signed, binary encoded transaction
func (e *Engine) SendRawTransaction(ctx context.Context, raw []byte) (*Submission, error) {
	var signed gethtypes.Transaction
	if err := signed.UnmarshalBinary(raw); err != nil {
		return nil, fmt.Errorf("%w: failed to decode transaction: %v", types.ErrInvalidInput, err)
	}
	if id := signed.ChainId(); signed.Protected() && id.Uint64() != e.cfg.ChainID {
		return nil, fmt.Errorf("%w: chain id %d, want %d", types.ErrInvalidInput, id.Uint64(), e.cfg.ChainID)
	}
	tx, err := types.FromSigned(&signed, e.signer())
	if err != nil {
		return nil, err
	}
	return e.submit(ctx, tx)
}

// submit validates tx against the current ledger and pools it. Under
// automine a block is mined before returning.
func (e *Engine) submit(ctx context.Context, tx *types.PendingTransaction) (*Submission, error) {
	if tx.Gas > e.cfg.GasLimit {
		return nil, fmt.Errorf("%w: gas %d exceeds block gas limit %d", types.ErrInvalidInput, tx.Gas, e.cfg.GasLimit)
	}
	var auto bool
	err := e.write(ctx, func() error {
		nonce, err := e.store.Nonce(tx.From)
		if err != nil {
			return err
		}
		if _, err := e.pool.Submit(tx, nonce, e.imp.IsAuthorizedUnsigned(tx.From)); err != nil {
			return err
		}
		auto = e.mode == miner.Auto
		return nil
	})
	if err != nil {
		return nil, err
	}

	sub := &Submission{Hash: tx.Hash}
	if !auto {
		return sub, nil
	}
	blocks, err := e.Mine(ctx, 1, 0)
	if err != nil {
		return nil, err
	}
	sub.Block = blocks[0]
	return sub, nil
}
