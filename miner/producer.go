// Package miner builds blocks from pooled transactions and schedules
// interval mining.
package miner

import (
	"errors"
	"fmt"

	"github.com/airchains-network/devchain/chain"
	"github.com/airchains-network/devchain/chaintime"
	"github.com/airchains-network/devchain/executor"
	"github.com/airchains-network/devchain/fork"
	"github.com/airchains-network/devchain/metrics"
	"github.com/airchains-network/devchain/pool"
	"github.com/airchains-network/devchain/state"
	"github.com/airchains-network/devchain/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/sirupsen/logrus"
)

// Input is everything one mine reads and writes. The caller must hold
// exclusive access to all of it for the duration of the call.
type Input struct {
	Store *state.Store
	Time  *chaintime.Controller
	Pool  *pool.TxPool
	Chain *chain.Log

	GasLimit uint64
	BaseFee  *uint256.Int
	Coinbase common.Address
	ChainID  uint64

	// Authorized reports whether addr may still send unsigned transactions.
	// Unsigned transactions are rejected when it is nil.
	Authorized func(addr common.Address) bool

	// Transactions replaces the pool draw when not nil. They must already
	// be pooled.
	Transactions []*types.PendingTransaction
}

// Rejection is a transaction left out of a block for good
type Rejection struct {
	Hash common.Hash
	Err  error
}

// Outcome is the result of one successful mine
type Outcome struct {
	Block    *types.Block
	Rejected []Rejection
}

// Producer runs the mine procedure
type Producer struct {
	executor executor.Executor
	log      *logrus.Logger
	metrics  *metrics.Metrics
}

// NewProducer creates a producer executing transactions with exec
func NewProducer(exec executor.Executor, log *logrus.Logger, m *metrics.Metrics) *Producer {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Producer{executor: exec, log: log, metrics: m}
}

// Mine produces one block. Either the block is appended and every
// component reflects it, or an error is returned and nothing changed. A
// *fork.MissError means a fork value must be resolved before retrying.
func (p *Producer) Mine(in *Input) (*Outcome, error) {
	timeState := in.Time.Snapshot()
	out, err := p.mine(in)
	if err != nil {
		in.Time.Restore(timeState)
		return nil, err
	}
	return out, nil
}

func (p *Producer) mine(in *Input) (*Outcome, error) {
	parent := in.Chain.Head()
	bctx := types.BlockContext{
		Number:    parent.Number + 1,
		Timestamp: in.Time.NextBlockTimestamp(),
		GasLimit:  in.GasLimit,
		BaseFee:   in.BaseFee,
		Coinbase:  in.Coinbase,
		ChainID:   in.ChainID,
	}

	candidates := in.Transactions
	if candidates == nil {
		candidates = in.Pool.Pending(0)
	}

	batch := in.Store.NewBatch()
	var (
		included []*types.PendingTransaction
		receipts []*types.Receipt
		rejected []Rejection
		gasUsed  uint64
		reverted int
	)
	for _, tx := range candidates {
		if tx.Gas > bctx.GasLimit {
			rejected = append(rejected, Rejection{tx.Hash, fmt.Errorf("%w: gas %d exceeds block gas limit %d", types.ErrInvalidInput, tx.Gas, bctx.GasLimit)})
			continue
		}
		if gasUsed+tx.Gas > bctx.GasLimit {
			// stays pooled for a later block
			continue
		}
		if !tx.Signed() && (in.Authorized == nil || !in.Authorized(tx.From)) {
			rejected = append(rejected, Rejection{tx.Hash, fmt.Errorf("%w: %s is no longer impersonated", types.ErrUnauthorized, tx.From.Hex())})
			continue
		}
		nonce, err := batch.Nonce(tx.From)
		if err != nil {
			return nil, err
		}
		if tx.Nonce < nonce {
			rejected = append(rejected, Rejection{tx.Hash, fmt.Errorf("%w: address %s, tx: %d state: %d", types.ErrNonceTooLow, tx.From.Hex(), tx.Nonce, nonce)})
			continue
		}
		if tx.Nonce > nonce {
			continue
		}

		res, err := p.executor.Execute(batch, tx, bctx)
		if err != nil {
			var miss *fork.MissError
			switch {
			case errors.As(err, &miss):
				return nil, err
			case errors.Is(err, types.ErrExecutionReverted) && res != nil:
				reverted++
			case errors.Is(err, types.ErrEngineFault):
				return nil, err
			default:
				return nil, fmt.Errorf("%w: executing %s: %v", types.ErrEngineFault, tx.Hash.Hex(), err)
			}
		}
		if err := batch.ApplyDiff(res.Diff); err != nil {
			return nil, err
		}

		gasUsed += res.GasUsed
		receipts = append(receipts, &types.Receipt{
			TxHash:            tx.Hash,
			BlockNumber:       bctx.Number,
			Index:             uint(len(included)),
			From:              tx.From,
			To:                tx.To,
			ContractAddress:   res.ContractAddress,
			GasUsed:           res.GasUsed,
			CumulativeGasUsed: gasUsed,
			EffectiveGasPrice: tx.GasPrice,
			Status:            res.Status,
			RevertReason:      res.RevertReason,
			Logs:              res.Logs,
		})
		included = append(included, tx)
	}

	root, err := batch.Root()
	if err != nil {
		return nil, err
	}

	block := &types.Block{
		Number:       bctx.Number,
		ParentHash:   parent.Hash,
		Timestamp:    bctx.Timestamp,
		GasLimit:     bctx.GasLimit,
		GasUsed:      gasUsed,
		BaseFee:      bctx.BaseFee,
		Miner:        bctx.Coinbase,
		StateRoot:    root,
		Transactions: included,
		Receipts:     receipts,
	}
	block.Hash = block.ComputeHash()
	for _, r := range receipts {
		r.BlockHash = block.Hash
	}

	// nothing below can fail
	batch.Commit()
	in.Chain.Append(block, in.Store)
	in.Pool.Included(receipts)
	for _, r := range rejected {
		in.Pool.Reject(r.Hash, r.Err)
	}

	p.metrics.BlockMined(block.Number, len(included), reverted)
	p.log.WithFields(logrus.Fields{
		"number":    block.Number,
		"hash":      block.Hash.Hex(),
		"txs":       len(included),
		"gas_used":  gasUsed,
		"timestamp": block.Timestamp,
	}).Info("Mined block")
	return &Outcome{Block: block, Rejected: rejected}, nil
}

// MineBlocks mines the blocks of a run of n that come after the first
// mined, back to back. With interval > 0 every block after the first of the
// run lands exactly interval seconds after its parent. Blocks mined before a
// failure stay on the chain and are returned with the error; the time
// controller is left as it was before the failed block.
func (p *Producer) MineBlocks(in *Input, n, interval, mined uint64) ([]*Outcome, error) {
	outcomes := make([]*Outcome, 0, n)
	for i := mined; i < n; i++ {
		timeState := in.Time.Snapshot()
		if interval > 0 && i > 0 {
			if err := in.Time.SetNextTimestamp(in.Time.LastBlockTimestamp() + interval); err != nil {
				return outcomes, err
			}
		}
		out, err := p.Mine(in)
		if err != nil {
			in.Time.Restore(timeState)
			return outcomes, err
		}
		outcomes = append(outcomes, out)
	}
	return outcomes, nil
}
