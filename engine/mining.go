package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/airchains-network/devchain/miner"
	"github.com/airchains-network/devchain/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

func (e *Engine) input(txs []*types.PendingTransaction) *miner.Input {
	return &miner.Input{
		Store:        e.store,
		Time:         e.time,
		Pool:         e.pool,
		Chain:        e.chain,
		GasLimit:     e.cfg.GasLimit,
		BaseFee:      e.cfg.BaseFee,
		Coinbase:     e.cfg.Coinbase,
		ChainID:      e.cfg.ChainID,
		Authorized:   e.imp.IsAuthorizedUnsigned,
		Transactions: txs,
	}
}

// prefetch warms the fork cache with the accounts the pending transactions
// touch so that a mine rarely has to back off
func (e *Engine) prefetch(ctx context.Context, txs []*types.PendingTransaction) {
	if e.overlay == nil || len(txs) == 0 {
		return
	}
	addrs := make([]common.Address, 0, len(txs)*2+1)
	addrs = append(addrs, e.cfg.Coinbase)
	for _, tx := range txs {
		addrs = append(addrs, tx.From)
		if tx.To != nil {
			addrs = append(addrs, *tx.To)
		}
	}
	if err := e.overlay.Prefetch(ctx, addrs); err != nil {
		e.log.Warnf("Failed to prefetch fork accounts: %v", err)
	}
}

func (e *Engine) published(out *miner.Outcome) {
	e.events.send(out.Block)
	for _, r := range out.Rejected {
		e.log.WithField("hash", r.Hash.Hex()).Debugf("Transaction left out of block %d: %v", out.Block.Number, r.Err)
	}
}

// Mine produces blocks back to back, spaced by interval seconds when
// interval > 0. The whole run holds the engine lock so the blocks form a
// contiguous range.
func (e *Engine) Mine(ctx context.Context, blocks, interval uint64) ([]*types.Block, error) {
	if blocks == 0 {
		blocks = 1
	}
	e.prefetch(ctx, e.pool.Pending(0))

	mined := make([]*types.Block, 0, blocks)
	err := e.write(ctx, func() error {
		outs, err := e.producer.MineBlocks(e.input(nil), blocks, interval, uint64(len(mined)))
		for _, out := range outs {
			mined = append(mined, out.Block)
			e.published(out)
		}
		return err
	})
	return mined, err
}

// EvmMine mines one block, at timestamp when given
func (e *Engine) EvmMine(ctx context.Context, timestamp *uint64) (*types.Block, error) {
	e.prefetch(ctx, e.pool.Pending(0))

	var block *types.Block
	err := e.write(ctx, func() error {
		timeState := e.time.Snapshot()
		if timestamp != nil {
			if err := e.time.SetNextTimestamp(*timestamp); err != nil {
				return err
			}
		}
		out, err := e.producer.Mine(e.input(nil))
		if err != nil {
			e.time.Restore(timeState)
			return err
		}
		block = out.Block
		e.published(out)
		return nil
	})
	return block, err
}

// MineTransactions mines one block holding only the given pooled
// transactions, in the given order
func (e *Engine) MineTransactions(ctx context.Context, hashes []common.Hash) (*types.Block, error) {
	txs := make([]*types.PendingTransaction, 0, len(hashes))
	for _, hash := range hashes {
		tx, ok := e.pool.Get(hash)
		if !ok {
			return nil, fmt.Errorf("%w: transaction %s is not pending", types.ErrInvalidInput, hash.Hex())
		}
		txs = append(txs, tx)
	}
	e.prefetch(ctx, txs)

	var block *types.Block
	err := e.write(ctx, func() error {
		out, err := e.producer.Mine(e.input(txs))
		if err != nil {
			return err
		}
		block = out.Block
		e.published(out)
		return nil
	})
	return block, err
}

func (e *Engine) mineScheduled(ctx context.Context) error {
	_, err := e.Mine(ctx, 1, 0)
	return err
}

// SetAutomine switches between mining on every submission and manual mining
func (e *Engine) SetAutomine(enabled bool) {
	e.mutex.Lock()
	if enabled {
		e.mode = miner.Auto
	} else {
		e.mode = miner.Manual
	}
	e.mutex.Unlock()
	e.scheduler.SetPeriod(0)
	e.log.WithField("enabled", enabled).Info("Automine changed")
}

// SetIntervalMining mines a block every seconds; zero switches to manual mining
func (e *Engine) SetIntervalMining(seconds uint64) {
	e.mutex.Lock()
	if seconds > 0 {
		e.mode = miner.Interval
	} else {
		e.mode = miner.Manual
	}
	e.mutex.Unlock()
	e.scheduler.SetPeriod(time.Duration(seconds) * time.Second)
	e.log.WithFields(logrus.Fields{"seconds": seconds}).Info("Interval mining changed")
}

// Mode returns the current mining mode
func (e *Engine) Mode() miner.Mode {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	return e.mode
}

// DropTransaction removes a pooled transaction and reports whether it was pooled
func (e *Engine) DropTransaction(hash common.Hash) bool {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return e.pool.Drop(hash)
}
