package engine

import (
	"github.com/airchains-network/devchain/chaintime"
	"github.com/airchains-network/devchain/impersonation"
	"github.com/airchains-network/devchain/state"
	"github.com/holiman/uint256"
	"github.com/sirupsen/logrus"
)

type snapshot struct {
	store          *state.Store
	head           uint64
	time           chaintime.State
	imp            *impersonation.Registry
	minGasPrice    *uint256.Int
	minGasPriceSet bool
}

// Snapshot records the whole engine state and returns its id
func (e *Engine) Snapshot() uint64 {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	id := e.nextSnapshot
	e.nextSnapshot++
	e.snapshots[id] = &snapshot{
		store:          e.store.Copy(),
		head:           e.chain.Head().Number,
		time:           e.time.Snapshot(),
		imp:            e.imp.Copy(),
		minGasPrice:    e.pool.MinGasPrice(),
		minGasPriceSet: e.minGasPriceSet,
	}
	e.log.WithFields(logrus.Fields{"id": id, "head": e.chain.Head().Number}).Info("Created snapshot")
	return id
}

// Revert restores the state recorded by snapshot id and drops it together
// with every later snapshot. Pooled transactions are kept.
func (e *Engine) Revert(id uint64) bool {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	snap, ok := e.snapshots[id]
	if !ok {
		return false
	}
	for other := range e.snapshots {
		if other >= id {
			delete(e.snapshots, other)
		}
	}

	e.store = snap.store
	e.chain.Truncate(snap.head)
	e.time.Restore(snap.time)
	e.imp = snap.imp
	e.pool.SetMinGasPrice(snap.minGasPrice)
	e.minGasPriceSet = snap.minGasPriceSet
	e.metrics.BlockMined(e.chain.Head().Number, 0, 0)

	e.log.WithFields(logrus.Fields{"id": id, "head": snap.head}).Info("Reverted to snapshot")
	return true
}
