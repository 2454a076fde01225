// Package chain keeps the append-only log of mined blocks together with the
// ledger state after each retained height.
package chain

import (
	"github.com/airchains-network/devchain/state"
	"github.com/airchains-network/devchain/types"
	"github.com/ethereum/go-ethereum/common"
)

type txLocation struct {
	block uint64
	index int
}

// Log is not safe for concurrent use; the engine serializes access.
type Log struct {
	blocks   []*types.Block
	byHash   map[common.Hash]uint64
	txs      map[common.Hash]txLocation
	receipts map[common.Hash]*types.Receipt
	states   map[uint64]*state.Store
	depth    uint64
}

// NewLog starts a log at genesis. depth is how many heights below the head
// keep a state snapshot for historical reads.
func NewLog(genesis *types.Block, genesisState *state.Store, depth uint64) *Log {
	l := &Log{
		byHash:   make(map[common.Hash]uint64),
		txs:      make(map[common.Hash]txLocation),
		receipts: make(map[common.Hash]*types.Receipt),
		states:   make(map[uint64]*state.Store),
		depth:    depth,
	}
	l.Append(genesis, genesisState)
	return l
}

// Head returns the latest block
func (l *Log) Head() *types.Block {
	return l.blocks[len(l.blocks)-1]
}

// Genesis returns the first block of the log
func (l *Log) Genesis() *types.Block {
	return l.blocks[0]
}

// Len returns the number of blocks including genesis
func (l *Log) Len() int {
	return len(l.blocks)
}

func (l *Log) index(number uint64) (int, bool) {
	first := l.blocks[0].Number
	if number < first || number-first >= uint64(len(l.blocks)) {
		return 0, false
	}
	return int(number - first), true
}

// BlockByNumber returns the block at number
func (l *Log) BlockByNumber(number uint64) (*types.Block, bool) {
	i, ok := l.index(number)
	if !ok {
		return nil, false
	}
	return l.blocks[i], true
}

// BlockByHash returns the block with hash
func (l *Log) BlockByHash(hash common.Hash) (*types.Block, bool) {
	number, ok := l.byHash[hash]
	if !ok {
		return nil, false
	}
	return l.BlockByNumber(number)
}

// Transaction returns an included transaction with its block
func (l *Log) Transaction(hash common.Hash) (*types.PendingTransaction, *types.Block, bool) {
	loc, ok := l.txs[hash]
	if !ok {
		return nil, nil, false
	}
	block, ok := l.BlockByNumber(loc.block)
	if !ok {
		return nil, nil, false
	}
	return block.Transactions[loc.index], block, true
}

// Receipt returns the receipt of an included transaction
func (l *Log) Receipt(hash common.Hash) (*types.Receipt, bool) {
	r, ok := l.receipts[hash]
	return r, ok
}

// Append adds block as the new head. post is the ledger after the block;
// a copy is retained for historical reads unless the depth is zero.
func (l *Log) Append(block *types.Block, post *state.Store) {
	l.blocks = append(l.blocks, block)
	l.byHash[block.Hash] = block.Number
	for i, tx := range block.Transactions {
		l.txs[tx.Hash] = txLocation{block: block.Number, index: i}
	}
	for _, r := range block.Receipts {
		l.receipts[r.TxHash] = r
	}
	if post != nil && l.depth > 0 {
		l.states[block.Number] = post.Copy()
	}
	l.prune()
}

func (l *Log) prune() {
	head := l.Head().Number
	for number := range l.states {
		if head-number > l.depth {
			delete(l.states, number)
		}
	}
}

// StateAt returns the retained ledger after block number
func (l *Log) StateAt(number uint64) (*state.Store, bool) {
	s, ok := l.states[number]
	return s, ok
}

// Truncate drops every block above number
func (l *Log) Truncate(number uint64) {
	i, ok := l.index(number)
	if !ok {
		return
	}
	for _, block := range l.blocks[i+1:] {
		delete(l.byHash, block.Hash)
		delete(l.states, block.Number)
		for _, tx := range block.Transactions {
			delete(l.txs, tx.Hash)
			delete(l.receipts, tx.Hash)
		}
	}
	l.blocks = l.blocks[:i+1]
}
