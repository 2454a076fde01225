package state

import (
	"github.com/airchains-network/devchain/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Batch buffers writes on top of a Store. Reads see the buffered writes
// first. Commit applies them to the store in one step; dropping the batch
// discards them.
type Batch struct {
	parent *Store
	writes map[common.Address]*entry
}

// NewBatch starts a write batch over the store
func (s *Store) NewBatch() *Batch {
	return &Batch{
		parent: s,
		writes: make(map[common.Address]*entry),
	}
}

func (b *Batch) entry(addr common.Address) *entry {
	e, ok := b.writes[addr]
	if !ok {
		e = &entry{}
		b.writes[addr] = e
	}
	return e
}

func (b *Batch) addresses() []common.Address {
	addrs := make([]common.Address, 0, len(b.writes))
	for addr := range b.writes {
		addrs = append(addrs, addr)
	}
	return addrs
}

// Balance returns the balance of addr
func (b *Batch) Balance(addr common.Address) (*uint256.Int, error) {
	if e, ok := b.writes[addr]; ok && e.balance != nil {
		return e.balance.Clone(), nil
	}
	return b.parent.Balance(addr)
}

// Nonce returns the nonce of addr
func (b *Batch) Nonce(addr common.Address) (uint64, error) {
	if e, ok := b.writes[addr]; ok && e.nonce != nil {
		return *e.nonce, nil
	}
	return b.parent.Nonce(addr)
}

// Code returns the code of addr
func (b *Batch) Code(addr common.Address) ([]byte, error) {
	if e, ok := b.writes[addr]; ok && e.hasCode {
		return common.CopyBytes(e.code), nil
	}
	return b.parent.Code(addr)
}

// StorageAt returns one storage slot of addr
func (b *Batch) StorageAt(addr common.Address, slot common.Hash) (common.Hash, error) {
	if e, ok := b.writes[addr]; ok {
		if val, ok := e.storage[slot]; ok {
			return val, nil
		}
	}
	return b.parent.StorageAt(addr, slot)
}

// SetBalance buffers a balance write
func (b *Batch) SetBalance(addr common.Address, balance *uint256.Int) {
	b.entry(addr).balance = balance.Clone()
}

// SetNonce buffers a nonce write
func (b *Batch) SetNonce(addr common.Address, nonce uint64) {
	b.entry(addr).nonce = &nonce
}

// SetCode buffers a code write
func (b *Batch) SetCode(addr common.Address, code []byte) {
	e := b.entry(addr)
	e.code = common.CopyBytes(code)
	e.hasCode = true
}

// SetStorageAt buffers a storage write
func (b *Batch) SetStorageAt(addr common.Address, slot, value common.Hash) {
	e := b.entry(addr)
	if e.storage == nil {
		e.storage = make(map[common.Hash]common.Hash)
	}
	e.storage[slot] = value
}

// ApplyDiff buffers the post-state of one executed transaction
func (b *Batch) ApplyDiff(diff *types.StateDiff) error {
	if err := validateDiff(diff); err != nil {
		return err
	}
	for addr, acc := range diff.Accounts {
		applyAccountDiff(b, addr, acc)
	}
	return nil
}

// Commit applies every buffered write to the parent store
func (b *Batch) Commit() {
	for addr, w := range b.writes {
		if w.balance != nil {
			b.parent.SetBalance(addr, w.balance)
		}
		if w.nonce != nil {
			b.parent.SetNonce(addr, *w.nonce)
		}
		if w.hasCode {
			b.parent.SetCode(addr, w.code)
		}
		for slot, val := range w.storage {
			b.parent.SetStorageAt(addr, slot, val)
		}
	}
	b.writes = make(map[common.Address]*entry)
}

var _ Writer = (*Batch)(nil)
