package types

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// AccountDiff is the post-state of the fields one transaction touched on an
// account. Nil fields are unchanged.
type AccountDiff struct {
	Balance *uint256.Int
	Nonce   *uint64
	Code    []byte
	Storage map[common.Hash]common.Hash
}

// StateDiff is the set of account changes produced by executing one transaction
type StateDiff struct {
	Accounts map[common.Address]*AccountDiff
}

// NewStateDiff returns an empty diff
func NewStateDiff() *StateDiff {
	return &StateDiff{Accounts: make(map[common.Address]*AccountDiff)}
}

// Account returns the diff entry for addr, creating it if needed
func (d *StateDiff) Account(addr common.Address) *AccountDiff {
	acc, ok := d.Accounts[addr]
	if !ok {
		acc = &AccountDiff{}
		d.Accounts[addr] = acc
	}
	return acc
}

// SetBalance records the new balance of addr
func (d *StateDiff) SetBalance(addr common.Address, balance *uint256.Int) {
	d.Account(addr).Balance = new(uint256.Int).Set(balance)
}

// SetNonce records the new nonce of addr
func (d *StateDiff) SetNonce(addr common.Address, nonce uint64) {
	d.Account(addr).Nonce = &nonce
}

// SetCode records the new code of addr
func (d *StateDiff) SetCode(addr common.Address, code []byte) {
	if code == nil {
		code = []byte{}
	}
	d.Account(addr).Code = common.CopyBytes(code)
}

// SetStorage records a storage write on addr
func (d *StateDiff) SetStorage(addr common.Address, slot, value common.Hash) {
	acc := d.Account(addr)
	if acc.Storage == nil {
		acc.Storage = make(map[common.Hash]common.Hash)
	}
	acc.Storage[slot] = value
}
