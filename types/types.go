package types

import (
	"bytes"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Account represents an Ethereum account as held by the local ledger
type Account struct {
	Balance *uint256.Int
	Nonce   uint64
	Code    []byte
	Storage map[common.Hash]common.Hash
}

// NewAccount returns the zero account: no balance, no nonce, no code, no storage
func NewAccount() *Account {
	return &Account{
		Balance: new(uint256.Int),
		Storage: make(map[common.Hash]common.Hash),
	}
}

// Copy returns a deep copy of the account
func (a *Account) Copy() *Account {
	cpy := &Account{
		Balance: new(uint256.Int),
		Nonce:   a.Nonce,
		Code:    common.CopyBytes(a.Code),
		Storage: make(map[common.Hash]common.Hash, len(a.Storage)),
	}
	if a.Balance != nil {
		cpy.Balance.Set(a.Balance)
	}
	for k, v := range a.Storage {
		cpy.Storage[k] = v
	}
	return cpy
}

// IsEmpty reports whether the account is indistinguishable from an absent one
func (a *Account) IsEmpty() bool {
	return (a.Balance == nil || a.Balance.IsZero()) && a.Nonce == 0 && len(a.Code) == 0 && len(a.Storage) == 0
}

// Equal compares two accounts field by field
func (a *Account) Equal(b *Account) bool {
	if a.Nonce != b.Nonce || !bytes.Equal(a.Code, b.Code) || len(a.Storage) != len(b.Storage) {
		return false
	}
	if balanceOf(a).Cmp(balanceOf(b)) != 0 {
		return false
	}
	for k, v := range a.Storage {
		if b.Storage[k] != v {
			return false
		}
	}
	return true
}

func balanceOf(a *Account) *uint256.Int {
	if a.Balance == nil {
		return new(uint256.Int)
	}
	return a.Balance
}

// BlockContext is the environment a transaction executes in
type BlockContext struct {
	Number    uint64
	Timestamp uint64
	GasLimit  uint64
	BaseFee   *uint256.Int
	Coinbase  common.Address
	ChainID   uint64
}
