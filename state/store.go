package state

import (
	"fmt"

	"github.com/airchains-network/devchain/fork"
	"github.com/airchains-network/devchain/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Fallback supplies values for fields that were never written locally.
// Implementations answer from memory only; a value that is not available
// yet is reported as missing.
type Fallback interface {
	CachedAccount(addr common.Address) (*fork.AccountSnapshot, bool)
	CachedStorage(addr common.Address, slot common.Hash) (common.Hash, bool)
}

// Reader is the read side of the ledger
type Reader interface {
	Balance(addr common.Address) (*uint256.Int, error)
	Nonce(addr common.Address) (uint64, error)
	Code(addr common.Address) ([]byte, error)
	StorageAt(addr common.Address, slot common.Hash) (common.Hash, error)
}

// Writer mutates the ledger
type Writer interface {
	Reader
	SetBalance(addr common.Address, balance *uint256.Int)
	SetNonce(addr common.Address, nonce uint64)
	SetCode(addr common.Address, code []byte)
	SetStorageAt(addr common.Address, slot, value common.Hash)
	ApplyDiff(diff *types.StateDiff) error
}

// entry holds the locally written fields of one address. A nil field was
// never written and falls through to the fork.
type entry struct {
	balance *uint256.Int
	nonce   *uint64
	code    []byte
	hasCode bool
	storage map[common.Hash]common.Hash
	// cleared marks storage as fully replaced: slots missing from storage
	// read as zero instead of falling through.
	cleared bool
}

func (e *entry) copy() *entry {
	cpy := &entry{
		hasCode: e.hasCode,
		code:    common.CopyBytes(e.code),
		cleared: e.cleared,
	}
	if e.balance != nil {
		cpy.balance = e.balance.Clone()
	}
	if e.nonce != nil {
		n := *e.nonce
		cpy.nonce = &n
	}
	if e.storage != nil {
		cpy.storage = make(map[common.Hash]common.Hash, len(e.storage))
		for k, v := range e.storage {
			cpy.storage[k] = v
		}
	}
	return cpy
}

// Store is the in-memory account ledger. It is not safe for concurrent
// mutation; the engine serializes access.
type Store struct {
	accounts map[common.Address]*entry
	fallback Fallback
}

// NewStore creates an empty ledger. fallback may be nil, in which case
// unwritten fields read as zero.
func NewStore(fallback Fallback) *Store {
	return &Store{
		accounts: make(map[common.Address]*entry),
		fallback: fallback,
	}
}

func (s *Store) entry(addr common.Address) *entry {
	e, ok := s.accounts[addr]
	if !ok {
		e = &entry{}
		s.accounts[addr] = e
	}
	return e
}

func (s *Store) remoteAccount(addr common.Address) (*fork.AccountSnapshot, error) {
	if s.fallback == nil {
		return nil, nil
	}
	acc, ok := s.fallback.CachedAccount(addr)
	if !ok {
		return nil, &fork.MissError{Key: fork.AccountKey(addr)}
	}
	return acc, nil
}

// Balance returns the balance of addr
func (s *Store) Balance(addr common.Address) (*uint256.Int, error) {
	if e, ok := s.accounts[addr]; ok && e.balance != nil {
		return e.balance.Clone(), nil
	}
	acc, err := s.remoteAccount(addr)
	if err != nil || acc == nil {
		return new(uint256.Int), err
	}
	return acc.Balance.Clone(), nil
}

// Nonce returns the nonce of addr
func (s *Store) Nonce(addr common.Address) (uint64, error) {
	if e, ok := s.accounts[addr]; ok && e.nonce != nil {
		return *e.nonce, nil
	}
	acc, err := s.remoteAccount(addr)
	if err != nil || acc == nil {
		return 0, err
	}
	return acc.Nonce, nil
}

// Code returns the code of addr
func (s *Store) Code(addr common.Address) ([]byte, error) {
	if e, ok := s.accounts[addr]; ok && e.hasCode {
		return common.CopyBytes(e.code), nil
	}
	acc, err := s.remoteAccount(addr)
	if err != nil || acc == nil {
		return nil, err
	}
	return common.CopyBytes(acc.Code), nil
}

// StorageAt returns one storage slot of addr
func (s *Store) StorageAt(addr common.Address, slot common.Hash) (common.Hash, error) {
	if e, ok := s.accounts[addr]; ok {
		if val, ok := e.storage[slot]; ok {
			return val, nil
		}
		if e.cleared {
			return common.Hash{}, nil
		}
	}
	if s.fallback == nil {
		return common.Hash{}, nil
	}
	val, ok := s.fallback.CachedStorage(addr, slot)
	if !ok {
		return common.Hash{}, &fork.MissError{Key: fork.StorageKey(addr, slot)}
	}
	return val, nil
}

// SetBalance overrides the balance of addr
func (s *Store) SetBalance(addr common.Address, balance *uint256.Int) {
	s.entry(addr).balance = balance.Clone()
}

// SetNonce overrides the nonce of addr
func (s *Store) SetNonce(addr common.Address, nonce uint64) {
	s.entry(addr).nonce = &nonce
}

// SetCode overrides the code of addr. Empty code shadows the fork too.
func (s *Store) SetCode(addr common.Address, code []byte) {
	e := s.entry(addr)
	e.code = common.CopyBytes(code)
	e.hasCode = true
}

// SetStorageAt overrides one storage slot of addr
func (s *Store) SetStorageAt(addr common.Address, slot, value common.Hash) {
	e := s.entry(addr)
	if e.storage == nil {
		e.storage = make(map[common.Hash]common.Hash)
	}
	e.storage[slot] = value
}

// SetStorage replaces the whole storage of addr; slots not in storage read zero
func (s *Store) SetStorage(addr common.Address, storage map[common.Hash]common.Hash) {
	e := s.entry(addr)
	e.storage = make(map[common.Hash]common.Hash, len(storage))
	for k, v := range storage {
		e.storage[k] = v
	}
	e.cleared = true
}

// ApplyDiff writes the post-state of one executed transaction
func (s *Store) ApplyDiff(diff *types.StateDiff) error {
	if err := validateDiff(diff); err != nil {
		return err
	}
	for addr, acc := range diff.Accounts {
		applyAccountDiff(s, addr, acc)
	}
	return nil
}

func validateDiff(diff *types.StateDiff) error {
	if diff == nil {
		return fmt.Errorf("%w: nil state diff", types.ErrEngineFault)
	}
	for addr, acc := range diff.Accounts {
		if acc == nil {
			return fmt.Errorf("%w: nil account diff for %s", types.ErrEngineFault, addr.Hex())
		}
	}
	return nil
}

func applyAccountDiff(w Writer, addr common.Address, acc *types.AccountDiff) {
	if acc.Balance != nil {
		w.SetBalance(addr, acc.Balance)
	}
	if acc.Nonce != nil {
		w.SetNonce(addr, *acc.Nonce)
	}
	if acc.Code != nil {
		w.SetCode(addr, acc.Code)
	}
	for slot, val := range acc.Storage {
		w.SetStorageAt(addr, slot, val)
	}
}

// Copy returns a deep copy of the local layer sharing the same fallback
func (s *Store) Copy() *Store {
	cpy := &Store{
		accounts: make(map[common.Address]*entry, len(s.accounts)),
		fallback: s.fallback,
	}
	for addr, e := range s.accounts {
		cpy.accounts[addr] = e.copy()
	}
	return cpy
}

// Addresses returns every address with local state
func (s *Store) Addresses() []common.Address {
	addrs := make([]common.Address, 0, len(s.accounts))
	for addr := range s.accounts {
		addrs = append(addrs, addr)
	}
	return addrs
}

// Account assembles the full account of addr, resolving unwritten fields
// through the fallback. Storage holds local slots only.
func (s *Store) Account(addr common.Address) (*types.Account, error) {
	acc, err := assemble(s, addr)
	if err != nil {
		return nil, err
	}
	if e, ok := s.accounts[addr]; ok {
		for k, v := range e.storage {
			acc.Storage[k] = v
		}
	}
	return acc, nil
}

func assemble(r Reader, addr common.Address) (*types.Account, error) {
	acc := types.NewAccount()
	var err error
	if acc.Balance, err = r.Balance(addr); err != nil {
		return nil, err
	}
	if acc.Nonce, err = r.Nonce(addr); err != nil {
		return nil, err
	}
	if acc.Code, err = r.Code(addr); err != nil {
		return nil, err
	}
	return acc, nil
}

var _ Writer = (*Store)(nil)
