package state

import (
	"bytes"
	"fmt"
	"math/big"
	"sort"

	"github.com/airchains-network/devchain/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"golang.org/x/crypto/sha3"
)

// SPTNode represents a node in the sparse prefix tree
type SPTNode struct {
	Hash     []byte
	Children map[byte]*SPTNode
	Value    []byte
	IsLeaf   bool
}

// NewSPTNode creates a new SPT node
func NewSPTNode() *SPTNode {
	return &SPTNode{
		Children: make(map[byte]*SPTNode),
	}
}

// SPT is a 256-ary prefix tree keyed by address bytes
type SPT struct {
	Root  *SPTNode
	dirty bool
}

// NewSPT creates a new sparse prefix tree
func NewSPT() *SPT {
	return &SPT{
		Root: NewSPTNode(),
	}
}

func keccak(data []byte) []byte {
	hash := sha3.NewLegacyKeccak256()
	hash.Write(data)
	return hash.Sum(nil)
}

// hash commits to the present children only, each prefixed with its branch byte
func (n *SPTNode) hash() []byte {
	if n.IsLeaf {
		return keccak(n.Value)
	}

	branches := make([]int, 0, len(n.Children))
	for b := range n.Children {
		branches = append(branches, int(b))
	}
	sort.Ints(branches)

	buf := make([]byte, 0, len(branches)*33)
	for _, b := range branches {
		buf = append(buf, byte(b))
		buf = append(buf, n.Children[byte(b)].Hash...)
	}
	return keccak(buf)
}

// Insert inserts a key-value pair into the SPT. Hashes are recomputed lazily.
func (t *SPT) Insert(key []byte, value []byte) {
	current := t.Root
	for _, b := range key {
		if _, exists := current.Children[b]; !exists {
			current.Children[b] = NewSPTNode()
		}
		current = current.Children[b]
	}
	current.IsLeaf = true
	current.Value = value
	t.dirty = true
}

// Get retrieves a value from the SPT
func (t *SPT) Get(key []byte) ([]byte, bool) {
	current := t.Root
	for _, b := range key {
		child, exists := current.Children[b]
		if !exists {
			return nil, false
		}
		current = child
	}
	if current.IsLeaf {
		return current.Value, true
	}
	return nil, false
}

func (t *SPT) updateNodeHash(node *SPTNode) {
	for _, child := range node.Children {
		t.updateNodeHash(child)
	}
	node.Hash = node.hash()
}

// RootHash returns the root hash of the SPT
func (t *SPT) RootHash() common.Hash {
	if t.dirty || t.Root.Hash == nil {
		t.updateNodeHash(t.Root)
		t.dirty = false
	}
	return common.BytesToHash(t.Root.Hash)
}

// KeyValue is one storage slot in the RLP account encoding
type KeyValue struct {
	Key   common.Hash
	Value common.Hash
}

type rlpAccount struct {
	Balance *big.Int
	Nonce   uint64
	Code    []byte
	Storage []KeyValue
}

func accountToValue(acc *types.Account) ([]byte, error) {
	storage := make([]KeyValue, 0, len(acc.Storage))
	for k, v := range acc.Storage {
		storage = append(storage, KeyValue{Key: k, Value: v})
	}
	sort.Slice(storage, func(i, j int) bool {
		return bytes.Compare(storage[i].Key[:], storage[j].Key[:]) < 0
	})
	return rlp.EncodeToBytes(&rlpAccount{
		Balance: acc.Balance.ToBig(),
		Nonce:   acc.Nonce,
		Code:    acc.Code,
		Storage: storage,
	})
}

// CalculateStateRoot computes the root over a set of accounts. Empty
// accounts are left out so that touching an address does not change the root.
func CalculateStateRoot(accounts map[common.Address]*types.Account) (common.Hash, error) {
	spt := NewSPT()
	for addr, acc := range accounts {
		if acc.IsEmpty() {
			continue
		}
		value, err := accountToValue(acc)
		if err != nil {
			return common.Hash{}, fmt.Errorf("failed to encode account %s: %v", addr.Hex(), err)
		}
		spt.Insert(addr.Bytes(), value)
	}
	return spt.RootHash(), nil
}

// Root computes the state root over every address with local state. Fields
// never written locally are read through the fallback.
func (s *Store) Root() (common.Hash, error) {
	accounts := make(map[common.Address]*types.Account, len(s.accounts))
	for addr := range s.accounts {
		acc, err := s.Account(addr)
		if err != nil {
			return common.Hash{}, err
		}
		accounts[addr] = acc
	}
	return CalculateStateRoot(accounts)
}

// Root computes the state root the parent store would have after Commit
func (b *Batch) Root() (common.Hash, error) {
	accounts := make(map[common.Address]*types.Account, len(b.parent.accounts)+len(b.writes))
	for _, addrs := range [][]common.Address{b.parent.Addresses(), b.addresses()} {
		for _, addr := range addrs {
			if _, ok := accounts[addr]; ok {
				continue
			}
			acc, err := assemble(b, addr)
			if err != nil {
				return common.Hash{}, err
			}
			if e, ok := b.parent.accounts[addr]; ok {
				for k, v := range e.storage {
					acc.Storage[k] = v
				}
			}
			if e, ok := b.writes[addr]; ok {
				for k, v := range e.storage {
					acc.Storage[k] = v
				}
			}
			accounts[addr] = acc
		}
	}
	return CalculateStateRoot(accounts)
}
