package fork

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// AccountSnapshot is the state of one address at the fork block
type AccountSnapshot struct {
	Balance *uint256.Int
	Nonce   uint64
	Code    []byte
}

// Remote is the live chain the node forks from
type Remote interface {
	GetAccountState(ctx context.Context, addr common.Address, block uint64) (*AccountSnapshot, error)
	GetStorage(ctx context.Context, addr common.Address, slot common.Hash, block uint64) (common.Hash, error)
}

// Key identifies one value that can be fetched from the remote
type Key struct {
	Address common.Address
	Slot    common.Hash
	Storage bool
}

// AccountKey returns the key of addr's balance, nonce and code
func AccountKey(addr common.Address) Key {
	return Key{Address: addr}
}

// StorageKey returns the key of one storage slot
func StorageKey(addr common.Address, slot common.Hash) Key {
	return Key{Address: addr, Slot: slot, Storage: true}
}

func (k Key) String() string {
	if k.Storage {
		return k.Address.Hex() + "[" + k.Slot.Hex() + "]"
	}
	return k.Address.Hex()
}

// MissError is returned by cache-only reads when the value has not been
// fetched yet. The caller resolves Key outside its locks and retries.
type MissError struct {
	Key Key
}

func (e *MissError) Error() string {
	return "fork cache miss: " + e.Key.String()
}
