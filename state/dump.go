package state

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/airchains-network/devchain/db"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
)

const accountPrefix = "account:"

// dumpAccount keeps per-field presence so that a reloaded store shadows the
// fork exactly where the dumped one did
type dumpAccount struct {
	Balance *hexutil.Big                `json:"balance,omitempty"`
	Nonce   *hexutil.Uint64             `json:"nonce,omitempty"`
	Code    *hexutil.Bytes              `json:"code,omitempty"`
	Storage map[common.Hash]common.Hash `json:"storage,omitempty"`
	Cleared bool                        `json:"cleared,omitempty"`
}

func accountKey(addr common.Address) []byte {
	return []byte(accountPrefix + strings.ToLower(addr.Hex()))
}

// Dump replaces the accounts stored in database with the local layer
func (s *Store) Dump(database db.DB) error {
	var stale [][]byte
	err := database.Iterate([]byte(accountPrefix), func(key, _ []byte) error {
		stale = append(stale, common.CopyBytes(key))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to list dumped accounts: %v", err)
	}
	for _, key := range stale {
		if err := database.Delete(key); err != nil {
			return fmt.Errorf("failed to delete dumped account: %v", err)
		}
	}

	for addr, e := range s.accounts {
		acc := dumpAccount{Storage: e.storage, Cleared: e.cleared}
		if e.balance != nil {
			acc.Balance = (*hexutil.Big)(e.balance.ToBig())
		}
		if e.nonce != nil {
			n := hexutil.Uint64(*e.nonce)
			acc.Nonce = &n
		}
		if e.hasCode {
			code := hexutil.Bytes(common.CopyBytes(e.code))
			acc.Code = &code
		}
		data, err := json.Marshal(&acc)
		if err != nil {
			return fmt.Errorf("failed to encode account %s: %v", addr.Hex(), err)
		}
		if err := database.Put(accountKey(addr), data); err != nil {
			return fmt.Errorf("failed to save account %s: %v", addr.Hex(), err)
		}
	}
	return nil
}

// Load merges the accounts stored in database into the local layer and
// returns how many were read
func (s *Store) Load(database db.DB) (int, error) {
	count := 0
	err := database.Iterate([]byte(accountPrefix), func(key, value []byte) error {
		hexAddr := string(key[len(accountPrefix):])
		if !common.IsHexAddress(hexAddr) {
			return fmt.Errorf("invalid account key %q", string(key))
		}
		addr := common.HexToAddress(hexAddr)

		var acc dumpAccount
		if err := json.Unmarshal(value, &acc); err != nil {
			return fmt.Errorf("failed to decode account %s: %v", hexAddr, err)
		}
		e := s.entry(addr)
		if acc.Balance != nil {
			balance, overflow := uint256.FromBig(acc.Balance.ToInt())
			if overflow {
				return fmt.Errorf("balance of %s overflows 256 bits", hexAddr)
			}
			e.balance = balance
		}
		if acc.Nonce != nil {
			n := uint64(*acc.Nonce)
			e.nonce = &n
		}
		if acc.Code != nil {
			e.code = common.CopyBytes(*acc.Code)
			e.hasCode = true
		}
		if acc.Storage != nil {
			e.storage = acc.Storage
		}
		e.cleared = acc.Cleared
		count++
		return nil
	})
	return count, err
}
