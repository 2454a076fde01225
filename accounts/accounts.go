// Package accounts holds the fixed development key pairs the node funds at
// genesis and signs for.
package accounts

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// devKeys are derived from the well known "test test ... junk" mnemonic
var devKeys = []string{
	"ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80",
	"59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d",
	"5de4111afa1a4b94908f83103eb1f1706367c2e68ca870fc3fb9a804cdab365a",
	"7c852118294e51e653712a81e05800f419141751be58f605c371e15141b007a6",
	"47e179ec197488593b187f80a00eb0da91f1b9d0b13f8733639f19c30a34926a",
	"8b3a350cf5c34c9194ca85829a2df0ec3153be0318b5e2d3348e872092edffba",
	"92db14e403b83dfe3df233f83dfa3a0d7096f21ca9b0d6d6b8d88b2b4ec1564e",
	"4bbbf85ce3377467afe5d46f804f221813b2bb87f24d81f60f1fcdbf7cbf4356",
	"dbda1821b80551c9d65939329250298aa3472ba22feea921c0cf5d620ea67b97",
	"2a871d0798f97d79848a013d4936a73bf4cc922c825d33c1cf7073dff6d409c6",
}

// Account is one development key pair
type Account struct {
	Address common.Address
	Key     *ecdsa.PrivateKey
}

// PrivateKeyHex returns the 0x prefixed private key
func (a *Account) PrivateKeyHex() string {
	return "0x" + common.Bytes2Hex(crypto.FromECDSA(a.Key))
}

// Wallet holds the development accounts in a fixed order
type Wallet struct {
	accounts []*Account
	index    map[common.Address]*Account
}

// NewDevWallet loads the ten development accounts
func NewDevWallet() (*Wallet, error) {
	w := &Wallet{index: make(map[common.Address]*Account, len(devKeys))}
	for i, hexKey := range devKeys {
		key, err := crypto.HexToECDSA(hexKey)
		if err != nil {
			return nil, fmt.Errorf("failed to load dev key %d: %v", i, err)
		}
		acc := &Account{Address: crypto.PubkeyToAddress(key.PublicKey), Key: key}
		w.accounts = append(w.accounts, acc)
		w.index[acc.Address] = acc
	}
	return w, nil
}

// Accounts returns the development accounts in order
func (w *Wallet) Accounts() []*Account {
	return w.accounts
}

// Addresses returns the development addresses in order
func (w *Wallet) Addresses() []common.Address {
	addrs := make([]common.Address, len(w.accounts))
	for i, acc := range w.accounts {
		addrs[i] = acc.Address
	}
	return addrs
}

// Has reports whether the wallet can sign for addr
func (w *Wallet) Has(addr common.Address) bool {
	_, ok := w.index[addr]
	return ok
}

// SignTx signs a legacy transaction from addr for chainID
func (w *Wallet) SignTx(addr common.Address, tx *gethtypes.LegacyTx, chainID uint64) (*gethtypes.Transaction, error) {
	acc, ok := w.index[addr]
	if !ok {
		return nil, fmt.Errorf("no dev key for %s", addr.Hex())
	}
	signer := gethtypes.LatestSignerForChainID(new(big.Int).SetUint64(chainID))
	signed, err := gethtypes.SignNewTx(acc.Key, signer, tx)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %v", err)
	}
	return signed, nil
}
