package types

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
)

// PendingTransaction is a transaction waiting in the pool or included in a
// block. Raw is set when the transaction arrived signed; impersonated
// transactions have no signature and Raw is nil.
type PendingTransaction struct {
	Hash     common.Hash
	From     common.Address
	To       *common.Address
	Value    *uint256.Int
	Data     []byte
	Gas      uint64
	GasPrice *uint256.Int
	Nonce    uint64
	Raw      *gethtypes.Transaction
}

// Signed reports whether the transaction carries a verified signature
func (tx *PendingTransaction) Signed() bool {
	return tx.Raw != nil
}

// IsCreate reports whether the transaction deploys a contract
func (tx *PendingTransaction) IsCreate() bool {
	return tx.To == nil
}

// FromSigned converts a signed go-ethereum transaction, recovering its sender
func FromSigned(tx *gethtypes.Transaction, signer gethtypes.Signer) (*PendingTransaction, error) {
	from, err := gethtypes.Sender(signer, tx)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid signature: %v", ErrInvalidInput, err)
	}
	value, overflow := uint256.FromBig(tx.Value())
	if overflow {
		return nil, fmt.Errorf("%w: value overflows 256 bits", ErrInvalidInput)
	}
	gasPrice, overflow := uint256.FromBig(tx.GasPrice())
	if overflow {
		return nil, fmt.Errorf("%w: gas price overflows 256 bits", ErrInvalidInput)
	}
	return &PendingTransaction{
		Hash:     tx.Hash(),
		From:     from,
		To:       tx.To(),
		Value:    value,
		Data:     common.CopyBytes(tx.Data()),
		Gas:      tx.Gas(),
		GasPrice: gasPrice,
		Nonce:    tx.Nonce(),
		Raw:      tx,
	}, nil
}

// unsignedTx is the RLP layout hashed to identify an impersonated transaction
type unsignedTx struct {
	From     common.Address
	To       []byte
	Value    *big.Int
	Data     []byte
	Gas      uint64
	GasPrice *big.Int
	Nonce    uint64
}

// NewUnsigned builds an impersonated transaction and derives its hash
func NewUnsigned(from common.Address, to *common.Address, value *uint256.Int, data []byte, gas uint64, gasPrice *uint256.Int, nonce uint64) *PendingTransaction {
	if value == nil {
		value = new(uint256.Int)
	}
	if gasPrice == nil {
		gasPrice = new(uint256.Int)
	}
	tx := &PendingTransaction{
		From:     from,
		To:       to,
		Value:    new(uint256.Int).Set(value),
		Data:     common.CopyBytes(data),
		Gas:      gas,
		GasPrice: new(uint256.Int).Set(gasPrice),
		Nonce:    nonce,
	}
	tx.Hash = tx.unsignedHash()
	return tx
}

func (tx *PendingTransaction) unsignedHash() common.Hash {
	enc := unsignedTx{
		From:     tx.From,
		Value:    tx.Value.ToBig(),
		Data:     tx.Data,
		Gas:      tx.Gas,
		GasPrice: tx.GasPrice.ToBig(),
		Nonce:    tx.Nonce,
	}
	if tx.To != nil {
		enc.To = tx.To.Bytes()
	}
	data, err := rlp.EncodeToBytes(&enc)
	if err != nil {
		// all fields are RLP primitives
		panic(fmt.Sprintf("failed to encode unsigned tx: %v", err))
	}
	return crypto.Keccak256Hash(data)
}

// ContractAddress returns the address a creation transaction deploys to
func (tx *PendingTransaction) ContractAddress() common.Address {
	return crypto.CreateAddress(tx.From, tx.Nonce)
}
