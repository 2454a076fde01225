package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
)

// Receipt status values
const (
	ReceiptStatusFailed     = uint64(0)
	ReceiptStatusSuccessful = uint64(1)
)

// Log is an event emitted during execution
type Log struct {
	Address common.Address
	Topics  []common.Hash
	Data    []byte
}

// Receipt is the outcome of one included transaction
type Receipt struct {
	TxHash            common.Hash
	BlockNumber       uint64
	BlockHash         common.Hash
	Index             uint
	From              common.Address
	To                *common.Address
	ContractAddress   *common.Address
	GasUsed           uint64
	CumulativeGasUsed uint64
	EffectiveGasPrice *uint256.Int
	Status            uint64
	RevertReason      string
	Logs              []*Log
}

// Block is an immutable entry of the chain log
type Block struct {
	Number       uint64
	Hash         common.Hash
	ParentHash   common.Hash
	Timestamp    uint64
	GasLimit     uint64
	GasUsed      uint64
	BaseFee      *uint256.Int
	Miner        common.Address
	StateRoot    common.Hash
	Transactions []*PendingTransaction
	Receipts     []*Receipt
}

type blockHeader struct {
	ParentHash common.Hash
	Number     uint64
	Timestamp  uint64
	GasLimit   uint64
	GasUsed    uint64
	BaseFee    *big.Int
	Miner      common.Address
	StateRoot  common.Hash
	TxHashes   []common.Hash
}

// ComputeHash derives the block hash from its header fields and transaction hashes
func (b *Block) ComputeHash() common.Hash {
	h := blockHeader{
		ParentHash: b.ParentHash,
		Number:     b.Number,
		Timestamp:  b.Timestamp,
		GasLimit:   b.GasLimit,
		GasUsed:    b.GasUsed,
		BaseFee:    new(big.Int),
		Miner:      b.Miner,
		StateRoot:  b.StateRoot,
		TxHashes:   make([]common.Hash, len(b.Transactions)),
	}
	if b.BaseFee != nil {
		h.BaseFee = b.BaseFee.ToBig()
	}
	for i, tx := range b.Transactions {
		h.TxHashes[i] = tx.Hash
	}
	data, err := rlp.EncodeToBytes(&h)
	if err != nil {
		panic("failed to encode block header: " + err.Error())
	}
	return crypto.Keccak256Hash(data)
}
