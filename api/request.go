// Package api turns JSON-RPC calls into typed requests and dispatches them
// to the engine.
package api

import (
	"github.com/airchains-network/devchain/engine"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/holiman/uint256"
)

// Request is one decoded call. The set of variants is closed.
type Request interface {
	request()
}

type (
	SetBalance struct {
		Address common.Address
		Balance *uint256.Int
	}
	SetNonce struct {
		Address common.Address
		Nonce   uint64
	}
	SetCode struct {
		Address common.Address
		Code    []byte
	}
	SetStorageAt struct {
		Address common.Address
		Slot    common.Hash
		Value   common.Hash
	}
	SetMinGasPrice struct {
		Price *uint256.Int
	}
	ImpersonateAccount struct {
		Address common.Address
	}
	StopImpersonatingAccount struct {
		Address common.Address
	}
	AutoImpersonateAccount struct {
		Enabled bool
	}
)

type (
	SetNextBlockTimestamp struct {
		Timestamp uint64
	}
	SetBlockTimestampInterval struct {
		Seconds uint64
	}
	RemoveBlockTimestampInterval struct{}
	IncreaseTime                 struct {
		Seconds uint64
	}
	SetTime struct {
		Timestamp uint64
	}
)

type (
	// Mine mines Blocks blocks, Interval seconds apart when Interval is set
	Mine struct {
		Blocks   uint64
		Interval uint64
	}
	// EvmMine mines one block, at Timestamp when set
	EvmMine struct {
		Timestamp *uint64
	}
	// MineDetailed mines exactly the given pooled transactions
	MineDetailed struct {
		Transactions []common.Hash
	}
	SetAutomine struct {
		Enabled bool
	}
	SetIntervalMining struct {
		Seconds uint64
	}
	Snapshot struct{}
	Revert   struct {
		ID uint64
	}
	DropTransaction struct {
		Hash common.Hash
	}
)

type (
	GetBalance struct {
		Address common.Address
		Block   rpc.BlockNumber
	}
	GetTransactionCount struct {
		Address common.Address
		Block   rpc.BlockNumber
	}
	GetCode struct {
		Address common.Address
		Block   rpc.BlockNumber
	}
	GetStorageAt struct {
		Address common.Address
		Slot    common.Hash
		Block   rpc.BlockNumber
	}
	BlockNumber      struct{}
	GetBlockByNumber struct {
		Block   rpc.BlockNumber
		FullTxs bool
	}
	GetBlockByHash struct {
		Hash    common.Hash
		FullTxs bool
	}
	GetTransactionReceipt struct {
		Hash common.Hash
	}
	GetTransactionByHash struct {
		Hash common.Hash
	}
	GasPrice      struct{}
	ChainID       struct{}
	NetVersion    struct{}
	ClientVersion struct{}
	Accounts      struct{}
	NodeInfo      struct{}
	TxPoolContent struct{}
)

type (
	SendTransaction struct {
		Args engine.TransactionArgs
	}
	SendRawTransaction struct {
		Raw []byte
	}
)

func (SetBalance) request()                   {}
func (SetNonce) request()                     {}
func (SetCode) request()                      {}
func (SetStorageAt) request()                 {}
func (SetMinGasPrice) request()               {}
func (ImpersonateAccount) request()           {}
func (StopImpersonatingAccount) request()     {}
func (AutoImpersonateAccount) request()       {}
func (SetNextBlockTimestamp) request()        {}
func (SetBlockTimestampInterval) request()    {}
func (RemoveBlockTimestampInterval) request() {}
func (IncreaseTime) request()                 {}
func (SetTime) request()                      {}
func (Mine) request()                         {}
func (EvmMine) request()                      {}
func (MineDetailed) request()                 {}
func (SetAutomine) request()                  {}
func (SetIntervalMining) request()            {}
func (Snapshot) request()                     {}
func (Revert) request()                       {}
func (DropTransaction) request()              {}
func (GetBalance) request()                   {}
func (GetTransactionCount) request()          {}
func (GetCode) request()                      {}
func (GetStorageAt) request()                 {}
func (BlockNumber) request()                  {}
func (GetBlockByNumber) request()             {}
func (GetBlockByHash) request()               {}
func (GetTransactionReceipt) request()        {}
func (GetTransactionByHash) request()         {}
func (GasPrice) request()                     {}
func (ChainID) request()                      {}
func (NetVersion) request()                   {}
func (ClientVersion) request()                {}
func (Accounts) request()                     {}
func (NodeInfo) request()                     {}
func (TxPoolContent) request()                {}
func (SendTransaction) request()              {}
func (SendRawTransaction) request()           {}
