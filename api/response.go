package api

import (
	"github.com/airchains-network/devchain/engine"
	"github.com/airchains-network/devchain/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
)

// RPCTransaction is the eth_getTransactionByHash view of a transaction
type RPCTransaction struct {
	BlockHash        *common.Hash    `json:"blockHash"`
	BlockNumber      *hexutil.Big    `json:"blockNumber"`
	From             common.Address  `json:"from"`
	Gas              hexutil.Uint64  `json:"gas"`
	GasPrice         *hexutil.Big    `json:"gasPrice"`
	Hash             common.Hash     `json:"hash"`
	Input            hexutil.Bytes   `json:"input"`
	Nonce            hexutil.Uint64  `json:"nonce"`
	To               *common.Address `json:"to"`
	TransactionIndex *hexutil.Uint64 `json:"transactionIndex"`
	Value            *hexutil.Big    `json:"value"`
	Type             hexutil.Uint64  `json:"type"`
	ChainID          *hexutil.Big    `json:"chainId,omitempty"`
	V                *hexutil.Big    `json:"v,omitempty"`
	R                *hexutil.Big    `json:"r,omitempty"`
	S                *hexutil.Big    `json:"s,omitempty"`
}

// RPCBlock is the eth_getBlockByNumber view of a block. Transactions holds
// hashes or full transactions.
type RPCBlock struct {
	Number        hexutil.Uint64 `json:"number"`
	Hash          common.Hash    `json:"hash"`
	ParentHash    common.Hash    `json:"parentHash"`
	Timestamp     hexutil.Uint64 `json:"timestamp"`
	GasLimit      hexutil.Uint64 `json:"gasLimit"`
	GasUsed       hexutil.Uint64 `json:"gasUsed"`
	BaseFeePerGas *hexutil.Big   `json:"baseFeePerGas"`
	Miner         common.Address `json:"miner"`
	StateRoot     common.Hash    `json:"stateRoot"`
	Difficulty    *hexutil.Big   `json:"difficulty"`
	ExtraData     hexutil.Bytes  `json:"extraData"`
	Uncles        []common.Hash  `json:"uncles"`
	Transactions  []interface{}  `json:"transactions"`
}

// RPCLog is one log entry of a receipt
type RPCLog struct {
	Address          common.Address `json:"address"`
	Topics           []common.Hash  `json:"topics"`
	Data             hexutil.Bytes  `json:"data"`
	BlockNumber      hexutil.Uint64 `json:"blockNumber"`
	BlockHash        common.Hash    `json:"blockHash"`
	TransactionHash  common.Hash    `json:"transactionHash"`
	TransactionIndex hexutil.Uint   `json:"transactionIndex"`
	LogIndex         hexutil.Uint   `json:"logIndex"`
	Removed          bool           `json:"removed"`
}

// RPCReceipt is the eth_getTransactionReceipt view of a receipt
type RPCReceipt struct {
	TransactionHash   common.Hash     `json:"transactionHash"`
	TransactionIndex  hexutil.Uint    `json:"transactionIndex"`
	BlockHash         common.Hash     `json:"blockHash"`
	BlockNumber       hexutil.Uint64  `json:"blockNumber"`
	From              common.Address  `json:"from"`
	To                *common.Address `json:"to"`
	ContractAddress   *common.Address `json:"contractAddress"`
	GasUsed           hexutil.Uint64  `json:"gasUsed"`
	CumulativeGasUsed hexutil.Uint64  `json:"cumulativeGasUsed"`
	EffectiveGasPrice *hexutil.Big    `json:"effectiveGasPrice"`
	Status            hexutil.Uint64  `json:"status"`
	RevertReason      string          `json:"revertReason,omitempty"`
	Logs              []*RPCLog       `json:"logs"`
	Type              hexutil.Uint64  `json:"type"`
}

// RPCNodeInfo is the anvil_nodeInfo view of the node
type RPCNodeInfo struct {
	CurrentBlockNumber    hexutil.Uint64   `json:"currentBlockNumber"`
	CurrentBlockTimestamp uint64           `json:"currentBlockTimestamp"`
	CurrentBlockHash      common.Hash      `json:"currentBlockHash"`
	ChainID               hexutil.Uint64   `json:"chainId"`
	MiningMode            string           `json:"miningMode"`
	GasLimit              hexutil.Uint64   `json:"gasLimit"`
	BaseFee               *hexutil.Big     `json:"baseFee"`
	GasPrice              *hexutil.Big     `json:"gasPrice"`
	Impersonated          []common.Address `json:"impersonatedAccounts"`
	AutoImpersonate       bool             `json:"autoImpersonate"`
	PendingTransactions   int              `json:"pendingTransactions"`
	Fork                  *RPCForkInfo     `json:"forkConfig,omitempty"`
}

// RPCForkInfo describes the fork source
type RPCForkInfo struct {
	URL         string         `json:"forkUrl"`
	BlockNumber hexutil.Uint64 `json:"forkBlockNumber"`
}

func hexBig(v *uint256.Int) *hexutil.Big {
	if v == nil {
		return (*hexutil.Big)(new(uint256.Int).ToBig())
	}
	return (*hexutil.Big)(v.ToBig())
}

// NewRPCTransaction renders tx; block is nil while the transaction is pooled
func NewRPCTransaction(tx *types.PendingTransaction, block *types.Block) *RPCTransaction {
	out := &RPCTransaction{
		From:     tx.From,
		Gas:      hexutil.Uint64(tx.Gas),
		GasPrice: hexBig(tx.GasPrice),
		Hash:     tx.Hash,
		Input:    tx.Data,
		Nonce:    hexutil.Uint64(tx.Nonce),
		To:       tx.To,
		Value:    hexBig(tx.Value),
	}
	if out.Input == nil {
		out.Input = hexutil.Bytes{}
	}
	if block != nil {
		hash := block.Hash
		out.BlockHash = &hash
		out.BlockNumber = hexBig(uint256.NewInt(block.Number))
		for i, included := range block.Transactions {
			if included.Hash == tx.Hash {
				index := hexutil.Uint64(i)
				out.TransactionIndex = &index
				break
			}
		}
	}
	if tx.Raw != nil {
		out.Type = hexutil.Uint64(tx.Raw.Type())
		v, r, s := tx.Raw.RawSignatureValues()
		out.V, out.R, out.S = (*hexutil.Big)(v), (*hexutil.Big)(r), (*hexutil.Big)(s)
		if tx.Raw.Protected() {
			out.ChainID = (*hexutil.Big)(tx.Raw.ChainId())
		}
	}
	return out
}

// NewRPCBlock renders block, with full transactions when fullTxs is set
func NewRPCBlock(block *types.Block, fullTxs bool) *RPCBlock {
	out := &RPCBlock{
		Number:        hexutil.Uint64(block.Number),
		Hash:          block.Hash,
		ParentHash:    block.ParentHash,
		Timestamp:     hexutil.Uint64(block.Timestamp),
		GasLimit:      hexutil.Uint64(block.GasLimit),
		GasUsed:       hexutil.Uint64(block.GasUsed),
		BaseFeePerGas: hexBig(block.BaseFee),
		Miner:         block.Miner,
		StateRoot:     block.StateRoot,
		Difficulty:    hexBig(nil),
		ExtraData:     hexutil.Bytes{},
		Uncles:        []common.Hash{},
		Transactions:  make([]interface{}, 0, len(block.Transactions)),
	}
	for _, tx := range block.Transactions {
		if fullTxs {
			out.Transactions = append(out.Transactions, NewRPCTransaction(tx, block))
		} else {
			out.Transactions = append(out.Transactions, tx.Hash)
		}
	}
	return out
}

// NewRPCReceipt renders receipt
func NewRPCReceipt(receipt *types.Receipt) *RPCReceipt {
	out := &RPCReceipt{
		TransactionHash:   receipt.TxHash,
		TransactionIndex:  hexutil.Uint(receipt.Index),
		BlockHash:         receipt.BlockHash,
		BlockNumber:       hexutil.Uint64(receipt.BlockNumber),
		From:              receipt.From,
		To:                receipt.To,
		ContractAddress:   receipt.ContractAddress,
		GasUsed:           hexutil.Uint64(receipt.GasUsed),
		CumulativeGasUsed: hexutil.Uint64(receipt.CumulativeGasUsed),
		EffectiveGasPrice: hexBig(receipt.EffectiveGasPrice),
		Status:            hexutil.Uint64(receipt.Status),
		RevertReason:      receipt.RevertReason,
		Logs:              make([]*RPCLog, 0, len(receipt.Logs)),
	}
	for i, l := range receipt.Logs {
		out.Logs = append(out.Logs, &RPCLog{
			Address:          l.Address,
			Topics:           l.Topics,
			Data:             l.Data,
			BlockNumber:      hexutil.Uint64(receipt.BlockNumber),
			BlockHash:        receipt.BlockHash,
			TransactionHash:  receipt.TxHash,
			TransactionIndex: hexutil.Uint(receipt.Index),
			LogIndex:         hexutil.Uint(i),
		})
	}
	return out
}

// NewRPCNodeInfo renders info
func NewRPCNodeInfo(info *engine.NodeInfo) *RPCNodeInfo {
	out := &RPCNodeInfo{
		CurrentBlockNumber:    hexutil.Uint64(info.CurrentBlockNumber),
		CurrentBlockTimestamp: info.CurrentBlockTimestamp,
		CurrentBlockHash:      info.CurrentBlockHash,
		ChainID:               hexutil.Uint64(info.ChainID),
		MiningMode:            info.Mode,
		GasLimit:              hexutil.Uint64(info.GasLimit),
		BaseFee:               hexBig(info.BaseFee),
		GasPrice:              hexBig(info.GasPrice),
		Impersonated:          info.Impersonated,
		AutoImpersonate:       info.AutoImpersonate,
		PendingTransactions:   info.PendingTransactions,
	}
	if out.Impersonated == nil {
		out.Impersonated = []common.Address{}
	}
	if info.ForkBlockNumber != nil {
		out.Fork = &RPCForkInfo{URL: info.ForkURL, BlockNumber: hexutil.Uint64(*info.ForkBlockNumber)}
	}
	return out
}
