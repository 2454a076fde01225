package api

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/airchains-network/devchain/engine"
	"github.com/airchains-network/devchain/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"
)

// Version is reported by web3_clientVersion
const Version = "devchain/v0.1.0"

// Router executes decoded requests against the engine and renders results
// in their JSON-RPC form
type Router struct {
	engine *engine.Engine
	blocks *lru.Cache[renderKey, *RPCBlock]
	log    *logrus.Logger
}

// renderCacheSize bounds the rendered blocks kept for repeated reads
const renderCacheSize = 256

type renderKey struct {
	hash    common.Hash
	fullTxs bool
}

// NewRouter creates a router over e
func NewRouter(e *engine.Engine, log *logrus.Logger) *Router {
	// lru.New only fails for a non-positive size
	blocks, _ := lru.New[renderKey, *RPCBlock](renderCacheSize)
	return &Router{engine: e, blocks: blocks, log: log}
}

// renderBlock returns the JSON-RPC form of block. A hash always names the
// same content, so renderings are shared between calls.
func (r *Router) renderBlock(block *types.Block, fullTxs bool) *RPCBlock {
	key := renderKey{hash: block.Hash, fullTxs: fullTxs}
	if out, ok := r.blocks.Get(key); ok {
		return out
	}
	out := NewRPCBlock(block, fullTxs)
	r.blocks.Add(key, out)
	return out
}

// Handle decodes and dispatches one call
func (r *Router) Handle(ctx context.Context, method string, params []byte) (interface{}, error) {
	req, err := Decode(method, params)
	if err != nil {
		return nil, err
	}
	return r.Dispatch(ctx, req)
}

// Dispatch executes req. A nil result renders as JSON null.
func (r *Router) Dispatch(ctx context.Context, req Request) (interface{}, error) {
	e := r.engine
	r.log.WithField("request", fmt.Sprintf("%T", req)).Debug("Dispatching request")
	switch req := req.(type) {
	case SetBalance:
		e.SetBalance(req.Address, req.Balance)
		return true, nil
	case SetNonce:
		e.SetNonce(req.Address, req.Nonce)
		return true, nil
	case SetCode:
		e.SetCode(req.Address, req.Code)
		return true, nil
	case SetStorageAt:
		e.SetStorageAt(req.Address, req.Slot, req.Value)
		return true, nil
	case SetMinGasPrice:
		e.SetMinGasPrice(req.Price)
		return nil, nil
	case ImpersonateAccount:
		if err := e.ImpersonateAccount(ctx, req.Address); err != nil {
			return nil, err
		}
		return nil, nil
	case StopImpersonatingAccount:
		e.StopImpersonatingAccount(req.Address)
		return nil, nil
	case AutoImpersonateAccount:
		e.SetAutoImpersonate(req.Enabled)
		return nil, nil

	case SetNextBlockTimestamp:
		if err := e.SetNextBlockTimestamp(req.Timestamp); err != nil {
			return nil, err
		}
		return nil, nil
	case SetBlockTimestampInterval:
		e.SetBlockTimestampInterval(req.Seconds)
		return nil, nil
	case RemoveBlockTimestampInterval:
		return e.RemoveBlockTimestampInterval(), nil
	case IncreaseTime:
		return e.IncreaseTime(req.Seconds), nil
	case SetTime:
		e.SetTime(req.Timestamp)
		return nil, nil

	case Mine:
		if _, err := e.Mine(ctx, req.Blocks, req.Interval); err != nil {
			return nil, err
		}
		return nil, nil
	case EvmMine:
		if _, err := e.EvmMine(ctx, req.Timestamp); err != nil {
			return nil, err
		}
		return "0x0", nil
	case MineDetailed:
		block, err := e.MineTransactions(ctx, req.Transactions)
		if err != nil {
			return nil, err
		}
		return []*RPCBlock{NewRPCBlock(block, true)}, nil
	case SetAutomine:
		e.SetAutomine(req.Enabled)
		return nil, nil
	case SetIntervalMining:
		e.SetIntervalMining(req.Seconds)
		return nil, nil
	case Snapshot:
		return hexutil.Uint64(e.Snapshot()), nil
	case Revert:
		return e.Revert(req.ID), nil
	case DropTransaction:
		if !e.DropTransaction(req.Hash) {
			return nil, nil
		}
		return req.Hash, nil

	case GetBalance:
		balance, err := e.Balance(ctx, req.Address, req.Block)
		if err != nil {
			return nil, err
		}
		return hexBig(balance), nil
	case GetTransactionCount:
		nonce, err := e.Nonce(ctx, req.Address, req.Block)
		if err != nil {
			return nil, err
		}
		return hexutil.Uint64(nonce), nil
	case GetCode:
		code, err := e.Code(ctx, req.Address, req.Block)
		if err != nil {
			return nil, err
		}
		return hexutil.Bytes(code), nil
	case GetStorageAt:
		return e.StorageAt(ctx, req.Address, req.Slot, req.Block)
	case BlockNumber:
		return hexutil.Uint64(e.BlockNumber()), nil
	case GetBlockByNumber:
		block, err := e.BlockByNumber(req.Block)
		if errors.Is(err, types.ErrUnknownBlock) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return r.renderBlock(block, req.FullTxs), nil
	case GetBlockByHash:
		block, err := e.BlockByHash(req.Hash)
		if errors.Is(err, types.ErrUnknownBlock) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return r.renderBlock(block, req.FullTxs), nil
	case GetTransactionReceipt:
		receipt := e.TransactionReceipt(req.Hash)
		if receipt == nil {
			return nil, nil
		}
		return NewRPCReceipt(receipt), nil
	case GetTransactionByHash:
		tx, block, ok := e.Transaction(req.Hash)
		if !ok {
			return nil, nil
		}
		return NewRPCTransaction(tx, block), nil
	case GasPrice:
		return hexBig(e.GasPrice()), nil
	case ChainID:
		return hexutil.Uint64(e.ChainID()), nil
	case NetVersion:
		return strconv.FormatUint(e.ChainID(), 10), nil
	case ClientVersion:
		return Version, nil
	case Accounts:
		return e.Accounts(), nil
	case NodeInfo:
		return NewRPCNodeInfo(e.NodeInfo()), nil
	case TxPoolContent:
		pending, queued, err := e.TxPoolContent(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]map[common.Address]map[string]*RPCTransaction{
			"pending": byNonce(pending),
			"queued":  byNonce(queued),
		}, nil

	case SendTransaction:
		sub, err := e.SendTransaction(ctx, req.Args)
		if err != nil {
			return nil, err
		}
		return sub.Hash, nil
	case SendRawTransaction:
		sub, err := e.SendRawTransaction(ctx, req.Raw)
		if err != nil {
			return nil, err
		}
		return sub.Hash, nil
	}
	return nil, fmt.Errorf("%w: unhandled request %T", types.ErrEngineFault, req)
}

func byNonce(txs map[common.Address][]*types.PendingTransaction) map[common.Address]map[string]*RPCTransaction {
	out := make(map[common.Address]map[string]*RPCTransaction, len(txs))
	for sender, list := range txs {
		out[sender] = make(map[string]*RPCTransaction, len(list))
		for _, tx := range list {
			out[sender][strconv.FormatUint(tx.Nonce, 10)] = NewRPCTransaction(tx, nil)
		}
	}
	return out
}
