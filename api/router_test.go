package api

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/airchains-network/devchain/accounts"
	"github.com/airchains-network/devchain/chaintime"
	"github.com/airchains-network/devchain/engine"
	"github.com/airchains-network/devchain/miner"
	"github.com/airchains-network/devchain/types"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/holiman/uint256"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	genesisTime = 1_700_000_000
	devAccount  = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
)

func newRouter(t *testing.T) *Router {
	t.Helper()
	log, _ := test.NewNullLogger()
	wallet, err := accounts.NewDevWallet()
	require.NoError(t, err)
	balance, err := uint256.FromDecimal("10000000000000000000000")
	require.NoError(t, err)
	e, err := engine.New(context.Background(), engine.Config{
		ChainID:          31337,
		GasLimit:         30_000_000,
		BaseFee:          uint256.NewInt(1),
		GenesisTimestamp: genesisTime,
		HistoryDepth:     16,
		Mode:             miner.Manual,
		DevBalance:       balance,
	}, engine.Deps{
		Wallet: wallet,
		Clock:  chaintime.NewFakeClock(time.Unix(genesisTime, 0)),
		Log:    log,
	})
	require.NoError(t, err)
	return NewRouter(e, log)
}

// call runs method and returns its result as JSON
func call(t *testing.T, r *Router, method, params string) string {
	t.Helper()
	result, err := r.Handle(context.Background(), method, []byte(params))
	require.NoError(t, err, method)
	out, err := json.Marshal(result)
	require.NoError(t, err)
	return string(out)
}

func TestRouterSetBalance(t *testing.T) {
	r := newRouter(t)
	call(t, r, "anvil_setBalance", `["0x00000000000000000000000000000000000a11ce", "0x1337"]`)
	assert.Equal(t, `"0x1337"`, call(t, r, "eth_getBalance", `["0x00000000000000000000000000000000000a11ce", "latest"]`))
}

func TestRouterSetStorageAt(t *testing.T) {
	r := newRouter(t)
	call(t, r, "hardhat_setStorageAt", `["0x00000000000000000000000000000000000a11ce", "0x0", "0x1337"]`)
	assert.Equal(t,
		`"0x0000000000000000000000000000000000000000000000000000000000001337"`,
		call(t, r, "eth_getStorageAt", `["0x00000000000000000000000000000000000a11ce", "0x0"]`))
}

func TestRouterChainInfo(t *testing.T) {
	r := newRouter(t)
	assert.Equal(t, `"0x7a69"`, call(t, r, "eth_chainId", `[]`))
	assert.Equal(t, `"31337"`, call(t, r, "net_version", `[]`))
	assert.Equal(t, `"0x0"`, call(t, r, "eth_blockNumber", `[]`))
	assert.Equal(t, fmt.Sprintf("%q", Version), call(t, r, "web3_clientVersion", `[]`))

	var addrs []string
	require.NoError(t, json.Unmarshal([]byte(call(t, r, "eth_accounts", `[]`)), &addrs))
	require.Len(t, addrs, 10)
	assert.Equal(t, devAccount, addrs[0])
}

func TestRouterSendAndMine(t *testing.T) {
	r := newRouter(t)
	var hash string
	require.NoError(t, json.Unmarshal([]byte(call(t, r, "eth_sendTransaction", `[{
		"from": "`+devAccount+`",
		"to": "0x0000000000000000000000000000000000000b0b",
		"value": "0x64"
	}]`)), &hash))

	assert.Equal(t, `null`, call(t, r, "eth_getTransactionReceipt", `["`+hash+`"]`))
	var pooled RPCTransaction
	require.NoError(t, json.Unmarshal([]byte(call(t, r, "eth_getTransactionByHash", `["`+hash+`"]`)), &pooled))
	assert.Nil(t, pooled.BlockHash)

	assert.Equal(t, `"0x0"`, call(t, r, "evm_mine", `[]`))
	assert.Equal(t, `"0x1"`, call(t, r, "eth_blockNumber", `[]`))

	var receipt RPCReceipt
	require.NoError(t, json.Unmarshal([]byte(call(t, r, "eth_getTransactionReceipt", `["`+hash+`"]`)), &receipt))
	assert.Equal(t, uint64(types.ReceiptStatusSuccessful), uint64(receipt.Status))
	assert.Equal(t, uint64(1), uint64(receipt.BlockNumber))
	assert.Equal(t, uint64(21000), uint64(receipt.GasUsed))

	var block RPCBlock
	require.NoError(t, json.Unmarshal([]byte(call(t, r, "eth_getBlockByNumber", `["0x1", false]`)), &block))
	require.Len(t, block.Transactions, 1)
	assert.Equal(t, hash, block.Transactions[0])
	assert.Equal(t, receipt.BlockHash, block.Hash)

	assert.Equal(t, `"0x64"`, call(t, r, "eth_getBalance", `["0x0000000000000000000000000000000000000b0b"]`))
	assert.Equal(t, `"0x1"`, call(t, r, "eth_getTransactionCount", `["`+devAccount+`", "latest"]`))
}

func TestRouterUnknownBlockIsNull(t *testing.T) {
	r := newRouter(t)
	assert.Equal(t, `null`, call(t, r, "eth_getBlockByNumber", `["0x64", false]`))
	assert.Equal(t, `null`, call(t, r, "eth_getBlockByHash", `["0x0000000000000000000000000000000000000000000000000000000000000001", false]`))
}

func TestRouterImpersonatedTransfer(t *testing.T) {
	r := newRouter(t)
	send := `[{
		"from": "0x00000000000000000000000000000000000a11ce",
		"to": "0x0000000000000000000000000000000000000b0b",
		"value": "0x1"
	}]`
	_, err := r.Handle(context.Background(), "eth_sendTransaction", []byte(send))
	assert.ErrorIs(t, err, types.ErrUnauthorized)
	assert.Equal(t, CodeRejected, ErrorCode(err))

	call(t, r, "anvil_setBalance", `["0x00000000000000000000000000000000000a11ce", "0xde0b6b3a7640000"]`)
	call(t, r, "anvil_impersonateAccount", `["0x00000000000000000000000000000000000a11ce"]`)
	var hash string
	require.NoError(t, json.Unmarshal([]byte(call(t, r, "eth_sendTransaction", send)), &hash))
	call(t, r, "anvil_mine", `[]`)

	var receipt RPCReceipt
	require.NoError(t, json.Unmarshal([]byte(call(t, r, "eth_getTransactionReceipt", `["`+hash+`"]`)), &receipt))
	assert.Equal(t, uint64(types.ReceiptStatusSuccessful), uint64(receipt.Status))

	call(t, r, "anvil_stopImpersonatingAccount", `["0x00000000000000000000000000000000000a11ce"]`)
	_, err = r.Handle(context.Background(), "eth_sendTransaction", []byte(send))
	assert.ErrorIs(t, err, types.ErrUnauthorized)
}

func TestRouterTimestamps(t *testing.T) {
	r := newRouter(t)
	_, err := r.Handle(context.Background(), "evm_setNextBlockTimestamp", []byte(`[1600000000]`))
	assert.ErrorIs(t, err, types.ErrInvalidTimestamp)
	assert.Equal(t, CodeInvalidParams, ErrorCode(err))

	call(t, r, "evm_setNextBlockTimestamp", `[1700000500]`)
	call(t, r, "evm_mine", `[]`)
	var block RPCBlock
	require.NoError(t, json.Unmarshal([]byte(call(t, r, "eth_getBlockByNumber", `["latest", false]`)), &block))
	assert.Equal(t, uint64(1_700_000_500), uint64(block.Timestamp))

	call(t, r, "anvil_setBlockTimestampInterval", `[10]`)
	call(t, r, "anvil_mine", `["0x2"]`)
	require.NoError(t, json.Unmarshal([]byte(call(t, r, "eth_getBlockByNumber", `["latest", false]`)), &block))
	assert.Equal(t, uint64(3), uint64(block.Number))
	assert.Equal(t, uint64(1_700_000_520), uint64(block.Timestamp))
	assert.Equal(t, `true`, call(t, r, "anvil_removeBlockTimestampInterval", `[]`))
	assert.Equal(t, `false`, call(t, r, "anvil_removeBlockTimestampInterval", `[]`))
}

func TestRouterSnapshotRevert(t *testing.T) {
	r := newRouter(t)
	var id string
	require.NoError(t, json.Unmarshal([]byte(call(t, r, "evm_snapshot", `[]`)), &id))

	call(t, r, "anvil_setBalance", `["0x00000000000000000000000000000000000a11ce", "0x1"]`)
	call(t, r, "anvil_mine", `["0x3"]`)
	assert.Equal(t, `"0x3"`, call(t, r, "eth_blockNumber", `[]`))

	assert.Equal(t, `true`, call(t, r, "evm_revert", `["`+id+`"]`))
	assert.Equal(t, `"0x0"`, call(t, r, "eth_blockNumber", `[]`))
	assert.Equal(t, `"0x0"`, call(t, r, "eth_getBalance", `["0x00000000000000000000000000000000000a11ce"]`))
	assert.Equal(t, `false`, call(t, r, "evm_revert", `["`+id+`"]`))
}

func TestRouterMinGasPrice(t *testing.T) {
	r := newRouter(t)
	call(t, r, "anvil_setMinGasPrice", `["0x539"]`)
	assert.Equal(t, `"0x539"`, call(t, r, "eth_gasPrice", `[]`))
}

func TestRouterPoolContentAndDrop(t *testing.T) {
	r := newRouter(t)
	var hash string
	require.NoError(t, json.Unmarshal([]byte(call(t, r, "eth_sendTransaction", `[{
		"from": "`+devAccount+`",
		"to": "0x0000000000000000000000000000000000000b0b",
		"nonce": "0x1"
	}]`)), &hash))

	var content map[string]map[string]map[string]RPCTransaction
	require.NoError(t, json.Unmarshal([]byte(call(t, r, "txpool_content", `[]`)), &content))
	assert.Empty(t, content["pending"])
	require.Len(t, content["queued"], 1)

	assert.Equal(t, `"`+hash+`"`, call(t, r, "anvil_dropTransaction", `["`+hash+`"]`))
	assert.Equal(t, `null`, call(t, r, "anvil_dropTransaction", `["`+hash+`"]`))
}

func TestRouterNodeInfo(t *testing.T) {
	r := newRouter(t)
	call(t, r, "evm_setAutomine", `[true]`)
	var info RPCNodeInfo
	require.NoError(t, json.Unmarshal([]byte(call(t, r, "anvil_nodeInfo", `[]`)), &info))
	assert.Equal(t, "auto", info.MiningMode)
	assert.Equal(t, uint64(31337), uint64(info.ChainID))
	assert.Nil(t, info.Fork)
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("eth_foo: %w", types.ErrMethodNotFound), CodeMethodNotFound},
		{types.ErrInvalidInput, CodeInvalidParams},
		{types.ErrNonceTooLow, CodeRejected},
		{types.ErrUnderpriced, CodeRejected},
		{fmt.Errorf("%w: timeout", types.ErrRemoteUnavailable), CodeResourceUnusable},
		{types.ErrEngineFault, CodeInternal},
		{types.ErrExecutionReverted, CodeServer},
		{types.ErrUnknownBlock, CodeServer},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ErrorCode(tt.err), tt.err.Error())
	}
}

func TestRouterSharesBlockRenderings(t *testing.T) {
	r := newRouter(t)
	ctx := context.Background()
	call(t, r, "evm_mine", `[]`)

	first, err := r.Dispatch(ctx, GetBlockByNumber{Block: rpc.BlockNumber(1)})
	require.NoError(t, err)
	byHash, err := r.Dispatch(ctx, GetBlockByHash{Hash: first.(*RPCBlock).Hash})
	require.NoError(t, err)
	assert.Same(t, first, byHash)

	full, err := r.Dispatch(ctx, GetBlockByNumber{Block: rpc.BlockNumber(1), FullTxs: true})
	require.NoError(t, err)
	assert.NotSame(t, first, full)
	assert.Equal(t, 2, r.blocks.Len())
}
