package api

import (
	"encoding/json"
	"testing"

	"github.com/airchains-network/devchain/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var alice = common.HexToAddress("0x00000000000000000000000000000000000a11ce")

func TestDecodeAliases(t *testing.T) {
	tests := []struct {
		methods []string
		params  string
		want    Request
	}{
		{
			methods: []string{"anvil_setBalance", "hardhat_setBalance"},
			params:  `["0x00000000000000000000000000000000000a11ce", "0x0de0b6b3a7640000"]`,
			want:    SetBalance{Address: alice, Balance: uint256.NewInt(1_000_000_000_000_000_000)},
		},
		{
			methods: []string{"anvil_setNonce", "hardhat_setNonce"},
			params:  `["0x00000000000000000000000000000000000a11ce", "0x2a"]`,
			want:    SetNonce{Address: alice, Nonce: 42},
		},
		{
			methods: []string{"anvil_setCode", "hardhat_setCode"},
			params:  `["0x00000000000000000000000000000000000a11ce", "0x6001"]`,
			want:    SetCode{Address: alice, Code: []byte{0x60, 0x01}},
		},
		{
			methods: []string{"anvil_setStorageAt", "hardhat_setStorageAt"},
			params:  `["0x00000000000000000000000000000000000a11ce", "0x0", "0x0000000000000000000000000000000000000000000000000000000000000539"]`,
			want:    SetStorageAt{Address: alice, Slot: common.Hash{}, Value: common.BigToHash(uint256.NewInt(1337).ToBig())},
		},
		{
			methods: []string{"anvil_impersonateAccount", "hardhat_impersonateAccount"},
			params:  `["0x00000000000000000000000000000000000a11ce"]`,
			want:    ImpersonateAccount{Address: alice},
		},
		{
			methods: []string{"evm_setNextBlockTimestamp", "anvil_setNextBlockTimestamp"},
			params:  `[1700000100]`,
			want:    SetNextBlockTimestamp{Timestamp: 1_700_000_100},
		},
		{
			methods: []string{"evm_increaseTime", "anvil_increaseTime"},
			params:  `["0x3c"]`,
			want:    IncreaseTime{Seconds: 60},
		},
		{
			methods: []string{"anvil_mine", "hardhat_mine"},
			params:  `[]`,
			want:    Mine{Blocks: 1},
		},
		{
			methods: []string{"anvil_mine", "hardhat_mine"},
			params:  `["0x5", "0xc"]`,
			want:    Mine{Blocks: 5, Interval: 12},
		},
		{
			methods: []string{"evm_setAutomine", "anvil_setAutomine"},
			params:  `[false]`,
			want:    SetAutomine{Enabled: false},
		},
		{
			methods: []string{"evm_revert", "anvil_revert"},
			params:  `["0x1"]`,
			want:    Revert{ID: 1},
		},
		{
			methods: []string{"evm_snapshot", "anvil_snapshot"},
			params:  `null`,
			want:    Snapshot{},
		},
	}
	for _, tt := range tests {
		for _, method := range tt.methods {
			t.Run(method, func(t *testing.T) {
				got, err := Decode(method, json.RawMessage(tt.params))
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			})
		}
	}
}

func TestDecodeBlockReference(t *testing.T) {
	tests := []struct {
		params string
		want   rpc.BlockNumber
	}{
		{`["0x00000000000000000000000000000000000a11ce"]`, rpc.LatestBlockNumber},
		{`["0x00000000000000000000000000000000000a11ce", "latest"]`, rpc.LatestBlockNumber},
		{`["0x00000000000000000000000000000000000a11ce", "earliest"]`, rpc.EarliestBlockNumber},
		{`["0x00000000000000000000000000000000000a11ce", "pending"]`, rpc.PendingBlockNumber},
		{`["0x00000000000000000000000000000000000a11ce", "0x10"]`, rpc.BlockNumber(16)},
	}
	for _, tt := range tests {
		got, err := Decode("eth_getBalance", json.RawMessage(tt.params))
		require.NoError(t, err, tt.params)
		assert.Equal(t, GetBalance{Address: alice, Block: tt.want}, got, tt.params)
	}
}

func TestDecodeEvmMine(t *testing.T) {
	req, err := Decode("evm_mine", nil)
	require.NoError(t, err)
	assert.Equal(t, EvmMine{}, req)

	req, err = Decode("evm_mine", json.RawMessage(`[1700000500]`))
	require.NoError(t, err)
	require.NotNil(t, req.(EvmMine).Timestamp)
	assert.Equal(t, uint64(1_700_000_500), *req.(EvmMine).Timestamp)

	req, err = Decode("evm_mine", json.RawMessage(`[{"timestamp": "0x6553f1f4"}]`))
	require.NoError(t, err)
	require.NotNil(t, req.(EvmMine).Timestamp)
	assert.Equal(t, uint64(0x6553f1f4), *req.(EvmMine).Timestamp)
}

func TestDecodeSendTransaction(t *testing.T) {
	req, err := Decode("eth_sendTransaction", json.RawMessage(`[{
		"from": "0x00000000000000000000000000000000000a11ce",
		"to": "0x0000000000000000000000000000000000000b0b",
		"value": "0x64",
		"input": "0xdeadbeef",
		"gas": "0x5208"
	}]`))
	require.NoError(t, err)
	args := req.(SendTransaction).Args
	assert.Equal(t, alice, args.From)
	require.NotNil(t, args.To)
	assert.Equal(t, common.HexToAddress("0xb0b"), *args.To)
	assert.Equal(t, uint64(100), args.Value.Uint64())
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, args.Data)
	require.NotNil(t, args.Gas)
	assert.Equal(t, uint64(21000), *args.Gas)
	assert.Nil(t, args.Nonce)
	assert.Nil(t, args.GasPrice)
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		method string
		params string
		want   error
	}{
		{"eth_unknown", `[]`, types.ErrMethodNotFound},
		{"anvil_setBalance", `["0xa11ce", "0x1"]`, types.ErrInvalidInput},
		{"anvil_setBalance", `["0x00000000000000000000000000000000000a11ce"]`, types.ErrInvalidInput},
		{"anvil_setBalance", `["0x00000000000000000000000000000000000a11ce", "0xzz"]`, types.ErrInvalidInput},
		{"anvil_setCode", `["0x00000000000000000000000000000000000a11ce", "6001"]`, types.ErrInvalidInput},
		{"anvil_setNonce", `["0x00000000000000000000000000000000000a11ce", "0x10000000000000000"]`, types.ErrInvalidInput},
		{"eth_sendTransaction", `[{"to": "0x0000000000000000000000000000000000000b0b"}]`, types.ErrInvalidInput},
		{"evm_mine_detailed", `[[]]`, types.ErrInvalidInput},
		{"eth_getBalance", `{"address": "0x00000000000000000000000000000000000a11ce"}`, types.ErrInvalidInput},
	}
	for _, tt := range tests {
		_, err := Decode(tt.method, json.RawMessage(tt.params))
		assert.ErrorIs(t, err, tt.want, "%s %s", tt.method, tt.params)
	}
}

func TestEveryMethodDecodesToADispatchableRequest(t *testing.T) {
	for _, method := range Methods() {
		_, err := Decode(method, json.RawMessage(`[]`))
		if err != nil {
			assert.ErrorIs(t, err, types.ErrInvalidInput, method)
		}
	}
}
