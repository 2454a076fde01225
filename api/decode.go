package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/airchains-network/devchain/engine"
	"github.com/airchains-network/devchain/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/holiman/uint256"
)

type decoder func(p params) (Request, error)

var decoders = map[string]decoder{
	"eth_chainId":               func(params) (Request, error) { return ChainID{}, nil },
	"net_version":               func(params) (Request, error) { return NetVersion{}, nil },
	"web3_clientVersion":        func(params) (Request, error) { return ClientVersion{}, nil },
	"eth_blockNumber":           func(params) (Request, error) { return BlockNumber{}, nil },
	"eth_gasPrice":              func(params) (Request, error) { return GasPrice{}, nil },
	"eth_accounts":              func(params) (Request, error) { return Accounts{}, nil },
	"anvil_nodeInfo":            func(params) (Request, error) { return NodeInfo{}, nil },
	"txpool_content":            func(params) (Request, error) { return TxPoolContent{}, nil },
	"evm_snapshot":              func(params) (Request, error) { return Snapshot{}, nil },
	"anvil_snapshot":            func(params) (Request, error) { return Snapshot{}, nil },
	"eth_getBalance":            decodeGetBalance,
	"eth_getTransactionCount":   decodeGetTransactionCount,
	"eth_getCode":               decodeGetCode,
	"eth_getStorageAt":          decodeGetStorageAt,
	"eth_getBlockByNumber":      decodeGetBlockByNumber,
	"eth_getBlockByHash":        decodeGetBlockByHash,
	"eth_getTransactionReceipt": decodeGetTransactionReceipt,
	"eth_getTransactionByHash":  decodeGetTransactionByHash,
	"eth_sendTransaction":       decodeSendTransaction,
	"eth_sendRawTransaction":    decodeSendRawTransaction,

	"anvil_setBalance":                   decodeSetBalance,
	"hardhat_setBalance":                 decodeSetBalance,
	"anvil_setNonce":                     decodeSetNonce,
	"hardhat_setNonce":                   decodeSetNonce,
	"anvil_setCode":                      decodeSetCode,
	"hardhat_setCode":                    decodeSetCode,
	"anvil_setStorageAt":                 decodeSetStorageAt,
	"hardhat_setStorageAt":               decodeSetStorageAt,
	"anvil_setMinGasPrice":               decodeSetMinGasPrice,
	"hardhat_setMinGasPrice":             decodeSetMinGasPrice,
	"anvil_impersonateAccount":           decodeImpersonateAccount,
	"hardhat_impersonateAccount":         decodeImpersonateAccount,
	"anvil_stopImpersonatingAccount":     decodeStopImpersonatingAccount,
	"hardhat_stopImpersonatingAccount":   decodeStopImpersonatingAccount,
	"anvil_autoImpersonateAccount":       decodeAutoImpersonateAccount,
	"evm_setNextBlockTimestamp":          decodeSetNextBlockTimestamp,
	"anvil_setNextBlockTimestamp":        decodeSetNextBlockTimestamp,
	"anvil_setBlockTimestampInterval":    decodeSetBlockTimestampInterval,
	"anvil_removeBlockTimestampInterval": func(params) (Request, error) { return RemoveBlockTimestampInterval{}, nil },
	"evm_increaseTime":                   decodeIncreaseTime,
	"anvil_increaseTime":                 decodeIncreaseTime,
	"evm_setTime":                        decodeSetTime,
	"anvil_setTime":                      decodeSetTime,
	"anvil_mine":                         decodeMine,
	"hardhat_mine":                       decodeMine,
	"evm_mine":                           decodeEvmMine,
	"evm_mine_detailed":                  decodeMineDetailed,
	"anvil_mine_detailed":                decodeMineDetailed,
	"evm_setAutomine":                    decodeSetAutomine,
	"anvil_setAutomine":                  decodeSetAutomine,
	"evm_setIntervalMining":              decodeSetIntervalMining,
	"anvil_setIntervalMining":            decodeSetIntervalMining,
	"evm_revert":                         decodeRevert,
	"anvil_revert":                       decodeRevert,
	"anvil_dropTransaction":              decodeDropTransaction,
	"hardhat_dropTransaction":            decodeDropTransaction,
}

// Decode maps a JSON-RPC method and its positional params to a Request
func Decode(method string, raw json.RawMessage) (Request, error) {
	dec, ok := decoders[method]
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrMethodNotFound, method)
	}
	p, err := parseParams(raw)
	if err != nil {
		return nil, err
	}
	req, err := dec(p)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	return req, nil
}

// Methods returns every method name Decode understands
func Methods() []string {
	names := make([]string, 0, len(decoders))
	for name := range decoders {
		names = append(names, name)
	}
	return names
}

type params []json.RawMessage

func parseParams(raw json.RawMessage) (params, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	var p params
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: params must be an array: %v", types.ErrInvalidInput, err)
	}
	return p, nil
}

// has reports whether param i is present and not null
func (p params) has(i int) bool {
	return i < len(p) && !bytes.Equal(bytes.TrimSpace(p[i]), []byte("null"))
}

func (p params) need(i int) error {
	if !p.has(i) {
		return fmt.Errorf("%w: missing param %d", types.ErrInvalidInput, i)
	}
	return nil
}

func (p params) address(i int) (common.Address, error) {
	var addr common.Address
	if err := p.need(i); err != nil {
		return addr, err
	}
	if err := json.Unmarshal(p[i], &addr); err != nil {
		return addr, fmt.Errorf("%w: param %d: %v", types.ErrInvalidInput, i, err)
	}
	return addr, nil
}

func (p params) hash(i int) (common.Hash, error) {
	var hash common.Hash
	if err := p.need(i); err != nil {
		return hash, err
	}
	if err := json.Unmarshal(p[i], &hash); err != nil {
		return hash, fmt.Errorf("%w: param %d: %v", types.ErrInvalidInput, i, err)
	}
	return hash, nil
}

func (p params) bytes(i int) ([]byte, error) {
	if err := p.need(i); err != nil {
		return nil, err
	}
	var b hexutil.Bytes
	if err := json.Unmarshal(p[i], &b); err != nil {
		return nil, fmt.Errorf("%w: param %d: %v", types.ErrInvalidInput, i, err)
	}
	return b, nil
}

func (p params) boolean(i int) (bool, error) {
	if err := p.need(i); err != nil {
		return false, err
	}
	var b bool
	if err := json.Unmarshal(p[i], &b); err != nil {
		return false, fmt.Errorf("%w: param %d: %v", types.ErrInvalidInput, i, err)
	}
	return b, nil
}

// quantity accepts a 0x-prefixed hex string (leading zeros allowed), a
// decimal string or a JSON number
func (p params) quantity(i int) (*uint256.Int, error) {
	if err := p.need(i); err != nil {
		return nil, err
	}
	v, err := parseQuantity(p[i])
	if err != nil {
		return nil, fmt.Errorf("%w: param %d: %v", types.ErrInvalidInput, i, err)
	}
	return v, nil
}

func (p params) uint64(i int) (uint64, error) {
	v, err := p.quantity(i)
	if err != nil {
		return 0, err
	}
	if !v.IsUint64() {
		return 0, fmt.Errorf("%w: param %d overflows uint64", types.ErrInvalidInput, i)
	}
	return v.Uint64(), nil
}

// word reads a 32-byte storage key or value given as a quantity or a hash
func (p params) word(i int) (common.Hash, error) {
	v, err := p.quantity(i)
	if err != nil {
		return common.Hash{}, err
	}
	return common.Hash(v.Bytes32()), nil
}

// block reads an optional block reference, defaulting to latest
func (p params) block(i int) (rpc.BlockNumber, error) {
	if !p.has(i) {
		return rpc.LatestBlockNumber, nil
	}
	var ref rpc.BlockNumberOrHash
	if err := json.Unmarshal(p[i], &ref); err != nil {
		return 0, fmt.Errorf("%w: param %d: %v", types.ErrInvalidInput, i, err)
	}
	number, ok := ref.Number()
	if !ok {
		return 0, fmt.Errorf("%w: param %d: block hash references are not supported", types.ErrInvalidInput, i)
	}
	return number, nil
}

func parseQuantity(raw json.RawMessage) (*uint256.Int, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return nil, fmt.Errorf("not a quantity: %s", raw)
		}
		s = n.String()
	}
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return uint256.FromDecimal(s)
	}
	digits := strings.TrimLeft(s[2:], "0")
	if digits == "" {
		digits = "0"
	}
	return uint256.FromHex("0x" + digits)
}

func decodeSetBalance(p params) (Request, error) {
	addr, err := p.address(0)
	if err != nil {
		return nil, err
	}
	balance, err := p.quantity(1)
	if err != nil {
		return nil, err
	}
	return SetBalance{Address: addr, Balance: balance}, nil
}

func decodeSetNonce(p params) (Request, error) {
	addr, err := p.address(0)
	if err != nil {
		return nil, err
	}
	nonce, err := p.uint64(1)
	if err != nil {
		return nil, err
	}
	return SetNonce{Address: addr, Nonce: nonce}, nil
}

func decodeSetCode(p params) (Request, error) {
	addr, err := p.address(0)
	if err != nil {
		return nil, err
	}
	code, err := p.bytes(1)
	if err != nil {
		return nil, err
	}
	return SetCode{Address: addr, Code: code}, nil
}

func decodeSetStorageAt(p params) (Request, error) {
	addr, err := p.address(0)
	if err != nil {
		return nil, err
	}
	slot, err := p.word(1)
	if err != nil {
		return nil, err
	}
	value, err := p.word(2)
	if err != nil {
		return nil, err
	}
	return SetStorageAt{Address: addr, Slot: slot, Value: value}, nil
}

func decodeSetMinGasPrice(p params) (Request, error) {
	price, err := p.quantity(0)
	if err != nil {
		return nil, err
	}
	return SetMinGasPrice{Price: price}, nil
}

func decodeImpersonateAccount(p params) (Request, error) {
	addr, err := p.address(0)
	if err != nil {
		return nil, err
	}
	return ImpersonateAccount{Address: addr}, nil
}

func decodeStopImpersonatingAccount(p params) (Request, error) {
	addr, err := p.address(0)
	if err != nil {
		return nil, err
	}
	return StopImpersonatingAccount{Address: addr}, nil
}

func decodeAutoImpersonateAccount(p params) (Request, error) {
	enabled, err := p.boolean(0)
	if err != nil {
		return nil, err
	}
	return AutoImpersonateAccount{Enabled: enabled}, nil
}

func decodeSetNextBlockTimestamp(p params) (Request, error) {
	ts, err := p.uint64(0)
	if err != nil {
		return nil, err
	}
	return SetNextBlockTimestamp{Timestamp: ts}, nil
}

func decodeSetBlockTimestampInterval(p params) (Request, error) {
	seconds, err := p.uint64(0)
	if err != nil {
		return nil, err
	}
	return SetBlockTimestampInterval{Seconds: seconds}, nil
}

func decodeIncreaseTime(p params) (Request, error) {
	seconds, err := p.uint64(0)
	if err != nil {
		return nil, err
	}
	return IncreaseTime{Seconds: seconds}, nil
}

func decodeSetTime(p params) (Request, error) {
	ts, err := p.uint64(0)
	if err != nil {
		return nil, err
	}
	return SetTime{Timestamp: ts}, nil
}

func decodeMine(p params) (Request, error) {
	req := Mine{Blocks: 1}
	var err error
	if p.has(0) {
		if req.Blocks, err = p.uint64(0); err != nil {
			return nil, err
		}
	}
	if p.has(1) {
		if req.Interval, err = p.uint64(1); err != nil {
			return nil, err
		}
	}
	return req, nil
}

// decodeEvmMine accepts no params, a timestamp, or {"timestamp": ...}
func decodeEvmMine(p params) (Request, error) {
	if !p.has(0) {
		return EvmMine{}, nil
	}
	var opts struct {
		Timestamp json.RawMessage `json:"timestamp"`
	}
	if err := json.Unmarshal(p[0], &opts); err == nil {
		if len(opts.Timestamp) == 0 {
			return EvmMine{}, nil
		}
		ts, err := params{opts.Timestamp}.uint64(0)
		if err != nil {
			return nil, err
		}
		return EvmMine{Timestamp: &ts}, nil
	}
	ts, err := p.uint64(0)
	if err != nil {
		return nil, err
	}
	return EvmMine{Timestamp: &ts}, nil
}

func decodeMineDetailed(p params) (Request, error) {
	if err := p.need(0); err != nil {
		return nil, err
	}
	var hashes []common.Hash
	if err := json.Unmarshal(p[0], &hashes); err != nil {
		return nil, fmt.Errorf("%w: param 0: %v", types.ErrInvalidInput, err)
	}
	if len(hashes) == 0 {
		return nil, fmt.Errorf("%w: no transactions given", types.ErrInvalidInput)
	}
	return MineDetailed{Transactions: hashes}, nil
}

func decodeSetAutomine(p params) (Request, error) {
	enabled, err := p.boolean(0)
	if err != nil {
		return nil, err
	}
	return SetAutomine{Enabled: enabled}, nil
}

func decodeSetIntervalMining(p params) (Request, error) {
	seconds, err := p.uint64(0)
	if err != nil {
		return nil, err
	}
	return SetIntervalMining{Seconds: seconds}, nil
}

func decodeRevert(p params) (Request, error) {
	id, err := p.uint64(0)
	if err != nil {
		return nil, err
	}
	return Revert{ID: id}, nil
}

func decodeDropTransaction(p params) (Request, error) {
	hash, err := p.hash(0)
	if err != nil {
		return nil, err
	}
	return DropTransaction{Hash: hash}, nil
}

func decodeGetBalance(p params) (Request, error) {
	addr, err := p.address(0)
	if err != nil {
		return nil, err
	}
	ref, err := p.block(1)
	if err != nil {
		return nil, err
	}
	return GetBalance{Address: addr, Block: ref}, nil
}

func decodeGetTransactionCount(p params) (Request, error) {
	addr, err := p.address(0)
	if err != nil {
		return nil, err
	}
	ref, err := p.block(1)
	if err != nil {
		return nil, err
	}
	return GetTransactionCount{Address: addr, Block: ref}, nil
}

func decodeGetCode(p params) (Request, error) {
	addr, err := p.address(0)
	if err != nil {
		return nil, err
	}
	ref, err := p.block(1)
	if err != nil {
		return nil, err
	}
	return GetCode{Address: addr, Block: ref}, nil
}

func decodeGetStorageAt(p params) (Request, error) {
	addr, err := p.address(0)
	if err != nil {
		return nil, err
	}
	slot, err := p.word(1)
	if err != nil {
		return nil, err
	}
	ref, err := p.block(2)
	if err != nil {
		return nil, err
	}
	return GetStorageAt{Address: addr, Slot: slot, Block: ref}, nil
}

func decodeGetBlockByNumber(p params) (Request, error) {
	if err := p.need(0); err != nil {
		return nil, err
	}
	ref, err := p.block(0)
	if err != nil {
		return nil, err
	}
	req := GetBlockByNumber{Block: ref}
	if p.has(1) {
		if req.FullTxs, err = p.boolean(1); err != nil {
			return nil, err
		}
	}
	return req, nil
}

func decodeGetBlockByHash(p params) (Request, error) {
	hash, err := p.hash(0)
	if err != nil {
		return nil, err
	}
	req := GetBlockByHash{Hash: hash}
	if p.has(1) {
		if req.FullTxs, err = p.boolean(1); err != nil {
			return nil, err
		}
	}
	return req, nil
}

func decodeGetTransactionReceipt(p params) (Request, error) {
	hash, err := p.hash(0)
	if err != nil {
		return nil, err
	}
	return GetTransactionReceipt{Hash: hash}, nil
}

func decodeGetTransactionByHash(p params) (Request, error) {
	hash, err := p.hash(0)
	if err != nil {
		return nil, err
	}
	return GetTransactionByHash{Hash: hash}, nil
}

// transactionArgs is the eth_sendTransaction object. Input takes
// precedence over Data.
type transactionArgs struct {
	From     *common.Address `json:"from"`
	To       *common.Address `json:"to"`
	Value    *hexutil.Big    `json:"value"`
	Data     *hexutil.Bytes  `json:"data"`
	Input    *hexutil.Bytes  `json:"input"`
	Gas      *hexutil.Uint64 `json:"gas"`
	GasPrice *hexutil.Big    `json:"gasPrice"`
	Nonce    *hexutil.Uint64 `json:"nonce"`
}

func decodeSendTransaction(p params) (Request, error) {
	if err := p.need(0); err != nil {
		return nil, err
	}
	var raw transactionArgs
	if err := json.Unmarshal(p[0], &raw); err != nil {
		return nil, fmt.Errorf("%w: param 0: %v", types.ErrInvalidInput, err)
	}
	if raw.From == nil {
		return nil, fmt.Errorf("%w: missing from", types.ErrInvalidInput)
	}
	args := engine.TransactionArgs{From: *raw.From, To: raw.To}
	if raw.Value != nil {
		v, overflow := uint256.FromBig(raw.Value.ToInt())
		if overflow {
			return nil, fmt.Errorf("%w: value overflows 256 bits", types.ErrInvalidInput)
		}
		args.Value = v
	}
	if raw.GasPrice != nil {
		v, overflow := uint256.FromBig(raw.GasPrice.ToInt())
		if overflow {
			return nil, fmt.Errorf("%w: gas price overflows 256 bits", types.ErrInvalidInput)
		}
		args.GasPrice = v
	}
	switch {
	case raw.Input != nil:
		args.Data = *raw.Input
	case raw.Data != nil:
		args.Data = *raw.Data
	}
	if raw.Gas != nil {
		gas := uint64(*raw.Gas)
		args.Gas = &gas
	}
	if raw.Nonce != nil {
		nonce := uint64(*raw.Nonce)
		args.Nonce = &nonce
	}
	return SendTransaction{Args: args}, nil
}

func decodeSendRawTransaction(p params) (Request, error) {
	raw, err := p.bytes(0)
	if err != nil {
		return nil, err
	}
	return SendRawTransaction{Raw: raw}, nil
}
