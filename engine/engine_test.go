package engine

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/airchains-network/devchain/accounts"
	"github.com/airchains-network/devchain/chaintime"
	"github.com/airchains-network/devchain/db"
	"github.com/airchains-network/devchain/executor"
	"github.com/airchains-network/devchain/fork"
	"github.com/airchains-network/devchain/miner"
	"github.com/airchains-network/devchain/state"
	"github.com/airchains-network/devchain/types"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/holiman/uint256"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const genesisTime = 1_700_000_000

var (
	alice   = common.HexToAddress("0xa11ce")
	bob     = common.HexToAddress("0xb0b")
	latest  = rpc.LatestBlockNumber
	oneEth  = new(uint256.Int).Mul(uint256.NewInt(1_000_000_000), uint256.NewInt(1_000_000_000))
	devBank = new(uint256.Int).Mul(oneEth, uint256.NewInt(10_000))
)

type option func(*Config, *Deps)

func withMode(mode miner.Mode) option {
	return func(cfg *Config, _ *Deps) { cfg.Mode = mode }
}

func withOverlay(o *fork.Overlay) option {
	return func(_ *Config, deps *Deps) { deps.Overlay = o }
}

func newEngine(t *testing.T, opts ...option) (*Engine, *chaintime.FakeClock) {
	t.Helper()
	log, _ := test.NewNullLogger()
	wallet, err := accounts.NewDevWallet()
	require.NoError(t, err)
	clock := chaintime.NewFakeClock(time.Unix(genesisTime, 0))
	cfg := Config{
		ChainID:          31337,
		GasLimit:         30_000_000,
		BaseFee:          uint256.NewInt(1),
		GenesisTimestamp: genesisTime,
		HistoryDepth:     16,
		Mode:             miner.Manual,
		DevBalance:       devBank,
	}
	deps := Deps{Wallet: wallet, Clock: clock, Log: log}
	for _, opt := range opts {
		opt(&cfg, &deps)
	}
	e, err := New(context.Background(), cfg, deps)
	require.NoError(t, err)
	return e, clock
}

func mineOne(t *testing.T, e *Engine) *types.Block {
	t.Helper()
	blocks, err := e.Mine(context.Background(), 1, 0)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	return blocks[0]
}

func TestBalanceWithoutForkIsZero(t *testing.T) {
	e, _ := newEngine(t)
	balance, err := e.Balance(context.Background(), alice, latest)
	require.NoError(t, err)
	assert.True(t, balance.IsZero())
}

func TestSetBalanceIsExact(t *testing.T) {
	e, _ := newEngine(t)
	want, _ := uint256.FromDecimal("123456789012345678901234567890")
	e.SetBalance(alice, want)
	mineOne(t, e)

	got, err := e.Balance(context.Background(), alice, latest)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSetStorageAtRoundTrip(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()
	slot := common.HexToHash("0x2a")
	for _, value := range []common.Hash{
		{},
		common.HexToHash("0x3039"),
		common.HexToHash("0xffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff"),
	} {
		e.SetStorageAt(alice, slot, value)
		got, err := e.StorageAt(ctx, alice, slot, latest)
		require.NoError(t, err)
		assert.Equal(t, value, got)
	}
}

func TestSetNonceAndCode(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()
	e.SetNonce(alice, 9)
	e.SetCode(alice, []byte{0xfe})

	nonce, err := e.Nonce(ctx, alice, latest)
	require.NoError(t, err)
	assert.Equal(t, uint64(9), nonce)
	code, err := e.Code(ctx, alice, latest)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xfe}, code)
}

func TestMinGasPrice(t *testing.T) {
	e, _ := newEngine(t)
	assert.Equal(t, uint64(1), e.GasPrice().Uint64())

	e.SetMinGasPrice(uint256.NewInt(1337))
	assert.Equal(t, uint64(1337), e.GasPrice().Uint64())

	price := uint256.NewInt(1336)
	_, err := e.SendTransaction(context.Background(), TransactionArgs{From: e.Accounts()[0], To: &bob, GasPrice: price})
	require.ErrorIs(t, err, types.ErrUnderpriced)
}

func TestImpersonateAccount(t *testing.T) {
	e, _ := newEngine(t, withMode(miner.Auto))
	ctx := context.Background()
	e.SetBalance(alice, oneEth)
	args := TransactionArgs{From: alice, To: &bob, Value: uint256.NewInt(1000)}

	_, err := e.SendTransaction(ctx, args)
	require.ErrorIs(t, err, types.ErrUnauthorized)

	require.NoError(t, e.ImpersonateAccount(ctx, alice))
	sub, err := e.SendTransaction(ctx, args)
	require.NoError(t, err)
	require.NotNil(t, sub.Block)
	receipt := e.TransactionReceipt(sub.Hash)
	require.NotNil(t, receipt)
	assert.Equal(t, types.ReceiptStatusSuccessful, receipt.Status)

	nonce, err := e.Nonce(ctx, alice, latest)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), nonce)
	balance, err := e.Balance(ctx, bob, latest)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), balance.Uint64())

	e.StopImpersonatingAccount(alice)
	_, err = e.SendTransaction(ctx, args)
	require.ErrorIs(t, err, types.ErrUnauthorized)
}

func TestImpersonateContract(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()
	code := common.FromHex("0x6080604052348015600f57600080fd5b50")
	e.SetCode(alice, code)

	require.NoError(t, e.ImpersonateAccount(ctx, alice))
	got, err := e.Code(ctx, alice, latest)
	require.NoError(t, err)
	assert.Empty(t, got)

	e.StopImpersonatingAccount(alice)
	got, err = e.Code(ctx, alice, latest)
	require.NoError(t, err)
	assert.Equal(t, code, got)
}

func TestAutoImpersonate(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()
	e.SetBalance(alice, oneEth)
	e.SetAutoImpersonate(true)

	_, err := e.SendTransaction(ctx, TransactionArgs{From: alice, To: &bob})
	require.NoError(t, err)
	assert.True(t, e.NodeInfo().AutoImpersonate)
	assert.Equal(t, 1, e.NodeInfo().PendingTransactions)
}

func TestManualMining(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()

	sub, err := e.SendTransaction(ctx, TransactionArgs{From: e.Accounts()[0], To: &bob, Value: uint256.NewInt(1)})
	require.NoError(t, err)
	assert.Nil(t, sub.Block)
	assert.Nil(t, e.TransactionReceipt(sub.Hash))

	start := e.BlockNumber()
	for i := uint64(1); i <= 5; i++ {
		block := mineOne(t, e)
		assert.Equal(t, start+i, block.Number)
	}
	assert.Equal(t, start+5, e.BlockNumber())
	assert.NotNil(t, e.TransactionReceipt(sub.Hash))
}

func TestDefaultTimestampsIncrease(t *testing.T) {
	e, _ := newEngine(t)
	prev := mineOne(t, e)
	for i := 0; i < 5; i++ {
		// the wall clock does not move
		next := mineOne(t, e)
		assert.Greater(t, next.Timestamp, prev.Timestamp)
		prev = next
	}
}

func TestTimestampInterval(t *testing.T) {
	e, clock := newEngine(t)
	e.SetBlockTimestampInterval(12)

	prev := mineOne(t, e)
	for i := 0; i < 5; i++ {
		clock.Advance(time.Hour)
		next := mineOne(t, e)
		assert.Equal(t, prev.Timestamp+12, next.Timestamp)
		prev = next
	}

	assert.True(t, e.RemoveBlockTimestampInterval())
	assert.False(t, e.RemoveBlockTimestampInterval())
	next := mineOne(t, e)
	assert.Greater(t, next.Timestamp, prev.Timestamp)
	assert.NotEqual(t, prev.Timestamp+12, next.Timestamp)
}

func TestNextTimestamp(t *testing.T) {
	e, _ := newEngine(t)
	next := uint64(genesisTime + 1000)
	require.NoError(t, e.SetNextBlockTimestamp(next))
	e.SetBlockTimestampInterval(7)

	block := mineOne(t, e)
	assert.Equal(t, next, block.Timestamp)
	block = mineOne(t, e)
	assert.Equal(t, next+7, block.Timestamp)

	require.ErrorIs(t, e.SetNextBlockTimestamp(block.Timestamp), types.ErrInvalidTimestamp)
}

func TestEvmMineWithTimestamp(t *testing.T) {
	e, _ := newEngine(t)
	ts := uint64(genesisTime + 50)
	block, err := e.EvmMine(context.Background(), &ts)
	require.NoError(t, err)
	assert.Equal(t, ts, block.Timestamp)

	_, err = e.EvmMine(context.Background(), &ts)
	require.ErrorIs(t, err, types.ErrInvalidTimestamp)
	assert.Equal(t, uint64(1), e.BlockNumber())
}

func TestIncreaseTime(t *testing.T) {
	e, _ := newEngine(t)
	assert.Equal(t, int64(3600), e.IncreaseTime(3600))
	block := mineOne(t, e)
	assert.Equal(t, uint64(genesisTime+3600), block.Timestamp)

	e.SetTime(genesisTime + 10_000)
	block = mineOne(t, e)
	assert.Equal(t, uint64(genesisTime+10_000), block.Timestamp)
}

func TestMineRangeWithInterval(t *testing.T) {
	e, _ := newEngine(t)
	blocks, err := e.Mine(context.Background(), 10, 3)
	require.NoError(t, err)
	require.Len(t, blocks, 10)
	for i := 1; i < len(blocks); i++ {
		assert.Equal(t, blocks[i-1].Number+1, blocks[i].Number)
		assert.Equal(t, blocks[i-1].Timestamp+3, blocks[i].Timestamp)
	}
}

func TestMineTransactions(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()
	dev := e.Accounts()
	first, err := e.SendTransaction(ctx, TransactionArgs{From: dev[0], To: &bob})
	require.NoError(t, err)
	second, err := e.SendTransaction(ctx, TransactionArgs{From: dev[1], To: &bob})
	require.NoError(t, err)

	block, err := e.MineTransactions(ctx, []common.Hash{second.Hash})
	require.NoError(t, err)
	require.Len(t, block.Transactions, 1)
	assert.Equal(t, second.Hash, block.Transactions[0].Hash)
	assert.Nil(t, e.TransactionReceipt(first.Hash))

	_, err = e.MineTransactions(ctx, []common.Hash{common.HexToHash("0xdead")})
	require.ErrorIs(t, err, types.ErrInvalidInput)
}

func TestSendRawTransaction(t *testing.T) {
	e, _ := newEngine(t, withMode(miner.Auto))
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	from := crypto.PubkeyToAddress(key.PublicKey)
	e.SetBalance(from, oneEth)

	signer := gethtypes.LatestSignerForChainID(big.NewInt(31337))
	tx, err := gethtypes.SignNewTx(key, signer, &gethtypes.LegacyTx{
		To: &bob, Value: big.NewInt(5), Gas: 21000, GasPrice: big.NewInt(1),
	})
	require.NoError(t, err)
	raw, err := tx.MarshalBinary()
	require.NoError(t, err)

	sub, err := e.SendRawTransaction(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, tx.Hash(), sub.Hash)
	require.NotNil(t, sub.Block)

	_, err = e.SendRawTransaction(context.Background(), raw)
	require.ErrorIs(t, err, types.ErrNonceTooLow)

	wrongChain, err := gethtypes.SignNewTx(key, gethtypes.LatestSignerForChainID(big.NewInt(1)), &gethtypes.LegacyTx{
		Nonce: 1, To: &bob, Gas: 21000, GasPrice: big.NewInt(1),
	})
	require.NoError(t, err)
	raw, err = wrongChain.MarshalBinary()
	require.NoError(t, err)
	_, err = e.SendRawTransaction(context.Background(), raw)
	require.ErrorIs(t, err, types.ErrInvalidInput)

	_, err = e.SendRawTransaction(context.Background(), []byte{0x01, 0x02})
	require.ErrorIs(t, err, types.ErrInvalidInput)
}

func TestSnapshotRevert(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()
	e.SetBalance(alice, uint256.NewInt(1))
	id := e.Snapshot()
	snapTs := mineOne(t, e).Timestamp

	e.SetBalance(alice, uint256.NewInt(2))
	require.NoError(t, e.ImpersonateAccount(ctx, bob))
	e.SetMinGasPrice(uint256.NewInt(99))
	mineOne(t, e)
	mineOne(t, e)

	require.True(t, e.Revert(id))
	assert.False(t, e.Revert(id))
	assert.Equal(t, uint64(0), e.BlockNumber())
	balance, err := e.Balance(ctx, alice, latest)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), balance.Uint64())
	assert.Empty(t, e.NodeInfo().Impersonated)
	assert.Equal(t, uint64(1), e.GasPrice().Uint64())

	// the chain continues from the restored head
	block := mineOne(t, e)
	assert.Equal(t, uint64(1), block.Number)
	assert.Equal(t, snapTs, block.Timestamp)
}

func TestHistoricalReads(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()
	e.SetBalance(alice, uint256.NewInt(1))
	mineOne(t, e)
	e.SetBalance(alice, uint256.NewInt(2))
	mineOne(t, e)
	e.SetBalance(alice, uint256.NewInt(3))

	at1, err := e.Balance(ctx, alice, rpc.BlockNumber(1))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), at1.Uint64())
	at2, err := e.Balance(ctx, alice, rpc.BlockNumber(2))
	require.NoError(t, err)
	assert.Equal(t, uint64(3), at2.Uint64())
	earliest, err := e.Balance(ctx, alice, rpc.EarliestBlockNumber)
	require.NoError(t, err)
	assert.True(t, earliest.IsZero())

	_, err = e.Balance(ctx, alice, rpc.BlockNumber(10))
	require.ErrorIs(t, err, types.ErrUnknownBlock)
}

func TestDropTransaction(t *testing.T) {
	e, _ := newEngine(t)
	sub, err := e.SendTransaction(context.Background(), TransactionArgs{From: e.Accounts()[0], To: &bob})
	require.NoError(t, err)
	assert.True(t, e.DropTransaction(sub.Hash))
	assert.False(t, e.DropTransaction(sub.Hash))
	block := mineOne(t, e)
	assert.Empty(t, block.Transactions)
}

func TestQueuedNonces(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()
	from := e.Accounts()[0]
	for i := 0; i < 3; i++ {
		_, err := e.SendTransaction(ctx, TransactionArgs{From: from, To: &bob})
		require.NoError(t, err)
	}
	pending, queued, err := e.TxPoolContent(ctx)
	require.NoError(t, err)
	assert.Len(t, pending[from], 3)
	assert.Empty(t, queued[from])

	block := mineOne(t, e)
	require.Len(t, block.Transactions, 3)
	for i, tx := range block.Transactions {
		assert.Equal(t, uint64(i), tx.Nonce)
	}
}

func TestSubscribeBlocks(t *testing.T) {
	e, _ := newEngine(t)
	blocks, cancel := e.SubscribeBlocks()
	defer cancel()

	mined := mineOne(t, e)
	select {
	case got := <-blocks:
		assert.Equal(t, mined.Hash, got.Hash)
	case <-time.After(time.Second):
		t.Fatal("no block event")
	}
}

func TestIntervalMining(t *testing.T) {
	e, _ := newEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.Run(ctx)

	e.SetIntervalMining(1)
	assert.Equal(t, miner.Interval, e.Mode())
	require.Eventually(t, func() bool { return e.BlockNumber() >= 1 }, 5*time.Second, 10*time.Millisecond)

	e.SetAutomine(true)
	assert.Equal(t, miner.Auto, e.Mode())
}

func TestConcurrentMinesSerialize(t *testing.T) {
	e, _ := newEngine(t)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.Mine(context.Background(), 3, 0)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, uint64(24), e.BlockNumber())

	for n := uint64(1); n <= 24; n++ {
		block, err := e.BlockByNumber(rpc.BlockNumber(n))
		require.NoError(t, err)
		parent, err := e.BlockByNumber(rpc.BlockNumber(n - 1))
		require.NoError(t, err)
		assert.Equal(t, parent.Hash, block.ParentHash)
		assert.Greater(t, block.Timestamp, parent.Timestamp)
	}
}

func TestDumpAndLoadState(t *testing.T) {
	ldb, err := db.NewMemLevelDB()
	require.NoError(t, err)
	defer ldb.Close()

	e, _ := newEngine(t)
	e.SetBalance(alice, uint256.NewInt(77))
	e.SetStorageAt(alice, common.HexToHash("0x01"), common.HexToHash("0x02"))
	require.NoError(t, e.DumpState(ldb))

	fresh, _ := newEngine(t)
	require.NoError(t, fresh.LoadState(ldb))
	ctx := context.Background()
	balance, err := fresh.Balance(ctx, alice, latest)
	require.NoError(t, err)
	assert.Equal(t, uint64(77), balance.Uint64())
	value, err := fresh.StorageAt(ctx, alice, common.HexToHash("0x01"), latest)
	require.NoError(t, err)
	assert.Equal(t, common.HexToHash("0x02"), value)
}

func withExecutor(exec executor.Executor) option {
	return func(_ *Config, deps *Deps) { deps.Executor = exec }
}

// brokenExecutor faults on every transaction
type brokenExecutor struct{}

func (brokenExecutor) Execute(state.Reader, *types.PendingTransaction, types.BlockContext) (*executor.Result, error) {
	return nil, fmt.Errorf("%w: boom", types.ErrEngineFault)
}

func TestStoppedImpersonationRejectsPooledTransaction(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()
	e.SetBalance(alice, oneEth)
	require.NoError(t, e.ImpersonateAccount(ctx, alice))
	sub, err := e.SendTransaction(ctx, TransactionArgs{From: alice, To: &bob, Value: uint256.NewInt(1000)})
	require.NoError(t, err)

	e.StopImpersonatingAccount(alice)
	block := mineOne(t, e)
	assert.Empty(t, block.Transactions)
	assert.Nil(t, e.TransactionReceipt(sub.Hash))
	assert.Equal(t, 0, e.NodeInfo().PendingTransactions)

	balance, err := e.Balance(ctx, bob, latest)
	require.NoError(t, err)
	assert.True(t, balance.IsZero())
	nonce, err := e.Nonce(ctx, alice, latest)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), nonce)
}

func TestEvmMineFaultLeavesTimestampUntouched(t *testing.T) {
	e, _ := newEngine(t, withExecutor(brokenExecutor{}))
	ctx := context.Background()
	sub, err := e.SendTransaction(ctx, TransactionArgs{From: e.Accounts()[0], To: &bob})
	require.NoError(t, err)

	ts := uint64(genesisTime + 5000)
	_, err = e.EvmMine(ctx, &ts)
	require.ErrorIs(t, err, types.ErrEngineFault)
	assert.Equal(t, uint64(0), e.BlockNumber())

	require.True(t, e.DropTransaction(sub.Hash))
	block := mineOne(t, e)
	assert.Equal(t, uint64(genesisTime+1), block.Timestamp)
}

func TestMineRangeFaultLeavesTimestampUntouched(t *testing.T) {
	e, _ := newEngine(t, withExecutor(brokenExecutor{}))
	ctx := context.Background()
	require.NoError(t, e.SetNextBlockTimestamp(genesisTime+50))
	sub, err := e.SendTransaction(ctx, TransactionArgs{From: e.Accounts()[0], To: &bob})
	require.NoError(t, err)

	_, err = e.Mine(ctx, 3, 10)
	require.ErrorIs(t, err, types.ErrEngineFault)

	// the override set before the call is still pending
	require.True(t, e.DropTransaction(sub.Hash))
	block := mineOne(t, e)
	assert.Equal(t, uint64(genesisTime+50), block.Timestamp)
}
