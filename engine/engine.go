// Package engine owns the ledger, the chain log and every control knob of
// the node behind one lock.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/airchains-network/devchain/accounts"
	"github.com/airchains-network/devchain/chain"
	"github.com/airchains-network/devchain/chaintime"
	"github.com/airchains-network/devchain/executor"
	"github.com/airchains-network/devchain/fork"
	"github.com/airchains-network/devchain/impersonation"
	"github.com/airchains-network/devchain/metrics"
	"github.com/airchains-network/devchain/miner"
	"github.com/airchains-network/devchain/pool"
	"github.com/airchains-network/devchain/state"
	"github.com/airchains-network/devchain/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/sirupsen/logrus"
)

// Config holds the chain parameters
type Config struct {
	ChainID          uint64
	GasLimit         uint64
	BaseFee          *uint256.Int
	MinGasPrice      *uint256.Int
	GenesisTimestamp uint64
	Coinbase         common.Address
	HistoryDepth     uint64
	Mode             miner.Mode
	BlockTime        time.Duration

	// Genesis is applied to the empty ledger before the dev accounts are funded
	Genesis *state.Genesis
	// DevBalance funds every wallet account when not nil
	DevBalance *uint256.Int
	// ForkURL is reported by NodeInfo only
	ForkURL string
}

// Deps are the collaborators of the engine. Overlay is nil when the node
// does not fork; every other nil field gets a default.
type Deps struct {
	Overlay  *fork.Overlay
	Executor executor.Executor
	Wallet   *accounts.Wallet
	Clock    chaintime.Clock
	Log      *logrus.Logger
	Metrics  *metrics.Metrics
}

// Engine is the single owner of the node state
type Engine struct {
	cfg Config

	mutex sync.RWMutex
	store *state.Store
	time  *chaintime.Controller
	imp   *impersonation.Registry
	pool  *pool.TxPool
	chain *chain.Log

	mode           miner.Mode
	minGasPriceSet bool
	snapshots      map[uint64]*snapshot
	nextSnapshot   uint64

	overlay   *fork.Overlay
	producer  *miner.Producer
	scheduler *miner.Scheduler
	wallet    *accounts.Wallet
	events    *feed
	log       *logrus.Logger
	metrics   *metrics.Metrics
}

// New builds the genesis state and block. Fork values needed for the
// genesis state root are fetched through ctx.
func New(ctx context.Context, cfg Config, deps Deps) (*Engine, error) {
	if cfg.GasLimit == 0 {
		cfg.GasLimit = 30_000_000
	}
	if cfg.BaseFee == nil {
		cfg.BaseFee = new(uint256.Int)
	}
	if deps.Executor == nil {
		deps.Executor = executor.NewTransferExecutor()
	}
	if deps.Log == nil {
		deps.Log = logrus.StandardLogger()
	}

	// a nil *fork.Overlay must not become a non-nil Fallback
	var fallback state.Fallback
	if deps.Overlay != nil {
		fallback = deps.Overlay
	}
	store := state.NewStore(fallback)
	if cfg.Genesis != nil {
		if err := cfg.Genesis.Apply(store); err != nil {
			return nil, fmt.Errorf("failed to apply genesis: %v", err)
		}
	}
	if deps.Wallet != nil && cfg.DevBalance != nil {
		for _, addr := range deps.Wallet.Addresses() {
			store.SetBalance(addr, cfg.DevBalance)
		}
	}

	e := &Engine{
		cfg:       cfg,
		store:     store,
		time:      chaintime.NewController(deps.Clock, cfg.GenesisTimestamp),
		imp:       impersonation.NewRegistry(deps.Log),
		pool:      pool.NewTxPool(cfg.MinGasPrice, deps.Log, deps.Metrics),
		mode:      cfg.Mode,
		snapshots: make(map[uint64]*snapshot),
		overlay:   deps.Overlay,
		producer:  miner.NewProducer(deps.Executor, deps.Log, deps.Metrics),
		wallet:    deps.Wallet,
		events:    newFeed(),
		log:       deps.Log,
		metrics:   deps.Metrics,
	}
	e.minGasPriceSet = cfg.MinGasPrice != nil

	var period time.Duration
	if cfg.Mode == miner.Interval {
		period = cfg.BlockTime
	}
	e.scheduler = miner.NewScheduler(e.mineScheduled, period, deps.Log)

	var root common.Hash
	err := e.resolving(ctx, func() error {
		var err error
		root, err = store.Root()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to compute genesis state root: %v", err)
	}
	genesis := &types.Block{
		Number:    e.forkBlock(),
		Timestamp: cfg.GenesisTimestamp,
		GasLimit:  cfg.GasLimit,
		BaseFee:   cfg.BaseFee.Clone(),
		Miner:     cfg.Coinbase,
		StateRoot: root,
	}
	genesis.Hash = genesis.ComputeHash()
	e.chain = chain.NewLog(genesis, store, cfg.HistoryDepth)
	e.metrics.BlockMined(genesis.Number, 0, 0)

	e.log.WithFields(logrus.Fields{
		"chain_id":  cfg.ChainID,
		"number":    genesis.Number,
		"hash":      genesis.Hash.Hex(),
		"timestamp": genesis.Timestamp,
		"mode":      cfg.Mode.String(),
	}).Info("Initialized chain")
	return e, nil
}

func (e *Engine) forkBlock() uint64 {
	if e.overlay == nil {
		return 0
	}
	return e.overlay.BlockNumber()
}

// Run drives interval mining until ctx is done
func (e *Engine) Run(ctx context.Context) error {
	return e.scheduler.Run(ctx)
}

// resolving runs fn until it stops reporting fork cache misses. Each miss
// is fetched with no engine lock held.
func (e *Engine) resolving(ctx context.Context, fn func() error) error {
	for {
		err := fn()
		var miss *fork.MissError
		if !errors.As(err, &miss) {
			return err
		}
		if e.overlay == nil {
			return fmt.Errorf("%w: fork cache miss without a fork: %v", types.ErrEngineFault, err)
		}
		if err := e.overlay.Resolve(ctx, miss.Key); err != nil {
			return err
		}
	}
}

// read runs fn under the shared lock, retrying after fork misses
func (e *Engine) read(ctx context.Context, fn func() error) error {
	return e.resolving(ctx, func() error {
		e.mutex.RLock()
		defer e.mutex.RUnlock()
		return fn()
	})
}

// write runs fn under the exclusive lock, retrying after fork misses. fn
// must not have changed anything when it reports a miss.
func (e *Engine) write(ctx context.Context, fn func() error) error {
	return e.resolving(ctx, func() error {
		e.mutex.Lock()
		defer e.mutex.Unlock()
		return fn()
	})
}
