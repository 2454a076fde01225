package fork

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/airchains-network/devchain/metrics"
	"github.com/airchains-network/devchain/types"
	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const prefetchConcurrency = 8

// Config holds the fork overlay settings
type Config struct {
	BlockNumber   uint64
	Retries       uint64
	RetryInterval time.Duration
}

type slotKey struct {
	addr common.Address
	slot common.Hash
}

// Overlay is a read-through cache of the remote chain pinned at one block.
// Fetched values are never evicted: a state root needs every account with
// local state resolved at once. Concurrent fetches of the same key are
// harmless since values at the fork block never change.
type Overlay struct {
	remote Remote
	cfg    Config

	mu       sync.RWMutex
	accounts map[common.Address]*AccountSnapshot
	storage  map[slotKey]common.Hash

	log     *logrus.Logger
	metrics *metrics.Metrics
}

// New creates an overlay over remote at cfg.BlockNumber
func New(remote Remote, cfg Config, log *logrus.Logger, m *metrics.Metrics) (*Overlay, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 250 * time.Millisecond
	}
	if remote == nil {
		return nil, fmt.Errorf("failed to create fork overlay: no remote")
	}
	return &Overlay{
		remote:   remote,
		cfg:      cfg,
		accounts: make(map[common.Address]*AccountSnapshot),
		storage:  make(map[slotKey]common.Hash),
		log:      log,
		metrics:  m,
	}, nil
}

// BlockNumber returns the fork block
func (o *Overlay) BlockNumber() uint64 {
	return o.cfg.BlockNumber
}

// CachedAccount returns the cached account snapshot without touching the network
func (o *Overlay) CachedAccount(addr common.Address) (*AccountSnapshot, bool) {
	acc, ok := o.account(addr)
	o.metrics.ForkCache("account", ok)
	return acc, ok
}

// CachedStorage returns the cached slot value without touching the network
func (o *Overlay) CachedStorage(addr common.Address, slot common.Hash) (common.Hash, bool) {
	val, ok := o.slot(slotKey{addr, slot})
	o.metrics.ForkCache("storage", ok)
	return val, ok
}

// Len returns the number of cached accounts and storage slots
func (o *Overlay) Len() (accounts, slots int) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.accounts), len(o.storage)
}

func (o *Overlay) account(addr common.Address) (*AccountSnapshot, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	acc, ok := o.accounts[addr]
	return acc, ok
}

func (o *Overlay) slot(key slotKey) (common.Hash, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	val, ok := o.storage[key]
	return val, ok
}

// Resolve makes sure the value behind key is cached, fetching it if needed
func (o *Overlay) Resolve(ctx context.Context, key Key) error {
	if key.Storage {
		_, err := o.Storage(ctx, key.Address, key.Slot)
		return err
	}
	_, err := o.Account(ctx, key.Address)
	return err
}

// Account returns addr's state at the fork block
func (o *Overlay) Account(ctx context.Context, addr common.Address) (*AccountSnapshot, error) {
	if acc, ok := o.account(addr); ok {
		return acc, nil
	}
	start := time.Now()
	acc, err := backoff.RetryWithData(func() (*AccountSnapshot, error) {
		return fetchOnce(ctx, func() (*AccountSnapshot, error) {
			return o.remote.GetAccountState(ctx, addr, o.cfg.BlockNumber)
		})
	}, o.retryPolicy(ctx))
	if err != nil {
		o.metrics.ForkFetchFailed()
		return nil, fmt.Errorf("%w: account %s at block %d: %v", types.ErrRemoteUnavailable, addr.Hex(), o.cfg.BlockNumber, err)
	}
	if acc.Balance == nil {
		acc.Balance = new(uint256.Int)
	}
	o.mu.Lock()
	o.accounts[addr] = acc
	o.mu.Unlock()
	o.log.WithFields(logrus.Fields{
		"address":  addr.Hex(),
		"duration": time.Since(start),
	}).Debug("Fetched fork account")
	return acc, nil
}

// Storage returns a storage slot of addr at the fork block
func (o *Overlay) Storage(ctx context.Context, addr common.Address, slot common.Hash) (common.Hash, error) {
	key := slotKey{addr, slot}
	if val, ok := o.slot(key); ok {
		return val, nil
	}
	val, err := backoff.RetryWithData(func() (common.Hash, error) {
		return fetchOnce(ctx, func() (common.Hash, error) {
			return o.remote.GetStorage(ctx, addr, slot, o.cfg.BlockNumber)
		})
	}, o.retryPolicy(ctx))
	if err != nil {
		o.metrics.ForkFetchFailed()
		return common.Hash{}, fmt.Errorf("%w: storage %s at block %d: %v", types.ErrRemoteUnavailable, StorageKey(addr, slot), o.cfg.BlockNumber, err)
	}
	o.mu.Lock()
	o.storage[key] = val
	o.mu.Unlock()
	return val, nil
}

// Prefetch resolves the accounts of addrs concurrently
func (o *Overlay) Prefetch(ctx context.Context, addrs []common.Address) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(prefetchConcurrency)
	for _, addr := range addrs {
		if _, ok := o.account(addr); ok {
			continue
		}
		addr := addr
		g.Go(func() error {
			_, err := o.Account(ctx, addr)
			return err
		})
	}
	return g.Wait()
}

func (o *Overlay) retryPolicy(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = o.cfg.RetryInterval
	return backoff.WithContext(backoff.WithMaxRetries(b, o.cfg.Retries), ctx)
}

// fetchOnce runs one remote call. Failures caused by the caller giving up are
// not retried.
func fetchOnce[T any](ctx context.Context, fetch func() (T, error)) (T, error) {
	v, err := fetch()
	if err != nil && ctx.Err() != nil {
		var zero T
		return zero, backoff.Permanent(err)
	}
	return v, err
}
