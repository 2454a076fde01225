package pool

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/airchains-network/devchain/metrics"
	"github.com/airchains-network/devchain/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/sirupsen/logrus"
)

// ErrDropped is delivered to the handle of a transaction removed from the
// pool without being mined
var ErrDropped = errors.New("transaction dropped from pool")

// Handle lets the submitter wait for a transaction to be mined
type Handle struct {
	hash    common.Hash
	done    chan struct{}
	receipt *types.Receipt
	err     error
}

func newHandle(hash common.Hash) *Handle {
	return &Handle{hash: hash, done: make(chan struct{})}
}

// Hash returns the hash of the submitted transaction
func (h *Handle) Hash() common.Hash {
	return h.hash
}

// Wait blocks until the transaction is mined or rejected, or ctx is done.
// Giving up on the wait does not withdraw the transaction.
func (h *Handle) Wait(ctx context.Context) (*types.Receipt, error) {
	select {
	case <-h.done:
		return h.receipt, h.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Done is closed once the transaction has left the pool
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

func (h *Handle) resolve(receipt *types.Receipt, err error) {
	h.receipt = receipt
	h.err = err
	close(h.done)
}

type pooledTx struct {
	tx     *types.PendingTransaction
	handle *Handle
	seq    uint64
}

type senderNonce struct {
	from  common.Address
	nonce uint64
}

// TxPool holds submitted transactions in arrival order until a block
// includes them
type TxPool struct {
	mutex       sync.Mutex
	txs         map[common.Hash]*pooledTx
	byNonce     map[senderNonce]common.Hash
	seq         uint64
	minGasPrice *uint256.Int
	log         *logrus.Logger
	metrics     *metrics.Metrics
}

// NewTxPool initializes an empty transaction pool
func NewTxPool(minGasPrice *uint256.Int, log *logrus.Logger, m *metrics.Metrics) *TxPool {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if minGasPrice == nil {
		minGasPrice = new(uint256.Int)
	}
	return &TxPool{
		txs:         make(map[common.Hash]*pooledTx),
		byNonce:     make(map[senderNonce]common.Hash),
		minGasPrice: minGasPrice.Clone(),
		log:         log,
		metrics:     m,
	}
}

// SetMinGasPrice changes the gas price floor for new submissions
func (p *TxPool) SetMinGasPrice(price *uint256.Int) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.minGasPrice = price.Clone()
}

// MinGasPrice returns the gas price floor
func (p *TxPool) MinGasPrice() *uint256.Int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.minGasPrice.Clone()
}

// Submit validates tx against the sender's current nonce and inserts it.
// authorized tells whether the sender may skip the signature.
func (p *TxPool) Submit(tx *types.PendingTransaction, nonce uint64, authorized bool) (*Handle, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if err := p.validate(tx, nonce, authorized); err != nil {
		p.metrics.TxRejected(reasonOf(err))
		p.log.WithFields(logrus.Fields{
			"hash":  tx.Hash.Hex(),
			"from":  tx.From.Hex(),
			"nonce": tx.Nonce,
		}).Warnf("Rejected transaction: %v", err)
		return nil, err
	}

	p.seq++
	ptx := &pooledTx{tx: tx, handle: newHandle(tx.Hash), seq: p.seq}
	p.txs[tx.Hash] = ptx
	p.byNonce[senderNonce{tx.From, tx.Nonce}] = tx.Hash
	p.metrics.PoolSize(len(p.txs))
	p.log.WithFields(logrus.Fields{
		"hash":  tx.Hash.Hex(),
		"from":  tx.From.Hex(),
		"nonce": tx.Nonce,
	}).Debug("Added transaction to pool")
	return ptx.handle, nil
}

func (p *TxPool) validate(tx *types.PendingTransaction, nonce uint64, authorized bool) error {
	if tx == nil {
		return fmt.Errorf("%w: empty transaction", types.ErrInvalidInput)
	}
	if !tx.Signed() && !authorized {
		return fmt.Errorf("%w: %s", types.ErrUnauthorized, tx.From.Hex())
	}
	if tx.Nonce < nonce {
		return fmt.Errorf("%w: address %s, tx: %d state: %d", types.ErrNonceTooLow, tx.From.Hex(), tx.Nonce, nonce)
	}
	price := tx.GasPrice
	if price == nil {
		price = new(uint256.Int)
	}
	if price.Lt(p.minGasPrice) {
		return fmt.Errorf("%w: gas price %s below minimum %s", types.ErrUnderpriced, price.ToBig().String(), p.minGasPrice.ToBig().String())
	}
	if _, ok := p.txs[tx.Hash]; ok {
		return fmt.Errorf("%w: already known", types.ErrNonceTooLow)
	}
	if _, ok := p.byNonce[senderNonce{tx.From, tx.Nonce}]; ok {
		return fmt.Errorf("%w: already known: address %s nonce %d", types.ErrNonceTooLow, tx.From.Hex(), tx.Nonce)
	}
	return nil
}

func reasonOf(err error) string {
	switch {
	case errors.Is(err, types.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, types.ErrNonceTooLow):
		return "nonce_too_low"
	case errors.Is(err, types.ErrNonceTooHigh):
		return "nonce_too_high"
	case errors.Is(err, types.ErrUnderpriced):
		return "underpriced"
	case errors.Is(err, types.ErrInvalidInput):
		return "invalid"
	default:
		return "other"
	}
}

// ordered returns every pooled transaction in pool order: arrival order,
// except that a sender's transactions always come out in nonce order. Each
// sender keeps the arrival slots it occupies.
func (p *TxPool) ordered() []*pooledTx {
	all := make([]*pooledTx, 0, len(p.txs))
	for _, ptx := range p.txs {
		all = append(all, ptx)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].seq < all[j].seq })

	bySender := make(map[common.Address][]*pooledTx)
	for _, ptx := range all {
		bySender[ptx.tx.From] = append(bySender[ptx.tx.From], ptx)
	}
	for _, txs := range bySender {
		sort.SliceStable(txs, func(i, j int) bool { return txs[i].tx.Nonce < txs[j].tx.Nonce })
	}

	out := make([]*pooledTx, len(all))
	next := make(map[common.Address]int)
	for i, ptx := range all {
		from := ptx.tx.From
		out[i] = bySender[from][next[from]]
		next[from]++
	}
	return out
}

// Pending returns up to max transactions in pool order without removing
// them. max <= 0 returns all.
func (p *TxPool) Pending(max int) []*types.PendingTransaction {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	ordered := p.ordered()
	if max > 0 && len(ordered) > max {
		ordered = ordered[:max]
	}
	txs := make([]*types.PendingTransaction, len(ordered))
	for i, ptx := range ordered {
		txs[i] = ptx.tx
	}
	return txs
}

// Get returns a pooled transaction by hash
func (p *TxPool) Get(hash common.Hash) (*types.PendingTransaction, bool) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	ptx, ok := p.txs[hash]
	if !ok {
		return nil, false
	}
	return ptx.tx, true
}

func (p *TxPool) remove(hash common.Hash) *pooledTx {
	ptx, ok := p.txs[hash]
	if !ok {
		return nil
	}
	delete(p.txs, hash)
	delete(p.byNonce, senderNonce{ptx.tx.From, ptx.tx.Nonce})
	return ptx
}

// Included removes mined transactions and hands their receipts to the waiters
func (p *TxPool) Included(receipts []*types.Receipt) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	for _, receipt := range receipts {
		if ptx := p.remove(receipt.TxHash); ptx != nil {
			ptx.handle.resolve(receipt, nil)
		}
	}
	p.metrics.PoolSize(len(p.txs))
}

// Reject removes a transaction that can never be mined and reports err to
// its waiter
func (p *TxPool) Reject(hash common.Hash, err error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if ptx := p.remove(hash); ptx != nil {
		ptx.handle.resolve(nil, err)
		p.metrics.TxRejected(reasonOf(err))
		p.log.WithFields(logrus.Fields{
			"hash":  hash.Hex(),
			"from":  ptx.tx.From.Hex(),
			"nonce": ptx.tx.Nonce,
		}).Warnf("Rejected transaction: %v", err)
	}
	p.metrics.PoolSize(len(p.txs))
}

// Remove deletes transactions without notifying their waiters beyond
// ErrDropped
func (p *TxPool) Remove(hashes []common.Hash) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	for _, hash := range hashes {
		if ptx := p.remove(hash); ptx != nil {
			ptx.handle.resolve(nil, ErrDropped)
		}
	}
	p.metrics.PoolSize(len(p.txs))
}

// Drop removes one transaction and reports whether it was pooled
func (p *TxPool) Drop(hash common.Hash) bool {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	ptx := p.remove(hash)
	if ptx == nil {
		return false
	}
	ptx.handle.resolve(nil, ErrDropped)
	p.metrics.PoolSize(len(p.txs))
	p.log.WithField("hash", hash.Hex()).Info("Dropped transaction")
	return true
}

// Len returns the number of pooled transactions
func (p *TxPool) Len() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return len(p.txs)
}

// Content splits the pool per sender into transactions that can be mined
// next and those waiting on a nonce gap. nonceOf returns the sender's
// current nonce.
func (p *TxPool) Content(nonceOf func(common.Address) (uint64, error)) (pending, queued map[common.Address][]*types.PendingTransaction, err error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	pending = make(map[common.Address][]*types.PendingTransaction)
	queued = make(map[common.Address][]*types.PendingTransaction)
	expected := make(map[common.Address]uint64)
	for _, ptx := range p.ordered() {
		from := ptx.tx.From
		next, ok := expected[from]
		if !ok {
			if next, err = nonceOf(from); err != nil {
				return nil, nil, err
			}
		}
		if ptx.tx.Nonce == next {
			pending[from] = append(pending[from], ptx.tx)
			next++
		} else {
			queued[from] = append(queued[from], ptx.tx)
		}
		expected[from] = next
	}
	return pending, queued, nil
}
