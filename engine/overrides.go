package engine

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/sirupsen/logrus"
)

// SetBalance overrides the balance of addr
func (e *Engine) SetBalance(addr common.Address, balance *uint256.Int) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.store.SetBalance(addr, balance)
	e.log.WithFields(logrus.Fields{"address": addr.Hex(), "balance": balance.ToBig().String()}).Debug("Set balance")
}

// SetNonce overrides the nonce of addr
func (e *Engine) SetNonce(addr common.Address, nonce uint64) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.store.SetNonce(addr, nonce)
	e.log.WithFields(logrus.Fields{"address": addr.Hex(), "nonce": nonce}).Debug("Set nonce")
}

// SetCode overrides the code of addr
func (e *Engine) SetCode(addr common.Address, code []byte) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.store.SetCode(addr, code)
	e.log.WithFields(logrus.Fields{"address": addr.Hex(), "size": len(code)}).Debug("Set code")
}

// SetStorageAt overrides one storage slot of addr
func (e *Engine) SetStorageAt(addr common.Address, slot, value common.Hash) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.store.SetStorageAt(addr, slot, value)
	e.log.WithFields(logrus.Fields{"address": addr.Hex(), "slot": slot.Hex()}).Debug("Set storage")
}

// SetMinGasPrice installs a gas price floor for submissions and gas price reads
func (e *Engine) SetMinGasPrice(price *uint256.Int) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.pool.SetMinGasPrice(price)
	e.minGasPriceSet = true
}

// ImpersonateAccount lets addr send unsigned transactions and hides its code
func (e *Engine) ImpersonateAccount(ctx context.Context, addr common.Address) error {
	return e.write(ctx, func() error {
		return e.imp.Impersonate(addr, e.store)
	})
}

// StopImpersonatingAccount reverses ImpersonateAccount
func (e *Engine) StopImpersonatingAccount(addr common.Address) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.imp.StopImpersonating(addr, e.store)
}

// SetAutoImpersonate authorizes unsigned transactions from every address
func (e *Engine) SetAutoImpersonate(enabled bool) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.imp.SetAutoImpersonate(enabled)
	e.log.WithField("enabled", enabled).Info("Auto impersonation changed")
}

// SetNextBlockTimestamp fixes the timestamp of the next block
func (e *Engine) SetNextBlockTimestamp(ts uint64) error {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return e.time.SetNextTimestamp(ts)
}

// SetBlockTimestampInterval spaces every following block by seconds
func (e *Engine) SetBlockTimestampInterval(seconds uint64) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.time.SetInterval(seconds)
}

// RemoveBlockTimestampInterval clears the interval and reports whether one was set
func (e *Engine) RemoveBlockTimestampInterval() bool {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return e.time.RemoveInterval()
}

// IncreaseTime moves the node clock forward and returns the total offset
func (e *Engine) IncreaseTime(seconds uint64) int64 {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return e.time.IncreaseTime(seconds)
}

// SetTime moves the node clock so that it reads ts now
func (e *Engine) SetTime(ts uint64) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.time.SetTime(ts)
}
