// Package impersonation tracks addresses allowed to send transactions
// without a signature.
package impersonation

import (
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

// CodeStore is the part of the ledger the registry rewrites
type CodeStore interface {
	Code(addr common.Address) ([]byte, error)
	SetCode(addr common.Address, code []byte)
}

// Record holds what impersonating an address changed so that stopping can
// put it back
type Record struct {
	Address           common.Address
	PreviouslyHadCode bool
	SavedCode         []byte
}

// Registry is not safe for concurrent use; the engine serializes access.
type Registry struct {
	records map[common.Address]*Record
	auto    bool
	log     *logrus.Logger
}

// NewRegistry creates an empty registry
func NewRegistry(log *logrus.Logger) *Registry {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Registry{
		records: make(map[common.Address]*Record),
		log:     log,
	}
}

// Impersonate authorizes unsigned transactions from addr and hides its code.
// Calling it for an address that is already impersonated does nothing.
func (r *Registry) Impersonate(addr common.Address, store CodeStore) error {
	if _, ok := r.records[addr]; ok {
		return nil
	}
	code, err := store.Code(addr)
	if err != nil {
		return err
	}
	rec := &Record{Address: addr}
	if len(code) > 0 {
		rec.PreviouslyHadCode = true
		rec.SavedCode = code
		store.SetCode(addr, nil)
	}
	r.records[addr] = rec
	r.log.WithFields(logrus.Fields{
		"address":  addr.Hex(),
		"had_code": rec.PreviouslyHadCode,
	}).Info("Impersonating account")
	return nil
}

// StopImpersonating restores the saved code of addr and revokes its
// authorization. Without an active record it does nothing.
func (r *Registry) StopImpersonating(addr common.Address, store CodeStore) {
	rec, ok := r.records[addr]
	if !ok {
		return
	}
	if rec.PreviouslyHadCode {
		store.SetCode(addr, rec.SavedCode)
	}
	delete(r.records, addr)
	r.log.WithField("address", addr.Hex()).Info("Stopped impersonating account")
}

// IsAuthorizedUnsigned reports whether addr may submit unsigned transactions
func (r *Registry) IsAuthorizedUnsigned(addr common.Address) bool {
	if r.auto {
		return true
	}
	_, ok := r.records[addr]
	return ok
}

// SetAutoImpersonate authorizes every address when enabled. Code is left untouched.
func (r *Registry) SetAutoImpersonate(enabled bool) {
	r.auto = enabled
}

// AutoImpersonate reports whether every address is authorized
func (r *Registry) AutoImpersonate() bool {
	return r.auto
}

// Active returns the impersonated addresses in ascending order
func (r *Registry) Active() []common.Address {
	addrs := make([]common.Address, 0, len(r.records))
	for addr := range r.records {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool {
		return addrs[i].Cmp(addrs[j]) < 0
	})
	return addrs
}

// Copy returns an independent registry with the same records, used by snapshots
func (r *Registry) Copy() *Registry {
	cpy := &Registry{
		records: make(map[common.Address]*Record, len(r.records)),
		auto:    r.auto,
		log:     r.log,
	}
	for addr, rec := range r.records {
		c := *rec
		c.SavedCode = common.CopyBytes(rec.SavedCode)
		cpy.records[addr] = &c
	}
	return cpy
}
