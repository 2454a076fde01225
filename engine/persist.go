package engine

import (
	"fmt"

	"github.com/airchains-network/devchain/db"
	"github.com/sirupsen/logrus"
)

// DumpState writes the local ledger layer to database
func (e *Engine) DumpState(database db.DB) error {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	if err := e.store.Dump(database); err != nil {
		return fmt.Errorf("failed to dump state: %v", err)
	}
	e.log.WithField("accounts", len(e.store.Addresses())).Info("Dumped state")
	return nil
}

// LoadState merges a dumped ledger layer into the current one
func (e *Engine) LoadState(database db.DB) error {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	n, err := e.store.Load(database)
	if err != nil {
		return fmt.Errorf("failed to load state: %v", err)
	}
	e.log.WithFields(logrus.Fields{"accounts": n}).Info("Loaded state")
	return nil
}
