package txn

import "github.com/SimonWaldherr/tinySQL/internal/file"

// ConcurrencyManager is the per-transaction facade over the shared
// LockTable: it keeps no lock state of its own, forwarding each request
// under this transaction's ID (the LockTable returns at once when that
// transaction already holds a sufficient lock), and it funnels release at
// commit/rollback through a single call.
type ConcurrencyManager struct {
	txID int64
	lt   *LockTable
}

// NewConcurrencyManager returns a per-transaction lock facade over lt.
func NewConcurrencyManager(txID int64, lt *LockTable) *ConcurrencyManager {
	return &ConcurrencyManager{txID: txID, lt: lt}
}

// SLock acquires (or confirms) a shared lock on block.
func (cm *ConcurrencyManager) SLock(block file.BlockID) error {
	return cm.lt.SLock(cm.txID, block)
}

// XLock acquires (or confirms/upgrades) an exclusive lock on block.
func (cm *ConcurrencyManager) XLock(block file.BlockID) error {
	return cm.lt.XLock(cm.txID, block)
}

// Release drops every lock held by this transaction.
func (cm *ConcurrencyManager) Release() {
	cm.lt.ReleaseAll(cm.txID)
}
