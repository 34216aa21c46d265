// Package txn implements the transaction layer: a strict-2PL LockTable, the
// per-transaction ConcurrencyManager and BufferList, and the Transaction
// handle that ties locking, pinning and recovery logging together.
package txn

import "errors"

// ErrLockAbort is returned when a lock request times out. The caller must
// roll back the transaction.
var ErrLockAbort = errors.New("txn: lock acquisition timed out")

// ErrBufferAbort mirrors buffer.ErrBufferAbort at the txn layer so callers
// checking for an abort condition don't need to import internal/buffer.
var ErrBufferAbort = errors.New("txn: buffer pin timed out")
