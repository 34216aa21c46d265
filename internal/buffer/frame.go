package buffer

import (
	"sync"

	"github.com/SimonWaldherr/tinySQL/internal/file"
	"github.com/SimonWaldherr/tinySQL/internal/page"
	"github.com/SimonWaldherr/tinySQL/internal/walog"
)

// Frame is one of the buffer pool's fixed slots. Its metadata (pins,
// dirty, block identity, LSN) is guarded by mu; page bytes are guarded by
// pageMu, a reader-writer lock that lets multiple transactions read the
// same resident block concurrently (callers are still required to hold
// the corresponding logical lock from the LockTable).
type Frame struct {
	idx int

	mu          sync.Mutex
	blockID     file.BlockID
	valid       bool
	pins        int
	dirty       bool
	modifyingTx int64
	lsn         walog.LSN

	pageMu sync.RWMutex
	page   *page.Page
}

// Index returns the frame's position in the pool.
func (f *Frame) Index() int { return f.idx }

// BlockID returns the block currently resident in the frame. Only
// meaningful while the caller holds a pin.
func (f *Frame) BlockID() file.BlockID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.blockID
}

// Page returns the page view backing this frame. Callers must hold a pin
// and use RLock/Lock on the frame's reader-writer discipline via the
// Transaction layer (ReadGuard/WriteGuard); the raw accessor here performs
// no locking of its own beyond what's needed to read the pointer safely.
func (f *Frame) Page() *page.Page {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.page
}

// RLock/RUnlock/Lock/Unlock expose the page-bytes reader-writer lock so
// guards in the txn package can allow concurrent readers of one resident
// block.
func (f *Frame) RLock()   { f.pageMu.RLock() }
func (f *Frame) RUnlock() { f.pageMu.RUnlock() }
func (f *Frame) Lock()    { f.pageMu.Lock() }
func (f *Frame) Unlock()  { f.pageMu.Unlock() }

// LSN returns the LSN of the frame's last modification.
func (f *Frame) LSN() walog.LSN {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lsn
}

// ModifyingTx returns the TxID that last modified this frame, or -1.
func (f *Frame) ModifyingTx() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.modifyingTx
}

// SetModified marks the frame dirty and records the transaction and LSN
// responsible, per the WAL-before-data discipline: the LSN passed in must
// already have been assigned by the RecoveryManager before this call.
func (f *Frame) SetModified(txID int64, lsn walog.LSN) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dirty = true
	f.modifyingTx = txID
	f.lsn = lsn
}

func newFrame(idx int) *Frame {
	return &Frame{idx: idx, modifyingTx: -1, lsn: walog.NoLSN}
}
