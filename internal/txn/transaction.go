package txn

import (
	"fmt"
	"sync/atomic"

	"github.com/SimonWaldherr/tinySQL/internal/buffer"
	"github.com/SimonWaldherr/tinySQL/internal/file"
	"github.com/SimonWaldherr/tinySQL/internal/recovery"
)

var nextTxID int64

func newTxID() int64 {
	return atomic.AddInt64(&nextTxID, 1)
}

// ReadGuard is a pinned, shared-locked view of one block, released by
// Close.
type ReadGuard struct {
	tx    *Transaction
	block file.BlockID
	frame *buffer.Frame
}

// Block returns the guarded block.
func (g *ReadGuard) Block() file.BlockID { return g.block }

// GetInt reads the 32-bit integer at offset.
func (g *ReadGuard) GetInt(offset int32) int32 {
	g.frame.RLock()
	defer g.frame.RUnlock()
	return g.frame.Page().GetInt(int(offset))
}

// GetString reads the length-prefixed string at offset.
func (g *ReadGuard) GetString(offset int32) string {
	g.frame.RLock()
	defer g.frame.RUnlock()
	return g.frame.Page().GetString(int(offset))
}

// Close releases the pin. ReadGuard does not release the lock: strict 2PL
// holds locks until the transaction ends.
func (g *ReadGuard) Close() {
	g.tx.bl.unpin(g.block)
}

// WriteGuard is a pinned, exclusive-locked, writable view of one block.
type WriteGuard struct {
	tx    *Transaction
	block file.BlockID
	frame *buffer.Frame
}

// Block returns the guarded block.
func (g *WriteGuard) Block() file.BlockID { return g.block }

// GetInt reads the 32-bit integer at offset.
func (g *WriteGuard) GetInt(offset int32) int32 {
	g.frame.RLock()
	defer g.frame.RUnlock()
	return g.frame.Page().GetInt(int(offset))
}

// GetString reads the length-prefixed string at offset.
func (g *WriteGuard) GetString(offset int32) string {
	g.frame.RLock()
	defer g.frame.RUnlock()
	return g.frame.Page().GetString(int(offset))
}

// SetInt writes v at offset, first logging the before-image and attaching
// the returned LSN to the frame per the WAL-before-data discipline.
func (g *WriteGuard) SetInt(offset int32, v int32) error {
	g.frame.RLock()
	old := g.frame.Page().GetInt(int(offset))
	g.frame.RUnlock()

	lsn, err := g.tx.rm.LogSetInt(g.tx.id, g.block, offset, old)
	if err != nil {
		return fmt.Errorf("txn: set_int log: %w", err)
	}

	g.frame.Lock()
	g.frame.Page().SetInt(int(offset), v)
	g.frame.Page().SetStoredLSN(uint32(lsn))
	g.frame.Unlock()
	g.frame.SetModified(g.tx.id, lsn)
	return nil
}

// SetString writes s at offset, logging the before-image first.
func (g *WriteGuard) SetString(offset int32, s string) error {
	g.frame.RLock()
	old := g.frame.Page().GetString(int(offset))
	g.frame.RUnlock()

	lsn, err := g.tx.rm.LogSetString(g.tx.id, g.block, offset, old)
	if err != nil {
		return fmt.Errorf("txn: set_string log: %w", err)
	}

	g.frame.Lock()
	g.frame.Page().SetString(int(offset), s)
	g.frame.Page().SetStoredLSN(uint32(lsn))
	g.frame.Unlock()
	g.frame.SetModified(g.tx.id, lsn)
	return nil
}

// Close releases the pin.
func (g *WriteGuard) Close() {
	g.tx.bl.unpin(g.block)
}

// Transaction is a single-threaded handle bundling a transaction ID, the
// per-transaction lock facade, the per-transaction buffer list, and the
// recovery manager used to log before-images. It is not safe for
// concurrent use by more than one goroutine: a write guard borrows the
// transaction exclusively for the duration of its operations.
type Transaction struct {
	id int64

	fm *file.Manager
	bm *buffer.Manager
	rm *recovery.Manager
	cm *ConcurrencyManager
	bl *bufferList

	done bool
}

// New begins a transaction against the shared file/buffer/lock/recovery
// managers.
func New(fm *file.Manager, bm *buffer.Manager, rm *recovery.Manager, lt *LockTable) (*Transaction, error) {
	id := newTxID()
	if _, err := rm.LogStart(id); err != nil {
		return nil, fmt.Errorf("txn: start %d: %w", id, err)
	}
	return &Transaction{
		id: id,
		fm: fm,
		bm: bm,
		rm: rm,
		cm: NewConcurrencyManager(id, lt),
		bl: newBufferList(bm),
	}, nil
}

// ID returns the transaction's identifier.
func (t *Transaction) ID() int64 { return t.id }

// BlockSize returns the underlying page size.
func (t *Transaction) BlockSize() int { return t.fm.BlockSize() }

// Size returns the number of blocks in filename, taking a shared lock on
// the end-of-file marker so it is consistent with concurrent appenders.
func (t *Transaction) Size(filename string) (int64, error) {
	eof := file.EndOfFile(filename)
	if err := t.cm.SLock(eof); err != nil {
		return 0, err
	}
	n, err := t.fm.Length(filename)
	if err != nil {
		return 0, fmt.Errorf("txn: size %s: %w", filename, err)
	}
	return n, nil
}

// Append extends filename by one block, taking an exclusive lock on the
// end-of-file marker.
func (t *Transaction) Append(filename string) (file.BlockID, error) {
	eof := file.EndOfFile(filename)
	if err := t.cm.XLock(eof); err != nil {
		return file.BlockID{}, err
	}
	block, err := t.fm.Append(filename)
	if err != nil {
		return file.BlockID{}, fmt.Errorf("txn: append %s: %w", filename, err)
	}
	return block, nil
}

// PinRead acquires a shared lock on block, pins its frame, and returns a
// read-only guard that must be Closed.
func (t *Transaction) PinRead(block file.BlockID) (*ReadGuard, error) {
	if err := t.cm.SLock(block); err != nil {
		return nil, err
	}
	f, err := t.bl.pin(block)
	if err != nil {
		return nil, translateBufferErr(err)
	}
	return &ReadGuard{tx: t, block: block, frame: f}, nil
}

// PinWrite acquires an exclusive lock on block, pins its frame, and
// returns a writable guard that must be Closed.
func (t *Transaction) PinWrite(block file.BlockID) (*WriteGuard, error) {
	if err := t.cm.XLock(block); err != nil {
		return nil, err
	}
	f, err := t.bl.pin(block)
	if err != nil {
		return nil, translateBufferErr(err)
	}
	return &WriteGuard{tx: t, block: block, frame: f}, nil
}

// Commit makes the transaction's writes durable: flush the log past
// COMMIT, force every dirty frame the transaction touched to disk, then
// release locks and pins.
func (t *Transaction) Commit() error {
	if t.done {
		return nil
	}
	lsn, err := t.rm.LogCommit(t.id)
	if err != nil {
		return fmt.Errorf("txn: commit %d: %w", t.id, err)
	}
	if err := t.rm.FlushTo(lsn); err != nil {
		return fmt.Errorf("txn: commit %d flush: %w", t.id, err)
	}
	if err := t.bm.FlushAll(t.id); err != nil {
		return fmt.Errorf("txn: commit %d flush_all: %w", t.id, err)
	}
	t.cm.Release()
	t.bl.unpinAll()
	t.done = true
	return nil
}

// Rollback undoes every write the transaction made, in reverse order,
// then releases locks and pins. Rollback is idempotent: a second call is
// a no-op.
func (t *Transaction) Rollback() error {
	if t.done {
		return nil
	}
	if err := t.rm.Rollback(t.id, t.bm); err != nil {
		return err
	}
	lsn, err := t.rm.LogRollback(t.id)
	if err != nil {
		return fmt.Errorf("txn: rollback %d: %w", t.id, err)
	}
	if err := t.rm.FlushTo(lsn); err != nil {
		return fmt.Errorf("txn: rollback %d flush: %w", t.id, err)
	}
	if err := t.bm.FlushAll(t.id); err != nil {
		return fmt.Errorf("txn: rollback %d flush_all: %w", t.id, err)
	}
	t.cm.Release()
	t.bl.unpinAll()
	t.done = true
	return nil
}

func translateBufferErr(err error) error {
	if err == buffer.ErrBufferAbort {
		return ErrBufferAbort
	}
	return err
}
