package txn

import (
	"sync"
	"time"

	"github.com/SimonWaldherr/tinySQL/internal/file"
)

// DefaultLockTimeout bounds how long slock/xlock wait before returning
// ErrLockAbort.
const DefaultLockTimeout = 10 * time.Second

const noHolder int64 = -1

// lockEntry tracks the holders of a single resource (a BlockID, including
// the synthetic end-of-file marker produced by file.EndOfFile).
type lockEntry struct {
	mu        sync.Mutex
	cond      *sync.Cond
	shared    map[int64]struct{}
	exclusive int64 // noHolder if none
}

func newLockEntry() *lockEntry {
	e := &lockEntry{shared: make(map[int64]struct{}), exclusive: noHolder}
	e.cond = sync.NewCond(&e.mu)
	return e
}

// LockTable implements strict two-phase locking over block-shaped
// resources: slock/xlock block the caller's goroutine (one per
// transaction) until the lock is free or the timeout elapses, at which
// point the caller must abort. release_all drops every lock a
// transaction holds, waking any waiters.
type LockTable struct {
	timeout time.Duration

	mu        sync.Mutex
	entries   map[file.BlockID]*lockEntry
	held      map[int64]map[file.BlockID]struct{} // txID -> resources it holds (shared or exclusive)
}

// NewLockTable constructs a LockTable with the given wait timeout (0 means
// DefaultLockTimeout).
func NewLockTable(timeout time.Duration) *LockTable {
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}
	return &LockTable{
		timeout: timeout,
		entries: make(map[file.BlockID]*lockEntry),
		held:    make(map[int64]map[file.BlockID]struct{}),
	}
}

func (lt *LockTable) entryFor(resource file.BlockID) *lockEntry {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	e, ok := lt.entries[resource]
	if !ok {
		e = newLockEntry()
		lt.entries[resource] = e
	}
	return e
}

func (lt *LockTable) markHeld(txID int64, resource file.BlockID) {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	set, ok := lt.held[txID]
	if !ok {
		set = make(map[file.BlockID]struct{})
		lt.held[txID] = set
	}
	set[resource] = struct{}{}
}

// SLock acquires a shared lock on resource for txID, blocking while it is
// held exclusively by another transaction.
func (lt *LockTable) SLock(txID int64, resource file.BlockID) error {
	e := lt.entryFor(resource)
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, already := e.shared[txID]; already || e.exclusive == txID {
		return nil
	}

	deadline := time.Now().Add(lt.timeout)
	for e.exclusive != noHolder && e.exclusive != txID {
		if !condWaitUntil(e.cond, deadline) {
			return ErrLockAbort
		}
	}
	e.shared[txID] = struct{}{}
	lt.markHeld(txID, resource)
	return nil
}

// XLock acquires an exclusive lock on resource for txID. If txID already
// holds the shared lock alone, it upgrades in place; if other shared
// holders remain it waits for them to drop off.
func (lt *LockTable) XLock(txID int64, resource file.BlockID) error {
	e := lt.entryFor(resource)
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.exclusive == txID {
		return nil
	}

	deadline := time.Now().Add(lt.timeout)
	for {
		_, holdsShared := e.shared[txID]
		otherShared := len(e.shared)
		if holdsShared {
			otherShared--
		}
		if e.exclusive == noHolder && otherShared == 0 {
			break
		}
		if !condWaitUntil(e.cond, deadline) {
			return ErrLockAbort
		}
	}
	delete(e.shared, txID)
	e.exclusive = txID
	lt.markHeld(txID, resource)
	return nil
}

// ReleaseAll drops every lock txID holds, waking any goroutines waiting on
// those resources.
func (lt *LockTable) ReleaseAll(txID int64) {
	lt.mu.Lock()
	resources := lt.held[txID]
	delete(lt.held, txID)
	lt.mu.Unlock()

	for resource := range resources {
		e := lt.entryFor(resource)
		e.mu.Lock()
		delete(e.shared, txID)
		if e.exclusive == txID {
			e.exclusive = noHolder
		}
		e.cond.Broadcast()
		e.mu.Unlock()
	}
}

// condWaitUntil waits on cond, returning false once deadline has passed
// without being able to confirm the condition changed. Cond has no native
// deadline support, so a timer nudges the waiter with a Broadcast.
func condWaitUntil(cond *sync.Cond, deadline time.Time) bool {
	remaining := time.Until(deadline)
	if remaining <= 0 {
		return false
	}
	timer := time.AfterFunc(remaining, cond.Broadcast)
	cond.Wait()
	timer.Stop()
	return time.Now().Before(deadline) || time.Now().Equal(deadline)
}
