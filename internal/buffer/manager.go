// Package buffer implements the buffer pool: a fixed set of frames, a
// sharded residency table and sharded latch table on the pin path, a
// pluggable replacement policy, WAL-before-data flush discipline, and
// condition-variable-based starvation handling.
package buffer

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/SimonWaldherr/tinySQL/internal/file"
	"github.com/SimonWaldherr/tinySQL/internal/page"
	"github.com/SimonWaldherr/tinySQL/internal/walog"
)

// ErrBufferAbort is returned by Pin when no frame becomes available
// before the wait timeout elapses. The caller's transaction must abort.
var ErrBufferAbort = errors.New("buffer: timed out waiting for an available frame")

// DefaultWaitTimeout bounds how long Pin blocks for a free frame before
// returning ErrBufferAbort.
const DefaultWaitTimeout = 10 * time.Second

const errNoVictimSentinel = -1

// Config configures a Manager.
type Config struct {
	PoolSize    int
	Policy      PolicyKind
	WaitTimeout time.Duration // 0 = DefaultWaitTimeout
	ShardCount  int           // 0 = a sensible default derived from PoolSize
}

// Manager is the fixed-size buffer pool.
type Manager struct {
	fm       *file.Manager
	lm       *walog.Manager
	pageSize int

	frames []*Frame
	policy Policy

	residency *residencyTable
	latches   *latchTable
	shardN    int

	waitTimeout time.Duration

	availMu   sync.Mutex
	availCond *sync.Cond
	available int
}

// NewManager constructs a Manager backed by fm (for page I/O) and lm (for
// the WAL-before-data flush discipline).
func NewManager(fm *file.Manager, lm *walog.Manager, cfg Config) *Manager {
	n := cfg.PoolSize
	if n <= 0 {
		n = 1
	}
	shardN := cfg.ShardCount
	if shardN <= 0 {
		shardN = n
		if shardN > 64 {
			shardN = 64
		}
	}
	wt := cfg.WaitTimeout
	if wt <= 0 {
		wt = DefaultWaitTimeout
	}

	m := &Manager{
		fm:          fm,
		lm:          lm,
		pageSize:    fm.BlockSize(),
		frames:      make([]*Frame, n),
		policy:      NewPolicy(cfg.Policy, n),
		residency:   newResidencyTable(shardN),
		latches:     newLatchTable(shardN),
		shardN:      shardN,
		waitTimeout: wt,
		available:   n,
	}
	m.availCond = sync.NewCond(&m.availMu)
	for i := range m.frames {
		m.frames[i] = newFrame(i)
	}
	return m
}

// PoolSize returns the number of frames in the pool.
func (m *Manager) PoolSize() int { return len(m.frames) }

// Available returns the count of frames currently unpinned.
func (m *Manager) Available() int {
	m.availMu.Lock()
	defer m.availMu.Unlock()
	return m.available
}

func (m *Manager) incAvailable() {
	m.availMu.Lock()
	m.available++
	m.availCond.Signal()
	m.availMu.Unlock()
}

func (m *Manager) decAvailable() {
	m.availMu.Lock()
	m.available--
	m.availMu.Unlock()
}

// waitForAvailable blocks until Available()>0 or deadline passes, using a
// dedicated condition variable so waiters don't busy-poll. Returns false
// on timeout.
func (m *Manager) waitForAvailable(deadline time.Time) bool {
	m.availMu.Lock()
	defer m.availMu.Unlock()
	for m.available == 0 {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false
		}
		timer := time.AfterFunc(remaining, func() {
			m.availMu.Lock()
			m.availCond.Broadcast()
			m.availMu.Unlock()
		})
		m.availCond.Wait()
		timer.Stop()
		if time.Now().After(deadline) {
			return m.available > 0
		}
	}
	return true
}

func (m *Manager) isPinned(idx int) bool {
	f := m.frames[idx]
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pins > 0
}

// Pin pins a frame serving block, loading it from disk on a miss. It may
// block up to the configured wait timeout before returning
// ErrBufferAbort.
func (m *Manager) Pin(block file.BlockID) (*Frame, error) {
	shard := blockShard(block, m.shardN)
	release := m.latches.lock(shard)
	defer release()

	deadline := time.Now().Add(m.waitTimeout)
	for {
		if idx, ok := m.residency.get(block); ok {
			f := m.frames[idx]
			f.mu.Lock()
			if f.valid && f.blockID == block {
				wasIdle := f.pins == 0
				f.pins++
				f.mu.Unlock()
				if wasIdle {
					m.decAvailable()
				}
				m.policy.RecordAccess(idx, false)
				return f, nil
			}
			f.mu.Unlock()
		}

		idx, err := m.loadInto(block)
		if err == errNoVictim {
			if !m.waitForAvailable(deadline) {
				return nil, ErrBufferAbort
			}
			continue
		}
		if err != nil {
			return nil, err
		}
		return m.frames[idx], nil
	}
}

var errNoVictim = errors.New("buffer: no unpinned frame available")

// loadInto selects a victim frame (if any is unpinned), evicts it with the
// WAL-before-data discipline, reads block into it, and publishes the new
// residency mapping. Caller holds block's latch.
func (m *Manager) loadInto(block file.BlockID) (int, error) {
	idx := m.policy.SelectVictim(len(m.frames), m.isPinned)
	if idx == errNoVictimSentinel {
		return 0, errNoVictim
	}
	f := m.frames[idx]

	f.mu.Lock()
	oldBlock, wasValid, dirty, lsn := f.blockID, f.valid, f.dirty, f.lsn
	f.mu.Unlock()

	if wasValid {
		// Remove the stale mapping first so no new pinner observes a
		// frame that is about to change identity.
		m.residency.delete(oldBlock)
		if dirty {
			if err := m.lm.FlushTo(lsn); err != nil {
				return 0, fmt.Errorf("buffer: wal flush before evict: %w", err)
			}
			f.RLock()
			buf := append([]byte(nil), f.Page().Bytes()...)
			f.RUnlock()
			if err := m.fm.Write(oldBlock, buf); err != nil {
				return 0, fmt.Errorf("buffer: evict write %s: %w", oldBlock, err)
			}
		}
	}

	buf := make([]byte, m.pageSize)
	if err := m.fm.Read(block, buf); err != nil {
		return 0, fmt.Errorf("buffer: read %s: %w", block, err)
	}

	f.Lock()
	f.page = page.Wrap(buf)
	f.Unlock()

	f.mu.Lock()
	f.blockID = block
	f.valid = true
	f.dirty = false
	f.modifyingTx = -1
	f.lsn = walog.NoLSN
	f.pins = 1
	f.mu.Unlock()

	m.residency.put(block, idx)
	m.policy.RecordAccess(idx, true)
	m.decAvailable()
	return idx, nil
}

// Unpin decrements the pin count on f, waking one waiter when it reaches
// zero.
func (m *Manager) Unpin(f *Frame) {
	f.mu.Lock()
	f.pins--
	becameFree := f.pins == 0
	pins := f.pins
	f.mu.Unlock()
	if pins < 0 {
		panic("buffer: unpin of a frame with zero pins")
	}
	if becameFree {
		m.incAvailable()
	}
}

// FlushAll forces every frame modified by txID to disk, WAL-first. Used at
// commit time (force policy).
func (m *Manager) FlushAll(txID int64) error {
	for _, f := range m.frames {
		f.mu.Lock()
		if !f.valid || !f.dirty || f.modifyingTx != txID {
			f.mu.Unlock()
			continue
		}
		block, lsn := f.blockID, f.lsn
		f.mu.Unlock()

		if err := m.lm.FlushTo(lsn); err != nil {
			return fmt.Errorf("buffer: flush_all wal flush: %w", err)
		}
		f.RLock()
		buf := append([]byte(nil), f.Page().Bytes()...)
		f.RUnlock()
		if err := m.fm.Write(block, buf); err != nil {
			return fmt.Errorf("buffer: flush_all write %s: %w", block, err)
		}

		f.mu.Lock()
		if f.blockID == block && f.modifyingTx == txID {
			f.dirty = false
		}
		f.mu.Unlock()
	}
	return nil
}

// FlushAllDirty forces every dirty frame to disk, WAL-first, regardless of
// which transaction last modified it. A checkpoint uses this (rather than
// FlushAll) so the CHECKPOINT record it appends afterward is a true
// fuzzy-checkpoint marker: nothing before it needs undoing again.
func (m *Manager) FlushAllDirty() error {
	for _, f := range m.frames {
		f.mu.Lock()
		if !f.valid || !f.dirty {
			f.mu.Unlock()
			continue
		}
		block, lsn, txID := f.blockID, f.lsn, f.modifyingTx
		f.mu.Unlock()

		if err := m.lm.FlushTo(lsn); err != nil {
			return fmt.Errorf("buffer: flush_all_dirty wal flush: %w", err)
		}
		f.RLock()
		buf := append([]byte(nil), f.Page().Bytes()...)
		f.RUnlock()
		if err := m.fm.Write(block, buf); err != nil {
			return fmt.Errorf("buffer: flush_all_dirty write %s: %w", block, err)
		}

		f.mu.Lock()
		if f.blockID == block && f.modifyingTx == txID {
			f.dirty = false
		}
		f.mu.Unlock()
	}
	return nil
}

// Frames exposes the frame slice for diagnostics/tests only.
func (m *Manager) Frames() []*Frame { return m.frames }
