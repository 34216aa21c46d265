// Package walog implements the write-ahead log: an append-only sequence of
// page-bounded records with monotonic LSN assignment and O(1) reverse
// iteration, grounded on the classic SimpleDB log manager shape (records
// are prepended right-to-left within a page so the most recent record in a
// page always sits at the lowest offset).
package walog

import (
	"errors"
	"fmt"
	"sync"

	"github.com/SimonWaldherr/tinySQL/internal/file"
)

// ErrRecordTooLarge is returned when a record does not fit within a single
// WAL page, even an empty one.
var ErrRecordTooLarge = errors.New("walog: record too large for one page")

// boundaryFieldSize is the size of the per-page header that records the
// offset of the earliest (leftmost) record currently stored in the page.
const boundaryFieldSize = 4

// Manager is the append-only log over a dedicated WAL file.
type Manager struct {
	mu sync.Mutex

	fm       *file.Manager
	logfile  string
	pageSize int

	page         []byte
	currentBlock file.BlockID

	latestLSN    LSN
	lastSavedLSN LSN
}

// Open opens or creates the WAL file logfile, positioning the manager at
// its last block (creating the first block if the file is empty). LSN
// numbering continues after the records already in the file.
func Open(fm *file.Manager, logfile string) (*Manager, error) {
	m := &Manager{
		fm:           fm,
		logfile:      logfile,
		pageSize:     fm.BlockSize(),
		latestLSN:    0,
		lastSavedLSN: 0,
	}

	n, err := fm.Length(logfile)
	if err != nil {
		return nil, fmt.Errorf("walog: open %s: %w", logfile, err)
	}
	m.page = make([]byte, m.pageSize)
	if n == 0 {
		block, err := m.appendNewBlock()
		if err != nil {
			return nil, err
		}
		m.currentBlock = block
	} else {
		m.currentBlock = file.NewBlockID(logfile, n-1)
		if err := fm.Read(m.currentBlock, m.page); err != nil {
			return nil, fmt.Errorf("walog: read last block: %w", err)
		}
		// LSNs are implicit in append order: one per record already logged.
		it, err := m.IterateReverse()
		for err == nil {
			var ok bool
			if _, ok, err = it.Next(); !ok {
				break
			}
			m.latestLSN++
		}
		if err != nil {
			return nil, fmt.Errorf("walog: count records in %s: %w", logfile, err)
		}
		m.lastSavedLSN = m.latestLSN
	}
	return m, nil
}

func (m *Manager) boundary() int32 {
	return int32(enc.Uint32(m.page[0:boundaryFieldSize]))
}

func (m *Manager) setBoundary(v int32) {
	enc.PutUint32(m.page[0:boundaryFieldSize], uint32(v))
}

// appendNewBlock extends the log file by one block, initializes its
// boundary to "page full", and writes it. Caller must hold mu.
func (m *Manager) appendNewBlock() (file.BlockID, error) {
	block, err := m.fm.Append(m.logfile)
	if err != nil {
		return file.BlockID{}, fmt.Errorf("walog: append block: %w", err)
	}
	for i := range m.page {
		m.page[i] = 0
	}
	m.setBoundary(int32(m.pageSize))
	if err := m.fm.Write(block, m.page); err != nil {
		return file.BlockID{}, fmt.Errorf("walog: write new block: %w", err)
	}
	return block, nil
}

// flushLocked writes the current in-memory page to currentBlock and
// records the latest LSN as durable. Caller must hold mu.
func (m *Manager) flushLocked() error {
	if err := m.fm.Write(m.currentBlock, m.page); err != nil {
		return fmt.Errorf("walog: flush: %w", err)
	}
	if err := m.fm.Sync(m.logfile); err != nil {
		return fmt.Errorf("walog: sync: %w", err)
	}
	m.lastSavedLSN = m.latestLSN
	return nil
}

// Append writes a record and assigns it an LSN strictly greater than all
// prior appends. Returns the assigned LSN.
func (m *Manager) Append(payload []byte) (LSN, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	needed := int32(len(payload) + boundaryFieldSize)
	if needed+boundaryFieldSize > int32(m.pageSize) {
		return 0, fmt.Errorf("%w: need %d bytes, page size %d", ErrRecordTooLarge, len(payload), m.pageSize)
	}

	spaceLeft := m.boundary()
	if needed+boundaryFieldSize > spaceLeft {
		if err := m.flushLocked(); err != nil {
			return 0, err
		}
		block, err := m.appendNewBlock()
		if err != nil {
			return 0, err
		}
		m.currentBlock = block
		spaceLeft = m.boundary()
	}

	recPos := spaceLeft - needed
	enc.PutUint32(m.page[recPos:recPos+4], uint32(len(payload)))
	copy(m.page[recPos+4:], payload)
	m.setBoundary(recPos)

	m.latestLSN++
	return m.latestLSN, nil
}

// FlushTo ensures every record with LSN <= lsn is durable. A no-op if the
// requested LSN is already known to be on disk.
func (m *Manager) FlushTo(lsn LSN) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if lsn <= m.lastSavedLSN {
		return nil
	}
	return m.flushLocked()
}

// NextLSN returns the LSN that would be assigned to the next Append.
func (m *Manager) NextLSN() LSN {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.latestLSN + 1
}

// Close flushes and releases the manager. The underlying file.Manager is
// owned by the caller and is not closed here.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flushLocked()
}
