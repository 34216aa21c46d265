package walog

import (
	"fmt"

	"github.com/SimonWaldherr/tinySQL/internal/file"
)

// Iterator walks WAL records from newest to oldest. Within a page, records
// are naturally stored newest-first (lowest offset) by Append, so a plain
// left-to-right scan from the boundary produces reverse-append order;
// across pages, the iterator walks block numbers downward from the tail.
type Iterator struct {
	fm      *file.Manager
	logfile string

	block    file.BlockID
	page     []byte
	pos      int32 // current read offset within page
	boundary int32 // earliest valid offset within page
	done     bool
}

// IterateReverse creates a fresh, restartable reverse iterator. It first
// flushes the in-memory tail page so the iterator always observes every
// record that has been appended (flushed or not).
func (m *Manager) IterateReverse() (*Iterator, error) {
	m.mu.Lock()
	if err := m.flushLocked(); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	block := m.currentBlock
	m.mu.Unlock()

	it := &Iterator{fm: m.fm, logfile: m.logfile, page: make([]byte, m.pageSize)}
	if err := it.loadBlock(block); err != nil {
		return nil, err
	}
	return it, nil
}

func (it *Iterator) loadBlock(block file.BlockID) error {
	if block.Num < 0 {
		it.done = true
		return nil
	}
	if err := it.fm.Read(block, it.page); err != nil {
		return fmt.Errorf("walog: iterator read block %d: %w", block.Num, err)
	}
	it.block = block
	it.boundary = int32(enc.Uint32(it.page[0:boundaryFieldSize]))
	it.pos = it.boundary
	return nil
}

// Next returns the next record in newest-to-oldest order, or (Record{},
// false, nil) once exhausted.
func (it *Iterator) Next() (Record, bool, error) {
	for {
		if it.done {
			return Record{}, false, nil
		}
		if it.pos >= int32(len(it.page)) {
			// Exhausted this page — move to the previous block.
			if err := it.loadBlock(file.NewBlockID(it.logfile, it.block.Num-1)); err != nil {
				return Record{}, false, err
			}
			continue
		}
		recLen := int32(enc.Uint32(it.page[it.pos : it.pos+4]))
		payload := it.page[it.pos+4 : it.pos+4+recLen]
		rec, err := Unmarshal(payload)
		if err != nil {
			return Record{}, false, fmt.Errorf("walog: decode record at block %d offset %d: %w", it.block.Num, it.pos, err)
		}
		it.pos += 4 + recLen
		return rec, true, nil
	}
}
