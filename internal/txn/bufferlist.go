package txn

import (
	"github.com/SimonWaldherr/tinySQL/internal/buffer"
	"github.com/SimonWaldherr/tinySQL/internal/file"
)

// bufferList tracks the frames a transaction currently has pinned,
// reference-counted per block so repeated pins of the same block by one
// transaction collapse to a single underlying buffer.Manager pin. It
// unpins everything at commit/rollback.
type bufferList struct {
	bm     *buffer.Manager
	frames map[file.BlockID]*pinEntry
}

type pinEntry struct {
	frame *buffer.Frame
	count int
}

func newBufferList(bm *buffer.Manager) *bufferList {
	return &bufferList{bm: bm, frames: make(map[file.BlockID]*pinEntry)}
}

// pin pins block, returning its frame. Safe to call repeatedly for the
// same block within one transaction.
func (bl *bufferList) pin(block file.BlockID) (*buffer.Frame, error) {
	if pe, ok := bl.frames[block]; ok {
		pe.count++
		return pe.frame, nil
	}
	f, err := bl.bm.Pin(block)
	if err != nil {
		return nil, err
	}
	bl.frames[block] = &pinEntry{frame: f, count: 1}
	return f, nil
}

// unpin drops one reference to block, releasing the underlying pin once
// the count reaches zero.
func (bl *bufferList) unpin(block file.BlockID) {
	pe, ok := bl.frames[block]
	if !ok {
		return
	}
	pe.count--
	if pe.count <= 0 {
		bl.bm.Unpin(pe.frame)
		delete(bl.frames, block)
	}
}

// unpinAll releases the single underlying pin of every block this
// transaction still holds, whatever its reference count, per
// commit/rollback discipline.
func (bl *bufferList) unpinAll() {
	for block, pe := range bl.frames {
		bl.bm.Unpin(pe.frame)
		delete(bl.frames, block)
	}
}
