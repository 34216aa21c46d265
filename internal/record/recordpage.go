package record

import (
	"fmt"

	"github.com/SimonWaldherr/tinySQL/internal/file"
	"github.com/SimonWaldherr/tinySQL/internal/txn"
	"golang.org/x/text/unicode/norm"
)

// Slot flag values: each slot begins with a 32-bit flag field.
const (
	FlagFree int32 = 0
	FlagLive int32 = 1
)

// RecordPage is a write-pinned view over one block, laid out according to
// layout: a sequence of fixed-width slots, each beginning with a
// FREE/LIVE flag followed by the schema's fields packed at their
// declared offsets.
type RecordPage struct {
	tx     *txn.Transaction
	block  file.BlockID
	layout *Layout
	guard  *txn.WriteGuard
}

// NewRecordPage pins block for writing and returns a RecordPage over it.
// Callers must call Close when done.
func NewRecordPage(tx *txn.Transaction, block file.BlockID, layout *Layout) (*RecordPage, error) {
	g, err := tx.PinWrite(block)
	if err != nil {
		return nil, err
	}
	return &RecordPage{tx: tx, block: block, layout: layout, guard: g}, nil
}

// Close releases the underlying pin.
func (rp *RecordPage) Close() {
	rp.guard.Close()
}

// Block returns the page's block.
func (rp *RecordPage) Block() file.BlockID { return rp.block }

func (rp *RecordPage) slotsPerBlock() int32 {
	return int32(rp.tx.BlockSize() / rp.layout.SlotSize())
}

// SlotsPerBlock returns the number of fixed-width slots that fit in one
// block under this RecordPage's layout.
func (rp *RecordPage) SlotsPerBlock() int32 {
	return rp.slotsPerBlock()
}

func (rp *RecordPage) flagOffset(slot int32) int32 {
	return slot * int32(rp.layout.SlotSize())
}

func (rp *RecordPage) fieldOffset(slot int32, field string) int32 {
	return rp.flagOffset(slot) + int32(rp.layout.Offset(field))
}

// Format initializes every slot in the block to FREE and zeroes every
// field, preparing a freshly appended block for use.
func (rp *RecordPage) Format() error {
	n := rp.slotsPerBlock()
	for slot := int32(0); slot < n; slot++ {
		if err := rp.guard.SetInt(rp.flagOffset(slot), FlagFree); err != nil {
			return fmt.Errorf("record: format slot %d: %w", slot, err)
		}
		for _, name := range rp.layout.Schema().Fields() {
			off := rp.fieldOffset(slot, name)
			switch rp.layout.Schema().Type(name) {
			case TypeInt:
				if err := rp.guard.SetInt(off, 0); err != nil {
					return fmt.Errorf("record: format slot %d field %s: %w", slot, name, err)
				}
			case TypeString:
				if err := rp.guard.SetString(off, ""); err != nil {
					return fmt.Errorf("record: format slot %d field %s: %w", slot, name, err)
				}
			}
		}
	}
	return nil
}

// GetInt reads the integer at field of slot.
func (rp *RecordPage) GetInt(slot int32, field string) int32 {
	return rp.guard.GetInt(rp.fieldOffset(slot, field))
}

// SetInt writes v at field of slot, through the transaction's WAL-logged
// write path.
func (rp *RecordPage) SetInt(slot int32, field string, v int32) error {
	return rp.guard.SetInt(rp.fieldOffset(slot, field), v)
}

// GetString reads the string at field of slot.
func (rp *RecordPage) GetString(slot int32, field string) string {
	return rp.guard.GetString(rp.fieldOffset(slot, field))
}

// SetString writes s at field of slot. s is normalized to Unicode NFC
// before being stored so byte-for-byte comparisons of string fields
// (index keys, equality predicates) are insensitive to equivalent
// composed/decomposed input.
func (rp *RecordPage) SetString(slot int32, field string, s string) error {
	return rp.guard.SetString(rp.fieldOffset(slot, field), norm.NFC.String(s))
}

func (rp *RecordPage) slotFlag(slot int32) int32 {
	return rp.guard.GetInt(rp.flagOffset(slot))
}

// NextAfter returns the next LIVE slot strictly after slot, or -1 if none
// remains in this block.
func (rp *RecordPage) NextAfter(slot int32) int32 {
	return rp.searchAfter(slot, FlagLive)
}

// InsertAfter finds the next FREE slot strictly after slot, marks it
// LIVE, and returns it, or -1 if the block is full.
func (rp *RecordPage) InsertAfter(slot int32) (int32, error) {
	newSlot := rp.searchAfter(slot, FlagFree)
	if newSlot < 0 {
		return -1, nil
	}
	if err := rp.guard.SetInt(rp.flagOffset(newSlot), FlagLive); err != nil {
		return -1, fmt.Errorf("record: insert_after: %w", err)
	}
	return newSlot, nil
}

// Delete marks slot FREE.
func (rp *RecordPage) Delete(slot int32) error {
	if err := rp.guard.SetInt(rp.flagOffset(slot), FlagFree); err != nil {
		return fmt.Errorf("record: delete slot %d: %w", slot, err)
	}
	return nil
}

func (rp *RecordPage) searchAfter(slot int32, flag int32) int32 {
	n := rp.slotsPerBlock()
	candidate := slot + 1
	for candidate < n {
		if rp.slotFlag(candidate) == flag {
			return candidate
		}
		candidate++
	}
	return -1
}
