package index

import (
	"fmt"

	"github.com/SimonWaldherr/tinySQL/internal/file"
	"github.com/SimonWaldherr/tinySQL/internal/record"
	"github.com/SimonWaldherr/tinySQL/internal/txn"
)

// entryPage is the shared slotted-array machinery behind Leaf and
// Directory: slot 0 is a reserved header (two header ints plus a live
// entry count); slots [1..count] hold sorted (key, payload) entries
// packed contiguously, shifted on insert/delete to preserve order. The
// two header ints mean leaf-overflow/sibling or directory-flag/level
// depending on which wraps this page.
type entryPage struct {
	rp      *record.RecordPage
	layout  *record.Layout
	keyType record.FieldType
}

func openEntryPage(tx *txn.Transaction, block file.BlockID, layout *record.Layout, keyType record.FieldType) (*entryPage, error) {
	rp, err := record.NewRecordPage(tx, block, layout)
	if err != nil {
		return nil, err
	}
	return &entryPage{rp: rp, layout: layout, keyType: keyType}, nil
}

func formatEntryPage(tx *txn.Transaction, block file.BlockID, layout *record.Layout, keyType record.FieldType, h0, h1 int32) (*entryPage, error) {
	rp, err := record.NewRecordPage(tx, block, layout)
	if err != nil {
		return nil, err
	}
	if err := rp.Format(); err != nil {
		return nil, err
	}
	ep := &entryPage{rp: rp, layout: layout, keyType: keyType}
	if err := ep.setHeader0(h0); err != nil {
		return nil, err
	}
	if err := ep.setHeader1(h1); err != nil {
		return nil, err
	}
	if err := ep.setCount(0); err != nil {
		return nil, err
	}
	return ep, nil
}

func (ep *entryPage) close() { ep.rp.Close() }

func (ep *entryPage) header0() int32 { return ep.rp.GetInt(0, fieldFlagOrOverflow) }
func (ep *entryPage) setHeader0(v int32) error {
	return ep.rp.SetInt(0, fieldFlagOrOverflow, v)
}
func (ep *entryPage) header1() int32 { return ep.rp.GetInt(0, fieldLevelOrSibling) }
func (ep *entryPage) setHeader1(v int32) error {
	return ep.rp.SetInt(0, fieldLevelOrSibling, v)
}

func (ep *entryPage) count() int32         { return ep.rp.GetInt(0, fieldCount) }
func (ep *entryPage) setCount(v int32) error { return ep.rp.SetInt(0, fieldCount, v) }

// capacity is the maximum number of entries the page can hold, leaving
// slot 0 for the header.
func (ep *entryPage) capacity() int32 {
	return ep.rp.SlotsPerBlock() - 1
}

func (ep *entryPage) isFull() bool {
	return ep.count() >= ep.capacity()
}

func (ep *entryPage) key(slot int32) Key {
	if ep.keyType == record.TypeString {
		return StringKey(ep.rp.GetString(slot, fieldKeyStr))
	}
	return IntKey(ep.rp.GetInt(slot, fieldKeyInt))
}

func (ep *entryPage) setKey(slot int32, k Key) error {
	if ep.keyType == record.TypeString {
		return ep.rp.SetString(slot, fieldKeyStr, k.StrVal)
	}
	return ep.rp.SetInt(slot, fieldKeyInt, k.IntVal)
}

func (ep *entryPage) payload(slot int32) int32      { return ep.rp.GetInt(slot, fieldBlockOrChild) }
func (ep *entryPage) setPayload(slot int32, v int32) error {
	return ep.rp.SetInt(slot, fieldBlockOrChild, v)
}

func (ep *entryPage) extra(slot int32) int32      { return ep.rp.GetInt(slot, fieldSlot) }
func (ep *entryPage) setExtra(slot int32, v int32) error {
	return ep.rp.SetInt(slot, fieldSlot, v)
}

// findSlot returns the smallest slot in [1, count] whose key is >= k
// (the insertion point / lower bound), or count+1 if every entry sorts
// before k. Entries are few per page (slotted fixed-size records), so a
// linear scan is simple and fast enough; a binary search would need the
// same Get calls anyway since entries live on a page, not in memory.
func (ep *entryPage) findSlot(k Key) int32 {
	n := ep.count()
	var slot int32 = 1
	for slot <= n && Compare(ep.key(slot), k) < 0 {
		slot++
	}
	return slot
}

// insertAt shifts entries [at, count] right by one and writes (key,
// payload, extra) into the freed slot at.
func (ep *entryPage) insertAt(at int32, k Key, payload, extra int32) error {
	n := ep.count()
	for slot := n; slot >= at; slot-- {
		if err := ep.copyEntry(slot, slot+1); err != nil {
			return fmt.Errorf("index: shift slot %d: %w", slot, err)
		}
	}
	if err := ep.setKey(at, k); err != nil {
		return err
	}
	if err := ep.setPayload(at, payload); err != nil {
		return err
	}
	if err := ep.setExtra(at, extra); err != nil {
		return err
	}
	return ep.setCount(n + 1)
}

// deleteAt shifts entries [at+1, count] left by one, dropping the entry
// previously at at.
func (ep *entryPage) deleteAt(at int32) error {
	n := ep.count()
	for slot := at; slot < n; slot++ {
		if err := ep.copyEntry(slot+1, slot); err != nil {
			return fmt.Errorf("index: shift slot %d: %w", slot+1, err)
		}
	}
	return ep.setCount(n - 1)
}

func (ep *entryPage) copyEntry(from, to int32) error {
	if err := ep.setKey(to, ep.key(from)); err != nil {
		return err
	}
	if err := ep.setPayload(to, ep.payload(from)); err != nil {
		return err
	}
	return ep.setExtra(to, ep.extra(from))
}

// splitAt moves entries [splitSlot, count] into newPage (a freshly
// formatted page of the same shape), starting at slot 1, and truncates
// this page's count to splitSlot-1. Returns the first moved key, which
// becomes the separator propagated to the parent.
func (ep *entryPage) splitAt(splitSlot int32, newPage *entryPage) (Key, error) {
	n := ep.count()
	dest := int32(1)
	var firstKey Key
	for src := splitSlot; src <= n; src++ {
		k := ep.key(src)
		if dest == 1 {
			firstKey = k
		}
		if err := newPage.setKey(dest, k); err != nil {
			return Key{}, err
		}
		if err := newPage.setPayload(dest, ep.payload(src)); err != nil {
			return Key{}, err
		}
		if err := newPage.setExtra(dest, ep.extra(src)); err != nil {
			return Key{}, err
		}
		dest++
	}
	if err := newPage.setCount(dest - 1); err != nil {
		return Key{}, err
	}
	if err := ep.setCount(splitSlot - 1); err != nil {
		return Key{}, err
	}
	return firstKey, nil
}
