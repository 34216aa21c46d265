package index

import (
	"github.com/SimonWaldherr/tinySQL/internal/file"
	"github.com/SimonWaldherr/tinySQL/internal/record"
	"github.com/SimonWaldherr/tinySQL/internal/txn"
)

// Leaf is a B-tree leaf page: reserved slot 0 holds (overflow_block,
// sibling); entries in slots [1..count] are (key, rid) sorted ascending
// by (key, rid).
type Leaf struct {
	ep *entryPage
}

// LeafSchema returns the record schema shared by every leaf page of an
// index over keys of keyType (keyLen is the max byte length for string
// keys; ignored for integer keys).
func LeafSchema(keyType record.FieldType, keyLen int) *record.Schema {
	return newSchema(keyType, keyLen)
}

// OpenLeaf pins an existing leaf block for reading/writing.
func OpenLeaf(tx *txn.Transaction, block file.BlockID, layout *record.Layout, keyType record.FieldType) (*Leaf, error) {
	ep, err := openEntryPage(tx, block, layout, keyType)
	if err != nil {
		return nil, err
	}
	return &Leaf{ep: ep}, nil
}

// FormatLeaf initializes a freshly appended block as an empty leaf with
// no overflow chain and no sibling.
func FormatLeaf(tx *txn.Transaction, block file.BlockID, layout *record.Layout, keyType record.FieldType) (*Leaf, error) {
	ep, err := formatEntryPage(tx, block, layout, keyType, -1, -1)
	if err != nil {
		return nil, err
	}
	return &Leaf{ep: ep}, nil
}

// Close releases the pin.
func (l *Leaf) Close() { l.ep.close() }

// Count returns the number of live entries.
func (l *Leaf) Count() int32 { return l.ep.count() }

// Overflow returns the block number of this leaf's overflow chain, or -1.
func (l *Leaf) Overflow() int64 { return int64(l.ep.header0()) }

// SetOverflow sets the overflow chain pointer.
func (l *Leaf) SetOverflow(block int64) error { return l.ep.setHeader0(int32(block)) }

// Sibling returns the next leaf block in key order, or -1 if this is the
// last leaf.
func (l *Leaf) Sibling() int64 { return int64(l.ep.header1()) }

// SetSibling sets the next-leaf pointer.
func (l *Leaf) SetSibling(block int64) error { return l.ep.setHeader1(int32(block)) }

// Key returns the key stored at slot.
func (l *Leaf) Key(slot int32) Key { return l.ep.key(slot) }

// RID returns the record id stored at slot.
func (l *Leaf) RID(slot int32) record.RID {
	return record.NewRID(int64(l.ep.payload(slot)), l.ep.extra(slot))
}

// FindSlot returns the lower-bound slot for k: the first entry whose key
// is >= k, or Count()+1 if none.
func (l *Leaf) FindSlot(k Key) int32 { return l.ep.findSlot(k) }

// IsFull reports whether the page has no room for another entry.
func (l *Leaf) IsFull() bool { return l.ep.isFull() }

// Insert adds (key, rid) in sorted order. Caller must ensure IsFull() is
// false first.
func (l *Leaf) Insert(key Key, rid record.RID) error {
	at := l.ep.findSlot(key)
	for at <= l.ep.count() && Compare(l.ep.key(at), key) == 0 {
		r := l.RID(at)
		if r.BlockNum > rid.BlockNum || (r.BlockNum == rid.BlockNum && r.Slot >= rid.Slot) {
			break
		}
		at++
	}
	return l.ep.insertAt(at, key, int32(rid.BlockNum), rid.Slot)
}

// Delete removes the entry matching (key, rid) if present, reporting
// whether it was found.
func (l *Leaf) Delete(key Key, rid record.RID) (bool, error) {
	slot := l.ep.findSlot(key)
	for slot <= l.ep.count() && Compare(l.ep.key(slot), key) == 0 {
		if l.RID(slot) == rid {
			return true, l.ep.deleteAt(slot)
		}
		slot++
	}
	return false, nil
}

// Split moves the upper half of this leaf's entries into newBlock
// (freshly formatted), links the sibling chain, and returns the
// separator key to propagate upward.
func (l *Leaf) Split(tx *txn.Transaction, layout *record.Layout, newBlock file.BlockID) (Key, error) {
	newLeaf, err := FormatLeaf(tx, newBlock, layout, l.ep.keyType)
	if err != nil {
		return Key{}, err
	}
	defer newLeaf.Close()

	splitPoint := l.ep.count()/2 + 1
	sep, err := l.ep.splitAt(splitPoint, newLeaf.ep)
	if err != nil {
		return Key{}, err
	}
	if err := newLeaf.SetSibling(l.Sibling()); err != nil {
		return Key{}, err
	}
	if err := l.SetSibling(newBlock.Num); err != nil {
		return Key{}, err
	}
	return sep, nil
}
