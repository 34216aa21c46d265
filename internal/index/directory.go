package index

import (
	"github.com/SimonWaldherr/tinySQL/internal/file"
	"github.com/SimonWaldherr/tinySQL/internal/record"
	"github.com/SimonWaldherr/tinySQL/internal/txn"
)

// Directory is a B-tree internal page: reserved slot 0 holds (flag=-1,
// level); entries in slots [1..count] are (key, child_block) sorted
// ascending, with the invariant that key is the least key in child's
// subtree.
type Directory struct {
	ep *entryPage
}

// DirectorySchema returns the record schema shared by every directory
// page of an index over keys of keyType.
func DirectorySchema(keyType record.FieldType, keyLen int) *record.Schema {
	return newSchema(keyType, keyLen)
}

// OpenDirectory pins an existing directory block.
func OpenDirectory(tx *txn.Transaction, block file.BlockID, layout *record.Layout, keyType record.FieldType) (*Directory, error) {
	ep, err := openEntryPage(tx, block, layout, keyType)
	if err != nil {
		return nil, err
	}
	return &Directory{ep: ep}, nil
}

// FormatDirectory initializes a freshly appended block as an empty
// directory page at the given level (0 = just above the leaves).
func FormatDirectory(tx *txn.Transaction, block file.BlockID, layout *record.Layout, keyType record.FieldType, level int32) (*Directory, error) {
	ep, err := formatEntryPage(tx, block, layout, keyType, -1, level)
	if err != nil {
		return nil, err
	}
	return &Directory{ep: ep}, nil
}

// Close releases the pin.
func (d *Directory) Close() { d.ep.close() }

// Count returns the number of live entries.
func (d *Directory) Count() int32 { return d.ep.count() }

// Level returns this page's height above the leaf level (0 = parent of
// leaves).
func (d *Directory) Level() int32 { return d.ep.header1() }

// SetLevel sets the page's level.
func (d *Directory) SetLevel(v int32) error { return d.ep.setHeader1(v) }

// Key returns the key stored at slot.
func (d *Directory) Key(slot int32) Key { return d.ep.key(slot) }

// ChildBlock returns the child block number stored at slot.
func (d *Directory) ChildBlock(slot int32) int64 { return int64(d.ep.payload(slot)) }

// IsFull reports whether the page has no room for another entry.
func (d *Directory) IsFull() bool { return d.ep.isFull() }

// FindChild returns the slot of the entry whose subtree must contain
// key: the last entry whose key is <= key (or slot 1 if key sorts before
// every entry, since the least key may be a lower bound sentinel).
func (d *Directory) FindChild(key Key) int32 {
	slot := d.ep.findSlot(key)
	if slot <= d.ep.count() && Compare(d.ep.key(slot), key) == 0 {
		return slot
	}
	if slot == 1 {
		return 1
	}
	return slot - 1
}

// InsertEntry adds (key, childBlock) in sorted order. Caller must ensure
// IsFull() is false first.
func (d *Directory) InsertEntry(key Key, childBlock int64) error {
	at := d.ep.findSlot(key)
	return d.ep.insertAt(at, key, int32(childBlock), 0)
}

// Split moves the upper half of this directory's entries into newBlock
// (freshly formatted at the same level), and returns the separator key
// to propagate upward.
func (d *Directory) Split(tx *txn.Transaction, layout *record.Layout, newBlock file.BlockID) (Key, error) {
	newDir, err := FormatDirectory(tx, newBlock, layout, d.ep.keyType, d.Level())
	if err != nil {
		return Key{}, err
	}
	defer newDir.Close()

	splitPoint := d.ep.count()/2 + 1
	return d.ep.splitAt(splitPoint, newDir.ep)
}

// MakeNewRoot turns this page (assumed to be block 0, the root) into a
// two-entry directory one level higher: its current contents are moved
// into a freshly appended block, and this page is reformatted to point
// at the old contents' block plus newBlock, with separator keys
// oldFirstKey and newKey.
func (d *Directory) MakeNewRoot(tx *txn.Transaction, layout *record.Layout, movedBlock file.BlockID, oldFirstKey Key, newKey Key, newChildBlock int64) error {
	level := d.Level()

	movedDir, err := FormatDirectory(tx, movedBlock, layout, d.ep.keyType, level)
	if err != nil {
		return err
	}
	defer movedDir.Close()

	// Copy every current entry of the root into movedBlock verbatim.
	n := d.ep.count()
	for slot := int32(1); slot <= n; slot++ {
		if err := movedDir.InsertEntry(d.Key(slot), d.ChildBlock(slot)); err != nil {
			return err
		}
	}

	if err := d.ep.setCount(0); err != nil {
		return err
	}
	if err := d.SetLevel(level + 1); err != nil {
		return err
	}
	if err := d.InsertEntry(oldFirstKey, movedBlock.Num); err != nil {
		return err
	}
	return d.InsertEntry(newKey, newChildBlock)
}
