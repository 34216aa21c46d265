package index

import (
	"fmt"

	"github.com/SimonWaldherr/tinySQL/internal/file"
	"github.com/SimonWaldherr/tinySQL/internal/record"
	"github.com/SimonWaldherr/tinySQL/internal/txn"
)

// BTree is a two-file B-tree index: directory pages live in dirFilename
// (block 0 is always the root), leaf pages live in leafFilename. Both
// file's pages share the entryPage slotted-array machinery.
//
// Underflow on delete is not rebalanced: a leaf or directory page may end
// up under-full after repeated deletes, which wastes space but never
// corrupts the tree (search/insert still work against whatever entries
// remain). Merging siblings on underflow is not implemented.
type BTree struct {
	tx *txn.Transaction

	dirFilename, leafFilename string
	dirLayout, leafLayout     *record.Layout
	keyType                   record.FieldType
}

// Create initializes a brand new, empty two-file B-tree: a single leaf
// block and a single root directory block pointing at it.
func Create(tx *txn.Transaction, dirFilename, leafFilename string, keyType record.FieldType, keyLen int) (*BTree, error) {
	leafLayout := record.NewLayout(LeafSchema(keyType, keyLen))
	dirLayout := record.NewLayout(DirectorySchema(keyType, keyLen))

	leafBlock, err := tx.Append(leafFilename)
	if err != nil {
		return nil, fmt.Errorf("index: create leaf file: %w", err)
	}
	leaf, err := FormatLeaf(tx, leafBlock, leafLayout, keyType)
	if err != nil {
		return nil, err
	}
	leaf.Close()

	dirBlock, err := tx.Append(dirFilename)
	if err != nil {
		return nil, fmt.Errorf("index: create dir file: %w", err)
	}
	if dirBlock.Num != 0 {
		return nil, fmt.Errorf("index: expected root directory at block 0, got %d", dirBlock.Num)
	}
	root, err := FormatDirectory(tx, dirBlock, dirLayout, keyType, 0)
	if err != nil {
		return nil, err
	}
	zeroKey := zeroKeyFor(keyType)
	if err := root.InsertEntry(zeroKey, leafBlock.Num); err != nil {
		root.Close()
		return nil, err
	}
	root.Close()

	return &BTree{tx: tx, dirFilename: dirFilename, leafFilename: leafFilename, dirLayout: dirLayout, leafLayout: leafLayout, keyType: keyType}, nil
}

// Open attaches to an existing two-file B-tree.
func Open(tx *txn.Transaction, dirFilename, leafFilename string, keyType record.FieldType, keyLen int) *BTree {
	return &BTree{
		tx:          tx,
		dirFilename: dirFilename,
		leafFilename: leafFilename,
		dirLayout:   record.NewLayout(DirectorySchema(keyType, keyLen)),
		leafLayout:  record.NewLayout(LeafSchema(keyType, keyLen)),
		keyType:     keyType,
	}
}

func zeroKeyFor(keyType record.FieldType) Key {
	if keyType == record.TypeString {
		return StringKey("")
	}
	return IntKey(0)
}

// descendPath walks from the root directory to the leaf that must
// contain key, returning the chain of directory blocks visited (root
// first) and the leaf block.
func (bt *BTree) descendPath(key Key) ([]file.BlockID, file.BlockID, error) {
	var path []file.BlockID
	dirBlock := file.NewBlockID(bt.dirFilename, 0)
	for {
		path = append(path, dirBlock)
		dir, err := OpenDirectory(bt.tx, dirBlock, bt.dirLayout, bt.keyType)
		if err != nil {
			return nil, file.BlockID{}, err
		}
		slot := dir.FindChild(key)
		child := dir.ChildBlock(slot)
		level := dir.Level()
		dir.Close()
		if level == 0 {
			return path, file.NewBlockID(bt.leafFilename, child), nil
		}
		dirBlock = file.NewBlockID(bt.dirFilename, child)
	}
}

// Search returns the RID stored for key, if any.
func (bt *BTree) Search(key Key) (record.RID, bool, error) {
	_, leafBlock, err := bt.descendPath(key)
	if err != nil {
		return record.RID{}, false, err
	}
	leaf, err := OpenLeaf(bt.tx, leafBlock, bt.leafLayout, bt.keyType)
	if err != nil {
		return record.RID{}, false, err
	}
	defer leaf.Close()

	slot := leaf.FindSlot(key)
	if slot <= leaf.Count() && Compare(leaf.Key(slot), key) == 0 {
		return leaf.RID(slot), true, nil
	}
	return record.RID{}, false, nil
}

// Insert adds (key, rid), splitting leaf and directory pages as needed
// and growing the tree's height by reusing block 0 as the new root when
// the root itself overflows.
func (bt *BTree) Insert(key Key, rid record.RID) error {
	path, leafBlock, err := bt.descendPath(key)
	if err != nil {
		return err
	}
	leaf, err := OpenLeaf(bt.tx, leafBlock, bt.leafLayout, bt.keyType)
	if err != nil {
		return err
	}

	if !leaf.IsFull() {
		err := leaf.Insert(key, rid)
		leaf.Close()
		return err
	}

	newLeafBlock, err := bt.tx.Append(bt.leafFilename)
	if err != nil {
		leaf.Close()
		return fmt.Errorf("index: insert: append leaf: %w", err)
	}
	sep, err := leaf.Split(bt.tx, bt.leafLayout, newLeafBlock)
	if err != nil {
		leaf.Close()
		return err
	}
	if Compare(key, sep) < 0 {
		err = leaf.Insert(key, rid)
	} else {
		var newLeaf *Leaf
		newLeaf, err = OpenLeaf(bt.tx, newLeafBlock, bt.leafLayout, bt.keyType)
		if err == nil {
			err = newLeaf.Insert(key, rid)
			newLeaf.Close()
		}
	}
	leaf.Close()
	if err != nil {
		return err
	}

	return bt.insertUp(path, sep, newLeafBlock.Num)
}

// insertUp propagates a (separator key, new child block) pair up through
// path, from the leaf's immediate parent to the root, splitting
// directories as needed.
func (bt *BTree) insertUp(path []file.BlockID, sep Key, newChildNum int64) error {
	for i := len(path) - 1; i >= 0; i-- {
		dirBlock := path[i]
		dir, err := OpenDirectory(bt.tx, dirBlock, bt.dirLayout, bt.keyType)
		if err != nil {
			return err
		}

		if !dir.IsFull() {
			err := dir.InsertEntry(sep, newChildNum)
			dir.Close()
			return err
		}

		newDirBlock, err := bt.tx.Append(bt.dirFilename)
		if err != nil {
			dir.Close()
			return fmt.Errorf("index: insert_up: append dir: %w", err)
		}
		splitSep, err := dir.Split(bt.tx, bt.dirLayout, newDirBlock)
		if err != nil {
			dir.Close()
			return err
		}
		if Compare(sep, splitSep) < 0 {
			err = dir.InsertEntry(sep, newChildNum)
		} else {
			var newDir *Directory
			newDir, err = OpenDirectory(bt.tx, newDirBlock, bt.dirLayout, bt.keyType)
			if err == nil {
				err = newDir.InsertEntry(sep, newChildNum)
				newDir.Close()
			}
		}
		if err != nil {
			dir.Close()
			return err
		}

		if dirBlock.Num == 0 {
			movedBlock, err := bt.tx.Append(bt.dirFilename)
			if err != nil {
				dir.Close()
				return fmt.Errorf("index: insert_up: grow root: %w", err)
			}
			oldFirstKey := dir.Key(1)
			err = dir.MakeNewRoot(bt.tx, bt.dirLayout, movedBlock, oldFirstKey, splitSep, newDirBlock.Num)
			dir.Close()
			return err
		}

		dir.Close()
		sep = splitSep
		newChildNum = newDirBlock.Num
	}
	return nil
}

// Delete removes (key, rid) if present. It does not merge under-full
// pages (see BTree's doc comment).
func (bt *BTree) Delete(key Key, rid record.RID) error {
	_, leafBlock, err := bt.descendPath(key)
	if err != nil {
		return err
	}
	leaf, err := OpenLeaf(bt.tx, leafBlock, bt.leafLayout, bt.keyType)
	if err != nil {
		return err
	}
	defer leaf.Close()
	_, err = leaf.Delete(key, rid)
	return err
}
