// Package index implements the B-tree: two page kinds (leaf, directory)
// sharing the record package's slotted-page machinery, with a reserved
// slot 0 carrying page-level header fields as described by the on-disk
// page formats. Keys are either integers or fixed-max strings, chosen per
// index at creation time.
package index

import "github.com/SimonWaldherr/tinySQL/internal/record"

// Key is a tagged union over the two key types a B-tree index supports.
type Key struct {
	IsString bool
	IntVal   int32
	StrVal   string
}

// IntKey constructs an integer key.
func IntKey(v int32) Key { return Key{IntVal: v} }

// StringKey constructs a string key.
func StringKey(v string) Key { return Key{IsString: true, StrVal: v} }

// Compare returns <0, 0, or >0 as a compares before, equal to, or after b.
// Comparing keys of different kinds panics: the B-tree for a given index
// always holds one key type.
func Compare(a, b Key) int {
	if a.IsString != b.IsString {
		panic("index: comparing keys of different types")
	}
	if a.IsString {
		switch {
		case a.StrVal < b.StrVal:
			return -1
		case a.StrVal > b.StrVal:
			return 1
		default:
			return 0
		}
	}
	switch {
	case a.IntVal < b.IntVal:
		return -1
	case a.IntVal > b.IntVal:
		return 1
	default:
		return 0
	}
}

// KeyType reports the record.FieldType a Key of this shape is stored as.
func (k Key) KeyType() record.FieldType {
	if k.IsString {
		return record.TypeString
	}
	return record.TypeInt
}
