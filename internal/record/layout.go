package record

import "github.com/SimonWaldherr/tinySQL/internal/page"

// flagSize is the width of each slot's FREE/LIVE flag.
const flagSize = 4

// Layout derives a fixed slot size from a Schema: a leading flag field
// followed by each field packed at a fixed byte offset, in declaration
// order. Strings use the page package's length-prefixed fixed-max
// encoding, so every slot — live or not — occupies exactly SlotSize
// bytes regardless of the string's actual current length.
type Layout struct {
	schema   *Schema
	offsets  map[string]int
	slotSize int
}

// NewLayout computes offsets and slot size for schema.
func NewLayout(schema *Schema) *Layout {
	l := &Layout{schema: schema, offsets: make(map[string]int)}
	pos := flagSize
	for _, name := range schema.Fields() {
		l.offsets[name] = pos
		pos += l.lengthInBytes(name)
	}
	l.slotSize = pos
	return l
}

func (l *Layout) lengthInBytes(name string) int {
	fi := l.schema.info[name]
	switch fi.Type {
	case TypeInt:
		return 4
	case TypeString:
		return page.MaxLengthForString(fi.Length)
	default:
		return 0
	}
}

// Schema returns the underlying schema.
func (l *Layout) Schema() *Schema { return l.schema }

// SlotSize returns the fixed number of bytes one slot occupies.
func (l *Layout) SlotSize() int { return l.slotSize }

// Offset returns the byte offset of field name within a slot.
func (l *Layout) Offset(name string) int { return l.offsets[name] }
