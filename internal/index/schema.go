package index

import "github.com/SimonWaldherr/tinySQL/internal/record"

// Field names shared by leaf and directory schemas. Every slot in a page
// has the full set of fields; which ones are meaningful depends on
// whether the slot is the reserved header slot (0) or an ordinary entry.
const (
	fieldFlagOrOverflow = "f0" // leaf: overflow block. directory: flag (-1 sentinel).
	fieldLevelOrSibling = "f1" // leaf: sibling block. directory: level.
	fieldCount          = "cnt" // slot 0 only: number of live entries in slots [1..cnt].
	fieldKeyInt         = "key_i"
	fieldKeyStr         = "key_s"
	fieldBlockOrChild   = "block"
	fieldSlot           = "slot" // leaf only; unused (zero) in directory slots.
)

// newSchema builds the shared layout shape for a key of keyType, keyLen
// being the max string byte length (ignored for integer keys).
func newSchema(keyType record.FieldType, keyLen int) *record.Schema {
	s := record.NewSchema()
	s.AddIntField(fieldFlagOrOverflow)
	s.AddIntField(fieldLevelOrSibling)
	s.AddIntField(fieldCount)
	if keyType == record.TypeString {
		s.AddStringField(fieldKeyStr, keyLen)
	} else {
		s.AddIntField(fieldKeyInt)
	}
	s.AddIntField(fieldBlockOrChild)
	s.AddIntField(fieldSlot)
	return s
}
