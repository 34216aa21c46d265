// Package page implements the fixed-size, byte-addressable Page abstraction
// that sits between the buffer pool and the record/index layers. A Page is
// a plain byte buffer with typed read/write primitives; record and B-tree
// layouts are built on top of it rather than inside it.
package page

import (
	"encoding/binary"
	"fmt"
)

// Kind identifies what a page currently holds. Code that builds a typed
// view (RecordPage, BTree leaf/internal page) over a Page must check Kind
// before trusting the kind-specific layout underneath.
type Kind uint8

const (
	KindHeap Kind = iota + 1
	KindIndexLeaf
	KindIndexInternal
	KindMeta
	KindRaw // WAL pages and anything not using the common header
)

func (k Kind) String() string {
	switch k {
	case KindHeap:
		return "Heap"
	case KindIndexLeaf:
		return "IndexLeaf"
	case KindIndexInternal:
		return "IndexInternal"
	case KindMeta:
		return "Meta"
	case KindRaw:
		return "Raw"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// HeaderSize is the size in bytes of the common page header written at the
// start of every Heap/IndexLeaf/IndexInternal/Meta page:
//
//	[0]    Kind      (1 byte)
//	[1:5]  LSN        (uint32 — low 32 bits; full LSN lives in the buffer
//	                   frame metadata, this copy is for on-disk recovery
//	                   gating only)
//	[5:9]  Reserved   (4 bytes)
const HeaderSize = 9

// All multi-byte integers use big-endian encoding, the single canonical
// byte order used throughout the on-disk format.
var enc = binary.BigEndian

// Page is a fixed-size byte buffer with typed accessors. All offsets are
// relative to the start of the buffer (not past HeaderSize) unless the
// accessor name says otherwise.
type Page struct {
	buf []byte
}

// New allocates a zeroed page of exactly size bytes.
func New(size int) *Page {
	return &Page{buf: make([]byte, size)}
}

// Wrap constructs a Page view over an existing buffer without copying.
// Mutations through the returned Page mutate buf.
func Wrap(buf []byte) *Page {
	return &Page{buf: buf}
}

// Bytes returns the underlying buffer.
func (p *Page) Bytes() []byte { return p.buf }

// Size returns the page size in bytes.
func (p *Page) Size() int { return len(p.buf) }

// Kind returns the page kind tag stored at byte 0.
func (p *Page) Kind() Kind { return Kind(p.buf[0]) }

// SetKind stamps the page kind tag.
func (p *Page) SetKind(k Kind) { p.buf[0] = byte(k) }

// StoredLSN returns the low 32 bits of the LSN last recorded in this page's
// header — used by recovery to gate undo application.
func (p *Page) StoredLSN() uint32 { return enc.Uint32(p.buf[1:5]) }

// SetStoredLSN updates the header LSN gate.
func (p *Page) SetStoredLSN(v uint32) { enc.PutUint32(p.buf[1:5], v) }

// ── Typed primitives ───────────────────────────────────────────────────────

// GetInt reads a 32-bit signed integer at offset.
func (p *Page) GetInt(offset int) int32 {
	return int32(enc.Uint32(p.buf[offset : offset+4]))
}

// SetInt writes a 32-bit signed integer at offset.
func (p *Page) SetInt(offset int, v int32) {
	enc.PutUint32(p.buf[offset:offset+4], uint32(v))
}

// GetLong reads a 64-bit signed integer at offset.
func (p *Page) GetLong(offset int) int64 {
	return int64(enc.Uint64(p.buf[offset : offset+8]))
}

// SetLong writes a 64-bit signed integer at offset.
func (p *Page) SetLong(offset int, v int64) {
	enc.PutUint64(p.buf[offset:offset+8], uint64(v))
}

// GetBytes reads a length-prefixed (32-bit length) byte slice at offset.
func (p *Page) GetBytes(offset int) []byte {
	n := int(enc.Uint32(p.buf[offset : offset+4]))
	start := offset + 4
	out := make([]byte, n)
	copy(out, p.buf[start:start+n])
	return out
}

// SetBytes writes a length-prefixed byte slice at offset.
func (p *Page) SetBytes(offset int, v []byte) {
	enc.PutUint32(p.buf[offset:offset+4], uint32(len(v)))
	copy(p.buf[offset+4:offset+4+len(v)], v)
}

// GetString reads a length-prefixed UTF-8 string at offset.
func (p *Page) GetString(offset int) string {
	return string(p.GetBytes(offset))
}

// SetString writes a length-prefixed UTF-8 string at offset.
func (p *Page) SetString(offset int, s string) {
	p.SetBytes(offset, []byte(s))
}

// MaxLengthForString returns the number of bytes a string field of at most
// strLen UTF-8 bytes occupies on the page: a 4-byte length prefix plus the
// declared maximum.
func MaxLengthForString(strLen int) int {
	return 4 + strLen
}
