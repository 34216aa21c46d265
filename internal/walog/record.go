package walog

import (
	"encoding/binary"
	"fmt"

	"github.com/SimonWaldherr/tinySQL/internal/file"
)

// LSN is a monotonically increasing Log Sequence Number assigned by the
// LogManager at append time.
type LSN int64

// NoLSN marks the absence of an assigned LSN (a frame that has never been
// modified).
const NoLSN LSN = -1

// RecordType tags the kind of a LogRecord.
type RecordType uint8

const (
	RecStart RecordType = iota + 1
	RecCommit
	RecRollback
	RecCheckpoint
	RecSetInt
	RecSetString
)

func (t RecordType) String() string {
	switch t {
	case RecStart:
		return "START"
	case RecCommit:
		return "COMMIT"
	case RecRollback:
		return "ROLLBACK"
	case RecCheckpoint:
		return "CHECKPOINT"
	case RecSetInt:
		return "SET_INT"
	case RecSetString:
		return "SET_STRING"
	default:
		return fmt.Sprintf("RecordType(%d)", uint8(t))
	}
}

// Record is the tagged union persisted on a WAL page. Not every field is
// meaningful for every Type:
//   - START, COMMIT, ROLLBACK: TxID only.
//   - CHECKPOINT: no fields.
//   - SET_INT: TxID, Block, Offset, OldInt (the before-image).
//   - SET_STRING: TxID, Block, Offset, OldString (the before-image).
type Record struct {
	Type      RecordType
	LSN       LSN
	TxID      int64
	Block     file.BlockID
	Offset    int32
	OldInt    int32
	OldString string
}

var enc = binary.BigEndian

// Marshal serializes rec's payload (not including its LSN, which is
// assigned by the LogManager at append time and is not itself persisted
// inside the record body — it is implicit in on-page order).
func Marshal(rec Record) []byte {
	switch rec.Type {
	case RecStart, RecCommit, RecRollback:
		buf := make([]byte, 1+8)
		buf[0] = byte(rec.Type)
		enc.PutUint64(buf[1:9], uint64(rec.TxID))
		return buf
	case RecCheckpoint:
		return []byte{byte(rec.Type)}
	case RecSetInt:
		fn := []byte(rec.Block.Filename)
		buf := make([]byte, 1+8+4+len(fn)+8+4+4)
		off := 0
		buf[off] = byte(rec.Type)
		off++
		enc.PutUint64(buf[off:], uint64(rec.TxID))
		off += 8
		enc.PutUint32(buf[off:], uint32(len(fn)))
		off += 4
		copy(buf[off:], fn)
		off += len(fn)
		enc.PutUint64(buf[off:], uint64(rec.Block.Num))
		off += 8
		enc.PutUint32(buf[off:], uint32(rec.Offset))
		off += 4
		enc.PutUint32(buf[off:], uint32(rec.OldInt))
		return buf
	case RecSetString:
		fn := []byte(rec.Block.Filename)
		old := []byte(rec.OldString)
		buf := make([]byte, 1+8+4+len(fn)+8+4+4+len(old))
		off := 0
		buf[off] = byte(rec.Type)
		off++
		enc.PutUint64(buf[off:], uint64(rec.TxID))
		off += 8
		enc.PutUint32(buf[off:], uint32(len(fn)))
		off += 4
		copy(buf[off:], fn)
		off += len(fn)
		enc.PutUint64(buf[off:], uint64(rec.Block.Num))
		off += 8
		enc.PutUint32(buf[off:], uint32(rec.Offset))
		off += 4
		enc.PutUint32(buf[off:], uint32(len(old)))
		off += 4
		copy(buf[off:], old)
		return buf
	default:
		panic(fmt.Sprintf("walog: marshal unknown record type %d", rec.Type))
	}
}

// Unmarshal decodes a record payload previously produced by Marshal.
func Unmarshal(buf []byte) (Record, error) {
	if len(buf) < 1 {
		return Record{}, fmt.Errorf("walog: empty record payload")
	}
	rec := Record{Type: RecordType(buf[0])}
	body := buf[1:]
	switch rec.Type {
	case RecStart, RecCommit, RecRollback:
		if len(body) < 8 {
			return Record{}, fmt.Errorf("walog: short %s record", rec.Type)
		}
		rec.TxID = int64(enc.Uint64(body[0:8]))
		return rec, nil
	case RecCheckpoint:
		return rec, nil
	case RecSetInt:
		r := reader{buf: body}
		rec.TxID = int64(r.u64())
		fn := r.bytes()
		num := int64(r.u64())
		rec.Block = file.NewBlockID(string(fn), num)
		rec.Offset = int32(r.u32())
		rec.OldInt = int32(r.u32())
		if r.err != nil {
			return Record{}, fmt.Errorf("walog: decode SET_INT: %w", r.err)
		}
		return rec, nil
	case RecSetString:
		r := reader{buf: body}
		rec.TxID = int64(r.u64())
		fn := r.bytes()
		num := int64(r.u64())
		rec.Block = file.NewBlockID(string(fn), num)
		rec.Offset = int32(r.u32())
		rec.OldString = string(r.bytes())
		if r.err != nil {
			return Record{}, fmt.Errorf("walog: decode SET_STRING: %w", r.err)
		}
		return rec, nil
	default:
		return Record{}, fmt.Errorf("walog: unknown record type %d", rec.Type)
	}
}

// reader is a tiny big-endian cursor over a byte slice, used to keep the
// SET_INT/SET_STRING decoders free of repetitive bounds checks.
type reader struct {
	buf []byte
	pos int
	err error
}

func (r *reader) need(n int) bool {
	if r.err != nil {
		return false
	}
	if r.pos+n > len(r.buf) {
		r.err = fmt.Errorf("short record buffer")
		return false
	}
	return true
}

func (r *reader) u32() uint32 {
	if !r.need(4) {
		return 0
	}
	v := enc.Uint32(r.buf[r.pos : r.pos+4])
	r.pos += 4
	return v
}

func (r *reader) u64() uint64 {
	if !r.need(8) {
		return 0
	}
	v := enc.Uint64(r.buf[r.pos : r.pos+8])
	r.pos += 8
	return v
}

func (r *reader) bytes() []byte {
	n := int(r.u32())
	if !r.need(n) {
		return nil
	}
	out := make([]byte, n)
	copy(out, r.buf[r.pos:r.pos+n])
	r.pos += n
	return out
}
