package record

import (
	"testing"

	"github.com/SimonWaldherr/tinySQL/internal/buffer"
	"github.com/SimonWaldherr/tinySQL/internal/file"
	"github.com/SimonWaldherr/tinySQL/internal/recovery"
	"github.com/SimonWaldherr/tinySQL/internal/txn"
	"github.com/SimonWaldherr/tinySQL/internal/walog"
)

func studentSchema() *Schema {
	s := NewSchema()
	s.AddIntField("id")
	s.AddStringField("name", 20)
	return s
}

func newTestTx(t *testing.T) *txn.Transaction {
	t.Helper()
	fm, err := file.Open(t.TempDir(), 256)
	if err != nil {
		t.Fatalf("file.Open: %v", err)
	}
	lm, err := walog.Open(fm, "test.log")
	if err != nil {
		t.Fatalf("walog.Open: %v", err)
	}
	bm := buffer.NewManager(fm, lm, buffer.Config{PoolSize: 8})
	rm := recovery.NewManager(lm)
	lt := txn.NewLockTable(0)
	tx, err := txn.New(fm, bm, rm, lt)
	if err != nil {
		t.Fatalf("txn.New: %v", err)
	}
	return tx
}

func TestLayoutSlotSize(t *testing.T) {
	layout := NewLayout(studentSchema())
	// flag(4) + id(4) + name(4-byte length prefix + 20 bytes) = 32
	if got, want := layout.SlotSize(), 32; got != want {
		t.Fatalf("SlotSize = %d, want %d", got, want)
	}
}

func TestFormatThenInsertAfter(t *testing.T) {
	tx := newTestTx(t)
	defer tx.Rollback()

	layout := NewLayout(studentSchema())
	block, err := tx.Append("students.tbl")
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	rp, err := NewRecordPage(tx, block, layout)
	if err != nil {
		t.Fatalf("NewRecordPage: %v", err)
	}
	defer rp.Close()

	if err := rp.Format(); err != nil {
		t.Fatalf("Format: %v", err)
	}

	slot, err := rp.InsertAfter(-1)
	if err != nil {
		t.Fatalf("InsertAfter: %v", err)
	}
	if slot != 0 {
		t.Fatalf("first InsertAfter returned slot %d, want 0", slot)
	}
	if err := rp.SetInt(slot, "id", 7); err != nil {
		t.Fatalf("SetInt: %v", err)
	}
	if err := rp.SetString(slot, "name", "Ada"); err != nil {
		t.Fatalf("SetString: %v", err)
	}

	if got := rp.GetInt(slot, "id"); got != 7 {
		t.Fatalf("GetInt = %d, want 7", got)
	}
	if got := rp.GetString(slot, "name"); got != "Ada" {
		t.Fatalf("GetString = %q, want Ada", got)
	}
}

func TestDeleteThenReuseSlot(t *testing.T) {
	tx := newTestTx(t)
	defer tx.Rollback()

	layout := NewLayout(studentSchema())
	block, err := tx.Append("students.tbl")
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	rp, err := NewRecordPage(tx, block, layout)
	if err != nil {
		t.Fatalf("NewRecordPage: %v", err)
	}
	defer rp.Close()
	if err := rp.Format(); err != nil {
		t.Fatalf("Format: %v", err)
	}

	slot, err := rp.InsertAfter(-1)
	if err != nil {
		t.Fatalf("InsertAfter: %v", err)
	}
	if err := rp.Delete(slot); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got := rp.NextAfter(-1); got != -1 {
		t.Fatalf("NextAfter after delete = %d, want -1", got)
	}

	reused, err := rp.InsertAfter(-1)
	if err != nil {
		t.Fatalf("InsertAfter after delete: %v", err)
	}
	if reused != slot {
		t.Fatalf("reused slot = %d, want %d", reused, slot)
	}
}

func TestNextAfterSkipsFreeSlots(t *testing.T) {
	tx := newTestTx(t)
	defer tx.Rollback()

	layout := NewLayout(studentSchema())
	block, err := tx.Append("students.tbl")
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	rp, err := NewRecordPage(tx, block, layout)
	if err != nil {
		t.Fatalf("NewRecordPage: %v", err)
	}
	defer rp.Close()
	if err := rp.Format(); err != nil {
		t.Fatalf("Format: %v", err)
	}

	s0, _ := rp.InsertAfter(-1)
	s1, _ := rp.InsertAfter(s0)
	_ = rp.Delete(s0)

	if got := rp.NextAfter(-1); got != s1 {
		t.Fatalf("NextAfter(-1) = %d, want %d (skip deleted %d)", got, s1, s0)
	}
}
