package txn

import (
	"testing"
	"time"

	"github.com/SimonWaldherr/tinySQL/internal/buffer"
	"github.com/SimonWaldherr/tinySQL/internal/file"
	"github.com/SimonWaldherr/tinySQL/internal/recovery"
	"github.com/SimonWaldherr/tinySQL/internal/walog"
)

type testDB struct {
	fm *file.Manager
	bm *buffer.Manager
	rm *recovery.Manager
	lt *LockTable
}

func newTestDB(t *testing.T) *testDB {
	t.Helper()
	fm, err := file.Open(t.TempDir(), 64)
	if err != nil {
		t.Fatalf("file.Open: %v", err)
	}
	lm, err := walog.Open(fm, "test.log")
	if err != nil {
		t.Fatalf("walog.Open: %v", err)
	}
	bm := buffer.NewManager(fm, lm, buffer.Config{PoolSize: 8})
	return &testDB{fm: fm, bm: bm, rm: recovery.NewManager(lm), lt: NewLockTable(50 * time.Millisecond)}
}

func TestCommitPersistsWrite(t *testing.T) {
	db := newTestDB(t)

	tx1, err := New(db.fm, db.bm, db.rm, db.lt)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	block, err := tx1.Append("t.tbl")
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	g, err := tx1.PinWrite(block)
	if err != nil {
		t.Fatalf("PinWrite: %v", err)
	}
	if err := g.SetInt(0, 99); err != nil {
		t.Fatalf("SetInt: %v", err)
	}
	g.Close()
	if err := tx1.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	tx2, err := New(db.fm, db.bm, db.rm, db.lt)
	if err != nil {
		t.Fatalf("New tx2: %v", err)
	}
	rg, err := tx2.PinRead(block)
	if err != nil {
		t.Fatalf("PinRead: %v", err)
	}
	if got := rg.GetInt(0); got != 99 {
		t.Fatalf("GetInt = %d, want 99", got)
	}
	rg.Close()
	if err := tx2.Commit(); err != nil {
		t.Fatalf("Commit tx2: %v", err)
	}
}

func TestRollbackUndoesWrite(t *testing.T) {
	db := newTestDB(t)

	setup, err := New(db.fm, db.bm, db.rm, db.lt)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	block, err := setup.Append("t.tbl")
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	g, err := setup.PinWrite(block)
	if err != nil {
		t.Fatalf("PinWrite: %v", err)
	}
	if err := g.SetInt(0, 1); err != nil {
		t.Fatalf("SetInt: %v", err)
	}
	g.Close()
	if err := setup.Commit(); err != nil {
		t.Fatalf("Commit setup: %v", err)
	}

	tx, err := New(db.fm, db.bm, db.rm, db.lt)
	if err != nil {
		t.Fatalf("New tx: %v", err)
	}
	g2, err := tx.PinWrite(block)
	if err != nil {
		t.Fatalf("PinWrite: %v", err)
	}
	if err := g2.SetInt(0, 2); err != nil {
		t.Fatalf("SetInt: %v", err)
	}
	g2.Close()
	if err := tx.Rollback(); err != nil {
		t.Fatalf("Rollback: %v", err)
	}

	verify, err := New(db.fm, db.bm, db.rm, db.lt)
	if err != nil {
		t.Fatalf("New verify: %v", err)
	}
	rg, err := verify.PinRead(block)
	if err != nil {
		t.Fatalf("PinRead: %v", err)
	}
	if got := rg.GetInt(0); got != 1 {
		t.Fatalf("GetInt after rollback = %d, want 1", got)
	}
	rg.Close()
	_ = verify.Commit()
}

func TestXLockBlocksConcurrentWriter(t *testing.T) {
	db := newTestDB(t)

	setup, err := New(db.fm, db.bm, db.rm, db.lt)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	block, err := setup.Append("t.tbl")
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := setup.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	tx1, err := New(db.fm, db.bm, db.rm, db.lt)
	if err != nil {
		t.Fatalf("New tx1: %v", err)
	}
	g1, err := tx1.PinWrite(block)
	if err != nil {
		t.Fatalf("tx1 PinWrite: %v", err)
	}
	defer func() {
		g1.Close()
		_ = tx1.Rollback()
	}()

	tx2, err := New(db.fm, db.bm, db.rm, db.lt)
	if err != nil {
		t.Fatalf("New tx2: %v", err)
	}
	if _, err := tx2.PinWrite(block); err != ErrLockAbort {
		t.Fatalf("tx2 PinWrite = %v, want ErrLockAbort", err)
	}
	_ = tx2.Rollback()
}
