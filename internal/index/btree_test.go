package index

import (
	"testing"

	"github.com/SimonWaldherr/tinySQL/internal/buffer"
	"github.com/SimonWaldherr/tinySQL/internal/file"
	"github.com/SimonWaldherr/tinySQL/internal/record"
	"github.com/SimonWaldherr/tinySQL/internal/recovery"
	"github.com/SimonWaldherr/tinySQL/internal/txn"
	"github.com/SimonWaldherr/tinySQL/internal/walog"
)

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
	bm := buffer.NewManager(fm, lm, buffer.Config{PoolSize: 16})
	rm := recovery.NewManager(lm)
	lt := txn.NewLockTable(0)
	tx, err := txn.New(fm, bm, rm, lt)
	if err != nil {
		t.Fatalf("txn.New: %v", err)
	}
	return tx
}

func TestBTreeInsertAndSearchIntKeys(t *testing.T) {
	tx := newTestTx(t)
	defer tx.Rollback()

	bt, err := Create(tx, "idx.dir", "idx.leaf", record.TypeInt, 0)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	for i := int32(0); i < 50; i++ {
		rid := record.NewRID(int64(i), i%3)
		if err := bt.Insert(IntKey(i), rid); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
	}

	for i := int32(0); i < 50; i++ {
		got, ok, err := bt.Search(IntKey(i))
		if err != nil {
			t.Fatalf("Search(%d): %v", i, err)
		}
		if !ok {
			t.Fatalf("Search(%d): not found", i)
		}
		want := record.NewRID(int64(i), i%3)
		if got != want {
			t.Fatalf("Search(%d) = %+v, want %+v", i, got, want)
		}
	}

	if _, ok, err := bt.Search(IntKey(999)); err != nil {
		t.Fatalf("Search(999): %v", err)
	} else if ok {
		t.Fatalf("Search(999) unexpectedly found")
	}
}

func TestBTreeDelete(t *testing.T) {
	tx := newTestTx(t)
	defer tx.Rollback()

	bt, err := Create(tx, "idx.dir", "idx.leaf", record.TypeInt, 0)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	rid := record.NewRID(5, 0)
	if err := bt.Insert(IntKey(5), rid); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := bt.Delete(IntKey(5), rid); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, err := bt.Search(IntKey(5)); err != nil {
		t.Fatalf("Search: %v", err)
	} else if ok {
		t.Fatalf("Search after delete: still found")
	}
}

func TestBTreeStringKeysGrowRootHeight(t *testing.T) {
	tx := newTestTx(t)
	defer tx.Rollback()

	bt, err := Create(tx, "sidx.dir", "sidx.leaf", record.TypeString, 16)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	names := []string{
		"alice", "bob", "carol", "dave", "erin", "frank", "grace", "heidi",
		"ivan", "judy", "karl", "leo", "mallory", "nina", "oscar", "peggy",
		"quentin", "rupert", "sybil", "trent", "ursula", "victor", "wendy",
	}
	for i, name := range names {
		rid := record.NewRID(int64(i), 0)
		if err := bt.Insert(StringKey(name), rid); err != nil {
			t.Fatalf("Insert(%q): %v", name, err)
		}
	}
	for i, name := range names {
		got, ok, err := bt.Search(StringKey(name))
		if err != nil {
			t.Fatalf("Search(%q): %v", name, err)
		}
		if !ok {
			t.Fatalf("Search(%q): not found", name)
		}
		if got.BlockNum != int64(i) {
			t.Fatalf("Search(%q) = %+v, want block %d", name, got, i)
		}
	}
}

func TestKeyCompare(t *testing.T) {
	if Compare(IntKey(1), IntKey(2)) >= 0 {
		t.Fatal("IntKey(1) should sort before IntKey(2)")
	}
	if Compare(StringKey("a"), StringKey("b")) >= 0 {
		t.Fatal("StringKey(a) should sort before StringKey(b)")
	}
}

func TestKeyCompareMismatchPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic comparing mismatched key types")
		}
	}()
	Compare(IntKey(1), StringKey("a"))
}
