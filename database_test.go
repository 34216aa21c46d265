package tinysql

import "testing"

func TestOpenNewTransactionCommitClose(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(dir, Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	tx, err := db.NewTransaction()
	if err != nil {
		t.Fatalf("NewTransaction: %v", err)
	}
	block, err := tx.Append("t.tbl")
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	g, err := tx.PinWrite(block)
	if err != nil {
		t.Fatalf("PinWrite: %v", err)
	}
	if err := g.SetInt(0, 42); err != nil {
		t.Fatalf("SetInt: %v", err)
	}
	g.Close()
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestOpenTwicePreservesInstanceID(t *testing.T) {
	dir := t.TempDir()
	db1, err := Open(dir, Options{})
	if err != nil {
		t.Fatalf("first Open: %v", err)
	}
	id1 := db1.ID()
	if err := db1.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db2, err := Open(dir, Options{})
	if err != nil {
		t.Fatalf("second Open: %v", err)
	}
	defer db2.Close()
	if db2.ID() != id1 {
		t.Fatalf("instance id changed across reopen: %v != %v", db2.ID(), id1)
	}
}

func TestOpenRecoversCommittedData(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(dir, Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	tx, err := db.NewTransaction()
	if err != nil {
		t.Fatalf("NewTransaction: %v", err)
	}
	block, err := tx.Append("t.tbl")
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	g, err := tx.PinWrite(block)
	if err != nil {
		t.Fatalf("PinWrite: %v", err)
	}
	if err := g.SetInt(0, 7); err != nil {
		t.Fatalf("SetInt: %v", err)
	}
	g.Close()
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db2, err := Open(dir, Options{})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db2.Close()

	tx2, err := db2.NewTransaction()
	if err != nil {
		t.Fatalf("NewTransaction 2: %v", err)
	}
	rg, err := tx2.PinRead(block)
	if err != nil {
		t.Fatalf("PinRead: %v", err)
	}
	if got := rg.GetInt(0); got != 7 {
		t.Fatalf("GetInt after reopen = %d, want 7", got)
	}
	rg.Close()
	_ = tx2.Commit()
}
