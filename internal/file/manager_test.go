package file

import "testing"

func TestAppendAndReadWrite(t *testing.T) {
	fm, err := Open(t.TempDir(), 64)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer fm.Close()

	b0, err := fm.Append("t.tbl")
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if b0.Num != 0 {
		t.Fatalf("first block = %d, want 0", b0.Num)
	}

	buf := make([]byte, 64)
	for i := range buf {
		buf[i] = byte(i)
	}
	if err := fm.Write(b0, buf); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got := make([]byte, 64)
	if err := fm.Read(b0, got); err != nil {
		t.Fatalf("Read: %v", err)
	}
	for i := range got {
		if got[i] != buf[i] {
			t.Fatalf("byte %d = %d, want %d", i, got[i], buf[i])
		}
	}

	b1, err := fm.Append("t.tbl")
	if err != nil {
		t.Fatalf("second Append: %v", err)
	}
	if b1.Num != 1 {
		t.Fatalf("second block = %d, want 1", b1.Num)
	}

	n, err := fm.Length("t.tbl")
	if err != nil {
		t.Fatalf("Length: %v", err)
	}
	if n != 2 {
		t.Fatalf("Length = %d, want 2", n)
	}
}

func TestEndOfFileIsSentinel(t *testing.T) {
	eof := EndOfFile("x.tbl")
	if eof.Num >= 0 {
		t.Fatalf("EndOfFile.Num = %d, want negative", eof.Num)
	}
	if NewBlockID("x.tbl", 0) == eof {
		t.Fatalf("block 0 must not equal EndOfFile")
	}
}

func TestWrongBufferSizeRejected(t *testing.T) {
	fm, err := Open(t.TempDir(), 64)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer fm.Close()
	b, _ := fm.Append("t.tbl")
	if err := fm.Write(b, make([]byte, 10)); err == nil {
		t.Fatal("expected error writing undersized buffer")
	}
}
