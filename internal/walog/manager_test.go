package walog

import (
	"testing"

	"github.com/SimonWaldherr/tinySQL/internal/file"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	fm, err := file.Open(t.TempDir(), 64)
	if err != nil {
		t.Fatalf("file.Open: %v", err)
	}
	lm, err := Open(fm, "test.log")
	if err != nil {
		t.Fatalf("walog.Open: %v", err)
	}
	return lm
}

func TestAppendAssignsMonotonicLSNs(t *testing.T) {
	lm := newTestManager(t)
	var last LSN
	for i := 0; i < 5; i++ {
		rec := Record{Type: RecStart, TxID: int64(i)}
		lsn, err := lm.Append(Marshal(rec))
		if err != nil {
			t.Fatalf("Append: %v", err)
		}
		if lsn <= last {
			t.Fatalf("lsn %d not strictly increasing after %d", lsn, last)
		}
		last = lsn
	}
}

func TestIterateReverseOrder(t *testing.T) {
	lm := newTestManager(t)
	for i := int64(1); i <= 3; i++ {
		if _, err := lm.Append(Marshal(Record{Type: RecStart, TxID: i})); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	it, err := lm.IterateReverse()
	if err != nil {
		t.Fatalf("IterateReverse: %v", err)
	}
	var seen []int64
	for {
		rec, ok, err := it.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			break
		}
		seen = append(seen, rec.TxID)
	}
	want := []int64{3, 2, 1}
	if len(seen) != len(want) {
		t.Fatalf("saw %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("saw %v, want %v", seen, want)
		}
	}
}

func TestFlushToIsIdempotent(t *testing.T) {
	lm := newTestManager(t)
	lsn, err := lm.Append(Marshal(Record{Type: RecCheckpoint}))
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := lm.FlushTo(lsn); err != nil {
		t.Fatalf("FlushTo: %v", err)
	}
	if err := lm.FlushTo(lsn); err != nil {
		t.Fatalf("second FlushTo: %v", err)
	}
}

func TestMarshalUnmarshalSetInt(t *testing.T) {
	rec := Record{
		Type:   RecSetInt,
		TxID:   42,
		Block:  file.NewBlockID("t.tbl", 3),
		Offset: 12,
		OldInt: -7,
	}
	got, err := Unmarshal(Marshal(rec))
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.TxID != rec.TxID || got.Block != rec.Block || got.Offset != rec.Offset || got.OldInt != rec.OldInt {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, rec)
	}
}

func TestMarshalUnmarshalSetString(t *testing.T) {
	rec := Record{
		Type:      RecSetString,
		TxID:      1,
		Block:     file.NewBlockID("t.tbl", 0),
		Offset:    4,
		OldString: "hello world",
	}
	got, err := Unmarshal(Marshal(rec))
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.OldString != rec.OldString {
		t.Fatalf("OldString = %q, want %q", got.OldString, rec.OldString)
	}
}
