package page

import "testing"

func TestPageIntRoundTrip(t *testing.T) {
	p := New(64)
	p.SetInt(HeaderSize, 42)
	if got := p.GetInt(HeaderSize); got != 42 {
		t.Fatalf("GetInt = %d, want 42", got)
	}
}

func TestPageStringRoundTrip(t *testing.T) {
	cases := []string{"", "hello", "unicode: héllo wörld"}
	for _, s := range cases {
		p := New(128)
		p.SetString(HeaderSize, s)
		if got := p.GetString(HeaderSize); got != s {
			t.Errorf("GetString(%q) = %q", s, got)
		}
	}
}

func TestPageKindAndLSN(t *testing.T) {
	p := New(32)
	p.SetKind(KindHeap)
	p.SetStoredLSN(7)
	if p.Kind() != KindHeap {
		t.Fatalf("Kind = %v, want Heap", p.Kind())
	}
	if p.StoredLSN() != 7 {
		t.Fatalf("StoredLSN = %d, want 7", p.StoredLSN())
	}
}

func TestWrapSharesBuffer(t *testing.T) {
	buf := make([]byte, 16)
	p := Wrap(buf)
	p.SetInt(0, 99)
	if p.GetInt(0) != 99 || len(p.Bytes()) != 16 {
		t.Fatalf("Wrap did not alias buf")
	}
}

func TestMaxLengthForString(t *testing.T) {
	if got := MaxLengthForString(10); got != 14 {
		t.Fatalf("MaxLengthForString(10) = %d, want 14", got)
	}
}
