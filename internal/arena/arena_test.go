package arena

import "testing"

func TestAllocZeroed(t *testing.T) {
	a := New(0)
	b := a.Alloc(16)
	for i, v := range b {
		if v != 0 {
			t.Fatalf("byte %d not zeroed: %d", i, v)
		}
	}
}

func TestAllocGrows(t *testing.T) {
	a := New(4)
	first := a.Alloc(4)
	copy(first, "abcd")
	second := a.Alloc(100)
	if len(second) != 100 {
		t.Fatalf("expected 100 bytes, got %d", len(second))
	}
	if string(first) != "abcd" {
		t.Fatalf("growth corrupted earlier allocation: %q", first)
	}
}

func TestString(t *testing.T) {
	a := New(0)
	s := a.String("plate123")
	if s != "plate123" {
		t.Fatalf("got %q", s)
	}
}

func TestResetReusesMemory(t *testing.T) {
	a := New(8)
	a.Alloc(8)
	if a.Len() != 8 {
		t.Fatalf("expected len 8, got %d", a.Len())
	}
	a.Reset()
	if a.Len() != 0 {
		t.Fatalf("expected len 0 after reset, got %d", a.Len())
	}
}

func TestFree(t *testing.T) {
	a := New(8)
	a.Alloc(8)
	a.Free()
	if a.Len() != 0 {
		t.Fatalf("expected len 0 after free, got %d", a.Len())
	}
}
