package testfixtures

import "testing"

func TestIDGeneratorProducesSequentialIDs(t *testing.T) {
	gen := NewIDGenerator("booking")

	anchor := gen.Next()
	child := gen.Next()

	if anchor != "booking-1" || child != "booking-2" {
		t.Fatalf("unexpected identifiers: %q, %q", anchor, child)
	}
}

func TestIDGeneratorDefaultsPrefix(t *testing.T) {
	gen := NewIDGenerator("")
	if next := gen.Next(); next != "id-1" {
		t.Fatalf("expected id-1 for the empty prefix, got %q", next)
	}
}

func TestIDGeneratorCanReset(t *testing.T) {
	gen := NewIDGenerator("booking")
	_ = gen.Next()
	gen.SetCounter(0)
	gen.SetPrefix("group")

	if next := gen.Next(); next != "group-1" {
		t.Fatalf("expected group-1 after reset, got %q", next)
	}
}
