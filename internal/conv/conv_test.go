package conv

import (
	"math"
	"testing"
)

func TestIntToUint32(t *testing.T) {
	if _, err := IntToUint32(-1); err == nil {
		t.Fatal("expected error for negative value")
	}
	got, err := IntToUint32(42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 42 {
		t.Errorf("got %d, want 42", got)
	}
	if _, err := IntToUint32(math.MaxUint32 + 1); err == nil {
		t.Fatal("expected overflow error")
	}
}

func TestIntToUint16(t *testing.T) {
	if _, err := IntToUint16(math.MaxUint16 + 1); err == nil {
		t.Fatal("expected overflow error")
	}
	got, err := IntToUint16(65535)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 65535 {
		t.Errorf("got %d, want 65535", got)
	}
}

func TestUint64ToInt64(t *testing.T) {
	if _, err := Uint64ToInt64(math.MaxUint64); err == nil {
		t.Fatal("expected overflow error")
	}
	got, err := Uint64ToInt64(7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 7 {
		t.Errorf("got %d, want 7", got)
	}
}
