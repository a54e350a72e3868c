package mathx

import "testing"

func TestBetween(t *testing.T) {
	if !Between(5, 0, 10) || !Between(5, 10, 0) {
		t.Fatal("5 should be within [0,10] in either order")
	}
	if Between(0x10000, 0, 0xFFFF) {
		t.Fatal("0x10000 should be outside 16 bits")
	}
	if !Between(uint32(0), 0, 0) {
		t.Fatal("degenerate range")
	}
}

func TestMinMax(t *testing.T) {
	if Min(uint32(0x12345), 0xFFFF) != 0xFFFF || Min(3, 4) != 3 {
		t.Fatal("Min")
	}
	if Max(3, 4) != 4 || Max(-1, -2) != -1 {
		t.Fatal("Max")
	}
}
