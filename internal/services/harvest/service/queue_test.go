package service

import "testing"

func TestPageUnits(t *testing.T) {
	units := PageUnits(1, 3)
	if len(units) != 3 || units[0] != "1" || units[2] != "3" {
		t.Fatalf("units = %v", units)
	}
	if got := PageUnits(5, 4); got != nil {
		t.Fatalf("inverted range must be empty, got %v", got)
	}
	if got := PageUnits(7, 7); len(got) != 1 || got[0] != "7" {
		t.Fatalf("single page range = %v", got)
	}
}

func TestPendingSubtractsAndDeduplicates(t *testing.T) {
	requested := []string{"1", "2", "2", "3", "4", "5"}
	done := map[string]struct{}{"2": {}, "4": {}}
	dumps := map[string]struct{}{"5": {}}

	got := Pending(requested, done, dumps)
	want := []string{"1", "3"}
	if len(got) != len(want) {
		t.Fatalf("pending = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("pending = %v, want %v", got, want)
		}
	}
}

func TestPendingPreservesNaturalOrder(t *testing.T) {
	requested := PageUnits(1, 100)
	got := Pending(requested, map[string]struct{}{})
	for i, u := range requested {
		if got[i] != u {
			t.Fatalf("order broken at %d: %s != %s", i, got[i], u)
		}
	}
}
