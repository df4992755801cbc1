package atom

import "testing"

func TestAtomizeIdempotent(t *testing.T) {
	tbl := NewTable(SharedNames)

	tests := []string{"foo", "bar", "constructor", "fooBar123", "_private", "$special"}
	for _, name := range tests {
		first := tbl.Atomize(name)
		second := tbl.Atomize(name)
		if first != second {
			t.Errorf("Atomize(%q) not idempotent: got %d then %d", name, first, second)
		}
		if got := tbl.StringFrom(first); got != name {
			t.Errorf("StringFrom(Atomize(%q)) = %q, want %q", name, got, name)
		}
	}
}

func TestSharedAtomsBelowOffset(t *testing.T) {
	tbl := NewTable(SharedNames)
	a := tbl.Atomize("constructor")
	if !a.IsShared() {
		t.Fatalf("constructor should be a shared atom, got %d", a)
	}
	if a >= SharedOffset {
		t.Fatalf("shared atom %d should be < SharedOffset (%d)", a, SharedOffset)
	}
}

func TestUserAtomsAtOrAboveOffset(t *testing.T) {
	tbl := NewTable(SharedNames)
	a := tbl.Atomize("aBrandNewUserIdentifier")
	if a.IsShared() {
		t.Fatalf("user atom %d should not be shared", a)
	}
	if a < SharedOffset {
		t.Fatalf("user atom %d should be >= SharedOffset (%d)", a, SharedOffset)
	}
}

func TestNoAtomSentinel(t *testing.T) {
	tbl := NewTable(SharedNames)
	if got := tbl.Atomize(""); got != NoAtom {
		t.Fatalf("Atomize(\"\") = %d, want NoAtom", got)
	}
	if got := tbl.StringFrom(NoAtom); got != "" {
		t.Fatalf("StringFrom(NoAtom) = %q, want empty", got)
	}
}

func TestAtomsGrowMonotonically(t *testing.T) {
	tbl := NewTable(SharedNames)
	before := tbl.Len()
	tbl.Atomize("freshOne")
	tbl.Atomize("freshTwo")
	if got := tbl.Len(); got != before+2 {
		t.Fatalf("Len() = %d, want %d", got, before+2)
	}
	// Re-interning an existing name must not grow the pool.
	tbl.Atomize("freshOne")
	if got := tbl.Len(); got != before+2 {
		t.Fatalf("Len() after re-intern = %d, want %d", got, before+2)
	}
}
