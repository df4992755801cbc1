// Package atom implements the interned-identifier table described in
// m8rscript's data model: a sorted, compile-time table of well-known
// "shared" names precedes a growable per-process pool of user-interned
// strings.
package atom

import "sort"

// Atom is a 16-bit interned identifier. Atom(0) is the sentinel "no atom".
type Atom uint16

// NoAtom is the sentinel value meaning "no atom interned".
const NoAtom Atom = 0

// SharedOffset is the first id available to the per-process user pool.
// Ids below this value index the shared, compile-time table.
const SharedOffset = 32768

// Table interns identifier strings into Atoms. The shared table is a
// sorted array fixed at construction; the user pool grows monotonically
// for the lifetime of the table and atoms are never removed.
type Table struct {
	shared     []string // sorted; index i -> atom i+1 (0 is NoAtom)
	sharedByID map[string]Atom

	pool    []byte          // concatenated NUL-terminated user strings
	offsets []int           // pool byte-offset of each user atom, indexed by (atom - SharedOffset)
	byName  map[string]Atom // user-interned name -> atom
}

// NewTable builds a Table whose shared section is the given names,
// sorted once at construction. Shared atom ids are assigned 1..len(names)
// in sorted order so lookups can binary-search.
func NewTable(shared []string) *Table {
	sorted := make([]string, len(shared))
	copy(sorted, shared)
	sort.Strings(sorted)

	t := &Table{
		shared:     sorted,
		sharedByID: make(map[string]Atom, len(sorted)),
		byName:     make(map[string]Atom),
	}
	for i, name := range sorted {
		t.sharedByID[name] = Atom(i + 1)
	}
	return t
}

// Atomize interns name, returning its Atom. Idempotent: repeated calls
// with byte-equal strings return the same Atom.
func (t *Table) Atomize(name string) Atom {
	if name == "" {
		return NoAtom
	}
	if a, ok := t.lookupShared(name); ok {
		return a
	}
	if a, ok := t.byName[name]; ok {
		return a
	}

	offset := len(t.pool)
	t.pool = append(t.pool, name...)
	t.pool = append(t.pool, 0)
	id := Atom(SharedOffset + len(t.offsets))
	t.offsets = append(t.offsets, offset)
	t.byName[name] = id
	return id
}

// lookupShared binary-searches the sorted shared table.
func (t *Table) lookupShared(name string) (Atom, bool) {
	i := sort.SearchStrings(t.shared, name)
	if i < len(t.shared) && t.shared[i] == name {
		return Atom(i + 1), true
	}
	return NoAtom, false
}

// StringFrom returns the interned string for a, or "" if a is unknown.
func (t *Table) StringFrom(a Atom) string {
	if a == NoAtom {
		return ""
	}
	if int(a) <= len(t.shared) {
		return t.shared[a-1]
	}
	idx := int(a) - SharedOffset
	if idx < 0 || idx >= len(t.offsets) {
		return ""
	}
	start := t.offsets[idx]
	end := start
	for end < len(t.pool) && t.pool[end] != 0 {
		end++
	}
	return string(t.pool[start:end])
}

// IsShared reports whether a refers to the compile-time shared table.
func (a Atom) IsShared() bool { return a != NoAtom && a < SharedOffset }

// Len returns the number of user-interned atoms (excludes shared atoms).
func (t *Table) Len() int { return len(t.offsets) }
