package diag

import "testing"

func TestErrorFormatsWithLine(t *testing.T) {
	e := New(RuntimePropertyDoesNotExist, 12, "Property '%s' does not exist", "foo")
	want := "Runtime Error: Property 'foo' does not exist on line 12"
	if got := e.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestKindOfPartitionsByBlock(t *testing.T) {
	tests := []struct {
		code Code
		want Kind
	}{
		{RuntimeDivideByZero, Runtime},
		{FileNotFound, Filesystem},
		{OutOfMemory, Resource},
		{WrongNumberOfParams, API},
	}
	for _, tt := range tests {
		if got := tt.code.KindOf(); got != tt.want {
			t.Errorf("%v.KindOf() = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestParseErrorListAccumulates(t *testing.T) {
	var l ParseErrorList
	if l.HasErrors() {
		t.Fatal("new list should have no errors")
	}
	l.Add("unexpected token", 3, 5, 1)
	l.Add("missing semicolon", 4, 1, 0)
	if l.Count() != 2 {
		t.Fatalf("Count() = %d, want 2", l.Count())
	}
	if !l.HasErrors() {
		t.Fatal("list should report errors after Add")
	}
}
