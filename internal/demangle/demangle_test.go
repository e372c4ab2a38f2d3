package demangle

import "testing"

func TestItaniumStripsNestedName(t *testing.T) {
	got := Itanium("_ZN3foo3barEv")
	if got != "foo::bar" {
		t.Fatalf("got %q", got)
	}
}

func TestItaniumLeavesNonMangledNameAlone(t *testing.T) {
	if got := Itanium("main"); got != "main" {
		t.Fatalf("got %q", got)
	}
}

func TestItaniumFallsBackOnUnparseableInput(t *testing.T) {
	if got := Itanium("_Zgarbage"); got != "_Zgarbage" {
		t.Fatalf("got %q", got)
	}
}

func TestItaniumSingleLevelName(t *testing.T) {
	got := Itanium("_Z3fooi")
	if got != "foo" {
		t.Fatalf("got %q", got)
	}
}
