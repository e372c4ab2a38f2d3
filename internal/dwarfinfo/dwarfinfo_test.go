package dwarfinfo

import (
	"debug/dwarf"
	"testing"

	"github.com/sandin/dwarfpost/internal/dwarf/line"
)

func dieWith(fields ...dwarf.Field) *DIE {
	return &DIE{Entry: &dwarf.Entry{Field: fields}, Offset: 0x100}
}

func TestAttrFindsMatchingCode(t *testing.T) {
	info := &Info{}
	die := dieWith(
		dwarf.Field{Attr: dwarf.AttrName, Val: "x"},
		dwarf.Field{Attr: dwarf.AttrByteSize, Val: int64(4)},
	)
	f := info.Attr(die, dwarf.AttrByteSize)
	if f == nil || f.Val.(int64) != 4 {
		t.Fatalf("got %+v", f)
	}
	if info.Attr(die, dwarf.AttrType) != nil {
		t.Fatal("expected nil for absent attribute")
	}
}

func TestAttrAsUnsignedHandlesIntAndUintVals(t *testing.T) {
	info := &Info{}
	die := dieWith(
		dwarf.Field{Attr: dwarf.AttrByteSize, Val: int64(8)},
		dwarf.Field{Attr: dwarf.AttrDeclLine, Val: uint64(12)},
	)
	if got := info.AttrAsUnsigned(die, dwarf.AttrByteSize, 0); got != 8 {
		t.Fatalf("got %d", got)
	}
	if got := info.AttrAsUnsigned(die, dwarf.AttrDeclLine, 0); got != 12 {
		t.Fatalf("got %d", got)
	}
	if got := info.AttrAsUnsigned(die, dwarf.AttrType, 99); got != 99 {
		t.Fatalf("want default 99, got %d", got)
	}
}

func TestAttrAsStringReturnsDefaultWhenAbsentOrWrongType(t *testing.T) {
	info := &Info{}
	die := dieWith(
		dwarf.Field{Attr: dwarf.AttrName, Val: "main.foo"},
		dwarf.Field{Attr: dwarf.AttrByteSize, Val: int64(4)},
	)
	if got := info.AttrAsString(die, dwarf.AttrName, ""); got != "main.foo" {
		t.Fatalf("got %q", got)
	}
	if got := info.AttrAsString(die, dwarf.AttrByteSize, "fallback"); got != "fallback" {
		t.Fatalf("got %q", got)
	}
	if got := info.AttrAsString(die, dwarf.AttrType, "fallback"); got != "fallback" {
		t.Fatalf("got %q", got)
	}
}

func TestLocationDecodesInlineExprloc(t *testing.T) {
	info := &Info{}
	// DW_OP_addr 0x00 0x10 0x00 0x00 0x00 0x00 0x00 0x00 (little-endian 0x1000)
	raw := []byte{0x03, 0x00, 0x10, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
	die := dieWith(dwarf.Field{Attr: dwarf.AttrLocation, Val: raw})
	list, err := info.Location(die, dwarf.AttrLocation, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(list.Ranges) != 1 || list.Ranges[0].Low != 0 {
		t.Fatalf("expected a single unbounded range, got %+v", list.Ranges)
	}
}

func TestLocationRejectsMissingAttribute(t *testing.T) {
	info := &Info{}
	die := dieWith(dwarf.Field{Attr: dwarf.AttrName, Val: "x"})
	if _, err := info.Location(die, dwarf.AttrLocation, 0); err == nil {
		t.Fatal("expected error for absent location attribute")
	}
}

func TestLocationRejectsLoclistOffsetWithoutSection(t *testing.T) {
	info := &Info{}
	die := dieWith(dwarf.Field{Attr: dwarf.AttrLocation, Val: int64(0)})
	if _, err := info.Location(die, dwarf.AttrLocation, 0); err == nil {
		t.Fatal("expected error when no .debug_loc section was loaded")
	}
}

func TestDemangledDefaultsToIdentity(t *testing.T) {
	info := &Info{Demangler: identity}
	if got := info.Demangled("_ZN3foo3barEv"); got != "_ZN3foo3barEv" {
		t.Fatalf("identity demangler changed input: %q", got)
	}
	info.Demangler = func(s string) string { return "demangled:" + s }
	if got := info.Demangled("x"); got != "demangled:x" {
		t.Fatalf("got %q", got)
	}
}

func TestLineTableNilWithoutCUOrSection(t *testing.T) {
	info := &Info{lineCache: make(map[uint64]*line.DebugLineInfo)}
	if lt := info.LineTable(nil); lt != nil {
		t.Fatalf("expected nil with no CU, got %+v", lt)
	}
	cu := dieWith(dwarf.Field{Attr: dwarf.AttrStmtList, Val: int64(0)})
	if lt := info.LineTable(cu); lt != nil {
		t.Fatalf("expected nil with no .debug_line data loaded, got %+v", lt)
	}
}

func TestLineTableRejectsOutOfRangeStmtListOffset(t *testing.T) {
	info := &Info{lineData: []byte{1, 2, 3, 4}, lineCache: make(map[uint64]*line.DebugLineInfo)}
	cu := dieWith(dwarf.Field{Attr: dwarf.AttrStmtList, Val: int64(100)})
	if lt := info.LineTable(cu); lt != nil {
		t.Fatalf("expected nil for an out-of-range stmt_list offset, got %+v", lt)
	}
}
