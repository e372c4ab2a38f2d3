package main

import (
	"debug/dwarf"
	"testing"

	"github.com/sandin/dwarfpost/internal/dwarf/op"
	"github.com/sandin/dwarfpost/internal/dwarfinfo"
)

func dieWithLocation(attr dwarf.Attr, raw []byte) *dwarfinfo.DIE {
	return &dwarfinfo.DIE{Entry: &dwarf.Entry{Field: []dwarf.Field{{Attr: attr, Val: raw}}}}
}

// TestFrameBaseProviderFeedsFbreg guards against ctx.FrameBase being left
// unset for -l/-p: without it, DW_OP_fbreg (the usual way locals and
// params are addressed) fails for every variable regardless of how well
// the evaluator or CFI engine work.
func TestFrameBaseProviderFeedsFbreg(t *testing.T) {
	info := &dwarfinfo.Info{}
	fn := dieWithLocation(dwarf.AttrFrameBase, []byte{byte(op.DW_OP_call_frame_cfa)})

	ctx := op.EvalContext{
		PC:  0x1000,
		Cfa: func(uint64) (uint64, bool) { return 0xF00, true },
	}

	fb := frameBaseProvider(info, fn, 0, ctx)
	if fb == nil {
		t.Fatal("expected a non-nil FrameBaseProvider")
	}
	res := fb(ctx.PC)
	if !res.Valid() || res.Kind != op.KindAddress || res.Value != 0xF00 {
		t.Fatalf("got %+v", res)
	}

	ctx.FrameBase = fb
	expr, err := op.Decode([]byte{byte(op.DW_OP_fbreg), 0x7e}) // sleb128(-2)
	if err != nil {
		t.Fatal(err)
	}
	fbreg := op.Evaluate(expr, ctx)
	if !fbreg.Valid() || fbreg.Kind != op.KindAddress || fbreg.Value != 0xF00-2 {
		t.Fatalf("got %+v", fbreg)
	}
}

func TestFrameBaseProviderNilWithoutAttribute(t *testing.T) {
	info := &dwarfinfo.Info{}
	fn := &dwarfinfo.DIE{Entry: &dwarf.Entry{}}
	if fb := frameBaseProvider(info, fn, 0, op.EvalContext{}); fb != nil {
		t.Fatal("expected nil FrameBaseProvider when DW_AT_frame_base is absent")
	}
}
