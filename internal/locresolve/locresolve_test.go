package locresolve

import (
	"testing"

	"github.com/sandin/dwarfpost/internal/dwarf/op"
)

func constExpr(t *testing.T, v byte) *op.Expression {
	t.Helper()
	e, err := op.Decode([]byte{byte(op.DW_OP_lit0) + v})
	if err != nil {
		t.Fatal(err)
	}
	return e
}

// scenario 7 / P7: the second range is picked, the first is not evaluated.
func TestResolvePicksMatchingRange(t *testing.T) {
	e1 := constExpr(t, 1)
	e2 := constExpr(t, 2)
	list := LocationList{
		CuLow: 0,
		Ranges: []LocationRange{
			{Low: 0x100, High: 0x200, Expr: e1},
			{Low: 0x200, High: 0x300, Expr: e2},
		},
	}
	res := Resolve(list, 0x250, op.EvalContext{})
	if res.Kind != op.KindAddress || res.Value != 2 {
		t.Fatalf("expected e2's value 2, got %+v", res)
	}
}

func TestResolveNoMatchYieldsAddressInvalid(t *testing.T) {
	list := LocationList{
		CuLow:  0,
		Ranges: []LocationRange{{Low: 0x100, High: 0x200, Expr: constExpr(t, 1)}},
	}
	res := Resolve(list, 0x500, op.EvalContext{})
	if res.Kind != op.KindInvalid || res.Err.Code != op.ErrAddressInvalid || res.Err.AddrValue != 0x500 {
		t.Fatalf("got %+v", res)
	}
}

func TestResolveSingleUnboundedRange(t *testing.T) {
	list := Single(constExpr(t, 9))
	res := Resolve(list, 0xFFFFFFFF, op.EvalContext{})
	if res.Kind != op.KindAddress || res.Value != 9 {
		t.Fatalf("got %+v", res)
	}
}

func TestResolveRebasesByCuLow(t *testing.T) {
	list := LocationList{
		CuLow:  0x10000,
		Ranges: []LocationRange{{Low: 0x10, High: 0x20, Expr: constExpr(t, 7)}},
	}
	if res := Resolve(list, 0x10015, op.EvalContext{}); res.Kind != op.KindAddress || res.Value != 7 {
		t.Fatalf("expected match inside rebased range, got %+v", res)
	}
	if res := Resolve(list, 0x15, op.EvalContext{}); res.Kind != op.KindInvalid {
		t.Fatalf("expected no match before rebasing, got %+v", res)
	}
}
