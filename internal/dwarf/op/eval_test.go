package op

import "testing"

func regProvider(vals map[uint64]uint64) RegisterProvider {
	return func(regnum uint64) (uint64, bool) {
		v, ok := vals[regnum]
		return v, ok
	}
}

func memProvider(at uint64, data []byte) MemoryProvider {
	return func(addr uint64, n int) ([]byte, bool) {
		if addr < at || addr+uint64(n) > at+uint64(len(data)) {
			return nil, false
		}
		off := addr - at
		return data[off : off+uint64(n)], true
	}
}

// scenario 1: bare register
func TestBareRegister(t *testing.T) {
	expr, err := Decode([]byte{byte(DW_OP_reg0) + 5})
	if err != nil {
		t.Fatal(err)
	}
	ctx := EvalContext{Register: regProvider(map[uint64]uint64{5: 0xDEADBEEF})}
	res := Evaluate(expr, ctx)
	if res.Kind != KindValue || res.Value != 0xDEADBEEF {
		t.Fatalf("got %+v", res)
	}
}

// scenario 2: breg + offset, deref
func TestBregOffsetDeref(t *testing.T) {
	raw := []byte{byte(DW_OP_breg0) + 7, 0x10, byte(DW_OP_deref)}
	expr, err := Decode(raw)
	if err != nil {
		t.Fatal(err)
	}
	mem := []byte{0x77, 0x66, 0x55, 0x44, 0x33, 0x22, 0x11, 0x00}
	ctx := EvalContext{
		Register: regProvider(map[uint64]uint64{7: 0x1000}),
		Memory:   memProvider(0x1010, mem),
		AddrSize: 8,
	}
	res := Evaluate(expr, ctx)
	if res.Kind != KindAddress || res.Value != 0x0011223344556677 {
		t.Fatalf("got %+v", res)
	}
}

// scenario 3: stack_value terminates, trailing nop never runs
func TestStackValueTerminates(t *testing.T) {
	raw := []byte{byte(DW_OP_const1u), 0x42, byte(DW_OP_stack_value), byte(DW_OP_nop)}
	expr, err := Decode(raw)
	if err != nil {
		t.Fatal(err)
	}
	res := Evaluate(expr, EvalContext{})
	if res.Kind != KindValue || res.Value != 0x42 {
		t.Fatalf("got %+v", res)
	}
}

// scenario 4: deref_size zero-extension (P4)
func TestDerefSizeZeroExtends(t *testing.T) {
	raw := []byte{byte(DW_OP_const2u), 0x10, 0x20, byte(DW_OP_deref_size), 3}
	expr, err := Decode(raw)
	if err != nil {
		t.Fatal(err)
	}
	mem := []byte{0xAA, 0xBB, 0xCC, 0xDD}
	ctx := EvalContext{Memory: memProvider(0x2010, mem)}
	res := Evaluate(expr, ctx)
	if res.Kind != KindAddress {
		t.Fatalf("got %+v", res)
	}
	if res.Value != 0x0000000000CCBBAA {
		t.Fatalf("want zero-extended 0xCCBBAA, got 0x%x", res.Value)
	}
	if res.Value&0xFFFFFFFFFF000000 != 0 {
		t.Fatalf("upper bytes not zeroed: 0x%x", res.Value)
	}
}

// scenario 5: skip forward jumps past a dead op
func TestSkipForward(t *testing.T) {
	raw := []byte{
		byte(DW_OP_const1u), 1, // @0,1
		byte(DW_OP_skip), 0x05, 0x00, // @2,3,4 target = 2+5 = 7
		byte(DW_OP_const1u), 99, // @5,6 (skipped)
		byte(DW_OP_nop), // @7
	}
	expr, err := Decode(raw)
	if err != nil {
		t.Fatal(err)
	}
	res := Evaluate(expr, EvalContext{})
	if res.Kind != KindAddress || res.Value != 1 {
		t.Fatalf("got %+v", res)
	}
}

// scenario, OQ1: bra branches iff popped value is non-zero, both directions
func TestBraNonZeroTaken(t *testing.T) {
	raw := []byte{
		byte(DW_OP_const1u), 1, // push 1 (truthy condition) @0,1
		byte(DW_OP_bra), 0x04, 0x00, // @2,3,4 target = 2+4 = 6
		byte(DW_OP_const1u), 99, // @5,6 (skipped)
	}
	expr, err := Decode(raw)
	if err != nil {
		t.Fatal(err)
	}
	res := Evaluate(expr, EvalContext{})
	if res.Kind != KindInvalid || res.Err.Code != ErrStackIndexInvalid {
		t.Fatalf("expected empty-stack termination at end, got %+v", res)
	}
}

func TestBraZeroNotTaken(t *testing.T) {
	raw := []byte{
		byte(DW_OP_const1u), 0, // push 0 (falsy condition) @0,1
		byte(DW_OP_bra), 0x04, 0x00, // @2,3,4 target would be 6 but untaken
		byte(DW_OP_const1u), 99, // @5,6 executes
	}
	expr, err := Decode(raw)
	if err != nil {
		t.Fatal(err)
	}
	res := Evaluate(expr, EvalContext{})
	if res.Kind != KindAddress || res.Value != 99 {
		t.Fatalf("got %+v", res)
	}
}

// P3: stack underflow never reads undefined memory
func TestUnderflowNeverReadsUndefinedMemory(t *testing.T) {
	raw := []byte{byte(DW_OP_plus)}
	expr, err := Decode(raw)
	if err != nil {
		t.Fatal(err)
	}
	res := Evaluate(expr, EvalContext{})
	if res.Kind != KindInvalid || res.Err.Code != ErrStackIndexInvalid {
		t.Fatalf("got %+v", res)
	}
}

// P5: stack_value terminates regardless of remaining ops
func TestStackValueTerminatesRegardless(t *testing.T) {
	raw := []byte{byte(DW_OP_lit0) + 7, byte(DW_OP_stack_value), byte(DW_OP_bra), 0, 0}
	expr, err := Decode(raw)
	if err != nil {
		t.Fatal(err)
	}
	res := Evaluate(expr, EvalContext{})
	if res.Kind != KindValue || res.Value != 7 {
		t.Fatalf("got %+v", res)
	}
}

// R2: round-trip arithmetic identities
func TestArithmeticRoundTrips(t *testing.T) {
	raw := []byte{byte(DW_OP_const1u), 9, byte(DW_OP_dup), byte(DW_OP_plus)}
	expr, err := Decode(raw)
	if err != nil {
		t.Fatal(err)
	}
	res := Evaluate(expr, EvalContext{})
	if res.Kind != KindAddress || res.Value != 18 {
		t.Fatalf("want 2*9=18, got %+v", res)
	}

	raw2 := []byte{byte(DW_OP_const1u), 30, byte(DW_OP_const1u), 12, byte(DW_OP_swap), byte(DW_OP_minus)}
	expr2, err := Decode(raw2)
	if err != nil {
		t.Fatal(err)
	}
	res2 := Evaluate(expr2, EvalContext{})
	if res2.Kind != KindAddress || res2.Value != 0xFFFFFFFFFFFFFFEE {
		t.Fatalf("want Y-X = 12-30 = -18, got %+v", res2)
	}
}

// R3: bare reg vs reg+stack_value equivalence
func TestRegAndStackValueEquivalence(t *testing.T) {
	exprA, err := Decode([]byte{byte(DW_OP_reg0) + 3})
	if err != nil {
		t.Fatal(err)
	}
	exprB, err := Decode([]byte{byte(DW_OP_breg0) + 3, 0, byte(DW_OP_stack_value)})
	if err != nil {
		t.Fatal(err)
	}
	ctx := EvalContext{Register: regProvider(map[uint64]uint64{3: 77})}
	resA := Evaluate(exprA, ctx)
	resB := Evaluate(exprB, ctx)
	if resA.Kind != KindValue || resA.Value != 77 {
		t.Fatalf("got %+v", resA)
	}
	if resB.Kind != KindValue || resB.Value != 77 {
		t.Fatalf("got %+v", resB)
	}
}

// P1: findByOffset resolves every reachable op's own offset, and no other
func TestFindByOffsetIsExact(t *testing.T) {
	raw := []byte{byte(DW_OP_const1u), 5, byte(DW_OP_nop), byte(DW_OP_dup)}
	expr, err := Decode(raw)
	if err != nil {
		t.Fatal(err)
	}
	for _, o := range expr.Ops {
		idx, ok := expr.findByOffset(o.Offset)
		if !ok {
			t.Fatalf("offset %d not found", o.Offset)
		}
		if expr.Ops[idx].Offset != o.Offset {
			t.Fatalf("offset mismatch at %d", o.Offset)
		}
	}
	if _, ok := expr.findByOffset(999); ok {
		t.Fatal("expected no match for out-of-range offset")
	}
}

// NotImplemented surfaces with the offending op's offset
func TestNotImplementedOps(t *testing.T) {
	raw := []byte{byte(DW_OP_nop), byte(DW_OP_push_object_address)}
	expr, err := Decode(raw)
	if err != nil {
		t.Fatal(err)
	}
	res := Evaluate(expr, EvalContext{})
	if res.Kind != KindInvalid || res.Err.Code != ErrNotImplemented || res.Err.OpOffset != 1 {
		t.Fatalf("got %+v", res)
	}
}

func TestFrameBaseInvalidWithoutProvider(t *testing.T) {
	raw := []byte{byte(DW_OP_fbreg), 0x08}
	expr, err := Decode(raw)
	if err != nil {
		t.Fatal(err)
	}
	res := Evaluate(expr, EvalContext{})
	if res.Kind != KindInvalid || res.Err.Code != ErrFrameBaseInvalid {
		t.Fatalf("got %+v", res)
	}
}

func TestCfaInvalidWithoutProvider(t *testing.T) {
	raw := []byte{byte(DW_OP_call_frame_cfa)}
	expr, err := Decode(raw)
	if err != nil {
		t.Fatal(err)
	}
	res := Evaluate(expr, EvalContext{})
	if res.Kind != KindInvalid || res.Err.Code != ErrCfaInvalid {
		t.Fatalf("got %+v", res)
	}
}

func TestDerefSizeIllegalOperand(t *testing.T) {
	for _, n := range []byte{0, 9} {
		raw := []byte{byte(DW_OP_const1u), 1, byte(DW_OP_deref_size), n}
		expr, err := Decode(raw)
		if err != nil {
			t.Fatal(err)
		}
		res := Evaluate(expr, EvalContext{})
		if res.Kind != KindInvalid || res.Err.Code != ErrIllegalOpd {
			t.Fatalf("n=%d: got %+v", n, res)
		}
	}
}
