package frame

import (
	"testing"

	"github.com/sandin/dwarfpost/internal/dwarf/op"
)

func regs29At(v uint64) op.RegisterProvider {
	return func(regnum uint64) (uint64, bool) {
		if regnum == 29 {
			return v, true
		}
		return 0, false
	}
}

// scenario 6 / P8: CFA via Offset rule equals register(ref_reg) + offset.
func TestResolveCFAOffsetRule(t *testing.T) {
	rule := DWRule{Rule: RuleCFA, Reg: 29, Offset: 32}
	cfa, ok := resolveCFA(rule, regs29At(0x7FFF00), nil, 0)
	if !ok || cfa != 0x7FFF20 {
		t.Fatalf("got cfa=0x%x ok=%v", cfa, ok)
	}
}

func TestResolveCFAMissingRegisterFails(t *testing.T) {
	rule := DWRule{Rule: RuleCFA, Reg: 29, Offset: 32}
	_, ok := resolveCFA(rule, func(uint64) (uint64, bool) { return 0, false }, nil, 0)
	if ok {
		t.Fatal("expected failure when register is unavailable")
	}
}

func TestResolveColumnOffsetReadsMemory(t *testing.T) {
	mem := func(addr uint64, n int) ([]byte, bool) {
		if addr == 0x7FFF28 && n == 8 {
			return []byte{1, 0, 0, 0, 0, 0, 0, 0}, true
		}
		return nil, false
	}
	rule := DWRule{Rule: RuleOffset, Offset: 8}
	v, ok := resolveColumn(rule, 0x7FFF20, true, nil, mem, 0)
	if !ok || v != 1 {
		t.Fatalf("got v=%d ok=%v", v, ok)
	}
}

func TestResolveColumnUndefinedNeverFailsRow(t *testing.T) {
	rule := DWRule{Rule: RuleUndefined}
	_, ok := resolveColumn(rule, 0, true, nil, nil, 0)
	if ok {
		t.Fatal("undefined column must report not-ok, not a hard failure")
	}
}

func TestResolveColumnValOffset(t *testing.T) {
	rule := DWRule{Rule: RuleValOffset, Offset: -8}
	v, ok := resolveColumn(rule, 0x1000, true, nil, nil, 0)
	if !ok || v != 0x0FF8 {
		t.Fatalf("got v=0x%x ok=%v", v, ok)
	}
}
