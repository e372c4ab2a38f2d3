package frame

import "github.com/sandin/dwarfpost/internal/dwarf/op"

// RegisterResolution is the outcome of applying one row's rule to one
// ordinary register column: either a recovered value (OK true), or OK
// false when it could not be recovered. Unlike CFA resolution, a column
// failure never fails the whole row.
type RegisterResolution struct {
	Value uint64
	OK    bool
}

// Resolve answers cfa(pc) and, for dump mode, every ordinary register's
// recovered value, for the FDE covering pc. regs/mem back the embedded
// expression evaluator for Expression/ValExpression rules. The CFA rule's
// own expression is evaluated with Cfa == nil (the CFI row being evaluated
// is the one establishing it), breaking the cfa -> expr -> cfa cycle;
// register-column expressions get the CFA resolved for this row, or no
// CFA provider when that resolution failed.
func Resolve(fde *FrameDescriptionEntry, pc uint64, regs op.RegisterProvider, mem op.MemoryProvider) (cfa uint64, cfaOK bool, columns map[uint64]RegisterResolution) {
	ctx := fde.EstablishFrame(pc)
	columns = make(map[uint64]RegisterResolution, len(ctx.Regs))

	cfa, cfaOK = resolveCFA(ctx.CFA, regs, mem, pc)

	for reg, rule := range ctx.Regs {
		v, ok := resolveColumn(rule, cfa, cfaOK, regs, mem, pc)
		columns[reg] = RegisterResolution{Value: v, OK: ok}
	}

	return cfa, cfaOK, columns
}

func resolveCFA(rule DWRule, regs op.RegisterProvider, mem op.MemoryProvider, pc uint64) (uint64, bool) {
	switch rule.Rule {
	case RuleCFA, RuleOffset, RuleValOffset:
		base, ok := regOrZero(regs, rule.Reg)
		if !ok {
			return 0, false
		}
		return uint64(int64(base) + rule.Offset), true

	case RuleExpression, RuleValExpression:
		res := evalEmbedded(rule.Expression, pc, regs, mem, nil)
		if !res.Valid() {
			return 0, false
		}
		return res.Value, true

	default:
		return 0, false
	}
}

func resolveColumn(rule DWRule, cfa uint64, cfaOK bool, regs op.RegisterProvider, mem op.MemoryProvider, pc uint64) (uint64, bool) {
	switch rule.Rule {
	case RuleUndefined, RuleSameVal, RuleArchitectural:
		return 0, false

	case RuleOffset:
		if !cfaOK {
			return 0, false
		}
		addr := uint64(int64(cfa) + rule.Offset)
		if mem == nil {
			return 0, false
		}
		data, ok := mem(addr, 8)
		if !ok {
			return 0, false
		}
		return leUint64(data), true

	case RuleRegister:
		return regOrZero(regs, rule.Reg)

	case RuleValOffset:
		if !cfaOK {
			return 0, false
		}
		return uint64(int64(cfa) + rule.Offset), true

	case RuleExpression:
		res := evalEmbedded(rule.Expression, pc, regs, mem, cfaProviderOf(cfa, cfaOK))
		if !res.Valid() {
			return 0, false
		}
		if mem == nil {
			return 0, false
		}
		data, ok := mem(res.Value, 8)
		if !ok {
			return 0, false
		}
		return leUint64(data), true

	case RuleValExpression:
		res := evalEmbedded(rule.Expression, pc, regs, mem, cfaProviderOf(cfa, cfaOK))
		if !res.Valid() {
			return 0, false
		}
		return res.Value, true

	case RuleFramePointer:
		if !cfaOK {
			return 0, false
		}
		base, ok := regOrZero(regs, rule.Reg)
		if !ok {
			return 0, false
		}
		addr := uint64(int64(base) + rule.Offset)
		if addr >= cfa || mem == nil {
			return base, true
		}
		data, ok := mem(addr, 8)
		if !ok {
			return 0, false
		}
		return leUint64(data), true

	default:
		return 0, false
	}
}

func cfaProviderOf(cfa uint64, ok bool) op.CfaProvider {
	if !ok {
		return nil
	}
	return func(uint64) (uint64, bool) { return cfa, true }
}

func evalEmbedded(raw []byte, pc uint64, regs op.RegisterProvider, mem op.MemoryProvider, cfaFn op.CfaProvider) op.Result {
	expr, err := op.Decode(raw)
	if err != nil {
		return op.Result{Kind: op.KindInvalid}
	}
	ctx := op.EvalContext{PC: pc, Register: regs, Memory: mem, Cfa: cfaFn}
	return op.Evaluate(expr, ctx)
}

func regOrZero(regs op.RegisterProvider, reg uint64) (uint64, bool) {
	if regs == nil {
		return 0, false
	}
	return regs(reg)
}

func leUint64(data []byte) uint64 {
	var v uint64
	for i := len(data) - 1; i >= 0; i-- {
		v = (v << 8) | uint64(data[i])
	}
	return v
}
