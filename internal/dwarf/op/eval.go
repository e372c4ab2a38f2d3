package op

// Evaluate runs expr against ctx starting at index 0 with an empty stack and
// returns the terminating Result. It never panics.
func Evaluate(expr *Expression, ctx EvalContext) Result {
	return evaluate(expr, ctx, nil)
}

// EvaluateWithStack runs expr like Evaluate, but starts from a copy of
// initial (its last element on top) instead of an empty stack.
func EvaluateWithStack(expr *Expression, ctx EvalContext, initial []int64) Result {
	return evaluate(expr, ctx, initial)
}

func evaluate(expr *Expression, ctx EvalContext, initial []int64) Result {
	if ctx.depth > maxRecursionDepth {
		return errResult(ErrIllegalState, 0)
	}

	stack := append([]int64(nil), initial...)
	var curOffset uint64

	pop := func() (int64, bool) {
		if len(stack) == 0 {
			return 0, false
		}
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return v, true
	}
	push := func(v int64) { stack = append(stack, v) }
	top := func() (int64, bool) {
		if len(stack) == 0 {
			return 0, false
		}
		return stack[len(stack)-1], true
	}

	for i := 0; i < len(expr.Ops); i++ {
		o := expr.Ops[i]
		curOffset = o.Offset

		switch {
		case o.Opcode >= DW_OP_lit0 && o.Opcode <= DW_OP_lit31:
			push(o.Operand)
			continue
		case o.Opcode >= DW_OP_breg0 && o.Opcode <= DW_OP_breg31:
			regVal, ok := regOrErr(ctx, o.Reg)
			if !ok {
				return errResult(ErrRegisterInvalid, curOffset)
			}
			push(int64(regVal) + o.Operand)
			continue
		case o.Opcode >= DW_OP_reg0 && o.Opcode <= DW_OP_reg31:
			regVal, ok := regOrErr(ctx, o.Reg)
			if !ok {
				return errResult(ErrRegisterInvalid, curOffset)
			}
			if i == len(expr.Ops)-1 {
				return valueResult(regVal)
			}
			push(int64(regVal))
			continue
		}

		switch o.Opcode {
		case DW_OP_addr, DW_OP_const1u, DW_OP_const1s, DW_OP_const2u, DW_OP_const2s,
			DW_OP_const4u, DW_OP_const4s, DW_OP_const8u, DW_OP_const8s,
			DW_OP_constu, DW_OP_consts:
			push(o.Operand)

		case DW_OP_bregx:
			regVal, ok := regOrErr(ctx, o.Reg)
			if !ok {
				return errResult(ErrRegisterInvalid, curOffset)
			}
			push(int64(regVal) + o.Operand)

		case DW_OP_regx:
			regVal, ok := regOrErr(ctx, o.Reg)
			if !ok {
				return errResult(ErrRegisterInvalid, curOffset)
			}
			if i == len(expr.Ops)-1 {
				return valueResult(regVal)
			}
			push(int64(regVal))

		case DW_OP_fbreg:
			if ctx.FrameBase == nil {
				return errResult(ErrFrameBaseInvalid, curOffset)
			}
			fb := ctx.FrameBase(ctx.PC)
			if !fb.Valid() || fb.Kind != KindAddress {
				return errResult(ErrFrameBaseInvalid, curOffset)
			}
			push(int64(fb.Value) + o.Operand)

		case DW_OP_dup:
			v, ok := top()
			if !ok {
				return errResult(ErrStackIndexInvalid, curOffset)
			}
			push(v)

		case DW_OP_drop:
			if _, ok := pop(); !ok {
				return errResult(ErrStackIndexInvalid, curOffset)
			}

		case DW_OP_over:
			if len(stack) < 2 {
				return errResult(ErrStackIndexInvalid, curOffset)
			}
			push(stack[len(stack)-2])

		case DW_OP_pick:
			n := int(o.Operand)
			if n < 0 || n >= len(stack) {
				return errResult(ErrStackIndexInvalid, curOffset)
			}
			push(stack[len(stack)-1-n])

		case DW_OP_swap:
			if len(stack) < 2 {
				return errResult(ErrStackIndexInvalid, curOffset)
			}
			stack[len(stack)-1], stack[len(stack)-2] = stack[len(stack)-2], stack[len(stack)-1]

		case DW_OP_rot:
			if len(stack) < 3 {
				return errResult(ErrStackIndexInvalid, curOffset)
			}
			n := len(stack)
			stack[n-1], stack[n-2], stack[n-3] = stack[n-2], stack[n-3], stack[n-1]

		case DW_OP_deref:
			addr, ok := pop()
			if !ok {
				return errResult(ErrStackIndexInvalid, curOffset)
			}
			size := ctx.AddrSize
			if size == 0 {
				size = 8
			}
			data, ok := readMemory(ctx, uint64(addr), size)
			if !ok {
				return errResult(ErrMemoryInvalid, curOffset)
			}
			push(int64(leToUint64(data)))

		case DW_OP_deref_size:
			n := int(o.Operand)
			if n == 0 || n > 8 {
				return errResult(ErrIllegalOpd, curOffset)
			}
			addr, ok := pop()
			if !ok {
				return errResult(ErrStackIndexInvalid, curOffset)
			}
			data, ok := readMemory(ctx, uint64(addr), n)
			if !ok {
				return errResult(ErrMemoryInvalid, curOffset)
			}
			push(int64(leToUint64(data)))

		case DW_OP_call_frame_cfa:
			if ctx.Cfa == nil {
				return errResult(ErrCfaInvalid, curOffset)
			}
			cfa, ok := ctx.Cfa(ctx.PC)
			if !ok {
				return errResult(ErrCfaInvalid, curOffset)
			}
			push(int64(cfa))

		case DW_OP_abs:
			v, ok := pop()
			if !ok {
				return errResult(ErrStackIndexInvalid, curOffset)
			}
			if v < 0 {
				v = -v
			}
			push(v)

		case DW_OP_neg:
			v, ok := pop()
			if !ok {
				return errResult(ErrStackIndexInvalid, curOffset)
			}
			push(-v)

		case DW_OP_not:
			v, ok := pop()
			if !ok {
				return errResult(ErrStackIndexInvalid, curOffset)
			}
			push(^v)

		case DW_OP_plus_uconst:
			v, ok := pop()
			if !ok {
				return errResult(ErrStackIndexInvalid, curOffset)
			}
			push(v + o.Operand)

		case DW_OP_and, DW_OP_or, DW_OP_xor, DW_OP_plus, DW_OP_minus, DW_OP_mul,
			DW_OP_div, DW_OP_mod, DW_OP_shl, DW_OP_shr, DW_OP_shra:
			e1, ok1 := pop()
			e2, ok2 := pop()
			if !ok1 || !ok2 {
				return errResult(ErrStackIndexInvalid, curOffset)
			}
			switch o.Opcode {
			case DW_OP_and:
				push(e2 & e1)
			case DW_OP_or:
				push(e2 | e1)
			case DW_OP_xor:
				push(e2 ^ e1)
			case DW_OP_plus:
				push(e2 + e1)
			case DW_OP_minus:
				push(e2 - e1)
			case DW_OP_mul:
				push(e2 * e1)
			case DW_OP_div:
				if e1 == 0 {
					return errResult(ErrIllegalOpd, curOffset)
				}
				push(e2 / e1)
			case DW_OP_mod:
				if e1 == 0 {
					return errResult(ErrIllegalOpd, curOffset)
				}
				push(e2 % e1)
			case DW_OP_shl:
				push(e2 << uint64(e1))
			case DW_OP_shr:
				push(int64(uint64(e2) >> uint64(e1)))
			case DW_OP_shra:
				push(e2 >> uint64(e1))
			}

		case DW_OP_eq, DW_OP_ge, DW_OP_gt, DW_OP_le, DW_OP_lt, DW_OP_ne:
			e1, ok1 := pop()
			e2, ok2 := pop()
			if !ok1 || !ok2 {
				return errResult(ErrStackIndexInvalid, curOffset)
			}
			var result bool
			switch o.Opcode {
			case DW_OP_eq:
				result = e2 == e1
			case DW_OP_ge:
				result = e2 >= e1
			case DW_OP_gt:
				result = e2 > e1
			case DW_OP_le:
				result = e2 <= e1
			case DW_OP_lt:
				result = e2 < e1
			case DW_OP_ne:
				result = e2 != e1
			}
			if result {
				push(1)
			} else {
				push(0)
			}

		case DW_OP_skip:
			target := int64(o.Offset) + o.Operand
			idx, ok := expr.findByOffset(uint64(target))
			if !ok {
				if uint64(target) >= totalLen(expr) {
					i = len(expr.Ops)
					continue
				}
				return errResult(ErrIllegalOp, curOffset)
			}
			i = idx - 1

		case DW_OP_bra:
			cond, ok := pop()
			if !ok {
				return errResult(ErrStackIndexInvalid, curOffset)
			}
			if cond != 0 {
				target := int64(o.Offset) + o.Operand
				idx, ok := expr.findByOffset(uint64(target))
				if !ok {
					if uint64(target) >= totalLen(expr) {
						i = len(expr.Ops)
						continue
					}
					return errResult(ErrIllegalOp, curOffset)
				}
				i = idx - 1
			}

		case DW_OP_nop:
			// no effect

		case DW_OP_stack_value:
			v, ok := pop()
			if !ok {
				return errResult(ErrStackIndexInvalid, curOffset)
			}
			return valueResult(uint64(v))

		case DW_OP_piece, DW_OP_bit_piece, DW_OP_implicit_value, DW_OP_xderef,
			DW_OP_push_object_address, DW_OP_form_tls_address,
			DW_OP_call2, DW_OP_call4, DW_OP_call_ref, DW_OP_xderef_size:
			return errResult(ErrNotImplemented, curOffset)

		default:
			return errResult(ErrIllegalOp, curOffset)
		}
	}

	v, ok := top()
	if !ok {
		return errResult(ErrStackIndexInvalid, curOffset)
	}
	return addrResult(uint64(v))
}

func regOrErr(ctx EvalContext, regnum uint64) (uint64, bool) {
	if ctx.Register == nil {
		return 0, false
	}
	return ctx.Register(regnum)
}

func readMemory(ctx EvalContext, addr uint64, size int) ([]byte, bool) {
	if ctx.Memory == nil {
		return nil, false
	}
	return ctx.Memory(addr, size)
}

func leToUint64(data []byte) uint64 {
	var v uint64
	for i := len(data) - 1; i >= 0; i-- {
		v = (v << 8) | uint64(data[i])
	}
	return v
}

func totalLen(expr *Expression) uint64 {
	if len(expr.Ops) == 0 {
		return 0
	}
	last := expr.Ops[len(expr.Ops)-1]
	return last.Offset + 1
}
