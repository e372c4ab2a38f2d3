package op

// RegisterProvider reads a DWARF-numbered register from the current frame's
// CPU context. ok is false if the register is unavailable.
type RegisterProvider func(regnum uint64) (value uint64, ok bool)

// MemoryProvider reads len bytes at addr from the snapshot. ok is false if
// no memory range covers the whole request.
type MemoryProvider func(addr uint64, len int) (data []byte, ok bool)

// CfaProvider answers the canonical frame address for a PC. It is nil when
// evaluating a CFI row's own expression, breaking the cfa->expr->cfa cycle
// per the CFI engine's recursion-breaking rule.
type CfaProvider func(pc uint64) (cfa uint64, ok bool)

// FrameBaseProvider evaluates the function's frame_base location list at pc
// and returns its result. Used by DW_OP_fbreg.
type FrameBaseProvider func(pc uint64) Result

// maxRecursionDepth is the largest EvalContext depth evaluate accepts; a
// deeper context fails with ErrIllegalState. Only childDepth raises depth,
// and no evaluation path calls it: DW_OP_fbreg passes FrameBase just a pc,
// so nested frame-base evaluations are not counted against this bound.
const maxRecursionDepth = 16

// EvalContext carries everything an expression evaluation needs, as
// function-value providers rather than global state. It is constructed
// fresh per query and holds only borrows.
type EvalContext struct {
	PC         uint64
	Register   RegisterProvider
	Memory     MemoryProvider
	Cfa        CfaProvider
	FrameBase  FrameBaseProvider
	AddrSize   int // pointer size in bytes, used by DW_OP_deref
	depth      int
}

// withoutCfa returns a copy of c with CFA resolution disabled.
func (c EvalContext) withoutCfa() EvalContext {
	c.Cfa = nil
	return c
}

func (c EvalContext) childDepth() EvalContext {
	c.depth++
	return c
}
