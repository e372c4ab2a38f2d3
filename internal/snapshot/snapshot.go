// Package snapshot adapts a parsed minidump into the register/memory
// providers the expression evaluator and CFI engine consume, so neither
// package needs to know the on-disk minidump format.
package snapshot

import (
	"github.com/sandin/dwarfpost/internal/dwarf/op"
	"github.com/sandin/dwarfpost/internal/minidump"
)

// Snapshot wraps a read minidump with the selected thread used to answer
// register and memory queries for one post-mortem session.
type Snapshot struct {
	dump   *minidump.Minidump
	thread uint32
}

// New wraps md, defaulting the selected thread to the crashing thread when
// an EXCEPTION stream is present.
func New(md *minidump.Minidump) *Snapshot {
	s := &Snapshot{dump: md}
	if md.Exception != nil {
		s.thread = md.Exception.ThreadID
	}
	return s
}

// SelectThread changes which thread's CPU context Register answers from.
func (s *Snapshot) SelectThread(id uint32) { s.thread = id }

// Register implements op.RegisterProvider against the selected thread's
// decoded CPU context.
func (s *Snapshot) Register(regnum uint64) (uint64, bool) {
	ctx := s.dump.GetContext(s.thread)
	if ctx == nil {
		return 0, false
	}
	return ctx.Register(regnum)
}

// Memory implements op.MemoryProvider against the dump's saved memory
// ranges. It never copies.
func (s *Snapshot) Memory(addr uint64, n int) ([]byte, bool) {
	return s.dump.ReadMemory(addr, n)
}

// RegisterProvider returns s.Register as an op.RegisterProvider value.
func (s *Snapshot) RegisterProvider() op.RegisterProvider { return s.Register }

// MemoryProvider returns s.Memory as an op.MemoryProvider value.
func (s *Snapshot) MemoryProvider() op.MemoryProvider { return s.Memory }

// PC returns the selected thread's program counter, read from its CPU
// context's architecture-specific PC register.
func (s *Snapshot) PC() (uint64, bool) {
	ctx := s.dump.GetContext(s.thread)
	if ctx == nil {
		return 0, false
	}
	return pcRegister(ctx)
}

func pcRegister(ctx *minidump.CPUContext) (uint64, bool) {
	switch ctx.Arch {
	case minidump.ArchAMD64:
		return ctx.Register(16) // regnum.AMD64_Rip
	case minidump.ArchX86:
		return ctx.Register(8) // regnum.I386_Eip
	case minidump.ArchARM64:
		return ctx.Register(32) // regnum.ARM64_PC
	case minidump.ArchARM32:
		return ctx.Register(15) // r15/pc
	default:
		return 0, false
	}
}
