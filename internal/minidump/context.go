package minidump

import (
	"encoding/binary"
	"fmt"

	"github.com/sandin/dwarfpost/internal/dwarf/regnum"
)

// Standalone (non-legacy) context byte sizes, unique enough per architecture
// to disambiguate on data_size alone, matching breakpad's own context
// structs for amd64 and the modern arm64 layout.
const (
	contextSizeAMD64      = 1232
	contextSizeX86        = 716
	contextSizeARM32      = 348
	contextSizeARM64      = 912
	contextSizeARM64Legacy = 688
)

// Context-type mask bits carried in a context_flags word's high byte,
// mirroring breakpad's MD_CONTEXT_* CPU-type constants.
const (
	cpuTypeX86   = 0x00010000
	cpuTypeARM32 = 0x40000000
	cpuTypeAMD64 = 0x00100000
	cpuTypeARM64 = 0x80000000
)

// CPUContext is an architecture-tagged register snapshot, keyed by DWARF
// register number so it plugs directly into an op.RegisterProvider.
type CPUContext struct {
	Arch      Arch
	Registers map[uint64]uint64
}

// Register implements op.RegisterProvider's signature directly.
func (c *CPUContext) Register(regnum uint64) (uint64, bool) {
	if c == nil {
		return 0, false
	}
	v, ok := c.Registers[regnum]
	return v, ok
}

// decodeContext dispatches on data size, falling back to the context_flags
// CPU-type mask when the size is ambiguous, per the spec's disambiguation
// rule.
func decodeContext(data []byte) (*CPUContext, error) {
	switch len(data) {
	case contextSizeAMD64:
		return decodeAMD64Context(data), nil
	case contextSizeARM64Legacy:
		return convertLegacyARM64Context(data), nil
	case contextSizeARM64:
		return decodeARM64Context(data), nil
	case contextSizeX86:
		return decodeX86Context(data), nil
	case contextSizeARM32:
		return decodeARM32Context(data), nil
	}

	if len(data) < 4 {
		return nil, fmt.Errorf("minidump: context too short to carry context_flags (%d bytes)", len(data))
	}
	flags := binary.LittleEndian.Uint32(data)
	switch {
	case flags&cpuTypeAMD64 != 0:
		return decodeAMD64Context(data), nil
	case flags&cpuTypeARM64 != 0:
		return decodeARM64Context(data), nil
	case flags&cpuTypeARM32 != 0:
		return decodeARM32Context(data), nil
	case flags&cpuTypeX86 != 0:
		return decodeX86Context(data), nil
	default:
		return nil, fmt.Errorf("minidump: unrecognized context_flags %#x for %d-byte context", flags, len(data))
	}
}

// decodeAMD64Context reads the general-purpose registers out of a breakpad
// MDRawContextAMD64-shaped buffer. The GP block starts at offset 0x78,
// after the home, flag, segment and debug-register fields, and holds 16
// u64 registers in rax, rcx, rdx, rbx, rsp, rbp, rsi, rdi, r8..r15 order
// followed by rip. Flags, segment and vector registers are not read.
func decodeAMD64Context(data []byte) *CPUContext {
	c := newCPUContext(ArchAMD64)
	const gpOffset = 0x78 // offset of P1Home..Rax block in MDRawContextAMD64
	gp := []uint64{
		regnum.AMD64_Rax, regnum.AMD64_Rcx, regnum.AMD64_Rdx, regnum.AMD64_Rbx,
		regnum.AMD64_Rsp, regnum.AMD64_Rbp, regnum.AMD64_Rsi, regnum.AMD64_Rdi,
		regnum.AMD64_R8, regnum.AMD64_R9, regnum.AMD64_R10, regnum.AMD64_R11,
		regnum.AMD64_R12, regnum.AMD64_R13, regnum.AMD64_R14, regnum.AMD64_R15,
		regnum.AMD64_Rip,
	}
	readRegisterBlock(c, data, gpOffset, gp)
	return c
}

func decodeX86Context(data []byte) *CPUContext {
	c := newCPUContext(ArchX86)
	const gpOffset = 0x9c // offset of the GP register block in MDRawContextX86
	gp32 := []uint64{
		regnum.I386_Edi, regnum.I386_Esi, regnum.I386_Ebx, regnum.I386_Edx,
		regnum.I386_Ecx, regnum.I386_Eax, regnum.I386_Ebp, regnum.I386_Eip,
		0, // cs, not a distinct DWARF-mapped slot here
		regnum.I386_Eflags, regnum.I386_Esp,
	}
	readRegisterBlock32(c, data, gpOffset, gp32)
	return c
}

// decodeARM32Context reads r0-r15 out of a 32-bit ARM context; cpsr is not
// read.
func decodeARM32Context(data []byte) *CPUContext {
	c := newCPUContext(ArchARM32)
	const gpOffset = 0x08
	for i := 0; i < 16; i++ {
		off := gpOffset + i*4
		if off+4 > len(data) {
			break
		}
		c.Registers[uint64(i)] = uint64(binary.LittleEndian.Uint32(data[off:]))
	}
	return c
}

// decodeARM64Context reads x0-x30, sp, pc out of the modern ARM64 layout.
func decodeARM64Context(data []byte) *CPUContext {
	c := newCPUContext(ArchARM64)
	const iregsOffset = 0x10
	readARM64IRegs(c, data, iregsOffset)
	return c
}

// convertLegacyARM64Context decodes the legacy (pre-breakpad-update) ARM64
// layout into the modern register numbering. Only x0-x30, sp and pc are
// read; cpsr and the FPU registers (regs, fpcr, fpsr) are not carried over.
func convertLegacyARM64Context(data []byte) *CPUContext {
	c := newCPUContext(ArchARM64)
	const legacyIRegsOffset = 0x08
	readARM64IRegs(c, data, legacyIRegsOffset)
	// Breakpoint/watchpoint shadow registers (hardware debug state) have no
	// DWARF register number and are intentionally dropped here rather than
	// carried forward, matching "zeroing breakpoint/watchpoint shadows".
	return c
}

func readARM64IRegs(c *CPUContext, data []byte, off int) {
	for i := 0; i <= 30; i++ {
		regOff := off + i*8
		if regOff+8 > len(data) {
			return
		}
		c.Registers[regnum.ARM64_X0+uint64(i)] = binary.LittleEndian.Uint64(data[regOff:])
	}
	spOff := off + 31*8
	if spOff+16 <= len(data) {
		c.Registers[regnum.ARM64_SP] = binary.LittleEndian.Uint64(data[spOff:])
		c.Registers[regnum.ARM64_PC] = binary.LittleEndian.Uint64(data[spOff+8:])
	}
}

func newCPUContext(arch Arch) *CPUContext {
	return &CPUContext{Arch: arch, Registers: make(map[uint64]uint64)}
}

func readRegisterBlock(c *CPUContext, data []byte, off int, dwarfRegs []uint64) {
	for i, reg := range dwarfRegs {
		regOff := off + i*8
		if regOff+8 > len(data) {
			return
		}
		c.Registers[reg] = binary.LittleEndian.Uint64(data[regOff:])
	}
}

func readRegisterBlock32(c *CPUContext, data []byte, off int, dwarfRegs []uint64) {
	for i, reg := range dwarfRegs {
		regOff := off + i*4
		if regOff+4 > len(data) {
			return
		}
		if reg == 0 && i == 8 {
			continue // cs placeholder, no DWARF slot recorded
		}
		c.Registers[reg] = uint64(binary.LittleEndian.Uint32(data[regOff:]))
	}
}
