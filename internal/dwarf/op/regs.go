package op

import "encoding/binary"

// DwarfRegisters is a fixed snapshot of one thread's CPU context, indexed by
// DWARF register number. Unlike a live debugger's register set it is never
// mutated or lazily fetched: every register a snapshot's CPU context holds
// is decoded up front by the snapshot reader.
type DwarfRegisters struct {
	StaticBase uint64
	ByteOrder  binary.ByteOrder
	PCRegNum   uint64
	SPRegNum   uint64
	BPRegNum   uint64

	regs []*DwarfRegister
}

// DwarfRegister is one register's value, with an optional raw-byte form for
// registers wider than 64 bits (vector/FPU regs).
type DwarfRegister struct {
	Uint64Val uint64
	Bytes     []byte
}

// NewDwarfRegisters returns an empty register set ready for AddReg.
func NewDwarfRegisters(staticBase uint64, byteOrder binary.ByteOrder, pcRegNum, spRegNum, bpRegNum uint64) *DwarfRegisters {
	return &DwarfRegisters{
		StaticBase: staticBase,
		ByteOrder:  byteOrder,
		PCRegNum:   pcRegNum,
		SPRegNum:   spRegNum,
		BPRegNum:   bpRegNum,
	}
}

// Reg returns register idx, or nil if the snapshot's CPU context never
// defined it.
func (regs *DwarfRegisters) Reg(idx uint64) *DwarfRegister {
	if idx >= uint64(len(regs.regs)) {
		return nil
	}
	return regs.regs[idx]
}

// Uint64Val returns the value of register idx, or 0 if undefined.
func (regs *DwarfRegisters) Uint64Val(idx uint64) uint64 {
	reg := regs.Reg(idx)
	if reg == nil {
		return 0
	}
	return reg.Uint64Val
}

// Bytes returns the raw byte value of register idx, synthesizing one from
// Uint64Val in ByteOrder if the register was added without an explicit
// byte form.
func (regs *DwarfRegisters) Bytes(idx uint64) []byte {
	reg := regs.Reg(idx)
	if reg == nil {
		return nil
	}
	if reg.Bytes == nil {
		buf := make([]byte, 8)
		regs.ByteOrder.PutUint64(buf, reg.Uint64Val)
		reg.Bytes = buf
	}
	return reg.Bytes
}

func (regs *DwarfRegisters) PC() uint64 { return regs.Uint64Val(regs.PCRegNum) }
func (regs *DwarfRegisters) SP() uint64 { return regs.Uint64Val(regs.SPRegNum) }
func (regs *DwarfRegisters) BP() uint64 { return regs.Uint64Val(regs.BPRegNum) }

// AddReg records register idx's value, growing the backing slice as needed.
func (regs *DwarfRegisters) AddReg(idx uint64, reg *DwarfRegister) {
	if idx >= uint64(len(regs.regs)) {
		grown := make([]*DwarfRegister, idx+1)
		copy(grown, regs.regs)
		regs.regs = grown
	}
	regs.regs[idx] = reg
}

// CurrentSize returns the number of register slots known to regs, including
// any unset gaps below the highest added index.
func (regs *DwarfRegisters) CurrentSize() int { return len(regs.regs) }

// DwarfRegisterFromUint64 wraps a scalar register value.
func DwarfRegisterFromUint64(v uint64) *DwarfRegister {
	return &DwarfRegister{Uint64Val: v}
}

// DwarfRegisterFromBytes decodes a little-endian register value from its
// raw bytes, retaining them for registers wider than 64 bits.
func DwarfRegisterFromBytes(b []byte) *DwarfRegister {
	var v uint64
	n := len(b)
	if n > 8 {
		n = 8
	}
	for i := n - 1; i >= 0; i-- {
		v = (v << 8) | uint64(b[i])
	}
	return &DwarfRegister{Uint64Val: v, Bytes: b}
}

// Provider adapts regs into a RegisterProvider for use as an EvalContext's
// Register field.
func (regs *DwarfRegisters) Provider() RegisterProvider {
	return func(regnum uint64) (uint64, bool) {
		reg := regs.Reg(regnum)
		if reg == nil {
			return 0, false
		}
		return reg.Uint64Val, true
	}
}
