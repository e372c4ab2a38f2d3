package op

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/sandin/dwarfpost/internal/dwarf/leb128"
)

// Op is a single decoded expression operation. Operand holds the op's sole
// numeric operand for opcodes that take one (consts, breg/bregx register
// number folded into Reg, pick's index, skip/bra's jump target offset).
// Opcodes with no operand leave Operand at zero.
type Op struct {
	Opcode  Opcode
	Offset  uint64 // byte offset of this op within its expression
	Reg     uint64 // register number, for regx/bregx/breg*/reg*
	Operand int64  // signed/unsigned operand per opcode, sign-extended where relevant
}

// Expression is a decoded, offset-indexed DWARF expression: the unit the
// evaluator runs and the unit findByOffset (invariant P1) operates on.
type Expression struct {
	Ops      []Op
	byOffset map[uint64]int
}

// Decode parses a raw DWARF expression byte stream into an Expression.
// It never panics: malformed trailing bytes produce an error at the offset
// of the truncated op. leb128.Decode{Signed,Unsigned} panic on a LEB128
// operand truncated mid-sequence (no terminating byte before EOF); that
// panic is recovered here and turned into the same kind of error as any
// other truncated operand.
func Decode(raw []byte) (expr *Expression, err error) {
	var curOffset uint64
	defer func() {
		if r := recover(); r != nil {
			expr, err = nil, fmt.Errorf("op: truncated LEB128 operand at offset %d: %v", curOffset, r)
		}
	}()

	r := bytes.NewReader(raw)
	e := &Expression{byOffset: make(map[uint64]int, len(raw))}

	for r.Len() > 0 {
		offset := uint64(len(raw) - r.Len())
		curOffset = offset
		opcodeByte, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("op: truncated expression at offset %d: %w", offset, err)
		}
		opcode := Opcode(opcodeByte)

		o := Op{Opcode: opcode, Offset: offset}

		switch {
		case opcode >= DW_OP_lit0 && opcode <= DW_OP_lit31:
			o.Operand = int64(opcode - DW_OP_lit0)
		case opcode >= DW_OP_reg0 && opcode <= DW_OP_reg31:
			o.Reg = uint64(opcode - DW_OP_reg0)
		case opcode >= DW_OP_breg0 && opcode <= DW_OP_breg31:
			o.Reg = uint64(opcode - DW_OP_breg0)
			v, _ := leb128.DecodeSigned(r)
			o.Operand = v
		default:
			switch opcode {
			case DW_OP_addr:
				var buf [8]byte
				if _, err := io.ReadFull(r, buf[:]); err != nil {
					return nil, fmt.Errorf("op: truncated DW_OP_addr at offset %d: %w", offset, err)
				}
				o.Operand = int64(binary.LittleEndian.Uint64(buf[:]))
			case DW_OP_const1u:
				b, err := r.ReadByte()
				if err != nil {
					return nil, fmt.Errorf("op: truncated const1u at offset %d: %w", offset, err)
				}
				o.Operand = int64(b)
			case DW_OP_const1s:
				b, err := r.ReadByte()
				if err != nil {
					return nil, fmt.Errorf("op: truncated const1s at offset %d: %w", offset, err)
				}
				o.Operand = int64(int8(b))
			case DW_OP_const2u:
				var buf [2]byte
				if _, err := io.ReadFull(r, buf[:]); err != nil {
					return nil, fmt.Errorf("op: truncated const2u at offset %d: %w", offset, err)
				}
				o.Operand = int64(binary.LittleEndian.Uint16(buf[:]))
			case DW_OP_const2s:
				var buf [2]byte
				if _, err := io.ReadFull(r, buf[:]); err != nil {
					return nil, fmt.Errorf("op: truncated const2s at offset %d: %w", offset, err)
				}
				o.Operand = int64(int16(binary.LittleEndian.Uint16(buf[:])))
			case DW_OP_const4u:
				var buf [4]byte
				if _, err := io.ReadFull(r, buf[:]); err != nil {
					return nil, fmt.Errorf("op: truncated const4u at offset %d: %w", offset, err)
				}
				o.Operand = int64(binary.LittleEndian.Uint32(buf[:]))
			case DW_OP_const4s:
				var buf [4]byte
				if _, err := io.ReadFull(r, buf[:]); err != nil {
					return nil, fmt.Errorf("op: truncated const4s at offset %d: %w", offset, err)
				}
				o.Operand = int64(int32(binary.LittleEndian.Uint32(buf[:])))
			case DW_OP_const8u, DW_OP_const8s:
				var buf [8]byte
				if _, err := io.ReadFull(r, buf[:]); err != nil {
					return nil, fmt.Errorf("op: truncated const8 at offset %d: %w", offset, err)
				}
				o.Operand = int64(binary.LittleEndian.Uint64(buf[:]))
			case DW_OP_constu:
				v, _ := leb128.DecodeUnsigned(r)
				o.Operand = int64(v)
			case DW_OP_consts:
				v, _ := leb128.DecodeSigned(r)
				o.Operand = v
			case DW_OP_pick, DW_OP_deref_size, DW_OP_xderef_size:
				b, err := r.ReadByte()
				if err != nil {
					return nil, fmt.Errorf("op: truncated %s at offset %d: %w", opcode.Name(), offset, err)
				}
				o.Operand = int64(b)
			case DW_OP_plus_uconst:
				v, _ := leb128.DecodeUnsigned(r)
				o.Operand = int64(v)
			case DW_OP_fbreg:
				v, _ := leb128.DecodeSigned(r)
				o.Operand = v
			case DW_OP_regx:
				v, _ := leb128.DecodeUnsigned(r)
				o.Reg = v
			case DW_OP_bregx:
				reg, _ := leb128.DecodeUnsigned(r)
				off, _ := leb128.DecodeSigned(r)
				o.Reg = reg
				o.Operand = off
			case DW_OP_skip, DW_OP_bra:
				var buf [2]byte
				if _, err := io.ReadFull(r, buf[:]); err != nil {
					return nil, fmt.Errorf("op: truncated %s at offset %d: %w", opcode.Name(), offset, err)
				}
				o.Operand = int64(int16(binary.LittleEndian.Uint16(buf[:])))
			case DW_OP_piece:
				v, _ := leb128.DecodeUnsigned(r)
				o.Operand = int64(v)
			case DW_OP_bit_piece:
				sz, _ := leb128.DecodeUnsigned(r)
				off, _ := leb128.DecodeUnsigned(r)
				o.Operand = int64(sz)
				o.Reg = off
			case DW_OP_implicit_value:
				n, _ := leb128.DecodeUnsigned(r)
				o.Operand = int64(n)
				buf := make([]byte, n)
				if _, err := io.ReadFull(r, buf); err != nil {
					return nil, fmt.Errorf("op: truncated implicit_value at offset %d: %w", offset, err)
				}
			case DW_OP_call2:
				var buf [2]byte
				if _, err := io.ReadFull(r, buf[:]); err != nil {
					return nil, fmt.Errorf("op: truncated call2 at offset %d: %w", offset, err)
				}
			case DW_OP_call4:
				var buf [4]byte
				if _, err := io.ReadFull(r, buf[:]); err != nil {
					return nil, fmt.Errorf("op: truncated call4 at offset %d: %w", offset, err)
				}
			case DW_OP_call_ref:
				var buf [4]byte
				if _, err := io.ReadFull(r, buf[:]); err != nil {
					return nil, fmt.Errorf("op: truncated call_ref at offset %d: %w", offset, err)
				}
			}
		}

		e.byOffset[offset] = len(e.Ops)
		e.Ops = append(e.Ops, o)
	}

	return e, nil
}

// findByOffset returns the index of the op whose Offset equals target, and
// true, or (0, false) if no such op exists (invariant P1).
func (e *Expression) findByOffset(target uint64) (int, bool) {
	idx, ok := e.byOffset[target]
	return idx, ok
}
