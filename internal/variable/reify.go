// Package variable turns a resolved location (an address or a bare value)
// plus a DWARF type into the bytes and printable form of a variable.
package variable

import (
	"fmt"
	"strings"

	"github.com/sandin/dwarfpost/internal/dwarf/godwarf"
	"github.com/sandin/dwarfpost/internal/dwarf/op"
	"github.com/sandin/dwarfpost/internal/locresolve"
)

// Reify evaluates list at pc, reads the variable's bytes from memory (or
// from the evaluated value itself), and formats them according to typ.
func Reify(typ godwarf.Type, list locresolve.LocationList, ctx op.EvalContext, pc uint64) string {
	res := locresolve.Resolve(list, pc, ctx)
	if !res.Valid() {
		if res.Err != nil && res.Err.Code == op.ErrAddressInvalid {
			return fmt.Sprintf("unknown(addr=0x%x)", res.Err.AddrValue)
		}
		return "unknown"
	}

	size := int(typ.Size())
	if size < 0 {
		size = 8
	}

	var bytes []byte
	switch res.Kind {
	case op.KindValue:
		n := 8
		if size < n {
			n = size
		}
		bytes = leBytes(res.Value, n)
	case op.KindAddress:
		if ctx.Memory == nil {
			return "unknown"
		}
		data, ok := ctx.Memory(res.Value, size)
		if !ok {
			return fmt.Sprintf("unknown(addr=0x%x)", res.Value)
		}
		bytes = data
	}

	return format(typ, bytes)
}

func format(typ godwarf.Type, data []byte) string {
	n := int(typ.Size())
	if n < 0 || n > len(data) {
		n = len(data)
	}
	data = data[:n]

	if _, isPtr := typ.(*godwarf.PtrType); isPtr {
		v := leUint64(data)
		if v == 0 {
			return "nullptr"
		}
		return fmt.Sprintf("0x%x", v)
	}

	parts := make([]string, len(data))
	for i, b := range data {
		parts[i] = fmt.Sprintf("%02x", b)
	}
	return strings.Join(parts, " ")
}

func leBytes(v uint64, n int) []byte {
	b := make([]byte, n)
	for i := 0; i < n; i++ {
		b[i] = byte(v >> (8 * i))
	}
	return b
}

func leUint64(data []byte) uint64 {
	var v uint64
	for i := len(data) - 1; i >= 0; i-- {
		v = (v << 8) | uint64(data[i])
	}
	return v
}
