// Package locresolve resolves a DWARF location attribute (a bare
// expression, or a location list with multiple PC-qualified ranges) to the
// single expression that applies at a query PC.
package locresolve

import (
	"math"

	"github.com/sandin/dwarfpost/internal/dwarf/op"
)

// LocationRange is one PC-qualified entry of a location list: the
// expression in Expr applies when CuLow+Low <= pc < CuLow+High.
type LocationRange struct {
	Low, High uint64
	Expr      *op.Expression
}

// LocationList is the ranges attached to one location attribute, plus the
// compile unit's low PC they are relative to.
type LocationList struct {
	CuLow  uint64
	Ranges []LocationRange
}

// Single builds a one-range list for a bare block/exprloc attribute, which
// the DIE/Attribute interface surfaces as a single (0, MAX) range.
func Single(expr *op.Expression) LocationList {
	return LocationList{Ranges: []LocationRange{{Low: 0, High: math.MaxUint64, Expr: expr}}}
}

// Resolve picks the expression applying at pc and evaluates it. Both range
// endpoints are rebased by CuLow: [CuLow+Low, CuLow+High) — per the DWARF
// convention, not the High-rebased-by-itself variant some tooling
// (including the reference implementation this package descends from)
// mistakenly uses.
func Resolve(list LocationList, pc uint64, ctx op.EvalContext) op.Result {
	if len(list.Ranges) == 1 && list.Ranges[0].Low == 0 && list.Ranges[0].High == math.MaxUint64 {
		return op.Evaluate(list.Ranges[0].Expr, ctx)
	}

	for _, r := range list.Ranges {
		low := list.CuLow + r.Low
		high := list.CuLow + r.High
		if pc >= low && pc < high {
			return op.Evaluate(r.Expr, ctx)
		}
	}

	return op.Result{
		Kind: op.KindInvalid,
		Err:  &op.EvalError{Code: op.ErrAddressInvalid, AddrValue: pc},
	}
}
