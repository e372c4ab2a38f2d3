// Package dwarfinfo is the DIE/Attribute interface consumed by the rest of
// the core: it wraps stdlib debug/dwarf (plus debug/elf for container
// access) and the teacher's godwarf/reader/line/frame packages behind the
// small set of operations the evaluator, location resolver, CFI engine,
// and variable reifier actually need. Parsing the container format itself
// (ELF section layout, symbol tables) is explicitly out of scope beyond
// what's needed to hand debug/dwarf its six byte slices.
package dwarfinfo

import (
	"bytes"
	"debug/dwarf"
	"debug/elf"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/sandin/dwarfpost/internal/dwarf/frame"
	"github.com/sandin/dwarfpost/internal/dwarf/godwarf"
	"github.com/sandin/dwarfpost/internal/dwarf/line"
	"github.com/sandin/dwarfpost/internal/dwarf/loclist"
	"github.com/sandin/dwarfpost/internal/dwarf/op"
	"github.com/sandin/dwarfpost/internal/dwarf/reader"
	"github.com/sandin/dwarfpost/internal/locresolve"
)

// Demangler rewrites a mangled symbol name for display. The default is the
// identity function; the CLI's -C flag installs a demangling one.
type Demangler func(string) string

func identity(s string) string { return s }

// Info is the loaded debug information for one executable.
type Info struct {
	dwarfData   *dwarf.Data
	reader      *reader.Reader
	fdes        frame.FrameDescriptionEntries
	lineData    []byte
	lineStrData []byte
	loc         *loclist.Dwarf2Reader
	ptrSize     int
	staticBase  uint64

	Demangler Demangler

	typeCache *lru.Cache[dwarf.Offset, godwarf.Type]
	// lineCache memoizes LineTable by the DW_AT_stmt_list offset that
	// identifies which CU a parsed line program belongs to.
	lineCache map[uint64]*line.DebugLineInfo
}

// typeCacheSize bounds the DIE-offset -> resolved-type cache; unbounded
// growth isn't warranted for a single post-mortem query session but a
// `-F`/`-l` dump over every frame in a large binary can resolve the same
// struct type many times.
const typeCacheSize = 4096

// Load reads an ELF executable's DWARF sections and CFI data.
func Load(path string) (*Info, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dwarfinfo: open %s: %w", path, err)
	}
	defer f.Close()

	dwarfData, err := f.DWARF()
	if err != nil {
		return nil, fmt.Errorf("dwarfinfo: no DWARF data in %s: %w", path, err)
	}

	ptrSize := 8
	if f.Class == elf.ELFCLASS32 {
		ptrSize = 4
	}

	cache, err := lru.New[dwarf.Offset, godwarf.Type](typeCacheSize)
	if err != nil {
		return nil, err
	}

	info := &Info{
		dwarfData: dwarfData,
		reader:    reader.New(dwarfData),
		ptrSize:   ptrSize,
		Demangler: identity,
		typeCache: cache,
		lineCache: make(map[uint64]*line.DebugLineInfo),
	}

	if frameData, err := godwarf.GetDebugSectionElf(f, "frame"); err == nil {
		info.fdes = frame.Parse(frameData, f.ByteOrder, 0, ptrSize)
	} else if ehFrame := f.Section(".eh_frame"); ehFrame != nil {
		if data, err := ehFrame.Data(); err == nil {
			info.fdes = frame.Parse(data, f.ByteOrder, ehFrame.Addr, ptrSize)
		}
	}

	if lineData, err := godwarf.GetDebugSectionElf(f, "line"); err == nil {
		lineStr, _ := godwarf.GetDebugSectionElf(f, "line_str")
		info.lineData = lineData
		info.lineStrData = lineStr
	}

	if locData, err := godwarf.GetDebugSectionElf(f, "loc"); err == nil {
		info.loc = loclist.NewDwarf2Reader(locData, ptrSize)
	}

	return info, nil
}

// DIE wraps a debug/dwarf.Entry with its offset, matching the external
// contract's idempotent die_of_offset lookup.
type DIE struct {
	Entry  *dwarf.Entry
	Offset dwarf.Offset
}

// DieOfOffset looks up the DIE at off.
func (info *Info) DieOfOffset(off dwarf.Offset) (*DIE, error) {
	r := info.dwarfData.Reader()
	r.Seek(off)
	e, err := r.Next()
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, fmt.Errorf("dwarfinfo: no DIE at offset %#x", off)
	}
	return &DIE{Entry: e, Offset: off}, nil
}

// Attr returns die's attribute code, or nil if absent.
func (info *Info) Attr(die *DIE, code dwarf.Attr) *dwarf.Field {
	for i := range die.Entry.Field {
		if die.Entry.Field[i].Attr == code {
			return &die.Entry.Field[i]
		}
	}
	return nil
}

// AttrAsUnsigned returns the unsigned value of die's code attribute, or def
// if absent or not representable as unsigned.
func (info *Info) AttrAsUnsigned(die *DIE, code dwarf.Attr, def uint64) uint64 {
	f := info.Attr(die, code)
	if f == nil {
		return def
	}
	switch v := f.Val.(type) {
	case int64:
		return uint64(v)
	case uint64:
		return v
	default:
		return def
	}
}

// AttrAsString returns the string value of die's code attribute, or def.
func (info *Info) AttrAsString(die *DIE, code dwarf.Attr, def string) string {
	f := info.Attr(die, code)
	if f == nil {
		return def
	}
	if s, ok := f.Val.(string); ok {
		return s
	}
	return def
}

// PCRange returns the DIE's low/high PC, DWARF-5 ranges-list aware via the
// godwarf.Tree it's loaded through.
func (info *Info) PCRange(die *DIE) (low, high uint64, ok bool) {
	tree, err := godwarf.LoadTree(die.Offset, info.dwarfData, info.staticBase)
	if err != nil || tree == nil {
		return 0, 0, false
	}
	if len(tree.Ranges) == 0 {
		return 0, 0, false
	}
	return tree.Ranges[0][0], tree.Ranges[len(tree.Ranges)-1][1], true
}

// SrcFiles returns the source file table for the compile unit die, indexed
// from 0 (DWARF file numbers are 1-based in DWARF <5 and are adjusted here).
func (info *Info) SrcFiles(cu *DIE) []string {
	dl := info.LineTable(cu)
	if dl == nil {
		return nil
	}
	out := make([]string, len(dl.FileNames))
	for i, fe := range dl.FileNames {
		out[i] = fe.Path
	}
	return out
}

// LineTable returns the decoded line table for cu, or nil. Line programs
// are keyed by cu's DW_AT_stmt_list offset into .debug_line rather than
// just taking the first parsed table, so addresses in any CU but the first
// of a multi-CU executable resolve against their own line program instead
// of whichever happened to be parsed first.
func (info *Info) LineTable(cu *DIE) *line.DebugLineInfo {
	if cu == nil || info.lineData == nil {
		return nil
	}
	off := info.AttrAsUnsigned(cu, dwarf.AttrStmtList, 0)
	if dl, ok := info.lineCache[off]; ok {
		return dl
	}
	if off >= uint64(len(info.lineData)) {
		return nil
	}
	compDir := info.AttrAsString(cu, dwarf.AttrCompDir, "")
	dl := line.Parse(compDir, bytes.NewBuffer(info.lineData[off:]), info.lineStrData, nil, info.staticBase, false, info.ptrSize)
	info.lineCache[off] = dl
	return dl
}

// NextCUHeader advances a compile-unit iteration, returning nil, nil when
// exhausted.
func (info *Info) NextCUHeader() (*DIE, error) {
	e, err := info.reader.NextCompileUnit()
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, nil
	}
	return &DIE{Entry: e, Offset: e.Offset}, nil
}

// FdeForPC returns the frame description entry covering pc.
func (info *Info) FdeForPC(pc uint64) (*frame.FrameDescriptionEntry, error) {
	return info.fdes.FDEForPC(pc)
}

// Tree loads die's subtree, used by the variable reifier to walk locals and
// parameters in scope at a PC.
func (info *Info) Tree(die *DIE) (*godwarf.Tree, error) {
	return godwarf.LoadTree(die.Offset, info.dwarfData, info.staticBase)
}

// Type resolves die's DW_AT_type attribute through the bounded cache.
func (info *Info) Type(die *DIE) (godwarf.Type, error) {
	typeAttr := info.Attr(die, dwarf.AttrType)
	if typeAttr == nil {
		return nil, fmt.Errorf("dwarfinfo: DIE at %#x has no type attribute", die.Offset)
	}
	off, ok := typeAttr.Val.(dwarf.Offset)
	if !ok {
		return nil, fmt.Errorf("dwarfinfo: DW_AT_type at %#x is not an offset", die.Offset)
	}
	if t, ok := info.typeCache.Get(off); ok {
		return t, nil
	}
	t, err := godwarf.ReadType(info.dwarfData, 0, off, map[dwarf.Offset]godwarf.Type{})
	if err != nil {
		return nil, err
	}
	info.typeCache.Add(off, t)
	return t, nil
}

// Location resolves die's code attribute (DW_AT_location or
// DW_AT_frame_base) into a LocationList, handling both the inline exprloc
// form and the pre-DWARF5 loclistptr form (an offset into .debug_loc).
func (info *Info) Location(die *DIE, code dwarf.Attr, cuLow uint64) (locresolve.LocationList, error) {
	f := info.Attr(die, code)
	if f == nil {
		return locresolve.LocationList{}, fmt.Errorf("dwarfinfo: DIE at %#x has no attribute %v", die.Offset, code)
	}
	switch v := f.Val.(type) {
	case []byte:
		expr, err := op.Decode(v)
		if err != nil {
			return locresolve.LocationList{}, err
		}
		return locresolve.Single(expr), nil
	case int64:
		return info.loclistAt(int(v), cuLow)
	case uint64:
		return info.loclistAt(int(v), cuLow)
	default:
		return locresolve.LocationList{}, fmt.Errorf("dwarfinfo: attribute %v has unsupported form %T", code, f.Val)
	}
}

// loclistAt decodes every range at offset off in the pre-DWARF5 loclist
// section into a LocationList rebased at cuLow.
func (info *Info) loclistAt(off int, cuLow uint64) (locresolve.LocationList, error) {
	if info.loc == nil || info.loc.Empty() {
		return locresolve.LocationList{}, fmt.Errorf("dwarfinfo: no .debug_loc section loaded")
	}
	info.loc.Seek(off)
	var list locresolve.LocationList
	list.CuLow = cuLow
	var e loclist.Entry
	for info.loc.Next(&e) {
		if e.BaseAddressSelection() {
			continue
		}
		expr, err := op.Decode(e.Instr)
		if err != nil {
			return locresolve.LocationList{}, err
		}
		list.Ranges = append(list.Ranges, locresolve.LocationRange{Low: e.LowPC, High: e.HighPC, Expr: expr})
	}
	return list, nil
}

// Demangled applies the installed Demangler to name.
func (info *Info) Demangled(name string) string {
	return info.Demangler(name)
}
