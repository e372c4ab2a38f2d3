// Command dwarf2line resolves crash addresses to source locations, frames,
// and variable values using the post-mortem debug-info core.
package main

import (
	"debug/dwarf"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/arch/x86/x86asm"
	"gopkg.in/yaml.v2"

	"github.com/sandin/dwarfpost/internal/demangle"
	"github.com/sandin/dwarfpost/internal/dwarf/frame"
	"github.com/sandin/dwarfpost/internal/dwarf/godwarf"
	"github.com/sandin/dwarfpost/internal/dwarf/op"
	"github.com/sandin/dwarfpost/internal/dwarf/reader"
	"github.com/sandin/dwarfpost/internal/dwarfinfo"
	"github.com/sandin/dwarfpost/internal/locresolve"
	"github.com/sandin/dwarfpost/internal/logflags"
	"github.com/sandin/dwarfpost/internal/minidump"
	"github.com/sandin/dwarfpost/internal/snapshot"
	"github.com/sandin/dwarfpost/internal/variable"
)

var (
	exePath      string
	contextPath  string
	showFuncs    bool
	demangleSym  bool
	showLocals   bool
	showParams   bool
	showFrames   bool
	verbose      bool
	disasm       bool
	outputFormat string
)

// variableDump is the --output yaml record for one local or parameter.
type variableDump struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
}

func main() {
	root := &cobra.Command{
		Use:   "dwarf2line [flags] <addr>...",
		Short: "Resolve crash addresses to source locations using DWARF debug info.",
		Run:   run,
	}
	root.Flags().StringVarP(&exePath, "exe", "e", "", "path to the executable carrying DWARF debug info (required)")
	root.Flags().StringVarP(&contextPath, "context", "c", "", "path to a minidump snapshot")
	root.Flags().BoolVarP(&showFuncs, "functions", "f", false, "print function names")
	root.Flags().BoolVarP(&demangleSym, "demangle", "C", false, "demangle Itanium-mangled function names")
	root.Flags().BoolVarP(&showLocals, "locals", "l", false, "print local variable values")
	root.Flags().BoolVarP(&showParams, "params", "p", false, "print parameter values")
	root.Flags().BoolVarP(&showFrames, "frames", "F", false, "list every function with an address range in the debug info instead of a single lookup")
	root.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose tracing")
	root.Flags().BoolVar(&disasm, "disasm", false, "decode the instructions at the crashing address")
	root.Flags().StringVar(&outputFormat, "output", "text", `output format for --locals/--params ("text" or "yaml")`)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(-1)
	}
}

func run(cmd *cobra.Command, args []string) {
	logflags.Setup(verbose, "")
	log := logflags.UnwindLogger()

	if exePath == "" {
		fmt.Fprintln(os.Stderr, "dwarf2line: -e/--exe is required")
		os.Exit(-1)
	}

	info, err := dwarfinfo.Load(exePath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(-1)
	}
	if demangleSym {
		info.Demangler = demangle.Itanium
	}

	var snap *snapshot.Snapshot
	if contextPath != "" {
		md, err := minidump.Open(contextPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(-1)
		}
		snap = snapshot.New(md)
	}

	if showFrames {
		dumpAllFrames(info)
		return
	}

	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "dwarf2line: missing address argument")
		os.Exit(-1)
	}

	for _, a := range args {
		addr, err := strconv.ParseUint(strings.TrimPrefix(a, "0x"), 16, 64)
		if err != nil {
			fmt.Fprintf(os.Stderr, "dwarf2line: bad address %q: %v\n", a, err)
			os.Exit(-1)
		}
		if log.Logger.Level >= logrus.DebugLevel {
			log.Debugf("resolving address %#x", addr)
		}
		resolveOne(info, snap, addr)
	}
}

func resolveOne(info *dwarfinfo.Info, snap *snapshot.Snapshot, addr uint64) {
	cu, die, fnTree := findFunction(info, addr)
	if die == nil {
		fmt.Printf("%#x: ?? (no debug info)\n", addr)
		return
	}

	name := info.AttrAsString(die, dwarf.AttrName, "??")
	if info.Demangler != nil {
		name = info.Demangled(name)
	}

	var basePC uint64
	if len(fnTree.Ranges) > 0 {
		basePC = fnTree.Ranges[0][0]
	}
	file, line := sourceLine(info, cu, basePC, addr)

	if showFuncs {
		fmt.Printf("%#x: %s at %s:%d\n", addr, name, file, line)
	} else {
		fmt.Printf("%#x: %s:%d\n", addr, file, line)
	}

	if (showLocals || showParams) && snap != nil {
		ctx := op.EvalContext{
			PC:       addr,
			Register: snap.RegisterProvider(),
			Memory:   snap.MemoryProvider(),
			Cfa:      cfaProvider(info, snap),
			AddrSize: 8,
		}
		ctx.FrameBase = frameBaseProvider(info, die, basePC, ctx)
		printVariables(info, fnTree, addr, line, ctx, showParams, showLocals)
	}

	if disasm && snap != nil {
		printDisasm(snap, addr)
	}
}

// printDisasm decodes a handful of x86-64 instructions starting at addr,
// reading the bytes from the snapshot's mapped memory. It stops at the
// first read or decode failure rather than guessing past unmapped memory.
func printDisasm(snap *snapshot.Snapshot, addr uint64) {
	const windowBytes = 64
	code, ok := snap.Memory(addr, windowBytes)
	if !ok {
		return
	}
	off := 0
	for off < len(code) {
		inst, err := x86asm.Decode(code[off:], 64)
		if err != nil {
			break
		}
		fmt.Printf("  %#x: %s\n", addr+uint64(off), x86asm.GoSyntax(inst, addr+uint64(off), nil))
		off += inst.Len
	}
}

// cfaProvider resolves the canonical frame address at pc via the unwinder,
// feeding DW_OP_call_frame_cfa (and through it the frame base that
// DW_OP_fbreg reads) without the CLI needing to know the CFI row format
// itself.
func cfaProvider(info *dwarfinfo.Info, snap *snapshot.Snapshot) op.CfaProvider {
	return func(pc uint64) (uint64, bool) {
		fde, err := info.FdeForPC(pc)
		if err != nil {
			return 0, false
		}
		cfa, ok, _ := frame.Resolve(fde, pc, snap.RegisterProvider(), snap.MemoryProvider())
		return cfa, ok
	}
}

// frameBaseProvider resolves fn's DW_AT_frame_base location list and wraps
// it as an op.FrameBaseProvider, the thing DW_OP_fbreg actually reads.
// Most frame bases are themselves just DW_OP_call_frame_cfa, so the
// context used to evaluate it carries Cfa but never FrameBase, breaking
// the fbreg -> frame_base -> fbreg cycle.
func frameBaseProvider(info *dwarfinfo.Info, fn *dwarfinfo.DIE, cuLow uint64, ctx op.EvalContext) op.FrameBaseProvider {
	list, err := info.Location(fn, dwarf.AttrFrameBase, cuLow)
	if err != nil {
		return nil
	}
	childCtx := ctx
	childCtx.FrameBase = nil
	return func(pc uint64) op.Result {
		return locresolve.Resolve(list, pc, childCtx)
	}
}

func findFunction(info *dwarfinfo.Info, addr uint64) (*dwarfinfo.DIE, *dwarfinfo.DIE, *godwarf.Tree) {
	for {
		cu, err := info.NextCUHeader()
		if err != nil || cu == nil {
			break
		}
		tree, err := info.Tree(cu)
		if err != nil || tree == nil {
			continue
		}
		if fn := findFunctionInTree(tree, addr); fn != nil {
			die, err := info.DieOfOffset(fn.Offset)
			if err != nil {
				return nil, nil, nil
			}
			return cu, die, fn
		}
	}
	return nil, nil, nil
}

func findFunctionInTree(tree *godwarf.Tree, addr uint64) *godwarf.Tree {
	if tree.Tag == dwarf.TagSubprogram && tree.ContainsPC(addr) {
		return tree
	}
	for _, c := range tree.Children {
		if found := findFunctionInTree(c, addr); found != nil {
			return found
		}
	}
	return nil
}

func sourceLine(info *dwarfinfo.Info, cu *dwarfinfo.DIE, basePC, addr uint64) (string, int) {
	lt := info.LineTable(cu)
	if lt == nil {
		return "??", 0
	}
	file, line := lt.PCToLine(basePC, addr)
	if file == "" {
		return "??", 0
	}
	return file, line
}

func printVariables(info *dwarfinfo.Info, fnTree *godwarf.Tree, pc uint64, line int, ctx op.EvalContext, params, locals bool) {
	if fnTree == nil {
		return
	}
	flags := reader.VariablesOnlyVisible | reader.VariablesSkipInlinedSubroutines | reader.VariablesTrustDeclLine
	var dumps []variableDump
	for _, v := range reader.Variables(fnTree, pc, line, flags) {
		isParam := v.Tag == dwarf.TagFormalParameter
		isLocal := v.Tag == dwarf.TagVariable
		if (isParam && !params) || (isLocal && !locals) || (!isParam && !isLocal) {
			continue
		}
		nameStr, _ := v.Val(dwarf.AttrName).(string)
		if nameStr == "" {
			nameStr = "<anonymous>"
		}
		dumps = append(dumps, variableDump{Name: nameStr, Value: reifyVariable(info, v.Tree, pc, ctx)})
	}

	if outputFormat == "yaml" {
		out, err := yaml.Marshal(dumps)
		if err == nil {
			fmt.Print(string(out))
		}
		return
	}
	for _, d := range dumps {
		fmt.Printf("  %s = %s\n", d.Name, d.Value)
	}
}

func reifyVariable(info *dwarfinfo.Info, c *godwarf.Tree, pc uint64, ctx op.EvalContext) string {
	die, err := info.DieOfOffset(c.Offset)
	if err != nil {
		return "unknown"
	}
	typ, err := info.Type(die)
	if err != nil {
		return "unknown"
	}
	var cuLow uint64
	if len(c.Ranges) > 0 {
		cuLow = c.Ranges[0][0]
	}
	list, err := info.Location(die, dwarf.AttrLocation, cuLow)
	if err != nil {
		return "unknown"
	}
	return variable.Reify(typ, list, ctx, pc)
}

func dumpAllFrames(info *dwarfinfo.Info) {
	for {
		cu, err := info.NextCUHeader()
		if err != nil || cu == nil {
			break
		}
		tree, err := info.Tree(cu)
		if err != nil || tree == nil {
			continue
		}
		dumpFrameTree(info, tree)
	}
}

func dumpFrameTree(info *dwarfinfo.Info, tree *godwarf.Tree) {
	if tree.Tag == dwarf.TagSubprogram && len(tree.Ranges) > 0 {
		nameVal, _ := tree.Val(dwarf.AttrName).(string)
		name := info.Demangled(nameVal)
		low, high := tree.Ranges[0][0], tree.Ranges[0][1]
		fmt.Printf("%s [%#x, %#x)\n", name, low, high)
	}
	for _, c := range tree.Children {
		dumpFrameTree(info, c)
	}
}
