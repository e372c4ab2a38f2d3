// Command minidump-dump prints a breakpad-style minidump's directory,
// threads, modules, memory ranges, exception, and system info, mirroring
// what a C++ Minidump::Dump* pass would show.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sandin/dwarfpost/internal/minidump"
)

func main() {
	root := &cobra.Command{
		Use:   "minidump-dump <path>",
		Short: "Dump the contents of a minidump snapshot.",
		Run:   run,
	}
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(-1)
	}
}

func run(cmd *cobra.Command, args []string) {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "minidump-dump: exactly one path argument required")
		os.Exit(-1)
	}

	md, err := minidump.Open(args[0])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(-1)
	}

	dumpDirectory(md)
	dumpSystemInfo(md)
	dumpThreads(md)
	dumpModules(md)
	dumpMemories(md)
	dumpException(md)
}

func dumpDirectory(md *minidump.Minidump) {
	fmt.Printf("streams: %d\n", len(md.Streams))
	for _, s := range md.Streams {
		fmt.Printf("  type=%d size=%d\n", s.Type, len(s.Data))
	}
}

func dumpSystemInfo(md *minidump.Minidump) {
	fmt.Printf("system info: arch=%s processors=%d\n",
		md.SystemInfo.ProcessorArchitecture, md.SystemInfo.NumberOfProcessors)
}

func dumpThreads(md *minidump.Minidump) {
	fmt.Printf("threads: %d\n", len(md.Threads))
	for _, th := range md.Threads {
		fmt.Printf("  id=%d suspend_count=%d stack=[%#x, %#x)\n",
			th.ThreadID, th.SuspendCount, th.StackStart, th.StackStart+th.StackSize)
		if ctx := md.GetContext(th.ThreadID); ctx != nil {
			fmt.Printf("    context arch=%s\n", ctx.Arch)
		}
	}
}

func dumpModules(md *minidump.Minidump) {
	fmt.Printf("modules: %d\n", len(md.Modules))
	for _, m := range md.Modules {
		fmt.Printf("  %s base=%#x size=%#x\n", m.Name, m.BaseOfImage, m.SizeOfImage)
	}
}

func dumpMemories(md *minidump.Minidump) {
	fmt.Printf("memory ranges: %d\n", len(md.Memories))
	for _, m := range md.Memories {
		fmt.Printf("  [%#x, %#x) %d bytes\n", m.Addr, m.Addr+uint64(len(m.Data)), len(m.Data))
	}
}

func dumpException(md *minidump.Minidump) {
	if md.Exception == nil {
		fmt.Println("exception: none")
		return
	}
	fmt.Printf("exception: thread=%d code=%#x addr=%#x\n",
		md.Exception.ThreadID, md.Exception.ExceptionCode, md.Exception.ExceptionAddress)
}
