package minidump

import (
	"os"

	"golang.org/x/sys/unix"
)

// Open mmaps path read-only and parses it as a minidump. The mapping is
// never written to and is never explicitly unmapped: the dump's borrowed
// memory slices (module names, thread contexts, saved memory ranges) must
// stay valid for the process's lifetime, same as the snapshot's read-only
// ownership contract described for Minidump.ReadMemory.
func Open(path string) (*Minidump, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.Size() == 0 {
		return nil, os.ErrInvalid
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(info.Size()), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, err
	}

	return Read(data)
}
