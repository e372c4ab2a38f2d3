package snapshot

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/sandin/dwarfpost/internal/minidump"
)

func TestRegisterProviderReadsSelectedThread(t *testing.T) {
	raw := buildOneThreadDump(t, 42, 1, amd64Context(0xDEADBEEF))
	md, err := minidump.Read(raw)
	if err != nil {
		t.Fatal(err)
	}
	snap := New(md)
	snap.SelectThread(42)
	v, ok := snap.Register(0) // AMD64_Rax
	if !ok || v != 0xDEADBEEF {
		t.Fatalf("got v=0x%x ok=%v", v, ok)
	}
}

func amd64Context(raxValue uint64) []byte {
	buf := make([]byte, 1232)
	binary.LittleEndian.PutUint64(buf[0x78:], raxValue) // rax offset per decodeAMD64Context
	return buf
}

func buildOneThreadDump(t *testing.T, threadID, exceptionThread uint32, ctxData []byte) []byte {
	t.Helper()
	var threadStream bytes.Buffer
	binary.Write(&threadStream, binary.LittleEndian, uint32(1))
	binary.Write(&threadStream, binary.LittleEndian, threadID)
	binary.Write(&threadStream, binary.LittleEndian, uint32(0))
	binary.Write(&threadStream, binary.LittleEndian, uint64(0))
	binary.Write(&threadStream, binary.LittleEndian, uint64(0))
	binary.Write(&threadStream, binary.LittleEndian, uint32(len(ctxData)))
	threadStream.Write(ctxData)

	var exceptionStream bytes.Buffer
	binary.Write(&exceptionStream, binary.LittleEndian, exceptionThread)
	binary.Write(&exceptionStream, binary.LittleEndian, uint32(0))
	binary.Write(&exceptionStream, binary.LittleEndian, uint32(0))
	binary.Write(&exceptionStream, binary.LittleEndian, uint32(0))
	binary.Write(&exceptionStream, binary.LittleEndian, uint64(0))
	binary.Write(&exceptionStream, binary.LittleEndian, uint64(0))
	binary.Write(&exceptionStream, binary.LittleEndian, uint32(0))

	const headerSize = 16
	rva := headerSize
	type entry struct {
		typ       uint32
		size, rva uint32
	}
	var entries []entry
	var body bytes.Buffer

	entries = append(entries, entry{3, uint32(threadStream.Len()), uint32(rva)})
	body.Write(threadStream.Bytes())
	rva += threadStream.Len()

	entries = append(entries, entry{6, uint32(exceptionStream.Len()), uint32(rva)})
	body.Write(exceptionStream.Bytes())
	rva += exceptionStream.Len()

	dirRVA := rva
	var dir bytes.Buffer
	for _, e := range entries {
		binary.Write(&dir, binary.LittleEndian, e.typ)
		binary.Write(&dir, binary.LittleEndian, e.size)
		binary.Write(&dir, binary.LittleEndian, e.rva)
	}

	var out bytes.Buffer
	binary.Write(&out, binary.LittleEndian, uint32(0x504d444d))
	binary.Write(&out, binary.LittleEndian, uint32(42899))
	binary.Write(&out, binary.LittleEndian, uint32(len(entries)))
	binary.Write(&out, binary.LittleEndian, uint32(dirRVA))
	out.Write(body.Bytes())
	out.Write(dir.Bytes())
	return out.Bytes()
}
