package minidump

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func putU32(buf *bytes.Buffer, v uint32) { binary.Write(buf, binary.LittleEndian, v) }
func putU64(buf *bytes.Buffer, v uint64) { binary.Write(buf, binary.LittleEndian, v) }
func putU16(buf *bytes.Buffer, v uint16) { binary.Write(buf, binary.LittleEndian, v) }

// buildThreadListStream encodes a ThreadList stream with one thread, no
// embedded context, matching readThreadList's field order.
func buildThreadListStream(threadID uint32) []byte {
	var b bytes.Buffer
	putU32(&b, 1) // count
	putU32(&b, threadID)
	putU32(&b, 0)    // suspend count
	putU64(&b, 0)    // stack start
	putU64(&b, 0)    // stack size
	putU32(&b, 0)    // context size (none)
	return b.Bytes()
}

// buildMinidump assembles a minimal valid minidump with the given streams.
func buildMinidump(t *testing.T, streams map[StreamType][]byte) []byte {
	t.Helper()
	const headerSize = 16
	var dir bytes.Buffer
	var body bytes.Buffer

	rva := headerSize
	type entry struct {
		typ  StreamType
		size uint32
		rva  uint32
	}
	var entries []entry
	for typ, data := range streams {
		entries = append(entries, entry{typ, uint32(len(data)), uint32(rva)})
		body.Write(data)
		rva += len(data)
	}
	dirRVA := rva

	for _, e := range entries {
		putU32(&dir, uint32(e.typ))
		putU32(&dir, e.size)
		putU32(&dir, e.rva)
	}

	var header bytes.Buffer
	putU32(&header, headerSignature)
	putU32(&header, headerVersion)
	putU32(&header, uint32(len(entries)))
	putU32(&header, uint32(dirRVA))

	var out bytes.Buffer
	out.Write(header.Bytes())
	out.Write(body.Bytes())
	out.Write(dir.Bytes())
	return out.Bytes()
}

// scenario 8 / P6: thread round-trips by ID.
func TestReadThreadRoundTrip(t *testing.T) {
	raw := buildMinidump(t, map[StreamType][]byte{
		StreamThreadList: buildThreadListStream(42),
	})
	md, err := Read(raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(md.Threads) != 1 {
		t.Fatalf("want 1 thread, got %d", len(md.Threads))
	}
	th := md.GetThread(42)
	if th == nil || th.ThreadID != 42 {
		t.Fatalf("got %+v", th)
	}
}

func TestReadBadSignatureFails(t *testing.T) {
	raw := buildMinidump(t, map[StreamType][]byte{StreamThreadList: buildThreadListStream(1)})
	raw[0] = 0xFF
	if _, err := Read(raw); err == nil {
		t.Fatal("expected error for bad signature")
	}
}

func TestReadStreamCountGuard(t *testing.T) {
	var header bytes.Buffer
	putU32(&header, headerSignature)
	putU32(&header, headerVersion)
	putU32(&header, maxStreamCount+1)
	putU32(&header, 16)
	if _, err := Read(header.Bytes()); err == nil {
		t.Fatal("expected error when stream_count exceeds guard")
	}
}

func TestMalformedStreamDoesNotFailWholeRead(t *testing.T) {
	raw := buildMinidump(t, map[StreamType][]byte{
		StreamThreadList: buildThreadListStream(7),
		StreamModuleList: {0x01}, // truncated: too short to even hold a count
	})
	md, err := Read(raw)
	if err != nil {
		t.Fatalf("malformed module list must not fail the whole read: %v", err)
	}
	if md.GetThread(7) == nil {
		t.Fatal("thread list must still have been read")
	}
	if len(md.Modules) != 0 {
		t.Fatalf("malformed module stream should decode to empty, got %d modules", len(md.Modules))
	}
}

func TestUTF16RoundTrip(t *testing.T) {
	for _, s := range []string{"hello", "", "emoji-\U0001F600-here"} {
		encoded := encodeUTF16LE(s)
		if got := decodeUTF16LE(encoded); got != s {
			t.Fatalf("round trip failed for %q: got %q", s, got)
		}
	}
}

func TestUTF16LoneLowSurrogateYieldsEmpty(t *testing.T) {
	var buf bytes.Buffer
	putU16(&buf, 0xDC00) // lone low surrogate
	if got := decodeUTF16LE(buf.Bytes()); got != "" {
		t.Fatalf("expected empty string, got %q", got)
	}
}

func TestUTF16UnmatchedHighSurrogateYieldsEmpty(t *testing.T) {
	var buf bytes.Buffer
	putU16(&buf, 0xD800) // high surrogate with no following low surrogate
	putU16(&buf, 0x0041) // 'A', not a valid low surrogate
	if got := decodeUTF16LE(buf.Bytes()); got != "" {
		t.Fatalf("expected empty string, got %q", got)
	}
}
