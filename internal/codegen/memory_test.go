package codegen

import (
	"testing"

	"swell/internal/diag"
	"swell/internal/program"
)

func newTestCompiler(opts *program.Options) *Compiler {
	if opts == nil {
		opts = &program.Options{}
	}
	p := program.NewProgram(opts, nil)
	return New(p, diag.NopReporter{})
}

func TestMemoryOffsetMonotonicAndAligned(t *testing.T) {
	c := newTestCompiler(nil)
	prev := uint32(0)
	sizes := []int{3, 1, 9, 16, 5}
	for _, n := range sizes {
		off := c.addMemorySegment(make([]byte, n), 8)
		if off < prev {
			t.Fatalf("offset went backwards: %d after %d", off, prev)
		}
		if off%8 != 0 {
			t.Fatalf("offset %d not aligned to 8", off)
		}
		prev = off
	}
}

func TestMemoryBaseLowerBound(t *testing.T) {
	c := newTestCompiler(&program.Options{MemoryBase: 0})
	off := c.addMemorySegment([]byte{1}, 1)
	if off < 8 {
		t.Fatalf("first eight bytes are the null sentinel, got offset %d", off)
	}
	c2 := newTestCompiler(&program.Options{MemoryBase: 64})
	if off := c2.addMemorySegment([]byte{1}, 1); off != 64 {
		t.Fatalf("memoryBase must move the first segment, got %d", off)
	}
}

func TestEnsureStaticStringCanonical(t *testing.T) {
	c := newTestCompiler(nil)
	a := c.ensureStaticString("wave")
	b := c.ensureStaticString("wave")
	if a != b {
		t.Fatalf("identical strings returned %d and %d", a, b)
	}
	other := c.ensureStaticString("swell")
	if other == a {
		t.Fatalf("distinct strings must not share a pointer")
	}
	if len(c.mod.Segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(c.mod.Segments))
	}
}

func TestStaticArrayLayout(t *testing.T) {
	c := newTestCompiler(nil)
	header := c.ensureStaticArray(4, false, []StaticArrayValue{{Int: 1}, {Int: 2}, {Int: 3}})
	if len(c.mod.Segments) != 2 {
		t.Fatalf("a static array needs buffer and header segments, got %d", len(c.mod.Segments))
	}
	buf := c.mod.Segments[0]
	if len(buf.Data)&(len(buf.Data)-1) != 0 {
		t.Fatalf("buffer size %d is not a power of two", len(buf.Data))
	}
	hdr := c.mod.Segments[1]
	if hdr.Offset != header {
		t.Fatalf("returned pointer %d does not target the header at %d", header, hdr.Offset)
	}
	// The header points at the buffer and carries the length.
	ptr := uint32(hdr.Data[0]) | uint32(hdr.Data[1])<<8 | uint32(hdr.Data[2])<<16 | uint32(hdr.Data[3])<<24
	if ptr != buf.Offset {
		t.Fatalf("header buffer pointer %d, want %d", ptr, buf.Offset)
	}
	length := uint32(hdr.Data[4]) | uint32(hdr.Data[5])<<8
	if length != 3 {
		t.Fatalf("header length %d, want 3", length)
	}
}

func TestNextPowerOfTwo(t *testing.T) {
	cases := map[uint32]uint32{0: 1, 1: 1, 2: 2, 3: 4, 8: 8, 9: 16, 1000: 1024}
	for in, want := range cases {
		if got := nextPowerOfTwo(in); got != want {
			t.Fatalf("nextPowerOfTwo(%d) = %d, want %d", in, got, want)
		}
	}
}
