package codegen

import (
	"encoding/binary"
	"fmt"
	"math"

	"fortio.org/safecast"
	"golang.org/x/text/encoding/unicode"

	"swell/internal/ir"
	"swell/internal/program"
)

// gcHeaderWords is the number of pointer-sized words reserved in front of
// managed objects; the first word holds the GC hook index.
const gcHeaderWords = 2

// arrayHeaderSize is the byte size of a static Array header: a usize
// pointer into the backing buffer plus an i32 length (padded on wasm64 by
// alignment).
func (c *Compiler) arrayHeaderSize() uint32 {
	ptr := uint32(c.usizeType.Size)
	return alignOffset(ptr+4, ptr)
}

// addMemorySegment aligns the current offset, appends the data and
// returns the segment's start offset. Offsets never decrease.
func (c *Compiler) addMemorySegment(data []byte, align uint32) uint32 {
	offset := alignOffset(c.memoryOffset, align)
	c.mod.AddSegment(offset, data)
	size, err := safecast.Conv[uint32](len(data))
	if err != nil {
		panic(fmt.Errorf("codegen: segment too large: %w", err))
	}
	c.memoryOffset = offset + size
	return offset
}

// gcHeaderSize returns the byte size of the GC header, zero when the
// program carries no managed runtime.
func (c *Compiler) gcHeaderSize() uint32 {
	if !c.prog.GCImplemented {
		return 0
	}
	return gcHeaderWords * uint32(c.usizeType.Size)
}

// ensureStaticString canonicalises a string literal in static memory and
// returns the pointer to its body. The layout is
// [gc header?][length:i32][utf16 code units].
func (c *Compiler) ensureStaticString(s string) uint32 {
	if ptr, ok := c.stringPool[s]; ok {
		return ptr
	}
	units, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder().Bytes([]byte(s))
	if err != nil {
		// The encoder replaces unmappable runes; it does not fail on
		// valid UTF-8 input.
		panic(fmt.Errorf("codegen: utf16 encode: %w", err))
	}
	header := c.gcHeaderSize()
	data := make([]byte, header+4+uint32(len(units)))
	if header > 0 {
		c.putPointer(data[0:], uint64(c.ensureGCHookIndex(c.stringClass())))
	}
	length, err := safecast.Conv[uint32](len(units) / 2)
	if err != nil {
		panic(fmt.Errorf("codegen: string too long: %w", err))
	}
	binary.LittleEndian.PutUint32(data[header:], length)
	copy(data[header+4:], units)

	offset := c.addMemorySegment(data, uint32(c.usizeType.Size))
	ptr := offset + header
	c.stringPool[s] = ptr
	return ptr
}

// stringClass resolves the runtime's string class if the program declares
// one; static strings then carry its GC hook.
func (c *Compiler) stringClass() *program.Class {
	e, ok := c.prog.Lookup("String")
	if !ok {
		return nil
	}
	proto, ok := e.(*program.ClassPrototype)
	if !ok || len(proto.TypeParams) > 0 {
		return nil
	}
	cls, err := c.prog.ResolveClass(proto, nil)
	if err != nil {
		return nil
	}
	return cls
}

// ensureGCHookIndex registers a class with the GC and returns its hook
// index, the value written into the header word of its heap objects.
func (c *Compiler) ensureGCHookIndex(cls *program.Class) int32 {
	if cls == nil {
		return 0
	}
	if cls.GCHookIndex >= 0 {
		return cls.GCHookIndex
	}
	idx, err := safecast.Conv[int32](len(c.gcClasses))
	if err != nil {
		panic(fmt.Errorf("codegen: gc hook overflow: %w", err))
	}
	cls.GCHookIndex = idx
	c.gcClasses = append(c.gcClasses, cls)
	return idx
}

// putPointer writes a pointer-sized little-endian word.
func (c *Compiler) putPointer(dst []byte, v uint64) {
	if c.usizeType.Size == 8 {
		binary.LittleEndian.PutUint64(dst, v)
	} else {
		binary.LittleEndian.PutUint32(dst, uint32(v))
	}
}

// StaticArrayValue is one element of a static array literal.
type StaticArrayValue struct {
	Int   int64
	Float float64
}

// ensureStaticArray emits the two segments of a static array: a backing
// buffer rounded up to the next power of two of header+payload, and an
// Array header pointing into it. Returns the header pointer.
func (c *Compiler) ensureStaticArray(elemSize uint32, isFloat bool, values []StaticArrayValue) uint32 {
	length, err := safecast.Conv[uint32](len(values))
	if err != nil {
		panic(fmt.Errorf("codegen: array too long: %w", err))
	}
	payload := c.arrayHeaderSize() + length*elemSize
	bufSize := nextPowerOfTwo(payload)
	buf := make([]byte, bufSize)
	for i, v := range values {
		off := c.arrayHeaderSize() + uint32(i)*elemSize
		switch {
		case isFloat && elemSize == 4:
			binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(float32(v.Float)))
		case isFloat:
			binary.LittleEndian.PutUint64(buf[off:], math.Float64bits(v.Float))
		case elemSize == 1:
			buf[off] = byte(v.Int)
		case elemSize == 2:
			binary.LittleEndian.PutUint16(buf[off:], uint16(v.Int))
		case elemSize == 4:
			binary.LittleEndian.PutUint32(buf[off:], uint32(v.Int))
		default:
			binary.LittleEndian.PutUint64(buf[off:], uint64(v.Int))
		}
	}
	bufPtr := c.addMemorySegment(buf, uint32(c.usizeType.Size))

	header := make([]byte, c.arrayHeaderSize())
	c.putPointer(header, uint64(bufPtr))
	binary.LittleEndian.PutUint32(header[c.usizeType.Size:], length)
	return c.addMemorySegment(header, uint32(c.usizeType.Size))
}

func nextPowerOfTwo(v uint32) uint32 {
	if v == 0 {
		return 1
	}
	v--
	v |= v >> 1
	v |= v >> 2
	v |= v >> 4
	v |= v >> 8
	v |= v >> 16
	return v + 1
}

// makeStaticStringExpr compiles a string literal to its canonical static
// pointer.
func (c *Compiler) makeStaticStringExpr(s string) *ir.Node {
	ptr := c.ensureStaticString(s)
	return ir.ConstPtr(c.usizeType.NativeType(), uint64(ptr))
}
