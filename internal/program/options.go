package program

import "swell/internal/types"

// Target selects the pointer width of the emitted module.
type Target uint8

const (
	// TargetWasm32 is the default 32-bit target.
	TargetWasm32 Target = iota
	// TargetWasm64 widens usize/isize and pointers to 64 bits.
	TargetWasm64
)

func (t Target) String() string {
	if t == TargetWasm64 {
		return "wasm64"
	}
	return "wasm32"
}

// Feature is a bitset of optional wasm proposals the emitter may rely on.
type Feature uint32

const (
	// FeatureSignExtension enables i32.extend8_s/extend16_s for
	// small-integer wrapping.
	FeatureSignExtension Feature = 1 << iota
	// FeatureMutableGlobal allows exporting mutable globals.
	FeatureMutableGlobal
)

func (f Feature) Has(flag Feature) bool { return f&flag == flag }

// Options configure one compilation.
type Options struct {
	Target        Target
	NoTreeShaking bool
	NoAssert      bool
	ImportMemory  bool
	ImportTable   bool
	SourceMap     bool
	// MemoryBase is the static memory start offset; values below 8 are
	// raised to 8 to keep the null sentinel.
	MemoryBase uint32
	// GlobalAliases renames exports, symbolic name to alias.
	GlobalAliases map[string]string
	Features      Feature
}

// Is64 reports whether the target uses 64-bit pointers.
func (o *Options) Is64() bool { return o.Target == TargetWasm64 }

// USizeType returns the target's usize.
func (o *Options) USizeType() types.Type { return types.USize(o.Is64()) }

// ISizeType returns the target's isize.
func (o *Options) ISizeType() types.Type { return types.ISize(o.Is64()) }

// RefType returns a reference descriptor for a class handle on this
// target.
func (o *Options) RefType(class types.ClassID) types.Type {
	return types.Ref(class, o.Is64())
}
