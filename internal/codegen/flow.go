package codegen

import (
	"swell/internal/ir"
	"swell/internal/program"
	"swell/internal/types"
)

// FlowFlags describe what a code region provably does.
type FlowFlags uint16

const (
	// FlowReturns is set when every path returns.
	FlowReturns FlowFlags = 1 << iota
	// FlowReturnsWrapped refines FlowReturns: the returned small-integer
	// value is provably wrapped.
	FlowReturnsWrapped
	// FlowBreaks is set when every path breaks out of the break context.
	FlowBreaks
	// FlowConditionallyBreaks is set when some path breaks.
	FlowConditionallyBreaks
	// FlowContinues is set when every path continues the loop.
	FlowContinues
	// FlowConditionallyContinues is set when some path continues.
	FlowConditionallyContinues
	// FlowThrows is set when every path aborts.
	FlowThrows
	// FlowAllocates is set once a constructor body allocated.
	FlowAllocates
	// FlowInlineContext marks flows compiling an inlined body.
	FlowInlineContext
	// FlowUncheckedContext disables bounds checks.
	FlowUncheckedContext
)

// inheritedFlags are the flags a fork carries over from its parent.
const inheritedFlags = FlowAllocates | FlowInlineContext | FlowUncheckedContext

// terminatingFlags weaken to their conditional counterparts when a branch
// merges conditionally.
const terminatingFlags = FlowReturns | FlowReturnsWrapped | FlowBreaks | FlowContinues | FlowThrows

// Flow tracks per-branch analysis state. Every Fork is paired with a Free
// that merges nothing by itself; the caller then merges the freed child
// with one of the Inherit variants.
type Flow struct {
	parent *Flow
	fn     *program.Function

	flags FlowFlags

	// ReturnType is the type return statements convert to.
	ReturnType types.Type
	// ReturnLabel replaces real returns inside inlined bodies.
	ReturnLabel string
	// BreakLabel and ContinueLabel name the innermost break context.
	BreakLabel    string
	ContinueLabel string

	// wrappedLocals maps local indices of short-integer locals whose
	// current value is provably wrapped.
	wrappedLocals map[int]bool
	// scopedLocals maps block-scoped names, virtual locals included.
	scopedLocals map[string]*program.Local
	// wrappedReturns names functions whose every return is provably
	// wrapped; the compiler shares one registry across all flows so call
	// results skip redundant re-wraps.
	wrappedReturns map[string]bool
}

// NewFlow creates the root flow of a function body.
func NewFlow(fn *program.Function) *Flow {
	return &Flow{
		fn:            fn,
		ReturnType:    fn.Signature.ReturnType,
		wrappedLocals: make(map[int]bool),
	}
}

// Fork creates a child flow inheriting contextual state.
func (f *Flow) Fork() *Flow {
	child := &Flow{
		parent:         f,
		fn:             f.fn,
		flags:          f.flags & inheritedFlags,
		ReturnType:     f.ReturnType,
		ReturnLabel:    f.ReturnLabel,
		BreakLabel:     f.BreakLabel,
		ContinueLabel:  f.ContinueLabel,
		wrappedLocals:  make(map[int]bool, len(f.wrappedLocals)),
		wrappedReturns: f.wrappedReturns,
	}
	for k, v := range f.wrappedLocals {
		child.wrappedLocals[k] = v
	}
	return child
}

// Free detaches the child and returns its parent flow; the child's state
// stays readable for the merge.
func (f *Flow) Free() *Flow {
	parent := f.parent
	f.parent = nil
	return parent
}

func (f *Flow) Is(flags FlowFlags) bool    { return f.flags&flags == flags }
func (f *Flow) IsAny(flags FlowFlags) bool { return f.flags&flags != 0 }
func (f *Flow) Set(flags FlowFlags)        { f.flags |= flags }
func (f *Flow) Unset(flags FlowFlags)      { f.flags &^= flags }

// Function returns the function this flow compiles.
func (f *Flow) Function() *program.Function { return f.fn }

// Inherit merges a child that executed unconditionally: the child's
// wrapped state replaces the parent's, clearing locals the child left
// unwrapped.
func (f *Flow) Inherit(child *Flow) {
	f.flags |= child.flags
	for k := range f.wrappedLocals {
		if !child.wrappedLocals[k] {
			delete(f.wrappedLocals, k)
		}
	}
	for k, v := range child.wrappedLocals {
		if v {
			f.wrappedLocals[k] = true
		}
	}
}

// InheritConditional merges a child that may not have executed:
// terminating bits weaken to their conditional counterparts, and wrap
// knowledge survives only where the child still proves it. A local the
// branch may have left unwrapped cannot stay wrapped in the parent.
func (f *Flow) InheritConditional(child *Flow) {
	if child.IsAny(FlowBreaks | FlowConditionallyBreaks) {
		f.flags |= FlowConditionallyBreaks
	}
	if child.IsAny(FlowContinues | FlowConditionallyContinues) {
		f.flags |= FlowConditionallyContinues
	}
	f.flags |= child.flags & (FlowAllocates)
	for k := range f.wrappedLocals {
		if !child.wrappedLocals[k] {
			delete(f.wrappedLocals, k)
		}
	}
}

// InheritMutual merges both arms of a two-way branch: bits set in both
// arms upgrade to unconditional, bits set in one degrade to conditional.
func (f *Flow) InheritMutual(left, right *Flow) {
	both := left.flags & right.flags
	f.flags |= both & (terminatingFlags | FlowAllocates)

	either := left.flags | right.flags
	if either&(FlowBreaks|FlowConditionallyBreaks) != 0 && both&FlowBreaks == 0 {
		f.flags |= FlowConditionallyBreaks
	}
	if either&(FlowContinues|FlowConditionallyContinues) != 0 && both&FlowContinues == 0 {
		f.flags |= FlowConditionallyContinues
	}
	// Wrap knowledge survives only where both arms agree.
	for k := range f.wrappedLocals {
		if !left.wrappedLocals[k] || !right.wrappedLocals[k] {
			delete(f.wrappedLocals, k)
		}
	}
	for k, v := range left.wrappedLocals {
		if v && right.wrappedLocals[k] {
			f.wrappedLocals[k] = true
		}
	}
}

// SetLocalWrapped records whether a local currently holds a wrapped value.
func (f *Flow) SetLocalWrapped(index int, wrapped bool) {
	if wrapped {
		f.wrappedLocals[index] = true
	} else {
		delete(f.wrappedLocals, index)
	}
}

// IsLocalWrapped reports the wrapped bit of a local.
func (f *Flow) IsLocalWrapped(index int) bool {
	return f.wrappedLocals[index]
}

// AddScopedLocal introduces a block-scoped binding; virtual locals carry a
// constant and no IR slot.
func (f *Flow) AddScopedLocal(name string, local *program.Local) bool {
	if f.scopedLocals == nil {
		f.scopedLocals = make(map[string]*program.Local, 4)
	}
	if _, dup := f.scopedLocals[name]; dup {
		return false
	}
	f.scopedLocals[name] = local
	return true
}

// ScopedLocal resolves a name through the flow chain.
func (f *Flow) ScopedLocal(name string) (*program.Local, bool) {
	for cur := f; cur != nil; cur = cur.parent {
		if l, ok := cur.scopedLocals[name]; ok {
			return l, true
		}
	}
	return nil, false
}

// ScopedLocals iterates the bindings of this flow level only.
func (f *Flow) ScopedLocals(fn func(name string, l *program.Local) bool) {
	for name, l := range f.scopedLocals {
		if !fn(name, l) {
			return
		}
	}
}

// CanOverflow conservatively decides whether an expression of the given
// short-integer type may carry garbage in its upper bits. Constants are
// checked exactly; get-locals consult the wrapped bit; loads of matching
// width are clean by construction.
func (f *Flow) CanOverflow(expr *ir.Node, t types.Type) bool {
	if !t.IsShortInteger() {
		return false
	}
	switch expr.Kind {
	case ir.KindConst:
		v := expr.I64
		switch t.Kind {
		case types.KindBool:
			return v != 0 && v != 1
		case types.KindI8:
			return v < -0x80 || v > 0x7f
		case types.KindU8:
			return v < 0 || v > 0xff
		case types.KindI16:
			return v < -0x8000 || v > 0x7fff
		case types.KindU16:
			return v < 0 || v > 0xffff
		}
		return true
	case ir.KindGetLocal:
		return !f.IsLocalWrapped(int(expr.Index))
	case ir.KindSetLocal:
		// A tee propagates its value's state.
		if expr.Type != types.NativeNone {
			return f.CanOverflow(expr.Value, t)
		}
		return true
	case ir.KindLoad:
		// A load of exactly the value's width cannot hold garbage bits;
		// bool loads are only clean from bool stores, which always store
		// 0 or 1.
		return uint32(expr.Bytes)*8 > uint32(t.Bits) && t.Kind != types.KindBool
	case ir.KindCall, ir.KindCallImport:
		// A callee whose flow proved RETURNS_WRAPPED delivers a clean
		// value already.
		return !f.wrappedReturns[expr.Name]
	case ir.KindUnary:
		switch expr.Op {
		case ir.OpExtendI8ToI32:
			return t.Bits < 8 || t.Is(types.FlagUnsigned)
		case ir.OpExtendI16ToI32:
			return t.Bits < 16 || t.Is(types.FlagUnsigned)
		case ir.OpEqzI32, ir.OpEqzI64:
			// eqz yields 0 or 1.
			return false
		}
		return true
	case ir.KindBinary:
		switch expr.Op {
		case ir.OpAndI32:
			return f.CanOverflow(expr.Left, t) && f.CanOverflow(expr.Right, t)
		case ir.OpShrU32:
			if r := expr.Right; r.IsConst() {
				return 32-uint32(r.I64&31) > uint32(t.Bits)
			}
			return true
		case ir.OpShrI32:
			// The shl/shr_s wrap pair leaves a sign-extended value.
			if r := expr.Right; r.IsConst() && t.Is(types.FlagSigned) {
				return 32-uint32(r.I64&31) > uint32(t.Bits)
			}
			return true
		case ir.OpEqI32, ir.OpNeI32, ir.OpLtI32, ir.OpLtU32, ir.OpLeI32, ir.OpLeU32,
			ir.OpGtI32, ir.OpGtU32, ir.OpGeI32, ir.OpGeU32,
			ir.OpEqI64, ir.OpNeI64, ir.OpLtI64, ir.OpLtU64, ir.OpLeI64, ir.OpLeU64,
			ir.OpGtI64, ir.OpGtU64, ir.OpGeI64, ir.OpGeU64:
			// Comparisons yield 0 or 1.
			return false
		}
		return true
	default:
		return true
	}
}
