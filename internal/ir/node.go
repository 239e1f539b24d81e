package ir

import (
	"math"

	"swell/internal/types"
)

// NodeKind enumerates IR expression shapes.
type NodeKind uint8

const (
	KindNop NodeKind = iota
	KindConst
	KindUnary
	KindBinary
	KindGetLocal
	KindSetLocal // tee when Type != NativeNone
	KindGetGlobal
	KindSetGlobal
	KindLoad
	KindStore
	KindCall
	KindCallImport
	KindCallIndirect
	KindBlock
	KindIf
	KindLoop
	KindBreak // br / br_if when Condition != nil
	KindSwitch
	KindSelect
	KindDrop
	KindReturn
	KindUnreachable
	KindMemoryGrow
	KindMemorySize
)

// Node is one IR expression. A single fat struct keeps the builder
// allocation-friendly; the kind decides which fields are meaningful.
type Node struct {
	Kind NodeKind
	// Type is the value type the node yields (NativeNone for statements).
	Type types.NativeType

	// Const payload: integers in I64 (i32 consts are sign-extended),
	// floats in F64 (f32 consts are widened).
	I64 int64
	F64 float64

	Op Op

	// Operands.
	Left      *Node // binary lhs
	Right     *Node // binary rhs
	Value     *Node // unary operand, stored/returned/dropped/broken value
	Ptr       *Node // load/store address
	Condition *Node // if/br_if/select/switch condition
	IfTrue    *Node
	IfFalse   *Node
	List      []*Node // block children, call operands

	// Memory access.
	Bytes  uint8
	Offset uint32
	Signed bool
	Float  bool
	// VType is the stored value's native type on KindStore.
	VType types.NativeType

	Index uint32 // local index
	Name  string // global name, call target, function-type name
	Label string // block/loop label, break target

	// Switch labels.
	Names       []string
	DefaultName string
}

// --- constants ---

// ConstI32 creates an i32.const node.
func ConstI32(v int32) *Node {
	return &Node{Kind: KindConst, Type: types.NativeI32, I64: int64(v)}
}

// ConstI64 creates an i64.const node.
func ConstI64(v int64) *Node {
	return &Node{Kind: KindConst, Type: types.NativeI64, I64: v}
}

// ConstF32 creates an f32.const node.
func ConstF32(v float32) *Node {
	return &Node{Kind: KindConst, Type: types.NativeF32, F64: float64(v)}
}

// ConstF64 creates an f64.const node.
func ConstF64(v float64) *Node {
	return &Node{Kind: KindConst, Type: types.NativeF64, F64: v}
}

// ConstPtr creates a pointer-sized constant for the given native type.
func ConstPtr(nt types.NativeType, v uint64) *Node {
	if nt == types.NativeI64 {
		return ConstI64(int64(v))
	}
	return ConstI32(int32(uint32(v)))
}

// IsConst reports whether the node is a constant.
func (n *Node) IsConst() bool {
	return n != nil && n.Kind == KindConst
}

// ConstIntValue returns the integer payload of a constant; floats are
// truncated.
func (n *Node) ConstIntValue() int64 {
	if n.Type == types.NativeF32 || n.Type == types.NativeF64 {
		return int64(n.F64)
	}
	return n.I64
}

// IsConstZero reports a constant equal to zero of its native type.
func (n *Node) IsConstZero() bool {
	if !n.IsConst() {
		return false
	}
	switch n.Type {
	case types.NativeF32, types.NativeF64:
		return n.F64 == 0 && !math.Signbit(n.F64)
	default:
		return n.I64 == 0
	}
}

// IsConstNonZero reports a constant with a non-zero payload.
func (n *Node) IsConstNonZero() bool {
	if !n.IsConst() {
		return false
	}
	switch n.Type {
	case types.NativeF32, types.NativeF64:
		return n.F64 != 0
	default:
		return n.I64 != 0
	}
}

// --- expressions ---

func Unary(op Op, value *Node, result types.NativeType) *Node {
	return &Node{Kind: KindUnary, Op: op, Value: value, Type: result}
}

func Binary(op Op, left, right *Node, result types.NativeType) *Node {
	return &Node{Kind: KindBinary, Op: op, Left: left, Right: right, Type: result}
}

func GetLocal(index uint32, t types.NativeType) *Node {
	return &Node{Kind: KindGetLocal, Index: index, Type: t}
}

// SetLocal stores into a local and yields nothing.
func SetLocal(index uint32, value *Node) *Node {
	return &Node{Kind: KindSetLocal, Index: index, Value: value, Type: types.NativeNone}
}

// TeeLocal stores into a local and yields the value.
func TeeLocal(index uint32, value *Node, t types.NativeType) *Node {
	return &Node{Kind: KindSetLocal, Index: index, Value: value, Type: t}
}

func GetGlobal(name string, t types.NativeType) *Node {
	return &Node{Kind: KindGetGlobal, Name: name, Type: t}
}

func SetGlobal(name string, value *Node) *Node {
	return &Node{Kind: KindSetGlobal, Name: name, Value: value, Type: types.NativeNone}
}

// Load reads bytes at ptr+offset. Sub-word integer loads extend per
// signed.
func Load(bytes uint8, signed bool, ptr *Node, t types.NativeType, offset uint32) *Node {
	return &Node{
		Kind: KindLoad, Bytes: bytes, Signed: signed, Ptr: ptr, Type: t, Offset: offset,
		Float: t == types.NativeF32 || t == types.NativeF64,
	}
}

// Store writes bytes of value at ptr+offset. The node yields nothing; vt
// names the value's native type.
func Store(bytes uint8, ptr, value *Node, vt types.NativeType, offset uint32) *Node {
	return &Node{
		Kind: KindStore, Bytes: bytes, Ptr: ptr, Value: value, Type: types.NativeNone, Offset: offset,
		Float: vt == types.NativeF32 || vt == types.NativeF64,
		VType: vt,
	}
}

func Call(target string, operands []*Node, result types.NativeType) *Node {
	return &Node{Kind: KindCall, Name: target, List: operands, Type: result}
}

// CallImport calls an imported function.
func CallImport(target string, operands []*Node, result types.NativeType) *Node {
	return &Node{Kind: KindCallImport, Name: target, List: operands, Type: result}
}

// CallIndirect calls through the function table; typeName names the
// deduplicated function type.
func CallIndirect(typeName string, index *Node, operands []*Node, result types.NativeType) *Node {
	return &Node{Kind: KindCallIndirect, Name: typeName, Condition: index, List: operands, Type: result}
}

// Block groups children; a label makes it a break target. The type is the
// type of the final child when the block yields a value.
func Block(label string, children []*Node, t types.NativeType) *Node {
	return &Node{Kind: KindBlock, Label: label, List: children, Type: t}
}

func If(cond, ifTrue, ifFalse *Node, t types.NativeType) *Node {
	return &Node{Kind: KindIf, Condition: cond, IfTrue: ifTrue, IfFalse: ifFalse, Type: t}
}

func Loop(label string, body *Node) *Node {
	return &Node{Kind: KindLoop, Label: label, Value: body, Type: types.NativeNone}
}

// Break jumps to a label; with a condition it is br_if.
func Break(label string, cond, value *Node) *Node {
	return &Node{Kind: KindBreak, Label: label, Condition: cond, Value: value, Type: types.NativeNone}
}

// Switch is br_table over names with a default.
func Switch(names []string, defaultName string, cond *Node) *Node {
	return &Node{Kind: KindSwitch, Names: names, DefaultName: defaultName, Condition: cond, Type: types.NativeNone}
}

func Select(cond, ifTrue, ifFalse *Node, t types.NativeType) *Node {
	return &Node{Kind: KindSelect, Condition: cond, IfTrue: ifTrue, IfFalse: ifFalse, Type: t}
}

func Drop(value *Node) *Node {
	return &Node{Kind: KindDrop, Value: value, Type: types.NativeNone}
}

func Return(value *Node) *Node {
	return &Node{Kind: KindReturn, Value: value, Type: types.NativeNone}
}

func Unreachable() *Node {
	return &Node{Kind: KindUnreachable, Type: types.NativeNone}
}

func Nop() *Node {
	return &Node{Kind: KindNop, Type: types.NativeNone}
}
