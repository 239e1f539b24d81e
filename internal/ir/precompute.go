package ir

import (
	"math"
)

// Precompute folds constant subexpressions. It returns the original node
// when nothing folds; the caller checks IsConst on the result. Only pure
// arithmetic folds; anything touching locals, globals or memory is left
// alone.
func Precompute(n *Node) *Node {
	if n == nil {
		return nil
	}
	switch n.Kind {
	case KindConst:
		return n
	case KindUnary:
		v := Precompute(n.Value)
		if !v.IsConst() {
			return n
		}
		if folded := foldUnary(n.Op, v); folded != nil {
			return folded
		}
		return n
	case KindBinary:
		l := Precompute(n.Left)
		r := Precompute(n.Right)
		if !l.IsConst() || !r.IsConst() {
			return n
		}
		if folded := foldBinary(n.Op, l, r); folded != nil {
			return folded
		}
		return n
	case KindBlock:
		// A single-child block folds to its child.
		if n.Label == "" && len(n.List) == 1 {
			return Precompute(n.List[0])
		}
		return n
	default:
		return n
	}
}

func foldUnary(op Op, v *Node) *Node {
	switch op {
	case OpEqzI32:
		return ConstI32(b2i(int32(v.I64) == 0))
	case OpEqzI64:
		return ConstI32(b2i(v.I64 == 0))
	case OpWrapI64:
		return ConstI32(int32(v.I64))
	case OpExtendI32:
		return ConstI64(int64(int32(v.I64)))
	case OpExtendU32:
		return ConstI64(int64(uint32(v.I64)))
	case OpExtendI8ToI32:
		return ConstI32(int32(int8(v.I64)))
	case OpExtendI16ToI32:
		return ConstI32(int32(int16(v.I64)))
	case OpNegF32:
		return ConstF32(float32(-v.F64))
	case OpNegF64:
		return ConstF64(-v.F64)
	case OpPromoteF32:
		return ConstF64(v.F64)
	case OpDemoteF64:
		return ConstF32(float32(v.F64))
	default:
		return nil
	}
}

func foldBinary(op Op, l, r *Node) *Node {
	switch op {
	case OpAddI32:
		return ConstI32(int32(l.I64) + int32(r.I64))
	case OpSubI32:
		return ConstI32(int32(l.I64) - int32(r.I64))
	case OpMulI32:
		return ConstI32(int32(l.I64) * int32(r.I64))
	case OpDivI32:
		if int32(r.I64) == 0 {
			return nil
		}
		return ConstI32(int32(l.I64) / int32(r.I64))
	case OpDivU32:
		if uint32(r.I64) == 0 {
			return nil
		}
		return ConstI32(int32(uint32(l.I64) / uint32(r.I64)))
	case OpRemI32:
		if int32(r.I64) == 0 {
			return nil
		}
		return ConstI32(int32(l.I64) % int32(r.I64))
	case OpRemU32:
		if uint32(r.I64) == 0 {
			return nil
		}
		return ConstI32(int32(uint32(l.I64) % uint32(r.I64)))
	case OpAndI32:
		return ConstI32(int32(l.I64) & int32(r.I64))
	case OpOrI32:
		return ConstI32(int32(l.I64) | int32(r.I64))
	case OpXorI32:
		return ConstI32(int32(l.I64) ^ int32(r.I64))
	case OpShlI32:
		return ConstI32(int32(l.I64) << (uint32(r.I64) & 31))
	case OpShrI32:
		return ConstI32(int32(l.I64) >> (uint32(r.I64) & 31))
	case OpShrU32:
		return ConstI32(int32(uint32(l.I64) >> (uint32(r.I64) & 31)))
	case OpEqI32:
		return ConstI32(b2i(int32(l.I64) == int32(r.I64)))
	case OpNeI32:
		return ConstI32(b2i(int32(l.I64) != int32(r.I64)))
	case OpLtI32:
		return ConstI32(b2i(int32(l.I64) < int32(r.I64)))
	case OpLtU32:
		return ConstI32(b2i(uint32(l.I64) < uint32(r.I64)))
	case OpLeI32:
		return ConstI32(b2i(int32(l.I64) <= int32(r.I64)))
	case OpLeU32:
		return ConstI32(b2i(uint32(l.I64) <= uint32(r.I64)))
	case OpGtI32:
		return ConstI32(b2i(int32(l.I64) > int32(r.I64)))
	case OpGtU32:
		return ConstI32(b2i(uint32(l.I64) > uint32(r.I64)))
	case OpGeI32:
		return ConstI32(b2i(int32(l.I64) >= int32(r.I64)))
	case OpGeU32:
		return ConstI32(b2i(uint32(l.I64) >= uint32(r.I64)))

	case OpAddI64:
		return ConstI64(l.I64 + r.I64)
	case OpSubI64:
		return ConstI64(l.I64 - r.I64)
	case OpMulI64:
		return ConstI64(l.I64 * r.I64)
	case OpDivI64:
		if r.I64 == 0 {
			return nil
		}
		return ConstI64(l.I64 / r.I64)
	case OpDivU64:
		if r.I64 == 0 {
			return nil
		}
		return ConstI64(int64(uint64(l.I64) / uint64(r.I64)))
	case OpRemI64:
		if r.I64 == 0 {
			return nil
		}
		return ConstI64(l.I64 % r.I64)
	case OpRemU64:
		if r.I64 == 0 {
			return nil
		}
		return ConstI64(int64(uint64(l.I64) % uint64(r.I64)))
	case OpAndI64:
		return ConstI64(l.I64 & r.I64)
	case OpOrI64:
		return ConstI64(l.I64 | r.I64)
	case OpXorI64:
		return ConstI64(l.I64 ^ r.I64)
	case OpShlI64:
		return ConstI64(l.I64 << (uint64(r.I64) & 63))
	case OpShrI64:
		return ConstI64(l.I64 >> (uint64(r.I64) & 63))
	case OpShrU64:
		return ConstI64(int64(uint64(l.I64) >> (uint64(r.I64) & 63)))
	case OpEqI64:
		return ConstI32(b2i(l.I64 == r.I64))
	case OpNeI64:
		return ConstI32(b2i(l.I64 != r.I64))
	case OpLtI64:
		return ConstI32(b2i(l.I64 < r.I64))
	case OpLtU64:
		return ConstI32(b2i(uint64(l.I64) < uint64(r.I64)))
	case OpGtI64:
		return ConstI32(b2i(l.I64 > r.I64))
	case OpGtU64:
		return ConstI32(b2i(uint64(l.I64) > uint64(r.I64)))

	case OpAddF32:
		return ConstF32(float32(l.F64) + float32(r.F64))
	case OpSubF32:
		return ConstF32(float32(l.F64) - float32(r.F64))
	case OpMulF32:
		return ConstF32(float32(l.F64) * float32(r.F64))
	case OpDivF32:
		return ConstF32(float32(l.F64) / float32(r.F64))
	case OpAddF64:
		return ConstF64(l.F64 + r.F64)
	case OpSubF64:
		return ConstF64(l.F64 - r.F64)
	case OpMulF64:
		return ConstF64(l.F64 * r.F64)
	case OpDivF64:
		return ConstF64(l.F64 / r.F64)
	case OpEqF64:
		return ConstI32(b2i(l.F64 == r.F64))
	case OpNeF64:
		return ConstI32(b2i(l.F64 != r.F64))
	case OpLtF64:
		return ConstI32(b2i(l.F64 < r.F64))
	case OpGtF64:
		return ConstI32(b2i(l.F64 > r.F64))
	case OpMinF64:
		return ConstF64(math.Min(l.F64, r.F64))
	case OpMaxF64:
		return ConstF64(math.Max(l.F64, r.F64))
	default:
		return nil
	}
}

func b2i(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

// SideEffectFree reports whether re-evaluating the expression is safe, the
// clonability test behind short-circuit reuse.
func SideEffectFree(n *Node) bool {
	switch n.Kind {
	case KindConst, KindGetLocal, KindGetGlobal, KindNop:
		return true
	case KindUnary:
		return SideEffectFree(n.Value)
	case KindBinary:
		return SideEffectFree(n.Left) && SideEffectFree(n.Right)
	case KindSelect:
		return SideEffectFree(n.Condition) && SideEffectFree(n.IfTrue) && SideEffectFree(n.IfFalse)
	default:
		return false
	}
}

// Clone deep-copies an expression tree.
func Clone(n *Node) *Node {
	if n == nil {
		return nil
	}
	c := *n
	c.Left = Clone(n.Left)
	c.Right = Clone(n.Right)
	c.Value = Clone(n.Value)
	c.Ptr = Clone(n.Ptr)
	c.Condition = Clone(n.Condition)
	c.IfTrue = Clone(n.IfTrue)
	c.IfFalse = Clone(n.IfFalse)
	if n.List != nil {
		c.List = make([]*Node, len(n.List))
		for i, child := range n.List {
			c.List[i] = Clone(child)
		}
	}
	if n.Names != nil {
		c.Names = append([]string(nil), n.Names...)
	}
	return &c
}
