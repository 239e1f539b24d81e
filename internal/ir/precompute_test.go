package ir

import (
	"testing"

	"swell/internal/types"
)

func TestPrecomputeFoldsArithmetic(t *testing.T) {
	n := Binary(OpAddI32, ConstI32(40), ConstI32(2), types.NativeI32)
	folded := Precompute(n)
	if !folded.IsConst() || int32(folded.I64) != 42 {
		t.Fatalf("fold = %s", NodeText(folded))
	}
}

func TestPrecomputeFoldsNested(t *testing.T) {
	n := Binary(OpMulI32,
		Binary(OpAddI32, ConstI32(1), ConstI32(2), types.NativeI32),
		ConstI32(3), types.NativeI32)
	folded := Precompute(n)
	if !folded.IsConst() || int32(folded.I64) != 9 {
		t.Fatalf("fold = %s", NodeText(folded))
	}
}

func TestPrecomputeLeavesDynamicAlone(t *testing.T) {
	n := Binary(OpAddI32, GetLocal(0, types.NativeI32), ConstI32(1), types.NativeI32)
	if Precompute(n).IsConst() {
		t.Fatalf("dynamic expression must not fold")
	}
}

func TestPrecomputeDivByZeroDoesNotFold(t *testing.T) {
	n := Binary(OpDivI32, ConstI32(1), ConstI32(0), types.NativeI32)
	if Precompute(n).IsConst() {
		t.Fatalf("division by zero must not fold")
	}
}

func TestPrecomputeSmallIntWrapOps(t *testing.T) {
	n := Unary(OpExtendI8ToI32, ConstI32(0x180), types.NativeI32)
	folded := Precompute(n)
	if !folded.IsConst() || int32(folded.I64) != -128 {
		t.Fatalf("extend8_s(0x180) = %s", NodeText(folded))
	}
}

func TestSideEffectFree(t *testing.T) {
	if !SideEffectFree(Binary(OpAddI32, GetLocal(0, types.NativeI32), ConstI32(1), types.NativeI32)) {
		t.Fatalf("pure arithmetic must be clonable")
	}
	call := Call("f", nil, types.NativeI32)
	if SideEffectFree(call) {
		t.Fatalf("calls must not be clonable")
	}
	if SideEffectFree(TeeLocal(0, ConstI32(1), types.NativeI32)) {
		t.Fatalf("tee must not be clonable")
	}
}

func TestCloneIsDeep(t *testing.T) {
	n := Binary(OpAddI32, GetLocal(0, types.NativeI32), ConstI32(1), types.NativeI32)
	c := Clone(n)
	c.Left.Index = 7
	if n.Left.Index != 0 {
		t.Fatalf("clone must not alias the original")
	}
}
