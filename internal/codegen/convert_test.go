package codegen

import (
	"testing"

	"swell/internal/ir"
	"swell/internal/program"
	"swell/internal/source"
	"swell/internal/types"
)

func convCompiler(features program.Feature) *Compiler {
	c := newTestCompiler(&program.Options{Features: features})
	c.currentFn = c.startFunctionInstance()
	c.currentFlow = c.startFlowInstance()
	return c
}

func TestConvertIntWidening(t *testing.T) {
	c := convCompiler(0)
	sp := source.Span{}

	n := c.convertExpr(ir.GetLocal(0, types.NativeI32), types.I32, types.I64, ConversionImplicit, false, sp)
	if n.Kind != ir.KindUnary || n.Op != ir.OpExtendI32 {
		t.Fatalf("i32->i64 must sign-extend, got %s", ir.NodeText(n))
	}
	n = c.convertExpr(ir.GetLocal(0, types.NativeI32), types.U32, types.U64, ConversionImplicit, false, sp)
	if n.Op != ir.OpExtendU32 {
		t.Fatalf("u32->u64 must zero-extend, got %s", ir.NodeText(n))
	}
	n = c.convertExpr(ir.GetLocal(0, types.NativeI64), types.I64, types.I32, ConversionExplicit, false, sp)
	if n.Op != ir.OpWrapI64 {
		t.Fatalf("i64->i32 must wrap, got %s", ir.NodeText(n))
	}
}

func TestConvertSmallSourceRewrapsBeforeExtend(t *testing.T) {
	c := convCompiler(0)
	n := c.convertExpr(ir.GetLocal(0, types.NativeI32), types.I8, types.I64, ConversionImplicit, false, source.Span{})
	if n.Kind != ir.KindUnary || n.Op != ir.OpExtendI32 {
		t.Fatalf("expected extend, got %s", ir.NodeText(n))
	}
	// The garbage bits of the i8 clear before widening.
	inner := n.Value
	if inner.Kind != ir.KindBinary || inner.Op != ir.OpShrI32 {
		t.Fatalf("small source must re-wrap before the extend, got %s", ir.NodeText(n))
	}
}

func TestConvertFloatPaths(t *testing.T) {
	c := convCompiler(0)
	sp := source.Span{}

	n := c.convertExpr(ir.GetLocal(0, types.NativeF32), types.F32, types.F64, ConversionImplicit, false, sp)
	if n.Op != ir.OpPromoteF32 {
		t.Fatalf("f32->f64 must promote, got %s", ir.NodeText(n))
	}
	n = c.convertExpr(ir.GetLocal(0, types.NativeF64), types.F64, types.F32, ConversionExplicit, false, sp)
	if n.Op != ir.OpDemoteF64 {
		t.Fatalf("f64->f32 must demote, got %s", ir.NodeText(n))
	}
	n = c.convertExpr(ir.GetLocal(0, types.NativeF64), types.F64, types.U32, ConversionExplicit, false, sp)
	if n.Op != ir.OpTruncF64ToU32 {
		t.Fatalf("f64->u32 must truncate unsigned, got %s", ir.NodeText(n))
	}
	n = c.convertExpr(ir.GetLocal(0, types.NativeI32), types.I32, types.F64, ConversionExplicit, false, sp)
	if n.Op != ir.OpConvertI32ToF64 {
		t.Fatalf("i32->f64 must convert signed, got %s", ir.NodeText(n))
	}
}

func TestConvertToVoidDrops(t *testing.T) {
	c := convCompiler(0)
	n := c.convertExpr(ir.GetLocal(0, types.NativeI32), types.I32, types.Void, ConversionImplicit, false, source.Span{})
	if n.Kind != ir.KindDrop {
		t.Fatalf("any->void must drop, got %s", ir.NodeText(n))
	}
}

func TestEnsureWrapVariants(t *testing.T) {
	withFeature := convCompiler(program.FeatureSignExtension)
	n := withFeature.ensureSmallIntegerWrap(ir.GetLocal(0, types.NativeI32), types.I16)
	if n.Kind != ir.KindUnary || n.Op != ir.OpExtendI16ToI32 {
		t.Fatalf("i16 wrap with sign-extension, got %s", ir.NodeText(n))
	}

	without := convCompiler(0)
	n = without.ensureSmallIntegerWrap(ir.GetLocal(0, types.NativeI32), types.U8)
	if n.Kind != ir.KindBinary || n.Op != ir.OpAndI32 || n.Right.I64 != 0xff {
		t.Fatalf("u8 wrap must mask 0xff, got %s", ir.NodeText(n))
	}
	n = without.ensureSmallIntegerWrap(ir.GetLocal(0, types.NativeI32), types.Bool)
	if n.Op != ir.OpAndI32 || n.Right.I64 != 1 {
		t.Fatalf("bool wrap must mask 1, got %s", ir.NodeText(n))
	}
	// A provably wrapped value skips the wrap.
	without.currentFlow.SetLocalWrapped(0, true)
	n = without.ensureSmallIntegerWrap(ir.GetLocal(0, types.NativeI32), types.U8)
	if n.Kind != ir.KindGetLocal {
		t.Fatalf("wrapped value must pass through, got %s", ir.NodeText(n))
	}
}

func TestTruthiness(t *testing.T) {
	c := convCompiler(0)
	n := c.makeIsTrueish(ir.GetLocal(0, types.NativeI64), types.I64)
	if n.Kind != ir.KindBinary || n.Op != ir.OpNeI64 {
		t.Fatalf("i64 truthiness must compare against zero, got %s", ir.NodeText(n))
	}
	n = c.makeIsTrueish(ir.GetLocal(0, types.NativeI32), types.I32)
	if n.Kind != ir.KindGetLocal {
		t.Fatalf("i32 truthiness passes through, got %s", ir.NodeText(n))
	}
	n = c.makeIsFalseish(ir.GetLocal(0, types.NativeF64), types.F64)
	if n.Op != ir.OpEqF64 {
		t.Fatalf("f64 falseness compares equal to zero, got %s", ir.NodeText(n))
	}
	n = c.makeIsFalseish(ir.GetLocal(0, types.NativeI32), types.I32)
	if n.Op != ir.OpEqzI32 {
		t.Fatalf("i32 falseness is eqz, got %s", ir.NodeText(n))
	}
}
