package codegen

import (
	"swell/internal/diag"
	"swell/internal/ir"
	"swell/internal/program"
	"swell/internal/source"
	"swell/internal/types"
)

// makeZero returns the native zero of a type.
func (c *Compiler) makeZero(t types.Type) *ir.Node {
	switch t.NativeType() {
	case types.NativeI64:
		return ir.ConstI64(0)
	case types.NativeF32:
		return ir.ConstF32(0)
	case types.NativeF64:
		return ir.ConstF64(0)
	default:
		return ir.ConstI32(0)
	}
}

// makeOne returns the native one of a type.
func (c *Compiler) makeOne(t types.Type) *ir.Node {
	switch t.NativeType() {
	case types.NativeI64:
		return ir.ConstI64(1)
	case types.NativeF32:
		return ir.ConstF32(1)
	case types.NativeF64:
		return ir.ConstF64(1)
	default:
		return ir.ConstI32(1)
	}
}

// convertExpr lowers a type conversion. Implicit conversions between
// unassignable types report and continue so downstream diagnostics stay
// meaningful. When wrap is requested and the destination is a short
// integer, the result is wrapped.
func (c *Compiler) convertExpr(expr *ir.Node, from, to types.Type, kind ConversionKind, wrap bool, span source.Span) *ir.Node {
	if from.IsVoid() {
		if to.IsVoid() {
			panic("codegen: void-to-void conversion")
		}
		c.error(diag.TypeVoidValue, span, "an expression of type void cannot be converted to %s", to)
		return ir.Unreachable()
	}
	if to.IsVoid() {
		return ir.Drop(expr)
	}
	if kind == ConversionImplicit && !from.IsAssignableTo(to, false, c.prog) {
		c.error(diag.TypeNotAssignable, span, "type %s is not assignable to type %s", from, to)
		// Keep converting so the IR type still matches the context.
	}

	switch {
	case from.IsReference() || to.IsReference():
		// References convert freely among themselves (checked above) and
		// to/from pointer-sized integers explicitly; the native types
		// already agree.

	case from.IsFloatValue() && to.IsFloatValue():
		if from.Kind == types.KindF32 && to.Kind == types.KindF64 {
			expr = ir.Unary(ir.OpPromoteF32, expr, types.NativeF64)
		} else if from.Kind == types.KindF64 && to.Kind == types.KindF32 {
			expr = ir.Unary(ir.OpDemoteF64, expr, types.NativeF32)
		}

	case from.IsFloatValue() && to.IsIntegerValue():
		expr = c.makeTruncate(expr, from, to)

	case from.IsIntegerValue() && to.IsFloatValue():
		expr = c.makeConvertToFloat(expr, from, to)

	case from.IsIntegerValue() && to.IsIntegerValue():
		if from.Is(types.FlagLong) && !to.Is(types.FlagLong) {
			expr = ir.Unary(ir.OpWrapI64, expr, types.NativeI32)
		} else if !from.Is(types.FlagLong) && to.Is(types.FlagLong) {
			// Clear garbage bits of a small source before widening so
			// they do not leak into the upper half.
			if from.IsShortInteger() {
				expr = c.ensureSmallIntegerWrap(expr, from)
			}
			if from.Is(types.FlagSigned) {
				expr = ir.Unary(ir.OpExtendI32, expr, types.NativeI64)
			} else {
				expr = ir.Unary(ir.OpExtendU32, expr, types.NativeI64)
			}
		}
	}

	if wrap && to.IsShortInteger() {
		expr = c.ensureSmallIntegerWrap(expr, to)
	}
	return expr
}

func (c *Compiler) makeTruncate(expr *ir.Node, from, to types.Type) *ir.Node {
	f64 := from.Kind == types.KindF64
	long := to.Is(types.FlagLong)
	signed := to.Is(types.FlagSigned)
	var op ir.Op
	switch {
	case f64 && long && signed:
		op = ir.OpTruncF64ToI64
	case f64 && long:
		op = ir.OpTruncF64ToU64
	case f64 && signed:
		op = ir.OpTruncF64ToI32
	case f64:
		op = ir.OpTruncF64ToU32
	case long && signed:
		op = ir.OpTruncF32ToI64
	case long:
		op = ir.OpTruncF32ToU64
	case signed:
		op = ir.OpTruncF32ToI32
	default:
		op = ir.OpTruncF32ToU32
	}
	nt := types.NativeI32
	if long {
		nt = types.NativeI64
	}
	return ir.Unary(op, expr, nt)
}

func (c *Compiler) makeConvertToFloat(expr *ir.Node, from, to types.Type) *ir.Node {
	if from.IsShortInteger() {
		expr = c.ensureSmallIntegerWrap(expr, from)
	}
	long := from.Is(types.FlagLong)
	signed := from.Is(types.FlagSigned)
	f64 := to.Kind == types.KindF64
	var op ir.Op
	switch {
	case f64 && long && signed:
		op = ir.OpConvertI64ToF64
	case f64 && long:
		op = ir.OpConvertU64ToF64
	case f64 && signed:
		op = ir.OpConvertI32ToF64
	case f64:
		op = ir.OpConvertU32ToF64
	case long && signed:
		op = ir.OpConvertI64ToF32
	case long:
		op = ir.OpConvertU64ToF32
	case signed:
		op = ir.OpConvertI32ToF32
	default:
		op = ir.OpConvertU32ToF32
	}
	nt := types.NativeF32
	if f64 {
		nt = types.NativeF64
	}
	return ir.Unary(op, expr, nt)
}

// ensureSmallIntegerWrap clears the garbage bits of a logical 8/16/1-bit
// value living in its 32-bit native slot. Skipped when the flow already
// proves the value wrapped.
func (c *Compiler) ensureSmallIntegerWrap(expr *ir.Node, t types.Type) *ir.Node {
	if c.currentFlow != nil && !c.currentFlow.CanOverflow(expr, t) {
		return expr
	}
	switch t.Kind {
	case types.KindBool:
		return ir.Binary(ir.OpAndI32, expr, ir.ConstI32(1), types.NativeI32)
	case types.KindU8:
		return ir.Binary(ir.OpAndI32, expr, ir.ConstI32(0xff), types.NativeI32)
	case types.KindU16:
		return ir.Binary(ir.OpAndI32, expr, ir.ConstI32(0xffff), types.NativeI32)
	case types.KindI8:
		if c.opts.Features.Has(program.FeatureSignExtension) {
			return ir.Unary(ir.OpExtendI8ToI32, expr, types.NativeI32)
		}
		return ir.Binary(ir.OpShrI32,
			ir.Binary(ir.OpShlI32, expr, ir.ConstI32(24), types.NativeI32),
			ir.ConstI32(24), types.NativeI32)
	case types.KindI16:
		if c.opts.Features.Has(program.FeatureSignExtension) {
			return ir.Unary(ir.OpExtendI16ToI32, expr, types.NativeI32)
		}
		return ir.Binary(ir.OpShrI32,
			ir.Binary(ir.OpShlI32, expr, ir.ConstI32(16), types.NativeI32),
			ir.ConstI32(16), types.NativeI32)
	default:
		return expr
	}
}

// makeIsTrueish converts a value to a branch condition: non-zero is true.
func (c *Compiler) makeIsTrueish(expr *ir.Node, t types.Type) *ir.Node {
	switch {
	case t.IsShortInteger():
		return c.ensureSmallIntegerWrap(expr, t)
	case t.NativeType() == types.NativeI64:
		return ir.Binary(ir.OpNeI64, expr, ir.ConstI64(0), types.NativeI32)
	case t.Kind == types.KindF32:
		return ir.Binary(ir.OpNeF32, expr, ir.ConstF32(0), types.NativeI32)
	case t.Kind == types.KindF64:
		return ir.Binary(ir.OpNeF64, expr, ir.ConstF64(0), types.NativeI32)
	default:
		// 32-bit integers and 32-bit pointers pass through.
		return expr
	}
}

// makeIsFalseish is the negated counterpart.
func (c *Compiler) makeIsFalseish(expr *ir.Node, t types.Type) *ir.Node {
	switch {
	case t.IsShortInteger():
		return ir.Unary(ir.OpEqzI32, c.ensureSmallIntegerWrap(expr, t), types.NativeI32)
	case t.NativeType() == types.NativeI64:
		return ir.Unary(ir.OpEqzI64, expr, types.NativeI32)
	case t.Kind == types.KindF32:
		return ir.Binary(ir.OpEqF32, expr, ir.ConstF32(0), types.NativeI32)
	case t.Kind == types.KindF64:
		return ir.Binary(ir.OpEqF64, expr, ir.ConstF64(0), types.NativeI32)
	default:
		return ir.Unary(ir.OpEqzI32, expr, types.NativeI32)
	}
}
