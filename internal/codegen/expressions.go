package codegen

import (
	"math"

	"swell/internal/ast"
	"swell/internal/diag"
	"swell/internal/ir"
	"swell/internal/program"
	"swell/internal/types"
)

// compileExpression lowers an expression. After the call, currentType is
// exactly the IR type of the returned node; with an implicit or explicit
// conversion kind it equals contextualType unless an error was reported.
func (c *Compiler) compileExpression(expr *ast.Expr, contextualType types.Type, kind ConversionKind, wrap bool) *ir.Node {
	var node *ir.Node
	switch expr.Kind {
	case ast.ExprIdent:
		node = c.compileIdentifier(expr, contextualType)
	case ast.ExprIntLiteral:
		node = c.compileIntLiteral(expr, contextualType)
	case ast.ExprFloatLiteral:
		node = c.compileFloatLiteral(expr, contextualType)
	case ast.ExprStringLiteral:
		node = c.compileStringLiteral(expr)
	case ast.ExprArrayLiteral:
		node = c.compileArrayLiteral(expr)
	case ast.ExprBinary:
		node = c.compileBinaryExpression(expr, contextualType)
	case ast.ExprUnaryPrefix:
		node = c.compileUnaryPrefix(expr, contextualType)
	case ast.ExprUnaryPostfix:
		node = c.compileUnaryPostfix(expr)
	case ast.ExprCall:
		node = c.compileCallExpression(expr, contextualType)
	case ast.ExprNew:
		node = c.compileNewExpression(expr)
	case ast.ExprProperty:
		node = c.compilePropertyAccess(expr, contextualType)
	case ast.ExprElement:
		node = c.compileElementAccess(expr)
	case ast.ExprTernary:
		node = c.compileTernary(expr, contextualType)
	case ast.ExprParen:
		return c.compileExpression(expr.Data.(ast.ParenData).Inner, contextualType, kind, wrap)
	case ast.ExprAssertNonNull:
		node = c.compileExpression(expr.Data.(ast.AssertNonNullData).Inner, types.Void, ConversionNone, false)
		c.currentType = c.currentType.NonNullable()
	case ast.ExprCast:
		node = c.compileCastExpression(expr)
	default:
		c.error(diag.NotSupported, expr.Span, "expression kind not supported")
		c.currentType = contextualType
		return ir.Unreachable()
	}

	if kind != ConversionNone && c.currentType != contextualType {
		node = c.convertExpr(node, c.currentType, contextualType, kind, wrap, expr.Span)
		c.currentType = contextualType
	} else if wrap && c.currentType.IsShortInteger() {
		node = c.ensureSmallIntegerWrap(node, c.currentType)
	}
	c.recordDebugLocation(node, expr.Span)
	return node
}

// makeConstant turns an inlined element value into a node of its type,
// sign- or zero-extended through the usual conversion path when consumed
// in a wider context.
func (c *Compiler) makeConstant(v program.ConstantValue, t types.Type) *ir.Node {
	switch t.NativeType() {
	case types.NativeI64:
		return ir.ConstI64(v.Int)
	case types.NativeF32:
		return ir.ConstF32(float32(v.Float))
	case types.NativeF64:
		return ir.ConstF64(v.Float)
	default:
		return ir.ConstI32(int32(v.Int))
	}
}

func (c *Compiler) compileIdentifier(expr *ast.Expr, contextualType types.Type) *ir.Node {
	name := expr.Data.(ast.IdentData).Name
	switch name {
	case "null":
		if contextualType.IsReference() {
			c.currentType = contextualType.AsNullable()
		} else {
			c.currentType = c.usizeType
		}
		return c.makeZero(c.currentType)
	case "true":
		c.currentType = types.Bool
		return ir.ConstI32(1)
	case "false":
		c.currentType = types.Bool
		return ir.ConstI32(0)
	case "this":
		return c.compileThisExpression(expr)
	case "super":
		return c.compileSuperExpression(expr)
	}

	// Enum initializers see their earlier siblings by simple name.
	if c.currentEnum != nil {
		for _, v := range c.currentEnum.Values {
			if v.SimpleName == name {
				return c.compileElementAccessValue(v, expr)
			}
		}
	}

	flow := c.currentFlow
	if local, ok := flow.ScopedLocal(name); ok {
		return c.makeLocalAccess(local)
	}
	if c.currentFn != nil {
		if local, ok := c.currentFn.LocalByName(name); ok && !local.Is(program.FlagScoped) {
			return c.makeLocalAccess(local)
		}
	}
	if c.currentFn != nil && c.currentFn.Class != nil {
		if member, ok := c.currentFn.Class.StaticMember(name); ok {
			return c.compileElementAccessValue(member, expr)
		}
	}
	if e, ok := c.prog.Lookup(name); ok {
		return c.compileElementAccessValue(e, expr)
	}

	c.error(diag.SemaUnresolvedIdentifier, expr.Span, "cannot find name %s", name)
	c.currentType = contextualType
	return ir.Unreachable()
}

// makeLocalAccess reads a local; virtual locals substitute their literal.
func (c *Compiler) makeLocalAccess(local *program.Local) *ir.Node {
	c.currentType = local.Type
	if local.Index < 0 {
		return c.makeConstant(local.Constant, local.Type)
	}
	return ir.GetLocal(uint32(local.Index), local.Type.NativeType())
}

func (c *Compiler) compileThisExpression(expr *ast.Expr) *ir.Node {
	fn := c.currentFn
	if fn == nil || !fn.Signature.HasThis() {
		c.error(diag.SemaThisOutsideInstance, expr.Span, "this is only valid in instance members")
		c.currentType = c.usizeType
		return ir.Unreachable()
	}
	cls := fn.Class
	flow := c.currentFlow
	if fn.Is(program.FlagConstructor) && !flow.Is(FlowAllocates) {
		// First observable use of this in a constructor allocates unless
		// a super call already did.
		flow.Set(FlowAllocates)
		c.currentType = cls.Type
		return ir.TeeLocal(0, c.makeConditionalAllocate(cls), cls.Type.NativeType())
	}
	c.currentType = cls.Type
	return ir.GetLocal(0, cls.Type.NativeType())
}

func (c *Compiler) compileSuperExpression(expr *ast.Expr) *ir.Node {
	fn := c.currentFn
	if fn == nil || fn.Class == nil || fn.Class.Base == nil {
		c.error(diag.SemaSuperOutsideDerived, expr.Span, "super requires a derived class context")
		c.currentType = c.usizeType
		return ir.Unreachable()
	}
	base := fn.Class.Base
	c.currentType = base.Type
	return ir.GetLocal(0, base.Type.NativeType())
}

// compileElementAccessValue reads a resolved element as a value.
func (c *Compiler) compileElementAccessValue(e program.Element, expr *ast.Expr) *ir.Node {
	switch elem := e.(type) {
	case *program.Local:
		return c.makeLocalAccess(elem)
	case *program.Global:
		c.compileGlobal(elem)
		c.currentType = elem.Type
		if elem.Is(program.FlagInlined) {
			return c.makeConstant(elem.Constant, elem.Type)
		}
		return ir.GetGlobal(elem.Internal, elem.Type.NativeType())
	case *program.EnumValue:
		c.currentType = types.I32
		if elem.Is(program.FlagInlined) {
			return c.makeConstant(elem.Constant, types.I32)
		}
		return ir.GetGlobal(elem.Internal, types.NativeI32)
	case *program.FunctionPrototype:
		// A function used as a value becomes its table index.
		if elem.Is(program.FlagGeneric) {
			c.error(diag.TypeExpectedTypeArguments, expr.Span, "generic function %s needs type arguments", elem.SimpleName)
			c.currentType = c.usizeType
			return ir.Unreachable()
		}
		f, err := c.prog.ResolveFunction(elem, nil, nil)
		if err != nil {
			c.error(diag.SemaUnresolvedIdentifier, expr.Span, "%v", err)
			c.currentType = c.usizeType
			return ir.Unreachable()
		}
		idx := c.ensureFunctionTableEntry(f)
		c.currentType = types.U32
		return ir.ConstI32(idx)
	default:
		c.error(diag.TypeVoidValue, expr.Span, "%s %s is not a value", e.Kind(), e.Name())
		c.currentType = c.usizeType
		return ir.Unreachable()
	}
}

func (c *Compiler) compileIntLiteral(expr *ast.Expr, contextualType types.Type) *ir.Node {
	v := expr.Data.(ast.IntLiteralData).Value
	t := contextualType
	switch {
	case t.IsIntegerValue():
		if !intLiteralFits(v, t) {
			c.error(diag.TypeLiteralOverflow, expr.Span, "literal %d does not fit into %s", v, t)
		}
	case t.IsFloatValue():
		c.currentType = t
		if t.Kind == types.KindF32 {
			return ir.ConstF32(float32(v))
		}
		return ir.ConstF64(float64(v))
	default:
		// Neutral context: smallest of i32/i64/u64 the literal fits.
		switch {
		case v <= math.MaxInt32:
			t = types.I32
		case v <= math.MaxInt64:
			t = types.I64
		default:
			t = types.U64
		}
	}
	c.currentType = t
	if t.Is(types.FlagLong) {
		return ir.ConstI64(int64(v))
	}
	return ir.ConstI32(int32(uint32(v)))
}

func intLiteralFits(v uint64, t types.Type) bool {
	if t.Kind == types.KindBool {
		return v <= 1
	}
	if t.Is(types.FlagSigned) {
		max := uint64(1)<<(t.Bits-1) - 1
		return v <= max
	}
	if t.Bits >= 64 {
		return true
	}
	return v <= uint64(1)<<t.Bits-1
}

func (c *Compiler) compileFloatLiteral(expr *ast.Expr, contextualType types.Type) *ir.Node {
	v := expr.Data.(ast.FloatLiteralData).Value
	if contextualType.Kind == types.KindF32 {
		c.currentType = types.F32
		return ir.ConstF32(float32(v))
	}
	c.currentType = types.F64
	return ir.ConstF64(v)
}

func (c *Compiler) compileStringLiteral(expr *ast.Expr) *ir.Node {
	s := expr.Data.(ast.StringLiteralData).Value
	if cls := c.stringClass(); cls != nil {
		c.currentType = cls.Type
	} else {
		c.currentType = c.usizeType
	}
	return c.makeStaticStringExpr(s)
}

func (c *Compiler) compileArrayLiteral(expr *ast.Expr) *ir.Node {
	data := expr.Data.(ast.ArrayLiteralData)
	elemType := types.I32
	if data.ElementType != "" {
		t, ok := c.prog.ResolveTypeName(data.ElementType, c.contextualTypes())
		if !ok {
			c.error(diag.SemaUnresolvedIdentifier, expr.Span, "cannot resolve element type %q", data.ElementType)
			c.currentType = c.usizeType
			return ir.Unreachable()
		}
		elemType = t
	}
	values := make([]StaticArrayValue, 0, len(data.Elements))
	for _, el := range data.Elements {
		node := ir.Precompute(c.compileExpression(el, elemType, ConversionImplicit, true))
		if !node.IsConst() {
			c.error(diag.NotSupported, el.Span, "array literals require constant elements")
			c.currentType = c.usizeType
			return ir.Unreachable()
		}
		values = append(values, StaticArrayValue{Int: node.I64, Float: node.F64})
	}
	ptr := c.ensureStaticArray(elemType.ByteSize(), elemType.IsFloatValue(), values)
	c.currentType = c.usizeType
	return ir.ConstPtr(c.usizeType.NativeType(), uint64(ptr))
}

// contextualTypes returns the active type-parameter substitution.
func (c *Compiler) contextualTypes() map[string]types.Type {
	if c.currentFn != nil {
		return c.currentFn.ContextualTypes
	}
	return nil
}

func (c *Compiler) compileTernary(expr *ast.Expr, contextualType types.Type) *ir.Node {
	data := expr.Data.(ast.TernaryData)
	condExpr := c.compileExpression(data.Cond, types.Bool, ConversionNone, false)
	cond := c.makeIsTrueish(condExpr, c.currentType)

	if !contextualType.IsVoid() {
		thenNode := c.compileExpression(data.Then, contextualType, ConversionImplicit, false)
		elseNode := c.compileExpression(data.Else, contextualType, ConversionImplicit, false)
		c.currentType = contextualType
		return ir.If(cond, thenNode, elseNode, contextualType.NativeType())
	}
	thenNode := c.compileExpression(data.Then, types.Void, ConversionNone, false)
	thenType := c.currentType
	elseNode := c.compileExpression(data.Else, thenType, ConversionImplicit, false)
	c.currentType = thenType
	return ir.If(cond, thenNode, elseNode, thenType.NativeType())
}

func (c *Compiler) compileCastExpression(expr *ast.Expr) *ir.Node {
	data := expr.Data.(ast.CastData)
	inner := c.compileExpression(data.Inner, types.Void, ConversionNone, false)
	from := c.currentType
	to, ok := c.prog.ResolveTypeName(data.To, c.contextualTypes())
	if !ok {
		c.error(diag.SemaUnresolvedIdentifier, expr.Span, "cannot resolve type %q", data.To)
		return ir.Unreachable()
	}
	node := c.convertExpr(inner, from, to, ConversionExplicit, false, expr.Span)
	c.currentType = to
	return node
}
