package codegen

import (
	"swell/internal/ast"
	"swell/internal/diag"
	"swell/internal/ir"
	"swell/internal/program"
	"swell/internal/types"
)

// operatorKindOf maps binary tokens to overloadable operator kinds.
func operatorKindOf(op ast.BinaryOp) program.OperatorKind {
	switch op {
	case ast.OpAdd:
		return program.OperatorAdd
	case ast.OpSub:
		return program.OperatorSub
	case ast.OpMul:
		return program.OperatorMul
	case ast.OpDiv:
		return program.OperatorDiv
	case ast.OpRem:
		return program.OperatorRem
	case ast.OpPow:
		return program.OperatorPow
	case ast.OpEq:
		return program.OperatorEq
	case ast.OpNe:
		return program.OperatorNe
	case ast.OpLt:
		return program.OperatorLt
	case ast.OpLe:
		return program.OperatorLe
	case ast.OpGt:
		return program.OperatorGt
	case ast.OpGe:
		return program.OperatorGe
	case ast.OpBitAnd:
		return program.OperatorBitAnd
	case ast.OpBitOr:
		return program.OperatorBitOr
	case ast.OpBitXor:
		return program.OperatorBitXor
	case ast.OpShl:
		return program.OperatorShl
	case ast.OpShr:
		return program.OperatorShr
	case ast.OpShrU:
		return program.OperatorShrU
	default:
		return program.OperatorInvalid
	}
}

func isRelational(op ast.BinaryOp) bool {
	switch op {
	case ast.OpLt, ast.OpLe, ast.OpGt, ast.OpGe:
		return true
	}
	return false
}

func isComparison(op ast.BinaryOp) bool {
	switch op {
	case ast.OpEq, ast.OpNe, ast.OpLt, ast.OpLe, ast.OpGt, ast.OpGe:
		return true
	}
	return false
}

// wrapSensitive reports operators whose result observes the upper bits of
// short-integer operands.
func wrapSensitive(op ast.BinaryOp) bool {
	switch op {
	case ast.OpDiv, ast.OpRem, ast.OpShr, ast.OpShrU:
		return true
	}
	return isComparison(op)
}

func (c *Compiler) compileBinaryExpression(expr *ast.Expr, contextualType types.Type) *ir.Node {
	data := expr.Data.(ast.BinaryData)
	if data.Op.IsAssignment() {
		return c.compileAssignmentExpression(expr, contextualType)
	}
	if data.Op == ast.OpLogicalAnd || data.Op == ast.OpLogicalOr {
		return c.compileLogicalExpression(expr)
	}

	hint := contextualType
	if !hint.IsIntegerValue() && !hint.IsFloatValue() {
		hint = types.Void
	}
	left := c.compileExpression(data.Left, hint, ConversionNone, false)
	leftType := c.currentType

	if leftType.IsReference() {
		return c.compileReferenceBinary(expr, data, left, leftType)
	}

	right := c.compileExpression(data.Right, leftType, ConversionNone, false)
	rightType := c.currentType

	commonType, ok := types.CommonCompatible(leftType, rightType, isRelational(data.Op), c.prog)
	if !ok || !commonType.IsAny(types.FlagInteger|types.FlagFloat) {
		c.error(diag.TypeArithmeticOperands, expr.Span,
			"operator %s cannot be applied to types %s and %s", data.Op, leftType, rightType)
		c.currentType = contextualType
		return ir.Unreachable()
	}

	// Power and float modulo route through the math namespaces.
	if data.Op == ast.OpPow || (data.Op == ast.OpRem && commonType.IsFloatValue()) {
		return c.compileMathBinary(expr, data, left, leftType, right, rightType, commonType)
	}

	needWrap := wrapSensitive(data.Op)
	left = c.convertExpr(left, leftType, commonType, ConversionImplicit, needWrap, data.Left.Span)
	right = c.convertExpr(right, rightType, commonType, ConversionImplicit, needWrap, data.Right.Span)
	if needWrap && commonType.IsShortInteger() {
		left = c.ensureSmallIntegerWrap(left, commonType)
		right = c.ensureSmallIntegerWrap(right, commonType)
	}

	op, ok := binaryIROp(data.Op, commonType)
	if !ok {
		c.error(diag.TypeOperatorNotApplicable, expr.Span,
			"operator %s is not defined for %s", data.Op, commonType)
		c.currentType = contextualType
		return ir.Unreachable()
	}

	if isComparison(data.Op) {
		c.currentType = types.Bool
		return ir.Binary(op, left, right, types.NativeI32)
	}
	c.currentType = commonType
	return ir.Binary(op, left, right, commonType.NativeType())
}

// compileReferenceBinary dispatches a binary operator on a reference LHS
// to the class's overload; == and != fall back to pointer equality.
func (c *Compiler) compileReferenceBinary(expr *ast.Expr, data ast.BinaryData, left *ir.Node, leftType types.Type) *ir.Node {
	cls := c.prog.ClassByID(leftType.Class)
	kind := operatorKindOf(data.Op)
	if cls != nil && kind != program.OperatorInvalid {
		if proto, ok := cls.Operator(kind); ok {
			return c.compileOperatorCall(expr, proto, cls, left, []*ast.Expr{data.Right})
		}
	}
	if data.Op == ast.OpEq || data.Op == ast.OpNe {
		right := c.compileExpression(data.Right, leftType.AsNullable(), ConversionImplicit, false)
		op := ir.OpEqI32
		if c.usizeType.Is(types.FlagLong) {
			op = ir.OpEqI64
		}
		if data.Op == ast.OpNe {
			if op == ir.OpEqI32 {
				op = ir.OpNeI32
			} else {
				op = ir.OpNeI64
			}
		}
		c.currentType = types.Bool
		return ir.Binary(op, left, right, types.NativeI32)
	}
	c.error(diag.TypeOperatorNotApplicable, expr.Span,
		"operator %s is not defined for %s", data.Op, leftType)
	c.currentType = types.Bool
	return ir.Unreachable()
}

// compileOperatorCall lowers an operator overload to a direct (possibly
// inlined) call with the LHS as this.
func (c *Compiler) compileOperatorCall(expr *ast.Expr, proto *program.FunctionPrototype, cls *program.Class, this *ir.Node, args []*ast.Expr) *ir.Node {
	f, err := c.prog.ResolveFunction(proto, nil, cls)
	if err != nil {
		c.error(diag.SemaUnresolvedIdentifier, expr.Span, "%v", err)
		c.currentType = types.Bool
		return ir.Unreachable()
	}
	operands := make([]*ir.Node, 0, len(args)+1)
	operands = append(operands, this)
	for i, a := range args {
		if i >= len(f.Signature.ParameterTypes) {
			break
		}
		operands = append(operands, c.compileExpression(a, f.Signature.ParameterTypes[i], ConversionImplicit, true))
	}
	node := c.makeCallDirect(f, operands, expr.Span)
	c.currentType = f.Signature.ReturnType
	return node
}

// compileMathBinary lowers ** and float % to Math/Mathf calls resolved
// from the root namespaces.
func (c *Compiler) compileMathBinary(expr *ast.Expr, data ast.BinaryData, left *ir.Node, leftType types.Type, right *ir.Node, rightType types.Type, commonType types.Type) *ir.Node {
	if !commonType.IsFloatValue() {
		c.error(diag.TypeOperatorNotApplicable, expr.Span,
			"operator %s requires floating-point operands", data.Op)
		c.currentType = commonType
		return ir.Unreachable()
	}
	f32 := commonType.Kind == types.KindF32
	var fn *program.Function
	if data.Op == ast.OpPow {
		fn = c.resolveMathFunction("pow", f32, expr)
	} else {
		fn = c.resolveMathFunction("mod", f32, expr)
	}
	if fn == nil {
		c.currentType = commonType
		return ir.Unreachable()
	}
	left = c.convertExpr(left, leftType, commonType, ConversionImplicit, false, data.Left.Span)
	right = c.convertExpr(right, rightType, commonType, ConversionImplicit, false, data.Right.Span)
	node := c.makeCallDirect(fn, []*ir.Node{left, right}, expr.Span)
	c.currentType = commonType
	return node
}

// resolveMathFunction memoises Math.pow / Mathf.pow / Math.mod /
// Mathf.mod instances on the compiler.
func (c *Compiler) resolveMathFunction(name string, f32 bool, expr *ast.Expr) *program.Function {
	var cached **program.Function
	nsName := "Math"
	if f32 {
		nsName = "Mathf"
	}
	switch {
	case name == "pow" && f32:
		cached = &c.mathfPow
	case name == "pow":
		cached = &c.mathPow
	case f32:
		cached = &c.mathfMod
	default:
		cached = &c.mathMod
	}
	if *cached != nil {
		return *cached
	}
	e, ok := c.prog.Lookup(nsName)
	if !ok {
		c.error(diag.SemaUnresolvedIdentifier, expr.Span, "namespace %s is not declared", nsName)
		return nil
	}
	ns, ok := e.(*program.Namespace)
	if !ok {
		c.error(diag.SemaUnresolvedIdentifier, expr.Span, "%s is not a namespace", nsName)
		return nil
	}
	m, ok := ns.Member(name)
	if !ok {
		c.error(diag.SemaUnresolvedMember, expr.Span, "%s.%s is not declared", nsName, name)
		return nil
	}
	proto, ok := m.(*program.FunctionPrototype)
	if !ok {
		c.error(diag.TypeNotCallable, expr.Span, "%s.%s is not a function", nsName, name)
		return nil
	}
	f, err := c.prog.ResolveFunction(proto, nil, nil)
	if err != nil {
		c.error(diag.SemaUnresolvedIdentifier, expr.Span, "%v", err)
		return nil
	}
	*cached = f
	return f
}

// compileLogicalExpression lowers && and || with short-circuit selects; a
// side-effect-free LHS is cloned, anything else is teed into a temp.
func (c *Compiler) compileLogicalExpression(expr *ast.Expr) *ir.Node {
	data := expr.Data.(ast.BinaryData)
	left := c.compileExpression(data.Left, types.Void, ConversionNone, false)
	leftType := c.currentType
	right := c.compileExpression(data.Right, leftType, ConversionImplicit, false)

	nt := leftType.NativeType()
	if ir.SideEffectFree(left) {
		cond := c.makeIsTrueish(ir.Clone(left), leftType)
		c.currentType = leftType
		if data.Op == ast.OpLogicalAnd {
			return ir.If(cond, right, left, nt)
		}
		return ir.If(cond, left, right, nt)
	}

	tmp := c.getTempLocal(leftType)
	cond := c.makeIsTrueish(ir.TeeLocal(uint32(tmp.Index), left, nt), leftType)
	reuse := ir.GetLocal(uint32(tmp.Index), nt)
	c.freeTempLocal(tmp)
	c.currentType = leftType
	if data.Op == ast.OpLogicalAnd {
		return ir.If(cond, right, reuse, nt)
	}
	return ir.If(cond, reuse, right, nt)
}

// binaryIROp picks the concrete IR operation for an operator over a
// numeric type. >>> emits the unsigned shift exactly once for every
// integer type, bool included.
func binaryIROp(op ast.BinaryOp, t types.Type) (ir.Op, bool) {
	long := t.Is(types.FlagLong)
	if t.IsFloatValue() {
		f32 := t.Kind == types.KindF32
		switch op {
		case ast.OpAdd:
			return pick(f32, ir.OpAddF32, ir.OpAddF64), true
		case ast.OpSub:
			return pick(f32, ir.OpSubF32, ir.OpSubF64), true
		case ast.OpMul:
			return pick(f32, ir.OpMulF32, ir.OpMulF64), true
		case ast.OpDiv:
			return pick(f32, ir.OpDivF32, ir.OpDivF64), true
		case ast.OpEq:
			return pick(f32, ir.OpEqF32, ir.OpEqF64), true
		case ast.OpNe:
			return pick(f32, ir.OpNeF32, ir.OpNeF64), true
		case ast.OpLt:
			return pick(f32, ir.OpLtF32, ir.OpLtF64), true
		case ast.OpLe:
			return pick(f32, ir.OpLeF32, ir.OpLeF64), true
		case ast.OpGt:
			return pick(f32, ir.OpGtF32, ir.OpGtF64), true
		case ast.OpGe:
			return pick(f32, ir.OpGeF32, ir.OpGeF64), true
		default:
			return ir.OpInvalid, false
		}
	}
	if !t.IsIntegerValue() {
		return ir.OpInvalid, false
	}
	signed := t.Is(types.FlagSigned)
	switch op {
	case ast.OpAdd:
		return pick(long, ir.OpAddI64, ir.OpAddI32), true
	case ast.OpSub:
		return pick(long, ir.OpSubI64, ir.OpSubI32), true
	case ast.OpMul:
		return pick(long, ir.OpMulI64, ir.OpMulI32), true
	case ast.OpDiv:
		if signed {
			return pick(long, ir.OpDivI64, ir.OpDivI32), true
		}
		return pick(long, ir.OpDivU64, ir.OpDivU32), true
	case ast.OpRem:
		if signed {
			return pick(long, ir.OpRemI64, ir.OpRemI32), true
		}
		return pick(long, ir.OpRemU64, ir.OpRemU32), true
	case ast.OpBitAnd:
		return pick(long, ir.OpAndI64, ir.OpAndI32), true
	case ast.OpBitOr:
		return pick(long, ir.OpOrI64, ir.OpOrI32), true
	case ast.OpBitXor:
		return pick(long, ir.OpXorI64, ir.OpXorI32), true
	case ast.OpShl:
		return pick(long, ir.OpShlI64, ir.OpShlI32), true
	case ast.OpShr:
		if signed {
			return pick(long, ir.OpShrI64, ir.OpShrI32), true
		}
		return pick(long, ir.OpShrU64, ir.OpShrU32), true
	case ast.OpShrU:
		return pick(long, ir.OpShrU64, ir.OpShrU32), true
	case ast.OpEq:
		return pick(long, ir.OpEqI64, ir.OpEqI32), true
	case ast.OpNe:
		return pick(long, ir.OpNeI64, ir.OpNeI32), true
	case ast.OpLt:
		if signed {
			return pick(long, ir.OpLtI64, ir.OpLtI32), true
		}
		return pick(long, ir.OpLtU64, ir.OpLtU32), true
	case ast.OpLe:
		if signed {
			return pick(long, ir.OpLeI64, ir.OpLeI32), true
		}
		return pick(long, ir.OpLeU64, ir.OpLeU32), true
	case ast.OpGt:
		if signed {
			return pick(long, ir.OpGtI64, ir.OpGtI32), true
		}
		return pick(long, ir.OpGtU64, ir.OpGtU32), true
	case ast.OpGe:
		if signed {
			return pick(long, ir.OpGeI64, ir.OpGeI32), true
		}
		return pick(long, ir.OpGeU64, ir.OpGeU32), true
	default:
		return ir.OpInvalid, false
	}
}

func pick(first bool, a, b ir.Op) ir.Op {
	if first {
		return a
	}
	return b
}
