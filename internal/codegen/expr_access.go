package codegen

import (
	"swell/internal/ast"
	"swell/internal/diag"
	"swell/internal/ir"
	"swell/internal/program"
	"swell/internal/types"
)

// resolveStaticPath resolves an expression that names a container rather
// than a value: a namespace, an enum or a class prototype.
func (c *Compiler) resolveStaticPath(expr *ast.Expr) (program.Element, bool) {
	switch expr.Kind {
	case ast.ExprIdent:
		name := expr.Data.(ast.IdentData).Name
		if _, isLocal := c.currentFlow.ScopedLocal(name); isLocal {
			return nil, false
		}
		if c.currentFn != nil {
			if _, isLocal := c.currentFn.LocalByName(name); isLocal {
				return nil, false
			}
		}
		e, ok := c.prog.Lookup(name)
		if !ok {
			return nil, false
		}
		switch e.(type) {
		case *program.Namespace, *program.Enum, *program.ClassPrototype:
			return e, true
		}
		return nil, false
	case ast.ExprProperty:
		data := expr.Data.(ast.PropertyData)
		parent, ok := c.resolveStaticPath(data.Target)
		if !ok {
			return nil, false
		}
		if ns, ok := parent.(*program.Namespace); ok {
			if m, ok := ns.Member(data.Name); ok {
				switch m.(type) {
				case *program.Namespace, *program.Enum, *program.ClassPrototype:
					return m, true
				}
			}
		}
		return nil, false
	case ast.ExprParen:
		return c.resolveStaticPath(expr.Data.(ast.ParenData).Inner)
	default:
		return nil, false
	}
}

// peekExpressionType determines an expression's type without emitting IR,
// used to classify member accesses before compiling their receivers.
func (c *Compiler) peekExpressionType(expr *ast.Expr) (types.Type, bool) {
	switch expr.Kind {
	case ast.ExprIdent:
		name := expr.Data.(ast.IdentData).Name
		switch name {
		case "this":
			if c.currentFn != nil && c.currentFn.Class != nil {
				return c.currentFn.Class.Type, true
			}
			return types.Void, false
		case "super":
			if c.currentFn != nil && c.currentFn.Class != nil && c.currentFn.Class.Base != nil {
				return c.currentFn.Class.Base.Type, true
			}
			return types.Void, false
		}
		if local, ok := c.currentFlow.ScopedLocal(name); ok {
			return local.Type, true
		}
		if c.currentFn != nil {
			if local, ok := c.currentFn.LocalByName(name); ok {
				return local.Type, true
			}
		}
		if e, ok := c.prog.Lookup(name); ok {
			if g, ok := e.(*program.Global); ok {
				c.compileGlobal(g)
				return g.Type, true
			}
		}
		return types.Void, false
	case ast.ExprNew:
		data := expr.Data.(ast.NewData)
		if cls, ok := c.resolveNewClass(data, expr); ok {
			return cls.Type, true
		}
		return types.Void, false
	case ast.ExprProperty:
		data := expr.Data.(ast.PropertyData)
		t, ok := c.peekExpressionType(data.Target)
		if !ok || !t.IsReference() {
			return types.Void, false
		}
		cls := c.prog.ClassByID(t.Class)
		if cls == nil {
			return types.Void, false
		}
		if f, ok := cls.FieldByName(data.Name); ok {
			return f.Type, true
		}
		return types.Void, false
	case ast.ExprParen:
		return c.peekExpressionType(expr.Data.(ast.ParenData).Inner)
	case ast.ExprAssertNonNull:
		t, ok := c.peekExpressionType(expr.Data.(ast.AssertNonNullData).Inner)
		return t.NonNullable(), ok
	default:
		return types.Void, false
	}
}

func (c *Compiler) compilePropertyAccess(expr *ast.Expr, contextualType types.Type) *ir.Node {
	data := expr.Data.(ast.PropertyData)

	// Static containers first: Enum.member, Namespace.member,
	// Class.static.
	if holder, ok := c.resolveStaticPath(data.Target); ok {
		switch h := holder.(type) {
		case *program.Enum:
			c.compileEnum(h)
			for _, v := range h.Values {
				if v.SimpleName == data.Name {
					return c.compileElementAccessValue(v, expr)
				}
			}
			c.error(diag.SemaUnresolvedMember, expr.Span, "enum %s has no member %s", h.SimpleName, data.Name)
		case *program.Namespace:
			if m, ok := h.Member(data.Name); ok {
				return c.compileElementAccessValue(m, expr)
			}
			c.error(diag.SemaUnresolvedMember, expr.Span, "namespace %s has no member %s", h.SimpleName, data.Name)
		case *program.ClassPrototype:
			if len(h.TypeParams) == 0 {
				if cls, err := c.prog.ResolveClass(h, nil); err == nil {
					if m, ok := cls.StaticMember(data.Name); ok {
						return c.compileElementAccessValue(m, expr)
					}
				}
			}
			c.error(diag.SemaUnresolvedMember, expr.Span, "class %s has no static member %s", h.SimpleName, data.Name)
		}
		c.currentType = contextualType
		return ir.Unreachable()
	}

	// Instance access: load a field or call a getter.
	target := c.compileExpression(data.Target, types.Void, ConversionNone, false)
	targetType := c.currentType
	if !targetType.IsReference() {
		c.error(diag.SemaUnresolvedMember, expr.Span, "type %s has no member %s", targetType, data.Name)
		c.currentType = contextualType
		return ir.Unreachable()
	}
	cls := c.prog.ClassByID(targetType.Class)
	if cls == nil {
		c.error(diag.SemaUnresolvedMember, expr.Span, "type %s has no member %s", targetType, data.Name)
		c.currentType = contextualType
		return ir.Unreachable()
	}
	if f, ok := cls.FieldByName(data.Name); ok {
		c.currentType = f.Type
		return ir.Load(uint8(f.Type.ByteSize()), f.Type.Is(types.FlagSigned), target, f.Type.NativeType(), f.Offset)
	}
	if m, ok := cls.InstanceMember(data.Name); ok {
		if p, ok := m.(*program.Property); ok {
			if p.Getter == nil {
				c.error(diag.SemaUnresolvedMember, expr.Span, "property %s has no getter", data.Name)
				c.currentType = contextualType
				return ir.Unreachable()
			}
			getter, err := c.prog.ResolveFunction(p.Getter, nil, cls)
			if err != nil {
				c.error(diag.SemaUnresolvedIdentifier, expr.Span, "%v", err)
				c.currentType = contextualType
				return ir.Unreachable()
			}
			node := c.makeCallDirect(getter, []*ir.Node{target}, expr.Span)
			c.currentType = getter.Signature.ReturnType
			return node
		}
	}
	c.error(diag.SemaUnresolvedMember, expr.Span, "type %s has no member %s", targetType, data.Name)
	c.currentType = contextualType
	return ir.Unreachable()
}

func (c *Compiler) compileElementAccess(expr *ast.Expr) *ir.Node {
	data := expr.Data.(ast.ElementData)
	target := c.compileExpression(data.Target, types.Void, ConversionNone, false)
	targetType := c.currentType
	if !targetType.IsReference() {
		c.error(diag.TypeNotIndexable, expr.Span, "type %s has no indexed access", targetType)
		c.currentType = types.I32
		return ir.Unreachable()
	}
	cls := c.prog.ClassByID(targetType.Class)
	var proto *program.FunctionPrototype
	if cls != nil {
		proto, _ = cls.Operator(program.OperatorIndexedGet)
	}
	if proto == nil {
		c.error(diag.SemaMissingIndexedGet, expr.Span, "type %s has no indexed getter", targetType)
		c.currentType = types.I32
		return ir.Unreachable()
	}
	return c.compileOperatorCall(expr, proto, cls, target, []*ast.Expr{data.Index})
}

// resolveNewClass resolves the class named by a new expression.
func (c *Compiler) resolveNewClass(data ast.NewData, expr *ast.Expr) (*program.Class, bool) {
	e, ok := c.prog.Lookup(data.Class)
	if !ok {
		c.error(diag.SemaUnresolvedIdentifier, expr.Span, "cannot find class %s", data.Class)
		return nil, false
	}
	proto, ok := e.(*program.ClassPrototype)
	if !ok {
		c.error(diag.SemaUnresolvedIdentifier, expr.Span, "%s is not a class", data.Class)
		return nil, false
	}
	var args []types.Type
	for _, name := range data.TypeArgs {
		t, ok := c.prog.ResolveTypeName(name, c.contextualTypes())
		if !ok {
			c.error(diag.SemaUnresolvedIdentifier, expr.Span, "cannot resolve type argument %q", name)
			return nil, false
		}
		args = append(args, t)
	}
	cls, err := c.prog.ResolveClass(proto, args)
	if err != nil {
		c.error(diag.SemaUnresolvedIdentifier, expr.Span, "%v", err)
		return nil, false
	}
	return cls, true
}

// compileNewExpression lowers new C(args): through the constructor when
// one exists (passed a null this so it allocates), otherwise a direct
// field-initializing allocation.
func (c *Compiler) compileNewExpression(expr *ast.Expr) *ir.Node {
	data := expr.Data.(ast.NewData)
	cls, ok := c.resolveNewClass(data, expr)
	if !ok {
		c.currentType = c.usizeType
		return ir.Unreachable()
	}
	c.compileClass(cls)
	if cls.Ctor != nil {
		sig := cls.Ctor.Signature
		if !c.checkCallSignature(sig, len(data.Args), true, expr) {
			c.currentType = cls.Type
			return ir.Unreachable()
		}
		operands := make([]*ir.Node, 0, len(data.Args)+1)
		operands = append(operands, c.makeZero(cls.Type))
		for i, a := range data.Args {
			operands = append(operands, c.compileExpression(a, sig.ParameterTypes[i], ConversionImplicit, true))
		}
		node := c.makeCallDirect(cls.Ctor, operands, expr.Span)
		c.currentType = cls.Type
		return node
	}
	if len(data.Args) > 0 {
		c.error(diag.TypeExpectedArguments, expr.Span, "class %s has no constructor taking arguments", cls.SimpleName)
	}
	node := c.makeAllocate(cls, nil)
	c.currentType = cls.Type
	return node
}

func (c *Compiler) compileUnaryPrefix(expr *ast.Expr, contextualType types.Type) *ir.Node {
	data := expr.Data.(ast.UnaryData)

	// Negative literals fold before any operand compilation so minimum
	// values like -128 for i8 survive the range check.
	if data.Op == ast.OpMinus && data.Operand.Kind == ast.ExprIntLiteral {
		v := data.Operand.Data.(ast.IntLiteralData).Value
		t := contextualType
		if !t.IsIntegerValue() {
			if t.IsFloatValue() {
				c.currentType = t
				if t.Kind == types.KindF32 {
					return ir.ConstF32(float32(-float64(v)))
				}
				return ir.ConstF64(-float64(v))
			}
			if v <= 1<<31 {
				t = types.I32
			} else {
				t = types.I64
			}
		}
		limit := uint64(1) << 31
		if t.Bits > 0 {
			if t.Is(types.FlagSigned) {
				limit = uint64(1) << (t.Bits - 1)
			} else {
				limit = 0
			}
		}
		if v > limit {
			c.error(diag.TypeLiteralOverflow, expr.Span, "literal -%d does not fit into %s", v, t)
		}
		c.currentType = t
		if t.Is(types.FlagLong) {
			return ir.ConstI64(-int64(v))
		}
		return ir.ConstI32(int32(-int64(v)))
	}

	switch data.Op {
	case ast.OpPreInc, ast.OpPreDec:
		return c.compileIncDec(expr, data, true, contextualType)
	}

	operand := c.compileExpression(data.Operand, neutralNumericHint(contextualType), ConversionNone, false)
	t := c.currentType

	if t.IsReference() {
		var kind program.OperatorKind
		switch data.Op {
		case ast.OpPlus:
			kind = program.OperatorPlus
		case ast.OpMinus:
			kind = program.OperatorMinus
		case ast.OpNot:
			kind = program.OperatorNot
		case ast.OpBitNot:
			kind = program.OperatorBitNot
		}
		cls := c.prog.ClassByID(t.Class)
		if cls != nil && kind != program.OperatorInvalid {
			if proto, ok := cls.Operator(kind); ok {
				return c.compileOperatorCall(expr, proto, cls, operand, nil)
			}
		}
		if data.Op == ast.OpNot {
			c.currentType = types.Bool
			return c.makeIsFalseish(operand, t)
		}
		c.error(diag.TypeOperatorNotApplicable, expr.Span, "operator %s is not defined for %s", data.Op, t)
		c.currentType = contextualType
		return ir.Unreachable()
	}

	switch data.Op {
	case ast.OpPlus:
		if !t.IsAny(types.FlagInteger | types.FlagFloat) {
			c.error(diag.TypeOperatorNotApplicable, expr.Span, "unary + expects a numeric operand")
			c.currentType = contextualType
			return ir.Unreachable()
		}
		return operand
	case ast.OpMinus:
		switch {
		case t.Kind == types.KindF32:
			return ir.Unary(ir.OpNegF32, operand, types.NativeF32)
		case t.Kind == types.KindF64:
			return ir.Unary(ir.OpNegF64, operand, types.NativeF64)
		case t.Is(types.FlagLong):
			return ir.Binary(ir.OpSubI64, ir.ConstI64(0), operand, types.NativeI64)
		default:
			return ir.Binary(ir.OpSubI32, ir.ConstI32(0), operand, types.NativeI32)
		}
	case ast.OpNot:
		node := c.makeIsFalseish(operand, t)
		c.currentType = types.Bool
		return node
	case ast.OpBitNot:
		if t.IsFloatValue() {
			// Bitwise ops view a float through its integer companion.
			companion := t.IntegerCompanion(true)
			reinterpret := ir.OpReinterpretF32
			if t.Kind == types.KindF64 {
				reinterpret = ir.OpReinterpretF64
			}
			operand = ir.Unary(reinterpret, operand, companion.NativeType())
			t = companion
		}
		c.currentType = t
		if t.Is(types.FlagLong) {
			return ir.Binary(ir.OpXorI64, operand, ir.ConstI64(-1), types.NativeI64)
		}
		return ir.Binary(ir.OpXorI32, operand, ir.ConstI32(-1), types.NativeI32)
	default:
		c.error(diag.NotSupported, expr.Span, "unary operator %s not supported", data.Op)
		c.currentType = contextualType
		return ir.Unreachable()
	}
}

func neutralNumericHint(contextualType types.Type) types.Type {
	if contextualType.IsAny(types.FlagInteger | types.FlagFloat) {
		return contextualType
	}
	return types.Void
}

func (c *Compiler) compileUnaryPostfix(expr *ast.Expr) *ir.Node {
	data := expr.Data.(ast.UnaryData)
	return c.compileIncDec(expr, data, false, types.Void)
}

// compileIncDec lowers ++ and --. Prefix yields the new value, postfix
// the old one, which it always holds in a temp.
func (c *Compiler) compileIncDec(expr *ast.Expr, data ast.UnaryData, prefix bool, contextualType types.Type) *ir.Node {
	target, ok := c.resolveAssignTarget(data.Operand)
	if !ok {
		c.error(diag.SemaUnresolvedIdentifier, data.Operand.Span, "expression is not assignable")
		c.currentType = contextualType
		return ir.Unreachable()
	}

	// Overloaded prefix forms on references dispatch to the class.
	if target.typ.IsReference() {
		cls := c.prog.ClassByID(target.typ.Class)
		kind := program.OperatorPrefixInc
		if data.Op == ast.OpPreDec || data.Op == ast.OpPostDec {
			kind = program.OperatorPrefixDec
		}
		if cls != nil {
			if proto, okOp := cls.Operator(kind); okOp {
				operand := c.compileExpression(data.Operand, types.Void, ConversionNone, false)
				return c.compileOperatorCall(expr, proto, cls, operand, nil)
			}
		}
		c.error(diag.TypeOperatorNotApplicable, expr.Span, "operator is not defined for %s", target.typ)
		c.currentType = contextualType
		return ir.Unreachable()
	}

	op := ast.OpAdd
	if data.Op == ast.OpPreDec || data.Op == ast.OpPostDec {
		op = ast.OpSub
	}
	one := ast.NewIntLiteral(expr.Span, 1)
	valueExpr := ast.NewBinary(expr.Span, op, data.Operand, one)

	if prefix {
		return c.compileAssignmentTo(target, valueExpr, expr.Span, !contextualType.IsVoid())
	}

	// Postfix: remember the old value, store the new one, yield the old.
	old := c.compileExpression(data.Operand, types.Void, ConversionNone, false)
	t := c.currentType
	tmp := c.getTempLocal(t)
	setOld := ir.SetLocal(uint32(tmp.Index), old)
	newValue := ir.GetLocal(uint32(tmp.Index), t.NativeType())
	var delta *ir.Node
	switch {
	case t.Kind == types.KindF32:
		delta = ir.Binary(pick(op == ast.OpAdd, ir.OpAddF32, ir.OpSubF32), newValue, ir.ConstF32(1), types.NativeF32)
	case t.Kind == types.KindF64:
		delta = ir.Binary(pick(op == ast.OpAdd, ir.OpAddF64, ir.OpSubF64), newValue, ir.ConstF64(1), types.NativeF64)
	case t.Is(types.FlagLong):
		delta = ir.Binary(pick(op == ast.OpAdd, ir.OpAddI64, ir.OpSubI64), newValue, ir.ConstI64(1), types.NativeI64)
	default:
		delta = ir.Binary(pick(op == ast.OpAdd, ir.OpAddI32, ir.OpSubI32), newValue, ir.ConstI32(1), types.NativeI32)
	}
	store := c.storeToTarget(target, delta, expr)
	result := ir.GetLocal(uint32(tmp.Index), t.NativeType())
	c.freeTempLocal(tmp)
	c.currentType = t
	return ir.Block("", []*ir.Node{setOld, store, result}, t.NativeType())
}

// storeToTarget writes an already-compiled value into a simple target
// (local or global); richer targets go through compileAssignmentTo.
func (c *Compiler) storeToTarget(target assignTarget, value *ir.Node, expr *ast.Expr) *ir.Node {
	switch target.kind {
	case assignLocal:
		if target.typ.IsShortInteger() {
			c.currentFlow.SetLocalWrapped(target.local.Index, false)
		}
		return ir.SetLocal(uint32(target.local.Index), value)
	case assignGlobal:
		return ir.SetGlobal(target.global.Internal, value)
	default:
		c.error(diag.NotSupported, expr.Span, "postfix update needs a local or global target")
		return ir.Unreachable()
	}
}
