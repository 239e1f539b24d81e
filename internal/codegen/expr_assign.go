package codegen

import (
	"swell/internal/ast"
	"swell/internal/diag"
	"swell/internal/ir"
	"swell/internal/program"
	"swell/internal/source"
	"swell/internal/types"
)

// assignKind tags the resolved left-hand side of an assignment.
type assignKind uint8

const (
	assignInvalid assignKind = iota
	assignLocal
	assignGlobal
	assignField
	assignProperty
	assignIndexed
)

// assignTarget is a resolved assignment destination.
type assignTarget struct {
	kind   assignKind
	typ    types.Type
	local  *program.Local
	global *program.Global
	// Field access: the field plus the receiver expression.
	field *program.Field
	this  *ast.Expr
	// Property access: accessor prototypes plus the owning class (nil for
	// namespace-level properties).
	property *program.Property
	class    *program.Class
	// Indexed access: the class providing the overloads plus target and
	// index expressions.
	indexTarget *ast.Expr
	index       *ast.Expr
}

// resolveAssignTarget classifies an assignable expression.
func (c *Compiler) resolveAssignTarget(expr *ast.Expr) (assignTarget, bool) {
	switch expr.Kind {
	case ast.ExprIdent:
		name := expr.Data.(ast.IdentData).Name
		if local, ok := c.currentFlow.ScopedLocal(name); ok {
			return assignTarget{kind: assignLocal, typ: local.Type, local: local}, true
		}
		if c.currentFn != nil {
			if local, ok := c.currentFn.LocalByName(name); ok && !local.Is(program.FlagScoped) {
				return assignTarget{kind: assignLocal, typ: local.Type, local: local}, true
			}
		}
		if e, ok := c.prog.Lookup(name); ok {
			if g, ok := e.(*program.Global); ok {
				c.compileGlobal(g)
				return assignTarget{kind: assignGlobal, typ: g.Type, global: g}, true
			}
		}
		// Bare field names inside instance members write through this.
		if c.currentFn != nil && c.currentFn.Class != nil {
			if f, ok := c.currentFn.Class.FieldByName(name); ok {
				thisExpr := ast.NewIdent(expr.Span, "this")
				return assignTarget{kind: assignField, typ: f.Type, field: f, this: thisExpr}, true
			}
		}
	case ast.ExprProperty:
		data := expr.Data.(ast.PropertyData)
		if target, ok := c.resolveMemberTarget(data.Target, data.Name); ok {
			return target, true
		}
	case ast.ExprElement:
		data := expr.Data.(ast.ElementData)
		return assignTarget{kind: assignIndexed, indexTarget: data.Target, index: data.Index}, true
	case ast.ExprParen:
		return c.resolveAssignTarget(expr.Data.(ast.ParenData).Inner)
	}
	return assignTarget{}, false
}

// resolveMemberTarget resolves obj.name as an assignable field, property
// or static global.
func (c *Compiler) resolveMemberTarget(target *ast.Expr, name string) (assignTarget, bool) {
	// Static paths first: Namespace.member, Class.static.
	if e, ok := c.resolveStaticPath(target); ok {
		switch holder := e.(type) {
		case *program.Namespace:
			if m, ok := holder.Member(name); ok {
				if g, ok := m.(*program.Global); ok {
					c.compileGlobal(g)
					return assignTarget{kind: assignGlobal, typ: g.Type, global: g}, true
				}
			}
		case *program.ClassPrototype:
			if len(holder.TypeParams) == 0 {
				if cls, err := c.prog.ResolveClass(holder, nil); err == nil {
					if m, ok := cls.StaticMember(name); ok {
						if g, ok := m.(*program.Global); ok {
							c.compileGlobal(g)
							return assignTarget{kind: assignGlobal, typ: g.Type, global: g}, true
						}
					}
				}
			}
		}
		return assignTarget{}, false
	}
	// Otherwise the target is a value; peek at its type without emitting.
	t, ok := c.peekExpressionType(target)
	if !ok || !t.IsReference() {
		return assignTarget{}, false
	}
	cls := c.prog.ClassByID(t.Class)
	if cls == nil {
		return assignTarget{}, false
	}
	if f, ok := cls.FieldByName(name); ok {
		return assignTarget{kind: assignField, typ: f.Type, field: f, this: target}, true
	}
	if m, ok := cls.InstanceMember(name); ok {
		if p, ok := m.(*program.Property); ok {
			return assignTarget{kind: assignProperty, property: p, class: cls}, true
		}
	}
	return assignTarget{}, false
}

func (c *Compiler) compileAssignmentExpression(expr *ast.Expr, contextualType types.Type) *ir.Node {
	data := expr.Data.(ast.BinaryData)
	tee := !contextualType.IsVoid()

	target, ok := c.resolveAssignTarget(data.Left)
	if !ok {
		c.error(diag.SemaUnresolvedIdentifier, data.Left.Span, "expression is not assignable")
		c.currentType = contextualType
		return ir.Unreachable()
	}

	valueExpr := data.Right
	if base, compound := data.Op.Base(); compound {
		// Compound assignments reuse the plain operator on the target's
		// current value.
		valueExpr = ast.NewBinary(expr.Span, base, data.Left, data.Right)
	}
	return c.compileAssignmentTo(target, valueExpr, expr.Span, tee)
}

// compileAssignmentTo stores a value into a resolved target, optionally
// yielding the stored value.
func (c *Compiler) compileAssignmentTo(target assignTarget, valueExpr *ast.Expr, span source.Span, tee bool) *ir.Node {
	switch target.kind {
	case assignLocal:
		return c.makeLocalAssignment(target.local, valueExpr, span, tee)
	case assignGlobal:
		return c.makeGlobalAssignment(target.global, valueExpr, span, tee)
	case assignField:
		return c.makeFieldAssignment(target.field, target.this, valueExpr, span, tee)
	case assignProperty:
		return c.makePropertyAssignment(target.property, target.class, target.this, valueExpr, span, tee)
	case assignIndexed:
		return c.makeIndexedAssignment(target.indexTarget, target.index, valueExpr, span, tee)
	default:
		c.error(diag.SemaUnresolvedIdentifier, span, "expression is not assignable")
		return ir.Unreachable()
	}
}

func (c *Compiler) makeLocalAssignment(local *program.Local, valueExpr *ast.Expr, span source.Span, tee bool) *ir.Node {
	if local.Is(program.FlagConst) {
		c.error(diag.SemaConstAssignment, span, "cannot assign to constant %s", local.SimpleName)
		c.currentType = local.Type
		return ir.Unreachable()
	}
	value := c.compileExpression(valueExpr, local.Type, ConversionImplicit, false)
	if local.Type.IsShortInteger() {
		c.currentFlow.SetLocalWrapped(local.Index, !c.currentFlow.CanOverflow(value, local.Type))
	}
	c.currentType = local.Type
	if tee {
		return ir.TeeLocal(uint32(local.Index), value, local.Type.NativeType())
	}
	c.currentType = types.Void
	return ir.SetLocal(uint32(local.Index), value)
}

func (c *Compiler) makeGlobalAssignment(g *program.Global, valueExpr *ast.Expr, span source.Span, tee bool) *ir.Node {
	if g.Is(program.FlagConst) {
		c.error(diag.SemaConstAssignment, span, "cannot assign to constant %s", g.SimpleName)
		c.currentType = g.Type
		return ir.Unreachable()
	}
	value := c.compileExpression(valueExpr, g.Type, ConversionImplicit, true)
	if !tee {
		c.currentType = types.Void
		return ir.SetGlobal(g.Internal, value)
	}
	// Globals have no tee; emulate with a set/get pair.
	c.currentType = g.Type
	return ir.Block("", []*ir.Node{
		ir.SetGlobal(g.Internal, value),
		ir.GetGlobal(g.Internal, g.Type.NativeType()),
	}, g.Type.NativeType())
}

func (c *Compiler) makeFieldAssignment(field *program.Field, thisExpr *ast.Expr, valueExpr *ast.Expr, span source.Span, tee bool) *ir.Node {
	if field.Is(program.FlagReadonly) && (c.currentFn == nil || !c.currentFn.Is(program.FlagConstructor)) {
		c.error(diag.SemaReadonlyAssignment, span, "readonly field %s can only be assigned in the constructor", field.SimpleName)
		c.currentType = field.Type
		return ir.Unreachable()
	}
	thisPtr := c.compileExpression(thisExpr, types.Void, ConversionNone, false)
	value := c.compileExpression(valueExpr, field.Type, ConversionImplicit, field.Type.Kind == types.KindBool)
	bytes := uint8(field.Type.ByteSize())
	nt := field.Type.NativeType()
	if !tee {
		c.currentType = types.Void
		return ir.Store(bytes, thisPtr, value, nt, field.Offset)
	}
	tmp := c.getTempLocal(field.Type)
	store := ir.Store(bytes, thisPtr, ir.TeeLocal(uint32(tmp.Index), value, nt), nt, field.Offset)
	result := ir.GetLocal(uint32(tmp.Index), nt)
	c.freeTempLocal(tmp)
	c.currentType = field.Type
	return ir.Block("", []*ir.Node{store, result}, nt)
}

func (c *Compiler) makePropertyAssignment(p *program.Property, cls *program.Class, thisExpr *ast.Expr, valueExpr *ast.Expr, span source.Span, tee bool) *ir.Node {
	if p.Setter == nil {
		c.error(diag.SemaReadonlyAssignment, span, "property %s has no setter", p.SimpleName)
		c.currentType = types.Void
		return ir.Unreachable()
	}
	setter, err := c.prog.ResolveFunction(p.Setter, nil, cls)
	if err != nil {
		c.error(diag.SemaUnresolvedIdentifier, span, "%v", err)
		c.currentType = types.Void
		return ir.Unreachable()
	}
	valueType := setter.Signature.ParameterTypes[0]

	if !tee {
		var operands []*ir.Node
		if setter.Signature.HasThis() {
			operands = append(operands, c.compileExpression(thisExpr, types.Void, ConversionNone, false))
		}
		operands = append(operands, c.compileExpression(valueExpr, valueType, ConversionImplicit, true))
		node := c.makeCallDirect(setter, operands, span)
		c.currentType = types.Void
		return node
	}

	// A tee calls the setter then the getter, sharing this via a temp.
	if p.Getter == nil {
		c.error(diag.SemaUnresolvedMember, span, "property %s has no getter", p.SimpleName)
		c.currentType = valueType
		return ir.Unreachable()
	}
	getter, err := c.prog.ResolveFunction(p.Getter, nil, cls)
	if err != nil {
		c.error(diag.SemaUnresolvedIdentifier, span, "%v", err)
		c.currentType = valueType
		return ir.Unreachable()
	}
	var setOperands, getOperands []*ir.Node
	var tmp *program.Local
	if setter.Signature.HasThis() {
		thisPtr := c.compileExpression(thisExpr, types.Void, ConversionNone, false)
		thisType := c.currentType
		tmp = c.getTempLocal(thisType)
		setOperands = append(setOperands, ir.TeeLocal(uint32(tmp.Index), thisPtr, thisType.NativeType()))
		getOperands = append(getOperands, ir.GetLocal(uint32(tmp.Index), thisType.NativeType()))
	}
	setOperands = append(setOperands, c.compileExpression(valueExpr, valueType, ConversionImplicit, true))
	setCall := c.makeCallDirect(setter, setOperands, span)
	getCall := c.makeCallDirect(getter, getOperands, span)
	if tmp != nil {
		c.freeTempLocal(tmp)
	}
	retType := getter.Signature.ReturnType
	c.currentType = retType
	return ir.Block("", []*ir.Node{setCall, getCall}, retType.NativeType())
}

func (c *Compiler) makeIndexedAssignment(targetExpr, indexExpr *ast.Expr, valueExpr *ast.Expr, span source.Span, tee bool) *ir.Node {
	target := c.compileExpression(targetExpr, types.Void, ConversionNone, false)
	targetType := c.currentType
	if !targetType.IsReference() {
		c.error(diag.TypeNotIndexable, span, "type %s has no indexed access", targetType)
		c.currentType = types.Void
		return ir.Unreachable()
	}
	cls := c.prog.ClassByID(targetType.Class)
	var setProto, getProto *program.FunctionPrototype
	if cls != nil {
		setProto, _ = cls.Operator(program.OperatorIndexedSet)
		getProto, _ = cls.Operator(program.OperatorIndexedGet)
	}
	if setProto == nil {
		c.error(diag.SemaMissingIndexedSet, span, "type %s has no indexed setter", targetType)
		c.currentType = types.Void
		return ir.Unreachable()
	}
	if getProto == nil {
		// Both overloads are required so a tee stays well-defined.
		c.error(diag.SemaMissingIndexedGet, span, "type %s has no indexed getter", targetType)
		c.currentType = types.Void
		return ir.Unreachable()
	}
	setter, err := c.prog.ResolveFunction(setProto, nil, cls)
	if err != nil {
		c.error(diag.SemaUnresolvedIdentifier, span, "%v", err)
		c.currentType = types.Void
		return ir.Unreachable()
	}
	indexType := setter.Signature.ParameterTypes[0]
	valueType := setter.Signature.ParameterTypes[1]

	if !tee {
		operands := []*ir.Node{
			target,
			c.compileExpression(indexExpr, indexType, ConversionImplicit, true),
			c.compileExpression(valueExpr, valueType, ConversionImplicit, true),
		}
		node := c.makeCallDirect(setter, operands, span)
		c.currentType = types.Void
		return node
	}

	getter, err := c.prog.ResolveFunction(getProto, nil, cls)
	if err != nil {
		c.error(diag.SemaUnresolvedIdentifier, span, "%v", err)
		c.currentType = valueType
		return ir.Unreachable()
	}
	thisTmp := c.getTempLocal(targetType)
	indexTmp := c.getTempLocal(indexType)
	index := c.compileExpression(indexExpr, indexType, ConversionImplicit, true)
	setCall := c.makeCallDirect(setter, []*ir.Node{
		ir.TeeLocal(uint32(thisTmp.Index), target, targetType.NativeType()),
		ir.TeeLocal(uint32(indexTmp.Index), index, indexType.NativeType()),
		c.compileExpression(valueExpr, valueType, ConversionImplicit, true),
	}, span)
	getCall := c.makeCallDirect(getter, []*ir.Node{
		ir.GetLocal(uint32(thisTmp.Index), targetType.NativeType()),
		ir.GetLocal(uint32(indexTmp.Index), indexType.NativeType()),
	}, span)
	c.freeTempLocal(indexTmp)
	c.freeTempLocal(thisTmp)
	retType := getter.Signature.ReturnType
	c.currentType = retType
	return ir.Block("", []*ir.Node{setCall, getCall}, retType.NativeType())
}
