package codegen

import (
	"swell/internal/diag"
	"swell/internal/ir"
	"swell/internal/program"
	"swell/internal/types"
)

// constantFromNode captures a folded constant for inlining.
func constantFromNode(n *ir.Node) program.ConstantValue {
	switch n.Type {
	case types.NativeF32, types.NativeF64:
		return program.ConstantValue{Kind: program.ConstantFloat, Float: n.F64}
	default:
		return program.ConstantValue{Kind: program.ConstantInteger, Int: n.I64}
	}
}

// importModuleName derives the host module name for an ambient element:
// the @external override, the containing namespace's simple name, or the
// declaring source's simple path.
func importModuleName(base *program.ElementBase, external string) string {
	if external != "" {
		return external
	}
	if ns, ok := base.ParentElem.(*program.Namespace); ok {
		return ns.SimpleName
	}
	if base.OwnerSource != nil {
		return base.OwnerSource.SimpleName()
	}
	return "env"
}

// compileGlobal lowers a module-level variable once. Returns false when a
// diagnostic prevented compilation.
func (c *Compiler) compileGlobal(g *program.Global) bool {
	if g.Is(program.FlagCompiled) {
		return true
	}
	g.SetFlags(program.FlagCompiled)

	if g.Decorators().Has(program.DecoratorBuiltin) {
		// Builtin ambients like HEAP_BASE are resolved, never emitted.
		return true
	}

	declared := g.TypeName != ""
	if declared {
		t, ok := c.prog.ResolveTypeName(g.TypeName, nil)
		if !ok {
			c.error(diag.SemaUnresolvedIdentifier, g.Span, "cannot resolve type %q", g.TypeName)
			return false
		}
		g.Type = t
	}

	if g.Is(program.FlagAmbient) {
		if !declared {
			c.error(diag.SemaConstWithoutInitializer, g.Span, "ambient global %s needs a type", g.SimpleName)
			return false
		}
		module := importModuleName(&g.ElementBase, "")
		c.mod.AddGlobalImport(g.Internal, module, g.SimpleName, g.Type.NativeType())
		g.SetFlags(program.FlagModuleImport)
		return true
	}

	var init *ir.Node
	if g.Init != nil {
		prevFn, prevFlow := c.currentFn, c.currentFlow
		c.currentFn, c.currentFlow = c.startFunctionInstance(), c.startFlowInstance()
		if declared {
			init = c.compileExpression(g.Init, g.Type, ConversionImplicit, true)
		} else {
			// A neutral contextual type lets the literal pick its own.
			init = c.compileExpression(g.Init, types.Void, ConversionNone, true)
			g.Type = c.currentType
		}
		c.currentFn, c.currentFlow = prevFn, prevFlow
		init = ir.Precompute(init)
	} else if g.Is(program.FlagConst) {
		c.error(diag.SemaConstWithoutInitializer, g.Span, "constant %s lacks an initializer", g.SimpleName)
		return false
	} else if !declared {
		c.error(diag.SemaUnresolvedIdentifier, g.Span, "global %s needs a type or an initializer", g.SimpleName)
		return false
	}

	nt := g.Type.NativeType()
	if g.Type.IsReference() && !g.Is(program.FlagConst) {
		c.rootGlobals = append(c.rootGlobals, g.Internal)
	}
	switch {
	case init != nil && init.IsConst() && g.Is(program.FlagConst):
		g.Constant = constantFromNode(init)
		g.SetFlags(program.FlagInlined)
	case init != nil && init.IsConst():
		c.mod.AddGlobal(g.Internal, nt, true, init)
	case init != nil:
		if g.Is(program.FlagConst) {
			c.warning(diag.WarnNonConstantInitializer, g.Span,
				"initializer of %s is not constant; compiling as mutable", g.SimpleName)
		}
		c.mod.AddGlobal(g.Internal, nt, true, c.makeZero(g.Type))
		c.startBody = append(c.startBody, ir.SetGlobal(g.Internal, init))
	default:
		c.mod.AddGlobal(g.Internal, nt, true, c.makeZero(g.Type))
	}
	return true
}

// startFlowInstance lazily creates the start function's flow.
func (c *Compiler) startFlowInstance() *Flow {
	if c.startFlow == nil {
		c.startFlow = c.newFlow(c.startFunctionInstance())
	}
	return c.startFlow
}

// compileEnum lowers an enum once. Each member evaluates to an i32; a
// missing initializer on a non-first member is previous + 1.
func (c *Compiler) compileEnum(e *program.Enum) {
	if e.Is(program.FlagCompiled) {
		return
	}
	e.SetFlags(program.FlagCompiled)
	isConstEnum := e.Is(program.FlagConst)

	prevEnum := c.currentEnum
	c.currentEnum = e
	defer func() { c.currentEnum = prevEnum }()

	var prev *program.EnumValue
	for _, member := range e.Values {
		var value *ir.Node
		switch {
		case member.Init != nil:
			prevFn, prevFlow := c.currentFn, c.currentFlow
			c.currentFn, c.currentFlow = c.startFunctionInstance(), c.startFlowInstance()
			value = ir.Precompute(c.compileExpression(member.Init, types.I32, ConversionImplicit, true))
			c.currentFn, c.currentFlow = prevFn, prevFlow
		case prev == nil:
			value = ir.ConstI32(0)
		case prev.Constant.Kind == program.ConstantInteger:
			value = ir.ConstI32(int32(prev.Constant.Int) + 1)
		default:
			// The previous member lives in a start-initialized global.
			if isConstEnum {
				c.error(diag.SemaConstEnumNonConstant, member.Span,
					"member %s follows a non-constant member in a const enum", member.SimpleName)
				prev = member
				continue
			}
			value = ir.Binary(ir.OpAddI32,
				ir.GetGlobal(prev.Internal, types.NativeI32),
				ir.ConstI32(1), types.NativeI32)
		}

		if value.IsConst() {
			member.Constant = constantFromNode(value)
			member.SetFlags(program.FlagInlined | program.FlagCompiled)
		} else if isConstEnum {
			c.error(diag.SemaConstEnumNonConstant, member.Span,
				"member %s of a const enum must precompute to a constant", member.SimpleName)
		} else {
			c.mod.AddGlobal(member.Internal, types.NativeI32, true, ir.ConstI32(0))
			c.startBody = append(c.startBody, ir.SetGlobal(member.Internal, value))
			member.SetFlags(program.FlagCompiled)
		}
		prev = member
	}
}

// compileFunction lowers a resolved function instance once.
func (c *Compiler) compileFunction(f *program.Function) bool {
	if f.Is(program.FlagCompiled) {
		return true
	}
	f.SetFlags(program.FlagCompiled)

	if f.Decorators().Has(program.DecoratorBuiltin) {
		return true
	}

	proto := f.Prototype
	hasBody := proto != nil && (proto.Body != nil || proto.BodyExpr != nil)
	if f.Is(program.FlagAmbient) {
		if hasBody {
			c.error(diag.SemaAmbientWithBody, f.Span, "ambient function %s cannot have a body", f.SimpleName)
			return false
		}
		module := importModuleName(&proto.ElementBase, proto.ExternalModule)
		base := proto.SimpleName
		if proto.ExternalName != "" {
			base = proto.ExternalName
		}
		c.mod.AddFunctionImport(f.Internal, module, base, c.functionTypeOf(f.Signature))
		f.SetFlags(program.FlagModuleImport)
		return true
	}
	if !hasBody {
		c.error(diag.SemaConcreteWithoutBody, f.Span, "function %s needs a body", f.SimpleName)
		return false
	}

	prevFn, prevFlow := c.currentFn, c.currentFlow
	c.currentFn = f
	flow := c.newFlow(f)
	c.currentFlow = flow
	defer func() { c.currentFn, c.currentFlow = prevFn, prevFlow }()

	var stmts []*ir.Node
	retNative := f.Signature.ReturnType.NativeType()

	if f.Is(program.FlagMain) {
		c.mainFunction = f
		c.ensureStartedGlobal()
		stmts = append(stmts, ir.If(
			ir.Unary(ir.OpEqzI32, ir.GetGlobal(startedGlobalName, types.NativeI32), types.NativeI32),
			ir.Block("", []*ir.Node{
				ir.Call(startFunctionName, nil, types.NativeNone),
				ir.SetGlobal(startedGlobalName, ir.ConstI32(1)),
			}, types.NativeNone),
			nil, types.NativeNone))
	}

	bodyType := types.NativeNone
	if proto.BodyExpr != nil {
		expr := c.compileExpression(proto.BodyExpr, f.Signature.ReturnType, ConversionImplicit, true)
		if f.Signature.ReturnType.IsVoid() {
			// The void conversion already dropped any value.
			stmts = append(stmts, expr)
		} else {
			stmts = append(stmts, expr)
			bodyType = retNative
			flow.Set(FlowReturns)
			if f.Signature.ReturnType.IsShortInteger() && !flow.CanOverflow(expr, f.Signature.ReturnType) {
				flow.Set(FlowReturnsWrapped)
			}
		}
	} else {
		stmts = append(stmts, c.compileStatementList(proto.Body)...)
	}

	if f.Is(program.FlagConstructor) {
		cls := f.Class
		if !flow.Is(FlowAllocates) {
			// Accommodates derived-class super calls that pre-allocate:
			// only allocate when the incoming this is still null.
			stmts = append(stmts, ir.TeeLocal(0, c.makeConditionalAllocate(cls), cls.Type.NativeType()))
			bodyType = retNative
		} else if !flow.Is(FlowReturns) {
			stmts = append(stmts, ir.GetLocal(0, cls.Type.NativeType()))
			bodyType = retNative
		}
	} else if !f.Signature.ReturnType.IsVoid() && !flow.IsAny(FlowReturns|FlowThrows) {
		c.error(diag.TypeMustReturnValue, f.Span,
			"function %s must return a value of type %s", f.SimpleName, f.Signature.ReturnType)
		stmts = append(stmts, ir.Unreachable())
	}

	// A short-integer function whose every live return proved wrapped
	// registers so callers skip the redundant re-wrap of its results.
	if f.Signature.ReturnType.IsShortInteger() && flow.Is(FlowReturns|FlowReturnsWrapped) {
		c.wrappedReturns[f.Internal] = true
	}

	body := ir.Block("", stmts, bodyType)
	c.mod.AddFunction(f.Internal, c.functionTypeOf(f.Signature), c.additionalLocalTypes(f), body)
	return true
}

func (c *Compiler) ensureStartedGlobal() {
	if c.startedGlobal {
		return
	}
	c.startedGlobal = true
	c.mod.AddGlobal(startedGlobalName, types.NativeI32, true, ir.ConstI32(0))
}

// compileClass lowers statics, the constructor, then instance members.
// Field layout was precomputed at resolution.
func (c *Compiler) compileClass(cls *program.Class) {
	if cls.Is(program.FlagCompiled) {
		return
	}
	cls.SetFlags(program.FlagCompiled)
	proto := cls.Prototype

	for _, m := range proto.StaticMembers {
		switch member := m.(type) {
		case *program.Global:
			c.compileGlobal(member)
		case *program.FunctionPrototype:
			if member.Is(program.FlagGeneric) {
				continue
			}
			if f, err := c.prog.ResolveFunction(member, nil, cls); err == nil {
				c.compileFunction(f)
			} else {
				c.error(diag.SemaUnresolvedIdentifier, member.Span, "%v", err)
			}
		case *program.Property:
			c.compileProperty(member, cls)
		}
	}

	if proto.Ctor != nil {
		if f, err := c.prog.ResolveFunction(proto.Ctor, nil, cls); err == nil {
			cls.Ctor = f
			c.compileFunction(f)
		} else {
			c.error(diag.SemaUnresolvedIdentifier, proto.Ctor.Span, "%v", err)
		}
	}

	for _, m := range proto.InstanceMembers {
		switch member := m.(type) {
		case *program.FunctionPrototype:
			if member.Is(program.FlagGeneric) {
				continue
			}
			if f, err := c.prog.ResolveFunction(member, nil, cls); err == nil {
				c.compileFunction(f)
			} else {
				c.error(diag.SemaUnresolvedIdentifier, member.Span, "%v", err)
			}
		case *program.Property:
			c.compileProperty(member, cls)
		}
	}

	for _, f := range cls.Fields {
		f.SetFlags(program.FlagCompiled)
	}
}

// compileProperty lowers a property's accessors.
func (c *Compiler) compileProperty(p *program.Property, cls *program.Class) {
	for _, accessor := range []*program.FunctionPrototype{p.Getter, p.Setter} {
		if accessor == nil {
			continue
		}
		if f, err := c.prog.ResolveFunction(accessor, nil, cls); err == nil {
			c.compileFunction(f)
		} else {
			c.error(diag.SemaUnresolvedIdentifier, accessor.Span, "%v", err)
		}
	}
}

// compileNamespace lowers every member; tree shaking does not descend into
// a kept namespace.
func (c *Compiler) compileNamespace(ns *program.Namespace) {
	if ns.Is(program.FlagCompiled) {
		return
	}
	ns.SetFlags(program.FlagCompiled)
	ns.Members(func(_ string, e program.Element) bool {
		switch member := e.(type) {
		case *program.Global:
			c.compileGlobal(member)
		case *program.Enum:
			c.compileEnum(member)
		case *program.FunctionPrototype:
			if !member.Decorators().Has(program.DecoratorBuiltin) && len(member.TypeParams) == 0 {
				if f, err := c.prog.ResolveFunction(member, nil, nil); err == nil {
					c.compileFunction(f)
				} else {
					c.error(diag.SemaUnresolvedIdentifier, member.Span, "%v", err)
				}
			}
		case *program.ClassPrototype:
			if len(member.TypeParams) == 0 {
				if cls, err := c.prog.ResolveClass(member, nil); err == nil {
					c.compileClass(cls)
				} else {
					c.error(diag.SemaUnresolvedIdentifier, member.Span, "%v", err)
				}
			}
		case *program.Namespace:
			c.compileNamespace(member)
		}
		return true
	})
}
