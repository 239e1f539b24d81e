package codegen

import (
	"fmt"

	"swell/internal/ast"
	"swell/internal/diag"
	"swell/internal/ir"
	"swell/internal/program"
	"swell/internal/source"
	"swell/internal/types"
)

// BuiltinHandler compiles an intrinsic call. A nil result means the
// builtin did not handle the call and an unsupported diagnostic follows.
type BuiltinHandler func(c *Compiler, proto *program.FunctionPrototype, typeArgs []types.Type, args []*ast.Expr, contextualType types.Type, span source.Span) *ir.Node

// SetBuiltins wires the intrinsic hook; the driver installs the builtins
// package's handler here.
func (c *Compiler) SetBuiltins(h BuiltinHandler) { c.builtins = h }

// checkCallSignature validates the call shape against a signature.
func (c *Compiler) checkCallSignature(sig *program.Signature, numArgs int, hasThis bool, expr *ast.Expr) bool {
	if hasThis != sig.HasThis() {
		c.error(diag.TypeSignatureMismatch, expr.Span, "call does not match the target's this binding")
		return false
	}
	if sig.HasRest {
		c.error(diag.NotSupportedRest, expr.Span, "rest parameters are not supported")
		return false
	}
	if numArgs < sig.RequiredParameters {
		c.error(diag.TypeExpectedArguments, expr.Span,
			"expected at least %d arguments, got %d", sig.RequiredParameters, numArgs)
		return false
	}
	if numArgs > len(sig.ParameterTypes) {
		c.error(diag.TypeExpectedArguments, expr.Span,
			"expected at most %d arguments, got %d", len(sig.ParameterTypes), numArgs)
		return false
	}
	return true
}

func (c *Compiler) compileCallExpression(expr *ast.Expr, contextualType types.Type) *ir.Node {
	data := expr.Data.(ast.CallData)

	switch data.Callee.Kind {
	case ast.ExprIdent:
		name := data.Callee.Data.(ast.IdentData).Name
		if name == "super" {
			return c.compileSuperCall(expr, data)
		}
		if local, ok := c.lookupLocalSlot(name); ok {
			return c.compileIndirectCall(expr, data, c.makeLocalAccess(local), local.Signature)
		}
		var e program.Element
		var found bool
		if c.currentFn != nil && c.currentFn.Class != nil {
			e, found = c.currentFn.Class.StaticMember(name)
			if !found && c.currentFn.Signature.HasThis() {
				if m, okm := c.currentFn.Class.InstanceMember(name); okm {
					if proto, okp := m.(*program.FunctionPrototype); okp {
						thisExpr := ast.NewIdent(expr.Span, "this")
						return c.compileMethodCall(expr, data, proto, c.currentFn.Class, thisExpr)
					}
				}
			}
		}
		if !found {
			e, found = c.prog.Lookup(name)
		}
		if !found {
			c.error(diag.SemaUnresolvedIdentifier, expr.Span, "cannot find name %s", name)
			c.currentType = contextualType
			return ir.Unreachable()
		}
		switch callee := e.(type) {
		case *program.FunctionPrototype:
			return c.compilePrototypeCall(expr, data, callee, nil, nil, contextualType)
		case *program.Global:
			c.compileGlobal(callee)
			if callee.Signature != nil {
				return c.compileIndirectCall(expr, data,
					ir.GetGlobal(callee.Internal, callee.Type.NativeType()), callee.Signature)
			}
		}
		c.error(diag.TypeNotCallable, expr.Span, "%s is not callable", name)
		c.currentType = contextualType
		return ir.Unreachable()

	case ast.ExprProperty:
		calleeData := data.Callee.Data.(ast.PropertyData)
		if holder, ok := c.resolveStaticPath(calleeData.Target); ok {
			var m program.Element
			var found bool
			switch h := holder.(type) {
			case *program.Namespace:
				m, found = h.Member(calleeData.Name)
			case *program.ClassPrototype:
				if len(h.TypeParams) == 0 {
					if cls, err := c.prog.ResolveClass(h, nil); err == nil {
						m, found = cls.StaticMember(calleeData.Name)
					}
				}
			}
			if proto, okp := m.(*program.FunctionPrototype); found && okp {
				return c.compilePrototypeCall(expr, data, proto, nil, nil, contextualType)
			}
			c.error(diag.SemaUnresolvedMember, expr.Span, "cannot find member %s", calleeData.Name)
			c.currentType = contextualType
			return ir.Unreachable()
		}
		t, ok := c.peekExpressionType(calleeData.Target)
		if ok && t.IsReference() {
			cls := c.prog.ClassByID(t.Class)
			if cls != nil {
				if m, okm := cls.InstanceMember(calleeData.Name); okm {
					if proto, okp := m.(*program.FunctionPrototype); okp {
						return c.compileMethodCall(expr, data, proto, cls, calleeData.Target)
					}
				}
				// A field holding a function-table index calls
				// indirectly through its signature.
				if f, okf := cls.FieldByName(calleeData.Name); okf && f.Signature != nil {
					this := c.compileExpression(calleeData.Target, types.Void, ConversionNone, false)
					index := ir.Load(uint8(f.Type.ByteSize()), false, this, f.Type.NativeType(), f.Offset)
					return c.compileIndirectCall(expr, data, index, f.Signature)
				}
			}
		}
		c.error(diag.SemaUnresolvedMember, expr.Span, "cannot resolve call target")
		c.currentType = contextualType
		return ir.Unreachable()

	default:
		// Anything else must evaluate to a function-table index with a
		// known signature, which only declared slots carry.
		c.error(diag.TypeNotCallable, expr.Span, "expression is not callable")
		c.currentType = contextualType
		return ir.Unreachable()
	}
}

// lookupLocalSlot finds a local carrying a function signature.
func (c *Compiler) lookupLocalSlot(name string) (*program.Local, bool) {
	if local, ok := c.currentFlow.ScopedLocal(name); ok && local.Signature != nil {
		return local, true
	}
	if c.currentFn != nil {
		if local, ok := c.currentFn.LocalByName(name); ok && local.Signature != nil {
			return local, true
		}
	}
	return nil, false
}

// compileSuperCall lowers super(args) inside a derived constructor: the
// base constructor runs on the current this and its result re-seeds
// local 0.
func (c *Compiler) compileSuperCall(expr *ast.Expr, data ast.CallData) *ir.Node {
	fn := c.currentFn
	if fn == nil || !fn.Is(program.FlagConstructor) || fn.Class == nil || fn.Class.Base == nil {
		c.error(diag.SemaSuperOutsideDerived, expr.Span, "super calls require a derived constructor")
		c.currentType = types.Void
		return ir.Unreachable()
	}
	base := fn.Class.Base
	c.compileClass(base)
	if base.Ctor == nil {
		c.error(diag.SemaUnresolvedMember, expr.Span, "base class %s has no constructor", base.SimpleName)
		c.currentType = types.Void
		return ir.Unreachable()
	}
	sig := base.Ctor.Signature
	if !c.checkCallSignature(sig, len(data.Args), true, expr) {
		c.currentType = types.Void
		return ir.Unreachable()
	}
	operands := make([]*ir.Node, 0, len(data.Args)+1)
	operands = append(operands, ir.GetLocal(0, base.Type.NativeType()))
	for i, a := range data.Args {
		operands = append(operands, c.compileExpression(a, sig.ParameterTypes[i], ConversionImplicit, true))
	}
	call := c.makeCallDirect(base.Ctor, operands, expr.Span)
	c.currentFlow.Set(FlowAllocates)
	c.currentType = types.Void
	return ir.SetLocal(0, call)
}

// compileMethodCall lowers target.method(args).
func (c *Compiler) compileMethodCall(expr *ast.Expr, data ast.CallData, proto *program.FunctionPrototype, cls *program.Class, thisExpr *ast.Expr) *ir.Node {
	this := c.compileExpression(thisExpr, types.Void, ConversionNone, false)
	return c.compilePrototypeCall(expr, data, proto, cls, this, types.Void)
}

// compilePrototypeCall picks the concrete call path for a prototype:
// builtin, explicit generic, inferred generic, or plain.
func (c *Compiler) compilePrototypeCall(expr *ast.Expr, data ast.CallData, proto *program.FunctionPrototype, cls *program.Class, this *ir.Node, contextualType types.Type) *ir.Node {
	// Builtins interpret their own type arguments.
	if proto.Decorators().Has(program.DecoratorBuiltin) {
		var typeArgs []types.Type
		for _, name := range data.TypeArgs {
			t, ok := c.prog.ResolveTypeName(name, c.contextualTypes())
			if !ok {
				c.error(diag.SemaUnresolvedIdentifier, expr.Span, "cannot resolve type argument %q", name)
				c.currentType = contextualType
				return ir.Unreachable()
			}
			typeArgs = append(typeArgs, t)
		}
		if c.builtins != nil {
			if node := c.builtins(c, proto, typeArgs, data.Args, contextualType, expr.Span); node != nil {
				return node
			}
		}
		c.error(diag.NotSupported, expr.Span, "operation %s is not supported", proto.SimpleName)
		c.currentType = contextualType
		return ir.Unreachable()
	}

	var f *program.Function
	switch {
	case len(data.TypeArgs) > 0:
		args := make([]types.Type, 0, len(data.TypeArgs))
		for _, name := range data.TypeArgs {
			t, ok := c.prog.ResolveTypeName(name, c.contextualTypes())
			if !ok {
				c.error(diag.SemaUnresolvedIdentifier, expr.Span, "cannot resolve type argument %q", name)
				c.currentType = contextualType
				return ir.Unreachable()
			}
			args = append(args, t)
		}
		var err error
		f, err = c.prog.ResolveFunction(proto, args, cls)
		if err != nil {
			c.error(diag.TypeExpectedTypeArguments, expr.Span, "%v", err)
			c.currentType = contextualType
			return ir.Unreachable()
		}
	case proto.Is(program.FlagGeneric):
		return c.compileInferredCall(expr, data, proto, cls, this, contextualType)
	default:
		var err error
		f, err = c.prog.ResolveFunction(proto, nil, cls)
		if err != nil {
			c.error(diag.SemaUnresolvedIdentifier, expr.Span, "%v", err)
			c.currentType = contextualType
			return ir.Unreachable()
		}
	}

	sig := f.Signature
	if !c.checkCallSignature(sig, len(data.Args), this != nil, expr) {
		c.currentType = contextualType
		return ir.Unreachable()
	}
	operands := make([]*ir.Node, 0, len(data.Args)+1)
	if this != nil {
		operands = append(operands, this)
	}
	for i, a := range data.Args {
		operands = append(operands, c.compileExpression(a, sig.ParameterTypes[i], ConversionImplicit, true))
	}
	node := c.makeCallDirect(f, operands, expr.Span)
	c.currentType = sig.ReturnType
	return node
}

// compileInferredCall infers generic type arguments from positional
// arguments whose declared type is a bare type-parameter name.
func (c *Compiler) compileInferredCall(expr *ast.Expr, data ast.CallData, proto *program.FunctionPrototype, cls *program.Class, this *ir.Node, contextualType types.Type) *ir.Node {
	inferred := make(map[string]types.Type, len(proto.TypeParams))
	isTypeParam := func(name string) bool {
		for _, p := range proto.TypeParams {
			if p == name {
				return true
			}
		}
		return false
	}

	type compiledArg struct {
		node *ir.Node
		typ  types.Type
	}
	args := make([]compiledArg, 0, len(data.Args))
	outer := c.contextualTypesOf(cls)
	for i, a := range data.Args {
		if i >= len(proto.Params) {
			c.error(diag.TypeExpectedArguments, expr.Span,
				"expected at most %d arguments, got %d", len(proto.Params), len(data.Args))
			c.currentType = contextualType
			return ir.Unreachable()
		}
		declared := proto.Params[i].Type
		if isTypeParam(declared) {
			node := c.compileExpression(a, types.Void, ConversionNone, false)
			argType := c.currentType
			if prev, ok := inferred[declared]; ok {
				common, okc := types.CommonCompatible(prev, argType, false, c.prog)
				if !okc {
					c.error(diag.TypeArithmeticOperands, a.Span,
						"inferred conflicting types %s and %s for %s", prev, argType, declared)
					c.currentType = contextualType
					return ir.Unreachable()
				}
				inferred[declared] = common
			} else {
				inferred[declared] = argType
			}
			args = append(args, compiledArg{node: node, typ: argType})
			continue
		}
		merged := mergeContext(outer, inferred)
		paramType, ok := c.prog.ResolveTypeName(declared, merged)
		if !ok {
			c.error(diag.TypeExpectedTypeArguments, a.Span,
				"cannot resolve parameter type %q; provide explicit type arguments", declared)
			c.currentType = contextualType
			return ir.Unreachable()
		}
		node := c.compileExpression(a, paramType, ConversionImplicit, true)
		args = append(args, compiledArg{node: node, typ: paramType})
	}

	typeArgs := make([]types.Type, len(proto.TypeParams))
	for i, name := range proto.TypeParams {
		t, ok := inferred[name]
		if !ok {
			c.error(diag.TypeExpectedTypeArguments, expr.Span,
				"cannot infer type argument %s; provide explicit type arguments", name)
			c.currentType = contextualType
			return ir.Unreachable()
		}
		typeArgs[i] = t
	}
	f, err := c.prog.ResolveFunction(proto, typeArgs, cls)
	if err != nil {
		c.error(diag.TypeExpectedTypeArguments, expr.Span, "%v", err)
		c.currentType = contextualType
		return ir.Unreachable()
	}
	sig := f.Signature
	if !c.checkCallSignature(sig, len(data.Args), this != nil, expr) {
		c.currentType = contextualType
		return ir.Unreachable()
	}
	operands := make([]*ir.Node, 0, len(args)+1)
	if this != nil {
		operands = append(operands, this)
	}
	for i, a := range args {
		node := a.node
		if a.typ != sig.ParameterTypes[i] {
			node = c.convertExpr(node, a.typ, sig.ParameterTypes[i], ConversionImplicit, true, data.Args[i].Span)
		}
		operands = append(operands, node)
	}
	node := c.makeCallDirect(f, operands, expr.Span)
	c.currentType = sig.ReturnType
	return node
}

func (c *Compiler) contextualTypesOf(cls *program.Class) map[string]types.Type {
	if cls != nil {
		return cls.ContextualTypes
	}
	return c.contextualTypes()
}

func mergeContext(outer, inner map[string]types.Type) map[string]types.Type {
	if len(inner) == 0 {
		return outer
	}
	merged := make(map[string]types.Type, len(outer)+len(inner))
	for k, v := range outer {
		merged[k] = v
	}
	for k, v := range inner {
		merged[k] = v
	}
	return merged
}

// syntacticallyConstant reports initializers that are literal values and
// may be inlined at a call site.
func syntacticallyConstant(expr *ast.Expr) bool {
	switch expr.Kind {
	case ast.ExprIntLiteral, ast.ExprFloatLiteral, ast.ExprStringLiteral:
		return true
	case ast.ExprIdent:
		name := expr.Data.(ast.IdentData).Name
		return name == "true" || name == "false" || name == "null"
	case ast.ExprUnaryPrefix:
		data := expr.Data.(ast.UnaryData)
		return data.Op == ast.OpMinus && syntacticallyConstant(data.Operand)
	default:
		return false
	}
}

// makeCallDirect emits a direct call. Callers supplying every operand
// call the original; callers omitting optionals either inline constant
// initializers or route through the trampoline with ~argc set.
func (c *Compiler) makeCallDirect(f *program.Function, operands []*ir.Node, span source.Span) *ir.Node {
	if f.Decorators().Has(program.DecoratorInline) && !f.Is(program.FlagTrampoline) {
		if c.currentInlines[f] {
			c.warning(diag.WarnInlineRecursion, span, "function %s cannot be inlined into itself", f.SimpleName)
		} else {
			return c.compileCallInline(f, operands, span)
		}
	}
	c.compileFunction(f)

	sig := f.Signature
	thisOffset := 0
	if sig.HasThis() {
		thisOffset = 1
	}
	maxOperands := thisOffset + len(sig.ParameterTypes)
	numArgs := len(operands) - thisOffset
	retNative := sig.ReturnType.NativeType()

	if len(operands) >= maxOperands {
		return c.makeCallNode(f, operands, retNative)
	}

	// Missing optionals whose initializers are literal constants inline
	// at the call site.
	proto := f.Prototype
	allConstant := proto != nil
	if allConstant {
		for i := numArgs; i < len(sig.ParameterTypes); i++ {
			if i >= len(proto.Params) || proto.Params[i].Init == nil || !syntacticallyConstant(proto.Params[i].Init) {
				allConstant = false
				break
			}
		}
	}
	if allConstant {
		full := append([]*ir.Node(nil), operands...)
		for i := numArgs; i < len(sig.ParameterTypes); i++ {
			full = append(full, c.compileExpression(proto.Params[i].Init, sig.ParameterTypes[i], ConversionImplicit, true))
		}
		return c.makeCallNode(f, full, retNative)
	}

	// Otherwise pad with zeroes and let the trampoline fill the rest.
	tramp := c.ensureTrampoline(f)
	full := append([]*ir.Node(nil), operands...)
	for i := numArgs; i < len(sig.ParameterTypes); i++ {
		full = append(full, c.makeZero(sig.ParameterTypes[i]))
	}
	c.ensureArgcVar()
	return ir.Block("", []*ir.Node{
		ir.SetGlobal(argcGlobalName, ir.ConstI32(int32(numArgs))),
		c.makeCallNode(tramp, full, retNative),
	}, retNative)
}

// compileIndirectCall lowers a call through the function table.
func (c *Compiler) compileIndirectCall(expr *ast.Expr, data ast.CallData, index *ir.Node, sig *program.Signature) *ir.Node {
	if !c.checkCallSignature(sig, len(data.Args), false, expr) {
		c.currentType = sig.ReturnType
		return ir.Unreachable()
	}
	operands := make([]*ir.Node, 0, len(data.Args))
	for i, a := range data.Args {
		operands = append(operands, c.compileExpression(a, sig.ParameterTypes[i], ConversionImplicit, true))
	}
	node := c.makeCallIndirect(sig, index, operands)
	c.currentType = sig.ReturnType
	return node
}

// makeCallIndirect pads operands like a direct call but always sets
// ~argc, since the table slot may be a trampoline.
func (c *Compiler) makeCallIndirect(sig *program.Signature, index *ir.Node, operands []*ir.Node) *ir.Node {
	numArgs := len(operands)
	full := append([]*ir.Node(nil), operands...)
	for i := numArgs; i < len(sig.ParameterTypes); i++ {
		full = append(full, c.makeZero(sig.ParameterTypes[i]))
	}
	c.ensureArgcVar()
	c.ensureArgcSet()
	retNative := sig.ReturnType.NativeType()
	ft := c.functionTypeOf(sig)
	return ir.Block("", []*ir.Node{
		ir.SetGlobal(argcGlobalName, ir.ConstI32(int32(numArgs))),
		ir.CallIndirect(ft.Name, index, full, retNative),
	}, retNative)
}

// compileCallInline expands a call into a labelled block. Plain get-local
// arguments alias the parameter name to the existing slot; everything
// else spills into a fresh scoped temp. A recursion guard downgrades
// re-entrant inlines to plain calls.
func (c *Compiler) compileCallInline(f *program.Function, operands []*ir.Node, span source.Span) *ir.Node {
	proto := f.Prototype
	if proto == nil || (proto.Body == nil && proto.BodyExpr == nil) {
		return c.makeCallDirectNoInline(f, operands)
	}
	sig := f.Signature
	returnLabel := fmt.Sprintf("%s|inlined.%d", f.SimpleName, f.NextInlineID)
	f.NextInlineID++

	parent := c.currentFlow
	flow := parent.Fork()
	flow.Set(FlowInlineContext)
	flow.ReturnLabel = returnLabel
	flow.ReturnType = sig.ReturnType
	if f.Is(program.FlagUncheckedContext) {
		flow.Set(FlowUncheckedContext)
	}
	c.currentFlow = flow

	var prelude []*ir.Node
	var temps []*program.Local
	bind := func(name string, t types.Type, operand *ir.Node) {
		if operand.Kind == ir.KindGetLocal {
			alias := &program.Local{
				ElementBase: program.ElementBase{SimpleName: name, ElemFlags: program.FlagScoped},
				Index:       int(operand.Index),
				Type:        t,
			}
			flow.AddScopedLocal(name, alias)
			return
		}
		tmp := c.getTempLocal(t)
		scoped := &program.Local{
			ElementBase: program.ElementBase{SimpleName: name, ElemFlags: program.FlagScoped},
			Index:       tmp.Index,
			Type:        t,
		}
		flow.AddScopedLocal(name, scoped)
		prelude = append(prelude, ir.SetLocal(uint32(tmp.Index), operand))
		temps = append(temps, tmp)
	}

	idx := 0
	if sig.HasThis() {
		bind("this", *sig.This, operands[0])
		idx = 1
	}
	for i, name := range sig.ParameterNames {
		if idx+i < len(operands) {
			bind(name, sig.ParameterTypes[i], operands[idx+i])
			continue
		}
		// Omitted optionals compile their initializers in the inline
		// scope so they may reference this and earlier parameters.
		var init *ir.Node
		if i < len(proto.Params) && proto.Params[i].Init != nil {
			init = c.compileExpression(proto.Params[i].Init, sig.ParameterTypes[i], ConversionImplicit, true)
		} else {
			init = c.makeZero(sig.ParameterTypes[i])
		}
		tmp := c.getTempLocal(sig.ParameterTypes[i])
		scoped := &program.Local{
			ElementBase: program.ElementBase{SimpleName: name, ElemFlags: program.FlagScoped},
			Index:       tmp.Index,
			Type:        sig.ParameterTypes[i],
		}
		flow.AddScopedLocal(name, scoped)
		prelude = append(prelude, ir.SetLocal(uint32(tmp.Index), init))
		temps = append(temps, tmp)
	}

	c.currentInlines[f] = true
	var body []*ir.Node
	retNative := sig.ReturnType.NativeType()
	if proto.BodyExpr != nil {
		body = append(prelude, c.compileExpression(proto.BodyExpr, sig.ReturnType, ConversionImplicit, true))
	} else {
		body = append(prelude, c.compileStatementList(proto.Body)...)
	}
	delete(c.currentInlines, f)

	c.currentFlow = flow.Free()
	if flow.Is(FlowAllocates) {
		c.currentFlow.Set(FlowAllocates)
	}
	for _, tmp := range temps {
		c.freeTempLocal(tmp)
	}
	return ir.Block(returnLabel, body, retNative)
}

// makeCallDirectNoInline is the fallback when a body is unavailable for
// inlining.
func (c *Compiler) makeCallDirectNoInline(f *program.Function, operands []*ir.Node) *ir.Node {
	c.compileFunction(f)
	return c.makeCallNode(f, operands, f.Signature.ReturnType.NativeType())
}
