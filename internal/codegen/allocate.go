package codegen

import (
	"swell/internal/ast"
	"swell/internal/diag"
	"swell/internal/ir"
	"swell/internal/program"
	"swell/internal/source"
	"swell/internal/types"
)

// resolveRuntimeFunction finds a runtime-provided function by name.
func (c *Compiler) resolveRuntimeFunction(name string) *program.Function {
	e, ok := c.prog.Lookup(name)
	if !ok {
		return nil
	}
	proto, ok := e.(*program.FunctionPrototype)
	if !ok || proto.Is(program.FlagGeneric) {
		return nil
	}
	f, err := c.prog.ResolveFunction(proto, nil, nil)
	if err != nil {
		return nil
	}
	return f
}

// makeAllocate acquires a chunk for a class instance and initializes every
// field from its declared initializer, its constructor parameter, or the
// type's native zero. Returns the instance pointer held in a temp.
func (c *Compiler) makeAllocate(cls *program.Class, span *source.Span) *ir.Node {
	ptrNative := c.usizeType.NativeType()
	allocFn := c.resolveRuntimeFunction("allocate")
	header := c.gcHeaderSize()
	size := uint64(cls.InstanceSize) + uint64(header)

	var chunk *ir.Node
	if allocFn != nil {
		c.compileFunction(allocFn)
		chunk = c.makeCallNode(allocFn, []*ir.Node{ir.ConstPtr(ptrNative, size)}, ptrNative)
	} else {
		at := source.Span{}
		if span != nil {
			at = *span
		}
		c.error(diag.NotSupported, at, "no allocate function is declared; cannot instantiate %s", cls.SimpleName)
		return ir.Unreachable()
	}

	tmp := c.getTempLocal(cls.Type)
	stmts := []*ir.Node{}
	stmts = append(stmts, ir.SetLocal(uint32(tmp.Index), chunk))
	if header > 0 {
		// The first header word carries the class's GC hook index; the
		// instance pointer targets the body past the header.
		hook := c.ensureGCHookIndex(cls)
		stmts = append(stmts,
			ir.Store(uint8(c.usizeType.Size), ir.GetLocal(uint32(tmp.Index), ptrNative),
				ir.ConstPtr(ptrNative, uint64(hook)), ptrNative, 0),
			ir.SetLocal(uint32(tmp.Index),
				ir.Binary(addOpFor(ptrNative), ir.GetLocal(uint32(tmp.Index), ptrNative),
					ir.ConstPtr(ptrNative, uint64(header)), ptrNative)))
	}

	inCtor := c.currentFn != nil && c.currentFn.Is(program.FlagConstructor) && c.currentFn.Class == cls
	for cur := cls; cur != nil; cur = cur.Base {
		for _, f := range cur.Fields {
			var value *ir.Node
			switch {
			case f.Init != nil:
				value = c.compileExpression(f.Init, f.Type, ConversionImplicit, true)
			case f.ParamIndex >= 0 && inCtor:
				value = ir.GetLocal(uint32(1+f.ParamIndex), f.Type.NativeType())
			default:
				value = c.makeZero(f.Type)
			}
			stmts = append(stmts, ir.Store(uint8(f.Type.ByteSize()),
				ir.GetLocal(uint32(tmp.Index), ptrNative), value, f.Type.NativeType(), f.Offset))
		}
	}
	stmts = append(stmts, ir.GetLocal(uint32(tmp.Index), ptrNative))
	c.freeTempLocal(tmp)
	return ir.Block("", stmts, ptrNative)
}

// makeConditionalAllocate allocates only when the incoming this is still
// null, accommodating derived-class super calls that pre-allocate.
func (c *Compiler) makeConditionalAllocate(cls *program.Class) *ir.Node {
	ptrNative := c.usizeType.NativeType()
	var cond *ir.Node
	if ptrNative == types.NativeI64 {
		cond = ir.Unary(ir.OpEqzI64, ir.GetLocal(0, ptrNative), types.NativeI32)
	} else {
		cond = ir.Unary(ir.OpEqzI32, ir.GetLocal(0, ptrNative), types.NativeI32)
	}
	return ir.If(cond, c.makeAllocate(cls, nil), ir.GetLocal(0, ptrNative), ptrNative)
}

// makeAbort lowers throw and failed assertions to the runtime's abort,
// followed by unreachable.
func (c *Compiler) makeAbort(message *ast.Expr, span source.Span) *ir.Node {
	abortFn := c.resolveRuntimeFunction("abort")
	if abortFn == nil {
		return ir.Unreachable()
	}
	c.compileFunction(abortFn)
	sig := abortFn.Signature
	operands := make([]*ir.Node, 0, len(sig.ParameterTypes))
	if len(sig.ParameterTypes) > 0 {
		if message != nil {
			operands = append(operands, c.compileExpression(message, sig.ParameterTypes[0], ConversionImplicit, true))
		} else {
			operands = append(operands, c.makeZero(sig.ParameterTypes[0]))
		}
		for i := 1; i < len(sig.ParameterTypes); i++ {
			operands = append(operands, c.makeZero(sig.ParameterTypes[i]))
		}
	}
	return ir.Block("", []*ir.Node{
		c.makeCallNode(abortFn, operands, types.NativeNone),
		ir.Unreachable(),
	}, types.NativeNone)
}

// makeIterateRoots emits the ~iterateRoots helper: it calls the visitor
// (a table index taking one pointer) for every reference-typed global.
func (c *Compiler) makeIterateRoots() {
	ptrNative := c.usizeType.NativeType()
	visitorType := c.mod.AddFunctionType(types.NativeNone, []types.NativeType{ptrNative})
	var body []*ir.Node
	for _, name := range c.rootGlobals {
		body = append(body, ir.CallIndirect(visitorType.Name,
			ir.GetLocal(0, types.NativeI32),
			[]*ir.Node{ir.GetGlobal(name, ptrNative)}, types.NativeNone))
	}
	ft := c.mod.AddFunctionType(types.NativeNone, []types.NativeType{types.NativeI32})
	c.mod.AddFunction("~iterateRoots", ft, nil, ir.Block("", body, types.NativeNone))
	c.mod.AddExport(ir.ExportFunction, "~iterateRoots", "~iterateRoots")
}

func addOpFor(nt types.NativeType) ir.Op {
	if nt == types.NativeI64 {
		return ir.OpAddI64
	}
	return ir.OpAddI32
}
