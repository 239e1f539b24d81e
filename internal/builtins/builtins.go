// Package builtins lowers intrinsic calls the core delegates through its
// builtin hook. Every handler either returns an IR expression with the
// compiler's current type set, or nil to trigger an operation-not-
// supported diagnostic at the call site.
package builtins

import (
	"swell/internal/ast"
	"swell/internal/codegen"
	"swell/internal/diag"
	"swell/internal/ir"
	"swell/internal/program"
	"swell/internal/source"
	"swell/internal/types"
)

// Compile dispatches a builtin-decorated call by prototype name. Wired
// into the compiler by the driver.
func Compile(c *codegen.Compiler, proto *program.FunctionPrototype, typeArgs []types.Type, args []*ast.Expr, contextualType types.Type, span source.Span) *ir.Node {
	switch proto.SimpleName {
	case "allocate":
		return compileAllocate(c, typeArgs, args, span)
	case "abort":
		return Abort(c, optionalArg(args, 0), span)
	case "assert":
		return compileAssert(c, args, contextualType, span)
	case "unreachable":
		c.SetCurrentType(contextualType)
		return ir.Unreachable()
	case "sizeof":
		return compileSizeof(c, typeArgs, span)
	case "load":
		return compileLoad(c, typeArgs, args, span)
	case "store":
		return compileStore(c, typeArgs, args, span)
	case "select":
		return compileSelect(c, typeArgs, args, contextualType, span)
	case "changetype":
		return compileChangetype(c, typeArgs, args, span)
	default:
		return nil
	}
}

func optionalArg(args []*ast.Expr, i int) *ast.Expr {
	if i < len(args) {
		return args[i]
	}
	return nil
}

// Allocate emits a field-initializing allocation for a class.
func Allocate(c *codegen.Compiler, cls *program.Class, span source.Span) *ir.Node {
	node := c.MakeAllocate(cls, span)
	c.SetCurrentType(cls.Type)
	return node
}

// Abort lowers to the runtime abort plus unreachable.
func Abort(c *codegen.Compiler, message *ast.Expr, span source.Span) *ir.Node {
	node := c.MakeAbort(message, span)
	c.SetCurrentType(types.Void)
	return node
}

// IterateRoots emits the GC root iteration helper.
func IterateRoots(c *codegen.Compiler) {
	c.MakeIterateRoots()
}

// EnsureGCHook returns the hook index written into the GC header word of
// heap objects of the class.
func EnsureGCHook(c *codegen.Compiler, cls *program.Class) int32 {
	return c.EnsureGCHook(cls)
}

// compileAllocate handles allocate<T>() over an explicit class type
// argument.
func compileAllocate(c *codegen.Compiler, typeArgs []types.Type, args []*ast.Expr, span source.Span) *ir.Node {
	if len(typeArgs) != 1 || !typeArgs[0].IsReference() || len(args) != 0 {
		return nil
	}
	cls := c.Program().ClassByID(typeArgs[0].Class)
	if cls == nil {
		return nil
	}
	return Allocate(c, cls, span)
}

// compileAssert checks its condition at runtime; with noAssert the check
// becomes a nop, or a drop of the condition when it has side effects.
func compileAssert(c *codegen.Compiler, args []*ast.Expr, contextualType types.Type, span source.Span) *ir.Node {
	if len(args) < 1 {
		return nil
	}
	cond := c.CompileExpression(args[0], types.Bool, codegen.ConversionNone, false)
	condType := c.CurrentType()
	if c.Options().NoAssert {
		// Replaced with a nop; the condition still evaluates when it has
		// side effects.
		c.SetCurrentType(types.Void)
		if ir.SideEffectFree(cond) {
			return ir.Nop()
		}
		return ir.Drop(cond)
	}
	var failed *ir.Node
	if len(args) > 1 {
		failed = c.MakeAbort(args[1], span)
	} else {
		failed = c.MakeAbort(nil, span)
	}
	var test *ir.Node
	switch condType.NativeType() {
	case types.NativeI64:
		test = ir.Unary(ir.OpEqzI64, cond, types.NativeI32)
	case types.NativeF32:
		test = ir.Binary(ir.OpEqF32, cond, ir.ConstF32(0), types.NativeI32)
	case types.NativeF64:
		test = ir.Binary(ir.OpEqF64, cond, ir.ConstF64(0), types.NativeI32)
	default:
		test = ir.Unary(ir.OpEqzI32, cond, types.NativeI32)
	}
	c.SetCurrentType(types.Void)
	return ir.If(test, failed, nil, types.NativeNone)
}

func compileSizeof(c *codegen.Compiler, typeArgs []types.Type, span source.Span) *ir.Node {
	if len(typeArgs) != 1 {
		return nil
	}
	t := typeArgs[0]
	size := uint64(t.ByteSize())
	if t.IsReference() {
		if cls := c.Program().ClassByID(t.Class); cls != nil {
			size = uint64(cls.InstanceSize)
		}
	}
	usize := c.UsizeType()
	c.SetCurrentType(usize)
	return ir.ConstPtr(usize.NativeType(), size)
}

func compileLoad(c *codegen.Compiler, typeArgs []types.Type, args []*ast.Expr, span source.Span) *ir.Node {
	if len(typeArgs) != 1 || len(args) < 1 || len(args) > 2 {
		return nil
	}
	t := typeArgs[0]
	ptr := c.CompileExpression(args[0], c.UsizeType(), codegen.ConversionImplicit, true)
	offset := uint32(0)
	if len(args) == 2 {
		folded := ir.Precompute(c.CompileExpression(args[1], types.I32, codegen.ConversionImplicit, true))
		if !folded.IsConst() || folded.I64 < 0 {
			c.ReportError(diag.NotSupported, span, "load offset must be a compile-time constant")
			c.SetCurrentType(t)
			return ir.Unreachable()
		}
		offset = uint32(folded.I64)
	}
	c.SetCurrentType(t)
	return ir.Load(uint8(t.ByteSize()), t.Is(types.FlagSigned), ptr, t.NativeType(), offset)
}

func compileStore(c *codegen.Compiler, typeArgs []types.Type, args []*ast.Expr, span source.Span) *ir.Node {
	if len(typeArgs) != 1 || len(args) < 2 || len(args) > 3 {
		return nil
	}
	t := typeArgs[0]
	ptr := c.CompileExpression(args[0], c.UsizeType(), codegen.ConversionImplicit, true)
	value := c.CompileExpression(args[1], t, codegen.ConversionImplicit, true)
	offset := uint32(0)
	if len(args) == 3 {
		folded := ir.Precompute(c.CompileExpression(args[2], types.I32, codegen.ConversionImplicit, true))
		if !folded.IsConst() || folded.I64 < 0 {
			c.ReportError(diag.NotSupported, span, "store offset must be a compile-time constant")
			c.SetCurrentType(types.Void)
			return ir.Unreachable()
		}
		offset = uint32(folded.I64)
	}
	c.SetCurrentType(types.Void)
	return ir.Store(uint8(t.ByteSize()), ptr, value, t.NativeType(), offset)
}

func compileSelect(c *codegen.Compiler, typeArgs []types.Type, args []*ast.Expr, contextualType types.Type, span source.Span) *ir.Node {
	if len(args) != 3 {
		return nil
	}
	t := contextualType
	if len(typeArgs) == 1 {
		t = typeArgs[0]
	}
	ifTrue := c.CompileExpression(args[0], t, codegen.ConversionImplicit, true)
	if len(typeArgs) == 0 {
		t = c.CurrentType()
	}
	ifFalse := c.CompileExpression(args[1], t, codegen.ConversionImplicit, true)
	cond := c.CompileExpression(args[2], types.Bool, codegen.ConversionImplicit, true)
	c.SetCurrentType(t)
	return ir.Select(cond, ifTrue, ifFalse, t.NativeType())
}

// compileChangetype reinterprets a pointer-sized value as another type
// without conversion.
func compileChangetype(c *codegen.Compiler, typeArgs []types.Type, args []*ast.Expr, span source.Span) *ir.Node {
	if len(typeArgs) != 1 || len(args) != 1 {
		return nil
	}
	to := typeArgs[0]
	node := c.CompileExpression(args[0], types.Void, codegen.ConversionNone, false)
	from := c.CurrentType()
	if from.NativeType() != to.NativeType() {
		c.ReportError(diag.TypeConvertImpossible, span, "cannot change type %s to %s", from, to)
		c.SetCurrentType(to)
		return ir.Unreachable()
	}
	c.SetCurrentType(to)
	return node
}
