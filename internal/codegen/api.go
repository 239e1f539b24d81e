package codegen

import (
	"swell/internal/ast"
	"swell/internal/diag"
	"swell/internal/ir"
	"swell/internal/program"
	"swell/internal/source"
	"swell/internal/types"
)

// The exported surface the builtins package programs against. It mirrors
// the internal lowering helpers one-to-one.

// CompileExpression lowers an expression with the given contextual type.
func (c *Compiler) CompileExpression(expr *ast.Expr, contextualType types.Type, kind ConversionKind, wrap bool) *ir.Node {
	return c.compileExpression(expr, contextualType, kind, wrap)
}

// SetCurrentType overrides the current expression type; builtins call it
// after producing custom IR.
func (c *Compiler) SetCurrentType(t types.Type) { c.currentType = t }

// ReportError emits an error diagnostic.
func (c *Compiler) ReportError(code diag.Code, span source.Span, format string, args ...any) {
	c.error(code, span, format, args...)
}

// ReportWarning emits a warning diagnostic.
func (c *Compiler) ReportWarning(code diag.Code, span source.Span, format string, args ...any) {
	c.warning(code, span, format, args...)
}

// MakeZero returns the native zero of a type.
func (c *Compiler) MakeZero(t types.Type) *ir.Node { return c.makeZero(t) }

// MakeAllocate emits a field-initializing allocation of a class instance.
func (c *Compiler) MakeAllocate(cls *program.Class, span source.Span) *ir.Node {
	return c.makeAllocate(cls, &span)
}

// MakeAbort emits the abort call followed by unreachable.
func (c *Compiler) MakeAbort(message *ast.Expr, span source.Span) *ir.Node {
	return c.makeAbort(message, span)
}

// MakeIterateRoots emits the ~iterateRoots helper.
func (c *Compiler) MakeIterateRoots() { c.makeIterateRoots() }

// EnsureGCHook registers a class's GC hook and returns its index.
func (c *Compiler) EnsureGCHook(cls *program.Class) int32 { return c.ensureGCHookIndex(cls) }

// EnsureStaticString canonicalises a string in static memory.
func (c *Compiler) EnsureStaticString(s string) uint32 { return c.ensureStaticString(s) }

// UsizeType returns the target's pointer-sized unsigned integer.
func (c *Compiler) UsizeType() types.Type { return c.usizeType }
