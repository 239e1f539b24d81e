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

// Reserved internal names.
const (
	startFunctionName = "start"
	argcGlobalName    = "~argc"
	setargcExportName = "~setargc"
	startedGlobalName = "~started"
	heapBaseName      = "HEAP_BASE"
)

// maximumMemoryPages is the wasm32 ceiling; wasm64 keeps the same cap
// until a larger one is specified.
const maximumMemoryPages = 0xffff

// ConversionKind selects how strict convertExpr is.
type ConversionKind uint8

const (
	// ConversionImplicit reports unassignable conversions.
	ConversionImplicit ConversionKind = iota
	// ConversionExplicit allows any numeric conversion.
	ConversionExplicit
	// ConversionNone retains the expression's own type; the contextual
	// type only guides literal inference.
	ConversionNone
)

// funcState holds the per-function machinery the compiler manages outside
// the program model: the temp-local pool.
type funcState struct {
	tempLocals map[types.NativeType][]*program.Local
}

// Compiler walks a pre-resolved program and produces a WebAssembly module.
// All state is confined to the single compilation goroutine.
type Compiler struct {
	prog *program.Program
	opts *program.Options
	mod  *ir.Module
	rep  diag.Reporter

	usizeType types.Type

	startBody []*ir.Node
	startFn   *program.Function
	startFlow *Flow

	currentFn   *program.Function
	currentFlow *Flow
	// currentType is the type of the expression compileExpression just
	// returned; it always matches the IR type of that expression.
	currentType types.Type

	// memoryOffset grows monotonically as segments are placed.
	memoryOffset uint32
	stringPool   map[string]uint32

	functionTable []*program.Function
	argcVarDone   bool
	argcSetDone   bool

	builtins BuiltinHandler

	states map[*program.Function]*funcState
	// currentInlines guards against re-entrant inlining.
	currentInlines map[*program.Function]bool
	// wrappedReturns names compiled functions whose every return is
	// provably wrapped; flows consult it through CanOverflow.
	wrappedReturns map[string]bool

	// nextBreakID feeds break|N / continue|N label pairs.
	nextBreakID int
	breakStack  []int

	gcClasses []*program.Class
	// rootGlobals names reference-typed globals, the roots iterateRoots
	// visits.
	rootGlobals []string

	mathPow, mathfPow *program.Function
	mathMod, mathfMod *program.Function

	mainFunction  *program.Function
	startedGlobal bool
	// currentEnum scopes sibling members for enum initializers.
	currentEnum *program.Enum
}

// New creates a compiler for a program.
func New(prog *program.Program, reporter diag.Reporter) *Compiler {
	if reporter == nil {
		reporter = diag.NopReporter{}
	}
	base := prog.Options.MemoryBase
	if base < 8 {
		// The first eight bytes stay reserved as the null sentinel.
		base = 8
	}
	return &Compiler{
		prog:           prog,
		opts:           prog.Options,
		mod:            ir.NewModule(),
		rep:            reporter,
		usizeType:      prog.Options.USizeType(),
		memoryOffset:   base,
		stringPool:     make(map[string]uint32),
		states:         make(map[*program.Function]*funcState),
		currentInlines: make(map[*program.Function]bool),
		wrappedReturns: make(map[string]bool),
	}
}

// Module returns the IR module under construction.
func (c *Compiler) Module() *ir.Module { return c.mod }

// Program returns the program being compiled.
func (c *Compiler) Program() *program.Program { return c.prog }

// Options returns the active options.
func (c *Compiler) Options() *program.Options { return c.opts }

// CurrentType returns the type of the most recently compiled expression.
func (c *Compiler) CurrentType() types.Type { return c.currentType }

// CurrentFlow returns the active flow.
func (c *Compiler) CurrentFlow() *Flow { return c.currentFlow }

// error and warning report through the diagnostic sink; compilation
// continues with sentinel expressions.
func (c *Compiler) error(code diag.Code, span source.Span, format string, args ...any) {
	c.rep.Report(diag.SevError, code, span, fmt.Sprintf(format, args...))
}

func (c *Compiler) warning(code diag.Code, span source.Span, format string, args ...any) {
	c.rep.Report(diag.SevWarning, code, span, fmt.Sprintf(format, args...))
}

// Compile walks every entry source and assembles the module. The returned
// module may be invalid if error diagnostics were reported.
func (c *Compiler) Compile() (*ir.Module, error) {
	c.mod.DebugInfo = c.opts.SourceMap

	for _, src := range c.prog.Sources {
		if src.Entry {
			c.compileSource(src)
		}
	}

	// The start function collects module-level statements and non-inlined
	// global initializers.
	if len(c.startBody) > 0 || c.mainFunction != nil {
		ft := c.mod.AddFunctionType(types.NativeNone, nil)
		startFn := c.startFunctionInstance()
		body := ir.Block("", c.startBody, types.NativeNone)
		c.mod.AddFunction(startFunctionName, ft, c.additionalLocalTypes(startFn), body)
		if c.mainFunction == nil {
			c.mod.SetStart(startFunctionName)
		}
	}

	// Seal static memory and expose the heap base.
	ptrSize := uint32(c.usizeType.Size)
	c.memoryOffset = alignOffset(c.memoryOffset, ptrSize)
	heapBase := ir.ConstPtr(c.usizeType.NativeType(), uint64(c.memoryOffset))
	c.mod.AddGlobal(heapBaseName, c.usizeType.NativeType(), false, heapBase)
	c.mod.AddExport(ir.ExportGlobal, heapBaseName, heapBaseName)

	if err := c.mod.SetMemory(uint64(c.memoryOffset), maximumMemoryPages, c.opts.ImportMemory); err != nil {
		return nil, err
	}
	if !c.opts.ImportMemory {
		c.mod.AddExport(ir.ExportMemory, "memory", "0")
	}

	if len(c.functionTable) > 0 {
		entries := make([]string, len(c.functionTable))
		for i, f := range c.functionTable {
			entries[i] = f.Internal
		}
		c.mod.SetFunctionTable(entries, c.opts.ImportTable)
	}

	c.makeModuleExports()

	if len(c.gcClasses) > 0 {
		c.makeIterateRoots()
	}

	if err := c.mod.Finalize(); err != nil {
		return nil, err
	}
	return c.mod, nil
}

// compileSource lowers a source's top-level items in textual order.
func (c *Compiler) compileSource(src *program.Source) {
	if src.Compiled() {
		return
	}
	src.MarkCompiled()
	for i := range src.Items {
		item := &src.Items[i]
		switch item.Kind {
		case program.ItemImport:
			if target, ok := c.prog.SourceByPath(item.ImportPath); ok {
				c.compileSource(target)
			} else {
				c.error(diag.SemaUnresolvedIdentifier, item.Span, "import %q does not name a source", item.ImportPath)
			}
		case program.ItemDecl:
			c.compileTopLevelDecl(item.Decl, src)
		case program.ItemStmt:
			c.compileTopLevelStatement(item.Stmt)
		}
	}
}

// compileTopLevelDecl lowers a declaration if tree shaking keeps it.
func (c *Compiler) compileTopLevelDecl(e program.Element, src *program.Source) {
	keep := c.opts.NoTreeShaking || (e.Flags().Has(program.FlagExport) && src.Entry)
	switch decl := e.(type) {
	case *program.Global:
		if keep {
			c.compileGlobal(decl)
		}
	case *program.Enum:
		if keep {
			c.compileEnum(decl)
		}
	case *program.FunctionPrototype:
		if decl.Decorators().Has(program.DecoratorBuiltin) {
			// Builtins are interpreted at their call sites.
			return
		}
		if decl.Is(program.FlagMain) || (keep && len(decl.TypeParams) == 0) {
			if f, err := c.prog.ResolveFunction(decl, nil, nil); err == nil {
				c.compileFunction(f)
			} else {
				c.error(diag.TypeExpectedTypeArguments, decl.Span, "%v", err)
			}
		}
	case *program.ClassPrototype:
		if keep && len(decl.TypeParams) == 0 {
			if cls, err := c.prog.ResolveClass(decl, nil); err == nil {
				c.compileClass(cls)
			} else {
				c.error(diag.SemaUnresolvedIdentifier, decl.Span, "%v", err)
			}
		}
	case *program.Namespace:
		if keep {
			c.compileNamespace(decl)
		}
	default:
		// Interfaces and friends surface through the frontend as
		// unsupported before they reach the backend.
	}
}

// compileTopLevelStatement appends a plain statement to the start body.
func (c *Compiler) compileTopLevelStatement(stmt *ast.Stmt) {
	fn := c.startFunctionInstance()
	prevFn, prevFlow := c.currentFn, c.currentFlow
	c.currentFn = fn
	c.currentFlow = c.startFlowInstance()
	if node := c.compileStatement(stmt); node != nil && node.Kind != ir.KindNop {
		c.startBody = append(c.startBody, node)
	}
	c.currentFn, c.currentFlow = prevFn, prevFlow
}

// startFunctionInstance lazily creates the synthetic start function.
func (c *Compiler) startFunctionInstance() *program.Function {
	if c.startFn == nil {
		proto := &program.FunctionPrototype{
			ElementBase: program.ElementBase{SimpleName: startFunctionName, Internal: startFunctionName},
			ReturnType:  "void",
		}
		f, err := c.prog.ResolveFunction(proto, nil, nil)
		if err != nil {
			panic(fmt.Sprintf("codegen: start function: %v", err))
		}
		c.startFn = f
	}
	return c.startFn
}

// newFlow creates a function-body flow bound to the compiler's
// wrapped-returns registry.
func (c *Compiler) newFlow(fn *program.Function) *Flow {
	f := NewFlow(fn)
	f.wrappedReturns = c.wrappedReturns
	return f
}

// state returns the compiler-managed per-function state.
func (c *Compiler) state(f *program.Function) *funcState {
	s, ok := c.states[f]
	if !ok {
		s = &funcState{tempLocals: make(map[types.NativeType][]*program.Local)}
		c.states[f] = s
	}
	return s
}

// getTempLocal acquires a temporary local of the given type from the
// current function's pool.
func (c *Compiler) getTempLocal(t types.Type) *program.Local {
	s := c.state(c.currentFn)
	nt := t.NativeType()
	if pool := s.tempLocals[nt]; len(pool) > 0 {
		l := pool[len(pool)-1]
		s.tempLocals[nt] = pool[:len(pool)-1]
		l.Type = t
		return l
	}
	return c.currentFn.AddLocal(t, fmt.Sprintf("~tmp%d", len(c.currentFn.Locals)))
}

// freeTempLocal returns a temporary to the pool.
func (c *Compiler) freeTempLocal(l *program.Local) {
	s := c.state(c.currentFn)
	nt := l.Type.NativeType()
	s.tempLocals[nt] = append(s.tempLocals[nt], l)
}

// additionalLocalTypes lists the native types of locals beyond the
// signature's parameters, in slot order.
func (c *Compiler) additionalLocalTypes(f *program.Function) []types.NativeType {
	first := len(f.Signature.ParameterTypes)
	if f.Signature.HasThis() {
		first++
	}
	var out []types.NativeType
	for _, l := range f.Locals[first:] {
		out = append(out, l.Type.NativeType())
	}
	return out
}

// enterBreakContext pushes a fresh break|N / continue|N id pair.
func (c *Compiler) enterBreakContext() int {
	c.nextBreakID++
	c.breakStack = append(c.breakStack, c.nextBreakID)
	return c.nextBreakID
}

func (c *Compiler) leaveBreakContext() {
	c.breakStack = c.breakStack[:len(c.breakStack)-1]
}

// recordDebugLocation ties an emitted node to its source position when
// source maps were requested.
func (c *Compiler) recordDebugLocation(node *ir.Node, span source.Span) {
	if !c.mod.DebugInfo || node == nil {
		return
	}
	f := c.prog.Files.Get(span.File)
	if f == nil {
		return
	}
	pos := f.Position(span.Start)
	c.mod.SetDebugLocation(node, ir.DebugLocation{
		FileIndex: uint32(span.File),
		Line:      pos.Line,
		Column:    pos.Col,
	})
}

func alignOffset(offset, align uint32) uint32 {
	if align <= 1 {
		return offset
	}
	mask := align - 1
	return (offset + mask) &^ mask
}
