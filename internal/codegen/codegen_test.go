package codegen

import (
	"testing"

	"swell/internal/ast"
	"swell/internal/diag"
	"swell/internal/ir"
	"swell/internal/program"
	"swell/internal/source"
	"swell/internal/types"
)

var sp = source.Span{}

func newTestProgram(opts *program.Options) (*program.Program, *program.Source) {
	if opts == nil {
		opts = &program.Options{NoTreeShaking: true}
	}
	opts.NoTreeShaking = true
	p := program.NewProgram(opts, source.NewFileSet())
	file := p.Files.Add("main.swl", []byte(""))
	src := p.AddSource("main.swl", file, true)
	return p, src
}

func fnProto(name string, params []program.ParamDecl, ret string, body *ast.Stmt) *program.FunctionPrototype {
	return &program.FunctionPrototype{
		ElementBase: program.ElementBase{SimpleName: name, Internal: name},
		Params:      params,
		ReturnType:  ret,
		Body:        body,
	}
}

func declare(p *program.Program, src *program.Source, name string, e program.Element) {
	src.AddDecl(e)
	if !p.Register(name, e) {
		panic("duplicate test declaration " + name)
	}
}

func compileTest(t *testing.T, p *program.Program) (*ir.Module, *diag.Bag, *Compiler) {
	t.Helper()
	bag := diag.NewBag(100)
	c := New(p, diag.BagReporter{Bag: bag})
	mod, err := c.Compile()
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	return mod, bag, c
}

func requireNoErrors(t *testing.T, bag *diag.Bag) {
	t.Helper()
	if bag.HasErrors() {
		for _, d := range bag.Items() {
			t.Logf("%s %s: %s", d.Severity, d.Code, d.Message)
		}
		t.Fatalf("unexpected errors")
	}
}

func firstStmt(t *testing.T, mod *ir.Module, name string) *ir.Node {
	t.Helper()
	f, ok := mod.FunctionByName(name)
	if !ok {
		t.Fatalf("function %s not emitted", name)
	}
	if f.Body.Kind != ir.KindBlock || len(f.Body.List) == 0 {
		t.Fatalf("function %s has unexpected body %s", name, ir.NodeText(f.Body))
	}
	return f.Body.List[0]
}

// Short-integer wrap on return: foo(x: i8): i8 { return x + 1 } wraps the
// sum, with sign-extension ops when the feature is on and shift pairs
// otherwise.
func TestShortIntegerWrapOnReturn(t *testing.T) {
	build := func(features program.Feature) (*ir.Module, *diag.Bag) {
		p, src := newTestProgram(&program.Options{Features: features})
		body := ast.NewBlock(sp,
			ast.NewReturn(sp, ast.NewBinary(sp, ast.OpAdd,
				ast.NewIdent(sp, "x"), ast.NewIntLiteral(sp, 1))))
		declare(p, src, "foo", fnProto("foo", []program.ParamDecl{{Name: "x", Type: "i8"}}, "i8", body))
		mod, bag, _ := compileTest(t, p)
		return mod, bag
	}

	mod, bag := build(program.FeatureSignExtension)
	requireNoErrors(t, bag)
	ret := firstStmt(t, mod, "foo")
	if ret.Kind != ir.KindReturn {
		t.Fatalf("expected return, got %s", ir.NodeText(ret))
	}
	wrap := ret.Value
	if wrap.Kind != ir.KindUnary || wrap.Op != ir.OpExtendI8ToI32 {
		t.Fatalf("expected i32.extend8_s, got %s", ir.NodeText(wrap))
	}
	if add := wrap.Value; add.Kind != ir.KindBinary || add.Op != ir.OpAddI32 {
		t.Fatalf("expected i32.add under the wrap, got %s", ir.NodeText(wrap))
	}

	mod, bag = build(0)
	requireNoErrors(t, bag)
	ret = firstStmt(t, mod, "foo")
	wrap = ret.Value
	if wrap.Kind != ir.KindBinary || wrap.Op != ir.OpShrI32 {
		t.Fatalf("expected shr_s wrap, got %s", ir.NodeText(wrap))
	}
	shl := wrap.Left
	if shl.Kind != ir.KindBinary || shl.Op != ir.OpShlI32 || !shl.Right.IsConst() || shl.Right.I64 != 24 {
		t.Fatalf("expected shl by 24, got %s", ir.NodeText(wrap))
	}
	if add := shl.Left; add.Kind != ir.KindBinary || add.Op != ir.OpAddI32 {
		t.Fatalf("expected i32.add under the shifts, got %s", ir.NodeText(wrap))
	}
}

// A do-while whose body always terminates elides the trailing br_if.
func TestDoWhileTerminatingBodyElidesCondition(t *testing.T) {
	p, src := newTestProgram(nil)
	body := ast.NewBlock(sp,
		ast.NewDo(sp,
			ast.NewBlock(sp, ast.NewReturn(sp, ast.NewIntLiteral(sp, 1))),
			ast.NewIdent(sp, "x")))
	declare(p, src, "f", fnProto("f", []program.ParamDecl{{Name: "x", Type: "i32"}}, "i32", body))
	mod, bag, _ := compileTest(t, p)
	requireNoErrors(t, bag)

	outer := firstStmt(t, mod, "f")
	if outer.Kind != ir.KindBlock || len(outer.List) != 1 {
		t.Fatalf("expected break block, got %s", ir.NodeText(outer))
	}
	loop := outer.List[0]
	if loop.Kind != ir.KindLoop {
		t.Fatalf("expected loop, got %s", ir.NodeText(loop))
	}
	if loop.Value.Kind != ir.KindReturn {
		t.Fatalf("terminating body must be the bare return, got %s", ir.NodeText(loop.Value))
	}
}

// Optional-argument routing: literal initializers inline at the call
// site; non-constant ones route through the trampoline with ~argc set.
func TestOptionalArgumentRouting(t *testing.T) {
	p, src := newTestProgram(nil)
	empty := ast.NewBlock(sp)

	declare(p, src, "f", fnProto("f", []program.ParamDecl{
		{Name: "a", Type: "i32"},
		{Name: "b", Type: "i32", Init: ast.NewIntLiteral(sp, 2)},
	}, "void", empty))

	declare(p, src, "gv", &program.Global{
		ElementBase: program.ElementBase{SimpleName: "gv", Internal: "gv"},
		TypeName:    "i32",
		Init:        ast.NewIntLiteral(sp, 3),
	})
	declare(p, src, "g", fnProto("g", []program.ParamDecl{
		{Name: "a", Type: "i32"},
		{Name: "b", Type: "i32", Init: ast.NewIdent(sp, "gv")},
	}, "void", empty))

	call := func(callee string, args ...*ast.Expr) *ast.Stmt {
		return ast.NewExprStmt(sp, ast.NewCall(sp, ast.NewIdent(sp, callee), nil, args...))
	}
	caller := ast.NewBlock(sp,
		call("f", ast.NewIntLiteral(sp, 5)),
		call("f", ast.NewIntLiteral(sp, 5), ast.NewIntLiteral(sp, 7)),
		call("g", ast.NewIntLiteral(sp, 5)),
	)
	declare(p, src, "caller", fnProto("caller", nil, "void", caller))

	mod, bag, _ := compileTest(t, p)
	requireNoErrors(t, bag)

	cf, _ := mod.FunctionByName("caller")
	stmts := cf.Body.List
	if len(stmts) != 3 {
		t.Fatalf("expected 3 statements, got %d", len(stmts))
	}

	// f(5): literal initializer inlines as a direct call f(5, 2).
	if stmts[0].Kind != ir.KindCall || stmts[0].Name != "f" {
		t.Fatalf("f(5) should call f directly, got %s", ir.NodeText(stmts[0]))
	}
	if len(stmts[0].List) != 2 || stmts[0].List[1].I64 != 2 {
		t.Fatalf("f(5) should inline the initializer 2, got %s", ir.NodeText(stmts[0]))
	}

	// f(5, 7): all operands supplied, plain call.
	if stmts[1].Kind != ir.KindCall || stmts[1].Name != "f" || len(stmts[1].List) != 2 {
		t.Fatalf("f(5, 7) should call f directly, got %s", ir.NodeText(stmts[1]))
	}

	// g(5): non-constant initializer routes via the trampoline.
	block := stmts[2]
	if block.Kind != ir.KindBlock || len(block.List) != 2 {
		t.Fatalf("g(5) should produce an argc/call block, got %s", ir.NodeText(block))
	}
	setArgc := block.List[0]
	if setArgc.Kind != ir.KindSetGlobal || setArgc.Name != argcGlobalName || setArgc.Value.I64 != 1 {
		t.Fatalf("expected ~argc = 1, got %s", ir.NodeText(setArgc))
	}
	tramp := block.List[1]
	if tramp.Kind != ir.KindCall || tramp.Name != "g|trampoline" {
		t.Fatalf("expected trampoline call, got %s", ir.NodeText(tramp))
	}
	if len(tramp.List) != 2 || !tramp.List[1].IsConstZero() {
		t.Fatalf("missing operand must be zero-padded, got %s", ir.NodeText(tramp))
	}
	if _, ok := mod.FunctionByName("g|trampoline"); !ok {
		t.Fatalf("trampoline function not emitted")
	}
	if _, ok := mod.GlobalByName(argcGlobalName); !ok {
		t.Fatalf("~argc global not emitted")
	}
}

// Const-enum members inline; references substitute the literal.
func TestConstEnumPropagation(t *testing.T) {
	p, src := newTestProgram(nil)
	e := &program.Enum{
		ElementBase: program.ElementBase{SimpleName: "E", Internal: "E", ElemFlags: program.FlagConst},
	}
	e.Values = []*program.EnumValue{
		{ElementBase: program.ElementBase{SimpleName: "A", Internal: "E.A", ParentElem: e}},
		{ElementBase: program.ElementBase{SimpleName: "B", Internal: "E.B", ParentElem: e}},
		{
			ElementBase: program.ElementBase{SimpleName: "C", Internal: "E.C", ParentElem: e},
			Init:        ast.NewBinary(sp, ast.OpAdd, ast.NewIdent(sp, "A"), ast.NewIdent(sp, "B")),
		},
	}
	declare(p, src, "E", e)

	body := ast.NewBlock(sp, ast.NewReturn(sp,
		ast.NewProperty(sp, ast.NewIdent(sp, "E"), "C")))
	declare(p, src, "retC", fnProto("retC", nil, "i32", body))

	mod, bag, _ := compileTest(t, p)
	requireNoErrors(t, bag)

	for i, want := range []int64{0, 1, 1} {
		v := e.Values[i]
		if !v.Flags().Has(program.FlagInlined) || v.Constant.Int != want {
			t.Fatalf("member %s: inlined=%v value=%d, want %d",
				v.SimpleName, v.Flags().Has(program.FlagInlined), v.Constant.Int, want)
		}
	}
	ret := firstStmt(t, mod, "retC")
	if !ret.Value.IsConst() || ret.Value.I64 != 1 {
		t.Fatalf("E.C must compile to i32.const 1, got %s", ir.NodeText(ret.Value))
	}
	if ret.Value.Kind == ir.KindGetGlobal {
		t.Fatalf("E.C must not read a global")
	}
}

// Operator overload dispatch: a + b on class operands lowers to a direct
// call with this=a, not to numeric addition.
func TestOperatorOverloadDispatch(t *testing.T) {
	p, src := newTestProgram(nil)

	add := fnProto("add", []program.ParamDecl{{Name: "other", Type: "V"}}, "V",
		ast.NewBlock(sp, ast.NewReturn(sp, ast.NewIdent(sp, "other"))))
	add.Internal = "V.add"
	add.ElemFlags |= program.FlagInstance
	add.Decor |= program.DecoratorOperator
	add.Operator = program.OperatorAdd

	v := &program.ClassPrototype{
		ElementBase: program.ElementBase{SimpleName: "V", Internal: "V"},
		FieldDecls: []*program.Field{{
			ElementBase: program.ElementBase{SimpleName: "x"},
			TypeName:    "i32",
			ParamIndex:  -1,
		}},
		InstanceMembers: []program.Element{add},
	}
	add.ClassProto = v
	declare(p, src, "V", v)

	body := ast.NewBlock(sp, ast.NewReturn(sp,
		ast.NewBinary(sp, ast.OpAdd, ast.NewIdent(sp, "a"), ast.NewIdent(sp, "b"))))
	declare(p, src, "combine", fnProto("combine",
		[]program.ParamDecl{{Name: "a", Type: "V"}, {Name: "b", Type: "V"}}, "V", body))

	mod, bag, _ := compileTest(t, p)
	requireNoErrors(t, bag)

	ret := firstStmt(t, mod, "combine")
	call := ret.Value
	if call.Kind != ir.KindCall || call.Name != "V.add" {
		t.Fatalf("a + b must call V.add, got %s", ir.NodeText(call))
	}
	if len(call.List) != 2 {
		t.Fatalf("overload call needs this and other, got %s", ir.NodeText(call))
	}
	if call.List[0].Kind != ir.KindGetLocal || call.List[0].Index != 0 {
		t.Fatalf("this must be the left operand, got %s", ir.NodeText(call))
	}
}

// Static strings canonicalise by content: one segment, equal pointers.
func TestStaticStringDedup(t *testing.T) {
	p, src := newTestProgram(nil)
	mk := func(name string) {
		body := ast.NewBlock(sp, ast.NewReturn(sp, ast.NewStringLiteral(sp, "hello")))
		declare(p, src, name, fnProto(name, nil, "usize", body))
	}
	mk("s1")
	mk("s2")
	mod, bag, _ := compileTest(t, p)
	requireNoErrors(t, bag)

	r1 := firstStmt(t, mod, "s1").Value
	r2 := firstStmt(t, mod, "s2").Value
	if !r1.IsConst() || !r2.IsConst() || r1.I64 != r2.I64 {
		t.Fatalf("equal strings must share one pointer: %s vs %s", ir.NodeText(r1), ir.NodeText(r2))
	}
	if len(mod.Segments) != 1 {
		t.Fatalf("expected exactly one segment, got %d", len(mod.Segments))
	}
	data := mod.Segments[0].Data
	if len(data) != 4+2*5 {
		t.Fatalf("segment length %d", len(data))
	}
	if data[0] != 5 || data[1] != 0 || data[2] != 0 || data[3] != 0 {
		t.Fatalf("length prefix wrong: %v", data[:4])
	}
	if data[4] != 'h' || data[5] != 0 || data[6] != 'e' || data[12] != 'o' {
		t.Fatalf("utf16 payload wrong: %v", data[4:])
	}
}

// Compiling the same element twice produces exactly one definition.
func TestElementCompilationIdempotent(t *testing.T) {
	p, src := newTestProgram(nil)
	proto := fnProto("once", nil, "void", ast.NewBlock(sp))
	declare(p, src, "once", proto)
	mod, bag, c := compileTest(t, p)
	requireNoErrors(t, bag)

	f, err := p.ResolveFunction(proto, nil, nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	before := len(mod.Functions)
	c.compileFunction(f)
	c.compileFunction(f)
	if len(mod.Functions) != before {
		t.Fatalf("recompilation added definitions: %d -> %d", before, len(mod.Functions))
	}
}

// currentType matches the requested contextual type after an implicit
// conversion, and identical types emit no conversion op.
func TestTypePropagation(t *testing.T) {
	p, src := newTestProgram(nil)
	declare(p, src, "noop", fnProto("noop", nil, "void", ast.NewBlock(sp)))
	_, bag, c := compileTest(t, p)
	requireNoErrors(t, bag)

	c.currentFn = c.startFunctionInstance()
	c.currentFlow = c.startFlowInstance()

	node := c.compileExpression(ast.NewIntLiteral(sp, 7), types.I64, ConversionImplicit, false)
	if c.CurrentType() != types.I64 {
		t.Fatalf("currentType = %s, want i64", c.CurrentType())
	}
	if node.Type != types.NativeI64 {
		t.Fatalf("node type = %s", node.Type)
	}

	same := c.compileExpression(ast.NewIntLiteral(sp, 7), types.I32, ConversionImplicit, false)
	if same.Kind != ir.KindConst || same.Type != types.NativeI32 {
		t.Fatalf("no conversion op expected for matching types, got %s", ir.NodeText(same))
	}
}

// Both arms returning upgrade RETURNS in the parent, so both compiles
// without a missing-return error; one ends with its own return.
func TestIfFlowMergeSoundness(t *testing.T) {
	p, src := newTestProgram(nil)
	both := ast.NewBlock(sp,
		ast.NewIf(sp, ast.NewIdent(sp, "x"),
			ast.NewBlock(sp, ast.NewReturn(sp, ast.NewIntLiteral(sp, 1))),
			ast.NewBlock(sp, ast.NewReturn(sp, ast.NewIntLiteral(sp, 2)))))
	declare(p, src, "both", fnProto("both", []program.ParamDecl{{Name: "x", Type: "i32"}}, "i32", both))

	one := ast.NewBlock(sp,
		ast.NewIf(sp, ast.NewIdent(sp, "x"),
			ast.NewBlock(sp, ast.NewReturn(sp, ast.NewIntLiteral(sp, 1))),
			nil),
		ast.NewReturn(sp, ast.NewIntLiteral(sp, 0)))
	declare(p, src, "one", fnProto("one", []program.ParamDecl{{Name: "x", Type: "i32"}}, "i32", one))

	_, bag, _ := compileTest(t, p)
	// Neither function may trip the missing-return diagnostic.
	requireNoErrors(t, bag)
}

// A function lacking a return on some path reports TypeMustReturnValue.
func TestMissingReturnReports(t *testing.T) {
	p, src := newTestProgram(nil)
	body := ast.NewBlock(sp,
		ast.NewIf(sp, ast.NewIdent(sp, "x"),
			ast.NewBlock(sp, ast.NewReturn(sp, ast.NewIntLiteral(sp, 1))),
			nil))
	declare(p, src, "partial", fnProto("partial", []program.ParamDecl{{Name: "x", Type: "i32"}}, "i32", body))
	_, bag, _ := compileTest(t, p)
	found := false
	for _, d := range bag.Items() {
		if d.Code == diag.TypeMustReturnValue {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a missing-return diagnostic")
	}
}
