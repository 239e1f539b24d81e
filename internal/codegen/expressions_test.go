package codegen

import (
	"strings"
	"testing"

	"swell/internal/ast"
	"swell/internal/diag"
	"swell/internal/ir"
	"swell/internal/program"
	"swell/internal/types"
)

func TestShortCircuitAndReusesClonableLHS(t *testing.T) {
	p, src := newTestProgram(nil)
	body := ast.NewBlock(sp, ast.NewReturn(sp,
		ast.NewBinary(sp, ast.OpLogicalAnd, ast.NewIdent(sp, "a"), ast.NewIdent(sp, "b"))))
	declare(p, src, "and", fnProto("and",
		[]program.ParamDecl{{Name: "a", Type: "i32"}, {Name: "b", Type: "i32"}}, "i32", body))
	mod, bag, _ := compileTest(t, p)
	requireNoErrors(t, bag)

	ret := firstStmt(t, mod, "and")
	sel := ret.Value
	if sel.Kind != ir.KindIf {
		t.Fatalf("&& must lower to a value if, got %s", ir.NodeText(sel))
	}
	// a is clonable: then-arm is b, else-arm the cloned a.
	if sel.IfTrue.Kind != ir.KindGetLocal || sel.IfTrue.Index != 1 {
		t.Fatalf("then arm must be the rhs, got %s", ir.NodeText(sel))
	}
	if sel.IfFalse.Kind != ir.KindGetLocal || sel.IfFalse.Index != 0 {
		t.Fatalf("else arm must reuse the lhs, got %s", ir.NodeText(sel))
	}
}

func TestShortCircuitOrTeesEffectfulLHS(t *testing.T) {
	p, src := newTestProgram(nil)
	declare(p, src, "effect", fnProto("effect", nil, "i32",
		ast.NewBlock(sp, ast.NewReturn(sp, ast.NewIntLiteral(sp, 1)))))
	body := ast.NewBlock(sp, ast.NewReturn(sp,
		ast.NewBinary(sp, ast.OpLogicalOr,
			ast.NewCall(sp, ast.NewIdent(sp, "effect"), nil),
			ast.NewIdent(sp, "b"))))
	declare(p, src, "or", fnProto("or", []program.ParamDecl{{Name: "b", Type: "i32"}}, "i32", body))
	mod, bag, _ := compileTest(t, p)
	requireNoErrors(t, bag)

	ret := firstStmt(t, mod, "or")
	sel := ret.Value
	if sel.Kind != ir.KindIf {
		t.Fatalf("|| must lower to a value if, got %s", ir.NodeText(sel))
	}
	if sel.Condition.Kind != ir.KindSetLocal || sel.Condition.Type == types.NativeNone {
		t.Fatalf("effectful lhs must be teed, got %s", ir.NodeText(sel.Condition))
	}
}

func TestInlineCallExpandsBody(t *testing.T) {
	p, src := newTestProgram(nil)
	add1 := fnProto("add1", []program.ParamDecl{{Name: "x", Type: "i32"}}, "i32", nil)
	add1.BodyExpr = ast.NewBinary(sp, ast.OpAdd, ast.NewIdent(sp, "x"), ast.NewIntLiteral(sp, 1))
	add1.Decor |= program.DecoratorInline
	declare(p, src, "add1", add1)

	body := ast.NewBlock(sp, ast.NewReturn(sp,
		ast.NewCall(sp, ast.NewIdent(sp, "add1"), nil, ast.NewIntLiteral(sp, 5))))
	declare(p, src, "use", fnProto("use", nil, "i32", body))
	mod, bag, _ := compileTest(t, p)
	requireNoErrors(t, bag)

	ret := firstStmt(t, mod, "use")
	inlined := ret.Value
	if inlined.Kind != ir.KindBlock || !strings.Contains(inlined.Label, "add1|inlined.") {
		t.Fatalf("inline call must expand to a labelled block, got %s", ir.NodeText(inlined))
	}
	text := ir.NodeText(inlined)
	if strings.Contains(text, "call $add1") {
		t.Fatalf("inlined call must not emit a call:\n%s", text)
	}
	if !strings.Contains(text, "i32.add") {
		t.Fatalf("inlined body missing:\n%s", text)
	}
}

func TestInlineAliasesGetLocalArguments(t *testing.T) {
	p, src := newTestProgram(nil)
	twice := fnProto("twice", []program.ParamDecl{{Name: "v", Type: "i32"}}, "i32", nil)
	twice.BodyExpr = ast.NewBinary(sp, ast.OpAdd, ast.NewIdent(sp, "v"), ast.NewIdent(sp, "v"))
	twice.Decor |= program.DecoratorInline
	declare(p, src, "twice", twice)

	body := ast.NewBlock(sp, ast.NewReturn(sp,
		ast.NewCall(sp, ast.NewIdent(sp, "twice"), nil, ast.NewIdent(sp, "n"))))
	declare(p, src, "caller", fnProto("caller", []program.ParamDecl{{Name: "n", Type: "i32"}}, "i32", body))
	mod, bag, _ := compileTest(t, p)
	requireNoErrors(t, bag)

	f, _ := mod.FunctionByName("caller")
	// A plain get-local argument aliases: no spill local is allocated.
	if len(f.Locals) != 0 {
		t.Fatalf("get-local argument must alias, got %d extra locals", len(f.Locals))
	}
}

func TestGenericInference(t *testing.T) {
	p, src := newTestProgram(nil)
	identity := fnProto("identity", []program.ParamDecl{{Name: "v", Type: "T"}}, "T",
		ast.NewBlock(sp, ast.NewReturn(sp, ast.NewIdent(sp, "v"))))
	identity.TypeParams = []string{"T"}
	identity.ElemFlags |= program.FlagGeneric
	declare(p, src, "identity", identity)

	body := ast.NewBlock(sp, ast.NewReturn(sp,
		ast.NewCall(sp, ast.NewIdent(sp, "identity"), nil, ast.NewIntLiteral(sp, 42))))
	declare(p, src, "use", fnProto("use", nil, "i32", body))
	mod, bag, _ := compileTest(t, p)
	requireNoErrors(t, bag)

	ret := firstStmt(t, mod, "use")
	if ret.Value.Kind != ir.KindCall || ret.Value.Name != "identity<i32>" {
		t.Fatalf("inferred instance call expected, got %s", ir.NodeText(ret.Value))
	}
	if _, ok := mod.FunctionByName("identity<i32>"); !ok {
		t.Fatalf("identity<i32> instance not compiled")
	}
}

func TestGenericExplicitTypeArguments(t *testing.T) {
	p, src := newTestProgram(nil)
	identity := fnProto("identity", []program.ParamDecl{{Name: "v", Type: "T"}}, "T",
		ast.NewBlock(sp, ast.NewReturn(sp, ast.NewIdent(sp, "v"))))
	identity.TypeParams = []string{"T"}
	identity.ElemFlags |= program.FlagGeneric
	declare(p, src, "identity", identity)

	body := ast.NewBlock(sp, ast.NewReturn(sp,
		ast.NewCall(sp, ast.NewIdent(sp, "identity"), []string{"i64"}, ast.NewIntLiteral(sp, 1))))
	declare(p, src, "use64", fnProto("use64", nil, "i64", body))
	mod, bag, _ := compileTest(t, p)
	requireNoErrors(t, bag)

	ret := firstStmt(t, mod, "use64")
	if ret.Value.Name != "identity<i64>" {
		t.Fatalf("explicit instance call expected, got %s", ir.NodeText(ret.Value))
	}
}

func declareAllocator(p *program.Program, src *program.Source) {
	alloc := fnProto("allocate", []program.ParamDecl{{Name: "size", Type: "usize"}}, "usize", nil)
	alloc.ElemFlags |= program.FlagAmbient
	declare(p, src, "allocate", alloc)
}

func TestNewWithoutConstructorInitializesFields(t *testing.T) {
	p, src := newTestProgram(nil)
	declareAllocator(p, src)
	cls := &program.ClassPrototype{
		ElementBase: program.ElementBase{SimpleName: "Point", Internal: "Point"},
		FieldDecls: []*program.Field{
			{ElementBase: program.ElementBase{SimpleName: "x"}, TypeName: "i32", ParamIndex: -1},
			{ElementBase: program.ElementBase{SimpleName: "y"}, TypeName: "i32", ParamIndex: -1,
				Init: ast.NewIntLiteral(sp, 7)},
		},
	}
	declare(p, src, "Point", cls)
	body := ast.NewBlock(sp, ast.NewReturn(sp, ast.NewNew(sp, "Point")))
	declare(p, src, "mk", fnProto("mk", nil, "Point", body))
	mod, bag, _ := compileTest(t, p)
	requireNoErrors(t, bag)

	ret := firstStmt(t, mod, "mk")
	text := ir.NodeText(ret.Value)
	if !strings.Contains(text, "call $allocate") {
		t.Fatalf("allocation must call the runtime allocate:\n%s", text)
	}
	// Field y stores its initializer at its layout offset.
	if !strings.Contains(text, "i32.store offset=4") {
		t.Fatalf("field y must store at offset 4:\n%s", text)
	}
	if !strings.Contains(text, "i32.store\n") && !strings.Contains(text, "i32.store ") {
		t.Fatalf("field x must be zeroed:\n%s", text)
	}
}

func TestFieldAccessAndAssignment(t *testing.T) {
	p, src := newTestProgram(nil)
	declareAllocator(p, src)
	cls := &program.ClassPrototype{
		ElementBase: program.ElementBase{SimpleName: "Box", Internal: "Box"},
		FieldDecls: []*program.Field{
			{ElementBase: program.ElementBase{SimpleName: "n"}, TypeName: "i64", ParamIndex: -1},
		},
	}
	declare(p, src, "Box", cls)

	get := ast.NewBlock(sp, ast.NewReturn(sp,
		ast.NewProperty(sp, ast.NewIdent(sp, "b"), "n")))
	declare(p, src, "getn", fnProto("getn", []program.ParamDecl{{Name: "b", Type: "Box"}}, "i64", get))

	set := ast.NewBlock(sp, ast.NewExprStmt(sp,
		ast.NewBinary(sp, ast.OpAssign,
			ast.NewProperty(sp, ast.NewIdent(sp, "b"), "n"),
			ast.NewIntLiteral(sp, 9))))
	declare(p, src, "setn", fnProto("setn", []program.ParamDecl{{Name: "b", Type: "Box"}}, "void", set))

	mod, bag, _ := compileTest(t, p)
	requireNoErrors(t, bag)

	load := firstStmt(t, mod, "getn").Value
	if load.Kind != ir.KindLoad || load.Bytes != 8 {
		t.Fatalf("field read must load 8 bytes, got %s", ir.NodeText(load))
	}
	store := firstStmt(t, mod, "setn")
	if store.Kind != ir.KindStore || store.Bytes != 8 || !store.Value.IsConst() {
		t.Fatalf("field write must store the value, got %s", ir.NodeText(store))
	}
}

func TestReadonlyFieldAssignmentReports(t *testing.T) {
	p, src := newTestProgram(nil)
	cls := &program.ClassPrototype{
		ElementBase: program.ElementBase{SimpleName: "RO", Internal: "RO"},
		FieldDecls: []*program.Field{
			{ElementBase: program.ElementBase{SimpleName: "v", ElemFlags: program.FlagReadonly},
				TypeName: "i32", ParamIndex: -1},
		},
	}
	declare(p, src, "RO", cls)
	body := ast.NewBlock(sp, ast.NewExprStmt(sp,
		ast.NewBinary(sp, ast.OpAssign,
			ast.NewProperty(sp, ast.NewIdent(sp, "r"), "v"),
			ast.NewIntLiteral(sp, 1))))
	declare(p, src, "mut", fnProto("mut", []program.ParamDecl{{Name: "r", Type: "RO"}}, "void", body))
	_, bag, _ := compileTest(t, p)
	if !hasCode(bag, diag.SemaReadonlyAssignment) {
		t.Fatalf("expected readonly diagnostic")
	}
}

func TestReferenceEqualityWithoutOverload(t *testing.T) {
	p, src := newTestProgram(nil)
	cls := &program.ClassPrototype{
		ElementBase: program.ElementBase{SimpleName: "Ref", Internal: "Ref"},
		FieldDecls: []*program.Field{
			{ElementBase: program.ElementBase{SimpleName: "v"}, TypeName: "i32", ParamIndex: -1},
		},
	}
	declare(p, src, "Ref", cls)
	body := ast.NewBlock(sp, ast.NewReturn(sp,
		ast.NewBinary(sp, ast.OpEq, ast.NewIdent(sp, "a"), ast.NewIdent(sp, "b"))))
	declare(p, src, "same", fnProto("same",
		[]program.ParamDecl{{Name: "a", Type: "Ref"}, {Name: "b", Type: "Ref"}}, "bool", body))
	mod, bag, _ := compileTest(t, p)
	requireNoErrors(t, bag)

	ret := firstStmt(t, mod, "same")
	if ret.Value.Kind != ir.KindBinary || ret.Value.Op != ir.OpEqI32 {
		t.Fatalf("reference == must fall back to pointer equality, got %s", ir.NodeText(ret.Value))
	}
}

func TestArithmeticOnReferenceWithoutOverloadReports(t *testing.T) {
	p, src := newTestProgram(nil)
	cls := &program.ClassPrototype{
		ElementBase: program.ElementBase{SimpleName: "N", Internal: "N"},
		FieldDecls: []*program.Field{
			{ElementBase: program.ElementBase{SimpleName: "v"}, TypeName: "i32", ParamIndex: -1},
		},
	}
	declare(p, src, "N", cls)
	body := ast.NewBlock(sp, ast.NewReturn(sp,
		ast.NewBinary(sp, ast.OpMul, ast.NewIdent(sp, "a"), ast.NewIdent(sp, "b"))))
	declare(p, src, "bad", fnProto("bad",
		[]program.ParamDecl{{Name: "a", Type: "N"}, {Name: "b", Type: "N"}}, "N", body))
	_, bag, _ := compileTest(t, p)
	if !hasCode(bag, diag.TypeOperatorNotApplicable) {
		t.Fatalf("expected operator-not-applicable diagnostic")
	}
}

func TestUnsignedShiftEmitsShrUOnce(t *testing.T) {
	p, src := newTestProgram(nil)
	mk := func(name, typ string) {
		body := ast.NewBlock(sp, ast.NewReturn(sp,
			ast.NewBinary(sp, ast.OpShrU, ast.NewIdent(sp, "x"), ast.NewIntLiteral(sp, 1))))
		declare(p, src, name, fnProto(name, []program.ParamDecl{{Name: "x", Type: typ}}, typ, body))
	}
	mk("su32", "i32")
	mk("sbool", "bool")
	mod, bag, _ := compileTest(t, p)
	requireNoErrors(t, bag)

	for _, name := range []string{"su32", "sbool"} {
		text := ir.NodeText(firstStmt(t, mod, name))
		if strings.Count(text, "shr_u") != 1 {
			t.Fatalf("%s: >>> must emit exactly one unsigned shift:\n%s", name, text)
		}
	}
}

func TestTernaryYieldsCommonType(t *testing.T) {
	p, src := newTestProgram(nil)
	body := ast.NewBlock(sp, ast.NewReturn(sp,
		ast.NewTernary(sp, ast.NewIdent(sp, "c"),
			ast.NewIntLiteral(sp, 1), ast.NewIntLiteral(sp, 2))))
	declare(p, src, "sel", fnProto("sel", []program.ParamDecl{{Name: "c", Type: "bool"}}, "i32", body))
	mod, bag, _ := compileTest(t, p)
	requireNoErrors(t, bag)

	ret := firstStmt(t, mod, "sel")
	if ret.Value.Kind != ir.KindIf || ret.Value.Type != types.NativeI32 {
		t.Fatalf("ternary must be a typed if, got %s", ir.NodeText(ret.Value))
	}
}

func TestFunctionValueYieldsTableIndex(t *testing.T) {
	p, src := newTestProgram(nil)
	declare(p, src, "target", fnProto("target", nil, "void", ast.NewBlock(sp)))
	body := ast.NewBlock(sp, ast.NewReturn(sp, ast.NewIdent(sp, "target")))
	declare(p, src, "takeRef", fnProto("takeRef", nil, "u32", body))
	mod, bag, c := compileTest(t, p)
	requireNoErrors(t, bag)

	ret := firstStmt(t, mod, "takeRef")
	if !ret.Value.IsConst() {
		t.Fatalf("a function value must be its table index, got %s", ir.NodeText(ret.Value))
	}
	if len(c.functionTable) != 1 || len(mod.Table) != 1 {
		t.Fatalf("the referenced function must be indexed")
	}
}
