package codegen

import (
	"strings"
	"testing"

	"swell/internal/ast"
	"swell/internal/diag"
	"swell/internal/ir"
	"swell/internal/program"
)

func TestSwitchLowersToBrIfChain(t *testing.T) {
	p, src := newTestProgram(nil)
	body := ast.NewBlock(sp,
		ast.NewSwitch(sp, ast.NewIdent(sp, "x"),
			ast.SwitchCase{Span: sp, Label: ast.NewIntLiteral(sp, 1),
				Stmts: []*ast.Stmt{ast.NewReturn(sp, ast.NewIntLiteral(sp, 10))}},
			ast.SwitchCase{Span: sp, Label: nil,
				Stmts: []*ast.Stmt{ast.NewReturn(sp, ast.NewIntLiteral(sp, 0))}},
		))
	declare(p, src, "pick", fnProto("pick", []program.ParamDecl{{Name: "x", Type: "i32"}}, "i32", body))
	mod, bag, _ := compileTest(t, p)
	requireNoErrors(t, bag)

	// All arms return and a default exists, so no missing-return error
	// fired; the structure is chained labelled blocks.
	node := firstStmt(t, mod, "pick")
	if node.Kind != ir.KindBlock || !strings.HasPrefix(node.Label, "break|") {
		t.Fatalf("outermost switch block must carry the break label, got %s", ir.NodeText(node))
	}
	text := ir.NodeText(node)
	for _, want := range []string{"br_if $case0|", "br $case1|", "local.set"} {
		if !strings.Contains(text, want) {
			t.Fatalf("switch dump missing %q:\n%s", want, text)
		}
	}
}

func TestBreakOutsideLoopReports(t *testing.T) {
	p, src := newTestProgram(nil)
	declare(p, src, "bad", fnProto("bad", nil, "void",
		ast.NewBlock(sp, ast.NewBreak(sp))))
	_, bag, _ := compileTest(t, p)
	if !hasCode(bag, diag.SemaBreakOutsideLoop) {
		t.Fatalf("expected a break-outside-loop diagnostic")
	}
}

func TestTryReportsUnsupported(t *testing.T) {
	p, src := newTestProgram(nil)
	try := &ast.Stmt{Kind: ast.StmtTry, Span: sp, Data: ast.TryData{Body: ast.NewBlock(sp)}}
	declare(p, src, "risky", fnProto("risky", nil, "void", ast.NewBlock(sp, try)))
	_, bag, _ := compileTest(t, p)
	if !hasCode(bag, diag.NotSupportedTry) {
		t.Fatalf("expected try-unsupported diagnostic")
	}
}

func TestLabelledBreakReportsUnsupported(t *testing.T) {
	p, src := newTestProgram(nil)
	labelled := &ast.Stmt{Kind: ast.StmtBreak, Span: sp, Data: ast.BreakData{Label: "outer"}}
	body := ast.NewBlock(sp,
		ast.NewWhile(sp, ast.NewIdent(sp, "x"), ast.NewBlock(sp, labelled)))
	declare(p, src, "lp", fnProto("lp", []program.ParamDecl{{Name: "x", Type: "i32"}}, "void", body))
	_, bag, _ := compileTest(t, p)
	if !hasCode(bag, diag.NotSupportedLabels) {
		t.Fatalf("expected labelled-break diagnostic")
	}
}

func TestConstantConditionElidesDeadArm(t *testing.T) {
	p, src := newTestProgram(nil)
	body := ast.NewBlock(sp,
		ast.NewIf(sp, ast.NewIdent(sp, "true"),
			ast.NewReturn(sp, ast.NewIntLiteral(sp, 1)),
			ast.NewReturn(sp, ast.NewIntLiteral(sp, 2))))
	declare(p, src, "alwaysTrue", fnProto("alwaysTrue", nil, "i32", body))
	mod, bag, _ := compileTest(t, p)
	requireNoErrors(t, bag)

	node := firstStmt(t, mod, "alwaysTrue")
	if node.Kind != ir.KindReturn || node.Value.I64 != 1 {
		t.Fatalf("constant-true condition must keep only the then arm, got %s", ir.NodeText(node))
	}
}

func TestVirtualLocalSubstitutesLiteral(t *testing.T) {
	p, src := newTestProgram(nil)
	body := ast.NewBlock(sp,
		ast.NewVariable(sp, ast.VarDeclarator{Span: sp, Name: "k", Const: true, Init: ast.NewIntLiteral(sp, 42)}),
		ast.NewReturn(sp, ast.NewIdent(sp, "k")))
	declare(p, src, "virt", fnProto("virt", nil, "i32", body))
	mod, bag, _ := compileTest(t, p)
	requireNoErrors(t, bag)

	f, _ := mod.FunctionByName("virt")
	if len(f.Locals) != 0 {
		t.Fatalf("a virtual local must not allocate an IR slot, got %d locals", len(f.Locals))
	}
	ret := firstStmt(t, mod, "virt")
	if !ret.Value.IsConst() || ret.Value.I64 != 42 {
		t.Fatalf("virtual local read must substitute the literal, got %s", ir.NodeText(ret.Value))
	}
}

func TestWhileLoopLabels(t *testing.T) {
	p, src := newTestProgram(nil)
	body := ast.NewBlock(sp,
		ast.NewWhile(sp, ast.NewIdent(sp, "x"),
			ast.NewBlock(sp, ast.NewExprStmt(sp,
				ast.NewBinary(sp, ast.OpSubAssign, ast.NewIdent(sp, "x"), ast.NewIntLiteral(sp, 1))))))
	declare(p, src, "spin", fnProto("spin", []program.ParamDecl{{Name: "x", Type: "i32"}}, "void", body))
	mod, bag, _ := compileTest(t, p)
	requireNoErrors(t, bag)

	node := firstStmt(t, mod, "spin")
	text := ir.NodeText(node)
	for _, want := range []string{"block $break|", "loop $continue|", "br $continue|"} {
		if !strings.Contains(text, want) {
			t.Fatalf("while dump missing %q:\n%s", want, text)
		}
	}
}

func TestThrowLowersToAbort(t *testing.T) {
	p, src := newTestProgram(nil)
	abort := fnProto("abort", []program.ParamDecl{{Name: "message", Type: "usize"}}, "void", nil)
	abort.ElemFlags |= program.FlagAmbient
	declare(p, src, "abort", abort)
	declare(p, src, "boom", fnProto("boom", nil, "void",
		ast.NewBlock(sp, ast.NewThrow(sp, ast.NewStringLiteral(sp, "bad")))))
	mod, bag, _ := compileTest(t, p)
	requireNoErrors(t, bag)

	node := firstStmt(t, mod, "boom")
	text := ir.NodeText(node)
	if !strings.Contains(text, "call $abort") || !strings.Contains(text, "(unreachable)") {
		t.Fatalf("throw must call abort then trap:\n%s", text)
	}
	if _, ok := mod.ImportByName("abort"); !ok {
		t.Fatalf("ambient abort must become an import")
	}
}

func hasCode(bag *diag.Bag, code diag.Code) bool {
	for _, d := range bag.Items() {
		if d.Code == code {
			return true
		}
	}
	return false
}
