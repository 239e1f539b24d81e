package codegen

import (
	"strings"
	"testing"

	"swell/internal/ast"
	"swell/internal/diag"
	"swell/internal/ir"
	"swell/internal/program"
)

func TestFunctionExportAndAlias(t *testing.T) {
	p, src := newTestProgram(&program.Options{
		GlobalAliases: map[string]string{"hi": "wave"},
	})
	proto := fnProto("hi", nil, "void", ast.NewBlock(sp))
	proto.ElemFlags |= program.FlagExport
	declare(p, src, "hi", proto)
	mod, bag, _ := compileTest(t, p)
	requireNoErrors(t, bag)

	if _, ok := mod.ExportByName("wave"); !ok {
		t.Fatalf("alias must rename the export")
	}
	if _, ok := mod.ExportByName("hi"); ok {
		t.Fatalf("original name must not be exported when aliased")
	}
	if _, ok := mod.ExportByName(heapBaseName); !ok {
		t.Fatalf("HEAP_BASE must always be exported")
	}
}

func TestMutableGlobalExportNeedsFeature(t *testing.T) {
	build := func(features program.Feature) (*ir.Module, *diag.Bag) {
		p, src := newTestProgram(&program.Options{Features: features})
		g := &program.Global{
			ElementBase: program.ElementBase{
				SimpleName: "counter", Internal: "counter", ElemFlags: program.FlagExport,
			},
			TypeName: "i32",
			Init:     ast.NewIntLiteral(sp, 0),
		}
		declare(p, src, "counter", g)
		mod, bag, _ := compileTest(t, p)
		return mod, bag
	}

	_, bag := build(0)
	if !hasCode(bag, diag.SemaMutableGlobalExport) {
		t.Fatalf("exporting a mutable global without the feature must report")
	}

	mod, bag := build(program.FeatureMutableGlobal)
	requireNoErrors(t, bag)
	if _, ok := mod.ExportByName("counter"); !ok {
		t.Fatalf("feature-enabled mutable global must export")
	}
}

func TestInlinedConstantExportsAsImmutableGlobal(t *testing.T) {
	p, src := newTestProgram(nil)
	g := &program.Global{
		ElementBase: program.ElementBase{
			SimpleName: "LIMIT", Internal: "LIMIT",
			ElemFlags: program.FlagExport | program.FlagConst,
		},
		Init: ast.NewIntLiteral(sp, 64),
	}
	declare(p, src, "LIMIT", g)
	mod, bag, _ := compileTest(t, p)
	requireNoErrors(t, bag)

	e, ok := mod.ExportByName("LIMIT")
	if !ok {
		t.Fatalf("constant must still export")
	}
	ge, ok := mod.GlobalByName(e.Internal)
	if !ok || ge.Mutable || !ge.Init.IsConst() || ge.Init.I64 != 64 {
		t.Fatalf("constant export must be an immutable global holding 64")
	}
}

func TestClassExportSurface(t *testing.T) {
	p, src := newTestProgram(nil)
	declareAllocator(p, src)

	method := fnProto("mag", nil, "i32",
		ast.NewBlock(sp, ast.NewReturn(sp, ast.NewProperty(sp, ast.NewIdent(sp, "this"), "x"))))
	method.Internal = "Vec.mag"
	method.ElemFlags |= program.FlagInstance

	cls := &program.ClassPrototype{
		ElementBase: program.ElementBase{
			SimpleName: "Vec", Internal: "Vec", ElemFlags: program.FlagExport,
		},
		FieldDecls: []*program.Field{
			{ElementBase: program.ElementBase{SimpleName: "x"}, TypeName: "i32", ParamIndex: -1},
		},
		InstanceMembers: []program.Element{method},
	}
	method.ClassProto = cls
	declare(p, src, "Vec", cls)
	mod, bag, _ := compileTest(t, p)
	requireNoErrors(t, bag)

	if _, ok := mod.ExportByName("Vec#mag"); !ok {
		t.Fatalf("instance method must export under Class#method")
	}
	if _, ok := mod.ExportByName("get:Vec#x"); !ok {
		t.Fatalf("field must export a synthesised getter")
	}
	if _, ok := mod.ExportByName("set:Vec#x"); !ok {
		t.Fatalf("field must export a synthesised setter")
	}
	getter, _ := mod.FunctionByName("get:Vec#x")
	if getter == nil || getter.Body.Kind != ir.KindLoad {
		t.Fatalf("field getter must be a direct load")
	}
}

func TestMainWrapsStartBootstrap(t *testing.T) {
	p, src := newTestProgram(nil)
	main := fnProto("main", nil, "void", ast.NewBlock(sp))
	main.ElemFlags |= program.FlagMain
	declare(p, src, "main", main)
	mod, bag, _ := compileTest(t, p)
	requireNoErrors(t, bag)

	if mod.StartFunction != "" {
		t.Fatalf("a user main must suppress the module start")
	}
	if _, ok := mod.FunctionByName(startFunctionName); !ok {
		t.Fatalf("the start function must still exist for main to call")
	}
	if _, ok := mod.GlobalByName(startedGlobalName); !ok {
		t.Fatalf("~started global missing")
	}
	mf, _ := mod.FunctionByName("main")
	text := ir.NodeText(mf.Body)
	for _, want := range []string{"global.get $~started", "call $start", "global.set $~started"} {
		if !strings.Contains(text, want) {
			t.Fatalf("main preamble missing %q:\n%s", want, text)
		}
	}
}

func TestTopLevelStatementsBecomeModuleStart(t *testing.T) {
	p, src := newTestProgram(nil)
	g := &program.Global{
		ElementBase: program.ElementBase{SimpleName: "n", Internal: "n"},
		TypeName:    "i32",
	}
	declare(p, src, "n", g)
	src.AddStmt(ast.NewExprStmt(sp,
		ast.NewBinary(sp, ast.OpAssign, ast.NewIdent(sp, "n"), ast.NewIntLiteral(sp, 5))))
	mod, bag, _ := compileTest(t, p)
	requireNoErrors(t, bag)

	if mod.StartFunction != startFunctionName {
		t.Fatalf("top-level statements must install the module start")
	}
	sf, ok := mod.FunctionByName(startFunctionName)
	if !ok {
		t.Fatalf("start function missing")
	}
	if !strings.Contains(ir.NodeText(sf.Body), "global.set $n") {
		t.Fatalf("start body must run the top-level statement:\n%s", ir.NodeText(sf.Body))
	}
}
