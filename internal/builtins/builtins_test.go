package builtins_test

import (
	"strings"
	"testing"

	"swell/internal/ast"
	"swell/internal/builtins"
	"swell/internal/codegen"
	"swell/internal/diag"
	"swell/internal/ir"
	"swell/internal/program"
	"swell/internal/source"
)

var sp = source.Span{}

func builtinProto(name string, params []program.ParamDecl, ret string, typeParams ...string) *program.FunctionPrototype {
	p := &program.FunctionPrototype{
		ElementBase: program.ElementBase{
			SimpleName: name, Internal: name,
			ElemFlags: program.FlagAmbient,
			Decor:     program.DecoratorBuiltin,
		},
		Params:     params,
		ReturnType: ret,
		TypeParams: typeParams,
	}
	return p
}

func compileWith(t *testing.T, decls func(p *program.Program, src *program.Source), opts *program.Options) (*ir.Module, *diag.Bag) {
	t.Helper()
	if opts == nil {
		opts = &program.Options{}
	}
	opts.NoTreeShaking = true
	p := program.NewProgram(opts, source.NewFileSet())
	file := p.Files.Add("main.swl", nil)
	src := p.AddSource("main.swl", file, true)
	decls(p, src)
	bag := diag.NewBag(100)
	c := codegen.New(p, diag.BagReporter{Bag: bag})
	c.SetBuiltins(builtins.Compile)
	mod, err := c.Compile()
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	return mod, bag
}

func declareFn(p *program.Program, src *program.Source, proto *program.FunctionPrototype) {
	src.AddDecl(proto)
	p.Register(proto.SimpleName, proto)
}

func bodyText(t *testing.T, mod *ir.Module, name string) string {
	t.Helper()
	f, ok := mod.FunctionByName(name)
	if !ok {
		t.Fatalf("function %s missing", name)
	}
	return ir.NodeText(f.Body)
}

func TestLoadStoreBuiltins(t *testing.T) {
	mod, bag := compileWith(t, func(p *program.Program, src *program.Source) {
		declareFn(p, src, builtinProto("load", []program.ParamDecl{{Name: "ptr", Type: "usize"}}, "T", "T"))
		declareFn(p, src, builtinProto("store", []program.ParamDecl{
			{Name: "ptr", Type: "usize"}, {Name: "value", Type: "T"},
		}, "void", "T"))

		user := &program.FunctionPrototype{
			ElementBase: program.ElementBase{SimpleName: "peekPoke", Internal: "peekPoke"},
			Params:      []program.ParamDecl{{Name: "p", Type: "usize"}},
			ReturnType:  "i32",
			Body: ast.NewBlock(sp,
				ast.NewExprStmt(sp, ast.NewCall(sp, ast.NewIdent(sp, "store"), []string{"i32"},
					ast.NewIdent(sp, "p"), ast.NewIntLiteral(sp, 42))),
				ast.NewReturn(sp, ast.NewCall(sp, ast.NewIdent(sp, "load"), []string{"i32"},
					ast.NewIdent(sp, "p")))),
		}
		declareFn(p, src, user)
	}, nil)
	if bag.HasErrors() {
		t.Fatalf("errors: %+v", bag.Items())
	}
	text := bodyText(t, mod, "peekPoke")
	if !strings.Contains(text, "i32.store") || !strings.Contains(text, "i32.load") {
		t.Fatalf("load/store intrinsics not lowered:\n%s", text)
	}
	if strings.Contains(text, "call $load") || strings.Contains(text, "call $store") {
		t.Fatalf("intrinsics must not compile to calls:\n%s", text)
	}
}

func TestAssertLowersToAbortCheck(t *testing.T) {
	decls := func(p *program.Program, src *program.Source) {
		abort := &program.FunctionPrototype{
			ElementBase: program.ElementBase{
				SimpleName: "abort", Internal: "abort", ElemFlags: program.FlagAmbient,
			},
			Params:     []program.ParamDecl{{Name: "message", Type: "usize"}},
			ReturnType: "void",
		}
		declareFn(p, src, abort)
		declareFn(p, src, builtinProto("assert", []program.ParamDecl{{Name: "cond", Type: "bool"}}, "void"))

		user := &program.FunctionPrototype{
			ElementBase: program.ElementBase{SimpleName: "checked", Internal: "checked"},
			Params:      []program.ParamDecl{{Name: "x", Type: "i32"}},
			ReturnType:  "void",
			Body: ast.NewBlock(sp, ast.NewExprStmt(sp,
				ast.NewCall(sp, ast.NewIdent(sp, "assert"), nil,
					ast.NewBinary(sp, ast.OpGt, ast.NewIdent(sp, "x"), ast.NewIntLiteral(sp, 0))))),
		}
		declareFn(p, src, user)
	}

	mod, bag := compileWith(t, decls, nil)
	if bag.HasErrors() {
		t.Fatalf("errors: %+v", bag.Items())
	}
	text := bodyText(t, mod, "checked")
	if !strings.Contains(text, "call $abort") || !strings.Contains(text, "(unreachable)") {
		t.Fatalf("assert must guard with abort:\n%s", text)
	}

	mod, bag = compileWith(t, decls, &program.Options{NoAssert: true})
	if bag.HasErrors() {
		t.Fatalf("errors: %+v", bag.Items())
	}
	text = bodyText(t, mod, "checked")
	if strings.Contains(text, "call $abort") {
		t.Fatalf("noAssert must elide the check:\n%s", text)
	}
}

func TestSizeofYieldsConstant(t *testing.T) {
	mod, bag := compileWith(t, func(p *program.Program, src *program.Source) {
		declareFn(p, src, builtinProto("sizeof", nil, "usize", "T"))
		user := &program.FunctionPrototype{
			ElementBase: program.ElementBase{SimpleName: "width", Internal: "width"},
			ReturnType:  "usize",
			Body: ast.NewBlock(sp, ast.NewReturn(sp,
				ast.NewCall(sp, ast.NewIdent(sp, "sizeof"), []string{"i64"}))),
		}
		declareFn(p, src, user)
	}, nil)
	if bag.HasErrors() {
		t.Fatalf("errors: %+v", bag.Items())
	}
	text := bodyText(t, mod, "width")
	if !strings.Contains(text, "i32.const 8") {
		t.Fatalf("sizeof<i64> must fold to 8:\n%s", text)
	}
}

func TestUnknownBuiltinReportsUnsupported(t *testing.T) {
	_, bag := compileWith(t, func(p *program.Program, src *program.Source) {
		declareFn(p, src, builtinProto("mystery", nil, "void"))
		user := &program.FunctionPrototype{
			ElementBase: program.ElementBase{SimpleName: "user", Internal: "user"},
			ReturnType:  "void",
			Body: ast.NewBlock(sp, ast.NewExprStmt(sp,
				ast.NewCall(sp, ast.NewIdent(sp, "mystery"), nil))),
		}
		declareFn(p, src, user)
	}, nil)
	found := false
	for _, d := range bag.Items() {
		if d.Code == diag.NotSupported {
			found = true
		}
	}
	if !found {
		t.Fatalf("unknown builtin must report operation-not-supported")
	}
}
