package program

import (
	"bytes"
	"testing"

	"github.com/vmihailenco/msgpack/v5"

	"swell/internal/ast"
	"swell/internal/source"
)

func TestBundleRoundTrip(t *testing.T) {
	sp := source.Span{}
	p := NewProgram(&Options{}, source.NewFileSet())
	p.GCImplemented = true
	file := p.Files.Add("main.swl", []byte("let x = 1;"))
	src := p.AddSource("main.swl", file, true)

	fn := &FunctionPrototype{
		ElementBase: ElementBase{SimpleName: "twice", Internal: "twice"},
		Params:      []ParamDecl{{Name: "v", Type: "i32"}},
		ReturnType:  "i32",
		Body: ast.NewBlock(sp, ast.NewReturn(sp,
			ast.NewBinary(sp, ast.OpMul, ast.NewIdent(sp, "v"), ast.NewIntLiteral(sp, 2)))),
	}
	src.AddDecl(fn)
	p.Register("twice", fn)

	cls := &ClassPrototype{
		ElementBase: ElementBase{SimpleName: "Pt", Internal: "Pt"},
		FieldDecls: []*Field{
			{ElementBase: ElementBase{SimpleName: "x"}, TypeName: "i32", ParamIndex: -1},
		},
	}
	src.AddDecl(cls)
	p.Register("Pt", cls)

	src.AddStmt(ast.NewExprStmt(sp, ast.NewCall(sp, ast.NewIdent(sp, "twice"), nil, ast.NewIntLiteral(sp, 3))))

	var buf bytes.Buffer
	if err := WriteBundle(&buf, p); err != nil {
		t.Fatalf("write: %v", err)
	}
	back, err := ReadBundle(&buf, &Options{})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !back.GCImplemented {
		t.Fatalf("gc flag lost")
	}
	if len(back.Sources) != 1 || len(back.Sources[0].Items) != 3 {
		t.Fatalf("source shape lost: %+v", back.Sources)
	}

	e, ok := back.Lookup("twice")
	if !ok {
		t.Fatalf("function lost")
	}
	proto := e.(*FunctionPrototype)
	if len(proto.Params) != 1 || proto.Params[0].Type != "i32" || proto.ReturnType != "i32" {
		t.Fatalf("signature lost: %+v", proto)
	}
	ret := proto.Body.Data.(ast.BlockData).Stmts[0]
	mul := ret.Data.(ast.ReturnData).Value
	if mul.Kind != ast.ExprBinary || mul.Data.(ast.BinaryData).Op != ast.OpMul {
		t.Fatalf("body tree lost: %+v", mul)
	}

	ce, ok := back.Lookup("Pt")
	if !ok {
		t.Fatalf("class lost")
	}
	if cp := ce.(*ClassPrototype); len(cp.FieldDecls) != 1 || cp.FieldDecls[0].TypeName != "i32" {
		t.Fatalf("fields lost")
	}
}

func TestBundleRejectsWrongSchema(t *testing.T) {
	var buf bytes.Buffer
	if err := msgpack.NewEncoder(&buf).Encode(&bundle{Schema: bundleSchemaVersion + 1}); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := ReadBundle(&buf, &Options{}); err == nil {
		t.Fatalf("stale schema must be rejected")
	}
}
