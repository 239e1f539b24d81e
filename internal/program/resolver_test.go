package program

import (
	"testing"

	"swell/internal/ast"
	"swell/internal/source"
	"swell/internal/types"
)

func testProgramWith(opts *Options) *Program {
	return NewProgram(opts, source.NewFileSet())
}

func TestResolvePrimitiveTypeNames(t *testing.T) {
	p := testProgramWith(nil)
	cases := map[string]types.Type{
		"i8":    types.I8,
		"u16":   types.U16,
		"i32":   types.I32,
		"u64":   types.U64,
		"f32":   types.F32,
		"f64":   types.F64,
		"bool":  types.Bool,
		"void":  types.Void,
		"usize": types.USize(false),
		"isize": types.ISize(false),
	}
	for name, want := range cases {
		got, ok := p.ResolveTypeName(name, nil)
		if !ok || got != want {
			t.Fatalf("%s resolved to %v/%v", name, got, ok)
		}
	}
}

func TestResolveTypeNameUsesSubstitution(t *testing.T) {
	p := testProgramWith(nil)
	ctx := map[string]types.Type{"T": types.I64}
	got, ok := p.ResolveTypeName("T", ctx)
	if !ok || got != types.I64 {
		t.Fatalf("T resolved to %v/%v", got, ok)
	}
}

func TestResolveClassAssignsLayout(t *testing.T) {
	p := testProgramWith(nil)
	proto := &ClassPrototype{
		ElementBase: ElementBase{SimpleName: "Pair", Internal: "Pair"},
		FieldDecls: []*Field{
			{ElementBase: ElementBase{SimpleName: "a"}, TypeName: "i8", ParamIndex: -1},
			{ElementBase: ElementBase{SimpleName: "b"}, TypeName: "i32", ParamIndex: -1},
			{ElementBase: ElementBase{SimpleName: "c"}, TypeName: "i16", ParamIndex: -1},
		},
	}
	p.Register("Pair", proto)
	cls, err := p.ResolveClass(proto, nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	offsets := []uint32{0, 4, 8}
	for i, f := range cls.Fields {
		if f.Offset != offsets[i] {
			t.Fatalf("field %s at offset %d, want %d", f.SimpleName, f.Offset, offsets[i])
		}
	}
	if cls.InstanceSize != 12 {
		t.Fatalf("instance size %d, want 12", cls.InstanceSize)
	}
	again, err := p.ResolveClass(proto, nil)
	if err != nil || again != cls {
		t.Fatalf("class instances must be memoised")
	}
	if got, ok := p.ResolveTypeName("Pair", nil); !ok || got != cls.Type {
		t.Fatalf("class name must resolve to its reference type")
	}
}

func TestResolveClassInheritanceExtendsLayout(t *testing.T) {
	p := testProgramWith(nil)
	base := &ClassPrototype{
		ElementBase: ElementBase{SimpleName: "Base", Internal: "Base"},
		FieldDecls: []*Field{
			{ElementBase: ElementBase{SimpleName: "head"}, TypeName: "i32", ParamIndex: -1},
		},
	}
	p.Register("Base", base)
	derived := &ClassPrototype{
		ElementBase: ElementBase{SimpleName: "Derived", Internal: "Derived"},
		ExtendsName: "Base",
		FieldDecls: []*Field{
			{ElementBase: ElementBase{SimpleName: "tail"}, TypeName: "i32", ParamIndex: -1},
		},
	}
	p.Register("Derived", derived)
	cls, err := p.ResolveClass(derived, nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cls.Base == nil || cls.Fields[0].Offset != 4 {
		t.Fatalf("derived fields must start after the base layout")
	}
	if !p.Extends(cls.ID, cls.Base.ID) {
		t.Fatalf("Extends must report the subclass relation")
	}
	if p.Extends(cls.Base.ID, cls.ID) {
		t.Fatalf("Extends must not be symmetric")
	}
}

func TestResolveFunctionSignature(t *testing.T) {
	p := testProgramWith(nil)
	proto := &FunctionPrototype{
		ElementBase: ElementBase{SimpleName: "clamp", Internal: "clamp"},
		Params: []ParamDecl{
			{Name: "v", Type: "i32"},
			{Name: "max", Type: "i32", Init: ast.NewIntLiteral(source.Span{}, 255)},
		},
		ReturnType: "i32",
	}
	f, err := p.ResolveFunction(proto, nil, nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if f.Signature.RequiredParameters != 1 {
		t.Fatalf("required = %d, want 1", f.Signature.RequiredParameters)
	}
	if len(f.Locals) != 2 || f.Locals[0].SimpleName != "v" {
		t.Fatalf("parameter locals wrong: %+v", f.Locals)
	}
	again, err := p.ResolveFunction(proto, nil, nil)
	if err != nil || again != f {
		t.Fatalf("function instances must be memoised")
	}
}

func TestResolveGenericFunctionInstances(t *testing.T) {
	p := testProgramWith(nil)
	proto := &FunctionPrototype{
		ElementBase: ElementBase{SimpleName: "id", Internal: "id", ElemFlags: FlagGeneric},
		Params:      []ParamDecl{{Name: "v", Type: "T"}},
		ReturnType:  "T",
		TypeParams:  []string{"T"},
	}
	f32i, err := p.ResolveFunction(proto, []types.Type{types.I32}, nil)
	if err != nil {
		t.Fatalf("resolve i32: %v", err)
	}
	f64i, err := p.ResolveFunction(proto, []types.Type{types.F64}, nil)
	if err != nil {
		t.Fatalf("resolve f64: %v", err)
	}
	if f32i == f64i {
		t.Fatalf("distinct type arguments must yield distinct instances")
	}
	if f32i.Internal != "id<i32>" || f64i.Internal != "id<f64>" {
		t.Fatalf("instance names %q / %q", f32i.Internal, f64i.Internal)
	}
	if f32i.Signature.ReturnType != types.I32 {
		t.Fatalf("substituted return type %v", f32i.Signature.ReturnType)
	}
}

func TestSignatureStringDedupKey(t *testing.T) {
	a := &Signature{ParameterTypes: []types.Type{types.I32, types.F64}, ReturnType: types.I32}
	b := &Signature{ParameterTypes: []types.Type{types.I32, types.F64}, ReturnType: types.I32}
	if a.String() != b.String() {
		t.Fatalf("identical signatures must share a key")
	}
	this := types.Ref(1, false)
	c := &Signature{ParameterTypes: []types.Type{types.I32, types.F64}, ReturnType: types.I32, This: &this}
	if a.String() == c.String() {
		t.Fatalf("receiver must be part of the key")
	}
}

func TestNullableSuffixParsing(t *testing.T) {
	p := testProgramWith(nil)
	proto := &ClassPrototype{ElementBase: ElementBase{SimpleName: "Obj", Internal: "Obj"}}
	p.Register("Obj", proto)
	got, ok := p.ResolveTypeName("Obj | null", nil)
	if !ok || !got.IsNullableReference() {
		t.Fatalf("nullable suffix parse failed: %v/%v", got, ok)
	}
	if _, ok := p.ResolveTypeName("i32 | null", nil); ok {
		t.Fatalf("value types must not be nullable")
	}
}
