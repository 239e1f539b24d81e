package program

import (
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"swell/internal/ast"
	"swell/internal/source"
)

// The bundle format is the wire boundary between the frontend and this
// backend: a resolved program serialized as msgpack. Expression and
// statement trees flatten into tagged records; element payloads mirror
// the in-memory model minus computed state (layouts, instances, flags
// the backend derives itself).

// bundleSchemaVersion invalidates stale bundles when the format changes.
const bundleSchemaVersion uint16 = 2

type bundleSpan struct {
	File  uint32
	Start uint32
	End   uint32
}

func spanOut(s source.Span) bundleSpan {
	return bundleSpan{File: uint32(s.File), Start: s.Start, End: s.End}
}

func spanIn(s bundleSpan) source.Span {
	return source.Span{File: source.FileID(s.File), Start: s.Start, End: s.End}
}

type bundleExpr struct {
	Kind  uint8
	Span  bundleSpan
	Op    uint8
	Name  string
	Str   string
	Int   uint64
	Float float64
	Kids  []*bundleExpr
	Names []string
}

type bundleStmt struct {
	Kind  uint8
	Span  bundleSpan
	Exprs []*bundleExpr
	Stmts []*bundleStmt
	Decls []bundleVarDecl
	Cases []bundleCase
	Label string
}

type bundleVarDecl struct {
	Span  bundleSpan
	Name  string
	Type  string
	Init  *bundleExpr
	Const bool
}

type bundleCase struct {
	Span    bundleSpan
	Label   *bundleExpr
	HasBody bool
	Stmts   []*bundleStmt
}

type bundleParam struct {
	Name string
	Type string
	Init *bundleExpr
}

type bundleFunction struct {
	Name           string
	Span           bundleSpan
	Flags          uint32
	Decorators     uint8
	Params         []bundleParam
	ReturnType     string
	TypeParams     []string
	Body           *bundleStmt
	BodyExpr       *bundleExpr
	Operator       uint8
	ExternalModule string
	ExternalName   string
}

type bundleField struct {
	Name       string
	Span       bundleSpan
	Flags      uint32
	Type       string
	Init       *bundleExpr
	ParamIndex int32
}

type bundleProperty struct {
	Name   string
	Flags  uint32
	Getter *bundleFunction
	Setter *bundleFunction
}

type bundleClass struct {
	Name            string
	Span            bundleSpan
	Flags           uint32
	Decorators      uint8
	TypeParams      []string
	Extends         string
	Fields          []bundleField
	Ctor            *bundleFunction
	StaticMembers   []bundleMember
	InstanceMembers []bundleMember
}

type bundleGlobal struct {
	Name  string
	Span  bundleSpan
	Flags uint32
	Type  string
	Init  *bundleExpr
}

type bundleEnumValue struct {
	Name string
	Span bundleSpan
	Init *bundleExpr
}

type bundleEnum struct {
	Name   string
	Span   bundleSpan
	Flags  uint32
	Values []bundleEnumValue
}

type bundleNamespace struct {
	Name    string
	Span    bundleSpan
	Flags   uint32
	Members []bundleMember
}

// bundleMember is a tagged union of declaration kinds.
type bundleMember struct {
	Kind      uint8 // mirrors ElementKind
	Global    *bundleGlobal
	Enum      *bundleEnum
	Function  *bundleFunction
	Class     *bundleClass
	Namespace *bundleNamespace
	Property  *bundleProperty
}

type bundleItem struct {
	Kind       uint8
	Span       bundleSpan
	Decl       *bundleMember
	Stmt       *bundleStmt
	ImportPath string
}

type bundleSource struct {
	Path    string
	Entry   bool
	Content []byte
	Items   []bundleItem
}

type bundle struct {
	Schema        uint16
	GCImplemented bool
	Sources       []bundleSource
}

// WriteBundle serializes a program for the backend CLI. Options are not
// part of the bundle; they come from the build configuration.
func WriteBundle(w io.Writer, p *Program) error {
	b := &bundle{Schema: bundleSchemaVersion, GCImplemented: p.GCImplemented}
	for _, src := range p.Sources {
		bs := bundleSource{Path: src.Path, Entry: src.Entry}
		if f := p.Files.Get(src.File); f != nil {
			bs.Content = f.Content
		}
		for i := range src.Items {
			item := &src.Items[i]
			out := bundleItem{Kind: uint8(item.Kind), Span: spanOut(item.Span), ImportPath: item.ImportPath}
			switch item.Kind {
			case ItemDecl:
				m, err := memberOut(item.Decl)
				if err != nil {
					return err
				}
				out.Decl = m
			case ItemStmt:
				out.Stmt = stmtOut(item.Stmt)
			}
			bs.Items = append(bs.Items, out)
		}
		b.Sources = append(b.Sources, bs)
	}
	return msgpack.NewEncoder(w).Encode(b)
}

// ReadBundle decodes a serialized program against fresh options.
func ReadBundle(r io.Reader, opts *Options) (*Program, error) {
	var b bundle
	if err := msgpack.NewDecoder(r).Decode(&b); err != nil {
		return nil, err
	}
	if b.Schema != bundleSchemaVersion {
		return nil, fmt.Errorf("program: bundle schema %d, want %d", b.Schema, bundleSchemaVersion)
	}
	p := NewProgram(opts, source.NewFileSet())
	p.GCImplemented = b.GCImplemented
	for _, bs := range b.Sources {
		file := p.Files.Add(bs.Path, bs.Content)
		src := p.AddSource(bs.Path, file, bs.Entry)
		for _, item := range bs.Items {
			switch ItemKind(item.Kind) {
			case ItemDecl:
				e, err := memberIn(p, src, item.Decl, nil)
				if err != nil {
					return nil, err
				}
				src.AddDecl(e)
				if !p.Register(e.Name(), e) {
					return nil, fmt.Errorf("program: duplicate top-level %s", e.Name())
				}
			case ItemStmt:
				src.AddStmt(stmtIn(item.Stmt))
			case ItemImport:
				src.AddImport(item.ImportPath, spanIn(item.Span))
			}
		}
	}
	return p, nil
}

// --- expression codec ---

func exprOut(e *ast.Expr) *bundleExpr {
	if e == nil {
		return nil
	}
	out := &bundleExpr{Kind: uint8(e.Kind), Span: spanOut(e.Span)}
	kid := func(children ...*ast.Expr) {
		for _, child := range children {
			out.Kids = append(out.Kids, exprOut(child))
		}
	}
	switch data := e.Data.(type) {
	case ast.IdentData:
		out.Name = data.Name
	case ast.IntLiteralData:
		out.Int = data.Value
	case ast.FloatLiteralData:
		out.Float = data.Value
	case ast.StringLiteralData:
		out.Str = data.Value
	case ast.ArrayLiteralData:
		out.Name = data.ElementType
		kid(data.Elements...)
	case ast.BinaryData:
		out.Op = uint8(data.Op)
		kid(data.Left, data.Right)
	case ast.UnaryData:
		out.Op = uint8(data.Op)
		kid(data.Operand)
	case ast.CallData:
		out.Names = data.TypeArgs
		kid(data.Callee)
		kid(data.Args...)
	case ast.NewData:
		out.Name = data.Class
		out.Names = data.TypeArgs
		kid(data.Args...)
	case ast.PropertyData:
		out.Name = data.Name
		kid(data.Target)
	case ast.ElementData:
		kid(data.Target, data.Index)
	case ast.TernaryData:
		kid(data.Cond, data.Then, data.Else)
	case ast.ParenData:
		kid(data.Inner)
	case ast.AssertNonNullData:
		kid(data.Inner)
	case ast.CastData:
		out.Name = data.To
		kid(data.Inner)
	}
	return out
}

func exprIn(e *bundleExpr) *ast.Expr {
	if e == nil {
		return nil
	}
	span := spanIn(e.Span)
	kid := func(i int) *ast.Expr {
		if i < len(e.Kids) {
			return exprIn(e.Kids[i])
		}
		return nil
	}
	kids := func(from int) []*ast.Expr {
		var out []*ast.Expr
		for i := from; i < len(e.Kids); i++ {
			out = append(out, exprIn(e.Kids[i]))
		}
		return out
	}
	switch ast.ExprKind(e.Kind) {
	case ast.ExprIdent:
		return ast.NewIdent(span, e.Name)
	case ast.ExprIntLiteral:
		return ast.NewIntLiteral(span, e.Int)
	case ast.ExprFloatLiteral:
		return ast.NewFloatLiteral(span, e.Float)
	case ast.ExprStringLiteral:
		return ast.NewStringLiteral(span, e.Str)
	case ast.ExprArrayLiteral:
		return &ast.Expr{Kind: ast.ExprArrayLiteral, Span: span,
			Data: ast.ArrayLiteralData{ElementType: e.Name, Elements: kids(0)}}
	case ast.ExprBinary:
		return ast.NewBinary(span, ast.BinaryOp(e.Op), kid(0), kid(1))
	case ast.ExprUnaryPrefix:
		return ast.NewUnaryPrefix(span, ast.UnaryOp(e.Op), kid(0))
	case ast.ExprUnaryPostfix:
		return ast.NewUnaryPostfix(span, ast.UnaryOp(e.Op), kid(0))
	case ast.ExprCall:
		return ast.NewCall(span, kid(0), e.Names, kids(1)...)
	case ast.ExprNew:
		return &ast.Expr{Kind: ast.ExprNew, Span: span,
			Data: ast.NewData{Class: e.Name, TypeArgs: e.Names, Args: kids(0)}}
	case ast.ExprProperty:
		return ast.NewProperty(span, kid(0), e.Name)
	case ast.ExprElement:
		return ast.NewElement(span, kid(0), kid(1))
	case ast.ExprTernary:
		return ast.NewTernary(span, kid(0), kid(1), kid(2))
	case ast.ExprParen:
		return &ast.Expr{Kind: ast.ExprParen, Span: span, Data: ast.ParenData{Inner: kid(0)}}
	case ast.ExprAssertNonNull:
		return &ast.Expr{Kind: ast.ExprAssertNonNull, Span: span, Data: ast.AssertNonNullData{Inner: kid(0)}}
	case ast.ExprCast:
		return &ast.Expr{Kind: ast.ExprCast, Span: span, Data: ast.CastData{Inner: kid(0), To: e.Name}}
	default:
		return ast.NewIdent(span, e.Name)
	}
}

// --- statement codec ---

func stmtOut(s *ast.Stmt) *bundleStmt {
	if s == nil {
		return nil
	}
	out := &bundleStmt{Kind: uint8(s.Kind), Span: spanOut(s.Span)}
	expr := func(es ...*ast.Expr) {
		for _, e := range es {
			out.Exprs = append(out.Exprs, exprOut(e))
		}
	}
	sub := func(ss ...*ast.Stmt) {
		for _, child := range ss {
			out.Stmts = append(out.Stmts, stmtOut(child))
		}
	}
	switch data := s.Data.(type) {
	case ast.BlockData:
		sub(data.Stmts...)
	case ast.IfData:
		expr(data.Cond)
		sub(data.Then, data.Else)
	case ast.WhileData:
		expr(data.Cond)
		sub(data.Body)
	case ast.DoData:
		expr(data.Cond)
		sub(data.Body)
	case ast.ForData:
		expr(data.Cond, data.Incr)
		sub(data.Init, data.Body)
	case ast.SwitchData:
		expr(data.Cond)
		for _, cs := range data.Cases {
			bc := bundleCase{Span: spanOut(cs.Span), Label: exprOut(cs.Label), HasBody: true}
			for _, child := range cs.Stmts {
				bc.Stmts = append(bc.Stmts, stmtOut(child))
			}
			out.Cases = append(out.Cases, bc)
		}
	case ast.ReturnData:
		expr(data.Value)
	case ast.BreakData:
		out.Label = data.Label
	case ast.ContinueData:
		out.Label = data.Label
	case ast.ThrowData:
		expr(data.Value)
	case ast.TryData:
		sub(data.Body, data.Catch, data.Finally)
	case ast.VariableData:
		for _, d := range data.Decls {
			out.Decls = append(out.Decls, bundleVarDecl{
				Span: spanOut(d.Span), Name: d.Name, Type: d.Type,
				Init: exprOut(d.Init), Const: d.Const,
			})
		}
	case ast.ExprStmtData:
		expr(data.Expr)
	}
	return out
}

func stmtIn(s *bundleStmt) *ast.Stmt {
	if s == nil {
		return nil
	}
	span := spanIn(s.Span)
	expr := func(i int) *ast.Expr {
		if i < len(s.Exprs) {
			return exprIn(s.Exprs[i])
		}
		return nil
	}
	sub := func(i int) *ast.Stmt {
		if i < len(s.Stmts) {
			return stmtIn(s.Stmts[i])
		}
		return nil
	}
	switch ast.StmtKind(s.Kind) {
	case ast.StmtBlock:
		var stmts []*ast.Stmt
		for i := range s.Stmts {
			stmts = append(stmts, stmtIn(s.Stmts[i]))
		}
		return ast.NewBlock(span, stmts...)
	case ast.StmtIf:
		return ast.NewIf(span, expr(0), sub(0), sub(1))
	case ast.StmtWhile:
		return ast.NewWhile(span, expr(0), sub(0))
	case ast.StmtDo:
		return ast.NewDo(span, sub(0), expr(0))
	case ast.StmtFor:
		return ast.NewFor(span, sub(0), expr(0), expr(1), sub(1))
	case ast.StmtSwitch:
		var cases []ast.SwitchCase
		for _, bc := range s.Cases {
			cs := ast.SwitchCase{Span: spanIn(bc.Span), Label: exprIn(bc.Label)}
			for _, child := range bc.Stmts {
				cs.Stmts = append(cs.Stmts, stmtIn(child))
			}
			cases = append(cases, cs)
		}
		return ast.NewSwitch(span, expr(0), cases...)
	case ast.StmtReturn:
		return ast.NewReturn(span, expr(0))
	case ast.StmtBreak:
		return &ast.Stmt{Kind: ast.StmtBreak, Span: span, Data: ast.BreakData{Label: s.Label}}
	case ast.StmtContinue:
		return &ast.Stmt{Kind: ast.StmtContinue, Span: span, Data: ast.ContinueData{Label: s.Label}}
	case ast.StmtThrow:
		return ast.NewThrow(span, expr(0))
	case ast.StmtTry:
		return &ast.Stmt{Kind: ast.StmtTry, Span: span,
			Data: ast.TryData{Body: sub(0), Catch: sub(1), Finally: sub(2)}}
	case ast.StmtVariable:
		var decls []ast.VarDeclarator
		for _, d := range s.Decls {
			decls = append(decls, ast.VarDeclarator{
				Span: spanIn(d.Span), Name: d.Name, Type: d.Type,
				Init: exprIn(d.Init), Const: d.Const,
			})
		}
		return ast.NewVariable(span, decls...)
	case ast.StmtExpr:
		return ast.NewExprStmt(span, expr(0))
	default:
		return &ast.Stmt{Kind: ast.StmtEmpty, Span: span}
	}
}

// --- declaration codec ---

func functionOut(p *FunctionPrototype) *bundleFunction {
	if p == nil {
		return nil
	}
	out := &bundleFunction{
		Name:           p.SimpleName,
		Span:           spanOut(p.Span),
		Flags:          uint32(p.ElemFlags),
		Decorators:     uint8(p.Decor),
		ReturnType:     p.ReturnType,
		TypeParams:     p.TypeParams,
		Body:           stmtOut(p.Body),
		BodyExpr:       exprOut(p.BodyExpr),
		Operator:       uint8(p.Operator),
		ExternalModule: p.ExternalModule,
		ExternalName:   p.ExternalName,
	}
	for _, param := range p.Params {
		out.Params = append(out.Params, bundleParam{Name: param.Name, Type: param.Type, Init: exprOut(param.Init)})
	}
	return out
}

func functionIn(src *Source, b *bundleFunction, parent Element) *FunctionPrototype {
	if b == nil {
		return nil
	}
	p := &FunctionPrototype{
		ElementBase: ElementBase{
			SimpleName:  b.Name,
			Internal:    b.Name,
			ElemFlags:   Flags(b.Flags),
			Decor:       DecoratorFlags(b.Decorators),
			ParentElem:  parent,
			OwnerSource: src,
		},
		Span:           spanIn(b.Span),
		ReturnType:     b.ReturnType,
		TypeParams:     b.TypeParams,
		Body:           stmtIn(b.Body),
		BodyExpr:       exprIn(b.BodyExpr),
		Operator:       OperatorKind(b.Operator),
		ExternalModule: b.ExternalModule,
		ExternalName:   b.ExternalName,
	}
	if parent != nil {
		p.Internal = parent.InternalName() + "." + b.Name
	}
	for _, param := range b.Params {
		p.Params = append(p.Params, ParamDecl{Name: param.Name, Type: param.Type, Init: exprIn(param.Init)})
	}
	if len(p.TypeParams) > 0 {
		p.ElemFlags |= FlagGeneric
	}
	return p
}

func memberOut(e Element) (*bundleMember, error) {
	out := &bundleMember{Kind: uint8(e.Kind())}
	switch decl := e.(type) {
	case *Global:
		out.Global = &bundleGlobal{
			Name: decl.SimpleName, Span: spanOut(decl.Span),
			Flags: uint32(decl.ElemFlags), Type: decl.TypeName, Init: exprOut(decl.Init),
		}
	case *Enum:
		be := &bundleEnum{Name: decl.SimpleName, Span: spanOut(decl.Span), Flags: uint32(decl.ElemFlags)}
		for _, v := range decl.Values {
			be.Values = append(be.Values, bundleEnumValue{Name: v.SimpleName, Span: spanOut(v.Span), Init: exprOut(v.Init)})
		}
		out.Enum = be
	case *FunctionPrototype:
		out.Function = functionOut(decl)
	case *ClassPrototype:
		bc := &bundleClass{
			Name: decl.SimpleName, Span: spanOut(decl.Span),
			Flags: uint32(decl.ElemFlags), Decorators: uint8(decl.Decor),
			TypeParams: decl.TypeParams, Extends: decl.ExtendsName,
			Ctor: functionOut(decl.Ctor),
		}
		for _, f := range decl.FieldDecls {
			bc.Fields = append(bc.Fields, bundleField{
				Name: f.SimpleName, Span: spanOut(f.Span), Flags: uint32(f.ElemFlags),
				Type: f.TypeName, Init: exprOut(f.Init), ParamIndex: int32(f.ParamIndex),
			})
		}
		var err error
		if bc.StaticMembers, err = membersOut(decl.StaticMembers); err != nil {
			return nil, err
		}
		if bc.InstanceMembers, err = membersOut(decl.InstanceMembers); err != nil {
			return nil, err
		}
		out.Class = bc
	case *Namespace:
		bn := &bundleNamespace{Name: decl.SimpleName, Span: spanOut(decl.Span), Flags: uint32(decl.ElemFlags)}
		var err error
		decl.Members(func(_ string, m Element) bool {
			var bm *bundleMember
			bm, err = memberOut(m)
			if err != nil {
				return false
			}
			bn.Members = append(bn.Members, *bm)
			return true
		})
		if err != nil {
			return nil, err
		}
		out.Namespace = bn
	case *Property:
		out.Property = &bundleProperty{
			Name: decl.SimpleName, Flags: uint32(decl.ElemFlags),
			Getter: functionOut(decl.Getter), Setter: functionOut(decl.Setter),
		}
	default:
		return nil, fmt.Errorf("program: cannot bundle %s", e.Kind())
	}
	return out, nil
}

func membersOut(members []Element) ([]bundleMember, error) {
	var out []bundleMember
	for _, m := range members {
		bm, err := memberOut(m)
		if err != nil {
			return nil, err
		}
		out = append(out, *bm)
	}
	return out, nil
}

func memberIn(p *Program, src *Source, b *bundleMember, parent Element) (Element, error) {
	switch ElementKind(b.Kind) {
	case ElementGlobal:
		g := &Global{
			ElementBase: ElementBase{
				SimpleName: b.Global.Name, Internal: b.Global.Name,
				ElemFlags: Flags(b.Global.Flags), ParentElem: parent, OwnerSource: src,
			},
			Span: spanIn(b.Global.Span), TypeName: b.Global.Type, Init: exprIn(b.Global.Init),
		}
		if parent != nil {
			g.Internal = parent.InternalName() + "." + g.SimpleName
		}
		return g, nil
	case ElementEnum:
		e := &Enum{
			ElementBase: ElementBase{
				SimpleName: b.Enum.Name, Internal: b.Enum.Name,
				ElemFlags: Flags(b.Enum.Flags), ParentElem: parent, OwnerSource: src,
			},
			Span: spanIn(b.Enum.Span),
		}
		for _, v := range b.Enum.Values {
			e.Values = append(e.Values, &EnumValue{
				ElementBase: ElementBase{
					SimpleName: v.Name, Internal: e.Internal + "." + v.Name,
					ParentElem: e, OwnerSource: src,
				},
				Span: spanIn(v.Span), Init: exprIn(v.Init),
			})
		}
		return e, nil
	case ElementFunctionPrototype:
		return functionIn(src, b.Function, parent), nil
	case ElementClassPrototype:
		bc := b.Class
		cls := &ClassPrototype{
			ElementBase: ElementBase{
				SimpleName: bc.Name, Internal: bc.Name,
				ElemFlags: Flags(bc.Flags), Decor: DecoratorFlags(bc.Decorators),
				ParentElem: parent, OwnerSource: src,
			},
			Span: spanIn(bc.Span), TypeParams: bc.TypeParams, ExtendsName: bc.Extends,
		}
		if len(cls.TypeParams) > 0 {
			cls.ElemFlags |= FlagGeneric
		}
		for _, f := range bc.Fields {
			cls.FieldDecls = append(cls.FieldDecls, &Field{
				ElementBase: ElementBase{
					SimpleName: f.Name, ElemFlags: Flags(f.Flags), ParentElem: cls, OwnerSource: src,
				},
				Span: spanIn(f.Span), TypeName: f.Type, Init: exprIn(f.Init), ParamIndex: int(f.ParamIndex),
			})
		}
		if bc.Ctor != nil {
			cls.Ctor = functionIn(src, bc.Ctor, cls)
			cls.Ctor.ElemFlags |= FlagConstructor | FlagInstance
			cls.Ctor.ClassProto = cls
		}
		var err error
		if cls.StaticMembers, err = membersIn(p, src, bc.StaticMembers, cls); err != nil {
			return nil, err
		}
		if cls.InstanceMembers, err = membersIn(p, src, bc.InstanceMembers, cls); err != nil {
			return nil, err
		}
		for _, m := range cls.InstanceMembers {
			if fp, ok := m.(*FunctionPrototype); ok {
				fp.ElemFlags |= FlagInstance
				fp.ClassProto = cls
			}
		}
		return cls, nil
	case ElementNamespace:
		bn := b.Namespace
		ns := &Namespace{
			ElementBase: ElementBase{
				SimpleName: bn.Name, Internal: bn.Name,
				ElemFlags: Flags(bn.Flags), ParentElem: parent, OwnerSource: src,
			},
			Span: spanIn(bn.Span),
		}
		if parent != nil {
			ns.Internal = parent.InternalName() + "." + ns.SimpleName
		}
		for i := range bn.Members {
			m, err := memberIn(p, src, &bn.Members[i], ns)
			if err != nil {
				return nil, err
			}
			ns.Add(m.Name(), m)
		}
		return ns, nil
	case ElementProperty:
		prop := &Property{
			ElementBase: ElementBase{
				SimpleName: b.Property.Name, ElemFlags: Flags(b.Property.Flags),
				ParentElem: parent, OwnerSource: src,
			},
			Getter: functionIn(src, b.Property.Getter, parent),
			Setter: functionIn(src, b.Property.Setter, parent),
		}
		for _, accessor := range []*FunctionPrototype{prop.Getter, prop.Setter} {
			if accessor != nil {
				accessor.ElemFlags |= FlagInstance
			}
		}
		return prop, nil
	default:
		return nil, fmt.Errorf("program: cannot read member kind %d", b.Kind)
	}
}

func membersIn(p *Program, src *Source, members []bundleMember, parent Element) ([]Element, error) {
	var out []Element
	for i := range members {
		m, err := memberIn(p, src, &members[i], parent)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}
