package ast

import "swell/internal/source"

// ExprKind enumerates expression node kinds.
type ExprKind uint8

const (
	// ExprIdent is a plain identifier, keywords null/true/false/this/super
	// included.
	ExprIdent ExprKind = iota
	// ExprIntLiteral is an integer literal.
	ExprIntLiteral
	// ExprFloatLiteral is a floating-point literal.
	ExprFloatLiteral
	// ExprStringLiteral is a string literal.
	ExprStringLiteral
	// ExprArrayLiteral is [a, b, c].
	ExprArrayLiteral
	// ExprBinary covers arithmetic, relational, logical and assignment
	// operators.
	ExprBinary
	// ExprUnaryPrefix covers +x -x !x ~x ++x --x.
	ExprUnaryPrefix
	// ExprUnaryPostfix covers x++ x--.
	ExprUnaryPostfix
	// ExprCall is callee(args) with optional explicit type arguments.
	ExprCall
	// ExprNew is new C(args).
	ExprNew
	// ExprProperty is target.name.
	ExprProperty
	// ExprElement is target[index].
	ExprElement
	// ExprTernary is cond ? then : else.
	ExprTernary
	// ExprParen is (inner); kept so clonability checks see through it.
	ExprParen
	// ExprAssertNonNull is inner!.
	ExprAssertNonNull
	// ExprCast is inner as T.
	ExprCast
)

// Expr is a frontend-produced expression node.
type Expr struct {
	Kind ExprKind
	Span source.Span
	Data any
}

type IdentData struct {
	Name string
}

type IntLiteralData struct {
	// Value holds the magnitude; negative literals arrive as unary minus
	// over the magnitude.
	Value uint64
}

type FloatLiteralData struct {
	Value float64
}

type StringLiteralData struct {
	Value string
}

type ArrayLiteralData struct {
	// ElementType names the element type when the literal was annotated.
	ElementType string
	Elements    []*Expr
}

type BinaryData struct {
	Op    BinaryOp
	Left  *Expr
	Right *Expr
}

type UnaryData struct {
	Op      UnaryOp
	Operand *Expr
}

type CallData struct {
	Callee   *Expr
	TypeArgs []string
	Args     []*Expr
}

type NewData struct {
	Class    string
	TypeArgs []string
	Args     []*Expr
}

type PropertyData struct {
	Target *Expr
	Name   string
}

type ElementData struct {
	Target *Expr
	Index  *Expr
}

type TernaryData struct {
	Cond *Expr
	Then *Expr
	Else *Expr
}

type ParenData struct {
	Inner *Expr
}

type AssertNonNullData struct {
	Inner *Expr
}

type CastData struct {
	Inner *Expr
	To    string
}

// Constructors used by the embedding frontend and by tests.

func NewIdent(span source.Span, name string) *Expr {
	return &Expr{Kind: ExprIdent, Span: span, Data: IdentData{Name: name}}
}

func NewIntLiteral(span source.Span, value uint64) *Expr {
	return &Expr{Kind: ExprIntLiteral, Span: span, Data: IntLiteralData{Value: value}}
}

func NewFloatLiteral(span source.Span, value float64) *Expr {
	return &Expr{Kind: ExprFloatLiteral, Span: span, Data: FloatLiteralData{Value: value}}
}

func NewStringLiteral(span source.Span, value string) *Expr {
	return &Expr{Kind: ExprStringLiteral, Span: span, Data: StringLiteralData{Value: value}}
}

func NewBinary(span source.Span, op BinaryOp, left, right *Expr) *Expr {
	return &Expr{Kind: ExprBinary, Span: span, Data: BinaryData{Op: op, Left: left, Right: right}}
}

func NewUnaryPrefix(span source.Span, op UnaryOp, operand *Expr) *Expr {
	return &Expr{Kind: ExprUnaryPrefix, Span: span, Data: UnaryData{Op: op, Operand: operand}}
}

func NewUnaryPostfix(span source.Span, op UnaryOp, operand *Expr) *Expr {
	return &Expr{Kind: ExprUnaryPostfix, Span: span, Data: UnaryData{Op: op, Operand: operand}}
}

func NewCall(span source.Span, callee *Expr, typeArgs []string, args ...*Expr) *Expr {
	return &Expr{Kind: ExprCall, Span: span, Data: CallData{Callee: callee, TypeArgs: typeArgs, Args: args}}
}

func NewNew(span source.Span, class string, args ...*Expr) *Expr {
	return &Expr{Kind: ExprNew, Span: span, Data: NewData{Class: class, Args: args}}
}

func NewProperty(span source.Span, target *Expr, name string) *Expr {
	return &Expr{Kind: ExprProperty, Span: span, Data: PropertyData{Target: target, Name: name}}
}

func NewElement(span source.Span, target, index *Expr) *Expr {
	return &Expr{Kind: ExprElement, Span: span, Data: ElementData{Target: target, Index: index}}
}

func NewTernary(span source.Span, cond, then, els *Expr) *Expr {
	return &Expr{Kind: ExprTernary, Span: span, Data: TernaryData{Cond: cond, Then: then, Else: els}}
}
