package program

import (
	"strings"

	"swell/internal/ast"
	"swell/internal/source"
	"swell/internal/types"
)

// FunctionPrototype is a function as declared: textual parameter types,
// optional type parameters, a shared body. Instances are resolved per
// type-argument combination.
type FunctionPrototype struct {
	ElementBase
	Span       source.Span
	Params     []ParamDecl
	ReturnType string
	TypeParams []string
	Body       *ast.Stmt
	// BodyExpr is set instead of Body for single-expression arrows.
	BodyExpr *ast.Expr
	// ClassProto is set for methods and accessors.
	ClassProto *ClassPrototype
	// Operator tags @operator methods.
	Operator OperatorKind
	// ExternalModule/ExternalName override import mangling when the
	// @external decorator was present.
	ExternalModule string
	ExternalName   string

	instances map[string]*Function
}

func (*FunctionPrototype) Kind() ElementKind { return ElementFunctionPrototype }

// Function is a resolved instance of a prototype.
type Function struct {
	ElementBase
	Prototype *FunctionPrototype
	Span      source.Span
	Signature *Signature
	// TypeArgs are the resolved type arguments, parallel to the
	// prototype's TypeParams.
	TypeArgs []types.Type
	// ContextualTypes substitutes type-parameter names during body
	// compilation.
	ContextualTypes map[string]types.Type
	// Class is the resolved owner of instance members.
	Class *Class
	// Locals starts with this (for instance callables) and the
	// parameters; the compiler appends additional locals.
	Locals []*Local
	// TableIndex is the function-table slot, -1 when not indexed.
	TableIndex int32
	// Trampoline fills omitted optional arguments; nil until needed.
	Trampoline *Function
	// NextInlineID disambiguates inline return labels.
	NextInlineID int
}

func (*Function) Kind() ElementKind { return ElementFunction }

// LocalByName finds a parameter or named local.
func (f *Function) LocalByName(name string) (*Local, bool) {
	for _, l := range f.Locals {
		if l.SimpleName == name {
			return l, true
		}
	}
	return nil, false
}

// AddLocal appends an additional local of the given type.
func (f *Function) AddLocal(t types.Type, name string) *Local {
	l := &Local{
		ElementBase: ElementBase{SimpleName: name, Internal: f.Internal + "~" + name, ParentElem: f},
		Index:       len(f.Locals),
		Type:        t,
	}
	f.Locals = append(f.Locals, l)
	return l
}

// typeArgsKey builds the memoisation key for an instance.
func typeArgsKey(args []types.Type) string {
	if len(args) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, a := range args {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(a.String())
	}
	return sb.String()
}

// Instance returns the memoised instance for the given type arguments, if
// it was resolved before.
func (p *FunctionPrototype) Instance(args []types.Type) (*Function, bool) {
	f, ok := p.instances[typeArgsKey(args)]
	return f, ok
}

func (p *FunctionPrototype) setInstance(args []types.Type, f *Function) {
	if p.instances == nil {
		p.instances = make(map[string]*Function, 1)
	}
	p.instances[typeArgsKey(args)] = f
}

// Instances iterates resolved instances (order unspecified).
func (p *FunctionPrototype) Instances(fn func(*Function) bool) {
	for _, f := range p.instances {
		if !fn(f) {
			return
		}
	}
}
