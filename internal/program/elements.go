package program

import (
	"swell/internal/ast"
	"swell/internal/source"
	"swell/internal/types"
)

// ConstantKind tags the precomputed value stored on constant-like
// elements.
type ConstantKind uint8

const (
	ConstantNone ConstantKind = iota
	ConstantInteger
	ConstantFloat
)

// ConstantValue is the inlined value of a constant element.
type ConstantValue struct {
	Kind  ConstantKind
	Int   int64
	Float float64
}

// Global is a module-level variable or constant.
type Global struct {
	ElementBase
	Span source.Span
	// TypeName is the declared type; empty means infer from Init.
	TypeName string
	// Type is filled by the compiler once known.
	Type types.Type
	Init *ast.Expr
	// Constant holds the inlined value when FlagInlined is set.
	Constant ConstantValue
	// Signature is set on globals holding a function-table index,
	// enabling indirect calls through them.
	Signature *Signature
}

func (*Global) Kind() ElementKind { return ElementGlobal }

// Local is a function-scoped slot. The first local of an instance method
// is `this`.
type Local struct {
	ElementBase
	Index int
	Type  types.Type
	// Constant is set on virtual locals, which own no IR slot.
	Constant ConstantValue
	// Signature is set on slots holding a function-table index, enabling
	// indirect calls through them.
	Signature *Signature
}

func (*Local) Kind() ElementKind { return ElementLocal }

// Field is an instance field with a precomputed layout offset.
type Field struct {
	ElementBase
	Span     source.Span
	TypeName string
	Type     types.Type
	Offset   uint32
	Init     *ast.Expr
	// ParamIndex links fields declared `constructor(public x: T)` style to
	// the constructor parameter that initializes them; -1 otherwise.
	ParamIndex int
	// Signature is set on fields holding a function-table index,
	// enabling indirect calls through them.
	Signature *Signature
}

func (*Field) Kind() ElementKind { return ElementField }

// Enum is a set of i32-valued members.
type Enum struct {
	ElementBase
	Span   source.Span
	Values []*EnumValue
}

func (*Enum) Kind() ElementKind { return ElementEnum }

// EnumValue is a single enum member.
type EnumValue struct {
	ElementBase
	Span source.Span
	Init *ast.Expr
	// Constant is set when the member value precomputed.
	Constant ConstantValue
}

func (*EnumValue) Kind() ElementKind { return ElementEnumValue }

// Property pairs accessor prototypes.
type Property struct {
	ElementBase
	Getter *FunctionPrototype
	Setter *FunctionPrototype
}

func (*Property) Kind() ElementKind { return ElementProperty }

// Namespace groups members; exports recurse into it.
type Namespace struct {
	ElementBase
	Span    source.Span
	members map[string]Element
	order   []string
}

func (*Namespace) Kind() ElementKind { return ElementNamespace }

// Add registers a member; the first registration of a name wins.
func (n *Namespace) Add(name string, e Element) bool {
	if n.members == nil {
		n.members = make(map[string]Element)
	}
	if _, dup := n.members[name]; dup {
		return false
	}
	n.members[name] = e
	n.order = append(n.order, name)
	return true
}

// Member looks a member up by simple name.
func (n *Namespace) Member(name string) (Element, bool) {
	e, ok := n.members[name]
	return e, ok
}

// Members iterates members in declaration order.
func (n *Namespace) Members(fn func(name string, e Element) bool) {
	for _, name := range n.order {
		if !fn(name, n.members[name]) {
			return
		}
	}
}
