package program

import (
	"swell/internal/source"
	"swell/internal/types"
)

// ClassPrototype is a class as declared. Instances are resolved per
// type-argument combination; the program assigns each instance a ClassID.
type ClassPrototype struct {
	ElementBase
	Span       source.Span
	TypeParams []string
	// ExtendsName names the base class prototype, empty for roots.
	ExtendsName string
	// FieldDecls are declared in layout order.
	FieldDecls []*Field
	// Ctor is the constructor prototype, nil when absent.
	Ctor *FunctionPrototype
	// StaticMembers and InstanceMembers hold prototypes, globals and
	// properties in declaration order.
	StaticMembers   []Element
	InstanceMembers []Element

	instances map[string]*Class
}

func (*ClassPrototype) Kind() ElementKind { return ElementClassPrototype }

// Class is a resolved class instance with a computed layout.
type Class struct {
	ElementBase
	ID        types.ClassID
	Prototype *ClassPrototype
	TypeArgs  []types.Type
	// ContextualTypes substitutes type parameters inside member
	// signatures and bodies.
	ContextualTypes map[string]types.Type
	Base            *Class
	// Fields are this class's own fields with final offsets; inherited
	// fields stay on Base.
	Fields []*Field
	// InstanceSize is the byte size of an instance including base
	// classes, before GC header.
	InstanceSize uint32
	Ctor         *Function
	// Operators maps overload kinds to their method prototypes.
	Operators map[OperatorKind]*FunctionPrototype
	// GCHookIndex is the registered hook, -1 until ensured.
	GCHookIndex int32
	// Type is the non-nullable reference descriptor.
	Type types.Type
}

func (*Class) Kind() ElementKind { return ElementClass }

// FieldByName searches the class and its bases.
func (c *Class) FieldByName(name string) (*Field, bool) {
	for cur := c; cur != nil; cur = cur.Base {
		for _, f := range cur.Fields {
			if f.SimpleName == name {
				return f, true
			}
		}
	}
	return nil, false
}

// Operator finds an overload on the class or its bases.
func (c *Class) Operator(kind OperatorKind) (*FunctionPrototype, bool) {
	for cur := c; cur != nil; cur = cur.Base {
		if p, ok := cur.Operators[kind]; ok {
			return p, true
		}
	}
	return nil, false
}

// InstanceMember searches methods, properties and fields by simple name,
// bases included.
func (c *Class) InstanceMember(name string) (Element, bool) {
	for cur := c; cur != nil; cur = cur.Base {
		for _, m := range cur.Prototype.InstanceMembers {
			if m.Name() == name {
				return m, true
			}
		}
		for _, f := range cur.Fields {
			if f.SimpleName == name {
				return f, true
			}
		}
	}
	return nil, false
}

// StaticMember searches static members by simple name.
func (c *Class) StaticMember(name string) (Element, bool) {
	for _, m := range c.Prototype.StaticMembers {
		if m.Name() == name {
			return m, true
		}
	}
	return nil, false
}

// Instance returns the memoised class instance for the type arguments.
func (p *ClassPrototype) Instance(args []types.Type) (*Class, bool) {
	c, ok := p.instances[typeArgsKey(args)]
	return c, ok
}

func (p *ClassPrototype) setInstance(args []types.Type, c *Class) {
	if p.instances == nil {
		p.instances = make(map[string]*Class, 1)
	}
	p.instances[typeArgsKey(args)] = c
}

// Instances iterates resolved class instances (order unspecified).
func (p *ClassPrototype) Instances(fn func(*Class) bool) {
	for _, c := range p.instances {
		if !fn(c) {
			return
		}
	}
}
