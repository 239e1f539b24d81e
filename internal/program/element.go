package program

// ElementKind tags the resolved program entities the backend walks.
type ElementKind uint8

const (
	ElementGlobal ElementKind = iota
	ElementLocal
	ElementField
	ElementFunctionPrototype
	ElementFunction
	ElementClassPrototype
	ElementClass
	ElementEnum
	ElementEnumValue
	ElementProperty
	ElementNamespace
)

func (k ElementKind) String() string {
	switch k {
	case ElementGlobal:
		return "Global"
	case ElementLocal:
		return "Local"
	case ElementField:
		return "Field"
	case ElementFunctionPrototype:
		return "FunctionPrototype"
	case ElementFunction:
		return "Function"
	case ElementClassPrototype:
		return "ClassPrototype"
	case ElementClass:
		return "Class"
	case ElementEnum:
		return "Enum"
	case ElementEnumValue:
		return "EnumValue"
	case ElementProperty:
		return "Property"
	case ElementNamespace:
		return "Namespace"
	default:
		return "Element(?)"
	}
}

// Flags are the common element flags the lowering inspects and sets.
type Flags uint32

const (
	// FlagExport marks elements exported from their source.
	FlagExport Flags = 1 << iota
	// FlagStatic marks static class members.
	FlagStatic
	// FlagConst marks constant declarations.
	FlagConst
	// FlagReadonly marks readonly fields.
	FlagReadonly
	// FlagPrivate marks private members.
	FlagPrivate
	// FlagInstance marks instance members.
	FlagInstance
	// FlagGeneric marks prototypes with type parameters.
	FlagGeneric
	// FlagAmbient marks declared (bodyless, imported) elements.
	FlagAmbient
	// FlagConstructor marks constructors.
	FlagConstructor
	// FlagMain marks the user entry function.
	FlagMain
	// FlagInlined marks constants substituted at use sites.
	FlagInlined
	// FlagCompiled guards one-shot compilation.
	FlagCompiled
	// FlagModuleImport marks elements backed by a host import.
	FlagModuleImport
	// FlagTrampoline marks synthetic optional-argument fillers.
	FlagTrampoline
	// FlagUncheckedContext disables bounds checking inside the body.
	FlagUncheckedContext
	// FlagAllocates marks constructors observed to allocate.
	FlagAllocates
	// FlagScoped marks locals introduced by block scoping.
	FlagScoped
)

func (f Flags) Has(flag Flags) bool { return f&flag == flag }

// DecoratorFlags are set by the resolver from source decorators.
type DecoratorFlags uint8

const (
	// DecoratorBuiltin routes calls through the builtins package.
	DecoratorBuiltin DecoratorFlags = 1 << iota
	// DecoratorInline requests call-site inlining.
	DecoratorInline
	// DecoratorExternal overrides the import module/name pair.
	DecoratorExternal
	// DecoratorOperator marks operator-overload methods.
	DecoratorOperator
	// DecoratorUnmanaged marks classes without a GC header.
	DecoratorUnmanaged
)

func (f DecoratorFlags) Has(flag DecoratorFlags) bool { return f&flag == flag }

// Element is the resolved-entity variant. Concrete types embed ElementBase.
type Element interface {
	Kind() ElementKind
	Name() string
	InternalName() string
	Flags() Flags
	SetFlags(Flags)
	Decorators() DecoratorFlags
	Parent() Element
}

// ElementBase carries the state common to all elements.
type ElementBase struct {
	SimpleName string
	Internal   string
	ElemFlags  Flags
	Decor      DecoratorFlags
	ParentElem Element
	// OwnerSource is the source the element was declared in; it feeds
	// default import mangling.
	OwnerSource *Source
}

func (b *ElementBase) Name() string               { return b.SimpleName }
func (b *ElementBase) InternalName() string       { return b.Internal }
func (b *ElementBase) Flags() Flags               { return b.ElemFlags }
func (b *ElementBase) SetFlags(f Flags)           { b.ElemFlags |= f }
func (b *ElementBase) Decorators() DecoratorFlags { return b.Decor }
func (b *ElementBase) Parent() Element            { return b.ParentElem }

// Is reports whether all given flags are set.
func (b *ElementBase) Is(f Flags) bool { return b.ElemFlags.Has(f) }
