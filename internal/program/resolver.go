package program

import (
	"fmt"
	"strings"

	"fortio.org/safecast"

	"swell/internal/types"
)

// ResolveTypeName resolves a textual type reference against the
// primitives, the contextual type-parameter substitution and the program
// scope. A trailing "| null" yields the nullable reference.
func (p *Program) ResolveTypeName(name string, ctx map[string]types.Type) (types.Type, bool) {
	name = strings.TrimSpace(name)
	if base, ok := strings.CutSuffix(name, "| null"); ok {
		t, found := p.ResolveTypeName(strings.TrimSpace(base), ctx)
		if !found || !t.IsReference() {
			return types.Void, false
		}
		return t.AsNullable(), true
	}
	switch name {
	case "", "void":
		return types.Void, true
	case "bool":
		return types.Bool, true
	case "i8":
		return types.I8, true
	case "u8":
		return types.U8, true
	case "i16":
		return types.I16, true
	case "u16":
		return types.U16, true
	case "i32":
		return types.I32, true
	case "u32":
		return types.U32, true
	case "i64":
		return types.I64, true
	case "u64":
		return types.U64, true
	case "isize":
		return p.Options.ISizeType(), true
	case "usize":
		return p.Options.USizeType(), true
	case "f32":
		return types.F32, true
	case "f64":
		return types.F64, true
	}
	if ctx != nil {
		if t, ok := ctx[name]; ok {
			return t, true
		}
	}
	// Generic instantiations arrive as "Name<arg, ...>".
	if open := strings.IndexByte(name, '<'); open > 0 && strings.HasSuffix(name, ">") {
		head := name[:open]
		e, ok := p.scope[head]
		if !ok {
			return types.Void, false
		}
		proto, ok := e.(*ClassPrototype)
		if !ok {
			return types.Void, false
		}
		var args []types.Type
		for _, part := range splitTypeArgs(name[open+1 : len(name)-1]) {
			t, ok := p.ResolveTypeName(part, ctx)
			if !ok {
				return types.Void, false
			}
			args = append(args, t)
		}
		c, err := p.ResolveClass(proto, args)
		if err != nil {
			return types.Void, false
		}
		return c.Type, true
	}
	if e, ok := p.scope[name]; ok {
		if proto, ok := e.(*ClassPrototype); ok && len(proto.TypeParams) == 0 {
			c, err := p.ResolveClass(proto, nil)
			if err != nil {
				return types.Void, false
			}
			return c.Type, true
		}
	}
	return types.Void, false
}

// splitTypeArgs splits a comma-separated type-argument list, honouring
// nested angle brackets.
func splitTypeArgs(s string) []string {
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<':
			depth++
		case '>':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	if tail := strings.TrimSpace(s[start:]); tail != "" {
		parts = append(parts, tail)
	}
	return parts
}

// contextFor merges a prototype's type parameters with arguments on top of
// an outer substitution.
func contextFor(outer map[string]types.Type, params []string, args []types.Type) map[string]types.Type {
	if len(params) == 0 {
		return outer
	}
	ctx := make(map[string]types.Type, len(outer)+len(params))
	for k, v := range outer {
		ctx[k] = v
	}
	for i, name := range params {
		if i < len(args) {
			ctx[name] = args[i]
		}
	}
	return ctx
}

// mangleInstanceName suffixes generic type arguments the way exports
// expect them.
func mangleInstanceName(base string, args []types.Type) string {
	if len(args) == 0 {
		return base
	}
	var sb strings.Builder
	sb.WriteString(base)
	sb.WriteByte('<')
	for i, a := range args {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(a.String())
	}
	sb.WriteByte('>')
	return sb.String()
}

// ResolveFunction resolves a prototype against type arguments (and the
// owning class instance for methods), memoised per combination.
func (p *Program) ResolveFunction(proto *FunctionPrototype, typeArgs []types.Type, class *Class) (*Function, error) {
	if len(typeArgs) != len(proto.TypeParams) {
		return nil, fmt.Errorf("%s expects %d type arguments, got %d", proto.SimpleName, len(proto.TypeParams), len(typeArgs))
	}
	if f, ok := proto.Instance(typeArgs); ok {
		return f, nil
	}

	var outer map[string]types.Type
	if class != nil {
		outer = class.ContextualTypes
	}
	ctx := contextFor(outer, proto.TypeParams, typeArgs)

	sig := &Signature{
		ParameterTypes: make([]types.Type, 0, len(proto.Params)),
		ParameterNames: make([]string, 0, len(proto.Params)),
	}
	required := 0
	seenOptional := false
	for _, param := range proto.Params {
		t, ok := p.ResolveTypeName(param.Type, ctx)
		if !ok {
			return nil, fmt.Errorf("cannot resolve parameter type %q of %s", param.Type, proto.SimpleName)
		}
		sig.ParameterTypes = append(sig.ParameterTypes, t)
		sig.ParameterNames = append(sig.ParameterNames, param.Name)
		if param.Init == nil && !seenOptional {
			required++
		} else {
			seenOptional = true
		}
	}
	sig.RequiredParameters = required
	ret, ok := p.ResolveTypeName(proto.ReturnType, ctx)
	if !ok {
		return nil, fmt.Errorf("cannot resolve return type %q of %s", proto.ReturnType, proto.SimpleName)
	}
	sig.ReturnType = ret
	if proto.Is(FlagInstance) && class != nil {
		this := class.Type
		if proto.Is(FlagConstructor) {
			this = this.AsNullable()
		}
		sig.This = &this
	}

	internal := proto.Internal
	if internal == "" {
		internal = proto.SimpleName
	}
	f := &Function{
		ElementBase: ElementBase{
			SimpleName: proto.SimpleName,
			Internal:   mangleInstanceName(internal, typeArgs),
			ElemFlags:  proto.ElemFlags,
			Decor:      proto.Decor,
			ParentElem: proto,
		},
		Prototype:       proto,
		Span:            proto.Span,
		Signature:       sig,
		TypeArgs:        typeArgs,
		ContextualTypes: ctx,
		Class:           class,
		TableIndex:      -1,
	}
	if sig.This != nil {
		f.Locals = append(f.Locals, &Local{
			ElementBase: ElementBase{SimpleName: "this", Internal: f.Internal + "~this", ParentElem: f},
			Index:       0,
			Type:        *sig.This,
		})
	}
	for i, name := range sig.ParameterNames {
		f.Locals = append(f.Locals, &Local{
			ElementBase: ElementBase{SimpleName: name, Internal: f.Internal + "~" + name, ParentElem: f},
			Index:       len(f.Locals),
			Type:        sig.ParameterTypes[i],
		})
	}
	proto.setInstance(typeArgs, f)
	return f, nil
}

// ResolveClass resolves a class prototype against type arguments,
// computing the instance layout, memoised per combination.
func (p *Program) ResolveClass(proto *ClassPrototype, typeArgs []types.Type) (*Class, error) {
	if len(typeArgs) != len(proto.TypeParams) {
		return nil, fmt.Errorf("%s expects %d type arguments, got %d", proto.SimpleName, len(proto.TypeParams), len(typeArgs))
	}
	if c, ok := proto.Instance(typeArgs); ok {
		return c, nil
	}

	ctx := contextFor(nil, proto.TypeParams, typeArgs)

	var base *Class
	if proto.ExtendsName != "" {
		t, ok := p.ResolveTypeName(proto.ExtendsName, ctx)
		if !ok || !t.IsReference() {
			return nil, fmt.Errorf("cannot resolve base class %q of %s", proto.ExtendsName, proto.SimpleName)
		}
		base = p.ClassByID(t.Class)
	}

	n, err := safecast.Conv[uint32](len(p.classes) + 1)
	if err != nil {
		return nil, fmt.Errorf("class table overflow: %w", err)
	}
	id := types.ClassID(n)
	c := &Class{
		ElementBase: ElementBase{
			SimpleName: proto.SimpleName,
			Internal:   mangleInstanceName(proto.SimpleName, typeArgs),
			ElemFlags:  proto.ElemFlags,
			Decor:      proto.Decor,
			ParentElem: proto,
		},
		ID:              id,
		Prototype:       proto,
		TypeArgs:        typeArgs,
		ContextualTypes: ctx,
		Base:            base,
		GCHookIndex:     -1,
		Type:            p.Options.RefType(id),
	}
	p.classes = append(p.classes, c)
	proto.setInstance(typeArgs, c)

	offset := uint32(0)
	if base != nil {
		offset = base.InstanceSize
	}
	for _, decl := range proto.FieldDecls {
		ft, ok := p.ResolveTypeName(decl.TypeName, ctx)
		if !ok {
			return nil, fmt.Errorf("cannot resolve field type %q of %s.%s", decl.TypeName, proto.SimpleName, decl.SimpleName)
		}
		size := ft.ByteSize()
		offset = alignUp(offset, size)
		field := &Field{
			ElementBase: ElementBase{
				SimpleName: decl.SimpleName,
				Internal:   c.Internal + "#" + decl.SimpleName,
				ElemFlags:  decl.ElemFlags | FlagInstance,
				ParentElem: c,
			},
			Span:       decl.Span,
			TypeName:   decl.TypeName,
			Type:       ft,
			Offset:     offset,
			Init:       decl.Init,
			ParamIndex: decl.ParamIndex,
			Signature:  decl.Signature,
		}
		offset += size
		c.Fields = append(c.Fields, field)
	}
	c.InstanceSize = alignUp(offset, uint32(p.Options.USizeType().Size))

	for _, m := range proto.InstanceMembers {
		fp, ok := m.(*FunctionPrototype)
		if !ok || fp.Operator == OperatorInvalid {
			continue
		}
		if c.Operators == nil {
			c.Operators = make(map[OperatorKind]*FunctionPrototype, 4)
		}
		c.Operators[fp.Operator] = fp
	}
	return c, nil
}

func alignUp(offset, align uint32) uint32 {
	if align <= 1 {
		return offset
	}
	mask := align - 1
	return (offset + mask) &^ mask
}
