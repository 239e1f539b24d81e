package codegen

import (
	"swell/internal/diag"
	"swell/internal/ir"
	"swell/internal/program"
	"swell/internal/source"
	"swell/internal/types"
)

// exportName applies the configured global aliases.
func (c *Compiler) exportName(name string) string {
	if alias, ok := c.opts.GlobalAliases[name]; ok {
		return alias
	}
	return name
}

// makeModuleExports translates every exported declaration of the entry
// sources into module exports.
func (c *Compiler) makeModuleExports() {
	for _, src := range c.prog.Sources {
		if !src.Entry {
			continue
		}
		for i := range src.Items {
			item := &src.Items[i]
			if item.Kind != program.ItemDecl || !item.Decl.Flags().Has(program.FlagExport) {
				continue
			}
			c.makeElementExport(item.Decl, item.Decl.Name())
		}
	}
}

func (c *Compiler) makeElementExport(e program.Element, name string) {
	switch decl := e.(type) {
	case *program.FunctionPrototype:
		decl.Instances(func(f *program.Function) bool {
			if f.Is(program.FlagCompiled) && !f.Is(program.FlagModuleImport) {
				// Generic instances carry their type arguments in the
				// exported name.
				exported := name
				if len(f.TypeArgs) > 0 {
					exported = f.Internal
				}
				c.mod.AddExport(ir.ExportFunction, c.exportName(exported), f.Internal)
			}
			return true
		})
	case *program.Global:
		c.makeGlobalExport(decl, name)
	case *program.Enum:
		for _, member := range decl.Values {
			memberName := c.exportName(name + "." + member.SimpleName)
			if member.Is(program.FlagInlined) {
				exportGlobalName := "~export:" + memberName
				c.mod.AddGlobal(exportGlobalName, types.NativeI32, false, c.makeConstant(member.Constant, types.I32))
				c.mod.AddExport(ir.ExportGlobal, memberName, exportGlobalName)
			} else if member.Is(program.FlagCompiled) {
				c.makeMutableGlobalExport(member.Internal, memberName, decl.Span)
			}
		}
	case *program.ClassPrototype:
		decl.Instances(func(cls *program.Class) bool {
			if cls.Is(program.FlagCompiled) {
				c.makeClassExport(cls)
			}
			return true
		})
	case *program.Namespace:
		decl.Members(func(memberName string, member program.Element) bool {
			if !member.Flags().Has(program.FlagPrivate) {
				c.makeElementExport(member, name+"."+memberName)
			}
			return true
		})
	case *program.Property:
		c.makePropertyExport(decl, nil, name)
	}
}

func (c *Compiler) makeGlobalExport(g *program.Global, name string) {
	exported := c.exportName(name)
	switch {
	case g.Is(program.FlagInlined):
		// Inlined constants still surface as immutable globals.
		exportGlobalName := "~export:" + exported
		c.mod.AddGlobal(exportGlobalName, g.Type.NativeType(), false, c.makeConstant(g.Constant, g.Type))
		c.mod.AddExport(ir.ExportGlobal, exported, exportGlobalName)
	case g.Is(program.FlagCompiled) && !g.Is(program.FlagModuleImport):
		c.makeMutableGlobalExport(g.Internal, exported, g.Span)
	}
}

func (c *Compiler) makeMutableGlobalExport(internal, exported string, span source.Span) {
	if !c.opts.Features.Has(program.FeatureMutableGlobal) {
		c.error(diag.SemaMutableGlobalExport, span,
			"exporting mutable global %s requires the mutable-global feature", exported)
		return
	}
	c.mod.AddExport(ir.ExportGlobal, exported, internal)
}

func (c *Compiler) makeClassExport(cls *program.Class) {
	base := c.exportName(cls.Internal)
	if cls.Ctor != nil && cls.Ctor.Is(program.FlagCompiled) {
		c.mod.AddExport(ir.ExportFunction, base, cls.Ctor.Internal)
	}
	proto := cls.Prototype
	for _, m := range proto.StaticMembers {
		if m.Flags().Has(program.FlagPrivate) {
			continue
		}
		switch member := m.(type) {
		case *program.FunctionPrototype:
			member.Instances(func(f *program.Function) bool {
				if f.Is(program.FlagCompiled) {
					c.mod.AddExport(ir.ExportFunction, base+"."+member.SimpleName, f.Internal)
				}
				return true
			})
		case *program.Global:
			c.makeGlobalExport(member, cls.Internal+"."+member.SimpleName)
		case *program.Property:
			c.makePropertyExport(member, cls, base+"."+member.SimpleName)
		}
	}
	for _, m := range proto.InstanceMembers {
		if m.Flags().Has(program.FlagPrivate) {
			continue
		}
		switch member := m.(type) {
		case *program.FunctionPrototype:
			member.Instances(func(f *program.Function) bool {
				if f.Is(program.FlagCompiled) && f.Class == cls {
					c.mod.AddExport(ir.ExportFunction, base+"#"+member.SimpleName, f.Internal)
				}
				return true
			})
		case *program.Property:
			c.makePropertyExport(member, cls, base+"#"+member.SimpleName)
		}
	}
	for _, f := range cls.Fields {
		if f.Is(program.FlagPrivate) {
			continue
		}
		c.makeFieldAccessorExports(cls, f, base)
	}
}

func (c *Compiler) makePropertyExport(p *program.Property, cls *program.Class, name string) {
	for _, pair := range []struct {
		proto  *program.FunctionPrototype
		prefix string
	}{{p.Getter, "get:"}, {p.Setter, "set:"}} {
		if pair.proto == nil {
			continue
		}
		pair.proto.Instances(func(f *program.Function) bool {
			if f.Is(program.FlagCompiled) {
				c.mod.AddExport(ir.ExportFunction, c.exportName(pair.prefix+name), f.Internal)
			}
			return true
		})
	}
}

// makeFieldAccessorExports synthesises a direct load/store pair for an
// exported field.
func (c *Compiler) makeFieldAccessorExports(cls *program.Class, f *program.Field, base string) {
	ptrNative := c.usizeType.NativeType()
	fieldNative := f.Type.NativeType()
	bytes := uint8(f.Type.ByteSize())

	getName := "get:" + base + "#" + f.SimpleName
	getType := c.mod.AddFunctionType(fieldNative, []types.NativeType{ptrNative})
	getBody := ir.Load(bytes, f.Type.Is(types.FlagSigned), ir.GetLocal(0, ptrNative), fieldNative, f.Offset)
	c.mod.AddFunction(getName, getType, nil, getBody)
	c.mod.AddExport(ir.ExportFunction, c.exportName(getName), getName)

	if f.Is(program.FlagReadonly) {
		return
	}
	setName := "set:" + base + "#" + f.SimpleName
	setType := c.mod.AddFunctionType(types.NativeNone, []types.NativeType{ptrNative, fieldNative})
	setBody := ir.Store(bytes, ir.GetLocal(0, ptrNative), ir.GetLocal(1, fieldNative), fieldNative, f.Offset)
	c.mod.AddFunction(setName, setType, nil, setBody)
	c.mod.AddExport(ir.ExportFunction, c.exportName(setName), setName)
}
