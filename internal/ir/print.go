package ir

import (
	"fmt"
	"strconv"
	"strings"

	"swell/internal/types"
)

// Text renders the module as a deterministic wat-like dump. It is the
// artifact boundary for tests, golden files and --emit-text.
func (m *Module) Text() string {
	var sb strings.Builder
	sb.WriteString("(module\n")
	for _, ft := range m.typeOrder {
		sb.WriteString("  (type $")
		sb.WriteString(ft.Name)
		sb.WriteString(" (func")
		for _, p := range ft.Params {
			sb.WriteString(" (param ")
			sb.WriteString(p.String())
			sb.WriteByte(')')
		}
		if ft.Result != types.NativeNone {
			sb.WriteString(" (result ")
			sb.WriteString(ft.Result.String())
			sb.WriteByte(')')
		}
		sb.WriteString("))\n")
	}
	for _, imp := range m.Imports {
		fmt.Fprintf(&sb, "  (import %q %q (func $%s (type $%s)))\n", imp.Module, imp.Base, imp.InternalName, imp.Type.Name)
	}
	if m.MemoryImport {
		fmt.Fprintf(&sb, "  (import \"env\" \"memory\" (memory $0 %d %d))\n", m.InitialPages, m.MaximumPages)
	} else {
		fmt.Fprintf(&sb, "  (memory $0 %d %d)\n", m.InitialPages, m.MaximumPages)
	}
	for _, seg := range m.Segments {
		fmt.Fprintf(&sb, "  (data (i32.const %d) %q)\n", seg.Offset, string(seg.Data))
	}
	if len(m.Table) > 0 {
		if m.TableImport {
			fmt.Fprintf(&sb, "  (import \"env\" \"table\" (table $0 %d funcref))\n", len(m.Table))
		} else {
			fmt.Fprintf(&sb, "  (table $0 %d funcref)\n", len(m.Table))
		}
		sb.WriteString("  (elem (i32.const 0)")
		for _, name := range m.Table {
			sb.WriteString(" $")
			sb.WriteString(name)
		}
		sb.WriteString(")\n")
	}
	for _, g := range m.Globals {
		if g.Imported {
			fmt.Fprintf(&sb, "  (import %q %q (global $%s %s))\n", g.ImportModule, g.ImportBase, g.Name, g.Type)
			continue
		}
		sb.WriteString("  (global $")
		sb.WriteString(g.Name)
		if g.Mutable {
			sb.WriteString(" (mut ")
			sb.WriteString(g.Type.String())
			sb.WriteByte(')')
		} else {
			sb.WriteByte(' ')
			sb.WriteString(g.Type.String())
		}
		sb.WriteByte(' ')
		writeNode(&sb, g.Init, 0, true)
		sb.WriteString(")\n")
	}
	for _, f := range m.Functions {
		sb.WriteString("  (func $")
		sb.WriteString(f.Name)
		sb.WriteString(" (type $")
		sb.WriteString(f.Type.Name)
		sb.WriteByte(')')
		if len(f.Locals) > 0 {
			for _, l := range f.Locals {
				sb.WriteString(" (local ")
				sb.WriteString(l.String())
				sb.WriteByte(')')
			}
		}
		sb.WriteByte('\n')
		writeIndented(&sb, f.Body, 2)
		sb.WriteString("  )\n")
	}
	for _, e := range m.Exports {
		switch e.Kind {
		case ExportFunction:
			fmt.Fprintf(&sb, "  (export %q (func $%s))\n", e.Name, e.Internal)
		case ExportGlobal:
			fmt.Fprintf(&sb, "  (export %q (global $%s))\n", e.Name, e.Internal)
		case ExportMemory:
			fmt.Fprintf(&sb, "  (export %q (memory $0))\n", e.Name)
		case ExportTable:
			fmt.Fprintf(&sb, "  (export %q (table $0))\n", e.Name)
		}
	}
	if m.StartFunction != "" {
		fmt.Fprintf(&sb, "  (start $%s)\n", m.StartFunction)
	}
	sb.WriteString(")\n")
	return sb.String()
}

func writeIndented(sb *strings.Builder, n *Node, depth int) {
	sb.WriteString(strings.Repeat("  ", depth))
	writeNode(sb, n, depth, false)
	sb.WriteByte('\n')
}

// NodeText renders one expression, single line, for tests and debugging.
func NodeText(n *Node) string {
	var sb strings.Builder
	writeNode(&sb, n, 0, true)
	return sb.String()
}

func writeNode(sb *strings.Builder, n *Node, depth int, flat bool) {
	if n == nil {
		sb.WriteString("(nop)")
		return
	}
	open := func(head string) { sb.WriteByte('('); sb.WriteString(head) }
	sub := func(child *Node) {
		if flat {
			sb.WriteByte(' ')
			writeNode(sb, child, depth, true)
			return
		}
		sb.WriteByte('\n')
		sb.WriteString(strings.Repeat("  ", depth+1))
		writeNode(sb, child, depth+1, false)
	}
	switch n.Kind {
	case KindNop:
		sb.WriteString("(nop)")
		return
	case KindConst:
		switch n.Type {
		case types.NativeI32:
			fmt.Fprintf(sb, "(i32.const %d)", int32(n.I64))
		case types.NativeI64:
			fmt.Fprintf(sb, "(i64.const %d)", n.I64)
		case types.NativeF32:
			fmt.Fprintf(sb, "(f32.const %s)", strconv.FormatFloat(n.F64, 'g', -1, 32))
		default:
			fmt.Fprintf(sb, "(f64.const %s)", strconv.FormatFloat(n.F64, 'g', -1, 64))
		}
		return
	case KindUnary:
		open(n.Op.String())
		sub(n.Value)
	case KindBinary:
		open(n.Op.String())
		sub(n.Left)
		sub(n.Right)
	case KindGetLocal:
		fmt.Fprintf(sb, "(local.get %d)", n.Index)
		return
	case KindSetLocal:
		if n.Type != types.NativeNone {
			open(fmt.Sprintf("local.tee %d", n.Index))
		} else {
			open(fmt.Sprintf("local.set %d", n.Index))
		}
		sub(n.Value)
	case KindGetGlobal:
		fmt.Fprintf(sb, "(global.get $%s)", n.Name)
		return
	case KindSetGlobal:
		open("global.set $" + n.Name)
		sub(n.Value)
	case KindLoad:
		open(loadName(n))
		if n.Offset != 0 {
			fmt.Fprintf(sb, " offset=%d", n.Offset)
		}
		sub(n.Ptr)
	case KindStore:
		open(storeName(n))
		if n.Offset != 0 {
			fmt.Fprintf(sb, " offset=%d", n.Offset)
		}
		sub(n.Ptr)
		sub(n.Value)
	case KindCall, KindCallImport:
		open("call $" + n.Name)
		for _, operand := range n.List {
			sub(operand)
		}
	case KindCallIndirect:
		open("call_indirect (type $" + n.Name + ")")
		for _, operand := range n.List {
			sub(operand)
		}
		sub(n.Condition)
	case KindBlock:
		head := "block"
		if n.Label != "" {
			head += " $" + n.Label
		}
		if n.Type != types.NativeNone {
			head += " (result " + n.Type.String() + ")"
		}
		open(head)
		for _, child := range n.List {
			sub(child)
		}
	case KindIf:
		head := "if"
		if n.Type != types.NativeNone {
			head += " (result " + n.Type.String() + ")"
		}
		open(head)
		sub(n.Condition)
		sub(n.IfTrue)
		if n.IfFalse != nil {
			sub(n.IfFalse)
		}
	case KindLoop:
		head := "loop"
		if n.Label != "" {
			head += " $" + n.Label
		}
		open(head)
		sub(n.Value)
	case KindBreak:
		if n.Condition != nil {
			open("br_if $" + n.Label)
			sub(n.Condition)
		} else {
			open("br $" + n.Label)
		}
		if n.Value != nil {
			sub(n.Value)
		}
	case KindSwitch:
		open("br_table")
		for _, name := range n.Names {
			sb.WriteString(" $")
			sb.WriteString(name)
		}
		sb.WriteString(" $")
		sb.WriteString(n.DefaultName)
		sub(n.Condition)
	case KindSelect:
		open("select")
		sub(n.IfTrue)
		sub(n.IfFalse)
		sub(n.Condition)
	case KindDrop:
		open("drop")
		sub(n.Value)
	case KindReturn:
		open("return")
		if n.Value != nil {
			sub(n.Value)
		}
	case KindUnreachable:
		sb.WriteString("(unreachable)")
		return
	case KindMemorySize:
		sb.WriteString("(memory.size)")
		return
	case KindMemoryGrow:
		open("memory.grow")
		sub(n.Value)
	default:
		open("?")
	}
	if !flat {
		sb.WriteByte('\n')
		sb.WriteString(strings.Repeat("  ", depth))
	}
	sb.WriteByte(')')
}

func loadName(n *Node) string {
	t := n.Type.String()
	switch {
	case n.Float || n.Bytes >= 8 && n.Type == types.NativeI64 || n.Bytes == 4 && n.Type == types.NativeI32:
		return t + ".load"
	case n.Bytes == 1 && n.Signed:
		return t + ".load8_s"
	case n.Bytes == 1:
		return t + ".load8_u"
	case n.Bytes == 2 && n.Signed:
		return t + ".load16_s"
	case n.Bytes == 2:
		return t + ".load16_u"
	case n.Bytes == 4 && n.Signed:
		return t + ".load32_s"
	default:
		return t + ".load32_u"
	}
}

func storeName(n *Node) string {
	t := n.VType.String()
	switch {
	case n.Float, n.Bytes >= 8, n.Bytes == 4 && n.VType == types.NativeI32:
		return t + ".store"
	case n.Bytes == 1:
		return t + ".store8"
	case n.Bytes == 2:
		return t + ".store16"
	default:
		return t + ".store32"
	}
}
