package ir

import (
	"fmt"
	"sort"
	"strings"

	"fortio.org/safecast"

	"swell/internal/types"
)

// PageSize is the WebAssembly linear-memory page size.
const PageSize = 65536

// FunctionType is a deduplicated (result, params) signature.
type FunctionType struct {
	Name   string
	Result types.NativeType
	Params []types.NativeType
}

// Function is a finalized function body.
type Function struct {
	Name string
	Type *FunctionType
	// Locals are the additional locals beyond the parameters.
	Locals []types.NativeType
	Body   *Node
}

// Import is a host function import.
type Import struct {
	InternalName string
	Module       string
	Base         string
	Type         *FunctionType
}

// Global is a module global.
type Global struct {
	Name    string
	Type    types.NativeType
	Mutable bool
	Init    *Node
	// Imported globals carry the host pair instead of an initializer.
	Imported     bool
	ImportModule string
	ImportBase   string
}

// ExportKind distinguishes exported entities.
type ExportKind uint8

const (
	ExportFunction ExportKind = iota
	ExportGlobal
	ExportMemory
	ExportTable
)

// Export maps an external name to an internal one.
type Export struct {
	Kind     ExportKind
	Name     string
	Internal string
}

// Segment is a static data region placed at a fixed offset.
type Segment struct {
	Offset uint32
	Data   []byte
}

// DebugLocation ties an emitted node to a source position.
type DebugLocation struct {
	FileIndex uint32
	Line      uint32
	Column    uint32
}

// Module accumulates everything and is finalized once at the end of a
// compilation.
type Module struct {
	funcTypes map[string]*FunctionType
	typeOrder []*FunctionType

	Functions []*Function
	funcIndex map[string]*Function
	Imports   []*Import
	impIndex  map[string]*Import
	Globals   []*Global
	globIndex map[string]*Global
	Exports   []*Export
	expIndex  map[string]*Export

	Segments      []Segment
	InitialPages  uint32
	MaximumPages  uint32
	MemoryImport  bool
	TableImport   bool
	Table         []string
	StartFunction string

	DebugInfo bool
	debugLocs map[*Node]DebugLocation

	finalized bool
}

// NewModule creates an empty module.
func NewModule() *Module {
	return &Module{
		funcTypes: make(map[string]*FunctionType, 16),
		funcIndex: make(map[string]*Function, 64),
		impIndex:  make(map[string]*Import, 8),
		globIndex: make(map[string]*Global, 16),
		expIndex:  make(map[string]*Export, 16),
	}
}

// typeKey builds the dedup key for a signature.
func typeKey(result types.NativeType, params []types.NativeType) string {
	var sb strings.Builder
	for _, p := range params {
		sb.WriteString(p.String())
		sb.WriteByte('_')
	}
	sb.WriteString("=>")
	sb.WriteString(result.String())
	return sb.String()
}

// AddFunctionType returns the pooled type for (result, params), creating
// it on first use.
func (m *Module) AddFunctionType(result types.NativeType, params []types.NativeType) *FunctionType {
	key := typeKey(result, params)
	if ft, ok := m.funcTypes[key]; ok {
		return ft
	}
	ft := &FunctionType{
		Name:   fmt.Sprintf("t%d", len(m.typeOrder)),
		Result: result,
		Params: params,
	}
	m.funcTypes[key] = ft
	m.typeOrder = append(m.typeOrder, ft)
	return ft
}

// FunctionTypes returns the pooled types in creation order.
func (m *Module) FunctionTypes() []*FunctionType {
	return m.typeOrder
}

// AddFunction registers a finalized body. Re-adding a name is a
// programming error.
func (m *Module) AddFunction(name string, ft *FunctionType, locals []types.NativeType, body *Node) *Function {
	if _, dup := m.funcIndex[name]; dup {
		panic(fmt.Sprintf("ir: duplicate function %q", name))
	}
	f := &Function{Name: name, Type: ft, Locals: locals, Body: body}
	m.Functions = append(m.Functions, f)
	m.funcIndex[name] = f
	return f
}

// FunctionByName finds a registered function.
func (m *Module) FunctionByName(name string) (*Function, bool) {
	f, ok := m.funcIndex[name]
	return f, ok
}

// AddFunctionImport registers a host import under an internal name.
func (m *Module) AddFunctionImport(internalName, module, base string, ft *FunctionType) *Import {
	if imp, ok := m.impIndex[internalName]; ok {
		return imp
	}
	imp := &Import{InternalName: internalName, Module: module, Base: base, Type: ft}
	m.Imports = append(m.Imports, imp)
	m.impIndex[internalName] = imp
	return imp
}

// ImportByName finds a registered import.
func (m *Module) ImportByName(internalName string) (*Import, bool) {
	imp, ok := m.impIndex[internalName]
	return imp, ok
}

// AddGlobal registers a module global.
func (m *Module) AddGlobal(name string, t types.NativeType, mutable bool, init *Node) *Global {
	if g, ok := m.globIndex[name]; ok {
		return g
	}
	g := &Global{Name: name, Type: t, Mutable: mutable, Init: init}
	m.Globals = append(m.Globals, g)
	m.globIndex[name] = g
	return g
}

// AddGlobalImport registers a host-provided global.
func (m *Module) AddGlobalImport(name, module, base string, t types.NativeType) *Global {
	if g, ok := m.globIndex[name]; ok {
		return g
	}
	g := &Global{Name: name, Type: t, Imported: true, ImportModule: module, ImportBase: base}
	m.Globals = append(m.Globals, g)
	m.globIndex[name] = g
	return g
}

// GlobalByName finds a registered global.
func (m *Module) GlobalByName(name string) (*Global, bool) {
	g, ok := m.globIndex[name]
	return g, ok
}

// AddExport maps an external name; the first mapping of a name wins.
func (m *Module) AddExport(kind ExportKind, name, internal string) bool {
	if _, dup := m.expIndex[name]; dup {
		return false
	}
	e := &Export{Kind: kind, Name: name, Internal: internal}
	m.Exports = append(m.Exports, e)
	m.expIndex[name] = e
	return true
}

// ExportByName finds an export by external name.
func (m *Module) ExportByName(name string) (*Export, bool) {
	e, ok := m.expIndex[name]
	return e, ok
}

// AddSegment places static data at offset.
func (m *Module) AddSegment(offset uint32, data []byte) {
	m.Segments = append(m.Segments, Segment{Offset: offset, Data: data})
}

// SetMemory fixes the memory shape. Initial is derived from the byte size
// of static data, maximum is target-specific.
func (m *Module) SetMemory(staticBytes uint64, maximumPages uint32, imported bool) error {
	pages := (staticBytes + PageSize - 1) / PageSize
	initial, err := safecast.Conv[uint32](pages)
	if err != nil {
		return fmt.Errorf("memory too large: %w", err)
	}
	m.InitialPages = initial
	m.MaximumPages = maximumPages
	m.MemoryImport = imported
	return nil
}

// SetFunctionTable fixes the indirect-call table.
func (m *Module) SetFunctionTable(entries []string, imported bool) {
	m.Table = entries
	m.TableImport = imported
}

// SetStart marks the module start function.
func (m *Module) SetStart(name string) {
	m.StartFunction = name
}

// SetDebugLocation records one source location for an emitted node. Only
// effective when debug info was requested.
func (m *Module) SetDebugLocation(n *Node, loc DebugLocation) {
	if !m.DebugInfo || n == nil {
		return
	}
	if m.debugLocs == nil {
		m.debugLocs = make(map[*Node]DebugLocation, 256)
	}
	m.debugLocs[n] = loc
}

// DebugLocationOf returns the recorded location of a node.
func (m *Module) DebugLocationOf(n *Node) (DebugLocation, bool) {
	loc, ok := m.debugLocs[n]
	return loc, ok
}

// Finalize seals the module. Segments are checked for monotonic,
// non-overlapping placement.
func (m *Module) Finalize() error {
	if m.finalized {
		return fmt.Errorf("ir: module finalized twice")
	}
	segs := make([]Segment, len(m.Segments))
	copy(segs, m.Segments)
	sort.Slice(segs, func(i, j int) bool { return segs[i].Offset < segs[j].Offset })
	for i := 1; i < len(segs); i++ {
		prevEnd := uint64(segs[i-1].Offset) + uint64(len(segs[i-1].Data))
		if uint64(segs[i].Offset) < prevEnd {
			return fmt.Errorf("ir: overlapping segments at %d", segs[i].Offset)
		}
	}
	m.finalized = true
	return nil
}

// Finalized reports whether Finalize ran.
func (m *Module) Finalized() bool {
	return m.finalized
}
