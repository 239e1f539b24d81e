package program

import (
	"strings"

	"swell/internal/ast"
	"swell/internal/source"
	"swell/internal/types"
)

// ItemKind orders the contents of a source for the driver walk.
type ItemKind uint8

const (
	// ItemDecl is a top-level declaration.
	ItemDecl ItemKind = iota
	// ItemStmt is a plain top-level statement destined for the start
	// function.
	ItemStmt
	// ItemImport triggers compilation of another source.
	ItemImport
)

// Item is one top-level entry of a source, in textual order.
type Item struct {
	Kind       ItemKind
	Decl       Element
	Stmt       *ast.Stmt
	ImportPath string
	Span       source.Span
}

// Source is one compiled file of the program.
type Source struct {
	File  source.FileID
	Path  string
	Entry bool
	Items []Item

	compiled bool
}

// Compiled reports whether the backend already walked this source.
func (s *Source) Compiled() bool { return s.compiled }

// MarkCompiled guards against walking a source twice.
func (s *Source) MarkCompiled() { s.compiled = true }

// SimpleName returns the path's last segment without extension, used as
// the default import module name for top-level ambients.
func (s *Source) SimpleName() string {
	name := s.Path
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		name = name[:i]
	}
	return name
}

// AddDecl appends a declaration item.
func (s *Source) AddDecl(e Element) {
	s.Items = append(s.Items, Item{Kind: ItemDecl, Decl: e})
}

// AddStmt appends a start-function statement.
func (s *Source) AddStmt(st *ast.Stmt) {
	s.Items = append(s.Items, Item{Kind: ItemStmt, Stmt: st, Span: st.Span})
}

// AddImport appends an import of another source path.
func (s *Source) AddImport(path string, span source.Span) {
	s.Items = append(s.Items, Item{Kind: ItemImport, ImportPath: path, Span: span})
}

// Program is the resolved model the backend consumes. Elements are
// registered by the frontend (or a test) before compilation starts.
type Program struct {
	Options *Options
	Files   *source.FileSet
	Sources []*Source
	// GCImplemented is set by the frontend when the runtime provides GC
	// hooks; managed objects then carry a GC header.
	GCImplemented bool

	scope      map[string]Element
	scopeOrder []string
	classes    []*Class
	bySource   map[string]*Source
}

// NewProgram creates an empty program bound to options and files.
func NewProgram(opts *Options, files *source.FileSet) *Program {
	if opts == nil {
		opts = &Options{}
	}
	if files == nil {
		files = source.NewFileSet()
	}
	return &Program{
		Options:  opts,
		Files:    files,
		scope:    make(map[string]Element, 64),
		bySource: make(map[string]*Source, 4),
	}
}

// AddSource registers a source file.
func (p *Program) AddSource(path string, file source.FileID, entry bool) *Source {
	s := &Source{File: file, Path: path, Entry: entry}
	p.Sources = append(p.Sources, s)
	p.bySource[path] = s
	return s
}

// SourceByPath finds a registered source.
func (p *Program) SourceByPath(path string) (*Source, bool) {
	s, ok := p.bySource[path]
	return s, ok
}

// Register adds a top-level element to the program scope. The first
// registration of a name wins; the caller reports duplicates.
func (p *Program) Register(name string, e Element) bool {
	if _, dup := p.scope[name]; dup {
		return false
	}
	p.scope[name] = e
	p.scopeOrder = append(p.scopeOrder, name)
	return true
}

// Lookup resolves a top-level name.
func (p *Program) Lookup(name string) (Element, bool) {
	e, ok := p.scope[name]
	return e, ok
}

// Elements iterates top-level elements in registration order.
func (p *Program) Elements(fn func(name string, e Element) bool) {
	for _, name := range p.scopeOrder {
		if !fn(name, p.scope[name]) {
			return
		}
	}
}

// ClassByID maps a type handle back to its class.
func (p *Program) ClassByID(id types.ClassID) *Class {
	if id == types.NoClassID || int(id) > len(p.classes) {
		return nil
	}
	return p.classes[id-1]
}

// Extends implements types.ClassSet over resolved classes.
func (p *Program) Extends(sub, base types.ClassID) bool {
	c := p.ClassByID(sub)
	for c != nil {
		if c.ID == base {
			return true
		}
		c = c.Base
	}
	return false
}
