// Package module implements the narval module manager (spec §4.4): it
// lexes, parses, and (optionally) checks a tree of imported files, resolves
// relative import paths against the filesystem, detects import cycles, and
// merges every reachable module's AST into one combined Program in
// dependency order.
package module

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/narval-lang/narval/internal/ast"
	"github.com/narval-lang/narval/internal/checker"
	"github.com/narval-lang/narval/internal/diagnostics"
	"github.com/narval-lang/narval/internal/parser"
	"github.com/narval-lang/narval/internal/token"
	"github.com/narval-lang/narval/internal/types"
)

// Depth selects how far the module manager drives the pipeline for a given
// module (spec §4.4 "configuration flags select pipeline depth").
type Depth int

const (
	// DepthParse only lexes and parses; no checker runs.
	DepthParse Depth = iota
	// DepthCheck parses and runs a nested Checker over the result.
	DepthCheck
)

// Module is one loaded source file: its tokens, parsed AST, and the
// canonical names of the modules it imports.
type Module struct {
	Name         string // canonical path, used as the cache/visited key
	Source       string
	Directory    string
	Dependencies []string
	AST          *ast.Program
	Exports      map[string]types.Type // populated once Depth >= DepthCheck
}

// Manager owns the module cache and drives compile_module/get_combined_ast.
type Manager struct {
	Depth   Depth
	Sink    *diagnostics.Sink
	modules map[string]*Module
	visited map[string]bool
	order   []string // canonical names in dependency (import-before-importer) order
}

// New creates a Manager that reports diagnostics to sink and resolves
// imports to at most depth.
func New(sink *diagnostics.Sink, depth Depth) *Manager {
	if sink == nil {
		sink = diagnostics.NewSink()
	}
	return &Manager{
		Depth:   depth,
		Sink:    sink,
		modules: make(map[string]*Module),
		visited: make(map[string]bool),
	}
}

// CompileModule lexes, parses, optionally checks, and recursively resolves
// the imports of the file at path (spec §4.4 "compile_module"). name is the
// canonical key this module caches under; path is resolved relative to
// fromDir when fromDir is non-empty and path is not already absolute.
func (m *Manager) CompileModule(name, path, fromDir string) (*Module, error) {
	canonical := canonicalize(path, fromDir)
	if mod, ok := m.modules[canonical]; ok {
		return mod, nil
	}
	if m.visited[canonical] {
		return nil, fmt.Errorf("Ciclo de importação detectado: %s", canonical)
	}
	m.visited[canonical] = true
	defer delete(m.visited, canonical)

	src, err := os.ReadFile(canonical)
	if err != nil {
		return nil, fmt.Errorf("cannot read module %q: %w", canonical, err)
	}
	m.Sink.SetSource(canonical, string(src))

	prog, imports, perr := parser.Parse(string(src), canonical)
	if perr != nil {
		m.Sink.Error(positionOf(perr), "%s", perr)
		return nil, perr
	}

	mod := &Module{
		Name:      canonical,
		Source:    string(src),
		Directory: filepath.Dir(canonical),
		AST:       prog,
	}

	importsByLine := make(map[int]token.ImportInfo, len(imports))
	for _, info := range imports {
		importsByLine[info.Line] = info
	}

	for _, stmt := range prog.Body {
		imp, ok := stmt.(*ast.ImportStmt)
		if !ok {
			continue
		}
		if info, ok := importsByLine[imp.Pos.Line]; ok {
			imp.Items = info.Items
		}
		dep, err := m.CompileModule(imp.ModulePath, imp.ModulePath, mod.Directory)
		if err != nil {
			m.Sink.ImportError(imp.Pos, imp.ModulePath, "", "%s", err)
			continue
		}
		mod.Dependencies = append(mod.Dependencies, dep.Name)
	}

	if m.Depth >= DepthCheck {
		c := checker.New(nil, m.Sink, m)
		c.SetFilename(canonical)
		c.CheckProgram(prog)
		mod.Exports = c.GlobalScope().Names2TypeMap()
	}

	m.modules[canonical] = mod
	m.order = append(m.order, canonical)
	return mod, nil
}

// ResolveImport implements checker.ImportResolver: it compiles (or returns
// the cached compilation of) modulePath as seen from fromFile's directory
// and returns its exported symbol table.
func (m *Manager) ResolveImport(fromFile, modulePath string) (map[string]types.Type, error) {
	dir := filepath.Dir(fromFile)
	mod, err := m.CompileModule(modulePath, modulePath, dir)
	if err != nil {
		return nil, err
	}
	if mod.Exports == nil {
		return map[string]types.Type{}, nil
	}
	return mod.Exports, nil
}

// GetCombinedAST returns a Program whose body is the concatenation of every
// loaded module's statements, imports before importers (spec §4.4
// "get_combined_ast"), rooted at rootName.
func (m *Manager) GetCombinedAST(rootName string) (*ast.Program, error) {
	root, ok := m.modules[canonicalize(rootName, "")]
	if !ok {
		return nil, fmt.Errorf("module %q was not compiled", rootName)
	}
	combined := &ast.Program{Pos: root.AST.Pos}
	seen := make(map[string]bool)
	var walk func(mod *Module)
	walk = func(mod *Module) {
		if seen[mod.Name] {
			return
		}
		seen[mod.Name] = true
		for _, dep := range mod.Dependencies {
			if depMod, ok := m.modules[dep]; ok {
				walk(depMod)
			}
		}
		combined.Body = append(combined.Body, mod.AST.Body...)
	}
	walk(root)
	return combined, nil
}

// Modules returns every module compiled so far, keyed by canonical name.
func (m *Manager) Modules() map[string]*Module { return m.modules }

// positionOf extracts the source position from a parser error so it can be
// recorded in the Sink alongside the checker's own diagnostics.
func positionOf(err error) token.Position {
	var perr *parser.Error
	if errors.As(err, &perr) {
		return perr.Pos
	}
	return token.Position{}
}

func canonicalize(path, fromDir string) string {
	p := path
	if !filepath.IsAbs(p) && fromDir != "" {
		p = filepath.Join(fromDir, p)
	}
	if abs, err := filepath.Abs(p); err == nil {
		p = abs
	}
	if clean, err := filepath.EvalSymlinks(p); err == nil {
		return clean
	}
	return filepath.Clean(p)
}
