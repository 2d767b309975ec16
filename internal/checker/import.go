package checker

import "github.com/narval-lang/narval/internal/ast"

// checkImportStmt resolves a `from ... import ...` statement (spec §4.5):
// it asks the resolver to compile-and-check the target module, then binds
// each requested name (or its alias) into the current scope at the type the
// target module exported it at.
func (c *Checker) checkImportStmt(s *ast.ImportStmt) {
	if c.resolver == nil {
		c.errorAt(s, "imports are not supported in this context")
		return
	}
	fromFile := s.ImporterFile
	if fromFile == "" {
		fromFile = c.currentFilename
	}
	exports, err := c.resolver.ResolveImport(fromFile, s.ModulePath)
	if err != nil {
		c.sink.ImportError(s.Pos, s.ModulePath, "", "%s", err)
		return
	}
	for _, item := range s.Items {
		t, ok := exports[item.Name]
		if !ok {
			c.errorAt(s, "module %q has no exported symbol %q", s.ModulePath, item.Name)
			continue
		}
		bindName := item.Name
		if item.Alias != "" {
			bindName = item.Alias
		}
		c.currentScope().Define(bindName, t)
		c.Types[bindName] = t
	}
}
