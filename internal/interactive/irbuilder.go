package interactive

import (
	"fmt"

	"github.com/llir/llvm/ir"

	"github.com/narval-lang/narval/internal/checker"
	narvalir "github.com/narval-lang/narval/internal/ir"
)

// fragmentModule is one committed fragment's compiled form: the llvm module
// it lowered to, plus the symbol names it defines (for invalidation).
type fragmentModule struct {
	id      string
	module  *ir.Module
	defines map[string]bool
	uses    map[string]bool
	valid   bool
}

// IrIncrementalBuilder keeps one LLVM module per committed fragment and
// tracks which fragments depend on which symbols, so that redefining a
// symbol can invalidate and later rebuild only the fragments that used it
// (spec §4.7.3 "IrIncrementalBuilder").
type IrIncrementalBuilder struct {
	fragments map[string]*fragmentModule
	graph     *depGraph // keyed by fragment id -> set of symbol names it uses
}

// NewIrIncrementalBuilder creates an empty builder.
func NewIrIncrementalBuilder() *IrIncrementalBuilder {
	return &IrIncrementalBuilder{fragments: make(map[string]*fragmentModule), graph: newDepGraph()}
}

// CommitFragmentInterface lowers unit's program (already checked by c) into
// its own module and registers it, recording which session symbols it uses
// so a later redefinition can find it again (spec §4.7.3
// "commit_fragment_interface").
func (b *IrIncrementalBuilder) CommitFragmentInterface(unit *IncrementalUnit, c *checker.Checker) error {
	m, err := narvalir.Lower(unit.Program, c, unit.VirtualFile)
	if err != nil {
		return fmt.Errorf("lowering fragment %s: %w", unit.ID, err)
	}
	b.fragments[unit.ID] = &fragmentModule{
		id:      unit.ID,
		module:  m,
		defines: unit.Defined,
		uses:    unit.Used,
		valid:   true,
	}
	deps := make(map[string]bool, len(unit.Used))
	for name := range unit.Used {
		deps[name] = true
	}
	b.graph.setDeps(unit.ID, deps)
	return nil
}

// InvalidateFragment marks fragmentID's module invalid. Spec §4.7.3 describes
// this as a BFS over rdeps from the symbols a fragment defines; since this
// builder's graph is keyed by fragment id rather than by symbol, it walks
// every fragment that used any name fragmentID defines, transitively.
func (b *IrIncrementalBuilder) InvalidateFragment(fragmentID string) {
	frag, ok := b.fragments[fragmentID]
	if !ok {
		return
	}
	frag.valid = false
	visited := map[string]bool{fragmentID: true}
	queue := []string{fragmentID}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		curFrag := b.fragments[cur]
		if curFrag == nil {
			continue
		}
		for otherID, other := range b.fragments {
			if visited[otherID] {
				continue
			}
			for name := range curFrag.defines {
				if other.uses[name] {
					other.valid = false
					visited[otherID] = true
					queue = append(queue, otherID)
					break
				}
			}
		}
	}
}

// RebuildFragment re-lowers unit (after the caller has re-analyzed it) and
// replaces the stored module, marking it valid again (spec §4.7.3
// "rebuild_fragment").
func (b *IrIncrementalBuilder) RebuildFragment(unit *IncrementalUnit, c *checker.Checker) error {
	return b.CommitFragmentInterface(unit, c)
}

// IsValid reports whether fragmentID's last compiled module is still valid.
func (b *IrIncrementalBuilder) IsValid(fragmentID string) bool {
	frag, ok := b.fragments[fragmentID]
	return ok && frag.valid
}

// Module returns the compiled module for fragmentID, if any.
func (b *IrIncrementalBuilder) Module(fragmentID string) (*ir.Module, bool) {
	frag, ok := b.fragments[fragmentID]
	if !ok {
		return nil, false
	}
	return frag.module, true
}

// RemoveFragment drops fragmentID entirely (e.g. a notebook cell was deleted).
func (b *IrIncrementalBuilder) RemoveFragment(fragmentID string) {
	delete(b.fragments, fragmentID)
}
