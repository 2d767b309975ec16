// Package notebook implements the cell-based notebook surface over the
// interactive core (spec §4.7, §6 "Notebook.create_cell/execute_cell/
// save_to_file").
package notebook

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/narval-lang/narval/internal/checker"
	"github.com/narval-lang/narval/internal/interactive"
)

// CellKind distinguishes executable cells from prose.
type CellKind int

const (
	CellCode CellKind = iota
	CellMarkdown
)

func (k CellKind) String() string {
	if k == CellMarkdown {
		return "markdown"
	}
	return "code"
}

// Cell is one notebook unit: either narval source or markdown prose.
type Cell struct {
	ID      string
	Kind    CellKind
	Content string
	Epoch   int
	Valid   bool
}

// Notebook is an ordered sequence of cells backed by one interactive Engine,
// so executing a cell participates in the same session-wide invalidation
// tracking a bare REPL would use.
type Notebook struct {
	Title      string
	cells      []*Cell
	byID       map[string]*Cell
	nextID     int
	engine     *interactive.Engine
	epochs     *interactive.EpochManager
	usedByCell map[string]map[string]bool // last successful execution's used-name set, per cell
}

// New creates an empty notebook titled title, wiring a fresh interactive
// engine against global (shared, per spec §9, with whatever checker
// namespace the host process uses elsewhere).
func New(title string, global *checker.Namespace) (*Notebook, error) {
	engine, err := interactive.NewEngine(global, interactive.Hooks{})
	if err != nil {
		return nil, err
	}
	return &Notebook{
		Title:      title,
		byID:       make(map[string]*Cell),
		nextID:     1,
		engine:     engine,
		epochs:     interactive.NewEpochManager(engine.Session),
		usedByCell: make(map[string]map[string]bool),
	}, nil
}

// CreateCell appends a new cell of the given kind and content, returning its
// id (spec §6 "Notebook.create_cell").
func (n *Notebook) CreateCell(kind CellKind, content string) string {
	id := fmt.Sprintf("cell-%d", n.nextID)
	n.nextID++
	cell := &Cell{ID: id, Kind: kind, Content: content, Valid: true}
	n.cells = append(n.cells, cell)
	n.byID[id] = cell
	return id
}

// ExecuteCell runs cellID's content through the interactive engine. Markdown
// cells trivially succeed. A redefinition advances the cell's epoch and
// invalidates every cell (including itself) that reads symbols it just
// redefined (spec §6 "Notebook.execute_cell", §8 "Notebook re-execution
// invalidates dependents").
func (n *Notebook) ExecuteCell(cellID string) (interactive.ExecutionResult, bool) {
	cell, ok := n.byID[cellID]
	if !ok {
		return interactive.ExecutionResult{OK: false, Error: fmt.Errorf("no such cell %q", cellID)}, false
	}
	if cell.Kind == CellMarkdown {
		cell.Valid = true
		return interactive.ExecutionResult{OK: true}, true
	}

	n.epochs.InvalidateEpoch(cellID)
	virtualFile := cellID + ".nv"
	result := n.engine.ExecuteFragment(context.Background(), cellID, virtualFile, cell.Content, interactive.OriginNotebookCell)
	if !result.OK {
		cell.Valid = false
		return result, false
	}

	defined := make(map[string]bool, len(result.DefinedSymbols))
	for _, name := range result.DefinedSymbols {
		defined[name] = true
	}
	used := make(map[string]bool, len(result.UsedSymbols))
	for _, name := range result.UsedSymbols {
		used[name] = true
	}
	n.usedByCell[cellID] = used

	epoch := n.epochs.CreateEpochForCell(cellID, defined)
	n.epochs.CommitEpoch(cellID)
	cell.Epoch = epoch
	cell.Valid = true

	// A redefinition invalidates every session symbol reachable via rdeps
	// (spec §8 "Invalidation closure"); reflect that onto every other cell
	// whose last successful run read one of those now-invalid names.
	for _, other := range n.cells {
		if other.ID == cellID || other.Kind != CellCode || other.Epoch == 0 {
			continue
		}
		if !n.cellStillValid(other) {
			other.Valid = false
		}
	}
	return result, true
}

// cellStillValid reports whether every symbol c's last successful run read
// is still marked valid in the shared session.
func (n *Notebook) cellStillValid(c *Cell) bool {
	for name := range n.usedByCell[c.ID] {
		if !n.engine.Session.IsSymbolValid(name) {
			return false
		}
	}
	return true
}

// Cells returns the notebook's cells in order.
func (n *Notebook) Cells() []*Cell { return n.cells }

// SaveToFile renders the notebook to narval's textual notebook format: a
// `# title` header followed by one `## <cell_id> (code|markdown)
// epoch=N valid=true|false` section per cell (spec §6
// "Notebook.save_to_file").
func (n *Notebook) SaveToFile() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", n.Title)
	for _, c := range n.cells {
		fmt.Fprintf(&b, "## %s (%s) epoch=%d valid=%s\n", c.ID, c.Kind, c.Epoch, strconv.FormatBool(c.Valid))
		b.WriteString(c.Content)
		if !strings.HasSuffix(c.Content, "\n") {
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}
