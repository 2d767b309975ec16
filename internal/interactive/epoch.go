package interactive

// Epoch is one notebook-level generation of committed state: each cell
// execution that redefines symbols advances the epoch, and cells executed
// under a stale epoch are flagged invalid by the notebook layer (spec
// §4.7.1 "EpochManager is a notebook-only epoch-level mirror of
// SessionManager").
type Epoch struct {
	Number  int
	CellID  string
	Defined map[string]bool
}

// EpochManager layers a per-cell epoch counter on top of a SessionManager,
// letting the notebook surface invalidate and recompute cells without
// reaching into session internals directly.
type EpochManager struct {
	session *SessionManager
	epochs  []Epoch
	byCell  map[string]int // cell id -> index into epochs of its latest run
	next    int
}

// NewEpochManager creates an epoch manager wrapping session.
func NewEpochManager(session *SessionManager) *EpochManager {
	return &EpochManager{session: session, byCell: make(map[string]int), next: 1}
}

// CreateEpochForCell allocates a new epoch number for cellID's execution,
// recording which symbols it is about to define (spec §4.7.1
// "create_epoch_for_cell").
func (e *EpochManager) CreateEpochForCell(cellID string, defined map[string]bool) int {
	n := e.next
	e.next++
	e.epochs = append(e.epochs, Epoch{Number: n, CellID: cellID, Defined: defined})
	e.byCell[cellID] = len(e.epochs) - 1
	return n
}

// CommitEpoch finalizes cellID's most recent epoch as the currently valid
// one for every symbol it defines (spec §4.7.1 "commit_epoch"). Validity at
// the symbol level is still owned by the underlying SessionManager; this
// marks each symbol defined by the cell's latest epoch valid again there.
func (e *EpochManager) CommitEpoch(cellID string) {
	idx, ok := e.byCell[cellID]
	if !ok {
		return
	}
	for name := range e.epochs[idx].Defined {
		e.session.ValidateSymbol(name)
	}
}

// InvalidateEpoch marks cellID's last recorded epoch (and by extension every
// symbol it defined, cascading through the session's dependency graph) as
// invalid (spec §4.7.1 "invalidate_epoch").
func (e *EpochManager) InvalidateEpoch(cellID string) {
	idx, ok := e.byCell[cellID]
	if !ok {
		return
	}
	for name := range e.epochs[idx].Defined {
		e.session.InvalidateSymbol(name)
	}
}

// EpochOf returns the epoch number cellID last ran under, if any.
func (e *EpochManager) EpochOf(cellID string) (int, bool) {
	idx, ok := e.byCell[cellID]
	if !ok {
		return 0, false
	}
	return e.epochs[idx].Number, true
}
