package interactive

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/llir/llvm/ir"
)

// JitExecutionEngine executes committed fragment modules by shelling out to
// the system LLVM interpreter (spec §4.7.4 "JitExecutionEngine"). llir/llvm
// is a pure IR builder with no execution engine of its own, so — exactly
// the way the AOT driver in cmd/narval links via the system clang/lld — this
// writes each module's textual IR to a temp file and runs it with `lli`,
// the same toolchain convention the rest of this repo already depends on.
type JitExecutionEngine struct {
	dir      string // scratch directory for emitted .ll files
	modules  map[string]string // fragment id -> path of its emitted .ll file
	liliPath string
}

// NewJitExecutionEngine creates an engine scoped to a fresh temp directory.
func NewJitExecutionEngine() (*JitExecutionEngine, error) {
	dir, err := os.MkdirTemp("", "narval-jit-*")
	if err != nil {
		return nil, fmt.Errorf("creating jit scratch dir: %w", err)
	}
	liliPath, err := exec.LookPath("lli")
	if err != nil {
		liliPath = "lli" // resolved lazily; surfaced as an exec error at run time
	}
	return &JitExecutionEngine{dir: dir, modules: make(map[string]string), liliPath: liliPath}, nil
}

// AddModule registers m under fragmentID, writing its textual IR to the
// scratch directory (spec §4.7.4 "add_module").
func (e *JitExecutionEngine) AddModule(fragmentID string, m *ir.Module) error {
	path := filepath.Join(e.dir, fragmentID+".ll")
	if err := os.WriteFile(path, []byte(m.String()), 0o644); err != nil {
		return fmt.Errorf("writing fragment module %s: %w", fragmentID, err)
	}
	e.modules[fragmentID] = path
	return nil
}

// RemoveModule forgets fragmentID's emitted module (spec §4.7.4
// "remove_module"), used when a fragment is invalidated and about to be
// rebuilt under the same id.
func (e *JitExecutionEngine) RemoveModule(fragmentID string) {
	if path, ok := e.modules[fragmentID]; ok {
		os.Remove(path)
		delete(e.modules, fragmentID)
	}
}

// ExecuteVoidFunction runs fragmentID's module through `lli`, invoking its
// entry function (spec §4.7.4 "execute_void_function"). Output captured on
// stdout/stderr is returned so the REPL/notebook can display it.
func (e *JitExecutionEngine) ExecuteVoidFunction(ctx context.Context, fragmentID, entry string) (stdout, stderr string, err error) {
	path, ok := e.modules[fragmentID]
	if !ok {
		return "", "", fmt.Errorf("no module registered for fragment %q", fragmentID)
	}
	args := []string{path}
	if entry != "" {
		args = append([]string{"-entry-function=" + entry}, args...)
	}
	cmd := exec.CommandContext(ctx, e.liliPath, args...)
	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf
	runErr := cmd.Run()
	return outBuf.String(), errBuf.String(), runErr
}

// Close tears down the scratch directory.
func (e *JitExecutionEngine) Close() error {
	return os.RemoveAll(e.dir)
}
