// Package pipeline ties the lexer, parser, checker, module manager and IR
// lowering into the shared build used by both the AOT driver (cmd/narval)
// and anything else that needs a whole compiled program rather than the
// interactive core's one-fragment-at-a-time flow (spec §4.4–§4.6, §6 "AOT
// driver").
package pipeline

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/narval-lang/narval/internal/checker"
	"github.com/narval-lang/narval/internal/diagnostics"
	narvalir "github.com/narval-lang/narval/internal/ir"
	"github.com/narval-lang/narval/internal/module"
)

// Compile reads rootPath, resolves and checks its whole import graph via the
// module manager, and lowers the combined program to a single LLVM module
// (spec §4.4 "get_combined_ast" feeding §4.6 lowering).
func Compile(rootPath string) (*CompileResult, error) {
	src, err := os.ReadFile(rootPath)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", rootPath, err)
	}

	sink := diagnostics.NewSink()
	sink.SetSource(rootPath, string(src))

	mgr := module.New(sink, module.DepthCheck)
	abs, err := filepath.Abs(rootPath)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", rootPath, err)
	}
	rootName := filepath.Base(abs)
	if _, err := mgr.CompileModule(rootName, abs, filepath.Dir(abs)); err != nil {
		return nil, fmt.Errorf("compiling %s: %w", rootPath, err)
	}
	if sink.HasErrors() {
		return &CompileResult{Sink: sink}, fmt.Errorf("compilation failed with %d error(s)", len(sink.All()))
	}

	combined, err := mgr.GetCombinedAST(abs)
	if err != nil {
		return nil, fmt.Errorf("combining module graph: %w", err)
	}

	// Re-check the combined program as one unit so IR lowering's checker
	// (which resolves every expression's final concrete type) sees every
	// global in one namespace, matching §4.6's "a single GenContext per
	// compiled program" assumption.
	c := checker.New(nil, sink, mgr)
	c.SetFilename(rootName)
	c.CheckProgram(combined)
	if sink.HasErrors() {
		return &CompileResult{Sink: sink}, fmt.Errorf("whole-program check failed with %d error(s)", len(sink.All()))
	}

	m, err := narvalir.Lower(combined, c, rootName)
	if err != nil {
		return &CompileResult{Sink: sink}, fmt.Errorf("lowering failed: %w", err)
	}

	return &CompileResult{LLVMModule: m, Sink: sink, RootModule: rootName}, nil
}

// BuildArtifacts writes <program>.ll, assembles and links <program>.o and the
// final executable by shelling out to the system clang/lld toolchain, the
// same convention the interactive core's JitExecutionEngine already uses to
// drive `lli` (spec §6 "linker invocation convention").
func BuildArtifacts(result *CompileResult, programPath, runtimeObj, stdObj string) (llPath, objPath, exePath string, err error) {
	base := programPath
	if ext := filepath.Ext(base); ext != "" {
		base = base[:len(base)-len(ext)]
	}

	llPath = base + ".ll"
	if err := os.WriteFile(llPath, []byte(result.LLVMModule.String()), 0o644); err != nil {
		return "", "", "", fmt.Errorf("writing %s: %w", llPath, err)
	}

	objPath = base + ".o"
	llc := exec.Command("llc", "-filetype=obj", "-o", objPath, llPath)
	if out, err := llc.CombinedOutput(); err != nil {
		return llPath, "", "", fmt.Errorf("llc failed: %w\n%s", err, out)
	}

	exePath = base
	args := []string{"-e", "main.start", "-nostartfiles", "-o", exePath, objPath}
	if runtimeObj != "" {
		args = append(args, runtimeObj)
	}
	if stdObj != "" {
		args = append(args, stdObj)
	}
	link := exec.Command("clang", args...)
	if out, err := link.CombinedOutput(); err != nil {
		return llPath, objPath, "", fmt.Errorf("linking failed: %w\n%s", err, out)
	}
	return llPath, objPath, exePath, nil
}

// CompileResult is a whole program ready for artifact emission.
type CompileResult struct {
	LLVMModule interface {
		String() string
	}
	Sink       *diagnostics.Sink
	RootModule string
}
