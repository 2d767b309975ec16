// Package repl implements the interactive line-oriented frontend over the
// incremental core, using peterh/liner for line editing and history the way
// narval's own teacher stack uses it for its shell prompts (spec §6
// "Repl.execute_line").
package repl

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/peterh/liner"

	"github.com/narval-lang/narval/internal/checker"
	"github.com/narval-lang/narval/internal/interactive"
)

const prompt = "narval> "

// autoPrintSuppressed lists the builtin call expressions whose result is never
// auto-printed even when they appear as the fragment's trailing expression
// (spec §8 "Auto-print triggers... unless the callee is the identifier
// write").
var autoPrintSuppressed = map[string]bool{"write": true}

// Repl wraps an interactive.Engine with line-by-line REPL semantics: each
// submitted line is its own fragment, auto-printed unless it was a bare
// `write(...)` call (spec §8 property 10).
type Repl struct {
	engine   *interactive.Engine
	line     *liner.State
	nextLine int
}

// New creates a REPL sharing global as the checker's root namespace.
func New(global *checker.Namespace) (*Repl, error) {
	engine, err := interactive.NewEngine(global, interactive.Hooks{})
	if err != nil {
		return nil, err
	}
	return &Repl{engine: engine, line: liner.NewLiner(), nextLine: 1}, nil
}

// Close releases the underlying line editor.
func (r *Repl) Close() error { return r.line.Close() }

// ExecuteLine runs one line of source as its own fragment (spec §6
// "Repl.execute_line(text) -> ExecutionResult").
func (r *Repl) ExecuteLine(text string) interactive.ExecutionResult {
	id := fmt.Sprintf("repl-%d", r.nextLine)
	r.nextLine++
	source := withAutoPrint(text)
	result := r.engine.ExecuteFragment(context.Background(), id, id+".nv", source, interactive.OriginReplLine)
	return result
}

// withAutoPrint wraps a bare trailing expression statement in a `write(...)`
// call so the engine's normal execution path prints it, unless it is
// already a suppressed builtin call (spec §8 property 10). Statements
// (declarations, control flow, imports) are left untouched.
func withAutoPrint(text string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return text
	}
	if strings.HasSuffix(trimmed, "}") || strings.HasSuffix(trimmed, ";") {
		// Looks like a full statement already (declaration, control-flow
		// block, or explicit `;`-terminated statement); don't second-guess it.
		if !looksLikeBareExpr(trimmed) {
			return text
		}
	}
	for callee := range autoPrintSuppressed {
		if strings.HasPrefix(trimmed, callee+"(") {
			return text
		}
	}
	expr := strings.TrimSuffix(trimmed, ";")
	return "write(" + expr + ");"
}

// looksLikeBareExpr is a conservative heuristic: a line is only treated as a
// bare expression (candidate for auto-print) if it doesn't start with a
// statement keyword and doesn't contain a top-level `:` declaration marker
// before its first `;`/`}`.
func looksLikeBareExpr(trimmed string) bool {
	for _, kw := range []string{"if ", "for ", "while ", "loop ", "match ", "def ", "label ", "return", "break", "continue", "from "} {
		if strings.HasPrefix(trimmed, kw) {
			return false
		}
	}
	head := trimmed
	if i := strings.IndexAny(head, ";}"); i >= 0 {
		head = head[:i]
	}
	return !strings.Contains(head, ":")
}

// historyFile mirrors the teacher REPL's convention of a per-tool history
// file under the OS temp directory, loaded on start and saved on exit.
var historyFile = filepath.Join(os.TempDir(), ".narval_history")

// Run drives an interactive read-eval-print loop against stdin until EOF or
// an explicit `:quit`.
func (r *Repl) Run() error {
	defer r.line.Close()

	if f, err := os.Open(historyFile); err == nil {
		_, _ = r.line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if f, err := os.Create(historyFile); err == nil {
			_, _ = r.line.WriteHistory(f)
			f.Close()
		}
	}()

	for {
		text, err := r.line.Prompt(prompt)
		if err == io.EOF {
			fmt.Println(color.GreenString("\nGoodbye!"))
			return nil
		}
		if err != nil {
			return err
		}
		trimmed := strings.TrimSpace(text)
		if trimmed == ":quit" || trimmed == ":q" {
			fmt.Println(color.GreenString("Goodbye!"))
			return nil
		}
		if trimmed == "" {
			continue
		}
		r.line.AppendHistory(text)

		result := r.ExecuteLine(text)
		if !result.OK {
			fmt.Println(color.RedString("error: %v", result.Error))
			continue
		}
		if result.Output != "" {
			fmt.Print(result.Output)
		}
	}
}
