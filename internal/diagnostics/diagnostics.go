// Package diagnostics provides the narval compiler's error/warning
// collection and source-context formatting.
//
// The original implementation this was distilled from used static,
// process-global sets to deduplicate import diagnostics shared between the
// module-manager pass and the whole-program checker pass. Sink replaces
// that with an explicit, injected collaborator: Checker and ModuleManager
// both take a *Sink, so dedup state lives exactly as long as the compile
// session that owns it and never leaks across unrelated Checkers (see
// DESIGN.md, "internal/diagnostics").
package diagnostics

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"github.com/narval-lang/narval/internal/token"
)

// Severity classifies a Diagnostic.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

func (s Severity) String() string {
	if s == SeverityWarning {
		return "WARNING"
	}
	return "ERROR"
}

// Diagnostic is one reported compiler message.
type Diagnostic struct {
	Severity Severity
	Pos      token.Position
	Message  string
}

// Sink collects diagnostics for one compile session (a single AOT build, a
// single REPL fragment, or a single notebook cell execution) and
// deduplicates them by source position and message.
type Sink struct {
	diags       []Diagnostic
	seenNode    map[string]bool // keyed by file:line:col:message (see nodeKey)
	seenImport  map[string]bool // keyed by file:line:col:module_path:item:message
	source      map[string]string
}

// NewSink creates an empty diagnostic sink.
func NewSink() *Sink {
	return &Sink{
		seenNode:   make(map[string]bool),
		seenImport: make(map[string]bool),
		source:     make(map[string]string),
	}
}

// SetSource registers the text of a file so later diagnostics can render an
// underlined source-context line.
func (s *Sink) SetSource(file, text string) { s.source[file] = text }

// nodeKey dedups ordinary checker errors by (file:line:col:message); the
// original process-global scheme kept a raw AST node pointer as the key,
// but in this implementation nodes aren't pointer-stable across clones, so
// position+message is the dedup key instead (same practical effect: the
// same fault at the same spot is reported once).
func nodeKey(pos token.Position, msg string) string {
	return fmt.Sprintf("%s:%d:%d:%s", pos.File, pos.Line, pos.ColStart, msg)
}

// Error records a checker-style error, deduplicated by source position and
// message text.
func (s *Sink) Error(pos token.Position, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	key := nodeKey(pos, msg)
	if s.seenNode[key] {
		return
	}
	s.seenNode[key] = true
	s.diags = append(s.diags, Diagnostic{Severity: SeverityError, Pos: pos, Message: msg})
}

// Warning records a non-fatal diagnostic (e.g. interactive redefinition).
func (s *Sink) Warning(pos token.Position, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	s.diags = append(s.diags, Diagnostic{Severity: SeverityWarning, Pos: pos, Message: msg})
}

// ImportError records an import-resolution diagnostic, deduplicated by
// (file:line:col:modulePath:item:message) so a failure already reported by
// the module manager's pre-check is not re-emitted by the whole-program
// checker pass (spec §4.5 step 5, §7 duplicate suppression).
func (s *Sink) ImportError(pos token.Position, modulePath, item, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	key := fmt.Sprintf("%s:%d:%d:%s:%s:%s", pos.File, pos.Line, pos.ColStart, modulePath, item, msg)
	if s.seenImport[key] {
		return
	}
	s.seenImport[key] = true
	s.diags = append(s.diags, Diagnostic{Severity: SeverityError, Pos: pos, Message: msg})
}

// HasErrors reports whether any SeverityError diagnostic was recorded.
func (s *Sink) HasErrors() bool {
	for _, d := range s.diags {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// All returns every recorded diagnostic in report order.
func (s *Sink) All() []Diagnostic { return s.diags }

// First returns the first error-severity diagnostic, or nil if none.
func (s *Sink) First() *Diagnostic {
	for _, d := range s.diags {
		if d.Severity == SeverityError {
			return &d
		}
	}
	return nil
}

// Format renders a diagnostic the way the parser's hand-rolled diagnostics
// do: file:line:col, severity, message, and (if the source was registered
// via SetSource) the offending line with the faulting span underlined.
func (s *Sink) Format(d Diagnostic) string {
	var sevColor func(a ...any) string
	if d.Severity == SeverityError {
		sevColor = color.New(color.FgRed, color.Bold).SprintFunc()
	} else {
		sevColor = color.New(color.FgYellow, color.Bold).SprintFunc()
	}
	header := fmt.Sprintf("%s: %s: %s", d.Pos.String(), sevColor(d.Severity.String()), d.Message)

	src, ok := s.source[d.Pos.File]
	if !ok {
		return header
	}
	lines := strings.Split(src, "\n")
	if d.Pos.Line < 1 || d.Pos.Line > len(lines) {
		return header
	}
	line := lines[d.Pos.Line-1]
	colStart := d.Pos.ColStart
	colEnd := d.Pos.ColEnd
	if colEnd <= colStart {
		colEnd = colStart + 1
	}
	if colStart < 1 {
		colStart = 1
	}
	if colEnd-1 > len(line) {
		colEnd = len(line) + 1
	}
	underline := strings.Repeat(" ", colStart-1) + color.CyanString(strings.Repeat("^", colEnd-colStart))
	return fmt.Sprintf("%s\n  %s\n  %s", header, line, underline)
}

// Print writes every diagnostic to w in report order.
func (s *Sink) Print(w func(string)) {
	for _, d := range s.diags {
		w(s.Format(d))
	}
}
