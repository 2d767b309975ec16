// Command narval is the compiler driver and interactive frontend (spec §6
// "External interfaces"): `narval <source>` ahead-of-time compiles and runs
// a program, while `narval repl` and `narval notebook` expose the
// incremental core.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/narval-lang/narval/internal/checker"
	"github.com/narval-lang/narval/internal/pipeline"
	"github.com/narval-lang/narval/internal/repl"
)

var (
	runtimeObj string
	stdObj     string
	keepIR     bool
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "narval",
		Short:         "narval language compiler and interactive tools",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&runtimeObj, "runtime", "runtime.o", "precompiled runtime object to link against")
	root.PersistentFlags().StringVar(&stdObj, "stdlib", "std.o", "precompiled standard library object to link against")
	root.PersistentFlags().BoolVar(&keepIR, "emit-ll", true, "keep the emitted .ll IR dump alongside the executable")

	root.AddCommand(buildCmd(), runCmd(), replCmd(), notebookCmd())
	// Bare `narval <source>` behaves like `narval run <source>` (spec §6
	// "narval <source> — single positional argument").
	root.RunE = func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return cmd.Help()
		}
		return runSource(args[0])
	}
	root.Args = cobra.MaximumNArgs(1)
	return root
}

func buildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "build <source>",
		Short: "compile a narval source file to an executable without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, _, exe, err := compileAndLink(args[0])
			if err != nil {
				return err
			}
			fmt.Println(exe)
			return nil
		},
	}
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <source>",
		Short: "compile and immediately run a narval source file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSource(args[0])
		},
	}
}

func replCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "start an interactive narval session",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repl.New(checker.NewNamespace())
			if err != nil {
				return err
			}
			defer r.Close()
			return r.Run()
		},
	}
}

func notebookCmd() *cobra.Command {
	var title string
	cmd := &cobra.Command{
		Use:   "notebook <file>",
		Short: "load and run a narval notebook file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return fmt.Errorf("loading a saved notebook file is not yet wired into the CLI; use the internal/notebook package directly")
		},
	}
	cmd.Flags().StringVar(&title, "title", "untitled", "notebook title used when creating a new notebook")
	return cmd
}

// compileAndLink runs the full pipeline and emits artifacts next to source
// (spec §6 "on-disk artifacts").
func compileAndLink(source string) (llPath, objPath, exePath string, err error) {
	result, err := pipeline.Compile(source)
	if err != nil {
		if result != nil && result.Sink != nil {
			result.Sink.Print(func(s string) { fmt.Fprintln(os.Stderr, s) })
		}
		return "", "", "", err
	}
	llPath, objPath, exePath, err = pipeline.BuildArtifacts(result, source, runtimeObj, stdObj)
	if err == nil && !keepIR {
		_ = os.Remove(llPath)
	}
	return llPath, objPath, exePath, err
}

// runSource compiles source, links it, runs the resulting executable, and
// exits with its exit code (spec §6 "Exits via _exit(returncode)").
func runSource(source string) error {
	_, _, exe, err := compileAndLink(source)
	if err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("%v", err))
		os.Exit(1)
	}
	return execAndPropagate(exe)
}
