package main

import (
	"os"
	"os/exec"
)

// execAndPropagate runs the compiled executable at path, forwarding its
// stdio, and exits this process with the child's exit code (spec §6 "Exits
// via _exit(returncode) where returncode is the top-level result value
// coerced to i32, defaulting to 0 if none").
func execAndPropagate(path string) error {
	cmd := exec.Command(path)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	err := cmd.Run()
	if err == nil {
		os.Exit(0)
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		os.Exit(exitErr.ExitCode())
	}
	return err
}
