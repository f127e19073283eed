//go:build windows

package shim

import (
	"os"
	"os/exec"
)

// Exec has no execv-equivalent on Windows, so it spawns the real binary,
// waits, and forwards the child's exit code, the fallback spec.md §4.14
// names for platforms lacking syscall.Exec.
func Exec(p *Plan) error {
	cmd := exec.Command(p.RealPath, p.Argv[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			os.Exit(exitErr.ExitCode())
		}
		return err
	}
	os.Exit(0)
	return nil
}
