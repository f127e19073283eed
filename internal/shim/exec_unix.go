//go:build !windows

package shim

import (
	"os"
	"syscall"
)

// Exec replaces the current process image with the real binary, the
// execv-style in-place replacement spec.md §4.14 step 5 calls for: no
// shim process lingers behind the real one.
func Exec(p *Plan) error {
	return syscall.Exec(p.RealPath, p.Argv, os.Environ())
}
