// Package shim implements the shim multiplexer (C14): when ruyi's
// self-executable is invoked under any name other than "ruyi", it looks
// up the enclosing venv, finds the real binary for that name, splices in
// the target's toolchain flags if it's a compiler/linker driver, and
// replaces itself in-process with the real binary (execv-style), so no
// shim process lingers. Grounded on ruyi/mux/*.py's probe/runtime/venv
// lookup and spec.md §4.14.
package shim

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ruyisdk/ruyi-go/internal/ruyierr"
	"github.com/ruyisdk/ruyi-go/internal/venv"
)

// EnvVenvOverride lets a caller pin the enclosing venv root explicitly,
// bypassing upward directory search (used by tests and by nested
// invocations that already know their venv).
const EnvVenvOverride = "RUYI_VENV"

// compilerDriverRE matches argv[0] basenames that take flags spliced
// between the program name and user arguments: gcc/g++/clang/clang++
// drivers and their target-qualified forms, per spec.md §4.14 step 4.
var compilerDriverRE = regexp.MustCompile(`(^|-)(g?cc|c\+\+|g\+\+|clang|clang\+\+)$`)

func isCompilerDriver(basename string) bool {
	return compilerDriverRE.MatchString(basename)
}

// FindVenvRoot locates the enclosing venv by walking upward from the
// shim's own path (argv[0]'s parent-of-parent, i.e. bin/.. ) looking for
// ruyi-venv.toml, honoring EnvVenvOverride first.
func FindVenvRoot(argv0 string) (string, error) {
	if override := os.Getenv(EnvVenvOverride); override != "" {
		return override, nil
	}

	abs, err := filepath.Abs(argv0)
	if err != nil {
		return "", err
	}
	dir := filepath.Dir(filepath.Dir(abs)) // bin/<name> -> bin -> venv root
	for {
		if _, err := os.Stat(filepath.Join(dir, "ruyi-venv.toml")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", ruyierr.New("shim", ruyierr.NotInstallable, argv0,
		"could not locate an enclosing ruyi venv (no ruyi-venv.toml found)", nil)
}

// Plan is a fully resolved shim invocation: the real binary to exec and
// the argv to pass it.
type Plan struct {
	RealPath string
	Argv     []string
}

// Resolve determines how to dispatch one shim invocation, spec.md §4.14
// steps 2-4.
func Resolve(venvRoot string, argv []string) (*Plan, error) {
	if len(argv) == 0 {
		return nil, ruyierr.New("shim", ruyierr.NotInstallable, "", "empty argv", nil)
	}
	basename := filepath.Base(argv[0])

	cache, err := venv.LoadCache(filepath.Join(venvRoot, "ruyi-cache.v2.toml"))
	if err != nil {
		return nil, err
	}

	meta, ok := cache.CmdMetadataMap[basename]
	if !ok {
		return nil, ruyierr.New("shim", ruyierr.NotInstallable, basename,
			fmt.Sprintf("command %q is not provided by this venv", basename), nil)
	}

	target, ok := cache.Targets[meta.Target]
	if !ok {
		return nil, ruyierr.New("shim", ruyierr.NotInstallable, meta.Target,
			fmt.Sprintf("venv cache has no entry for target %q", meta.Target), nil)
	}

	realPath := meta.RealPath
	if realPath == "" {
		realPath = filepath.Join(target.ToolchainBindir, basename)
	}

	args := argv[1:]
	if isCompilerDriver(basename) && target.ToolchainFlags != "" {
		splice := strings.Fields(target.ToolchainFlags)
		args = append(append([]string{}, splice...), args...)
	}

	return &Plan{RealPath: realPath, Argv: append([]string{realPath}, args...)}, nil
}
