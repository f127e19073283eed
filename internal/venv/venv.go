// Package venv implements the venv synthesizer (C13): materializing a
// cross-toolchain prefix out of one or more resolved toolchain packages,
// an optional emulator and optional extra commands, grounded on
// ruyipkg/arch/riscv.py's flag computation and mux/venv/maker.py's
// directory-layout description.
package venv

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ruyisdk/ruyi-go/internal/atom"
	"github.com/ruyisdk/ruyi-go/internal/manifest"
	"github.com/ruyisdk/ruyi-go/internal/profile"
	"github.com/ruyisdk/ruyi-go/internal/ruyierr"
)

// Store is the subset of metarepo.Repo the synthesizer needs: atom
// resolution. Where a resolved package was installed is looked up
// through InstallLocator.
type Store interface {
	atom.Store
}

// InstallLocator resolves where a binary package's files live on disk,
// satisfied by *config.Config.
type InstallLocator interface {
	BinaryInstallDir(host, name, ver string) string
}

// Request is the venv synthesizer's input, spec.md §4.13.
type Request struct {
	Host          string
	ProfileID     string
	Dest          string
	WithSysroot   bool
	ToolchainAtoms []string
	EmulatorAtom  string
	SysrootAtom   string
	ExtraCmdAtoms []string
	OverrideName  string
	IncludePrerelease bool
}

// Target is one configured toolchain within the venv.
type Target struct {
	TargetTuple    string
	Manifest       *manifest.Manifest
	InstallRoot    string
	CCFlavor       string // "gcc" or "clang"
	BinutilsFlavor string // "binutils" or "llvm"
	Sysroot        string // resolved source sysroot dir, or ""
	ToolchainFlags string
}

// Result is everything the synthesizer produced, before files are
// written to disk (Provision does that).
type Result struct {
	Profile       *profile.Profile
	Targets       []Target
	EmulatorProgs []ResolvedEmulatorProg
	ExtraCmds     map[string]string // name -> absolute path
}

// ResolvedEmulatorProg is one emulator binary selected for the venv.
type ResolvedEmulatorProg struct {
	Path       string // absolute path to the emulator binary
	Flavor     string
	BinfmtMisc string
}

// ignoredCommandRE matches toolchain bin/ entries that should never get
// a shim symlink: crosstool-NG helpers and versioned compiler names.
var ignoredCommandRE = regexp.MustCompile(`(^|-)(g?cc|c\+\+|g\+\+|cpp|clang|clang\+\+)-[0-9.]+$`)

func isIgnoredCommand(name string) bool {
	if strings.HasSuffix(name, "populate") || strings.HasSuffix(name, "ct-ng.config") {
		return true
	}
	return ignoredCommandRE.MatchString(name)
}

// Resolve runs steps 1-7 of the venv synthesis algorithm: profile and
// atom resolution, quirk/target-tuple validation, sysroot sourcing, flag
// computation, emulator selection and extra-command resolution. It does
// not touch disk; call Provision on the result to materialize the venv.
func Resolve(ctx context.Context, req Request, reg *profile.Registry, store Store, loc InstallLocator) (*Result, error) {
	prof, err := reg.MustGet(req.ProfileID)
	if err != nil {
		return nil, err
	}

	seenTuples := make(map[string]bool)
	var targets []Target

	for _, tcAtomStr := range req.ToolchainAtoms {
		tcAtom, err := atom.Parse(tcAtomStr)
		if err != nil {
			return nil, err
		}
		pm, err := tcAtom.MatchInRepo(store, req.IncludePrerelease)
		if err != nil {
			return nil, err
		}
		tc := pm.ToolchainMetadata()
		if tc == nil {
			return nil, ruyierr.New("venv", ruyierr.NotInstallable, tcAtomStr,
				fmt.Sprintf("package %q is not a toolchain", tcAtomStr), nil)
		}

		if ok, missing := prof.NeedQuirksSubsetOf(tc.Quirks); !ok {
			return nil, ruyierr.New("venv", ruyierr.QuirksUnsatisfied, tcAtomStr,
				fmt.Sprintf("profile %q needs quirks %v, toolchain only provides %v", req.ProfileID, missing, tc.Quirks), nil)
		}
		if seenTuples[tc.Target] {
			return nil, ruyierr.New("venv", ruyierr.DuplicateTarget, tc.Target,
				fmt.Sprintf("target tuple %q configured by more than one toolchain atom", tc.Target), nil)
		}
		seenTuples[tc.Target] = true

		root := loc.BinaryInstallDir(req.Host, pm.Name, pm.Version)
		ccFlavor, binutilsFlavor := detectFlavors(tc)

		t := Target{
			TargetTuple:    tc.Target,
			Manifest:       pm,
			InstallRoot:    root,
			CCFlavor:       ccFlavor,
			BinutilsFlavor: binutilsFlavor,
			ToolchainFlags: prof.GetCommonFlags(tc.Quirks, reg.McpuMap()),
		}
		targets = append(targets, t)
	}

	if len(targets) == 0 {
		return nil, ruyierr.New("venv", ruyierr.NotInstallable, "",
			"at least one toolchain atom is required to create a venv", nil)
	}

	if err := resolveSysroots(targets, req, store, loc); err != nil {
		return nil, err
	}

	primaryArch := profileArch(targets[0].TargetTuple)

	var emuProgs []ResolvedEmulatorProg
	if req.EmulatorAtom != "" {
		emuProgs, err = resolveEmulator(req, prof, store, loc, primaryArch)
		if err != nil {
			return nil, err
		}
	}

	extraCmds, err := resolveExtraCmds(req, store, loc)
	if err != nil {
		return nil, err
	}

	return &Result{Profile: prof, Targets: targets, EmulatorProgs: emuProgs, ExtraCmds: extraCmds}, nil
}

// detectFlavors inspects a toolchain's component list to decide whether
// it ships clang (vs gcc) and llvm-binutils (vs GNU binutils).
func detectFlavors(tc *manifest.ToolchainDecl) (cc, binutils string) {
	cc, binutils = "gcc", "binutils"
	for _, c := range tc.Components {
		switch c.Name {
		case "clang":
			cc = "clang"
		case "llvm", "lld":
			binutils = "llvm"
		}
	}
	return cc, binutils
}

// profileArch derives the coarse arch name from a target tuple's first
// dash-delimited component (e.g. "riscv64-unknown-linux-gnu" -> "riscv64").
func profileArch(targetTuple string) string {
	if i := strings.Index(targetTuple, "-"); i >= 0 {
		return targetTuple[:i]
	}
	return targetTuple
}

func resolveSysroots(targets []Target, req Request, store Store, loc InstallLocator) error {
	var sysrootProviderRoot string
	var sysrootProviderTarget string
	if req.SysrootAtom != "" {
		a, err := atom.Parse(req.SysrootAtom)
		if err != nil {
			return err
		}
		pm, err := a.MatchInRepo(store, req.IncludePrerelease)
		if err != nil {
			return err
		}
		tc := pm.ToolchainMetadata()
		if tc == nil {
			return ruyierr.New("venv", ruyierr.NotInstallable, req.SysrootAtom,
				fmt.Sprintf("sysroot package %q is not a toolchain", req.SysrootAtom), nil)
		}
		sysrootProviderRoot = loc.BinaryInstallDir(req.Host, pm.Name, pm.Version)
		sysrootProviderTarget = tc.Target
	}

	for i := range targets {
		t := &targets[i]
		tc := t.Manifest.ToolchainMetadata()

		if tc.IncludedSysroot != "" {
			t.Sysroot = filepath.Join(t.InstallRoot, tc.IncludedSysroot)
			continue
		}
		if sysrootProviderRoot != "" {
			t.Sysroot = filepath.Join(sysrootProviderRoot, sysrootProviderTarget)
			continue
		}
		if t.CCFlavor == "clang" {
			dirs, err := filepath.Glob(filepath.Join(t.InstallRoot, "lib", "gcc", t.TargetTuple, "*"))
			if err != nil {
				return err
			}
			if len(dirs) != 1 {
				return ruyierr.New("venv", ruyierr.MissingGccLibDir, t.TargetTuple,
					fmt.Sprintf("expected exactly one lib/gcc/%s/* directory, found %d", t.TargetTuple, len(dirs)), nil)
			}
		}
	}
	return nil
}

func resolveEmulator(req Request, prof *profile.Profile, store Store, loc InstallLocator, primaryArch string) ([]ResolvedEmulatorProg, error) {
	a, err := atom.Parse(req.EmulatorAtom)
	if err != nil {
		return nil, err
	}
	pm, err := a.MatchInRepo(store, req.IncludePrerelease)
	if err != nil {
		return nil, err
	}
	em := pm.EmulatorMetadata()
	if em == nil {
		return nil, ruyierr.New("venv", ruyierr.NotInstallable, req.EmulatorAtom,
			fmt.Sprintf("package %q is not an emulator", req.EmulatorAtom), nil)
	}

	root := loc.BinaryInstallDir(req.Host, pm.Name, pm.Version)

	var quirksForFlavor = map[string][]string{}
	for _, f := range em.Flavors {
		quirksForFlavor[f.Name] = f.Quirks
	}

	var out []ResolvedEmulatorProg
	for _, prog := range em.Programs {
		if !containsStr(prog.SupportedArches, primaryArch) {
			continue
		}
		if ok, _ := prof.CheckEmulatorFlavor(quirksForFlavor[prog.Flavor]); !ok {
			return nil, ruyierr.New("venv", ruyierr.QuirksUnsatisfied, req.EmulatorAtom,
				fmt.Sprintf("emulator flavor %q does not satisfy profile %q", prog.Flavor, prof.ID), nil)
		}
		out = append(out, ResolvedEmulatorProg{
			Path:       filepath.Join(root, prog.Path),
			Flavor:     prog.Flavor,
			BinfmtMisc: prog.BinfmtMisc,
		})
	}
	if len(out) == 0 {
		return nil, ruyierr.New("venv", ruyierr.NotInstallable, req.EmulatorAtom,
			fmt.Sprintf("emulator package %q does not support target arch %q", req.EmulatorAtom, primaryArch), nil)
	}
	return out, nil
}

func containsStr(ss []string, want string) bool {
	for _, s := range ss {
		if s == want {
			return true
		}
	}
	return false
}

func resolveExtraCmds(req Request, store Store, loc InstallLocator) (map[string]string, error) {
	out := make(map[string]string)
	for _, cmdAtomStr := range req.ExtraCmdAtoms {
		a, err := atom.Parse(cmdAtomStr)
		if err != nil {
			return nil, err
		}
		pm, err := a.MatchInRepo(store, req.IncludePrerelease)
		if err != nil {
			return nil, err
		}
		var decl *manifest.BinaryHostDecl
		for _, h := range pm.BinaryMetadata() {
			if h.Host == req.Host {
				hh := h
				decl = &hh
				break
			}
		}
		if decl == nil || len(decl.Commands) == 0 {
			continue
		}

		cmdRoot := loc.BinaryInstallDir(req.Host, pm.Name, pm.Version)
		absRoot, err := filepath.Abs(cmdRoot)
		if err != nil {
			return nil, err
		}

		for cmd, relPath := range decl.Commands {
			cmdPath := filepath.Join(absRoot, relPath)
			rel, err := filepath.Rel(absRoot, cmdPath)
			if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
				return nil, ruyierr.New("venv", ruyierr.EntityValidationError, cmdAtomStr,
					fmt.Sprintf("command %q resolves outside of the providing package's install root", cmd), nil)
			}
			out[cmd] = cmdPath
		}
	}
	return out, nil
}

// listShimTargets returns the non-ignored executable basenames found
// directly under a toolchain's bin directory.
func listShimTargets(installRoot string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(installRoot, "bin"))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if isIgnoredCommand(e.Name()) {
			continue
		}
		out = append(out, e.Name())
	}
	return out, nil
}
