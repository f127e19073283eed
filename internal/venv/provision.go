package venv

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// venvConfig is the ruyi-venv.toml document written at the venv root.
type venvConfig struct {
	Profile      string `toml:"profile"`
	Sysroot      string `toml:"sysroot,omitempty"`
	OverrideName string `toml:"override_name,omitempty"`
}

// ccAliases maps each cc_flavor to its own driver names; for the
// Clang<->GCC compatibility symlinks spec.md §4.13 step 8 calls for,
// writeCompatAliases shims the names of every flavor other than the
// toolchain's own (binutilsAliases does the same for LLVM<->binutils).
var ccAliases = map[string][2]string{
	"gcc":   {"gcc", "g++"},
	"clang": {"clang", "clang++"},
}

var binutilsAliases = map[string][]string{
	"binutils": {"ar", "as", "ld", "nm", "objcopy", "objdump", "ranlib", "strip"},
	"llvm":     {"llvm-ar", "llvm-as", "ld.lld", "llvm-nm", "llvm-objcopy", "llvm-objdump", "llvm-ranlib", "llvm-strip"},
}

// Provision materializes a resolved Result under req.Dest: step 8 of the
// venv synthesis algorithm.
func Provision(res *Result, req Request) error {
	bindir := filepath.Join(req.Dest, "bin")
	if err := os.MkdirAll(bindir, 0755); err != nil {
		return err
	}

	selfExe, err := os.Executable()
	if err != nil {
		return err
	}

	cmdMeta := make(map[string]CmdMeta)
	targetCaches := make(map[string]TargetCache)

	for i, t := range res.Targets {
		isPrimary := i == 0

		if t.Sysroot != "" {
			destName := fmt.Sprintf("sysroot.%s", t.TargetTuple)
			destPath := filepath.Join(req.Dest, destName)
			if err := copyTree(t.Sysroot, destPath); err != nil {
				return err
			}
			if isPrimary {
				if err := os.Symlink(destName, filepath.Join(req.Dest, "sysroot")); err != nil && !os.IsExist(err) {
					return err
				}
			}
		}

		names, err := listShimTargets(t.InstallRoot)
		if err != nil {
			return err
		}
		for _, name := range names {
			if err := shimLink(bindir, name, selfExe); err != nil {
				return err
			}
			cmdMeta[name] = CmdMeta{Target: t.TargetTuple}
		}

		if err := writeCompatAliases(bindir, selfExe, t, cmdMeta); err != nil {
			return err
		}

		if err := writeCrossFiles(req.Dest, t, isPrimary); err != nil {
			return err
		}

		targetCaches[t.TargetTuple] = TargetCache{
			ToolchainFlags:  t.ToolchainFlags,
			ToolchainBindir: filepath.Join(t.InstallRoot, "bin"),
		}
	}

	// Extra commands get a shim like any other; their real path doesn't
	// follow the target's toolchain_bindir/<name> convention, so it's
	// recorded directly in the cache entry.
	for name, realPath := range res.ExtraCmds {
		if err := shimLink(bindir, name, selfExe); err != nil {
			return err
		}
		cmdMeta[name] = CmdMeta{Target: res.Targets[0].TargetTuple, RealPath: realPath}
	}

	sysrootForConfig := ""
	if res.Targets[0].Sysroot != "" {
		sysrootForConfig = "sysroot"
	}
	cfg := venvConfig{Profile: res.Profile.ID, Sysroot: sysrootForConfig, OverrideName: req.OverrideName}
	if err := writeTOML(filepath.Join(req.Dest, "ruyi-venv.toml"), cfg); err != nil {
		return err
	}

	cache := Cache{SchemaVersion: CurrentSchemaVersion, Targets: targetCaches, CmdMetadataMap: cmdMeta}
	if err := WriteCache(filepath.Join(req.Dest, "ruyi-cache.v2.toml"), cache); err != nil {
		return err
	}

	if len(res.EmulatorProgs) > 0 {
		if err := writeBinfmtConf(req.Dest, res.EmulatorProgs); err != nil {
			return err
		}
	}

	var buf bytes.Buffer
	if err := activateTmpl.Execute(&buf, activateTmplData{RuyiVenv: req.Dest, RuyiVenvName: req.OverrideName}); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(bindir, "ruyi-activate"), buf.Bytes(), 0755); err != nil {
		return err
	}

	return nil
}

func shimLink(bindir, name, selfExe string) error {
	linkPath := filepath.Join(bindir, name)
	_ = os.Remove(linkPath)
	return os.Symlink(selfExe, linkPath)
}

// writeCompatAliases emits the LLVM<->binutils and Clang<->GCC
// compatibility symlinks under "<target>-<alias>" names, so a build
// system that always asks for "gcc" still finds a shim when the
// toolchain only ships clang, and vice versa.
func writeCompatAliases(bindir, selfExe string, t Target, cmdMeta map[string]CmdMeta) error {
	for flavor, names := range ccAliases {
		if flavor == t.CCFlavor {
			continue
		}
		for _, base := range names {
			name := fmt.Sprintf("%s-%s", t.TargetTuple, base)
			if err := shimLink(bindir, name, selfExe); err != nil {
				return err
			}
			cmdMeta[name] = CmdMeta{Target: t.TargetTuple}
		}
	}
	for flavor, names := range binutilsAliases {
		if flavor == t.BinutilsFlavor {
			continue
		}
		for _, base := range names {
			name := fmt.Sprintf("%s-%s", t.TargetTuple, base)
			if err := shimLink(bindir, name, selfExe); err != nil {
				return err
			}
			cmdMeta[name] = CmdMeta{Target: t.TargetTuple}
		}
	}
	return nil
}

func writeCrossFiles(dest string, t Target, isPrimary bool) error {
	arch := profileArch(t.TargetTuple)

	var cmakeBuf bytes.Buffer
	if err := cmakeToolchainTmpl.Execute(&cmakeBuf, cmakeTmplData{Arch: arch, TargetTuple: t.TargetTuple, Sysroot: t.Sysroot}); err != nil {
		return err
	}
	cmakeName := fmt.Sprintf("toolchain.%s.cmake", t.TargetTuple)
	if err := os.WriteFile(filepath.Join(dest, cmakeName), cmakeBuf.Bytes(), 0644); err != nil {
		return err
	}

	var mesonBuf bytes.Buffer
	if err := mesonCrossTmpl.Execute(&mesonBuf, mesonTmplData{Arch: arch, TargetTuple: t.TargetTuple}); err != nil {
		return err
	}
	mesonName := fmt.Sprintf("meson-cross.%s.ini", t.TargetTuple)
	if err := os.WriteFile(filepath.Join(dest, mesonName), mesonBuf.Bytes(), 0644); err != nil {
		return err
	}

	if isPrimary {
		if err := symlinkReplace(cmakeName, filepath.Join(dest, "toolchain.cmake")); err != nil {
			return err
		}
		if err := symlinkReplace(mesonName, filepath.Join(dest, "meson-cross.ini")); err != nil {
			return err
		}
	}
	return nil
}

func symlinkReplace(target, linkPath string) error {
	_ = os.Remove(linkPath)
	return os.Symlink(target, linkPath)
}

func writeBinfmtConf(dest string, progs []ResolvedEmulatorProg) error {
	var buf bytes.Buffer
	for _, p := range progs {
		if p.BinfmtMisc == "" {
			continue
		}
		fmt.Fprintf(&buf, "# flavor: %s\n%s\n", p.Flavor, p.BinfmtMisc)
	}
	if buf.Len() == 0 {
		return nil
	}
	return os.WriteFile(filepath.Join(dest, "binfmt.conf"), buf.Bytes(), 0644)
}

func writeTOML(path string, v any) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(v); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}

// copyTree recursively copies src to dest, preserving symlinks as
// symlinks (dangling targets are tolerated, matching spec.md §4.13 step
// 8's sysroot-copy note) rather than following them.
func copyTree(src, dest string) error {
	info, err := os.Lstat(src)
	if err != nil {
		return err
	}

	switch {
	case info.Mode()&os.ModeSymlink != 0:
		target, err := os.Readlink(src)
		if err != nil {
			return err
		}
		_ = os.Remove(dest)
		return os.Symlink(target, dest)

	case info.IsDir():
		if err := os.MkdirAll(dest, info.Mode().Perm()); err != nil {
			return err
		}
		entries, err := os.ReadDir(src)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if err := copyTree(filepath.Join(src, e.Name()), filepath.Join(dest, e.Name())); err != nil {
				return err
			}
		}
		return nil

	default:
		return copyFile(src, dest, info.Mode().Perm())
	}
}

func copyFile(src, dest string, perm os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
