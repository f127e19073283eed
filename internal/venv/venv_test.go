package venv

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ruyisdk/ruyi-go/internal/manifest"
	"github.com/ruyisdk/ruyi-go/internal/profile"
	"github.com/ruyisdk/ruyi-go/internal/ruyierr"
)

const sampleProfiles = `
arch = "riscv64"
[generic_opts]
march = "rv64gc"
mabi = "lp64d"

[[profiles]]
name = "generic"
`

func toolchainTOML(target string, quirks []string, components []string) string {
	body := `
format = "v1"
kind = ["toolchain", "binary"]
[metadata]
desc = "d"
vendor = { name = "v" }

[[distfiles]]
name = "f.tar.gz"
size = 1
checksums = { sha256 = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa" }

[toolchain]
target = "` + target + `"
`
	if len(quirks) > 0 {
		body += "quirks = [" + quoteList(quirks) + "]\n"
	}
	for _, c := range components {
		body += "[[toolchain.components]]\nname = \"" + c + "\"\nversion = \"1.0\"\n\n"
	}
	body += `[[binary]]
host = "linux/x86_64"
distfiles = ["f.tar.gz"]
`
	return body
}

func quoteList(ss []string) string {
	out := ""
	for i, s := range ss {
		if i > 0 {
			out += ", "
		}
		out += `"` + s + `"`
	}
	return out
}

type fakeStore struct {
	byKey map[string]*manifest.Manifest
}

func (f *fakeStore) IterPkgVers(name, category string) ([]*manifest.Manifest, error) {
	if m, ok := f.byKey[category+"/"+name]; ok {
		return []*manifest.Manifest{m}, nil
	}
	return nil, nil
}

func (f *fakeStore) GetPkgLatestVer(name, category string, includePrerelease bool) (*manifest.Manifest, error) {
	return f.byKey[category+"/"+name], nil
}

func (f *fakeStore) GetPkgBySlug(slug string) (*manifest.Manifest, error) { return nil, nil }

type fakeLocator struct {
	root string
}

func (l *fakeLocator) BinaryInstallDir(host, name, ver string) string {
	return filepath.Join(l.root, host, name+"-"+ver)
}

func TestResolveDetectsFlavors(t *testing.T) {
	reg, err := profile.ParseRISCV([]byte(sampleProfiles))
	require.NoError(t, err)

	root := t.TempDir()
	m, err := manifest.Parse("toolchain", "gcc-rv", "1.0.0", []byte(toolchainTOML("riscv64-unknown-linux-gnu", nil, []string{"gcc"})))
	require.NoError(t, err)

	store := &fakeStore{byKey: map[string]*manifest.Manifest{"toolchain/gcc-rv": m}}
	loc := &fakeLocator{root: root}

	res, err := Resolve(context.Background(), Request{
		Host: "linux/x86_64", ProfileID: "generic", Dest: t.TempDir(),
		ToolchainAtoms: []string{"toolchain/gcc-rv"},
	}, reg, store, loc)
	require.NoError(t, err)
	require.Len(t, res.Targets, 1)
	require.Equal(t, "gcc", res.Targets[0].CCFlavor)
	require.Equal(t, "binutils", res.Targets[0].BinutilsFlavor)
	require.Equal(t, "-march=rv64gc -mabi=lp64d", res.Targets[0].ToolchainFlags)
}

func TestResolveQuirksUnsatisfied(t *testing.T) {
	profilesWithQuirk := `
arch = "riscv64"
[generic_opts]
march = "rv64gc"
mabi = "lp64d"

[[profiles]]
name = "thead"
need_flavor = ["thead"]
`
	reg, err := profile.ParseRISCV([]byte(profilesWithQuirk))
	require.NoError(t, err)

	m, err := manifest.Parse("toolchain", "gcc-rv", "1.0.0", []byte(toolchainTOML("riscv64-unknown-linux-gnu", nil, []string{"gcc"})))
	require.NoError(t, err)

	store := &fakeStore{byKey: map[string]*manifest.Manifest{"toolchain/gcc-rv": m}}
	loc := &fakeLocator{root: t.TempDir()}

	_, err = Resolve(context.Background(), Request{
		Host: "linux/x86_64", ProfileID: "thead", Dest: t.TempDir(),
		ToolchainAtoms: []string{"toolchain/gcc-rv"},
	}, reg, store, loc)
	require.True(t, ruyierr.IsKind(err, ruyierr.QuirksUnsatisfied))
}

func TestResolveDuplicateTarget(t *testing.T) {
	reg, err := profile.ParseRISCV([]byte(sampleProfiles))
	require.NoError(t, err)

	m1, err := manifest.Parse("toolchain", "gcc-a", "1.0.0", []byte(toolchainTOML("riscv64-unknown-linux-gnu", nil, []string{"gcc"})))
	require.NoError(t, err)
	m2, err := manifest.Parse("toolchain", "gcc-b", "1.0.0", []byte(toolchainTOML("riscv64-unknown-linux-gnu", nil, []string{"gcc"})))
	require.NoError(t, err)

	store := &fakeStore{byKey: map[string]*manifest.Manifest{
		"toolchain/gcc-a": m1,
		"toolchain/gcc-b": m2,
	}}
	loc := &fakeLocator{root: t.TempDir()}

	_, err = Resolve(context.Background(), Request{
		Host: "linux/x86_64", ProfileID: "generic", Dest: t.TempDir(),
		ToolchainAtoms: []string{"toolchain/gcc-a", "toolchain/gcc-b"},
	}, reg, store, loc)
	require.True(t, ruyierr.IsKind(err, ruyierr.DuplicateTarget))
}

func TestResolveExtraCmdPathTraversalGuard(t *testing.T) {
	reg, err := profile.ParseRISCV([]byte(sampleProfiles))
	require.NoError(t, err)

	tcM, err := manifest.Parse("toolchain", "gcc-rv", "1.0.0", []byte(toolchainTOML("riscv64-unknown-linux-gnu", nil, []string{"gcc"})))
	require.NoError(t, err)

	maliciousTOML := `
format = "v1"
kind = ["binary"]
[metadata]
desc = "d"
vendor = { name = "v" }

[[distfiles]]
name = "f.tar.gz"
size = 1
checksums = { sha256 = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa" }

[[binary]]
host = "linux/x86_64"
distfiles = ["f.tar.gz"]
commands = { evil = "../../etc/passwd" }
`
	cmdM, err := manifest.Parse("tool", "evil-tool", "1.0.0", []byte(maliciousTOML))
	require.NoError(t, err)

	store := &fakeStore{byKey: map[string]*manifest.Manifest{
		"toolchain/gcc-rv":  tcM,
		"tool/evil-tool":     cmdM,
	}}
	loc := &fakeLocator{root: t.TempDir()}

	_, err = Resolve(context.Background(), Request{
		Host: "linux/x86_64", ProfileID: "generic", Dest: t.TempDir(),
		ToolchainAtoms: []string{"toolchain/gcc-rv"},
		ExtraCmdAtoms:  []string{"tool/evil-tool"},
	}, reg, store, loc)
	require.True(t, ruyierr.IsKind(err, ruyierr.EntityValidationError))
}

func TestProvisionCreatesShims(t *testing.T) {
	reg, err := profile.ParseRISCV([]byte(sampleProfiles))
	require.NoError(t, err)

	root := t.TempDir()
	target := "riscv64-unknown-linux-gnu"
	installDir := filepath.Join(root, "linux/x86_64", "gcc-rv-1.0.0")
	require.NoError(t, os.MkdirAll(filepath.Join(installDir, "bin"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(installDir, "bin", target+"-gcc"), []byte("x"), 0755))

	m, err := manifest.Parse("toolchain", "gcc-rv", "1.0.0", []byte(toolchainTOML(target, nil, []string{"gcc"})))
	require.NoError(t, err)

	store := &fakeStore{byKey: map[string]*manifest.Manifest{"toolchain/gcc-rv": m}}
	loc := &fakeLocator{root: root}

	dest := filepath.Join(t.TempDir(), "myvenv")
	req := Request{Host: "linux/x86_64", ProfileID: "generic", Dest: dest, ToolchainAtoms: []string{"toolchain/gcc-rv"}}

	res, err := Resolve(context.Background(), req, reg, store, loc)
	require.NoError(t, err)

	require.NoError(t, Provision(res, req))

	require.FileExists(t, filepath.Join(dest, "ruyi-venv.toml"))
	require.FileExists(t, filepath.Join(dest, "ruyi-cache.v2.toml"))
	require.FileExists(t, filepath.Join(dest, "bin", "ruyi-activate"))

	info, err := os.Lstat(filepath.Join(dest, "bin", target+"-gcc"))
	require.NoError(t, err)
	require.True(t, info.Mode()&os.ModeSymlink != 0)

	// Clang compat alias should exist since this toolchain is GCC.
	require.FileExists(t, filepath.Join(dest, "bin", target+"-clang"))

	cache, err := LoadCache(filepath.Join(dest, "ruyi-cache.v2.toml"))
	require.NoError(t, err)
	require.Equal(t, CurrentSchemaVersion, cache.SchemaVersion)
	meta, ok := cache.CmdMetadataMap[target+"-gcc"]
	require.True(t, ok)
	require.Equal(t, target, meta.Target)
}

func TestLoadCacheUpgradesV0(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ruyi-cache.v0.toml")
	v0 := `
profile_common_flags = "-march=rv64gc -mabi=lp64d"
toolchain_bindir = "/opt/gcc-rv/bin"
target = "riscv64-unknown-linux-gnu"

[cmd_metadata_map.riscv64-unknown-linux-gnu-gcc]
target = "riscv64-unknown-linux-gnu"
`
	require.NoError(t, os.WriteFile(path, []byte(v0), 0644))

	cache, err := LoadCache(path)
	require.NoError(t, err)
	require.Equal(t, CurrentSchemaVersion, cache.SchemaVersion)
	tgt, ok := cache.Targets["riscv64-unknown-linux-gnu"]
	require.True(t, ok)
	require.Equal(t, "-march=rv64gc -mabi=lp64d", tgt.ToolchainFlags)
	require.Equal(t, "/opt/gcc-rv/bin", tgt.ToolchainBindir)
	require.Equal(t, "riscv64-unknown-linux-gnu", cache.CmdMetadataMap["riscv64-unknown-linux-gnu-gcc"].Target)
}

func TestLoadCacheUpgradesV1(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ruyi-cache.v1.toml")
	v1 := `
schema_version = 1
profile_common_flags = "-march=rv64gc -mabi=lp64d"

[toolchain_bindirs]
riscv64-unknown-linux-gnu = "/opt/gcc-rv/bin"
riscv32-unknown-linux-gnu = "/opt/gcc-rv32/bin"

[cmd_metadata_map.riscv64-unknown-linux-gnu-gcc]
target = "riscv64-unknown-linux-gnu"
`
	require.NoError(t, os.WriteFile(path, []byte(v1), 0644))

	cache, err := LoadCache(path)
	require.NoError(t, err)
	require.Equal(t, CurrentSchemaVersion, cache.SchemaVersion)
	require.Len(t, cache.Targets, 2)
	require.Equal(t, "/opt/gcc-rv32/bin", cache.Targets["riscv32-unknown-linux-gnu"].ToolchainBindir)
	require.Equal(t, "-march=rv64gc -mabi=lp64d", cache.Targets["riscv32-unknown-linux-gnu"].ToolchainFlags)
}

func TestLoadCacheV2RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ruyi-cache.v2.toml")
	want := Cache{
		SchemaVersion: CurrentSchemaVersion,
		Targets: map[string]TargetCache{
			"riscv64-unknown-linux-gnu": {ToolchainFlags: "-march=rv64gc", ToolchainBindir: "/opt/gcc-rv/bin"},
		},
		CmdMetadataMap: map[string]CmdMeta{
			"riscv64-unknown-linux-gnu-gcc": {Target: "riscv64-unknown-linux-gnu"},
		},
	}
	require.NoError(t, WriteCache(path, want))

	got, err := LoadCache(path)
	require.NoError(t, err)
	require.Equal(t, want, *got)
}
