package shim

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ruyisdk/ruyi-go/internal/ruyierr"
	"github.com/ruyisdk/ruyi-go/internal/venv"
)

func writeCacheFixture(t *testing.T, dir string) {
	t.Helper()
	cache := venv.Cache{
		SchemaVersion: venv.CurrentSchemaVersion,
		Targets: map[string]venv.TargetCache{
			"riscv64-unknown-linux-gnu": {
				ToolchainFlags:  "-march=rv64gc -mabi=lp64d",
				ToolchainBindir: "/opt/gcc-rv/bin",
			},
		},
		CmdMetadataMap: map[string]venv.CmdMeta{
			"riscv64-unknown-linux-gnu-gcc": {Target: "riscv64-unknown-linux-gnu"},
			"readelf":                       {Target: "riscv64-unknown-linux-gnu", RealPath: "/opt/extra/readelf"},
		},
	}
	require.NoError(t, venv.WriteCache(filepath.Join(dir, "ruyi-cache.v2.toml"), cache))
}

func TestResolveSplicesFlagsForCompilerDriver(t *testing.T) {
	dir := t.TempDir()
	writeCacheFixture(t, dir)

	plan, err := Resolve(dir, []string{"riscv64-unknown-linux-gnu-gcc", "-c", "foo.c"})
	require.NoError(t, err)
	require.Equal(t, "/opt/gcc-rv/bin/riscv64-unknown-linux-gnu-gcc", plan.RealPath)
	require.Equal(t, []string{plan.RealPath, "-march=rv64gc", "-mabi=lp64d", "-c", "foo.c"}, plan.Argv)
}

func TestResolveDoesNotSpliceForNonCompiler(t *testing.T) {
	dir := t.TempDir()
	writeCacheFixture(t, dir)

	plan, err := Resolve(dir, []string{"readelf", "-h", "foo.o"})
	require.NoError(t, err)
	require.Equal(t, "/opt/extra/readelf", plan.RealPath)
	require.Equal(t, []string{"/opt/extra/readelf", "-h", "foo.o"}, plan.Argv)
}

func TestResolveUnknownCommand(t *testing.T) {
	dir := t.TempDir()
	writeCacheFixture(t, dir)

	_, err := Resolve(dir, []string{"not-a-shim"})
	require.True(t, ruyierr.IsKind(err, ruyierr.NotInstallable))
}

func TestFindVenvRootViaEnvOverride(t *testing.T) {
	t.Setenv(EnvVenvOverride, "/some/venv")
	root, err := FindVenvRoot("/anything")
	require.NoError(t, err)
	require.Equal(t, "/some/venv", root)
}

func TestFindVenvRootWalksUpward(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "ruyi-venv.toml"), []byte(""), 0644))
	bindir := filepath.Join(root, "bin")
	require.NoError(t, os.MkdirAll(bindir, 0755))

	found, err := FindVenvRoot(filepath.Join(bindir, "riscv64-unknown-linux-gnu-gcc"))
	require.NoError(t, err)
	require.Equal(t, root, found)
}

func TestFindVenvRootNotFound(t *testing.T) {
	t.Setenv(EnvVenvOverride, "")
	dir := t.TempDir()
	_, err := FindVenvRoot(filepath.Join(dir, "bin", "gcc"))
	require.True(t, ruyierr.IsKind(err, ruyierr.NotInstallable))
}
