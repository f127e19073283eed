package manifest

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleTOML = `
format = "v1"
kind = ["toolchain"]

[metadata]
desc = "GCC toolchain for riscv64"
vendor = { name = "RuyiSDK" }

[[distfiles]]
name = "gcc-riscv64.tar.xz"
size = 123456
checksums = { sha256 = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa" }

[toolchain]
target = "riscv64-unknown-linux-gnu"
quirks = ["has_glibc"]

[[toolchain.components]]
name = "gcc"
version = "13.2.0"
`

func mustParse(t *testing.T) *Manifest {
	t.Helper()
	m, err := Parse("toolchain", "gcc", "13.2.0", []byte(sampleTOML))
	require.NoError(t, err)
	return m
}

func TestParseBasicFields(t *testing.T) {
	m := mustParse(t)
	require.Equal(t, "GCC toolchain for riscv64", m.Desc())
	require.True(t, m.HasKind(KindToolchain))
	require.False(t, m.HasKind(KindBinary))
	require.Equal(t, "gcc-13.2.0", m.NameForInstallation())
}

func TestSemverAndPrerelease(t *testing.T) {
	m := mustParse(t)
	require.Equal(t, "13.2.0", m.Semver().String())
	require.False(t, m.IsPrerelease())
}

func TestIsPrereleaseDatestampException(t *testing.T) {
	m, err := Parse("toolchain", "gcc", "13.2.0-ruyi.20240301", []byte(sampleTOML))
	require.NoError(t, err)
	require.False(t, m.IsPrerelease())
}

func TestIsPrereleaseGenuine(t *testing.T) {
	m, err := Parse("toolchain", "gcc", "13.2.0-rc1", []byte(sampleTOML))
	require.NoError(t, err)
	require.True(t, m.IsPrerelease())
}

func TestDistfilesIndexedByName(t *testing.T) {
	m := mustParse(t)
	dfs := m.Distfiles()
	require.Contains(t, dfs, "gcc-riscv64.tar.xz")
	require.Equal(t, int64(123456), dfs["gcc-riscv64.tar.xz"].Size)
	require.Equal(t, 1, dfs["gcc-riscv64.tar.xz"].EffectiveStripComponents())
}

func TestToolchainMetadata(t *testing.T) {
	m := mustParse(t)
	tc := m.ToolchainMetadata()
	require.NotNil(t, tc)
	require.Equal(t, "riscv64-unknown-linux-gnu", tc.Target)
	require.True(t, tc.HasQuirk("has_glibc"))
	ver, ok := tc.ComponentVersion("gcc")
	require.True(t, ok)
	require.Equal(t, "13.2.0", ver)
}

func TestBinaryXorSourceInvariant(t *testing.T) {
	const bad = `
format = "v1"
kind = ["binary", "source"]
[metadata]
desc = "bad"
vendor = { name = "x" }

[[distfiles]]
name = "f.tar.gz"
size = 1
checksums = { sha256 = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa" }

[[binary]]
host = "linux/x86_64"
distfiles = ["f.tar.gz"]

[source]
distfiles = ["f.tar.gz"]
`
	_, err := Parse("cat", "name", "1.0.0", []byte(bad))
	require.Error(t, err)
}

func TestBinaryDistfileMustBeDeclared(t *testing.T) {
	const bad = `
format = "v1"
kind = ["binary"]
[metadata]
desc = "bad"
vendor = { name = "x" }

[[distfiles]]
name = "f.tar.gz"
size = 1
checksums = { sha256 = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa" }

[[binary]]
host = "linux/x86_64"
distfiles = ["missing.tar.gz"]
`
	_, err := Parse("cat", "name", "1.0.0", []byte(bad))
	require.Error(t, err)
}

func TestDistfileRequiresChecksum(t *testing.T) {
	const bad = `
format = "v1"
kind = ["blob"]
[metadata]
desc = "bad"
vendor = { name = "x" }

[[distfiles]]
name = "f.bin"
size = 1
checksums = {}

[blob]
distfiles = ["f.bin"]
`
	_, err := Parse("cat", "name", "1.0.0", []byte(bad))
	require.Error(t, err)
}

func TestChecksumHexLengthInvariant(t *testing.T) {
	const bad = `
format = "v1"
kind = ["blob"]
[metadata]
desc = "bad"
vendor = { name = "x" }

[[distfiles]]
name = "f.bin"
size = 1
checksums = { sha256 = "tooshort" }

[blob]
distfiles = ["f.bin"]
`
	_, err := Parse("cat", "name", "1.0.0", []byte(bad))
	require.Error(t, err)
}

func TestCanonicalRoundTrip(t *testing.T) {
	m := mustParse(t)
	out, err := m.ToTOML()
	require.NoError(t, err)

	reparsed, err := Parse(m.Category, m.Name, m.Version, out)
	require.NoError(t, err)

	require.Equal(t, m.Desc(), reparsed.Desc())
	require.Equal(t, m.Distfiles(), reparsed.Distfiles())
	require.Equal(t, m.ToolchainMetadata(), reparsed.ToolchainMetadata())

	out2, err := reparsed.ToTOML()
	require.NoError(t, err)
	require.Equal(t, string(out), string(out2))
}
