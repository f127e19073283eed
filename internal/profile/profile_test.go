package profile

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleProfiles = `
arch = "riscv64"

[generic_opts]
march = "rv64gc"
mabi = "lp64d"

[flavor_specific_mcpus]
[flavor_specific_mcpus.thead]
"generic" = "thead-c906"

[[profiles]]
name = "thead-c906"
need_flavor = ["thead"]
mcpu = "generic"
`

func TestParseRISCVGenericProfile(t *testing.T) {
	reg, err := ParseRISCV([]byte(sampleProfiles))
	require.NoError(t, err)

	generic := reg.Get("generic")
	require.NotNil(t, generic)
	require.Equal(t, "rv64gc", generic.March)
	require.Equal(t, "lp64d", generic.Mabi)
	require.Equal(t, "-march=rv64gc -mabi=lp64d", generic.GetCommonFlags(nil, reg.McpuMap()))
}

func TestGetCommonFlagsPrefersMcpu(t *testing.T) {
	reg, err := ParseRISCV([]byte(sampleProfiles))
	require.NoError(t, err)

	p := reg.Get("thead-c906")
	require.NotNil(t, p)
	require.True(t, p.NeedQuirks["thead"])

	flags := p.GetCommonFlags([]string{"thead"}, reg.McpuMap())
	require.Equal(t, "-mcpu=thead-c906 -mabi=lp64d", flags)
}

func TestGetCommonFlagsWithoutFlavorOverride(t *testing.T) {
	reg, err := ParseRISCV([]byte(sampleProfiles))
	require.NoError(t, err)

	p := reg.Get("thead-c906")
	flags := p.GetCommonFlags(nil, reg.McpuMap())
	require.Equal(t, "-mcpu=generic -mabi=lp64d", flags)
}

func TestNeedQuirksSubsetOf(t *testing.T) {
	reg, err := ParseRISCV([]byte(sampleProfiles))
	require.NoError(t, err)

	p := reg.Get("thead-c906")
	ok, missing := p.NeedQuirksSubsetOf([]string{"thead", "has_glibc"})
	require.True(t, ok)
	require.Empty(t, missing)

	ok, missing = p.NeedQuirksSubsetOf([]string{"has_glibc"})
	require.False(t, ok)
	require.Equal(t, []string{"thead"}, missing)
}

func TestMustGetUnknownProfile(t *testing.T) {
	reg, err := ParseRISCV([]byte(sampleProfiles))
	require.NoError(t, err)
	_, err = reg.MustGet("nonexistent")
	require.Error(t, err)
}
