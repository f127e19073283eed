package entity

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const cpuSchema = `{
  "type": "object",
  "required": ["cpu"],
  "properties": {
    "cpu": {
      "type": "object",
      "required": ["display_name"],
      "properties": {
        "display_name": {"type": "string"}
      }
    }
  }
}`

const archSchema = `{
  "type": "object",
  "required": ["arch"],
  "properties": {
    "arch": {
      "type": "object",
      "properties": {
        "display_name": {"type": "string"}
      }
    }
  }
}`

func writeEntityFixture(t *testing.T, root string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "_schemas"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "_schemas", "cpu.jsonschema"), []byte(cpuSchema), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "_schemas", "arch.jsonschema"), []byte(archSchema), 0644))

	require.NoError(t, os.MkdirAll(filepath.Join(root, "cpu"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "cpu", "th1520.toml"), []byte(`
related = ["arch:riscv64"]

[cpu]
display_name = "T-Head TH1520"
`), 0644))

	require.NoError(t, os.MkdirAll(filepath.Join(root, "arch"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "arch", "riscv64.toml"), []byte(`
unique_among_type_during_traversal = true

[arch]
display_name = "RISC-V 64-bit"
`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "arch", "riscv32.toml"), []byte(`
unique_among_type_during_traversal = true

[arch]
display_name = "RISC-V 32-bit"
`), 0644))
}

func TestLoadAndValidate(t *testing.T) {
	root := t.TempDir()
	writeEntityFixture(t, root)

	s, err := NewStore(root)
	require.NoError(t, err)

	cpu := s.Get("cpu", "th1520")
	require.NotNil(t, cpu)
	require.Equal(t, "T-Head TH1520", cpu.DisplayName())
}

func TestValidationFailureIsTagged(t *testing.T) {
	root := t.TempDir()
	writeEntityFixture(t, root)
	require.NoError(t, os.WriteFile(filepath.Join(root, "cpu", "bad.toml"), []byte(`
[cpu]
# missing required display_name
`), 0644))

	_, err := NewStore(root)
	require.Error(t, err)
}

func TestReverseRefIndex(t *testing.T) {
	root := t.TempDir()
	writeEntityFixture(t, root)

	s, err := NewStore(root)
	require.NoError(t, err)

	arch := s.Get("arch", "riscv64")
	require.Contains(t, arch.ReverseRefs(), "cpu:th1520")
}

func TestTraverseForwardFromCPU(t *testing.T) {
	root := t.TempDir()
	writeEntityFixture(t, root)

	s, err := NewStore(root)
	require.NoError(t, err)

	cpu := s.Get("cpu", "th1520")
	related := s.Traverse(cpu, TraverseOptions{Forward: true})
	require.Len(t, related, 1)
	require.Equal(t, "arch:riscv64", related[0].Ref())
}

func TestTraverseTypeFilter(t *testing.T) {
	root := t.TempDir()
	writeEntityFixture(t, root)

	s, err := NewStore(root)
	require.NoError(t, err)

	cpu := s.Get("cpu", "th1520")
	related := s.Traverse(cpu, TraverseOptions{Forward: true, Types: map[string]bool{"nonexistent": true}})
	require.Empty(t, related)
}

func TestIsRelatedTo(t *testing.T) {
	root := t.TempDir()
	writeEntityFixture(t, root)

	s, err := NewStore(root)
	require.NoError(t, err)

	ok, err := s.IsRelatedTo("cpu:th1520", "arch:riscv64", false, false)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.IsRelatedTo("cpu:th1520", "arch:riscv32", false, false)
	require.NoError(t, err)
	require.False(t, ok)
}
