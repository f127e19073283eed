package metarepo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMessagesRenderFallsBackToEnglish(t *testing.T) {
	root := t.TempDir()
	enDir := filepath.Join(root, "messages", "en")
	require.NoError(t, os.MkdirAll(enDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(enDir, "hello.txt"), []byte("Hello, {name}!"), 0644))

	r := New(root, "https://example.invalid/repo.git", "main", false)
	store, err := r.Messages()
	require.NoError(t, err)

	got, ok := store.Render("hello", "zh", map[string]string{"name": "riscv"})
	require.True(t, ok)
	require.Equal(t, "Hello, riscv!", got)
}

func TestMessagesKnownIssueKeys(t *testing.T) {
	root := t.TempDir()
	enDir := filepath.Join(root, "messages", "en")
	require.NoError(t, os.MkdirAll(enDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(enDir, "known-issues:toolchain:gcc:13.2.0.txt"), []byte("known issue"), 0644))

	r := New(root, "https://example.invalid/repo.git", "main", false)
	store, err := r.Messages()
	require.NoError(t, err)

	keys := store.KnownIssueKeys()
	require.True(t, keys["toolchain/gcc 13.2.0"])
}
