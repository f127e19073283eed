package checksum

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ruyisdk/ruyi-go/internal/ruyierr"
	"github.com/stretchr/testify/require"
)

func TestComputeEmptyStringKnownDigest(t *testing.T) {
	sums, err := Compute(strings.NewReader(""), []Kind{SHA256})
	require.NoError(t, err)
	require.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", sums[SHA256])
}

func TestComputeMultiHashSinglePass(t *testing.T) {
	sums, err := Compute(strings.NewReader("hello ruyi"), []Kind{SHA256, SHA512})
	require.NoError(t, err)
	require.Len(t, sums[SHA256], 64)
	require.Len(t, sums[SHA512], 128)
}

func TestComputeFileAndVerify(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "distfile.tar.xz")
	require.NoError(t, os.WriteFile(path, []byte("hello ruyi"), 0644))

	sums, err := ComputeFile(path, Sums{SHA256: "", SHA512: ""})
	require.NoError(t, err)
	require.Contains(t, sums, SHA256)
	require.Contains(t, sums, SHA512)

	require.NoError(t, Verify(path, Sums{SHA256: sums[SHA256]}))
}

func TestVerifyMismatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "distfile.tar.xz")
	require.NoError(t, os.WriteFile(path, []byte("hello ruyi"), 0644))

	err := Verify(path, Sums{SHA256: "deadbeef"})
	require.Error(t, err)
	require.True(t, ruyierr.IsKind(err, ruyierr.ChecksumMismatch))
}

func TestVerifyNoExpectations(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "distfile.tar.xz")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	require.NoError(t, Verify(path, nil))
}

func TestComputeUnsupportedKind(t *testing.T) {
	_, err := Compute(strings.NewReader("x"), []Kind{"md5"})
	require.Error(t, err)
}
