package unpack

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func buildTarGz(t *testing.T, entries map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "archive.tar.gz")

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)

	for name, content := range entries {
		hdr := &tar.Header{Name: name, Mode: 0644, Size: int64(len(content))}
		require.NoError(t, tw.WriteHeader(hdr))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}

	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return path
}

func TestUnpackTarGzStripComponents(t *testing.T) {
	src := buildTarGz(t, map[string]string{
		"gcc-13.2.0/bin/gcc":        "binary",
		"gcc-13.2.0/lib/libgcc.so": "lib",
	})

	dest := t.TempDir()
	require.NoError(t, Unpack(src, dest, MethodTarGz, Options{StripComponents: 1}))

	data, err := os.ReadFile(filepath.Join(dest, "bin", "gcc"))
	require.NoError(t, err)
	require.Equal(t, "binary", string(data))

	require.NoFileExists(t, filepath.Join(dest, "gcc-13.2.0"))
}

func TestUnpackTarGzStripComponentsDropsFullyConsumedEntries(t *testing.T) {
	src := buildTarGz(t, map[string]string{
		"gcc-13.2.0/": "",
	})

	dest := t.TempDir()
	require.NoError(t, Unpack(src, dest, MethodTarGz, Options{StripComponents: 1}))

	entries, err := os.ReadDir(dest)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestUnpackZip(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "archive.zip")

	f, err := os.Create(src)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("pkg/README.md")
	require.NoError(t, err)
	_, err = w.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	dest := t.TempDir()
	require.NoError(t, Unpack(src, dest, MethodZip, Options{StripComponents: 1}))

	data, err := os.ReadFile(filepath.Join(dest, "README.md"))
	require.NoError(t, err)
	require.Equal(t, "hello", string(data))
}

func TestUnpackRawSymlinkFallback(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "blob.bin")
	require.NoError(t, os.WriteFile(src, []byte("blob"), 0644))

	dest := t.TempDir()
	require.NoError(t, Unpack(src, dest, MethodRaw, Options{SymlinkFallbackName: "blob.bin"}))

	linkPath := filepath.Join(dest, "blob.bin")
	info, err := os.Lstat(linkPath)
	require.NoError(t, err)
	require.True(t, info.Mode()&os.ModeSymlink != 0)
}

func TestResolveAuto(t *testing.T) {
	tests := []struct {
		name string
		want Method
	}{
		{"gcc-13.2.0.tar.gz", MethodTarGz},
		{"gcc-13.2.0.tar.xz", MethodTarXz},
		{"gcc-13.2.0.tar.zst", MethodTarZst},
		{"pkg.zip", MethodZip},
		{"pkg.deb", MethodDeb},
		{"README.gz", MethodGz},
	}
	for _, tt := range tests {
		got, err := Resolve(tt.name, false)
		require.NoError(t, err)
		require.Equal(t, tt.want, got)
	}
}

func TestResolveUnrecognized(t *testing.T) {
	_, err := Resolve("mystery.bin", false)
	require.Error(t, err)
}

func TestSafeJoinRejectsTraversal(t *testing.T) {
	_, err := safeJoin("/tmp/dest", "../../etc/passwd")
	require.Error(t, err)
}

func TestStripComponents(t *testing.T) {
	rel, ok := stripComponents("a/b/c.txt", 1)
	require.True(t, ok)
	require.Equal(t, "b/c.txt", rel)

	_, ok = stripComponents("a", 1)
	require.False(t, ok)
}
