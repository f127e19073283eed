package ledger

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRecordAndIsInstalled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "installs.json")
	l := New(path)

	key := MakeKey("default", "toolchain", "gcc", "13.2.0", "linux/x86_64")
	rec := Record{RepoID: "default", Category: "toolchain", Name: "gcc", Version: "13.2.0",
		Host: "linux/x86_64", InstallPath: "/opt/gcc", InstallTime: time.Unix(0, 0).UTC()}

	require.NoError(t, l.Record(rec))

	installed, err := l.IsInstalled(key)
	require.NoError(t, err)
	require.True(t, installed)

	got, ok, err := l.Get(key)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, rec.InstallPath, got.InstallPath)
}

func TestRecordPersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "installs.json")
	l1 := New(path)
	rec := Record{RepoID: "default", Category: "blob", Name: "firmware", Version: "1.0.0", InstallPath: "/opt/fw"}
	require.NoError(t, l1.Record(rec))

	l2 := New(path)
	installed, err := l2.IsInstalled(rec.Key())
	require.NoError(t, err)
	require.True(t, installed)
}

func TestRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "installs.json")
	l := New(path)
	rec := Record{RepoID: "default", Category: "blob", Name: "firmware", Version: "1.0.0", InstallPath: "/opt/fw"}
	require.NoError(t, l.Record(rec))
	require.NoError(t, l.Remove(rec.Key()))

	installed, err := l.IsInstalled(rec.Key())
	require.NoError(t, err)
	require.False(t, installed)
}

func TestListAll(t *testing.T) {
	path := filepath.Join(t.TempDir(), "installs.json")
	l := New(path)
	require.NoError(t, l.Record(Record{RepoID: "default", Category: "blob", Name: "a", Version: "1.0.0", InstallPath: "/a"}))
	require.NoError(t, l.Record(Record{RepoID: "default", Category: "blob", Name: "b", Version: "1.0.0", InstallPath: "/b"}))

	all, err := l.ListAll()
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestKeyFormatWithHost(t *testing.T) {
	rec := Record{RepoID: "default", Category: "toolchain", Name: "gcc", Version: "13.2.0", Host: "linux/x86_64"}
	require.Equal(t, "default:toolchain/gcc 13.2.0 host=linux/x86_64", rec.Key())
}

func TestKeyFormatWithoutHost(t *testing.T) {
	rec := Record{RepoID: "default", Category: "blob", Name: "firmware", Version: "1.0.0"}
	require.Equal(t, "default:blob/firmware 1.0.0", rec.Key())
}
