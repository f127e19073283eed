package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ruyisdk/ruyi-go/internal/checksum"
	"github.com/ruyisdk/ruyi-go/internal/progress"
	"github.com/ruyisdk/ruyi-go/internal/ruyierr"
	"github.com/stretchr/testify/require"
)

const payload = "the quick brown fox jumps over the lazy dog"

func testServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.ServeContent(w, r, "payload", time.Time{}, strings.NewReader(payload))
	}))
}

func sumsFor(t *testing.T, s string) checksum.Sums {
	t.Helper()
	sums, err := checksum.Compute(strings.NewReader(s), []checksum.Kind{checksum.SHA256})
	require.NoError(t, err)
	return sums
}

func TestEnsureFetchesMissingFile(t *testing.T) {
	srv := testServer(t)
	defer srv.Close()

	dir := t.TempDir()
	dest := filepath.Join(dir, "payload.txt")

	d := Distfile{
		URLs:  []string{srv.URL},
		Dest:  dest,
		Size:  int64(len(payload)),
		Csums: sumsFor(t, payload),
	}

	err := Ensure(context.Background(), d, Options{Sink: progress.NullSink{}})
	require.NoError(t, err)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	require.Equal(t, payload, string(data))
}

func TestEnsureSkipsAlreadyValidFile(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "payload.txt")
	require.NoError(t, os.WriteFile(dest, []byte(payload), 0644))

	d := Distfile{
		URLs:  []string{"http://unused.invalid"},
		Dest:  dest,
		Size:  int64(len(payload)),
		Csums: sumsFor(t, payload),
	}

	err := Ensure(context.Background(), d, Options{Sink: progress.NullSink{}})
	require.NoError(t, err)
}

func TestEnsureRefetchesCorruptFile(t *testing.T) {
	srv := testServer(t)
	defer srv.Close()

	dir := t.TempDir()
	dest := filepath.Join(dir, "payload.txt")
	require.NoError(t, os.WriteFile(dest, []byte(payload[:len(payload)-1]+"X"), 0644))

	d := Distfile{
		URLs:  []string{srv.URL},
		Dest:  dest,
		Size:  int64(len(payload)),
		Csums: sumsFor(t, payload),
	}

	err := Ensure(context.Background(), d, Options{Sink: progress.NullSink{}})
	require.NoError(t, err)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	require.Equal(t, payload, string(data))
}

func TestEnsureAllURLsFailReturnsTaggedError(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "payload.txt")

	d := Distfile{
		URLs:  []string{"http://127.0.0.1:0/nope"},
		Dest:  dest,
		Size:  int64(len(payload)),
		Csums: sumsFor(t, payload),
	}

	err := Ensure(context.Background(), d, Options{Retries: 1, Sink: progress.NullSink{}})
	require.Error(t, err)
	require.True(t, ruyierr.IsKind(err, ruyierr.FetchFailedAllURLs))
}
