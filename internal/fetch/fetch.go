// Package fetch implements C3: resumable, retried, checksum-verified
// download of a distfile from one of several candidate URLs. It is
// grounded on ruyipkg/distfile.py's ensure/fetch/ensure_integrity_or_rm
// state machine, reimplemented as an in-process HTTP client (via
// internal/httputil's SSRF-protected client) instead of shelling out to
// wget, plus a gofrs/flock advisory lock so two ruyi processes racing on
// the same distfile serialize instead of corrupting each other's output.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/ruyisdk/ruyi-go/internal/checksum"
	"github.com/ruyisdk/ruyi-go/internal/httputil"
	"github.com/ruyisdk/ruyi-go/internal/log"
	"github.com/ruyisdk/ruyi-go/internal/progress"
	"github.com/ruyisdk/ruyi-go/internal/ruyierr"
)

// Distfile describes one downloadable artifact: a set of candidate
// mirror URLs (tried in order), the destination path, expected size and
// checksums.
type Distfile struct {
	URLs   []string
	Dest   string
	Size   int64
	Csums  checksum.Sums
}

// Options configures a fetch operation.
type Options struct {
	Retries int            // retry budget per URL, default from internal/config
	Timeout time.Duration  // connect/overall timeout, default from internal/config
	Sink    progress.Sink  // progress reporter; progress.NullSink{} to discard
	Client  *http.Client   // overridable for testing
}

func (o Options) withDefaults() Options {
	if o.Retries <= 0 {
		o.Retries = 3
	}
	if o.Timeout <= 0 {
		o.Timeout = 60 * time.Second
	}
	if o.Sink == nil {
		o.Sink = progress.NullSink{}
	}
	if o.Client == nil {
		opts := httputil.DefaultOptions()
		opts.Timeout = o.Timeout
		o.Client = httputil.NewSecureClient(opts)
	}
	return o
}

// Ensure guarantees that Dest exists, is the expected size, and passes
// checksum verification, fetching or resuming as needed. It mirrors
// Distfile.ensure()'s four branches: missing, undersized (resume),
// correctly-sized (verify-or-refetch), oversized (delete-and-refetch).
func Ensure(ctx context.Context, d Distfile, opts Options) error {
	opts = opts.withDefaults()

	lock := flock.New(d.Dest + ".lock")
	locked, err := lockWithContext(ctx, lock)
	if err != nil {
		return fmt.Errorf("acquiring fetch lock for %s: %w", d.Dest, err)
	}
	if !locked {
		return fmt.Errorf("timed out waiting for fetch lock on %s", d.Dest)
	}
	defer lock.Unlock()

	st, err := os.Stat(d.Dest)
	switch {
	case os.IsNotExist(err):
		log.Default().Debug("distfile missing, fetching", "dest", d.Dest)
		return fetchAllURLs(ctx, d, opts, false)
	case err != nil:
		return fmt.Errorf("stat %s: %w", d.Dest, err)
	}

	switch {
	case st.Size() < d.Size:
		log.Default().Debug("distfile incomplete, resuming", "dest", d.Dest, "have", st.Size(), "want", d.Size)
		return fetchAllURLs(ctx, d, opts, true)

	case st.Size() == d.Size:
		if err := ensureIntegrityOrRemove(d); err == nil {
			log.Default().Debug("distfile passed checks", "dest", d.Dest)
			return nil
		}
		log.Default().Warn("distfile corrupt, refetching", "dest", d.Dest)
		return fetchAllURLs(ctx, d, opts, false)

	default:
		log.Default().Warn("distfile larger than expected, deleting", "dest", d.Dest, "have", st.Size(), "want", d.Size)
		if err := os.Remove(d.Dest); err != nil {
			return fmt.Errorf("removing oversized distfile %s: %w", d.Dest, err)
		}
		return fetchAllURLs(ctx, d, opts, false)
	}
}

func lockWithContext(ctx context.Context, lock *flock.Flock) (bool, error) {
	return lock.TryLockContext(ctx, 200*time.Millisecond)
}

// ensureIntegrityOrRemove verifies checksums, removing the file on
// mismatch so the caller re-fetches into a clean slate, mirroring
// ensure_integrity_or_rm's delete-on-corruption behavior.
func ensureIntegrityOrRemove(d Distfile) error {
	if err := checksum.Verify(d.Dest, d.Csums); err != nil {
		log.Default().Warn("distfile failed checksum, deleting", "dest", d.Dest, "error", err)
		_ = os.Remove(d.Dest)
		return err
	}
	return nil
}

// fetchAllURLs tries each candidate URL up to opts.Retries times,
// returning FetchFailedAllURLs only once every URL has exhausted its
// retry budget.
func fetchAllURLs(ctx context.Context, d Distfile, opts Options, resume bool) error {
	if len(d.URLs) == 0 {
		return ruyierr.New("fetch", ruyierr.FetchFailedAllURLs, d.Dest, "no candidate URLs provided", nil)
	}

	var lastErr error
	for _, url := range d.URLs {
		for attempt := 0; attempt < opts.Retries; attempt++ {
			if err := fetchOnce(ctx, url, d.Dest, opts, resume && attempt == 0); err != nil {
				lastErr = err
				log.Default().Warn("fetch attempt failed", "url", url, "attempt", attempt+1, "error", err)
				continue
			}
			if err := ensureIntegrityOrRemove(d); err != nil {
				lastErr = err
				continue
			}
			return nil
		}
	}

	return ruyierr.New("fetch", ruyierr.FetchFailedAllURLs, d.Dest,
		fmt.Sprintf("exhausted %d URL(s) after retries", len(d.URLs)), lastErr)
}

func fetchOnce(ctx context.Context, url, dest string, opts Options, resume bool) error {
	var startAt int64
	flags := os.O_WRONLY | os.O_CREATE
	if resume {
		if st, err := os.Stat(dest); err == nil {
			startAt = st.Size()
			flags |= os.O_APPEND
		}
	} else {
		flags |= os.O_TRUNC
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("building request for %s: %w", url, err)
	}
	if startAt > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", startAt))
	}

	resp, err := opts.Client.Do(req)
	if err != nil {
		return fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return fmt.Errorf("fetching %s: unexpected status %s", url, resp.Status)
	}
	if startAt > 0 && resp.StatusCode != http.StatusPartialContent {
		// Server ignored the Range request; restart from scratch.
		startAt = 0
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("creating destination directory: %w", err)
	}

	f, err := os.OpenFile(dest, flags, 0644)
	if err != nil {
		return fmt.Errorf("opening %s: %w", dest, err)
	}
	defer f.Close()

	sink := opts.Sink
	total := resp.ContentLength
	if startAt > 0 && total > 0 {
		total += startAt
	}

	if _, err := io.Copy(io.MultiWriter(f, sink), resp.Body); err != nil {
		return fmt.Errorf("writing %s: %w", dest, err)
	}
	sink.Finish()

	return nil
}
