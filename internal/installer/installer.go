// Package installer orchestrates install/extract/uninstall: fetching and
// verifying each distfile a package needs, unpacking into a scratch
// directory, and atomically promoting it into place.
package installer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ruyisdk/ruyi-go/internal/checksum"
	"github.com/ruyisdk/ruyi-go/internal/config"
	"github.com/ruyisdk/ruyi-go/internal/fetch"
	"github.com/ruyisdk/ruyi-go/internal/ledger"
	"github.com/ruyisdk/ruyi-go/internal/manifest"
	"github.com/ruyisdk/ruyi-go/internal/progress"
	"github.com/ruyisdk/ruyi-go/internal/ruyierr"
	"github.com/ruyisdk/ruyi-go/internal/unpack"
)

// DistfileURLResolver resolves a distfile's full candidate URL list
// (its own URLs plus repo-configured mirrors); satisfied by
// *metarepo.Repo.
type DistfileURLResolver interface {
	GetDistfileURLs(d manifest.DistfileDecl) []string
}

// Options configures one install/extract/uninstall run.
type Options struct {
	Host       string
	FetchOnly  bool
	Reinstall  bool
	Sink       progress.Sink
	RepoID     string
	AssumeYes  bool
}

func (o Options) sink() progress.Sink {
	if o.Sink != nil {
		return o.Sink
	}
	return progress.NullSink{}
}

// Installer drives the install pipeline over a config, ledger and
// distfile URL resolver.
type Installer struct {
	Config   *config.Config
	Ledger   *ledger.Ledger
	URLs     DistfileURLResolver
	RepoID   string
}

func New(cfg *config.Config, l *ledger.Ledger, urls DistfileURLResolver, repoID string) *Installer {
	return &Installer{Config: cfg, Ledger: l, URLs: urls, RepoID: repoID}
}

// fetchAndMaybeUnpack fetches and checksum-verifies every named distfile,
// and (unless fetchOnly) unpacks each into destDir.
func (inst *Installer) fetchAndMaybeUnpack(ctx context.Context, m *manifest.Manifest, distfileNames []string, destDir string, fetchOnly bool, opts Options) error {
	all := m.Distfiles()
	for _, name := range distfileNames {
		d, ok := all[name]
		if !ok {
			return ruyierr.New("installer", ruyierr.EntityValidationError, name,
				fmt.Sprintf("manifest references undeclared distfile %q", name), nil)
		}

		if d.RestrictsFetch() {
			return ruyierr.New("installer", ruyierr.FetchRestricted, name,
				fmt.Sprintf("distfile %q forbids automatic retrieval", name), nil)
		}

		method, err := resolveUnpackMethod(d)
		if err != nil {
			return err
		}

		dest := inst.Config.DistfilePath(d.Name)
		df := fetch.Distfile{
			URLs:  inst.URLs.GetDistfileURLs(d),
			Dest:  dest,
			Size:  d.Size,
			Csums: toChecksumSums(d.Checksums),
		}
		if err := fetch.Ensure(ctx, df, fetch.Options{
			Retries: config.GetFetchRetries(),
			Timeout: config.GetFetchTimeout(),
			Sink:    opts.sink(),
		}); err != nil {
			return err
		}

		if fetchOnly {
			continue
		}

		if err := os.MkdirAll(destDir, 0755); err != nil {
			return err
		}
		if err := unpack.Unpack(dest, destDir, method, unpack.Options{
			StripComponents:     d.EffectiveStripComponents(),
			SymlinkFallbackName: "",
		}); err != nil {
			return err
		}
	}
	return nil
}

// toChecksumSums adapts a manifest's plain string-keyed checksum map to
// the checksum package's Kind-keyed Sums type.
func toChecksumSums(m map[string]string) checksum.Sums {
	out := make(checksum.Sums, len(m))
	for k, v := range m {
		out[checksum.Kind(k)] = v
	}
	return out
}

func resolveUnpackMethod(d manifest.DistfileDecl) (unpack.Method, error) {
	if d.UnpackMethod != "" {
		return unpack.Method(d.UnpackMethod), nil
	}
	return unpack.Resolve(d.Name, false)
}

// atomicPromote moves a fully-populated scratch directory into place as
// an atomic rename (both paths must be on the same filesystem, which
// holds since both live under the same data root).
func atomicPromote(tmp, root string) error {
	if err := os.MkdirAll(filepath.Dir(root), 0755); err != nil {
		return err
	}
	return os.Rename(tmp, root)
}

func mkScratchDir(parent string) (string, error) {
	if err := os.MkdirAll(parent, 0755); err != nil {
		return "", err
	}
	return os.MkdirTemp(parent, ".ruyi-install-*")
}

// Install installs one resolved manifest under host, per spec.md §4.11.
func (inst *Installer) Install(ctx context.Context, m *manifest.Manifest, opts Options) error {
	switch {
	case m.HasKind(manifest.KindBinary):
		return inst.installBinary(ctx, m, opts)
	case m.HasKind(manifest.KindBlob):
		return inst.installBlob(ctx, m, opts)
	case m.HasKind(manifest.KindSource) && opts.FetchOnly:
		names := m.SourceMetadata().Distfiles
		return inst.fetchAndMaybeUnpack(ctx, m, names, "", true, opts)
	default:
		return ruyierr.New("installer", ruyierr.NotInstallable, m.Name,
			fmt.Sprintf("package %q has no installable binary/blob facet for this operation", m.Name), nil)
	}
}

func (inst *Installer) installBinary(ctx context.Context, m *manifest.Manifest, opts Options) error {
	names := m.DistfileNamesForHost(opts.Host)
	if names == nil {
		return ruyierr.New("installer", ruyierr.NoBinaryForHost, m.Name,
			fmt.Sprintf("package %q has no binary distribution for host %q", m.Name, opts.Host), nil)
	}

	root := inst.Config.BinaryInstallDir(opts.Host, m.Name, m.Version)
	key := ledger.MakeKey(inst.RepoID, m.Category, m.Name, m.Version, opts.Host)
	return inst.installInto(ctx, m, names, root, key, opts)
}

func (inst *Installer) installBlob(ctx context.Context, m *manifest.Manifest, opts Options) error {
	names := m.BlobMetadata().Distfiles
	root := inst.Config.BlobInstallDir(m.Name, m.Version)
	key := ledger.MakeKey(inst.RepoID, m.Category, m.Name, m.Version, "")
	return inst.installInto(ctx, m, names, root, key, opts)
}

func (inst *Installer) installInto(ctx context.Context, m *manifest.Manifest, names []string, root, key string, opts Options) error {
	installed, err := inst.isAlreadyInstalled(root, key)
	if err != nil {
		return err
	}

	if installed && !opts.Reinstall {
		return nil
	}
	if installed && opts.Reinstall {
		if err := inst.Ledger.Remove(key); err != nil {
			return err
		}
		if err := os.RemoveAll(root); err != nil {
			return err
		}
	}

	tmp, err := mkScratchDir(filepath.Dir(root))
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmp)

	if err := inst.fetchAndMaybeUnpack(ctx, m, names, tmp, opts.FetchOnly, opts); err != nil {
		return err
	}

	if opts.FetchOnly {
		return nil
	}

	if err := atomicPromote(tmp, root); err != nil {
		return err
	}

	return inst.Ledger.Record(ledger.Record{
		RepoID:      inst.RepoID,
		Category:    m.Category,
		Name:        m.Name,
		Version:     m.Version,
		Host:        opts.Host,
		InstallPath: root,
		InstallTime: time.Now().UTC(),
	})
}

func (inst *Installer) isAlreadyInstalled(root, key string) (bool, error) {
	if ok, err := inst.Ledger.IsInstalled(key); err != nil {
		return false, err
	} else if ok {
		return true, nil
	}
	entries, err := os.ReadDir(root)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return len(entries) > 0, nil
}

// Extract runs the same fetch/verify/unpack pipeline as Install, but
// directly into destDir with no install-root or ledger bookkeeping.
func (inst *Installer) Extract(ctx context.Context, m *manifest.Manifest, destDir string, opts Options) error {
	var names []string
	switch {
	case m.HasKind(manifest.KindBinary):
		names = m.DistfileNamesForHost(opts.Host)
		if names == nil {
			return ruyierr.New("installer", ruyierr.NoBinaryForHost, m.Name,
				fmt.Sprintf("package %q has no binary distribution for host %q", m.Name, opts.Host), nil)
		}
	case m.HasKind(manifest.KindBlob):
		names = m.BlobMetadata().Distfiles
	case m.HasKind(manifest.KindSource):
		names = m.SourceMetadata().Distfiles
	default:
		return ruyierr.New("installer", ruyierr.NotInstallable, m.Name,
			fmt.Sprintf("package %q has nothing extractable", m.Name), nil)
	}

	return inst.fetchAndMaybeUnpack(ctx, m, names, destDir, opts.FetchOnly, opts)
}

// Uninstall removes an installed package's files and ledger record. A
// directory present without a matching ledger record is a safety
// failure: it may not be ours to delete.
func (inst *Installer) Uninstall(m *manifest.Manifest, host string) error {
	var root, key string
	if m.HasKind(manifest.KindBinary) {
		root = inst.Config.BinaryInstallDir(host, m.Name, m.Version)
		key = ledger.MakeKey(inst.RepoID, m.Category, m.Name, m.Version, host)
	} else {
		root = inst.Config.BlobInstallDir(m.Name, m.Version)
		key = ledger.MakeKey(inst.RepoID, m.Category, m.Name, m.Version, "")
	}

	rec, ok, err := inst.Ledger.Get(key)
	if err != nil {
		return err
	}
	if !ok {
		if _, statErr := os.Stat(root); statErr == nil {
			return ruyierr.New("installer", ruyierr.UntrackedInstallDirPresent, root,
				fmt.Sprintf("%s exists but is not tracked by the installation ledger; refusing to remove", root), nil)
		}
		return nil
	}

	if err := os.RemoveAll(rec.InstallPath); err != nil {
		return err
	}
	return inst.Ledger.Remove(key)
}
