// Package metarepo implements the metadata repository: a git-backed
// working tree of package manifests, profiles, entities, messages,
// plugins and news, synchronized from a configured remote.
package metarepo

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ruyisdk/ruyi-go/internal/manifest"
	"github.com/ruyisdk/ruyi-go/internal/pluginhost"
	"github.com/ruyisdk/ruyi-go/internal/ruyierr"
)

// Repo is a bound metadata repository rooted at a local git working tree.
type Repo struct {
	root   string
	remote string
	branch string

	config RepoConfig

	// allowRemoteRewrite mirrors the user config's
	// installation.externally_managed negation: when true, sync() is
	// allowed to rewrite a mismatched remote URL instead of failing.
	allowRemoteRewrite bool

	pluginEval pluginhost.Evaluator
}

// New constructs a Repo handle. It does not touch the filesystem; call
// EnsureGitRepo to materialize the working tree.
func New(root, remote, branch string, allowRemoteRewrite bool) *Repo {
	return &Repo{root: root, remote: remote, branch: branch, allowRemoteRewrite: allowRemoteRewrite}
}

// Root returns the repo's local working-tree path.
func (r *Repo) Root() string { return r.root }

func (r *Repo) runGit(ctx context.Context, args ...string) (string, error) {
	if _, err := exec.LookPath("git"); err != nil {
		return "", ruyierr.New("metarepo", ruyierr.ExternalToolMissing, "git", "git binary not found in PATH", err)
	}
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = r.root
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, stderr.String())
	}
	return stdout.String(), nil
}

// EnsureGitRepo clones the repo if the local working tree is absent,
// otherwise leaves an existing checkout alone, then loads config.toml.
func (r *Repo) EnsureGitRepo(ctx context.Context) error {
	if _, err := os.Stat(filepath.Join(r.root, ".git")); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(r.root), 0755); err != nil {
			return err
		}
		if _, err := exec.LookPath("git"); err != nil {
			return ruyierr.New("metarepo", ruyierr.ExternalToolMissing, "git", "git binary not found in PATH", err)
		}
		cmd := exec.CommandContext(ctx, "git", "clone", "--branch", r.branch, r.remote, r.root)
		var stderr bytes.Buffer
		cmd.Stderr = &stderr
		if err := cmd.Run(); err != nil {
			return fmt.Errorf("cloning %s: %w: %s", r.remote, err, stderr.String())
		}
	} else if err != nil {
		return err
	}

	cfg, err := loadRepoConfig(filepath.Join(r.root, "config.toml"))
	if err != nil {
		return err
	}
	r.config = cfg
	return nil
}

// currentRemoteURL returns the "origin" remote's configured URL.
func (r *Repo) currentRemoteURL(ctx context.Context) (string, error) {
	out, err := r.runGit(ctx, "remote", "get-url", "origin")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// Sync fetches the configured remote and fast-forwards the local branch.
// It never merges or resets: a non-fast-forwardable history is reported as
// CannotFastForward rather than silently discarded.
func (r *Repo) Sync(ctx context.Context) error {
	if err := r.EnsureGitRepo(ctx); err != nil {
		return err
	}

	current, err := r.currentRemoteURL(ctx)
	if err != nil {
		return err
	}
	if current != r.remote {
		if !r.allowRemoteRewrite {
			return ruyierr.New("metarepo", ruyierr.RemoteURLMismatch, r.root,
				fmt.Sprintf("configured remote %q does not match repo's origin %q", r.remote, current), nil)
		}
		if _, err := r.runGit(ctx, "remote", "set-url", "origin", r.remote); err != nil {
			return err
		}
	}

	if _, err := r.runGit(ctx, "fetch", "origin", r.branch); err != nil {
		return err
	}

	// --ff-only refuses (rather than silently merging/rebasing) when the
	// local branch has diverged from origin/<branch>.
	if _, err := r.runGit(ctx, "merge", "--ff-only", "origin/"+r.branch); err != nil {
		return ruyierr.New("metarepo", ruyierr.CannotFastForward, r.branch,
			fmt.Sprintf("local branch %s cannot be fast-forwarded to origin/%s", r.branch, r.branch), err)
	}

	cfg, err := loadRepoConfig(filepath.Join(r.root, "config.toml"))
	if err != nil {
		return err
	}
	r.config = cfg
	return nil
}

func (r *Repo) manifestsDir() string { return filepath.Join(r.root, "manifests") }

// loadManifestFile reads and parses one manifests/<cat>/<name>/<ver>.toml file.
func (r *Repo) loadManifestFile(category, name, path string) (*manifest.Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	ver := strings.TrimSuffix(filepath.Base(path), ".toml")
	return manifest.Parse(category, name, ver, data)
}

// IterPkgManifests iterates over every manifest in the repository.
func (r *Repo) IterPkgManifests() ([]*manifest.Manifest, error) {
	var out []*manifest.Manifest
	root := r.manifestsDir()
	categories, err := os.ReadDir(root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	for _, catEnt := range categories {
		if !catEnt.IsDir() {
			continue
		}
		category := catEnt.Name()
		names, err := os.ReadDir(filepath.Join(root, category))
		if err != nil {
			return nil, err
		}
		for _, nameEnt := range names {
			if !nameEnt.IsDir() {
				continue
			}
			name := nameEnt.Name()
			vers, err := os.ReadDir(filepath.Join(root, category, name))
			if err != nil {
				return nil, err
			}
			for _, verEnt := range vers {
				if verEnt.IsDir() || !strings.HasSuffix(verEnt.Name(), ".toml") {
					continue
				}
				m, err := r.loadManifestFile(category, name, filepath.Join(root, category, name, verEnt.Name()))
				if err != nil {
					return nil, err
				}
				out = append(out, m)
			}
		}
	}
	return out, nil
}

// IterPkgs groups manifests by (category, name), each with its versions
// indexed by version string.
func (r *Repo) IterPkgs() (map[string]map[string]map[string]*manifest.Manifest, error) {
	all, err := r.IterPkgManifests()
	if err != nil {
		return nil, err
	}
	out := make(map[string]map[string]map[string]*manifest.Manifest)
	for _, m := range all {
		if out[m.Category] == nil {
			out[m.Category] = make(map[string]map[string]*manifest.Manifest)
		}
		if out[m.Category][m.Name] == nil {
			out[m.Category][m.Name] = make(map[string]*manifest.Manifest)
		}
		out[m.Category][m.Name][m.Version] = m
	}
	return out, nil
}

// resolveCategories returns category itself when it is set, and otherwise
// every category that has a directory for the bare package name.
func (r *Repo) resolveCategories(name, category string) ([]string, error) {
	if category != "" {
		return []string{category}, nil
	}
	root := r.manifestsDir()
	entries, err := os.ReadDir(root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var cats []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(root, e.Name(), name)); err == nil {
			cats = append(cats, e.Name())
		}
	}
	return cats, nil
}

// IterPkgVers implements atom.Store: every version of name (optionally
// scoped to category).
func (r *Repo) IterPkgVers(name, category string) ([]*manifest.Manifest, error) {
	cats, err := r.resolveCategories(name, category)
	if err != nil {
		return nil, err
	}
	var out []*manifest.Manifest
	for _, cat := range cats {
		dir := filepath.Join(r.manifestsDir(), cat, name)
		entries, err := os.ReadDir(dir)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".toml") {
				continue
			}
			m, err := r.loadManifestFile(cat, name, filepath.Join(dir, e.Name()))
			if err != nil {
				return nil, err
			}
			out = append(out, m)
		}
	}
	return out, nil
}

// GetPkg returns the exact (category, name, version) manifest, or nil.
func (r *Repo) GetPkg(name, category, ver string) (*manifest.Manifest, error) {
	cats, err := r.resolveCategories(name, category)
	if err != nil {
		return nil, err
	}
	for _, cat := range cats {
		path := filepath.Join(r.manifestsDir(), cat, name, ver+".toml")
		if _, err := os.Stat(path); err == nil {
			return r.loadManifestFile(cat, name, path)
		}
	}
	return nil, nil
}

// GetPkgLatestVer implements atom.Store.
func (r *Repo) GetPkgLatestVer(name, category string, includePrerelease bool) (*manifest.Manifest, error) {
	vers, err := r.IterPkgVers(name, category)
	if err != nil {
		return nil, err
	}
	var best *manifest.Manifest
	for _, m := range vers {
		if m.IsPrerelease() && !includePrerelease {
			continue
		}
		if best == nil || m.Semver().GreaterThan(best.Semver()) {
			best = m
		}
	}
	return best, nil
}

// GetPkgBySlug implements atom.Store, scanning every manifest for a
// matching slug. (ruyi's original implementation notes this should be
// replaced by an index once slugs see wider use; we keep the same
// linear-scan semantics here.)
func (r *Repo) GetPkgBySlug(slug string) (*manifest.Manifest, error) {
	all, err := r.IterPkgManifests()
	if err != nil {
		return nil, err
	}
	for _, m := range all {
		if m.Slug() == slug {
			return m, nil
		}
	}
	return nil, nil
}

// GetDistfileURLs combines a distfile declaration's own URLs with
// config-configured mirror bases, in config order then mirror-config
// order, honoring restrict.mirror.
func (r *Repo) GetDistfileURLs(d manifest.DistfileDecl) []string {
	urls := append([]string{}, d.URLs...)
	if d.RestrictsMirror() {
		return urls
	}
	bases := r.config.Mirrors[d.Name]
	for _, base := range bases {
		urls = append(urls, strings.TrimRight(base, "/")+"/"+d.Name)
	}
	return urls
}

// SetPluginEvaluator is called by the process wiring the repo together (the
// concrete scripted-plugin runtime is pluggable; see internal/pluginhost).
func (r *Repo) SetPluginEvaluator(ev pluginhost.Evaluator) { r.pluginEval = ev }

// GetFromPlugin reads a top-level binding from a plugin module.
func (r *Repo) GetFromPlugin(pluginID, key string) (pluginhost.Value, error) {
	if r.pluginEval == nil {
		return pluginhost.None, fmt.Errorf("no plugin evaluator configured")
	}
	return r.pluginEval.Value(pluginID, key)
}

// EvalPluginFn calls a plugin-exported function (used for device
// provisioning strategies).
func (r *Repo) EvalPluginFn(pluginID, fn string, args ...pluginhost.Value) (pluginhost.Value, error) {
	if r.pluginEval == nil {
		return pluginhost.None, fmt.Errorf("no plugin evaluator configured")
	}
	return r.pluginEval.Call(pluginID, fn, args...)
}

// sortedManifestVersions returns a copy of ms ordered by ascending semver.
// Nothing in this package calls it at present.
func sortedManifestVersions(ms []*manifest.Manifest) []*manifest.Manifest {
	out := append([]*manifest.Manifest{}, ms...)
	sort.Slice(out, func(i, j int) bool { return out[i].Semver().LessThan(out[j].Semver()) })
	return out
}
