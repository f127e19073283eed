// Package resolve implements the package resolver: turning an atom plus
// a pre-release policy into a single bound manifest, and diffing the
// installation ledger against a repo for upgradable packages.
package resolve

import (
	"github.com/ruyisdk/ruyi-go/internal/atom"
	"github.com/ruyisdk/ruyi-go/internal/ledger"
	"github.com/ruyisdk/ruyi-go/internal/manifest"
)

// Policy controls how resolution treats pre-release versions.
type Policy struct {
	IncludePrerelease bool
}

// Resolve returns the best-matching manifest for a parsed atom under policy.
func Resolve(store atom.Store, a *atom.Atom, policy Policy) (*manifest.Manifest, error) {
	return a.MatchInRepo(store, policy.IncludePrerelease)
}

// Upgrade pairs an installed ledger record with a newer version found
// in the repo.
type Upgrade struct {
	Installed  ledger.Record
	NewVersion *manifest.Manifest
}

// Store is the subset of metarepo.Repo iter_upgradable needs.
type Store interface {
	atom.Store
	GetPkg(name, category, ver string) (*manifest.Manifest, error)
}

// IterUpgradable walks every ledger record and reports those for which
// the repo carries a strictly newer version under the given policy.
func IterUpgradable(l *ledger.Ledger, store Store, policy Policy) ([]Upgrade, error) {
	records, err := l.ListAll()
	if err != nil {
		return nil, err
	}

	var out []Upgrade
	for _, rec := range records {
		installed, err := store.GetPkg(rec.Name, rec.Category, rec.Version)
		if err != nil {
			return nil, err
		}
		if installed == nil {
			// The installed version has vanished from the repo (e.g. it was
			// retracted); nothing to compare against.
			continue
		}

		latest, err := store.GetPkgLatestVer(rec.Name, rec.Category, policy.IncludePrerelease)
		if err != nil {
			return nil, err
		}
		if latest == nil {
			continue
		}
		if latest.Semver().GreaterThan(installed.Semver()) {
			out = append(out, Upgrade{Installed: rec, NewVersion: latest})
		}
	}
	return out, nil
}
