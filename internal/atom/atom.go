// Package atom parses and resolves user-facing package specifiers
// ("atoms") against a package store.
package atom

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/ruyisdk/ruyi-go/internal/manifest"
	"github.com/ruyisdk/ruyi-go/internal/ruyierr"
)

// Kind discriminates how an atom is matched. The bare, "name:"-prefixed and
// category-qualified name shapes all parse to KindName.
type Kind string

const (
	KindName Kind = "name"
	KindExpr Kind = "expr"
	KindSlug Kind = "slug"
)

// Atom is a parsed package specifier.
type Atom struct {
	Input    string
	Kind     Kind
	Category string // empty when unspecified
	Name     string // empty for slug atoms
	Slug     string // only set for slug atoms
	Exprs    []string
}

// Store is the subset of a metadata repository's read surface an atom
// needs to resolve against (the spec's ProvidesPackageManifests protocol).
type Store interface {
	GetPkgLatestVer(name, category string, includePrerelease bool) (*manifest.Manifest, error)
	IterPkgVers(name, category string) ([]*manifest.Manifest, error)
	GetPkgBySlug(slug string) (*manifest.Manifest, error)
}

// splitCategory splits "category/name" into its two parts; a bare name
// with no slash yields an empty category.
func splitCategory(name string) (category, rest string) {
	if i := strings.IndexByte(name, '/'); i >= 0 {
		return name[:i], name[i+1:]
	}
	return "", name
}

// Parse parses a raw atom string per spec.md §4.6's grammar:
//   - "slug:" prefix -> slug atom, tail is the slug
//   - "name:" prefix -> name atom, tail is a bare name (no paren-expr allowed)
//   - a "(" appearing before any ":" with a matching trailing ")" -> expr atom
//   - otherwise -> bare name atom
func Parse(s string) (*Atom, error) {
	switch {
	case strings.HasPrefix(s, "slug:"):
		slug := s[len("slug:"):]
		if slug == "" {
			return nil, ruyierr.New("atom", ruyierr.BadAtomSyntax, s, "empty slug", nil)
		}
		return &Atom{Input: s, Kind: KindSlug, Slug: slug}, nil

	case strings.HasPrefix(s, "name:"):
		name := s[len("name:"):]
		if name == "" {
			return nil, ruyierr.New("atom", ruyierr.BadAtomSyntax, s, "empty name", nil)
		}
		cat, n := splitCategory(name)
		return &Atom{Input: s, Kind: KindName, Category: cat, Name: n}, nil
	}

	if name, expr, ok := splitExprForm(s); ok {
		if name == "" || expr == "" {
			return nil, ruyierr.New("atom", ruyierr.BadAtomSyntax, s, "empty name or expression list", nil)
		}
		cat, n := splitCategory(name)
		return &Atom{
			Input:    s,
			Kind:     KindExpr,
			Category: cat,
			Name:     n,
			Exprs:    strings.Split(expr, ","),
		}, nil
	}

	if s == "" || strings.ContainsAny(s, ":()") {
		return nil, ruyierr.New("atom", ruyierr.BadAtomSyntax, s, fmt.Sprintf("invalid atom %q", s), nil)
	}

	cat, n := splitCategory(s)
	return &Atom{Input: s, Kind: KindName, Category: cat, Name: n}, nil
}

// splitExprForm recognizes "name(expr[,expr...])": a '(' occurring before
// any ':' in the input, with the string ending in a matching ')'.
func splitExprForm(s string) (name, expr string, ok bool) {
	colon := strings.IndexByte(s, ':')
	paren := strings.IndexByte(s, '(')
	if paren < 0 || !strings.HasSuffix(s, ")") {
		return "", "", false
	}
	if colon >= 0 && colon < paren {
		return "", "", false
	}
	return s[:paren], s[paren+1 : len(s)-1], true
}

// MatchInRepo resolves the atom against a store, returning the single
// matching manifest, or a tagged NoSuchPackage/NoSatisfyingVersion error.
func (a *Atom) MatchInRepo(store Store, includePrerelease bool) (*manifest.Manifest, error) {
	switch a.Kind {
	case KindSlug:
		return a.matchSlug(store, includePrerelease)
	case KindName:
		return a.matchName(store, includePrerelease)
	case KindExpr:
		return a.matchExpr(store, includePrerelease)
	default:
		return nil, ruyierr.New("atom", ruyierr.BadAtomSyntax, a.Input, "unknown atom kind", nil)
	}
}

func (a *Atom) matchSlug(store Store, includePrerelease bool) (*manifest.Manifest, error) {
	m, err := store.GetPkgBySlug(a.Slug)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, ruyierr.New("atom", ruyierr.NoSuchPackage, a.Input, fmt.Sprintf("no package with slug %q", a.Slug), nil)
	}
	if m.IsPrerelease() && !includePrerelease {
		return nil, ruyierr.New("atom", ruyierr.NoSatisfyingVersion, a.Input,
			fmt.Sprintf("slug %q only resolves to a pre-release and pre-releases are not enabled", a.Slug), nil)
	}
	return m, nil
}

func (a *Atom) matchName(store Store, includePrerelease bool) (*manifest.Manifest, error) {
	m, err := store.GetPkgLatestVer(a.Name, a.Category, includePrerelease)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, ruyierr.New("atom", ruyierr.NoSuchPackage, a.Input, fmt.Sprintf("no such package %q", a.Name), nil)
	}
	return m, nil
}

func (a *Atom) matchExpr(store Store, includePrerelease bool) (*manifest.Manifest, error) {
	constraints := make([]*semver.Constraints, 0, len(a.Exprs))
	for _, e := range a.Exprs {
		c, err := semver.NewConstraint(e)
		if err != nil {
			return nil, ruyierr.New("atom", ruyierr.BadAtomSyntax, a.Input, fmt.Sprintf("invalid version expression %q: %v", e, err), err)
		}
		constraints = append(constraints, c)
	}

	vers, err := store.IterPkgVers(a.Name, a.Category)
	if err != nil {
		return nil, err
	}

	var best *manifest.Manifest
	for _, m := range vers {
		if m.IsPrerelease() && !includePrerelease {
			continue
		}
		if !matchesAll(m.Semver(), constraints) {
			continue
		}
		if best == nil || m.Semver().GreaterThan(best.Semver()) {
			best = m
		}
	}

	if best == nil {
		return nil, ruyierr.New("atom", ruyierr.NoSatisfyingVersion, a.Input,
			fmt.Sprintf("no version of %q satisfies %v", a.Name, a.Exprs), nil)
	}
	return best, nil
}

func matchesAll(v *semver.Version, constraints []*semver.Constraints) bool {
	for _, c := range constraints {
		if !c.Check(v) {
			return false
		}
	}
	return true
}
