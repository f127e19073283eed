// Package manifest parses and canonically serializes package manifests:
// the per-version TOML documents describing a package's distfiles and
// its binary/blob/source/toolchain/emulator/provisionable metadata.
package manifest

import (
	"bytes"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/Masterminds/semver/v3"

	"github.com/ruyisdk/ruyi-go/internal/ruyierr"
)

// Kind names a facet a manifest declares under its top-level kind list.
type Kind string

const (
	KindBinary        Kind = "binary"
	KindBlob          Kind = "blob"
	KindSource        Kind = "source"
	KindToolchain     Kind = "toolchain"
	KindEmulator      Kind = "emulator"
	KindProvisionable Kind = "provisionable"
)

// Vendor identifies the upstream or packager responsible for a package.
type Vendor struct {
	Name string `toml:"name"`
	Eula string `toml:"eula,omitempty"`
}

// Metadata carries the manifest's free-text description and optional slug.
type Metadata struct {
	Desc   string `toml:"desc"`
	Vendor Vendor `toml:"vendor"`
	Slug   string `toml:"slug,omitempty"`
}

// DistfileDecl describes one file a manifest depends on fetching.
type DistfileDecl struct {
	Name            string            `toml:"name"`
	Size            int64             `toml:"size"`
	Checksums       map[string]string `toml:"checksums"`
	URLs            []string          `toml:"urls,omitempty"`
	Restrict        []string          `toml:"restrict,omitempty"`
	StripComponents int               `toml:"strip_components,omitempty"`
	UnpackMethod    string            `toml:"unpack_method,omitempty"`
}

// EffectiveStripComponents returns the distfile's strip_components,
// defaulting to 1 when unset (ruyi's pkg_manifest.py default).
func (d DistfileDecl) EffectiveStripComponents() int {
	if d.StripComponents == 0 {
		return 1
	}
	return d.StripComponents
}

// RestrictsFetch reports whether automatic retrieval is forbidden.
func (d DistfileDecl) RestrictsFetch() bool {
	return containsStr(d.Restrict, "fetch")
}

// RestrictsMirror reports whether mirror URLs are forbidden.
func (d DistfileDecl) RestrictsMirror() bool {
	return containsStr(d.Restrict, "mirror")
}

func containsStr(ss []string, want string) bool {
	for _, s := range ss {
		if s == want {
			return true
		}
	}
	return false
}

// BinaryHostDecl lists the distfiles and shim commands for one host under
// a binary package's per-host breakdown.
type BinaryHostDecl struct {
	Host      string            `toml:"host"`
	Distfiles []string          `toml:"distfiles"`
	Commands  map[string]string `toml:"commands,omitempty"`
}

// BlobDecl is the host-agnostic raw-file facet.
type BlobDecl struct {
	Distfiles []string `toml:"distfiles"`
}

// SourceDecl is the build-from-source facet.
type SourceDecl struct {
	Distfiles []string `toml:"distfiles"`
}

// ToolchainComponent names one piece of a toolchain package (e.g. gcc, binutils).
type ToolchainComponent struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// ToolchainDecl is the cross-toolchain facet.
//
// The spec calls this field "quirks"; ruyi's original Python source calls
// the same concept "flavors". Both name the same thing: a set of strings a
// profile must satisfy (or a venv must request) before this toolchain is
// usable. This package follows the spec's "quirks" naming throughout; see
// DESIGN.md for the disambiguation note.
type ToolchainDecl struct {
	Target           string               `toml:"target"`
	Quirks           []string             `toml:"quirks,omitempty"`
	Components       []ToolchainComponent `toml:"components"`
	IncludedSysroot  string               `toml:"included_sysroot,omitempty"`
}

// HasQuirk reports whether the toolchain declares the named quirk.
func (t ToolchainDecl) HasQuirk(q string) bool {
	return containsStr(t.Quirks, q)
}

// ComponentVersion returns the version of the named component, if present.
func (t ToolchainDecl) ComponentVersion(name string) (string, bool) {
	for _, c := range t.Components {
		if c.Name == name {
			return c.Version, true
		}
	}
	return "", false
}

// EmulatorFlavor describes one supported emulator personality.
type EmulatorFlavor struct {
	Name            string   `toml:"name"`
	Quirks          []string `toml:"quirks,omitempty"`
	SupportedArches []string `toml:"supported_arches"`
}

// EmulatorProgram names one emulator binary shipped by the package.
type EmulatorProgram struct {
	Path            string   `toml:"path"`
	Flavor          string   `toml:"flavor"`
	SupportedArches []string `toml:"supported_arches"`
	BinfmtMisc      string   `toml:"binfmt_misc,omitempty"`
}

// EmulatorDecl is the user-mode/system emulator facet.
type EmulatorDecl struct {
	Flavors  []EmulatorFlavor  `toml:"flavors"`
	Programs []EmulatorProgram `toml:"program"`
}

// ProvisionableDecl is the device-flashing facet.
type ProvisionableDecl struct {
	Strategy     string            `toml:"strategy"`
	PartitionMap map[string]string `toml:"partition_map"`
}

// Manifest is a package manifest as parsed from
// manifests/{category}/{name}/{version}.toml, before it has been bound to
// a repository handle.
type Manifest struct {
	Format        string              `toml:"format"`
	MetadataField Metadata            `toml:"metadata"`
	Distfiles_    []DistfileDecl      `toml:"distfiles"`
	Kind_         []Kind              `toml:"kind"`
	Binary        []BinaryHostDecl    `toml:"binary,omitempty"`
	Blob          *BlobDecl           `toml:"blob,omitempty"`
	Source        *SourceDecl         `toml:"source,omitempty"`
	Toolchain     *ToolchainDecl      `toml:"toolchain,omitempty"`
	Emulator      *EmulatorDecl       `toml:"emulator,omitempty"`
	Provisionable *ProvisionableDecl  `toml:"provisionable,omitempty"`

	// Category, Name and Version do not live in the TOML body: they come
	// from the manifest's storage path and filename (spec.md §3).
	Category string `toml:"-"`
	Name     string `toml:"-"`
	Version  string `toml:"-"`

	semver *semver.Version
}

// ruyiDatestampRE matches a pre-release string that is only a ruyi build
// datestamp, not a genuine pre-release marker (spec.md §3).
var ruyiDatestampRE = regexp.MustCompile(`^ruyi\.\d+$`)

// Parse decodes raw TOML bytes into a Manifest attributed to the given
// category/name/version (derived by the caller from the storage path),
// validating the invariants spec.md §3 requires.
func Parse(category, name, version string, data []byte) (*Manifest, error) {
	var m Manifest
	if _, err := toml.Decode(string(data), &m); err != nil {
		return nil, ruyierr.New("manifest", ruyierr.MalformedConfigFile, name, fmt.Sprintf("parsing manifest TOML: %v", err), err)
	}
	m.Category = category
	m.Name = name
	m.Version = version

	sv, err := semver.NewVersion(version)
	if err != nil {
		return nil, ruyierr.New("manifest", ruyierr.MalformedConfigFile, name, fmt.Sprintf("version %q does not parse as semver: %v", version, err), err)
	}
	m.semver = sv

	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Manifest) validate() error {
	hasBinary := m.HasKind(KindBinary)
	hasSource := m.HasKind(KindSource)
	if hasBinary && hasSource {
		return ruyierr.New("manifest", ruyierr.EntityValidationError, m.Name,
			"manifest declares both binary and source kinds; only one is allowed", nil)
	}

	known := m.Distfiles()
	for _, host := range m.Binary {
		for _, ref := range host.Distfiles {
			if _, ok := known[ref]; !ok {
				return ruyierr.New("manifest", ruyierr.EntityValidationError, m.Name,
					fmt.Sprintf("binary[%s] references undeclared distfile %q", host.Host, ref), nil)
			}
		}
	}

	for _, d := range m.Distfiles_ {
		if len(d.Checksums) == 0 {
			return ruyierr.New("manifest", ruyierr.EntityValidationError, m.Name,
				fmt.Sprintf("distfile %q declares no checksums", d.Name), nil)
		}
		for algo, hex := range d.Checksums {
			wantLen, ok := checksumHexLen[algo]
			if !ok {
				continue
			}
			if len(hex) != wantLen {
				return ruyierr.New("manifest", ruyierr.EntityValidationError, m.Name,
					fmt.Sprintf("distfile %q checksum %s has length %d, want %d", d.Name, algo, len(hex), wantLen), nil)
			}
		}
	}
	return nil
}

var checksumHexLen = map[string]int{
	"sha256": 64,
	"sha512": 128,
}

// Semver returns the manifest's parsed semantic version.
func (m *Manifest) Semver() *semver.Version { return m.semver }

// IsPrerelease reports whether the manifest's version is a genuine
// pre-release, applying the ruyi.NNN datestamp exception from spec.md §3.
func (m *Manifest) IsPrerelease() bool {
	pre := m.semver.Prerelease()
	if pre == "" {
		return false
	}
	return !ruyiDatestampRE.MatchString(pre)
}

// HasKind reports whether the manifest declares the given kind.
func (m *Manifest) HasKind(k Kind) bool {
	for _, kk := range m.Kind_ {
		if kk == k {
			return true
		}
	}
	return false
}

// Slug returns the manifest's declared slug, if any.
func (m *Manifest) Slug() string { return m.MetadataField.Slug }

// Desc returns the manifest's free-text description.
func (m *Manifest) Desc() string { return m.MetadataField.Desc }

// NameForInstallation returns the "{name}-{version}" string used as the
// default install-directory leaf name.
func (m *Manifest) NameForInstallation() string {
	return fmt.Sprintf("%s-%s", m.Name, m.Version)
}

// Distfiles returns the manifest's distfiles indexed by name.
func (m *Manifest) Distfiles() map[string]DistfileDecl {
	out := make(map[string]DistfileDecl, len(m.Distfiles_))
	for _, d := range m.Distfiles_ {
		out[d.Name] = d
	}
	return out
}

// BinaryMetadata returns the binary facet, or nil if the manifest does not
// declare the binary kind or carry binary data.
func (m *Manifest) BinaryMetadata() []BinaryHostDecl {
	if !m.HasKind(KindBinary) {
		return nil
	}
	return m.Binary
}

// DistfileNamesForHost returns the distfile names a binary package needs
// to install on the given host, or nil if the host is unsupported.
func (m *Manifest) DistfileNamesForHost(host string) []string {
	for _, h := range m.Binary {
		if h.Host == host {
			return h.Distfiles
		}
	}
	return nil
}

// BlobMetadata returns the blob facet, or nil.
func (m *Manifest) BlobMetadata() *BlobDecl {
	if !m.HasKind(KindBlob) {
		return nil
	}
	return m.Blob
}

// SourceMetadata returns the source facet, or nil.
func (m *Manifest) SourceMetadata() *SourceDecl {
	if !m.HasKind(KindSource) {
		return nil
	}
	return m.Source
}

// ToolchainMetadata returns the toolchain facet, or nil.
func (m *Manifest) ToolchainMetadata() *ToolchainDecl {
	if !m.HasKind(KindToolchain) {
		return nil
	}
	return m.Toolchain
}

// EmulatorMetadata returns the emulator facet, or nil.
func (m *Manifest) EmulatorMetadata() *EmulatorDecl {
	if !m.HasKind(KindEmulator) {
		return nil
	}
	return m.Emulator
}

// ProvisionableMetadata returns the provisionable facet, or nil.
func (m *Manifest) ProvisionableMetadata() *ProvisionableDecl {
	if !m.HasKind(KindProvisionable) {
		return nil
	}
	return m.Provisionable
}

// HasKnownIssues reports whether the metadata repo's messages store (keyed
// by category/name/version) carries any entries for this manifest. The
// caller supplies the lookup since the manifest itself holds no back
// reference before being bound to a repo (spec.md §3's "weak back
// reference" ownership rule).
func (m *Manifest) HasKnownIssues(knownIssueKeys map[string]bool) bool {
	return knownIssueKeys[m.Category+"/"+m.Name+" "+m.Version]
}

// ToTOML produces the canonical TOML encoding of the manifest: fixed key
// order per table, an inline table for vendor, and sorted checksum keys.
// Re-parsing this output must reproduce semantically identical data
// (spec.md §4.5's round-trip invariant); it deliberately does not use
// generic struct-tag marshaling so that key order and inlining stay under
// direct control, the way a hand-rolled builder would.
func (m *Manifest) ToTOML() ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "format = %q\n", m.Format)

	kindStrs := make([]string, len(m.Kind_))
	for i, k := range m.Kind_ {
		kindStrs[i] = string(k)
	}
	fmt.Fprintf(&buf, "kind = %s\n\n", quotedList(kindStrs))

	buf.WriteString("[metadata]\n")
	fmt.Fprintf(&buf, "desc = %q\n", m.MetadataField.Desc)
	if m.MetadataField.Slug != "" {
		fmt.Fprintf(&buf, "slug = %q\n", m.MetadataField.Slug)
	}
	fmt.Fprintf(&buf, "vendor = %s\n", inlineVendor(m.MetadataField.Vendor))
	buf.WriteString("\n")

	for _, d := range m.Distfiles_ {
		buf.WriteString("[[distfiles]]\n")
		fmt.Fprintf(&buf, "name = %q\n", d.Name)
		fmt.Fprintf(&buf, "size = %d\n", d.Size)
		buf.WriteString(inlineChecksums(d.Checksums))
		buf.WriteString("\n")
		if len(d.URLs) > 0 {
			fmt.Fprintf(&buf, "urls = %s\n", quotedList(d.URLs))
		}
		if len(d.Restrict) > 0 {
			fmt.Fprintf(&buf, "restrict = %s\n", quotedList(d.Restrict))
		}
		if d.StripComponents != 0 {
			fmt.Fprintf(&buf, "strip_components = %d\n", d.StripComponents)
		}
		if d.UnpackMethod != "" {
			fmt.Fprintf(&buf, "unpack_method = %q\n", d.UnpackMethod)
		}
		buf.WriteString("\n")
	}

	for _, h := range m.Binary {
		buf.WriteString("[[binary]]\n")
		fmt.Fprintf(&buf, "host = %q\n", h.Host)
		fmt.Fprintf(&buf, "distfiles = %s\n", quotedList(h.Distfiles))
		if len(h.Commands) > 0 {
			buf.WriteString(inlineStrMap("commands", h.Commands))
		}
		buf.WriteString("\n")
	}

	if m.Blob != nil {
		buf.WriteString("[blob]\n")
		fmt.Fprintf(&buf, "distfiles = %s\n\n", quotedList(m.Blob.Distfiles))
	}

	if m.Source != nil {
		buf.WriteString("[source]\n")
		fmt.Fprintf(&buf, "distfiles = %s\n\n", quotedList(m.Source.Distfiles))
	}

	if m.Toolchain != nil {
		buf.WriteString("[toolchain]\n")
		fmt.Fprintf(&buf, "target = %q\n", m.Toolchain.Target)
		if len(m.Toolchain.Quirks) > 0 {
			fmt.Fprintf(&buf, "quirks = %s\n", quotedList(m.Toolchain.Quirks))
		}
		if m.Toolchain.IncludedSysroot != "" {
			fmt.Fprintf(&buf, "included_sysroot = %q\n", m.Toolchain.IncludedSysroot)
		}
		buf.WriteString("\n")
		for _, c := range m.Toolchain.Components {
			buf.WriteString("[[toolchain.components]]\n")
			fmt.Fprintf(&buf, "name = %q\n", c.Name)
			fmt.Fprintf(&buf, "version = %q\n", c.Version)
			buf.WriteString("\n")
		}
	}

	if m.Emulator != nil {
		for _, f := range m.Emulator.Flavors {
			buf.WriteString("[[emulator.flavors]]\n")
			fmt.Fprintf(&buf, "name = %q\n", f.Name)
			if len(f.Quirks) > 0 {
				fmt.Fprintf(&buf, "quirks = %s\n", quotedList(f.Quirks))
			}
			fmt.Fprintf(&buf, "supported_arches = %s\n\n", quotedList(f.SupportedArches))
		}
		for _, p := range m.Emulator.Programs {
			buf.WriteString("[[emulator.program]]\n")
			fmt.Fprintf(&buf, "path = %q\n", p.Path)
			fmt.Fprintf(&buf, "flavor = %q\n", p.Flavor)
			fmt.Fprintf(&buf, "supported_arches = %s\n", quotedList(p.SupportedArches))
			if p.BinfmtMisc != "" {
				fmt.Fprintf(&buf, "binfmt_misc = %q\n", p.BinfmtMisc)
			}
			buf.WriteString("\n")
		}
	}

	if m.Provisionable != nil {
		buf.WriteString("[provisionable]\n")
		fmt.Fprintf(&buf, "strategy = %q\n", m.Provisionable.Strategy)
		buf.WriteString(inlineStrMap("partition_map", m.Provisionable.PartitionMap))
		buf.WriteString("\n")
	}

	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func inlineVendor(v Vendor) string {
	parts := []string{fmt.Sprintf("name = %q", v.Name)}
	if v.Eula != "" {
		parts = append(parts, fmt.Sprintf("eula = %q", v.Eula))
	}
	return "{ " + strings.Join(parts, ", ") + " }"
}

func inlineChecksums(sums map[string]string) string {
	keys := make([]string, 0, len(sums))
	for k := range sums {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s = %q", k, sums[k])
	}
	return "checksums = { " + strings.Join(parts, ", ") + " }"
}

func inlineStrMap(key string, m map[string]string) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%q = %q", k, m[k])
	}
	return fmt.Sprintf("%s = { %s }\n", key, strings.Join(parts, ", "))
}

func quotedList(ss []string) string {
	parts := make([]string, len(ss))
	for i, s := range ss {
		parts[i] = fmt.Sprintf("%q", s)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
