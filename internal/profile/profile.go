// Package profile implements the profile registry: target descriptions
// (arch plus arch-specific compiler knobs, plus a set of quirks a
// toolchain must satisfy) parsed from profiles/<arch>.toml.
package profile

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"github.com/ruyisdk/ruyi-go/internal/ruyierr"
)

// Profile is one resolved target profile.
type Profile struct {
	ID         string
	Arch       string
	NeedQuirks map[string]bool

	// RISC-V knobs. Other arches would add their own fields here the
	// same way ruyi's arch-parser registry dispatches by arch name.
	March string
	Mabi  string
	Mcpu   string // empty when unset
}

// NeedQuirksSet returns the profile's required quirks as a slice.
func (p *Profile) NeedQuirksSet() []string {
	out := make([]string, 0, len(p.NeedQuirks))
	for q := range p.NeedQuirks {
		out = append(out, q)
	}
	return out
}

// GetCommonFlags returns the compiler flags for this profile, given the
// resolved toolchain's quirks (used to rewrite mcpu via
// flavor_specific_mcpus when the profile needs a quirk that has an
// override). Prefers -mcpu over -march when mcpu is set.
func (p *Profile) GetCommonFlags(toolchainQuirks []string, mcpuMap map[string]map[string]string) string {
	mcpu := p.Mcpu
	if mcpu != "" {
		for _, q := range toolchainQuirks {
			if !p.NeedQuirks[q] {
				continue
			}
			if sub, ok := mcpuMap[q]; ok {
				if rewritten, ok := sub[mcpu]; ok {
					mcpu = rewritten
				}
			}
		}
	}
	if mcpu != "" {
		return fmt.Sprintf("-mcpu=%s -mabi=%s", mcpu, p.Mabi)
	}
	return fmt.Sprintf("-march=%s -mabi=%s", p.March, p.Mabi)
}

// NeedQuirksSubsetOf reports whether p's required quirks are all present
// in toolchainQuirks, and if not, what's missing (for a precise diff in
// the QuirksUnsatisfied error the venv synthesizer raises).
func (p *Profile) NeedQuirksSubsetOf(toolchainQuirks []string) (ok bool, missing []string) {
	have := make(map[string]bool, len(toolchainQuirks))
	for _, q := range toolchainQuirks {
		have[q] = true
	}
	for q := range p.NeedQuirks {
		if !have[q] {
			missing = append(missing, q)
		}
	}
	return len(missing) == 0, missing
}

// CheckEmulatorFlavor reports whether an emulator flavor's declared
// quirks satisfy this profile's requirements, the same subset check
// NeedQuirksSubsetOf applies to toolchains. ruyi's upstream keeps a
// separate per-flavor needed-quirks table that isn't present in this
// retrieval pack, so this package applies the profile's one NeedQuirks
// set uniformly to both toolchain and emulator-flavor gating.
func (p *Profile) CheckEmulatorFlavor(flavorQuirks []string) (ok bool, missing []string) {
	return p.NeedQuirksSubsetOf(flavorQuirks)
}

// riscvGenericOpts is the shared baseline RISC-V knobs every profile
// inherits unless it declares its own override.
type riscvGenericOpts struct {
	March string `toml:"march"`
	Mabi  string `toml:"mabi"`
	Mcpu  string `toml:"mcpu,omitempty"`
}

type riscvProfileDecl struct {
	Name       string   `toml:"name"`
	NeedFlavor []string `toml:"need_flavor,omitempty"`
	March      string   `toml:"march,omitempty"`
	Mabi       string   `toml:"mabi,omitempty"`
	Mcpu       string   `toml:"mcpu,omitempty"`
}

type riscvArchFile struct {
	Arch               string                       `toml:"arch"`
	GenericOpts        riscvGenericOpts             `toml:"generic_opts"`
	Profiles           []riscvProfileDecl           `toml:"profiles"`
	FlavorSpecificMcpu map[string]map[string]string `toml:"flavor_specific_mcpus,omitempty"`
}

// Registry holds every loaded profile, indexed by ID, plus the
// flavor/mcpu override map needed by GetCommonFlags.
type Registry struct {
	byID   map[string]*Profile
	mcpuMap map[string]map[string]string
}

// ParseRISCV parses a profiles/<riscv32|riscv64>.toml document, emitting
// a synthetic "generic" profile plus every declared override, following
// ruyi's arch/riscv.py registration shape.
func ParseRISCV(data []byte) (*Registry, error) {
	var f riscvArchFile
	if _, err := toml.Decode(string(data), &f); err != nil {
		return nil, ruyierr.New("profile", ruyierr.MalformedConfigFile, "", fmt.Sprintf("parsing profile file: %v", err), err)
	}

	reg := &Registry{byID: make(map[string]*Profile), mcpuMap: f.FlavorSpecificMcpu}

	build := func(name string, needFlavor []string, march, mabi, mcpu string) *Profile {
		p := &Profile{ID: name, Arch: f.Arch, NeedQuirks: make(map[string]bool)}
		for _, fl := range needFlavor {
			p.NeedQuirks[fl] = true
		}
		p.March = march
		if p.March == "" {
			p.March = f.GenericOpts.March
		}
		p.Mabi = mabi
		if p.Mabi == "" {
			p.Mabi = f.GenericOpts.Mabi
		}
		p.Mcpu = mcpu
		if p.Mcpu == "" {
			p.Mcpu = f.GenericOpts.Mcpu
		}
		return p
	}

	reg.byID["generic"] = build("generic", nil, "", "", "")
	for _, pd := range f.Profiles {
		reg.byID[pd.Name] = build(pd.Name, pd.NeedFlavor, pd.March, pd.Mabi, pd.Mcpu)
	}

	return reg, nil
}

// Get returns a profile by ID, or nil.
func (r *Registry) Get(id string) *Profile { return r.byID[id] }

// MustGet returns a profile by ID, or a tagged UnknownProfile error.
func (r *Registry) MustGet(id string) (*Profile, error) {
	p := r.byID[id]
	if p == nil {
		return nil, ruyierr.New("profile", ruyierr.UnknownProfile, id, fmt.Sprintf("unknown profile %q", id), nil)
	}
	return p, nil
}

// McpuMap exposes the flavor->mcpu override table for GetCommonFlags callers.
func (r *Registry) McpuMap() map[string]map[string]string { return r.mcpuMap }
