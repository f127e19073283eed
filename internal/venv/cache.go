package venv

import (
	"bytes"
	"os"

	"github.com/BurntSushi/toml"
)

// CmdMeta records which configured target a shimmed command belongs to,
// so the shim multiplexer (C14) knows whose toolchain_flags to splice.
// RealPath is set only for extra commands (whose real location isn't
// derivable from the target's toolchain_bindir + basename); toolchain
// commands leave it empty and are resolved as toolchain_bindir/<name>.
type CmdMeta struct {
	Target   string `toml:"target"`
	RealPath string `toml:"real_path,omitempty"`
}

// TargetCache is one target's cached flags/paths, schema v2.
type TargetCache struct {
	ToolchainFlags  string `toml:"toolchain_flags"`
	ToolchainBindir string `toml:"toolchain_bindir"`
}

// Cache is the v2 on-disk venv cache (ruyi-cache.v2.toml): per-target
// flags plus a command-name -> target map, read by the shim multiplexer
// to decide what flags to splice for a given argv[0].
type Cache struct {
	SchemaVersion  int                    `toml:"schema_version"`
	Targets        map[string]TargetCache `toml:"targets"`
	CmdMetadataMap map[string]CmdMeta     `toml:"cmd_metadata_map"`
}

const CurrentSchemaVersion = 2

// cacheV0 is the original single-target schema: one flags string shared
// by the (only) configured target.
type cacheV0 struct {
	ProfileCommonFlags string            `toml:"profile_common_flags"`
	ToolchainBindir    string            `toml:"toolchain_bindir"`
	CmdMetadataMap     map[string]CmdMeta `toml:"cmd_metadata_map"`
	PrimaryTarget      string            `toml:"target"`
}

// cacheV1 is multi-target, but still replicates one flags string to
// every target rather than computing flags per-toolchain.
type cacheV1 struct {
	ProfileCommonFlags string                       `toml:"profile_common_flags"`
	Bindirs            map[string]string            `toml:"toolchain_bindirs"`
	CmdMetadataMap     map[string]CmdMeta            `toml:"cmd_metadata_map"`
}

// upgradeV0ToV1 promotes a single-target v0 cache to the v1 shape,
// replicating its one flags string to its one target.
func upgradeV0ToV1(v0 cacheV0) cacheV1 {
	return cacheV1{
		ProfileCommonFlags: v0.ProfileCommonFlags,
		Bindirs:            map[string]string{v0.PrimaryTarget: v0.ToolchainBindir},
		CmdMetadataMap:     v0.CmdMetadataMap,
	}
}

// upgradeV1ToV2 promotes a v1 cache to v2, giving every target its own
// (identical, since v1 had no per-target flags) toolchain_flags entry.
func upgradeV1ToV2(v1 cacheV1) Cache {
	targets := make(map[string]TargetCache, len(v1.Bindirs))
	for target, bindir := range v1.Bindirs {
		targets[target] = TargetCache{
			ToolchainFlags:  v1.ProfileCommonFlags,
			ToolchainBindir: bindir,
		}
	}
	return Cache{
		SchemaVersion:  CurrentSchemaVersion,
		Targets:        targets,
		CmdMetadataMap: v1.CmdMetadataMap,
	}
}

// LoadCache reads a venv cache file of any known schema version and
// returns it upgraded to the current (v2) shape, per spec.md §4.14's
// "upgrades are pure functions applied on load".
func LoadCache(path string) (*Cache, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var probe struct {
		SchemaVersion *int `toml:"schema_version"`
	}
	if _, err := toml.Decode(string(data), &probe); err != nil {
		return nil, err
	}

	switch {
	case probe.SchemaVersion == nil:
		// No schema_version key: either v0 (single target) or v1
		// (multiple target bindirs, no schema_version key either).
		var v1 cacheV1
		if _, err := toml.Decode(string(data), &v1); err == nil && len(v1.Bindirs) > 0 {
			c := upgradeV1ToV2(v1)
			return &c, nil
		}
		var v0 cacheV0
		if _, err := toml.Decode(string(data), &v0); err != nil {
			return nil, err
		}
		c := upgradeV1ToV2(upgradeV0ToV1(v0))
		return &c, nil

	case *probe.SchemaVersion == 1:
		var v1 cacheV1
		if _, err := toml.Decode(string(data), &v1); err != nil {
			return nil, err
		}
		c := upgradeV1ToV2(v1)
		return &c, nil

	default:
		var c Cache
		if _, err := toml.Decode(string(data), &c); err != nil {
			return nil, err
		}
		return &c, nil
	}
}

// WriteCache serializes a v2 cache to path.
func WriteCache(path string, c Cache) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}
