// Package userconfig provides user configuration management for ruyi.
// Configuration is stored in config/ruyi/config.toml (see internal/config)
// and can be modified via the `ruyi config` command family.
package userconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ruyisdk/ruyi-go/internal/config"
	"github.com/ruyisdk/ruyi-go/internal/log"
)

// TelemetryMode controls whether anonymous usage events are recorded locally
// and/or uploaded. Spec.md §6 "telemetry.mode".
type TelemetryMode string

const (
	TelemetryOff    TelemetryMode = "off"
	TelemetryLocal  TelemetryMode = "local"
	TelemetryOnline TelemetryMode = "on"
)

// DefaultRepoRemote is the upstream metadata repository ruyi clones by default.
const DefaultRepoRemote = "https://github.com/ruyisdk/packages-index.git"

// DefaultRepoBranch is the branch tracked within the metadata repository.
const DefaultRepoBranch = "main"

// Config represents user-configurable settings, mirroring spec.md §6's
// config.toml sections: [installation], [packages], [repo], [telemetry].
type Config struct {
	Installation InstallationConfig `toml:"installation"`
	Packages     PackagesConfig     `toml:"packages"`
	Repo         RepoConfig         `toml:"repo"`
	Telemetry    TelemetryConfig    `toml:"telemetry"`
}

// InstallationConfig controls how ruyi manages installed toolchains.
type InstallationConfig struct {
	// ExternallyManaged marks the install tree as owned by a distro
	// packager; when true, `ruyi self uninstall` refuses to run. Package
	// install and uninstall do not check it.
	ExternallyManaged bool `toml:"externally_managed"`
}

// PackagesConfig controls resolution behavior across all packages.
type PackagesConfig struct {
	// Prereleases, when true, lets the resolver consider prerelease
	// versions alongside stable ones, the same as --prerelease.
	Prereleases bool `toml:"prereleases"`
}

// RepoConfig points at the metadata repository backing C7.
type RepoConfig struct {
	// Remote is the git URL the metadata repo is cloned/fetched from.
	Remote string `toml:"remote"`
	// Branch is the branch checked out within the metadata repo.
	Branch string `toml:"branch"`
	// Local, when set, overrides Remote/Branch with a pre-existing local
	// checkout (or plain directory) used instead of cloning.
	Local string `toml:"local,omitempty"`
}

// TelemetryConfig controls anonymous usage reporting.
type TelemetryConfig struct {
	// Mode is one of "off", "local" (record only), "on" (record + upload).
	Mode TelemetryMode `toml:"mode"`
	// PMTelemetryURL overrides the default upload endpoint.
	PMTelemetryURL string `toml:"pm_telemetry_url,omitempty"`
	// UploadConsent records whether the user has been asked about and
	// agreed to telemetry upload; gates the "on" mode from ever
	// transmitting before explicit consent is on file.
	UploadConsent bool `toml:"upload_consent"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Installation: InstallationConfig{ExternallyManaged: false},
		Packages:     PackagesConfig{Prereleases: false},
		Repo: RepoConfig{
			Remote: DefaultRepoRemote,
			Branch: DefaultRepoBranch,
		},
		Telemetry: TelemetryConfig{Mode: TelemetryLocal},
	}
}

// Load reads the config file and returns the configuration.
// Returns default values if the file doesn't exist.
// Returns an error only for file parsing issues, not missing files.
func Load() (*Config, error) {
	cfg, err := config.DefaultConfig()
	if err != nil {
		return DefaultConfig(), nil
	}

	return loadFromPath(cfg.ConfigFile)
}

// loadFromPath reads config from a specific file path (for testing).
func loadFromPath(path string) (*Config, error) {
	userCfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return userCfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if info, err := os.Stat(path); err == nil {
		mode := info.Mode().Perm()
		if mode&0077 != 0 {
			log.Default().Warn("config file has permissive permissions",
				"path", path,
				"mode", fmt.Sprintf("%04o", mode),
				"expected", "0600",
			)
		}
	}

	if _, err := toml.Decode(string(data), userCfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return userCfg, nil
}

// Save writes the configuration to the config file.
func (c *Config) Save() error {
	cfg, err := config.DefaultConfig()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}

	return c.saveToPath(cfg.ConfigFile)
}

// saveToPath writes config to a specific file path using atomic writes with
// 0600 permissions: write to a temp file in the same directory, then rename.
func (c *Config) saveToPath(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, ".config.toml.tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer os.Remove(tmpPath)

	if err := tmpFile.Chmod(0600); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to set temp file permissions: %w", err)
	}

	encoder := toml.NewEncoder(tmpFile)
	if err := encoder.Encode(c); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write config file: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// TelemetryEnabled returns whether any telemetry recording should happen,
// local or uploaded.
func (c *Config) TelemetryEnabled() bool {
	return c.Telemetry.Mode != TelemetryOff
}

// TelemetryUploadAllowed returns whether recorded telemetry may be
// transmitted: mode must be "on" and consent must be on file.
func (c *Config) TelemetryUploadAllowed() bool {
	return c.Telemetry.Mode == TelemetryOnline && c.Telemetry.UploadConsent
}

// Get returns the value of a config key as a string.
// Returns empty string and false if the key doesn't exist.
func (c *Config) Get(key string) (string, bool) {
	switch strings.ToLower(key) {
	case "installation.externally_managed":
		return strconv.FormatBool(c.Installation.ExternallyManaged), true
	case "packages.prereleases":
		return strconv.FormatBool(c.Packages.Prereleases), true
	case "repo.remote":
		return c.Repo.Remote, true
	case "repo.branch":
		return c.Repo.Branch, true
	case "repo.local":
		return c.Repo.Local, true
	case "telemetry.mode":
		return string(c.Telemetry.Mode), true
	case "telemetry.pm_telemetry_url":
		return c.Telemetry.PMTelemetryURL, true
	case "telemetry.upload_consent":
		return strconv.FormatBool(c.Telemetry.UploadConsent), true
	default:
		return "", false
	}
}

// Set updates a config value from a string.
// Returns an error if the key doesn't exist or the value is invalid.
func (c *Config) Set(key, value string) error {
	switch strings.ToLower(key) {
	case "installation.externally_managed":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid value for installation.externally_managed: must be true or false")
		}
		c.Installation.ExternallyManaged = b
		return nil
	case "packages.prereleases":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid value for packages.prereleases: must be true or false")
		}
		c.Packages.Prereleases = b
		return nil
	case "repo.remote":
		c.Repo.Remote = value
		return nil
	case "repo.branch":
		if value == "" {
			return fmt.Errorf("invalid value for repo.branch: must not be empty")
		}
		c.Repo.Branch = value
		return nil
	case "repo.local":
		c.Repo.Local = value
		return nil
	case "telemetry.mode":
		switch TelemetryMode(value) {
		case TelemetryOff, TelemetryLocal, TelemetryOnline:
			c.Telemetry.Mode = TelemetryMode(value)
			return nil
		default:
			return fmt.Errorf("invalid value for telemetry.mode: must be one of: off, local, on")
		}
	case "telemetry.pm_telemetry_url":
		c.Telemetry.PMTelemetryURL = value
		return nil
	case "telemetry.upload_consent":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid value for telemetry.upload_consent: must be true or false")
		}
		c.Telemetry.UploadConsent = b
		return nil
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
}

// AvailableKeys returns a list of all configurable keys with descriptions.
func AvailableKeys() map[string]string {
	return map[string]string{
		"installation.externally_managed": "Treat the install tree as distro-managed; refuse self-uninstall (true/false)",
		"packages.prereleases":             "Let the resolver consider prerelease versions (true/false)",
		"repo.remote":                      "Git URL of the metadata repository",
		"repo.branch":                      "Branch of the metadata repository to track",
		"repo.local":                       "Path to a local metadata repo checkout, overriding remote/branch",
		"telemetry.mode":                   "Telemetry recording mode: off, local, on",
		"telemetry.pm_telemetry_url":       "Override URL telemetry is uploaded to",
		"telemetry.upload_consent":         "Whether the user has consented to telemetry upload (true/false)",
	}
}
