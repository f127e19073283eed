package metarepo

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/ruyisdk/ruyi-go/internal/ruyierr"
)

// RepoConfig is the repo-level config.toml: mirror base URLs keyed by
// distfile name, plus telemetry upload endpoints.
type RepoConfig struct {
	Mirrors   map[string][]string `toml:"mirrors"`
	Telemetry RepoTelemetryConfig `toml:"telemetry"`
}

type RepoTelemetryConfig struct {
	PMTelemetryURL string `toml:"pm_telemetry_url,omitempty"`
}

// loadRepoConfig reads and parses the repo's config.toml. A missing file is
// treated as an empty configuration (mirrors are optional).
func loadRepoConfig(path string) (RepoConfig, error) {
	var cfg RepoConfig
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("reading %s: %w", path, err)
	}
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return cfg, ruyierr.New("metarepo", ruyierr.MalformedConfigFile, path, fmt.Sprintf("parsing repo config: %v", err), err)
	}
	return cfg, nil
}
