package platform

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/linemark/pkg/core"
)

// FileConfig is the YAML shape of a workspace config file
// ({workspace}/{systemDir}/config.yaml). All fields are optional; absent
// fields keep their defaults.
type FileConfig struct {
	Match             core.MatchParams `yaml:"match"`
	QuietPeriodMS     int              `yaml:"quiet_period_ms"`
	RefreshIntervalMS int              `yaml:"refresh_interval_ms"`
	Watch             struct {
		Pattern string `yaml:"pattern"`
	} `yaml:"watch"`
}

// LoadConfig reads a YAML config file over the default values. A missing
// file is not an error; a malformed one is.
func LoadConfig(path string) (FileConfig, error) {
	cfg := FileConfig{Match: core.DefaultMatchParams()}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}
