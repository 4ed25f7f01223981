// Package config loads the tool's settings from an optional YAML file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/OpenTraceLab/pi7c9xg404/pkg/pi7c9xg404"
)

type Config struct {
	Bus     int    `yaml:"bus"`
	Address uint16 `yaml:"address"`

	// Adapter selects the bus master: linux, mcp2221 or simulator.
	Adapter string `yaml:"adapter"`
	// Serial picks one of several USB bridges.
	Serial string `yaml:"serial"`
	// SpeedHz programs the bridge clock; zero leaves it alone.
	SpeedHz int `yaml:"speed_hz"`

	PortSize            int  `yaml:"port_size"`
	TolerateWriteErrors bool `yaml:"tolerate_write_errors"`

	MetricsFile string `yaml:"metrics_file"`
}

// Default returns the settings used when neither a file nor flags say
// otherwise.
func Default() Config {
	return Config{
		Bus:      pi7c9xg404.DefaultBus,
		Address:  pi7c9xg404.DefaultAddress,
		Adapter:  "linux",
		PortSize: int(pi7c9xg404.DefaultPortSize),
	}
}

// Load reads path over the defaults. Keys missing from the file keep their
// default values.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &cfg, nil
}

// Session returns the session settings carried by cfg.
func (c *Config) Session() pi7c9xg404.Config {
	return pi7c9xg404.Config{
		PortSize:            c.PortSize,
		TolerateWriteErrors: c.TolerateWriteErrors,
	}
}
