package config

import (
	"fmt"

	"github.com/OpenTraceLab/pi7c9xg404/pkg/i2c"
	"github.com/OpenTraceLab/pi7c9xg404/pkg/pi7c9xg404"
)

// Validate checks configuration correctness without mutating it.
func Validate(cfg *Config) error {
	if cfg.Bus < 0 {
		return fmt.Errorf("bus %d: must not be negative", cfg.Bus)
	}
	if cfg.Address > i2c.MaxAddress10 {
		return fmt.Errorf("address 0x%X: exceeds the 10-bit address space", cfg.Address)
	}

	kind, err := i2c.ParseInterfaceKind(cfg.Adapter)
	if err != nil {
		return err
	}
	if kind == i2c.InterfaceKindMCP2221 && cfg.Address > i2c.MaxAddress7 {
		return fmt.Errorf("address 0x%X: mcp2221 only supports 7-bit addresses", cfg.Address)
	}
	if cfg.SpeedHz < 0 {
		return fmt.Errorf("speed_hz %d: must not be negative", cfg.SpeedHz)
	}
	if cfg.SpeedHz != 0 && kind != i2c.InterfaceKindMCP2221 {
		return fmt.Errorf("speed_hz: only the mcp2221 adapter can set the bus clock")
	}

	if cfg.PortSize <= 0 || cfg.PortSize > pi7c9xg404.MaxPortSize || cfg.PortSize%pi7c9xg404.WordSize != 0 {
		return fmt.Errorf("port_size %d: must be a positive multiple of %d up to %#x", cfg.PortSize, pi7c9xg404.WordSize, pi7c9xg404.MaxPortSize)
	}
	return nil
}

// Normalize rewrites adapter aliases to their canonical names. It must be
// called only after Validate.
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}
	if kind, err := i2c.ParseInterfaceKind(cfg.Adapter); err == nil {
		cfg.Adapter = string(kind)
	}
}
