package cmd

import (
	"errors"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/OpenTraceLab/pi7c9xg404/internal/config"
	"github.com/OpenTraceLab/pi7c9xg404/internal/metrics"
	"github.com/OpenTraceLab/pi7c9xg404/pkg/i2c"
	"github.com/OpenTraceLab/pi7c9xg404/pkg/pi7c9xg404"
)

// newOpener returns the opener for the configured bus master. Every bus it
// opens is instrumented by col.
func newOpener(cfg *config.Config, col *metrics.Collector, log logr.Logger) pi7c9xg404.Opener {
	var open pi7c9xg404.Opener
	switch interfaceKind(cfg) {
	case i2c.InterfaceKindMCP2221:
		open = func(bus int, addr uint16) (i2c.Bus, error) {
			log.V(1).Info("opening USB bridge", "serial", cfg.Serial, "bus", bus)
			b, err := i2c.OpenMCP2221(cfg.Serial)
			if err != nil {
				return nil, err
			}
			if cfg.SpeedHz > 0 {
				if err := b.SetSpeed(cfg.SpeedHz); err != nil {
					b.Close()
					return nil, fmt.Errorf("set speed: %w", err)
				}
			}
			return b, nil
		}
	case i2c.InterfaceKindSim:
		open = func(bus int, addr uint16) (i2c.Bus, error) {
			log.V(1).Info("creating simulator", "addr", fmt.Sprintf("0x%02x", addr))
			sim := i2c.NewSimBus()
			sim.Attach(addr, pi7c9xg404.SimResponder(pi7c9xg404.DefaultSimRegisters))
			return sim, nil
		}
	default:
		open = func(bus int, addr uint16) (i2c.Bus, error) {
			log.V(1).Info("opening i2c-dev", "path", fmt.Sprintf("/dev/i2c-%d", bus))
			return pi7c9xg404.LinuxOpener(bus, addr)
		}
	}

	return func(bus int, addr uint16) (i2c.Bus, error) {
		b, err := open(bus, addr)
		if err != nil {
			return nil, err
		}
		return col.Instrument(b), nil
	}
}

// openSession opens the configured switch. A failure to reach it is
// reported the way the tool always has: "ERROR: Can't access device".
func openSession(cfg *config.Config, col *metrics.Collector, log logr.Logger) (*pi7c9xg404.Session, error) {
	sessCfg := cfg.Session()
	sessCfg.Logger = log
	s, err := pi7c9xg404.OpenWith(newOpener(cfg, col, log), cfg.Bus, cfg.Address, sessCfg)
	if err != nil {
		return nil, accessError(cfg, err)
	}
	return s, nil
}

func accessError(cfg *config.Config, err error) error {
	var oe *pi7c9xg404.OpenError
	if errors.As(err, &oe) {
		err = oe.Err
	}
	return fmt.Errorf("ERROR: Can't access device %#04x@i2c-%d: %w", cfg.Address, cfg.Bus, err)
}

// writeMetrics exports col when a metrics file is configured.
func writeMetrics(cfg *config.Config, col *metrics.Collector, log logr.Logger) {
	if cfg.MetricsFile == "" {
		return
	}
	if err := col.WriteTextfile(cfg.MetricsFile); err != nil {
		log.Error(err, "failed to write metrics", "path", cfg.MetricsFile)
	}
}
