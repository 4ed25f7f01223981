package cmd

import (
	"fmt"
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/OpenTraceLab/pi7c9xg404/internal/config"
	"github.com/OpenTraceLab/pi7c9xg404/pkg/i2c"
	"github.com/OpenTraceLab/pi7c9xg404/pkg/pi7c9xg404"
)

var (
	// Global flags
	verbose             bool
	busIndex            uint64
	chipAddr            uint64
	adapterType         string
	adapterSerial       string
	adapterSpeed        int
	configPath          string
	tolerateWriteErrors bool
	metricsFile         string
)

var rootCmd = &cobra.Command{
	Use:   "pi7c9xg404",
	Short: "Dump the port registers of a PI7C9XG404 PCIe switch over I2C",
	Long: `Read the configuration register banks of a Pericom/Diodes PI7C9XG404
PCIe packet switch through its I2C slave interface and print them.

Without a subcommand the tool dumps all four ports, like "dump".

Examples:
  pi7c9xg404                                   # Dump all ports of 0x38 on /dev/i2c-1
  pi7c9xg404 -i 0 -c 0x39 dump --port 2        # Dump Port2 of 0x39 on /dev/i2c-0
  pi7c9xg404 read 1 0x34                       # Read the Port1 capabilities pointer
  pi7c9xg404 --adapter simulator dump --json   # Exercise the tool without hardware`,
	Version:       "0.3.0",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runDump,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	pf.VarP(newUintValue(pi7c9xg404.DefaultBus, 31, &busIndex), "i2c-bus", "i",
		"I2C bus number (/dev/i2c-N)")
	pf.VarP(newUintValue(pi7c9xg404.DefaultAddress, 10, &chipAddr), "chip-addr", "c",
		"switch I2C address (decimal, 0x hex, 0o octal or 0b binary)")
	pf.StringVarP(&adapterType, "adapter", "a", "linux",
		"bus master (linux, mcp2221, simulator)")
	pf.StringVarP(&adapterSerial, "serial", "s", "",
		"USB bridge serial number (if multiple bridges)")
	pf.IntVar(&adapterSpeed, "speed", 0,
		"mcp2221: I2C clock in Hz (0 keeps the bridge setting)")
	pf.StringVar(&configPath, "config", "",
		"YAML configuration file; flags override its values")
	pf.BoolVar(&tolerateWriteErrors, "tolerate-write-errors", false,
		"log failed command writes and print the unaddressed buffer instead of stopping")
	pf.StringVar(&metricsFile, "metrics-file", "",
		"write node_exporter textfile metrics to this path")

	addDumpFlags(rootCmd)
}

// loadConfig merges the configuration file, when given, with the flags the
// user set explicitly.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		cfg = *loaded
	}

	flags := cmd.Flags()
	if flags.Changed("i2c-bus") {
		cfg.Bus = int(busIndex)
	}
	if flags.Changed("chip-addr") {
		cfg.Address = uint16(chipAddr)
	}
	if flags.Changed("adapter") {
		cfg.Adapter = adapterType
	}
	if flags.Changed("serial") {
		cfg.Serial = adapterSerial
	}
	if flags.Changed("speed") {
		cfg.SpeedHz = adapterSpeed
	}
	if flags.Changed("tolerate-write-errors") {
		cfg.TolerateWriteErrors = tolerateWriteErrors
	}
	if flags.Changed("metrics-file") {
		cfg.MetricsFile = metricsFile
	}

	if err := config.Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	config.Normalize(&cfg)
	return &cfg, nil
}

// newLogger builds the console logger used for diagnostics on stderr.
// --verbose enables logr V(2), which traces every register transaction.
func newLogger() logr.Logger {
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.Level(-2)
	}
	encoder := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	core := zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), zap.NewAtomicLevelAt(level))
	return zapr.NewLogger(zap.New(core))
}

func interfaceKind(cfg *config.Config) i2c.InterfaceKind {
	kind, _ := i2c.ParseInterfaceKind(cfg.Adapter)
	return kind
}
