package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/pi7c9xg404/internal/metrics"
	"github.com/OpenTraceLab/pi7c9xg404/internal/report"
	"github.com/OpenTraceLab/pi7c9xg404/pkg/pi7c9xg404"
)

var (
	dumpPort   string
	outputJSON bool
	showNames  bool
)

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Dump the register banks of all ports",
	Long: `Read every register of each port bank, Port0 through Port3, and print
them in offset order. Each register is one combined I2C transfer: the 4-byte
command frame followed by a 4-byte read.

The dump stops at the first failed read. With --tolerate-write-errors a
failed command write is logged instead and the register prints as the
untouched (zero) buffer.

Examples:
  pi7c9xg404 dump                      # All ports, classic layout
  pi7c9xg404 dump --port 1 --names     # Port1 with PCI header names
  pi7c9xg404 dump --json               # Machine-readable output`,
	Args: cobra.NoArgs,
	RunE: runDump,
}

func init() {
	rootCmd.AddCommand(dumpCmd)
	addDumpFlags(dumpCmd)
}

func addDumpFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&dumpPort, "port", "p", "",
		"dump a single port (0-3) instead of all four")
	cmd.Flags().BoolVar(&outputJSON, "json", false,
		"output as JSON")
	cmd.Flags().BoolVar(&showNames, "names", false,
		"annotate PCI header registers with their names")
}

func runDump(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := newLogger()
	col := metrics.New()
	defer writeMetrics(cfg, col, log)

	var sink report.Sink = &report.Text{W: cmd.OutOrStdout(), Names: showNames}
	if outputJSON {
		sink = &report.JSON{W: cmd.OutOrStdout()}
	}

	var only *pi7c9xg404.Port
	if dumpPort != "" {
		p, err := pi7c9xg404.ParsePort(dumpPort)
		if err != nil {
			return err
		}
		only = &p
	}

	if err := sink.Header(cfg.Bus, cfg.Address); err != nil {
		return err
	}
	s, err := openSession(cfg, col, log)
	if err != nil {
		return err
	}
	defer s.Close()

	log.V(1).Info("dumping", "bus", s.BusInfo().Description, "portSize", fmt.Sprintf("0x%x", s.PortSize()))

	dumps := s.DumpAllPorts()
	if only != nil {
		dumps = []*pi7c9xg404.PortDump{s.DumpPort(*only)}
	}
	dumpErr := report.Dump(sink, dumps)
	if err := sink.Flush(); err != nil {
		return err
	}
	return dumpErr
}
