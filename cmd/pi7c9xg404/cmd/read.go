package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/pi7c9xg404/internal/metrics"
	"github.com/OpenTraceLab/pi7c9xg404/internal/report"
	"github.com/OpenTraceLab/pi7c9xg404/pkg/pi7c9xg404"
)

var readCmd = &cobra.Command{
	Use:   "read PORT OFFSET",
	Short: "Read a single register",
	Long: `Read one 4-byte register from a port bank. OFFSET is a byte offset and
must be 4-byte aligned and inside the port bank (port_size, 0x200 by
default). It accepts decimal, 0x hex, 0o octal or 0b binary; a number
without a prefix is decimal.

Examples:
  pi7c9xg404 read 0 0            # Port0 Device ID / Vendor ID
  pi7c9xg404 read port3 0x34     # Port3 capabilities pointer`,
	Args: cobra.ExactArgs(2),
	RunE: runRead,
}

func init() {
	rootCmd.AddCommand(readCmd)
	readCmd.Flags().BoolVar(&showNames, "names", false,
		"annotate PCI header registers with their names")
}

func parseOffset(s string) (pi7c9xg404.RegisterOffset, error) {
	n, err := parsePrefixedUint(s, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid offset %q", s)
	}
	off := pi7c9xg404.RegisterOffset(n)
	if off%pi7c9xg404.WordSize != 0 {
		return 0, fmt.Errorf("offset 0x%x is not %d-byte aligned", n, pi7c9xg404.WordSize)
	}
	if off > pi7c9xg404.MaxOffset {
		return 0, fmt.Errorf("offset 0x%x exceeds 0x%x", n, uint16(pi7c9xg404.MaxOffset))
	}
	return off, nil
}

func runRead(cmd *cobra.Command, args []string) error {
	port, err := pi7c9xg404.ParsePort(args[0])
	if err != nil {
		return err
	}
	offset, err := parseOffset(args[1])
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if int(offset) >= cfg.PortSize {
		return fmt.Errorf("offset 0x%x is outside the 0x%x-byte port bank", uint16(offset), cfg.PortSize)
	}
	log := newLogger()
	col := metrics.New()
	defer writeMetrics(cfg, col, log)

	sink := &report.Text{W: cmd.OutOrStdout(), Names: showNames}
	if err := sink.Header(cfg.Bus, cfg.Address); err != nil {
		return err
	}
	s, err := openSession(cfg, col, log)
	if err != nil {
		return err
	}
	defer s.Close()

	val, err := s.ReadRegister(port, offset)
	if err != nil {
		return err
	}
	if err := sink.BeginPort(port); err != nil {
		return err
	}
	return sink.Register(pi7c9xg404.Entry{Port: port, Offset: offset, Value: val})
}
