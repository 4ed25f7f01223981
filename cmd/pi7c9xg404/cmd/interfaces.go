package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/pi7c9xg404/pkg/i2c"
)

var interfacesCmd = &cobra.Command{
	Use:   "interfaces",
	Short: "List available I2C bus masters",
	Long: `Scan the host for Linux i2c-dev buses and MCP2221A USB-I2C bridges and print
a summary of the detected bus masters. Use this to pick the --i2c-bus or
--adapter value before dumping.`,
	Args: cobra.NoArgs,
	RunE: runInterfaces,
}

func init() {
	rootCmd.AddCommand(interfacesCmd)
}

func runInterfaces(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	infos, err := i2c.DiscoverInterfaces(ctx)
	if err != nil {
		return fmt.Errorf("discover interfaces: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Detected I2C interfaces:")
	for _, iface := range infos {
		switch iface.Kind {
		case i2c.InterfaceKindLinux:
			fmt.Fprintf(out, "  - %s [%s] (--i2c-bus %d)\n", iface.Label(), iface.Kind, iface.Bus)
		case i2c.InterfaceKindMCP2221:
			fmt.Fprintf(out, "  - %s [%s] (VID:PID %04X:%04X, serial %q)\n",
				iface.Label(), iface.Kind, iface.VendorID, iface.ProductID, iface.Serial)
		default:
			fmt.Fprintf(out, "  - %s [%s]\n", iface.Label(), iface.Kind)
		}
	}

	return nil
}
