package i2c

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/google/gousb"
)

// InterfaceKind categorizes bus master families.
type InterfaceKind string

const (
	InterfaceKindLinux   InterfaceKind = "linux"
	InterfaceKindMCP2221 InterfaceKind = "mcp2221"
	InterfaceKindSim     InterfaceKind = "simulator"
)

// ParseInterfaceKind accepts the names used on the command line and in
// configuration files.
func ParseInterfaceKind(s string) (InterfaceKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "linux", "i2c-dev", "dev":
		return InterfaceKindLinux, nil
	case "mcp2221", "mcp2221a", "usb":
		return InterfaceKindMCP2221, nil
	case "simulator", "sim":
		return InterfaceKindSim, nil
	}
	return "", fmt.Errorf("i2c: unknown adapter %q (linux, mcp2221, simulator)", s)
}

// InterfaceInfo describes a detected bus master.
type InterfaceInfo struct {
	Kind        InterfaceKind
	Description string
	Bus         int
	VendorID    uint16
	ProductID   uint16
	Serial      string
	Path        string
}

// Label returns a user-friendly description for the interface.
func (i InterfaceInfo) Label() string {
	if i.Description != "" {
		return i.Description
	}
	if i.Path != "" {
		return i.Path
	}
	return fmt.Sprintf("%s (%04X:%04X)", string(i.Kind), i.VendorID, i.ProductID)
}

// devGlob is a variable so tests can point discovery at a scratch directory.
var devGlob = "/dev/i2c-*"

// DiscoverInterfaces lists i2c-dev nodes and USB I2C bridges. It always
// returns the simulator entry last so the tool can be exercised without
// hardware.
func DiscoverInterfaces(ctx context.Context) ([]InterfaceInfo, error) {
	results := discoverLinux()

	usb, err := discoverMCP2221(ctx)
	results = append(results, usb...)

	results = append(results, InterfaceInfo{
		Kind:        InterfaceKindSim,
		Description: "Simulator (no hardware)",
	})
	return results, err
}

func discoverLinux() []InterfaceInfo {
	paths, _ := filepath.Glob(devGlob)
	var results []InterfaceInfo
	for _, p := range paths {
		n, err := strconv.Atoi(strings.TrimPrefix(filepath.Base(p), "i2c-"))
		if err != nil {
			continue
		}
		results = append(results, InterfaceInfo{
			Kind:        InterfaceKindLinux,
			Description: fmt.Sprintf("Linux i2c-dev bus %d", n),
			Bus:         n,
			Path:        p,
		})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Bus < results[j].Bus })
	return results
}

func discoverMCP2221(ctx context.Context) ([]InterfaceInfo, error) {
	usb := gousb.NewContext()
	defer usb.Close()

	var results []InterfaceInfo
	devs, err := usb.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		select {
		case <-ctx.Done():
			return false
		default:
		}
		return isMCP2221(desc)
	})
	for _, dev := range devs {
		serial, _ := dev.SerialNumber()
		results = append(results, InterfaceInfo{
			Kind:        InterfaceKindMCP2221,
			Description: "Microchip MCP2221A USB-I2C bridge",
			VendorID:    uint16(dev.Desc.Vendor),
			ProductID:   uint16(dev.Desc.Product),
			Serial:      serial,
			Path:        fmt.Sprintf("usb:%d.%d", dev.Desc.Bus, dev.Desc.Address),
		})
		dev.Close()
	}
	if err != nil && err != gousb.ErrorAccess {
		return results, err
	}
	return results, nil
}

func isMCP2221(desc *gousb.DeviceDesc) bool {
	for _, known := range knownMCP2221VIDPIDs {
		if uint16(desc.Vendor) == known.VendorID && uint16(desc.Product) == known.ProductID {
			return true
		}
	}
	return false
}

type knownUSBDevice struct {
	VendorID    uint16
	ProductID   uint16
	Description string
}

var knownMCP2221VIDPIDs = []knownUSBDevice{
	{VendorID: VendorIDMicrochip, ProductID: ProductIDMCP2221, Description: "Microchip MCP2221/MCP2221A"},
}
