package i2c

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDiscoverLinuxSortsBuses(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"i2c-10", "i2c-1", "i2c-2", "i2c-x"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o600); err != nil {
			t.Fatal(err)
		}
	}

	old := devGlob
	devGlob = filepath.Join(dir, "i2c-*")
	defer func() { devGlob = old }()

	got := discoverLinux()
	if len(got) != 3 {
		t.Fatalf("discoverLinux() found %d buses, want 3: %+v", len(got), got)
	}
	for i, want := range []int{1, 2, 10} {
		if got[i].Bus != want || got[i].Kind != InterfaceKindLinux {
			t.Errorf("entry %d = %+v, want bus %d", i, got[i], want)
		}
	}
	if got[0].Label() != "Linux i2c-dev bus 1" {
		t.Errorf("Label() = %q", got[0].Label())
	}
}

func TestInterfaceInfoLabel(t *testing.T) {
	info := InterfaceInfo{Kind: InterfaceKindMCP2221, VendorID: VendorIDMicrochip, ProductID: ProductIDMCP2221}
	if got, want := info.Label(), "mcp2221 (04D8:00DD)"; got != want {
		t.Errorf("Label() = %q, want %q", got, want)
	}
}
