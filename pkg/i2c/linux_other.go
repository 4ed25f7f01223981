//go:build !linux

package i2c

import "fmt"

// LinuxBus is only available on Linux hosts.
type LinuxBus struct{}

func OpenLinux(index int) (*LinuxBus, error) {
	return nil, fmt.Errorf("open /dev/i2c-%d: %w", index, ErrUnsupported)
}

func (b *LinuxBus) BindForced(uint16) error { return ErrUnsupported }

func (b *LinuxBus) Info() BusInfo {
	return BusInfo{Kind: InterfaceKindLinux, Description: "Linux i2c-dev (unavailable)"}
}

func (b *LinuxBus) Transfer(...Message) error { return ErrUnsupported }

func (b *LinuxBus) Close() error { return nil }
