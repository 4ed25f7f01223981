package pi7c9xg404

import (
	"fmt"

	"github.com/OpenTraceLab/pi7c9xg404/pkg/i2c"
)

// RegisterFunc supplies the contents of a simulated register.
type RegisterFunc func(port Port, offset RegisterOffset) RegisterValue

// SimResponder emulates the switch's I2C slave: it decodes the command frame
// of each combined transfer and fills the read segment from regs.
func SimResponder(regs RegisterFunc) i2c.Responder {
	return func(msgs []i2c.Message) error {
		if len(msgs) != 2 || msgs[0].IsRead() || !msgs[1].IsRead() {
			return &i2c.TransferError{Index: 0, Err: fmt.Errorf("unexpected transfer shape")}
		}
		if len(msgs[0].Data) != len(CommandFrame{}) {
			return &i2c.TransferError{Index: 0, Err: i2c.ErrNACK}
		}
		var frame CommandFrame
		copy(frame[:], msgs[0].Data)
		port, offset, ok := Decode(frame)
		if !ok {
			return &i2c.TransferError{Index: 0, Err: i2c.ErrNACK}
		}
		val := regs(port, offset)
		copy(msgs[1].Data, val[:])
		return nil
	}
}

// DefaultSimRegisters models a PI7C9XG404 in reset state: a type-1 header
// per port with the Pericom vendor ID and the downstream ports' bus numbers
// left unprogrammed. Offsets without a modeled value read as a pattern that
// encodes the port and offset, which makes misaddressed reads stand out.
func DefaultSimRegisters(port Port, offset RegisterOffset) RegisterValue {
	switch offset {
	case 0x000: // Device ID 0x2404, Vendor ID 0x12D8
		return RegisterValue{0xD8, 0x12, 0x04, 0x24}
	case 0x004: // Status: capabilities list
		return RegisterValue{0x00, 0x00, 0x10, 0x00}
	case 0x008: // Class: PCI-to-PCI bridge, revision 0x01
		return RegisterValue{0x01, 0x00, 0x04, 0x06}
	case 0x00C: // Header type 1, multi-function clear
		return RegisterValue{0x00, 0x00, 0x01, 0x00}
	case 0x034: // Capabilities pointer
		return RegisterValue{0x40, 0x00, 0x00, 0x00}
	}
	return RegisterValue{byte(port), byte(offset >> 8), byte(offset), 0xA5}
}
