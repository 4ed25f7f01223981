// Package pi7c9xg404 reads the per-port configuration registers of a
// Pericom/Diodes PI7C9XG404 PCIe packet switch through its I2C slave
// interface.
//
// The chip exposes four 512-byte register banks, one per port. A register is
// read with a single combined I2C transfer: a 4-byte command frame naming the
// port and the word offset, followed by a 4-byte read of the register value.
package pi7c9xg404

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Port selects one of the four register banks.
type Port uint8

const (
	Port0 Port = iota
	Port1
	Port2
	Port3
)

// Ports lists every bank in sweep order.
var Ports = [...]Port{Port0, Port1, Port2, Port3}

func (p Port) String() string {
	if p.Valid() {
		return fmt.Sprintf("Port%d", uint8(p))
	}
	return fmt.Sprintf("Port(%d)", uint8(p))
}

// Valid reports whether p names one of the four banks.
func (p Port) Valid() bool { return p <= Port3 }

// ParsePort accepts "0".."3" and "port0".."port3" in any case.
func ParsePort(s string) (Port, error) {
	for _, p := range Ports {
		if s == fmt.Sprint(uint8(p)) || strings.EqualFold(s, p.String()) {
			return p, nil
		}
	}
	return 0, fmt.Errorf("pi7c9xg404: invalid port %q (0-3)", s)
}

// RegisterOffset is a byte offset into a port bank. Reads are only
// well defined for 4-byte aligned offsets below the bank size.
type RegisterOffset uint16

// DefaultPortSize is the size in bytes of one port register bank.
const DefaultPortSize RegisterOffset = 0x200

// WordSize is the width of one register.
const WordSize = 4

// MaxOffset is the highest word offset a command frame can carry: bits 2-9
// go in byte 3 and bits 10-11 in byte 2.
const MaxOffset RegisterOffset = 0xFFC

// MaxPortSize is the largest bank a sweep can cover before offsets alias
// onto the byte-enable bits of the frame.
const MaxPortSize = int(MaxOffset) + WordSize

// CommandFrame is the write payload that latches a port and word offset.
type CommandFrame [4]byte

// RegisterValue is the raw 4-byte reply to a CommandFrame.
type RegisterValue [4]byte

// CmdRead is the opcode carried in byte 0 of every command frame: a
// configuration register read.
const CmdRead = 0b100

// Frame layout of byte 2.
const (
	byteEnableAll = 0b1111 << 2 // byte 2, lanes 1-4
	portSelBShift = 7           // byte 2
	offsetHiMask  = 0b11        // byte 2, offset bits 10-11
)

// portSelect splits the 2-bit port selector into the chip's two
// sub-fields. Neither sub-field identifies a port on its own: A separates
// {Port0, Port1} from {Port2, Port3}, B separates {Port0, Port2} from
// {Port1, Port3}.
var portSelect = [4]struct{ A, B byte }{
	Port0: {A: 0, B: 0},
	Port1: {A: 0, B: 1},
	Port2: {A: 1, B: 0},
	Port3: {A: 1, B: 1},
}

// Encode builds the command frame that selects offset in port's bank. It is
// total: out-of-range ports select bank bits modulo 4 and the offset is not
// checked for alignment.
func Encode(port Port, offset RegisterOffset) CommandFrame {
	sel := portSelect[port&0b11]
	return CommandFrame{
		CmdRead,
		sel.A,
		sel.B<<portSelBShift | byteEnableAll | byte(offset>>10),
		byte(offset >> 2),
	}
}

// Decode recovers the port and offset a frame selects. ok is false when the
// frame is not a read command with all byte lanes enabled.
func Decode(f CommandFrame) (port Port, offset RegisterOffset, ok bool) {
	if f[0] != CmdRead || f[2]&byteEnableAll != byteEnableAll || f[1] > 1 {
		return 0, 0, false
	}
	b := f[2] >> portSelBShift
	for p, sel := range portSelect {
		if sel.A == f[1] && sel.B == b {
			port = Port(p)
		}
	}
	offset = RegisterOffset(f[2]&offsetHiMask)<<10 | RegisterOffset(f[3])<<2
	return port, offset, true
}

// SubFields returns the raw port selector bits carried in bytes 1 and 2.
func (f CommandFrame) SubFields() (a, b byte) {
	return f[1], f[2] >> portSelBShift
}

// ByteEnable returns the lane-enable bits of byte 2.
func (f CommandFrame) ByteEnable() byte {
	return f[2] & byteEnableAll
}

func (f CommandFrame) String() string {
	return fmt.Sprintf("%02x %02x %02x %02x", f[0], f[1], f[2], f[3])
}

// Uint32 returns v as a little-endian PCI configuration dword.
func (v RegisterValue) Uint32() uint32 {
	return binary.LittleEndian.Uint32(v[:])
}
