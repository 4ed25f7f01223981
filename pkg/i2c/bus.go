// Package i2c provides the raw byte-level I2C transports the register
// access layer runs on: the Linux i2c-dev character device, an MCP2221A
// USB-to-I2C bridge, and an in-memory simulator.
package i2c

import (
	"errors"
	"fmt"
)

// MessageFlags mirror the Linux struct i2c_msg flags.
type MessageFlags uint16

const (
	ReadData MessageFlags = 0x0001 // read data, from slave to master; else write
	TenBit   MessageFlags = 0x0010 // this is a ten bit chip address
)

// MaxAddress7 and MaxAddress10 bound 7-bit and 10-bit slave addresses.
const (
	MaxAddress7  = 0x7F
	MaxAddress10 = 0x3FF
)

// Message is one segment of a combined transfer.
type Message struct {
	Addr  uint16
	Flags MessageFlags
	Data  []byte
}

// IsRead reports whether the message moves data from slave to master.
func (m Message) IsRead() bool { return m.Flags&ReadData != 0 }

// WriteMessage builds a write segment addressed to addr.
func WriteMessage(addr uint16, data []byte) Message {
	return Message{Addr: addr, Flags: addressFlags(addr), Data: data}
}

// ReadMessage builds a read segment addressed to addr that fills buf.
func ReadMessage(addr uint16, buf []byte) Message {
	return Message{Addr: addr, Flags: addressFlags(addr) | ReadData, Data: buf}
}

func addressFlags(addr uint16) MessageFlags {
	if addr > MaxAddress7 {
		return TenBit
	}
	return 0
}

// BusInfo describes an open bus.
type BusInfo struct {
	Kind        InterfaceKind
	Name        string
	Path        string
	Description string
}

// Bus abstracts a master able to run combined I2C transfers. All messages
// of one Transfer call are issued back to back with repeated STARTs and a
// single STOP, so no other traffic can interleave.
type Bus interface {
	Info() BusInfo
	Transfer(msgs ...Message) error
	Close() error
}

var (
	// ErrNACK is reported when the addressed slave does not acknowledge.
	ErrNACK = errors.New("i2c: no acknowledge from slave")
	// ErrTimeout is reported when the bus master gives up on a transfer.
	ErrTimeout = errors.New("i2c: transfer timed out")
	// ErrClosed is returned by operations on a closed bus.
	ErrClosed = errors.New("i2c: bus closed")
	// ErrUnsupported lets backends signal that the host cannot provide them.
	ErrUnsupported = errors.New("i2c: not supported on this platform")
)

// PhaseUnknown is the TransferError index used when a transport cannot tell
// which message of a transfer failed.
const PhaseUnknown = -1

// TransferError reports a failed combined transfer.
type TransferError struct {
	// Index of the message that failed, or PhaseUnknown.
	Index int
	Err   error
}

func (e *TransferError) Error() string {
	if e.Index == PhaseUnknown {
		return fmt.Sprintf("i2c: transfer failed: %v", e.Err)
	}
	return fmt.Sprintf("i2c: transfer failed at message %d: %v", e.Index, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }

// ValidateMessages checks a transfer before it reaches a transport.
func ValidateMessages(msgs []Message) error {
	if len(msgs) == 0 {
		return fmt.Errorf("i2c: empty transfer")
	}
	for i, m := range msgs {
		if len(m.Data) == 0 {
			return fmt.Errorf("i2c: message %d has no data", i)
		}
		if m.Addr > MaxAddress10 {
			return fmt.Errorf("i2c: message %d: address 0x%X out of range", i, m.Addr)
		}
		if m.Addr > MaxAddress7 && m.Flags&TenBit == 0 {
			return fmt.Errorf("i2c: message %d: address 0x%X needs the TenBit flag", i, m.Addr)
		}
	}
	return nil
}
