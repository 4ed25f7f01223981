package i2c

import (
	"errors"
	"fmt"
)

// MCP2221A HID command codes.
const (
	CmdStatus          = 0x10 // status / set parameters
	CmdI2CWrite        = 0x90
	CmdI2CRead         = 0x91
	CmdI2CReadRepStart = 0x93
	CmdI2CWriteNoStop  = 0x94
	CmdI2CGetData      = 0x40
)

// MCP2221 I2C engine states reported in status and get-data responses.
const (
	StateIdle             = 0x00
	StateStartTimeout     = 0x12
	StateRepStartTimeout  = 0x17
	StateAddrTimeout      = 0x23
	StateAddrNACK         = 0x25
	StatePartialData      = 0x41
	StateWriteTimeout     = 0x44
	StateWritingNoStop    = 0x45
	StateReadTimeout      = 0x52
	StateReadPartial      = 0x54
	StateReadComplete     = 0x55
	StateStopTimeout      = 0x62
	StateReadError        = 0x7F
	statusCancelRequested = 0x10
)

const (
	// MCP2221PacketSize is the size of every HID report in both directions.
	MCP2221PacketSize = 64
	// MCP2221MaxChunk is the largest payload a single I2C command carries.
	MCP2221MaxChunk = 60
	// MCP2221ClockHz is the bridge's internal clock, used for the I2C divider.
	MCP2221ClockHz = 12_000_000
)

// ErrBridgeBusy is returned when the bridge refuses a command because its
// I2C engine is still working on a previous one.
var ErrBridgeBusy = errors.New("i2c: mcp2221 engine busy")

// MCP2221Status holds the fields of a status response the bus driver uses.
type MCP2221Status struct {
	CancelState byte
	SpeedState  byte
	State       byte
	Requested   uint16
	Sent        uint16
	ReadPending byte
}

// NACK reports whether the engine stopped on an address NACK.
func (s MCP2221Status) NACK() bool { return s.State == StateAddrNACK }

// TimedOut reports whether the engine stopped on any bus timeout.
func (s MCP2221Status) TimedOut() bool { return stateTimedOut(s.State) }

func stateTimedOut(state byte) bool {
	switch state {
	case StateStartTimeout, StateRepStartTimeout, StateAddrTimeout,
		StateWriteTimeout, StateReadTimeout, StateStopTimeout:
		return true
	}
	return false
}

// stateError converts a terminal engine state into a package error, or nil
// when the state is not an error.
func stateError(state byte) error {
	if state == StateAddrNACK {
		return ErrNACK
	}
	if stateTimedOut(state) {
		return ErrTimeout
	}
	return nil
}

// MCP2221Protocol encodes and decodes MCP2221A HID reports.
type MCP2221Protocol struct{}

// NewMCP2221Protocol creates a protocol handler.
func NewMCP2221Protocol() *MCP2221Protocol { return &MCP2221Protocol{} }

func newPacket(cmd byte) []byte {
	p := make([]byte, MCP2221PacketSize)
	p[0] = cmd
	return p
}

// EncodeStatus builds a status/set-parameters report. cancel aborts the
// current transfer; a non-zero speedHz sets the I2C clock divider.
func (p *MCP2221Protocol) EncodeStatus(cancel bool, speedHz int) ([]byte, error) {
	pkt := newPacket(CmdStatus)
	if cancel {
		pkt[2] = statusCancelRequested
	}
	if speedHz != 0 {
		if speedHz > MCP2221ClockHz/3 || speedHz < MCP2221ClockHz/258 {
			return nil, fmt.Errorf("i2c: invalid mcp2221 speed %dHz", speedHz)
		}
		pkt[3] = 0x20
		pkt[4] = byte(MCP2221ClockHz/speedHz - 3)
	}
	return pkt, nil
}

// DecodeStatus parses a status response.
func (p *MCP2221Protocol) DecodeStatus(resp []byte) (MCP2221Status, error) {
	if len(resp) < 26 {
		return MCP2221Status{}, fmt.Errorf("i2c: mcp2221 status response too short")
	}
	if resp[0] != CmdStatus {
		return MCP2221Status{}, fmt.Errorf("i2c: mcp2221 invalid command ID: 0x%02X", resp[0])
	}
	if resp[1] != 0x00 {
		return MCP2221Status{}, fmt.Errorf("i2c: mcp2221 status command failed")
	}
	return MCP2221Status{
		CancelState: resp[2],
		SpeedState:  resp[3],
		State:       resp[8],
		Requested:   uint16(resp[10])<<8 | uint16(resp[9]),
		Sent:        uint16(resp[12])<<8 | uint16(resp[11]),
		ReadPending: resp[25],
	}, nil
}

// EncodeWrite builds a write report. stop selects between a plain write and
// a write that leaves the bus held for a repeated START.
func (p *MCP2221Protocol) EncodeWrite(addr uint16, data []byte, stop bool) ([]byte, error) {
	if err := checkBridgeMessage(addr, len(data)); err != nil {
		return nil, err
	}
	cmd := byte(CmdI2CWriteNoStop)
	if stop {
		cmd = CmdI2CWrite
	}
	pkt := newPacket(cmd)
	pkt[1] = byte(len(data))
	pkt[2] = byte(len(data) >> 8)
	pkt[3] = byte(addr << 1)
	copy(pkt[4:], data)
	return pkt, nil
}

// EncodeRead builds a read request. repStart issues a repeated START after a
// preceding write without STOP.
func (p *MCP2221Protocol) EncodeRead(addr uint16, n int, repStart bool) ([]byte, error) {
	if err := checkBridgeMessage(addr, n); err != nil {
		return nil, err
	}
	cmd := byte(CmdI2CRead)
	if repStart {
		cmd = CmdI2CReadRepStart
	}
	pkt := newPacket(cmd)
	pkt[1] = byte(n)
	pkt[2] = byte(n >> 8)
	pkt[3] = byte(addr<<1) | 0x01
	return pkt, nil
}

// DecodeAck checks the response to a write or read request.
func (p *MCP2221Protocol) DecodeAck(cmd byte, resp []byte) error {
	if len(resp) < 3 {
		return fmt.Errorf("i2c: mcp2221 response too short")
	}
	if resp[0] != cmd {
		return fmt.Errorf("i2c: mcp2221 invalid command ID: 0x%02X", resp[0])
	}
	if resp[1] != 0x00 {
		if err := stateError(resp[2]); err != nil {
			return err
		}
		return ErrBridgeBusy
	}
	return nil
}

// EncodeGetData builds a get-data report that collects bytes from a read.
func (p *MCP2221Protocol) EncodeGetData() []byte {
	return newPacket(CmdI2CGetData)
}

// DecodeGetData parses a get-data response. ready is false while the engine
// is still clocking data in.
func (p *MCP2221Protocol) DecodeGetData(resp []byte) (data []byte, ready bool, err error) {
	if len(resp) < 4 {
		return nil, false, fmt.Errorf("i2c: mcp2221 response too short")
	}
	if resp[0] != CmdI2CGetData {
		return nil, false, fmt.Errorf("i2c: mcp2221 invalid command ID: 0x%02X", resp[0])
	}
	if err := stateError(resp[2]); err != nil {
		return nil, false, err
	}
	if resp[1] == StatePartialData || resp[3] == StateReadError {
		return nil, false, nil
	}
	n := int(resp[3])
	if 4+n > len(resp) || n > MCP2221MaxChunk {
		return nil, false, fmt.Errorf("i2c: mcp2221 invalid data length %d", n)
	}
	return append([]byte(nil), resp[4:4+n]...), true, nil
}

func checkBridgeMessage(addr uint16, n int) error {
	if addr > MaxAddress7 {
		return fmt.Errorf("i2c: mcp2221 10-bit address 0x%X: %w", addr, ErrUnsupported)
	}
	if n <= 0 || n > MCP2221MaxChunk {
		return fmt.Errorf("i2c: mcp2221 message length %d out of range 1..%d", n, MCP2221MaxChunk)
	}
	return nil
}
