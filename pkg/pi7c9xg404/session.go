package pi7c9xg404

import (
	"fmt"

	"github.com/go-logr/logr"

	"github.com/OpenTraceLab/pi7c9xg404/pkg/i2c"
)

// Defaults used when the caller does not configure them.
const (
	DefaultBus     = 1
	DefaultAddress = 0x38
)

// Config holds session settings.
type Config struct {
	// PortSize is the bank size in bytes swept by DumpPort. Zero selects
	// DefaultPortSize.
	PortSize int

	// TolerateWriteErrors keeps a register read going when the transaction
	// fails in its command-write phase, or in a phase the transport cannot
	// attribute: the error is logged and the untouched read buffer is
	// returned. The returned value was never addressed by the chip, so this
	// is off by default.
	TolerateWriteErrors bool

	Logger logr.Logger
}

// Opener opens a bus and claims chipAddr on it.
type Opener func(bus int, chipAddr uint16) (i2c.Bus, error)

// LinuxOpener opens /dev/i2c-bus and force-binds chipAddr, so a kernel
// driver holding the address does not prevent access.
func LinuxOpener(bus int, chipAddr uint16) (i2c.Bus, error) {
	b, err := i2c.OpenLinux(bus)
	if err != nil {
		return nil, err
	}
	if err := b.BindForced(chipAddr); err != nil {
		b.Close()
		return nil, err
	}
	return b, nil
}

// Session owns one bus handle bound to one switch. It is not safe for
// concurrent use: the chip has a single address latch shared by all
// transactions.
type Session struct {
	bus      i2c.Bus
	busIndex int
	addr     uint16
	portSize int
	tolerate bool
	log      logr.Logger
}

// Open opens /dev/i2c-bus and binds chipAddr with forced address binding.
func Open(bus int, chipAddr uint16, cfg Config) (*Session, error) {
	return OpenWith(LinuxOpener, bus, chipAddr, cfg)
}

// OpenWith opens the session's bus through open. Any failure is reported as
// ErrDeviceUnavailable; a failure of open itself is an *OpenError.
func OpenWith(open Opener, bus int, chipAddr uint16, cfg Config) (*Session, error) {
	if chipAddr > i2c.MaxAddress10 {
		return nil, fmt.Errorf("%w: address 0x%X out of range", ErrDeviceUnavailable, chipAddr)
	}
	if err := checkPortSize(cfg.PortSize); err != nil {
		return nil, err
	}
	b, err := open(bus, chipAddr)
	if err != nil {
		return nil, &OpenError{Bus: bus, Addr: chipAddr, Err: err}
	}
	s := NewSession(b, chipAddr, cfg)
	s.busIndex = bus
	return s, nil
}

// NewSession wraps a bus that already reaches the chip at chipAddr.
func NewSession(bus i2c.Bus, chipAddr uint16, cfg Config) *Session {
	size := cfg.PortSize
	if size == 0 {
		size = int(DefaultPortSize)
	}
	log := cfg.Logger
	if log.GetSink() == nil {
		log = logr.Discard()
	}
	return &Session{
		bus:      bus,
		addr:     chipAddr,
		portSize: size,
		tolerate: cfg.TolerateWriteErrors,
		log:      log.WithValues("addr", fmt.Sprintf("0x%02x", chipAddr)),
	}
}

func checkPortSize(size int) error {
	if size < 0 || size > MaxPortSize || size%WordSize != 0 {
		return fmt.Errorf("pi7c9xg404: invalid port size %d: must be a multiple of %d up to %#x", size, WordSize, MaxPortSize)
	}
	return nil
}

// Address returns the chip address the session is bound to.
func (s *Session) Address() uint16 { return s.addr }

// BusIndex returns the bus number the session was opened on.
func (s *Session) BusIndex() int { return s.busIndex }

// PortSize returns the number of bytes DumpPort sweeps.
func (s *Session) PortSize() int { return s.portSize }

// BusInfo describes the underlying transport.
func (s *Session) BusInfo() i2c.BusInfo {
	if s.bus == nil {
		return i2c.BusInfo{}
	}
	return s.bus.Info()
}

// ReadRegister reads the 4-byte register at offset in port's bank with one
// combined transfer: the command frame write followed by a 4-byte read.
func (s *Session) ReadRegister(port Port, offset RegisterOffset) (RegisterValue, error) {
	var val RegisterValue
	if s.bus == nil {
		return val, &BusError{Port: port, Offset: offset, Phase: PhaseUnknown, Err: i2c.ErrClosed}
	}

	frame := Encode(port, offset)
	err := s.bus.Transfer(
		i2c.WriteMessage(s.addr, frame[:]),
		i2c.ReadMessage(s.addr, val[:]),
	)
	if err != nil {
		phase := phaseOf(err)
		if s.tolerate && phase != PhaseRead {
			s.log.Error(err, "register transaction failed, returning unaddressed read buffer",
				"port", port.String(), "offset", fmt.Sprintf("0x%03x", uint16(offset)), "phase", string(phase))
			return val, nil
		}
		return val, &BusError{Port: port, Offset: offset, Phase: phase, Err: err}
	}

	s.log.V(2).Info("register read", "port", port.String(), "offset", fmt.Sprintf("0x%03x", uint16(offset)),
		"frame", frame.String(), "value", fmt.Sprintf("0x%08x", val.Uint32()))
	return val, nil
}

// Close releases the bus.
func (s *Session) Close() error {
	if s.bus == nil {
		return nil
	}
	err := s.bus.Close()
	s.bus = nil
	return err
}

// Entry is one register of a dump.
type Entry struct {
	Port   Port
	Offset RegisterOffset
	Value  RegisterValue
}

// PortDump walks one bank register by register, issuing each read only when
// Next is called. It stops at the first failed read and cannot be rewound.
//
//	d := s.DumpPort(pi7c9xg404.Port0)
//	for d.Next() {
//		e := d.Entry()
//		...
//	}
//	if err := d.Err(); err != nil {
//		...
//	}
type PortDump struct {
	s     *Session
	port  Port
	next  int
	entry Entry
	err   error
	done  bool
}

// DumpPort returns a dump of every aligned register in port's bank, in
// ascending offset order.
func (s *Session) DumpPort(port Port) *PortDump {
	return &PortDump{s: s, port: port}
}

// DumpAllPorts returns one dump per bank, Port0 through Port3.
func (s *Session) DumpAllPorts() []*PortDump {
	dumps := make([]*PortDump, 0, len(Ports))
	for _, p := range Ports {
		dumps = append(dumps, s.DumpPort(p))
	}
	return dumps
}

// Port returns the bank being dumped.
func (d *PortDump) Port() Port { return d.port }

// Next reads the next register. It returns false once the bank is
// exhausted or a read fails.
func (d *PortDump) Next() bool {
	if d.done {
		return false
	}
	if d.next >= d.s.portSize {
		d.done = true
		return false
	}
	off := RegisterOffset(d.next)
	val, err := d.s.ReadRegister(d.port, off)
	if err != nil {
		d.err = err
		d.done = true
		return false
	}
	d.entry = Entry{Port: d.port, Offset: off, Value: val}
	d.next += WordSize
	return true
}

// Entry returns the register produced by the last successful Next.
func (d *PortDump) Entry() Entry { return d.entry }

// Err returns the read error that ended the dump, if any.
func (d *PortDump) Err() error { return d.err }

// Collect drains the dump.
func (d *PortDump) Collect() ([]Entry, error) {
	var out []Entry
	for d.Next() {
		out = append(out, d.Entry())
	}
	return out, d.Err()
}
