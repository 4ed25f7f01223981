package pi7c9xg404

import (
	"errors"
	"fmt"

	"github.com/OpenTraceLab/pi7c9xg404/pkg/i2c"
)

var (
	// ErrDeviceUnavailable wraps every failure to open the bus or claim the
	// chip address.
	ErrDeviceUnavailable = errors.New("pi7c9xg404: device unavailable")
	// ErrBus wraps every failed register transaction.
	ErrBus = errors.New("pi7c9xg404: bus error")
)

// Phase names the half of a register transaction that failed.
type Phase string

const (
	PhaseWrite   Phase = "write"
	PhaseRead    Phase = "read"
	PhaseUnknown Phase = "unknown"
)

// phaseOf attributes a transport error to the command write or the value
// read. Transports that cannot tell report PhaseUnknown.
func phaseOf(err error) Phase {
	var te *i2c.TransferError
	if !errors.As(err, &te) {
		return PhaseUnknown
	}
	switch te.Index {
	case 0:
		return PhaseWrite
	case 1:
		return PhaseRead
	}
	return PhaseUnknown
}

// OpenError reports a bus that could not be opened or a chip address that
// could not be claimed.
type OpenError struct {
	Bus  int
	Addr uint16
	Err  error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("%v: 0x%02x@i2c-%d: %v", ErrDeviceUnavailable, e.Addr, e.Bus, e.Err)
}

func (e *OpenError) Unwrap() []error { return []error{ErrDeviceUnavailable, e.Err} }

// BusError reports a register read that could not be completed.
type BusError struct {
	Port   Port
	Offset RegisterOffset
	Phase  Phase
	Err    error
}

func (e *BusError) Error() string {
	return fmt.Sprintf("%v: %s offset 0x%03x (%s phase): %v", ErrBus, e.Port, uint16(e.Offset), e.Phase, e.Err)
}

func (e *BusError) Unwrap() []error { return []error{ErrBus, e.Err} }
