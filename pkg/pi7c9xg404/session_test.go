package pi7c9xg404

import (
	"errors"
	"strings"
	"testing"

	"github.com/go-logr/logr/funcr"
	"github.com/google/go-cmp/cmp"

	"github.com/OpenTraceLab/pi7c9xg404/pkg/i2c"
)

const testAddr = 0x38

func simSession(t *testing.T, cfg Config) (*Session, *i2c.SimBus) {
	t.Helper()
	sim := i2c.NewSimBus()
	sim.Attach(testAddr, SimResponder(DefaultSimRegisters))
	s, err := OpenWith(func(int, uint16) (i2c.Bus, error) { return sim, nil }, 1, testAddr, cfg)
	if err != nil {
		t.Fatalf("OpenWith returned error: %v", err)
	}
	return s, sim
}

func TestReadRegisterTransaction(t *testing.T) {
	s, sim := simSession(t, Config{})

	val, err := s.ReadRegister(Port3, 0x004)
	if err != nil {
		t.Fatalf("ReadRegister returned error: %v", err)
	}
	if want := DefaultSimRegisters(Port3, 0x004); val != want {
		t.Errorf("ReadRegister = % X, want % X", val, want)
	}

	transfers := sim.Transfers()
	if len(transfers) != 1 {
		t.Fatalf("got %d transfers, want 1 atomic transfer", len(transfers))
	}
	want := []i2c.Message{
		{Addr: testAddr, Flags: 0, Data: []byte{0b100, 0b1, 0b1<<7 | 0b1111<<2, 0x01}},
		{Addr: testAddr, Flags: i2c.ReadData, Data: []byte{0, 0, 0, 0}},
	}
	if diff := cmp.Diff(want, transfers[0]); diff != "" {
		t.Errorf("transfer mismatch (-want +got):\n%s", diff)
	}
}

func TestReadRegisterTenBitAddress(t *testing.T) {
	sim := i2c.NewSimBus()
	sim.Attach(0x1B8, SimResponder(DefaultSimRegisters))
	s := NewSession(sim, 0x1B8, Config{})

	if _, err := s.ReadRegister(Port0, 0); err != nil {
		t.Fatalf("ReadRegister returned error: %v", err)
	}
	for _, m := range sim.Transfers()[0] {
		if m.Flags&i2c.TenBit == 0 {
			t.Errorf("message %+v missing TenBit flag", m)
		}
	}
}

func TestOpenAbsentDeviceThenReadFails(t *testing.T) {
	sim := i2c.NewSimBus() // nothing attached: every transfer NACKs
	s, err := OpenWith(func(int, uint16) (i2c.Bus, error) { return sim, nil }, 1, 0x55, Config{})
	if err != nil {
		t.Fatalf("forced open should succeed without a device, got %v", err)
	}

	_, err = s.ReadRegister(Port0, 0)
	if !errors.Is(err, ErrBus) {
		t.Fatalf("ReadRegister error = %v, want ErrBus", err)
	}
	if !errors.Is(err, i2c.ErrNACK) {
		t.Errorf("ReadRegister error = %v, want wrapped ErrNACK", err)
	}
	var be *BusError
	if !errors.As(err, &be) || be.Phase != PhaseWrite || be.Port != Port0 || be.Offset != 0 {
		t.Errorf("BusError = %+v, want write phase at Port0/0", be)
	}
}

func TestOpenFailureIsDeviceUnavailable(t *testing.T) {
	cause := errors.New("permission denied")
	_, err := OpenWith(func(int, uint16) (i2c.Bus, error) { return nil, cause }, 7, testAddr, Config{})
	if !errors.Is(err, ErrDeviceUnavailable) || !errors.Is(err, cause) {
		t.Fatalf("OpenWith error = %v, want ErrDeviceUnavailable wrapping cause", err)
	}
	if !strings.Contains(err.Error(), "0x38@i2c-7") {
		t.Errorf("error %q does not name the device", err)
	}
	var oe *OpenError
	if !errors.As(err, &oe) || oe.Bus != 7 || oe.Addr != testAddr || oe.Err != cause {
		t.Errorf("OpenError = %+v, want bus 7 addr 0x38 and the opener's cause", oe)
	}

	if _, err := OpenWith(nil, 1, 0x400, Config{}); !errors.Is(err, ErrDeviceUnavailable) {
		t.Errorf("out-of-range address error = %v, want ErrDeviceUnavailable", err)
	}
	if _, err := OpenWith(nil, 1, testAddr, Config{PortSize: 6}); err == nil {
		t.Error("expected error for unaligned port size")
	}
}

func TestPortSizeLimitedToFrameOffsets(t *testing.T) {
	// Offset 0x1000 would set bit 2 of byte 2, already set by the byte
	// enables, and read offset 0 again.
	if Encode(Port0, 0x1000) != Encode(Port0, 0) {
		t.Fatal("expected offset 0x1000 to alias offset 0")
	}
	sim := i2c.NewSimBus()
	sim.Attach(testAddr, SimResponder(DefaultSimRegisters))
	opener := func(int, uint16) (i2c.Bus, error) { return sim, nil }

	if _, err := OpenWith(opener, 1, testAddr, Config{PortSize: MaxPortSize + WordSize}); err == nil {
		t.Errorf("port size %#x accepted, want error", MaxPortSize+WordSize)
	}
	if _, err := OpenWith(opener, 1, testAddr, Config{PortSize: 0x2000}); err == nil {
		t.Error("port size 0x2000 accepted, want error")
	}

	s, err := OpenWith(opener, 1, testAddr, Config{PortSize: MaxPortSize})
	if err != nil {
		t.Fatalf("OpenWith(PortSize %#x) returned error: %v", MaxPortSize, err)
	}
	entries, err := s.DumpPort(Port1).Collect()
	if err != nil {
		t.Fatalf("DumpPort returned error: %v", err)
	}
	if len(entries) != MaxPortSize/WordSize {
		t.Fatalf("DumpPort yielded %d entries, want %d", len(entries), MaxPortSize/WordSize)
	}
	last := entries[len(entries)-1]
	if last.Offset != MaxOffset || last.Value != DefaultSimRegisters(Port1, MaxOffset) {
		t.Errorf("last entry = %+v, want offset 0x%03x", last, uint16(MaxOffset))
	}
}

func TestWritePhaseErrorStrictByDefault(t *testing.T) {
	s, sim := simSession(t, Config{})
	sim.OnTransfer = func([]i2c.Message) error {
		return &i2c.TransferError{Index: 0, Err: i2c.ErrTimeout}
	}

	if _, err := s.ReadRegister(Port1, 0x10); !errors.Is(err, ErrBus) {
		t.Fatalf("ReadRegister error = %v, want ErrBus", err)
	}
}

func TestWritePhaseErrorTolerated(t *testing.T) {
	var logged []string
	log := funcr.New(func(prefix, args string) { logged = append(logged, args) }, funcr.Options{})

	s, sim := simSession(t, Config{TolerateWriteErrors: true, Logger: log})
	sim.OnTransfer = func([]i2c.Message) error {
		return &i2c.TransferError{Index: 0, Err: i2c.ErrNACK}
	}

	// The read buffer was never filled by the chip: the value is zero and
	// no error is reported, only logged.
	val, err := s.ReadRegister(Port1, 0x10)
	if err != nil {
		t.Fatalf("tolerated ReadRegister returned error: %v", err)
	}
	if val != (RegisterValue{}) {
		t.Errorf("tolerated value = % X, want zero buffer", val)
	}
	if len(logged) != 1 || !strings.Contains(logged[0], `"phase"="write"`) {
		t.Errorf("log lines = %q, want one write-phase error", logged)
	}
}

func TestUnattributedErrorTolerated(t *testing.T) {
	s, sim := simSession(t, Config{TolerateWriteErrors: true})
	sim.OnTransfer = func([]i2c.Message) error {
		return &i2c.TransferError{Index: i2c.PhaseUnknown, Err: i2c.ErrNACK}
	}
	if _, err := s.ReadRegister(Port0, 0); err != nil {
		t.Fatalf("ReadRegister error = %v, want nil for an unattributed failure", err)
	}
}

func TestReadPhaseErrorAlwaysPropagates(t *testing.T) {
	s, sim := simSession(t, Config{TolerateWriteErrors: true})
	sim.OnTransfer = func([]i2c.Message) error {
		return &i2c.TransferError{Index: 1, Err: i2c.ErrTimeout}
	}

	_, err := s.ReadRegister(Port2, 0x20)
	var be *BusError
	if !errors.As(err, &be) || be.Phase != PhaseRead {
		t.Fatalf("ReadRegister error = %v, want read-phase BusError", err)
	}
}

func TestDumpPortCoversBank(t *testing.T) {
	s, sim := simSession(t, Config{})

	entries, err := s.DumpPort(Port2).Collect()
	if err != nil {
		t.Fatalf("DumpPort returned error: %v", err)
	}
	if len(entries) != 128 {
		t.Fatalf("DumpPort yielded %d entries, want 128", len(entries))
	}
	for i, e := range entries {
		if int(e.Offset) != i*WordSize {
			t.Fatalf("entry %d offset = 0x%03x, want 0x%03x", i, uint16(e.Offset), i*WordSize)
		}
		if e.Port != Port2 {
			t.Fatalf("entry %d port = %v, want Port2", i, e.Port)
		}
		if want := DefaultSimRegisters(Port2, e.Offset); e.Value != want {
			t.Fatalf("entry %d value = % X, want % X", i, e.Value, want)
		}
	}
	if n := len(sim.Transfers()); n != 128 {
		t.Errorf("bus saw %d transfers, want 128", n)
	}
}

func TestDumpPortIsLazy(t *testing.T) {
	s, sim := simSession(t, Config{})

	d := s.DumpPort(Port0)
	if n := len(sim.Transfers()); n != 0 {
		t.Fatalf("DumpPort issued %d reads before Next", n)
	}
	for i := 0; i < 3; i++ {
		if !d.Next() {
			t.Fatalf("Next() = false at step %d: %v", i, d.Err())
		}
	}
	if n := len(sim.Transfers()); n != 3 {
		t.Errorf("bus saw %d transfers after 3 steps, want 3", n)
	}
}

func TestDumpPortStopsOnFirstError(t *testing.T) {
	s, sim := simSession(t, Config{})
	calls := 0
	sim.OnTransfer = func([]i2c.Message) error {
		calls++
		if calls == 5 {
			return &i2c.TransferError{Index: 1, Err: i2c.ErrTimeout}
		}
		return nil
	}

	d := s.DumpPort(Port1)
	entries, err := d.Collect()
	if len(entries) != 4 {
		t.Errorf("got %d entries before the failure, want 4", len(entries))
	}
	var be *BusError
	if !errors.As(err, &be) || be.Offset != 0x10 {
		t.Fatalf("dump error = %v, want BusError at offset 0x10", err)
	}
	if d.Next() {
		t.Error("Next() after failure = true, dump must not resume")
	}
	if calls != 5 {
		t.Errorf("bus saw %d transfers, want 5", calls)
	}
}

func TestDumpAllPortsOrder(t *testing.T) {
	s, _ := simSession(t, Config{PortSize: 0x40})

	dumps := s.DumpAllPorts()
	if len(dumps) != 4 {
		t.Fatalf("DumpAllPorts returned %d dumps, want 4", len(dumps))
	}
	for i, d := range dumps {
		if d.Port() != Port(i) {
			t.Errorf("dump %d port = %v, want %v", i, d.Port(), Port(i))
		}
		entries, err := d.Collect()
		if err != nil {
			t.Fatalf("dump %v returned error: %v", d.Port(), err)
		}
		if len(entries) != 0x40/WordSize {
			t.Errorf("dump %v yielded %d entries, want %d", d.Port(), len(entries), 0x40/WordSize)
		}
	}
}

func TestClosedSession(t *testing.T) {
	s, _ := simSession(t, Config{})
	if err := s.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if _, err := s.ReadRegister(Port0, 0); !errors.Is(err, i2c.ErrClosed) {
		t.Errorf("ReadRegister after Close = %v, want ErrClosed", err)
	}
}
