package i2c

import (
	"fmt"
	"sync"
)

// Responder emulates one slave on a SimBus. It receives the whole combined
// transfer so it can latch state from write segments and fill read buffers.
type Responder func(msgs []Message) error

// TransferHook lets tests intercept every transfer before responders run.
// Returning a non-nil error fails the transfer with that error.
type TransferHook func(msgs []Message) error

// SimBus is an in-memory bus useful for unit tests and for running the tool
// without hardware. Transfers to an address without a responder fail with a
// NACK on the first message, like a real bus with nothing attached.
type SimBus struct {
	OnTransfer TransferHook

	mu         sync.Mutex
	responders map[uint16]Responder
	transfers  [][]Message
	closed     bool
}

// NewSimBus returns an empty simulated bus.
func NewSimBus() *SimBus {
	return &SimBus{responders: make(map[uint16]Responder)}
}

// Attach registers r as the slave at addr, replacing any previous one.
func (s *SimBus) Attach(addr uint16, r Responder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responders[addr] = r
}

func (s *SimBus) Info() BusInfo {
	return BusInfo{Kind: InterfaceKindSim, Name: "sim", Description: "Simulator (no hardware)"}
}

func (s *SimBus) Transfer(msgs ...Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if err := ValidateMessages(msgs); err != nil {
		return err
	}
	s.transfers = append(s.transfers, copyMessages(msgs))

	if s.OnTransfer != nil {
		if err := s.OnTransfer(msgs); err != nil {
			return err
		}
	}

	r, ok := s.responders[msgs[0].Addr]
	if !ok {
		return &TransferError{Index: 0, Err: fmt.Errorf("%w at 0x%02X", ErrNACK, msgs[0].Addr)}
	}
	return r(msgs)
}

// Transfers returns copies of every transfer seen so far.
func (s *SimBus) Transfers() [][]Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]Message, len(s.transfers))
	for i, t := range s.transfers {
		out[i] = copyMessages(t)
	}
	return out
}

func (s *SimBus) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func copyMessages(msgs []Message) []Message {
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = Message{Addr: m.Addr, Flags: m.Flags, Data: append([]byte(nil), m.Data...)}
	}
	return out
}
