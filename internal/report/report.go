// Package report renders register dumps for the terminal and as JSON.
package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/OpenTraceLab/pi7c9xg404/pkg/pi7c9xg404"
)

// Sink receives a dump as it is read, one port at a time.
type Sink interface {
	Header(bus int, addr uint16) error
	BeginPort(port pi7c9xg404.Port) error
	Register(e pi7c9xg404.Entry) error
	// EndPort closes the current port; err is the read error that ended
	// it early, if any.
	EndPort(err error) error
	Flush() error
}

// Text prints the classic layout:
//
//	/dev/i2c-1: 0x38
//	Port: Port0
//	0x0000: 0xd8  0x12 0x04 0x24
type Text struct {
	W io.Writer
	// Names appends the PCI header register name where one is known.
	Names bool
}

func (t *Text) Header(bus int, addr uint16) error {
	_, err := fmt.Fprintf(t.W, "/dev/i2c-%d: %#04x\n", bus, addr)
	return err
}

func (t *Text) BeginPort(port pi7c9xg404.Port) error {
	_, err := fmt.Fprintf(t.W, "Port: %s\n", port)
	return err
}

func (t *Text) Register(e pi7c9xg404.Entry) error {
	_, err := io.WriteString(t.W, FormatRegister(e.Offset, e.Value))
	if err != nil {
		return err
	}
	if name := pi7c9xg404.RegisterName(e.Offset); t.Names && name != "" {
		_, err = fmt.Fprintf(t.W, "  # %s", name)
		if err != nil {
			return err
		}
	}
	_, err = io.WriteString(t.W, "\n")
	return err
}

// EndPort prints nothing; the caller reports the error.
func (t *Text) EndPort(error) error { return nil }

func (t *Text) Flush() error { return nil }

// FormatRegister renders one register line without a trailing newline.
func FormatRegister(offset pi7c9xg404.RegisterOffset, v pi7c9xg404.RegisterValue) string {
	return fmt.Sprintf("%#06x: %#04x  %#04x %#04x %#04x", uint16(offset), v[0], v[1], v[2], v[3])
}

// Document is the JSON form of a dump.
type Document struct {
	Device  string       `json:"device"`
	Address string       `json:"address"`
	Ports   []PortReport `json:"ports"`
}

type PortReport struct {
	Port      string     `json:"port"`
	Registers []Register `json:"registers"`
	Error     string     `json:"error,omitempty"`
}

type Register struct {
	Offset string `json:"offset"`
	Value  string `json:"value"`
	Bytes  []int  `json:"bytes"`
	Name   string `json:"name,omitempty"`
}

// JSON buffers the dump and writes it as one indented document on Flush.
type JSON struct {
	W   io.Writer
	Doc Document
}

func (j *JSON) Header(bus int, addr uint16) error {
	j.Doc.Device = fmt.Sprintf("/dev/i2c-%d", bus)
	j.Doc.Address = fmt.Sprintf("%#04x", addr)
	return nil
}

func (j *JSON) BeginPort(port pi7c9xg404.Port) error {
	j.Doc.Ports = append(j.Doc.Ports, PortReport{Port: port.String(), Registers: []Register{}})
	return nil
}

func (j *JSON) Register(e pi7c9xg404.Entry) error {
	cur := j.current()
	if cur == nil {
		return fmt.Errorf("report: register before BeginPort")
	}
	cur.Registers = append(cur.Registers, Register{
		Offset: fmt.Sprintf("%#06x", uint16(e.Offset)),
		Value:  fmt.Sprintf("0x%08x", e.Value.Uint32()),
		Bytes:  []int{int(e.Value[0]), int(e.Value[1]), int(e.Value[2]), int(e.Value[3])},
		Name:   pi7c9xg404.RegisterName(e.Offset),
	})
	return nil
}

func (j *JSON) EndPort(err error) error {
	if cur := j.current(); cur != nil && err != nil {
		cur.Error = err.Error()
	}
	return nil
}

func (j *JSON) Flush() error {
	enc := json.NewEncoder(j.W)
	enc.SetIndent("", "  ")
	return enc.Encode(j.Doc)
}

func (j *JSON) current() *PortReport {
	if len(j.Doc.Ports) == 0 {
		return nil
	}
	return &j.Doc.Ports[len(j.Doc.Ports)-1]
}

// Dump streams each dump into sink, stopping at the first port that fails.
// The failing port is closed with its error before the error is returned.
func Dump(sink Sink, dumps []*pi7c9xg404.PortDump) error {
	for _, d := range dumps {
		if err := sink.BeginPort(d.Port()); err != nil {
			return err
		}
		for d.Next() {
			if err := sink.Register(d.Entry()); err != nil {
				return err
			}
		}
		if err := sink.EndPort(d.Err()); err != nil {
			return err
		}
		if d.Err() != nil {
			return d.Err()
		}
	}
	return nil
}
