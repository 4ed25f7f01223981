package i2c

import (
	"context"
	"fmt"
	"time"

	"github.com/google/gousb"
)

const (
	// MCP2221 USB identifiers
	VendorIDMicrochip = 0x04D8
	ProductIDMCP2221  = 0x00DD

	// DefaultBridgeTimeout bounds a single HID report exchange.
	DefaultBridgeTimeout = time.Second

	bridgePollInterval = 300 * time.Microsecond
	bridgeMaxPolls     = 50
)

// packetConn exchanges one command report for one response report.
type packetConn interface {
	WriteRead(cmd []byte) ([]byte, error)
	Close() error
}

// MCP2221Bus runs combined transfers through a Microchip MCP2221A
// USB-to-I2C bridge. The bridge only addresses 7-bit slaves.
type MCP2221Bus struct {
	conn     packetConn
	protocol *MCP2221Protocol
	serial   string
	path     string
	sleep    func(time.Duration)
}

// OpenMCP2221 opens the first MCP2221A bridge, or the one whose USB serial
// number matches serial, and resets its I2C engine.
func OpenMCP2221(serial string) (*MCP2221Bus, error) {
	conn, err := newUSBConn(serial)
	if err != nil {
		return nil, err
	}
	b := newMCP2221Bus(conn)
	b.serial = serial
	b.path = conn.path
	if err := b.cancelIfBusy(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("mcp2221 reset: %w", err)
	}
	return b, nil
}

func newMCP2221Bus(conn packetConn) *MCP2221Bus {
	return &MCP2221Bus{
		conn:     conn,
		protocol: NewMCP2221Protocol(),
		sleep:    time.Sleep,
	}
}

func (b *MCP2221Bus) Info() BusInfo {
	desc := "Microchip MCP2221A USB-I2C bridge"
	if b.serial != "" {
		desc += " (" + b.serial + ")"
	}
	return BusInfo{Kind: InterfaceKindMCP2221, Name: "mcp2221", Path: b.path, Description: desc}
}

// SetSpeed programs the I2C clock.
func (b *MCP2221Bus) SetSpeed(hz int) error {
	if b.conn == nil {
		return ErrClosed
	}
	cmd, err := b.protocol.EncodeStatus(false, hz)
	if err != nil {
		return err
	}
	resp, err := b.conn.WriteRead(cmd)
	if err != nil {
		return err
	}
	st, err := b.protocol.DecodeStatus(resp)
	if err != nil {
		return err
	}
	if st.SpeedState == 0x21 {
		return fmt.Errorf("i2c: mcp2221 speed not set: %w", ErrBridgeBusy)
	}
	return nil
}

// Transfer issues each write as "write without STOP" when another message
// follows and each read after the first message with a repeated START, so
// the whole sequence reaches the slave as one transaction.
func (b *MCP2221Bus) Transfer(msgs ...Message) error {
	if b.conn == nil {
		return ErrClosed
	}
	if err := ValidateMessages(msgs); err != nil {
		return err
	}
	if err := b.cancelIfBusy(); err != nil {
		return &TransferError{Index: 0, Err: err}
	}
	for i, m := range msgs {
		last := i == len(msgs)-1
		var err error
		if m.IsRead() {
			err = b.read(m, i > 0)
		} else {
			err = b.write(m, last)
		}
		if err != nil {
			b.cancelIfBusy()
			return &TransferError{Index: i, Err: err}
		}
	}
	return nil
}

func (b *MCP2221Bus) write(m Message, stop bool) error {
	cmd, err := b.protocol.EncodeWrite(m.Addr, m.Data, stop)
	if err != nil {
		return err
	}
	resp, err := b.conn.WriteRead(cmd)
	if err != nil {
		return err
	}
	if err := b.protocol.DecodeAck(cmd[0], resp); err != nil {
		return err
	}

	for poll := 0; poll < bridgeMaxPolls; poll++ {
		st, err := b.status()
		if err != nil {
			return err
		}
		if err := stateError(st.State); err != nil {
			return err
		}
		if st.State == StateIdle || (!stop && st.State == StateWritingNoStop) {
			return nil
		}
		b.sleep(bridgePollInterval)
	}
	return ErrTimeout
}

func (b *MCP2221Bus) read(m Message, repStart bool) error {
	cmd, err := b.protocol.EncodeRead(m.Addr, len(m.Data), repStart)
	if err != nil {
		return err
	}
	resp, err := b.conn.WriteRead(cmd)
	if err != nil {
		return err
	}
	if err := b.protocol.DecodeAck(cmd[0], resp); err != nil {
		return err
	}

	get := b.protocol.EncodeGetData()
	for poll := 0; poll < bridgeMaxPolls; poll++ {
		resp, err := b.conn.WriteRead(get)
		if err != nil {
			return err
		}
		data, ready, err := b.protocol.DecodeGetData(resp)
		if err != nil {
			return err
		}
		if ready {
			if len(data) < len(m.Data) {
				return fmt.Errorf("i2c: mcp2221 short read (%d of %d bytes)", len(data), len(m.Data))
			}
			copy(m.Data, data)
			return nil
		}
		b.sleep(bridgePollInterval)
	}
	return ErrTimeout
}

func (b *MCP2221Bus) status() (MCP2221Status, error) {
	cmd, _ := b.protocol.EncodeStatus(false, 0)
	resp, err := b.conn.WriteRead(cmd)
	if err != nil {
		return MCP2221Status{}, err
	}
	return b.protocol.DecodeStatus(resp)
}

// cancelIfBusy aborts a transfer left behind by an earlier failure.
func (b *MCP2221Bus) cancelIfBusy() error {
	st, err := b.status()
	if err != nil {
		return err
	}
	if st.State == StateIdle {
		return nil
	}
	cmd, _ := b.protocol.EncodeStatus(true, 0)
	resp, err := b.conn.WriteRead(cmd)
	if err != nil {
		return err
	}
	if st, err = b.protocol.DecodeStatus(resp); err != nil {
		return err
	}
	if st.CancelState == statusCancelRequested {
		b.sleep(bridgePollInterval)
	}
	return nil
}

// Close releases USB resources.
func (b *MCP2221Bus) Close() error {
	if b.conn == nil {
		return nil
	}
	err := b.conn.Close()
	b.conn = nil
	return err
}

// usbConn carries MCP2221 HID reports over the interrupt endpoints of the
// bridge's HID interface.
type usbConn struct {
	ctx  *gousb.Context
	dev  *gousb.Device
	cfg  *gousb.Config
	intf *gousb.Interface

	epOut *gousb.OutEndpoint
	epIn  *gousb.InEndpoint

	timeout time.Duration
	path    string
}

func newUSBConn(serial string) (*usbConn, error) {
	ctx := gousb.NewContext()

	devs, err := ctx.OpenDevices(isMCP2221)
	if err != nil && len(devs) == 0 {
		ctx.Close()
		return nil, fmt.Errorf("USB error: %w", err)
	}

	var dev *gousb.Device
	for _, d := range devs {
		if dev == nil {
			if sn, _ := d.SerialNumber(); serial == "" || sn == serial {
				dev = d
				continue
			}
		}
		d.Close()
	}
	if dev == nil {
		ctx.Close()
		if serial != "" {
			return nil, fmt.Errorf("mcp2221 with serial %q not found (VID:0x%04X PID:0x%04X)", serial, VendorIDMicrochip, ProductIDMCP2221)
		}
		return nil, fmt.Errorf("mcp2221 not found (VID:0x%04X PID:0x%04X)", VendorIDMicrochip, ProductIDMCP2221)
	}

	// The kernel's hid-mcp2221 driver owns the interface otherwise.
	_ = dev.SetAutoDetach(true)

	c := &usbConn{
		ctx:     ctx,
		dev:     dev,
		timeout: DefaultBridgeTimeout,
		path:    fmt.Sprintf("usb:%d.%d", dev.Desc.Bus, dev.Desc.Address),
	}
	if err := c.claimInterface(); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// claimInterface finds and claims the HID interface and its interrupt
// endpoints.
func (c *usbConn) claimInterface() error {
	cfg, err := c.dev.Config(1)
	if err != nil {
		return fmt.Errorf("failed to get config: %w", err)
	}
	c.cfg = cfg

	hidIntf := -1
	for _, intf := range cfg.Desc.Interfaces {
		if len(intf.AltSettings) > 0 && intf.AltSettings[0].Class == gousb.ClassHID {
			hidIntf = intf.Number
			break
		}
	}
	if hidIntf == -1 {
		return fmt.Errorf("mcp2221 HID interface not found")
	}

	intf, err := cfg.Interface(hidIntf, 0)
	if err != nil {
		return fmt.Errorf("failed to claim interface %d: %w", hidIntf, err)
	}
	c.intf = intf

	var outNum, inNum int
	for _, ep := range intf.Setting.Endpoints {
		if ep.TransferType != gousb.TransferTypeInterrupt {
			continue
		}
		if ep.Direction == gousb.EndpointDirectionOut && outNum == 0 {
			outNum = ep.Number
		}
		if ep.Direction == gousb.EndpointDirectionIn && inNum == 0 {
			inNum = ep.Number
		}
	}
	if outNum == 0 || inNum == 0 {
		return fmt.Errorf("mcp2221 interrupt endpoints not found")
	}

	if c.epOut, err = intf.OutEndpoint(outNum); err != nil {
		return fmt.Errorf("failed to open OUT endpoint: %w", err)
	}
	if c.epIn, err = intf.InEndpoint(inNum); err != nil {
		return fmt.Errorf("failed to open IN endpoint: %w", err)
	}
	return nil
}

func (c *usbConn) WriteRead(cmd []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	packet := make([]byte, MCP2221PacketSize)
	copy(packet, cmd)
	if _, err := c.epOut.WriteContext(ctx, packet); err != nil {
		return nil, fmt.Errorf("USB write failed: %w", err)
	}

	resp := make([]byte, MCP2221PacketSize)
	n, err := c.epIn.ReadContext(ctx, resp)
	if err != nil {
		return nil, fmt.Errorf("USB read failed: %w", err)
	}
	return resp[:n], nil
}

func (c *usbConn) Close() error {
	if c.intf != nil {
		c.intf.Close()
		c.intf = nil
	}
	if c.cfg != nil {
		c.cfg.Close()
		c.cfg = nil
	}
	if c.dev != nil {
		c.dev.Close()
		c.dev = nil
	}
	if c.ctx != nil {
		c.ctx.Close()
		c.ctx = nil
	}
	return nil
}
