//go:build linux

package i2c

import (
	"errors"
	"fmt"
	"runtime"
	"unsafe"

	"golang.org/x/sys/unix"
)

// /dev/i2c-X ioctl commands. The parameter is an unsigned long except for
// I2C_FUNCS (pointer to unsigned long) and I2C_RDWR (pointer to struct
// i2c_rdwr_ioctl_data).
const (
	ioctlTenBit     = 0x0704 // 0 for 7 bit addrs, != 0 for 10 bit
	ioctlFuncs      = 0x0705 // get the adapter functionality mask
	ioctlSlaveForce = 0x0706 // use this slave address, even if claimed by a driver
	ioctlRdWr       = 0x0707 // combined R/W transfer (one STOP only)
)

// Functionality bits reported by I2C_FUNCS.
const (
	funcI2C        = 0x00000001
	funcTenBitAddr = 0x00000002
)

// rdwrMaxMessages is I2C_RDWR_IOCTL_MAX_MSGS from linux/i2c-dev.h.
const rdwrMaxMessages = 42

// LinuxBus is an i2c-dev character device, /dev/i2c-N.
type LinuxBus struct {
	index int
	path  string
	fd    int
	funcs uintptr
	addr  uint16
	bound bool
}

// OpenLinux opens /dev/i2c-index and checks that the adapter can run plain
// I2C combined transfers.
func OpenLinux(index int) (*LinuxBus, error) {
	path := fmt.Sprintf("/dev/i2c-%d", index)
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	b := &LinuxBus{index: index, path: path, fd: fd}

	if err := b.ioctlPtr(ioctlFuncs, unsafe.Pointer(&b.funcs)); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("ioctl FUNCS %s: %w", path, err)
	}
	if b.funcs&funcI2C == 0 {
		unix.Close(fd)
		return nil, fmt.Errorf("%s: adapter cannot do plain I2C transfers: %w", path, ErrUnsupported)
	}
	return b, nil
}

// BindForced claims addr with I2C_SLAVE_FORCE, so a kernel driver already
// bound to the address does not block access. Addresses above 0x7F switch
// the adapter to 10-bit addressing.
func (b *LinuxBus) BindForced(addr uint16) error {
	if b.fd < 0 {
		return ErrClosed
	}
	if addr > MaxAddress10 {
		return fmt.Errorf("i2c: address 0x%X out of range", addr)
	}
	tenBit, width := 0, 7
	if addr > MaxAddress7 {
		if b.funcs&funcTenBitAddr == 0 {
			return fmt.Errorf("%s: 10-bit address 0x%X: %w", b.path, addr, ErrUnsupported)
		}
		tenBit, width = 1, 10
	}
	if err := unix.IoctlSetInt(b.fd, ioctlTenBit, tenBit); err != nil {
		return fmt.Errorf("set %d-bit addressing: %w", width, err)
	}
	if err := unix.IoctlSetInt(b.fd, ioctlSlaveForce, int(addr)); err != nil {
		return fmt.Errorf("force slave address 0x%02X: %w", addr, err)
	}
	b.addr = addr
	b.bound = true
	return nil
}

func (b *LinuxBus) Info() BusInfo {
	return BusInfo{
		Kind:        InterfaceKindLinux,
		Name:        fmt.Sprintf("i2c-%d", b.index),
		Path:        b.path,
		Description: "Linux i2c-dev",
	}
}

// Transfer runs msgs as one I2C_RDWR ioctl. The kernel does not report which
// message failed, so errors carry PhaseUnknown.
func (b *LinuxBus) Transfer(msgs ...Message) error {
	if b.fd < 0 {
		return ErrClosed
	}
	if err := ValidateMessages(msgs); err != nil {
		return err
	}
	if len(msgs) > rdwrMaxMessages {
		return fmt.Errorf("i2c: too many messages: max %d", rdwrMaxMessages)
	}

	// struct i2c_msg
	type msg struct {
		addr  uint16
		flags uint16
		len   uint16
		buf   unsafe.Pointer
	}
	var ms [rdwrMaxMessages]msg
	for i, m := range msgs {
		ms[i] = msg{
			addr:  m.Addr,
			flags: uint16(m.Flags),
			len:   uint16(len(m.Data)),
			buf:   unsafe.Pointer(&m.Data[0]),
		}
	}

	// struct i2c_rdwr_ioctl_data
	type rdwr struct {
		msgs  unsafe.Pointer
		nmsgs uint32
	}
	d := rdwr{msgs: unsafe.Pointer(&ms[0]), nmsgs: uint32(len(msgs))}
	err := b.ioctlPtr(ioctlRdWr, unsafe.Pointer(&d))
	runtime.KeepAlive(msgs)
	if err != nil {
		return &TransferError{Index: PhaseUnknown, Err: classifyErrno(err)}
	}
	return nil
}

// Close releases the file descriptor.
func (b *LinuxBus) Close() error {
	if b.fd < 0 {
		return nil
	}
	err := unix.Close(b.fd)
	b.fd = -1
	return err
}

func (b *LinuxBus) ioctlPtr(op uintptr, arg unsafe.Pointer) error {
	_, _, e := unix.Syscall(unix.SYS_IOCTL, uintptr(b.fd), op, uintptr(arg))
	if e != 0 {
		return e
	}
	return nil
}

// classifyErrno maps the errno values bus drivers use for a missing
// acknowledge or a stuck bus onto the package sentinels.
func classifyErrno(err error) error {
	var errno unix.Errno
	if !errors.As(err, &errno) {
		return err
	}
	switch errno {
	case unix.ENXIO, unix.EREMOTEIO, unix.ENODEV:
		return fmt.Errorf("%w (%v)", ErrNACK, errno)
	case unix.ETIMEDOUT, unix.EAGAIN:
		return fmt.Errorf("%w (%v)", ErrTimeout, errno)
	}
	return err
}
