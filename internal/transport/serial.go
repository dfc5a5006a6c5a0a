package transport

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.bug.st/serial"
)

// SerialOpener opens a scope attached through a USB-serial or RS-232 adapter. The
// framing is the same as over USB; endpoints only select which buffer to flush.
type SerialOpener struct {
	Port     string // Serial port device path
	BaudRate int    // Line speed
}

func (o SerialOpener) String() string {
	return fmt.Sprintf("serial %s@%d", o.Port, o.BaudRate)
}

// Open implements Opener.
func (o SerialOpener) Open() (Device, error) {
	mode := &serial.Mode{
		BaudRate: o.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(o.Port, mode)
	if err != nil {
		var perr *serial.PortError
		if errors.As(err, &perr) && perr.Code() == serial.PortNotFound {
			return nil, fmt.Errorf("serial port %s: %w", o.Port, ErrDeviceNotFound)
		}
		return nil, fmt.Errorf("failed to open serial port %s: %w", o.Port, err)
	}
	return &SerialDevice{port: port}, nil
}

// SerialDevice adapts a serial port to the Device interface.
type SerialDevice struct {
	port serial.Port
}

// NewSerialDevice wraps an already opened port.
func NewSerialDevice(port serial.Port) *SerialDevice {
	return &SerialDevice{port: port}
}

// ClearHalt discards pending input for an IN address and pending output otherwise.
func (d *SerialDevice) ClearHalt(endpoint uint8) error {
	if endpoint&0x80 != 0 {
		return d.port.ResetInputBuffer()
	}
	return d.port.ResetOutputBuffer()
}

func (d *SerialDevice) Write(ctx context.Context, p []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return d.port.Write(p)
}

// Read waits for data until the context deadline. A read that times out with nothing
// received reports the context error.
func (d *SerialDevice) Read(ctx context.Context, p []byte) (int, error) {
	timeout := serial.NoTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
		if timeout <= 0 {
			return 0, context.DeadlineExceeded
		}
	}
	if err := d.port.SetReadTimeout(timeout); err != nil {
		return 0, err
	}
	n, err := d.port.Read(p)
	if err != nil {
		return n, err
	}
	if n == 0 {
		if cerr := ctx.Err(); cerr != nil {
			return 0, cerr
		}
		return 0, context.DeadlineExceeded
	}
	return n, nil
}

// Reset flushes both directions; a serial link has no bus reset.
func (d *SerialDevice) Reset() error {
	return errors.Join(d.port.ResetInputBuffer(), d.port.ResetOutputBuffer())
}

func (d *SerialDevice) Close() error {
	return d.port.Close()
}

// SerialPorts lists the serial ports present on the host.
func SerialPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}
	return ports, nil
}
