//go:build nousb

package usbscope

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"math"

	"owondump/internal/transport"
	"owondump/internal/vectorgram"
)

// Device is a simulated scope. Writing the start command queues an acknowledgement and
// a synthetic capture for the following reads.
type Device struct {
	capture []byte
	pending bytes.Buffer
	resets  int
	closed  bool
}

// Open implements transport.Opener. Only the PDS identity is simulated.
func (o Opener) Open() (transport.Device, error) {
	if o.VendorID != VendorID || o.ProductID != ProductID || o.Index != 0 {
		return nil, fmt.Errorf("%s: %w", o, transport.ErrDeviceNotFound)
	}
	return &Device{capture: SimulatedCapture()}, nil
}

// SimulatedCapture is the vectorgram served by the simulated scope: a 1 kHz sine on
// CH1 and a 5 kHz square wave on CH2, 500 samples each at 10 µs, 500 µs/div.
func SimulatedCapture() []byte {
	const n = 500
	sine := make([]int16, n)
	square := make([]int16, n)
	for i := range sine {
		sine[i] = int16(100 * math.Sin(2*math.Pi*float64(i)/100))
		square[i] = 50
		if (i/10)%2 == 1 {
			square[i] = -50
		}
	}
	return vectorgram.NewBuilder(vectorgram.PDS7102T.Tag).
		Channel(vectorgram.ChannelSpec{
			Name: "CH1", Samples: sine,
			TimebaseCode: 0x0f, SensitivityCode: 0x05, ProbeCode: 1,
			SampleInterval: 1e-5, Frequency: 1000, Period: 1e-3,
		}).
		Channel(vectorgram.ChannelSpec{
			Name: "CH2", Samples: square, StartOffset: 25,
			TimebaseCode: 0x0f, SensitivityCode: 0x03,
			SampleInterval: 1e-5, Frequency: 5000, Period: 2e-4,
		}).
		Bytes()
}

func (d *Device) ClearHalt(endpoint uint8) error {
	if d.closed {
		return fmt.Errorf("simulated device closed")
	}
	return nil
}

func (d *Device) Write(ctx context.Context, p []byte) (int, error) {
	if d.closed {
		return 0, fmt.Errorf("simulated device closed")
	}
	if string(p) == transport.StartCommand {
		d.pending.Reset()
		ack := make([]byte, transport.AckLength)
		binary.LittleEndian.PutUint32(ack, uint32(len(d.capture)))
		d.pending.Write(ack)
		d.pending.Write(d.capture)
	}
	return len(p), nil
}

func (d *Device) Read(ctx context.Context, p []byte) (int, error) {
	if d.closed {
		return 0, fmt.Errorf("simulated device closed")
	}
	if d.pending.Len() == 0 {
		<-ctx.Done()
		return 0, ctx.Err()
	}
	return d.pending.Read(p)
}

func (d *Device) Reset() error {
	d.resets++
	d.pending.Reset()
	return nil
}

func (d *Device) Close() error {
	d.closed = true
	return nil
}

// ListDevices returns the simulated scope.
func ListDevices(vendorID, productID uint16) ([]DeviceInfo, error) {
	if vendorID != VendorID || productID != ProductID {
		return nil, nil
	}
	return []DeviceInfo{{
		Bus:          1,
		Address:      1,
		VendorID:     VendorID,
		ProductID:    ProductID,
		Manufacturer: "Simulated",
		Product:      "PDS7102T",
		SerialNumber: "00000001",
	}}, nil
}
