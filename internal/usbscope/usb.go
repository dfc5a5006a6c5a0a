//go:build !nousb

package usbscope

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/gousb"

	"owondump/internal/transport"
)

// Device is an opened scope with its interface claimed.
type Device struct {
	ctx  *gousb.Context
	dev  *gousb.Device
	cfg  *gousb.Config
	intf *gousb.Interface
	out  *gousb.OutEndpoint
	in   *gousb.InEndpoint
}

// Open implements transport.Opener.
func (o Opener) Open() (transport.Device, error) {
	ctx := gousb.NewContext()
	if o.DebugLevel > 0 {
		ctx.Debug(o.DebugLevel)
	}

	devs, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return uint16(desc.Vendor) == o.VendorID && uint16(desc.Product) == o.ProductID
	})
	if len(devs) <= o.Index {
		for _, d := range devs {
			d.Close()
		}
		ctx.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to enumerate USB devices: %w", err)
		}
		return nil, fmt.Errorf("%s (found %d): %w", o, len(devs), transport.ErrDeviceNotFound)
	}
	for i, d := range devs {
		if i != o.Index {
			d.Close()
		}
	}

	d := &Device{ctx: ctx, dev: devs[o.Index]}
	if err := d.claim(o); err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

func (d *Device) claim(o Opener) error {
	if err := d.dev.SetAutoDetach(true); err != nil {
		return fmt.Errorf("failed to enable kernel driver auto-detach: %w", err)
	}
	if o.ResetOnOpen {
		// Some firmware revisions ignore the first transfer until reset.
		if err := d.dev.Reset(); err != nil {
			return fmt.Errorf("failed to reset device: %w", err)
		}
	}

	var err error
	if d.cfg, err = d.dev.Config(o.Configuration); err != nil {
		return fmt.Errorf("failed to select configuration %d: %w", o.Configuration, err)
	}
	if d.intf, err = d.cfg.Interface(o.Interface, 0); err != nil {
		return fmt.Errorf("failed to claim interface %d: %w", o.Interface, err)
	}
	if d.out, err = d.intf.OutEndpoint(int(o.OutEndpoint & 0x0f)); err != nil {
		return fmt.Errorf("failed to open OUT endpoint 0x%02x: %w", o.OutEndpoint, err)
	}
	if d.in, err = d.intf.InEndpoint(int(o.InEndpoint & 0x0f)); err != nil {
		return fmt.Errorf("failed to open IN endpoint 0x%02x: %w", o.InEndpoint, err)
	}
	return nil
}

// ClearHalt sends CLEAR_FEATURE(ENDPOINT_HALT) to endpoint.
func (d *Device) ClearHalt(endpoint uint8) error {
	rType, request, value, index := clearHaltRequest(endpoint)
	_, err := d.dev.Control(rType, request, value, index, nil)
	return err
}

func (d *Device) Write(ctx context.Context, p []byte) (int, error) {
	return d.out.WriteContext(ctx, p)
}

func (d *Device) Read(ctx context.Context, p []byte) (int, error) {
	return d.in.ReadContext(ctx, p)
}

func (d *Device) Reset() error {
	return d.dev.Reset()
}

// Close releases the interface, configuration, device and libusb context in that order.
func (d *Device) Close() error {
	var errs []error
	if d.intf != nil {
		d.intf.Close()
	}
	if d.cfg != nil {
		if err := d.cfg.Close(); err != nil {
			errs = append(errs, fmt.Errorf("config close error: %w", err))
		}
	}
	if d.dev != nil {
		if err := d.dev.Close(); err != nil {
			errs = append(errs, fmt.Errorf("device close error: %w", err))
		}
	}
	if d.ctx != nil {
		if err := d.ctx.Close(); err != nil {
			errs = append(errs, fmt.Errorf("context close error: %w", err))
		}
	}
	return errors.Join(errs...)
}

// ListDevices returns every attached device with the given ids.
func ListDevices(vendorID, productID uint16) ([]DeviceInfo, error) {
	ctx := gousb.NewContext()
	defer ctx.Close()

	devs, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return uint16(desc.Vendor) == vendorID && uint16(desc.Product) == productID
	})
	defer func() {
		for _, d := range devs {
			d.Close()
		}
	}()
	if err != nil && len(devs) == 0 {
		return nil, fmt.Errorf("failed to enumerate USB devices: %w", err)
	}

	infos := make([]DeviceInfo, 0, len(devs))
	for _, d := range devs {
		info := DeviceInfo{
			Bus:          d.Desc.Bus,
			Address:      d.Desc.Address,
			VendorID:     uint16(d.Desc.Vendor),
			ProductID:    uint16(d.Desc.Product),
			Manufacturer: "Unknown",
			Product:      "Unknown",
			SerialNumber: "Unknown",
		}
		// String descriptors are optional; keep the placeholders when they fail.
		if s, err := d.Manufacturer(); err == nil {
			info.Manufacturer = s
		}
		if s, err := d.Product(); err == nil {
			info.Product = s
		}
		if s, err := d.SerialNumber(); err == nil {
			info.SerialNumber = s
		}
		infos = append(infos, info)
	}
	return infos, nil
}
