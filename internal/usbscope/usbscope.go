// Package usbscope opens Owon PDS oscilloscopes on the USB bus.
//
// The libusb-backed implementation is the default. Building with the "nousb" tag
// replaces it with a simulated scope that answers the dump handshake with a synthetic
// two-channel capture.
package usbscope

import "fmt"

// USB identity of the PDS series.
const (
	VendorID      = 0x5345 // Owon Technologies
	ProductID     = 0x1234 // PDS Digital Oscilloscope
	OutEndpoint   = 0x03
	InEndpoint    = 0x81
	Interface     = 0
	Configuration = 1
)

// clearHaltRequest is the setup packet of CLEAR_FEATURE(ENDPOINT_HALT), a standard
// request addressed to endpoint. The device resets its data toggle on receipt.
// libusb_clear_halt also resets the host side toggle but gousb does not expose it, so a
// stall cleared in the middle of a session can leave the toggles out of step until the
// device is reset.
func clearHaltRequest(endpoint uint8) (requestType, request uint8, value, index uint16) {
	const (
		recipientEndpoint = 0x02
		clearFeature      = 0x01
		endpointHalt      = 0x00
	)
	return recipientEndpoint, clearFeature, endpointHalt, uint16(endpoint)
}

// Opener selects a scope by vendor and product id. It implements transport.Opener.
type Opener struct {
	VendorID      uint16 // USB vendor id
	ProductID     uint16 // USB product id
	Index         int    // Which matching scope to open when several are attached (0-based)
	Configuration int    // USB configuration value
	Interface     int    // Interface number
	OutEndpoint   uint8  // Bulk OUT endpoint address
	InEndpoint    uint8  // Bulk IN endpoint address
	ResetOnOpen   bool   // Reset the device right after opening it
	DebugLevel    int    // libusb debug level
}

// DefaultOpener targets the first attached PDS scope.
func DefaultOpener() Opener {
	return Opener{
		VendorID:      VendorID,
		ProductID:     ProductID,
		Configuration: Configuration,
		Interface:     Interface,
		OutEndpoint:   OutEndpoint,
		InEndpoint:    InEndpoint,
	}
}

func (o Opener) String() string {
	return fmt.Sprintf("%04x:%04x #%d", o.VendorID, o.ProductID, o.Index)
}

// DeviceInfo describes an attached scope.
type DeviceInfo struct {
	Bus          int
	Address      int
	VendorID     uint16
	ProductID    uint16
	Manufacturer string
	Product      string
	SerialNumber string
}

func (d DeviceInfo) String() string {
	return fmt.Sprintf("bus %03d device %03d: %04x:%04x %s %s (serial %s)",
		d.Bus, d.Address, d.VendorID, d.ProductID, d.Manufacturer, d.Product, d.SerialNumber)
}
