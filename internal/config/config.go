// Package config provides configuration structures and defaults for owondump
package config

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"owondump/internal/transport"
	"owondump/internal/vectorgram"
)

// Config represents the complete application configuration
type Config struct {
	USB       USBConfig       `mapstructure:"usb" yaml:"usb"`             // USB device selection
	Serial    SerialConfig    `mapstructure:"serial" yaml:"serial"`       // Serial link, used instead of USB when a port is set
	Transport TransportConfig `mapstructure:"transport" yaml:"transport"` // Handshake timing and limits
	Output    OutputConfig    `mapstructure:"output" yaml:"output"`       // Written artifacts
	Decode    DecodeConfig    `mapstructure:"decode" yaml:"decode"`       // Decoder overrides
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`     // Logging configuration
}

// USBConfig selects the scope on the USB bus
type USBConfig struct {
	VendorID      uint16 `mapstructure:"vendor_id" yaml:"vendor_id"`         // USB vendor id
	ProductID     uint16 `mapstructure:"product_id" yaml:"product_id"`       // USB product id
	Index         int    `mapstructure:"index" yaml:"index"`                 // Which matching scope to use (0-based)
	Configuration int    `mapstructure:"configuration" yaml:"configuration"` // USB configuration value
	Interface     int    `mapstructure:"interface" yaml:"interface"`         // Interface number
	OutEndpoint   uint8  `mapstructure:"out_endpoint" yaml:"out_endpoint"`   // Bulk OUT endpoint address
	InEndpoint    uint8  `mapstructure:"in_endpoint" yaml:"in_endpoint"`     // Bulk IN endpoint address
	ResetOnOpen   bool   `mapstructure:"reset_on_open" yaml:"reset_on_open"` // Reset the device after opening it
	DebugLevel    int    `mapstructure:"debug_level" yaml:"debug_level"`     // libusb debug level
}

// SerialConfig describes a scope reached through a serial adapter
type SerialConfig struct {
	Port     string `mapstructure:"port" yaml:"port"`           // Serial port device path, empty for USB
	BaudRate int    `mapstructure:"baud_rate" yaml:"baud_rate"` // Line speed
}

// TransportConfig bounds the dump handshake
type TransportConfig struct {
	CommandTimeout time.Duration `mapstructure:"command_timeout" yaml:"command_timeout"` // Command write and acknowledgement read
	PayloadTimeout time.Duration `mapstructure:"payload_timeout" yaml:"payload_timeout"` // Payload read
	BufferLimit    int           `mapstructure:"buffer_limit" yaml:"buffer_limit"`       // Largest payload to allocate, in bytes
}

// OutputConfig controls the files written for each dump
type OutputConfig struct {
	Dir      string `mapstructure:"dir" yaml:"dir"`           // Output directory
	File     string `mapstructure:"file" yaml:"file"`         // Raw dump file name, generated from Prefix when empty
	Prefix   string `mapstructure:"prefix" yaml:"prefix"`     // Prefix for generated file names
	Text     bool   `mapstructure:"text" yaml:"text"`         // Write the tab-separated sample table
	Metadata bool   `mapstructure:"metadata" yaml:"metadata"` // Write the YAML metadata sidecar
}

// DecodeConfig tunes the vectorgram decoder
type DecodeConfig struct {
	Layout string `mapstructure:"layout" yaml:"layout"` // Header layout: auto, legacy or extended
}

// LoggingConfig contains logging configuration parameters
type LoggingConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`               // Log level (debug, info, warn, error)
	File       string `mapstructure:"file" yaml:"file"`                 // Log file path, empty for stderr only
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`   // Rotate the log file after this size
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`   // Rotated files to keep
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"` // Days to keep rotated files
	Compress   bool   `mapstructure:"compress" yaml:"compress"`         // Gzip rotated files
}

// DefaultConfig returns a configuration with sensible default values
func DefaultConfig() *Config {
	opts := transport.DefaultOptions()
	return &Config{
		USB: USBConfig{
			VendorID:      0x5345, // Owon Technologies
			ProductID:     0x1234, // PDS Digital Oscilloscope
			Index:         0,      // First attached scope
			Configuration: 1,
			Interface:     0,
			OutEndpoint:   opts.OutEndpoint,
			InEndpoint:    opts.InEndpoint,
			ResetOnOpen:   false,
		},
		Serial: SerialConfig{
			Port:     "",
			BaudRate: 115200,
		},
		Transport: TransportConfig{
			CommandTimeout: opts.CommandTimeout, // 500 ms
			PayloadTimeout: opts.PayloadTimeout, // 3 s, the scope needs time to fill its buffer
			BufferLimit:    opts.BufferLimit,
		},
		Output: OutputConfig{
			Dir:      ".",
			Prefix:   "owon",
			Text:     true,
			Metadata: true,
		},
		Decode: DecodeConfig{
			Layout: "auto",
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Validate checks the configuration for values the dump cannot run with
func (c *Config) Validate() error {
	if c.Serial.Port == "" {
		if c.USB.OutEndpoint&0x80 != 0 {
			return fmt.Errorf("invalid OUT endpoint 0x%02x: direction bit set", c.USB.OutEndpoint)
		}
		if c.USB.InEndpoint&0x80 == 0 {
			return fmt.Errorf("invalid IN endpoint 0x%02x: direction bit clear", c.USB.InEndpoint)
		}
		if c.USB.Index < 0 {
			return fmt.Errorf("invalid device index %d", c.USB.Index)
		}
	} else if c.Serial.BaudRate <= 0 {
		return fmt.Errorf("invalid baud rate %d for serial port %s", c.Serial.BaudRate, c.Serial.Port)
	}

	if c.Transport.CommandTimeout <= 0 || c.Transport.PayloadTimeout <= 0 {
		return fmt.Errorf("timeouts must be positive (command %v, payload %v)",
			c.Transport.CommandTimeout, c.Transport.PayloadTimeout)
	}
	if c.Transport.BufferLimit <= 0 || c.Transport.BufferLimit > transport.MaxPayload {
		return fmt.Errorf("buffer limit %d outside 1..%d", c.Transport.BufferLimit, transport.MaxPayload)
	}

	if _, ok := vectorgram.ParseLayout(c.Decode.Layout); !ok {
		return fmt.Errorf("invalid decode layout %q (must be 'auto', 'legacy' or 'extended')", c.Decode.Layout)
	}
	if _, err := logrus.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	if c.Output.File == "" && c.Output.Prefix == "" {
		return fmt.Errorf("output file or prefix must be set")
	}
	return nil
}

// TransportOptions converts the configuration into session options
func (c *Config) TransportOptions() transport.Options {
	return transport.Options{
		OutEndpoint:    c.USB.OutEndpoint,
		InEndpoint:     c.USB.InEndpoint,
		CommandTimeout: c.Transport.CommandTimeout,
		PayloadTimeout: c.Transport.PayloadTimeout,
		BufferLimit:    c.Transport.BufferLimit,
	}
}

// DecodeOptions converts the configuration into decoder options. Validate has already
// rejected unknown layouts.
func (c *Config) DecodeOptions() vectorgram.Options {
	layout, _ := vectorgram.ParseLayout(c.Decode.Layout)
	return vectorgram.Options{Layout: layout}
}
