// Package transport runs the dump handshake with an Owon scope over a bulk link.
//
// The host clears the OUT endpoint and writes "START", clears the IN endpoint and reads
// a 12-byte acknowledgement whose first little-endian word is the payload length, then
// reads exactly that many bytes. Any I/O failure resets the device before the error
// reaches the caller.
package transport

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// StartCommand asks the scope to send its trace memory.
	StartCommand = "START"
	// AckLength is the size of the acknowledgement that announces the payload length.
	AckLength = 12
	// MaxPayload is the hard cap on an announced payload length. Anything larger is a
	// corrupted acknowledgement, whatever the configured buffer limit.
	MaxPayload = 64 << 20
)

var (
	ErrDeviceNotFound    = errors.New("no matching device found")
	ErrTransport         = errors.New("transport failure")
	ErrAllocation        = errors.New("payload exceeds buffer limit")
	ErrImplausibleLength = errors.New("implausible payload length")
)

// TransportError records which step of the handshake failed.
type TransportError struct {
	Op       string
	Endpoint uint8
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s on endpoint 0x%02x: %v", e.Op, e.Endpoint, e.Err)
}

// Unwrap exposes both ErrTransport and the underlying cause.
func (e *TransportError) Unwrap() []error {
	return []error{ErrTransport, e.Err}
}

// Device is an opened bulk link to a scope.
type Device interface {
	// ClearHalt clears a stall on endpoint.
	ClearHalt(endpoint uint8) error
	// Write sends p on the OUT endpoint.
	Write(ctx context.Context, p []byte) (int, error)
	// Read receives up to len(p) bytes from the IN endpoint.
	Read(ctx context.Context, p []byte) (int, error)
	Reset() error
	Close() error
}

// Opener locates and opens a device. Implementations return an error wrapping
// ErrDeviceNotFound when nothing matches.
type Opener interface {
	Open() (Device, error)
}

// Options configure a session.
type Options struct {
	OutEndpoint    uint8         // Bulk OUT endpoint address
	InEndpoint     uint8         // Bulk IN endpoint address
	CommandTimeout time.Duration // Timeout for the command write and acknowledgement read
	PayloadTimeout time.Duration // Timeout for the payload read
	BufferLimit    int           // Largest payload the host will allocate
}

// DefaultOptions match the PDS series firmware.
func DefaultOptions() Options {
	return Options{
		OutEndpoint:    0x03,
		InEndpoint:     0x81,
		CommandTimeout: 500 * time.Millisecond,
		PayloadTimeout: 3000 * time.Millisecond,
		BufferLimit:    8 << 20,
	}
}

// Session owns an opened device for the duration of one or more dumps.
type Session struct {
	dev    Device
	opts   Options
	log    logrus.FieldLogger
	closed bool
}

// Open acquires a device through opener.
func Open(opener Opener, opts Options, log logrus.FieldLogger) (*Session, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	dev, err := opener.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open device: %w", err)
	}
	log.WithFields(logrus.Fields{
		"out": fmt.Sprintf("0x%02x", opts.OutEndpoint),
		"in":  fmt.Sprintf("0x%02x", opts.InEndpoint),
	}).Debug("device opened")
	return &Session{dev: dev, opts: opts, log: log}, nil
}

// WithSession opens a session, runs fn and always releases the device. A device whose
// exchange failed has already been reset by the session.
func WithSession(ctx context.Context, opener Opener, opts Options, log logrus.FieldLogger, fn func(context.Context, *Session) error) (err error) {
	s, err := Open(opener, opts, log)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close device: %w", cerr)
		}
	}()
	return fn(ctx, s)
}

// Exchange requests a dump and returns the payload. The returned slice belongs to the
// caller.
func (s *Session) Exchange(ctx context.Context) ([]byte, error) {
	if s.closed {
		return nil, &TransportError{Op: "exchange", Endpoint: s.opts.OutEndpoint, Err: errors.New("session closed")}
	}
	out, in := s.opts.OutEndpoint, s.opts.InEndpoint

	if err := s.dev.ClearHalt(out); err != nil {
		return nil, s.fail("clear halt", out, err)
	}
	if err := s.write(ctx, []byte(StartCommand)); err != nil {
		return nil, s.fail("write command", out, err)
	}
	s.log.WithField("bytes", len(StartCommand)).Debug("start command written")

	if err := s.dev.ClearHalt(in); err != nil {
		return nil, s.fail("clear halt", in, err)
	}
	ack := make([]byte, AckLength)
	if err := s.readFull(ctx, ack, s.opts.CommandTimeout); err != nil {
		return nil, s.failRead("read acknowledgement", err)
	}

	length := binary.LittleEndian.Uint32(ack[0:4])
	s.log.WithFields(logrus.Fields{
		"length": length,
		"ack":    fmt.Sprintf("% x", ack),
	}).Debug("acknowledgement received")

	if length == 0 || length > MaxPayload {
		s.reset()
		return nil, fmt.Errorf("announced payload of %d bytes: %w", length, ErrImplausibleLength)
	}
	if s.opts.BufferLimit > 0 && int64(length) > int64(s.opts.BufferLimit) {
		s.reset()
		return nil, fmt.Errorf("announced payload of %d bytes, limit %d: %w", length, s.opts.BufferLimit, ErrAllocation)
	}

	payload := make([]byte, length)
	if err := s.readFull(ctx, payload, s.opts.PayloadTimeout); err != nil {
		return nil, s.failRead("read payload", err)
	}
	s.log.WithField("bytes", len(payload)).Debug("payload received")
	return payload, nil
}

// Close releases the device. It is safe to call more than once.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.dev.Close()
}

func (s *Session) write(ctx context.Context, p []byte) error {
	wctx, cancel := context.WithTimeout(ctx, s.opts.CommandTimeout)
	defer cancel()
	n, err := s.dev.Write(wctx, p)
	if err != nil {
		return err
	}
	if n != len(p) {
		return fmt.Errorf("short write: %d of %d bytes", n, len(p))
	}
	return nil
}

// readFull fills p within one deadline.
func (s *Session) readFull(ctx context.Context, p []byte, timeout time.Duration) error {
	rctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	total := 0
	for total < len(p) {
		n, err := s.dev.Read(rctx, p[total:])
		total += n
		if err != nil {
			return fmt.Errorf("after %d of %d bytes: %w", total, len(p), err)
		}
		if n == 0 {
			return fmt.Errorf("short read: %d of %d bytes", total, len(p))
		}
	}
	return nil
}

// failRead clears the IN endpoint before the reset, as the scope leaves it stalled
// after an incomplete transfer.
func (s *Session) failRead(op string, err error) error {
	if cerr := s.dev.ClearHalt(s.opts.InEndpoint); cerr != nil {
		s.log.WithError(cerr).Warn("failed to clear read endpoint")
	}
	return s.fail(op, s.opts.InEndpoint, err)
}

func (s *Session) fail(op string, endpoint uint8, err error) error {
	s.reset()
	return &TransportError{Op: op, Endpoint: endpoint, Err: err}
}

func (s *Session) reset() {
	if err := s.dev.Reset(); err != nil {
		s.log.WithError(err).Warn("device reset failed")
		return
	}
	s.log.Debug("device reset")
}
