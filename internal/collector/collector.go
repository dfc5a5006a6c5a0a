package collector

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"owondump/internal/config"
	"owondump/internal/filewriter"
	"owondump/internal/transport"
	"owondump/internal/usbscope"
	"owondump/internal/vectorgram"
)

// Collector performs one dump: handshake, decode and the written artifacts.
type Collector struct {
	config *config.Config
	opener transport.Opener
	writer *filewriter.Writer
	log    logrus.FieldLogger
	now    func() time.Time
}

// Result lists what a dump produced.
type Result struct {
	Capture   *vectorgram.Capture
	Metadata  filewriter.Metadata
	RawFile   string
	TextFile  string // empty when no table was written
	MetaFile  string // empty when metadata is disabled
	Collected time.Time
}

// OpenerFor selects the serial link when a port is configured and USB otherwise.
func OpenerFor(cfg *config.Config) transport.Opener {
	if cfg.Serial.Port != "" {
		return transport.SerialOpener{Port: cfg.Serial.Port, BaudRate: cfg.Serial.BaudRate}
	}
	return usbscope.Opener{
		VendorID:      cfg.USB.VendorID,
		ProductID:     cfg.USB.ProductID,
		Index:         cfg.USB.Index,
		Configuration: cfg.USB.Configuration,
		Interface:     cfg.USB.Interface,
		OutEndpoint:   cfg.USB.OutEndpoint,
		InEndpoint:    cfg.USB.InEndpoint,
		ResetOnOpen:   cfg.USB.ResetOnOpen,
		DebugLevel:    cfg.USB.DebugLevel,
	}
}

func NewCollector(cfg *config.Config, opener transport.Opener, log logrus.FieldLogger) *Collector {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Collector{
		config: cfg,
		opener: opener,
		writer: filewriter.NewWriter(),
		log:    log,
		now:    time.Now,
	}
}

// Initialize prepares the output directory.
func (c *Collector) Initialize() error {
	if err := os.MkdirAll(c.config.Output.Dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return nil
}

// Collect runs the handshake and writes the dump. An unrecognised payload is not an
// error: the raw file is still written and the result carries the classification.
func (c *Collector) Collect(ctx context.Context) (*Result, error) {
	var payload []byte
	err := transport.WithSession(ctx, c.opener, c.config.TransportOptions(), c.log,
		func(ctx context.Context, s *transport.Session) error {
			var err error
			payload, err = s.Exchange(ctx)
			return err
		})
	if err != nil {
		return nil, fmt.Errorf("dump failed: %w", err)
	}
	collected := c.now()
	fmt.Printf("Received %d bytes from %v\n", len(payload), c.opener)

	capture, decodeErr := vectorgram.Decode(payload, c.config.DecodeOptions())
	c.report(capture)

	res := &Result{Capture: capture, Collected: collected, RawFile: c.rawFilename(collected)}
	if err := c.writer.WriteRaw(res.RawFile, payload); err != nil {
		return nil, err
	}
	fmt.Printf("Raw dump saved to: %s\n", res.RawFile)

	if c.config.Output.Text && capture.Table != nil {
		res.TextFile = res.RawFile + filewriter.TextSuffix
		if err := c.writer.WriteTable(res.TextFile, capture); err != nil {
			return nil, fmt.Errorf("failed to write sample table: %w", err)
		}
		fmt.Printf("Sample table saved to: %s (%d channels, %d rows)\n",
			res.TextFile, len(capture.Table.Channels), len(capture.Table.Rows))
	}

	res.Metadata = filewriter.NewMetadata(capture, len(payload), fmt.Sprint(c.opener), collected)
	if c.config.Output.Metadata {
		res.MetaFile = res.RawFile + filewriter.MetadataSuffix
		if err := c.writer.WriteMetadata(res.MetaFile, res.Metadata); err != nil {
			return nil, fmt.Errorf("failed to write metadata: %w", err)
		}
	}

	if decodeErr != nil {
		c.log.WithError(decodeErr).Warn("payload not decoded, raw dump kept")
	}
	return res, nil
}

func (c *Collector) rawFilename(t time.Time) string {
	name := c.config.Output.File
	if name == "" {
		name = fmt.Sprintf("%s_%d.bin", c.config.Output.Prefix, t.Unix())
	}
	return filepath.Join(c.config.Output.Dir, name)
}

// report logs the classification, each channel header at debug level and every
// diagnostic as a warning.
func (c *Collector) report(capture *vectorgram.Capture) {
	f := capture.Format
	c.log.WithFields(logrus.Fields{
		"kind":    f.Kind,
		"variant": f.Variant,
		"leading": fmt.Sprintf("% x", f.Leading),
	}).Debug("payload classified")

	switch f.Kind {
	case vectorgram.KindBitmap:
		fmt.Printf("Bitmap screenshot (size hint 0x%02x), no sample table\n", f.SizeHint)
	case vectorgram.KindVectorgram:
		fmt.Printf("Vectorgram from %s\n", f.Variant)
	default:
		fmt.Printf("Unrecognised payload (leading bytes % x)\n", f.Leading)
	}

	for _, h := range capture.Headers {
		c.log.WithFields(logrus.Fields{
			"channel":     h.Name,
			"offset":      h.Offset,
			"layout":      h.Layout,
			"block":       h.BlockLength,
			"total":       h.TotalSamples,
			"used":        h.UsedSamples,
			"start":       h.StartOffset,
			"timebase_ns": h.TimebaseNS,
			"scale_mv":    h.ScaleMV,
		}).Debug("channel header")
	}
	for _, d := range capture.Diagnostics {
		c.log.WithError(d).Warn("decode diagnostic")
	}
}
