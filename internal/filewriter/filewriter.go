package filewriter

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"owondump/internal/vectorgram"
)

// FileFormatVersion is the version of the metadata sidecar layout.
const FileFormatVersion = 1

// Suffixes appended to the raw dump file name.
const (
	TextSuffix     = ".txt"
	MetadataSuffix = ".yaml"
)

// Metadata describes one dump. It is stored as YAML next to the raw file.
type Metadata struct {
	FileFormatVersion uint16                     `yaml:"file_format_version"`
	CaptureID         string                     `yaml:"capture_id"`
	CaptureTime       time.Time                  `yaml:"capture_time"`
	Device            string                     `yaml:"device"`
	Format            string                     `yaml:"format"`
	Model             string                     `yaml:"model,omitempty"`
	PayloadBytes      int                        `yaml:"payload_bytes"`
	TimebaseNS        int64                      `yaml:"timebase_ns"`
	Rows              int                        `yaml:"rows"`
	Channels          []vectorgram.ChannelHeader `yaml:"channels,omitempty"`
	Diagnostics       []string                   `yaml:"diagnostics,omitempty"`
}

// NewMetadata summarises a decoded capture under a fresh capture id.
func NewMetadata(c *vectorgram.Capture, payloadBytes int, device string, at time.Time) Metadata {
	m := Metadata{
		FileFormatVersion: FileFormatVersion,
		CaptureID:         uuid.NewString(),
		CaptureTime:       at,
		Device:            device,
		Format:            c.Format.Kind.String(),
		PayloadBytes:      payloadBytes,
		Channels:          c.Headers,
	}
	if c.Format.Kind == vectorgram.KindVectorgram {
		m.Model = c.Format.Variant.String()
	}
	m.TimebaseNS, _ = c.Timebase()
	if c.Table != nil {
		m.Rows = len(c.Table.Rows)
	}
	for _, d := range c.Diagnostics {
		m.Diagnostics = append(m.Diagnostics, d.Error())
	}
	return m
}

type Writer struct{}

func NewWriter() *Writer {
	return &Writer{}
}

// WriteRaw stores the payload byte for byte.
func (w *Writer) WriteRaw(filename string, payload []byte) error {
	if err := os.WriteFile(filename, payload, 0o644); err != nil {
		return fmt.Errorf("failed to write raw dump: %w", err)
	}
	return nil
}

// WriteTable writes the tab-separated sample table of c to filename.
func (w *Writer) WriteTable(filename string, c *vectorgram.Capture) error {
	return writeFile(filename, func(out io.Writer) error { return WriteTableTo(out, c) })
}

// WriteMetadata writes m as YAML to filename.
func (w *Writer) WriteMetadata(filename string, m Metadata) error {
	return writeFile(filename, func(out io.Writer) error {
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(m); err != nil {
			return fmt.Errorf("failed to encode metadata: %w", err)
		}
		return enc.Close()
	})
}

func writeFile(filename string, fn func(io.Writer) error) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	buf := bufio.NewWriter(file)
	if err := fn(buf); err != nil {
		file.Close()
		return err
	}
	if err := buf.Flush(); err != nil {
		file.Close()
		return fmt.Errorf("failed to write %s: %w", filename, err)
	}
	return file.Close()
}

// WriteTableTo renders the text table: a summary line whose second and fifth tokens
// are the timebase and the row count, a line of channel names, then one line per row
// with a 1-based index and the readings in millivolts. Missing readings are "-".
func WriteTableTo(out io.Writer, c *vectorgram.Capture) error {
	if c.Table == nil {
		return fmt.Errorf("capture has no sample table (%s)", c.Format.Kind)
	}
	timebase, interval := c.Timebase()
	if _, err := fmt.Fprintf(out, "# Timebase: %d ns/div Samples: %d Interval: %s ns Units: mV\n",
		timebase, len(c.Table.Rows), strconv.FormatFloat(interval, 'f', -1, 32)); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(out, "#\t%s\n", strings.Join(c.Table.Channels, "\t")); err != nil {
		return err
	}

	var line []byte
	for j, row := range c.Table.Rows {
		line = strconv.AppendInt(line[:0], int64(j+1), 10)
		for _, r := range row {
			line = append(line, '\t')
			line = appendReading(line, r)
		}
		line = append(line, '\n')
		if _, err := out.Write(line); err != nil {
			return err
		}
	}
	return nil
}

// WriteCSV renders the table as CSV with an index column. Missing readings are empty.
func WriteCSV(out io.Writer, c *vectorgram.Capture) error {
	if c.Table == nil {
		return fmt.Errorf("capture has no sample table (%s)", c.Format.Kind)
	}
	cw := csv.NewWriter(out)
	if err := cw.Write(append([]string{"index"}, c.Table.Channels...)); err != nil {
		return err
	}
	record := make([]string, len(c.Table.Channels)+1)
	for j, row := range c.Table.Rows {
		record[0] = strconv.Itoa(j + 1)
		for i, r := range row {
			record[i+1] = ""
			if r.Valid {
				record[i+1] = strconv.FormatFloat(r.MV, 'f', 1, 64)
			}
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func appendReading(b []byte, r vectorgram.Reading) []byte {
	if !r.Valid {
		return append(b, '-')
	}
	return strconv.AppendFloat(b, r.MV, 'f', 1, 64)
}

// ReadCapture loads a raw dump written by WriteRaw or by other tools.
func ReadCapture(filename string) ([]byte, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read capture: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("capture %s is empty", filename)
	}
	return data, nil
}

// ReadMetadata loads a sidecar written by WriteMetadata.
func ReadMetadata(filename string) (*Metadata, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}
	var m Metadata
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse metadata: %w", err)
	}
	return &m, nil
}
