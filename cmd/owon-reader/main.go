// Owon Reader - Utility to inspect saved Owon PDS trace memory dumps
// This program decodes a raw dump written by owondump and prints its channel headers,
// sample table and statistics.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"owondump/internal/analysis"
	"owondump/internal/filewriter"
	"owondump/internal/vectorgram"
	"owondump/internal/version"
)

// hexHeaderBytes covers the file header plus the start of the first channel header.
const hexHeaderBytes = 0x40

var (
	outputFormat string
	showHeaders  bool
	showStats    bool
	showHex      bool
	writeText    bool
	layoutName   string
	showVersion  bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "owon-reader [dump.bin]",
	Short: "Decode and display a saved Owon trace memory dump",
	Long: `Owon Reader decodes a raw dump saved by owondump and prints what it holds.

Display modes:
  --headers    Show every decoded channel header
  --stats      Show per-channel statistics and the dominant frequency
  --hex        Show a hexadecimal dump of the first 64 bytes
  --text       Write the millivolt table next to the dump`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if showVersion {
			fmt.Println(version.GetVersionInfo("Owon Reader"))
			return
		}

		if len(args) == 0 {
			fmt.Fprintf(os.Stderr, "Error: filename required\n")
			cmd.Usage()
			os.Exit(1)
		}

		if err := displayFile(os.Stdout, args[0]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.Flags().BoolVar(&showVersion, "version", false, "show version information")
	rootCmd.Flags().StringVarP(&outputFormat, "format", "f", "table", "output format (table, json, yaml, csv)")
	rootCmd.Flags().BoolVar(&showHeaders, "headers", false, "display every channel header")
	rootCmd.Flags().BoolVar(&showStats, "stats", false, "show statistical analysis of each channel")
	rootCmd.Flags().BoolVar(&showHex, "hex", false, "display the leading bytes as a hexadecimal dump")
	rootCmd.Flags().BoolVar(&writeText, "text", false, "write the sample table to <file>.txt, as owondump does")
	rootCmd.Flags().StringVar(&layoutName, "layout", "auto", "channel header layout: auto, legacy or extended")
}

// report is the structured form printed by --format json and yaml.
type report struct {
	File        string                     `json:"file" yaml:"file"`
	Bytes       int                        `json:"bytes" yaml:"bytes"`
	Format      string                     `json:"format" yaml:"format"`
	Headers     []vectorgram.ChannelHeader `json:"headers,omitempty" yaml:"headers,omitempty"`
	Stats       []analysis.ChannelStats    `json:"stats,omitempty" yaml:"stats,omitempty"`
	Channels    []string                   `json:"channels,omitempty" yaml:"channels,omitempty"`
	Rows        [][]*float64               `json:"rows,omitempty" yaml:"rows,omitempty"`
	Diagnostics []string                   `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`
}

// displayFile decodes a dump and prints it in the selected format
func displayFile(out io.Writer, filename string) error {
	layout, ok := vectorgram.ParseLayout(layoutName)
	if !ok {
		return fmt.Errorf("unknown layout %q", layoutName)
	}

	buf, err := filewriter.ReadCapture(filename)
	if err != nil {
		return err
	}

	c, decodeErr := vectorgram.Decode(buf, vectorgram.Options{Layout: layout})

	switch outputFormat {
	case "table":
		displayTable(out, filename, buf, c, decodeErr)
	case "json", "yaml":
		if err := displayStructured(out, filename, buf, c); err != nil {
			return err
		}
	case "csv":
		if decodeErr != nil {
			return decodeErr
		}
		if c.Table == nil {
			return fmt.Errorf("%s holds no sample table", c.Format)
		}
		if err := filewriter.WriteCSV(out, c); err != nil {
			return fmt.Errorf("failed to write CSV: %w", err)
		}
	default:
		return fmt.Errorf("unknown output format %q", outputFormat)
	}

	if writeText && c.Table != nil {
		name := filename + filewriter.TextSuffix
		if err := filewriter.NewWriter().WriteTable(name, c); err != nil {
			return err
		}
		fmt.Fprintf(out, "Sample table saved to: %s\n", name)
	}
	return nil
}

func displayTable(out io.Writer, filename string, buf []byte, c *vectorgram.Capture, decodeErr error) {
	fmt.Fprintf(out, "OWON DUMP READER %s\n\n", version.Version)

	fmt.Fprintf(out, "📁 File Information:\n")
	fmt.Fprintf(out, "Name: %s\n", filepath.Base(filename))
	fmt.Fprintf(out, "Size: %d bytes\n", len(buf))
	fmt.Fprintf(out, "Format: %s\n\n", c.Format)

	if showHex {
		displayHex(out, buf, hexHeaderBytes)
	}
	if decodeErr != nil {
		fmt.Fprintf(out, "⚠️  %v\n", decodeErr)
		return
	}
	if c.Table == nil {
		return
	}

	tb, interval := c.Timebase()
	fmt.Fprintf(out, "📊 Capture:\n")
	fmt.Fprintf(out, "Channels: %s\n", strings.Join(c.Table.Channels, ", "))
	fmt.Fprintf(out, "Rows: %d\n", len(c.Table.Rows))
	fmt.Fprintf(out, "Timebase: %d ns/div\n", tb)
	fmt.Fprintf(out, "Interval: %g ns\n\n", interval)

	if showHeaders {
		displayHeaders(out, c.Headers)
	}
	if showStats {
		displayStats(out, analysis.Summarize(c))
	}

	if len(c.Diagnostics) > 0 {
		fmt.Fprintf(out, "⚠️  Diagnostics:\n")
		for _, d := range c.Diagnostics {
			fmt.Fprintf(out, "  %v\n", d)
		}
	}
}

func displayHeaders(out io.Writer, headers []vectorgram.ChannelHeader) {
	fmt.Fprintf(out, "📋 Channel Headers:\n")
	for _, h := range headers {
		fmt.Fprintf(out, "%s at 0x%x (%s layout)\n", h.Name, h.Offset, h.Layout)
		fmt.Fprintf(out, "  Block length:  %d bytes\n", h.BlockLength)
		fmt.Fprintf(out, "  Samples:       %d total, %d used, start %d\n", h.TotalSamples, h.UsedSamples, h.StartOffset)
		fmt.Fprintf(out, "  Timebase:      code 0x%02x = %d ns/div\n", h.TimebaseCode, h.TimebaseNS)
		fmt.Fprintf(out, "  Sensitivity:   code 0x%02x = %d mV/div, probe x%d\n", h.SensitivityCode, h.SensitivityMV, h.ProbeMultiplier)
		fmt.Fprintf(out, "  Vertical pos:  %d\n", h.VerticalPosition)
		if h.Layout == vectorgram.LayoutExtended {
			fmt.Fprintf(out, "  Interval:      %g s\n", h.SampleInterval)
			fmt.Fprintf(out, "  Frequency:     %g Hz (period %g s)\n", h.Frequency, h.Period)
		}
	}
	fmt.Fprintln(out)
}

func displayStats(out io.Writer, stats []analysis.ChannelStats) {
	fmt.Fprintf(out, "📈 Statistics:\n")
	fmt.Fprintf(out, "%-8s %8s %10s %10s %10s %10s %10s %12s\n",
		"Channel", "Count", "Min mV", "Max mV", "Vpp mV", "Mean mV", "RMS mV", "Dominant Hz")
	for _, s := range stats {
		fmt.Fprintf(out, "%-8s %8d %10.1f %10.1f %10.1f %10.2f %10.2f %12.1f\n",
			s.Name, s.Count, s.MinMV, s.MaxMV, s.PeakToPeak, s.MeanMV, s.RMSMV, s.DominantHz)
	}
	fmt.Fprintln(out)
}

// displayHex prints up to limit leading bytes in 16-byte rows
func displayHex(out io.Writer, buf []byte, limit int) {
	if len(buf) < limit {
		limit = len(buf)
	}
	fmt.Fprintf(out, "🔍 Hex Dump (first %d bytes):\n", limit)
	fmt.Fprintf(out, "%-8s %-48s %s\n", "Address", "00 01 02 03 04 05 06 07 08 09 0A 0B 0C 0D 0E 0F", "ASCII")

	for offset := 0; offset < limit; offset += 16 {
		var hexPart, asciiPart strings.Builder
		for i := offset; i < offset+16; i++ {
			if i >= limit {
				hexPart.WriteString("   ")
				continue
			}
			b := buf[i]
			fmt.Fprintf(&hexPart, "%02x ", b)
			if b >= 32 && b <= 126 {
				asciiPart.WriteByte(b)
			} else {
				asciiPart.WriteByte('.')
			}
		}
		fmt.Fprintf(out, "%08x %-48s %s\n", offset, hexPart.String(), asciiPart.String())
	}
	fmt.Fprintln(out)
}

func newReport(filename string, buf []byte, c *vectorgram.Capture) report {
	r := report{
		File:    filepath.Base(filename),
		Bytes:   len(buf),
		Format:  c.Format.String(),
		Headers: c.Headers,
	}
	if showStats {
		r.Stats = analysis.Summarize(c)
	}
	if c.Table != nil {
		r.Channels = c.Table.Channels
		r.Rows = make([][]*float64, len(c.Table.Rows))
		for j, row := range c.Table.Rows {
			cells := make([]*float64, len(row))
			for i, reading := range row {
				if reading.Valid {
					mv := reading.MV
					cells[i] = &mv
				}
			}
			r.Rows[j] = cells
		}
	}
	for _, d := range c.Diagnostics {
		r.Diagnostics = append(r.Diagnostics, d.Error())
	}
	return r
}

func displayStructured(out io.Writer, filename string, buf []byte, c *vectorgram.Capture) error {
	r := newReport(filename, buf, c)
	if outputFormat == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	return enc.Close()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
