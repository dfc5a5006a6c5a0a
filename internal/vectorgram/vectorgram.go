// Package vectorgram decodes the trace memory dumps of Owon PDS oscilloscopes.
//
// A dump is either a bitmap screenshot ("BM") or a vectorgram ("SPB" plus a model
// byte). A vectorgram is a 10-byte file header followed by one record per channel:
// a 51-byte header, the channel's little-endian 16-bit samples, and the name of the
// next record. Decode classifies the payload, walks the channel headers and
// tabulates the samples in millivolts.
package vectorgram

// Options tune decoding of a capture.
type Options struct {
	// Layout overrides the header layout implied by the variant.
	Layout Layout
}

// Capture is the decoded form of one dump.
type Capture struct {
	Format  Format
	Headers []ChannelHeader
	Table   *Table
	// Diagnostics collects recoverable problems: unresolved codes, an early end of
	// the header walk, samples missing from a block.
	Diagnostics []error
}

// Decode runs the whole decode pipeline on buf. Only an unrecognised payload is
// reported as an error; every other problem leaves a partial capture plus
// diagnostics. Bitmaps are classified but not decoded.
func Decode(buf []byte, opts Options) (*Capture, error) {
	c := &Capture{Format: Classify(buf)}
	switch c.Format.Kind {
	case KindBitmap:
		return c, nil
	case KindVectorgram:
	default:
		return c, &FormatError{Leading: c.Format.Leading}
	}

	headers, diags, err := WalkHeaders(buf, c.Format.Variant, opts.Layout)
	c.Headers = headers
	c.Diagnostics = append(c.Diagnostics, diags...)
	if err != nil {
		c.Diagnostics = append(c.Diagnostics, err)
	}

	table, tdiags := Tabulate(buf, headers)
	c.Table = table
	c.Diagnostics = append(c.Diagnostics, tdiags...)
	return c, nil
}

// Timebase returns the timebase and sample interval of the first channel, the values
// recorded in the text table's header line.
func (c *Capture) Timebase() (timebaseNS int64, intervalNS float64) {
	if len(c.Headers) == 0 {
		return Unresolved, 0
	}
	h := c.Headers[0]
	return h.TimebaseNS, h.SampleIntervalNS()
}
