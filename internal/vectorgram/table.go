package vectorgram

import (
	"encoding/binary"
	"fmt"
)

// ADCScale converts a raw sample times millivolts per division into millivolts. It is
// the device's fixed ADC-to-division ratio and is the same on every model.
const ADCScale = 0.04

// Reading is one cell of a Table.
type Reading struct {
	MV    float64
	Valid bool
}

// Missing marks a timeslot for which a channel has no sample.
var Missing = Reading{}

// Table is the aligned, unit-converted sample table of one capture.
type Table struct {
	Channels []string
	Rows     [][]Reading
}

// Column returns the readings of channel i.
func (t *Table) Column(i int) []Reading {
	col := make([]Reading, len(t.Rows))
	for j, row := range t.Rows {
		col[j] = row[i]
	}
	return col
}

// channelSamples gives bounded access to one channel's raw sample block.
type channelSamples struct {
	block []byte
	h     ChannelHeader
}

func newChannelSamples(buf []byte, h ChannelHeader) channelSamples {
	start, end := h.sampleSpan(len(buf))
	return channelSamples{block: buf[start:end], h: h}
}

func (c channelSamples) count() int { return len(c.block) / 2 }

// index maps row j onto a position inside the capture's ring buffer. A non-zero start
// offset rotates the read position; when the total and used counts agree the device's
// own indexing is one ahead, which is reproduced here.
func (c channelSamples) index(j int) int {
	used := int(c.h.UsedSamples)
	if c.h.StartOffset == 0 || used <= 0 {
		return j
	}
	off := int(c.h.StartOffset)
	if c.h.TotalSamples == c.h.UsedSamples {
		off++
	}
	idx := (off + j) % used
	if idx < 0 {
		idx += used
	}
	return idx
}

func (c channelSamples) reading(j int) Reading {
	if j >= int(c.h.UsedSamples) || c.h.ScaleMV == Unresolved {
		return Missing
	}
	idx := c.index(j)
	if idx < 0 || idx >= c.count() {
		return Missing
	}
	raw := int16(binary.LittleEndian.Uint16(c.block[2*idx:]))
	return Reading{MV: float64(raw) * float64(c.h.ScaleMV) * ADCScale, Valid: true}
}

// Tabulate aligns the sample blocks of headers into one table. The row count is the
// largest used sample count; shorter channels are padded with Missing.
func Tabulate(buf []byte, headers []ChannelHeader) (*Table, []error) {
	var diags []error
	t := &Table{Channels: make([]string, len(headers))}
	chans := make([]channelSamples, len(headers))

	rows := 0
	for i, h := range headers {
		if limit := int32(len(buf) / 2); h.UsedSamples > limit {
			diags = append(diags, fmt.Errorf("channel %s: used sample count %d clamped to %d: %w",
				h.Name, h.UsedSamples, limit, ErrHeaderOutOfBounds))
			h.UsedSamples = limit
		}
		t.Channels[i] = h.Name
		chans[i] = newChannelSamples(buf, h)
		if n := int(h.UsedSamples); n > rows {
			rows = n
		}
		if h.ScaleMV == Unresolved {
			diags = append(diags, fmt.Errorf("channel %s: scale unresolved, samples omitted: %w", h.Name, ErrUnresolvedCode))
		}
		if short := int(h.UsedSamples) - chans[i].count(); short > 0 {
			diags = append(diags, fmt.Errorf("channel %s: %d of %d used samples lie outside the block: %w",
				h.Name, short, h.UsedSamples, ErrHeaderOutOfBounds))
		}
	}

	t.Rows = make([][]Reading, rows)
	for j := range t.Rows {
		row := make([]Reading, len(chans))
		for i, c := range chans {
			row[i] = c.reading(j)
		}
		t.Rows[j] = row
	}
	return t, diags
}
