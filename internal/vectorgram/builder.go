package vectorgram

import (
	"encoding/binary"
	"math"
)

// ChannelSpec describes one channel of a synthesized capture.
type ChannelSpec struct {
	Name    string
	Samples []int16

	// TotalSamples and UsedSamples default to len(Samples).
	TotalSamples     int32
	UsedSamples      int32
	StartOffset      int32
	TimebaseCode     int32
	VerticalPosition int32
	SensitivityCode  int32
	ProbeCode        int32
	SampleInterval   float32
	Frequency        float32
	Period           float32
}

// Builder assembles vectorgram captures in the layout the scope transmits. It backs
// the simulated device and the package tests.
type Builder struct {
	tag      byte
	channels []ChannelSpec
}

// NewBuilder starts a capture for the model byte tag ('V', 'W' or 'X').
func NewBuilder(tag byte) *Builder {
	return &Builder{tag: tag}
}

// Channel appends a channel record.
func (b *Builder) Channel(c ChannelSpec) *Builder {
	b.channels = append(b.channels, c)
	return b
}

// Bytes renders the capture. Each record's block length counts the header words and
// the samples, so the next record starts NameLength+BlockLength bytes further on.
func (b *Builder) Bytes() []byte {
	out := make([]byte, FileHeaderLength)
	copy(out, "SPB")
	out[3] = b.tag

	for _, c := range b.channels {
		n := int32(len(c.Samples))
		total, used := c.TotalSamples, c.UsedSamples
		if total == 0 {
			total = n
		}
		if used == 0 {
			used = n
		}

		rec := make([]byte, HeaderLength+2*len(c.Samples))
		copy(rec[0:NameLength], c.Name)
		put := func(off int, v uint32) { binary.LittleEndian.PutUint32(rec[off:], v) }
		put(3, uint32(HeaderLength-NameLength+2*len(c.Samples)))
		put(7, uint32(total))
		put(11, uint32(used))
		put(15, uint32(c.StartOffset))
		put(19, uint32(c.TimebaseCode))
		put(23, uint32(c.VerticalPosition))
		put(27, uint32(c.SensitivityCode))
		put(31, uint32(c.ProbeCode))
		put(35, math.Float32bits(c.SampleInterval))
		put(39, math.Float32bits(c.Frequency))
		put(43, math.Float32bits(c.Period))
		for i, s := range c.Samples {
			binary.LittleEndian.PutUint16(rec[HeaderLength+2*i:], uint16(s))
		}
		out = append(out, rec...)
	}
	return out
}
