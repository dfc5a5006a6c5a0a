package vectorgram

import (
	"encoding/binary"
	"math"
)

const (
	// HeaderLength is the size of one channel header, name included.
	HeaderLength = 51
	// NameLength is the size of the channel name and of its repeat after the block.
	NameLength = 3
)

// Layout selects which of the two historical header layouts a capture uses.
type Layout int

const (
	// LayoutAuto defers to the variant's default layout.
	LayoutAuto Layout = iota
	// LayoutLegacy is the older header: unknown3/unknown4 words, no probe code,
	// timebase resolved through the 32-entry direct table.
	LayoutLegacy
	// LayoutExtended carries the start offset, vertical position, probe code and the
	// floating fields; timebase resolved by decade and step.
	LayoutExtended
)

func (l Layout) String() string {
	switch l {
	case LayoutLegacy:
		return "legacy"
	case LayoutExtended:
		return "extended"
	default:
		return "auto"
	}
}

// ParseLayout converts a configuration string to a Layout.
func ParseLayout(s string) (Layout, bool) {
	switch s {
	case "", "auto":
		return LayoutAuto, true
	case "legacy":
		return LayoutLegacy, true
	case "extended":
		return LayoutExtended, true
	default:
		return LayoutAuto, false
	}
}

// ChannelHeader is one decoded 51-byte channel header.
type ChannelHeader struct {
	Name   string `json:"name" yaml:"name"`
	Offset int    `json:"offset" yaml:"offset"`
	Layout Layout `json:"-" yaml:"-"`

	BlockLength      int32 `json:"block_length" yaml:"block_length"`
	TotalSamples     int32 `json:"total_samples" yaml:"total_samples"`
	UsedSamples      int32 `json:"used_samples" yaml:"used_samples"`
	StartOffset      int32 `json:"start_offset" yaml:"start_offset"`
	TimebaseCode     int32 `json:"timebase_code" yaml:"timebase_code"`
	VerticalPosition int32 `json:"vertical_position" yaml:"vertical_position"`
	SensitivityCode  int32 `json:"sensitivity_code" yaml:"sensitivity_code"`
	ProbeCode        int32 `json:"probe_code" yaml:"probe_code"`

	// Floating fields, extended layout only. SampleInterval is in seconds.
	SampleInterval float32 `json:"sample_interval" yaml:"sample_interval"`
	Frequency      float32 `json:"frequency" yaml:"frequency"`
	Period         float32 `json:"period" yaml:"period"`

	// Words whose purpose is not known. In the legacy layout they hold the raw
	// bytes of the positions the extended layout assigns meaning to.
	Unknown  [6]uint32 `json:"-" yaml:"-"`
	Reserved uint32    `json:"reserved" yaml:"reserved"`

	SensitivityMV      int     `json:"sensitivity_mv" yaml:"sensitivity_mv"`
	ProbeMultiplier    int     `json:"probe_multiplier" yaml:"probe_multiplier"`
	ScaleMV            int     `json:"scale_mv" yaml:"scale_mv"`
	TimebaseNS         int64   `json:"timebase_ns" yaml:"timebase_ns"`
	SamplesPerDivision float64 `json:"samples_per_division" yaml:"samples_per_division"`
}

// SampleIntervalNS is the inter-sample time in nanoseconds, 0 when not transmitted.
func (h ChannelHeader) SampleIntervalNS() float64 {
	return float64(h.SampleInterval) * 1e9
}

// next is the cursor of the following channel header.
func (h ChannelHeader) next() int {
	return h.Offset + int(h.BlockLength) + NameLength
}

// sampleSpan bounds the channel's sample bytes inside a capture of n bytes. The block
// starts after the header and ends at the next record when the stride lies past the
// sample start, otherwise after BlockLength bytes. It never extends beyond n.
func (h ChannelHeader) sampleSpan(n int) (start, end int) {
	start = min(h.Offset+HeaderLength, n)
	end = start + max(int(h.BlockLength), 0)
	if next := h.next(); next > start && next < end {
		end = next
	}
	return start, min(end, n)
}

// DecodeHeader decodes the channel header at cursor. It is a pure function of its
// arguments. Unresolved codes are reported through the returned diagnostics while the
// header carries the Unresolved sentinel; the error is non-nil only when the header
// does not fit in buf.
func DecodeHeader(buf []byte, cursor int, v Variant, layout Layout) (ChannelHeader, []error, error) {
	if cursor < 0 || len(buf)-cursor < HeaderLength {
		return ChannelHeader{}, nil, &BoundsError{Offset: cursor, Need: HeaderLength, Len: len(buf)}
	}
	if layout == LayoutAuto {
		layout = v.Layout
	}
	b := buf[cursor : cursor+HeaderLength]
	word := func(off int) uint32 { return binary.LittleEndian.Uint32(b[off : off+4]) }
	int32At := func(off int) int32 { return int32(word(off)) }

	h := ChannelHeader{
		Name:            string(b[0:NameLength]),
		Offset:          cursor,
		Layout:          layout,
		BlockLength:     int32At(3),
		TotalSamples:    int32At(7),
		UsedSamples:     int32At(11),
		TimebaseCode:    int32At(19),
		SensitivityCode: int32At(27),
		Reserved:        word(47),
	}

	switch layout {
	case LayoutLegacy:
		h.Unknown = [6]uint32{word(15), word(23), word(31), word(35), word(39), word(43)}
		h.ProbeMultiplier = 1
		if h.UsedSamples == 0 && h.BlockLength > 0 {
			// Early firmware leaves the count words empty.
			start, end := h.sampleSpan(len(buf))
			h.UsedSamples = int32((end - start) / 2)
			h.TotalSamples = h.UsedSamples
		}
	default:
		h.StartOffset = int32At(15)
		h.VerticalPosition = int32At(23)
		h.ProbeCode = int32At(31)
		h.SampleInterval = math.Float32frombits(word(35))
		h.Frequency = math.Float32frombits(word(39))
		h.Period = math.Float32frombits(word(43))
		h.ProbeMultiplier = ProbeMultiplier(h.ProbeCode)
	}

	var diags []error
	h.SensitivityMV = SensitivityMV(h.SensitivityCode)
	if h.SensitivityMV == Unresolved {
		diags = append(diags, &CodeError{Channel: h.Name, Field: "vertical sensitivity", Code: h.SensitivityCode})
	}
	if h.ProbeMultiplier == Unresolved {
		diags = append(diags, &CodeError{Channel: h.Name, Field: "probe multiplier", Code: h.ProbeCode})
	}
	h.ScaleMV = Unresolved
	if h.SensitivityMV != Unresolved && h.ProbeMultiplier != Unresolved {
		h.ScaleMV = h.SensitivityMV * h.ProbeMultiplier
	}
	h.TimebaseNS = TimebaseNS(h.TimebaseCode, layout, v)
	if h.TimebaseNS == Unresolved {
		diags = append(diags, &CodeError{Channel: h.Name, Field: "timebase", Code: h.TimebaseCode})
	}

	h.SamplesPerDivision = Unresolved
	if interval := h.SampleIntervalNS(); interval > 0 && h.TimebaseNS > 0 {
		h.SamplesPerDivision = float64(h.TimebaseNS) / interval
	}
	return h, diags, nil
}

// validName reports whether the name bytes look like a channel label such as "CH1".
func validName(name string) bool {
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c < '0' || (c > '9' && c < 'A') || (c > 'Z' && c < 'a') || c > 'z' {
			return false
		}
	}
	return len(name) == NameLength
}

// WalkHeaders decodes the channel headers that follow the file header. The walk ends
// at the end of the buffer, at a trailing repeat of the last channel name, or at the
// first record that cannot be decoded; the headers decoded up to that point are always
// returned. The error explains an early stop and diags collects per-header code
// diagnostics.
func WalkHeaders(buf []byte, v Variant, layout Layout) (headers []ChannelHeader, diags []error, err error) {
	cursor := FileHeaderLength
	for cursor < len(buf) {
		if n := len(headers); n > 0 && len(buf)-cursor == NameLength && string(buf[cursor:]) == headers[n-1].Name {
			// Name repeat closing the last block.
			break
		}
		h, hdiags, err := DecodeHeader(buf, cursor, v, layout)
		if err != nil {
			return headers, diags, err
		}
		if !validName(h.Name) {
			return headers, diags, &InvalidChannelError{Offset: cursor, Name: h.Name}
		}
		next := h.next()
		if next <= cursor {
			return headers, diags, &InvalidChannelError{Offset: cursor, Name: h.Name, BlockLength: h.BlockLength}
		}
		if next > len(buf) {
			return headers, diags, &BoundsError{Offset: cursor, Need: next - cursor, Len: len(buf)}
		}
		headers = append(headers, h)
		diags = append(diags, hdiags...)
		cursor = next
	}
	return headers, diags, nil
}
