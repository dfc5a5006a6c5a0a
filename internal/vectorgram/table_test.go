package vectorgram

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

var approx = cmpopts.EquateApprox(0, 1e-9)

func mv(vals ...float64) []Reading {
	out := make([]Reading, len(vals))
	for i, v := range vals {
		out[i] = Reading{MV: v, Valid: true}
	}
	return out
}

// handBuiltCapture lays out a PDS5022S dump byte by byte: one CH1 record with a block
// length of 20, ten alternating samples, and the trailing name.
func handBuiltCapture() []byte {
	buf := []byte("SPBV\x00\x00\x00\x00\x00\x00")
	hdr := make([]byte, HeaderLength)
	copy(hdr, "CH1")
	binary.LittleEndian.PutUint32(hdr[3:], 20)
	binary.LittleEndian.PutUint32(hdr[7:], 10)
	binary.LittleEndian.PutUint32(hdr[11:], 10)
	binary.LittleEndian.PutUint32(hdr[27:], 1)
	buf = append(buf, hdr...)
	for i := 0; i < 10; i++ {
		s := int16(100)
		if i%2 == 1 {
			s = -100
		}
		buf = binary.LittleEndian.AppendUint16(buf, uint16(s))
	}
	return append(buf, "CH1"...)
}

func TestDecodeHandBuiltCapture(t *testing.T) {
	buf := handBuiltCapture()
	if len(buf) != 84 {
		t.Fatalf("fixture is %d bytes, want 84", len(buf))
	}
	c, err := Decode(buf, Options{})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if c.Format.Kind != KindVectorgram || c.Format.Variant.Model != "PDS5022S" {
		t.Fatalf("Format = %v", c.Format)
	}
	if diff := cmp.Diff([]string{"CH1"}, c.Table.Channels); diff != "" {
		t.Fatalf("channels (-want +got):\n%s", diff)
	}
	want := mv(20, -20, 20, -20, 20, -20, 20, -20, 20, -20)
	if diff := cmp.Diff(want, c.Table.Column(0), approx); diff != "" {
		t.Fatalf("column (-want +got):\n%s", diff)
	}
	if tb, _ := c.Timebase(); tb != 5 {
		t.Errorf("timebase = %d ns, want 5", tb)
	}

	// The stride lands inside the first record; the walk stops there.
	var ice *InvalidChannelError
	found := false
	for _, d := range c.Diagnostics {
		if errors.As(d, &ice) {
			found = true
			if ice.Offset != 33 {
				t.Errorf("walk stopped at %d, want 33", ice.Offset)
			}
		}
	}
	if !found {
		t.Fatalf("diagnostics %v lack the walk stop", c.Diagnostics)
	}
}

func TestTabulatePadsShortChannels(t *testing.T) {
	buf := NewBuilder('X').
		Channel(ChannelSpec{Name: "CH1", Samples: []int16{1, 2, 3, 4}, SensitivityCode: 0x05}).
		Channel(ChannelSpec{Name: "CH2", Samples: []int16{-50, 50}, SensitivityCode: 0x01, ProbeCode: 1}).
		Bytes()
	c, err := Decode(buf, Options{})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(c.Diagnostics) != 0 {
		t.Fatalf("unexpected diagnostics: %v", c.Diagnostics)
	}
	want := [][]Reading{
		{{MV: 4, Valid: true}, {MV: -100, Valid: true}},
		{{MV: 8, Valid: true}, {MV: 100, Valid: true}},
		{{MV: 12, Valid: true}, Missing},
		{{MV: 16, Valid: true}, Missing},
	}
	if diff := cmp.Diff(want, c.Table.Rows, approx); diff != "" {
		t.Fatalf("rows (-want +got):\n%s", diff)
	}
}

func TestTabulateWrap(t *testing.T) {
	tests := []struct {
		name string
		spec ChannelSpec
		want []Reading
	}{
		{
			name: "start at last sample, full buffer",
			spec: ChannelSpec{Name: "CH1", Samples: []int16{10, 20, 30, 40}, StartOffset: 3},
			want: mv(2, 4, 6, 8),
		},
		{
			name: "start offset with partial buffer",
			spec: ChannelSpec{Name: "CH1", Samples: []int16{10, 20, 30, 40}, StartOffset: 1, TotalSamples: 8},
			want: mv(4, 6, 8, 2),
		},
		{
			name: "no start offset",
			spec: ChannelSpec{Name: "CH1", Samples: []int16{10, 20, 30, 40}},
			want: mv(2, 4, 6, 8),
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.spec.SensitivityCode = 0x01
			buf := NewBuilder('X').Channel(tc.spec).Bytes()
			c, err := Decode(buf, Options{})
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if diff := cmp.Diff(tc.want, c.Table.Column(0), approx); diff != "" {
				t.Fatalf("column (-want +got):\n%s", diff)
			}
		})
	}
}

func TestTabulateUnresolvedScale(t *testing.T) {
	buf := NewBuilder('X').Channel(ChannelSpec{Name: "CH1", Samples: []int16{1, 2}, SensitivityCode: 0x0F}).Bytes()
	c, err := Decode(buf, Options{})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if diff := cmp.Diff([]Reading{Missing, Missing}, c.Table.Column(0)); diff != "" {
		t.Fatalf("column (-want +got):\n%s", diff)
	}
	n := 0
	for _, d := range c.Diagnostics {
		if errors.Is(d, ErrUnresolvedCode) {
			n++
		}
	}
	if n != 2 {
		t.Fatalf("got %d unresolved diagnostics, want the code and the omitted samples: %v", n, c.Diagnostics)
	}
}

func TestTabulateClampsUsedCount(t *testing.T) {
	buf := NewBuilder('X').Channel(ChannelSpec{
		Name: "CH1", Samples: []int16{5, 5}, SensitivityCode: 0x01, UsedSamples: 100_000, TotalSamples: 100_000,
	}).Bytes()
	c, err := Decode(buf, Options{})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got, want := len(c.Table.Rows), len(buf)/2; got != want {
		t.Fatalf("rows = %d, want %d", got, want)
	}
	col := c.Table.Column(0)
	if !col[0].Valid || !col[1].Valid || col[2].Valid {
		t.Fatalf("only the two stored samples should be valid: %v", col[:3])
	}
	bounded := 0
	for _, d := range c.Diagnostics {
		if errors.Is(d, ErrHeaderOutOfBounds) {
			bounded++
		}
	}
	if bounded != 2 {
		t.Fatalf("got %d bounds diagnostics, want the clamp and the short block: %v", bounded, c.Diagnostics)
	}
}

func TestTabulateStopsAtNextRecord(t *testing.T) {
	buf := NewBuilder('X').
		Channel(ChannelSpec{Name: "CH1", Samples: []int16{1, 2}, UsedSamples: 6, TotalSamples: 6, SensitivityCode: 0x01}).
		Channel(ChannelSpec{Name: "CH2", Samples: []int16{3}, SensitivityCode: 0x01}).
		Bytes()
	c, err := Decode(buf, Options{})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	want := append(mv(0.2, 0.4), Missing, Missing, Missing, Missing)
	if diff := cmp.Diff(want, c.Table.Column(0), approx); diff != "" {
		t.Fatalf("CH1 must not read into the CH2 record (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(append(mv(0.6), Missing, Missing, Missing, Missing, Missing), c.Table.Column(1), approx); diff != "" {
		t.Fatalf("CH2 (-want +got):\n%s", diff)
	}
	bounded := 0
	for _, d := range c.Diagnostics {
		if errors.Is(d, ErrHeaderOutOfBounds) {
			bounded++
		}
	}
	if bounded != 1 {
		t.Fatalf("got %d bounds diagnostics, want the short CH1 block: %v", bounded, c.Diagnostics)
	}
}

func TestTabulateLegacyEmptyCounts(t *testing.T) {
	buf := NewBuilder('V').
		Channel(ChannelSpec{Name: "CH1", Samples: []int16{1, 2}, SensitivityCode: 0x01}).
		Channel(ChannelSpec{Name: "CH2", Samples: []int16{3, 4}, SensitivityCode: 0x01}).
		Bytes()
	binary.LittleEndian.PutUint32(buf[FileHeaderLength+7:], 0)
	binary.LittleEndian.PutUint32(buf[FileHeaderLength+11:], 0)

	c, err := Decode(buf, Options{})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(c.Diagnostics) != 0 {
		t.Fatalf("unexpected diagnostics: %v", c.Diagnostics)
	}
	want := [][]Reading{
		{{MV: 0.2, Valid: true}, {MV: 0.6, Valid: true}},
		{{MV: 0.4, Valid: true}, {MV: 0.8, Valid: true}},
	}
	if diff := cmp.Diff(want, c.Table.Rows, approx); diff != "" {
		t.Fatalf("rows (-want +got):\n%s", diff)
	}
}

func TestDecodeUnrecognised(t *testing.T) {
	c, err := Decode([]byte("XXXX"), Options{})
	var fe *FormatError
	if !errors.As(err, &fe) || !errors.Is(err, ErrFormatUnrecognized) {
		t.Fatalf("err = %v, want FormatError", err)
	}
	if diff := cmp.Diff([]byte("XXXX"), fe.Leading); diff != "" {
		t.Fatalf("leading (-want +got):\n%s", diff)
	}
	if len(c.Headers) != 0 || c.Table != nil {
		t.Fatalf("unrecognised capture decoded %d channels", len(c.Headers))
	}
}

func TestDecodeBitmap(t *testing.T) {
	c, err := Decode([]byte("BM6\x10\x0e\x00"), Options{})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if c.Format.Kind != KindBitmap || c.Table != nil {
		t.Fatalf("bitmap capture = %+v", c)
	}
}

func TestDecodeLayoutOverride(t *testing.T) {
	buf := NewBuilder('V').Channel(ChannelSpec{
		Name: "CH1", Samples: []int16{1}, SensitivityCode: 0x01, ProbeCode: 2, TimebaseCode: 0x05,
	}).Bytes()

	auto, err := Decode(buf, Options{})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if h := auto.Headers[0]; h.ScaleMV != 5 || h.TimebaseNS != 250 {
		t.Fatalf("legacy decode: scale %d, timebase %d", h.ScaleMV, h.TimebaseNS)
	}

	ext, err := Decode(buf, Options{Layout: LayoutExtended})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if h := ext.Headers[0]; h.ScaleMV != 500 || h.Layout != LayoutExtended {
		t.Fatalf("extended decode: scale %d, layout %v", h.ScaleMV, h.Layout)
	}
}
