package vectorgram

import "fmt"

// FileHeaderLength is the size of the "SPB?" file header that precedes the first
// channel header of a vectorgram.
const FileHeaderLength = 10

// Kind is the broad payload class announced by the leading magic bytes.
type Kind int

const (
	KindUnknown Kind = iota
	KindBitmap
	KindVectorgram
)

func (k Kind) String() string {
	switch k {
	case KindBitmap:
		return "bitmap"
	case KindVectorgram:
		return "vectorgram"
	default:
		return "unknown"
	}
}

// Variant identifies the scope model that produced a vectorgram. It is selected once,
// from the fourth magic byte, and carries the timebase progression of that model.
type Variant struct {
	Tag         byte
	Model       string
	Progression [3]int64
	Layout      Layout
}

var (
	progression10_25_50 = [3]int64{5, 10, 25}
	progression10_20_50 = [3]int64{5, 10, 20}
)

var (
	PDS5022S       = Variant{Tag: 'V', Model: "PDS5022S", Progression: progression10_25_50, Layout: LayoutLegacy}
	PDS6060S       = Variant{Tag: 'W', Model: "PDS6060S", Progression: progression10_25_50, Layout: LayoutLegacy}
	PDS7102T       = Variant{Tag: 'X', Model: "PDS7102T", Progression: progression10_20_50, Layout: LayoutExtended}
	UnknownVariant = Variant{Model: "unknown", Progression: progression10_25_50, Layout: LayoutExtended}
)

// VariantFor maps the fourth magic byte onto a known model. Unrecognised tags still
// yield a usable variant so that decoding can carry on.
func VariantFor(tag byte) Variant {
	switch tag {
	case 'V':
		return PDS5022S
	case 'W':
		return PDS6060S
	case 'X':
		return PDS7102T
	default:
		v := UnknownVariant
		v.Tag = tag
		return v
	}
}

// Known reports whether the variant is one of the enumerated models.
func (v Variant) Known() bool {
	return v.Model != UnknownVariant.Model
}

func (v Variant) String() string {
	if v.Known() {
		return v.Model
	}
	return fmt.Sprintf("unknown(%q)", v.Tag)
}

// Format is the classification of a capture buffer.
type Format struct {
	Kind Kind
	// SizeHint is the opaque third byte of a bitmap payload.
	SizeHint byte
	Variant  Variant
	// Leading holds up to four leading bytes, kept for diagnosing unknown payloads.
	Leading []byte
}

func (f Format) String() string {
	switch f.Kind {
	case KindBitmap:
		return fmt.Sprintf("bitmap (size hint 0x%02x)", f.SizeHint)
	case KindVectorgram:
		return fmt.Sprintf("vectorgram %s", f.Variant)
	default:
		return fmt.Sprintf("unknown % x", f.Leading)
	}
}

// Classify inspects the magic bytes of buf.
func Classify(buf []byte) Format {
	n := len(buf)
	if n > 4 {
		n = 4
	}
	f := Format{Leading: append([]byte(nil), buf[:n]...)}

	switch {
	case len(buf) >= 2 && buf[0] == 'B' && buf[1] == 'M':
		f.Kind = KindBitmap
		if len(buf) > 2 {
			f.SizeHint = buf[2]
		}
	case len(buf) >= 3 && buf[0] == 'S' && buf[1] == 'P' && buf[2] == 'B':
		f.Kind = KindVectorgram
		var tag byte
		if len(buf) > 3 {
			tag = buf[3]
		}
		f.Variant = VariantFor(tag)
	default:
		f.Kind = KindUnknown
	}
	return f
}
