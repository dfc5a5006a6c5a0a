package vectorgram

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		buf     []byte
		kind    Kind
		model   string
		known   bool
		hint    byte
		leading []byte
	}{
		{name: "bitmap", buf: []byte{'B', 'M', 0x36, 0x10, 0x0e}, kind: KindBitmap, hint: 0x36, leading: []byte("BM6\x10")},
		{name: "bare bitmap magic", buf: []byte("BM"), kind: KindBitmap, leading: []byte("BM")},
		{name: "PDS5022S", buf: []byte("SPBV\x00\x00"), kind: KindVectorgram, model: "PDS5022S", known: true, leading: []byte("SPBV")},
		{name: "PDS6060S", buf: []byte("SPBW"), kind: KindVectorgram, model: "PDS6060S", known: true, leading: []byte("SPBW")},
		{name: "PDS7102T", buf: []byte("SPBX"), kind: KindVectorgram, model: "PDS7102T", known: true, leading: []byte("SPBX")},
		{name: "unrecognised model byte", buf: []byte("SPBZ"), kind: KindVectorgram, model: "unknown", leading: []byte("SPBZ")},
		{name: "garbage", buf: []byte("XXXXXX"), kind: KindUnknown, leading: []byte("XXXX")},
		{name: "empty", buf: nil, kind: KindUnknown},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := Classify(tc.buf)
			if f.Kind != tc.kind {
				t.Fatalf("Kind = %v, want %v", f.Kind, tc.kind)
			}
			if f.SizeHint != tc.hint {
				t.Fatalf("SizeHint = 0x%02x, want 0x%02x", f.SizeHint, tc.hint)
			}
			if diff := cmp.Diff(tc.leading, f.Leading); diff != "" {
				t.Fatalf("Leading mismatch (-want +got):\n%s", diff)
			}
			if tc.kind != KindVectorgram {
				return
			}
			if f.Variant.Model != tc.model || f.Variant.Known() != tc.known {
				t.Fatalf("Variant = %v (known %v), want %s (known %v)", f.Variant, f.Variant.Known(), tc.model, tc.known)
			}
		})
	}
}

func TestVariantCarriesProgression(t *testing.T) {
	if PDS7102T.Progression != [3]int64{5, 10, 20} {
		t.Errorf("PDS7102T progression = %v", PDS7102T.Progression)
	}
	if PDS5022S.Progression != [3]int64{5, 10, 25} {
		t.Errorf("PDS5022S progression = %v", PDS5022S.Progression)
	}
	v := VariantFor('Q')
	if v.Known() || v.Tag != 'Q' || v.Progression != UnknownVariant.Progression {
		t.Errorf("VariantFor('Q') = %+v", v)
	}
}
