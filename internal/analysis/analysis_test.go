package analysis

import (
	"math"
	"testing"

	"owondump/internal/vectorgram"
)

func decode(t *testing.T, b *vectorgram.Builder) *vectorgram.Capture {
	t.Helper()
	c, err := vectorgram.Decode(b.Bytes(), vectorgram.Options{})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return c
}

func TestSummarizeBasicStats(t *testing.T) {
	c := decode(t, vectorgram.NewBuilder('X').
		Channel(vectorgram.ChannelSpec{Name: "CH1", Samples: []int16{100, -100, 50}, SensitivityCode: 0x01}).
		Channel(vectorgram.ChannelSpec{Name: "CH2", Samples: []int16{10}, SensitivityCode: 0x01}))

	stats := Summarize(c)
	if len(stats) != 2 {
		t.Fatalf("got %d entries, want 2", len(stats))
	}
	ch1 := stats[0]
	if ch1.Name != "CH1" || ch1.Count != 3 {
		t.Fatalf("CH1 = %+v", ch1)
	}
	const eps = 1e-9
	if math.Abs(ch1.MinMV+20) > eps || math.Abs(ch1.MaxMV-20) > eps || math.Abs(ch1.PeakToPeak-40) > eps {
		t.Errorf("CH1 extremes = %v..%v (p-p %v)", ch1.MinMV, ch1.MaxMV, ch1.PeakToPeak)
	}
	if math.Abs(ch1.MeanMV-10.0/3) > eps {
		t.Errorf("CH1 mean = %v", ch1.MeanMV)
	}
	if want := math.Sqrt((400 + 400 + 100) / 3.0); math.Abs(ch1.RMSMV-want) > eps {
		t.Errorf("CH1 rms = %v, want %v", ch1.RMSMV, want)
	}
	if ch1.DominantHz != 0 {
		t.Errorf("CH1 without interval reported %v Hz", ch1.DominantHz)
	}

	// Missing padding rows are not counted.
	if ch2 := stats[1]; ch2.Count != 1 || math.Abs(ch2.MeanMV-2) > eps || ch2.StdDevMV != 0 {
		t.Errorf("CH2 = %+v", ch2)
	}
}

func TestSummarizeDominantFrequency(t *testing.T) {
	samples := make([]int16, 500)
	for i := range samples {
		samples[i] = int16(1000 * math.Sin(2*math.Pi*float64(i)/100))
	}
	c := decode(t, vectorgram.NewBuilder('X').Channel(vectorgram.ChannelSpec{
		Name: "CH1", Samples: samples, SensitivityCode: 0x01, SampleInterval: 1e-5, Frequency: 1000,
	}))
	s := Summarize(c)[0]
	if math.Abs(s.DominantHz-1000) > 0.1 {
		t.Fatalf("dominant frequency = %v Hz, want 1000", s.DominantHz)
	}
	if s.ReportedHz != 1000 {
		t.Fatalf("reported frequency = %v", s.ReportedHz)
	}
}

func TestSummarizeBitmap(t *testing.T) {
	c, err := vectorgram.Decode([]byte("BM\x10"), vectorgram.Options{})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if s := Summarize(c); s != nil {
		t.Fatalf("Summarize(bitmap) = %v", s)
	}
}
