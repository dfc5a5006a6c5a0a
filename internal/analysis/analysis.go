// Package analysis computes per-channel summaries of a decoded capture.
package analysis

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"owondump/internal/vectorgram"
)

// ChannelStats summarises the valid readings of one channel, in millivolts.
type ChannelStats struct {
	Name       string  `json:"name" yaml:"name"`
	Count      int     `json:"count" yaml:"count"`
	MinMV      float64 `json:"min_mv" yaml:"min_mv"`
	MaxMV      float64 `json:"max_mv" yaml:"max_mv"`
	PeakToPeak float64 `json:"peak_to_peak_mv" yaml:"peak_to_peak_mv"`
	MeanMV     float64 `json:"mean_mv" yaml:"mean_mv"`
	StdDevMV   float64 `json:"stddev_mv" yaml:"stddev_mv"`
	RMSMV      float64 `json:"rms_mv" yaml:"rms_mv"`
	// DominantHz is the strongest non-DC spectral component, 0 when the channel has no
	// sample interval or too few readings.
	DominantHz float64 `json:"dominant_hz" yaml:"dominant_hz"`
	// ReportedHz is the frequency the scope measured, 0 when not transmitted.
	ReportedHz float64 `json:"reported_hz" yaml:"reported_hz"`
}

// Summarize returns one entry per table column.
func Summarize(c *vectorgram.Capture) []ChannelStats {
	if c.Table == nil {
		return nil
	}
	out := make([]ChannelStats, len(c.Table.Channels))
	for i, name := range c.Table.Channels {
		var interval float64
		if i < len(c.Headers) {
			interval = float64(c.Headers[i].SampleInterval)
			out[i].ReportedHz = float64(c.Headers[i].Frequency)
		}
		out[i].Name = name
		fill(&out[i], values(c.Table.Column(i)), interval)
	}
	return out
}

func values(col []vectorgram.Reading) []float64 {
	x := make([]float64, 0, len(col))
	for _, r := range col {
		if r.Valid {
			x = append(x, r.MV)
		}
	}
	return x
}

func fill(s *ChannelStats, x []float64, interval float64) {
	s.Count = len(x)
	if len(x) == 0 {
		return
	}
	s.MinMV = floats.Min(x)
	s.MaxMV = floats.Max(x)
	s.PeakToPeak = s.MaxMV - s.MinMV
	if len(x) > 1 {
		s.MeanMV, s.StdDevMV = stat.MeanStdDev(x, nil)
	} else {
		s.MeanMV = x[0]
	}
	s.RMSMV = math.Sqrt(floats.Dot(x, x) / float64(len(x)))
	if interval > 0 && len(x) >= 4 {
		s.DominantHz = dominantFrequency(x, s.MeanMV) / interval
	}
}

// dominantFrequency returns the strongest non-DC bin in cycles per sample.
func dominantFrequency(x []float64, mean float64) float64 {
	centred := make([]float64, len(x))
	copy(centred, x)
	floats.AddConst(-mean, centred)
	fft := fourier.NewFFT(len(centred))
	coeff := fft.Coefficients(nil, centred)

	best, bestMag := 0, 0.0
	for k := 1; k < len(coeff); k++ {
		if m := cmplx.Abs(coeff[k]); m > bestMag {
			best, bestMag = k, m
		}
	}
	if best == 0 {
		return 0
	}
	return fft.Freq(best)
}
