package vectorgram

// Unresolved is returned by every lookup whose code falls outside its table.
const Unresolved = -1

// sensitivityMV is indexed by the vertical sensitivity code, 1 (5 mV/div) through
// 0x0A (5 V/div). Index 0 is not a valid code.
var sensitivityMV = [...]int{0, 5, 10, 20, 50, 100, 200, 500, 1000, 2000, 5000}

// SensitivityMV resolves a vertical sensitivity code to millivolts per division.
func SensitivityMV(code int32) int {
	if code < 1 || int(code) >= len(sensitivityMV) {
		return Unresolved
	}
	return sensitivityMV[code]
}

var probeMultiplier = [...]int{1, 10, 100, 1000}

// ProbeMultiplier resolves a probe attenuation code (x1, x10, x100, x1000).
func ProbeMultiplier(code int32) int {
	if code < 0 || int(code) >= len(probeMultiplier) {
		return Unresolved
	}
	return probeMultiplier[code]
}

// ScaleMV is the effective millivolts per division: sensitivity times probe.
func ScaleMV(sensitivityCode, probeCode int32) int {
	s, p := SensitivityMV(sensitivityCode), ProbeMultiplier(probeCode)
	if s == Unresolved || p == Unresolved {
		return Unresolved
	}
	return s * p
}

// legacyTimebaseNS is the direct code table used by older captures,
// 0x00 (5 ns/div) through 0x1f (100 s/div).
var legacyTimebaseNS = [...]int64{
	5, 10, 25, 50, 100, 250, 500,
	1_000, 2_500, 5_000, 10_000, 25_000, 50_000, 100_000, 250_000, 500_000,
	1_000_000, 2_500_000, 5_000_000, 10_000_000, 25_000_000, 50_000_000,
	100_000_000, 250_000_000, 500_000_000,
	1_000_000_000, 2_500_000_000, 5_000_000_000, 10_000_000_000,
	25_000_000_000, 50_000_000_000, 100_000_000_000,
}

// maxTimebaseCode is the highest code either timebase encoding accepts.
const maxTimebaseCode = 0x1f

// LegacyTimebaseNS resolves a timebase code through the 32-entry direct table.
func LegacyTimebaseNS(code int32) int64 {
	if code < 0 || int(code) >= len(legacyTimebaseNS) {
		return Unresolved
	}
	return legacyTimebaseNS[code]
}

// ProgressionTimebaseNS resolves a timebase code by splitting it into a decade and a
// step within the model's three-entry progression.
func ProgressionTimebaseNS(code int32, progression [3]int64) int64 {
	if code < 0 || code > maxTimebaseCode {
		return Unresolved
	}
	decade, step := code/3, code%3
	ns := progression[step]
	for i := int32(0); i < decade; i++ {
		ns *= 10
	}
	return ns
}

// TimebaseNS dispatches to the encoding implied by the header layout.
func TimebaseNS(code int32, layout Layout, v Variant) int64 {
	if layout == LayoutLegacy {
		return LegacyTimebaseNS(code)
	}
	return ProgressionTimebaseNS(code, v.Progression)
}
