package noise

import "math"

const DefaultWarpAmplitude = 20

// Warp perturbs sample coordinates with two auxiliary noise channels.
type Warp struct {
	X          Settings `yaml:"x" json:"x"`
	Y          Settings `yaml:"y" json:"y"`
	AmplitudeX int      `yaml:"amplitudeX" json:"amplitudeX"`
	AmplitudeY int      `yaml:"amplitudeY" json:"amplitudeY"`
}

func (w Warp) amplitudes() (float64, float64) {
	ax, ay := w.AmplitudeX, w.AmplitudeY
	if ax == 0 {
		ax = DefaultWarpAmplitude
	}
	if ay == 0 {
		ay = DefaultWarpAmplitude
	}
	return float64(ax), float64(ay)
}

// Offset returns the positional offset for (x, z).
func (w Warp) Offset(src *Source, x, z int) (float64, float64) {
	ax, ay := w.amplitudes()
	dx := Single(src, float64(x), float64(z), w.X) * ax
	dz := Single(src, float64(x), float64(z), w.Y) * ay
	return dx, dz
}

// OffsetInt is Offset rounded to the nearest integer cell, halves to even.
func (w Warp) OffsetInt(src *Source, x, z int) (int, int) {
	dx, dz := w.Offset(src, x, z)
	return int(math.RoundToEven(dx)), int(math.RoundToEven(dz))
}

// Sample evaluates s at the warped position of (x, z).
func (w Warp) Sample(src *Source, x, z int, s Settings) float64 {
	dx, dz := w.Offset(src, x, z)
	return Single(src, float64(x)+dx, float64(z)+dz, s)
}
