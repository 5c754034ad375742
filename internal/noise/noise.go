package noise

import (
	"math"
	"sync"

	"github.com/ojrac/opensimplex-go"
)

// Vec2i is an integer 2D offset applied to noise sample coordinates.
type Vec2i struct {
	X int `yaml:"x" json:"x"`
	Z int `yaml:"z" json:"z"`
}

// Settings shapes a single noise field.
type Settings struct {
	Zoom                   float64 `yaml:"zoom" json:"zoom"`
	Octaves                int     `yaml:"octaves" json:"octaves"`
	Offset                 Vec2i   `yaml:"offset" json:"offset"`
	WorldOffset            Vec2i   `yaml:"-" json:"-"`
	Persistence            float64 `yaml:"persistence" json:"persistence"`
	RedistributionModifier float64 `yaml:"redistributionModifier" json:"redistributionModifier"`
	Exponent               float64 `yaml:"exponent" json:"exponent"`
}

// WithWorldOffset returns a copy of s sampling at the given seed offset.
func (s Settings) WithWorldOffset(offset Vec2i) Settings {
	s.WorldOffset = offset
	return s
}

// Source produces coherent 2D noise in [0,1]. It is safe for concurrent use.
type Source struct {
	noise opensimplex.Noise
}

func NewSource(seed int64) *Source {
	return &Source{noise: opensimplex.NewNormalized(seed)}
}

func (s *Source) Eval(x, z float64) float64 {
	return s.noise.Eval2(x, z)
}

var (
	defaultOnce   sync.Once
	defaultSource *Source
)

// Default returns the shared source used when a caller does not supply one.
// Seeding varies the world through Settings.WorldOffset, not the source.
func Default() *Source {
	defaultOnce.Do(func() {
		defaultSource = NewSource(0)
	})
	return defaultSource
}

func zoom(x, z float64, s Settings) (float64, float64) {
	x *= s.Zoom
	z *= s.Zoom
	return x + s.Zoom, z + s.Zoom
}

// Single samples one octave at the zoomed and offset position.
func Single(src *Source, x, z float64, s Settings) float64 {
	x, z = zoom(x, z, s)
	return src.Eval(
		float64(s.Offset.X+s.WorldOffset.X)+x,
		float64(s.Offset.Z+s.WorldOffset.Z)+z,
	)
}

// OctavePerlin sums s.Octaves samples at doubling frequency, each weighted by
// an amplitude decaying with s.Persistence, normalised by the amplitude sum.
func OctavePerlin(src *Source, x, z float64, s Settings) float64 {
	x, z = zoom(x, z, s)

	var (
		total        float64
		frequency    = 1.0
		amplitude    = 1.0
		amplitudeSum float64
	)
	for i := 0; i < s.Octaves; i++ {
		total += src.Eval(
			(float64(s.Offset.X+s.WorldOffset.X)+x)*frequency,
			(float64(s.Offset.Z+s.WorldOffset.Z)+z)*frequency,
		) * amplitude
		amplitudeSum += amplitude
		amplitude *= s.Persistence
		frequency *= 2
	}
	if amplitudeSum == 0 {
		return 0
	}
	return total / amplitudeSum
}

func Redistribute(value float64, s Settings) float64 {
	return math.Pow(value*s.RedistributionModifier, s.Exponent)
}

func Remap(value, min, max float64) float64 {
	return min + value*(max-min)
}

// RemapToInt remaps value linearly and truncates toward zero.
func RemapToInt(value, min, max float64) int {
	return int(Remap(value, min, max))
}
