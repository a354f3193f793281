package osc

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/gopxl/beep"
)

const (
	SampleRate = 44100

	twoPi = 2 * math.Pi
)

// Rate is SampleRate as a beep.SampleRate, for duration <-> sample conversions.
var Rate = beep.SampleRate(SampleRate)

// FadeSamples is the length of the on/off ramp.
var FadeSamples = Rate.N(5 * time.Millisecond)

type Timbre int

const (
	Sine Timbre = iota
	Square
	Triangle
	Sawtooth
	Sampled
)

var timbreNames = map[Timbre]string{
	Sine:     "sine",
	Square:   "square",
	Triangle: "triangle",
	Sawtooth: "sawtooth",
	Sampled:  "piano",
}

func (t Timbre) String() string {
	if s, ok := timbreNames[t]; ok {
		return s
	}
	return fmt.Sprintf("timbre(%d)", int(t))
}

func ParseTimbre(s string) (Timbre, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "sampled" {
		return Sampled, nil
	}
	for t, name := range timbreNames {
		if name == s {
			return t, nil
		}
	}
	return Sine, fmt.Errorf("unknown timbre %q", s)
}

func (t Timbre) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Timbre) UnmarshalText(b []byte) error {
	v, err := ParseTimbre(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Wrap folds a phase angle into [0, 2π). A non-finite phase maps to 0.
func Wrap(phase float64) float64 {
	if math.IsNaN(phase) || math.IsInf(phase, 0) {
		return 0
	}
	phase = math.Mod(phase, twoPi)
	if phase < 0 {
		phase += twoPi
	}
	if phase >= twoPi {
		phase = 0
	}
	return phase
}

func sineOsc(phase float64) float64 {
	return math.Sin(phase)
}

// sign(0) counts as positive so the wave never drops to zero
func squareOsc(phase float64) float64 {
	if math.Sin(phase) >= 0 {
		return 1
	}
	return -1
}

func triangleOsc(phase float64) float64 {
	return 2 / math.Pi * math.Asin(math.Sin(phase))
}

func sawOsc(phase float64) float64 {
	return 2*(phase/twoPi) - 1
}

// Wave returns the sample for phase (radians) in [-1, 1]. Sampled has no phase form
// and renders as a sine.
func Wave(phase float64, t Timbre) float64 {
	phase = Wrap(phase)

	var v float64
	switch t {
	case Square:
		v = squareOsc(phase)
	case Triangle:
		v = triangleOsc(phase)
	case Sawtooth:
		v = sawOsc(phase)
	default:
		v = sineOsc(phase)
	}
	return math.Max(-1, math.Min(1, v))
}

// Oscillator is a phase accumulator for one frequency.
type Oscillator struct {
	Phase float64
	step  float64
}

func NewOscillator(freq float64) *Oscillator {
	return &Oscillator{step: twoPi * freq / SampleRate}
}

func (o *Oscillator) Next(t Timbre) float64 {
	v := Wave(o.Phase, t)
	o.Phase += o.step
	if o.Phase >= twoPi {
		o.Phase -= twoPi
	}
	return v
}

func (o *Oscillator) Reset() {
	o.Phase = 0
}
