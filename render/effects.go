package render

import (
	"math"
	"time"

	"github.com/gopxl/beep"
	"github.com/whyrusleeping/pianojam/osc"
)

// Effect rewrites a block of samples in place.
type Effect interface {
	ProcessSample(samples [][2]float64)
}

// Apply runs src through each effect in order.
func Apply(src beep.Streamer, effects ...Effect) beep.Streamer {
	if len(effects) == 0 {
		return src
	}
	return beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		n, ok := src.Stream(samples)
		for _, e := range effects {
			e.ProcessSample(samples[:n])
		}
		return n, ok
	})
}

// Echo mixes in a decaying copy of the signal delayed by a fixed time.
type Echo struct {
	buf   [][2]float64
	decay float64
	pos   int
}

func NewEcho(delay time.Duration, decay float64) *Echo {
	n := osc.Rate.N(delay)
	if n < 1 {
		n = 1
	}
	return &Echo{
		buf:   make([][2]float64, n),
		decay: decay,
	}
}

func (e *Echo) ProcessSample(samples [][2]float64) {
	for i := range samples {
		ix := e.pos % len(e.buf)
		for ch := range samples[i] {
			samples[i][ch] += e.buf[ix][ch]
			e.buf[ix][ch] = samples[i][ch] * e.decay
		}
		e.pos++
	}
}

// Compressor pulls peaks above threshold down by ratio, following an envelope
// with separate attack and release rates (0..1 per sample).
type Compressor struct {
	threshold float64
	ratio     float64
	attack    float64
	release   float64
	env       float64
}

func NewCompressor(threshold, ratio, attack, release float64) *Compressor {
	return &Compressor{
		threshold: threshold,
		ratio:     ratio,
		attack:    attack,
		release:   release,
	}
}

func (c *Compressor) gain(v float64) float64 {
	mag := math.Abs(v)
	if mag > c.env {
		c.env += (mag - c.env) * c.attack
	} else {
		c.env += (mag - c.env) * c.release
	}
	if c.env <= c.threshold {
		return 1
	}
	return math.Pow(c.threshold/c.env, c.ratio)
}

func (c *Compressor) ProcessSample(samples [][2]float64) {
	for i := range samples {
		g := c.gain(samples[i][0])
		samples[i][0] *= g
		samples[i][1] *= g
	}
}

// LowPass is a biquad low-pass filter over the left channel, copied to both.
type LowPass struct {
	b0, b1, b2 float64
	a1, a2     float64
	x1, x2     float64
	y1, y2     float64
}

// NewLowPass cuts above cutoff hz. q of 0.707 gives a flat passband.
func NewLowPass(cutoff, q float64) *LowPass {
	w0 := 2 * math.Pi * cutoff / osc.SampleRate
	alpha := math.Sin(w0) / (2 * q)
	cos := math.Cos(w0)

	a0 := 1 + alpha
	return &LowPass{
		b0: (1 - cos) / 2 / a0,
		b1: (1 - cos) / a0,
		b2: (1 - cos) / 2 / a0,
		a1: -2 * cos / a0,
		a2: (1 - alpha) / a0,
	}
}

func (f *LowPass) ProcessSample(samples [][2]float64) {
	for i := range samples {
		x0 := samples[i][0]
		y0 := f.b0*x0 + f.b1*f.x1 + f.b2*f.x2 - f.a1*f.y1 - f.a2*f.y2

		f.x2, f.x1 = f.x1, x0
		f.y2, f.y1 = f.y1, y0

		samples[i][0] = y0
		samples[i][1] = y0
	}
}
