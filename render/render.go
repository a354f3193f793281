// Package render produces notes offline, for WAV export and for checking pitch.
package render

import (
	"io"
	"math"
	"math/cmplx"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/wav"
	"github.com/maddyblue/go-dsp/fft"
	"github.com/pkg/errors"
	"github.com/whyrusleeping/pianojam/audio"
	"github.com/whyrusleeping/pianojam/osc"
	"github.com/whyrusleeping/pianojam/record"
)

// Tone holds a note for hold and then fades it out.
func Tone(freq float64, t osc.Timbre, amp float64, hold time.Duration) beep.Streamer {
	tn := osc.NewTone(freq, t, amp, nil)
	left := osc.Rate.N(hold)
	if left <= 0 {
		tn.Release()
	}

	return beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		if left > 0 && left < len(samples) {
			samples = samples[:left]
		}
		n, ok := tn.Stream(samples)
		if left > 0 {
			left -= n
			if left <= 0 {
				tn.Release()
			}
		}
		return n, ok
	})
}

// Session mixes intervals into one streamer. freq must know every note.
func Session(ivs []record.Interval, freq func(iv record.Interval) (float64, bool), amp float64) beep.Streamer {
	var parts []beep.Streamer
	for _, iv := range ivs {
		f, ok := freq(iv)
		if !ok {
			continue
		}
		lead := beep.Silence(osc.Rate.N(iv.Start))
		parts = append(parts, beep.Seq(lead, Tone(f, iv.Timbre, amp, iv.Duration())))
	}
	if len(parts) == 0 {
		return beep.Silence(0)
	}
	return &clip{s: beep.Mix(parts...)}
}

// clip keeps a mix inside [-1, 1].
type clip struct {
	s beep.Streamer
}

func (c *clip) Stream(samples [][2]float64) (int, bool) {
	n, ok := c.s.Stream(samples)
	for i := range samples[:n] {
		for ch := range samples[i] {
			samples[i][ch] = math.Max(-1, math.Min(1, samples[i][ch]))
		}
	}
	return n, ok
}

func (c *clip) Err() error { return c.s.Err() }

// WriteWAV encodes s as 16-bit mono at the engine sample rate.
func WriteWAV(w io.WriteSeeker, s beep.Streamer) error {
	if err := wav.Encode(w, s, audio.Format); err != nil {
		return errors.Wrap(err, "encoding wav")
	}
	return nil
}

// Collect drains s into mono samples, stopping after max samples.
func Collect(s beep.Streamer, max int) []float64 {
	var out []float64
	buf := make([][2]float64, 512)
	for len(out) < max {
		n, ok := s.Stream(buf)
		for i := range buf[:n] {
			out = append(out, buf[i][0])
		}
		if !ok {
			break
		}
	}
	if len(out) > max {
		out = out[:max]
	}
	return out
}

// PeakFrequency returns the strongest frequency in samples.
func PeakFrequency(samples []float64, sampleRate int) float64 {
	if len(samples) < 2 {
		return 0
	}
	bins := fft.FFTReal(samples)

	best, bestMag := 0, 0.0
	for i, c := range bins[1 : len(bins)/2+1] {
		if m := cmplx.Abs(c); m > bestMag {
			best, bestMag = i+1, m
		}
	}
	return float64(best) * float64(sampleRate) / float64(len(samples))
}
