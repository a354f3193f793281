package osc

import "github.com/gopxl/beep"

// Tone is a beep.Streamer for one enveloped note. It starts rising on the first sample
// and, after Release, ends once the envelope has faded out.
type Tone struct {
	osc    *Oscillator
	env    *Envelope
	timbre Timbre
	cursor *SampleCursor
	amp    float64
}

// NewTone builds a tone at freq. A non-nil sample buffer is played for the Sampled
// timbre; without one Sampled sounds as a sine.
func NewTone(freq float64, t Timbre, amp float64, sample []byte) *Tone {
	tn := &Tone{
		osc:    NewOscillator(freq),
		env:    NewEnvelope(FadeSamples),
		timbre: t,
		amp:    amp,
	}
	if t == Sampled && sample != nil {
		tn.cursor = NewSampleCursor(sample)
	}
	tn.env.Rise()
	return tn
}

func (t *Tone) Release() {
	t.env.Fall()
}

func (t *Tone) Stream(samples [][2]float64) (int, bool) {
	for i := range samples {
		if t.env.Silent() {
			return i, i > 0
		}

		var v float64
		if t.cursor != nil {
			s, ok := t.cursor.Next()
			if !ok {
				return i, i > 0
			}
			v = s
		} else {
			v = t.osc.Next(t.timbre)
		}

		v *= t.env.Next() * t.amp
		samples[i][0] = v
		samples[i][1] = v
	}
	return len(samples), true
}

func (t *Tone) Err() error {
	return nil
}

var _ beep.Streamer = (*Tone)(nil)
