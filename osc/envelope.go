package osc

import "encoding/binary"

// Envelope is a linear gain ramp between 0 and 1. Rising it mid-fall continues
// from the current gain instead of jumping.
type Envelope struct {
	Gain  float64
	delay int
	rise  bool
}

func NewEnvelope(delay int) *Envelope {
	if delay < 1 {
		delay = 1
	}
	return &Envelope{delay: delay}
}

func (e *Envelope) Rise() { e.rise = true }

func (e *Envelope) Fall() { e.rise = false }

func (e *Envelope) Rising() bool { return e.rise }

func (e *Envelope) Reset() {
	e.Gain = 0
	e.rise = false
}

// Silent reports whether a falling envelope has reached zero.
func (e *Envelope) Silent() bool {
	return !e.rise && e.Gain <= 0
}

// Next advances one sample and returns the gain to apply.
func (e *Envelope) Next() float64 {
	step := 1 / float64(e.delay)
	if e.rise {
		e.Gain += step
		if e.Gain > 1 {
			e.Gain = 1
		}
	} else {
		e.Gain -= step
		if e.Gain < 0 {
			e.Gain = 0
		}
	}
	return e.Gain
}

// SampleCursor walks a raw signed 16-bit little endian mono buffer.
type SampleCursor struct {
	data []byte
	pos  int
}

func NewSampleCursor(data []byte) *SampleCursor {
	return &SampleCursor{data: data}
}

// Next returns the next sample scaled to [-1, 1]; ok is false once the buffer is used up.
// A dangling odd byte is ignored.
func (c *SampleCursor) Next() (float64, bool) {
	if c.pos+2 > len(c.data) {
		return 0, false
	}
	v := int16(binary.LittleEndian.Uint16(c.data[c.pos:]))
	c.pos += 2
	return float64(v) / 32768, true
}

func (c *SampleCursor) Reset() { c.pos = 0 }

func (c *SampleCursor) Done() bool { return c.pos+2 > len(c.data) }
