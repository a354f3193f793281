package voice

import (
	"math"
	"sync/atomic"
)

const DefaultVolume = 0.5

// Volume is the global gain shared by every voice. Last write wins.
type Volume struct {
	bits atomic.Uint64
}

func NewVolume(v float64) *Volume {
	vol := &Volume{}
	vol.Set(v)
	return vol
}

// Set clamps v to [0, 1], stores it and returns the stored value.
func (vol *Volume) Set(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		v = 0
	case v > 1:
		v = 1
	}
	vol.bits.Store(math.Float64bits(v))
	return v
}

func (vol *Volume) Get() float64 {
	return math.Float64frombits(vol.bits.Load())
}
