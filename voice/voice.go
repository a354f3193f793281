package voice

import (
	"encoding/binary"
	"math"
	"sync"

	"github.com/pkg/errors"
	"github.com/whyrusleeping/pianojam/audio"
	"github.com/whyrusleeping/pianojam/feedback"
	"github.com/whyrusleeping/pianojam/notes"
	"github.com/whyrusleeping/pianojam/osc"
	"go.uber.org/zap"
)

type State int

const (
	Idle State = iota
	Sounding
	FadingOut
)

func (s State) String() string {
	switch s {
	case Sounding:
		return "sounding"
	case FadingOut:
		return "fading-out"
	default:
		return "idle"
	}
}

// Voice renders one key. Callers only flip request bits; the state machine itself
// runs on the voice goroutine.
type Voice struct {
	key  notes.Key
	freq float64
	reg  *Registry
	log  *zap.Logger

	mu     sync.Mutex
	cond   *sync.Cond
	want   bool
	hard   bool
	closed bool
	timbre osc.Timbre
	state  State
	stream audio.Stream

	done chan struct{}
}

func newVoice(reg *Registry, key notes.Key, freq float64) *Voice {
	v := &Voice{
		key:  key,
		freq: freq,
		reg:  reg,
		log:  reg.log.With(zap.String("note", string(key))),
		done: make(chan struct{}),
	}
	v.cond = sync.NewCond(&v.mu)
	go v.run()
	return v
}

func (v *Voice) Key() notes.Key { return v.key }

func (v *Voice) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

func (v *Voice) Timbre() osc.Timbre {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.timbre
}

// on requests sound. The stream is opened here so a dead device is reported to the
// caller; a voice that is already requested only takes the new timbre.
func (v *Voice) on(t osc.Timbre) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return ErrClosed
	}
	v.timbre = t
	if v.want {
		return nil
	}

	if v.stream == nil {
		s, err := v.reg.dev.Open(string(v.key))
		if err != nil {
			v.log.Warn("could not open audio stream", zap.Error(err))
			return errors.Wrapf(ErrDeviceUnavailable, "%s: %v", v.key, err)
		}
		v.stream = s
	}

	v.want = true
	v.cond.Broadcast()
	return nil
}

func (v *Voice) off() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.want {
		return
	}
	v.want = false
	v.cond.Broadcast()
}

// kill forces the voice to idle without a fade and waits until it has.
func (v *Voice) kill() {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.want = false
	if v.closed || (v.state == Idle && v.stream == nil) {
		return
	}

	v.hard = true
	v.cond.Broadcast()
	if v.stream != nil {
		// unblocks a pending Write
		v.stream.Close()
	}
	for v.hard && !v.closed {
		v.cond.Wait()
	}
}

func (v *Voice) close() {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		<-v.done
		return
	}
	v.closed = true
	v.want = false
	if v.stream != nil {
		v.stream.Close()
	}
	v.cond.Broadcast()
	v.mu.Unlock()
	<-v.done
}

// idleLocked returns the voice to idle and releases its stream.
func (v *Voice) idleLocked() {
	v.state = Idle
	if v.stream != nil {
		v.stream.Close()
		v.stream = nil
	}
	v.cond.Broadcast()
}

func (v *Voice) run() {
	defer close(v.done)

	chunk := v.reg.chunk
	pcm := make([]byte, chunk*audio.BytesPerSample)
	oscil := osc.NewOscillator(v.freq)
	env := osc.NewEnvelope(osc.FadeSamples)
	var cursor *osc.SampleCursor
	var sampled []byte
	lit := false

	unlight := func() {
		if lit {
			lit = false
			v.reg.notify(v.key, feedback.Off)
		}
	}

	for {
		v.mu.Lock()
		for v.state == Idle && !v.want && v.stream == nil && !v.hard && !v.closed {
			v.cond.Wait()
		}

		if v.closed || v.hard {
			// a hard stop also drops requests that raced with it
			v.want = false
			v.hard = false
			v.idleLocked()
			closed := v.closed
			v.mu.Unlock()
			unlight()
			if closed {
				return
			}
			continue
		}

		switch {
		case v.state == Idle && !v.want:
			// requested and released before we got to it
			v.idleLocked()
			v.mu.Unlock()
			continue
		case v.state == Idle:
			v.state = Sounding
			oscil.Reset()
			env.Reset()
			env.Rise()
			cursor = nil
			sampled = nil
			if data, ok := v.reg.sample(v.key); ok {
				sampled = data
			}
		case v.state == FadingOut && v.want:
			v.state = Sounding
			env.Rise()
		case v.state == Sounding && !v.want:
			v.state = FadingOut
			env.Fall()
		}

		timbre := v.timbre
		stream := v.stream
		v.mu.Unlock()

		if !lit {
			lit = true
			v.reg.notify(v.key, feedback.On)
		}

		if timbre == osc.Sampled && sampled != nil && cursor == nil {
			cursor = osc.NewSampleCursor(sampled)
		}
		useSample := timbre == osc.Sampled && cursor != nil

		vol := v.reg.vol.Get()
		n := 0
		exhausted := false
		for n < chunk {
			var s float64
			if useSample {
				val, ok := cursor.Next()
				if !ok {
					exhausted = true
					break
				}
				s = val
			} else {
				s = oscil.Next(timbre)
			}

			s *= env.Next() * vol
			s = math.Max(-1, math.Min(1, s))
			binary.LittleEndian.PutUint16(pcm[n*audio.BytesPerSample:], uint16(int16(s*math.MaxInt16)))
			n++
		}
		faded := env.Silent()

		var err error
		if n > 0 {
			_, err = stream.Write(pcm[:n*audio.BytesPerSample])
		}

		v.mu.Lock()
		switch {
		case v.hard || v.closed:
			// handled at the top of the loop
		case err != nil:
			v.log.Warn("audio write failed", zap.Error(err))
			v.want = false
			v.idleLocked()
		case exhausted:
			v.want = false
			v.idleLocked()
		case faded && !v.want:
			v.idleLocked()
		}
		idle := v.state == Idle
		v.mu.Unlock()

		if idle {
			unlight()
		}
	}
}
