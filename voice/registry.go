// Package voice turns note requests into sound, one goroutine and one audio stream per
// sounding key.
package voice

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/whyrusleeping/pianojam/audio"
	"github.com/whyrusleeping/pianojam/feedback"
	"github.com/whyrusleeping/pianojam/notes"
	"github.com/whyrusleeping/pianojam/osc"
	"go.uber.org/zap"
)

const DefaultChunk = 256

var (
	ErrDeviceUnavailable = errors.New("audio device unavailable")
	ErrClosed            = errors.New("registry closed")
)

type Option func(*Registry)

func WithLogger(log *zap.Logger) Option {
	return func(r *Registry) { r.log = log }
}

// WithSink delivers note on/off changes. Anything other than a *feedback.Dispatcher is
// wrapped in one so voices never wait on it.
func WithSink(s feedback.Sink) Option {
	return func(r *Registry) { r.sink = s }
}

func WithSamples(s SampleSource) Option {
	return func(r *Registry) { r.samples = s }
}

func WithVolume(v *Volume) Option {
	return func(r *Registry) { r.vol = v }
}

// WithChunkSize sets the samples rendered per write.
func WithChunkSize(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.chunk = n
		}
	}
}

// Registry owns every voice. A key gets its voice on first NoteOn and keeps it until
// Close.
type Registry struct {
	table   notes.Table
	dev     audio.Device
	log     *zap.Logger
	sink    feedback.Sink
	owned   *feedback.Dispatcher
	samples SampleSource
	vol     *Volume
	chunk   int

	mu     sync.Mutex
	voices map[notes.Key]*Voice
	closed bool
}

func New(table notes.Table, dev audio.Device, opts ...Option) *Registry {
	r := &Registry{
		table:  table,
		dev:    dev,
		log:    zap.NewNop(),
		chunk:  DefaultChunk,
		voices: make(map[notes.Key]*Voice),
	}
	for _, o := range opts {
		o(r)
	}
	if r.vol == nil {
		r.vol = NewVolume(DefaultVolume)
	}
	if r.sink != nil {
		if d, ok := r.sink.(*feedback.Dispatcher); ok {
			r.sink = d
		} else {
			r.owned = feedback.NewDispatcher(r.sink, r.log)
			r.sink = r.owned
		}
	}
	return r
}

func (r *Registry) notify(k notes.Key, s feedback.State) {
	if r.sink != nil {
		r.sink.NoteVisualChange(k, s)
	}
}

func (r *Registry) sample(k notes.Key) ([]byte, bool) {
	if r.samples == nil {
		return nil, false
	}
	return r.samples.Sample(k)
}

func (r *Registry) voice(k notes.Key, create bool) (*Voice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrClosed
	}
	v, ok := r.voices[k]
	if ok || !create {
		return v, nil
	}

	freq, ok := r.table.Frequency(k)
	if !ok {
		return nil, nil
	}
	v = newVoice(r, k, freq)
	r.voices[k] = v
	return v, nil
}

// NoteOn starts k sounding with timbre t. Calling it again while k sounds only changes
// the timbre. Unknown keys are ignored. A failure to open the audio device comes
// back as ErrDeviceUnavailable and the key stays silent.
func (r *Registry) NoteOn(k notes.Key, t osc.Timbre) error {
	v, err := r.voice(k, true)
	if err != nil || v == nil {
		return err
	}
	return v.on(t)
}

// NoteOff fades k out. It is a no-op for idle or unknown keys.
func (r *Registry) NoteOff(k notes.Key) {
	v, _ := r.voice(k, false)
	if v != nil {
		v.off()
	}
}

// Kill stops k without a fade and returns once it is idle.
func (r *Registry) Kill(k notes.Key) {
	v, _ := r.voice(k, false)
	if v != nil {
		v.kill()
	}
}

func (r *Registry) snapshot() []*Voice {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Voice, 0, len(r.voices))
	for _, v := range r.voices {
		out = append(out, v)
	}
	return out
}

// StopAll hard stops every voice and waits for all of them.
func (r *Registry) StopAll() {
	var wg sync.WaitGroup
	for _, v := range r.snapshot() {
		wg.Add(1)
		go func(v *Voice) {
			defer wg.Done()
			v.kill()
		}(v)
	}
	wg.Wait()
}

func (r *Registry) SetVolume(v float64) float64 {
	return r.vol.Set(v)
}

func (r *Registry) Volume() float64 {
	return r.vol.Get()
}

func (r *Registry) State(k notes.Key) State {
	v, _ := r.voice(k, false)
	if v == nil {
		return Idle
	}
	return v.State()
}

// Active lists the keys that are not idle, in pitch order.
func (r *Registry) Active() []notes.Key {
	var out []notes.Key
	for _, v := range r.snapshot() {
		if v.State() != Idle {
			out = append(out, v.key)
		}
	}
	notes.Sort(out)
	return out
}

// Close stops every voice goroutine. The device is left open.
func (r *Registry) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	voices := make([]*Voice, 0, len(r.voices))
	for _, v := range r.voices {
		voices = append(voices, v)
	}
	r.mu.Unlock()

	sort.Slice(voices, func(i, j int) bool { return voices[i].key < voices[j].key })
	for _, v := range voices {
		v.close()
	}
	r.owned.Close()
	return nil
}
