// Package record captures note events during a session and converts them into
// playable intervals.
package record

import (
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/whyrusleeping/pianojam/notes"
	"github.com/whyrusleeping/pianojam/osc"
)

var ErrNotRecording = errors.New("not recording")

type Kind int

const (
	On Kind = iota
	Off
)

func (k Kind) String() string {
	switch k {
	case On:
		return "NOTE_ON"
	case Off:
		return "NOTE_OFF"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

func ParseKind(s string) (Kind, error) {
	switch s {
	case "NOTE_ON":
		return On, nil
	case "NOTE_OFF":
		return Off, nil
	}
	return 0, errors.Errorf("unknown event kind %q", s)
}

// RawEvent is one press or release, Offset from the start of the recording.
type RawEvent struct {
	Kind   Kind
	Note   notes.Key
	Offset time.Duration
	Timbre osc.Timbre
}

type Interval struct {
	Note   notes.Key
	Start  time.Duration
	End    time.Duration
	Timbre osc.Timbre
}

func (iv Interval) Duration() time.Duration {
	return iv.End - iv.Start
}

type Recorder struct {
	now func() time.Time

	mu        sync.Mutex
	recording bool
	origin    time.Time
	events    []RawEvent
}

func NewRecorder() *Recorder {
	return &Recorder{now: time.Now}
}

// StartRecording discards previous events and starts the clock.
func (r *Recorder) StartRecording() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recording = true
	r.origin = r.now()
	r.events = nil
}

// Record appends an event stamped with the time since StartRecording, truncated to
// the millisecond.
func (r *Recorder) Record(kind Kind, k notes.Key, t osc.Timbre) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording {
		return ErrNotRecording
	}
	off := r.now().Sub(r.origin).Truncate(time.Millisecond)
	if off < 0 {
		off = 0
	}
	r.events = append(r.events, RawEvent{
		Kind:   kind,
		Note:   k,
		Offset: off,
		Timbre: t,
	})
	return nil
}

// StopRecording freezes the sequence and returns it. Calling it when not recording
// returns the last frozen sequence.
func (r *Recorder) StopRecording() []RawEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recording = false
	return append([]RawEvent(nil), r.events...)
}

func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

func (r *Recorder) Events() []RawEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]RawEvent(nil), r.events...)
}

// ToIntervals pairs each release with the latest unmatched press of the same key.
// Releases with no press, presses never released and empty intervals are dropped.
// Output is in release order.
func ToIntervals(events []RawEvent) []Interval {
	pending := make(map[notes.Key]RawEvent)
	var out []Interval

	for _, ev := range events {
		switch ev.Kind {
		case On:
			pending[ev.Note] = ev
		case Off:
			start, ok := pending[ev.Note]
			if !ok {
				continue
			}
			delete(pending, ev.Note)
			if ev.Offset <= start.Offset {
				continue
			}
			out = append(out, Interval{
				Note:   ev.Note,
				Start:  start.Offset,
				End:    ev.Offset,
				Timbre: start.Timbre,
			})
		}
	}
	return out
}
