package main

import (
	"sync"

	"github.com/whyrusleeping/pianojam/notes"
	"go.uber.org/zap"
)

const (
	statusNoteOff = 0x80
	statusNoteOn  = 0x90
	statusControl = 0xb0
)

type midiEvent struct {
	Status int64
	Data1  int64
	Data2  int64
}

// Pianist is what the controller drives; the keyboard in practice.
type Pianist interface {
	Press(root notes.Key) []notes.Key
	Release(root notes.Key) []notes.Key
}

type Setter func(float64)

type knobBind struct {
	mapf func(int64) float64
	sf   Setter
}

func (kb *knobBind) Update(val int64) {
	kb.sf(kb.mapf(val))
}

// MidiController turns note and knob messages from a hardware controller into
// keyboard presses and setter calls.
type MidiController struct {
	Target Pianist

	log   *zap.Logger
	table notes.Table

	mu         sync.Mutex
	noteStates map[notes.Key]bool
	knobsSeen  map[int64]int64
	knobBinds  map[int64]*knobBind

	close func() error
}

func newMidiController(target Pianist, table notes.Table, log *zap.Logger) *MidiController {
	if log == nil {
		log = zap.NewNop()
	}
	return &MidiController{
		Target:     target,
		log:        log,
		table:      table,
		noteStates: make(map[notes.Key]bool),
		knobsSeen:  make(map[int64]int64),
		knobBinds:  make(map[int64]*knobBind),
	}
}

func (mc *MidiController) handle(ev midiEvent) {
	switch ev.Status & 0xf0 {
	case statusNoteOn:
		// running status devices send velocity 0 instead of note off
		if ev.Data2 == 0 {
			mc.stopNote(ev.Data1)
			return
		}
		mc.startNote(ev.Data1)
	case statusNoteOff:
		mc.stopNote(ev.Data1)
	case statusControl:
		mc.mu.Lock()
		mc.knobsSeen[ev.Data1] = ev.Data2
		kb, ok := mc.knobBinds[ev.Data1]
		mc.mu.Unlock()
		if ok {
			kb.Update(ev.Data2)
		}
	default:
		mc.log.Debug("unhandled midi event", zap.Int64("status", ev.Status), zap.Int64("data1", ev.Data1), zap.Int64("data2", ev.Data2))
	}
}

func (mc *MidiController) key(note int64) (notes.Key, bool) {
	if note < 0 || note > 127 {
		return "", false
	}
	k := notes.FromMIDI(uint8(note))
	if _, ok := mc.table.Frequency(k); !ok {
		return "", false
	}
	return k, true
}

func (mc *MidiController) startNote(note int64) {
	k, ok := mc.key(note)
	if !ok || mc.Target == nil {
		return
	}

	mc.mu.Lock()
	if mc.noteStates[k] {
		mc.mu.Unlock()
		mc.log.Debug("got start for already running note", zap.String("note", string(k)))
		return
	}
	mc.noteStates[k] = true
	mc.mu.Unlock()

	mc.Target.Press(k)
}

func (mc *MidiController) stopNote(note int64) {
	k, ok := mc.key(note)
	if !ok || mc.Target == nil {
		return
	}

	mc.mu.Lock()
	if !mc.noteStates[k] {
		mc.mu.Unlock()
		mc.log.Debug("stop called on note we hadnt started", zap.String("note", string(k)))
		return
	}
	delete(mc.noteStates, k)
	mc.mu.Unlock()

	mc.Target.Release(k)
}

// Knob returns the last value seen for a control number.
func (mc *MidiController) Knob(id int64) (int64, bool) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	v, ok := mc.knobsSeen[id]
	return v, ok
}

func (mc *MidiController) BindKnob(knobid int64, s Setter, rangeMapFunc func(int64) float64) {
	if s == nil {
		mc.log.Warn("nil setter passed to bind knob", zap.Int64("knob", knobid))
		return
	}
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.knobBinds[knobid] = &knobBind{
		mapf: rangeMapFunc,
		sf:   s,
	}
}

// Shutdown releases every held note and closes the input.
func (mc *MidiController) Shutdown() error {
	mc.mu.Lock()
	held := make([]notes.Key, 0, len(mc.noteStates))
	for k := range mc.noteStates {
		held = append(held, k)
	}
	mc.noteStates = make(map[notes.Key]bool)
	mc.mu.Unlock()

	if mc.Target != nil {
		for _, k := range held {
			mc.Target.Release(k)
		}
	}
	if mc.close != nil {
		return mc.close()
	}
	return nil
}

// unitRange maps a 0..127 controller value onto [0, 1].
func unitRange(v int64) float64 {
	return float64(v) / 127
}
