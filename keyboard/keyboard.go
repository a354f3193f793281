// Package keyboard counts overlapping presses of the same key, from chords, repeated
// input and remote peers, so the voice registry only ever sees one on/off pair per
// sounding note.
package keyboard

import (
	"sync"

	"github.com/whyrusleeping/pianojam/notes"
	"github.com/whyrusleeping/pianojam/osc"
	"github.com/whyrusleeping/pianojam/record"
	"go.uber.org/zap"
)

type Player interface {
	NoteOn(k notes.Key, t osc.Timbre) error
	NoteOff(k notes.Key)
	StopAll()
}

// Transport relays local presses to peers.
type Transport interface {
	SendNoteEvent(kind record.Kind, k notes.Key, t osc.Timbre) error
}

type Option func(*Keyboard)

func WithLogger(log *zap.Logger) Option {
	return func(kb *Keyboard) { kb.log = log }
}

func WithRecorder(r *record.Recorder) Option {
	return func(kb *Keyboard) { kb.rec = r }
}

func WithTransport(t Transport) Option {
	return func(kb *Keyboard) { kb.tr = t }
}

func WithTimbre(t osc.Timbre) Option {
	return func(kb *Keyboard) { kb.timbre = t }
}

func WithChord(c notes.Chord) Option {
	return func(kb *Keyboard) { kb.chord = c }
}

type Keyboard struct {
	player Player
	table  notes.Table
	log    *zap.Logger
	rec    *record.Recorder

	mu     sync.Mutex
	tr     Transport
	timbre osc.Timbre
	chord  notes.Chord
	counts map[notes.Key]int
	// chord members each local root press expanded to, for the matching release
	roots map[notes.Key][][]notes.Key
}

func New(p Player, table notes.Table, opts ...Option) *Keyboard {
	kb := &Keyboard{
		player: p,
		table:  table,
		log:    zap.NewNop(),
		chord:  notes.Single,
		counts: make(map[notes.Key]int),
		roots:  make(map[notes.Key][][]notes.Key),
	}
	for _, o := range opts {
		o(kb)
	}
	return kb
}

func (kb *Keyboard) SetTransport(t Transport) {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	kb.tr = t
}

func (kb *Keyboard) SetTimbre(t osc.Timbre) {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	kb.timbre = t
}

func (kb *Keyboard) Timbre() osc.Timbre {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	return kb.timbre
}

func (kb *Keyboard) SetChord(c notes.Chord) {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	kb.chord = c
}

func (kb *Keyboard) Chord() notes.Chord {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	return kb.chord
}

// Press sounds root, or the chord built on it, and relays every member.
func (kb *Keyboard) Press(root notes.Key) []notes.Key {
	kb.mu.Lock()
	defer kb.mu.Unlock()

	members := kb.chord.Build(root, kb.table)
	if len(members) == 0 {
		return nil
	}
	kb.roots[root] = append(kb.roots[root], members)

	for _, k := range members {
		kb.downLocked(k, kb.timbre)
		kb.sendLocked(record.On, k, kb.timbre)
	}
	return members
}

// Release undoes the oldest outstanding Press of root, even if the chord changed since.
func (kb *Keyboard) Release(root notes.Key) []notes.Key {
	kb.mu.Lock()
	defer kb.mu.Unlock()

	stack := kb.roots[root]
	if len(stack) == 0 {
		return nil
	}
	members := stack[0]
	if len(stack) == 1 {
		delete(kb.roots, root)
	} else {
		kb.roots[root] = stack[1:]
	}

	for _, k := range members {
		kb.upLocked(k)
		kb.sendLocked(record.Off, k, kb.timbre)
	}
	return members
}

// Remote applies a peer's event. It counts like a local press but is never relayed.
func (kb *Keyboard) Remote(kind record.Kind, k notes.Key, t osc.Timbre) {
	kb.mu.Lock()
	defer kb.mu.Unlock()

	if _, ok := kb.table.Frequency(k); !ok {
		kb.log.Debug("ignoring remote event for unknown note", zap.String("note", string(k)))
		return
	}
	switch kind {
	case record.On:
		kb.downLocked(k, t)
	case record.Off:
		kb.upLocked(k)
	}
}

func (kb *Keyboard) downLocked(k notes.Key, t osc.Timbre) {
	kb.counts[k]++
	if kb.counts[k] > 1 {
		return
	}
	if err := kb.player.NoteOn(k, t); err != nil {
		kb.log.Warn("note did not start", zap.String("note", string(k)), zap.Error(err))
	}
	kb.recordLocked(record.On, k, t)
}

func (kb *Keyboard) upLocked(k notes.Key) {
	n, ok := kb.counts[k]
	if !ok {
		return
	}
	if n > 1 {
		kb.counts[k] = n - 1
		return
	}
	delete(kb.counts, k)
	kb.player.NoteOff(k)
	kb.recordLocked(record.Off, k, kb.timbre)
}

func (kb *Keyboard) recordLocked(kind record.Kind, k notes.Key, t osc.Timbre) {
	if kb.rec == nil || !kb.rec.Recording() {
		return
	}
	if err := kb.rec.Record(kind, k, t); err != nil {
		kb.log.Debug("not recorded", zap.String("note", string(k)), zap.Error(err))
	}
}

func (kb *Keyboard) sendLocked(kind record.Kind, k notes.Key, t osc.Timbre) {
	if kb.tr == nil {
		return
	}
	if err := kb.tr.SendNoteEvent(kind, k, t); err != nil {
		kb.log.Warn("relay failed", zap.String("note", string(k)), zap.Error(err))
	}
}

// Held returns the keys currently held down, in pitch order.
func (kb *Keyboard) Held() []notes.Key {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	out := make([]notes.Key, 0, len(kb.counts))
	for k := range kb.counts {
		out = append(out, k)
	}
	notes.Sort(out)
	return out
}

// Reset forgets every press and hard stops all sound.
func (kb *Keyboard) Reset() {
	kb.mu.Lock()
	defer kb.mu.Unlock()

	for k := range kb.counts {
		kb.recordLocked(record.Off, k, kb.timbre)
	}
	kb.counts = make(map[notes.Key]int)
	kb.roots = make(map[notes.Key][][]notes.Key)
	kb.player.StopAll()
}
