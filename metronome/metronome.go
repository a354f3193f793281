// Package metronome clicks a note on every beat.
package metronome

import (
	"sync"
	"time"

	"github.com/whyrusleeping/pianojam/notes"
	"github.com/whyrusleeping/pianojam/osc"
	"go.uber.org/zap"
)

const (
	MinBPM     = 40
	MaxBPM     = 240
	DefaultBPM = 120

	// Accent sounds on the first beat of each bar, Click on the rest.
	Accent notes.Key = "C7"
	Click  notes.Key = "C6"

	clickLen    = 30 * time.Millisecond
	beatsPerBar = 4
)

type Player interface {
	NoteOn(k notes.Key, t osc.Timbre) error
	NoteOff(k notes.Key)
}

func ClampBPM(bpm int) int {
	if bpm < MinBPM {
		return MinBPM
	}
	if bpm > MaxBPM {
		return MaxBPM
	}
	return bpm
}

func interval(bpm int) time.Duration {
	return time.Minute / time.Duration(bpm)
}

type Metronome struct {
	player Player
	log    *zap.Logger

	// OnBeat, if set, is called after each click with the beat count since Start.
	OnBeat func(beat int)

	mu      sync.Mutex
	bpm     int
	running bool
	quit    chan struct{}
	bump    chan struct{}
	wg      sync.WaitGroup
}

func New(p Player, bpm int, log *zap.Logger) *Metronome {
	if log == nil {
		log = zap.NewNop()
	}
	if bpm == 0 {
		bpm = DefaultBPM
	}
	return &Metronome{
		player: p,
		log:    log,
		bpm:    ClampBPM(bpm),
		bump:   make(chan struct{}, 1),
	}
}

func (m *Metronome) BPM() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bpm
}

func (m *Metronome) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// SetBPM clamps bpm into range and returns what was set. A running metronome picks
// it up from the next beat.
func (m *Metronome) SetBPM(bpm int) int {
	m.mu.Lock()
	m.bpm = ClampBPM(bpm)
	bpm = m.bpm
	m.mu.Unlock()

	select {
	case m.bump <- struct{}{}:
	default:
	}
	return bpm
}

// Start clicks right away and then once per beat.
func (m *Metronome) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return
	}
	m.running = true
	m.quit = make(chan struct{})
	m.wg.Add(1)
	go m.run(m.quit)
	m.log.Info("metronome started", zap.Int("bpm", m.bpm))
}

func (m *Metronome) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	close(m.quit)
	m.mu.Unlock()
	m.wg.Wait()
}

func (m *Metronome) Toggle() bool {
	if m.Running() {
		m.Stop()
		return false
	}
	m.Start()
	return true
}

func (m *Metronome) run(quit chan struct{}) {
	defer m.wg.Done()

	beat := 0
	next := time.Now()
	for {
		m.click(beat, quit)
		beat++

		var ok bool
		next, ok = m.wait(next.Add(interval(m.BPM())), quit)
		if !ok {
			return
		}
	}
}

// wait sleeps until next. A tempo change restarts the beat from now.
func (m *Metronome) wait(next time.Time, quit chan struct{}) (time.Time, bool) {
	for {
		t := time.NewTimer(time.Until(next))
		select {
		case <-quit:
			t.Stop()
			return next, false
		case <-m.bump:
			t.Stop()
			next = time.Now().Add(interval(m.BPM()))
		case <-t.C:
			return next, true
		}
	}
}

func (m *Metronome) click(beat int, quit chan struct{}) {
	k := Click
	if beat%beatsPerBar == 0 {
		k = Accent
	}
	if err := m.player.NoteOn(k, osc.Square); err != nil {
		m.log.Warn("metronome click failed", zap.Error(err))
	}

	t := time.NewTimer(clickLen)
	select {
	case <-t.C:
	case <-quit:
		t.Stop()
	}
	m.player.NoteOff(k)

	if m.OnBeat != nil {
		m.OnBeat(beat)
	}
}
