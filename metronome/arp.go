package metronome

import (
	"sync"
	"time"

	"github.com/whyrusleeping/pianojam/notes"
	"github.com/whyrusleeping/pianojam/osc"
	"go.uber.org/zap"
)

// Arp steps through a list of notes, sounding each for one step, until stopped.
type Arp struct {
	player Player
	log    *zap.Logger

	mu     sync.Mutex
	notes  []notes.Key
	step   time.Duration
	timbre osc.Timbre
	quit   chan struct{}
	wg     sync.WaitGroup
}

func NewArp(p Player, log *zap.Logger) *Arp {
	if log == nil {
		log = zap.NewNop()
	}
	return &Arp{player: p, log: log}
}

// Start replaces any running pattern. An empty list or non-positive step stops it.
func (a *Arp) Start(ks []notes.Key, step time.Duration, t osc.Timbre) {
	a.Stop()
	if len(ks) == 0 || step <= 0 {
		return
	}

	a.mu.Lock()
	a.notes = append([]notes.Key(nil), ks...)
	a.step = step
	a.timbre = t
	a.quit = make(chan struct{})
	a.wg.Add(1)
	go a.run(a.notes, step, t, a.quit)
	a.mu.Unlock()
}

func (a *Arp) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.quit != nil
}

func (a *Arp) Notes() []notes.Key {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]notes.Key(nil), a.notes...)
}

func (a *Arp) Stop() {
	a.mu.Lock()
	if a.quit != nil {
		close(a.quit)
		a.quit = nil
		a.notes = nil
	}
	a.mu.Unlock()
	a.wg.Wait()
}

func (a *Arp) run(ks []notes.Key, step time.Duration, t osc.Timbre, quit chan struct{}) {
	defer a.wg.Done()

	next := time.Now()
	for i := 0; ; i = (i + 1) % len(ks) {
		k := ks[i]
		if err := a.player.NoteOn(k, t); err != nil {
			a.log.Warn("arp note failed", zap.String("note", string(k)), zap.Error(err))
		}

		next = next.Add(step)
		timer := time.NewTimer(time.Until(next))
		select {
		case <-timer.C:
			a.player.NoteOff(k)
		case <-quit:
			timer.Stop()
			a.player.NoteOff(k)
			return
		}
	}
}
