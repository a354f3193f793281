package metronome

import (
	"sync"
	"testing"
	"time"

	"github.com/whyrusleeping/pianojam/notes"
	"github.com/whyrusleeping/pianojam/osc"
	"go.uber.org/zap/zaptest"
)

type clickCounter struct {
	mu   sync.Mutex
	ons  []notes.Key
	offs int
}

func (c *clickCounter) NoteOn(k notes.Key, t osc.Timbre) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ons = append(c.ons, k)
	return nil
}

func (c *clickCounter) NoteOff(k notes.Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offs++
}

func TestClampBPM(t *testing.T) {
	for in, want := range map[int]int{10: 40, 40: 40, 120: 120, 240: 240, 999: 240} {
		if got := ClampBPM(in); got != want {
			t.Fatalf("ClampBPM(%d)=%d", in, got)
		}
	}
	m := New(&clickCounter{}, 0, nil)
	if m.BPM() != DefaultBPM {
		t.Fatalf("default bpm %d", m.BPM())
	}
	if m.SetBPM(1000) != MaxBPM {
		t.Fatal("SetBPM should clamp")
	}
}

func TestTicks(t *testing.T) {
	c := &clickCounter{}
	m := New(c, MaxBPM, zaptest.NewLogger(t))

	m.Start()
	m.Start()
	time.Sleep(30 * time.Millisecond)
	c.mu.Lock()
	first := len(c.ons)
	c.mu.Unlock()
	if first != 1 {
		t.Fatalf("expected an immediate click, got %d", first)
	}

	// 240 bpm is a beat every 250ms
	time.Sleep(900 * time.Millisecond)
	m.Stop()
	m.Stop()

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.ons) < 3 || len(c.ons) > 5 {
		t.Fatalf("got %d clicks in ~0.9s", len(c.ons))
	}
	if c.offs != len(c.ons) {
		t.Fatalf("%d clicks but %d releases", len(c.ons), c.offs)
	}
	if c.ons[0] != Accent || c.ons[1] != Click {
		t.Fatalf("accent pattern wrong: %v", c.ons)
	}
	if m.Running() {
		t.Fatal("still running")
	}
}

func TestArpCycles(t *testing.T) {
	c := &clickCounter{}
	a := NewArp(c, zaptest.NewLogger(t))

	a.Start([]notes.Key{"C4", "E4", "G4"}, 40*time.Millisecond, osc.Triangle)
	if !a.Running() {
		t.Fatal("arp should be running")
	}
	time.Sleep(300 * time.Millisecond)
	a.Stop()

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.ons) < 5 {
		t.Fatalf("only %d steps in 300ms", len(c.ons))
	}
	for i, k := range c.ons {
		want := []notes.Key{"C4", "E4", "G4"}[i%3]
		if k != want {
			t.Fatalf("step %d was %s, want %s", i, k, want)
		}
	}
	if c.offs != len(c.ons) {
		t.Fatalf("%d steps but %d releases", len(c.ons), c.offs)
	}
	if a.Running() || len(a.Notes()) != 0 {
		t.Fatal("stopped arp still reports notes")
	}
}

func TestArpEmpty(t *testing.T) {
	a := NewArp(&clickCounter{}, nil)
	a.Start(nil, time.Second, osc.Sine)
	if a.Running() {
		t.Fatal("empty pattern should not run")
	}
	a.Stop()
}
