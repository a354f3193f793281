package keyboard

import (
	"fmt"
	"reflect"
	"sync"
	"testing"

	"github.com/whyrusleeping/pianojam/notes"
	"github.com/whyrusleeping/pianojam/osc"
	"github.com/whyrusleeping/pianojam/record"
	"go.uber.org/zap/zaptest"
)

type fakePlayer struct {
	mu    sync.Mutex
	log   []string
	reset int
}

func (p *fakePlayer) NoteOn(k notes.Key, t osc.Timbre) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.log = append(p.log, fmt.Sprintf("on %s %s", k, t))
	return nil
}

func (p *fakePlayer) NoteOff(k notes.Key) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.log = append(p.log, "off "+string(k))
}

func (p *fakePlayer) StopAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset++
}

type fakeTransport struct {
	sent []string
}

func (tr *fakeTransport) SendNoteEvent(kind record.Kind, k notes.Key, t osc.Timbre) error {
	tr.sent = append(tr.sent, fmt.Sprintf("%s,%s,%s", kind, k, t))
	return nil
}

func TestChordOverlap(t *testing.T) {
	p := &fakePlayer{}
	kb := New(p, notes.Standard(), WithLogger(zaptest.NewLogger(t)), WithChord(notes.Major))

	kb.Press("C4") // C4 E4 G4
	kb.SetChord(notes.Minor)
	kb.Press("E4") // E4 G4 B4

	kb.Release("C4")
	if got := kb.Held(); !reflect.DeepEqual(got, []notes.Key{"E4", "G4", "B4"}) {
		t.Fatalf("held after first release: %v", got)
	}
	kb.Release("E4")
	if len(kb.Held()) != 0 {
		t.Fatalf("still held: %v", kb.Held())
	}

	want := []string{
		"on C4 sine", "on E4 sine", "on G4 sine",
		"on B4 sine",
		"off C4",
		"off E4", "off G4", "off B4",
	}
	if !reflect.DeepEqual(p.log, want) {
		t.Fatalf("player saw %v", p.log)
	}
}

func TestRemoteCounting(t *testing.T) {
	p := &fakePlayer{}
	tr := &fakeTransport{}
	kb := New(p, notes.Standard(), WithTransport(tr), WithTimbre(osc.Square))

	kb.Press("A4")
	kb.Remote(record.On, "A4", osc.Sine)
	kb.Release("A4")
	if len(p.log) != 1 {
		t.Fatalf("remote hold should keep A4 on: %v", p.log)
	}
	kb.Remote(record.Off, "A4", osc.Sine)
	kb.Remote(record.Off, "A4", osc.Sine)
	kb.Remote(record.On, "Q9", osc.Sine)

	if !reflect.DeepEqual(p.log, []string{"on A4 square", "off A4"}) {
		t.Fatalf("player saw %v", p.log)
	}
	if !reflect.DeepEqual(tr.sent, []string{"NOTE_ON,A4,square", "NOTE_OFF,A4,square"}) {
		t.Fatalf("relayed %v", tr.sent)
	}
}

func TestRecordsTransitions(t *testing.T) {
	rec := record.NewRecorder()
	kb := New(&fakePlayer{}, notes.Standard(), WithRecorder(rec))

	kb.Press("C4")
	rec.StartRecording()
	kb.Press("C4")
	kb.Remote(record.On, "D4", osc.Triangle)
	kb.Release("C4")
	kb.Release("C4")
	kb.Remote(record.Off, "D4", osc.Triangle)

	evs := rec.StopRecording()
	var got []string
	for _, ev := range evs {
		got = append(got, fmt.Sprintf("%s %s %s", ev.Kind, ev.Note, ev.Timbre))
	}
	want := []string{"NOTE_ON D4 triangle", "NOTE_OFF C4 sine", "NOTE_OFF D4 sine"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("recorded %v", got)
	}
}

func TestReset(t *testing.T) {
	p := &fakePlayer{}
	kb := New(p, notes.Standard())
	kb.Press("C4")
	kb.Press("C4")
	kb.Reset()
	if len(kb.Held()) != 0 || p.reset != 1 {
		t.Fatal("reset should clear presses and stop all voices")
	}
	if kb.Release("C4") != nil {
		t.Fatal("release after reset should do nothing")
	}
}

func TestUnknownRoot(t *testing.T) {
	p := &fakePlayer{}
	kb := New(p, notes.Standard())
	if kb.Press("C9") != nil || len(p.log) != 0 {
		t.Fatal("unknown keys should be ignored")
	}
}
