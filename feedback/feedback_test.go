package feedback

import (
	"sync"
	"testing"
	"time"

	"github.com/whyrusleeping/pianojam/notes"
	"go.uber.org/zap/zaptest"
)

func TestDispatcherOrder(t *testing.T) {
	var mu sync.Mutex
	var got []string

	d := NewDispatcher(SinkFunc(func(k notes.Key, s State) {
		mu.Lock()
		got = append(got, string(k)+":"+s.String())
		mu.Unlock()
	}), zaptest.NewLogger(t))

	d.NoteVisualChange("C4", On)
	d.NoteVisualChange("E4", On)
	d.NoteVisualChange("C4", Off)
	d.Close()

	want := []string{"C4:on", "E4:on", "C4:off"}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v; want %v", got, want)
		}
	}
}

func TestDispatcherDoesNotBlock(t *testing.T) {
	release := make(chan struct{})
	d := NewDispatcher(SinkFunc(func(k notes.Key, s State) {
		<-release
	}), zaptest.NewLogger(t))

	start := time.Now()
	for i := 0; i < 1000; i++ {
		d.NoteVisualChange("A4", On)
	}
	if time.Since(start) > time.Second {
		t.Fatal("notifications blocked on a slow sink")
	}
	close(release)
	d.Close()
}

func TestDispatcherSurvivesPanic(t *testing.T) {
	calls := 0
	d := NewDispatcher(SinkFunc(func(k notes.Key, s State) {
		calls++
		if calls == 1 {
			panic("boom")
		}
	}), zaptest.NewLogger(t))

	d.NoteVisualChange("A4", On)
	d.NoteVisualChange("A4", Off)
	d.Close()

	if calls != 2 {
		t.Fatalf("expected 2 deliveries, got %d", calls)
	}
}

func TestNilDispatcher(t *testing.T) {
	var d *Dispatcher
	d.NoteVisualChange("C4", On)
	d.Close()
}
