package main

import (
	"bytes"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/whyrusleeping/pianojam/audio"
	"github.com/whyrusleeping/pianojam/config"
	"github.com/whyrusleeping/pianojam/feedback"
	"github.com/whyrusleeping/pianojam/notes"
	"github.com/whyrusleeping/pianojam/playback"
	"github.com/whyrusleeping/pianojam/relay"
	"go.uber.org/zap/zaptest"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	cfg := config.Default()
	cfg.Headless = true
	e, err := NewEngine(cfg, &audio.NullDevice{}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { e.Close() })
	return e
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestScriptSession(t *testing.T) {
	e := newTestEngine(t)
	sys := NewSystem()
	registerCommands(sys, e)

	dir := t.TempDir()
	script := strings.ReplaceAll(`
// record a short phrase and write it out every way
record
press C4 E4
sleep 80ms
release C4 E4
stop-record
save DIR/take.csv
load DIR/take.csv
export DIR/take.mid
wav DIR/take.wav
timbre square
chord major
volume 0.3
bpm 500
quit
press C4
`, "DIR", dir)

	var out bytes.Buffer
	failed, err := runScript(sys, strings.NewReader(script), &out)
	if err != nil {
		t.Fatal(err)
	}
	if failed != 0 {
		t.Fatalf("%d lines failed:\n%s", failed, out.String())
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	want := []string{"recording", "[C4, E4]", "2 notes", "2 notes", "square", "major", "0.30", "240"}
	if len(lines) != len(want) {
		t.Fatalf("output:\n%s", out.String())
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("line %d is %q, want %q", i, lines[i], want[i])
		}
	}

	for _, f := range []string{"take.csv", "take.mid", "take.wav"} {
		st, err := os.Stat(filepath.Join(dir, f))
		if err != nil || st.Size() == 0 {
			t.Fatalf("%s not written: %v", f, err)
		}
	}
	if len(e.kb.Held()) != 0 {
		t.Fatal("nothing after quit should run")
	}
}

func TestScriptCountsFailures(t *testing.T) {
	e := newTestEngine(t)
	sys := NewSystem()
	registerCommands(sys, e)

	var out bytes.Buffer
	failed, err := runScript(sys, strings.NewReader("play\nstop-record\nvolume loud\nheld\n"), &out)
	if err != nil {
		t.Fatal(err)
	}
	if failed != 3 {
		t.Fatalf("expected 3 failures, got %d:\n%s", failed, out.String())
	}
}

func TestEnginePlayback(t *testing.T) {
	e := newTestEngine(t)
	sys := NewSystem()
	registerCommands(sys, e)

	path := filepath.Join(t.TempDir(), "take.csv")
	csv := "note,startTime,endTime,timbre\nC4,0,150,sine\nG4,50,200,triangle\n"
	if err := os.WriteFile(path, []byte(csv), 0o600); err != nil {
		t.Fatal(err)
	}
	if out, err := sys.ProcessCmd("load " + path); err != nil || out != "2 notes" {
		t.Fatalf("load gave %q, %v", out, err)
	}
	if _, err := sys.ProcessCmd("play"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "C4 to light", func() bool {
		for _, k := range e.lights.Lit() {
			if k == "C4" {
				return true
			}
		}
		return false
	})
	if out, _ := sys.ProcessCmd("pause"); out != playback.Paused.String() {
		t.Fatalf("pause gave %q", out)
	}
	if out, _ := sys.ProcessCmd("resume"); out != playback.Running.String() {
		t.Fatalf("resume gave %q", out)
	}
	if _, err := sys.ProcessCmd("wait"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "lights to clear", func() bool { return len(e.lights.Lit()) == 0 })
	if out, _ := sys.ProcessCmd("status"); out != "stopped 100%" {
		t.Fatalf("status gave %q", out)
	}
}

func TestRelayBetweenEngines(t *testing.T) {
	hub := relay.NewHub(zaptest.NewLogger(t))
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	a := newTestEngine(t)
	b := newTestEngine(t)
	if err := a.Connect(url); err != nil {
		t.Fatal(err)
	}
	if err := b.Connect(url); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "both peers", func() bool { return hub.Peers() == 2 })

	a.kb.Press("A4")
	waitFor(t, "remote press", func() bool {
		held := b.kb.Held()
		return len(held) == 1 && held[0] == notes.Key("A4")
	})
	a.kb.Release("A4")
	waitFor(t, "remote release", func() bool { return len(b.kb.Held()) == 0 })

	b.Disconnect()
	if b.Connected() {
		t.Fatal("still connected after disconnect")
	}
	waitFor(t, "peer to leave", func() bool { return hub.Peers() == 1 })
}

func TestLightsDraw(t *testing.T) {
	l := NewLights()
	keys := []notes.Key{"C4", "C#4", "D4"}
	if got := l.Draw(keys); got != "|#|" {
		t.Fatalf("drew %q", got)
	}
	l.NoteVisualChange("C#4", feedback.On)
	if got := l.Draw(keys); got != "|*|" {
		t.Fatalf("drew %q", got)
	}
	l.NoteVisualChange("C#4", feedback.Off)
	if len(l.Lit()) != 0 {
		t.Fatal("C#4 should be dark")
	}
}
