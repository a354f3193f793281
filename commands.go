package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/whyrusleeping/pianojam/notes"
	"github.com/whyrusleeping/pianojam/osc"
	"github.com/whyrusleeping/pianojam/playback"
)

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// registerCommands binds the console vocabulary to e.
func registerCommands(s *System, e *Engine) {
	s.Register("press", "press KEY... sounds each key, or its chord", func(ks ...notes.Key) []notes.Key {
		var out []notes.Key
		for _, k := range ks {
			out = append(out, e.kb.Press(k)...)
		}
		return out
	})
	s.Register("release", "release KEY... lets go of each key", func(ks ...notes.Key) {
		for _, k := range ks {
			e.kb.Release(k)
		}
	})
	s.Register("tap", "tap DURATION KEY... presses the keys and releases them after DURATION", func(d time.Duration, ks ...notes.Key) error {
		if d <= 0 {
			return errors.Errorf("duration must be positive, got %s", d)
		}
		for _, k := range ks {
			e.kb.Press(k)
		}
		time.AfterFunc(d, func() {
			for _, k := range ks {
				e.kb.Release(k)
			}
		})
		return nil
	})
	s.Register("held", "held lists keys currently held down", func() []notes.Key {
		return e.kb.Held()
	})
	s.Register("reset", "reset releases everything and silences all voices", func() {
		e.kb.Reset()
	})

	s.Register("timbre", "timbre [NAME] shows or sets the timbre: sine, square, triangle, sawtooth, piano", func(ts ...osc.Timbre) (osc.Timbre, error) {
		switch len(ts) {
		case 0:
		case 1:
			e.kb.SetTimbre(ts[0])
		default:
			return 0, errors.New("expected at most one timbre")
		}
		return e.kb.Timbre(), nil
	})
	s.Register("chord", "chord [NAME] shows or sets the chord mode: none, major, minor, diminished, octave", func(cs ...notes.Chord) (notes.Chord, error) {
		switch len(cs) {
		case 0:
		case 1:
			e.kb.SetChord(cs[0])
		default:
			return "", errors.New("expected at most one chord")
		}
		return e.kb.Chord(), nil
	})
	s.Register("volume", "volume [0..1] shows or sets the master volume", func(vs ...float64) (string, error) {
		switch len(vs) {
		case 0:
		case 1:
			e.voices.SetVolume(vs[0])
		default:
			return "", errors.New("expected at most one volume")
		}
		return fmt.Sprintf("%.2f", e.voices.Volume()), nil
	})

	s.Register("record", "record starts a new take", func() string {
		e.rec.StartRecording()
		return "recording"
	})
	s.Register("stop-record", "stop-record ends the take", func() (string, error) {
		ivs, err := e.StopRecording()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d notes", len(ivs)), nil
	})
	s.Register("save", "save PATH writes the take as CSV", func(path string) error {
		return e.Save(path)
	})
	s.Register("load", "load PATH reads a CSV take", func(path string) (string, error) {
		n, skipped, err := e.Load(path)
		if err != nil {
			return "", err
		}
		if skipped > 0 {
			return fmt.Sprintf("%d notes (%d lines skipped)", n, skipped), nil
		}
		return fmt.Sprintf("%d notes", n), nil
	})
	s.Register("export", "export PATH writes the take as a Standard MIDI File", func(path string) error {
		return exportMIDI(path, e.Take())
	})
	s.Register("wav", "wav PATH renders the take to a WAV file", func(path string) error {
		return exportWAV(path, e.Take(), e.table, e.voices.Volume(), effectOpts{})
	})

	s.Register("play", "play starts playing the take", func() error {
		return e.Play()
	})
	s.Register("pause", "pause holds playback", func() playback.State {
		e.sched.Pause()
		return e.sched.State()
	})
	s.Register("resume", "resume continues paused playback", func() playback.State {
		e.sched.Resume()
		return e.sched.State()
	})
	s.Register("toggle", "toggle pauses or resumes playback", func() playback.State {
		return e.sched.TogglePause()
	})
	s.Register("stop", "stop ends playback", func() {
		e.sched.Stop()
	})
	s.Register("wait", "wait blocks until playback finishes", func() {
		e.sched.Wait()
	})
	s.Register("status", "status shows playback state and progress", func() string {
		return fmt.Sprintf("%s %.0f%%", e.sched.State(), e.sched.Progress())
	})

	s.Register("metronome", "metronome toggles the click", func() string {
		return onOff(e.metro.Toggle())
	})
	s.Register("bpm", "bpm [N] shows or sets the metronome tempo", func(bs ...int) (int, error) {
		switch len(bs) {
		case 0:
		case 1:
			e.metro.SetBPM(bs[0])
		default:
			return 0, errors.New("expected at most one tempo")
		}
		return e.metro.BPM(), nil
	})
	s.Register("arp", "arp STEP KEY... cycles through the keys, one per STEP", func(step time.Duration, ks ...notes.Key) error {
		if step <= 0 || len(ks) == 0 {
			return errors.New("need a positive step and at least one key")
		}
		e.arp.Start(ks, step, e.kb.Timbre())
		return nil
	})
	s.Register("arp-stop", "arp-stop ends the arpeggio", func() {
		e.arp.Stop()
	})

	s.Register("connect", "connect URL joins a relay hub", func(url string) error {
		return e.Connect(url)
	})
	s.Register("disconnect", "disconnect leaves the relay hub", func() {
		e.Disconnect()
	})
	s.Register("midi", "midi ID attaches a MIDI controller, -1 for the default input", func(id int) error {
		return e.AttachMidi(id)
	})
	s.Register("midi-devices", "midi-devices lists MIDI inputs", func() (string, error) {
		devs, err := listMidiDevices()
		if err != nil {
			return "", err
		}
		return strings.Join(devs, "\n"), nil
	})

	s.Register("sleep", "sleep DURATION pauses a script", func(d time.Duration) {
		time.Sleep(d)
	})
	s.Register("keys", "keys draws the keyboard with lit keys marked", func() string {
		return e.lights.Draw(e.table.Keys())
	})
	s.Register("lit", "lit lists lit keys", func() []notes.Key {
		return e.lights.Lit()
	})
	s.Register("help", "help [COMMAND] describes commands", func(names ...string) string {
		if len(names) == 0 {
			names = s.Commands()
		}
		var lines []string
		for _, n := range names {
			if h := s.Help(n); h != "" {
				lines = append(lines, h)
			}
		}
		return strings.Join(lines, "\n")
	})
}
