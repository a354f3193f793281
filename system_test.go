package main

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/whyrusleeping/pianojam/notes"
	"github.com/whyrusleeping/pianojam/osc"
)

func TestTokenize(t *testing.T) {
	tokens, err := tokenize(`riff = [C#4, E4,G4]  tap 150ms "my take.csv" ws://localhost:5190/`)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"riff", "=", "[", "C#4", ",", "E4", ",", "G4", "]", "tap", "150ms", "my take.csv", "ws://localhost:5190/"}
	if !reflect.DeepEqual(tokens, want) {
		t.Fatalf("got %q", tokens)
	}

	for _, bad := range []string{"press C4;", `load "open`} {
		if _, err := tokenize(bad); err == nil {
			t.Fatalf("%q should not tokenize", bad)
		}
	}
}

func TestScanTuple(t *testing.T) {
	tokens := []string{"[", "a", ",", "[", "b", ",", "c", "]", ",", "d", "]", "tail"}
	out, end, err := scanTuple("[", "]", tokens)
	if err != nil {
		t.Fatal(err)
	}
	if end != 10 || len(out) != 3 || len(out[1]) != 5 {
		t.Fatalf("got %q ending at %d", out, end)
	}

	if _, _, err := scanTuple("[", "]", []string{"[", "a"}); err == nil {
		t.Fatal("unterminated list should fail")
	}
	if _, _, err := scanTuple("[", "]", []string{"[", ",", "a", "]"}); err == nil {
		t.Fatal("empty element should fail")
	}
}

func TestArgConversion(t *testing.T) {
	s := NewSystem()

	var got struct {
		k  notes.Key
		tb osc.Timbre
		c  notes.Chord
		d  time.Duration
		n  int
		f  float64
		b  bool
	}
	s.Register("all", "", func(k notes.Key, tb osc.Timbre, c notes.Chord, d time.Duration, n int, f float64, b bool) {
		got.k, got.tb, got.c, got.d, got.n, got.f, got.b = k, tb, c, d, n, f, b
	})

	if _, err := s.ProcessCmd("all Bb3 piano minor 1.5s 7 0.25 on"); err != nil {
		t.Fatal(err)
	}
	if got.k != "Bb3" || got.tb != osc.Sampled || got.c != notes.Minor || got.d != 1500*time.Millisecond ||
		got.n != 7 || got.f != 0.25 || !got.b {
		t.Fatalf("converted %+v", got)
	}

	for _, bad := range []string{
		"all H4 sine none 1s 1 1 true",
		"all C4 kazoo none 1s 1 1 true",
		"all C4 sine sus4 1s 1 1 true",
		"all C4 sine none soon 1 1 true",
		"all C4 sine none 1s one 1 true",
		"all C4 sine none 1s 1 1",
	} {
		if _, err := s.ProcessCmd(bad); err == nil {
			t.Fatalf("%q should fail", bad)
		}
	}
}

func TestVariadicAndLists(t *testing.T) {
	s := NewSystem()
	s.Register("count", "", func(d time.Duration, ks ...notes.Key) int {
		return len(ks)
	})
	s.Register("join", "", func(ks []notes.Key) string {
		parts := make([]string, len(ks))
		for i, k := range ks {
			parts[i] = string(k)
		}
		return strings.Join(parts, "-")
	})

	cases := map[string]string{
		"count 1s":             "0",
		"count 1s C4 E4":       "2",
		"count 1s [C4, E4] G4": "3",
		"join [C4, E4, G4]":    "C4-E4-G4",
		"join A4":              "A4",
		"join [C4, [D4, E4]]":  "",
	}
	for line, want := range cases {
		out, err := s.ProcessCmd(line)
		if want == "" {
			if err == nil {
				t.Fatalf("%q should fail on a nested list", line)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%q: %v", line, err)
		}
		if out != want {
			t.Fatalf("%q gave %q, want %q", line, out, want)
		}
	}
}

func TestVariables(t *testing.T) {
	s := NewSystem()
	s.Register("count", "", func(ks ...notes.Key) int { return len(ks) })
	s.Register("upper", "", func(ks ...notes.Key) []notes.Key {
		return ks
	})

	if _, err := s.ProcessCmd("riff = [C4, E4, G4]"); err != nil {
		t.Fatal(err)
	}
	out, err := s.ProcessCmd("riff")
	if err != nil || out != "[C4, E4, G4]" {
		t.Fatalf("riff printed %q, %v", out, err)
	}
	if out, _ := s.ProcessCmd("count riff A4"); out != "4" {
		t.Fatalf("count gave %q", out)
	}

	// a command result can be bound and reused
	if _, err := s.ProcessCmd("held = upper D4 F4"); err != nil {
		t.Fatal(err)
	}
	if out, _ := s.ProcessCmd("count held"); out != "2" {
		t.Fatalf("count of bound result gave %q", out)
	}

	if _, err := s.ProcessCmd("count = 3"); err == nil {
		t.Fatal("assigning over a command should fail")
	}
	if _, err := s.ProcessCmd("nope C4"); err == nil {
		t.Fatal("unknown command should fail")
	}
}

func TestCommandErrors(t *testing.T) {
	s := NewSystem()
	boom := errors.New("boom")
	s.Register("fail", "", func() (string, error) { return "", boom })
	s.Register("quiet", "", func() {})

	if _, err := s.ProcessCmd("fail"); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	out, err := s.ProcessCmd("quiet")
	if err != nil || out != "" {
		t.Fatalf("quiet gave %q, %v", out, err)
	}
	if out, err := s.ProcessCmd("   "); err != nil || out != "" {
		t.Fatal("blank line should do nothing")
	}
}
