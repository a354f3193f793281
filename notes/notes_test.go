package notes

import (
	"reflect"
	"testing"
)

func TestMIDI(t *testing.T) {
	cases := map[Key]uint8{
		"C4":  60,
		"A4":  69,
		"C#5": 73,
		"Bb4": 70,
		"C7":  96,
	}
	for k, want := range cases {
		got, ok := MIDI(k)
		if !ok {
			t.Fatalf("MIDI(%q) not ok", k)
		}
		if got != want {
			t.Fatalf("MIDI(%q)=%d; want %d", k, got, want)
		}
	}

	for _, bad := range []Key{"", "H4", "C", "#4", "Cx"} {
		if _, ok := MIDI(bad); ok {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}

	if k := FromMIDI(61); k != "C#4" {
		t.Fatalf("FromMIDI(61)=%q", k)
	}
}

func TestStandardTable(t *testing.T) {
	tab := Standard()
	if len(tab) != 37 {
		t.Fatalf("expected 37 keys, got %d", len(tab))
	}
	f, ok := tab.Frequency("A4")
	if !ok || f != 440 {
		t.Fatalf("A4 => %v %v", f, ok)
	}
	if _, ok := tab.Frequency("C8"); ok {
		t.Fatal("C8 should not be in the table")
	}

	keys := tab.Keys()
	if keys[0] != "C4" || keys[len(keys)-1] != "C7" {
		t.Fatalf("unexpected ordering: %v .. %v", keys[0], keys[len(keys)-1])
	}

	// mutating the copy leaves the shared table alone
	tab["A4"] = 1
	if f, _ := Standard().Frequency("A4"); f != 440 {
		t.Fatal("Standard returned shared map")
	}
}

func TestSort(t *testing.T) {
	keys := []Key{"E5", "C#4", "zz", "C4", "B4"}
	Sort(keys)
	want := []Key{"C4", "C#4", "B4", "E5", "zz"}
	if !reflect.DeepEqual(keys, want) {
		t.Fatalf("got %v; want %v", keys, want)
	}
}

func TestChordBuild(t *testing.T) {
	tab := Standard()

	cases := []struct {
		chord Chord
		root  Key
		want  []Key
	}{
		{Major, "C4", []Key{"C4", "E4", "G4"}},
		{Minor, "A4", []Key{"A4", "C5", "E5"}},
		{Diminished, "B4", []Key{"B4", "D5", "F5"}},
		{Octave, "G5", []Key{"G5", "G6"}},
		{Major, "A6", []Key{"A6"}},
		{Single, "D4", []Key{"D4"}},
		{Major, "C8", nil},
	}
	for _, c := range cases {
		got := c.chord.Build(c.root, tab)
		if !reflect.DeepEqual(got, c.want) {
			t.Fatalf("%s on %s: got %v; want %v", c.chord, c.root, got, c.want)
		}
	}

	if _, ok := ParseChord("Major"); !ok {
		t.Fatal("ParseChord should be case insensitive")
	}
	if _, ok := ParseChord("sus4"); ok {
		t.Fatal("sus4 is not supported")
	}
}
