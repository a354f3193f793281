package notes

import "strings"

type Chord string

const (
	Single     Chord = "none"
	Major      Chord = "major"
	Minor      Chord = "minor"
	Diminished Chord = "diminished"
	Octave     Chord = "octave"
)

var chordIntervals = map[Chord][]int{
	Major:      {0, 4, 7},
	Minor:      {0, 3, 7},
	Diminished: {0, 3, 6},
	Octave:     {0, 12},
}

func ParseChord(s string) (Chord, bool) {
	c := Chord(strings.ToLower(strings.TrimSpace(s)))
	if c == "" || c == Single {
		return Single, true
	}
	_, ok := chordIntervals[c]
	return c, ok
}

// Build returns the notes of the chord on root. Members outside the table are dropped;
// an unknown chord kind yields just the root.
func (c Chord) Build(root Key, table Table) []Key {
	if _, ok := table.Frequency(root); !ok {
		return nil
	}

	intervals, ok := chordIntervals[c]
	if !ok {
		return []Key{root}
	}

	base, ok := MIDI(root)
	if !ok {
		return []Key{root}
	}

	out := make([]Key, 0, len(intervals))
	for _, iv := range intervals {
		n := int(base) + iv
		if n > 127 {
			continue
		}
		k := FromMIDI(uint8(n))
		if _, ok := table.Frequency(k); ok {
			out = append(out, k)
		}
	}
	return out
}
