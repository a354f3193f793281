package notes

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Key names one pitch, e.g. "C#5".
type Key string

// Table maps keys to frequencies. Implementations must not change after startup.
type Table interface {
	Frequency(k Key) (float64, bool)
}

type FrequencyTable map[Key]float64

func (ft FrequencyTable) Frequency(k Key) (float64, bool) {
	f, ok := ft[k]
	return f, ok
}

// Keys returns the table keys sorted by pitch.
func (ft FrequencyTable) Keys() []Key {
	out := make([]Key, 0, len(ft))
	for k := range ft {
		out = append(out, k)
	}
	Sort(out)
	return out
}

var standard = FrequencyTable{
	"C4": 261.63, "C#4": 277.18, "D4": 293.66, "D#4": 311.13, "E4": 329.63, "F4": 349.23,
	"F#4": 370.00, "G4": 392.00, "G#4": 415.30, "A4": 440.00, "A#4": 466.16, "B4": 493.88,

	"C5": 523.25, "C#5": 554.37, "D5": 587.33, "D#5": 622.25, "E5": 659.25, "F5": 698.46,
	"F#5": 739.99, "G5": 783.99, "G#5": 830.61, "A5": 880.00, "A#5": 932.33, "B5": 987.77,

	"C6": 1046.50, "C#6": 1108.73, "D6": 1174.66, "D#6": 1244.51, "E6": 1318.51, "F6": 1396.91,
	"F#6": 1479.98, "G6": 1567.98, "G#6": 1661.22, "A6": 1760.00, "A#6": 1864.66, "B6": 1975.53,

	"C7": 2093.00,
}

// Standard returns a copy of the keyboard's table, C4 through C7.
func Standard() FrequencyTable {
	out := make(FrequencyTable, len(standard))
	for k, v := range standard {
		out[k] = v
	}
	return out
}

var names = []string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

var flats = map[string]string{"Db": "C#", "Eb": "D#", "Gb": "F#", "Ab": "G#", "Bb": "A#"}

// Split breaks a key into its pitch class index (C=0) and octave.
func Split(k Key) (int, int, error) {
	s := string(k)
	i := strings.IndexFunc(s, func(r rune) bool {
		return r == '-' || (r >= '0' && r <= '9')
	})
	if i <= 0 {
		return 0, 0, fmt.Errorf("invalid note %q", s)
	}

	base := s[:i]
	if alt, ok := flats[base]; ok {
		base = alt
	}

	pc := -1
	for j, n := range names {
		if n == base {
			pc = j
			break
		}
	}
	if pc < 0 {
		return 0, 0, fmt.Errorf("invalid note name %q", s)
	}

	oct, err := strconv.Atoi(s[i:])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid octave in %q", s)
	}
	return pc, oct, nil
}

// MIDI returns the MIDI note number, C4 = 60.
func MIDI(k Key) (uint8, bool) {
	pc, oct, err := Split(k)
	if err != nil {
		return 0, false
	}
	n := (oct+1)*12 + pc
	if n < 0 || n > 127 {
		return 0, false
	}
	return uint8(n), true
}

func FromMIDI(n uint8) Key {
	return Key(names[int(n)%12] + strconv.Itoa(int(n)/12-1))
}

// Sort orders keys by pitch; unparseable keys sort last, by name.
func Sort(keys []Key) {
	sort.SliceStable(keys, func(i, j int) bool {
		a, aok := MIDI(keys[i])
		b, bok := MIDI(keys[j])
		switch {
		case aok && bok:
			return a < b
		case aok != bok:
			return aok
		default:
			return keys[i] < keys[j]
		}
	})
}

func IsBlack(k Key) bool {
	return strings.Contains(string(k), "#")
}
