package record

import (
	"bytes"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/whyrusleeping/pianojam/notes"
	"github.com/whyrusleeping/pianojam/osc"
)

func ev(kind Kind, k notes.Key, ms int) RawEvent {
	return RawEvent{Kind: kind, Note: k, Offset: time.Duration(ms) * time.Millisecond, Timbre: osc.Sine}
}

func iv(k notes.Key, start, end int) Interval {
	return Interval{Note: k, Start: time.Duration(start) * time.Millisecond, End: time.Duration(end) * time.Millisecond, Timbre: osc.Sine}
}

func TestToIntervals(t *testing.T) {
	cases := []struct {
		name string
		in   []RawEvent
		want []Interval
	}{
		{
			name: "pairs",
			in:   []RawEvent{ev(On, "A4", 0), ev(Off, "A4", 100), ev(On, "B4", 50), ev(Off, "B4", 80)},
			want: []Interval{iv("A4", 0, 100), iv("B4", 50, 80)},
		},
		{
			name: "last on wins",
			in:   []RawEvent{ev(On, "A4", 0), ev(On, "A4", 30), ev(Off, "A4", 100)},
			want: []Interval{iv("A4", 30, 100)},
		},
		{
			name: "unmatched off and trailing on",
			in:   []RawEvent{ev(Off, "C4", 10), ev(On, "D4", 20), ev(On, "E4", 25), ev(Off, "E4", 40)},
			want: []Interval{iv("E4", 25, 40)},
		},
		{
			name: "empty interval",
			in:   []RawEvent{ev(On, "C4", 10), ev(Off, "C4", 10)},
			want: nil,
		},
	}

	for _, c := range cases {
		got := ToIntervals(c.in)
		if !reflect.DeepEqual(got, c.want) {
			t.Fatalf("%s: got %v; want %v", c.name, got, c.want)
		}
	}
}

func TestIntervalTakesPressTimbre(t *testing.T) {
	in := []RawEvent{
		{Kind: On, Note: "C4", Offset: 0, Timbre: osc.Square},
		{Kind: Off, Note: "C4", Offset: time.Second, Timbre: osc.Sine},
	}
	out := ToIntervals(in)
	if len(out) != 1 || out[0].Timbre != osc.Square {
		t.Fatalf("got %v", out)
	}
}

func TestRecorder(t *testing.T) {
	now := time.Unix(1000, 0)
	r := NewRecorder()
	r.now = func() time.Time { return now }

	if err := r.Record(On, "C4", osc.Sine); !errors.Is(err, ErrNotRecording) {
		t.Fatalf("expected ErrNotRecording, got %v", err)
	}

	r.StartRecording()
	r.Record(On, "C4", osc.Sine)
	now = now.Add(250*time.Millisecond + 400*time.Microsecond)
	r.Record(Off, "C4", osc.Sine)

	evs := r.StopRecording()
	if len(evs) != 2 {
		t.Fatalf("got %d events", len(evs))
	}
	if evs[1].Offset != 250*time.Millisecond {
		t.Fatalf("offset %s", evs[1].Offset)
	}
	if r.Recording() {
		t.Fatal("still recording")
	}
	if err := r.Record(On, "D4", osc.Sine); err == nil {
		t.Fatal("record after stop should fail")
	}

	// restarting clears the old take
	r.StartRecording()
	if len(r.Events()) != 0 {
		t.Fatal("StartRecording should reset events")
	}
}

func TestCSVRoundTrip(t *testing.T) {
	ivs := []Interval{
		iv("A4", 0, 100),
		{Note: "C#5", Start: 50 * time.Millisecond, End: 80 * time.Millisecond, Timbre: osc.Sampled},
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, ivs); err != nil {
		t.Fatal(err)
	}
	want := "note,startTime,endTime,timbre\nA4,0,100,sine\nC#5,50,80,piano\n"
	if buf.String() != want {
		t.Fatalf("got %q", buf.String())
	}

	got, skipped, err := ReadCSV(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if skipped != 0 || !reflect.DeepEqual(got, ivs) {
		t.Fatalf("round trip gave %v (skipped %d)", got, skipped)
	}
}

func TestReadCSVSkipsBadLines(t *testing.T) {
	in := strings.Join([]string{
		"note,startTime,endTime,timbre",
		"C4,0,500,sine",
		"D4,abc,500,sine",
		"E4,0,500",
		"F4,100,50,square",
		"G4,0,100,kazoo",
		"A4,10,20,piano",
		"C5,0,18446744073000,sine",
		"D5,9223372036854775,9223372036854776,sine",
		"",
		"B4,0,10,sine,extra",
	}, "\n")

	got, skipped, err := ReadCSV(strings.NewReader(in))
	if err != nil {
		t.Fatal(err)
	}
	if skipped != 7 {
		t.Fatalf("skipped %d lines", skipped)
	}
	want := []Interval{
		iv("C4", 0, 500),
		{Note: "A4", Start: 10 * time.Millisecond, End: 20 * time.Millisecond, Timbre: osc.Sampled},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v", got)
	}
}

func TestSaveLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "take.csv")
	ivs := []Interval{iv("G5", 10, 900)}
	if err := SaveFile(path, ivs); err != nil {
		t.Fatal(err)
	}
	got, _, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, ivs) {
		t.Fatalf("got %v", got)
	}

	if _, _, err := LoadFile(filepath.Join(t.TempDir(), "missing.csv")); err == nil {
		t.Fatal("expected error")
	}
}

func TestExportSMF(t *testing.T) {
	var buf bytes.Buffer
	ivs := []Interval{iv("C4", 0, 500), iv("E4", 500, 1000), iv("bogus", 0, 10)}
	if err := ExportSMF(&buf, ivs); err != nil {
		t.Fatal(err)
	}
	b := buf.Bytes()
	if !bytes.HasPrefix(b, []byte("MThd")) {
		t.Fatal("missing file header")
	}
	if bytes.Count(b, []byte("MTrk")) != 1 {
		t.Fatal("expected one track")
	}

	if ticks(500*time.Millisecond) != ticksPerQuarter {
		t.Fatalf("half a second at 120bpm should be one quarter, got %d", ticks(500*time.Millisecond))
	}
}
