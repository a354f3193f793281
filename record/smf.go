package record

import (
	"io"
	"sort"
	"time"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/pkg/errors"
	"github.com/whyrusleeping/pianojam/notes"
)

const (
	ticksPerQuarter = 960
	exportBPM       = 120
	velocity        = 100
)

func ticks(d time.Duration) uint32 {
	quarter := time.Minute / exportBPM
	return uint32(int64(d) * ticksPerQuarter / int64(quarter))
}

type smfEvent struct {
	at  uint32
	on  bool
	key uint8
}

// ExportSMF writes the intervals as a single track Standard MIDI File at 120 BPM.
// Keys with no MIDI number are left out.
func ExportSMF(w io.Writer, ivs []Interval) error {
	var evs []smfEvent
	for _, iv := range ivs {
		key, ok := notes.MIDI(iv.Note)
		if !ok {
			continue
		}
		evs = append(evs,
			smfEvent{at: ticks(iv.Start), on: true, key: key},
			smfEvent{at: ticks(iv.End), on: false, key: key},
		)
	}
	// offs before ons at the same tick so back to back notes retrigger
	sort.SliceStable(evs, func(i, j int) bool {
		if evs[i].at != evs[j].at {
			return evs[i].at < evs[j].at
		}
		return !evs[i].on && evs[j].on
	})

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(ticksPerQuarter)

	var tr smf.Track
	tr.Add(0, smf.MetaMeter(4, 4))
	tr.Add(0, smf.MetaTempo(exportBPM))

	var last uint32
	for _, ev := range evs {
		delta := ev.at - last
		last = ev.at
		if ev.on {
			tr.Add(delta, midi.NoteOn(0, ev.key, velocity))
		} else {
			tr.Add(delta, midi.NoteOff(0, ev.key))
		}
	}
	tr.Close(0)

	if err := s.Add(tr); err != nil {
		return errors.Wrap(err, "adding track")
	}
	if _, err := s.WriteTo(w); err != nil {
		return errors.Wrap(err, "writing midi file")
	}
	return nil
}
