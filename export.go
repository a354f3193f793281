package main

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/whyrusleeping/pianojam/notes"
	"github.com/whyrusleeping/pianojam/record"
	"github.com/whyrusleeping/pianojam/render"
)

// effectOpts are the offline effects applied to a WAV render, zero values disable each.
type effectOpts struct {
	Echo     time.Duration
	Decay    float64
	LowPass  float64
	Compress bool
}

func (o effectOpts) chain() []render.Effect {
	var out []render.Effect
	if o.LowPass > 0 {
		out = append(out, render.NewLowPass(o.LowPass, 0.707))
	}
	if o.Echo > 0 {
		decay := o.Decay
		if decay <= 0 || decay >= 1 {
			decay = 0.4
		}
		out = append(out, render.NewEcho(o.Echo, decay))
	}
	if o.Compress {
		out = append(out, render.NewCompressor(0.5, 0.8, 0.01, 0.0005))
	}
	return out
}

func exportWAV(path string, ivs []record.Interval, table notes.Table, amp float64, fx effectOpts) error {
	if len(ivs) == 0 {
		return errNoRecording
	}
	freq := func(iv record.Interval) (float64, bool) {
		return table.Frequency(iv.Note)
	}
	s := render.Apply(render.Session(ivs, freq, amp), fx.chain()...)

	fi, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "creating wav")
	}
	if err := render.WriteWAV(fi, s); err != nil {
		fi.Close()
		return err
	}
	return fi.Close()
}

func exportMIDI(path string, ivs []record.Interval) error {
	if len(ivs) == 0 {
		return errNoRecording
	}
	fi, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "creating midi file")
	}
	if err := record.ExportSMF(fi, ivs); err != nil {
		fi.Close()
		return err
	}
	return fi.Close()
}
