//go:build portmidi

package main

import (
	"time"

	"github.com/pkg/errors"
	"github.com/rakyll/portmidi"
	"github.com/whyrusleeping/pianojam/notes"
	"go.uber.org/zap"
)

const pollInterval = 2 * time.Millisecond

// OpenController opens input device id, or the default input when id is negative.
func OpenController(id int, target Pianist, table notes.Table, log *zap.Logger) (*MidiController, error) {
	if err := portmidi.Initialize(); err != nil {
		return nil, errors.Wrap(err, "portmidi init")
	}

	dev := portmidi.DeviceID(id)
	if id < 0 {
		dev = portmidi.DefaultInputDeviceID()
	}
	in, err := portmidi.NewInputStream(dev, 1024)
	if err != nil {
		portmidi.Terminate()
		return nil, errors.Wrapf(err, "opening midi device %d", dev)
	}

	mc := newMidiController(target, table, log)
	quit := make(chan struct{})
	done := make(chan struct{})
	mc.close = func() error {
		close(quit)
		<-done
		err := in.Close()
		portmidi.Terminate()
		return err
	}

	go func() {
		defer close(done)
		for {
			select {
			case <-quit:
				return
			default:
			}
			ready, err := in.Poll()
			if err != nil {
				mc.log.Error("midi poll failed", zap.Error(err))
				return
			}
			if !ready {
				time.Sleep(pollInterval)
				continue
			}
			events, err := in.Read(1024)
			if err != nil {
				mc.log.Error("midi read failed", zap.Error(err))
				return
			}
			for _, ev := range events {
				mc.handle(midiEvent{Status: ev.Status, Data1: ev.Data1, Data2: ev.Data2})
			}
		}
	}()

	return mc, nil
}

func listMidiDevices() ([]string, error) {
	if err := portmidi.Initialize(); err != nil {
		return nil, err
	}
	defer portmidi.Terminate()

	var out []string
	for i := 0; i < portmidi.CountDevices(); i++ {
		info := portmidi.Info(portmidi.DeviceID(i))
		if info == nil || !info.IsInputAvailable {
			continue
		}
		out = append(out, info.Name)
	}
	return out, nil
}
