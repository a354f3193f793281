//go:build !portmidi

package main

import (
	"github.com/pkg/errors"
	"github.com/whyrusleeping/pianojam/notes"
	"go.uber.org/zap"
)

var errNoMidi = errors.New("midi input is not included in this build (build with -tags portmidi)")

func OpenController(id int, target Pianist, table notes.Table, log *zap.Logger) (*MidiController, error) {
	return nil, errNoMidi
}

func listMidiDevices() ([]string, error) {
	return nil, errNoMidi
}
