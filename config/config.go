// Package config holds the settings file for pianojam.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/whyrusleeping/pianojam/metronome"
	"github.com/whyrusleeping/pianojam/notes"
	"github.com/whyrusleeping/pianojam/osc"
	"github.com/whyrusleeping/pianojam/voice"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	Volume float64 `json:"volume"`
	// Timbre is one of sine, square, triangle, sawtooth, piano.
	Timbre string `json:"timbre"`
	Chord  string `json:"chord"`
	// SampleDir holds <note>.raw files for the sampled timbre.
	SampleDir string `json:"sample_dir"`

	RelayURL   string `json:"relay_url"`
	ListenAddr string `json:"listen_addr"`

	MetronomeBPM int `json:"metronome_bpm"`

	// Headless plays into a null device instead of the sound card.
	Headless bool   `json:"headless"`
	LogLevel string `json:"log_level"`
	LogDev   bool   `json:"log_dev"`

	MidiDevice int `json:"midi_device"`
}

func Default() *Config {
	return &Config{
		Volume:       voice.DefaultVolume,
		Timbre:       osc.Sine.String(),
		Chord:        string(notes.Single),
		ListenAddr:   ":5190",
		MetronomeBPM: metronome.DefaultBPM,
		LogLevel:     "info",
		MidiDevice:   -1,
	}
}

// DefaultPath is config.json under the user config directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "pianojam", "config.json"), nil
}

// Load reads path over the defaults. A missing file returns the defaults together with
// an error matching os.ErrNotExist.
func Load(path string) (*Config, error) {
	c := Default()
	bt, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return c, errors.Wrapf(os.ErrNotExist, "config %s", path)
		}
		return nil, err
	}
	if err := json.Unmarshal(bt, c); err != nil {
		return nil, errors.Wrapf(err, "parsing %s", path)
	}
	return c, c.Validate()
}

func (c *Config) Save(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	bt, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, bt, 0o600)
}

func (c *Config) Validate() error {
	if c.Volume < 0 || c.Volume > 1 {
		return errors.Errorf("volume %v out of range [0, 1]", c.Volume)
	}
	if _, err := osc.ParseTimbre(c.Timbre); err != nil {
		return err
	}
	if _, ok := notes.ParseChord(c.Chord); !ok {
		return errors.Errorf("unknown chord %q", c.Chord)
	}
	if c.MetronomeBPM != 0 && c.MetronomeBPM != metronome.ClampBPM(c.MetronomeBPM) {
		return errors.Errorf("metronome bpm %d out of range [%d, %d]", c.MetronomeBPM, metronome.MinBPM, metronome.MaxBPM)
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrap(err, "log level")
	}
	return nil
}

func (c *Config) TimbreValue() osc.Timbre {
	t, _ := osc.ParseTimbre(c.Timbre)
	return t
}

func (c *Config) ChordValue() notes.Chord {
	ch, _ := notes.ParseChord(c.Chord)
	return ch
}
