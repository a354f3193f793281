package main

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/whyrusleeping/pianojam/audio"
	"github.com/whyrusleeping/pianojam/audio/speaker"
	"github.com/whyrusleeping/pianojam/config"
	"github.com/whyrusleeping/pianojam/feedback"
	"github.com/whyrusleeping/pianojam/keyboard"
	"github.com/whyrusleeping/pianojam/metronome"
	"github.com/whyrusleeping/pianojam/notes"
	"github.com/whyrusleeping/pianojam/playback"
	"github.com/whyrusleeping/pianojam/record"
	"github.com/whyrusleeping/pianojam/relay"
	"github.com/whyrusleeping/pianojam/voice"
	"go.uber.org/zap"
)

// 50ms of audio per voice
const queueBytes = audio.SampleRate * audio.BytesPerSample / 20

var errNoRecording = errors.New("no recording loaded")

// Engine owns every long lived piece of a playing session.
type Engine struct {
	cfg   *config.Config
	log   *zap.Logger
	table notes.FrequencyTable

	dev    audio.Device
	lights *Lights
	sink   *feedback.Dispatcher
	voices *voice.Registry
	rec    *record.Recorder
	kb     *keyboard.Keyboard
	sched  *playback.Scheduler
	metro  *metronome.Metronome
	arp    *metronome.Arp

	mu          sync.Mutex
	take        []record.Interval
	relay       *relay.Client
	relayCancel context.CancelFunc
	relayDone   chan struct{}
	midi        *MidiController
}

// openDevice falls back to the null device when the sound card cannot be opened.
func openDevice(cfg *config.Config, log *zap.Logger) audio.Device {
	if cfg.Headless {
		return &audio.NullDevice{}
	}
	dev, err := speaker.New(queueBytes, log)
	if err != nil {
		log.Warn("no sound card, playing silently", zap.Error(err))
		return &audio.NullDevice{}
	}
	return dev
}

func NewEngine(cfg *config.Config, dev audio.Device, log *zap.Logger) (*Engine, error) {
	if log == nil {
		log = zap.NewNop()
	}

	e := &Engine{
		cfg:    cfg,
		log:    log,
		table:  notes.Standard(),
		dev:    dev,
		lights: NewLights(),
		rec:    record.NewRecorder(),
	}
	e.sink = feedback.NewDispatcher(e.lights, log.Named("feedback"))

	vopts := []voice.Option{
		voice.WithLogger(log.Named("voice")),
		voice.WithSink(e.sink),
		voice.WithVolume(voice.NewVolume(cfg.Volume)),
	}
	if cfg.SampleDir != "" {
		bank, err := voice.LoadSampleDir(cfg.SampleDir, e.table.Keys(), log)
		if err != nil {
			e.sink.Close()
			return nil, err
		}
		vopts = append(vopts, voice.WithSamples(bank))
	}
	e.voices = voice.New(e.table, dev, vopts...)

	e.kb = keyboard.New(e.voices, e.table,
		keyboard.WithLogger(log.Named("keyboard")),
		keyboard.WithRecorder(e.rec),
		keyboard.WithTimbre(cfg.TimbreValue()),
		keyboard.WithChord(cfg.ChordValue()),
	)
	e.sched = playback.New(e.voices,
		playback.WithLogger(log.Named("playback")),
		playback.WithSink(e.sink),
	)
	e.metro = metronome.New(e.voices, cfg.MetronomeBPM, log.Named("metronome"))
	e.arp = metronome.NewArp(e.voices, log.Named("arp"))

	return e, nil
}

// StopRecording ends the take and keeps its intervals for play, save and export.
func (e *Engine) StopRecording() ([]record.Interval, error) {
	if !e.rec.Recording() {
		return nil, record.ErrNotRecording
	}
	ivs := record.ToIntervals(e.rec.StopRecording())

	e.mu.Lock()
	e.take = ivs
	e.mu.Unlock()
	return ivs, nil
}

func (e *Engine) Take() []record.Interval {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]record.Interval(nil), e.take...)
}

func (e *Engine) SetTake(ivs []record.Interval) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.take = ivs
}

func (e *Engine) Load(path string) (int, int, error) {
	ivs, skipped, err := record.LoadFile(path)
	if err != nil {
		return 0, 0, err
	}
	if skipped > 0 {
		e.log.Warn("skipped malformed recording lines", zap.String("path", path), zap.Int("skipped", skipped))
	}
	e.SetTake(ivs)
	return len(ivs), skipped, nil
}

func (e *Engine) Save(path string) error {
	ivs := e.Take()
	if len(ivs) == 0 {
		return errNoRecording
	}
	return record.SaveFile(path, ivs)
}

func (e *Engine) Play() error {
	ivs := e.Take()
	if len(ivs) == 0 {
		return errNoRecording
	}
	return e.sched.Play(ivs)
}

// Connect joins a relay hub, replacing any existing connection.
func (e *Engine) Connect(url string) error {
	e.Disconnect()

	ctx, cancel := context.WithCancel(context.Background())
	c, err := relay.Dial(ctx, url, e.log.Named("relay"))
	if err != nil {
		cancel()
		return err
	}

	done := make(chan struct{})
	e.mu.Lock()
	e.relay = c
	e.relayCancel = cancel
	e.relayDone = done
	e.mu.Unlock()
	e.kb.SetTransport(c)

	go func() {
		defer close(done)
		err := c.Run(ctx, func(m relay.Message) {
			e.kb.Remote(m.Kind, m.Note, m.Timbre)
		})
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			e.log.Warn("relay connection lost", zap.Error(err))
		}
		e.mu.Lock()
		if e.relay == c {
			e.relay, e.relayCancel, e.relayDone = nil, nil, nil
			e.kb.SetTransport(nil)
		}
		e.mu.Unlock()
		cancel()
	}()
	return nil
}

func (e *Engine) Connected() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.relay != nil
}

func (e *Engine) Disconnect() {
	e.mu.Lock()
	c, cancel, done := e.relay, e.relayCancel, e.relayDone
	e.relay, e.relayCancel, e.relayDone = nil, nil, nil
	e.mu.Unlock()
	if c == nil {
		return
	}

	e.kb.SetTransport(nil)
	cancel()
	<-done
}

// AttachMidi opens a hardware controller driving the keyboard. Control 7, the
// channel volume knob, sets the master volume.
func (e *Engine) AttachMidi(id int) error {
	mc, err := OpenController(id, e.kb, e.table, e.log.Named("midi"))
	if err != nil {
		return err
	}
	mc.BindKnob(7, func(v float64) { e.voices.SetVolume(v) }, unitRange)

	e.mu.Lock()
	old := e.midi
	e.midi = mc
	e.mu.Unlock()
	if old != nil {
		old.Shutdown()
	}
	return nil
}

func (e *Engine) Close() error {
	e.mu.Lock()
	mc := e.midi
	e.midi = nil
	e.mu.Unlock()
	if mc != nil {
		if err := mc.Shutdown(); err != nil {
			e.log.Warn("closing midi input", zap.Error(err))
		}
	}

	e.Disconnect()
	e.arp.Stop()
	e.metro.Stop()
	e.sched.Close()
	e.kb.Reset()

	err := e.voices.Close()
	e.sink.Close()
	if cerr := e.dev.Close(); err == nil {
		err = cerr
	}
	return err
}
