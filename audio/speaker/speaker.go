//go:build !headless

// Package speaker plays voice streams on the sound card through oto.
package speaker

import (
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/pkg/errors"
	"github.com/whyrusleeping/pianojam/audio"
	"go.uber.org/zap"
)

// one oto context per process
var (
	otoOnce sync.Once
	otoCtx  *oto.Context
	otoErr  error
)

type Device struct {
	ctx   *oto.Context
	log   *zap.Logger
	queue int

	mu      sync.Mutex
	streams map[*otoStream]struct{}
}

// New opens the sound card. queueBytes bounds how far ahead each stream may
// be written.
func New(queueBytes int, log *zap.Logger) (*Device, error) {
	if log == nil {
		log = zap.NewNop()
	}

	otoOnce.Do(func() {
		ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   audio.SampleRate,
			ChannelCount: 1,
			Format:       oto.FormatSignedInt16LE,
			BufferSize:   20 * time.Millisecond,
		})
		if err != nil {
			otoErr = err
			return
		}
		<-ready
		otoCtx = ctx
	})
	if otoErr != nil {
		return nil, errors.Wrap(audio.ErrUnavailable, otoErr.Error())
	}

	return &Device{
		ctx:     otoCtx,
		log:     log,
		queue:   queueBytes,
		streams: make(map[*otoStream]struct{}),
	}, nil
}

type otoStream struct {
	dev    *Device
	name   string
	q      *audio.Queue
	player *oto.Player
	once   sync.Once
}

func (d *Device) Open(name string) (audio.Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.streams == nil {
		return nil, audio.ErrUnavailable
	}

	q := audio.NewQueue(d.queue)
	p := d.ctx.NewPlayer(q)
	p.SetBufferSize(d.queue)
	p.Play()

	s := &otoStream{dev: d, name: name, q: q, player: p}
	d.streams[s] = struct{}{}
	d.log.Debug("opened stream", zap.String("name", name))
	return s, nil
}

func (s *otoStream) Write(pcm []byte) (int, error) {
	return s.q.Write(pcm)
}

func (s *otoStream) Close() error {
	var err error
	s.once.Do(func() {
		s.q.Close()
		err = s.player.Close()

		s.dev.mu.Lock()
		delete(s.dev.streams, s)
		s.dev.mu.Unlock()
		s.dev.log.Debug("closed stream", zap.String("name", s.name))
	})
	return err
}

// Close shuts every open stream. The process wide context stays alive.
func (d *Device) Close() error {
	d.mu.Lock()
	streams := d.streams
	d.streams = nil
	d.mu.Unlock()

	for s := range streams {
		s.Close()
	}
	return nil
}
