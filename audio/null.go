package audio

import (
	"sync"
	"sync/atomic"
	"time"
)

// NullDevice discards audio at the speed a sound card would consume it.
type NullDevice struct {
	// Written counts bytes accepted by all streams.
	Written atomic.Int64
	// Fast skips the real time pacing.
	Fast bool
}

func (d *NullDevice) Open(name string) (Stream, error) {
	return &nullStream{dev: d, quit: make(chan struct{})}, nil
}

func (d *NullDevice) Close() error {
	return nil
}

type nullStream struct {
	dev  *NullDevice
	quit chan struct{}
	once sync.Once
}

func (s *nullStream) Write(pcm []byte) (int, error) {
	select {
	case <-s.quit:
		return 0, ErrClosed
	default:
	}

	if !s.dev.Fast {
		d := Format.SampleRate.D(len(pcm) / BytesPerSample)
		t := time.NewTimer(d)
		select {
		case <-t.C:
		case <-s.quit:
			t.Stop()
			return 0, ErrClosed
		}
	}
	s.dev.Written.Add(int64(len(pcm)))
	return len(pcm), nil
}

func (s *nullStream) Close() error {
	s.once.Do(func() { close(s.quit) })
	return nil
}
