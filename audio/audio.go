// Package audio defines the output stream contract shared by the sound card backend,
// the null device and tests.
package audio

import (
	"github.com/gopxl/beep"
	"github.com/pkg/errors"
)

const SampleRate = 44100

// BytesPerSample for signed 16-bit little endian mono.
const BytesPerSample = 2

var Format = beep.Format{
	SampleRate:  beep.SampleRate(SampleRate),
	NumChannels: 1,
	Precision:   BytesPerSample,
}

var (
	ErrClosed      = errors.New("stream closed")
	ErrUnavailable = errors.New("audio device unavailable")
)

// Stream accepts PCM for one voice. Write blocks while the device is behind.
type Stream interface {
	Write(pcm []byte) (int, error)
	Close() error
}

type Device interface {
	// Open creates a new stream; name is only used for logging.
	Open(name string) (Stream, error)
	Close() error
}
