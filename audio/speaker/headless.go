//go:build headless

package speaker

import (
	"github.com/whyrusleeping/pianojam/audio"
	"go.uber.org/zap"
)

// Device is never available in headless builds.
type Device struct{}

func New(queueBytes int, log *zap.Logger) (*Device, error) {
	return nil, audio.ErrUnavailable
}

func (d *Device) Open(name string) (audio.Stream, error) {
	return nil, audio.ErrUnavailable
}

func (d *Device) Close() error {
	return nil
}
