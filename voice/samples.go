package voice

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/whyrusleeping/pianojam/notes"
	"go.uber.org/zap"
)

// SampleSource supplies raw signed 16-bit little endian mono audio per key.
type SampleSource interface {
	Sample(k notes.Key) ([]byte, bool)
}

type SampleBank map[notes.Key][]byte

func (b SampleBank) Sample(k notes.Key) ([]byte, bool) {
	data, ok := b[k]
	return data, ok
}

// LoadSampleDir reads <dir>/<key>.raw for each key. Keys without a file are left out
// of the bank.
func LoadSampleDir(dir string, keys []notes.Key, log *zap.Logger) (SampleBank, error) {
	if log == nil {
		log = zap.NewNop()
	}

	st, err := os.Stat(dir)
	if err != nil {
		return nil, errors.Wrap(err, "sample dir")
	}
	if !st.IsDir() {
		return nil, errors.Errorf("%s is not a directory", dir)
	}

	bank := make(SampleBank)
	for _, k := range keys {
		fi := filepath.Join(dir, string(k)+".raw")
		data, err := os.ReadFile(fi)
		if err != nil {
			if os.IsNotExist(err) {
				log.Debug("no sample for note", zap.String("note", string(k)))
				continue
			}
			return nil, errors.Wrapf(err, "reading sample %s", fi)
		}
		bank[k] = data
	}
	log.Info("loaded samples", zap.String("dir", dir), zap.Int("count", len(bank)))
	return bank, nil
}
