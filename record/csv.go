package record

import (
	"bufio"
	"encoding/csv"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/whyrusleeping/pianojam/notes"
	"github.com/whyrusleeping/pianojam/osc"
)

var header = []string{"note", "startTime", "endTime", "timbre"}

// largest millisecond count a time.Duration can hold
const maxMillis = math.MaxInt64 / int64(time.Millisecond)

func ms(d time.Duration) string {
	return strconv.FormatInt(d.Milliseconds(), 10)
}

func WriteCSV(w io.Writer, ivs []Interval) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, iv := range ivs {
		rec := []string{string(iv.Note), ms(iv.Start), ms(iv.End), iv.Timbre.String()}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV loads a recording. Lines that do not parse are skipped and counted; only an
// I/O failure produces an error.
func ReadCSV(r io.Reader) ([]Interval, int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	var out []Interval
	skipped := 0
	first := true
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				skipped++
				continue
			}
			return nil, skipped, errors.Wrap(err, "reading recording")
		}

		if first {
			first = false
			if len(rec) > 0 && strings.EqualFold(strings.TrimSpace(rec[0]), header[0]) {
				continue
			}
		}

		iv, ok := parseRow(rec)
		if !ok {
			skipped++
			continue
		}
		out = append(out, iv)
	}
	return out, skipped, nil
}

func parseRow(rec []string) (Interval, bool) {
	if len(rec) != len(header) {
		return Interval{}, false
	}
	start, err := strconv.ParseInt(strings.TrimSpace(rec[1]), 10, 64)
	if err != nil {
		return Interval{}, false
	}
	end, err := strconv.ParseInt(strings.TrimSpace(rec[2]), 10, 64)
	if err != nil {
		return Interval{}, false
	}
	if start < 0 || end <= start || end > maxMillis {
		return Interval{}, false
	}
	t, err := osc.ParseTimbre(rec[3])
	if err != nil {
		return Interval{}, false
	}
	note := notes.Key(strings.TrimSpace(rec[0]))
	if note == "" {
		return Interval{}, false
	}

	return Interval{
		Note:   note,
		Start:  time.Duration(start) * time.Millisecond,
		End:    time.Duration(end) * time.Millisecond,
		Timbre: t,
	}, true
}

func SaveFile(path string, ivs []Interval) error {
	fi, err := os.Create(path)
	if err != nil {
		return err
	}
	defer fi.Close()

	bw := bufio.NewWriter(fi)
	if err := WriteCSV(bw, ivs); err != nil {
		return errors.Wrapf(err, "writing %s", path)
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	return fi.Close()
}

func LoadFile(path string) ([]Interval, int, error) {
	fi, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer fi.Close()
	return ReadCSV(bufio.NewReader(fi))
}
