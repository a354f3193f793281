package osc

import (
	"encoding/binary"
	"math"
	"testing"
)

func TestWaveRange(t *testing.T) {
	for _, tb := range []Timbre{Sine, Square, Triangle, Sawtooth, Sampled} {
		for ph := -20.0; ph < 20; ph += 0.013 {
			v := Wave(ph, tb)
			if v < -1 || v > 1 || math.IsNaN(v) {
				t.Fatalf("%s at %f => %f", tb, ph, v)
			}
		}
	}
}

func TestWaveShapes(t *testing.T) {
	if v := Wave(0, Square); v != 1 {
		t.Fatalf("square at 0 should be 1, got %f", v)
	}
	if v := Wave(math.Pi*1.5, Square); v != -1 {
		t.Fatalf("square in second half should be -1, got %f", v)
	}
	if v := Wave(math.Pi/2, Triangle); math.Abs(v-1) > 1e-9 {
		t.Fatalf("triangle peak should be 1, got %f", v)
	}
	if v := Wave(0, Sawtooth); v != -1 {
		t.Fatalf("saw at 0 should be -1, got %f", v)
	}
	if v := Wave(math.Pi, Sawtooth); math.Abs(v) > 1e-9 {
		t.Fatalf("saw at pi should be 0, got %f", v)
	}
	if v := Wave(math.Inf(1), Sine); v != 0 {
		t.Fatalf("infinite phase should sound as phase 0, got %f", v)
	}
	if Wave(1, Sampled) != Wave(1, Sine) {
		t.Fatal("sampled should fall back to sine")
	}
}

func TestWrap(t *testing.T) {
	for _, ph := range []float64{-7, -twoPi, 0, 3, twoPi, 100, math.Inf(1), math.Inf(-1), math.NaN()} {
		w := Wrap(ph)
		if w < 0 || w >= twoPi {
			t.Fatalf("Wrap(%f)=%f", ph, w)
		}
	}
}

func TestParseTimbre(t *testing.T) {
	for name, want := range map[string]Timbre{
		"sine": Sine, "SQUARE": Square, " triangle": Triangle,
		"sawtooth": Sawtooth, "sampled": Sampled, "piano": Sampled,
	} {
		got, err := ParseTimbre(name)
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Fatalf("%q => %s", name, got)
		}
	}
	if Sampled.String() != "piano" {
		t.Fatalf("sampled writes as %q", Sampled.String())
	}
	if _, err := ParseTimbre("kazoo"); err == nil {
		t.Fatal("expected error")
	}
}

func TestEnvelope(t *testing.T) {
	e := NewEnvelope(4)
	e.Rise()
	for i := 0; i < 10; i++ {
		e.Next()
	}
	if e.Gain != 1 {
		t.Fatalf("gain after rise: %f", e.Gain)
	}

	e.Fall()
	e.Next()
	e.Rise()
	if g := e.Next(); g != 1 {
		t.Fatalf("rise should resume from current gain, got %f", g)
	}

	e.Fall()
	for i := 0; i < 4; i++ {
		e.Next()
	}
	if !e.Silent() {
		t.Fatal("expected silence after full fall")
	}
}

func TestSampleCursor(t *testing.T) {
	buf := make([]byte, 5)
	binary.LittleEndian.PutUint16(buf, uint16(0x4000))
	v := int16(-32768)
	binary.LittleEndian.PutUint16(buf[2:], uint16(v))

	c := NewSampleCursor(buf)
	s, ok := c.Next()
	if !ok || s != 0.5 {
		t.Fatalf("first sample %f %v", s, ok)
	}
	s, ok = c.Next()
	if !ok || s != -1 {
		t.Fatalf("second sample %f %v", s, ok)
	}
	if _, ok := c.Next(); ok {
		t.Fatal("odd trailing byte should not produce a sample")
	}
	if !c.Done() {
		t.Fatal("cursor should be done")
	}
}

func TestToneRelease(t *testing.T) {
	tn := NewTone(440, Sine, 1, nil)
	buf := make([][2]float64, 512)
	n, ok := tn.Stream(buf)
	if n != len(buf) || !ok {
		t.Fatalf("stream %d %v", n, ok)
	}

	tn.Release()
	total := 0
	for i := 0; i < 10; i++ {
		n, ok := tn.Stream(buf)
		total += n
		if !ok {
			break
		}
	}
	if total > FadeSamples+1 {
		t.Fatalf("release took %d samples, fade is %d", total, FadeSamples)
	}
	if _, ok := tn.Stream(buf); ok {
		t.Fatal("released tone should be drained")
	}
}
