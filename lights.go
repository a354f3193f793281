package main

import (
	"strings"
	"sync"

	"github.com/whyrusleeping/pianojam/feedback"
	"github.com/whyrusleeping/pianojam/notes"
)

// Lights keeps the set of keys currently drawn as pressed.
type Lights struct {
	mu  sync.Mutex
	lit map[notes.Key]bool
}

func NewLights() *Lights {
	return &Lights{lit: make(map[notes.Key]bool)}
}

func (l *Lights) NoteVisualChange(k notes.Key, s feedback.State) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if s == feedback.On {
		l.lit[k] = true
	} else {
		delete(l.lit, k)
	}
}

func (l *Lights) Lit() []notes.Key {
	l.mu.Lock()
	out := make([]notes.Key, 0, len(l.lit))
	for k := range l.lit {
		out = append(out, k)
	}
	l.mu.Unlock()
	notes.Sort(out)
	return out
}

// Draw renders one character per key: '*' when lit, otherwise '#' for black keys
// and '|' for white.
func (l *Lights) Draw(keys []notes.Key) string {
	l.mu.Lock()
	defer l.mu.Unlock()

	var b strings.Builder
	for _, k := range keys {
		switch {
		case l.lit[k]:
			b.WriteByte('*')
		case notes.IsBlack(k):
			b.WriteByte('#')
		default:
			b.WriteByte('|')
		}
	}
	return b.String()
}
