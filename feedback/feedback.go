// Package feedback carries note on/off notifications to whatever draws the keyboard.
package feedback

import (
	"sync"

	"github.com/whyrusleeping/pianojam/notes"
	"go.uber.org/zap"
)

type State int

const (
	Off State = iota
	On
)

func (s State) String() string {
	if s == On {
		return "on"
	}
	return "off"
}

type Sink interface {
	NoteVisualChange(k notes.Key, s State)
}

type SinkFunc func(k notes.Key, s State)

func (f SinkFunc) NoteVisualChange(k notes.Key, s State) { f(k, s) }

type change struct {
	key   notes.Key
	state State
}

// Dispatcher hands changes to a Sink from its own goroutine so callers never wait on it.
// The backlog is unbounded; changes are delivered in order.
type Dispatcher struct {
	sink Sink
	log  *zap.Logger

	mu      sync.Mutex
	cond    *sync.Cond
	pending []change
	closed  bool
	done    chan struct{}
}

// NewDispatcher starts delivering to sink. A nil sink discards everything.
func NewDispatcher(sink Sink, log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	d := &Dispatcher{
		sink: sink,
		log:  log,
		done: make(chan struct{}),
	}
	d.cond = sync.NewCond(&d.mu)
	go d.run()
	return d
}

func (d *Dispatcher) NoteVisualChange(k notes.Key, s State) {
	if d == nil || d.sink == nil {
		return
	}
	d.mu.Lock()
	if !d.closed {
		d.pending = append(d.pending, change{k, s})
		d.cond.Signal()
	}
	d.mu.Unlock()
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for {
		d.mu.Lock()
		for len(d.pending) == 0 && !d.closed {
			d.cond.Wait()
		}
		batch := d.pending
		d.pending = nil
		closed := d.closed
		d.mu.Unlock()

		for _, c := range batch {
			d.deliver(c)
		}
		if closed && len(batch) == 0 {
			return
		}
	}
}

func (d *Dispatcher) deliver(c change) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("feedback sink panicked", zap.String("note", string(c.key)), zap.Any("panic", r))
		}
	}()
	if d.sink != nil {
		d.sink.NoteVisualChange(c.key, c.state)
	}
}

// Close delivers whatever is queued and stops the goroutine.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.mu.Lock()
	d.closed = true
	d.cond.Broadcast()
	d.mu.Unlock()
	<-d.done
}
