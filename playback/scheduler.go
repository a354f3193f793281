// Package playback replays recorded intervals against a note player on a logical clock
// that stands still while paused.
package playback

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/whyrusleeping/pianojam/feedback"
	"github.com/whyrusleeping/pianojam/notes"
	"github.com/whyrusleeping/pianojam/osc"
	"github.com/whyrusleeping/pianojam/record"
	"go.uber.org/zap"
)

var ErrNothingToPlay = errors.New("nothing to play")

const DefaultTick = 10 * time.Millisecond

// Player is the sound side of playback. voice.Registry satisfies it.
type Player interface {
	NoteOn(k notes.Key, t osc.Timbre) error
	NoteOff(k notes.Key)
	Kill(k notes.Key)
}

type State int

const (
	Stopped State = iota
	Running
	Paused
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Paused:
		return "paused"
	default:
		return "stopped"
	}
}

type Option func(*Scheduler)

func WithLogger(log *zap.Logger) Option {
	return func(s *Scheduler) { s.log = log }
}

func WithSink(sink feedback.Sink) Option {
	return func(s *Scheduler) { s.sink = sink }
}

// WithProgress is called from the scheduling loop with the percentage played.
func WithProgress(f func(float64)) Option {
	return func(s *Scheduler) { s.progressFn = f }
}

func WithTick(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.tick = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

type sounding struct {
	end    time.Duration
	timbre osc.Timbre
	timer  *time.Timer
}

type held struct {
	remaining time.Duration
	timbre    osc.Timbre
}

type session struct {
	id     string
	ivs    []record.Interval
	played []bool
	next   int
	maxEnd time.Duration

	origin      time.Time
	pausedTotal time.Duration
	pausedAt    time.Time
	paused      bool
	stopped     bool

	active   map[notes.Key]*sounding
	held     map[notes.Key]held
	progress float64

	timers sync.WaitGroup
	quit   chan struct{}
	done   chan struct{}
}

// Scheduler plays one session at a time.
type Scheduler struct {
	player     Player
	log        *zap.Logger
	sink       feedback.Sink
	owned      *feedback.Dispatcher
	progressFn func(float64)
	tick       time.Duration
	now        func() time.Time

	// playMu is held by Play from stopping the old session until the new one is installed
	playMu sync.Mutex

	mu   sync.Mutex
	cond *sync.Cond
	cur  *session
	last float64
}

func New(p Player, opts ...Option) *Scheduler {
	s := &Scheduler{
		player: p,
		log:    zap.NewNop(),
		tick:   DefaultTick,
		now:    time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	if s.sink != nil {
		if _, ok := s.sink.(*feedback.Dispatcher); !ok {
			s.owned = feedback.NewDispatcher(s.sink, s.log)
			s.sink = s.owned
		}
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

func (s *Scheduler) notify(k notes.Key, st feedback.State) {
	if s.sink != nil {
		s.sink.NoteVisualChange(k, st)
	}
}

// Play starts a new session, stopping any current one first. An empty list is rejected
// without touching the current session.
func (s *Scheduler) Play(ivs []record.Interval) error {
	var keep []record.Interval
	for _, iv := range ivs {
		if iv.End > iv.Start {
			keep = append(keep, iv)
		}
	}
	if len(keep) == 0 {
		return ErrNothingToPlay
	}
	sort.SliceStable(keep, func(i, j int) bool { return keep[i].Start < keep[j].Start })

	s.playMu.Lock()
	defer s.playMu.Unlock()
	s.Stop()

	sess := &session{
		id:     uuid.New().String(),
		ivs:    keep,
		played: make([]bool, len(keep)),
		active: make(map[notes.Key]*sounding),
		held:   make(map[notes.Key]held),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	for _, iv := range keep {
		if iv.End > sess.maxEnd {
			sess.maxEnd = iv.End
		}
	}

	s.mu.Lock()
	sess.origin = s.now()
	s.cur = sess
	s.last = 0
	s.mu.Unlock()

	s.log.Info("playback started",
		zap.String("session", sess.id),
		zap.Int("intervals", len(keep)),
		zap.Duration("length", sess.maxEnd))

	go s.loop(sess)
	return nil
}

// logical returns playback time with pauses removed. Caller holds s.mu.
func (s *Scheduler) logical(sess *session) time.Duration {
	at := s.now()
	if sess.paused {
		at = sess.pausedAt
	}
	return sess.logicalAt(at)
}

func (sess *session) logicalAt(at time.Time) time.Duration {
	return at.Sub(sess.origin) - sess.pausedTotal
}

func (s *Scheduler) loop(sess *session) {
	defer close(sess.done)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		s.mu.Lock()
		for sess.paused && !sess.stopped {
			s.cond.Wait()
		}
		if sess.stopped {
			s.mu.Unlock()
			return
		}

		lt := s.logical(sess)
		s.triggerLocked(sess, lt)

		p := 100.0
		if sess.maxEnd > 0 {
			p = float64(lt) / float64(sess.maxEnd) * 100
		}
		finished := lt >= sess.maxEnd && len(sess.active) == 0
		if finished || p > 100 {
			p = 100
		}
		if p < sess.progress {
			p = sess.progress
		}
		sess.progress = p
		s.last = p
		fn := s.progressFn
		if finished {
			sess.stopped = true
			close(sess.quit)
			s.cond.Broadcast()
		}
		s.mu.Unlock()

		if fn != nil {
			fn(p)
		}
		if finished {
			s.log.Info("playback finished", zap.String("session", sess.id))
			return
		}

		select {
		case <-ticker.C:
		case <-sess.quit:
		}
	}
}

// triggerLocked starts every interval whose start has been reached, in start order.
func (s *Scheduler) triggerLocked(sess *session, lt time.Duration) {
	for sess.next < len(sess.ivs) && sess.ivs[sess.next].Start <= lt {
		i := sess.next
		sess.next++
		iv := sess.ivs[i]
		sess.played[i] = true

		if iv.End <= lt {
			// reached too late, never sounds
			continue
		}
		s.startLocked(sess, iv.Note, iv.Timbre, iv.End, iv.End-lt)
	}
}

// startLocked sounds k until logical time end, stopping it after wait.
func (s *Scheduler) startLocked(sess *session, k notes.Key, t osc.Timbre, end, wait time.Duration) {
	if cur, ok := sess.active[k]; ok {
		s.cancelLocked(sess, cur)
		if cur.end > end {
			wait += cur.end - end
			end = cur.end
		}
	}

	if err := s.player.NoteOn(k, t); err != nil {
		s.log.Warn("note failed to start",
			zap.String("session", sess.id),
			zap.String("note", string(k)),
			zap.Error(err))
	}
	s.notify(k, feedback.On)

	n := &sounding{end: end, timbre: t}
	sess.timers.Add(1)
	n.timer = time.AfterFunc(wait, func() { s.companionStop(sess, k, n) })
	sess.active[k] = n
}

func (s *Scheduler) cancelLocked(sess *session, n *sounding) {
	if n.timer != nil && n.timer.Stop() {
		sess.timers.Done()
	}
	n.timer = nil
}

func (s *Scheduler) companionStop(sess *session, k notes.Key, n *sounding) {
	defer sess.timers.Done()

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess.stopped || sess.active[k] != n {
		return
	}
	delete(sess.active, k)
	s.player.NoteOff(k)
	s.notify(k, feedback.Off)
}

// Pause silences the sounding notes and remembers how long each had left. It reports
// whether a running session was paused.
func (s *Scheduler) Pause() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.cur
	if sess == nil || sess.stopped || sess.paused {
		return false
	}

	now := s.now()
	lt := sess.logicalAt(now)
	sess.pausedAt = now
	sess.paused = true

	for k, n := range sess.active {
		s.cancelLocked(sess, n)
		sess.held[k] = held{remaining: n.end - lt, timbre: n.timbre}
		s.player.NoteOff(k)
		s.notify(k, feedback.Off)
		delete(sess.active, k)
	}
	s.log.Debug("playback paused", zap.String("session", sess.id), zap.Duration("at", lt))
	s.cond.Broadcast()
	return true
}

// Resume restarts held notes for exactly their remaining time. Notes with nothing left
// are dropped.
func (s *Scheduler) Resume() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.cur
	if sess == nil || sess.stopped || !sess.paused {
		return false
	}

	now := s.now()
	sess.pausedTotal += now.Sub(sess.pausedAt)
	sess.paused = false
	lt := sess.logicalAt(now)

	for k, h := range sess.held {
		delete(sess.held, k)
		if h.remaining <= 0 {
			continue
		}
		s.log.Debug("resuming note",
			zap.String("session", sess.id),
			zap.String("note", string(k)),
			zap.Duration("remaining", h.remaining))
		s.startLocked(sess, k, h.timbre, lt+h.remaining, h.remaining)
	}
	s.cond.Broadcast()
	return true
}

func (s *Scheduler) TogglePause() State {
	if !s.Pause() {
		s.Resume()
	}
	return s.State()
}

// Stop ends the current session, hard stopping every sounding note. It returns once the
// loop and all pending stop timers are gone. Safe to call at any time.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	sess := s.cur
	if sess == nil {
		s.mu.Unlock()
		return
	}
	if !sess.stopped {
		sess.stopped = true
		close(sess.quit)
	}
	var kill []notes.Key
	for k, n := range sess.active {
		s.cancelLocked(sess, n)
		kill = append(kill, k)
		delete(sess.active, k)
	}
	sess.held = make(map[notes.Key]held)
	sess.paused = false
	s.cond.Broadcast()
	s.mu.Unlock()

	for _, k := range kill {
		s.player.Kill(k)
		s.notify(k, feedback.Off)
	}

	// timers that already fired see stopped and return
	sess.timers.Wait()
	<-sess.done
}

// Wait blocks until the current session ends.
func (s *Scheduler) Wait() {
	if d := s.Done(); d != nil {
		<-d
	}
}

// Done is closed when the current session ends. Nil when nothing was ever played.
func (s *Scheduler) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur == nil {
		return nil
	}
	return s.cur.done
}

func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.cur == nil || s.cur.stopped:
		return Stopped
	case s.cur.paused:
		return Paused
	default:
		return Running
	}
}

// Progress is the last percentage reported by the loop.
func (s *Scheduler) Progress() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Remaining reports how long each note has left to sound, in logical time. While paused
// it returns the durations captured at pause.
func (s *Scheduler) Remaining() map[notes.Key]time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[notes.Key]time.Duration)
	sess := s.cur
	if sess == nil || sess.stopped {
		return out
	}
	if sess.paused {
		for k, h := range sess.held {
			out[k] = h.remaining
		}
		return out
	}
	lt := s.logical(sess)
	for k, n := range sess.active {
		out[k] = n.end - lt
	}
	return out
}

// Close stops playback and releases the scheduler's feedback goroutine.
func (s *Scheduler) Close() {
	s.Stop()
	s.owned.Close()
}
