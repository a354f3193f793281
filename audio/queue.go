package audio

import "sync"

// Queue is a bounded byte FIFO between a voice and the device callback. Write blocks
// while the queue is full; Read never blocks and pads with silence.
type Queue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	buf    []byte
	limit  int
	closed bool
}

func NewQueue(limit int) *Queue {
	if limit < BytesPerSample {
		limit = BytesPerSample
	}
	q := &Queue{limit: limit}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *Queue) Write(p []byte) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := 0
	for len(p) > 0 {
		for !q.closed && len(q.buf) >= q.limit {
			q.cond.Wait()
		}
		if q.closed {
			return n, ErrClosed
		}

		room := q.limit - len(q.buf)
		if room > len(p) {
			room = len(p)
		}
		q.buf = append(q.buf, p[:room]...)
		p = p[room:]
		n += room
	}
	return n, nil
}

func (q *Queue) Read(p []byte) (int, error) {
	q.mu.Lock()
	n := copy(p, q.buf)
	q.buf = q.buf[n:]
	if len(q.buf) == 0 {
		q.buf = nil
	}
	q.cond.Broadcast()
	q.mu.Unlock()

	for i := n; i < len(p); i++ {
		p[i] = 0
	}
	return len(p), nil
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.buf)
}

// Close drops pending data and releases blocked writers. It is safe to call twice.
func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.buf = nil
	q.cond.Broadcast()
	return nil
}
