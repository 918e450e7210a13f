package track

import (
	"context"
	"errors"
	"slices"
)

var ErrEmpty = errors.New("queue is empty")

// Queue is the ordered list of tracks waiting to play.
//
// It is guarded by a one-slot channel instead of a mutex so Advance can give up
// after a deadline when a concurrent mutation holds the queue.
type Queue struct {
	lock  chan struct{}
	items []*Track
}

func NewQueue() *Queue {
	return &Queue{
		lock:  make(chan struct{}, 1),
		items: make([]*Track, 0),
	}
}

func (q *Queue) acquire() {
	q.lock <- struct{}{}
}

func (q *Queue) acquireContext(ctx context.Context) error {
	select {
	case q.lock <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) release() {
	<-q.lock
}

// Enqueue appends t at the tail and returns the new queue length.
func (q *Queue) Enqueue(t *Track) int {
	q.acquire()
	defer q.release()

	q.items = append(q.items, t)
	return len(q.items)
}

// Advance pops the front track. It returns ErrEmpty when nothing is queued and
// the context error when the queue could not be acquired in time.
func (q *Queue) Advance(ctx context.Context) (*Track, error) {
	if err := q.acquireContext(ctx); err != nil {
		return nil, err
	}
	defer q.release()

	if len(q.items) == 0 {
		return nil, ErrEmpty
	}
	t := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return t, nil
}

// RequeueFront puts t back at the head so it plays before anything appended later.
func (q *Queue) RequeueFront(t *Track) {
	if t == nil {
		return
	}
	q.acquire()
	defer q.release()

	q.items = slices.Insert(q.items, 0, t)
}

// RequeueCurrentIfLooping requeues current at the front when looping is on and
// a current track exists. It reports whether anything was requeued.
func (q *Queue) RequeueCurrentIfLooping(current *Track, loop bool) bool {
	if !loop || current == nil {
		return false
	}
	q.RequeueFront(current)
	return true
}

// Peek returns a copy of up to n tracks starting at offset.
func (q *Queue) Peek(offset, n int) []*Track {
	q.acquire()
	defer q.release()

	if offset < 0 {
		offset = 0
	}
	if offset >= len(q.items) || n <= 0 {
		return nil
	}
	end := min(offset+n, len(q.items))
	return slices.Clone(q.items[offset:end])
}

// Clear drops every queued track and returns how many were removed.
func (q *Queue) Clear() int {
	q.acquire()
	defer q.release()

	n := len(q.items)
	clear(q.items)
	q.items = q.items[:0]
	return n
}

func (q *Queue) Len() int {
	q.acquire()
	defer q.release()
	return len(q.items)
}
