package audio

import (
	"context"
	"errors"
	"sync"
)

// ErrQueueClosed is returned by [Queue.Pop] once the queue has been closed and
// every pending frame has been consumed.
var ErrQueueClosed = errors.New("audio: queue closed")

// Queue is an unbounded FIFO of frames. Push never blocks, so a device
// callback can hand frames over without waiting on the consumer.
//
// Queue is safe for concurrent use by any number of producers. It is designed
// for a single consumer; with several consumers every frame is still delivered
// exactly once, but wake-ups may be coalesced.
type Queue struct {
	mu     sync.Mutex
	items  []Frame
	closed bool

	// notify has capacity 1 and is signalled whenever items become available.
	notify chan struct{}
}

// NewQueue returns an empty, ready-to-use [Queue].
func NewQueue() *Queue {
	return &Queue{notify: make(chan struct{}, 1)}
}

// Push appends f to the tail of the queue. Frames pushed after [Queue.Close]
// are silently dropped.
func (q *Queue) Push(f Frame) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.items = append(q.items, f)
	q.mu.Unlock()
	q.signal()
}

// Pop removes and returns the frame at the head of the queue, blocking while
// the queue is empty. It returns ctx.Err() if ctx is cancelled while waiting
// and [ErrQueueClosed] once the queue is closed and empty.
func (q *Queue) Pop(ctx context.Context) (Frame, error) {
	for {
		if f, ok := q.TryPop(); ok {
			return f, nil
		}

		q.mu.Lock()
		closed := q.closed && len(q.items) == 0
		q.mu.Unlock()
		if closed {
			return Frame{}, ErrQueueClosed
		}

		select {
		case <-ctx.Done():
			return Frame{}, ctx.Err()
		case <-q.notify:
		}
	}
}

// TryPop removes and returns the head frame without blocking. The boolean is
// false when the queue is empty.
func (q *Queue) TryPop() (Frame, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return Frame{}, false
	}
	f := q.items[0]
	q.items[0] = Frame{}
	q.items = q.items[1:]
	if len(q.items) == 0 {
		// Release the backing array so a long session does not pin it.
		q.items = nil
	}
	return f, true
}

// DrainAll discards every pending frame and returns how many were dropped.
func (q *Queue) DrainAll() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.items)
	q.items = nil
	return n
}

// Len returns the number of pending frames.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close marks the queue as closed. Pending frames remain poppable; further
// pushes are dropped and a blocked [Queue.Pop] returns once the queue drains.
// Calling Close more than once is safe.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.signal()
}

func (q *Queue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}
