// Package events carries messages produced outside the Bubble Tea event
// loop (timer callbacks, downloads, cache notifications) into it.
package events

import (
	"sync"

	tea "charm.land/bubbletea/v2"
)

// Msg wraps a message delivered by a Queue. The receiver handles Inner
// and re-arms the queue with Listen.
type Msg struct {
	Inner tea.Msg
}

// Queue is an unbounded FIFO. Push never blocks, so it is safe to call
// from inside Update as well as from other goroutines.
type Queue struct {
	mu     sync.Mutex
	items  []tea.Msg
	signal chan struct{}
	closed bool
}

func NewQueue() *Queue {
	return &Queue{signal: make(chan struct{}, 1)}
}

// Push appends msg. Pushing to a closed queue is a no-op.
func (q *Queue) Push(msg tea.Msg) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.items = append(q.items, msg)
	select {
	case q.signal <- struct{}{}:
	default:
	}
	q.mu.Unlock()
}

// Next blocks until a message is available and returns it. ok is false
// once the queue is closed and drained.
func (q *Queue) Next() (msg tea.Msg, ok bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			msg = q.items[0]
			q.items[0] = nil
			q.items = q.items[1:]
			q.mu.Unlock()
			return msg, true
		}
		if q.closed {
			q.mu.Unlock()
			return nil, false
		}
		q.mu.Unlock()
		<-q.signal
	}
}

// TryNext returns the oldest message without waiting.
func (q *Queue) TryNext() (msg tea.Msg, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	msg = q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return msg, true
}

// Listen returns a command that waits for the next message.
func (q *Queue) Listen() tea.Cmd {
	return func() tea.Msg {
		msg, ok := q.Next()
		if !ok {
			return nil
		}
		return Msg{Inner: msg}
	}
}

// Close wakes any waiting listener. Messages already queued are still
// delivered.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()
	close(q.signal)
}
