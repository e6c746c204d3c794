package netcache

import "sync"

// Event types published when a revalidation finds new content.
const (
	EventDataUpdated  = "data-updated"
	EventShellUpdated = "shell-updated"
)

// Event tells consumers that a cached resource changed.
type Event struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

// Notifier fans events out to subscribers. Publishing never blocks; a
// subscriber whose buffer is full misses the event.
type Notifier struct {
	mu   sync.Mutex
	next int
	subs map[int]chan Event
}

// NewNotifier returns a Notifier without subscribers.
func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[int]chan Event)}
}

// Subscribe registers a consumer. The returned func unsubscribes and
// closes the channel.
func (n *Notifier) Subscribe(buffer int) (<-chan Event, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()
	id := n.next
	n.next++
	ch := make(chan Event, max(1, buffer))
	n.subs[id] = ch
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			n.mu.Lock()
			defer n.mu.Unlock()
			delete(n.subs, id)
			close(ch)
		})
	}
}

// Publish delivers e to every subscriber.
func (n *Notifier) Publish(e Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, ch := range n.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Subscribers returns the number of active subscribers.
func (n *Notifier) Subscribers() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subs)
}
