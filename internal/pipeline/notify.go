package pipeline

import "sync"

// Event describes a completed pipeline run.
type Event struct {
	ProjectIDs       []string
	SummariesFetched int
	UpdatesFetched   int
	UpdatesScored    int
	Failed           bool
}

// Notifier fans out run-completion events to subscribers. It replaces
// ambient global state with an explicit subscribe/unsubscribe lifecycle
// owned by the orchestrator.
type Notifier struct {
	mu   sync.Mutex
	next int
	subs map[int]func(Event)
}

// NewNotifier creates an empty notifier.
func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[int]func(Event))}
}

// Subscribe registers a callback and returns its unsubscribe function.
func (n *Notifier) Subscribe(fn func(Event)) (unsubscribe func()) {
	n.mu.Lock()
	id := n.next
	n.next++
	n.subs[id] = fn
	n.mu.Unlock()

	return func() {
		n.mu.Lock()
		delete(n.subs, id)
		n.mu.Unlock()
	}
}

// Publish delivers an event to all current subscribers.
func (n *Notifier) Publish(e Event) {
	n.mu.Lock()
	subs := make([]func(Event), 0, len(n.subs))
	for _, fn := range n.subs {
		subs = append(subs, fn)
	}
	n.mu.Unlock()

	for _, fn := range subs {
		fn(e)
	}
}
