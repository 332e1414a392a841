package notify

import (
	"sync"
	"time"
)

type EventType string

const (
	EventQueued       EventType = "queued"
	EventSyncStarted  EventType = "sync_started"
	EventJobSynced    EventType = "job_synced"
	EventSyncFailed   EventType = "sync_failed"
	EventQueueDrained EventType = "queue_drained"
)

// Event is one queue-state change pushed to the terminal UI.
type Event struct {
	Type         EventType `json:"type"`
	JobID        string    `json:"job_id,omitempty"`
	LoadID       string    `json:"load_id,omitempty"`
	PendingCount int       `json:"pending_count"`
	IsSyncing    bool      `json:"is_syncing"`
	Message      string    `json:"message,omitempty"`
	At           time.Time `json:"at"`
}

const subscriberBuffer = 16

// Notifier fans queue events out to subscribers. It is constructed once in
// main and passed by reference; there is no package-level registry.
type Notifier struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan Event
}

func NewNotifier() *Notifier {
	return &Notifier{
		subs: make(map[int]chan Event),
	}
}

// Subscribe returns a receive channel and a cancel function. The channel is
// buffered; a subscriber that falls behind loses events rather than blocking
// the publisher.
func (n *Notifier) Subscribe() (<-chan Event, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.nextID
	n.nextID++
	ch := make(chan Event, subscriberBuffer)
	n.subs[id] = ch

	cancel := func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		if existing, ok := n.subs[id]; ok {
			delete(n.subs, id)
			close(existing)
		}
	}
	return ch, cancel
}

func (n *Notifier) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	for _, ch := range n.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (n *Notifier) SubscriberCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subs)
}
