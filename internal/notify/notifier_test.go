package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifier_PublishReachesAllSubscribers(t *testing.T) {
	n := NewNotifier()

	chA, cancelA := n.Subscribe()
	defer cancelA()
	chB, cancelB := n.Subscribe()
	defer cancelB()

	n.Publish(Event{Type: EventJobSynced, LoadID: "123456", PendingCount: 2})

	for _, ch := range []<-chan Event{chA, chB} {
		select {
		case ev := <-ch:
			assert.Equal(t, EventJobSynced, ev.Type)
			assert.Equal(t, "123456", ev.LoadID)
			assert.Equal(t, 2, ev.PendingCount)
			assert.False(t, ev.At.IsZero())
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive event")
		}
	}
}

func TestNotifier_CancelStopsDelivery(t *testing.T) {
	n := NewNotifier()

	ch, cancel := n.Subscribe()
	cancel()
	require.Equal(t, 0, n.SubscriberCount())

	// Channel is closed after cancel; a second cancel is harmless.
	cancel()
	_, open := <-ch
	assert.False(t, open)

	n.Publish(Event{Type: EventQueued})
}

func TestNotifier_SlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	n := NewNotifier()

	_, cancel := n.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < subscriberBuffer*3; i++ {
			n.Publish(Event{Type: EventQueued, PendingCount: i})
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publisher blocked on a slow subscriber")
	}
}
