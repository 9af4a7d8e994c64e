package broadcast

import (
	"net"
	"testing"
)

// S4 — slow subscriber: a queue of depth 4 fed 10 data frames drops the
// oldest 6, keeping only the newest 4, and reports every drop through
// onDrop.
func TestSubscriber_DropsOldestDataFrameOnOverflow(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	var drops int
	sub := newSubscriber("sub-1", server, "none", 4, func(id string) {
		if id != "sub-1" {
			t.Errorf("onDrop called with id=%q, want sub-1", id)
		}
		drops++
	})

	for i := 0; i < 10; i++ {
		sub.enqueue([]byte{byte(i)}, false)
	}

	sub.mu.Lock()
	depth := len(sub.queue)
	sub.mu.Unlock()
	if depth != 4 {
		t.Fatalf("queue depth = %d, want 4", depth)
	}
	if drops != 6 {
		t.Fatalf("drops = %d, want 6", drops)
	}

	// The 4 surviving frames must be the newest ones (6..9), in order.
	sub.mu.Lock()
	for i, item := range sub.queue {
		want := byte(6 + i)
		if item.raw[0] != want {
			t.Errorf("queue[%d] = %d, want %d", i, item.raw[0], want)
		}
	}
	sub.mu.Unlock()
}

// Heartbeat and Close frames are guaranteed: they are never evicted to
// make room, and are never themselves dropped.
func TestSubscriber_GuaranteedFramesSurviveOverflow(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	sub := newSubscriber("sub-2", server, "none", 2, nil)

	sub.enqueue([]byte{1}, true) // heartbeat
	sub.enqueue([]byte{2}, true) // heartbeat
	dropped := sub.enqueue([]byte{3}, false)
	if !dropped {
		t.Fatal("expected the new data frame to be dropped, not a guaranteed one")
	}

	sub.mu.Lock()
	defer sub.mu.Unlock()
	if len(sub.queue) != 2 {
		t.Fatalf("queue depth = %d, want 2", len(sub.queue))
	}
	for _, item := range sub.queue {
		if !item.guaranteed {
			t.Error("a non-guaranteed frame survived alongside two guaranteed ones")
		}
	}
}
