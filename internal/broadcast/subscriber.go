package broadcast

import (
	"net"
	"sync"
	"time"
)

// outboundItem is a fully-built wire frame queued for one subscriber.
// guaranteed marks Heartbeat, Close and Stats frames, which the queue
// never drops to make room for something else. terminal marks a Close frame
// that ends the connection once written: runWriter closes the socket
// itself right after writing it, rather than racing a separate close
// call against its own in-flight write.
type outboundItem struct {
	raw        []byte
	guaranteed bool
	terminal   bool
}

// subscriber owns one accepted connection and its bounded outbound
// queue. The queue is a plain slice behind a mutex, not a channel,
// because the drop policy needs to remove an arbitrary element (the
// oldest non-guaranteed frame) rather than only the head.
type subscriber struct {
	id          string
	conn        net.Conn
	compression string
	filter      *filter

	mu     sync.Mutex
	queue  []outboundItem
	closed bool
	notify chan struct{}

	maxDepth int
	lastSeen time.Time
	onDrop   func(id string)
}

func newSubscriber(id string, conn net.Conn, compression string, depth int, onDrop func(id string)) *subscriber {
	return &subscriber{
		id:          id,
		conn:        conn,
		compression: compression,
		notify:      make(chan struct{}, 1),
		maxDepth:    depth,
		lastSeen:    time.Now(),
		onDrop:      onDrop,
	}
}

// enqueue pushes a pre-built frame onto the outbound queue, applying
// the drop-oldest-data-frame policy when the queue is full.
func (s *subscriber) enqueue(raw []byte, guaranteed bool) (dropped bool) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return true
	}

	if len(s.queue) >= s.maxDepth {
		if idx := s.oldestDroppable(); idx >= 0 {
			s.queue = append(s.queue[:idx], s.queue[idx+1:]...)
			dropped = true
		} else if !guaranteed {
			// Queue is saturated with guaranteed frames; the new data
			// frame is dropped instead of evicting one of those.
			s.mu.Unlock()
			if s.onDrop != nil {
				s.onDrop(s.id)
			}
			return true
		}
	}

	s.queue = append(s.queue, outboundItem{raw: raw, guaranteed: guaranteed})
	s.signal()
	s.mu.Unlock()

	if dropped && s.onDrop != nil {
		s.onDrop(s.id)
	}
	return dropped
}

// enqueueClose pushes a terminal Close frame, evicting the oldest
// droppable frame to make room if the queue is full but never itself
// being dropped. A no-op if the subscriber is already closed.
func (s *subscriber) enqueueClose(raw []byte) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if len(s.queue) >= s.maxDepth {
		if idx := s.oldestDroppable(); idx >= 0 {
			s.queue = append(s.queue[:idx], s.queue[idx+1:]...)
		}
	}
	s.queue = append(s.queue, outboundItem{raw: raw, guaranteed: true, terminal: true})
	s.signal()
	s.mu.Unlock()
}

// oldestDroppable returns the index of the oldest non-guaranteed frame
// in the queue, or -1 if every queued frame is guaranteed.
func (s *subscriber) oldestDroppable() int {
	for i, item := range s.queue {
		if !item.guaranteed {
			return i
		}
	}
	return -1
}

func (s *subscriber) signal() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// runWriter drains the outbound queue to the socket until close is
// called. It is the only goroutine that writes to conn. A terminal
// item (a Close frame) ends the connection itself, right after it is
// written, so the frame is never raced against its own socket close.
func (s *subscriber) runWriter() error {
	for {
		item, ok := s.dequeue()
		if !ok {
			return nil
		}
		if _, err := s.conn.Write(item.raw); err != nil {
			return err
		}
		if item.terminal {
			s.close()
			return nil
		}
	}
}

func (s *subscriber) dequeue() (outboundItem, bool) {
	for {
		s.mu.Lock()
		if len(s.queue) > 0 {
			item := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()
			return item, true
		}
		if s.closed {
			s.mu.Unlock()
			return outboundItem{}, false
		}
		s.mu.Unlock()
		<-s.notify
	}
}

func (s *subscriber) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	s.signal()
	s.conn.Close()
}

// markSeen advances last_seen to now. The read loop calls this on every
// inbound frame — data or heartbeat — so a subscriber that keeps
// talking is never evicted even if it has nothing queued to send.
func (s *subscriber) markSeen() {
	s.mu.Lock()
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

// sinceLastSeen reports how long it has been since any frame was
// received from this subscriber, used by the heartbeat-timeout
// eviction check.
func (s *subscriber) sinceLastSeen() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.lastSeen)
}
