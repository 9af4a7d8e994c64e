// Package broadcast implements the Broadcast Server component: it
// accepts subscriber connections, authenticates them with a nonce
// challenge, and fans out decoded packets and periodic traffic stats
// over a length-prefixed JSON wire protocol.
package broadcast

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"dpinet.dev/dpinet/internal/aggregator"
	"dpinet.dev/dpinet/internal/errs"
	"dpinet.dev/dpinet/internal/log"
	"dpinet.dev/dpinet/internal/model"
)

// Config configures a Server.
type Config struct {
	Port                 int
	Password             string
	LinkType             model.LinkType
	HeartbeatInterval    time.Duration
	SubscriberQueueDepth int
	Compression          string // "none" | "zlib"
}

// Server accepts subscriber connections and fans out Packet/Stats
// frames to each of them.
type Server struct {
	cfg        Config
	aggregator *aggregator.Aggregator
	listener   net.Listener

	mu          sync.Mutex
	subscribers map[string]*subscriber
	closed      bool
	wg          sync.WaitGroup
}

// New returns a Server bound to cfg. agg receives drop notifications so
// they are reported in the next StatsSnapshot.
func New(cfg Config, agg *aggregator.Aggregator) *Server {
	return &Server{
		cfg:         cfg,
		aggregator:  agg,
		subscribers: make(map[string]*subscriber),
	}
}

// Boot listens on cfg.Port and accepts subscribers until ctx is
// cancelled. It also runs the heartbeat loop that evicts subscribers
// whose socket has gone unresponsive.
func (s *Server) Boot(ctx context.Context) error {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Port))
	if err != nil {
		return fmt.Errorf("broadcast: listen: %w", err)
	}
	s.listener = listener
	log.GetLogger().WithFields(logrus.Fields{
		"component": "broadcast",
		"port":      s.cfg.Port,
	}).Info("broadcast server listening")

	go s.heartbeatLoop(ctx)

	go func() {
		<-ctx.Done()
		s.Shutdown()
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed {
				return nil
			}
			log.GetLogger().WithField("component", "broadcast").WithError(err).Warn("accept failed")
			continue
		}

		s.wg.Add(1)
		go s.handleConn(ctx, conn)
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer s.wg.Done()

	id, err := newSubscriberID()
	if err != nil {
		conn.Close()
		return
	}

	compression, err := handshake(conn, s.cfg.Password, s.cfg.Compression, s.cfg.LinkType)
	if err != nil {
		log.GetLogger().WithFields(logrus.Fields{
			"component":     "broadcast",
			"subscriber_id": id,
		}).WithError(err).Warn("handshake failed")
		conn.Close()
		return
	}

	sub := newSubscriber(id, conn, compression, s.cfg.SubscriberQueueDepth, s.aggregator.RecordDropped)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.subscribers[id] = sub
	s.mu.Unlock()

	log.GetLogger().WithFields(logrus.Fields{
		"component":     "broadcast",
		"subscriber_id": id,
		"compression":   compression,
	}).Info("subscriber connected")

	var readerWG sync.WaitGroup
	readerWG.Add(1)
	go func() {
		defer readerWG.Done()
		s.readLoop(sub)
	}()

	writeErr := sub.runWriter()
	sub.close()
	readerWG.Wait()

	s.mu.Lock()
	delete(s.subscribers, id)
	s.mu.Unlock()

	fields := logrus.Fields{"component": "broadcast", "subscriber_id": id}
	if writeErr != nil {
		log.GetLogger().WithFields(fields).WithError(writeErr).Info("subscriber disconnected")
	} else {
		log.GetLogger().WithFields(fields).Info("subscriber disconnected")
	}
}

// readLoop consumes Subscribe frames from the client to update its
// filter, and Close frames to end the connection early. Every inbound
// frame — data or heartbeat — advances last_seen, which is what the
// heartbeat-timeout eviction check in heartbeatLoop watches; draining
// outbound data alone never counts as liveness. It returns when the
// connection errors or the subscriber is closed from the write side.
func (s *Server) readLoop(sub *subscriber) {
	for {
		frame, err := ReadFrame(sub.conn)
		if err != nil {
			sub.close()
			return
		}
		sub.markSeen()
		switch frame.Kind {
		case FrameSubscribe:
			var payload subscribePayload
			if err := unmarshalPayload(frame, &payload); err != nil {
				continue
			}
			sub.mu.Lock()
			sub.filter = newFilter(payload)
			sub.mu.Unlock()
		case FrameHeartbeat:
			// Keepalive only; last_seen was already advanced above.
		case FrameClose:
			sub.close()
			return
		}
	}
}

// FanOut sends analysis to every subscriber whose filter accepts it.
// The plain and zlib wire forms are each built at most once, no matter
// how many subscribers need them.
func (s *Server) FanOut(analysis model.PacketAnalysis) {
	s.fanOutFrame(FramePacket, analysis, func(a model.PacketAnalysis, sub *subscriber) bool {
		return sub.filter == nil || sub.filter.matches(a)
	}, analysis, false)
}

// FanOutStats sends snapshot, already carrying the per-subscriber
// drop counts recorded via RecordDropped during the interval, to every
// connected subscriber as a guaranteed frame.
func (s *Server) FanOutStats(snapshot model.StatsSnapshot) {
	s.mu.Lock()
	subs := make([]*subscriber, 0, len(s.subscribers))
	for _, sub := range s.subscribers {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	var rawNone, rawZlib []byte
	for _, sub := range subs {
		raw, err := s.framesFor(sub, FrameStats, snapshot, &rawNone, &rawZlib)
		if err != nil {
			continue
		}
		sub.enqueue(raw, true)
	}
}

func (s *Server) fanOutFrame(kind FrameKind, analysis model.PacketAnalysis, accept func(model.PacketAnalysis, *subscriber) bool, payload any, guaranteed bool) {
	s.mu.Lock()
	subs := make([]*subscriber, 0, len(s.subscribers))
	for _, sub := range s.subscribers {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	var rawNone, rawZlib []byte
	for _, sub := range subs {
		if !accept(analysis, sub) {
			continue
		}
		raw, err := s.framesFor(sub, kind, payload, &rawNone, &rawZlib)
		if err != nil {
			continue
		}
		sub.enqueue(raw, guaranteed)
	}
}

func (s *Server) framesFor(sub *subscriber, kind FrameKind, payload any, rawNone, rawZlib *[]byte) ([]byte, error) {
	if sub.compression == "zlib" {
		if *rawZlib == nil {
			built, err := BuildFrame(kind, payload, true)
			if err != nil {
				return nil, err
			}
			*rawZlib = built
		}
		return *rawZlib, nil
	}
	if *rawNone == nil {
		built, err := BuildFrame(kind, payload, false)
		if err != nil {
			return nil, err
		}
		*rawNone = built
	}
	return *rawNone, nil
}

func (s *Server) heartbeatLoop(ctx context.Context) {
	interval := s.cfg.HeartbeatInterval
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			subs := make([]*subscriber, 0, len(s.subscribers))
			for _, sub := range s.subscribers {
				subs = append(subs, sub)
			}
			s.mu.Unlock()

			raw, err := BuildFrame(FrameHeartbeat, struct{}{}, false)
			if err != nil {
				continue
			}
			for _, sub := range subs {
				if sub.sinceLastSeen() > 2*interval {
					log.GetLogger().WithFields(logrus.Fields{
						"component":     "broadcast",
						"subscriber_id": sub.id,
					}).Warn("heartbeat timeout, evicting subscriber")
					s.closeWithReason(sub, CloseReasonHeartbeatTimeout)
					continue
				}
				sub.enqueue(raw, true)
			}
		}
	}
}

// Shutdown closes the listener and every connected subscriber.
func (s *Server) Shutdown() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.listener != nil {
		s.listener.Close()
	}
	subs := make([]*subscriber, 0, len(s.subscribers))
	for _, sub := range s.subscribers {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	raw, err := BuildFrame(FrameClose, closePayload{Reason: CloseReasonShutdown}, false)
	for _, sub := range subs {
		if err == nil {
			sub.enqueueClose(raw)
		} else {
			sub.close()
		}
	}
	s.wg.Wait()
}

// closeWithReason enqueues a Close frame carrying reason as the last
// thing this subscriber's writer will ever send, then lets the writer
// close the connection itself once that frame is flushed. The frame
// still goes through the bounded queue rather than a direct write, so
// it is ordered after anything already queued for this subscriber.
func (s *Server) closeWithReason(sub *subscriber, reason string) {
	raw, err := BuildFrame(FrameClose, closePayload{Reason: reason}, false)
	if err != nil {
		sub.close()
		return
	}
	sub.enqueueClose(raw)
}

func newSubscriberID() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("%w: %v", errs.ErrHandshakeFailed, err)
	}
	return hex.EncodeToString(buf), nil
}
