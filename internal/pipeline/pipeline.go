// Package pipeline wires the capture, dissection, aggregation, and
// broadcast stages into the running thread roster: a capture goroutine,
// a pool of dissection workers, an aggregator goroutine, a single
// fan-out goroutine, and the broadcast acceptor itself, all coordinated
// through bounded channels and torn down by one shared context.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"dpinet.dev/dpinet/internal/aggregator"
	"dpinet.dev/dpinet/internal/broadcast"
	"dpinet.dev/dpinet/internal/capture"
	"dpinet.dev/dpinet/internal/config"
	"dpinet.dev/dpinet/internal/dissect"
	"dpinet.dev/dpinet/internal/log"
	"dpinet.dev/dpinet/internal/model"
	reporterkafka "dpinet.dev/dpinet/internal/reporter/kafka"
)

const (
	capQueueDepth   = 8192
	outQueueDepth   = 8192
	aggQueueDepth   = 16384
	statsQueueDepth = 16
)

// outboundEvent is the tagged union carried on out_queue: a fan-out
// consumer needs to know whether to broadcast a decoded packet or a
// stats snapshot, but both flow through the same ordered queue.
type outboundEvent struct {
	packet *model.PacketAnalysis
	stats  *model.StatsSnapshot
}

// Pipeline owns every long-lived component and the channels between
// them. One Pipeline corresponds to one running server process.
type Pipeline struct {
	cfg      *config.GlobalConfig
	source   *capture.Source
	registry *dissect.Registry
	agg      *aggregator.Aggregator
	server   *broadcast.Server
	reporter *reporterkafka.Reporter

	capQueue   chan model.CapturedFrame
	outQueue   chan outboundEvent
	aggQueue   chan model.PacketAnalysis
	statsQueue chan model.StatsSnapshot
}

// New constructs every component from cfg and opens the capture source,
// but does not start any goroutine yet — that happens in Run.
func New(cfg *config.GlobalConfig) (*Pipeline, error) {
	source := capture.NewSource(capture.Config{
		Interface:   cfg.Capture.Interface,
		OfflineFile: cfg.Capture.OfflineFile,
		Promiscuous: cfg.Capture.Promiscuous,
		SnapLen:     cfg.Capture.SnapLen,
		Filter:      cfg.Capture.Filter,
	})
	if err := source.PostConstruct(); err != nil {
		return nil, err
	}

	agg := aggregator.New(time.Duration(cfg.Stats.IntervalMs) * time.Millisecond)

	server := broadcast.New(broadcast.Config{
		Port:                 cfg.Broadcast.Port,
		Password:             cfg.Broadcast.Password,
		LinkType:             source.LinkType(),
		HeartbeatInterval:    time.Duration(cfg.Broadcast.HeartbeatIntervalMs) * time.Millisecond,
		SubscriberQueueDepth: cfg.Broadcast.SubscriberQueueDepth,
		Compression:          cfg.Broadcast.Compression,
	}, agg)

	var rep *reporterkafka.Reporter
	if cfg.Kafka.Enabled {
		rep = reporterkafka.New(reporterkafka.Config{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
		})
	}

	return &Pipeline{
		cfg:        cfg,
		source:     source,
		registry:   dissect.Bootstrap(),
		agg:        agg,
		server:     server,
		reporter:   rep,
		capQueue:   make(chan model.CapturedFrame, capQueueDepth),
		outQueue:   make(chan outboundEvent, outQueueDepth),
		aggQueue:   make(chan model.PacketAnalysis, aggQueueDepth),
		statsQueue: make(chan model.StatsSnapshot, statsQueueDepth),
	}, nil
}

// Run starts every thread in the roster and blocks until ctx is
// cancelled and they have all exited. Each goroutine returns as soon as
// it sees the cancellation; frames and snapshots still queued at that
// point are not drained.
func (p *Pipeline) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := p.source.Boot(ctx, p.capQueue); err != nil {
			log.GetLogger().WithField("component", "pipeline").WithError(err).Error("capture source exited with error")
		}
	}()

	workers := p.cfg.Dissect.Workers
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.runDissectWorker(ctx, id)
		}(i)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		p.agg.Run(ctx, p.aggQueue, p.statsQueue)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		p.runStatsForwarder(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		p.runFanOut(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := p.server.Boot(ctx); err != nil {
			log.GetLogger().WithField("component", "pipeline").WithError(err).Error("broadcast server exited with error")
		}
	}()

	<-ctx.Done()
	wg.Wait()

	p.source.Shutdown()
	if p.reporter != nil {
		p.reporter.Close()
	}
	return nil
}

// runDissectWorker pops captured frames, decodes them through the
// Parser Registry, and publishes the result to both out_queue (the
// broadcast fan-out) and, non-blockingly, agg_queue (the aggregator) —
// a slow aggregator never backs up the fan-out path.
func (p *Pipeline) runDissectWorker(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-p.capQueue:
			if !ok {
				return
			}
			analysis := dissect.Walk(p.registry, frame)

			select {
			case p.outQueue <- outboundEvent{packet: &analysis}:
			case <-ctx.Done():
				return
			}

			select {
			case p.aggQueue <- analysis:
			default:
				log.GetLogger().WithFields(logrus.Fields{
					"component": "pipeline",
					"worker":    id,
				}).Warn("agg_queue full, dropping analysis from traffic stats")
			}
		}
	}
}

// runStatsForwarder relays each StatsSnapshot the aggregator emits onto
// out_queue, in the same order it was produced, and mirrors it to the
// optional Kafka reporter.
func (p *Pipeline) runStatsForwarder(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-p.statsQueue:
			if !ok {
				return
			}
			select {
			case p.outQueue <- outboundEvent{stats: &snap}:
			case <-ctx.Done():
				return
			}
			if p.reporter != nil {
				if err := p.reporter.Report(ctx, snap); err != nil {
					log.GetLogger().WithField("component", "pipeline").WithError(err).Warn("kafka reporter failed")
				}
			}
		}
	}
}

// runFanOut is the single consumer of out_queue, preserving emission
// order across Packet and Stats frames as they reach the broadcast
// server.
func (p *Pipeline) runFanOut(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-p.outQueue:
			if !ok {
				return
			}
			switch {
			case ev.packet != nil:
				p.server.FanOut(*ev.packet)
			case ev.stats != nil:
				p.server.FanOutStats(*ev.stats)
			}
		}
	}
}
