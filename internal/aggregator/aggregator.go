// Package aggregator implements the Aggregator component: it taps the
// stream of decoded packets, keeps running traffic counters, and emits
// a StatsSnapshot on a fixed interval.
package aggregator

import (
	"context"
	"strconv"
	"sync"
	"time"

	"dpinet.dev/dpinet/internal/log"
	"dpinet.dev/dpinet/internal/model"
)

// Aggregator is a single-writer accumulator: only its own Run goroutine
// ever touches the counter maps, so no locking is needed around them.
// The one exception is droppedForSlowConsumer, which the broadcast
// server updates from its own goroutines via RecordDropped and which is
// therefore guarded by dropMu.
type Aggregator struct {
	interval time.Duration

	bySourceMAC  map[string]model.Counter
	byEtherType  map[string]model.Counter
	byIPProtocol map[string]model.Counter
	byDestPort   map[string]uint64
	total        model.Counter
	cumulative   model.Counter

	dropMu                 sync.Mutex
	droppedForSlowConsumer map[string]uint64
}

// New returns an Aggregator that emits a StatsSnapshot every interval.
func New(interval time.Duration) *Aggregator {
	return &Aggregator{
		interval:               interval,
		bySourceMAC:            make(map[string]model.Counter),
		byEtherType:            make(map[string]model.Counter),
		byIPProtocol:           make(map[string]model.Counter),
		byDestPort:             make(map[string]uint64),
		droppedForSlowConsumer: make(map[string]uint64),
	}
}

// RecordDropped attributes one dropped data frame to subscriberID, for
// reporting in the next StatsSnapshot. Safe to call concurrently with
// Run from any broadcast-server goroutine.
func (a *Aggregator) RecordDropped(subscriberID string) {
	a.dropMu.Lock()
	a.droppedForSlowConsumer[subscriberID]++
	a.dropMu.Unlock()
}

// Run consumes decoded packets from in, updating running counters, and
// emits a differential StatsSnapshot on out every interval. It returns
// when ctx is cancelled or in is closed.
func (a *Aggregator) Run(ctx context.Context, in <-chan model.PacketAnalysis, out chan<- model.StatsSnapshot) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	intervalStart := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case analysis, ok := <-in:
			if !ok {
				return
			}
			a.record(analysis)
		case <-ticker.C:
			now := time.Now()
			snap := a.snapshot(intervalStart, now)
			intervalStart = now
			select {
			case out <- snap:
			case <-ctx.Done():
				return
			default:
				log.GetLogger().WithField("component", "aggregator").Warn("stats output channel full, dropping snapshot")
			}
		}
	}
}

func (a *Aggregator) record(analysis model.PacketAnalysis) {
	size := uint64(0)
	for _, layer := range analysis.Layers {
		if layer.EndOffset > layer.StartOffset {
			size += uint64(layer.EndOffset - layer.StartOffset)
		}
	}
	size += uint64(analysis.ResidualBytes)

	a.total.Packets++
	a.total.Bytes += size
	a.cumulative.Packets++
	a.cumulative.Bytes += size

	var etherType, ipProto, srcMAC string
	var dstPort uint64
	haveDstPort := false

	for _, layer := range analysis.Layers {
		switch layer.Proto {
		case model.ProtoEthernet:
			if mac, ok := layer.Fields["src_mac"].(string); ok {
				srcMAC = mac
			}
			if et, ok := layer.Fields["ether_type"].(string); ok {
				etherType = et
			}
		case model.ProtoIPv4, model.ProtoIPv6:
			if p, ok := layer.Fields["protocol"]; ok {
				ipProto = fmtProto(p)
			}
		case model.ProtoTCP, model.ProtoUDP:
			if p, ok := layer.Fields["dst_port"]; ok {
				if dp, ok := toUint64(p); ok {
					dstPort = dp
					haveDstPort = true
				}
			}
		}
	}

	if srcMAC != "" {
		c := a.bySourceMAC[srcMAC]
		c.Packets++
		c.Bytes += size
		a.bySourceMAC[srcMAC] = c
	}
	if etherType != "" {
		c := a.byEtherType[etherType]
		c.Packets++
		c.Bytes += size
		a.byEtherType[etherType] = c
	}
	if ipProto != "" {
		c := a.byIPProtocol[ipProto]
		c.Packets++
		c.Bytes += size
		a.byIPProtocol[ipProto] = c
	}
	if haveDstPort {
		key := strconv.FormatUint(dstPort, 10)
		a.byDestPort[key]++
	}
}

func (a *Aggregator) snapshot(start, end time.Time) model.StatsSnapshot {
	a.dropMu.Lock()
	dropped := a.droppedForSlowConsumer
	a.droppedForSlowConsumer = make(map[string]uint64)
	a.dropMu.Unlock()

	snap := model.StatsSnapshot{
		IntervalStartNanos:     start.UnixNano(),
		IntervalEndNanos:       end.UnixNano(),
		BySourceMAC:            a.bySourceMAC,
		ByEtherType:            a.byEtherType,
		ByIPProtocol:           a.byIPProtocol,
		ByDestPort:             a.byDestPort,
		Total:                  a.total,
		TotalCumulative:        a.cumulative,
		DroppedForSlowConsumer: dropped,
	}

	a.bySourceMAC = make(map[string]model.Counter)
	a.byEtherType = make(map[string]model.Counter)
	a.byIPProtocol = make(map[string]model.Counter)
	a.byDestPort = make(map[string]uint64)
	a.total = model.Counter{}

	return snap
}

func fmtProto(v any) string {
	switch t := v.(type) {
	case byte:
		return strconv.FormatUint(uint64(t), 10)
	default:
		return ""
	}
}

func toUint64(v any) (uint64, bool) {
	switch t := v.(type) {
	case uint16:
		return uint64(t), true
	case int:
		return uint64(t), true
	case uint64:
		return t, true
	default:
		return 0, false
	}
}
