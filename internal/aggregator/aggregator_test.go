package aggregator

import (
	"context"
	"testing"
	"time"

	"dpinet.dev/dpinet/internal/model"
)

func packet(srcMAC, etherType string, proto uint8, dstPort uint16) model.PacketAnalysis {
	return model.PacketAnalysis{
		Layers: []model.LayerRecord{
			{
				Proto:       model.ProtoEthernet,
				Fields:      map[string]any{"src_mac": srcMAC, "ether_type": etherType},
				StartOffset: 0,
				EndOffset:   14,
			},
			{
				Proto:       model.ProtoIPv4,
				Fields:      map[string]any{"protocol": proto},
				StartOffset: 14,
				EndOffset:   34,
			},
			{
				Proto:       model.ProtoTCP,
				Fields:      map[string]any{"dst_port": dstPort},
				StartOffset: 34,
				EndOffset:   54,
			},
		},
	}
}

func TestAggregator_RecordAccumulatesPerKeyCounters(t *testing.T) {
	agg := New(time.Hour) // interval never fires during this test
	agg.record(packet("aa:bb:cc:dd:ee:ff", "0x0800", 6, 443))
	agg.record(packet("aa:bb:cc:dd:ee:ff", "0x0800", 6, 443))
	agg.record(packet("11:22:33:44:55:66", "0x0800", 17, 53))

	snap := agg.snapshot(time.Now(), time.Now())

	if snap.Total.Packets != 3 {
		t.Fatalf("total packets = %d, want 3", snap.Total.Packets)
	}
	if snap.BySourceMAC["aa:bb:cc:dd:ee:ff"].Packets != 2 {
		t.Errorf("by_source_mac[aa:bb:cc:dd:ee:ff] packets = %d, want 2",
			snap.BySourceMAC["aa:bb:cc:dd:ee:ff"].Packets)
	}
	if snap.ByDestPort["443"] != 2 {
		t.Errorf("by_dest_port[443] = %d, want 2", snap.ByDestPort["443"])
	}
	if snap.ByDestPort["53"] != 1 {
		t.Errorf("by_dest_port[53] = %d, want 1", snap.ByDestPort["53"])
	}
	if snap.TotalCumulative.Packets != 3 {
		t.Errorf("cumulative packets = %d, want 3", snap.TotalCumulative.Packets)
	}
}

func TestAggregator_SnapshotResetsIntervalCountersNotCumulative(t *testing.T) {
	agg := New(time.Hour)
	agg.record(packet("aa:bb:cc:dd:ee:ff", "0x0800", 6, 443))
	first := agg.snapshot(time.Now(), time.Now())
	if first.Total.Packets != 1 {
		t.Fatalf("first interval packets = %d, want 1", first.Total.Packets)
	}

	second := agg.snapshot(time.Now(), time.Now())
	if second.Total.Packets != 0 {
		t.Errorf("second interval packets = %d, want 0 (reset)", second.Total.Packets)
	}
	if second.TotalCumulative.Packets != 1 {
		t.Errorf("cumulative packets = %d, want 1 (carried forward)", second.TotalCumulative.Packets)
	}
}

func TestAggregator_RecordDroppedSurfacesInNextSnapshot(t *testing.T) {
	agg := New(time.Hour)
	agg.RecordDropped("sub-1")
	agg.RecordDropped("sub-1")
	agg.RecordDropped("sub-2")

	snap := agg.snapshot(time.Now(), time.Now())
	if snap.DroppedForSlowConsumer["sub-1"] != 2 {
		t.Errorf("dropped[sub-1] = %d, want 2", snap.DroppedForSlowConsumer["sub-1"])
	}
	if snap.DroppedForSlowConsumer["sub-2"] != 1 {
		t.Errorf("dropped[sub-2] = %d, want 1", snap.DroppedForSlowConsumer["sub-2"])
	}

	// The counters are per-interval: a second snapshot with no new
	// drops reports none.
	second := agg.snapshot(time.Now(), time.Now())
	if len(second.DroppedForSlowConsumer) != 0 {
		t.Errorf("expected no drops in the second snapshot, got %v", second.DroppedForSlowConsumer)
	}
}

func TestAggregator_RunEmitsOnTickerAndStopsOnCancel(t *testing.T) {
	agg := New(10 * time.Millisecond)
	in := make(chan model.PacketAnalysis, 1)
	out := make(chan model.StatsSnapshot, 4)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		agg.Run(ctx, in, out)
		close(done)
	}()

	in <- packet("aa:bb:cc:dd:ee:ff", "0x0800", 6, 443)

	select {
	case snap := <-out:
		if snap.Total.Packets == 0 {
			t.Error("expected the emitted snapshot to include the recorded packet")
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not emit a snapshot in time")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not exit after context cancellation")
	}
}
