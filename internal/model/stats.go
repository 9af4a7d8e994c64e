package model

// Counter is a byte/packet pair accumulated by the Aggregator.
type Counter struct {
	Bytes   uint64 `json:"bytes"`
	Packets uint64 `json:"packets"`
}

// StatsSnapshot is a periodic, differential view of the Aggregator's
// counters: everything here resets at each interval boundary except
// TotalCumulative, which is carried forward so clients can verify
// continuity across snapshots.
type StatsSnapshot struct {
	IntervalStartNanos int64              `json:"interval_start_ns"`
	IntervalEndNanos   int64              `json:"interval_end_ns"`
	BySourceMAC        map[string]Counter `json:"by_source_mac"`
	ByEtherType        map[string]Counter `json:"by_ether_type"`
	ByIPProtocol       map[string]Counter `json:"by_ip_protocol"`
	ByDestPort         map[string]uint64  `json:"by_dest_port"`
	Total              Counter            `json:"total"`
	TotalCumulative    Counter            `json:"total_cumulative"`

	// DroppedForSlowConsumer reports, per subscriber id, how many data
	// frames that subscriber's bounded outbound queue dropped (evicted, or
	// refused when full of guaranteed frames) since the previous snapshot.
	DroppedForSlowConsumer map[string]uint64 `json:"dropped_for_slow_consumer,omitempty"`
}
