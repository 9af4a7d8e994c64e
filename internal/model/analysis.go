package model

// PacketAnalysis is a fully dissected frame: the frame id, its capture
// timestamp, and the ordered outermost-to-innermost chain of LayerRecords
// produced by the Parser Registry. It is produced once per frame, handed
// to the Aggregator and Broadcast Server, then discarded.
type PacketAnalysis struct {
	FrameID        uint64        `json:"frame_id"`
	TimestampNanos int64         `json:"ts_ns"`
	Layers         []LayerRecord `json:"layers"`
	ResidualBytes  int           `json:"residual_bytes"`
}
