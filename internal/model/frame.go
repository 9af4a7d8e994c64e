// Package model holds the data types shared across the capture, dissection,
// aggregation, and broadcast stages of the pipeline.
package model

import "time"

// LinkType identifies the pcap-defined outermost frame format.
type LinkType int

const (
	LinkTypeEthernet LinkType = 1
	LinkTypeRaw      LinkType = 101
)

// CapturedFrame is one raw link-layer frame lifted off the wire (or a
// pcap replay file) by the Capture Source. It is owned by exactly one
// pipeline stage at a time; handoff between stages happens only through
// the bounded queues in internal/pipeline.
type CapturedFrame struct {
	ID        uint64
	Timestamp time.Time
	LinkType  LinkType
	Data      []byte
}
