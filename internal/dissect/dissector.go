// Package dissect implements the parser registry and the byte-precise
// protocol dissector family that decode a captured frame into its
// nested protocol layers.
//
// Each Dissector consumes a byte slice positioned at the start of its
// header and returns a LayerRecord plus a residual slice for the next
// layer. Dissectors never modify the input and never allocate the
// residual: it is always a sub-slice view into the original frame,
// which is what lets PacketAnalysis reconstruct the original bytes by
// concatenating each layer's byte range.
package dissect

import "dpinet.dev/dpinet/internal/model"

// Result is what a Dissector produces for one layer.
type Result struct {
	Layer    model.LayerRecord
	Selector Selector
	Residual []byte
}

// Selector carries whatever value the just-decoded layer exposes for
// picking the next dissector: an EtherType, an IP protocol number, or a
// transport port. ParentTag disambiguates selectors that collide across
// protocols (e.g. port 53 meaning DNS only makes sense under TCP/UDP).
//
// HasFallback and Fallback cover the TCP/UDP port case: the caller tries
// Value (destination port) first and falls back to Fallback (source
// port) only if the registry has no entry for Value.
type Selector struct {
	ParentTag   ProtoTag
	Value       uint32
	HasFallback bool
	Fallback    uint32
}

// ProtoTag re-exports model.ProtoTag so dissector files don't need to
// import model just for the tag type.
type ProtoTag = model.ProtoTag

// Dissector is the contract every protocol parser implements.
type Dissector interface {
	// Tag identifies which protocol this dissector decodes.
	Tag() ProtoTag
	// Dissect parses data, which is positioned at the start of this
	// layer's header, relative to base (the offset of data[0] within
	// the original captured frame, used to compute StartOffset/EndOffset).
	Dissect(data []byte, base int) Result
}
