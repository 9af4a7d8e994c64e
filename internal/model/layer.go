package model

// ProtoTag identifies the protocol a LayerRecord decodes.
type ProtoTag string

const (
	ProtoEthernet ProtoTag = "Ethernet"
	ProtoARP      ProtoTag = "ARP"
	ProtoIPv4     ProtoTag = "IPv4"
	ProtoIPv6     ProtoTag = "IPv6"
	ProtoICMPv4   ProtoTag = "ICMPv4"
	ProtoICMPv6   ProtoTag = "ICMPv6"
	ProtoTCP      ProtoTag = "TCP"
	ProtoUDP      ProtoTag = "UDP"
	ProtoDNS      ProtoTag = "DNS"
	ProtoDHCPv4   ProtoTag = "DHCPv4"
	ProtoDHCPv6   ProtoTag = "DHCPv6"
	ProtoHTTP     ProtoTag = "HTTP"
	ProtoUnknown  ProtoTag = "Unknown"

	// ProtoLink is the synthetic parent tag used for the root dispatch
	// from a capture link-type to the outermost dissector (Ethernet II
	// for link-type 1, per the canonical bindings table).
	ProtoLink ProtoTag = "Link"
)

// LayerRecord is one decoded protocol header within a PacketAnalysis.
// StartOffset/EndOffset are byte offsets into the original captured frame;
// adjacent records in a PacketAnalysis are contiguous
// (outer.EndOffset == inner.StartOffset).
type LayerRecord struct {
	Proto       ProtoTag       `json:"proto"`
	Fields      map[string]any `json:"fields,omitempty"`
	StartOffset int            `json:"start_offset"`
	EndOffset   int            `json:"end_offset"`
	Partial     bool           `json:"partial,omitempty"`
	Error       string         `json:"error,omitempty"`
}
