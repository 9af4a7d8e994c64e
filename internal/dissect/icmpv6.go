package dissect

import (
	"encoding/binary"

	"dpinet.dev/dpinet/internal/model"
)

const icmpv6MinHeaderLen = 8

var icmpv6Types = map[uint8]string{
	1:   "destination_unreachable",
	3:   "time_exceeded",
	128: "echo_request",
	129: "echo_reply",
	135: "neighbor_solicitation",
	136: "neighbor_advertisement",
}

// ICMPv6Dissector decodes ICMPv6 headers. Like ICMPv4Dissector it is
// terminal and does not unpack the embedded copy of the offending
// packet carried by error messages.
type ICMPv6Dissector struct{}

func (ICMPv6Dissector) Tag() model.ProtoTag { return model.ProtoICMPv6 }

func (ICMPv6Dissector) Dissect(data []byte, base int) Result {
	if len(data) < icmpv6MinHeaderLen {
		return truncatedResult(model.ProtoICMPv6, data, base, "header")
	}

	typ := data[0]
	code := data[1]
	checksum := binary.BigEndian.Uint16(data[2:4])

	fields := map[string]any{
		"type":     typ,
		"code":     code,
		"checksum": checksum,
	}
	if name, ok := icmpv6Types[typ]; ok {
		fields["type_name"] = name
	}

	switch typ {
	case 128, 129: // echo request / echo reply
		fields["identifier"] = binary.BigEndian.Uint16(data[4:6])
		fields["sequence"] = binary.BigEndian.Uint16(data[6:8])
	}

	return Result{
		Layer: model.LayerRecord{
			Proto:       model.ProtoICMPv6,
			Fields:      fields,
			StartOffset: base,
			EndOffset:   base + len(data),
		},
	}
}
