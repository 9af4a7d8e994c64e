package dissect

import (
	"encoding/binary"

	"dpinet.dev/dpinet/internal/model"
)

const icmpv4MinHeaderLen = 8

var icmpv4Types = map[uint8]string{
	0:  "echo_reply",
	3:  "destination_unreachable",
	8:  "echo_request",
	11: "time_exceeded",
}

// ICMPv4Dissector decodes ICMPv4 headers. It is terminal: the
// specification does not require decoding the payload copy carried by
// error messages.
type ICMPv4Dissector struct{}

func (ICMPv4Dissector) Tag() model.ProtoTag { return model.ProtoICMPv4 }

func (ICMPv4Dissector) Dissect(data []byte, base int) Result {
	if len(data) < icmpv4MinHeaderLen {
		return truncatedResult(model.ProtoICMPv4, data, base, "header")
	}

	typ := data[0]
	code := data[1]
	checksum := binary.BigEndian.Uint16(data[2:4])

	fields := map[string]any{
		"type":     typ,
		"code":     code,
		"checksum": checksum,
	}
	if name, ok := icmpv4Types[typ]; ok {
		fields["type_name"] = name
	}

	switch typ {
	case 0, 8: // echo reply / echo request
		fields["identifier"] = binary.BigEndian.Uint16(data[4:6])
		fields["sequence"] = binary.BigEndian.Uint16(data[6:8])
	case 3, 11: // destination unreachable / time exceeded
		fields["unused"] = binary.BigEndian.Uint32(data[4:8])
	}

	return Result{
		Layer: model.LayerRecord{
			Proto:       model.ProtoICMPv4,
			Fields:      fields,
			StartOffset: base,
			EndOffset:   base + len(data),
		},
	}
}
