package dissect

import (
	"encoding/binary"

	"dpinet.dev/dpinet/internal/model"
)

const dhcpv6MinHeaderLen = 4

var dhcpv6MessageTypes = map[byte]string{
	1:  "solicit",
	2:  "advertise",
	3:  "request",
	5:  "reply",
	11: "information_request",
	12: "relay_forward",
	13: "relay_reply",
}

// DHCPv6Dissector decodes DHCPv6 client/server messages: the 1-byte
// message type, the 3-byte transaction id, and the option TLV list.
// Relay-agent messages (types 12/13), which have a different fixed
// layout, are reported by type only.
type DHCPv6Dissector struct{}

func (DHCPv6Dissector) Tag() model.ProtoTag { return model.ProtoDHCPv6 }

func (DHCPv6Dissector) Dissect(data []byte, base int) Result {
	if len(data) < dhcpv6MinHeaderLen {
		return truncatedResult(model.ProtoDHCPv6, data, base, "header")
	}

	msgType := data[0]
	fields := map[string]any{
		"msg_type": msgType,
	}
	if name, ok := dhcpv6MessageTypes[msgType]; ok {
		fields["msg_type_name"] = name
	}

	if msgType == 12 || msgType == 13 {
		return Result{
			Layer: model.LayerRecord{
				Proto:       model.ProtoDHCPv6,
				Fields:      fields,
				StartOffset: base,
				EndOffset:   base + len(data),
			},
		}
	}

	txnID := uint32(data[1])<<16 | uint32(data[2])<<8 | uint32(data[3])
	fields["transaction_id"] = txnID

	if len(data) > dhcpv6MinHeaderLen {
		fields["options"] = parseDHCPv6Options(data[dhcpv6MinHeaderLen:])
	}

	return Result{
		Layer: model.LayerRecord{
			Proto:       model.ProtoDHCPv6,
			Fields:      fields,
			StartOffset: base,
			EndOffset:   base + len(data),
		},
	}
}

func parseDHCPv6Options(opts []byte) []map[string]any {
	var out []map[string]any
	i := 0
	for i+4 <= len(opts) {
		code := binary.BigEndian.Uint16(opts[i : i+2])
		length := int(binary.BigEndian.Uint16(opts[i+2 : i+4]))
		if i+4+length > len(opts) {
			break
		}
		out = append(out, map[string]any{
			"code":   code,
			"length": length,
		})
		i += 4 + length
	}
	return out
}
