package dissect

import (
	"encoding/binary"
	"net"

	"dpinet.dev/dpinet/internal/model"
)

const (
	dhcpv4FixedLen  = 236
	dhcpv4MagicSize = 4
)

var dhcpv4MagicCookie = [4]byte{0x63, 0x82, 0x53, 0x63}

var dhcpv4MessageTypes = map[byte]string{
	1: "discover",
	2: "offer",
	3: "request",
	4: "decline",
	5: "ack",
	6: "nak",
	7: "release",
	8: "inform",
}

// DHCPv4Dissector decodes BOOTP/DHCPv4 messages: the fixed header and
// the option TLV list, provided the magic cookie is present. Without
// it, the packet is treated as plain BOOTP and no options are decoded.
type DHCPv4Dissector struct{}

func (DHCPv4Dissector) Tag() model.ProtoTag { return model.ProtoDHCPv4 }

func (DHCPv4Dissector) Dissect(data []byte, base int) Result {
	if len(data) < dhcpv4FixedLen {
		return truncatedResult(model.ProtoDHCPv4, data, base, "header")
	}

	op := data[0]
	htype := data[1]
	hlen := data[2]
	xid := binary.BigEndian.Uint32(data[4:8])
	ciaddr := net.IP(data[12:16])
	yiaddr := net.IP(data[16:20])
	siaddr := net.IP(data[20:24])
	giaddr := net.IP(data[24:28])

	fields := map[string]any{
		"op":     op,
		"htype":  htype,
		"hlen":   hlen,
		"xid":    xid,
		"ciaddr": ciaddr.String(),
		"yiaddr": yiaddr.String(),
		"siaddr": siaddr.String(),
		"giaddr": giaddr.String(),
	}

	offset := dhcpv4FixedLen
	end := base + offset
	if len(data) >= dhcpv4FixedLen+dhcpv4MagicSize &&
		[4]byte(data[dhcpv4FixedLen:dhcpv4FixedLen+dhcpv4MagicSize]) == dhcpv4MagicCookie {
		options := parseDHCPv4Options(data[dhcpv4FixedLen+dhcpv4MagicSize:])
		fields["options"] = options
		if mt, ok := options["message_type"]; ok {
			if name, ok := dhcpv4MessageTypes[byte(mt.(uint8))]; ok {
				fields["message_type_name"] = name
			}
		}
		end = base + len(data)
	}

	return Result{
		Layer: model.LayerRecord{
			Proto:       model.ProtoDHCPv4,
			Fields:      fields,
			StartOffset: base,
			EndOffset:   end,
		},
	}
}

func parseDHCPv4Options(opts []byte) map[string]any {
	out := map[string]any{}
	i := 0
	for i < len(opts) {
		code := opts[i]
		if code == 255 { // end
			break
		}
		if code == 0 { // pad
			i++
			continue
		}
		if i+1 >= len(opts) {
			break
		}
		length := int(opts[i+1])
		if i+2+length > len(opts) {
			break
		}
		value := opts[i+2 : i+2+length]
		switch code {
		case 53:
			if length == 1 {
				out["message_type"] = uint8(value[0])
			}
		case 50:
			if length == 4 {
				out["requested_ip"] = net.IP(value).String()
			}
		case 54:
			if length == 4 {
				out["server_id"] = net.IP(value).String()
			}
		case 51:
			if length == 4 {
				out["lease_time"] = binary.BigEndian.Uint32(value)
			}
		case 12:
			out["hostname"] = string(value)
		}
		i += 2 + length
	}
	return out
}
