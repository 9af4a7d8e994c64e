package dissect

import (
	"encoding/binary"
	"fmt"
	"net"

	"dpinet.dev/dpinet/internal/model"
)

const (
	ethHeaderLen  = 14
	ethTagLen     = 4
	etherTypeVLAN = 0x8100
)

// EthernetDissector decodes Ethernet II frames, including a single level
// of 802.1Q tagging.
type EthernetDissector struct{}

func (EthernetDissector) Tag() model.ProtoTag { return model.ProtoEthernet }

func (EthernetDissector) Dissect(data []byte, base int) Result {
	if len(data) < ethHeaderLen {
		return truncatedResult(model.ProtoEthernet, data, base, fmt.Sprintf("need %d bytes, have %d", ethHeaderLen, len(data)))
	}

	dst := net.HardwareAddr(data[0:6])
	src := net.HardwareAddr(data[6:12])
	etherType := binary.BigEndian.Uint16(data[12:14])

	fields := map[string]any{
		"dst_mac": dst.String(),
		"src_mac": src.String(),
	}

	offset := ethHeaderLen
	if etherType == etherTypeVLAN {
		if len(data) < ethHeaderLen+ethTagLen {
			return truncatedResult(model.ProtoEthernet, data, base, "truncated 802.1q tag")
		}
		tci := binary.BigEndian.Uint16(data[14:16])
		fields["vlan_pcp"] = tci >> 13
		fields["vlan_id"] = tci & 0x0FFF
		etherType = binary.BigEndian.Uint16(data[16:18])
		offset = ethHeaderLen + ethTagLen
	}
	fields["ether_type"] = fmt.Sprintf("0x%04x", etherType)

	layer := model.LayerRecord{
		Proto:       model.ProtoEthernet,
		Fields:      fields,
		StartOffset: base,
		EndOffset:   base + offset,
	}
	return Result{
		Layer:    layer,
		Selector: Selector{ParentTag: model.ProtoEthernet, Value: uint32(etherType)},
		Residual: data[offset:],
	}
}

// truncatedResult builds the partial LayerRecord shared by every
// dissector's "not enough bytes" path: the current layer is emitted with
// partial=true and no inner layer is attempted.
func truncatedResult(tag model.ProtoTag, data []byte, base int, reason string) Result {
	return Result{
		Layer: model.LayerRecord{
			Proto:       tag,
			StartOffset: base,
			EndOffset:   base + len(data),
			Partial:     true,
			Error:       "truncated: " + reason,
		},
	}
}

func malformedResult(tag model.ProtoTag, base, end int, reason string) Result {
	return Result{
		Layer: model.LayerRecord{
			Proto:       tag,
			StartOffset: base,
			EndOffset:   end,
			Partial:     true,
			Error:       "malformed field: " + reason,
		},
	}
}
