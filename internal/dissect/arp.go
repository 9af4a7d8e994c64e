package dissect

import (
	"encoding/binary"
	"fmt"
	"net"

	"dpinet.dev/dpinet/internal/model"
)

const arpMinHeaderLen = 8

var arpOperations = map[uint16]string{
	1: "request",
	2: "reply",
}

// ARPDissector decodes IPv4-over-Ethernet ARP packets. It is a terminal
// layer: ARP has no inner protocol to promote to.
type ARPDissector struct{}

func (ARPDissector) Tag() model.ProtoTag { return model.ProtoARP }

func (ARPDissector) Dissect(data []byte, base int) Result {
	if len(data) < arpMinHeaderLen {
		return truncatedResult(model.ProtoARP, data, base, "header")
	}

	hwType := binary.BigEndian.Uint16(data[0:2])
	protoType := binary.BigEndian.Uint16(data[2:4])
	hwLen := data[4]
	protoLen := data[5]
	op := binary.BigEndian.Uint16(data[6:8])

	end := int(arpMinHeaderLen) + 2*int(hwLen) + 2*int(protoLen)
	if len(data) < end {
		return truncatedResult(model.ProtoARP, data, base, "addresses")
	}

	off := arpMinHeaderLen
	senderHW := net.HardwareAddr(data[off : off+int(hwLen)])
	off += int(hwLen)
	senderProto := data[off : off+int(protoLen)]
	off += int(protoLen)
	targetHW := net.HardwareAddr(data[off : off+int(hwLen)])
	off += int(hwLen)
	targetProto := data[off : off+int(protoLen)]
	off += int(protoLen)

	opName, ok := arpOperations[op]
	if !ok {
		opName = fmt.Sprintf("unknown(%d)", op)
	}

	fields := map[string]any{
		"hw_type":    hwType,
		"proto_type": fmt.Sprintf("0x%04x", protoType),
		"operation":  opName,
		"sender_hw":  senderHW.String(),
		"target_hw":  targetHW.String(),
	}
	if protoLen == 4 {
		fields["sender_ip"] = net.IP(senderProto).String()
		fields["target_ip"] = net.IP(targetProto).String()
	}

	return Result{
		Layer: model.LayerRecord{
			Proto:       model.ProtoARP,
			Fields:      fields,
			StartOffset: base,
			EndOffset:   base + end,
		},
	}
}
