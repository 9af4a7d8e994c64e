package dissect

import (
	"encoding/binary"

	"dpinet.dev/dpinet/internal/model"
)

const udpHeaderLen = 8

// UDPDissector decodes the fixed 8-byte UDP header and selects an
// application-layer dissector by port, destination-port wins with
// source-port fallback.
type UDPDissector struct{}

func (UDPDissector) Tag() model.ProtoTag { return model.ProtoUDP }

func (UDPDissector) Dissect(data []byte, base int) Result {
	if len(data) < udpHeaderLen {
		return truncatedResult(model.ProtoUDP, data, base, "header")
	}

	srcPort := binary.BigEndian.Uint16(data[0:2])
	dstPort := binary.BigEndian.Uint16(data[2:4])
	length := binary.BigEndian.Uint16(data[4:6])
	checksum := binary.BigEndian.Uint16(data[6:8])

	fields := map[string]any{
		"src_port": srcPort,
		"dst_port": dstPort,
		"length":   length,
		"checksum": checksum,
	}

	partial := false
	errMsg := ""
	end := int(length)
	if end < udpHeaderLen || end > len(data) {
		partial = true
		errMsg = "truncated: length exceeds captured bytes"
		end = len(data)
	}

	layer := model.LayerRecord{
		Proto:       model.ProtoUDP,
		Fields:      fields,
		StartOffset: base,
		EndOffset:   base + udpHeaderLen,
		Partial:     partial,
		Error:       errMsg,
	}
	if partial {
		return Result{Layer: layer}
	}

	residual := data[udpHeaderLen:end]
	if len(residual) == 0 {
		return Result{Layer: layer}
	}

	return Result{
		Layer: layer,
		Selector: Selector{
			ParentTag:   model.ProtoUDP,
			Value:       uint32(dstPort),
			HasFallback: true,
			Fallback:    uint32(srcPort),
		},
		Residual: residual,
	}
}
