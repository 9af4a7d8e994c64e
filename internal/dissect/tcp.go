package dissect

import (
	"encoding/binary"
	"fmt"

	"dpinet.dev/dpinet/internal/model"
)

const tcpMinHeaderLen = 20

const (
	tcpFlagFIN = 1 << 0
	tcpFlagSYN = 1 << 1
	tcpFlagRST = 1 << 2
	tcpFlagPSH = 1 << 3
	tcpFlagACK = 1 << 4
	tcpFlagURG = 1 << 5
	tcpFlagECE = 1 << 6
	tcpFlagCWR = 1 << 7
)

// TCPDissector decodes the TCP header, including its option list, and
// selects an application-layer dissector by port using the
// destination-port-wins / source-port-fallback policy.
type TCPDissector struct{}

func (TCPDissector) Tag() model.ProtoTag { return model.ProtoTCP }

func (TCPDissector) Dissect(data []byte, base int) Result {
	if len(data) < tcpMinHeaderLen {
		return truncatedResult(model.ProtoTCP, data, base, "header")
	}

	srcPort := binary.BigEndian.Uint16(data[0:2])
	dstPort := binary.BigEndian.Uint16(data[2:4])
	seq := binary.BigEndian.Uint32(data[4:8])
	ack := binary.BigEndian.Uint32(data[8:12])
	dataOffset := int(data[12]>>4) * 4
	flags := data[13]
	window := binary.BigEndian.Uint16(data[14:16])
	checksum := binary.BigEndian.Uint16(data[16:18])
	urgentPtr := binary.BigEndian.Uint16(data[18:20])

	if dataOffset < tcpMinHeaderLen {
		return malformedResult(model.ProtoTCP, base, base+len(data), fmt.Sprintf("data offset %d", dataOffset))
	}
	if len(data) < dataOffset {
		return truncatedResult(model.ProtoTCP, data, base, "options")
	}

	fields := map[string]any{
		"src_port":   srcPort,
		"dst_port":   dstPort,
		"seq":        seq,
		"ack":        ack,
		"window":     window,
		"checksum":   checksum,
		"urgent_ptr": urgentPtr,
		"flags":      tcpFlagNames(flags),
	}
	if opts := parseTCPOptions(data[tcpMinHeaderLen:dataOffset]); len(opts) > 0 {
		fields["options"] = opts
	}

	layer := model.LayerRecord{
		Proto:       model.ProtoTCP,
		Fields:      fields,
		StartOffset: base,
		EndOffset:   base + dataOffset,
	}

	residual := data[dataOffset:]
	if len(residual) == 0 {
		return Result{Layer: layer}
	}

	return Result{
		Layer: layer,
		Selector: Selector{
			ParentTag:   model.ProtoTCP,
			Value:       uint32(dstPort),
			HasFallback: true,
			Fallback:    uint32(srcPort),
		},
		Residual: residual,
	}
}

func tcpFlagNames(flags byte) []string {
	names := []string{}
	if flags&tcpFlagFIN != 0 {
		names = append(names, "FIN")
	}
	if flags&tcpFlagSYN != 0 {
		names = append(names, "SYN")
	}
	if flags&tcpFlagRST != 0 {
		names = append(names, "RST")
	}
	if flags&tcpFlagPSH != 0 {
		names = append(names, "PSH")
	}
	if flags&tcpFlagACK != 0 {
		names = append(names, "ACK")
	}
	if flags&tcpFlagURG != 0 {
		names = append(names, "URG")
	}
	if flags&tcpFlagECE != 0 {
		names = append(names, "ECE")
	}
	if flags&tcpFlagCWR != 0 {
		names = append(names, "CWR")
	}
	return names
}

// parseTCPOptions walks the TLV option list, recognizing MSS, window
// scale, SACK-permitted, and timestamps; unrecognized kinds are recorded
// by number only.
func parseTCPOptions(opts []byte) []map[string]any {
	var out []map[string]any
	i := 0
	for i < len(opts) {
		kind := opts[i]
		if kind == 0 { // end of option list
			break
		}
		if kind == 1 { // no-op
			i++
			continue
		}
		if i+1 >= len(opts) {
			break
		}
		length := int(opts[i+1])
		if length < 2 || i+length > len(opts) {
			break
		}
		value := opts[i+2 : i+length]
		entry := map[string]any{"kind": kind}
		switch kind {
		case 2:
			if len(value) == 2 {
				entry["name"] = "mss"
				entry["mss"] = binary.BigEndian.Uint16(value)
			}
		case 3:
			if len(value) == 1 {
				entry["name"] = "window_scale"
				entry["shift"] = value[0]
			}
		case 4:
			entry["name"] = "sack_permitted"
		case 8:
			if len(value) == 8 {
				entry["name"] = "timestamps"
				entry["tsval"] = binary.BigEndian.Uint32(value[0:4])
				entry["tsecr"] = binary.BigEndian.Uint32(value[4:8])
			}
		}
		out = append(out, entry)
		i += length
	}
	return out
}
