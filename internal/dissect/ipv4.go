package dissect

import (
	"fmt"
	"net"

	"dpinet.dev/dpinet/internal/model"
)

const ipv4MinHeaderLen = 20

// IPv4Dissector decodes IPv4 headers, including variable-length options
// (IHL > 5). Checksum validation is intentionally not performed here —
// the specification gates it behind a config flag this package does not
// own; the pipeline layer may add that check without touching the wire
// format produced here.
type IPv4Dissector struct{}

func (IPv4Dissector) Tag() model.ProtoTag { return model.ProtoIPv4 }

func (IPv4Dissector) Dissect(data []byte, base int) Result {
	if len(data) < ipv4MinHeaderLen {
		return truncatedResult(model.ProtoIPv4, data, base, "header")
	}

	version := data[0] >> 4
	if version != 4 {
		return malformedResult(model.ProtoIPv4, base, base+len(data), fmt.Sprintf("version %d", version))
	}

	ihl := int(data[0] & 0x0F)
	if ihl < 5 || ihl > 15 {
		return malformedResult(model.ProtoIPv4, base, base+len(data), fmt.Sprintf("ihl %d", ihl))
	}
	headerLen := ihl * 4
	if len(data) < headerLen {
		return truncatedResult(model.ProtoIPv4, data, base, "options")
	}

	totalLen := int(data[2])<<8 | int(data[3])
	ttl := data[8]
	proto := data[9]
	src := net.IP(data[12:16])
	dst := net.IP(data[16:20])

	fields := map[string]any{
		"ihl":          ihl,
		"ttl":          ttl,
		"protocol":     proto,
		"src_ip":       src.String(),
		"dst_ip":       dst.String(),
		"total_length": totalLen,
	}

	partial := false
	errMsg := ""
	// Clamp to what actually arrived: totalLen may exceed the bytes we
	// were handed, which is the S3 "truncated IPv4" scenario.
	end := totalLen
	if end > len(data) || end < headerLen {
		partial = true
		errMsg = "truncated: total_length exceeds captured bytes"
		end = len(data)
	}

	layer := model.LayerRecord{
		Proto:       model.ProtoIPv4,
		Fields:      fields,
		StartOffset: base,
		EndOffset:   base + headerLen,
		Partial:     partial,
		Error:       errMsg,
	}
	if partial {
		// No inner layer is attempted once total_length can't be trusted.
		return Result{Layer: layer}
	}

	return Result{
		Layer:    layer,
		Selector: Selector{ParentTag: model.ProtoIPv4, Value: uint32(proto)},
		Residual: data[headerLen:end],
	}
}
