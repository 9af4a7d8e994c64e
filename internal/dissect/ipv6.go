package dissect

import (
	"fmt"
	"net"

	"dpinet.dev/dpinet/internal/model"
)

const ipv6HeaderLen = 40

// extension header next-header values that must be walked before
// reaching the real upper-layer protocol.
var ipv6ExtensionHeaders = map[uint8]bool{
	0:  true, // hop-by-hop options
	43: true, // routing
	44: true, // fragment
	60: true, // destination options
}

// ipv6ExtHeaderLen returns the byte length of an extension header given
// its first two bytes (next-header, header-ext-length), per RFC 8200.
// The fragment header is a fixed 8 bytes regardless of its length byte.
func ipv6ExtHeaderLen(nextHeader uint8, data []byte) (int, bool) {
	if len(data) < 2 {
		return 0, false
	}
	if nextHeader == 44 {
		return 8, true
	}
	return (int(data[1]) + 1) * 8, true
}

// IPv6Dissector decodes the fixed IPv6 header and walks the extension
// header chain until it reaches an upper-layer protocol.
type IPv6Dissector struct{}

func (IPv6Dissector) Tag() model.ProtoTag { return model.ProtoIPv6 }

func (IPv6Dissector) Dissect(data []byte, base int) Result {
	if len(data) < ipv6HeaderLen {
		return truncatedResult(model.ProtoIPv6, data, base, "header")
	}

	version := data[0] >> 4
	if version != 6 {
		return malformedResult(model.ProtoIPv6, base, base+len(data), fmt.Sprintf("version %d", version))
	}

	payloadLen := int(data[4])<<8 | int(data[5])
	nextHeader := data[6]
	hopLimit := data[7]
	src := net.IP(data[8:24])
	dst := net.IP(data[24:40])

	fields := map[string]any{
		"hop_limit":   hopLimit,
		"src_ip":      src.String(),
		"dst_ip":      dst.String(),
		"payload_len": payloadLen,
	}

	end := ipv6HeaderLen + payloadLen
	if end > len(data) {
		end = len(data)
	}

	offset := ipv6HeaderLen
	for ipv6ExtensionHeaders[nextHeader] {
		rest := data[offset:end]
		if len(rest) < 8 {
			break
		}
		extLen, ok := ipv6ExtHeaderLen(nextHeader, rest)
		if !ok || offset+extLen > end {
			break
		}
		nextHeader = rest[0]
		offset += extLen
	}
	fields["protocol"] = nextHeader

	layer := model.LayerRecord{
		Proto:       model.ProtoIPv6,
		Fields:      fields,
		StartOffset: base,
		EndOffset:   base + offset,
	}

	return Result{
		Layer:    layer,
		Selector: Selector{ParentTag: model.ProtoIPv6, Value: uint32(nextHeader)},
		Residual: data[offset:end],
	}
}
