package dissect

import (
	"encoding/binary"
	"fmt"
	"strings"

	"dpinet.dev/dpinet/internal/errs"
	"dpinet.dev/dpinet/internal/model"
)

const (
	dnsHeaderLen     = 12
	dnsMaxNamePtrHop = 128
)

var dnsOpcodes = map[uint8]string{
	0: "query",
	1: "iquery",
	2: "status",
	4: "notify",
	5: "update",
}

// DNSDissector decodes DNS messages carried over UDP: the header,
// the question section, and the owner name plus type/class of each
// record in the answer/authority/additional sections. Record RDATA
// itself is not decoded.
type DNSDissector struct{}

func (DNSDissector) Tag() model.ProtoTag { return model.ProtoDNS }

func (DNSDissector) Dissect(data []byte, base int) Result {
	if len(data) < dnsHeaderLen {
		return truncatedResult(model.ProtoDNS, data, base, "header")
	}

	id := binary.BigEndian.Uint16(data[0:2])
	flags := binary.BigEndian.Uint16(data[2:4])
	qdCount := binary.BigEndian.Uint16(data[4:6])
	anCount := binary.BigEndian.Uint16(data[6:8])
	nsCount := binary.BigEndian.Uint16(data[8:10])
	arCount := binary.BigEndian.Uint16(data[10:12])

	fields := map[string]any{
		"id":      id,
		"qr":      flags>>15&0x1 == 1,
		"opcode":  dnsOpcodeName(uint8(flags >> 11 & 0xF)),
		"aa":      flags>>10&0x1 == 1,
		"tc":      flags>>9&0x1 == 1,
		"rd":      flags>>8&0x1 == 1,
		"ra":      flags>>7&0x1 == 1,
		"rcode":   flags & 0xF,
		"qdcount": qdCount,
		"ancount": anCount,
		"nscount": nsCount,
		"arcount": arCount,
	}

	offset := dnsHeaderLen
	partial := false
	errMsg := ""

	questions := make([]map[string]any, 0, qdCount)
	for i := 0; i < int(qdCount); i++ {
		name, next, err := decodeDNSName(data, offset)
		if err != nil {
			partial = true
			errMsg = err.Error()
			break
		}
		if next+4 > len(data) {
			partial = true
			errMsg = "truncated: question"
			break
		}
		qtype := binary.BigEndian.Uint16(data[next : next+2])
		qclass := binary.BigEndian.Uint16(data[next+2 : next+4])
		questions = append(questions, map[string]any{
			"name":  name,
			"type":  qtype,
			"class": qclass,
		})
		offset = next + 4
	}
	fields["questions"] = questions

	if !partial {
		records, newOffset, recErr := decodeDNSRecords(data, offset, int(anCount)+int(nsCount)+int(arCount))
		if recErr != nil {
			partial = true
			errMsg = recErr.Error()
		} else {
			fields["records"] = records
			offset = newOffset
		}
	}

	return Result{
		Layer: model.LayerRecord{
			Proto:       model.ProtoDNS,
			Fields:      fields,
			StartOffset: base,
			EndOffset:   base + offset,
			Partial:     partial,
			Error:       errMsg,
		},
	}
}

func dnsOpcodeName(v uint8) string {
	if name, ok := dnsOpcodes[v]; ok {
		return name
	}
	return "unknown"
}

func decodeDNSRecords(data []byte, offset, count int) ([]map[string]any, int, error) {
	records := make([]map[string]any, 0, count)
	for i := 0; i < count; i++ {
		name, next, err := decodeDNSName(data, offset)
		if err != nil {
			return nil, offset, err
		}
		if next+10 > len(data) {
			return nil, offset, fmt.Errorf("%w: resource record", errs.ErrTruncated)
		}
		rtype := binary.BigEndian.Uint16(data[next : next+2])
		rclass := binary.BigEndian.Uint16(data[next+2 : next+4])
		ttl := binary.BigEndian.Uint32(data[next+4 : next+8])
		rdlen := binary.BigEndian.Uint16(data[next+8 : next+10])
		end := next + 10 + int(rdlen)
		if end > len(data) {
			return nil, offset, fmt.Errorf("%w: resource record data", errs.ErrTruncated)
		}
		records = append(records, map[string]any{
			"name":  name,
			"type":  rtype,
			"class": rclass,
			"ttl":   ttl,
		})
		offset = end
	}
	return records, offset, nil
}

// decodeDNSName decodes a (possibly compressed) domain name starting at
// offset within data, returning the dotted name and the offset just
// past it in the original message (not following any pointer). It
// bounds the number of pointer hops it will follow, so a message with a
// pointer cycle raises errs.ErrLoopDetected instead of spinning forever.
func decodeDNSName(data []byte, offset int) (string, int, error) {
	var labels []string
	pos := offset
	endOfName := -1
	hops := 0

	for {
		if pos >= len(data) {
			return "", 0, fmt.Errorf("%w: name", errs.ErrTruncated)
		}
		b := data[pos]
		if b == 0 {
			pos++
			break
		}
		if b&0xC0 == 0xC0 {
			if pos+1 >= len(data) {
				return "", 0, fmt.Errorf("%w: name pointer", errs.ErrTruncated)
			}
			if endOfName == -1 {
				endOfName = pos + 2
			}
			hops++
			if hops > dnsMaxNamePtrHop {
				return "", 0, fmt.Errorf("%w: name decompression exceeded %d hops", errs.ErrLoopDetected, dnsMaxNamePtrHop)
			}
			ptr := int(binary.BigEndian.Uint16(data[pos:pos+2]) & 0x3FFF)
			if ptr >= pos {
				return "", 0, fmt.Errorf("%w: name pointer does not point backward", errs.ErrLoopDetected)
			}
			pos = ptr
			continue
		}
		labelLen := int(b)
		pos++
		if pos+labelLen > len(data) {
			return "", 0, fmt.Errorf("%w: label", errs.ErrTruncated)
		}
		labels = append(labels, string(data[pos:pos+labelLen]))
		pos += labelLen
	}

	if endOfName == -1 {
		endOfName = pos
	}
	return strings.Join(labels, "."), endOfName, nil
}
