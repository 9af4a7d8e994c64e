package dissect

import (
	"encoding/binary"
	"errors"
	"testing"

	"dpinet.dev/dpinet/internal/errs"
)

func dnsHeader(qdCount uint16) []byte {
	h := make([]byte, dnsHeaderLen)
	binary.BigEndian.PutUint16(h[4:6], qdCount)
	return h
}

// S2-adjacent: a single A-record question for example.com decodes with
// the expected name, qtype, and question count.
func TestDNSDissector_SingleQuestion(t *testing.T) {
	msg := dnsHeader(1)
	msg = append(msg, 7)
	msg = append(msg, []byte("example")...)
	msg = append(msg, 3)
	msg = append(msg, []byte("com")...)
	msg = append(msg, 0) // root label
	msg = append(msg, 0x00, 0x01)
	msg = append(msg, 0x00, 0x01)

	res := DNSDissector{}.Dissect(msg, 0)
	if res.Layer.Partial {
		t.Fatalf("unexpected partial layer: %s", res.Layer.Error)
	}
	if res.Layer.Fields["qdcount"] != uint16(1) {
		t.Errorf("qdcount = %v, want 1", res.Layer.Fields["qdcount"])
	}
	questions := res.Layer.Fields["questions"].([]map[string]any)
	if len(questions) != 1 {
		t.Fatalf("expected 1 question, got %d", len(questions))
	}
	if questions[0]["name"] != "example.com" {
		t.Errorf("name = %v, want example.com", questions[0]["name"])
	}
	if questions[0]["type"] != uint16(1) {
		t.Errorf("type = %v, want 1 (A)", questions[0]["type"])
	}
}

// Invariant 4: a name pointer that does not strictly decrease is
// rejected immediately as a loop rather than followed.
func TestDecodeDNSName_RejectsForwardPointer(t *testing.T) {
	data := make([]byte, 4)
	// A compression pointer at offset 0 pointing at offset 2 (forward).
	binary.BigEndian.PutUint16(data[0:2], 0xC000|2)

	_, _, err := decodeDNSName(data, 0)
	if err == nil {
		t.Fatal("expected an error for a non-backward pointer")
	}
	if !errors.Is(err, errs.ErrLoopDetected) {
		t.Errorf("err = %v, want errs.ErrLoopDetected", err)
	}
}

// A long but strictly-backward chain of pointers still terminates,
// bounded by dnsMaxNamePtrHop.
func TestDecodeDNSName_BoundedHopChain(t *testing.T) {
	const hops = 20

	// offset 0 is the root label; each subsequent 2-byte cell is a
	// pointer back to the previous cell, so following the chain from
	// the last cell takes exactly `hops` steps before hitting the root.
	data := []byte{0}
	prevOffset := uint16(0)
	for i := 0; i < hops; i++ {
		cellOffset := uint16(len(data))
		ptr := make([]byte, 2)
		binary.BigEndian.PutUint16(ptr, 0xC000|prevOffset)
		data = append(data, ptr...)
		prevOffset = cellOffset
	}

	name, _, err := decodeDNSName(data, len(data)-2)
	if err != nil {
		t.Fatalf("unexpected error on a %d-hop backward chain: %v", hops, err)
	}
	if name != "" {
		t.Errorf("name = %q, want empty (root)", name)
	}
}
