package dissect

import (
	"encoding/hex"
	"strings"
	"testing"

	"dpinet.dev/dpinet/internal/model"
)

func frameFromHex(t *testing.T, hexStr string) []byte {
	t.Helper()
	data, err := hex.DecodeString(strings.ReplaceAll(hexStr, " ", ""))
	if err != nil {
		t.Fatalf("invalid hex fixture: %v", err)
	}
	return data
}

// S1 — ARP request: Ethernet broadcast frame carrying an ARP request
// for 192.168.1.2 from 192.168.1.1.
func TestWalk_ARPRequest(t *testing.T) {
	data := frameFromHex(t, "ffffffffffff 001122334455 0806"+
		"0001 0800 06 04 0001"+
		"001122334455 c0a80101 000000000000 c0a80102")

	analysis := Walk(Bootstrap(), model.CapturedFrame{
		ID:       1,
		LinkType: model.LinkTypeEthernet,
		Data:     data,
	})

	if len(analysis.Layers) != 2 {
		t.Fatalf("expected 2 layers, got %d: %+v", len(analysis.Layers), analysis.Layers)
	}

	eth := analysis.Layers[0]
	if eth.Proto != model.ProtoEthernet {
		t.Fatalf("layer 0 = %s, want Ethernet", eth.Proto)
	}
	if eth.Fields["dst_mac"] != "ff:ff:ff:ff:ff:ff" {
		t.Errorf("dst_mac = %v, want broadcast", eth.Fields["dst_mac"])
	}
	if eth.Fields["ether_type"] != "0x0806" {
		t.Errorf("ether_type = %v, want 0x0806", eth.Fields["ether_type"])
	}

	arp := analysis.Layers[1]
	if arp.Proto != model.ProtoARP {
		t.Fatalf("layer 1 = %s, want ARP", arp.Proto)
	}
	if arp.Fields["operation"] != "request" {
		t.Errorf("operation = %v, want request", arp.Fields["operation"])
	}
	if arp.Fields["sender_ip"] != "192.168.1.1" {
		t.Errorf("sender_ip = %v, want 192.168.1.1", arp.Fields["sender_ip"])
	}
	if arp.Fields["target_ip"] != "192.168.1.2" {
		t.Errorf("target_ip = %v, want 192.168.1.2", arp.Fields["target_ip"])
	}

	// Invariant 1: outer.end_offset == inner.start_offset.
	if eth.EndOffset != arp.StartOffset {
		t.Errorf("eth.EndOffset=%d != arp.StartOffset=%d", eth.EndOffset, arp.StartOffset)
	}
}

// S3 — Truncated IPv4: the header claims total_length=60 but only 40
// bytes follow the Ethernet header, so the IPv4 layer is partial and no
// TCP/UDP layer is attempted.
func TestWalk_TruncatedIPv4(t *testing.T) {
	eth := frameFromHex(t, "001122334455 aabbccddeeff 0800")

	ipv4Header := []byte{
		0x45, 0x00, // version/IHL, DSCP/ECN
		0x00, 0x3c, // total_length = 60
		0x00, 0x00, // identification
		0x00, 0x00, // flags/frag offset
		0x40,             // ttl
		0x06,             // protocol = TCP
		0x00, 0x00,       // checksum
		192, 168, 1, 1, // src
		192, 168, 1, 2, // dst
	}
	padding := make([]byte, 20) // header(20) + padding(20) = 40 captured bytes

	data := append(eth, append(ipv4Header, padding...)...)

	analysis := Walk(Bootstrap(), model.CapturedFrame{
		ID:       2,
		LinkType: model.LinkTypeEthernet,
		Data:     data,
	})

	if len(analysis.Layers) != 2 {
		t.Fatalf("expected 2 layers (Ethernet, IPv4), got %d: %+v", len(analysis.Layers), analysis.Layers)
	}

	ip := analysis.Layers[1]
	if ip.Proto != model.ProtoIPv4 {
		t.Fatalf("layer 1 = %s, want IPv4", ip.Proto)
	}
	if !ip.Partial {
		t.Error("expected partial=true for truncated IPv4")
	}
	if ip.Error == "" {
		t.Error("expected a non-empty error message on the partial layer")
	}
}

// Invariant 3: concatenating each layer's original byte range
// reconstructs the captured frame bit-for-bit.
func TestWalk_LayerRangesReconstructFrame(t *testing.T) {
	data := frameFromHex(t, "ffffffffffff 001122334455 0806"+
		"0001 0800 06 04 0001"+
		"001122334455 c0a80101 000000000000 c0a80102")

	analysis := Walk(Bootstrap(), model.CapturedFrame{
		ID:       3,
		LinkType: model.LinkTypeEthernet,
		Data:     data,
	})

	var rebuilt []byte
	for _, layer := range analysis.Layers {
		rebuilt = append(rebuilt, data[layer.StartOffset:layer.EndOffset]...)
	}
	rebuilt = append(rebuilt, data[len(rebuilt):]...)

	if string(rebuilt) != string(data) {
		t.Errorf("reconstructed frame does not match original:\n got %x\nwant %x", rebuilt, data)
	}
}
