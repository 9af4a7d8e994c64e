package broadcast

import (
	"bytes"
	"testing"
)

type samplePayload struct {
	Value string `json:"value"`
}

func TestBuildFrame_RoundTripUncompressed(t *testing.T) {
	raw, err := BuildFrame(FramePacket, samplePayload{Value: "hello"}, false)
	if err != nil {
		t.Fatalf("BuildFrame: %v", err)
	}

	frame, err := ReadFrame(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if frame.Kind != FramePacket {
		t.Fatalf("kind = %s, want Packet", frame.Kind)
	}
	if frame.Compressed {
		t.Fatal("expected Compressed=false")
	}

	var got samplePayload
	if err := DecodeFramePayload(frame, &got); err != nil {
		t.Fatalf("DecodeFramePayload: %v", err)
	}
	if got.Value != "hello" {
		t.Errorf("value = %q, want hello", got.Value)
	}
}

func TestBuildFrame_RoundTripCompressed(t *testing.T) {
	raw, err := BuildFrame(FrameStats, samplePayload{Value: "compressed-value"}, true)
	if err != nil {
		t.Fatalf("BuildFrame: %v", err)
	}

	frame, err := ReadFrame(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if !frame.Compressed {
		t.Fatal("expected Compressed=true")
	}

	var got samplePayload
	if err := DecodeFramePayload(frame, &got); err != nil {
		t.Fatalf("DecodeFramePayload: %v", err)
	}
	if got.Value != "compressed-value" {
		t.Errorf("value = %q, want compressed-value", got.Value)
	}
}

func TestReadFrame_RejectsOversizedLength(t *testing.T) {
	header := []byte{0xFF, 0xFF, 0xFF, 0xFF}
	if _, err := ReadFrame(bytes.NewReader(header)); err == nil {
		t.Fatal("expected an error for a length prefix over maxFrameLen")
	}
}
