package broadcast

import (
	"bytes"
	"compress/zlib"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"dpinet.dev/dpinet/internal/errs"
)

// FrameKind tags the JSON payload carried by a wire frame.
type FrameKind string

const (
	FrameWelcome   FrameKind = "welcome"
	FrameChallenge FrameKind = "challenge"
	FrameAuth      FrameKind = "auth"
	FramePacket    FrameKind = "packet"
	FrameStats     FrameKind = "stats"
	FrameHeartbeat FrameKind = "heartbeat"
	FrameSubscribe FrameKind = "subscribe"
	FrameClose     FrameKind = "close"
)

// Close reason codes: sent as the payload of a server-initiated Close
// frame so a client knows why it was disconnected.
const (
	CloseReasonUnauthorized     = "Unauthorized"
	CloseReasonHeartbeatTimeout = "HeartbeatTimeout"
	CloseReasonShutdown         = "ServerShutdown"
)

// closePayload is the body of a Close frame in either direction.
type closePayload struct {
	Reason string `json:"reason"`
}

// maxFrameLen bounds the length prefix to guard against a corrupt or
// hostile peer claiming an enormous body and exhausting memory.
const maxFrameLen = 16 * 1024 * 1024

// Frame is the wire envelope: a 4-byte big-endian length prefix
// followed by that many bytes of UTF-8 JSON,
// {"kind": ..., "compressed": ..., "payload": ...}. The payload object is
// nested under "payload"; its fields are not merged into the top-level
// object. When Compressed is true, Payload holds a base64-encoded string of a
// standalone zlib stream wrapping the real JSON payload, rather than
// the payload itself.
type Frame struct {
	Kind       FrameKind       `json:"kind"`
	Compressed bool            `json:"compressed,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// BuildFrame serializes payload under kind into a complete
// length-prefixed wire frame, optionally as a standalone zlib stream.
// The returned bytes can be written to any number of connections and,
// since compression happens once here rather than per subscriber,
// satisfy the "compute the compressed form at most once per frame"
// budget even when many subscribers share a compression mode.
func BuildFrame(kind FrameKind, payload any, compress bool) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("broadcast: marshal %s payload: %w", kind, err)
	}

	frame := Frame{Kind: kind}
	if compress {
		var buf bytes.Buffer
		zw := zlib.NewWriter(&buf)
		if _, err := zw.Write(body); err != nil {
			return nil, fmt.Errorf("broadcast: zlib compress: %w", err)
		}
		if err := zw.Close(); err != nil {
			return nil, fmt.Errorf("broadcast: zlib close: %w", err)
		}
		encoded, err := json.Marshal(base64.StdEncoding.EncodeToString(buf.Bytes()))
		if err != nil {
			return nil, fmt.Errorf("broadcast: marshal compressed payload: %w", err)
		}
		frame.Compressed = true
		frame.Payload = encoded
	} else {
		frame.Payload = body
	}

	encoded, err := json.Marshal(frame)
	if err != nil {
		return nil, fmt.Errorf("broadcast: marshal frame: %w", err)
	}
	if len(encoded) > maxFrameLen {
		return nil, fmt.Errorf("broadcast: frame too large (%d bytes)", len(encoded))
	}

	out := make([]byte, 4+len(encoded))
	binary.BigEndian.PutUint32(out[:4], uint32(len(encoded)))
	copy(out[4:], encoded)
	return out, nil
}

// WriteFrame builds an uncompressed frame and writes it to w in one
// call; used for handshake and per-connection control frames that are
// never shared across subscribers.
func WriteFrame(w io.Writer, kind FrameKind, payload any) error {
	raw, err := BuildFrame(kind, payload, false)
	if err != nil {
		return err
	}
	if _, err := w.Write(raw); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrWriteFailed, err)
	}
	return nil
}

// ReadFrame reads one length-prefixed frame from r and unmarshals its
// envelope. The caller unmarshals Payload into the concrete type that
// matches Kind.
func ReadFrame(r io.Reader) (Frame, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return Frame{}, err
	}
	length := binary.BigEndian.Uint32(header[:])
	if length == 0 || length > maxFrameLen {
		return Frame{}, fmt.Errorf("broadcast: invalid frame length %d", length)
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return Frame{}, err
	}

	var frame Frame
	if err := json.Unmarshal(body, &frame); err != nil {
		return Frame{}, fmt.Errorf("broadcast: unmarshal frame: %w", err)
	}
	return frame, nil
}

// unmarshalPayload decodes frame.Payload into dst.
func unmarshalPayload(frame Frame, dst any) error {
	return json.Unmarshal(frame.Payload, dst)
}

// DecodeFramePayload decodes frame.Payload into dst, transparently
// reversing the base64+zlib encoding BuildFrame applies when compress
// is true.
func DecodeFramePayload(frame Frame, dst any) error {
	if !frame.Compressed {
		return json.Unmarshal(frame.Payload, dst)
	}

	var encoded string
	if err := json.Unmarshal(frame.Payload, &encoded); err != nil {
		return fmt.Errorf("broadcast: decode base64 envelope: %w", err)
	}
	compressed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("broadcast: decode base64: %w", err)
	}
	zr, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return fmt.Errorf("broadcast: zlib reader: %w", err)
	}
	defer zr.Close()
	body, err := io.ReadAll(zr)
	if err != nil {
		return fmt.Errorf("broadcast: zlib decompress: %w", err)
	}
	return json.Unmarshal(body, dst)
}
