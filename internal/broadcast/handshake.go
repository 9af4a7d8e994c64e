package broadcast

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"io"
	"net"
	"time"

	"dpinet.dev/dpinet/internal/errs"
	"dpinet.dev/dpinet/internal/model"
)

const protocolVersion = 1

const handshakeTimeout = 10 * time.Second

// challengePayload carries the server's nonce.
type challengePayload struct {
	Nonce []byte `json:"nonce"`
}

// authPayload carries the client's response: SHA-256(password || nonce).
type authPayload struct {
	Response []byte `json:"response"`
}

// welcomePayload is sent once authentication succeeds.
type welcomePayload struct {
	ProtocolVersion int            `json:"protocol_version"`
	Compression     string         `json:"compression"`
	LinkType        model.LinkType `json:"link_type"`
}

// handshake performs the nonce-challenge exchange over conn: send a
// random nonce, read the client's response, and compare it against
// SHA-256(password||nonce) in constant time. On success it sends the
// Welcome frame and returns the negotiated compression mode.
func handshake(conn net.Conn, password string, serverCompression string, linkType model.LinkType) (string, error) {
	conn.SetDeadline(time.Now().Add(handshakeTimeout))
	defer conn.SetDeadline(time.Time{})

	nonce := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("broadcast: generate nonce: %w", err)
	}
	if err := WriteFrame(conn, FrameChallenge, challengePayload{Nonce: nonce}); err != nil {
		return "", err
	}

	frame, err := ReadFrame(conn)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errs.ErrHandshakeFailed, err)
	}
	if frame.Kind != FrameAuth {
		return "", fmt.Errorf("%w: expected auth frame, got %s", errs.ErrHandshakeFailed, frame.Kind)
	}
	var auth authPayload
	if err := unmarshalPayload(frame, &auth); err != nil {
		return "", fmt.Errorf("%w: %v", errs.ErrHandshakeFailed, err)
	}

	expected := expectedResponse(nonce, password)
	if subtle.ConstantTimeCompare(expected, auth.Response) != 1 {
		// Best effort: tell the peer why before the socket is dropped.
		// A write failure here doesn't change the outcome — the caller
		// still sees ErrUnauthorized and closes the connection.
		_ = WriteFrame(conn, FrameClose, closePayload{Reason: CloseReasonUnauthorized})
		return "", errs.ErrUnauthorized
	}

	if err := WriteFrame(conn, FrameWelcome, welcomePayload{
		ProtocolVersion: protocolVersion,
		Compression:     serverCompression,
		LinkType:        linkType,
	}); err != nil {
		return "", err
	}

	return serverCompression, nil
}

// expectedResponse computes SHA-256(password || nonce), the digest a
// client proves knowledge of the password by reproducing.
func expectedResponse(nonce []byte, password string) []byte {
	h := sha256.New()
	h.Write([]byte(password))
	h.Write(nonce)
	return h.Sum(nil)
}
