package broadcast

import (
	"errors"
	"net"
	"testing"
	"time"

	"dpinet.dev/dpinet/internal/errs"
	"dpinet.dev/dpinet/internal/model"
)

// Invariant 6: an Auth frame with the wrong digest never results in a
// Welcome, and the connection is rejected within one I/O cycle.
func TestHandshake_WrongDigestNeverWelcomes(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer clientConn.Close()

	done := make(chan error, 1)
	go func() {
		_, err := handshake(serverConn, "correct-password", "none", model.LinkTypeEthernet)
		done <- err
	}()

	challenge, err := ReadFrame(clientConn)
	if err != nil {
		t.Fatalf("read challenge: %v", err)
	}
	if challenge.Kind != FrameChallenge {
		t.Fatalf("kind = %s, want Challenge", challenge.Kind)
	}

	if err := WriteFrame(clientConn, FrameAuth, authPayload{Response: []byte("not-the-right-digest")}); err != nil {
		t.Fatalf("write auth: %v", err)
	}

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected handshake to fail on a wrong digest")
		}
		if !errors.Is(err, errs.ErrUnauthorized) {
			t.Errorf("err = %v, want errs.ErrUnauthorized", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("handshake did not complete in time")
	}

	// A Close frame with reason Unauthorized should arrive instead of a
	// Welcome.
	closeFrame, err := ReadFrame(clientConn)
	if err != nil {
		t.Fatalf("read close frame: %v", err)
	}
	if closeFrame.Kind != FrameClose {
		t.Fatalf("kind = %s, want Close", closeFrame.Kind)
	}
	var payload closePayload
	if err := unmarshalPayload(closeFrame, &payload); err != nil {
		t.Fatalf("decode close payload: %v", err)
	}
	if payload.Reason != CloseReasonUnauthorized {
		t.Errorf("reason = %q, want %q", payload.Reason, CloseReasonUnauthorized)
	}

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected handshake to fail on a wrong digest")
		}
		if !errors.Is(err, errs.ErrUnauthorized) {
			t.Errorf("err = %v, want errs.ErrUnauthorized", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("handshake did not complete in time")
	}
}

func TestHandshake_CorrectDigestWelcomes(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer clientConn.Close()

	done := make(chan error, 1)
	go func() {
		_, err := handshake(serverConn, "correct-password", "zlib", model.LinkTypeEthernet)
		done <- err
	}()

	challenge, err := ReadFrame(clientConn)
	if err != nil {
		t.Fatalf("read challenge: %v", err)
	}
	var payload challengePayload
	if err := unmarshalPayload(challenge, &payload); err != nil {
		t.Fatalf("decode challenge: %v", err)
	}

	response := expectedResponse(payload.Nonce, "correct-password")
	if err := WriteFrame(clientConn, FrameAuth, authPayload{Response: response}); err != nil {
		t.Fatalf("write auth: %v", err)
	}

	welcome, err := ReadFrame(clientConn)
	if err != nil {
		t.Fatalf("read welcome: %v", err)
	}
	if welcome.Kind != FrameWelcome {
		t.Fatalf("kind = %s, want Welcome", welcome.Kind)
	}

	if err := <-done; err != nil {
		t.Fatalf("handshake returned error: %v", err)
	}
}
