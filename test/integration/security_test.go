// Package integration contains security-focused integration tests.
//
// These tests verify that the security constraints are properly enforced,
// including origin validation, message size limits, and rate limiting.
package integration

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/roomcast/roomcast/internal/server"
	"github.com/roomcast/roomcast/test/testhelpers"
)

// TestOriginValidation tests origin enforcement on the WebSocket upgrade.
func TestOriginValidation(t *testing.T) {
	baseURL, wsURL := startTestSystem(t, nil)

	t.Run("Allowed origin connects", func(t *testing.T) {
		conn, err := testhelpers.ConnectWebSocket(wsURL, baseURL)
		if err != nil {
			t.Fatalf("Expected allowed origin to connect: %v", err)
		}
		_ = conn.Close()
	})

	t.Run("Missing Origin header is rejected", func(t *testing.T) {
		dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
		conn, resp, err := dialer.Dial(wsURL, nil)
		if err == nil {
			_ = conn.Close()
			t.Fatal("Expected connection to fail with missing origin")
		}
		if resp != nil {
			defer func() { _ = resp.Body.Close() }()
			if resp.StatusCode != http.StatusForbidden {
				t.Errorf("Expected status %d, got %d", http.StatusForbidden, resp.StatusCode)
			}
		}
	})

	t.Run("Disallowed origin is rejected", func(t *testing.T) {
		conn, err := testhelpers.ConnectWebSocket(wsURL, "http://evil.example.com")
		if err == nil {
			_ = conn.Close()
			t.Fatal("Expected connection to fail with disallowed origin")
		}
	})

	t.Run("Case variations of allowed origin connect", func(t *testing.T) {
		upper := strings.Replace(baseURL, "http://", "HTTP://", 1)
		conn, err := testhelpers.ConnectWebSocket(wsURL, upper)
		if err != nil {
			t.Errorf("Expected origin %q to be allowed (case-insensitive): %v", upper, err)
		} else {
			_ = conn.Close()
		}
	})
}

// TestWildcardOrigin verifies a "*" entry admits any origin.
func TestWildcardOrigin(t *testing.T) {
	_, wsURL := startTestSystem(t, func(cfg *server.Config) {
		cfg.AllowedOrigins = []string{"*"}
	})

	conn, err := testhelpers.ConnectWebSocket(wsURL, "http://anywhere.example.com")
	if err != nil {
		t.Fatalf("Expected wildcard to admit any origin: %v", err)
	}
	_ = conn.Close()
}

// TestOversizedEventClosesConnection verifies the read limit terminates
// connections that send frames past the configured maximum.
func TestOversizedEventClosesConnection(t *testing.T) {
	baseURL, wsURL := startTestSystem(t, func(cfg *server.Config) {
		cfg.MaxMessageSize = 256
	})

	conn, err := testhelpers.ConnectWebSocket(wsURL, baseURL)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer func() { _ = conn.Close() }()

	huge := strings.Repeat("X", 1024)
	if err := testhelpers.SendChatMessage(conn, huge); err != nil {
		t.Fatalf("Failed to send oversized message: %v", err)
	}

	// The server drops the connection; the next read observes the close.
	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("Expected connection to be closed after oversized frame")
	}
}

// TestRateLimiting verifies per-connection throttling discards events past
// the configured burst.
func TestRateLimiting(t *testing.T) {
	baseURL, wsURL := startTestSystem(t, func(cfg *server.Config) {
		cfg.RateLimit.Burst = 2
		cfg.RateLimit.RefillInterval = 10 * time.Second
	})

	conn, _ := joinAndConfirm(t, wsURL, baseURL, "CR1", "alice", "")
	defer func() { _ = conn.Close() }()

	// The join consumed one token. One message fits in the burst; the rest
	// are discarded before reaching the hub.
	const sent = 5
	for i := 0; i < sent; i++ {
		if err := testhelpers.SendChatMessage(conn, "spam"); err != nil {
			t.Fatalf("Failed to send message %d: %v", i, err)
		}
	}

	received := 0
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if err := conn.SetReadDeadline(deadline); err != nil {
			t.Fatalf("Failed to set read deadline: %v", err)
		}
		var event map[string]interface{}
		if err := conn.ReadJSON(&event); err != nil {
			break
		}
		if event["event"] == "message" {
			received++
		}
	}

	if received >= sent {
		t.Errorf("Expected rate limiting to discard some of %d messages, got %d", sent, received)
	}
}
