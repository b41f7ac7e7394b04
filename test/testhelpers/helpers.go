// Package testhelpers provides common utilities and helper functions for testing the Roomcast server.
//
// This package contains reusable test utilities that are shared across unit and integration tests.
// It provides functions for creating test servers, speaking the room protocol over WebSocket
// connections, and asserting response properties to reduce code duplication in test files.
package testhelpers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// CreateTestServer creates a test HTTP server with the given handler.
// It returns a running httptest.Server that should be closed after use.
func CreateTestServer(handler http.Handler) *httptest.Server {
	return httptest.NewServer(handler)
}

// AssertStatusCode checks if the HTTP response has the expected status code.
// It fails the test with a descriptive error message if the status codes don't match.
func AssertStatusCode(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("Expected status code %d, got %d", expected, resp.StatusCode)
	}
}

// AssertContentType checks if the HTTP response has the expected Content-Type header.
// It fails the test with a descriptive error message if the content types don't match.
func AssertContentType(t *testing.T, resp *http.Response, expected string) {
	t.Helper()
	contentType := resp.Header.Get("Content-Type")
	if contentType != expected {
		t.Errorf("Expected content type %s, got %s", expected, contentType)
	}
}

// MakeRequest creates and executes an HTTP request, returning the response.
// It includes a 5-second timeout and fails the test if the request cannot be
// created or executed successfully.
func MakeRequest(t *testing.T, method, url string) *http.Response {
	t.Helper()

	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	req, err := http.NewRequest(method, url, http.NoBody)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}

	return resp
}

// ConnectWebSocket creates a WebSocket connection to the specified URL using
// origin as the Origin header. It returns the connection or an error if the
// connection fails.
func ConnectWebSocket(url, origin string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	headers := http.Header{}
	headers.Set("Origin", origin)

	conn, resp, err := dialer.Dial(url, headers)
	if resp != nil {
		_ = resp.Body.Close()
	}
	return conn, err
}

// SendEvent sends one protocol envelope over the WebSocket connection.
func SendEvent(conn *websocket.Conn, event map[string]interface{}) error {
	return conn.WriteJSON(event)
}

// SendJoinRoom sends a joinRoom envelope for the given room, username, and
// password.
func SendJoinRoom(conn *websocket.Conn, room, username, password string) error {
	return SendEvent(conn, map[string]interface{}{
		"event":    "joinRoom",
		"room":     room,
		"username": username,
		"password": password,
	})
}

// SendChatMessage sends a message envelope with the given text.
func SendChatMessage(conn *websocket.Conn, text string) error {
	return SendEvent(conn, map[string]interface{}{
		"event": "message",
		"text":  text,
	})
}

// SendLeaveRoom sends a leaveRoom envelope.
func SendLeaveRoom(conn *websocket.Conn) error {
	return SendEvent(conn, map[string]interface{}{"event": "leaveRoom"})
}

// ReceiveEvent reads one protocol envelope from the WebSocket connection
// within the timeout. It fails the test if nothing arrives.
func ReceiveEvent(t *testing.T, conn *websocket.Conn, timeout time.Duration) map[string]interface{} {
	t.Helper()

	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}
	var event map[string]interface{}
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("Failed to read event: %v", err)
	}
	return event
}

// ReceiveEventOfType reads envelopes until one with the expected event name
// arrives, failing the test if the timeout elapses first. Presence
// notifications interleave with chat traffic, so tests usually care about
// the next event of a particular type rather than the very next frame.
func ReceiveEventOfType(t *testing.T, conn *websocket.Conn, eventName string, timeout time.Duration) map[string]interface{} {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if err := conn.SetReadDeadline(deadline); err != nil {
			t.Fatalf("Failed to set read deadline: %v", err)
		}
		var event map[string]interface{}
		if err := conn.ReadJSON(&event); err != nil {
			t.Fatalf("Failed to read event while waiting for %q: %v", eventName, err)
		}
		if event["event"] == eventName {
			return event
		}
	}
	t.Fatalf("Timed out waiting for %q event", eventName)
	return nil
}

// AssertEventField checks that the event carries the expected value for a field.
func AssertEventField(t *testing.T, event map[string]interface{}, field string, expected interface{}) {
	t.Helper()
	value, ok := event[field]
	if !ok {
		t.Errorf("Event %v does not contain field %q", event["event"], field)
		return
	}
	if value != expected {
		t.Errorf("Expected event field %q to be %v, got %v", field, expected, value)
	}
}

// ExpectNoEvent verifies that nothing arrives on the connection within the
// timeout. A read timeout is the success case. The induced timeout
// permanently fails the connection for reads, so this must be the last read
// on the connection; to prove absence mid-conversation, send a sentinel and
// assert it is the next event received instead.
func ExpectNoEvent(t *testing.T, conn *websocket.Conn, timeout time.Duration) {
	t.Helper()

	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}
	_, raw, err := conn.ReadMessage()
	if err == nil {
		t.Fatalf("Expected no event, but received: %s", raw)
	}
}

// CloseWebSocket gracefully closes a WebSocket connection.
func CloseWebSocket(conn *websocket.Conn) error {
	err := conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		return err
	}
	return conn.Close()
}

// CreateJSONEvent creates a JSON-encoded protocol envelope.
func CreateJSONEvent(event map[string]interface{}) ([]byte, error) {
	return json.Marshal(event)
}
