package integration

import (
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/roomcast/roomcast/internal/server"
	"github.com/roomcast/roomcast/internal/store"
)

func newShutdownHub(t *testing.T) *server.Hub {
	t.Helper()
	st, err := store.NewFileStore(t.TempDir(), 0)
	if err != nil {
		t.Fatalf("Failed to create file store: %v", err)
	}
	hub := server.NewHub(server.DefaultRegistry(), st, 0)
	go hub.Run()
	return hub
}

// TestGracefulShutdown verifies that the hub shuts down cleanly when idle.
func TestGracefulShutdown(t *testing.T) {
	hub := newShutdownHub(t)

	time.Sleep(50 * time.Millisecond)

	if err := hub.Shutdown(5 * time.Second); err != nil {
		t.Errorf("Hub shutdown failed: %v", err)
	}
}

// TestGracefulShutdownTimeout verifies the shutdown timeout is respected.
func TestGracefulShutdownTimeout(t *testing.T) {
	hub := newShutdownHub(t)

	time.Sleep(50 * time.Millisecond)

	start := time.Now()
	_ = hub.Shutdown(50 * time.Millisecond)
	elapsed := time.Since(start)

	if elapsed > 500*time.Millisecond {
		t.Errorf("Shutdown took %v, expected around 50ms", elapsed)
	}
}

// TestGracefulShutdownWithClients verifies that active client connections
// are properly closed during graceful shutdown, and that shutdown completes
// within the timeout rather than waiting on parked pump goroutines.
func TestGracefulShutdownWithClients(t *testing.T) {
	baseURL, wsURL := startTestSystem(t, nil)

	const numClients = 3
	clients := make([]*websocket.Conn, numClients)
	for i := 0; i < numClients; i++ {
		conn, _ := joinAndConfirm(t, wsURL, baseURL, "CR1", fmt.Sprintf("user-%d", i), "")
		clients[i] = conn
	}
	defer func() {
		for _, conn := range clients {
			_ = conn.Close()
		}
	}()

	hub := server.GetHub()
	if hub == nil {
		t.Fatal("Expected a running hub")
	}
	if err := hub.Shutdown(5 * time.Second); err != nil {
		t.Errorf("Hub shutdown failed: %v", err)
	}

	// Every client observes the close after draining any presence frames
	// that were queued before shutdown. A read timeout means the connection
	// was never closed.
	for i, conn := range clients {
		if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
			t.Fatalf("Failed to set read deadline: %v", err)
		}
		var err error
		for err == nil {
			_, _, err = conn.ReadMessage()
		}
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			t.Errorf("Client %d still readable after shutdown", i)
		}
	}
}

// TestServerShutdown verifies ShutdownServer completes within its timeout.
func TestServerShutdown(t *testing.T) {
	mux := server.SetupRoutes()
	httpServer := server.CreateServer("127.0.0.1:0", mux)

	if err := server.ShutdownServer(httpServer, time.Second); err != nil && err != http.ErrServerClosed {
		t.Errorf("ShutdownServer returned unexpected error: %v", err)
	}
}
