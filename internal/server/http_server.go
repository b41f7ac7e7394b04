// Package server constructs and starts the Roomcast HTTP service with
// helpers that apply sensible production defaults.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/roomcast/roomcast/internal/store"
)

var (
	hubMu sync.RWMutex
	hub   *Hub
)

// CreateServer creates and configures an HTTP server with the specified port and handler.
// It sets reasonable timeout values for production use.
func CreateServer(port string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// StartHub creates the global hub around the given message store and starts
// its event loop. This should be called before starting the HTTP server.
func StartHub(st store.MessageStore) *Hub {
	h := NewHub(DefaultRegistry(), st, currentConfig().Store.HistoryLimit)

	hubMu.Lock()
	hub = h
	hubMu.Unlock()

	go h.Run()
	log.Println("Hub started and ready to manage WebSocket connections")
	return h
}

// StartServer starts the HTTP server and begins listening for connections.
// It returns an error if the server fails to start.
func StartServer(server *http.Server) error {
	fmt.Printf("Server listening on port %s\n", server.Addr)
	return server.ListenAndServe()
}

// ShutdownServer gracefully shuts down the HTTP server without interrupting active connections.
// It waits for active connections to close or until the timeout is reached.
func ShutdownServer(server *http.Server, timeout time.Duration) error {
	log.Println("Shutting down HTTP server...")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		return err
	}

	log.Println("HTTP server shutdown completed")
	return nil
}

// GetHub returns the global hub instance, or nil if StartHub has not run.
func GetHub() *Hub {
	hubMu.RLock()
	defer hubMu.RUnlock()
	return hub
}
