// Package server implements the core HTTP and WebSocket functionality for
// Roomcast, a room-based chat relay.
//
// The implementation is organized into specialized files for configuration,
// the room registry, hub management, clients, routing, and HTTP handlers to
// keep the codebase maintainable and testable as the project grows.
package server
