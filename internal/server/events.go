// Package server defines the JSON event envelope exchanged with clients and
// utility helpers reused across client and hub logic.
package server

import (
	"strings"
	"time"

	"github.com/roomcast/roomcast/internal/store"
)

// Event names carried in the envelope's event field.
const (
	EventJoinRoom         = "joinRoom"
	EventLeaveRoom        = "leaveRoom"
	EventMessage          = "message"
	EventPasswordRequired = "passwordRequired"
	EventRoomJoined       = "roomJoined"
	EventUserJoined       = "userJoined"
	EventUserLeft         = "userLeft"
)

// ClientEvent is the envelope for every client-to-server frame. Which fields
// are meaningful depends on Event; absent fields decode to zero values and
// handlers treat them as "not supplied".
type ClientEvent struct {
	Event    string `json:"event"`
	Room     string `json:"room,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	User     string `json:"user,omitempty"`
	Text     string `json:"text,omitempty"`
}

// PasswordRequiredEvent rejects a join attempt against a password-gated room.
// Sent to the requester only.
type PasswordRequiredEvent struct {
	Event string `json:"event"`
	Room  string `json:"room"`
}

// RoomJoinedEvent confirms a join to the requester and carries the room's
// persisted history, oldest first.
type RoomJoinedEvent struct {
	Event    string          `json:"event"`
	Room     string          `json:"room"`
	Username string          `json:"username"`
	RoomName string          `json:"roomName"`
	Messages []store.Message `json:"messages"`
}

// PresenceEvent informs existing members that a user joined or left the room.
type PresenceEvent struct {
	Event   string `json:"event"`
	User    string `json:"user"`
	Message string `json:"message"`
}

// MessageEvent is one chat message broadcast to every member of a room,
// mirroring the persisted record exactly.
type MessageEvent struct {
	Event     string    `json:"event"`
	ID        string    `json:"id"`
	User      string    `json:"user"`
	Text      string    `json:"text"`
	Room      string    `json:"room"`
	Timestamp time.Time `json:"timestamp"`
}

func newMessageEvent(msg store.Message) MessageEvent {
	return MessageEvent{
		Event:     EventMessage,
		ID:        msg.ID,
		User:      msg.User,
		Text:      msg.Text,
		Room:      msg.Room,
		Timestamp: msg.Timestamp,
	}
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
