// Package store persists chat messages per room and replays them as history.
//
// Two implementations satisfy the MessageStore contract: a file-backed store
// that keeps one JSON log per room, and a MongoDB-backed store that keeps one
// document per message. The backend is selected at startup; the rest of the
// system only sees the interface.
package store

import (
	"context"
	"time"
)

// DefaultHistoryLimit is the retention cap applied per room. Once a room's
// log exceeds this many messages the oldest entries are evicted.
const DefaultHistoryLimit = 1000

// Message is one persisted chat message. Messages are immutable once
// created; the id and timestamp are assigned by the server at receipt.
type Message struct {
	ID        string    `json:"id" bson:"id"`
	User      string    `json:"user" bson:"user"`
	Room      string    `json:"room" bson:"room"`
	Text      string    `json:"text" bson:"text"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
}

// MessageStore is the persistence contract for room message logs.
//
// Append writes one message durably associated with roomID. A non-nil error
// means the message was not persisted; callers must not broadcast it.
//
// LoadHistory returns up to limit of the most recent messages for roomID in
// chronological order, oldest first. Implementations return an error on
// storage failure; callers are expected to degrade to an empty history.
type MessageStore interface {
	Append(ctx context.Context, roomID string, msg Message) error
	LoadHistory(ctx context.Context, roomID string, limit int) ([]Message, error)
	Close(ctx context.Context) error
}
