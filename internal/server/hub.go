// Package server coordinates room membership, message persistence, and
// broadcast fan-out for the relay via the Hub type.
package server

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/roomcast/roomcast/internal/store"
)

// storeTimeout bounds every history load and append so a stalled backend
// cannot wedge the event loop indefinitely.
const storeTimeout = 5 * time.Second

// clientEvent pairs a decoded envelope with the connection it arrived on.
type clientEvent struct {
	client *Client
	event  ClientEvent
}

// Hub is the single event loop for the chat protocol. Registration,
// unregistration, and all client events are handled one at a time in arrival
// order, so session state (a client's room and username) is only ever
// touched from the Run goroutine and per-room broadcast order matches
// persistence order without extra locking.
type Hub struct {
	registry     *Registry
	store        store.MessageStore
	historyLimit int

	clients map[*Client]bool
	rooms   map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	events     chan clientEvent

	mutex  sync.RWMutex
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewHub creates a Hub bound to the given room registry and message store.
// historyLimit caps how many messages are replayed on join; values <= 0 fall
// back to the store default.
func NewHub(registry *Registry, st store.MessageStore, historyLimit int) *Hub {
	if historyLimit <= 0 {
		historyLimit = store.DefaultHistoryLimit
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		registry:     registry,
		store:        st,
		historyLimit: historyLimit,
		clients:      make(map[*Client]bool),
		rooms:        make(map[string]map[*Client]bool),
		register:     make(chan *Client),
		unregister:   make(chan *Client),
		events:       make(chan clientEvent),
		ctx:          ctx,
		cancel:       cancel,
		done:         make(chan struct{}),
	}
}

// GetRegisterChan returns the channel used for registering new clients to the hub.
// This channel is write-only from the caller's perspective.
func (h *Hub) GetRegisterChan() chan<- *Client {
	return h.register
}

// GetUnregisterChan returns the channel used for unregistering clients from the hub.
// This channel is write-only from the caller's perspective.
func (h *Hub) GetUnregisterChan() chan<- *Client {
	return h.unregister
}

// Dispatch queues one decoded client event for the hub loop. It blocks until
// the loop accepts the event or the hub shuts down.
func (h *Hub) Dispatch(c *Client, ev ClientEvent) {
	select {
	case h.events <- clientEvent{client: c, event: ev}:
	case <-h.ctx.Done():
	}
}

// Run starts the hub's main event loop, handling client registration,
// unregistration, and protocol events. This method should be called in a
// separate goroutine as it runs indefinitely.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			if client == nil {
				log.Printf("Received nil client registration; skipping")
				continue
			}
			h.registerClient(client)

		case client := <-h.unregister:
			h.handleDisconnect(client)
			h.removeClient(client)

		case ev := <-h.events:
			h.handleEvent(ev)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mutex.Lock()
	client.closed = false
	h.clients[client] = true
	clientCount := len(h.clients)
	h.mutex.Unlock()
	log.Printf("Client registered from %s. Total clients: %d", client.addr, clientCount)

	if client.conn == nil {
		return
	}

	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		client.writePump()
	}()
	go func() {
		defer h.wg.Done()
		client.readPump()
	}()
}

func (h *Hub) removeClient(client *Client) {
	h.mutex.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		client.closed = true
		clientCount := len(h.clients)
		h.mutex.Unlock()
		// Close the channel after releasing the lock
		close(client.send)
		log.Printf("Client unregistered from %s. Total clients: %d", client.addr, clientCount)
	} else {
		h.mutex.Unlock()
	}
}

func (h *Hub) handleEvent(ev clientEvent) {
	switch ev.event.Event {
	case EventJoinRoom:
		h.handleJoin(ev.client, ev.event)
	case EventLeaveRoom:
		h.handleLeave(ev.client)
	case EventMessage:
		h.handleMessage(ev.client, ev.event)
	default:
		log.Printf("Unknown event %q from %s; dropping", ev.event.Event, ev.client.addr)
	}
}

// handleJoin runs the join transition: password gate, transport-level join,
// history replay, and presence notification. Joining while already in a room
// leaves the prior room first, with the usual notification to its members.
func (h *Hub) handleJoin(client *Client, ev ClientEvent) {
	policy := h.registry.Lookup(ev.Room)

	if policy.Password != "" && ev.Password != policy.Password {
		log.Printf("Rejected join to %s from %s: password mismatch", ev.Room, client.addr)
		h.sendEvent(client, PasswordRequiredEvent{Event: EventPasswordRequired, Room: ev.Room})
		return
	}

	if client.room != "" {
		h.leaveRoom(client, client.username+" left the room")
	}

	members, ok := h.rooms[ev.Room]
	if !ok {
		members = make(map[*Client]bool)
		h.rooms[ev.Room] = members
	}
	members[client] = true
	client.room = ev.Room
	client.username = ev.Username
	log.Printf("Client %s joined room %s as %q (%d members)", client.addr, ev.Room, ev.Username, len(members))

	history := h.loadHistory(ev.Room)

	h.broadcastToRoom(ev.Room, client, PresenceEvent{
		Event:   EventUserJoined,
		User:    ev.Username,
		Message: ev.Username + " joined the room",
	})

	h.sendEvent(client, RoomJoinedEvent{
		Event:    EventRoomJoined,
		Room:     ev.Room,
		Username: ev.Username,
		RoomName: policy.DisplayName,
		Messages: history,
	})
}

// loadHistory replays the room's persisted log, degrading to an empty
// history on storage failure.
func (h *Hub) loadHistory(roomID string) []store.Message {
	ctx, cancel := context.WithTimeout(h.ctx, storeTimeout)
	defer cancel()

	history, err := h.store.LoadHistory(ctx, roomID, h.historyLimit)
	if err != nil {
		log.Printf("Failed to load history for room %s: %v", roomID, err)
		return []store.Message{}
	}
	if history == nil {
		history = []store.Message{}
	}
	return history
}

func (h *Hub) handleLeave(client *Client) {
	if client.room == "" {
		return
	}
	h.leaveRoom(client, client.username+" left the room")
}

func (h *Hub) handleDisconnect(client *Client) {
	if client == nil || client.room == "" {
		return
	}
	h.leaveRoom(client, client.username+" disconnected")
}

// leaveRoom unbinds the client from its current room and notifies the
// remaining members. Empty rooms are dropped from the table.
func (h *Hub) leaveRoom(client *Client, notice string) {
	roomID := client.room
	username := client.username
	client.room = ""

	if members, ok := h.rooms[roomID]; ok {
		delete(members, client)
		if len(members) == 0 {
			delete(h.rooms, roomID)
		}
	}

	h.broadcastToRoom(roomID, client, PresenceEvent{
		Event:   EventUserLeft,
		User:    username,
		Message: notice,
	})
	log.Printf("Client %s left room %s", client.addr, roomID)
}

// handleMessage persists an inbound chat message and, only on successful
// persistence, broadcasts it to every member of the room including the
// sender. Messages from clients not bound to a room or without a usable
// username are dropped.
func (h *Hub) handleMessage(client *Client, ev ClientEvent) {
	if client.room == "" {
		log.Printf("Dropping message from %s: not in a room", client.addr)
		return
	}

	user := ev.User
	if user == "" {
		user = client.username
	}
	if user == "" {
		log.Printf("Dropping message from %s: no username", client.addr)
		return
	}

	msg := store.Message{
		ID:        uuid.NewString(),
		User:      user,
		Room:      client.room,
		Text:      ev.Text,
		Timestamp: time.Now().UTC(),
	}

	ctx, cancel := context.WithTimeout(h.ctx, storeTimeout)
	defer cancel()
	if err := h.store.Append(ctx, client.room, msg); err != nil {
		log.Printf("Failed to persist message for room %s: %v; suppressing broadcast", client.room, err)
		return
	}

	h.broadcastToRoom(client.room, nil, newMessageEvent(msg))
}

// sendEvent delivers one event to a single client.
func (h *Hub) sendEvent(client *Client, event interface{}) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("Failed to encode event for %s: %v", client.addr, err)
		return
	}
	if !h.safeSend(client, payload) {
		h.removeFailedClients([]*Client{client})
	}
}

// broadcastToRoom fans an event out to every member of a room. A non-nil
// except is skipped (the triggering client for presence events); pass nil to
// include everyone.
func (h *Hub) broadcastToRoom(roomID string, except *Client, event interface{}) {
	members := h.roomSnapshot(roomID)
	if len(members) == 0 {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("Failed to encode broadcast for room %s: %v", roomID, err)
		return
	}

	var clientsToRemove []*Client
	for _, member := range members {
		if except != nil && member == except {
			continue
		}
		if !h.safeSend(member, payload) {
			clientsToRemove = append(clientsToRemove, member)
		}
	}
	h.removeFailedClients(clientsToRemove)
}

// roomSnapshot returns the current members of a room.
func (h *Hub) roomSnapshot(roomID string) []*Client {
	members, ok := h.rooms[roomID]
	if !ok {
		return nil
	}
	snapshot := make([]*Client, 0, len(members))
	for member := range members {
		snapshot = append(snapshot, member)
	}
	return snapshot
}

func (h *Hub) safeSend(client *Client, message []byte) bool {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic in safeSend: %v", r)
		}
	}()

	// Hold the lock during the entire send operation to prevent race conditions
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	// Check if client is still registered and not closed
	_, exists := h.clients[client]
	if !exists || client.closed {
		return false
	}

	// Try to send the message (channel might be closed, so we need to recover from panic)
	select {
	case client.send <- message:
		return true
	default:
		return false
	}
}

// removeFailedClients removes clients that failed to receive messages and closes their channels
func (h *Hub) removeFailedClients(clientsToRemove []*Client) {
	if len(clientsToRemove) == 0 {
		return
	}

	h.mutex.Lock()
	var channelsToClose []chan []byte
	for _, client := range clientsToRemove {
		if _, exists := h.clients[client]; exists {
			delete(h.clients, client)
			client.closed = true
			channelsToClose = append(channelsToClose, client.send)
			log.Printf("Client from %s removed due to full send buffer", client.addr)
		}
		if members, ok := h.rooms[client.room]; ok {
			delete(members, client)
			if len(members) == 0 {
				delete(h.rooms, client.room)
			}
		}
	}
	h.mutex.Unlock()

	// Close channels after releasing the lock
	for _, ch := range channelsToClose {
		close(ch)
	}
}

// shutdownClients gracefully closes all active client connections
func (h *Hub) shutdownClients() {
	log.Println("Shutting down all client connections...")

	h.mutex.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mutex.Unlock()

	// Close all client connections
	for _, client := range clients {
		if client.conn != nil {
			if err := client.conn.Close(); err != nil {
				if !isExpectedCloseError(err) {
					log.Printf("Error closing client connection from %s: %v", client.addr, err)
				}
			}
		}
	}

	log.Printf("Closed %d client connections", len(clients))
}

// Shutdown initiates graceful shutdown of the hub and waits for all goroutines to complete.
// It returns after all client connections are closed and goroutines have finished,
// or when the timeout is reached.
func (h *Hub) Shutdown(timeout time.Duration) error {
	log.Println("Initiating hub shutdown...")

	// Signal shutdown
	h.cancel()

	// Wait for Run() to complete
	<-h.done

	// Wait for all client goroutines to finish with timeout
	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("Hub shutdown completed successfully")
		return nil
	case <-time.After(timeout):
		log.Println("Hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
