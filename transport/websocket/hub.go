package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
)

// Hub tracks live clients and the room broadcast groups they belong to.
// Fan-out is best-effort: a full client buffer drops the message instead
// of stalling the rest of the room.
type Hub struct {
	logger *slog.Logger

	mu      sync.RWMutex
	clients map[string]*Client            // connection id -> client
	groups  map[string]map[string]*Client // room id -> connection id -> client
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger:  logger,
		clients: make(map[string]*Client),
		groups:  make(map[string]map[string]*Client),
	}
}

func (that *Hub) Register(client *Client) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.clients[client.ID] = client
}

// Unregister drops the client from every group and shuts its send
// channel down, which ends its write pump.
func (that *Hub) Unregister(connectionID string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	client, ok := that.clients[connectionID]
	if !ok {
		return
	}

	delete(that.clients, connectionID)

	for roomID, group := range that.groups {
		delete(group, connectionID)
		if len(group) == 0 {
			delete(that.groups, roomID)
		}
	}

	client.shutdown()
}

// Join adds the connection to a room's broadcast group. A connection
// belongs to at most one group; joining a new room leaves the old one.
func (that *Hub) Join(roomID, connectionID string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	client, ok := that.clients[connectionID]
	if !ok {
		return
	}

	for id, group := range that.groups {
		if id == roomID {
			continue
		}
		delete(group, connectionID)
		if len(group) == 0 {
			delete(that.groups, id)
		}
	}

	group, ok := that.groups[roomID]
	if !ok {
		group = make(map[string]*Client)
		that.groups[roomID] = group
	}

	group[connectionID] = client
}

// RoomOf reports which room's group the connection currently belongs to.
func (that *Hub) RoomOf(connectionID string) (string, bool) {
	that.mu.RLock()
	defer that.mu.RUnlock()

	for roomID, group := range that.groups {
		if _, ok := group[connectionID]; ok {
			return roomID, true
		}
	}

	return "", false
}

// SendTo delivers a message to a single connection.
func (that *Hub) SendTo(connectionID, action string, payload any) error {
	message, err := marshalMessage(action, payload)
	if err != nil {
		return err
	}

	that.mu.RLock()
	client, ok := that.clients[connectionID]
	that.mu.RUnlock()

	if !ok {
		return nil
	}

	if !client.enqueue(message) {
		that.logger.Warn("dropped message for slow consumer", "connectionID", connectionID, "action", action)
	}

	return nil
}

// Broadcast delivers a message to every connection in a room's group,
// except the connection named by exclude (empty string excludes nobody).
func (that *Hub) Broadcast(roomID, exclude, action string, payload any) error {
	message, err := marshalMessage(action, payload)
	if err != nil {
		return err
	}

	that.mu.RLock()
	group := that.groups[roomID]
	recipients := make([]*Client, 0, len(group))
	for id, client := range group {
		if id == exclude {
			continue
		}
		recipients = append(recipients, client)
	}
	that.mu.RUnlock()

	for _, client := range recipients {
		if !client.enqueue(message) {
			that.logger.Warn("dropped broadcast for slow consumer", "connectionID", client.ID, "action", action)
		}
	}

	return nil
}

func marshalMessage(action string, payload any) ([]byte, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	message, err := json.Marshal(Message{Action: action, Payload: payloadJSON})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}

	return message, nil
}
