package socket

import (
	"encoding/json"
	"sync"
	"time"

	"marginalia/internal/annotation/store"
	"marginalia/pkg/logger"
)

const (
	SnapshotType       = "SNAPSHOT"           // Full annotation set for the document, sent on join
	CreatedType        = "ANNOTATION_CREATED" // New annotation on this document
	UpdatedType        = "ANNOTATION_UPDATED" // Annotation edited or regraded
	DeletedType        = "ANNOTATION_DELETED" // Annotation removed
	PresenceUpdateType = "PRESENCE_UPDATE"    // A reader joined or left
)

type WSMessage struct {
	Type        string          `json:"type"`
	DocumentURL string          `json:"document_url"`
	UserID      string          `json:"user_id"`
	Payload     json.RawMessage `json:"payload"`
}

type UserStatus struct {
	UserID   string    `json:"user_id"`
	LastSeen time.Time `json:"last_seen"`
}

// Hub fans annotation lifecycle events out to the viewers watching each
// document. Rooms are keyed by document URL. The hub holds no annotation
// state of its own; joining clients get their snapshot from the store.
type Hub struct {
	Rooms      map[string]map[*Client]bool
	Broadcast  chan WSMessage
	Register   chan *Client
	Unregister chan *Client
	store      *store.Store
	Presence   map[string]map[string]UserStatus // documentURL -> userID -> status
	mu         sync.Mutex
}

func NewHub(st *store.Store) *Hub {
	return &Hub{
		Rooms:      make(map[string]map[*Client]bool),
		Broadcast:  make(chan WSMessage),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		store:      st,
		Presence:   make(map[string]map[string]UserStatus),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.mu.Lock()
			if h.Rooms[client.DocumentURL] == nil {
				h.Rooms[client.DocumentURL] = make(map[*Client]bool)
				h.Presence[client.DocumentURL] = make(map[string]UserStatus)
			}
			h.Rooms[client.DocumentURL][client] = true
			h.Presence[client.DocumentURL][client.UserID] = UserStatus{UserID: client.UserID, LastSeen: time.Now()}
			h.mu.Unlock()

			// Send the document's current annotations so the viewer can
			// render highlights immediately.
			records := h.store.GetByDocument(client.DocumentURL)
			snapshot, err := json.Marshal(records)
			if err != nil || records == nil {
				snapshot = []byte("[]")
			}
			msg, _ := json.Marshal(WSMessage{Type: SnapshotType, DocumentURL: client.DocumentURL, Payload: snapshot})
			client.Send <- msg

			h.broadcastPresenceUpdate(client.DocumentURL)

		case client := <-h.Unregister:
			h.mu.Lock()
			docURL := client.DocumentURL
			if _, ok := h.Rooms[docURL][client]; ok {
				delete(h.Rooms[docURL], client)
				delete(h.Presence[docURL], client.UserID)
				close(client.Send)

				if len(h.Rooms[docURL]) == 0 {
					delete(h.Rooms, docURL)
					delete(h.Presence, docURL)
					logger.Sugar.Infof("Closed empty room: %s", docURL)
				}
			}
			h.mu.Unlock()

			if h.Rooms[docURL] != nil {
				h.broadcastPresenceUpdate(docURL)
			}

		case msg := <-h.Broadcast:
			payload, err := json.Marshal(msg)
			if err != nil {
				logger.Sugar.Errorf("Error marshalling broadcast message: %v", err)
				continue
			}

			// Collect recipients under the lock, write outside it. The
			// mutating caller already has the result; skip them.
			h.mu.Lock()
			clientsToSend := make([]*Client, 0, len(h.Rooms[msg.DocumentURL]))
			for client := range h.Rooms[msg.DocumentURL] {
				if client.UserID != msg.UserID {
					clientsToSend = append(clientsToSend, client)
				}
			}
			h.mu.Unlock()

			for _, client := range clientsToSend {
				select {
				case client.Send <- payload:
				default:
					logger.Sugar.Warnf("Client %s's send buffer is full. Unregistering.", client.UserID)
					h.Unregister <- client
				}
			}
		}
	}
}

func (h *Hub) broadcastPresenceUpdate(docURL string) {
	var userStatuses []UserStatus
	var clientsToSend []*Client

	h.mu.Lock()
	if _, ok := h.Presence[docURL]; ok {
		userStatuses = make([]UserStatus, 0, len(h.Presence[docURL]))
		for _, status := range h.Presence[docURL] {
			userStatuses = append(userStatuses, status)
		}

		clientsToSend = make([]*Client, 0, len(h.Rooms[docURL]))
		for client := range h.Rooms[docURL] {
			clientsToSend = append(clientsToSend, client)
		}
	}
	h.mu.Unlock()

	if len(clientsToSend) == 0 {
		return
	}

	payload, err := json.Marshal(userStatuses)
	if err != nil {
		logger.Sugar.Errorf("Error marshalling presence broadcast: %v", err)
		return
	}
	broadcastPayload, _ := json.Marshal(WSMessage{Type: PresenceUpdateType, DocumentURL: docURL, Payload: payload})

	for _, client := range clientsToSend {
		select {
		case client.Send <- broadcastPayload:
		default:
			logger.Sugar.Warnf("Client %s's send buffer was full during presence update.", client.UserID)
		}
	}
}
