package models

import (
	"encoding/json"
	"time"
)

// Wire event names. The names mirror the socket.io events the browser
// clients already emit, so existing client bundles keep working.
const (
	EventSetName      = "set name"
	EventNameSet      = "name set"
	EventChatMessage  = "chat message"
	EventMessageSeen  = "message seen"
	EventUpdateStatus = "update status"
	EventChatHistory  = "chat history"
	EventUserStatus   = "userStatus"
	EventOffer        = "webrtc-offer"
	EventAnswer       = "webrtc-answer"
	EventCandidate    = "webrtc-candidate"
)

// Delivery statuses of a chat message. Transitions are monotonic: sent -> seen.
const (
	StatusSent = "sent"
	StatusSeen = "seen"
)

// Presence states carried by EventUserStatus.
const (
	PresenceOnline  = "online"
	PresenceOffline = "offline"
)

// Event is the envelope for every frame on the wire, in both directions.
// Data stays raw so signaling payloads pass through the server untouched.
type Event struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// NewEvent builds an outbound envelope from a typed payload.
func NewEvent(name string, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{Event: name, Data: data}, nil
}

// NameRequest is the payload of EventSetName and EventNameSet.
type NameRequest struct {
	Name string `json:"name"`
}

// ChatMessage is one entry of the chat history log. ID is the 1-based log
// position assigned on append and is the reference used by EventMessageSeen.
type ChatMessage struct {
	ID     uint      `json:"id"`
	Sender string    `json:"sender"`
	Body   string    `json:"body"`
	SentAt time.Time `json:"sent_at"`
	Status string    `json:"status"`
}

// StatusUpdate is the payload of EventMessageSeen (inbound, Status empty)
// and EventUpdateStatus (outbound).
type StatusUpdate struct {
	ID     uint   `json:"id"`
	Status string `json:"status,omitempty"`
}

// UserStatus is the payload of EventUserStatus.
type UserStatus struct {
	User   string `json:"user"`
	Status string `json:"status"`
}
