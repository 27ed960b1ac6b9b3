package protocol

import "encoding/json"

// FrameType identifies a relay frame.
type FrameType string

const (
	// Client -> Relay
	FrameJoin    FrameType = "join"
	FrameLeave   FrameType = "leave"
	FrameTrack   FrameType = "track"
	FrameUntrack FrameType = "untrack"

	// Both directions
	FrameBroadcast FrameType = "broadcast"

	// Relay -> Client
	FramePresence FrameType = "presence"
	FrameError    FrameType = "error"
)

const (
	DirectoryTopic  = "rooms:directory"
	roomTopicPrefix = "room:"
)

// RoomTopic is the channel name for a room.
func RoomTopic(roomID string) string {
	return roomTopicPrefix + roomID
}

// Frame is the relay's websocket wire format. Which fields are set depends
// on Type.
type Frame struct {
	Type    FrameType                  `json:"type"`
	Topic   string                     `json:"topic,omitempty"`
	Key     string                     `json:"key,omitempty"`
	Event   MessageType                `json:"event,omitempty"`
	Payload json.RawMessage            `json:"payload,omitempty"`
	Meta    json.RawMessage            `json:"meta,omitempty"`
	Members map[string]json.RawMessage `json:"members,omitempty"`
	Message string                     `json:"message,omitempty"`
}
