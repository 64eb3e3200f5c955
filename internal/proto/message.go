package proto

import (
	"encoding/json"
	"fmt"
)

const (
	ProtocolVersion = 1

	// FrameKindHistory carries the room's message history, delivered once
	// per subscription, most recent message first.
	FrameKindHistory = "history"
	// FrameKindLive carries a single newly broadcast message.
	FrameKindLive = "live"
)

// Message is the wire shape of a chat message as the server sends it.
type Message struct {
	ID         int64  `json:"id"`
	UserID     int64  `json:"userId"`
	RoomName   string `json:"roomName"`
	Content    string `json:"content"`
	CreatedAt  string `json:"createdAt"`
	UserName   string `json:"userName"`
	ProfilePic string `json:"profilePic"`
}

// Frame is the envelope for server-to-client deliveries. Exactly one of
// Message or Messages is populated, selected by Kind.
type Frame struct {
	Kind     string    `json:"kind"`
	Room     string    `json:"room,omitempty"`
	Message  *Message  `json:"message,omitempty"`
	Messages []Message `json:"messages,omitempty"`
}

// Outbound is the payload the client sends to publish a message.
type Outbound struct {
	UserID   int64  `json:"userId"`
	RoomName string `json:"roomName"`
	Content  string `json:"content"`
}

// DecodeFrame parses a raw server delivery. Frames with an unknown kind or
// a body that does not match the kind are rejected so the session can drop
// them without touching the message log.
func DecodeFrame(data []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, fmt.Errorf("decode frame: %w", err)
	}

	switch f.Kind {
	case FrameKindHistory:
		if f.Message != nil {
			return Frame{}, fmt.Errorf("history frame carries a single message")
		}
	case FrameKindLive:
		if f.Message == nil {
			return Frame{}, fmt.Errorf("live frame missing message")
		}
		if len(f.Messages) != 0 {
			return Frame{}, fmt.Errorf("live frame carries a batch")
		}
	default:
		return Frame{}, fmt.Errorf("unknown frame kind %q", f.Kind)
	}

	return f, nil
}
