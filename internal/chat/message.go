package chat

import "github.com/vovakirdan/wirechat-client/internal/proto"

// Message is the domain model for a chat message as the client holds it.
// Messages are immutable once received; the ID is used for presentation
// keying only, never for ordering.
type Message struct {
	ID         int64
	UserID     int64
	Room       string
	Content    string
	CreatedAt  string
	UserName   string
	ProfilePic string
}

// Identity names the authenticated user on whose behalf the client runs.
type Identity struct {
	UserID   int64
	Username string
	IsGuest  bool
}

// FromWire converts a wire message into the domain model.
func FromWire(m proto.Message) Message {
	return Message{
		ID:         m.ID,
		UserID:     m.UserID,
		Room:       m.RoomName,
		Content:    m.Content,
		CreatedAt:  m.CreatedAt,
		UserName:   m.UserName,
		ProfilePic: m.ProfilePic,
	}
}
