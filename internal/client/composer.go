package client

import (
	"strings"

	"github.com/vovakirdan/wirechat-client/internal/chat"
	"github.com/vovakirdan/wirechat-client/internal/proto"
)

// Composer holds the outbound draft buffer and turns it into wire
// payloads. Whitespace-only drafts are rejected before any payload is
// built; the trim is validation only, the payload carries the draft as
// typed. The draft is cleared only when a payload was actually composed.
type Composer struct {
	draft string
}

// SetDraft replaces the draft buffer.
func (c *Composer) SetDraft(text string) {
	c.draft = text
}

// Draft returns the current draft buffer.
func (c *Composer) Draft() string {
	return c.draft
}

// Compose validates the draft against the active room and identity. On
// acceptance it returns the outbound payload and clears the draft; on
// rejection the draft is left untouched and ok is false.
func (c *Composer) Compose(identity chat.Identity, room string) (out proto.Outbound, ok bool) {
	if strings.TrimSpace(c.draft) == "" {
		return proto.Outbound{}, false
	}

	out = proto.Outbound{
		UserID:   identity.UserID,
		RoomName: room,
		Content:  c.draft,
	}
	c.draft = ""
	return out, true
}
