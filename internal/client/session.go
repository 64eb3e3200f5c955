package client

import (
	"context"

	"github.com/vovakirdan/wirechat-client/internal/proto"
)

// Session is the controller's view of one live room subscription.
// *conn.Session satisfies it; tests plug in fakes.
type Session interface {
	Room() string
	Frames() <-chan proto.Frame
	Send(ctx context.Context, out proto.Outbound) error
	Close()
}

// Dialer opens a session for a room.
type Dialer func(ctx context.Context, room string) (Session, error)
