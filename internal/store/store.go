package store

import (
	"context"
	"time"
)

// Credentials is the cached login state. Only the token and its username
// are kept; messages are never persisted.
type Credentials struct {
	Token    string
	Username string
	SavedAt  time.Time
}

// Room is one cached entry of the joined-room listing, in server order.
type Room struct {
	ID         int64
	Name       string
	ProfilePic string
	Position   int
}

// Store is the client's local state cache: credentials, the last active
// room, and the cached joined-room listing.
type Store interface {
	SaveCredentials(ctx context.Context, creds Credentials) error
	// Credentials returns nil without error when nothing is cached.
	Credentials(ctx context.Context) (*Credentials, error)
	ClearCredentials(ctx context.Context) error

	SetLastRoom(ctx context.Context, name string) error
	LastRoom(ctx context.Context) (string, error)

	ReplaceRooms(ctx context.Context, rooms []Room) error
	Rooms(ctx context.Context) ([]Room, error)

	Close() error
}
