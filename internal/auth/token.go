package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/vovakirdan/wirechat-client/internal/chat"
)

// Claims is the server-issued token payload the client cares about.
type Claims struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	IsGuest  bool   `json:"is_guest"`
	jwt.RegisteredClaims
}

// ErrTokenExpired means the stored token is past its expiry and the user
// has to log in again.
var ErrTokenExpired = errors.New("token expired")

// Identity extracts the user identity from an access token. The signature
// is not checked: the signing secret lives on the server, and the client
// only needs the claims to label its own messages. Expiry is checked so a
// stale cached token fails fast instead of at the first API call.
func Identity(token string) (chat.Identity, error) {
	parser := jwt.NewParser()

	claims := &Claims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return chat.Identity{}, fmt.Errorf("parse token: %w", err)
	}

	if claims.ExpiresAt != nil && claims.ExpiresAt.Before(time.Now()) {
		return chat.Identity{}, ErrTokenExpired
	}

	if claims.UserID == 0 {
		return chat.Identity{}, errors.New("token missing user_id claim")
	}

	return chat.Identity{
		UserID:   claims.UserID,
		Username: claims.Username,
		IsGuest:  claims.IsGuest,
	}, nil
}
