package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Client talks to the WireChat REST API: login and the joined-room
// listing. The chat stream itself goes over the WebSocket session, not
// through here.
type Client struct {
	baseURL string
	http    *http.Client
	token   string
	log     *zerolog.Logger
}

// Room is one entry of the joined-room listing.
type Room struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	ProfilePic string `json:"profilePic"`
}

// LoginRequest is the credentials payload for password login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// GuestRequest starts an anonymous session identified by a
// client-generated session id.
type GuestRequest struct {
	SessionID string `json:"sessionId"`
}

// TokenResponse carries the access token issued on login.
type TokenResponse struct {
	Token string `json:"token"`
}

// New builds an API client for the given base URL.
func New(baseURL string, timeout time.Duration, logger *zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		log:     logger,
	}
}

// SetToken installs the bearer token used on authenticated calls.
func (c *Client) SetToken(token string) {
	c.token = token
}

// Login exchanges credentials for an access token.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	var resp TokenResponse
	err := c.do(ctx, http.MethodPost, "/api/auth/login", LoginRequest{
		Username: username,
		Password: password,
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("login: %w", err)
	}
	c.token = resp.Token
	return resp.Token, nil
}

// LoginGuest starts a guest session without credentials.
func (c *Client) LoginGuest(ctx context.Context) (string, error) {
	var resp TokenResponse
	err := c.do(ctx, http.MethodPost, "/api/auth/guest", GuestRequest{
		SessionID: uuid.NewString(),
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("guest login: %w", err)
	}
	c.token = resp.Token
	return resp.Token, nil
}

// JoinedRooms lists the rooms the authenticated user is a member of, in
// server order.
func (c *Client) JoinedRooms(ctx context.Context) ([]Room, error) {
	var rooms []Room
	if err := c.do(ctx, http.MethodGet, "/api/rooms/joined", nil, &rooms); err != nil {
		return nil, fmt.Errorf("joined rooms: %w", err)
	}
	return rooms, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	c.log.Debug().Str("method", method).Str("path", path).Msg("api request")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apiError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
