package conn

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-client/internal/proto"
)

// Session owns one live subscription to a single room. It holds the
// WebSocket connection, a read loop that decodes inbound frames, and the
// send primitive. A session is bound to its room for its whole lifetime;
// switching rooms means closing this session and dialing a new one.
type Session struct {
	room   string
	conn   *websocket.Conn
	frames chan proto.Frame
	cancel context.CancelFunc
	log    *zerolog.Logger

	mu     sync.Mutex
	closed bool
}

// Dial connects to the chat endpoint for one room and starts the read
// loop. baseURL is the WebSocket endpoint without the room segment, e.g.
// ws://host:8080/chat. The bearer token authenticates the subscription.
func Dial(ctx context.Context, baseURL, room, token string, logger *zerolog.Logger) (*Session, error) {
	if room == "" {
		return nil, errors.New("dial: empty room name")
	}

	endpoint := strings.TrimSuffix(baseURL, "/") + "/" + url.PathEscape(room)

	header := http.Header{"X-Wirechat-Protocol": {strconv.Itoa(proto.ProtocolVersion)}}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	opts := &websocket.DialOptions{HTTPHeader: header}

	wsConn, _, err := websocket.Dial(ctx, endpoint, opts)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}

	readCtx, cancel := context.WithCancel(context.Background())
	s := &Session{
		room:   room,
		conn:   wsConn,
		frames: make(chan proto.Frame, 16),
		cancel: cancel,
		log:    logger,
	}

	go s.readLoop(readCtx)
	return s, nil
}

// Room returns the room this session is bound to.
func (s *Session) Room() string {
	return s.room
}

// Frames returns the inbound delivery channel. Frames arrive in receipt
// order and the channel is closed when the session ends, so a receiver
// selecting on it stops seeing deliveries the moment the session dies.
func (s *Session) Frames() <-chan proto.Frame {
	return s.frames
}

// Send transmits one outbound message over the active channel. Calling
// Send on a closed session is a no-op.
func (s *Session) Send(ctx context.Context, out proto.Outbound) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil
	}

	if err := wsjson.Write(ctx, s.conn, out); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	return nil
}

// Close tears the subscription down: the read loop stops, the frame
// channel drains and closes, and the connection is released. Safe to call
// more than once.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	_ = s.conn.Close(websocket.StatusNormalClosure, "leaving room")
}

func (s *Session) readLoop(ctx context.Context) {
	defer close(s.frames)

	for {
		_, data, err := s.conn.Read(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) && !isExpectedClose(err) {
				s.log.Warn().Err(err).Str("room", s.room).Msg("read frame")
			}
			return
		}

		frame, err := proto.DecodeFrame(data)
		if err != nil {
			// Malformed deliveries are dropped; they must never reach
			// the message log or kill the loop.
			s.log.Warn().Err(err).Str("room", s.room).Msg("drop malformed frame")
			continue
		}

		select {
		case s.frames <- frame:
		case <-ctx.Done():
			return
		}
	}
}

func isExpectedClose(err error) bool {
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return true
	}
	return false
}
