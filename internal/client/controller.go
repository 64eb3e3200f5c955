package client

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-client/internal/chat"
	"github.com/vovakirdan/wirechat-client/internal/proto"
)

// Update notifies the presentation layer that the active room's log
// changed. Messages is the full log snapshot, oldest first; Appended holds
// only the messages this update added, in delivery order.
type Update struct {
	Room     string
	Messages []chat.Message
	Appended []chat.Message
}

// Controller keeps exactly one session and one message log alive for the
// active room and reacts to room switches, inbound frames, and outgoing
// sends. All state is owned by the Run loop goroutine; the exported
// methods hand work to it over the command channel, so there is a single
// writer and no locking.
//
// Switching rooms closes the old session and replaces both session and log
// before the loop receives again, so a late frame from the old session has
// no path into the new room's log.
type Controller struct {
	identity chat.Identity
	dial     Dialer
	log      *zerolog.Logger

	session  Session
	msgLog   *chat.Log
	composer Composer

	commands chan command
	updates  chan Update
}

type commandKind int

const (
	cmdSetRoom commandKind = iota
	cmdSetDraft
	cmdSubmit
	cmdSnapshot
)

type command struct {
	kind  commandKind
	room  string
	draft string
	reply chan reply
}

type reply struct {
	err      error
	sent     bool
	room     string
	draft    string
	messages []chat.Message
}

// NewController builds a controller for the given user. No session is open
// until the first SetRoom call.
func NewController(identity chat.Identity, dial Dialer, logger *zerolog.Logger) *Controller {
	return &Controller{
		identity: identity,
		dial:     dial,
		log:      logger,
		commands: make(chan command),
		updates:  make(chan Update, 32),
	}
}

// Updates returns the channel the presentation layer consumes.
func (c *Controller) Updates() <-chan Update {
	return c.updates
}

// Run executes the event loop until the context is cancelled. It must be
// running before any other method is called.
func (c *Controller) Run(ctx context.Context) {
	defer func() {
		if c.session != nil {
			c.session.Close()
			c.session = nil
		}
	}()

	for {
		var frames <-chan proto.Frame
		if c.session != nil {
			frames = c.session.Frames()
		}

		select {
		case <-ctx.Done():
			return

		case cmd := <-c.commands:
			c.handle(ctx, cmd)

		case frame, ok := <-frames:
			if !ok {
				// Connection gone. Treated as silence: the log stays as
				// it is and sends become no-ops until the next switch.
				c.log.Debug().Str("room", c.session.Room()).Msg("session channel closed")
				c.session = nil
				continue
			}
			if c.msgLog.Apply(frame) {
				c.publish(frame)
			}
		}
	}
}

// SetRoom makes roomName the active room: the previous session and log are
// discarded and, for a non-empty name, a fresh subscription is dialed. An
// empty name leaves the client with no session and an empty log.
func (c *Controller) SetRoom(ctx context.Context, roomName string) error {
	r, err := c.roundTrip(ctx, command{kind: cmdSetRoom, room: roomName})
	if err != nil {
		return err
	}
	return r.err
}

// SetDraft replaces the outbound draft buffer.
func (c *Controller) SetDraft(ctx context.Context, text string) error {
	_, err := c.roundTrip(ctx, command{kind: cmdSetDraft, draft: text})
	return err
}

// Submit validates the draft and sends it as a message to the active room.
// A draft that trims to empty is dropped without a send and the draft is
// kept; an accepted draft is sent fire-and-forget and cleared. The sent
// message is not appended locally; it comes back through the inbound
// channel once the server rebroadcasts it.
func (c *Controller) Submit(ctx context.Context) (bool, error) {
	r, err := c.roundTrip(ctx, command{kind: cmdSubmit})
	if err != nil {
		return false, err
	}
	return r.sent, r.err
}

// Snapshot returns the active room name, the current log oldest-first, and
// the draft buffer.
func (c *Controller) Snapshot(ctx context.Context) (string, []chat.Message, string, error) {
	r, err := c.roundTrip(ctx, command{kind: cmdSnapshot})
	if err != nil {
		return "", nil, "", err
	}
	return r.room, r.messages, r.draft, nil
}

func (c *Controller) roundTrip(ctx context.Context, cmd command) (reply, error) {
	cmd.reply = make(chan reply, 1)
	select {
	case c.commands <- cmd:
	case <-ctx.Done():
		return reply{}, ctx.Err()
	}
	select {
	case r := <-cmd.reply:
		return r, nil
	case <-ctx.Done():
		return reply{}, ctx.Err()
	}
}

func (c *Controller) handle(ctx context.Context, cmd command) {
	switch cmd.kind {
	case cmdSetRoom:
		cmd.reply <- reply{err: c.switchRoom(ctx, cmd.room)}

	case cmdSetDraft:
		c.composer.SetDraft(cmd.draft)
		cmd.reply <- reply{}

	case cmdSubmit:
		cmd.reply <- reply{sent: c.submit(ctx)}

	case cmdSnapshot:
		r := reply{draft: c.composer.Draft()}
		if c.msgLog != nil {
			r.room = c.msgLog.Room()
			r.messages = c.msgLog.Messages()
		}
		cmd.reply <- r
	}
}

func (c *Controller) switchRoom(ctx context.Context, roomName string) error {
	// Close-before-adopt: once the old session is closed and unreferenced
	// its remaining frames are unreachable.
	if c.session != nil {
		c.session.Close()
		c.session = nil
	}
	c.msgLog = nil

	if roomName == "" {
		c.publishEmpty("")
		return nil
	}

	c.msgLog = chat.NewLog(roomName)

	session, err := c.dial(ctx, roomName)
	if err != nil {
		c.msgLog = nil
		c.publishEmpty("")
		return err
	}
	c.session = session

	c.log.Info().Str("room", roomName).Msg("room subscription opened")
	c.publishEmpty(roomName)
	return nil
}

func (c *Controller) submit(ctx context.Context) bool {
	out, ok := c.composer.Compose(c.identity, c.activeRoom())
	if !ok {
		return false
	}
	if c.session == nil {
		// No live channel; the payload is dropped on the floor.
		c.log.Warn().Str("room", out.RoomName).Msg("submit with no active session")
		return true
	}
	if err := c.session.Send(ctx, out); err != nil {
		c.log.Warn().Err(err).Str("room", out.RoomName).Msg("send message")
	}
	return true
}

func (c *Controller) activeRoom() string {
	if c.msgLog == nil {
		return ""
	}
	return c.msgLog.Room()
}

func (c *Controller) publish(frame proto.Frame) {
	update := Update{
		Room:     c.msgLog.Room(),
		Messages: c.msgLog.Messages(),
	}
	if frame.Kind == proto.FrameKindLive && frame.Message != nil {
		update.Appended = []chat.Message{chat.FromWire(*frame.Message)}
	}
	select {
	case c.updates <- update:
	default:
		// Drop if slow consumer; Snapshot recovers the full log.
	}
}

func (c *Controller) publishEmpty(room string) {
	select {
	case c.updates <- Update{Room: room}:
	default:
	}
}
