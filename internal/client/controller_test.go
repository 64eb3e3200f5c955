package client

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vovakirdan/wirechat-client/internal/chat"
	"github.com/vovakirdan/wirechat-client/internal/log"
	"github.com/vovakirdan/wirechat-client/internal/proto"
)

type fakeSession struct {
	room   string
	frames chan proto.Frame
	sent   chan proto.Outbound

	mu     sync.Mutex
	closed bool
}

func newFakeSession(room string) *fakeSession {
	return &fakeSession{
		room:   room,
		frames: make(chan proto.Frame, 16),
		sent:   make(chan proto.Outbound, 16),
	}
}

func (f *fakeSession) Room() string               { return f.room }
func (f *fakeSession) Frames() <-chan proto.Frame { return f.frames }

func (f *fakeSession) Send(_ context.Context, out proto.Outbound) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.sent <- out
	return nil
}

// Close marks the session dead but leaves the frame channel open, so
// tests can push late frames and prove they have no path into the log.
func (f *fakeSession) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeSession) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

type fakeDialer struct {
	mu       sync.Mutex
	sessions map[string]*fakeSession
	failWith error
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{sessions: make(map[string]*fakeSession)}
}

func (d *fakeDialer) dial(_ context.Context, room string) (Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failWith != nil {
		return nil, d.failWith
	}
	s := newFakeSession(room)
	d.sessions[room] = s
	return s, nil
}

func (d *fakeDialer) session(room string) *fakeSession {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sessions[room]
}

func startController(t *testing.T, dialer *fakeDialer) (*Controller, context.Context) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	t.Cleanup(cancel)

	ctrl := NewController(chat.Identity{UserID: 1, Username: "alice"}, dialer.dial, log.Nop())
	go ctrl.Run(ctx)
	return ctrl, ctx
}

func waitLogLen(t *testing.T, ctx context.Context, ctrl *Controller, want int) []chat.Message {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		_, messages, _, err := ctrl.Snapshot(ctx)
		if err != nil {
			t.Fatalf("snapshot: %v", err)
		}
		if len(messages) == want {
			return messages
		}
		time.Sleep(10 * time.Millisecond)
	}
	_, messages, _, _ := ctrl.Snapshot(ctx)
	t.Fatalf("log length = %d, want %d", len(messages), want)
	return nil
}

func wireMsg(id int64, room, content string) proto.Message {
	return proto.Message{ID: id, UserID: 2, RoomName: room, Content: content, UserName: "bob"}
}

func TestControllerHistoryThenLive(t *testing.T) {
	dialer := newFakeDialer()
	ctrl, ctx := startController(t, dialer)

	if err := ctrl.SetRoom(ctx, "general"); err != nil {
		t.Fatalf("set room: %v", err)
	}

	session := dialer.session("general")
	session.frames <- proto.Frame{
		Kind: proto.FrameKindHistory,
		Room: "general",
		Messages: []proto.Message{
			wireMsg(3, "general", "newest"),
			wireMsg(2, "general", "middle"),
			wireMsg(1, "general", "oldest"),
		},
	}

	messages := waitLogLen(t, ctx, ctrl, 3)
	if messages[0].ID != 1 || messages[2].ID != 3 {
		t.Fatalf("history not reversed: %+v", messages)
	}

	live := wireMsg(4, "general", "fresh")
	session.frames <- proto.Frame{Kind: proto.FrameKindLive, Room: "general", Message: &live}

	messages = waitLogLen(t, ctx, ctrl, 4)
	if messages[3].ID != 4 {
		t.Fatalf("live message not appended at tail: %+v", messages)
	}
}

func TestControllerSwitchDiscardsOldRoom(t *testing.T) {
	dialer := newFakeDialer()
	ctrl, ctx := startController(t, dialer)

	if err := ctrl.SetRoom(ctx, "general"); err != nil {
		t.Fatalf("set room general: %v", err)
	}
	general := dialer.session("general")
	general.frames <- proto.Frame{
		Kind:     proto.FrameKindHistory,
		Room:     "general",
		Messages: []proto.Message{wireMsg(2, "general", "b"), wireMsg(1, "general", "a")},
	}
	waitLogLen(t, ctx, ctrl, 2)

	if err := ctrl.SetRoom(ctx, "random"); err != nil {
		t.Fatalf("set room random: %v", err)
	}
	if !general.isClosed() {
		t.Fatal("old session must be closed on switch")
	}

	room, messages, _, err := ctrl.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if room != "random" || len(messages) != 0 {
		t.Fatalf("after switch room=%q len=%d, want random/0", room, len(messages))
	}

	// A late delivery on the old session's channel must never surface in
	// the new room's log.
	stale := wireMsg(9, "general", "stale")
	general.frames <- proto.Frame{Kind: proto.FrameKindLive, Room: "general", Message: &stale}

	live := wireMsg(10, "random", "hello")
	dialer.session("random").frames <- proto.Frame{Kind: proto.FrameKindLive, Room: "random", Message: &live}

	messages = waitLogLen(t, ctx, ctrl, 1)
	if messages[0].ID != 10 || messages[0].Room != "random" {
		t.Fatalf("unexpected message in new room: %+v", messages[0])
	}
}

func TestControllerEmptyRoomHasNoSession(t *testing.T) {
	dialer := newFakeDialer()
	ctrl, ctx := startController(t, dialer)

	if err := ctrl.SetRoom(ctx, ""); err != nil {
		t.Fatalf("set empty room: %v", err)
	}

	room, messages, _, err := ctrl.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if room != "" || len(messages) != 0 {
		t.Fatalf("empty selection: room=%q len=%d", room, len(messages))
	}
	if len(dialer.sessions) != 0 {
		t.Fatal("no session must be dialed for the empty room")
	}
}

func TestControllerDialFailure(t *testing.T) {
	dialer := newFakeDialer()
	dialer.failWith = errors.New("connection refused")
	ctrl, ctx := startController(t, dialer)

	if err := ctrl.SetRoom(ctx, "general"); err == nil {
		t.Fatal("expected dial error")
	}

	room, messages, _, err := ctrl.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if room != "" || len(messages) != 0 {
		t.Fatalf("failed dial must leave no active room, got room=%q len=%d", room, len(messages))
	}
}

func TestControllerSubmitSendsAndClearsDraft(t *testing.T) {
	dialer := newFakeDialer()
	ctrl, ctx := startController(t, dialer)

	if err := ctrl.SetRoom(ctx, "general"); err != nil {
		t.Fatalf("set room: %v", err)
	}

	if err := ctrl.SetDraft(ctx, "  hello there  "); err != nil {
		t.Fatalf("set draft: %v", err)
	}
	sent, err := ctrl.Submit(ctx)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !sent {
		t.Fatal("non-empty draft must be sent")
	}

	select {
	case out := <-dialer.session("general").sent:
		if out.UserID != 1 || out.RoomName != "general" || out.Content != "  hello there  " {
			t.Fatalf("unexpected payload: %+v", out)
		}
	case <-time.After(time.Second):
		t.Fatal("no payload reached the session")
	}

	_, messages, draft, err := ctrl.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if draft != "" {
		t.Fatalf("draft not cleared: %q", draft)
	}
	// No optimistic echo: the log grows only via the inbound channel.
	if len(messages) != 0 {
		t.Fatalf("sent message echoed locally: %+v", messages)
	}
}

func TestControllerWhitespaceSubmitIsNoop(t *testing.T) {
	dialer := newFakeDialer()
	ctrl, ctx := startController(t, dialer)

	if err := ctrl.SetRoom(ctx, "general"); err != nil {
		t.Fatalf("set room: %v", err)
	}
	if err := ctrl.SetDraft(ctx, "   "); err != nil {
		t.Fatalf("set draft: %v", err)
	}

	sent, err := ctrl.Submit(ctx)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if sent {
		t.Fatal("whitespace draft must not be sent")
	}

	select {
	case out := <-dialer.session("general").sent:
		t.Fatalf("unexpected payload: %+v", out)
	case <-time.After(50 * time.Millisecond):
	}

	_, _, draft, err := ctrl.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if draft != "   " {
		t.Fatalf("rejected draft must be kept, got %q", draft)
	}
}

func TestControllerUpdatesCarryAppended(t *testing.T) {
	dialer := newFakeDialer()
	ctrl, ctx := startController(t, dialer)

	if err := ctrl.SetRoom(ctx, "general"); err != nil {
		t.Fatalf("set room: %v", err)
	}
	session := dialer.session("general")

	session.frames <- proto.Frame{Kind: proto.FrameKindHistory, Room: "general"}
	live := wireMsg(1, "general", "hi")
	session.frames <- proto.Frame{Kind: proto.FrameKindLive, Room: "general", Message: &live}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case update := <-ctrl.Updates():
			if len(update.Appended) == 1 && update.Appended[0].ID == 1 {
				return
			}
		case <-deadline:
			t.Fatal("no update with appended message")
		}
	}
}
