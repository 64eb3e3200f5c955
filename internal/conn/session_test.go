package conn

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/wirechat-client/internal/log"
	"github.com/vovakirdan/wirechat-client/internal/proto"
)

type testServer struct {
	url string

	// requests carries the path and auth header of each upgrade.
	requests chan upgradeInfo
	// conns carries each accepted server-side connection.
	conns chan *websocket.Conn
}

type upgradeInfo struct {
	path     string
	token    string
	protocol string
}

func startChatServer(t *testing.T) *testServer {
	t.Helper()

	ts := &testServer{
		requests: make(chan upgradeInfo, 4),
		conns:    make(chan *websocket.Conn, 4),
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
		if err != nil {
			t.Errorf("accept: %v", err)
			return
		}
		ts.requests <- upgradeInfo{
			path:     r.URL.Path,
			token:    r.Header.Get("Authorization"),
			protocol: r.Header.Get("X-Wirechat-Protocol"),
		}
		ts.conns <- conn
	}))
	t.Cleanup(server.Close)

	ts.url = strings.Replace(server.URL, "http", "ws", 1) + "/chat"
	return ts
}

func dialSession(t *testing.T, ctx context.Context, ts *testServer, room string) (*Session, *websocket.Conn) {
	t.Helper()

	session, err := Dial(ctx, ts.url, room, "test-token", log.Nop())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(session.Close)

	select {
	case conn := <-ts.conns:
		return session, conn
	case <-time.After(2 * time.Second):
		t.Fatal("server never saw the connection")
		return nil, nil
	}
}

func mustFrame(t *testing.T, session *Session) proto.Frame {
	t.Helper()

	select {
	case frame, ok := <-session.Frames():
		if !ok {
			t.Fatal("frame channel closed")
		}
		return frame
	case <-time.After(2 * time.Second):
		t.Fatal("no frame delivered")
		return proto.Frame{}
	}
}

func TestDialSendsRoomAndToken(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ts := startChatServer(t)
	dialSession(t, ctx, ts, "general")

	info := <-ts.requests
	if info.path != "/chat/general" {
		t.Fatalf("path = %q, want /chat/general", info.path)
	}
	if info.token != "Bearer test-token" {
		t.Fatalf("auth header = %q", info.token)
	}
	if info.protocol != "1" {
		t.Fatalf("protocol header = %q", info.protocol)
	}
}

func TestDialRejectsEmptyRoom(t *testing.T) {
	ctx := context.Background()
	if _, err := Dial(ctx, "ws://localhost:0/chat", "", "", log.Nop()); err == nil {
		t.Fatal("expected error for empty room")
	}
}

func TestSessionDeliversFramesInReceiptOrder(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ts := startChatServer(t)
	session, server := dialSession(t, ctx, ts, "general")

	history := proto.Frame{
		Kind: proto.FrameKindHistory,
		Room: "general",
		Messages: []proto.Message{
			{ID: 2, RoomName: "general", Content: "b"},
			{ID: 1, RoomName: "general", Content: "a"},
		},
	}
	if err := wsjson.Write(ctx, server, history); err != nil {
		t.Fatalf("server write history: %v", err)
	}

	liveMsg := proto.Message{ID: 3, RoomName: "general", Content: "c"}
	if err := wsjson.Write(ctx, server, proto.Frame{Kind: proto.FrameKindLive, Room: "general", Message: &liveMsg}); err != nil {
		t.Fatalf("server write live: %v", err)
	}

	first := mustFrame(t, session)
	if first.Kind != proto.FrameKindHistory || len(first.Messages) != 2 {
		t.Fatalf("first frame = %+v, want history of 2", first)
	}
	second := mustFrame(t, session)
	if second.Kind != proto.FrameKindLive || second.Message == nil || second.Message.ID != 3 {
		t.Fatalf("second frame = %+v, want live id 3", second)
	}
}

func TestSessionDropsMalformedFrames(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ts := startChatServer(t)
	session, server := dialSession(t, ctx, ts, "general")

	if err := server.Write(ctx, websocket.MessageText, []byte(`{"kind":"presence"}`)); err != nil {
		t.Fatalf("server write garbage: %v", err)
	}
	if err := server.Write(ctx, websocket.MessageText, []byte(`not json at all`)); err != nil {
		t.Fatalf("server write garbage: %v", err)
	}

	liveMsg := proto.Message{ID: 1, RoomName: "general", Content: "still alive"}
	if err := wsjson.Write(ctx, server, proto.Frame{Kind: proto.FrameKindLive, Room: "general", Message: &liveMsg}); err != nil {
		t.Fatalf("server write live: %v", err)
	}

	frame := mustFrame(t, session)
	if frame.Kind != proto.FrameKindLive || frame.Message.ID != 1 {
		t.Fatalf("expected the valid frame to survive, got %+v", frame)
	}
}

func TestSessionSendReachesServer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ts := startChatServer(t)
	session, server := dialSession(t, ctx, ts, "general")

	out := proto.Outbound{UserID: 1, RoomName: "general", Content: "hello"}
	if err := session.Send(ctx, out); err != nil {
		t.Fatalf("send: %v", err)
	}

	var got proto.Outbound
	if err := wsjson.Read(ctx, server, &got); err != nil {
		t.Fatalf("server read: %v", err)
	}
	if got != out {
		t.Fatalf("server got %+v, want %+v", got, out)
	}
}

func TestSessionSendAfterCloseIsNoop(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ts := startChatServer(t)
	session, _ := dialSession(t, ctx, ts, "general")

	session.Close()
	if err := session.Send(ctx, proto.Outbound{RoomName: "general", Content: "late"}); err != nil {
		t.Fatalf("send after close must be a no-op, got %v", err)
	}
}

func TestSessionCloseEndsFrameChannel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ts := startChatServer(t)
	session, _ := dialSession(t, ctx, ts, "general")

	session.Close()

	select {
	case _, ok := <-session.Frames():
		if ok {
			t.Fatal("expected closed channel, got a frame")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("frame channel did not close")
	}
}
