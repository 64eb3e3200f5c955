package chat

import "github.com/vovakirdan/wirechat-client/internal/proto"

// State tracks whether a log has consumed its history snapshot yet.
type State int

const (
	// StateAwaitingHistory means no frame has been accepted; the next
	// history frame installs the snapshot.
	StateAwaitingHistory State = iota
	// StateStreaming means history is settled and every further frame is
	// appended as a single live message.
	StateStreaming
)

// Log is the ordered message sequence for one room subscription. It is the
// merge engine: it folds the one-time history snapshot and subsequent live
// deliveries into an oldest-first sequence with no duplicates.
//
// A Log is owned by exactly one subscription and is never shared across
// rooms; switching rooms discards the Log and starts a fresh one. All
// methods must be called from the single goroutine that owns the Log.
type Log struct {
	room     string
	state    State
	messages []Message
	seen     map[int64]struct{}
}

// NewLog creates an empty log for the given room, awaiting history.
func NewLog(room string) *Log {
	return &Log{
		room: room,
		seen: make(map[int64]struct{}),
	}
}

// Room returns the room this log is bound to.
func (l *Log) Room() string {
	return l.room
}

// State reports whether the log is still awaiting its history snapshot.
func (l *Log) State() State {
	return l.state
}

// Len returns the number of messages in the log.
func (l *Log) Len() int {
	return len(l.messages)
}

// Messages returns a copy of the log, oldest first.
func (l *Log) Messages() []Message {
	out := make([]Message, len(l.messages))
	copy(out, l.messages)
	return out
}

// Apply folds one server frame into the log and reports whether the log
// changed.
//
// The first history frame arrives newest-first and is reversed on install,
// so the log reads oldest-first from then on. A live frame before any
// history means the room has no prior messages: the log starts with that
// one message and history is considered settled. Once streaming, history
// frames are ignored; only live appends are accepted.
func (l *Log) Apply(frame proto.Frame) bool {
	switch l.state {
	case StateAwaitingHistory:
		switch frame.Kind {
		case proto.FrameKindHistory:
			l.installHistory(frame.Messages)
			l.state = StateStreaming
			return true
		case proto.FrameKindLive:
			l.state = StateStreaming
			return l.append(FromWire(*frame.Message))
		}
	case StateStreaming:
		if frame.Kind == proto.FrameKindLive {
			return l.append(FromWire(*frame.Message))
		}
	}
	return false
}

func (l *Log) installHistory(batch []proto.Message) {
	l.messages = make([]Message, 0, len(batch))
	for i := len(batch) - 1; i >= 0; i-- {
		msg := FromWire(batch[i])
		if _, dup := l.seen[msg.ID]; dup {
			continue
		}
		l.seen[msg.ID] = struct{}{}
		l.messages = append(l.messages, msg)
	}
}

func (l *Log) append(msg Message) bool {
	if _, dup := l.seen[msg.ID]; dup {
		return false
	}
	l.seen[msg.ID] = struct{}{}
	l.messages = append(l.messages, msg)
	return true
}
