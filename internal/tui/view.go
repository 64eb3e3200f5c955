package tui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-client/internal/api"
	"github.com/vovakirdan/wirechat-client/internal/chat"
	"github.com/vovakirdan/wirechat-client/internal/client"
	"github.com/vovakirdan/wirechat-client/internal/store"
)

// View is the line-oriented chat surface: it prints the active room's log
// as it grows and turns stdin lines into sends or slash commands.
type View struct {
	ctrl     *client.Controller
	api      *api.Client
	state    store.Store
	identity chat.Identity
	in       io.Reader
	out      io.Writer
	log      *zerolog.Logger

	rememberRoom bool
}

// New builds a view over the given controller and collaborators.
func New(ctrl *client.Controller, apiClient *api.Client, state store.Store, identity chat.Identity, in io.Reader, out io.Writer, rememberRoom bool, logger *zerolog.Logger) *View {
	return &View{
		ctrl:         ctrl,
		api:          apiClient,
		state:        state,
		identity:     identity,
		in:           in,
		out:          out,
		log:          logger,
		rememberRoom: rememberRoom,
	}
}

// Run fetches the joined rooms, enters the initial room, and drives the
// interactive loop until the context ends or the user quits. An empty
// joined-room list sends the user back to room selection instead of
// opening a chat.
func (v *View) Run(ctx context.Context, initialRoom string) error {
	rooms, err := v.loadRooms(ctx)
	if err != nil {
		return err
	}
	if len(rooms) == 0 {
		fmt.Fprintln(v.out, "You have not joined any rooms yet. Join one on the server first.")
		return nil
	}

	if initialRoom == "" && v.rememberRoom {
		if last, err := v.state.LastRoom(ctx); err == nil {
			initialRoom = last
		}
	}

	if initialRoom == "" {
		v.printRooms(rooms)
		fmt.Fprintln(v.out, "No room selected. Use /join <room> to enter one.")
	} else if err := v.switchRoom(ctx, initialRoom); err != nil {
		return err
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(v.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case update := <-v.ctrl.Updates():
			v.render(update)

		case line, ok := <-lines:
			if !ok {
				return nil
			}
			quit, err := v.handleLine(ctx, line)
			if err != nil {
				return err
			}
			if quit {
				return nil
			}
		}
	}
}

func (v *View) handleLine(ctx context.Context, line string) (quit bool, err error) {
	trimmed := strings.TrimSpace(line)

	switch {
	case trimmed == "/quit", trimmed == "/exit":
		return true, nil

	case trimmed == "/rooms":
		rooms, err := v.loadRooms(ctx)
		if err != nil {
			fmt.Fprintf(v.out, "! %v\n", err)
			return false, nil
		}
		v.printRooms(rooms)
		return false, nil

	case strings.HasPrefix(trimmed, "/join "):
		room := strings.TrimSpace(strings.TrimPrefix(trimmed, "/join"))
		if room == "" {
			fmt.Fprintln(v.out, "usage: /join <room>")
			return false, nil
		}
		if err := v.switchRoom(ctx, room); err != nil {
			fmt.Fprintf(v.out, "! join %s: %v\n", room, err)
		}
		return false, nil

	case strings.HasPrefix(trimmed, "/"):
		fmt.Fprintln(v.out, "commands: /join <room>, /rooms, /quit")
		return false, nil
	}

	// Everything else is a message. The line goes out as typed; the
	// composer drops whitespace-only drafts.
	if err := v.ctrl.SetDraft(ctx, line); err != nil {
		return false, err
	}
	if _, err := v.ctrl.Submit(ctx); err != nil {
		return false, err
	}
	return false, nil
}

func (v *View) switchRoom(ctx context.Context, room string) error {
	if err := v.ctrl.SetRoom(ctx, room); err != nil {
		return err
	}
	if v.rememberRoom {
		if err := v.state.SetLastRoom(ctx, room); err != nil {
			v.log.Warn().Err(err).Msg("persist last room")
		}
	}
	return nil
}

func (v *View) loadRooms(ctx context.Context) ([]store.Room, error) {
	listed, err := v.api.JoinedRooms(ctx)
	if err != nil {
		// Fall back to the cached listing so the sidebar survives a dead
		// API, but surface nothing if the cache is empty too.
		v.log.Warn().Err(err).Msg("joined rooms fetch failed, using cache")
		cached, cacheErr := v.state.Rooms(ctx)
		if cacheErr != nil || len(cached) == 0 {
			return nil, fmt.Errorf("list joined rooms: %w", err)
		}
		return cached, nil
	}

	rooms := make([]store.Room, 0, len(listed))
	for i, r := range listed {
		rooms = append(rooms, store.Room{
			ID:         r.ID,
			Name:       r.Name,
			ProfilePic: r.ProfilePic,
			Position:   i,
		})
	}
	if err := v.state.ReplaceRooms(ctx, rooms); err != nil {
		v.log.Warn().Err(err).Msg("cache joined rooms")
	}
	return rooms, nil
}

func (v *View) printRooms(rooms []store.Room) {
	fmt.Fprintln(v.out, "Joined rooms:")
	for _, room := range rooms {
		fmt.Fprintf(v.out, "  %s\n", room.Name)
	}
}

func (v *View) render(update client.Update) {
	if update.Room == "" {
		fmt.Fprintln(v.out, "-- no room selected --")
		return
	}

	switch {
	case len(update.Appended) > 0:
		for _, msg := range update.Appended {
			v.printMessage(msg)
		}
	case len(update.Messages) > 0:
		// History install: replay the whole log, oldest first.
		fmt.Fprintf(v.out, "-- %s --\n", update.Room)
		for _, msg := range update.Messages {
			v.printMessage(msg)
		}
	default:
		fmt.Fprintf(v.out, "-- %s (no messages yet) --\n", update.Room)
	}
}

func (v *View) printMessage(msg chat.Message) {
	name := msg.UserName
	if msg.UserID == v.identity.UserID {
		name = "you"
	}
	fmt.Fprintf(v.out, "[%s] %s: %s\n", msg.Room, name, msg.Content)
}
