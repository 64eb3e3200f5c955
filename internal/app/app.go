package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-client/internal/api"
	"github.com/vovakirdan/wirechat-client/internal/auth"
	"github.com/vovakirdan/wirechat-client/internal/chat"
	"github.com/vovakirdan/wirechat-client/internal/client"
	"github.com/vovakirdan/wirechat-client/internal/config"
	"github.com/vovakirdan/wirechat-client/internal/conn"
	"github.com/vovakirdan/wirechat-client/internal/store"
	"github.com/vovakirdan/wirechat-client/internal/store/sqlite"
	"github.com/vovakirdan/wirechat-client/internal/tui"
)

// ErrNotLoggedIn is returned by commands that need a cached token when
// there is none.
var ErrNotLoggedIn = errors.New("not logged in, run `wirechat-client login` first")

// App wires together the API client, the local state store, and the chat
// core for the CLI commands.
type App struct {
	cfg   config.Config
	log   *zerolog.Logger
	state store.Store
	api   *api.Client
}

// New constructs the application with provided configuration.
func New(cfg config.Config, logger *zerolog.Logger) (*App, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.StatePath), 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}

	st, err := sqlite.New(cfg.StatePath)
	if err != nil {
		return nil, fmt.Errorf("init state store: %w", err)
	}

	logger.Debug().Str("state_path", cfg.StatePath).Msg("state store opened")

	return &App{
		cfg:   cfg,
		log:   logger,
		state: st,
		api:   api.New(cfg.APIBaseURL, cfg.RequestTimeout, logger),
	}, nil
}

// Close releases the state store.
func (a *App) Close() {
	if err := a.state.Close(); err != nil {
		a.log.Warn().Err(err).Msg("failed to close state store")
	}
}

// Login authenticates against the server and caches the issued token.
// With guest set, credentials are ignored and an anonymous session is
// started instead.
func (a *App) Login(ctx context.Context, username, password string, guest bool) (chat.Identity, error) {
	var (
		token string
		err   error
	)
	if guest {
		token, err = a.api.LoginGuest(ctx)
	} else {
		token, err = a.api.Login(ctx, username, password)
	}
	if err != nil {
		return chat.Identity{}, err
	}

	identity, err := auth.Identity(token)
	if err != nil {
		return chat.Identity{}, fmt.Errorf("inspect issued token: %w", err)
	}

	err = a.state.SaveCredentials(ctx, store.Credentials{
		Token:    token,
		Username: identity.Username,
	})
	if err != nil {
		return chat.Identity{}, err
	}

	a.log.Info().Str("username", identity.Username).Bool("guest", identity.IsGuest).Msg("logged in")
	return identity, nil
}

// Logout forgets the cached token.
func (a *App) Logout(ctx context.Context) error {
	return a.state.ClearCredentials(ctx)
}

// Rooms lists the joined rooms, refreshing the local cache on success and
// falling back to it when the API is unreachable.
func (a *App) Rooms(ctx context.Context) ([]store.Room, error) {
	if _, err := a.restoreSession(ctx); err != nil {
		return nil, err
	}

	listed, err := a.api.JoinedRooms(ctx)
	if err != nil {
		a.log.Warn().Err(err).Msg("joined rooms fetch failed, using cache")
		return a.state.Rooms(ctx)
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
	if err := a.state.ReplaceRooms(ctx, rooms); err != nil {
		a.log.Warn().Err(err).Msg("cache joined rooms")
	}
	return rooms, nil
}

// Chat runs the interactive chat view, starting in room (or the
// remembered room when empty).
func (a *App) Chat(ctx context.Context, room string, in io.Reader, out io.Writer) error {
	creds, err := a.restoreSession(ctx)
	if err != nil {
		return err
	}

	identity, err := auth.Identity(creds.Token)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			return ErrNotLoggedIn
		}
		return err
	}

	dialer := client.Dialer(func(ctx context.Context, roomName string) (client.Session, error) {
		dialCtx, cancel := context.WithTimeout(ctx, a.cfg.DialTimeout)
		defer cancel()
		return conn.Dial(dialCtx, a.cfg.WSBaseURL, roomName, creds.Token, a.log)
	})

	ctrl := client.NewController(identity, dialer, a.log)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go ctrl.Run(runCtx)

	view := tui.New(ctrl, a.api, a.state, identity, in, out, a.cfg.RememberRoom, a.log)
	return view.Run(runCtx, room)
}

func (a *App) restoreSession(ctx context.Context) (*store.Credentials, error) {
	creds, err := a.state.Credentials(ctx)
	if err != nil {
		return nil, err
	}
	if creds == nil || creds.Token == "" {
		return nil, ErrNotLoggedIn
	}
	a.api.SetToken(creds.Token)
	return creds, nil
}
