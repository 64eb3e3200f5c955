package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/wirechat-client/internal/app"
	"github.com/vovakirdan/wirechat-client/internal/config"
	"github.com/vovakirdan/wirechat-client/internal/log"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type cliState struct {
	configPath string
	logLevel   string
	serverURL  string
	wsURL      string

	cfg    config.Config
	logger *zerolog.Logger
}

func newRootCmd() *cobra.Command {
	state := &cliState{}

	root := &cobra.Command{
		Use:           "wirechat-client",
		Short:         "Terminal client for WireChat servers",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return state.setup(cmd.Name() == "chat")
		},
	}

	root.PersistentFlags().StringVar(&state.configPath, "config", "", "path to config file")
	root.PersistentFlags().StringVar(&state.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&state.serverURL, "server", "", "API base URL")
	root.PersistentFlags().StringVar(&state.wsURL, "ws", "", "WebSocket chat endpoint")

	root.AddCommand(newLoginCmd(state))
	root.AddCommand(newLogoutCmd(state))
	root.AddCommand(newRoomsCmd(state))
	root.AddCommand(newChatCmd(state))

	return root
}

func (s *cliState) setup(interactive bool) error {
	// A .env next to the binary can hold WIRECHAT_* overrides.
	_ = godotenv.Load()

	bootLogger := log.New("info")
	cfg, _, err := config.Load(bootLogger, s.configPath)
	if err != nil {
		return err
	}

	cfg.UpdateFrom(config.Config{
		LogLevel:   s.logLevel,
		APIBaseURL: s.serverURL,
		WSBaseURL:  s.wsURL,
	})
	s.cfg = cfg

	// While the chat view owns the terminal, logs go to a file (or
	// nowhere) instead of scribbling over the conversation.
	switch {
	case cfg.LogFile != "":
		logger, _, err := log.NewFile(cfg.LogLevel, cfg.LogFile)
		if err != nil {
			return err
		}
		s.logger = logger
	case interactive:
		s.logger = log.Nop()
	default:
		s.logger = log.New(cfg.LogLevel)
	}
	return nil
}

func newLoginCmd(state *cliState) *cobra.Command {
	var (
		username string
		password string
		guest    bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate and cache the access token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			application, err := app.New(state.cfg, state.logger)
			if err != nil {
				return err
			}
			defer application.Close()

			if !guest {
				stdin := bufio.NewReader(cmd.InOrStdin())
				if username == "" {
					username = prompt(stdin, "Username: ")
				}
				if password == "" {
					password = prompt(stdin, "Password: ")
				}
			}

			identity, err := application.Login(ctx, username, password, guest)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", identity.Username)
			return nil
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "username")
	cmd.Flags().StringVar(&password, "password", "", "password")
	cmd.Flags().BoolVar(&guest, "guest", false, "start an anonymous guest session")
	return cmd
}

func newLogoutCmd(state *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the cached access token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			application, err := app.New(state.cfg, state.logger)
			if err != nil {
				return err
			}
			defer application.Close()

			if err := application.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func newRoomsCmd(state *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "rooms",
		Short: "List rooms you have joined",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			application, err := app.New(state.cfg, state.logger)
			if err != nil {
				return err
			}
			defer application.Close()

			rooms, err := application.Rooms(ctx)
			if err != nil {
				return err
			}
			if len(rooms) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No joined rooms.")
				return nil
			}
			for _, room := range rooms {
				fmt.Fprintln(cmd.OutOrStdout(), room.Name)
			}
			return nil
		},
	}
}

func newChatCmd(state *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "chat [room]",
		Short: "Open the interactive chat view",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			application, err := app.New(state.cfg, state.logger)
			if err != nil {
				return err
			}
			defer application.Close()

			room := ""
			if len(args) == 1 {
				room = args[0]
			}
			return application.Chat(ctx, room, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func prompt(reader *bufio.Reader, label string) string {
	fmt.Fprint(os.Stderr, label)
	line, _ := reader.ReadString('\n')
	return strings.TrimSpace(line)
}
