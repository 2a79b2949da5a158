package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/glabrego/vibetube-cli/internal/apierr"
	"github.com/glabrego/vibetube-cli/internal/app"
	"github.com/glabrego/vibetube-cli/internal/applog"
	"github.com/glabrego/vibetube-cli/internal/auth"
	"github.com/glabrego/vibetube-cli/internal/config"
	"github.com/glabrego/vibetube-cli/internal/storage"
	"github.com/glabrego/vibetube-cli/internal/tui"
	tuiactions "github.com/glabrego/vibetube-cli/internal/tui/actions"
	"github.com/glabrego/vibetube-cli/internal/vibetube"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		if apierr.IsAuth(err) {
			fmt.Fprintln(os.Stderr, "run `vibetube login --username NAME` to sign in")
		}
		os.Exit(1)
	}
}

// env is the wiring shared by the TUI and the subcommands.
type env struct {
	cfg     config.Config
	log     zerolog.Logger
	logFile *os.File
	repo    *storage.Repository
	session *auth.Session
	service *app.Service
}

func openEnv(ctx context.Context, interactive bool) (*env, error) {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}

	rt := &env{cfg: cfg}
	if interactive {
		// The TUI owns the terminal, so logs go to a file.
		if cfg.LogLevel != "off" && cfg.LogPath != "" {
			f, err := applog.OpenFile(cfg.LogPath)
			if err != nil {
				return nil, err
			}
			rt.logFile = f
		}
		if rt.logFile != nil {
			rt.log = applog.New(rt.logFile, applog.Config{Level: cfg.LogLevel})
		} else {
			rt.log = zerolog.Nop()
		}
	} else {
		rt.log = applog.New(os.Stderr, applog.Config{Level: cfg.LogLevel, Pretty: true})
	}

	repo, err := storage.NewRepository(cfg.DBPath)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("storage init error: %w", err)
	}
	rt.repo = repo
	if err := repo.Init(ctx); err != nil {
		rt.Close()
		return nil, fmt.Errorf("storage schema error: %w", err)
	}
	if err := repo.CheckWritable(ctx); err != nil {
		rt.Close()
		return nil, fmt.Errorf("storage write check failed (%v). Verify VIBETUBE_DB_PATH is writable: %s", err, cfg.DBPath)
	}

	session, err := auth.NewSession(ctx, repo, rt.log)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.session = session

	client := vibetube.NewClient(cfg.APIBaseURL, &http.Client{Timeout: cfg.HTTPTimeout}, rt.log)
	rt.service = app.NewService(client, session, app.Options{
		PageSize: cfg.PageSize,
		Logger:   rt.log,
		Repo:     repo,
	})
	rt.log.Debug().Str("api", cfg.APIBaseURL).Str("config", cfg.Source).Msg("env ready")
	return rt, nil
}

func (rt *env) Close() {
	if rt.repo != nil {
		if err := rt.repo.Close(); err != nil {
			rt.log.Warn().Err(err).Msg("close storage")
		}
	}
	if rt.logFile != nil {
		_ = rt.logFile.Close()
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "vibetube",
		Short:         "Terminal client for VibeTube",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTUI(cmd.Context())
		},
	}
	root.AddCommand(
		newRegisterCmd(),
		newLoginCmd(),
		newLogoutCmd(),
		newWhoamiCmd(),
		newFeedCmd(),
		newSearchCmd(),
		newChannelCmd(),
		newLikeCmd(),
		newSubscribeCmd(),
	)
	return root
}

func runTUI(ctx context.Context) error {
	startCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	rt, err := openEnv(startCtx, true)
	if err != nil {
		return err
	}
	defer rt.Close()

	notifier := tuiactions.NewNotifier()
	rt.session.SetFailureHandler(notifier.AuthFailed)

	opts := tui.Options{
		BaseURL:     rt.cfg.APIBaseURL,
		Preferences: rt.service.Preferences(startCtx),
		Notifier:    notifier,
	}
	if _, ok := rt.session.Token(); ok {
		user, err := rt.service.VerifySession(startCtx)
		switch {
		case err == nil:
			opts.SignedIn = true
			opts.Username = user.Username
		case apierr.IsAuth(err):
			// The session handler already queued the sign-in redirect.
		default:
			// Server unreachable; keep the stored token and let the feed report it.
			rt.log.Warn().Err(err).Msg("could not verify stored session")
			opts.SignedIn = true
		}
	}

	program := tea.NewProgram(tui.NewModel(rt.service, opts), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("tui error: %w", err)
	}
	return nil
}

// withEnv runs fn against a CLI env bound to the command context.
func withEnv(cmd *cobra.Command, fn func(ctx context.Context, rt *env) error) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	rt, err := openEnv(ctx, false)
	if err != nil {
		return err
	}
	defer rt.Close()

	err = fn(applog.WithLogger(ctx, rt.log), rt)
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s timed out: %w", cmd.Name(), err)
	}
	return err
}
