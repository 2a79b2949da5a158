package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/glabrego/vibetube-cli/internal/apierr"
	"github.com/glabrego/vibetube-cli/internal/applog"
	"github.com/glabrego/vibetube-cli/internal/feed"
	"github.com/glabrego/vibetube-cli/internal/toggle"
	tuitheme "github.com/glabrego/vibetube-cli/internal/tui/theme"
	tuiview "github.com/glabrego/vibetube-cli/internal/tui/view"
	"github.com/glabrego/vibetube-cli/internal/vibetube"
)

func newLoginCmd() *cobra.Command {
	var username string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			password, err := readPassword(cmd.InOrStdin(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			return withEnv(cmd, func(ctx context.Context, rt *env) error {
				if err := rt.service.Login(ctx, username, password); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", strings.TrimSpace(username))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "Account username")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func newRegisterCmd() *cobra.Command {
	var (
		reg    vibetube.Registration
		signIn bool
	)
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a VibeTube account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			password, err := readPassword(cmd.InOrStdin(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			reg.Password = password
			return withEnv(cmd, func(ctx context.Context, rt *env) error {
				if err := rt.service.Register(ctx, reg); err != nil {
					return err
				}
				name := strings.TrimSpace(reg.Username)
				if !signIn {
					fmt.Fprintf(cmd.OutOrStdout(), "Account %s created, run `vibetube login --username %s` to sign in\n", name, name)
					return nil
				}
				if err := rt.service.Login(ctx, name, password); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Account %s created and signed in\n", name)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&reg.Username, "username", "", "Account username")
	cmd.Flags().StringVar(&reg.Email, "email", "", "Account email (optional)")
	cmd.Flags().BoolVar(&signIn, "login", false, "Sign in once the account exists")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

// readPassword takes VIBETUBE_PASSWORD, then a hidden terminal prompt, then a
// line from a piped stdin.
func readPassword(in io.Reader, prompt io.Writer) (string, error) {
	if pw := os.Getenv("VIBETUBE_PASSWORD"); pw != "" {
		return pw, nil
	}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(prompt, "Password: ")
		pw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(pw), nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEnv(cmd, func(_ context.Context, rt *env) error {
				rt.service.Logout()
				fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
				return nil
			})
		},
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEnv(cmd, func(ctx context.Context, rt *env) error {
				user, err := rt.service.VerifySession(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s (id %d)\n", user.Username, user.ID)
				return nil
			})
		},
	}
}

type listFlags struct {
	pages    int
	offset   int
	jsonOut  bool
	relative bool
}

func (f *listFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.pages, "pages", 1, "Number of pages to fetch")
	cmd.Flags().IntVar(&f.offset, "offset", 0, "Skip this many videos before the first page")
	cmd.Flags().BoolVar(&f.jsonOut, "json", false, "Print videos as JSON")
	cmd.Flags().BoolVar(&f.relative, "relative", false, "Show relative upload dates")
}

func newFeedCmd() *cobra.Command {
	var flags listFlags
	cmd := &cobra.Command{
		Use:   "feed [category]",
		Short: "List videos in a category (default random)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			category := vibetube.CategoryRandom
			if len(args) == 1 {
				category = strings.ToLower(strings.TrimSpace(args[0]))
			}
			if !vibetube.IsCategory(category) {
				return fmt.Errorf("unknown category %q (want %s or one of %s)", category, vibetube.CategoryRandom, strings.Join(vibetube.Categories, ", "))
			}
			return withEnv(cmd, func(ctx context.Context, rt *env) error {
				return printFeed(ctx, cmd.OutOrStdout(), rt.service.CategoryFeed(nil), category, flags)
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func newSearchCmd() *cobra.Command {
	var flags listFlags
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search videos",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return withEnv(cmd, func(ctx context.Context, rt *env) error {
				return printFeed(ctx, cmd.OutOrStdout(), rt.service.SearchFeed(nil), query, flags)
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func newChannelCmd() *cobra.Command {
	var flags listFlags
	cmd := &cobra.Command{
		Use:   "channel <channel-id>",
		Short: "List a channel's videos",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := parseID(args[0]); err != nil {
				return err
			}
			return withEnv(cmd, func(ctx context.Context, rt *env) error {
				return printFeed(ctx, cmd.OutOrStdout(), rt.service.ChannelFeed(nil), args[0], flags)
			})
		},
	}
	flags.register(cmd)
	return cmd
}

// printFeed drives m through up to flags.pages pages and prints what it holds.
func printFeed(ctx context.Context, w io.Writer, m *feed.Manager[vibetube.Video], query string, flags listFlags) error {
	if err := m.SetQuery(ctx, query, feed.WithInitialOffset(flags.offset)); err != nil {
		return err
	}
	for page := 1; page < flags.pages && m.State().HasMore; page++ {
		if err := m.FetchNext(ctx, true); err != nil && !errors.Is(err, feed.ErrExhausted) {
			return err
		}
	}

	st := m.State()
	l := applog.Ctx(ctx)
	l.Debug().Str(applog.FieldQuery, query).Int("items", len(st.Items)).Int("offset", st.Offset).Msg("feed listed")
	if flags.jsonOut {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(st.Items)
	}
	return writeVideoLines(w, st, flags.relative, time.Now())
}

func writeVideoLines(w io.Writer, st feed.State[vibetube.Video], relative bool, now time.Time) error {
	if len(st.Items) == 0 {
		_, err := fmt.Fprintln(w, "No videos found.")
		return err
	}
	th := tuitheme.Default()
	for i, v := range st.Items {
		line := tuiview.RenderVideoLine(tuiview.VideoLineParams{
			Video:        v,
			Now:          now,
			RelativeTime: relative,
			Position:     i,
			Width:        100,
		}, th)
		if _, err := fmt.Fprintf(w, "%s  #%d\n", line, v.ID); err != nil {
			return err
		}
	}
	more := "end of feed"
	if st.HasMore {
		more = "more available"
	}
	_, err := fmt.Fprintf(w, "%d videos, offset %d, %s\n", len(st.Items), st.Offset, more)
	return err
}

func newLikeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "like <video-id>",
		Short: "Toggle your like on a video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEnv(cmd, func(ctx context.Context, rt *env) error {
				res, err := toggleOnce(ctx, rt.service.LikeController(id))
				if err != nil {
					return err
				}
				state := "not liked"
				if res.Active {
					state = "liked"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "video %d: %s, %d likes\n", id, state, res.Count)
				return nil
			})
		},
	}
}

func newSubscribeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "subscribe <channel-id>",
		Short: "Toggle your subscription to a channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEnv(cmd, func(ctx context.Context, rt *env) error {
				res, err := toggleOnce(ctx, rt.service.SubscribeController(id))
				if errors.Is(err, toggle.ErrLocked) {
					return fmt.Errorf("channel %d is your own channel", id)
				}
				if err != nil {
					return err
				}
				state := "not subscribed"
				if res.Active {
					state = "subscribed"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "channel %d: %s, %d subscribers\n", id, state, res.Count)
				return nil
			})
		},
	}
}

// toggleOnce seeds c from the server and flips it. A transient failure rolls
// back silently inside the controller, so it is reported from the settled state.
func toggleOnce(ctx context.Context, c *toggle.Controller) (toggle.Resource, error) {
	defer c.Detach()
	if err := c.Initialize(ctx); err != nil {
		return toggle.Resource{}, err
	}
	before := c.State()
	res, err := c.Toggle(ctx)
	l := applog.Ctx(ctx)
	l.Debug().Str(applog.FieldResource, res.ID).Bool("active", res.Active).Int("count", res.Count).Err(err).Msg("toggle settled")
	if err != nil {
		return res, err
	}
	if res.Active == before.Active {
		return res, apierr.New(apierr.NetworkOrServerError, "toggle", "the server did not accept the change, try again")
	}
	return res, nil
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}
