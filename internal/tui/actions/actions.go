package actions

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/glabrego/vibetube-cli/internal/app"
	"github.com/glabrego/vibetube-cli/internal/feed"
	"github.com/glabrego/vibetube-cli/internal/toggle"
	"github.com/glabrego/vibetube-cli/internal/vibetube"
)

const requestTimeout = 10 * time.Second

type Service interface {
	Login(ctx context.Context, username, password string) error
	OpenVideo(ctx context.Context, videoID int64, onChange func()) (*app.WatchSession, error)
	PostComment(ctx context.Context, videoID int64, text string) (vibetube.Comment, error)
}

// Feed is the part of a feed.Manager the view drives.
type Feed interface {
	SetQuery(ctx context.Context, query string, opts ...feed.QueryOption) error
	FetchNext(ctx context.Context, isLoadMore bool) error
	Reload(ctx context.Context) error
}

// Toggler is the part of a toggle.Controller the view drives.
type Toggler interface {
	Toggle(ctx context.Context) (toggle.Resource, error)
}

type LoginSuccessMsg struct {
	Username string
}

type LoginErrorMsg struct {
	Err error
}

// FeedSettledMsg reports the end of a page fetch. The page itself is read
// from the feed state.
type FeedSettledMsg struct {
	Source   string
	LoadMore bool
	Err      error
	Duration time.Duration
}

type ToggleSettledMsg struct {
	Kind     string
	Resource toggle.Resource
	Err      error
}

type WatchOpenedMsg struct {
	Session *app.WatchSession
}

type WatchErrorMsg struct {
	VideoID int64
	Err     error
}

type CommentPostedMsg struct {
	VideoID int64
	Comment vibetube.Comment
}

type CommentErrorMsg struct {
	Err error
}

type OpenURLSuccessMsg struct {
	Status string
	Opened bool
}

type OpenURLErrorMsg struct {
	Err error
}

func LoginCmd(service Service, username, password string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		if err := service.Login(ctx, username, password); err != nil {
			return LoginErrorMsg{Err: err}
		}
		return LoginSuccessMsg{Username: username}
	}
}

func SetQueryCmd(f Feed, source, query string) tea.Cmd {
	return feedCmd(source, false, func(ctx context.Context) error { return f.SetQuery(ctx, query) })
}

func LoadMoreCmd(f Feed, source string) tea.Cmd {
	return feedCmd(source, true, func(ctx context.Context) error { return f.FetchNext(ctx, true) })
}

func ReloadCmd(f Feed, source string) tea.Cmd {
	return feedCmd(source, false, f.Reload)
}

func feedCmd(source string, loadMore bool, run func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 12*time.Second)
		defer cancel()
		start := time.Now()

		err := run(ctx)
		return FeedSettledMsg{Source: source, LoadMore: loadMore, Err: err, Duration: time.Since(start)}
	}
}

func ToggleCmd(t Toggler, kind string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		res, err := t.Toggle(ctx)
		return ToggleSettledMsg{Kind: kind, Resource: res, Err: err}
	}
}

func OpenVideoCmd(service Service, videoID int64, onChange func()) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		session, err := service.OpenVideo(ctx, videoID, onChange)
		if err != nil {
			return WatchErrorMsg{VideoID: videoID, Err: err}
		}
		return WatchOpenedMsg{Session: session}
	}
}

func PostCommentCmd(service Service, videoID int64, text string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		comment, err := service.PostComment(ctx, videoID, text)
		if err != nil {
			return CommentErrorMsg{Err: err}
		}
		return CommentPostedMsg{VideoID: videoID, Comment: comment}
	}
}

func OpenURLCmd(url string, openFn, copyFn func(string) error) tea.Cmd {
	return func() tea.Msg {
		if openFn != nil {
			if err := openFn(url); err == nil {
				return OpenURLSuccessMsg{Status: "Opened video in browser", Opened: true}
			}
		}
		if copyFn != nil {
			if err := copyFn(url); err == nil {
				return OpenURLSuccessMsg{Status: "Could not open browser, URL copied to clipboard", Opened: false}
			}
		}
		return OpenURLErrorMsg{Err: fmt.Errorf("could not open URL or copy to clipboard")}
	}
}

func CopyURLCmd(url string, copyFn func(string) error) tea.Cmd {
	return func() tea.Msg {
		if copyFn != nil {
			if err := copyFn(url); err == nil {
				return OpenURLSuccessMsg{Status: "URL copied to clipboard"}
			}
		}
		return OpenURLErrorMsg{Err: fmt.Errorf("could not copy URL to clipboard")}
	}
}
