package app

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/glabrego/vibetube-cli/internal/apierr"
	"github.com/glabrego/vibetube-cli/internal/applog"
	"github.com/glabrego/vibetube-cli/internal/auth"
	"github.com/glabrego/vibetube-cli/internal/feed"
	"github.com/glabrego/vibetube-cli/internal/reqguard"
	"github.com/glabrego/vibetube-cli/internal/storage"
	"github.com/glabrego/vibetube-cli/internal/toggle"
	"github.com/glabrego/vibetube-cli/internal/vibetube"
)

type VibetubeClient interface {
	Register(ctx context.Context, reg vibetube.Registration) error
	Login(ctx context.Context, username, password string) (vibetube.AccessToken, error)
	VerifyToken(ctx context.Context, token string) (vibetube.User, error)
	LikeStatus(ctx context.Context, token string, videoID int64) (vibetube.LikeStatus, error)
	SetLike(ctx context.Context, token string, videoID int64, liked bool) (*vibetube.LikeStatus, error)
	SubscriptionStatus(ctx context.Context, token string, channelID int64) (vibetube.SubscriptionStatus, error)
	SetSubscription(ctx context.Context, token string, channelID int64, subscribed bool) (*vibetube.SubscriptionStatus, error)
	ListVideos(ctx context.Context, category string, p vibetube.PageParams) ([]vibetube.Video, error)
	SearchVideos(ctx context.Context, query string, p vibetube.PageParams) ([]vibetube.Video, error)
	ChannelVideos(ctx context.Context, channelID int64, p vibetube.PageParams) ([]vibetube.Video, error)
	GetVideo(ctx context.Context, videoID int64) (vibetube.Video, error)
	ListComments(ctx context.Context, videoID int64) ([]vibetube.Comment, error)
	PostComment(ctx context.Context, token string, videoID int64, text string) (vibetube.Comment, error)
	RecordView(ctx context.Context, token string, videoID int64) error
}

// Session is the credential provider plus the ability to store a new token.
type Session interface {
	auth.Provider
	SetToken(ctx context.Context, token string) error
}

type Repository interface {
	LoadPreferences(ctx context.Context) (storage.Preferences, error)
	SavePreferences(ctx context.Context, prefs storage.Preferences) error
}

type Options struct {
	PageSize int
	Logger   zerolog.Logger
	// Repo is optional; without it preferences are not persisted.
	Repo Repository
}

type Service struct {
	client   VibetubeClient
	session  Session
	repo     Repository
	log      zerolog.Logger
	pageSize int
	// toggles share one guard so two controllers for the same resource
	// cannot overlap.
	guard *reqguard.Guard
}

func NewService(client VibetubeClient, session Session, opts Options) *Service {
	if opts.PageSize < 1 {
		opts.PageSize = feed.DefaultPageSize
	}
	return &Service{
		client:   client,
		session:  session,
		repo:     opts.Repo,
		log:      opts.Logger,
		pageSize: opts.PageSize,
		guard:    reqguard.New(opts.Logger),
	}
}

func (s *Service) Session() Session { return s.session }

func (s *Service) Login(ctx context.Context, username, password string) error {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return apierr.New(apierr.InvalidOperation, "login", "Username and password are required")
	}
	tok, err := s.client.Login(ctx, username, password)
	if err != nil {
		return fmt.Errorf("sign in to vibetube: %w", err)
	}
	if err := s.session.SetToken(ctx, tok.AccessToken); err != nil {
		return fmt.Errorf("store access token: %w", err)
	}
	s.log.Info().Str("username", username).Msg("signed in")
	return nil
}

// Register checks the sign-up form locally and creates the account. The
// caller signs in separately.
func (s *Service) Register(ctx context.Context, reg vibetube.Registration) error {
	reg.Username = strings.TrimSpace(reg.Username)
	reg.Email = strings.TrimSpace(reg.Email)
	if err := validateRegistration(reg); err != nil {
		return err
	}
	if err := s.client.Register(ctx, reg); err != nil {
		return fmt.Errorf("register with vibetube: %w", err)
	}
	s.log.Info().Str("username", reg.Username).Msg("account created")
	return nil
}

func validateRegistration(reg vibetube.Registration) error {
	invalid := func(msg string) error { return apierr.New(apierr.InvalidOperation, "register", msg) }
	if utf8.RuneCountInString(reg.Username) < 2 {
		return invalid("Username must be at least 2 characters")
	}
	if reg.Email != "" {
		if addr, err := mail.ParseAddress(reg.Email); err != nil || addr.Address != reg.Email {
			return invalid("Please enter a valid email address")
		}
	}
	pw := reg.Password
	switch {
	case utf8.RuneCountInString(pw) < 5:
		return invalid("Password must be at least 5 characters")
	case !strings.ContainsFunc(pw, unicode.IsUpper):
		return invalid("Password must contain at least one uppercase letter")
	case !strings.ContainsFunc(pw, unicode.IsLower):
		return invalid("Password must contain at least one lowercase letter")
	case !strings.ContainsFunc(pw, unicode.IsDigit):
		return invalid("Password must contain at least one number")
	}
	return nil
}

func (s *Service) Logout() {
	s.session.ClearToken()
	s.log.Info().Msg("signed out")
}

// VerifySession asks the server who the stored token belongs to.
func (s *Service) VerifySession(ctx context.Context) (vibetube.User, error) {
	token, err := auth.Require(s.session, "verify token")
	if err != nil {
		return vibetube.User{}, err
	}
	user, err := s.client.VerifyToken(ctx, token)
	if err != nil {
		auth.Escalate(s.session, err)
		return vibetube.User{}, fmt.Errorf("verify session: %w", err)
	}
	return user, nil
}

func (s *Service) LikeController(videoID int64, opts ...toggle.Option) *toggle.Controller {
	return toggle.New("like", strconv.FormatInt(videoID, 10), likeEndpoint{client: s.client}, s.session, s.toggleOptions(opts)...)
}

func (s *Service) SubscribeController(channelID int64, opts ...toggle.Option) *toggle.Controller {
	return toggle.New("subscribe", strconv.FormatInt(channelID, 10), subscribeEndpoint{client: s.client}, s.session, s.toggleOptions(opts)...)
}

func (s *Service) toggleOptions(extra []toggle.Option) []toggle.Option {
	return append([]toggle.Option{toggle.WithLogger(s.log), toggle.WithGuard(s.guard)}, extra...)
}

// CategoryFeed pages /getvideos; the query is the category name.
func (s *Service) CategoryFeed(onChange func()) *feed.Manager[vibetube.Video] {
	source := feed.SourceFunc[vibetube.Video](func(ctx context.Context, req feed.PageRequest) ([]vibetube.Video, error) {
		return s.client.ListVideos(ctx, req.Query, pageParams(req))
	})
	return s.newFeed(source, onChange)
}

// SearchFeed pages /search; the query is the search text.
func (s *Service) SearchFeed(onChange func()) *feed.Manager[vibetube.Video] {
	source := feed.SourceFunc[vibetube.Video](func(ctx context.Context, req feed.PageRequest) ([]vibetube.Video, error) {
		return s.client.SearchVideos(ctx, req.Query, pageParams(req))
	})
	return s.newFeed(source, onChange)
}

// ChannelFeed pages a channel's uploads; the query is the channel id.
func (s *Service) ChannelFeed(onChange func()) *feed.Manager[vibetube.Video] {
	source := feed.SourceFunc[vibetube.Video](func(ctx context.Context, req feed.PageRequest) ([]vibetube.Video, error) {
		channelID, err := strconv.ParseInt(req.Query, 10, 64)
		if err != nil {
			return nil, apierr.New(apierr.InvalidOperation, "channel videos", "Invalid channel id")
		}
		return s.client.ChannelVideos(ctx, channelID, pageParams(req))
	})
	return s.newFeed(source, onChange)
}

func (s *Service) newFeed(source feed.Source[vibetube.Video], onChange func()) *feed.Manager[vibetube.Video] {
	return feed.NewManager[vibetube.Video](source, s.session, feed.Options{
		PageSize: s.pageSize,
		Logger:   s.log,
		OnChange: onChange,
	})
}

func pageParams(req feed.PageRequest) vibetube.PageParams {
	return vibetube.PageParams{Limit: req.Limit, Offset: req.Offset, Exclude: req.Exclude}
}

// WatchSession is everything the watch screen shows for one video.
type WatchSession struct {
	Video       vibetube.Video
	Like        *toggle.Controller
	Subscribe   *toggle.Controller
	Comments    []vibetube.Comment
	CommentsErr error
}

// Close detaches both controllers so late settles stop notifying the view.
func (w *WatchSession) Close() {
	if w == nil {
		return
	}
	w.Like.Detach()
	w.Subscribe.Detach()
}

// OpenVideo loads a video, records a view, then seeds both toggles and the
// comment list concurrently. Auth failures abort; status, overlap and
// comment failures degrade.
func (s *Service) OpenVideo(ctx context.Context, videoID int64, onChange func()) (*WatchSession, error) {
	video, err := s.client.GetVideo(ctx, videoID)
	if err != nil {
		return nil, fmt.Errorf("load video %d: %w", videoID, err)
	}

	// A missing token escalates here once, before the toggles fan out.
	token, err := auth.Require(s.session, "open video")
	if err != nil {
		auth.Escalate(s.session, err)
		return nil, fmt.Errorf("open video %d: %w", videoID, err)
	}

	log := s.log.With().Int64("video_id", videoID).Logger()
	if err := s.client.RecordView(ctx, token, videoID); err != nil {
		log.Warn().Err(err).Stringer(applog.FieldKind, apierr.KindOf(err)).Msg("record view failed")
	}

	var hooks []toggle.Option
	if onChange != nil {
		hooks = append(hooks, toggle.WithOnChange(func(toggle.Resource) { onChange() }))
	}
	w := &WatchSession{
		Video:     video,
		Like:      s.LikeController(video.ID, hooks...),
		Subscribe: s.SubscribeController(video.ChannelID(), hooks...),
	}

	g, gctx := errgroup.WithContext(ctx)
	seed := func(c *toggle.Controller) func() error {
		return func() error {
			err := c.Initialize(gctx)
			if errors.Is(err, reqguard.ErrInFlight) {
				// A toggle from a closed session still holds the key.
				log.Warn().Str(applog.FieldResource, c.State().ID).Msg("status request overlaps a pending toggle, assuming off")
				return nil
			}
			return err
		}
	}
	g.Go(seed(w.Like))
	g.Go(seed(w.Subscribe))
	g.Go(func() error {
		comments, err := s.client.ListComments(gctx, videoID)
		if err != nil {
			w.CommentsErr = err
			log.Warn().Err(err).Msg("comments unavailable")
			return nil
		}
		w.Comments = comments
		return nil
	})
	if err := g.Wait(); err != nil {
		w.Close()
		return nil, fmt.Errorf("open video %d: %w", videoID, err)
	}
	return w, nil
}

func (s *Service) PostComment(ctx context.Context, videoID int64, text string) (vibetube.Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return vibetube.Comment{}, apierr.New(apierr.InvalidOperation, "post comment", "Comment cannot be empty")
	}
	token, err := auth.Require(s.session, "post comment")
	if err != nil {
		auth.Escalate(s.session, err)
		return vibetube.Comment{}, err
	}
	comment, err := s.client.PostComment(ctx, token, videoID, text)
	if err != nil {
		auth.Escalate(s.session, err)
		return vibetube.Comment{}, fmt.Errorf("post comment: %w", err)
	}
	return comment, nil
}

func (s *Service) Preferences(ctx context.Context) storage.Preferences {
	if s.repo == nil {
		return storage.Preferences{}
	}
	prefs, err := s.repo.LoadPreferences(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("load preferences failed")
		return storage.Preferences{}
	}
	return prefs
}

func (s *Service) SavePreferences(ctx context.Context, prefs storage.Preferences) error {
	if s.repo == nil {
		return nil
	}
	if err := s.repo.SavePreferences(ctx, prefs); err != nil {
		return fmt.Errorf("save preferences: %w", err)
	}
	return nil
}

type likeEndpoint struct {
	client VibetubeClient
}

func (e likeEndpoint) Status(ctx context.Context, token, id string) (toggle.Status, error) {
	videoID, err := parseID("like status", id)
	if err != nil {
		return toggle.Status{}, err
	}
	st, err := e.client.LikeStatus(ctx, token, videoID)
	if err != nil {
		return toggle.Status{}, err
	}
	return toggle.Status{Active: st.Liked, Count: st.Likes}, nil
}

func (e likeEndpoint) SetState(ctx context.Context, token, id string, desired bool) (*toggle.Status, error) {
	videoID, err := parseID("set like", id)
	if err != nil {
		return nil, err
	}
	echo, err := e.client.SetLike(ctx, token, videoID, desired)
	if err != nil || echo == nil {
		return nil, err
	}
	return &toggle.Status{Active: echo.Liked, Count: echo.Likes}, nil
}

type subscribeEndpoint struct {
	client VibetubeClient
}

func (e subscribeEndpoint) Status(ctx context.Context, token, id string) (toggle.Status, error) {
	channelID, err := parseID("subscription status", id)
	if err != nil {
		return toggle.Status{}, err
	}
	st, err := e.client.SubscriptionStatus(ctx, token, channelID)
	if err != nil {
		return toggle.Status{}, err
	}
	return toggle.Status{Active: st.Subscribed, Count: st.Subscribers, Locked: st.OwnerWatching}, nil
}

func (e subscribeEndpoint) SetState(ctx context.Context, token, id string, desired bool) (*toggle.Status, error) {
	channelID, err := parseID("set subscription", id)
	if err != nil {
		return nil, err
	}
	echo, err := e.client.SetSubscription(ctx, token, channelID, desired)
	if err != nil || echo == nil {
		return nil, err
	}
	return &toggle.Status{Active: echo.Subscribed, Count: echo.Subscribers, Locked: echo.OwnerWatching}, nil
}

func parseID(op, id string) (int64, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0, apierr.New(apierr.InvalidOperation, op, "invalid id "+strconv.Quote(id))
	}
	return n, nil
}
