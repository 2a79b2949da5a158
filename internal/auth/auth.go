package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/glabrego/vibetube-cli/internal/apierr"
)

// Provider is the credential collaborator injected into controllers.
type Provider interface {
	Token() (string, bool)
	ClearToken()
	OnAuthFailure()
}

type TokenStore interface {
	LoadToken(ctx context.Context) (string, error)
	SaveToken(ctx context.Context, token string) error
	DeleteToken(ctx context.Context) error
}

// Session is a Provider backed by a TokenStore, caching the token in memory.
type Session struct {
	mu        sync.Mutex
	store     TokenStore
	token     string
	onFailure func()
	nowFn     func() time.Time
	log       zerolog.Logger
}

func NewSession(ctx context.Context, store TokenStore, log zerolog.Logger) (*Session, error) {
	s := &Session{store: store, nowFn: time.Now, log: log}
	if store == nil {
		return s, nil
	}
	token, err := store.LoadToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("load stored token: %w", err)
	}
	s.token = token
	return s, nil
}

// Token returns the stored credential. An expired JWT counts as absent and is cleared.
func (s *Session) Token() (string, bool) {
	s.mu.Lock()
	token := s.token
	now := s.nowFn()
	s.mu.Unlock()

	if token == "" {
		return "", false
	}
	if expired(token, now) {
		s.log.Info().Msg("stored token expired, clearing")
		s.ClearToken()
		return "", false
	}
	return token, true
}

func (s *Session) SetToken(ctx context.Context, token string) error {
	if s.store != nil {
		if err := s.store.SaveToken(ctx, token); err != nil {
			return fmt.Errorf("save token: %w", err)
		}
	}
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
	return nil
}

func (s *Session) ClearToken() {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()
	if s.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.store.DeleteToken(ctx); err != nil {
		s.log.Warn().Err(err).Msg("could not delete stored token")
	}
}

func (s *Session) SetFailureHandler(fn func()) {
	s.mu.Lock()
	s.onFailure = fn
	s.mu.Unlock()
}

func (s *Session) OnAuthFailure() {
	s.mu.Lock()
	fn := s.onFailure
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Escalate clears the credential and fires the sign-in redirect when err is an
// auth failure. It reports whether it did so.
func Escalate(p Provider, err error) bool {
	if p == nil || !apierr.IsAuth(err) {
		return false
	}
	p.ClearToken()
	p.OnAuthFailure()
	return true
}

// Require returns the current token or an AuthRequired error for op.
func Require(p Provider, op string) (string, error) {
	if p == nil {
		return "", apierr.New(apierr.AuthRequired, op, "no credential provider")
	}
	token, ok := p.Token()
	if !ok {
		return "", apierr.New(apierr.AuthRequired, op, "")
	}
	return token, nil
}

// expired inspects the exp claim without verifying the signature; the server
// remains the authority. Tokens that are not JWTs are never treated as expired.
func expired(token string, now time.Time) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !exp.After(now)
}
