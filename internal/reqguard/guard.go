package reqguard

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/glabrego/vibetube-cli/internal/apierr"
	"github.com/glabrego/vibetube-cli/internal/applog"
)

// ErrInFlight is returned when a call for the same key has not settled yet.
var ErrInFlight = errors.New("request already in flight")

// Guard serialises calls per logical resource key. A second call for a held
// key is rejected, never queued.
type Guard struct {
	mu       sync.Mutex
	inFlight map[string]struct{}
	log      zerolog.Logger
}

func New(log zerolog.Logger) *Guard {
	return &Guard{inFlight: make(map[string]struct{}), log: log}
}

// Acquire marks key as in flight. The returned release func is idempotent.
func (g *Guard) Acquire(key string) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.inFlight[key]; busy {
		return nil, ErrInFlight
	}
	g.inFlight[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.inFlight, key)
			g.mu.Unlock()
		})
	}, nil
}

func (g *Guard) Busy(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, busy := g.inFlight[key]
	return busy
}

// Do runs fn while holding key. Errors from fn come back classified;
// a panic inside fn is recovered and reported as a transient failure.
func (g *Guard) Do(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	release, err := g.Acquire(key)
	if err != nil {
		g.log.Debug().Str(applog.FieldKey, key).Msg("rejected overlapping request")
		return err
	}
	defer release()
	return g.run(ctx, key, fn)
}

func (g *Guard) run(ctx context.Context, key string, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			g.log.Error().Str(applog.FieldKey, key).Interface("panic", r).Msg("guarded request panicked")
			err = apierr.Transport(key, fmt.Errorf("panic: %v", r))
		}
	}()

	g.log.Debug().Str(applog.FieldKey, key).Msg("dispatch")
	if err := fn(ctx); err != nil {
		classified := apierr.Classify(key, err)
		g.log.Debug().Str(applog.FieldKey, key).Stringer(applog.FieldKind, classified.Kind).Msg("settled with error")
		return classified
	}
	g.log.Debug().Str(applog.FieldKey, key).Msg("settled")
	return nil
}
