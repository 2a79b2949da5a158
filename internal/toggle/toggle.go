package toggle

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/glabrego/vibetube-cli/internal/apierr"
	"github.com/glabrego/vibetube-cli/internal/applog"
	"github.com/glabrego/vibetube-cli/internal/auth"
	"github.com/glabrego/vibetube-cli/internal/reqguard"
)

// ErrLocked is returned when self-action is disallowed for the resource.
var ErrLocked = errors.New("toggle is disabled for this resource")

// Status is the server's view of a toggle resource.
type Status struct {
	Active bool
	Count  int
	Locked bool
}

// Endpoint is the pair of calls backing one kind of toggle (like, subscribe).
type Endpoint interface {
	Status(ctx context.Context, token, id string) (Status, error)
	// SetState sends the desired state explicitly. A nil status means the
	// server did not echo the new state.
	SetState(ctx context.Context, token, id string, desired bool) (*Status, error)
}

// Resource is the client's current belief about a toggle.
type Resource struct {
	ID      string
	Active  bool
	Count   int
	Pending bool
	Locked  bool
}

type Controller struct {
	kind     string
	endpoint Endpoint
	auth     auth.Provider
	guard    *reqguard.Guard
	log      zerolog.Logger

	mu       sync.Mutex
	res      Resource
	onChange func(Resource)
	detached bool
}

type Option func(*Controller)

func WithLogger(log zerolog.Logger) Option {
	return func(c *Controller) { c.log = log }
}

func WithGuard(g *reqguard.Guard) Option {
	return func(c *Controller) { c.guard = g }
}

// WithOnChange registers a hook fired after every local state transition.
func WithOnChange(fn func(Resource)) Option {
	return func(c *Controller) { c.onChange = fn }
}

// New binds a controller to the resource id. kind names the toggle in keys and logs.
func New(kind, id string, endpoint Endpoint, provider auth.Provider, opts ...Option) *Controller {
	c := &Controller{
		kind:     kind,
		endpoint: endpoint,
		auth:     provider,
		log:      zerolog.Nop(),
		res:      Resource{ID: id},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.guard == nil {
		c.guard = reqguard.New(c.log)
	}
	c.log = c.log.With().Str(applog.FieldResource, c.key()).Logger()
	return c
}

func (c *Controller) key() string {
	return c.kind + ":" + c.res.ID
}

func (c *Controller) State() Resource {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.res
}

// Detach stops change notifications; a late settle still updates state.
func (c *Controller) Detach() {
	c.mu.Lock()
	c.detached = true
	c.onChange = nil
	c.mu.Unlock()
}

// Initialize seeds the resource from the server. Failures other than auth
// leave the resource off with a zero count.
func (c *Controller) Initialize(ctx context.Context) error {
	op := c.kind + " status"
	token, err := auth.Require(c.auth, op)
	if err != nil {
		auth.Escalate(c.auth, err)
		return err
	}

	err = c.guard.Do(ctx, c.key(), func(ctx context.Context) error {
		c.update(func(r *Resource) { r.Pending = true })

		status, err := c.endpoint.Status(ctx, token, c.res.ID)
		c.update(func(r *Resource) {
			r.Pending = false
			if err != nil {
				r.Active, r.Count = false, 0
				return
			}
			r.Active = status.Active
			r.Count = clampCount(status.Count)
			r.Locked = status.Locked
		})
		return err
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, reqguard.ErrInFlight):
		return err
	case auth.Escalate(c.auth, err):
		return err
	default:
		c.log.Warn().Err(err).Stringer(applog.FieldKind, apierr.KindOf(err)).Msg("status unavailable, assuming off")
		return nil
	}
}

// Toggle flips the resource optimistically and confirms it with the server.
// Overlapping calls are rejected with reqguard.ErrInFlight. Transient failures
// roll back silently; auth failures escalate; other rejections are returned
// so the caller can show them.
func (c *Controller) Toggle(ctx context.Context) (Resource, error) {
	if c.State().Locked {
		return c.State(), ErrLocked
	}

	op := "set " + c.kind
	token, err := auth.Require(c.auth, op)
	if err != nil {
		auth.Escalate(c.auth, err)
		return c.State(), err
	}

	err = c.guard.Do(ctx, c.key(), func(ctx context.Context) error {
		var prev Resource
		c.update(func(r *Resource) {
			prev = *r
			r.Active = !r.Active
			if r.Active {
				r.Count++
			} else {
				r.Count = clampCount(r.Count - 1)
			}
			r.Pending = true
		})
		desired := !prev.Active

		settled := false
		defer func() {
			if !settled {
				c.update(func(r *Resource) { rollback(r, prev) })
			}
		}()

		echo, err := c.endpoint.SetState(ctx, token, prev.ID, desired)
		c.update(func(r *Resource) {
			if err != nil {
				rollback(r, prev)
				return
			}
			if echo != nil {
				r.Active = echo.Active
				r.Count = clampCount(echo.Count)
				r.Locked = echo.Locked
			}
			r.Pending = false
		})
		settled = true
		return err
	})

	state := c.State()
	switch {
	case err == nil:
		return state, nil
	case errors.Is(err, reqguard.ErrInFlight):
		return state, err
	case auth.Escalate(c.auth, err):
		return state, err
	case apierr.Is(err, apierr.InvalidOperation), apierr.Is(err, apierr.NotFound):
		c.log.Info().Err(err).Msg("toggle rejected, reverted")
		return state, err
	default:
		c.log.Warn().Err(err).Stringer(applog.FieldKind, apierr.KindOf(err)).Msg("toggle failed, reverted")
		return state, nil
	}
}

func rollback(r *Resource, prev Resource) {
	r.Active = prev.Active
	r.Count = prev.Count
	r.Pending = false
}

func (c *Controller) update(fn func(*Resource)) {
	c.mu.Lock()
	fn(&c.res)
	snapshot := c.res
	notify := c.onChange
	if c.detached {
		notify = nil
	}
	c.mu.Unlock()
	if notify != nil {
		notify(snapshot)
	}
}

func clampCount(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
