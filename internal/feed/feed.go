package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/glabrego/vibetube-cli/internal/apierr"
	"github.com/glabrego/vibetube-cli/internal/applog"
	"github.com/glabrego/vibetube-cli/internal/auth"
	"github.com/glabrego/vibetube-cli/internal/reqguard"
)

const DefaultPageSize = 12

var (
	// ErrExhausted is returned by a load-more after a short page.
	ErrExhausted = errors.New("feed has no more items")
	// ErrDiscarded is returned when a response arrives after the query changed.
	ErrDiscarded = errors.New("feed response discarded: query changed")
)

// Item is anything with a stable unique identifier.
type Item interface {
	Key() string
}

type PageRequest struct {
	Query   string
	Limit   int
	Offset  int
	Exclude []string
}

type Source[T Item] interface {
	Page(ctx context.Context, req PageRequest) ([]T, error)
}

// SourceFunc adapts a function to a Source.
type SourceFunc[T Item] func(ctx context.Context, req PageRequest) ([]T, error)

func (f SourceFunc[T]) Page(ctx context.Context, req PageRequest) ([]T, error) {
	return f(ctx, req)
}

type State[T Item] struct {
	Query   string
	Items   []T
	Offset  int
	HasMore bool
	Loading bool
	Err     error
}

type Options struct {
	PageSize int
	Logger   zerolog.Logger
	Guard    *reqguard.Guard
	// OnChange fires after every state transition; read State() from it.
	OnChange func()
}

type Manager[T Item] struct {
	source Source[T]
	auth   auth.Provider
	guard  *reqguard.Guard
	limit  int
	log    zerolog.Logger

	mu       sync.Mutex
	started  bool
	query    string
	epoch    uint64
	offset   int
	seen     map[string]struct{}
	order    []string
	items    []T
	hasMore  bool
	loading  bool
	err      error
	onChange func()
}

func NewManager[T Item](source Source[T], provider auth.Provider, opts Options) *Manager[T] {
	if opts.PageSize < 1 {
		opts.PageSize = DefaultPageSize
	}
	if opts.Guard == nil {
		opts.Guard = reqguard.New(opts.Logger)
	}
	return &Manager[T]{
		source:   source,
		auth:     provider,
		guard:    opts.Guard,
		limit:    opts.PageSize,
		log:      opts.Logger,
		seen:     make(map[string]struct{}),
		hasMore:  true,
		onChange: opts.OnChange,
	}
}

type queryConfig struct {
	initialOffset int
}

type QueryOption func(*queryConfig)

func WithInitialOffset(n int) QueryOption {
	return func(c *queryConfig) {
		if n > 0 {
			c.initialOffset = n
		}
	}
}

// SetQuery switches the feed to query and fetches its first page. Re-setting
// the active query is a no-op once it has items or while its first page is loading.
func (m *Manager[T]) SetQuery(ctx context.Context, query string, opts ...QueryOption) error {
	cfg := queryConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	m.mu.Lock()
	if m.started && query == m.query && (len(m.items) > 0 || m.loading) {
		m.mu.Unlock()
		return nil
	}
	m.resetLocked(query, cfg.initialOffset)
	m.mu.Unlock()
	m.notify()

	return m.fetch(ctx, false)
}

// Reload starts a fresh epoch for the active query.
func (m *Manager[T]) Reload(ctx context.Context) error {
	m.mu.Lock()
	m.resetLocked(m.query, 0)
	m.mu.Unlock()
	m.notify()
	return m.fetch(ctx, false)
}

// FetchNext requests the next page. With isLoadMore the page is appended,
// otherwise it replaces the current items.
func (m *Manager[T]) FetchNext(ctx context.Context, isLoadMore bool) error {
	return m.fetch(ctx, isLoadMore)
}

func (m *Manager[T]) State() State[T] {
	m.mu.Lock()
	defer m.mu.Unlock()
	return State[T]{
		Query:   m.query,
		Items:   append([]T(nil), m.items...),
		Offset:  m.offset,
		HasMore: m.hasMore,
		Loading: m.loading,
		Err:     m.err,
	}
}

// Detach stops notifications; in-flight responses are still discarded or merged.
func (m *Manager[T]) Detach() {
	m.mu.Lock()
	m.onChange = nil
	m.mu.Unlock()
}

func (m *Manager[T]) resetLocked(query string, offset int) {
	m.started = true
	m.query = query
	m.epoch++
	m.offset = offset
	m.seen = make(map[string]struct{})
	m.order = nil
	m.items = nil
	m.hasMore = true
	m.loading = false
	m.err = nil
}

func (m *Manager[T]) fetch(ctx context.Context, isLoadMore bool) error {
	m.mu.Lock()
	if m.loading {
		m.mu.Unlock()
		return reqguard.ErrInFlight
	}
	if isLoadMore && !m.hasMore {
		m.mu.Unlock()
		return ErrExhausted
	}
	epoch := m.epoch
	req := PageRequest{
		Query:   m.query,
		Limit:   m.limit,
		Offset:  m.offset,
		Exclude: append([]string(nil), m.order...),
	}
	m.loading = true
	m.mu.Unlock()
	m.notify()

	log := m.log.With().Str(applog.FieldQuery, req.Query).Int("offset", req.Offset).Logger()
	var page []T
	err := m.guard.Do(ctx, fmt.Sprintf("feed:%s#%d", req.Query, epoch), func(ctx context.Context) error {
		var err error
		page, err = m.source.Page(ctx, req)
		return err
	})

	m.mu.Lock()
	if epoch != m.epoch {
		m.mu.Unlock()
		log.Debug().Msg("discarding response for superseded query")
		return ErrDiscarded
	}
	if err != nil {
		m.loading = false
		m.hasMore = false
		m.err = err
		if !isLoadMore {
			m.items = nil
		}
		m.mu.Unlock()
		m.notify()
		if !auth.Escalate(m.auth, err) {
			log.Warn().Err(err).Stringer(applog.FieldKind, apierr.KindOf(err)).Msg("page fetch failed")
		}
		return err
	}

	fresh := m.mergeLocked(page)
	if isLoadMore {
		m.items = append(m.items, fresh...)
	} else {
		m.items = fresh
	}
	m.offset += len(page)
	m.hasMore = len(page) == m.limit
	m.loading = false
	m.err = nil
	m.mu.Unlock()
	m.notify()

	if dropped := len(page) - len(fresh); dropped > 0 {
		log.Debug().Int("dropped", dropped).Msg("dropped already delivered items")
	}
	return nil
}

// mergeLocked returns the items of page not delivered before and records them.
func (m *Manager[T]) mergeLocked(page []T) []T {
	fresh := make([]T, 0, len(page))
	for _, item := range page {
		key := item.Key()
		if _, dup := m.seen[key]; dup {
			continue
		}
		m.seen[key] = struct{}{}
		m.order = append(m.order, key)
		fresh = append(fresh, item)
	}
	return fresh
}

func (m *Manager[T]) notify() {
	m.mu.Lock()
	fn := m.onChange
	m.mu.Unlock()
	if fn != nil {
		fn()
	}
}
