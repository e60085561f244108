package session

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/park285/stoneboard/internal/board"
	"go.uber.org/zap"
)

// Registry owns the sessions of one process. Sessions are created and
// destroyed explicitly; a Store, when set, keeps them across restarts.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*entry
	store    Store
	logger   *zap.Logger
	opts     []Option
	now      func() time.Time
}

type entry struct {
	sess *Session
	meta Meta
}

// NewRegistry builds a registry. opts are applied to every session it creates.
func NewRegistry(store Store, logger *zap.Logger, opts ...Option) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		sessions: make(map[string]*entry),
		store:    store,
		logger:   logger,
		opts:     opts,
		now:      time.Now,
	}
}

func (r *Registry) Create(ctx context.Context) (*Session, error) {
	id := uuid.NewString()
	s := New(id, append([]Option{WithLogger(r.logger)}, r.opts...)...)
	now := r.now()
	e := &entry{sess: s, meta: Meta{ID: id, CreatedAt: now, UpdatedAt: now, Length: 1}}

	r.mu.Lock()
	r.sessions[id] = e
	r.mu.Unlock()

	if err := r.persist(ctx, e); err != nil {
		return s, err
	}
	r.logger.Info("session_created", zap.String("session_id", id))
	return s, nil
}

// Get returns a live session or restores it from the store.
func (r *Registry) Get(ctx context.Context, id string) (*Session, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrInvalidArgs
	}
	r.mu.Lock()
	e, ok := r.sessions[id]
	r.mu.Unlock()
	if ok {
		return e.sess, nil
	}
	if r.store == nil {
		return nil, ErrSessionGone
	}
	meta, state, found, err := r.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrSessionGone
	}
	s := New(id, append([]Option{WithLogger(r.logger)}, r.opts...)...)
	s.history.Replace(state.History, state.Cursor)
	s.buttons = state.Buttons

	r.mu.Lock()
	if existing, ok := r.sessions[id]; ok {
		r.mu.Unlock()
		return existing.sess, nil
	}
	r.sessions[id] = &entry{sess: s, meta: meta}
	r.mu.Unlock()
	r.logger.Info("session_restored", zap.String("session_id", id), zap.Int("length", len(state.History)))
	return s, nil
}

// Save writes the session's current state to the store.
func (r *Registry) Save(ctx context.Context, s *Session) error {
	r.mu.Lock()
	e, ok := r.sessions[s.ID()]
	r.mu.Unlock()
	if !ok {
		return ErrSessionGone
	}
	return r.persist(ctx, e)
}

// persist reads the session, so it must run on the goroutine that owns it.
// The refreshed meta is what List reports for live sessions.
func (r *Registry) persist(ctx context.Context, e *entry) error {
	state := e.sess.State()
	r.mu.Lock()
	e.meta.UpdatedAt = r.now()
	e.meta.Length = len(state.History)
	e.meta.Cursor = state.Cursor
	meta := e.meta
	r.mu.Unlock()
	if r.store == nil {
		return nil
	}
	if err := r.store.Save(ctx, meta, state); err != nil {
		r.logger.Warn("session_save_error", zap.String("session_id", meta.ID), zap.Error(err))
		return err
	}
	return nil
}

func (r *Registry) Destroy(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	r.mu.Lock()
	_, live := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if r.store != nil {
		if err := r.store.Delete(ctx, id); err != nil {
			return err
		}
	} else if !live {
		return ErrSessionGone
	}
	r.logger.Info("session_destroyed", zap.String("session_id", id))
	return nil
}

// List merges live and stored sessions, most recently updated first. Live
// sessions are reported as of their last Save; List never touches session
// state and is safe from any goroutine.
func (r *Registry) List(ctx context.Context) ([]Meta, error) {
	byID := make(map[string]Meta)
	if r.store != nil {
		stored, err := r.store.List(ctx)
		if err != nil {
			return nil, err
		}
		for _, m := range stored {
			byID[m.ID] = m
		}
	}
	r.mu.Lock()
	for id, e := range r.sessions {
		byID[id] = e.meta
	}
	r.mu.Unlock()

	out := make([]Meta, 0, len(byID))
	for _, m := range byID {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

// Saver returns a Broadcaster that persists s whenever it changes locally.
func (r *Registry) Saver(s *Session) Broadcaster { return saver{r: r, s: s} }

type saver struct {
	r *Registry
	s *Session
}

func (v saver) Broadcast(ctx context.Context, _ board.SessionState) error {
	return v.r.Save(ctx, v.s)
}
