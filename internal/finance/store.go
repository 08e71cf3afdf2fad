package finance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"finwise/internal/storage"

	"github.com/google/uuid"
)

const fallbackReply = "I can help with accounts, goals, budgets, and simulations."

type Options struct {
	Responder      Responder
	Lessons        []Lesson
	LessonPassMark int
	Now            func() time.Time
	NewID          func(prefix string) string
	// LevelUpHook runs after a mutation raised the user's level.
	LevelUpHook func(email string, oldLevel, newLevel int)
}

func (o Options) withDefaults() Options {
	if o.Responder == nil {
		o.Responder = ResponderFunc(func(context.Context, string, AppState) string { return fallbackReply })
	}
	if o.Lessons == nil {
		o.Lessons = DefaultLessons()
	}
	if o.LessonPassMark <= 0 {
		o.LessonPassMark = 70
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.NewID == nil {
		o.NewID = func(prefix string) string { return prefix + "_" + uuid.NewString() }
	}
	return o
}

// Hub hands out one Store per user identity.
type Hub struct {
	kv   storage.Store
	log  *slog.Logger
	opts Options

	mu     sync.Mutex
	stores map[string]*Store
}

func NewHub(kv storage.Store, logger *slog.Logger, opts Options) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		kv:     kv,
		log:    logger,
		opts:   opts.withDefaults(),
		stores: make(map[string]*Store),
	}
}

// Open returns the live store for profile.Email, loading it from storage on
// first use. A missing blob is created from profile; a never-seeded empty
// state receives the starter accounts and goals exactly once.
func (h *Hub) Open(ctx context.Context, profile UserProfile) (*Store, error) {
	email := storage.NormalizeEmail(profile.Email)
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.stores[email]; ok {
		s.touch()
		return s, nil
	}
	s, err := h.load(ctx, email, profile)
	if err != nil {
		return nil, err
	}
	h.stores[email] = s
	return s, nil
}

// EvictIdle drops every cached store not used since before. A caller still
// holding an evicted store keeps working: its next call goes through a fresh
// store loaded from storage.
func (h *Hub) EvictIdle(before time.Time) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for email, s := range h.stores {
		if s.retireIfIdle(before) {
			delete(h.stores, email)
			n++
		}
	}
	if n > 0 {
		h.log.Debug("evicted idle stores", "count", n, "cached", len(h.stores))
	}
	return n
}

func (h *Hub) load(ctx context.Context, email string, profile UserProfile) (*Store, error) {
	now := h.opts.Now()
	s := &Store{email: email, kv: h.kv, hub: h, log: h.log.With("user", email), opts: h.opts, lastUsed: now}

	dirty := false
	raw, err := h.kv.Get(ctx, storage.StateKey(email))
	switch {
	case errors.Is(err, storage.ErrNotFound):
		profile.Email = email
		if profile.ID == "" {
			profile.ID = h.opts.NewID("user")
		}
		s.state = NewAppState(profile, now)
		dirty = true
	case err != nil:
		return nil, fmt.Errorf("load state: %w", err)
	default:
		if err := json.Unmarshal(raw, &s.state); err != nil {
			return nil, fmt.Errorf("decode state: %w", err)
		}
	}

	seeded, err := h.isSeeded(ctx, email)
	if err != nil {
		return nil, err
	}
	seedNow := !seeded && needsStarterData(s.state)
	if seedNow {
		applyStarterData(&s.state, now, h.opts.NewID)
		dirty = true
	}
	if dirty {
		s.state.recompute(now)
		if err := s.persist(ctx, s.state); err != nil {
			return nil, err
		}
	}
	if seedNow {
		if err := h.kv.Put(ctx, storage.SeededKey(email), []byte("true")); err != nil {
			return nil, fmt.Errorf("mark seeded: %w", err)
		}
		s.log.Info("starter data applied", "accounts", len(s.state.FinancialHub.Accounts), "goals", len(s.state.Goals))
	}
	return s, nil
}

func (h *Hub) isSeeded(ctx context.Context, email string) (bool, error) {
	_, err := h.kv.Get(ctx, storage.SeededKey(email))
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load seeded marker: %w", err)
	}
	return true, nil
}

// Store is the single writer of one user's AppState. Mutations are
// serialized and each one replaces the persisted snapshot as a whole.
type Store struct {
	email string
	kv    storage.Store
	hub   *Hub
	log   *slog.Logger
	opts  Options

	mu       sync.Mutex
	state    AppState
	lastUsed time.Time
	retired  bool // dropped by the hub; calls go to the store that replaced it
}

func (s *Store) Email() string {
	return s.email
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() AppState {
	s.mu.Lock()
	if !s.retired {
		defer s.mu.Unlock()
		s.lastUsed = s.opts.Now()
		return s.state.Clone()
	}
	last := s.state.Clone()
	s.mu.Unlock()
	live, err := s.successor(context.Background())
	if err != nil {
		s.log.Warn("reload evicted store", "err", err)
		return last
	}
	return live.Snapshot()
}

func (s *Store) touch() {
	s.mu.Lock()
	s.lastUsed = s.opts.Now()
	s.mu.Unlock()
}

func (s *Store) retireIfIdle(before time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.lastUsed.Before(before) {
		return false
	}
	s.retired = true
	return true
}

// successor returns the store the hub now serves for this user.
func (s *Store) successor(ctx context.Context) (*Store, error) {
	return s.hub.Open(ctx, UserProfile{Email: s.email})
}

func (s *Store) persist(ctx context.Context, st AppState) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := s.kv.Put(ctx, storage.StateKey(s.email), raw); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

// mutate applies fn to a copy of the state, persists the result and only then
// publishes it. A failing fn or a failed write leaves the state untouched.
func (s *Store) mutate(ctx context.Context, fn func(st *AppState, now time.Time) error) (AppState, error) {
	s.mu.Lock()
	if s.retired {
		s.mu.Unlock()
		live, err := s.successor(ctx)
		if err != nil {
			return AppState{}, err
		}
		return live.mutate(ctx, fn)
	}
	oldLevel := s.state.User.Level
	next := s.state.Clone()
	now := s.opts.Now()
	s.lastUsed = now
	if err := fn(&next, now); err != nil {
		s.mu.Unlock()
		return AppState{}, err
	}
	next.recompute(now)
	if err := s.persist(ctx, next); err != nil {
		s.mu.Unlock()
		s.log.Error("persist state failed", "err", err)
		return AppState{}, err
	}
	s.state = next
	out := next.Clone()
	s.mu.Unlock()

	if out.User.Level > oldLevel {
		s.log.Info("level up", "from", oldLevel, "to", out.User.Level)
		if s.opts.LevelUpHook != nil {
			s.opts.LevelUpHook(s.email, oldLevel, out.User.Level)
		}
	}
	return out, nil
}
