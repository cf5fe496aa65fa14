package memory

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/bnema/fungame/internal/domain"
	"github.com/bnema/fungame/internal/ports"
)

// Store keeps every session in its own arena. Commits serialize on the arena;
// reads load the latest state without locking.
type Store struct {
	arenas sync.Map
}

type arena struct {
	mu      sync.Mutex
	history []domain.GameState
	latest  atomic.Pointer[domain.GameState]
}

var _ ports.StateStore = (*Store)(nil)

func NewStore() *Store {
	return &Store{}
}

func (s *Store) Init(ctx context.Context, session domain.SessionID, initial domain.GameState) (domain.GameState, error) {
	if err := ctx.Err(); err != nil {
		return domain.GameState{}, err
	}

	value, _ := s.arenas.LoadOrStore(session, &arena{})
	a := value.(*arena)

	a.mu.Lock()
	defer a.mu.Unlock()

	if latest := a.latest.Load(); latest != nil {
		return latest.Clone(), nil
	}

	first := initial.Clone()
	first.Session = session
	first.Version = 0
	a.history = append(a.history, first)
	a.latest.Store(&first)

	return first.Clone(), nil
}

func (s *Store) Read(ctx context.Context, session domain.SessionID) (domain.GameState, error) {
	if err := ctx.Err(); err != nil {
		return domain.GameState{}, err
	}

	a, ok := s.arena(session)
	if !ok {
		return domain.GameState{}, domain.ErrSessionNotFound
	}
	latest := a.latest.Load()
	if latest == nil {
		return domain.GameState{}, domain.ErrSessionNotFound
	}

	return latest.Clone(), nil
}

func (s *Store) Commit(ctx context.Context, session domain.SessionID, expectedVersion uint64, delta domain.Delta) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	a, ok := s.arena(session)
	if !ok {
		return 0, domain.ErrSessionNotFound
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	latest := a.latest.Load()
	if latest == nil {
		return 0, domain.ErrSessionNotFound
	}
	if latest.Version != expectedVersion {
		return 0, fmt.Errorf("commit %s at version %d (current %d): %w", session, expectedVersion, latest.Version, domain.ErrVersionConflict)
	}

	next := latest.Apply(delta)
	a.history = append(a.history, next)
	a.latest.Store(&next)

	return next.Version, nil
}

func (s *Store) History(ctx context.Context, session domain.SessionID) ([]domain.GameState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a, ok := s.arena(session)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	history := make([]domain.GameState, 0, len(a.history))
	for _, state := range a.history {
		history = append(history, state.Clone())
	}

	return history, nil
}

func (s *Store) arena(session domain.SessionID) (*arena, bool) {
	value, ok := s.arenas.Load(session)
	if !ok {
		return nil, false
	}
	return value.(*arena), true
}
