package ports

import (
	"context"

	"github.com/bnema/fungame/internal/domain"
)

// StateStore keeps the append-only GameState history of every session.
type StateStore interface {
	// Init stores initial as version 0 unless the session already has history,
	// and returns the latest state either way.
	Init(ctx context.Context, session domain.SessionID, initial domain.GameState) (domain.GameState, error)
	Read(ctx context.Context, session domain.SessionID) (domain.GameState, error)
	// Commit appends latest.Apply(delta) when expectedVersion is still current.
	// It returns domain.ErrVersionConflict otherwise and leaves the history untouched.
	Commit(ctx context.Context, session domain.SessionID, expectedVersion uint64, delta domain.Delta) (uint64, error)
	History(ctx context.Context, session domain.SessionID) ([]domain.GameState, error)
}
