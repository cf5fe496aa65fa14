package application

import (
	"time"

	"github.com/bnema/fungame/internal/domain"
)

type StateView struct {
	Session domain.Session
	State   domain.GameState
}

type SessionSummary struct {
	ID             domain.SessionID
	Channel        domain.ChannelID
	Generation     int
	Status         domain.SessionStatus
	Version        uint64
	Players        int
	LastActivityAt time.Time
}

func summarize(session domain.Session, version uint64) SessionSummary {
	return SessionSummary{
		ID:             session.ID,
		Channel:        session.Channel,
		Generation:     session.Generation,
		Status:         session.Status,
		Version:        version,
		Players:        len(session.Players),
		LastActivityAt: session.LastActivityAt,
	}
}
