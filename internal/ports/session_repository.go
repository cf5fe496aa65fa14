package ports

import (
	"context"

	"github.com/bnema/fungame/internal/domain"
)

type SessionRepository interface {
	GetByID(ctx context.Context, id domain.SessionID) (domain.Session, error)
	// Latest returns the highest generation recorded for a channel.
	Latest(ctx context.Context, channel domain.ChannelID) (domain.Session, error)
	List(ctx context.Context) ([]domain.Session, error)
	Save(ctx context.Context, session domain.Session) error
}
