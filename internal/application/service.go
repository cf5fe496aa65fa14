package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bnema/fungame/internal/domain"
	"github.com/bnema/fungame/internal/ports"
)

var ErrEmptyPatch = errors.New("patch changes nothing")

// Service is the operator surface over persisted sessions, their state history
// and backend secrets.
type Service struct {
	states   ports.StateStore
	sessions ports.SessionRepository
	secrets  ports.SecretStore
	clock    ports.Clock
}

func NewService(states ports.StateStore, sessions ports.SessionRepository, secrets ports.SecretStore, clock ports.Clock) *Service {
	if clock == nil {
		clock = ports.SystemClock{}
	}

	return &Service{
		states:   states,
		sessions: sessions,
		secrets:  secrets,
		clock:    clock,
	}
}

// Resolve finds a session by id, or by channel for its latest generation.
func (s *Service) Resolve(ctx context.Context, ref string) (domain.Session, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return domain.Session{}, fmt.Errorf("%w: empty reference", domain.ErrSessionNotFound)
	}

	if _, _, err := domain.ParseSessionID(domain.SessionID(ref)); err == nil {
		session, err := s.sessions.GetByID(ctx, domain.SessionID(ref))
		if err == nil {
			return session, nil
		}
		if !errors.Is(err, domain.ErrSessionNotFound) {
			return domain.Session{}, fmt.Errorf("get session by id: %w", err)
		}
	}

	session, err := s.sessions.Latest(ctx, domain.ChannelID(ref))
	if err != nil {
		return domain.Session{}, fmt.Errorf("get latest session for %q: %w", ref, err)
	}
	return session, nil
}

func (s *Service) Current(ctx context.Context, ref string) (StateView, error) {
	session, err := s.Resolve(ctx, ref)
	if err != nil {
		return StateView{}, err
	}

	state, err := s.states.Read(ctx, session.ID)
	if err != nil {
		return StateView{}, fmt.Errorf("read state: %w", err)
	}

	return StateView{Session: session, State: state}, nil
}

func (s *Service) History(ctx context.Context, ref string) (domain.Session, []domain.GameState, error) {
	session, err := s.Resolve(ctx, ref)
	if err != nil {
		return domain.Session{}, nil, err
	}

	history, err := s.states.History(ctx, session.ID)
	if err != nil {
		return domain.Session{}, nil, fmt.Errorf("read history: %w", err)
	}

	return session, history, nil
}

func (s *Service) Sessions(ctx context.Context) ([]SessionSummary, error) {
	sessions, err := s.sessions.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	summaries := make([]SessionSummary, 0, len(sessions))
	for _, session := range sessions {
		version := session.Version
		state, err := s.states.Read(ctx, session.ID)
		switch {
		case err == nil:
			version = state.Version
		case !errors.Is(err, domain.ErrSessionNotFound):
			return nil, fmt.Errorf("read state of %s: %w", session.ID, err)
		}
		summaries = append(summaries, summarize(session, version))
	}

	return summaries, nil
}

// Patch commits an operator edit and returns the new version. A running
// arbitrator sees the edit as a concurrent commit.
func (s *Service) Patch(ctx context.Context, cmd PatchStateCommand) (uint64, error) {
	delta := cmd.delta()
	if delta.Empty() {
		return 0, ErrEmptyPatch
	}
	if len(delta.Inventory) > 0 && strings.TrimSpace(string(cmd.Player)) == "" {
		return 0, fmt.Errorf("inventory changes need a player")
	}

	session, err := s.Resolve(ctx, cmd.Ref)
	if err != nil {
		return 0, err
	}

	expected := uint64(0)
	if cmd.ExpectedVersion != nil {
		expected = *cmd.ExpectedVersion
	} else {
		latest, err := s.states.Read(ctx, session.ID)
		if err != nil {
			return 0, fmt.Errorf("read state: %w", err)
		}
		expected = latest.Version
	}

	delta.Player = cmd.Player
	delta.At = s.clock.Now()

	version, err := s.states.Commit(ctx, session.ID, expected, delta)
	if err != nil {
		return 0, fmt.Errorf("commit patch at version %d: %w", expected, err)
	}

	return version, nil
}

func (s *Service) SetSecret(ctx context.Context, cmd SetSecretCommand) error {
	if strings.TrimSpace(cmd.Key) == "" {
		return fmt.Errorf("secret key is required")
	}

	if err := s.secrets.Put(ctx, cmd.Key, cmd.Value); err != nil {
		return fmt.Errorf("store secret: %w", err)
	}

	if cmd.Previous == "" || cmd.Previous == cmd.Key {
		return nil
	}
	if err := s.secrets.Delete(ctx, cmd.Previous); err != nil {
		if rollbackErr := s.secrets.Delete(ctx, cmd.Key); rollbackErr != nil {
			return fmt.Errorf("delete previous secret and rollback new secret: %w", errors.Join(err, rollbackErr))
		}
		return fmt.Errorf("delete previous secret: %w", err)
	}

	return nil
}

func (s *Service) DeleteSecret(ctx context.Context, key string) error {
	if err := s.secrets.Delete(ctx, key); err != nil {
		return fmt.Errorf("delete secret: %w", err)
	}
	return nil
}
