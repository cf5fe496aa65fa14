package toml

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/bnema/fungame/internal/domain"
	"github.com/bnema/fungame/internal/ports"
	toml "github.com/pelletier/go-toml/v2"
)

const (
	sessionsFileMode = 0o600
	sessionsDirMode  = 0o700
	tempFilePattern  = ".sessions-*.toml.tmp"
)

// Repository keeps session records in a single TOML file.
type Repository struct {
	sessionsPath string
	mu           *sync.RWMutex
}

var (
	lockRegistryMu sync.Mutex
	pathLockMap    = map[string]*sync.RWMutex{}
)

var _ ports.SessionRepository = (*Repository)(nil)

func NewRepository(path string) (*Repository, error) {
	if path == "" {
		return nil, errors.New("sessions path is empty")
	}
	sessionsPath, err := normalizeSessionsPath(path)
	if err != nil {
		return nil, err
	}

	return &Repository{sessionsPath: sessionsPath, mu: lockForPath(sessionsPath)}, nil
}

func (r *Repository) Save(ctx context.Context, session domain.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := session.Validate(); err != nil {
		return fmt.Errorf("validate session: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	file, err := r.readSchema()
	if err != nil {
		return err
	}

	encoded := toSchema(session)
	updated := false
	for i := range file.Sessions {
		if file.Sessions[i].ID == encoded.ID {
			file.Sessions[i] = encoded
			updated = true
			break
		}
	}

	if !updated {
		file.Sessions = append(file.Sessions, encoded)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	return r.writeSchema(file)
}

func (r *Repository) GetByID(ctx context.Context, id domain.SessionID) (domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return domain.Session{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	file, err := r.readSchema()
	if err != nil {
		return domain.Session{}, err
	}

	for _, entry := range file.Sessions {
		if entry.ID == string(id) {
			return fromSchema(entry), nil
		}
	}

	return domain.Session{}, domain.ErrSessionNotFound
}

func (r *Repository) Latest(ctx context.Context, channel domain.ChannelID) (domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return domain.Session{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	file, err := r.readSchema()
	if err != nil {
		return domain.Session{}, err
	}

	var (
		latest domain.Session
		found  bool
	)
	for _, entry := range file.Sessions {
		if entry.Channel != string(channel) {
			continue
		}
		if !found || entry.Generation > latest.Generation {
			latest = fromSchema(entry)
			found = true
		}
	}
	if !found {
		return domain.Session{}, domain.ErrSessionNotFound
	}

	return latest, nil
}

func (r *Repository) List(ctx context.Context) ([]domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	file, err := r.readSchema()
	if err != nil {
		return nil, err
	}

	sessions := make([]domain.Session, 0, len(file.Sessions))
	for _, entry := range file.Sessions {
		sessions = append(sessions, fromSchema(entry))
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].ID < sessions[j].ID })

	return sessions, nil
}

func (r *Repository) readSchema() (fileSchema, error) {
	data, err := os.ReadFile(r.sessionsPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			file := fileSchema{}
			file.applyDefaults()
			return file, nil
		}
		return fileSchema{}, fmt.Errorf("read sessions file: %w", err)
	}

	var file fileSchema
	if err := toml.Unmarshal(data, &file); err != nil {
		return fileSchema{}, fmt.Errorf("decode sessions file: %w", err)
	}
	if err := file.validateVersion(); err != nil {
		return fileSchema{}, err
	}
	file.applyDefaults()

	return file, nil
}

func normalizeSessionsPath(path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve sessions path: %w", err)
	}

	return filepath.Clean(absPath), nil
}

func lockForPath(path string) *sync.RWMutex {
	lockRegistryMu.Lock()
	defer lockRegistryMu.Unlock()

	if mu, ok := pathLockMap[path]; ok {
		return mu
	}

	mu := &sync.RWMutex{}
	pathLockMap[path] = mu
	return mu
}

func (r *Repository) writeSchema(file fileSchema) error {
	file.applyDefaults()

	if err := os.MkdirAll(filepath.Dir(r.sessionsPath), sessionsDirMode); err != nil {
		return fmt.Errorf("create sessions directory: %w", err)
	}

	data, err := toml.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode sessions file: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(r.sessionsPath), tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp sessions file: %w", err)
	}

	tempName := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempName)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp sessions file: %w", err)
	}

	if err := tempFile.Chmod(sessionsFileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp sessions file: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp sessions file: %w", err)
	}

	if err := os.Rename(tempName, r.sessionsPath); err != nil {
		return fmt.Errorf("replace sessions file: %w", err)
	}

	cleanup = false
	return nil
}

func toSchema(session domain.Session) sessionSchema {
	return sessionSchema{
		ID:             string(session.ID),
		Channel:        string(session.Channel),
		Generation:     session.Generation,
		Status:         string(session.Status),
		Version:        session.Version,
		TurnCounter:    session.TurnCounter,
		OpenWindow:     string(session.OpenWindow),
		Players:        playersToStrings(session.Players),
		RecentWinners:  playersToStrings(session.RecentWinners),
		DegradedReason: session.DegradedReason,
		CreatedAt:      formatTime(session.CreatedAt),
		LastActivityAt: formatTime(session.LastActivityAt),
		ArchivedAt:     formatTime(session.ArchivedAt),
		ArchiveReason:  session.ArchiveReason,
		Rules:          rulesToSchema(session.Rules),
	}
}

func fromSchema(session sessionSchema) domain.Session {
	status := domain.SessionStatus(session.Status)
	if status == "" {
		status = domain.SessionActive
	}

	return domain.Session{
		ID:             domain.SessionID(session.ID),
		Channel:        domain.ChannelID(session.Channel),
		Generation:     session.Generation,
		Status:         status,
		Version:        session.Version,
		TurnCounter:    session.TurnCounter,
		OpenWindow:     domain.WindowID(session.OpenWindow),
		Players:        stringsToPlayers(session.Players),
		RecentWinners:  stringsToPlayers(session.RecentWinners),
		DegradedReason: session.DegradedReason,
		CreatedAt:      parseTime(session.CreatedAt),
		LastActivityAt: parseTime(session.LastActivityAt),
		ArchivedAt:     parseTime(session.ArchivedAt),
		ArchiveReason:  session.ArchiveReason,
		Rules:          rulesFromSchema(session.Rules),
	}
}

func rulesToSchema(rules []domain.CustomRule) []ruleSchema {
	if len(rules) == 0 {
		return nil
	}
	out := make([]ruleSchema, 0, len(rules))
	for _, rule := range rules {
		out = append(out, ruleSchema{
			Text:    rule.Text,
			Secret:  rule.Secret,
			AddedBy: string(rule.AddedBy),
			AddedAt: formatTime(rule.AddedAt),
		})
	}
	return out
}

func rulesFromSchema(rules []ruleSchema) []domain.CustomRule {
	if len(rules) == 0 {
		return nil
	}
	out := make([]domain.CustomRule, 0, len(rules))
	for _, rule := range rules {
		out = append(out, domain.CustomRule{
			Text:    rule.Text,
			Secret:  rule.Secret,
			AddedBy: domain.PlayerID(rule.AddedBy),
			AddedAt: parseTime(rule.AddedAt),
		})
	}
	return out
}

func playersToStrings(players []domain.PlayerID) []string {
	if len(players) == 0 {
		return nil
	}
	out := make([]string, 0, len(players))
	for _, player := range players {
		out = append(out, string(player))
	}
	return out
}

func stringsToPlayers(values []string) []domain.PlayerID {
	if len(values) == 0 {
		return nil
	}
	out := make([]domain.PlayerID, 0, len(values))
	for _, value := range values {
		out = append(out, domain.PlayerID(value))
	}
	return out
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}

	parsed, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}

	return parsed
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}

	return value.UTC().Format(time.RFC3339Nano)
}
