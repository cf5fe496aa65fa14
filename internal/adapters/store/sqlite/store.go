package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bnema/fungame/internal/adapters/store/sqlite/migrations"
	"github.com/bnema/fungame/internal/domain"
	"github.com/bnema/fungame/internal/ports"
	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const (
	migrationTable = "schema_migrations"
	busyTimeoutMs  = 5000
)

// Store persists GameState history in one table keyed by (session_id, version).
// The primary key is the compare-and-swap: two commits racing for the same
// successor version cannot both insert it.
type Store struct {
	sqlDB *sql.DB
}

var _ ports.StateStore = (*Store)(nil)

func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)", filepath.Clean(path), busyTimeoutMs)
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	if err := runMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{sqlDB: sqlDB}, nil
}

// Close is nil-safe so callers can defer it on every startup path.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) Init(ctx context.Context, session domain.SessionID, initial domain.GameState) (domain.GameState, error) {
	if err := ctx.Err(); err != nil {
		return domain.GameState{}, err
	}

	first := initial.Clone()
	first.Session = session
	first.Version = 0
	if err := s.insert(ctx, "INSERT OR IGNORE", first); err != nil {
		return domain.GameState{}, fmt.Errorf("init session %s: %w", session, err)
	}

	return s.Read(ctx, session)
}

func (s *Store) Read(ctx context.Context, session domain.SessionID) (domain.GameState, error) {
	if err := ctx.Err(); err != nil {
		return domain.GameState{}, err
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT session_id, version, world, inventories, game_over, trigger_bid, trigger_player, action, response, committed_at
FROM game_states WHERE session_id = ? ORDER BY version DESC LIMIT 1`, string(session))

	state, err := scanState(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.GameState{}, domain.ErrSessionNotFound
		}
		return domain.GameState{}, fmt.Errorf("read session %s: %w", session, err)
	}

	return state, nil
}

func (s *Store) Commit(ctx context.Context, session domain.SessionID, expectedVersion uint64, delta domain.Delta) (uint64, error) {
	latest, err := s.Read(ctx, session)
	if err != nil {
		return 0, err
	}
	if latest.Version != expectedVersion {
		return 0, fmt.Errorf("commit %s at version %d (current %d): %w", session, expectedVersion, latest.Version, domain.ErrVersionConflict)
	}

	next := latest.Apply(delta)
	if err := s.insert(ctx, "INSERT", next); err != nil {
		if isConstraintError(err) {
			return 0, fmt.Errorf("commit %s at version %d: %w", session, expectedVersion, domain.ErrVersionConflict)
		}
		return 0, fmt.Errorf("commit %s: %w", session, err)
	}

	return next.Version, nil
}

func (s *Store) History(ctx context.Context, session domain.SessionID) ([]domain.GameState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT session_id, version, world, inventories, game_over, trigger_bid, trigger_player, action, response, committed_at
FROM game_states WHERE session_id = ? ORDER BY version ASC`, string(session))
	if err != nil {
		return nil, fmt.Errorf("query history %s: %w", session, err)
	}
	defer rows.Close()

	var history []domain.GameState
	for rows.Next() {
		state, err := scanState(rows)
		if err != nil {
			return nil, fmt.Errorf("scan history %s: %w", session, err)
		}
		history = append(history, state)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read history %s: %w", session, err)
	}
	if len(history) == 0 {
		return nil, domain.ErrSessionNotFound
	}

	return history, nil
}

func (s *Store) insert(ctx context.Context, verb string, state domain.GameState) error {
	world, err := json.Marshal(state.World)
	if err != nil {
		return fmt.Errorf("encode world: %w", err)
	}
	inventories, err := json.Marshal(state.Inventories)
	if err != nil {
		return fmt.Errorf("encode inventories: %w", err)
	}

	_, err = s.sqlDB.ExecContext(ctx, verb+` INTO game_states
(session_id, version, world, inventories, game_over, trigger_bid, trigger_player, action, response, committed_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(state.Session),
		int64(state.Version),
		string(world),
		string(inventories),
		boolToInt(state.GameOver),
		string(state.TriggerBid),
		string(state.TriggerPlayer),
		state.Action,
		state.Response,
		toMillis(state.CommittedAt),
	)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanState(row rowScanner) (domain.GameState, error) {
	var (
		session       string
		version       int64
		world         string
		inventories   string
		gameOver      int
		triggerBid    string
		triggerPlayer string
		action        string
		response      string
		committedAt   int64
	)
	if err := row.Scan(&session, &version, &world, &inventories, &gameOver, &triggerBid, &triggerPlayer, &action, &response, &committedAt); err != nil {
		return domain.GameState{}, err
	}

	state := domain.GameState{
		Session:       domain.SessionID(session),
		Version:       uint64(version),
		GameOver:      gameOver != 0,
		TriggerBid:    domain.BidID(triggerBid),
		TriggerPlayer: domain.PlayerID(triggerPlayer),
		Action:        action,
		Response:      response,
		CommittedAt:   fromMillis(committedAt),
	}
	if err := json.Unmarshal([]byte(world), &state.World); err != nil {
		return domain.GameState{}, fmt.Errorf("decode world: %w", err)
	}
	if err := json.Unmarshal([]byte(inventories), &state.Inventories); err != nil {
		return domain.GameState{}, fmt.Errorf("decode inventories: %w", err)
	}
	if state.World == nil {
		state.World = []string{}
	}
	if state.Inventories == nil {
		state.Inventories = map[domain.PlayerID]domain.Inventory{}
	}

	return state, nil
}

// runMigrations applies each embedded file at most once, in lexical order.
func runMigrations(sqlDB *sql.DB, migrationFS fs.FS) error {
	if _, err := sqlDB.Exec(fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
    name TEXT PRIMARY KEY,
    applied_at INTEGER NOT NULL
)`, migrationTable)); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	entries, err := fs.ReadDir(migrationFS, ".")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	for _, file := range files {
		var applied int
		if err := sqlDB.QueryRow("SELECT COUNT(1) FROM "+migrationTable+" WHERE name = ?", file).Scan(&applied); err != nil {
			return fmt.Errorf("check migration %s: %w", file, err)
		}
		if applied > 0 {
			continue
		}

		content, err := fs.ReadFile(migrationFS, file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}

		tx, err := sqlDB.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", file, err)
		}
		if _, err := tx.Exec(extractUpMigration(string(content))); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("exec migration %s: %w", file, err)
		}
		if _, err := tx.Exec("INSERT INTO "+migrationTable+" (name, applied_at) VALUES (?, ?)", file, time.Now().UTC().UnixMilli()); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", file, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", file, err)
		}
	}

	return nil
}

// extractUpMigration keeps the Up section of a migration file.
func extractUpMigration(content string) string {
	if idx := strings.Index(content, "-- +migrate Down"); idx >= 0 {
		content = content[:idx]
	}
	return strings.Replace(content, "-- +migrate Up", "", 1)
}

func isConstraintError(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	return code == sqlite3.SQLITE_CONSTRAINT || code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func toMillis(value time.Time) int64 {
	if value.IsZero() {
		return 0
	}
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	if value == 0 {
		return time.Time{}
	}
	return time.UnixMilli(value).UTC()
}
