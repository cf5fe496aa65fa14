package toml

import "fmt"

const currentSchemaVersion = 1

type fileSchema struct {
	Version  int             `toml:"version"`
	Sessions []sessionSchema `toml:"sessions"`
}

func (s *fileSchema) applyDefaults() {
	if s.Version == 0 {
		s.Version = currentSchemaVersion
	}
}

func (s fileSchema) validateVersion() error {
	if s.Version > currentSchemaVersion {
		return fmt.Errorf("unsupported sessions schema version %d (current %d)", s.Version, currentSchemaVersion)
	}

	return nil
}

type sessionSchema struct {
	ID             string       `toml:"id"`
	Channel        string       `toml:"channel"`
	Generation     int          `toml:"generation"`
	Status         string       `toml:"status"`
	Version        uint64       `toml:"version"`
	TurnCounter    int          `toml:"turn_counter"`
	OpenWindow     string       `toml:"open_window,omitempty"`
	Players        []string     `toml:"players,omitempty"`
	RecentWinners  []string     `toml:"recent_winners,omitempty"`
	DegradedReason string       `toml:"degraded_reason,omitempty"`
	CreatedAt      string       `toml:"created_at"`
	LastActivityAt string       `toml:"last_activity_at"`
	ArchivedAt     string       `toml:"archived_at,omitempty"`
	ArchiveReason  string       `toml:"archive_reason,omitempty"`
	Rules          []ruleSchema `toml:"rules,omitempty"`
}

type ruleSchema struct {
	Text    string `toml:"text"`
	Secret  bool   `toml:"secret,omitempty"`
	AddedBy string `toml:"added_by,omitempty"`
	AddedAt string `toml:"added_at,omitempty"`
}
