package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type ChannelID string
type SessionID string
type PlayerID string

type SessionStatus string

const (
	SessionActive   SessionStatus = "active"
	SessionDegraded SessionStatus = "degraded"
	SessionArchived SessionStatus = "archived"
)

// NewSessionID derives the id of the given game generation played in a channel.
func NewSessionID(channel ChannelID, generation int) SessionID {
	return SessionID(fmt.Sprintf("%s#%d", channel, generation))
}

// ParseSessionID splits an id produced by NewSessionID.
func ParseSessionID(id SessionID) (ChannelID, int, error) {
	raw := string(id)
	idx := strings.LastIndex(raw, "#")
	if idx <= 0 || idx == len(raw)-1 {
		return "", 0, fmt.Errorf("malformed session id %q", id)
	}
	generation, err := strconv.Atoi(raw[idx+1:])
	if err != nil || generation < 1 {
		return "", 0, fmt.Errorf("malformed session id %q", id)
	}
	return ChannelID(raw[:idx]), generation, nil
}

type Session struct {
	ID             SessionID
	Channel        ChannelID
	Generation     int
	Status         SessionStatus
	Version        uint64
	TurnCounter    int
	OpenWindow     WindowID
	Players        []PlayerID
	RecentWinners  []PlayerID
	DegradedReason string
	CreatedAt      time.Time
	LastActivityAt time.Time
	ArchivedAt     time.Time
	ArchiveReason  string
	Rules          []CustomRule
}

// CustomRule is a narrator rule added by an operator while the game runs.
// Secret rules steer the narrator but are never listed to players.
type CustomRule struct {
	Text    string
	Secret  bool
	AddedBy PlayerID
	AddedAt time.Time
}

// AddRule appends a custom rule and returns its 1-based number.
func (s *Session) AddRule(rule CustomRule) (int, error) {
	rule.Text = strings.TrimSpace(rule.Text)
	if rule.Text == "" {
		return 0, fmt.Errorf("rule text is required")
	}
	s.Rules = append(s.Rules, rule)
	return len(s.Rules), nil
}

// RemoveRule deletes the rule with the given 1-based number.
func (s *Session) RemoveRule(number int) (CustomRule, error) {
	if number < 1 || number > len(s.Rules) {
		return CustomRule{}, fmt.Errorf("%w: %d", ErrRuleNotFound, number)
	}
	removed := s.Rules[number-1]
	s.Rules = append(append([]CustomRule(nil), s.Rules[:number-1]...), s.Rules[number:]...)
	return removed, nil
}

// PublicRules lists the custom rules players may see.
func (s Session) PublicRules() []CustomRule {
	var public []CustomRule
	for _, rule := range s.Rules {
		if !rule.Secret {
			public = append(public, rule)
		}
	}
	return public
}

func (s Session) Validate() error {
	if strings.TrimSpace(string(s.ID)) == "" {
		return fmt.Errorf("id is required")
	}
	if strings.TrimSpace(string(s.Channel)) == "" {
		return fmt.Errorf("channel is required")
	}
	if s.Generation < 1 {
		return fmt.Errorf("generation must be positive")
	}
	switch s.Status {
	case SessionActive, SessionDegraded, SessionArchived:
	default:
		return fmt.Errorf("unsupported status %q", s.Status)
	}

	return nil
}

func (s Session) Archived() bool {
	return s.Status == SessionArchived
}

func (s Session) Degraded() bool {
	return s.Status == SessionDegraded
}

// IdleSince reports whether the session saw no activity for at least timeout.
func (s Session) IdleSince(now time.Time, timeout time.Duration) bool {
	if timeout <= 0 || s.LastActivityAt.IsZero() {
		return false
	}

	return now.Sub(s.LastActivityAt) >= timeout
}

// AddPlayer records a participant once.
func (s *Session) AddPlayer(player PlayerID) {
	for _, known := range s.Players {
		if known == player {
			return
		}
	}
	s.Players = append(s.Players, player)
}

// RecordWinner appends a winner and keeps at most keep entries, newest last.
func (s *Session) RecordWinner(player PlayerID, keep int) {
	s.RecentWinners = AppendRecentWinner(s.RecentWinners, player, keep)
}

// AppendRecentWinner returns recent with player appended, trimmed to the newest keep entries.
func AppendRecentWinner(recent []PlayerID, player PlayerID, keep int) []PlayerID {
	if keep <= 0 {
		return nil
	}
	recent = append(append([]PlayerID(nil), recent...), player)
	if len(recent) > keep {
		recent = recent[len(recent)-keep:]
	}
	return recent
}
