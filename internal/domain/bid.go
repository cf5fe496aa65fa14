package domain

import (
	"fmt"
	"strings"
	"time"
)

type BidID string
type WindowID string

type Verdict string

const (
	VerdictAdmit  Verdict = "admit"
	VerdictReject Verdict = "reject"
)

// ParseVerdict maps configuration values ("accept", "admit", "reject") to a Verdict.
func ParseVerdict(raw string) (Verdict, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "accept", "admit":
		return VerdictAdmit, nil
	case "reject":
		return VerdictReject, nil
	default:
		return "", fmt.Errorf("unsupported verdict %q", raw)
	}
}

func (v Verdict) Admitted() bool {
	return v == VerdictAdmit
}

// Bid is a player's candidate action. Bids are values and never change once built.
type Bid struct {
	ID          BidID
	Window      WindowID
	Player      PlayerID
	Text        string
	Verdict     Verdict
	SubmittedAt time.Time
}

func (b Bid) Validate() error {
	if strings.TrimSpace(string(b.ID)) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidBid)
	}
	if strings.TrimSpace(string(b.Player)) == "" {
		return fmt.Errorf("%w: player is required", ErrInvalidBid)
	}
	if strings.TrimSpace(b.Text) == "" {
		return fmt.Errorf("%w: text is empty", ErrInvalidBid)
	}
	if b.Verdict != VerdictAdmit {
		return fmt.Errorf("%w: bid was not admitted", ErrInvalidBid)
	}
	if b.SubmittedAt.IsZero() {
		return fmt.Errorf("%w: submission time is required", ErrInvalidBid)
	}

	return nil
}

// InWindow returns a copy of b assigned to window.
func (b Bid) InWindow(window WindowID) Bid {
	b.Window = window
	return b
}

// before reports whether b ranks ahead of other: earlier submission, then player id.
func (b Bid) before(other Bid) bool {
	if !b.SubmittedAt.Equal(other.SubmittedAt) {
		return b.SubmittedAt.Before(other.SubmittedAt)
	}
	if b.Player != other.Player {
		return b.Player < other.Player
	}
	return b.ID < other.ID
}
