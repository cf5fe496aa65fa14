package domain

import (
	"fmt"
	"sort"
	"time"
)

type CloseReason string

const (
	CloseDeadline CloseReason = "deadline"
	CloseForced   CloseReason = "forced"
	CloseAllBid   CloseReason = "all_bid"
)

// ArbitrationWindow collects at most one live bid per player until it closes.
type ArbitrationWindow struct {
	ID          WindowID
	Session     SessionID
	OpenedAt    time.Time
	Deadline    time.Time
	BaseVersion uint64
	Winner      *Bid
	Losers      []Bid
	Closed      bool
	CloseReason CloseReason
	ClosedAt    time.Time

	bids map[PlayerID]Bid
}

func NewArbitrationWindow(id WindowID, session SessionID, openedAt time.Time, duration time.Duration, baseVersion uint64) *ArbitrationWindow {
	return &ArbitrationWindow{
		ID:          id,
		Session:     session,
		OpenedAt:    openedAt,
		Deadline:    openedAt.Add(duration),
		BaseVersion: baseVersion,
		bids:        map[PlayerID]Bid{},
	}
}

// Add places a bid in the window. A bid submitted later than the player's live
// bid replaces it, and replaced reports that. A bid submitted earlier is ignored,
// whatever order the two arrive in. Equal timestamps go to the last arrival.
func (w *ArbitrationWindow) Add(bid Bid) (replaced bool, err error) {
	if w.Closed {
		return false, ErrWindowClosed
	}
	if err := bid.Validate(); err != nil {
		return false, err
	}
	if bid.Window != "" && bid.Window != w.ID {
		return false, fmt.Errorf("%w: bid belongs to window %s", ErrInvalidBid, bid.Window)
	}

	existing, replaced := w.bids[bid.Player]
	if replaced && !Supersedes(bid, existing) {
		return false, nil
	}
	w.bids[bid.Player] = bid.InWindow(w.ID)
	return replaced, nil
}

// Supersedes reports whether next may replace prev as a player's live bid.
func Supersedes(next, prev Bid) bool {
	return !prev.SubmittedAt.After(next.SubmittedAt)
}

// Bids returns the live bids in ranking order.
func (w *ArbitrationWindow) Bids() []Bid {
	bids := make([]Bid, 0, len(w.bids))
	for _, bid := range w.bids {
		bids = append(bids, bid)
	}
	sort.Slice(bids, func(i, j int) bool { return bids[i].before(bids[j]) })
	return bids
}

func (w *ArbitrationWindow) Len() int {
	return len(w.bids)
}

// HasBidFrom reports whether player holds a live bid.
func (w *ArbitrationWindow) HasBidFrom(player PlayerID) bool {
	_, ok := w.bids[player]
	return ok
}

// Close selects the winner and freezes the window. Closing an empty window is allowed
// and leaves Winner nil.
func (w *ArbitrationWindow) Close(reason CloseReason, at time.Time, recentWinners []PlayerID, rotation int) error {
	if w.Closed {
		return ErrWindowClosed
	}

	w.Closed = true
	w.CloseReason = reason
	w.ClosedAt = at

	bids := w.Bids()
	if len(bids) == 0 {
		return nil
	}

	winner, losers := SelectWinner(bids, recentWinners, rotation)
	w.Winner = &winner
	w.Losers = losers
	return nil
}
