package domain

import "sort"

// SelectWinner picks exactly one bid. With rotation > 0, players among the last
// rotation winners are skipped unless that leaves nobody. The earliest submission
// wins; ties go to the lexically smaller player id. bids must not be empty.
func SelectWinner(bids []Bid, recentWinners []PlayerID, rotation int) (Bid, []Bid) {
	ranked := append([]Bid(nil), bids...)
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].before(ranked[j]) })

	candidates := ranked
	if rotation > 0 {
		excluded := lastWinners(recentWinners, rotation)
		eligible := make([]Bid, 0, len(ranked))
		for _, bid := range ranked {
			if _, skip := excluded[bid.Player]; !skip {
				eligible = append(eligible, bid)
			}
		}
		if len(eligible) > 0 {
			candidates = eligible
		}
	}

	winner := candidates[0]
	losers := make([]Bid, 0, len(ranked)-1)
	for _, bid := range ranked {
		if bid.ID == winner.ID {
			continue
		}
		losers = append(losers, bid)
	}

	return winner, losers
}

func lastWinners(recent []PlayerID, n int) map[PlayerID]struct{} {
	if len(recent) > n {
		recent = recent[len(recent)-n:]
	}
	set := make(map[PlayerID]struct{}, len(recent))
	for _, player := range recent {
		set[player] = struct{}{}
	}
	return set
}
