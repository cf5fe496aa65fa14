package application

import "github.com/bnema/fungame/internal/domain"

// PatchStateCommand is an operator edit committed outside any arbitration window.
type PatchStateCommand struct {
	// Ref is a session id or a channel, which resolves to its latest generation.
	Ref string
	// ExpectedVersion guards the edit when set.
	ExpectedVersion *uint64
	AddFacts        []string
	RemoveFacts     []string
	Player          domain.PlayerID
	Items           map[string]int
	GameOver        bool
}

func (c PatchStateCommand) delta() domain.Delta {
	delta := domain.Delta{GameOver: c.GameOver}
	if len(c.AddFacts)+len(c.RemoveFacts) > 0 {
		delta.World = map[string]bool{}
		for _, fact := range c.RemoveFacts {
			delta.World[fact] = false
		}
		for _, fact := range c.AddFacts {
			delta.World[fact] = true
		}
	}
	if len(c.Items) > 0 {
		delta.Inventory = c.Items
	}
	return delta
}

type SetSecretCommand struct {
	Key   string
	Value string
	// Previous is deleted once Value is stored.
	Previous string
}
