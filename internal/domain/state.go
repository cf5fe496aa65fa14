package domain

import (
	"sort"
	"strings"
	"time"
)

// Inventory maps an item name to the quantity a player holds.
type Inventory map[string]int

type GameState struct {
	Session       SessionID
	Version       uint64
	World         []string
	Inventories   map[PlayerID]Inventory
	GameOver      bool
	TriggerBid    BidID
	TriggerPlayer PlayerID
	// Action and Response are the winning bid text and the narration that
	// produced this version. Both are empty for version 0 and operator edits.
	Action      string
	Response    string
	CommittedAt time.Time
}

// OperatorEdit reports whether this version came from an operator rather than
// a played turn.
func (s GameState) OperatorEdit() bool {
	return s.Version > 0 && s.TriggerBid == ""
}

// Turn is one played turn as the narrator sees it in recent context.
type Turn struct {
	Version  uint64
	Player   PlayerID
	Action   string
	Response string
}

// RecentTurns returns up to n played turns from history, oldest first.
// Operator edits and the initial state are skipped.
func RecentTurns(history []GameState, n int) []Turn {
	if n <= 0 {
		return nil
	}
	var turns []Turn
	for i := len(history) - 1; i >= 0 && len(turns) < n; i-- {
		state := history[i]
		if state.Version == 0 || state.OperatorEdit() {
			continue
		}
		turns = append(turns, Turn{
			Version:  state.Version,
			Player:   state.TriggerPlayer,
			Action:   state.Action,
			Response: state.Response,
		})
	}
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns
}

// Delta is the change a single committed turn applies to a GameState.
type Delta struct {
	// Player owns the inventory changes. For a turn it is the winner.
	Player PlayerID
	// World maps a fact to true (add) or false (remove).
	World map[string]bool
	// Inventory holds signed quantity changes for Player's inventory.
	Inventory map[string]int
	GameOver  bool
	// Bid is empty for operator edits.
	Bid      BidID
	Action   string
	Response string
	At       time.Time
}

func (d Delta) Empty() bool {
	return len(d.World) == 0 && len(d.Inventory) == 0 && !d.GameOver
}

// NewGameState builds version 0 for a session from its starting world.
func NewGameState(session SessionID, world []string, inventories map[PlayerID]Inventory) GameState {
	return GameState{
		Session:     session,
		World:       normalizeFacts(world),
		Inventories: cloneInventories(inventories),
	}
}

// Apply returns the successor of s with d applied. s is left untouched.
func (s GameState) Apply(d Delta) GameState {
	next := s.Clone()
	next.Version = s.Version + 1
	next.TriggerBid = d.Bid
	next.TriggerPlayer = d.Player
	next.Action = d.Action
	next.Response = d.Response
	next.CommittedAt = d.At
	if d.GameOver {
		next.GameOver = true
	}

	if len(d.World) > 0 {
		facts := make(map[string]struct{}, len(next.World)+len(d.World))
		for _, fact := range next.World {
			facts[fact] = struct{}{}
		}
		for fact, add := range d.World {
			fact = strings.TrimSpace(fact)
			if fact == "" {
				continue
			}
			if add {
				facts[fact] = struct{}{}
			} else {
				delete(facts, fact)
			}
		}
		world := make([]string, 0, len(facts))
		for fact := range facts {
			world = append(world, fact)
		}
		sort.Strings(world)
		next.World = world
	}

	if len(d.Inventory) > 0 {
		if next.Inventories == nil {
			next.Inventories = map[PlayerID]Inventory{}
		}
		inventory := next.Inventories[d.Player]
		if inventory == nil {
			inventory = Inventory{}
		}
		for item, change := range d.Inventory {
			item = strings.TrimSpace(item)
			if item == "" {
				continue
			}
			quantity := inventory[item] + change
			if quantity <= 0 {
				delete(inventory, item)
				continue
			}
			inventory[item] = quantity
		}
		if len(inventory) == 0 {
			delete(next.Inventories, d.Player)
		} else {
			next.Inventories[d.Player] = inventory
		}
	}

	return next
}

// Clone returns a deep copy.
func (s GameState) Clone() GameState {
	clone := s
	clone.World = append([]string(nil), s.World...)
	clone.Inventories = cloneInventories(s.Inventories)
	return clone
}

// InventoryOf returns a copy of a player's inventory, never nil.
func (s GameState) InventoryOf(player PlayerID) Inventory {
	inventory := Inventory{}
	for item, quantity := range s.Inventories[player] {
		inventory[item] = quantity
	}
	return inventory
}

// Items lists inventory item names in lexical order.
func (i Inventory) Items() []string {
	items := make([]string, 0, len(i))
	for item := range i {
		items = append(items, item)
	}
	sort.Strings(items)
	return items
}

func cloneInventories(src map[PlayerID]Inventory) map[PlayerID]Inventory {
	if src == nil {
		return map[PlayerID]Inventory{}
	}
	dst := make(map[PlayerID]Inventory, len(src))
	for player, inventory := range src {
		copied := make(Inventory, len(inventory))
		for item, quantity := range inventory {
			copied[item] = quantity
		}
		dst[player] = copied
	}
	return dst
}

func normalizeFacts(facts []string) []string {
	seen := make(map[string]struct{}, len(facts))
	result := make([]string, 0, len(facts))
	for _, fact := range facts {
		fact = strings.TrimSpace(fact)
		if fact == "" {
			continue
		}
		if _, ok := seen[fact]; ok {
			continue
		}
		seen[fact] = struct{}{}
		result = append(result, fact)
	}
	sort.Strings(result)
	return result
}
