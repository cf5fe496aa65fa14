package gemini

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bnema/fungame/internal/domain"
)

const classifierInstruction = `The user message is from a general discussion channel. The channel carries messages meant for either:

a) a world building simulation game that responds to natural language, or
b) other people in the channel talking with each other.

Decide whether to forward the message to the simulator. Messages in category (a) must be forwarded, messages in category (b) must not.

Respond with ONLY a JSON object of the form {"forward": boolean, "confidence": number between 0 and 1}.`

const narratorFormat = `RESPONSE FORMAT:
Respond with ONLY a JSON object:
{
  "response": string,                       // what the players are told
  "world_state_updates": {string: boolean}, // fact to add (true) or remove (false), or null
  "player_inventory_updates": {string: boolean}, // item to add (true) or remove (false), or null
  "game_over": boolean                      // true only when the story has ended
}
Changes must be detailed because the context that produced them is not kept.`

type classifyResponse struct {
	Forward    bool    `json:"forward"`
	Confidence float64 `json:"confidence"`
}

type narrateResponse struct {
	Response               string          `json:"response"`
	WorldStateUpdates      map[string]bool `json:"world_state_updates"`
	PlayerInventoryUpdates map[string]bool `json:"player_inventory_updates"`
	GameOver               bool            `json:"game_over"`
}

type refuseResponse struct {
	Response string `json:"response"`
}

func classifierPrompt(req domain.ClassifyRequest) (string, string) {
	var b strings.Builder
	b.WriteString(classifierInstruction)
	writeList(&b, "Forward things like these:", quoted(req.Examples.Accept))
	writeList(&b, "Do not forward things like these:", quoted(req.Examples.Reject))

	return b.String(), req.Text
}

func narratorPrompt(req domain.NarrationRequest) (string, string) {
	var b strings.Builder
	b.WriteString("You are a multiplayer RPG simulation engine that processes player attempts to complete tasks.\n")
	writeRules(&b, req.Rules)
	b.WriteString("\n")
	b.WriteString(narratorFormat)

	player := req.Action.Player
	var p strings.Builder
	if len(req.Recent) > 0 {
		p.WriteString("---\nEarlier turns:\n")
		for _, turn := range req.Recent {
			fmt.Fprintf(&p, "Player %s: %s\n> %s\n", turn.Player, turn.Action, turn.Response)
		}
	}
	p.WriteString("---\nWorld:\n")
	for _, fact := range req.State.World {
		p.WriteString(fact)
		p.WriteString("\n")
	}
	fmt.Fprintf(&p, "---\nInventory of %s:\n", player)
	inventory := req.State.InventoryOf(player)
	for _, item := range inventory.Items() {
		fmt.Fprintf(&p, "%s x%d\n", item, inventory[item])
	}
	fmt.Fprintf(&p, "---\n\nPlayer %s: %s", player, req.Action.Text)

	return b.String(), p.String()
}

func refusalPrompt(req domain.RefusalRequest) (string, string) {
	var b strings.Builder
	b.WriteString("You are the game master of a text adventure. A player said something that is not an in-game action. ")
	b.WriteString("Reply in character with one short sentence that ignores or deflects it.\n")
	writeRules(&b, req.Rules)
	b.WriteString("\nRespond with ONLY a JSON object of the form {\"response\": string}.")

	return b.String(), fmt.Sprintf("Player %s: %s", req.Player, req.Text)
}

func writeRules(b *strings.Builder, rules domain.Rules) {
	writeList(b, "WORLD PROPERTIES:", rules.WorldProperties)
	writeList(b, "CORE MECHANICS:", rules.CoreMechanics)
	writeList(b, "DO:", rules.Do)
	writeList(b, "DO NOT:", rules.Dont)
	writeList(b, "PLAYER RESPONSES:", rules.ResponseGuidelines)
	writeList(b, "HOUSE RULES:", rules.Custom)
}

func writeList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	b.WriteString("\n")
	b.WriteString(title)
	b.WriteString("\n")
	for _, item := range items {
		b.WriteString("- ")
		b.WriteString(item)
		b.WriteString("\n")
	}
}

func quoted(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, fmt.Sprintf("%q", item))
	}
	return out
}

func decode(raw string, target any) error {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), target); err != nil {
		return fmt.Errorf("decode model response: %w", err)
	}
	return nil
}

// toNarration maps boolean inventory updates onto quantities: adding grants one,
// removing takes the whole stack.
func (r narrateResponse) toNarration(state domain.GameState, player domain.PlayerID) domain.Narration {
	delta := domain.Delta{GameOver: r.GameOver}
	if len(r.WorldStateUpdates) > 0 {
		delta.World = r.WorldStateUpdates
	}

	held := state.InventoryOf(player)
	for item, add := range r.PlayerInventoryUpdates {
		change := 1
		if !add {
			change = -held[item]
		}
		if change == 0 {
			continue
		}
		if delta.Inventory == nil {
			delta.Inventory = map[string]int{}
		}
		delta.Inventory[item] = change
	}

	return domain.Narration{Delta: delta, Response: strings.TrimSpace(r.Response)}
}
