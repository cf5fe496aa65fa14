// Package offline is a deterministic backend for local play and tests. It
// needs no network and always gives the same answer for the same input.
package offline

import (
	"context"
	"fmt"
	"strings"

	"github.com/bnema/fungame/internal/domain"
	"github.com/bnema/fungame/internal/ports"
)

var (
	_ ports.Classifier = (*Backend)(nil)
	_ ports.Narrator   = (*Backend)(nil)
)

var (
	takeVerbs = []string{"pick up ", "take ", "grab ", "collect "}
	dropVerbs = []string{"drop ", "discard ", "throw away "}
	endPhrase = "end the game"
)

type Backend struct{}

func New() *Backend {
	return &Backend{}
}

// Classify scores word overlap against the accept and reject examples.
// No overlap at all reports zero confidence so the gate falls back to its default.
func (b *Backend) Classify(ctx context.Context, req domain.ClassifyRequest) (domain.Judgment, error) {
	if err := ctx.Err(); err != nil {
		return domain.Judgment{}, err
	}

	words := wordSet(req.Text)
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(req.Text)), "i ") {
		return domain.Judgment{Admit: true, Confidence: 0.9}, nil
	}

	accept := bestOverlap(words, req.Examples.Accept)
	reject := bestOverlap(words, req.Examples.Reject)
	if accept == 0 && reject == 0 {
		return domain.Judgment{Admit: req.Default != domain.VerdictReject, Confidence: 0}, nil
	}

	total := accept + reject
	if accept >= reject {
		return domain.Judgment{Admit: true, Confidence: accept / total}, nil
	}
	return domain.Judgment{Admit: false, Confidence: reject / total}, nil
}

func (b *Backend) Narrate(ctx context.Context, req domain.NarrationRequest) (domain.Narration, error) {
	if err := ctx.Err(); err != nil {
		return domain.Narration{}, err
	}

	player := req.Action.Player
	action := strings.TrimSpace(req.Action.Text)
	lowered := strings.ToLower(action)

	if strings.Contains(lowered, endPhrase) {
		return domain.Narration{
			Delta:    domain.Delta{GameOver: true, World: map[string]bool{"the story has ended": true}},
			Response: fmt.Sprintf("%s brings the tale to a close. Well played.", player),
		}, nil
	}

	if item, ok := objectAfter(lowered, takeVerbs); ok {
		return domain.Narration{
			Delta:    domain.Delta{Inventory: map[string]int{item: 1}},
			Response: fmt.Sprintf("%s now carries %s.", player, item),
		}, nil
	}

	if item, ok := objectAfter(lowered, dropVerbs); ok {
		held := req.State.InventoryOf(player)[item]
		if held == 0 {
			return domain.Narration{Response: fmt.Sprintf("%s pats their pockets. There is no %s to drop.", player, item)}, nil
		}
		return domain.Narration{
			Delta: domain.Delta{
				Inventory: map[string]int{item: -held},
				World:     map[string]bool{fmt.Sprintf("%s lies on the ground", item): true},
			},
			Response: fmt.Sprintf("%s drops %s.", player, item),
		}, nil
	}

	fact := fmt.Sprintf("%s tried to %s", player, strings.TrimPrefix(lowered, "i "))
	return domain.Narration{
		Delta:    domain.Delta{World: map[string]bool{fact: true}},
		Response: fmt.Sprintf("%s: %s. The world takes note.", player, action),
	}, nil
}

func (b *Backend) Refuse(ctx context.Context, req domain.RefusalRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return fmt.Sprintf("The game master does not react to %s.", req.Player), nil
}

func objectAfter(text string, verbs []string) (string, bool) {
	text = strings.TrimPrefix(text, "i ")
	for _, verb := range verbs {
		idx := strings.Index(text, verb)
		if idx < 0 {
			continue
		}
		object := strings.TrimSpace(text[idx+len(verb):])
		object = strings.TrimRight(object, ".!?")
		for _, article := range []string{"the ", "a ", "an "} {
			object = strings.TrimPrefix(object, article)
		}
		if object != "" {
			return object, true
		}
	}
	return "", false
}

func wordSet(text string) map[string]struct{} {
	words := map[string]struct{}{}
	for _, word := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '/' || r == '@')
	}) {
		words[word] = struct{}{}
	}
	return words
}

func bestOverlap(words map[string]struct{}, examples []string) float64 {
	best := 0.0
	for _, example := range examples {
		other := wordSet(example)
		if len(other) == 0 || len(words) == 0 {
			continue
		}
		shared := 0
		for word := range other {
			if _, ok := words[word]; ok {
				shared++
			}
		}
		union := len(words) + len(other) - shared
		if score := float64(shared) / float64(union); score > best {
			best = score
		}
	}
	return best
}
