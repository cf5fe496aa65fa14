package gemini

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/bnema/fungame/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyParsesJudgment(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{replies: []string{"```json\n{\"forward\": false, \"confidence\": 0.8}\n```"}}
	backend := newBackend(gen, Config{Model: "narrator-model", ClassifierModel: "filter-model"}, nil)

	judgment, err := backend.Classify(context.Background(), domain.ClassifyRequest{
		Text:     "lol",
		Examples: domain.ClassifierExamples{Accept: []string{"I jump"}, Reject: []string{"brb"}},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.Judgment{Admit: false, Confidence: 0.8}, judgment)

	call := gen.last()
	assert.Equal(t, "filter-model", call.model)
	assert.Equal(t, "lol", call.prompt)
	assert.Contains(t, call.system, `- "I jump"`)
	assert.Contains(t, call.system, `- "brb"`)
}

func TestClassifyFailuresAreUnavailable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		gen   *fakeGenerator
		match string
	}{
		{name: "transport", gen: &fakeGenerator{err: errors.New("503")}, match: "503"},
		{name: "not json", gen: &fakeGenerator{replies: []string{"yes"}}, match: "decode model response"},
		{name: "bad confidence", gen: &fakeGenerator{replies: []string{`{"forward": true, "confidence": 4}`}}, match: "out of range"},
		{name: "empty", gen: &fakeGenerator{replies: []string{""}}, match: "no text"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := newBackend(tc.gen, Config{Model: "m"}, nil).Classify(context.Background(), domain.ClassifyRequest{Text: "x"})
			assert.ErrorIs(t, err, domain.ErrClassificationUnavailable)
			assert.ErrorContains(t, err, tc.match)
		})
	}
}

func TestNarrateMapsUpdatesToDelta(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{replies: []string{`{
		"response": "You unwrap the chocolate.",
		"world_state_updates": {"a rainbow has formed": true},
		"player_inventory_updates": {"chocolate bar in wrapper": false, "chocolate bar half": true, "ghost item": false},
		"game_over": false
	}`}}
	backend := newBackend(gen, Config{Model: "m"}, nil)
	state := domain.NewGameState("s#1", []string{"a meadow"}, map[domain.PlayerID]domain.Inventory{"alice": {"chocolate bar in wrapper": 1}})

	narration, err := backend.Narrate(context.Background(), domain.NarrationRequest{
		State:  state,
		Action: domain.Bid{Player: "alice", Text: "I eat half the chocolate"},
		Rules:  domain.Rules{Dont: []string{"give hints"}},
	})
	require.NoError(t, err)

	assert.Equal(t, "You unwrap the chocolate.", narration.Response)
	assert.Equal(t, map[string]bool{"a rainbow has formed": true}, narration.Delta.World)
	assert.Equal(t, map[string]int{"chocolate bar in wrapper": -1, "chocolate bar half": 1}, narration.Delta.Inventory)

	call := gen.last()
	assert.Contains(t, call.system, "DO NOT:\n- give hints")
	assert.Contains(t, call.prompt, "a meadow")
	assert.Contains(t, call.prompt, "chocolate bar in wrapper x1")
	assert.Contains(t, call.prompt, "Player alice: I eat half the chocolate")
}

func TestNarratePromptCarriesHouseRulesAndEarlierTurns(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{replies: []string{`{"response": "The door creaks."}`}}
	_, err := newBackend(gen, Config{Model: "m"}, nil).Narrate(context.Background(), domain.NarrationRequest{
		State:  domain.NewGameState("s#1", []string{"a hall"}, nil),
		Action: domain.Bid{Player: "bob", Text: "I open the door"},
		Rules:  domain.Rules{Custom: []string{"doors are alive"}},
		Recent: []domain.Turn{{Version: 1, Player: "alice", Action: "I knock", Response: "Something knocks back."}},
	})
	require.NoError(t, err)

	call := gen.last()
	assert.Contains(t, call.system, "HOUSE RULES:\n- doors are alive")
	assert.Contains(t, call.prompt, "Earlier turns:\nPlayer alice: I knock\n> Something knocks back.")
	assert.Less(t, strings.Index(call.prompt, "Earlier turns:"), strings.Index(call.prompt, "Player bob: I open the door"))
}

func TestNarrateRejectsEmptyResponse(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{replies: []string{`{"response": ""}`}}
	_, err := newBackend(gen, Config{Model: "m"}, nil).Narrate(context.Background(), domain.NarrationRequest{})
	assert.ErrorIs(t, err, domain.ErrNarrationUnavailable)
}

func TestRefuse(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{replies: []string{`{"response": "The wind carries your words away."}`}}
	text, err := newBackend(gen, Config{Model: "m"}, nil).Refuse(context.Background(), domain.RefusalRequest{Player: "bob", Text: "lol"})
	require.NoError(t, err)
	assert.Equal(t, "The wind carries your words away.", text)
	assert.Equal(t, "Player bob: lol", gen.last().prompt)
}

func TestRateLimitHonorsContext(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{replies: []string{`{"forward": true, "confidence": 1}`, `{"forward": true, "confidence": 1}`}}
	backend := newBackend(gen, Config{Model: "m", RequestsPerMinute: 1}, nil)

	_, err := backend.Classify(context.Background(), domain.ClassifyRequest{Text: "a"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = backend.Classify(ctx, domain.ClassifyRequest{Text: "b"})
	assert.ErrorContains(t, err, "rate limit")
	assert.Len(t, gen.calls, 1)
}

type generateCall struct {
	model  string
	system string
	prompt string
}

type fakeGenerator struct {
	mu      sync.Mutex
	replies []string
	err     error
	calls   []generateCall
}

func (g *fakeGenerator) Generate(_ context.Context, model, system, prompt string) (string, Usage, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.calls = append(g.calls, generateCall{model: model, system: system, prompt: prompt})
	if g.err != nil {
		return "", Usage{}, g.err
	}
	if len(g.replies) == 0 {
		return "", Usage{}, nil
	}
	reply := g.replies[0]
	g.replies = g.replies[1:]
	return reply, Usage{PromptTokens: 10, ResponseTokens: 5, TotalTokens: 15}, nil
}

func (g *fakeGenerator) Close() error {
	return nil
}

func (g *fakeGenerator) last() generateCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[len(g.calls)-1]
}
