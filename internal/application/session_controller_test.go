package application

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	tomlrepo "github.com/bnema/fungame/internal/adapters/repo/toml"
	"github.com/bnema/fungame/internal/adapters/store/memory"
	"github.com/bnema/fungame/internal/domain"
	"github.com/bnema/fungame/internal/ports"
	"github.com/bnema/fungame/internal/ports/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testChannel = domain.ChannelID("tavern")

func TestControllerTwoPlayersOneWindow(t *testing.T) {
	t.Parallel()

	h := newControllerHarness(t, nil)
	h.admitAll()

	require.NoError(t, h.say("alice", "open the chest"))
	h.clock.Advance(time.Second)
	require.NoError(t, h.say("bob", "kick the chest"))
	h.clock.Advance(4 * time.Second)

	messages := h.publisher.waitFor(t, 2)
	assert.Equal(t, domain.OutboundNarration, messages[0].Kind)
	assert.Equal(t, domain.AudienceBroadcast, messages[0].Audience)
	assert.Equal(t, "You open the chest.", messages[0].Text)
	assert.Equal(t, domain.OutboundWithhold, messages[1].Kind)
	assert.Equal(t, domain.AudienceWhisper, messages[1].Audience)
	assert.Equal(t, domain.PlayerID("bob"), messages[1].Player)

	state, err := h.store.Read(context.Background(), domain.NewSessionID(testChannel, 1))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), state.Version)
	assert.Contains(t, state.World, "alice: open the chest")

	require.Eventually(t, func() bool {
		session, err := h.repo.GetByID(context.Background(), domain.NewSessionID(testChannel, 1))
		return err == nil && session.Version == 1 && session.TurnCounter == 1
	}, 2*time.Second, time.Millisecond)
}

func TestControllerRejectedMessageNeverOpensWindow(t *testing.T) {
	t.Parallel()

	h := newControllerHarness(t, func(cfg *ControllerConfig) { cfg.RefusalMode = RefusalStatic })
	h.classifier.EXPECT().Classify(mock.Anything, mock.Anything).Return(domain.Judgment{Admit: false, Confidence: 0.9}, nil)

	require.NoError(t, h.say("alice", "lol anyone watching the game tonight"))

	arb, ok := h.controller.Arbitrator(testChannel)
	require.True(t, ok)
	assert.Equal(t, PhaseIdle, arb.Phase())

	messages := h.publisher.waitFor(t, 1)
	assert.Equal(t, domain.OutboundRefusal, messages[0].Kind)
	assert.Equal(t, domain.PlayerID("alice"), messages[0].Player)
	assert.Equal(t, "Nothing happens.", messages[0].Text)
	assert.Equal(t, 0, h.narrator.Calls())
}

func TestControllerNarratedRefusalFallsBackToStaticText(t *testing.T) {
	t.Parallel()

	h := newControllerHarness(t, nil)
	h.classifier.EXPECT().Classify(mock.Anything, mock.Anything).Return(domain.Judgment{Admit: false, Confidence: 1}, nil)

	require.NoError(t, h.say("alice", "brb"))
	assert.Equal(t, "Nothing happens.", h.publisher.waitFor(t, 1)[0].Text)

	h.narrator.mu.Lock()
	h.narrator.refusal = "The innkeeper ignores your chatter."
	h.narrator.mu.Unlock()

	require.NoError(t, h.say("alice", "brb again"))
	assert.Equal(t, "The innkeeper ignores your chatter.", h.publisher.waitFor(t, 2)[1].Text)
}

func TestControllerRefusalSurvivesPublisherFailure(t *testing.T) {
	t.Parallel()

	repo, err := tomlrepo.NewRepository(filepath.Join(t.TempDir(), "sessions.toml"))
	require.NoError(t, err)

	classifier := mocks.NewMockClassifier(t)
	narrator := mocks.NewMockNarrator(t)
	publisher := mocks.NewMockPublisher(t)
	rules := domain.Rules{Dont: []string{"break character"}}

	classifier.EXPECT().Classify(mock.Anything, mock.Anything).Return(domain.Judgment{Admit: false, Confidence: 1}, nil)
	narrator.EXPECT().Refuse(mock.Anything, domain.RefusalRequest{Player: "bob", Text: "brb", Rules: rules}).
		Return("The bard sighs at the interruption.", nil)
	publisher.EXPECT().Publish(mock.Anything, mock.MatchedBy(func(msg domain.Outbound) bool {
		return msg.Audience == domain.AudienceWhisper && msg.Player == "bob" && msg.Kind == domain.OutboundRefusal &&
			msg.Text == "The bard sighs at the interruption."
	})).Return(fmt.Errorf("chat platform unavailable"))

	controller := NewSessionController(ControllerConfig{
		Arbitration: ArbitratorConfig{Window: 5 * time.Second, Rules: rules},
	}, ControllerDeps{
		Gate:      NewClassifierGate(classifier, GateConfig{}, nil, nil),
		Store:     memory.NewStore(),
		Sessions:  repo,
		Narrator:  narrator,
		Publisher: publisher,
		Clock:     newManualClock(),
	})
	t.Cleanup(func() { _ = controller.Shutdown(context.Background()) })

	require.NoError(t, controller.HandleMessage(context.Background(), domain.InboundMessage{
		Channel: testChannel,
		Player:  "bob",
		Text:    "brb",
	}))

	arb, ok := controller.Arbitrator(testChannel)
	require.True(t, ok)
	assert.Equal(t, PhaseIdle, arb.Phase())
}

func TestControllerSilentRefusalPublishesNothing(t *testing.T) {
	t.Parallel()

	h := newControllerHarness(t, func(cfg *ControllerConfig) { cfg.RefusalMode = RefusalSilent })
	h.classifier.EXPECT().Classify(mock.Anything, mock.Anything).Return(domain.Judgment{Admit: false, Confidence: 1}, nil)

	require.NoError(t, h.say("alice", "hello"))
	assert.Empty(t, h.publisher.all())
}

func TestControllerCommandsSkipClassifier(t *testing.T) {
	t.Parallel()

	h := newControllerHarness(t, nil)

	require.NoError(t, h.say("alice", "/show world"))
	require.NoError(t, h.say("alice", "/show inventory"))
	require.NoError(t, h.say("alice", "/status"))

	messages := h.publisher.waitFor(t, 3)
	assert.Contains(t, messages[0].Text, "- a dusty tavern")
	assert.Equal(t, "You carry: lantern x1", messages[1].Text)
	assert.Contains(t, messages[2].Text, "session tavern#1")
	for _, msg := range messages {
		assert.Equal(t, domain.OutboundInfo, msg.Kind)
		assert.Equal(t, domain.PlayerID("alice"), msg.Player)
	}
}

func TestControllerOperatorCommands(t *testing.T) {
	t.Parallel()

	h := newControllerHarness(t, func(cfg *ControllerConfig) {
		cfg.Operators = []domain.PlayerID{"gm"}
		cfg.Arbitration.Window = time.Hour
	})
	h.admitAll()

	require.NoError(t, h.say("alice", "climb the wall"))
	assert.ErrorIs(t, h.say("alice", "/resolve"), ErrNotOperator)

	require.NoError(t, h.say("gm", "/resolve"))
	messages := h.publisher.waitFor(t, 2)
	assert.Equal(t, "Only an operator can do that.", messages[0].Text)
	assert.Equal(t, domain.OutboundNarration, messages[1].Kind)

	arb, _ := h.controller.Arbitrator(testChannel)
	require.Eventually(t, func() bool { return arb.Phase() == PhaseIdle }, 2*time.Second, time.Millisecond)

	require.NoError(t, h.say("gm", "/end enough for tonight"))
	session, err := h.repo.GetByID(context.Background(), domain.NewSessionID(testChannel, 1))
	require.NoError(t, err)
	assert.True(t, session.Archived())
	assert.Equal(t, "enough for tonight", session.ArchiveReason)
	assert.Equal(t, domain.OutboundEnded, h.publisher.waitFor(t, 3)[2].Kind)

	require.NoError(t, h.say("alice", "/status"))
	next, ok := h.controller.Session(testChannel)
	require.True(t, ok)
	assert.Equal(t, 2, next.Generation)
	assert.Equal(t, domain.SessionID("tavern#2"), next.ID)
}

func TestControllerDegradedSessionPausesUntilRecovered(t *testing.T) {
	t.Parallel()

	h := newControllerHarness(t, func(cfg *ControllerConfig) { cfg.Operators = []domain.PlayerID{"gm"} })
	h.admitAll()
	session := domain.NewSessionID(testChannel, 1)
	h.narrator.hook(func(call int, req domain.NarrationRequest) {
		_, err := h.store.Commit(context.Background(), session, req.State.Version, domain.Delta{
			World: map[string]bool{fmt.Sprintf("edit %d", call): true},
		})
		assert.NoError(t, err)
	})

	require.NoError(t, h.say("alice", "pull the lever"))
	h.clock.Advance(5 * time.Second)

	fatal := h.publisher.waitFor(t, 1)[0]
	assert.Equal(t, domain.OutboundFatal, fatal.Kind)
	assert.Equal(t, domain.AudienceBroadcast, fatal.Audience)

	require.Eventually(t, func() bool {
		live, _ := h.controller.Session(testChannel)
		return live.Degraded()
	}, 2*time.Second, time.Millisecond)
	arb, _ := h.controller.Arbitrator(testChannel)
	require.Eventually(t, func() bool { return arb.Phase() == PhaseIdle }, 2*time.Second, time.Millisecond)

	assert.ErrorIs(t, h.say("bob", "push the lever"), domain.ErrSessionDegraded)
	assert.Equal(t, domain.OutboundFatal, h.publisher.waitFor(t, 2)[1].Kind)

	h.narrator.hook(nil)
	require.NoError(t, h.say("gm", "/recover"))
	recovered, _ := h.controller.Session(testChannel)
	assert.Equal(t, domain.SessionActive, recovered.Status)

	require.NoError(t, h.say("bob", "push the lever"))
	h.clock.Advance(5 * time.Second)
	messages := h.publisher.waitFor(t, 4)
	assert.Equal(t, domain.OutboundNarration, messages[3].Kind)
}

func TestControllerGameOverArchivesSession(t *testing.T) {
	t.Parallel()

	h := newControllerHarness(t, nil)
	h.admitAll()
	h.narrator.endOn = "slay the dragon"

	require.NoError(t, h.say("alice", "slay the dragon"))
	h.clock.Advance(5 * time.Second)

	messages := h.publisher.waitFor(t, 2)
	assert.Equal(t, domain.OutboundNarration, messages[0].Kind)
	assert.Equal(t, domain.OutboundEnded, messages[1].Kind)

	session, err := h.repo.GetByID(context.Background(), domain.NewSessionID(testChannel, 1))
	require.NoError(t, err)
	assert.True(t, session.Archived())
	assert.Equal(t, "game over", session.ArchiveReason)
	_, live := h.controller.Session(testChannel)
	assert.False(t, live)
}

func TestControllerSweepIdleArchivesQuietSessions(t *testing.T) {
	t.Parallel()

	h := newControllerHarness(t, func(cfg *ControllerConfig) { cfg.IdleTimeout = time.Hour })

	require.NoError(t, h.say("alice", "/status"))
	h.clock.Advance(30 * time.Minute)
	assert.Empty(t, h.controller.SweepIdle(context.Background()))

	h.clock.Advance(30 * time.Minute)
	assert.Equal(t, []domain.SessionID{"tavern#1"}, h.controller.SweepIdle(context.Background()))

	session, err := h.repo.GetByID(context.Background(), "tavern#1")
	require.NoError(t, err)
	assert.Equal(t, "idle timeout", session.ArchiveReason)
}

func TestControllerResumesPersistedSession(t *testing.T) {
	t.Parallel()

	h := newControllerHarness(t, nil)
	h.admitAll()

	require.NoError(t, h.say("alice", "light the fire"))
	h.clock.Advance(5 * time.Second)
	h.publisher.waitFor(t, 1)
	arb, _ := h.controller.Arbitrator(testChannel)
	require.Eventually(t, func() bool { return arb.Phase() == PhaseIdle }, 2*time.Second, time.Millisecond)
	require.NoError(t, h.controller.Shutdown(context.Background()))

	restarted := NewSessionController(h.cfg, ControllerDeps{
		Gate:      NewClassifierGate(h.classifier, GateConfig{}, nil, nil),
		Store:     h.store,
		Sessions:  h.repo,
		Narrator:  h.narrator,
		Publisher: h.publisher,
		Clock:     h.clock,
	})
	require.NoError(t, restarted.HandleMessage(context.Background(), domain.InboundMessage{Channel: testChannel, Player: "bob", Text: "/status", Timestamp: h.clock.Now()}))

	session, ok := restarted.Session(testChannel)
	require.True(t, ok)
	assert.Equal(t, domain.SessionID("tavern#1"), session.ID)
	assert.Equal(t, uint64(1), session.Version)
	assert.ElementsMatch(t, []domain.PlayerID{"alice", "bob"}, session.Players)
	require.NoError(t, restarted.Shutdown(context.Background()))
}

func TestControllerDrainResolvesOpenWindows(t *testing.T) {
	t.Parallel()

	h := newControllerHarness(t, nil)
	h.admitAll()

	require.NoError(t, h.say("alice", "light the lantern"))
	arb, ok := h.controller.Arbitrator(testChannel)
	require.True(t, ok)
	assert.Equal(t, PhaseCollecting, arb.Phase())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, h.controller.Drain(ctx))

	assert.Equal(t, PhaseIdle, arb.Phase())
	messages := h.publisher.waitFor(t, 1)
	assert.Equal(t, "You light the lantern.", messages[0].Text)

	require.NoError(t, h.controller.Drain(ctx), "draining idle sessions is a no-op")
}

func TestControllerRejectsEmptyMessages(t *testing.T) {
	t.Parallel()

	h := newControllerHarness(t, nil)

	assert.ErrorIs(t, h.say("alice", "   "), domain.ErrInvalidBid)
	assert.ErrorIs(t, h.say("", "hello"), domain.ErrInvalidBid)
	_, ok := h.controller.Session(testChannel)
	assert.False(t, ok)
}

func TestControllerSlowClassificationCannotReviveOlderBid(t *testing.T) {
	t.Parallel()

	h := newControllerHarness(t, nil)
	unblock := make(chan struct{})
	h.classifier.EXPECT().Classify(mock.Anything, mock.MatchedBy(func(req domain.ClassifyRequest) bool { return req.Text == "go north" })).
		Run(func(context.Context, domain.ClassifyRequest) { <-unblock }).
		Return(domain.Judgment{Admit: true, Confidence: 1}, nil)
	h.classifier.EXPECT().Classify(mock.Anything, mock.MatchedBy(func(req domain.ClassifyRequest) bool { return req.Text == "go east" })).
		Return(domain.Judgment{Admit: true, Confidence: 1}, nil)

	start := h.clock.Now()
	h.controller.OnMessage(context.Background(), domain.InboundMessage{Channel: testChannel, Player: "alice", Text: "go north", Timestamp: start.Add(time.Second)})
	h.controller.OnMessage(context.Background(), domain.InboundMessage{Channel: testChannel, Player: "alice", Text: "go east", Timestamp: start.Add(2 * time.Second)})

	require.Eventually(t, func() bool {
		arb, ok := h.controller.Arbitrator(testChannel)
		return ok && arb.Snapshot().Bids == 1
	}, 2*time.Second, time.Millisecond)
	close(unblock)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, h.controller.Drain(ctx))

	messages := h.publisher.waitFor(t, 1)
	assert.Equal(t, "You go east.", messages[0].Text)
	require.Len(t, h.narrator.Requests(), 1)
	assert.Equal(t, "go east", h.narrator.Requests()[0].Action.Text)
}

func TestControllerCustomRules(t *testing.T) {
	t.Parallel()

	h := newControllerHarness(t, func(cfg *ControllerConfig) {
		cfg.Operators = []domain.PlayerID{"gm"}
		cfg.Arbitration.Rules = domain.Rules{Do: []string{"be vivid"}}
	})
	h.admitAll()

	require.NoError(t, h.say("gm", "/rule add dragons are shy"))
	require.NoError(t, h.say("gm", "/rule add --secret the innkeeper lies"))
	assert.ErrorIs(t, h.say("alice", "/rule add free gold"), ErrNotOperator)
	require.NoError(t, h.say("alice", "/show rules"))
	require.NoError(t, h.say("gm", "/rule list"))

	messages := h.publisher.waitFor(t, 5)
	assert.Equal(t, "Rule 1 added.", messages[0].Text)
	assert.Equal(t, "Rule 2 added.", messages[1].Text)
	assert.Equal(t, "Only an operator can do that.", messages[2].Text)
	assert.Equal(t, "Custom rules:\n1. dragons are shy", messages[3].Text)
	assert.Equal(t, "Custom rules:\n1. dragons are shy\n2. the innkeeper lies (secret)", messages[4].Text)

	stored, err := h.repo.GetByID(context.Background(), domain.NewSessionID(testChannel, 1))
	require.NoError(t, err)
	require.Len(t, stored.Rules, 2)
	assert.True(t, stored.Rules[1].Secret)
	assert.Equal(t, domain.PlayerID("gm"), stored.Rules[0].AddedBy)

	require.NoError(t, h.say("alice", "ask the innkeeper"))
	h.clock.Advance(5 * time.Second)
	h.publisher.waitFor(t, 6)
	request := h.narrator.Requests()[0]
	assert.Equal(t, []string{"be vivid"}, request.Rules.Do)
	assert.Equal(t, []string{"dragons are shy", "the innkeeper lies"}, request.Rules.Custom)

	require.NoError(t, h.say("gm", "/rule remove 1"))
	assert.ErrorIs(t, h.say("gm", "/rule remove 9"), domain.ErrRuleNotFound)
	require.NoError(t, h.say("alice", "/show rules"))

	messages = h.publisher.waitFor(t, 9)
	assert.Equal(t, "Rule 1 removed: dragons are shy", messages[6].Text)
	assert.Equal(t, "There is no rule 9.", messages[7].Text)
	assert.Equal(t, "No custom rules.", messages[8].Text)
}

func TestControllerTracksOpenWindow(t *testing.T) {
	t.Parallel()

	h := newControllerHarness(t, nil)
	h.admitAll()

	require.NoError(t, h.say("alice", "climb the wall"))
	arb, ok := h.controller.Arbitrator(testChannel)
	require.True(t, ok)
	session, _ := h.controller.Session(testChannel)
	assert.NotEmpty(t, session.OpenWindow)
	assert.Equal(t, arb.Snapshot().Window, session.OpenWindow)

	h.clock.Advance(5 * time.Second)
	h.publisher.waitFor(t, 1)
	require.Eventually(t, func() bool { return arb.Phase() == PhaseIdle }, 2*time.Second, time.Millisecond)

	session, _ = h.controller.Session(testChannel)
	assert.Empty(t, session.OpenWindow)
	stored, err := h.repo.GetByID(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.OpenWindow)
}

func TestControllerSlowSessionStartDoesNotBlockOtherChannels(t *testing.T) {
	t.Parallel()

	repo, err := tomlrepo.NewRepository(filepath.Join(t.TempDir(), "sessions.toml"))
	require.NoError(t, err)
	slow := &stallingRepository{SessionRepository: repo, channel: "cellar", entered: make(chan struct{}), release: make(chan struct{})}

	controller := NewSessionController(ControllerConfig{Arbitration: ArbitratorConfig{Window: 5 * time.Second}}, ControllerDeps{
		Gate:      NewClassifierGate(nil, GateConfig{}, nil, nil),
		Store:     memory.NewStore(),
		Sessions:  slow,
		Narrator:  &fakeNarrator{},
		Publisher: &recordingPublisher{},
		Clock:     newManualClock(),
	})
	t.Cleanup(func() { _ = controller.Shutdown(context.Background()) })

	cellar := func() error {
		return controller.HandleMessage(context.Background(), domain.InboundMessage{Channel: "cellar", Player: "alice", Text: "/status"})
	}
	done := make(chan error, 2)
	go func() { done <- cellar() }()
	<-slow.entered
	go func() { done <- cellar() }()

	require.NoError(t, controller.HandleMessage(context.Background(), domain.InboundMessage{Channel: testChannel, Player: "bob", Text: "/status"}))
	_, ok := controller.Session(testChannel)
	assert.True(t, ok)
	_, ok = controller.Session("cellar")
	assert.False(t, ok)

	close(slow.release)
	require.NoError(t, <-done)
	require.NoError(t, <-done)

	session, ok := controller.Session("cellar")
	require.True(t, ok)
	assert.Equal(t, domain.SessionID("cellar#1"), session.ID)
	assert.Equal(t, 1, slow.latestCalls())
}

type controllerHarness struct {
	controller *SessionController
	cfg        ControllerConfig
	classifier *mocks.MockClassifier
	narrator   *fakeNarrator
	publisher  *recordingPublisher
	store      *memory.Store
	repo       *tomlrepo.Repository
	clock      *manualClock
}

func newControllerHarness(t *testing.T, configure func(*ControllerConfig)) *controllerHarness {
	t.Helper()

	repo, err := tomlrepo.NewRepository(filepath.Join(t.TempDir(), "sessions.toml"))
	require.NoError(t, err)

	cfg := ControllerConfig{
		Start: StartConfig{
			World:       []string{"a dusty tavern"},
			Inventories: map[domain.PlayerID]domain.Inventory{"alice": {"lantern": 1}},
		},
		Arbitration: ArbitratorConfig{
			Window:       5 * time.Second,
			RetryInitial: time.Millisecond,
			RetryMax:     2 * time.Millisecond,
		},
	}
	if configure != nil {
		configure(&cfg)
	}

	h := &controllerHarness{
		cfg:        cfg,
		classifier: mocks.NewMockClassifier(t),
		narrator:   &fakeNarrator{},
		publisher:  &recordingPublisher{},
		store:      memory.NewStore(),
		repo:       repo,
		clock:      newManualClock(),
	}
	h.controller = NewSessionController(cfg, ControllerDeps{
		Gate:      NewClassifierGate(h.classifier, GateConfig{}, nil, nil),
		Store:     h.store,
		Sessions:  h.repo,
		Narrator:  h.narrator,
		Publisher: h.publisher,
		Clock:     h.clock,
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = h.controller.Shutdown(ctx)
	})
	return h
}

func (h *controllerHarness) admitAll() {
	h.classifier.EXPECT().Classify(mock.Anything, mock.Anything).Return(domain.Judgment{Admit: true, Confidence: 1}, nil).Maybe()
}

func (h *controllerHarness) say(player domain.PlayerID, text string) error {
	return h.controller.HandleMessage(context.Background(), domain.InboundMessage{
		Channel:   testChannel,
		Player:    player,
		Text:      text,
		Timestamp: h.clock.Now(),
	})
}

type recordingPublisher struct {
	mu       sync.Mutex
	messages []domain.Outbound
}

func (p *recordingPublisher) Publish(_ context.Context, msg domain.Outbound) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, msg)
	return nil
}

func (p *recordingPublisher) all() []domain.Outbound {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.Outbound(nil), p.messages...)
}

func (p *recordingPublisher) waitFor(t *testing.T, n int) []domain.Outbound {
	t.Helper()
	require.Eventually(t, func() bool { return len(p.all()) >= n }, 2*time.Second, time.Millisecond)
	return p.all()
}

// stallingRepository blocks the first Latest lookup of one channel until release closes.
type stallingRepository struct {
	ports.SessionRepository
	channel domain.ChannelID
	entered chan struct{}
	release chan struct{}

	mu    sync.Mutex
	calls int
}

func (r *stallingRepository) Latest(ctx context.Context, channel domain.ChannelID) (domain.Session, error) {
	if channel == r.channel {
		r.mu.Lock()
		r.calls++
		first := r.calls == 1
		r.mu.Unlock()
		if first {
			close(r.entered)
			<-r.release
		}
	}
	return r.SessionRepository.Latest(ctx, channel)
}

func (r *stallingRepository) latestCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}
