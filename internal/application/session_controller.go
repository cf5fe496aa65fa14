package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bnema/fungame/internal/domain"
	"github.com/bnema/fungame/internal/ports"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

type RefusalMode string

const (
	RefusalNarrate RefusalMode = "narrate"
	RefusalStatic  RefusalMode = "static"
	RefusalSilent  RefusalMode = "silent"
)

type Notices struct {
	Refusal   string
	Withhold  string
	Transient string
	Dropped   string
	Fatal     string
	Ended     string
}

func (n Notices) withDefaults() Notices {
	if n.Refusal == "" {
		n.Refusal = "Nothing happens."
	}
	if n.Withhold == "" {
		n.Withhold = "Someone else acted first. Your action fades before it takes shape."
	}
	if n.Transient == "" {
		n.Transient = "The world holds its breath for a moment. The last action will be tried again."
	}
	if n.Dropped == "" {
		n.Dropped = "Your action slips away into the mist. Try again."
	}
	if n.Fatal == "" {
		n.Fatal = "[game master] The world flickered and could not be kept consistent. Play is paused until an operator recovers this session."
	}
	if n.Ended == "" {
		n.Ended = "The story ends here."
	}
	return n
}

type StartConfig struct {
	World       []string
	Inventories map[domain.PlayerID]domain.Inventory
}

type ControllerConfig struct {
	Start         StartConfig
	Arbitration   ArbitratorConfig
	IdleTimeout   time.Duration
	CommandPrefix string
	Operators     []domain.PlayerID
	RefusalMode   RefusalMode
	Notices       Notices
}

type liveSession struct {
	mu      sync.Mutex
	session domain.Session
	arb     *Arbitrator
}

// setWindow runs under the arbitrator lock and must not call back into it.
func (l *liveSession) setWindow(window domain.WindowID) {
	l.mu.Lock()
	l.session.OpenWindow = window
	l.mu.Unlock()
}

func (l *liveSession) snapshot() domain.Session {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.session
}

// SessionController drives inbound chat messages through the gate and the
// arbitrator of their channel's session, and publishes what comes out.
type SessionController struct {
	gate      *ClassifierGate
	store     ports.StateStore
	sessions  ports.SessionRepository
	narrator  ports.Narrator
	publisher ports.Publisher
	cfg       ControllerConfig
	clock     ports.Clock
	logger    *zap.Logger
	metrics   ports.Metrics

	inflight sync.WaitGroup
	starts   singleflight.Group

	mu       sync.Mutex
	live     map[domain.ChannelID]*liveSession
	shutdown bool
}

type ControllerDeps struct {
	Gate      *ClassifierGate
	Store     ports.StateStore
	Sessions  ports.SessionRepository
	Narrator  ports.Narrator
	Publisher ports.Publisher
	Clock     ports.Clock
	Logger    *zap.Logger
	Metrics   ports.Metrics
}

func NewSessionController(cfg ControllerConfig, deps ControllerDeps) *SessionController {
	if deps.Clock == nil {
		deps.Clock = ports.SystemClock{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Metrics == nil {
		deps.Metrics = ports.NopMetrics{}
	}
	if cfg.CommandPrefix == "" {
		cfg.CommandPrefix = "/"
	}
	if cfg.RefusalMode == "" {
		cfg.RefusalMode = RefusalNarrate
	}
	cfg.Notices = cfg.Notices.withDefaults()

	return &SessionController{
		gate:      deps.Gate,
		store:     deps.Store,
		sessions:  deps.Sessions,
		narrator:  deps.Narrator,
		publisher: deps.Publisher,
		cfg:       cfg,
		clock:     deps.Clock,
		logger:    deps.Logger,
		metrics:   deps.Metrics,
		live:      map[domain.ChannelID]*liveSession{},
	}
}

// OnMessage handles msg on its own goroutine. Responses arrive through the publisher.
func (c *SessionController) OnMessage(ctx context.Context, msg domain.InboundMessage) {
	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		if err := c.HandleMessage(ctx, msg); err != nil {
			c.logger.Debug("message not played",
				zap.String("channel", string(msg.Channel)),
				zap.String("player", string(msg.Player)),
				zap.Error(err),
			)
		}
	}()
}

// HandleMessage is the synchronous form of OnMessage.
func (c *SessionController) HandleMessage(ctx context.Context, msg domain.InboundMessage) error {
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return fmt.Errorf("%w: text is empty", domain.ErrInvalidBid)
	}
	if strings.TrimSpace(string(msg.Player)) == "" {
		return fmt.Errorf("%w: player is required", domain.ErrInvalidBid)
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = c.clock.Now()
	}

	live, err := c.sessionFor(ctx, msg.Channel, msg.Timestamp)
	if err != nil {
		return err
	}

	live.mu.Lock()
	live.session.AddPlayer(msg.Player)
	if msg.Timestamp.After(live.session.LastActivityAt) {
		live.session.LastActivityAt = msg.Timestamp
	}
	session := live.session
	live.mu.Unlock()

	if cmd, ok := c.parseCommand(text); ok {
		return c.runCommand(ctx, live, msg, cmd)
	}

	if session.Degraded() {
		c.publish(ctx, domain.Whisper(session, msg.Player, domain.OutboundFatal, c.cfg.Notices.Fatal))
		return domain.ErrSessionDegraded
	}

	if c.gate.Classify(ctx, text) == domain.VerdictReject {
		c.refuse(ctx, session, msg.Player, text)
		return nil
	}

	bid := domain.Bid{
		ID:          domain.BidID(uuid.NewString()),
		Player:      msg.Player,
		Text:        text,
		Verdict:     domain.VerdictAdmit,
		SubmittedAt: msg.Timestamp,
	}
	window, err := live.arb.Submit(ctx, bid)
	if err != nil {
		if errors.Is(err, domain.ErrSessionDegraded) {
			c.publish(ctx, domain.Whisper(session, msg.Player, domain.OutboundFatal, c.cfg.Notices.Fatal))
		}
		return fmt.Errorf("submit bid: %w", err)
	}

	c.logger.Debug("bid submitted",
		zap.String("session", string(session.ID)),
		zap.String("player", string(msg.Player)),
		zap.String("window", string(window)),
	)
	return nil
}

// Arbitrator returns the live arbitrator of a channel, if any.
func (c *SessionController) Arbitrator(channel domain.ChannelID) (*Arbitrator, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	live, ok := c.live[channel]
	if !ok {
		return nil, false
	}
	return live.arb, true
}

// Session returns the live session record of a channel.
func (c *SessionController) Session(channel domain.ChannelID) (domain.Session, bool) {
	c.mu.Lock()
	live, ok := c.live[channel]
	c.mu.Unlock()
	if !ok {
		return domain.Session{}, false
	}
	return live.snapshot(), true
}

// EndSession archives the live session of a channel.
func (c *SessionController) EndSession(ctx context.Context, channel domain.ChannelID, reason string) error {
	c.mu.Lock()
	live, ok := c.live[channel]
	if ok {
		delete(c.live, channel)
	}
	active := len(c.live)
	c.mu.Unlock()
	if !ok {
		return domain.ErrSessionNotFound
	}
	c.metrics.ActiveSessions(active)

	live.arb.Close()

	live.mu.Lock()
	live.session.Status = domain.SessionArchived
	live.session.ArchivedAt = c.clock.Now()
	live.session.ArchiveReason = reason
	live.session.OpenWindow = ""
	session := live.session
	live.mu.Unlock()

	if err := c.sessions.Save(ctx, session); err != nil {
		return fmt.Errorf("save archived session: %w", err)
	}

	c.logger.Info("session archived",
		zap.String("session", string(session.ID)),
		zap.String("reason", reason),
	)
	c.publish(ctx, domain.Broadcast(session, domain.OutboundEnded, c.cfg.Notices.Ended))
	return nil
}

// SweepIdle archives sessions idle for the configured timeout and returns their ids.
func (c *SessionController) SweepIdle(ctx context.Context) []domain.SessionID {
	if c.cfg.IdleTimeout <= 0 {
		return nil
	}

	now := c.clock.Now()
	c.mu.Lock()
	var idle []domain.ChannelID
	for channel, live := range c.live {
		session := live.snapshot()
		if session.IdleSince(now, c.cfg.IdleTimeout) && live.arb.Phase() == PhaseIdle {
			idle = append(idle, channel)
		}
	}
	c.mu.Unlock()

	var archived []domain.SessionID
	for _, channel := range idle {
		session, _ := c.Session(channel)
		if err := c.EndSession(ctx, channel, "idle timeout"); err != nil {
			c.logger.Warn("archive idle session", zap.String("channel", string(channel)), zap.Error(err))
			continue
		}
		archived = append(archived, session.ID)
	}
	return archived
}

// RunIdleReaper sweeps idle sessions every interval until ctx ends.
func (c *SessionController) RunIdleReaper(ctx context.Context, interval time.Duration) error {
	if interval <= 0 || c.cfg.IdleTimeout <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.SweepIdle(ctx)
		}
	}
}

// Drain closes every collecting window now and waits until all sessions are idle.
func (c *SessionController) Drain(ctx context.Context) error {
	c.inflight.Wait()

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		c.mu.Lock()
		arbs := make([]*Arbitrator, 0, len(c.live))
		for _, live := range c.live {
			arbs = append(arbs, live.arb)
		}
		c.mu.Unlock()

		busy := false
		for _, arb := range arbs {
			switch arb.Phase() {
			case PhaseCollecting:
				busy = true
				if err := arb.ForceResolve(ctx); err != nil && !errors.Is(err, ErrNoOpenWindow) {
					return err
				}
			case PhaseResolving:
				busy = true
			}
		}
		if !busy {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Shutdown stops every arbitrator, waits for in-flight turns and persists the
// session records.
func (c *SessionController) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	c.shutdown = true
	lives := make([]*liveSession, 0, len(c.live))
	for _, live := range c.live {
		lives = append(lives, live)
	}
	c.mu.Unlock()

	c.inflight.Wait()

	var errs []error
	for _, live := range lives {
		live.arb.Close()
		if err := live.arb.Wait(ctx); err != nil {
			errs = append(errs, err)
		}
		live.mu.Lock()
		live.session.OpenWindow = ""
		session := live.session
		live.mu.Unlock()
		if err := c.sessions.Save(ctx, session); err != nil {
			errs = append(errs, fmt.Errorf("save session %s: %w", session.ID, err))
		}
	}

	return errors.Join(errs...)
}

func (c *SessionController) lookup(channel domain.ChannelID) (*liveSession, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.shutdown {
		return nil, false, ErrArbitratorClosed
	}
	live, ok := c.live[channel]
	return live, ok, nil
}

// sessionFor returns the live session of channel, starting one if needed.
// Concurrent first messages on one channel share a single start.
func (c *SessionController) sessionFor(ctx context.Context, channel domain.ChannelID, now time.Time) (*liveSession, error) {
	if live, ok, err := c.lookup(channel); err != nil || ok {
		return live, err
	}

	started, err, _ := c.starts.Do(string(channel), func() (any, error) {
		live, ok, err := c.lookup(channel)
		switch {
		case err != nil:
			return nil, err
		case ok:
			return live, nil
		}
		return c.startSession(ctx, channel, now)
	})
	if err != nil {
		return nil, err
	}
	return started.(*liveSession), nil
}

func (c *SessionController) startSession(ctx context.Context, channel domain.ChannelID, now time.Time) (*liveSession, error) {
	session, err := c.sessions.Latest(ctx, channel)
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		session = c.newSession(channel, 1, now)
	case err != nil:
		return nil, fmt.Errorf("load session for channel %s: %w", channel, err)
	case session.Archived():
		session = c.newSession(channel, session.Generation+1, now)
	}

	state, err := c.store.Init(ctx, session.ID, domain.NewGameState(session.ID, c.cfg.Start.World, c.cfg.Start.Inventories))
	if err != nil {
		return nil, fmt.Errorf("init game state: %w", err)
	}
	session.Version = state.Version
	session.OpenWindow = ""
	if err := c.sessions.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	live := &liveSession{session: session}
	live.arb = NewArbitrator(session, c.cfg.Arbitration, ArbitratorDeps{
		Store:     c.store,
		Narrator:  c.narrator,
		Clock:     c.clock,
		Logger:    c.logger,
		Metrics:   c.metrics,
		OnOutcome: func(ctx context.Context, outcome TurnOutcome) { c.onOutcome(ctx, live, outcome) },
		OnWindow:  live.setWindow,
		Rules:     func() domain.Rules { return c.rulesFor(live) },
	})

	c.mu.Lock()
	if c.shutdown {
		c.mu.Unlock()
		live.arb.Close()
		return nil, ErrArbitratorClosed
	}
	c.live[channel] = live
	active := len(c.live)
	c.mu.Unlock()
	c.metrics.ActiveSessions(active)

	c.logger.Info("session started",
		zap.String("session", string(session.ID)),
		zap.String("channel", string(channel)),
		zap.Uint64("version", session.Version),
	)
	return live, nil
}

func (c *SessionController) rulesFor(live *liveSession) domain.Rules {
	return c.cfg.Arbitration.Rules.WithCustom(live.snapshot().Rules)
}

func (c *SessionController) newSession(channel domain.ChannelID, generation int, now time.Time) domain.Session {
	return domain.Session{
		ID:             domain.NewSessionID(channel, generation),
		Channel:        channel,
		Generation:     generation,
		Status:         domain.SessionActive,
		CreatedAt:      now,
		LastActivityAt: now,
	}
}

func (c *SessionController) onOutcome(ctx context.Context, live *liveSession, outcome TurnOutcome) {
	live.mu.Lock()
	live.session.RecentWinners = outcome.RecentWinners
	switch outcome.Status {
	case TurnCommitted:
		live.session.Version = outcome.State.Version
		live.session.TurnCounter++
	case TurnFatal:
		live.session.Status = domain.SessionDegraded
		live.session.DegradedReason = "commit conflict persisted after re-narration"
	}
	session := live.session
	live.mu.Unlock()

	if err := c.sessions.Save(ctx, session); err != nil {
		c.logger.Error("save session after turn", zap.String("session", string(session.ID)), zap.Error(err))
	}

	switch outcome.Status {
	case TurnCommitted:
		c.publish(ctx, domain.Broadcast(session, domain.OutboundNarration, outcome.Response))
	case TurnRequeued:
		c.publish(ctx, domain.Broadcast(session, domain.OutboundTransient, c.cfg.Notices.Transient))
	case TurnDropped:
		c.publish(ctx, domain.Whisper(session, outcome.Winner.Player, domain.OutboundDropped, c.cfg.Notices.Dropped))
	case TurnFatal:
		c.publish(ctx, domain.Broadcast(session, domain.OutboundFatal, c.cfg.Notices.Fatal))
	}

	for _, loser := range outcome.Losers {
		c.publish(ctx, domain.Whisper(session, loser.Player, domain.OutboundWithhold, c.cfg.Notices.Withhold))
	}

	if outcome.Status == TurnCommitted && outcome.State.GameOver {
		if err := c.EndSession(ctx, session.Channel, "game over"); err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
			c.logger.Error("archive finished session", zap.String("session", string(session.ID)), zap.Error(err))
		}
	}
}

func (c *SessionController) refuse(ctx context.Context, session domain.Session, player domain.PlayerID, text string) {
	rules := c.cfg.Arbitration.Rules.WithCustom(session.Rules)
	switch c.cfg.RefusalMode {
	case RefusalSilent:
		return
	case RefusalStatic:
		c.publish(ctx, domain.Whisper(session, player, domain.OutboundRefusal, c.cfg.Notices.Refusal))
		return
	}

	reply := c.cfg.Notices.Refusal
	if c.narrator != nil {
		callCtx, cancel := context.WithTimeout(ctx, c.cfg.Arbitration.withDefaults().NarratorTimeout)
		phrased, err := c.narrator.Refuse(callCtx, domain.RefusalRequest{Player: player, Text: text, Rules: rules})
		cancel()
		if err != nil {
			c.logger.Debug("refusal narration failed, using static text", zap.Error(err))
		} else if strings.TrimSpace(phrased) != "" {
			reply = phrased
		}
	}
	c.publish(ctx, domain.Whisper(session, player, domain.OutboundRefusal, reply))
}

func (c *SessionController) publish(ctx context.Context, msg domain.Outbound) {
	if c.publisher == nil || strings.TrimSpace(msg.Text) == "" {
		return
	}
	if err := c.publisher.Publish(ctx, msg); err != nil {
		c.logger.Warn("publish outbound message",
			zap.String("session", string(msg.Session)),
			zap.String("kind", string(msg.Kind)),
			zap.Error(err),
		)
	}
}

func (c *SessionController) isOperator(player domain.PlayerID) bool {
	for _, operator := range c.cfg.Operators {
		if operator == player {
			return true
		}
	}
	return false
}
