package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bnema/fungame/internal/domain"
	"github.com/bnema/fungame/internal/ports"
	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseCollecting Phase = "collecting"
	PhaseResolving  Phase = "resolving"
)

var (
	ErrNoOpenWindow     = errors.New("no arbitration window is open")
	ErrArbitratorClosed = errors.New("arbitrator closed")
)

type ArbitratorConfig struct {
	Window           time.Duration
	FairnessRotation int
	// EarlyResolve closes a window once every recently active player has bid.
	EarlyResolve bool
	// ActiveWithin bounds how far back a player's last bid makes them eligible.
	// Zero counts every player that ever bid.
	ActiveWithin     time.Duration
	NarratorAttempts int
	NarratorTimeout  time.Duration
	RetryInitial     time.Duration
	RetryMax         time.Duration
	MaxRequeues      int
	// ContextTurns is how many played turns the narrator sees besides the state.
	ContextTurns int
	Rules        domain.Rules
}

func (c ArbitratorConfig) withDefaults() ArbitratorConfig {
	if c.Window <= 0 {
		c.Window = 5 * time.Second
	}
	if c.NarratorAttempts <= 0 {
		c.NarratorAttempts = 3
	}
	if c.NarratorTimeout <= 0 {
		c.NarratorTimeout = 30 * time.Second
	}
	if c.RetryInitial <= 0 {
		c.RetryInitial = 500 * time.Millisecond
	}
	if c.RetryMax <= 0 {
		c.RetryMax = 5 * time.Second
	}
	if c.MaxRequeues < 0 {
		c.MaxRequeues = 0
	}
	if c.ContextTurns < 0 {
		c.ContextTurns = 0
	}
	return c
}

type TurnStatus string

const (
	TurnCommitted TurnStatus = "committed"
	TurnRequeued  TurnStatus = "requeued"
	TurnDropped   TurnStatus = "dropped"
	TurnFatal     TurnStatus = "fatal"
)

// TurnOutcome reports how one closed window ended.
type TurnOutcome struct {
	Session       domain.SessionID
	Window        domain.WindowID
	CloseReason   domain.CloseReason
	Status        TurnStatus
	Winner        domain.Bid
	Losers        []domain.Bid
	State         domain.GameState
	Response      string
	Requeues      int
	RecentWinners []domain.PlayerID
	Err           error
}

type OutcomeFunc func(ctx context.Context, outcome TurnOutcome)

// WindowFunc learns the open window id, or "" once no window collects bids.
// It runs under the arbitrator lock and must not call back into it.
type WindowFunc func(window domain.WindowID)

// RulesFunc returns the narrator rules in force for the next call.
type RulesFunc func() domain.Rules

type ArbitratorSnapshot struct {
	Session  domain.SessionID
	Phase    Phase
	Window   domain.WindowID
	Deadline time.Time
	Bids     int
	Held     int
	Degraded bool
}

// Arbitrator runs the Idle, Collecting, Resolving cycle of a single session.
// Narration and commit happen on one resolver goroutine per window, outside mu.
type Arbitrator struct {
	session   domain.SessionID
	store     ports.StateStore
	narrator  ports.Narrator
	cfg       ArbitratorConfig
	clock     ports.Clock
	logger    *zap.Logger
	metrics   ports.Metrics
	onOutcome OutcomeFunc
	onWindow  WindowFunc
	rules     RulesFunc

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu            sync.Mutex
	phase         Phase
	window        *domain.ArbitrationWindow
	base          domain.GameState
	eligible      map[domain.PlayerID]struct{}
	timer         ports.Timer
	held          []domain.Bid
	requeues      map[domain.BidID]int
	lastBidAt     map[domain.PlayerID]time.Time
	recentWinners []domain.PlayerID
	degraded      bool
	closed        bool
}

type ArbitratorDeps struct {
	Store     ports.StateStore
	Narrator  ports.Narrator
	Clock     ports.Clock
	Logger    *zap.Logger
	Metrics   ports.Metrics
	OnOutcome OutcomeFunc
	OnWindow  WindowFunc
	Rules     RulesFunc
}

func NewArbitrator(session domain.Session, cfg ArbitratorConfig, deps ArbitratorDeps) *Arbitrator {
	if deps.Clock == nil {
		deps.Clock = ports.SystemClock{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Metrics == nil {
		deps.Metrics = ports.NopMetrics{}
	}
	if deps.OnOutcome == nil {
		deps.OnOutcome = func(context.Context, TurnOutcome) {}
	}
	if deps.OnWindow == nil {
		deps.OnWindow = func(domain.WindowID) {}
	}
	cfg = cfg.withDefaults()
	if deps.Rules == nil {
		static := cfg.Rules
		deps.Rules = func() domain.Rules { return static }
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Arbitrator{
		session:       session.ID,
		store:         deps.Store,
		narrator:      deps.Narrator,
		cfg:           cfg,
		clock:         deps.Clock,
		logger:        deps.Logger.With(zap.String("session", string(session.ID))),
		metrics:       deps.Metrics,
		onOutcome:     deps.OnOutcome,
		onWindow:      deps.OnWindow,
		rules:         deps.Rules,
		ctx:           ctx,
		cancel:        cancel,
		phase:         PhaseIdle,
		requeues:      map[domain.BidID]int{},
		lastBidAt:     map[domain.PlayerID]time.Time{},
		recentWinners: append([]domain.PlayerID(nil), session.RecentWinners...),
		degraded:      session.Degraded(),
	}
}

// Submit places an admitted bid. It returns the window the bid joined, or an
// empty id when the bid is held until the resolving window finishes.
func (a *Arbitrator) Submit(ctx context.Context, bid domain.Bid) (domain.WindowID, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := bid.Validate(); err != nil {
		return "", err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return "", ErrArbitratorClosed
	}
	if a.degraded {
		return "", domain.ErrSessionDegraded
	}

	switch a.phase {
	case PhaseIdle:
		if err := a.openLocked(ctx, []domain.Bid{bid}); err != nil {
			return "", err
		}
		return a.window.ID, nil
	case PhaseCollecting:
		if _, err := a.window.Add(bid); err != nil {
			return "", err
		}
		a.noteBidLocked(bid)
		id := a.window.ID
		a.maybeResolveEarlyLocked()
		return id, nil
	default:
		a.holdLocked(bid)
		a.noteBidLocked(bid)
		return "", nil
	}
}

// ForceResolve closes the open window immediately.
func (a *Arbitrator) ForceResolve(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrArbitratorClosed
	}
	if a.phase != PhaseCollecting {
		return ErrNoOpenWindow
	}

	a.closeLocked(domain.CloseForced)
	return nil
}

// Recover clears the degraded flag and reports whether it was set.
func (a *Arbitrator) Recover() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	was := a.degraded
	a.degraded = false
	return was
}

func (a *Arbitrator) Phase() Phase {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.phase
}

func (a *Arbitrator) Snapshot() ArbitratorSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	snapshot := ArbitratorSnapshot{
		Session:  a.session,
		Phase:    a.phase,
		Held:     len(a.held),
		Degraded: a.degraded,
	}
	if a.window != nil {
		snapshot.Window = a.window.ID
		snapshot.Deadline = a.window.Deadline
		snapshot.Bids = a.window.Len()
	}
	return snapshot
}

// Close stops the deadline timer and refuses further bids. It does not wait for
// an in-flight resolution, so it is safe to call from an outcome callback.
func (a *Arbitrator) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return
	}
	a.closed = true
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.held = nil
	if a.phase == PhaseCollecting {
		a.phase = PhaseIdle
		a.window = nil
		a.onWindow("")
	}
}

// Wait blocks until in-flight resolutions finish or ctx ends. An abandoned
// resolution has its backend calls canceled.
func (a *Arbitrator) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		a.cancel()
		<-done
		return ctx.Err()
	}
}

func (a *Arbitrator) openLocked(ctx context.Context, bids []domain.Bid) error {
	base, err := a.store.Read(ctx, a.session)
	if err != nil {
		return fmt.Errorf("read base state: %w", err)
	}

	now := a.clock.Now()
	window := domain.NewArbitrationWindow(domain.WindowID(uuid.NewString()), a.session, now, a.cfg.Window, base.Version)
	for _, bid := range bids {
		if _, err := window.Add(bid); err != nil {
			return err
		}
	}

	a.eligible = a.eligibleLocked(now)
	for _, bid := range bids {
		a.noteBidLocked(bid)
	}

	a.phase = PhaseCollecting
	a.window = window
	a.base = base

	id := window.ID
	a.timer = a.clock.AfterFunc(a.cfg.Window, func() { a.deadline(id) })
	a.onWindow(id)

	a.logger.Debug("arbitration window opened",
		zap.String("window", string(id)),
		zap.Uint64("version", base.Version),
		zap.Int("eligible", len(a.eligible)),
	)

	a.maybeResolveEarlyLocked()
	return nil
}

// eligibleLocked lists players whose last bid falls within ActiveWithin of now.
func (a *Arbitrator) eligibleLocked(now time.Time) map[domain.PlayerID]struct{} {
	eligible := map[domain.PlayerID]struct{}{}
	for player, at := range a.lastBidAt {
		if a.cfg.ActiveWithin > 0 && now.Sub(at) > a.cfg.ActiveWithin {
			delete(a.lastBidAt, player)
			continue
		}
		eligible[player] = struct{}{}
	}
	return eligible
}

func (a *Arbitrator) noteBidLocked(bid domain.Bid) {
	if bid.SubmittedAt.After(a.lastBidAt[bid.Player]) {
		a.lastBidAt[bid.Player] = bid.SubmittedAt
	}
}

func (a *Arbitrator) maybeResolveEarlyLocked() {
	if !a.cfg.EarlyResolve || a.phase != PhaseCollecting || len(a.eligible) == 0 {
		return
	}
	for player := range a.eligible {
		if !a.window.HasBidFrom(player) {
			return
		}
	}
	a.closeLocked(domain.CloseAllBid)
}

func (a *Arbitrator) deadline(id domain.WindowID) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed || a.phase != PhaseCollecting || a.window == nil || a.window.ID != id {
		return
	}
	a.closeLocked(domain.CloseDeadline)
}

func (a *Arbitrator) closeLocked(reason domain.CloseReason) {
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}

	window := a.window
	if err := window.Close(reason, a.clock.Now(), a.recentWinners, a.cfg.FairnessRotation); err != nil {
		a.logger.Error("close arbitration window", zap.String("window", string(window.ID)), zap.Error(err))
		return
	}
	a.metrics.WindowClosed(reason, window.Len())
	a.phase = PhaseResolving
	a.onWindow("")

	if window.Winner == nil {
		a.phase = PhaseIdle
		a.window = nil
		return
	}

	base := a.base
	a.wg.Add(1)
	go a.resolve(window, base)
}

func (a *Arbitrator) holdLocked(bid domain.Bid) {
	for i := range a.held {
		if a.held[i].Player == bid.Player {
			if domain.Supersedes(bid, a.held[i]) {
				a.held[i] = bid
			}
			return
		}
	}
	a.held = append(a.held, bid)
}

func (a *Arbitrator) resolve(window *domain.ArbitrationWindow, base domain.GameState) {
	defer a.wg.Done()

	winner := *window.Winner
	logger := a.logger.With(
		zap.String("window", string(window.ID)),
		zap.String("player", string(winner.Player)),
	)

	outcome := TurnOutcome{
		Session:     a.session,
		Window:      window.ID,
		CloseReason: window.CloseReason,
		Winner:      winner,
		Losers:      append([]domain.Bid(nil), window.Losers...),
	}

	state, response, err := a.narrateAndCommit(a.ctx, base, winner, logger)

	a.mu.Lock()
	switch {
	case err == nil:
		outcome.Status = TurnCommitted
		outcome.State = state
		outcome.Response = response
		delete(a.requeues, winner.ID)
		a.recentWinners = domain.AppendRecentWinner(a.recentWinners, winner.Player, a.cfg.FairnessRotation)
		a.metrics.TurnCommitted(a.session, state.Version)
	case errors.Is(err, domain.ErrVersionConflict):
		outcome.Status = TurnFatal
		outcome.Err = err
		a.degraded = true
		a.held = nil
		a.metrics.SessionDegraded()
	default:
		outcome.Err = err
		count := a.requeues[winner.ID]
		if a.closed || count >= a.cfg.MaxRequeues {
			outcome.Status = TurnDropped
			delete(a.requeues, winner.ID)
		} else {
			outcome.Status = TurnRequeued
			a.requeues[winner.ID] = count + 1
			outcome.Requeues = count + 1
		}
	}
	outcome.RecentWinners = append([]domain.PlayerID(nil), a.recentWinners...)
	a.mu.Unlock()

	switch outcome.Status {
	case TurnCommitted:
		logger.Info("turn committed", zap.Uint64("version", outcome.State.Version))
	case TurnFatal:
		logger.Error("session degraded after repeated commit conflicts", zap.Error(outcome.Err))
	default:
		logger.Warn("turn not committed",
			zap.String("status", string(outcome.Status)),
			zap.Int("requeues", outcome.Requeues),
			zap.Error(outcome.Err),
		)
	}

	a.onOutcome(a.ctx, outcome)

	dropped, err := a.openNext(outcome, winner)
	if err != nil {
		logger.Error("open next arbitration window", zap.Error(err), zap.Int("dropped", len(dropped)))
	}
	for _, bid := range dropped {
		a.onOutcome(a.ctx, TurnOutcome{
			Session:       a.session,
			Status:        TurnDropped,
			Winner:        bid,
			RecentWinners: outcome.RecentWinners,
			Err:           err,
		})
	}
}

// openNext returns the arbitrator to Idle and opens a window for the held bids,
// plus the winner when it was requeued. If that window cannot open the bids are
// returned so their players hear they were dropped.
func (a *Arbitrator) openNext(outcome TurnOutcome, winner domain.Bid) ([]domain.Bid, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.phase = PhaseIdle
	a.window = nil
	if a.closed || a.degraded {
		a.held = nil
		return nil, nil
	}

	next := a.held
	a.held = nil
	if outcome.Status == TurnRequeued && !hasPlayer(next, winner.Player) {
		next = append([]domain.Bid{winner}, next...)
	}
	if len(next) == 0 {
		return nil, nil
	}
	for i := range next {
		next[i] = next[i].InWindow("")
	}
	if err := a.openLocked(a.ctx, next); err != nil {
		a.phase = PhaseIdle
		a.window = nil
		for _, bid := range next {
			delete(a.requeues, bid.ID)
		}
		return next, err
	}
	return nil, nil
}

// narrateAndCommit narrates against the state captured at window open. A commit
// conflict earns one re-narration against the fresh state; a second conflict is
// returned as domain.ErrVersionConflict.
func (a *Arbitrator) narrateAndCommit(ctx context.Context, base domain.GameState, winner domain.Bid, logger *zap.Logger) (domain.GameState, string, error) {
	state := base
	for round := 0; round < 2; round++ {
		if round > 0 {
			fresh, err := a.store.Read(ctx, a.session)
			if err != nil {
				return domain.GameState{}, "", fmt.Errorf("reread state: %w", err)
			}
			state = fresh
		}

		narration, err := a.narrate(ctx, state, a.recentTurns(ctx, logger), winner, logger)
		if err != nil {
			return domain.GameState{}, "", err
		}

		delta := narration.Delta
		delta.Player = winner.Player
		delta.Bid = winner.ID
		delta.Action = winner.Text
		delta.Response = narration.Response
		delta.At = a.clock.Now()

		version, err := a.store.Commit(ctx, a.session, state.Version, delta)
		if err == nil {
			committed := state.Apply(delta)
			committed.Version = version
			return committed, narration.Response, nil
		}
		if !errors.Is(err, domain.ErrVersionConflict) {
			return domain.GameState{}, "", fmt.Errorf("commit turn: %w", err)
		}

		a.metrics.VersionConflict()
		logger.Warn("commit conflict", zap.Uint64("version", state.Version), zap.Int("round", round+1))
	}

	return domain.GameState{}, "", fmt.Errorf("commit turn after re-narration: %w", domain.ErrVersionConflict)
}

// recentTurns reads the played turns the narrator gets as context. A failed
// read only costs the context.
func (a *Arbitrator) recentTurns(ctx context.Context, logger *zap.Logger) []domain.Turn {
	if a.cfg.ContextTurns == 0 {
		return nil
	}
	history, err := a.store.History(ctx, a.session)
	if err != nil {
		logger.Warn("read recent turns", zap.Error(err))
		return nil
	}
	return domain.RecentTurns(history, a.cfg.ContextTurns)
}

func (a *Arbitrator) narrate(ctx context.Context, state domain.GameState, recent []domain.Turn, winner domain.Bid, logger *zap.Logger) (domain.Narration, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = a.cfg.RetryInitial
	b.MaxInterval = a.cfg.RetryMax

	attempt := 0
	operation := func() (domain.Narration, error) {
		attempt++
		callCtx, cancel := context.WithTimeout(ctx, a.cfg.NarratorTimeout)
		defer cancel()

		started := a.clock.Now()
		narration, err := a.narrator.Narrate(callCtx, domain.NarrationRequest{
			State:  state.Clone(),
			Action: winner,
			Rules:  a.rules(),
			Recent: recent,
		})
		a.metrics.NarrationAttempt(err == nil, a.clock.Now().Sub(started))
		if err != nil {
			if ctx.Err() != nil {
				return domain.Narration{}, backoff.Permanent(ctx.Err())
			}
			logger.Debug("narration attempt failed", zap.Int("attempt", attempt), zap.Error(err))
			return domain.Narration{}, err
		}
		return narration, nil
	}

	narration, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(a.cfg.NarratorAttempts)),
		backoff.WithMaxElapsedTime(0),
	)
	if err != nil {
		return domain.Narration{}, fmt.Errorf("narrate after %d attempts: %w", attempt, errors.Join(domain.ErrNarrationUnavailable, err))
	}

	return narration, nil
}

func hasPlayer(bids []domain.Bid, player domain.PlayerID) bool {
	for _, bid := range bids {
		if bid.Player == player {
			return true
		}
	}
	return false
}
