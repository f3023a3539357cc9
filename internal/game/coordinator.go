package game

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strconv"
	"sync"
	"time"
)

// maxCatchUpSteps bounds how many multiplier ticks a single Tick call
// may replay when the driver was away.
const maxCatchUpSteps = 100

// CoordinatorDeps are the collaborators a coordinator consumes.
// Pattern, Store and Hub may be nil; Wallet and Identity may not.
type CoordinatorDeps struct {
	Wallet   Wallet
	Identity Identity
	Pattern  PatternStore
	Store    RoundStore
	Hub      *Hub
}

// Coordinator is the single authority for one game type's round. It
// owns the round clock, the outcome generation and the bet ledger, and
// serializes every mutation behind its lock. Snapshots are consistent
// copies taken under a read lock. The two game types share nothing, so
// their coordinators run fully in parallel.
type Coordinator struct {
	mu       sync.RWMutex
	cfg      Config
	gameType GameType
	rng      *rand.Rand
	ledger   *Ledger
	pattern  PatternStore
	store    RoundStore
	hub      *Hub

	round    *Round
	history  []Outcome
	lastStep time.Time
	haltErr  error
}

func NewCoordinator(cfg Config, gameType GameType, rng *rand.Rand, deps CoordinatorDeps) (*Coordinator, error) {
	if !gameType.Valid() {
		return nil, fmt.Errorf("unknown game type %q", gameType)
	}
	if rng == nil {
		return nil, errors.New("coordinator requires a random source")
	}
	if deps.Wallet == nil || deps.Identity == nil {
		return nil, errors.New("coordinator requires wallet and identity collaborators")
	}

	c := &Coordinator{
		cfg:      cfg,
		gameType: gameType,
		rng:      rng,
		ledger:   NewLedger(cfg, deps.Wallet, deps.Identity),
		pattern:  deps.Pattern,
		store:    deps.Store,
		hub:      deps.Hub,
	}

	if deps.Store != nil {
		round, bets, err := deps.Store.LoadRound(context.Background(), gameType)
		switch {
		case err == nil:
			c.round = round
			c.ledger.Restore(bets)
			log.Printf("[GAME] %s resumed round %d in phase %s", gameType, round.RoundNumber, round.Phase)
		case errors.Is(err, ErrNotFound):
		default:
			return nil, fmt.Errorf("restore %s round: %w", gameType, err)
		}
	}
	if c.round == nil {
		c.round = newRound(cfg, gameType, 1, time.Now())
	}
	return c, nil
}

func (c *Coordinator) GameType() GameType { return c.gameType }

// Halted reports the fatal error that stopped round progression, if any.
func (c *Coordinator) Halted() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.haltErr
}

// Tick advances the round if a transition is due. It is safe to call
// from any number of racing pollers: calling before the next due
// transition is a no-op, so redundant drivers cannot double-advance.
func (c *Coordinator) Tick(ctx context.Context, now time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.haltErr != nil {
		return fmt.Errorf("%w: %v", ErrHalted, c.haltErr)
	}

	switch c.round.Phase {
	case PhaseBetting:
		if !phaseDue(c.round, now) {
			return nil
		}
		return c.beginLive(ctx, now)
	case PhaseRunning:
		return c.stepRunning(ctx, now)
	case PhaseRevealing:
		c.updateReveal(now)
		if !phaseDue(c.round, now) {
			return nil
		}
		return c.resolve(ctx, now)
	case PhaseResolved:
		if !phaseDue(c.round, now) {
			return nil
		}
		c.startNextRound(ctx, now)
	}
	return nil
}

// beginLive leaves the betting phase: aviator starts its multiplier
// climb, dragontiger decides its outcome up front and starts the
// reveal.
func (c *Coordinator) beginLive(ctx context.Context, now time.Time) error {
	forced, ok, err := c.peekPattern(ctx)
	if err != nil {
		// Outcome source failure is fatal for this game type. Never
		// mask it with an unresolved or improvised round.
		c.haltErr = err
		log.Printf("[GAME] %s halted: %v", c.gameType, err)
		return fmt.Errorf("%w: %v", ErrHalted, err)
	}

	switch c.gameType {
	case GameTypeAviator:
		if ok {
			if target, perr := strconv.ParseFloat(forced, 64); perr == nil && target >= 1.0 {
				c.round.CrashTarget = target
				log.Printf("[GAME] aviator round %d crash point forced to %.2fx", c.round.RoundNumber, target)
			} else {
				log.Printf("[GAME] aviator round %d ignoring bad pattern entry %q", c.round.RoundNumber, forced)
			}
			c.popPattern(ctx)
		}
		c.round.Phase = PhaseRunning
		c.round.Multiplier = 1.0
		c.round.PhaseDeadline = now
		c.lastStep = now

	case GameTypeDragonTiger:
		winner := Side("")
		if ok {
			if s := Side(forced); s.Valid() {
				winner = s
				log.Printf("[GAME] dragontiger round %d winner forced to %s", c.round.RoundNumber, s)
			} else {
				log.Printf("[GAME] dragontiger round %d ignoring bad pattern entry %q", c.round.RoundNumber, forced)
			}
			c.popPattern(ctx)
		}
		if winner == "" {
			winner = chooseWinner(c.ledger.SideStakes(), c.rng)
		}
		dragon, tiger := drawCards(winner, c.rng)
		c.round.Winner = winner
		c.round.DragonCard = &dragon
		c.round.TigerCard = &tiger
		c.round.Revealed = 1
		c.round.Phase = PhaseRevealing
		c.round.PhaseDeadline = now.Add(c.cfg.RevealWindow)
	}

	c.persist(ctx)
	c.broadcast("phase", c.snapshotLocked())
	log.Printf("[GAME] %s round %d entered %s", c.gameType, c.round.RoundNumber, c.round.Phase)
	return nil
}

// stepRunning replays every multiplier tick that became due since the
// last one. Auto cash-outs are evaluated after each increment so a
// threshold is honored on the first tick at or above it, including the
// crash tick itself.
func (c *Coordinator) stepRunning(ctx context.Context, now time.Time) error {
	if c.lastStep.IsZero() {
		c.lastStep = now
		return nil
	}

	stepped := false
	for steps := 0; steps < maxCatchUpSteps; steps++ {
		next := c.lastStep.Add(c.cfg.TickInterval)
		if now.Before(next) {
			break
		}
		c.lastStep = next
		stepped = true

		crashed := stepMultiplier(c.cfg, c.round, c.rng)
		c.ledger.AutoCashOutCheck(ctx, c.round)
		if crashed {
			return c.resolve(ctx, now)
		}
	}
	if stepped {
		c.broadcast("multiplier", map[string]interface{}{
			"game_type":  c.gameType,
			"round":      c.round.RoundNumber,
			"multiplier": c.round.Multiplier,
		})
	}
	return nil
}

// updateReveal discloses the duel cards incrementally: the dragon card
// opens the phase, the tiger card turns at the halfway mark.
func (c *Coordinator) updateReveal(now time.Time) {
	start := c.round.PhaseDeadline.Add(-c.cfg.RevealWindow)
	if now.Sub(start) >= c.cfg.RevealWindow/2 {
		c.round.Revealed = 2
	}
}

// resolve records the round's outcome, appends it to history and
// settles every bet still open. It runs exactly once per round; the
// phase transition guards re-entry.
func (c *Coordinator) resolve(ctx context.Context, now time.Time) error {
	outcome := &Outcome{
		GameType:    c.gameType,
		RoundNumber: c.round.RoundNumber,
	}
	switch c.gameType {
	case GameTypeAviator:
		outcome.CrashPoint = c.round.Multiplier
	case GameTypeDragonTiger:
		c.round.Revealed = 2
		outcome.Winner = c.round.Winner
		outcome.DragonCard = c.round.DragonCard
		outcome.TigerCard = c.round.TigerCard
	}

	c.round.Outcome = outcome
	c.round.Phase = PhaseResolved
	c.round.PhaseDeadline = now.Add(c.cfg.ResolvedDelay)

	// Most recent first, fixed capacity.
	c.history = append([]Outcome{*outcome}, c.history...)
	if len(c.history) > c.cfg.HistorySize {
		c.history = c.history[:c.cfg.HistorySize]
	}

	c.ledger.SettleRound(ctx, c.round)
	c.persist(ctx)
	c.broadcast("settled", c.snapshotLocked())

	if c.gameType == GameTypeAviator {
		log.Printf("[GAME] aviator round %d crashed at %.2fx", c.round.RoundNumber, outcome.CrashPoint)
	} else {
		log.Printf("[GAME] dragontiger round %d won by %s", c.round.RoundNumber, outcome.Winner)
	}
	return nil
}

func (c *Coordinator) startNextRound(ctx context.Context, now time.Time) {
	number := c.round.RoundNumber + 1
	c.round = newRound(c.cfg, c.gameType, number, now)
	c.ledger.StartRound()
	c.lastStep = time.Time{}
	c.persist(ctx)
	c.broadcast("phase", c.snapshotLocked())
	log.Printf("[GAME] %s round %d open for bets", c.gameType, number)
}

func (c *Coordinator) peekPattern(ctx context.Context) (string, bool, error) {
	if c.pattern == nil {
		return "", false, nil
	}
	return c.pattern.PeekNext(ctx, c.gameType)
}

func (c *Coordinator) popPattern(ctx context.Context) {
	if err := c.pattern.PopNext(ctx, c.gameType); err != nil {
		log.Printf("[GAME] %s failed to pop pattern entry: %v", c.gameType, err)
	}
}

// PlaceBet records a wager against the current round.
func (c *Coordinator) PlaceBet(ctx context.Context, userID string, side Side, stake, autoCashout float64) (*Bet, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	bet, err := c.ledger.PlaceBet(ctx, c.round, userID, side, stake, autoCashout)
	if err != nil {
		return nil, err
	}
	c.persist(ctx)
	c.broadcast("bet_placed", BetView{
		DisplayName: bet.DisplayName,
		Side:        bet.Side,
		Stake:       bet.Stake,
		State:       bet.State,
	})
	return bet, nil
}

// CashOut pays an open aviator bet at the live multiplier.
func (c *Coordinator) CashOut(ctx context.Context, userID, betID string) (*Bet, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	bet, err := c.ledger.CashOut(ctx, c.round, userID, betID)
	if err != nil {
		return nil, err
	}
	c.persist(ctx)
	return bet, nil
}

// CancelBet refunds an open bet while betting is still open.
func (c *Coordinator) CancelBet(ctx context.Context, userID, betID string) (*Bet, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	bet, err := c.ledger.Cancel(ctx, c.round, userID, betID)
	if err != nil {
		return nil, err
	}
	c.persist(ctx)
	return bet, nil
}

// Snapshot returns a consistent copy of the current round for pollers.
// Safe to call arbitrarily often, concurrently with mutations.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshotLocked()
}

func (c *Coordinator) snapshotLocked() Snapshot {
	snap := Snapshot{
		GameType:      c.gameType,
		RoundNumber:   c.round.RoundNumber,
		Phase:         c.round.Phase,
		PhaseDeadline: c.round.PhaseDeadline,
		History:       append([]Outcome(nil), c.history...),
		OpenBets:      c.ledger.Views(),
	}
	if c.gameType == GameTypeAviator {
		snap.Multiplier = c.round.Multiplier
	}
	if c.round.Revealed >= 1 && c.round.DragonCard != nil {
		card := *c.round.DragonCard
		snap.DragonCard = &card
	}
	if c.round.Revealed >= 2 && c.round.TigerCard != nil {
		card := *c.round.TigerCard
		snap.TigerCard = &card
	}
	if c.round.Phase == PhaseResolved {
		snap.Winner = c.round.Winner
	}
	return snap
}

func (c *Coordinator) persist(ctx context.Context) {
	if c.store == nil {
		return
	}
	roundCopy := *c.round
	if err := c.store.SaveRound(ctx, &roundCopy, c.ledger.Bets()); err != nil {
		log.Printf("[GAME] %s failed to persist round %d: %v", c.gameType, c.round.RoundNumber, err)
	}
}

func (c *Coordinator) broadcast(msgType string, data interface{}) {
	if c.hub == nil {
		return
	}
	c.hub.Broadcast(map[string]interface{}{
		"type":      msgType,
		"game_type": c.gameType,
		"data":      data,
	})
}
