package game

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
)

// Ledger tracks every wager against the current round and applies
// payouts once the outcome is known. It holds no lock of its own; the
// coordinator serializes all calls.
type Ledger struct {
	cfg      Config
	wallet   Wallet
	identity Identity
	bets     map[string]*Bet
	order    []string
}

func NewLedger(cfg Config, wallet Wallet, identity Identity) *Ledger {
	return &Ledger{
		cfg:      cfg,
		wallet:   wallet,
		identity: identity,
		bets:     make(map[string]*Bet),
	}
}

// StartRound drops the previous round's bets. A bet never migrates
// across rounds.
func (l *Ledger) StartRound() {
	l.bets = make(map[string]*Bet)
	l.order = l.order[:0]
}

// Restore reloads persisted bets after a process restart.
func (l *Ledger) Restore(bets []Bet) {
	l.StartRound()
	for i := range bets {
		b := bets[i]
		l.bets[b.BetID] = &b
		l.order = append(l.order, b.BetID)
	}
}

func (l *Ledger) walletCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, l.cfg.WalletTimeout)
}

// PlaceBet validates the wager, debits the wallet and records an open
// bet. All-or-nothing: a wallet failure leaves no trace in the ledger.
func (l *Ledger) PlaceBet(ctx context.Context, round *Round, userID string, side Side, stake, autoCashout float64) (*Bet, error) {
	if round == nil || round.Phase != PhaseBetting {
		return nil, ErrInvalidPhase
	}
	if stake < l.cfg.MinStake || stake > l.cfg.MaxStake {
		return nil, ErrInvalidStake
	}
	// The multiplier never runs below 1.0, so a lower threshold would
	// fire on the very first tick.
	if autoCashout != 0 && autoCashout < 1.0 {
		return nil, ErrInvalidCashout
	}
	switch round.GameType {
	case GameTypeDragonTiger:
		if !side.Valid() {
			return nil, ErrInvalidSide
		}
	case GameTypeAviator:
		if side != "" {
			return nil, ErrInvalidSide
		}
	}
	for _, id := range l.order {
		b := l.bets[id]
		if b.UserID == userID && b.Side == side && b.State == BetOpen {
			return nil, ErrDuplicateBet
		}
	}

	wctx, cancel := l.walletCtx(ctx)
	defer cancel()
	if err := l.wallet.Reserve(wctx, userID, stake); err != nil {
		if errors.Is(err, ErrInsufficientFunds) {
			return nil, ErrInsufficientFunds
		}
		return nil, fmt.Errorf("%w: %v", ErrWalletUnavailable, err)
	}

	bet := &Bet{
		BetID:       uuid.NewString(),
		RoundNumber: round.RoundNumber,
		UserID:      userID,
		DisplayName: l.identity.DisplayName(ctx, userID),
		Side:        side,
		Stake:       stake,
		AutoCashout: autoCashout,
		State:       BetOpen,
		PlacedAt:    time.Now(),
	}
	l.bets[bet.BetID] = bet
	l.order = append(l.order, bet.BetID)

	log.Printf("[BET] %s staked %.2f on %s round %d (ID: %s)",
		userID, stake, round.GameType, round.RoundNumber, bet.BetID)
	return bet, nil
}

// CashOut pays an open aviator bet at the current live multiplier.
func (l *Ledger) CashOut(ctx context.Context, round *Round, userID, betID string) (*Bet, error) {
	if round == nil || round.Phase != PhaseRunning {
		return nil, ErrInvalidPhase
	}
	bet, ok := l.bets[betID]
	if !ok || bet.UserID != userID {
		return nil, ErrNotFound
	}
	if bet.State != BetOpen {
		return nil, ErrAlreadySettled
	}
	return l.cashOutAt(ctx, bet, round.Multiplier)
}

func (l *Ledger) cashOutAt(ctx context.Context, bet *Bet, multiplier float64) (*Bet, error) {
	payout := roundTo2(bet.Stake * multiplier)

	wctx, cancel := l.walletCtx(ctx)
	defer cancel()
	if err := l.wallet.Credit(wctx, bet.UserID, payout); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWalletUnavailable, err)
	}

	bet.State = BetCashedOut
	bet.SettledOdds = multiplier
	bet.Payout = payout

	log.Printf("[CASHOUT] %s cashed out at %.2fx (payout %.2f)", bet.UserID, multiplier, payout)
	return bet, nil
}

// Cancel refunds an open bet while its round is still accepting bets.
func (l *Ledger) Cancel(ctx context.Context, round *Round, userID, betID string) (*Bet, error) {
	if round == nil || round.Phase != PhaseBetting {
		return nil, ErrInvalidPhase
	}
	bet, ok := l.bets[betID]
	if !ok || bet.UserID != userID {
		return nil, ErrNotFound
	}
	if bet.State != BetOpen {
		return nil, ErrAlreadySettled
	}

	wctx, cancel := l.walletCtx(ctx)
	defer cancel()
	if err := l.wallet.Credit(wctx, bet.UserID, bet.Stake); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWalletUnavailable, err)
	}

	bet.State = BetCancelled
	log.Printf("[BET] %s cancelled bet %s (refund %.2f)", userID, betID, bet.Stake)
	return bet, nil
}

// AutoCashOutCheck runs every aviator tick so a threshold is never
// skipped by a tick that jumps past it: the first tick at or above the
// target pays, at that tick's multiplier.
func (l *Ledger) AutoCashOutCheck(ctx context.Context, round *Round) {
	for _, id := range l.order {
		bet := l.bets[id]
		if bet.State == BetOpen && bet.AutoCashout > 0 && round.Multiplier >= bet.AutoCashout {
			if _, err := l.cashOutAt(ctx, bet, round.Multiplier); err != nil {
				log.Printf("[CASHOUT] auto cashout failed for bet %s: %v", id, err)
			}
		}
	}
}

// SettleRound closes every bet still open once the round's outcome is
// recorded. Crashed aviator bets lose; dragontiger bets on the winning
// side pay stake times the side's odds.
func (l *Ledger) SettleRound(ctx context.Context, round *Round) {
	outcome := round.Outcome
	settled := 0
	for _, id := range l.order {
		bet := l.bets[id]
		if bet.State != BetOpen {
			continue
		}
		bet.State = BetSettled
		settled++

		if round.GameType == GameTypeDragonTiger && outcome != nil && bet.Side == outcome.Winner {
			odds := l.cfg.sideOdds(bet.Side)
			bet.SettledOdds = odds
			bet.Payout = roundTo2(bet.Stake * odds)

			if err := l.creditWithRetry(ctx, bet.UserID, bet.Payout); err != nil {
				// Keep the unpaid payout visible for reconciliation.
				bet.PayoutFailed = true
				log.Printf("[SETTLE] credit failed for bet %s (payout %.2f unpaid): %v", id, bet.Payout, err)
			}
		}
	}
	log.Printf("[SETTLE] %s round %d settled %d open bets", round.GameType, round.RoundNumber, settled)
}

// creditWithRetry pays out with one immediate retry on failure. Each
// attempt gets its own wallet deadline.
func (l *Ledger) creditWithRetry(ctx context.Context, userID string, amount float64) error {
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		wctx, cancel := l.walletCtx(ctx)
		err = l.wallet.Credit(wctx, userID, amount)
		cancel()
		if err == nil {
			return nil
		}
	}
	return err
}

// SideStakes totals open stakes per side for the liability-minimizing
// outcome choice.
func (l *Ledger) SideStakes() map[Side]float64 {
	stakes := make(map[Side]float64, len(Sides))
	for _, bet := range l.bets {
		if bet.State == BetOpen {
			stakes[bet.Side] += bet.Stake
		}
	}
	return stakes
}

// Bets returns copies of every bet of the current round, in placement
// order.
func (l *Ledger) Bets() []Bet {
	out := make([]Bet, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, *l.bets[id])
	}
	return out
}

// Views returns the redacted per-participant view served in snapshots.
func (l *Ledger) Views() []BetView {
	out := make([]BetView, 0, len(l.order))
	for _, id := range l.order {
		b := l.bets[id]
		out = append(out, BetView{
			DisplayName: b.DisplayName,
			Side:        b.Side,
			Stake:       b.Stake,
			State:       b.State,
		})
	}
	return out
}
