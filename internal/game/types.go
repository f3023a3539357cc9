package game

import (
	"context"
	"time"
)

type GameType string

const (
	GameTypeAviator     GameType = "aviator"
	GameTypeDragonTiger GameType = "dragontiger"
)

func (g GameType) Valid() bool {
	return g == GameTypeAviator || g == GameTypeDragonTiger
}

// Phase is the stage a round is currently in. Aviator rounds move
// BETTING -> RUNNING -> RESOLVED, dragontiger rounds move
// BETTING -> REVEALING -> RESOLVED. RESOLVED loops back to BETTING
// of the next round once the display delay elapses.
type Phase string

const (
	PhaseBetting   Phase = "BETTING"
	PhaseRunning   Phase = "RUNNING"
	PhaseRevealing Phase = "REVEALING"
	PhaseResolved  Phase = "RESOLVED"
)

type Side string

const (
	SideDragon Side = "dragon"
	SideTiger  Side = "tiger"
	SideTie    Side = "tie"
)

// Sides lists every wagerable side of the card duel. Tie-breaks and
// no-stake picks draw uniformly from here.
var Sides = []Side{SideDragon, SideTiger, SideTie}

func (s Side) Valid() bool {
	return s == SideDragon || s == SideTiger || s == SideTie
}

type BetState string

const (
	BetOpen      BetState = "open"
	BetCashedOut BetState = "cashed_out"
	BetCancelled BetState = "cancelled"
	BetSettled   BetState = "settled"
)

// Card ranks run 2..14 with ace high. Suit is cosmetic only.
type Card struct {
	Rank int    `json:"rank"`
	Suit string `json:"suit"`
}

var Suits = []string{"spades", "hearts", "diamonds", "clubs"}

const (
	MinRank = 2
	MaxRank = 14
)

// Outcome is the decided result of one round: a crash point for
// aviator, a winning side plus the revealed cards for dragontiger.
type Outcome struct {
	GameType    GameType `json:"game_type"`
	RoundNumber int64    `json:"round_number"`
	CrashPoint  float64  `json:"crash_point,omitempty"`
	Winner      Side     `json:"winner,omitempty"`
	DragonCard  *Card    `json:"dragon_card,omitempty"`
	TigerCard   *Card    `json:"tiger_card,omitempty"`
}

// Bet is one participant's wager against one round. Stake is immutable
// once placed; SettledOdds and Payout are populated on settlement.
type Bet struct {
	BetID       string    `json:"bet_id"`
	RoundNumber int64     `json:"round_number"`
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Side        Side      `json:"side,omitempty"`
	Stake       float64   `json:"stake"`
	AutoCashout float64   `json:"auto_cashout,omitempty"`
	State       BetState  `json:"state"`
	SettledOdds float64   `json:"settled_odds,omitempty"`
	Payout      float64   `json:"payout,omitempty"`
	// PayoutFailed marks a settled winning bet whose wallet credit
	// did not go through, for operator reconciliation.
	PayoutFailed bool      `json:"payout_failed,omitempty"`
	PlacedAt     time.Time `json:"placed_at"`
}

// Round is the single current instance of a game type.
type Round struct {
	GameType      GameType  `json:"game_type"`
	RoundNumber   int64     `json:"round_number"`
	Phase         Phase     `json:"phase"`
	PhaseDeadline time.Time `json:"phase_deadline"`
	StartedAt     time.Time `json:"started_at"`

	// Aviator live state. CrashTarget is non-zero only when an
	// operator pattern forces this round's crash point.
	Multiplier  float64 `json:"multiplier,omitempty"`
	CrashTarget float64 `json:"-"`

	// Dragontiger state, decided at the betting deadline and
	// disclosed incrementally while REVEALING.
	Winner     Side  `json:"-"`
	DragonCard *Card `json:"-"`
	TigerCard  *Card `json:"-"`
	Revealed   int   `json:"-"`

	Outcome *Outcome `json:"outcome,omitempty"`
}

// BetView is the redacted form of another participant's bet exposed in
// state snapshots.
type BetView struct {
	DisplayName string   `json:"display_name"`
	Side        Side     `json:"side,omitempty"`
	Stake       float64  `json:"stake"`
	State       BetState `json:"state"`
}

// Snapshot is the full read-only view served to pollers.
type Snapshot struct {
	GameType      GameType  `json:"game_type"`
	RoundNumber   int64     `json:"round_number"`
	Phase         Phase     `json:"phase"`
	PhaseDeadline time.Time `json:"phase_deadline"`
	Multiplier    float64   `json:"multiplier,omitempty"`
	Winner        Side      `json:"winner,omitempty"`
	DragonCard    *Card     `json:"dragon_card,omitempty"`
	TigerCard     *Card     `json:"tiger_card,omitempty"`
	History       []Outcome `json:"history"`
	ActivePlayers int       `json:"active_players"`
	OpenBets      []BetView `json:"open_bets"`
}

// Wallet is the external balance collaborator. Reserve debits the
// stake or fails without side effects; Credit pays out. Both must
// respect context deadlines.
type Wallet interface {
	Reserve(ctx context.Context, userID string, amount float64) error
	Credit(ctx context.Context, userID string, amount float64) error
}

// Identity resolves a participant's display name for snapshots.
type Identity interface {
	DisplayName(ctx context.Context, userID string) string
}

// RoundStore persists the current round and its open bets so a process
// restart does not corrupt an in-flight round. History and sessions
// are allowed to be lost.
type RoundStore interface {
	SaveRound(ctx context.Context, round *Round, bets []Bet) error
	LoadRound(ctx context.Context, gameType GameType) (*Round, []Bet, error)
}
