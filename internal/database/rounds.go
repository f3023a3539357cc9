package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"skyduel/internal/game"
)

// RoundStore persists the current round and its bets per game type, one
// row each. Only the active round matters for restart recovery; history
// and sessions are rebuilt from play.
type RoundStore struct {
	db *sql.DB
}

func NewRoundStore(db *sql.DB) *RoundStore {
	return &RoundStore{db: db}
}

// persistedRound mirrors game.Round with every field serialized,
// including the outcome fields the public JSON tags hide from clients.
type persistedRound struct {
	GameType      game.GameType `json:"game_type"`
	RoundNumber   int64         `json:"round_number"`
	Phase         game.Phase    `json:"phase"`
	PhaseDeadline time.Time     `json:"phase_deadline"`
	StartedAt     time.Time     `json:"started_at"`
	Multiplier    float64       `json:"multiplier"`
	CrashTarget   float64       `json:"crash_target"`
	Winner        game.Side     `json:"winner"`
	DragonCard    *game.Card    `json:"dragon_card"`
	TigerCard     *game.Card    `json:"tiger_card"`
	Revealed      int           `json:"revealed"`
	Outcome       *game.Outcome `json:"outcome"`
}

func toPersisted(r *game.Round) persistedRound {
	return persistedRound{
		GameType:      r.GameType,
		RoundNumber:   r.RoundNumber,
		Phase:         r.Phase,
		PhaseDeadline: r.PhaseDeadline,
		StartedAt:     r.StartedAt,
		Multiplier:    r.Multiplier,
		CrashTarget:   r.CrashTarget,
		Winner:        r.Winner,
		DragonCard:    r.DragonCard,
		TigerCard:     r.TigerCard,
		Revealed:      r.Revealed,
		Outcome:       r.Outcome,
	}
}

func (p persistedRound) toRound() *game.Round {
	return &game.Round{
		GameType:      p.GameType,
		RoundNumber:   p.RoundNumber,
		Phase:         p.Phase,
		PhaseDeadline: p.PhaseDeadline,
		StartedAt:     p.StartedAt,
		Multiplier:    p.Multiplier,
		CrashTarget:   p.CrashTarget,
		Winner:        p.Winner,
		DragonCard:    p.DragonCard,
		TigerCard:     p.TigerCard,
		Revealed:      p.Revealed,
		Outcome:       p.Outcome,
	}
}

func (s *RoundStore) SaveRound(ctx context.Context, round *game.Round, bets []game.Bet) error {
	roundJSON, err := json.Marshal(toPersisted(round))
	if err != nil {
		return fmt.Errorf("marshal round: %w", err)
	}
	betsJSON, err := json.Marshal(bets)
	if err != nil {
		return fmt.Errorf("marshal bets: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO game_rounds (game_type, round, bets, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (game_type)
		DO UPDATE SET round = $2, bets = $3, updated_at = now()`,
		string(round.GameType), roundJSON, betsJSON)
	if err != nil {
		return fmt.Errorf("save round: %w", err)
	}
	return nil
}

func (s *RoundStore) LoadRound(ctx context.Context, gameType game.GameType) (*game.Round, []game.Bet, error) {
	var roundJSON, betsJSON []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT round, bets FROM game_rounds WHERE game_type = $1`,
		string(gameType)).Scan(&roundJSON, &betsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, game.ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load round: %w", err)
	}

	var p persistedRound
	if err := json.Unmarshal(roundJSON, &p); err != nil {
		return nil, nil, fmt.Errorf("unmarshal round: %w", err)
	}
	var bets []game.Bet
	if err := json.Unmarshal(betsJSON, &bets); err != nil {
		return nil, nil, fmt.Errorf("unmarshal bets: %w", err)
	}
	return p.toRound(), bets, nil
}
