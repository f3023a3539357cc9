package game

import "time"

// nextPhase returns the phase that follows p for the given game type.
// The order is fixed: betting, then the game's live/reveal phase, then
// resolved, then betting of the next round. No phase is ever skipped.
func nextPhase(gameType GameType, p Phase) Phase {
	switch p {
	case PhaseBetting:
		if gameType == GameTypeAviator {
			return PhaseRunning
		}
		return PhaseRevealing
	case PhaseRunning, PhaseRevealing:
		return PhaseResolved
	case PhaseResolved:
		return PhaseBetting
	}
	return PhaseBetting
}

// phaseDue reports whether the round's deadline-driven transition is
// due. The aviator RUNNING phase is outcome-driven and never reports
// due here; the crash stepper decides when it ends.
func phaseDue(r *Round, now time.Time) bool {
	if r.Phase == PhaseRunning {
		return false
	}
	return !now.Before(r.PhaseDeadline)
}

// newRound constructs the next round for a game type, opening in the
// betting phase.
func newRound(cfg Config, gameType GameType, number int64, now time.Time) *Round {
	return &Round{
		GameType:      gameType,
		RoundNumber:   number,
		Phase:         PhaseBetting,
		PhaseDeadline: now.Add(cfg.BettingWindow),
		StartedAt:     now,
		Multiplier:    1.0,
	}
}
