package game

import "errors"

// Command errors surfaced to callers. None of these are fatal to the
// coordinator: a failed command rejects, it never corrupts other bets.
var (
	ErrInvalidPhase      = errors.New("operation not allowed in current phase")
	ErrInsufficientFunds = errors.New("insufficient balance")
	ErrWalletUnavailable = errors.New("wallet unavailable")
	ErrDuplicateBet      = errors.New("bet already placed for this side")
	ErrAlreadySettled    = errors.New("bet already settled")
	ErrNotFound          = errors.New("not found")
	ErrInvalidStake      = errors.New("stake outside allowed range")
	ErrInvalidSide       = errors.New("invalid side")
	ErrInvalidCashout    = errors.New("auto cashout threshold below 1.0")
)

// ErrHalted is returned once the coordinator has stopped round
// progression after an unrecoverable outcome-source failure.
var ErrHalted = errors.New("round progression halted")
