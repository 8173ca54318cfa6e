package game

import "errors"

// Command errors surfaced to callers. State-conflict errors leave the round
// and every other player's bet untouched.
var (
	ErrNotAuthenticated    = errors.New("player not authenticated")
	ErrWindowClosed        = errors.New("betting window is closed")
	ErrDuplicateBet        = errors.New("player already has a bet this round")
	ErrInvalidAmount       = errors.New("bet amount out of bounds")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrUnsupportedCurrency = errors.New("unsupported currency")
	ErrNoActiveBet         = errors.New("no active bet for player")
	ErrAlreadyResolved     = errors.New("bet already resolved")
	ErrRoundCrashed        = errors.New("round already crashed")
	ErrEngineStopped       = errors.New("engine stopped")
)
