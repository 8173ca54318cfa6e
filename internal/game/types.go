package game

import (
	"context"
	"time"
)

// RoundState is the lifecycle phase of a round. Transitions are strictly
// forward: WAITING -> BETTING -> RUNNING -> CRASHED -> SETTLED.
type RoundState string

const (
	StateWaiting RoundState = "WAITING"
	StateBetting RoundState = "BETTING"
	StateRunning RoundState = "RUNNING"
	StateCrashed RoundState = "CRASHED"
	StateSettled RoundState = "SETTLED"
)

type BetStatus string

const (
	// BetPending is the reservation window between duplicate-check and the
	// wallet debit completing. Pending bets block duplicates but are never
	// settled as losses.
	BetPending   BetStatus = "PENDING"
	BetActive    BetStatus = "ACTIVE"
	BetCashedOut BetStatus = "CASHED_OUT"
	BetLost      BetStatus = "LOST"
)

// Round is the mutable per-round state. All fields are guarded by the
// engine mutex; CrashMultiplier is immutable once sealed and never leaves
// the server before the round crashes.
type Round struct {
	ID                string     `json:"round_id"`
	Sequence          uint64     `json:"sequence"`
	Seed              string     `json:"-"`
	Commitment        string     `json:"commitment"`
	CrashMultiplier   float64    `json:"-"`
	CurrentMultiplier float64    `json:"current_multiplier"`
	State             RoundState `json:"state"`
	BettingDeadline   time.Time  `json:"betting_deadline"`
	StartedAt         time.Time  `json:"started_at,omitempty"`
	EndedAt           time.Time  `json:"ended_at,omitempty"`
}

type Bet struct {
	ID                string    `json:"bet_id"`
	PlayerID          string    `json:"player_id"`
	RoundID           string    `json:"round_id"`
	Amount            float64   `json:"amount"`
	Currency          string    `json:"currency"`
	USDAmount         float64   `json:"usd_amount"`
	PriceAtTime       float64   `json:"price_at_time"`
	AutoCashout       float64   `json:"auto_cashout,omitempty"`
	PlacedAt          time.Time `json:"placed_at"`
	Status            BetStatus `json:"status"`
	CashOutMultiplier float64   `json:"cashout_multiplier,omitempty"`
	Payout            float64   `json:"payout,omitempty"`
}

// Snapshot is the externally visible round state. The crash point is
// populated only after the round has crashed.
type Snapshot struct {
	Sequence          uint64     `json:"sequence"`
	RoundID           string     `json:"round_id"`
	State             RoundState `json:"state"`
	Commitment        string     `json:"commitment,omitempty"`
	CurrentMultiplier float64    `json:"current_multiplier"`
	CrashMultiplier   float64    `json:"crash_multiplier,omitempty"`
	BettingAllowed    bool       `json:"betting_allowed"`
	TotalBets         int        `json:"total_bets"`
}

type BetRequest struct {
	PlayerID    string  `json:"player_id"`
	USDAmount   float64 `json:"usd_amount"`
	Currency    string  `json:"currency"`
	AutoCashout float64 `json:"auto_cashout,omitempty"`
}

type BetResult struct {
	BetID            string  `json:"bet_id"`
	CryptoAmount     float64 `json:"crypto_amount"`
	PriceAtTime      float64 `json:"price_at_time"`
	RemainingBalance float64 `json:"remaining_balance"`
}

type CashOutResult struct {
	Multiplier float64 `json:"multiplier"`
	Payout     float64 `json:"payout"`
	Currency   string  `json:"currency"`
	NewBalance float64 `json:"new_balance"`
}

// Event names published to the Broadcaster.
const (
	EventRoundStart       = "round_start"
	EventRoundRunning     = "round_running"
	EventMultiplierUpdate = "multiplier_update"
	EventRoundEnd         = "round_end"
	EventBetPlaced        = "bet_placed"
	EventPlayerCashout    = "player_cashout"
)

type RoundStartPayload struct {
	Sequence        uint64 `json:"sequence"`
	RoundID         string `json:"round_id"`
	Commitment      string `json:"commitment"`
	BettingWindowMs int64  `json:"betting_window_ms"`
}

type RoundRunningPayload struct {
	Sequence  uint64    `json:"sequence"`
	RoundID   string    `json:"round_id"`
	StartedAt time.Time `json:"started_at"`
}

type MultiplierUpdatePayload struct {
	Sequence   uint64  `json:"sequence"`
	Multiplier float64 `json:"multiplier"`
}

type RoundEndPayload struct {
	Sequence        uint64    `json:"sequence"`
	RoundID         string    `json:"round_id"`
	CrashMultiplier float64   `json:"crash_multiplier"`
	FinalMultiplier float64   `json:"final_multiplier"`
	Seed            string    `json:"seed"`
	EndedAt         time.Time `json:"ended_at"`
	TotalBets       int       `json:"total_bets"`
	TotalCashouts   int       `json:"total_cashouts"`
}

type BetPlacedPayload struct {
	Sequence uint64  `json:"sequence"`
	PlayerID string  `json:"player_id"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

type PlayerCashoutPayload struct {
	Sequence   uint64  `json:"sequence"`
	PlayerID   string  `json:"player_id"`
	Multiplier float64 `json:"multiplier"`
	Payout     float64 `json:"payout"`
}

// Broadcaster fans engine events out to connected clients. Publish must not
// block; the engine calls it while holding round state.
type Broadcaster interface {
	Publish(event string, payload interface{})
}

// Wallet is the external balance collaborator. Debit returns
// ErrInsufficientBalance without mutating anything when funds are short.
type Wallet interface {
	Balance(ctx context.Context, playerID string) (float64, error)
	Debit(ctx context.Context, playerID string, amount float64) (float64, error)
	Credit(ctx context.Context, playerID string, amount float64) (float64, error)
}

// PriceOracle quotes the unit price in USD for a supported currency.
type PriceOracle interface {
	PriceOf(ctx context.Context, currency string) (float64, error)
}

// RoundStore is the write-through persistence collaborator. Calls are made
// off the tick path and failures never abort a round, except CreateRound,
// which gates opening the betting window.
type RoundStore interface {
	CreateRound(ctx context.Context, round *Round) error
	FinishRound(ctx context.Context, round *Round, totalBets, totalCashouts int) error
	SaveBet(ctx context.Context, bet *Bet) error
	FinalizeBet(ctx context.Context, bet *Bet) error
}
