package database

import (
	"context"
	"fmt"
	"time"

	"rocket/internal/game"
)

// RoundStore persists rounds and bets through the shared pool. It
// implements game.RoundStore.
type RoundStore struct {
	db Service
}

func NewRoundStore(db Service) *RoundStore {
	return &RoundStore{db: db}
}

// RoundSummary is a finished round as returned by RecentRounds. The seed is
// included so players can verify the published crash point.
type RoundSummary struct {
	RoundID         string    `json:"round_id"`
	Sequence        uint64    `json:"sequence"`
	Seed            string    `json:"seed"`
	Commitment      string    `json:"commitment"`
	CrashMultiplier float64   `json:"crash_multiplier"`
	TotalBets       int       `json:"total_bets"`
	TotalCashouts   int       `json:"total_cashouts"`
	EndedAt         time.Time `json:"ended_at"`
}

func (s *RoundStore) CreateRound(ctx context.Context, round *game.Round) error {
	_, err := s.db.Pool().Exec(ctx,
		`INSERT INTO rounds (id, sequence, seed, commitment, crash_multiplier, state, betting_deadline)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		round.ID, round.Sequence, round.Seed, round.Commitment,
		round.CrashMultiplier, string(round.State), round.BettingDeadline)
	if err != nil {
		return fmt.Errorf("create round: %w", err)
	}
	return nil
}

func (s *RoundStore) FinishRound(ctx context.Context, round *game.Round, totalBets, totalCashouts int) error {
	_, err := s.db.Pool().Exec(ctx,
		`UPDATE rounds
		 SET state = $2, started_at = $3, ended_at = $4, total_bets = $5, total_cashouts = $6
		 WHERE id = $1`,
		round.ID, string(round.State), round.StartedAt, round.EndedAt, totalBets, totalCashouts)
	if err != nil {
		return fmt.Errorf("finish round: %w", err)
	}
	return nil
}

func (s *RoundStore) SaveBet(ctx context.Context, bet *game.Bet) error {
	_, err := s.db.Pool().Exec(ctx,
		`INSERT INTO bets (id, player_id, round_id, amount, currency, usd_amount, price_at_time, auto_cashout, placed_at, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		bet.ID, bet.PlayerID, bet.RoundID, bet.Amount, bet.Currency,
		bet.USDAmount, bet.PriceAtTime, bet.AutoCashout, bet.PlacedAt, string(bet.Status))
	if err != nil {
		return fmt.Errorf("save bet: %w", err)
	}
	return nil
}

func (s *RoundStore) FinalizeBet(ctx context.Context, bet *game.Bet) error {
	_, err := s.db.Pool().Exec(ctx,
		`UPDATE bets SET status = $2, cashout_multiplier = $3, payout = $4 WHERE id = $1`,
		bet.ID, string(bet.Status), bet.CashOutMultiplier, bet.Payout)
	if err != nil {
		return fmt.Errorf("finalize bet: %w", err)
	}
	return nil
}

// RecentRounds returns the latest settled rounds, newest first.
func (s *RoundStore) RecentRounds(ctx context.Context, limit int) ([]RoundSummary, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := s.db.Pool().Query(ctx,
		`SELECT id, sequence, seed, commitment, crash_multiplier, total_bets, total_cashouts, ended_at
		 FROM rounds
		 WHERE state = 'SETTLED'
		 ORDER BY sequence DESC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent rounds: %w", err)
	}
	defer rows.Close()

	var out []RoundSummary
	for rows.Next() {
		var r RoundSummary
		if err := rows.Scan(&r.RoundID, &r.Sequence, &r.Seed, &r.Commitment,
			&r.CrashMultiplier, &r.TotalBets, &r.TotalCashouts, &r.EndedAt); err != nil {
			return nil, fmt.Errorf("recent rounds scan: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
