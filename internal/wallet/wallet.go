package wallet

import (
	"context"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"

	"rocket/internal/game"
)

const balanceKeyPrefix = "rocket:balance:"

// Service is the Redis-backed balance collaborator consumed by the round
// engine. Debit and Credit are atomic increments; a debit that would take
// the balance negative is rolled back and reported as insufficient funds.
type Service struct {
	client *redis.Client
}

func New(client *redis.Client) *Service {
	return &Service{client: client}
}

func balanceKey(playerID string) string {
	return balanceKeyPrefix + playerID
}

func (s *Service) Balance(ctx context.Context, playerID string) (float64, error) {
	balance, err := s.client.Get(ctx, balanceKey(playerID)).Float64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("wallet balance: %w", err)
	}
	return balance, nil
}

// Debit removes amount from the player's balance. The decrement and the
// negative-balance check act as one operation: an overdraw is immediately
// reversed before reporting failure, so no partial debit is observable for
// longer than the round trip.
func (s *Service) Debit(ctx context.Context, playerID string, amount float64) (float64, error) {
	if amount <= 0 {
		return 0, game.ErrInvalidAmount
	}
	key := balanceKey(playerID)
	newBalance, err := s.client.IncrByFloat(ctx, key, -amount).Result()
	if err != nil {
		return 0, fmt.Errorf("wallet debit: %w", err)
	}
	if newBalance < 0 {
		if rbErr := s.client.IncrByFloat(ctx, key, amount).Err(); rbErr != nil {
			log.Printf("[WALLET] Rollback for player %s failed: %v", playerID, rbErr)
		}
		return 0, game.ErrInsufficientBalance
	}
	return newBalance, nil
}

func (s *Service) Credit(ctx context.Context, playerID string, amount float64) (float64, error) {
	if amount <= 0 {
		return 0, game.ErrInvalidAmount
	}
	newBalance, err := s.client.IncrByFloat(ctx, balanceKey(playerID), amount).Result()
	if err != nil {
		return 0, fmt.Errorf("wallet credit: %w", err)
	}
	return newBalance, nil
}

// SetBalance overwrites the player's balance. Admin/testing surface only.
func (s *Service) SetBalance(ctx context.Context, playerID string, balance float64) error {
	if err := s.client.Set(ctx, balanceKey(playerID), balance, 0).Err(); err != nil {
		return fmt.Errorf("wallet set balance: %w", err)
	}
	return nil
}
