package oracle

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"rocket/internal/game"
)

const (
	priceKeyPrefix = "rocket:price:"
	priceTTL       = 30 * time.Second
)

// Service quotes USD unit prices for supported currencies. Quotes come from
// the ROCKET_PRICES environment variable ("BTC=65000,ETH=3400,USDT=1") and
// are cached in Redis so an upstream feed can overwrite them live; the env
// values act as the fallback when no fresher quote is cached.
type Service struct {
	client    *redis.Client
	fallbacks map[string]float64
}

func New(client *redis.Client) *Service {
	return &Service{
		client:    client,
		fallbacks: parsePrices(os.Getenv("ROCKET_PRICES")),
	}
}

func parsePrices(raw string) map[string]float64 {
	prices := map[string]float64{
		"USDT": 1.0,
	}
	for _, pair := range strings.Split(raw, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), "=", 2)
		if len(parts) != 2 {
			continue
		}
		price, err := strconv.ParseFloat(parts[1], 64)
		if err != nil || price <= 0 {
			log.Printf("[ORACLE] Ignoring bad price entry %q", pair)
			continue
		}
		prices[strings.ToUpper(parts[0])] = price
	}
	return prices
}

// PriceOf returns the USD price of one unit of currency.
func (s *Service) PriceOf(ctx context.Context, currency string) (float64, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		return 0, game.ErrUnsupportedCurrency
	}

	if s.client != nil {
		price, err := s.client.Get(ctx, priceKeyPrefix+currency).Float64()
		if err == nil && price > 0 {
			return price, nil
		}
		if err != nil && err != redis.Nil {
			log.Printf("[ORACLE] Price cache read for %s failed: %v", currency, err)
		}
	}

	price, ok := s.fallbacks[currency]
	if !ok {
		return 0, game.ErrUnsupportedCurrency
	}
	return price, nil
}

// SetPrice publishes a fresh quote to the cache.
func (s *Service) SetPrice(ctx context.Context, currency string, price float64) error {
	if price <= 0 {
		return fmt.Errorf("oracle: invalid price %f for %s", price, currency)
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if err := s.client.Set(ctx, priceKeyPrefix+currency, price, priceTTL).Err(); err != nil {
		return fmt.Errorf("oracle set price: %w", err)
	}
	return nil
}
