package oracle

import (
	"context"
	"errors"
	"testing"

	"rocket/internal/game"
)

func TestParsePrices(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want map[string]float64
	}{
		{
			name: "empty keeps USDT default",
			raw:  "",
			want: map[string]float64{"USDT": 1.0},
		},
		{
			name: "basic pairs",
			raw:  "BTC=65000,ETH=3400",
			want: map[string]float64{"USDT": 1.0, "BTC": 65000, "ETH": 3400},
		},
		{
			name: "lowercase and whitespace",
			raw:  " btc = is skipped, eth=3400 ",
			want: map[string]float64{"USDT": 1.0, "ETH": 3400},
		},
		{
			name: "bad entries ignored",
			raw:  "BTC=abc,SOL=-5,ETH=3400,DOGE",
			want: map[string]float64{"USDT": 1.0, "ETH": 3400},
		},
		{
			name: "override USDT",
			raw:  "USDT=0.99",
			want: map[string]float64{"USDT": 0.99},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parsePrices(tt.raw)
			if len(got) != len(tt.want) {
				t.Fatalf("parsePrices(%q) = %v, want %v", tt.raw, got, tt.want)
			}
			for currency, price := range tt.want {
				if got[currency] != price {
					t.Errorf("price[%s] = %v, want %v", currency, got[currency], price)
				}
			}
		})
	}
}

func TestPriceOf_FallbackWithoutCache(t *testing.T) {
	svc := &Service{fallbacks: map[string]float64{"USDT": 1.0, "BTC": 65000}}

	price, err := svc.PriceOf(context.Background(), "btc")
	if err != nil {
		t.Fatalf("PriceOf: %v", err)
	}
	if price != 65000 {
		t.Errorf("price = %v, want 65000", price)
	}

	if _, err := svc.PriceOf(context.Background(), "DOGE"); !errors.Is(err, game.ErrUnsupportedCurrency) {
		t.Errorf("unknown currency = %v, want ErrUnsupportedCurrency", err)
	}
	if _, err := svc.PriceOf(context.Background(), ""); !errors.Is(err, game.ErrUnsupportedCurrency) {
		t.Errorf("empty currency = %v, want ErrUnsupportedCurrency", err)
	}
}
