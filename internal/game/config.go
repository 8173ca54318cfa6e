package game

import (
	"math"
	"time"
)

const (
	TICK_INTERVAL = 100 * time.Millisecond
	BETTING_TIME  = 5 * time.Second
	ROUND_PAUSE   = 3 * time.Second
	RETRY_BACKOFF = 2 * time.Second
	MAX_BET_USD   = 10000.0
	MIN_BET_USD   = 1.0
)

// GrowthFunc maps elapsed running time to the current multiplier. Must be
// monotonically non-decreasing with growth(0) == 1.0.
type GrowthFunc func(elapsed time.Duration) float64

// DefaultGrowth grows linearly with a mild quadratic acceleration, truncated
// to 2 decimal places to match the crash-point precision.
func DefaultGrowth(elapsed time.Duration) float64 {
	s := elapsed.Seconds()
	mult := 1.0 + s/1.5 + s*s*0.005
	return math.Floor(mult*100) / 100
}

type Config struct {
	TickInterval  time.Duration
	BettingWindow time.Duration
	RoundPause    time.Duration
	RetryBackoff  time.Duration
	MinBetUSD     float64
	MaxBetUSD     float64
	HouseEdge     float64
	MaxMultiplier float64
	Growth        GrowthFunc
}

func DefaultConfig() Config {
	return Config{
		TickInterval:  TICK_INTERVAL,
		BettingWindow: BETTING_TIME,
		RoundPause:    ROUND_PAUSE,
		RetryBackoff:  RETRY_BACKOFF,
		MinBetUSD:     MIN_BET_USD,
		MaxBetUSD:     MAX_BET_USD,
		HouseEdge:     DEFAULT_HOUSE_EDGE,
		MaxMultiplier: MAX_MULTIPLIER,
		Growth:        DefaultGrowth,
	}
}
