package game

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// betLedger is the per-round bet registry. It carries no lock of its own:
// every method must be called with the engine mutex held, which is the
// single critical section serializing ticks, bets and cash-outs for the
// round that owns it.
type betLedger struct {
	roundID  string
	sequence uint64
	bets     map[string]*Bet // keyed by player ID, at most one per round
	settled  bool
}

func newBetLedger(roundID string, sequence uint64) *betLedger {
	return &betLedger{
		roundID:  roundID,
		sequence: sequence,
		bets:     make(map[string]*Bet),
	}
}

// reserve claims the (player, round) slot before the wallet debit runs.
// The pending entry blocks duplicate bets placed while the debit is in
// flight; it is either committed or released, never settled.
func (l *betLedger) reserve(playerID string) (*Bet, error) {
	if _, ok := l.bets[playerID]; ok {
		return nil, ErrDuplicateBet
	}
	bet := &Bet{
		ID:       uuid.NewString(),
		PlayerID: playerID,
		RoundID:  l.roundID,
		Status:   BetPending,
	}
	l.bets[playerID] = bet
	return bet, nil
}

func (l *betLedger) release(playerID string) {
	if bet, ok := l.bets[playerID]; ok && bet.Status == BetPending {
		delete(l.bets, playerID)
	}
}

// commit turns a reservation into a funded ACTIVE bet.
func (l *betLedger) commit(playerID string, amount, usdAmount, price float64, currency string, autoCashout float64, placedAt time.Time) (*Bet, error) {
	bet, ok := l.bets[playerID]
	if !ok || bet.Status != BetPending {
		return nil, ErrNoActiveBet
	}
	bet.Amount = amount
	bet.USDAmount = usdAmount
	bet.PriceAtTime = price
	bet.Currency = currency
	bet.AutoCashout = autoCashout
	bet.PlacedAt = placedAt
	bet.Status = BetActive
	return bet, nil
}

// resolve cashes out the player's active bet at the given multiplier. The
// caller has already established the round is RUNNING and the multiplier is
// strictly below the crash point.
func (l *betLedger) resolve(playerID string, multiplier float64) (*Bet, error) {
	bet, ok := l.bets[playerID]
	if !ok || bet.Status == BetPending {
		return nil, ErrNoActiveBet
	}
	if bet.Status != BetActive {
		return nil, ErrAlreadyResolved
	}
	bet.Status = BetCashedOut
	bet.CashOutMultiplier = multiplier
	bet.Payout = math.Floor(bet.Amount*multiplier*1e8) / 1e8
	return bet, nil
}

// reopen reverts a cash-out whose wallet credit failed, restoring the bet
// to ACTIVE so the command can be retried by the caller.
func (l *betLedger) reopen(playerID string) {
	if bet, ok := l.bets[playerID]; ok && bet.Status == BetCashedOut {
		bet.Status = BetActive
		bet.CashOutMultiplier = 0
		bet.Payout = 0
	}
}

// settleLosses finalizes every still-active bet as LOST. Runs exactly once,
// after the round has recorded CRASHED; the engine mutex guarantees no
// cash-out interleaves with it.
func (l *betLedger) settleLosses() []*Bet {
	if l.settled {
		return nil
	}
	l.settled = true

	var losers []*Bet
	for _, bet := range l.bets {
		if bet.Status == BetActive {
			bet.Status = BetLost
			bet.Payout = 0
			losers = append(losers, bet)
		}
	}
	return losers
}

// autoCashoutDue returns the active bets whose auto-cashout target is at or
// below the current multiplier.
func (l *betLedger) autoCashoutDue(multiplier float64) []*Bet {
	var due []*Bet
	for _, bet := range l.bets {
		if bet.Status == BetActive && bet.AutoCashout > 0 && multiplier >= bet.AutoCashout {
			due = append(due, bet)
		}
	}
	return due
}

func (l *betLedger) get(playerID string) (*Bet, bool) {
	bet, ok := l.bets[playerID]
	return bet, ok
}

func (l *betLedger) counts() (total, cashouts int) {
	for _, bet := range l.bets {
		switch bet.Status {
		case BetPending:
			continue
		case BetCashedOut:
			cashouts++
			total++
		default:
			total++
		}
	}
	return total, cashouts
}
