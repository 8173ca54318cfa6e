package game

import (
	"testing"
	"time"
)

func fundedBet(t *testing.T, l *betLedger, playerID string, amount float64) *Bet {
	t.Helper()
	if _, err := l.reserve(playerID); err != nil {
		t.Fatalf("reserve(%s): %v", playerID, err)
	}
	bet, err := l.commit(playerID, amount, amount, 1.0, "USDT", 0, time.Now())
	if err != nil {
		t.Fatalf("commit(%s): %v", playerID, err)
	}
	return bet
}

func TestLedger_ReserveBlocksDuplicates(t *testing.T) {
	l := newBetLedger("round-1", 1)

	if _, err := l.reserve("alice"); err != nil {
		t.Fatalf("first reserve: %v", err)
	}
	if _, err := l.reserve("alice"); err != ErrDuplicateBet {
		t.Errorf("second reserve = %v, want ErrDuplicateBet", err)
	}

	// A committed bet keeps blocking for the rest of the round.
	if _, err := l.commit("alice", 10, 10, 1.0, "USDT", 0, time.Now()); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if _, err := l.reserve("alice"); err != ErrDuplicateBet {
		t.Errorf("reserve after commit = %v, want ErrDuplicateBet", err)
	}
}

func TestLedger_ReleaseFreesSlot(t *testing.T) {
	l := newBetLedger("round-1", 1)

	l.reserve("bob")
	l.release("bob")

	if _, err := l.reserve("bob"); err != nil {
		t.Errorf("reserve after release = %v, want nil", err)
	}
}

func TestLedger_ReleaseIgnoresCommittedBets(t *testing.T) {
	l := newBetLedger("round-1", 1)
	fundedBet(t, l, "carol", 10)

	l.release("carol")

	if bet, ok := l.get("carol"); !ok || bet.Status != BetActive {
		t.Error("release removed a committed bet")
	}
}

func TestLedger_Resolve(t *testing.T) {
	l := newBetLedger("round-1", 1)
	fundedBet(t, l, "alice", 10)

	bet, err := l.resolve("alice", 2.0)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if bet.Status != BetCashedOut {
		t.Errorf("status = %v, want CASHED_OUT", bet.Status)
	}
	if bet.Payout != 20.0 {
		t.Errorf("payout = %v, want 20.0", bet.Payout)
	}
	if bet.CashOutMultiplier != 2.0 {
		t.Errorf("cashout multiplier = %v, want 2.0", bet.CashOutMultiplier)
	}

	if _, err := l.resolve("alice", 2.5); err != ErrAlreadyResolved {
		t.Errorf("second resolve = %v, want ErrAlreadyResolved", err)
	}
	if _, err := l.resolve("nobody", 2.0); err != ErrNoActiveBet {
		t.Errorf("resolve unknown player = %v, want ErrNoActiveBet", err)
	}
}

func TestLedger_ResolveSkipsPending(t *testing.T) {
	l := newBetLedger("round-1", 1)
	l.reserve("alice")

	if _, err := l.resolve("alice", 2.0); err != ErrNoActiveBet {
		t.Errorf("resolve pending bet = %v, want ErrNoActiveBet", err)
	}
}

func TestLedger_SettleLosses(t *testing.T) {
	l := newBetLedger("round-1", 1)
	fundedBet(t, l, "alice", 10)
	fundedBet(t, l, "bob", 20)
	fundedBet(t, l, "carol", 30)
	l.reserve("dave") // unfunded reservation

	l.resolve("bob", 1.8)

	losers := l.settleLosses()
	if len(losers) != 2 {
		t.Fatalf("settleLosses() returned %d bets, want 2", len(losers))
	}
	for _, bet := range losers {
		if bet.Status != BetLost || bet.Payout != 0 {
			t.Errorf("loser %s: status=%v payout=%v", bet.PlayerID, bet.Status, bet.Payout)
		}
	}

	// Every funded bet is terminal; the pending slot is never settled.
	for _, player := range []string{"alice", "bob", "carol"} {
		bet, _ := l.get(player)
		if bet.Status != BetCashedOut && bet.Status != BetLost {
			t.Errorf("bet for %s not terminal: %v", player, bet.Status)
		}
	}
	if bet, _ := l.get("dave"); bet.Status != BetPending {
		t.Errorf("pending bet was settled: %v", bet.Status)
	}
}

func TestLedger_SettleLossesRunsOnce(t *testing.T) {
	l := newBetLedger("round-1", 1)
	fundedBet(t, l, "alice", 10)

	first := l.settleLosses()
	second := l.settleLosses()

	if len(first) != 1 {
		t.Errorf("first settle returned %d, want 1", len(first))
	}
	if second != nil {
		t.Errorf("second settle returned %d bets, want none", len(second))
	}
}

func TestLedger_AutoCashoutDue(t *testing.T) {
	l := newBetLedger("round-1", 1)

	l.reserve("alice")
	l.commit("alice", 10, 10, 1.0, "USDT", 1.5, time.Now())
	l.reserve("bob")
	l.commit("bob", 10, 10, 1.0, "USDT", 3.0, time.Now())
	fundedBet(t, l, "carol", 10) // no auto-cashout

	due := l.autoCashoutDue(2.0)
	if len(due) != 1 || due[0].PlayerID != "alice" {
		t.Fatalf("autoCashoutDue(2.0) = %v, want alice only", due)
	}

	l.resolve("alice", 2.0)
	if len(l.autoCashoutDue(2.0)) != 0 {
		t.Error("resolved bet still reported due")
	}
}

func TestLedger_Counts(t *testing.T) {
	l := newBetLedger("round-1", 1)
	fundedBet(t, l, "alice", 10)
	fundedBet(t, l, "bob", 10)
	l.reserve("pending-player")
	l.resolve("alice", 1.5)

	total, cashouts := l.counts()
	if total != 2 {
		t.Errorf("total = %d, want 2", total)
	}
	if cashouts != 1 {
		t.Errorf("cashouts = %d, want 1", cashouts)
	}
}
