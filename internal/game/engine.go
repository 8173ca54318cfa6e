package game

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
)

const maxReconcileAttempts = 5

// Engine runs one crash round at a time: it seals the crash point, opens
// the betting window, advances the multiplier on scheduler ticks and
// settles the round when the multiplier reaches the sealed value.
//
// A single mutex guards the current round, its ledger and the timer
// handles. Tick advancement, PlaceBet and CashOut all take it, so "is the
// multiplier already at the crash point" and "mark this bet cashed out"
// are one atomic step. Wallet and persistence I/O runs outside the lock.
type Engine struct {
	cfg    Config
	sched  Scheduler
	hub    Broadcaster
	wallet Wallet
	oracle PriceOracle
	store  RoundStore
	ctx    context.Context
	now    func() time.Time

	mu     sync.Mutex
	round  *Round
	ledger *betLedger
	seq    uint64

	bettingTimer    TimerHandle
	tickHandle      TimerHandle
	pauseTimer      TimerHandle
	reconcileTimers []TimerHandle
	stopped         bool
}

func NewEngine(cfg Config, sched Scheduler, hub Broadcaster, wallet Wallet, oracle PriceOracle, store RoundStore) *Engine {
	if cfg.Growth == nil {
		cfg.Growth = DefaultGrowth
	}
	return &Engine{
		cfg:    cfg,
		sched:  sched,
		hub:    hub,
		wallet: wallet,
		oracle: oracle,
		store:  store,
		ctx:    context.Background(),
		now:    time.Now,
	}
}

// Start opens the first round. Subsequent rounds are chained through the
// scheduler.
func (e *Engine) Start() {
	log.Println("[GAME] Engine started")
	e.startRound()
}

// Stop halts the engine and cancels all pending timers. The current round,
// if any, is abandoned in place.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopped = true
	e.stopTimersLocked()
	log.Println("[GAME] Engine stopped")
}

func (e *Engine) stopTimersLocked() {
	if e.bettingTimer != nil {
		e.bettingTimer.Stop()
		e.bettingTimer = nil
	}
	if e.tickHandle != nil {
		e.tickHandle.Stop()
		e.tickHandle = nil
	}
	if e.pauseTimer != nil {
		e.pauseTimer.Stop()
		e.pauseTimer = nil
	}
	for _, h := range e.reconcileTimers {
		h.Stop()
	}
	e.reconcileTimers = nil
}

// startRound seals a fresh outcome and opens betting. On any failure the
// engine schedules a retry instead of going idle: it must never sit in
// WAITING without a timer armed.
func (e *Engine) startRound() {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}
	seq := e.seq + 1
	e.mu.Unlock()

	seed := GenerateSeed()
	crash := CrashPoint(seed, seq, e.cfg.HouseEdge, e.cfg.MaxMultiplier)
	if crash < MIN_MULTIPLIER || crash > e.cfg.MaxMultiplier {
		// Fail closed: never open betting on an outcome outside range.
		log.Printf("[GAME] Round %d: crash point %.2f out of range, retrying in %s", seq, crash, e.cfg.RetryBackoff)
		e.scheduleRetry()
		return
	}

	round := &Round{
		ID:                uuid.NewString(),
		Sequence:          seq,
		Seed:              seed,
		Commitment:        HashCommitment(seed),
		CrashMultiplier:   crash,
		CurrentMultiplier: MIN_MULTIPLIER,
		State:             StateBetting,
		BettingDeadline:   e.now().Add(e.cfg.BettingWindow),
	}

	if e.store != nil {
		if err := e.store.CreateRound(e.ctx, round); err != nil {
			log.Printf("[GAME] Round %d: persist failed: %v, retrying in %s", seq, err, e.cfg.RetryBackoff)
			e.scheduleRetry()
			return
		}
	}

	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}
	e.seq = seq
	e.round = round
	e.ledger = newBetLedger(round.ID, seq)
	e.bettingTimer = e.sched.After(e.cfg.BettingWindow, e.beginRunning)
	e.mu.Unlock()

	e.hub.Publish(EventRoundStart, RoundStartPayload{
		Sequence:        seq,
		RoundID:         round.ID,
		Commitment:      round.Commitment,
		BettingWindowMs: e.cfg.BettingWindow.Milliseconds(),
	})
	log.Printf("[GAME] Round %d open for betting (crash point sealed at %.2fx)", seq, crash)
}

func (e *Engine) scheduleRetry() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return
	}
	e.pauseTimer = e.sched.After(e.cfg.RetryBackoff, e.startRound)
}

// beginRunning fires on the betting deadline and starts the multiplier.
func (e *Engine) beginRunning() {
	e.mu.Lock()
	if e.stopped || e.round == nil || e.round.State != StateBetting {
		e.mu.Unlock()
		return
	}
	e.round.State = StateRunning
	e.round.StartedAt = e.now()
	e.bettingTimer = nil
	e.tickHandle = e.sched.Every(e.cfg.TickInterval, e.onTick)
	seq := e.round.Sequence
	roundID := e.round.ID
	started := e.round.StartedAt
	e.mu.Unlock()

	e.hub.Publish(EventRoundRunning, RoundRunningPayload{
		Sequence:  seq,
		RoundID:   roundID,
		StartedAt: started,
	})
	log.Printf("[GAME] Round %d running", seq)
}

// onTick advances the multiplier. The tick that would meet or exceed the
// sealed crash point instead clamps to it and transitions the round to
// CRASHED; the multiplier never runs past the crash point while RUNNING.
func (e *Engine) onTick() {
	e.mu.Lock()
	if e.round == nil || e.round.State != StateRunning {
		e.mu.Unlock()
		return
	}

	elapsed := e.now().Sub(e.round.StartedAt)
	mult := e.cfg.Growth(elapsed)
	if mult < e.round.CurrentMultiplier {
		mult = e.round.CurrentMultiplier
	}

	if mult >= e.round.CrashMultiplier {
		e.crashLocked()
		return
	}

	e.round.CurrentMultiplier = mult
	seq := e.round.Sequence
	due := e.ledger.autoCashoutDue(mult)
	var resolved []*Bet
	for _, bet := range due {
		b, err := e.ledger.resolve(bet.PlayerID, mult)
		if err != nil {
			continue
		}
		resolved = append(resolved, b)
	}
	e.mu.Unlock()

	e.hub.Publish(EventMultiplierUpdate, MultiplierUpdatePayload{
		Sequence:   seq,
		Multiplier: mult,
	})
	for _, bet := range resolved {
		e.payCashout(bet, seq)
	}
}

// crashLocked records the crash, settles losses and schedules the next
// round. Called with the engine mutex held; releases it.
func (e *Engine) crashLocked() {
	round := e.round
	round.CurrentMultiplier = round.CrashMultiplier
	round.State = StateCrashed
	round.EndedAt = e.now()
	if e.tickHandle != nil {
		e.tickHandle.Stop()
		e.tickHandle = nil
	}

	// The tick that crashes the round can also be the first tick past an
	// auto-cashout target. A target strictly below the crash point was
	// reached while the round was still live, so it pays at the target;
	// a target at or above the crash point loses with everyone else.
	var winners []*Bet
	for _, bet := range e.ledger.autoCashoutDue(round.CrashMultiplier) {
		if bet.AutoCashout >= round.CrashMultiplier {
			continue
		}
		if b, err := e.ledger.resolve(bet.PlayerID, bet.AutoCashout); err == nil {
			winners = append(winners, b)
		}
	}

	losers := e.ledger.settleLosses()
	total, cashouts := e.ledger.counts()

	payload := RoundEndPayload{
		Sequence:        round.Sequence,
		RoundID:         round.ID,
		CrashMultiplier: round.CrashMultiplier,
		FinalMultiplier: round.CurrentMultiplier,
		Seed:            round.Seed,
		EndedAt:         round.EndedAt,
		TotalBets:       total,
		TotalCashouts:   cashouts,
	}

	// SETTLED is bookkeeping, not a timed phase: it closes the round for
	// further commands the instant losses are finalized.
	round.State = StateSettled
	e.mu.Unlock()

	for _, bet := range winners {
		e.payCashout(bet, round.Sequence)
	}
	e.hub.Publish(EventRoundEnd, payload)
	log.Printf("[GAME] Round %d crashed at %.2fx (%d bets, %d cashouts)", round.Sequence, round.CrashMultiplier, total, cashouts)

	if e.store != nil {
		if err := e.store.FinishRound(e.ctx, round, total, cashouts); err != nil {
			log.Printf("[GAME] Round %d: finish persist failed: %v", round.Sequence, err)
		}
		for _, bet := range losers {
			if err := e.store.FinalizeBet(e.ctx, bet); err != nil {
				log.Printf("[GAME] Round %d: bet %s persist failed: %v", round.Sequence, bet.ID, err)
			}
		}
	}

	e.mu.Lock()
	if !e.stopped {
		e.pauseTimer = e.sched.After(e.cfg.RoundPause, e.startRound)
	}
	e.mu.Unlock()
}

// PlaceBet validates the wager, converts the USD stake at the oracle price,
// debits the wallet and records the bet. The ledger slot is reserved before
// the debit so a duplicate arriving mid-debit is rejected, and released if
// the debit fails, so no partial state survives.
func (e *Engine) PlaceBet(ctx context.Context, req BetRequest) (*BetResult, error) {
	if req.PlayerID == "" {
		return nil, ErrNotAuthenticated
	}
	if req.USDAmount < e.cfg.MinBetUSD || req.USDAmount > e.cfg.MaxBetUSD {
		return nil, ErrInvalidAmount
	}
	if req.AutoCashout != 0 && req.AutoCashout <= MIN_MULTIPLIER {
		return nil, ErrInvalidAmount
	}

	price, err := e.oracle.PriceOf(ctx, req.Currency)
	if err != nil {
		return nil, err
	}
	amount := math.Floor(req.USDAmount/price*1e8) / 1e8

	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return nil, ErrEngineStopped
	}
	if e.round == nil || e.round.State != StateBetting {
		e.mu.Unlock()
		return nil, ErrWindowClosed
	}
	ledger := e.ledger
	seq := e.round.Sequence
	if _, err := ledger.reserve(req.PlayerID); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	e.mu.Unlock()

	balance, err := e.wallet.Debit(ctx, req.PlayerID, amount)
	if err != nil {
		e.mu.Lock()
		ledger.release(req.PlayerID)
		e.mu.Unlock()
		if errors.Is(err, ErrInsufficientBalance) {
			return nil, err
		}
		return nil, fmt.Errorf("wallet debit: %w", err)
	}

	e.mu.Lock()
	if e.ledger != ledger || e.round == nil || e.round.State != StateBetting {
		// Window closed while the debit was in flight. Undo the debit.
		ledger.release(req.PlayerID)
		e.mu.Unlock()
		if _, cerr := e.wallet.Credit(ctx, req.PlayerID, amount); cerr != nil {
			log.Printf("[GAME] Refund for player %s failed: %v", req.PlayerID, cerr)
			e.queueReconcile(req.PlayerID, amount, 1)
		}
		return nil, ErrWindowClosed
	}
	bet, err := ledger.commit(req.PlayerID, amount, req.USDAmount, price, req.Currency, req.AutoCashout, e.now())
	if err != nil {
		e.mu.Unlock()
		if _, cerr := e.wallet.Credit(ctx, req.PlayerID, amount); cerr != nil {
			e.queueReconcile(req.PlayerID, amount, 1)
		}
		return nil, err
	}
	e.mu.Unlock()

	e.hub.Publish(EventBetPlaced, BetPlacedPayload{
		Sequence: seq,
		PlayerID: req.PlayerID,
		Amount:   amount,
		Currency: req.Currency,
	})
	if e.store != nil {
		if serr := e.store.SaveBet(e.ctx, bet); serr != nil {
			log.Printf("[GAME] Bet %s persist failed: %v", bet.ID, serr)
		}
	}
	log.Printf("[BET] Player %s staked %.8f %s ($%.2f) on round %d", req.PlayerID, amount, req.Currency, req.USDAmount, seq)

	return &BetResult{
		BetID:            bet.ID,
		CryptoAmount:     amount,
		PriceAtTime:      price,
		RemainingBalance: balance,
	}, nil
}

// CashOut resolves the player's active bet at the multiplier in effect the
// instant the request is accepted. A request arriving after the crash has
// been recorded always fails with ErrRoundCrashed and never touches the bet.
func (e *Engine) CashOut(ctx context.Context, playerID string) (*CashOutResult, error) {
	if playerID == "" {
		return nil, ErrNotAuthenticated
	}

	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return nil, ErrEngineStopped
	}
	if e.round == nil {
		e.mu.Unlock()
		return nil, ErrNoActiveBet
	}
	switch e.round.State {
	case StateRunning:
	case StateCrashed, StateSettled:
		e.mu.Unlock()
		return nil, ErrRoundCrashed
	default:
		e.mu.Unlock()
		return nil, ErrNoActiveBet
	}
	if e.round.CurrentMultiplier >= e.round.CrashMultiplier {
		// The crash transition wins any tie with a concurrent cash-out.
		e.mu.Unlock()
		return nil, ErrRoundCrashed
	}

	mult := e.round.CurrentMultiplier
	seq := e.round.Sequence
	ledger := e.ledger
	bet, err := ledger.resolve(playerID, mult)
	if err != nil {
		e.mu.Unlock()
		return nil, err
	}
	payout := bet.Payout
	currency := bet.Currency
	e.mu.Unlock()

	balance, err := e.wallet.Credit(ctx, playerID, payout)
	if err != nil {
		e.mu.Lock()
		if ledger.settled {
			// The round settled while the credit was failing. The cash-out
			// was accepted pre-crash, so the bet stays CASHED_OUT and the
			// payout goes through reconciliation.
			e.mu.Unlock()
			e.queueReconcile(playerID, payout, 1)
		} else {
			ledger.reopen(playerID)
			e.mu.Unlock()
		}
		return nil, fmt.Errorf("wallet credit: %w", err)
	}

	e.hub.Publish(EventPlayerCashout, PlayerCashoutPayload{
		Sequence:   seq,
		PlayerID:   playerID,
		Multiplier: mult,
		Payout:     payout,
	})
	if e.store != nil {
		if serr := e.store.FinalizeBet(e.ctx, bet); serr != nil {
			log.Printf("[GAME] Bet %s persist failed: %v", bet.ID, serr)
		}
	}
	log.Printf("[CASHOUT] Player %s cashed out at %.2fx (payout %.8f %s)", playerID, mult, payout, currency)

	return &CashOutResult{
		Multiplier: mult,
		Payout:     payout,
		Currency:   currency,
		NewBalance: balance,
	}, nil
}

// payCashout credits an auto-cashout resolved on the tick path. The bet is
// already CASHED_OUT; a credit failure is reported and reconciled, never
// rolled back.
func (e *Engine) payCashout(bet *Bet, seq uint64) {
	if _, err := e.wallet.Credit(e.ctx, bet.PlayerID, bet.Payout); err != nil {
		log.Printf("[GAME] Auto-cashout credit for player %s failed: %v", bet.PlayerID, err)
		e.queueReconcile(bet.PlayerID, bet.Payout, 1)
	}
	e.hub.Publish(EventPlayerCashout, PlayerCashoutPayload{
		Sequence:   seq,
		PlayerID:   bet.PlayerID,
		Multiplier: bet.CashOutMultiplier,
		Payout:     bet.Payout,
	})
	if e.store != nil {
		if err := e.store.FinalizeBet(e.ctx, bet); err != nil {
			log.Printf("[GAME] Bet %s persist failed: %v", bet.ID, err)
		}
	}
	log.Printf("[CASHOUT] Player %s auto-cashed out at %.2fx", bet.PlayerID, bet.CashOutMultiplier)
}

// queueReconcile retries a failed wallet credit with linear backoff. After
// maxReconcileAttempts the amount is logged for manual reconciliation.
func (e *Engine) queueReconcile(playerID string, amount float64, attempt int) {
	if attempt > maxReconcileAttempts {
		log.Printf("[RECONCILE] Giving up crediting %.8f to player %s after %d attempts", amount, playerID, maxReconcileAttempts)
		return
	}
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		log.Printf("[RECONCILE] Engine stopped, %.8f owed to player %s left for manual reconciliation", amount, playerID)
		return
	}
	h := e.sched.After(e.cfg.RetryBackoff*time.Duration(attempt), func() {
		if _, err := e.wallet.Credit(e.ctx, playerID, amount); err != nil {
			log.Printf("[RECONCILE] Credit %.8f to player %s failed (attempt %d): %v", amount, playerID, attempt, err)
			e.queueReconcile(playerID, amount, attempt+1)
			return
		}
		log.Printf("[RECONCILE] Credited %.8f to player %s (attempt %d)", amount, playerID, attempt)
	})
	e.reconcileTimers = append(e.reconcileTimers, h)
	e.mu.Unlock()
}

// Snapshot returns the externally visible state of the current round. The
// crash point is included only once the round has crashed.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.round == nil {
		return Snapshot{State: StateWaiting, CurrentMultiplier: MIN_MULTIPLIER}
	}
	total, _ := e.ledger.counts()
	s := Snapshot{
		Sequence:          e.round.Sequence,
		RoundID:           e.round.ID,
		State:             e.round.State,
		Commitment:        e.round.Commitment,
		CurrentMultiplier: e.round.CurrentMultiplier,
		BettingAllowed:    e.round.State == StateBetting,
		TotalBets:         total,
	}
	if e.round.State == StateCrashed || e.round.State == StateSettled {
		s.CrashMultiplier = e.round.CrashMultiplier
	}
	return s
}

// Verify checks a revealed round outcome against the generator.
func (e *Engine) Verify(seed string, sequence uint64, claimed float64) bool {
	return VerifyCrashPoint(seed, sequence, e.cfg.HouseEdge, e.cfg.MaxMultiplier, claimed)
}

// PlayerBet returns the player's bet in the current round, if any.
func (e *Engine) PlayerBet(playerID string) (Bet, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ledger == nil {
		return Bet{}, false
	}
	bet, ok := e.ledger.get(playerID)
	if !ok || bet.Status == BetPending {
		return Bet{}, false
	}
	return *bet, true
}
