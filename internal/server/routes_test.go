package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"rocket/internal/game"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not authenticated", game.ErrNotAuthenticated, fiber.StatusUnauthorized},
		{"invalid amount", game.ErrInvalidAmount, fiber.StatusBadRequest},
		{"unsupported currency", game.ErrUnsupportedCurrency, fiber.StatusBadRequest},
		{"insufficient balance", game.ErrInsufficientBalance, fiber.StatusPaymentRequired},
		{"window closed", game.ErrWindowClosed, fiber.StatusConflict},
		{"duplicate bet", game.ErrDuplicateBet, fiber.StatusConflict},
		{"no active bet", game.ErrNoActiveBet, fiber.StatusConflict},
		{"already resolved", game.ErrAlreadyResolved, fiber.StatusConflict},
		{"round crashed", game.ErrRoundCrashed, fiber.StatusConflict},
		{"engine stopped", game.ErrEngineStopped, fiber.StatusServiceUnavailable},
		{"wrapped sentinel", errors.Join(errors.New("ctx"), game.ErrWindowClosed), fiber.StatusConflict},
		{"unknown error", errors.New("boom"), fiber.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.want {
				t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

// newTestServer wires an engine with no persistence and no started round so
// handlers can be exercised without Postgres or Redis.
func newTestServer() *FiberServer {
	hub := game.NewHub()
	engine := game.NewEngine(game.DefaultConfig(), game.NewScheduler(), hub, nil, nil, nil)
	s := &FiberServer{
		App:    fiber.New(),
		hub:    hub,
		engine: engine,
	}
	api := s.App.Group("/api/v1")
	api.Get("/game/state", s.getGameStateHandler)
	api.Post("/game/cashout", s.cashOutHandler)
	api.Get("/game/bet/:playerId", s.getPlayerBetHandler)
	api.Get("/fair/verify", s.verifyHandler)
	return s
}

func TestGetGameState(t *testing.T) {
	s := newTestServer()

	req, _ := http.NewRequest("GET", "/api/v1/game/state", nil)
	resp, err := s.App.Test(req)
	if err != nil {
		t.Fatalf("could not perform request: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status OK; got %v", resp.Status)
	}

	body, _ := io.ReadAll(resp.Body)
	var snap map[string]interface{}
	if err := json.Unmarshal(body, &snap); err != nil {
		t.Fatalf("could not unmarshal response: %v", err)
	}
	if snap["state"] != string(game.StateWaiting) {
		t.Errorf("state = %v, want WAITING before any round opens", snap["state"])
	}
	if _, ok := snap["crash_multiplier"]; ok {
		t.Error("crash_multiplier present in snapshot before a crash")
	}
}

func TestCashOutHandler_NoRound(t *testing.T) {
	s := newTestServer()

	req, _ := http.NewRequest("POST", "/api/v1/game/cashout", strings.NewReader(`{"player_id":"alice"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.App.Test(req)
	if err != nil {
		t.Fatalf("could not perform request: %v", err)
	}
	if resp.StatusCode != fiber.StatusConflict {
		t.Errorf("expected 409; got %v", resp.Status)
	}
}

func TestGetPlayerBet_NotFound(t *testing.T) {
	s := newTestServer()

	req, _ := http.NewRequest("GET", "/api/v1/game/bet/alice", nil)
	resp, err := s.App.Test(req)
	if err != nil {
		t.Fatalf("could not perform request: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404; got %v", resp.Status)
	}
}

func TestVerifyHandler(t *testing.T) {
	s := newTestServer()

	seed := "deadbeef"
	crash := game.CrashPoint(seed, 3, game.DEFAULT_HOUSE_EDGE, game.MAX_MULTIPLIER)

	tests := []struct {
		name      string
		query     string
		status    int
		wantValid *bool
	}{
		{
			name:      "valid reveal",
			query:     "seed=" + seed + "&sequence=3&multiplier=" + trimFloat(crash),
			status:    http.StatusOK,
			wantValid: boolPtr(true),
		},
		{
			name:      "doctored multiplier",
			query:     "seed=" + seed + "&sequence=3&multiplier=99999.99",
			status:    http.StatusOK,
			wantValid: boolPtr(false),
		},
		{
			name:   "missing params",
			query:  "seed=" + seed,
			status: http.StatusBadRequest,
		},
		{
			name:   "bad sequence",
			query:  "seed=" + seed + "&sequence=x&multiplier=1.5",
			status: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest("GET", "/api/v1/fair/verify?"+tt.query, nil)
			resp, err := s.App.Test(req)
			if err != nil {
				t.Fatalf("could not perform request: %v", err)
			}
			if resp.StatusCode != tt.status {
				t.Fatalf("expected %d; got %v", tt.status, resp.Status)
			}
			if tt.wantValid == nil {
				return
			}
			body, _ := io.ReadAll(resp.Body)
			var result map[string]interface{}
			if err := json.Unmarshal(body, &result); err != nil {
				t.Fatalf("could not unmarshal response: %v", err)
			}
			if result["valid"] != *tt.wantValid {
				t.Errorf("valid = %v, want %v", result["valid"], *tt.wantValid)
			}
		})
	}
}

func boolPtr(b bool) *bool { return &b }

func trimFloat(f float64) string {
	data, _ := json.Marshal(f)
	return string(data)
}
