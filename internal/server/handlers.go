package server

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"rocket/internal/game"
)

// statusFor maps engine errors onto HTTP status codes. State conflicts are
// 409 so clients can tell "you were too late" apart from a bad request.
func statusFor(err error) int {
	switch {
	case errors.Is(err, game.ErrNotAuthenticated):
		return fiber.StatusUnauthorized
	case errors.Is(err, game.ErrInvalidAmount), errors.Is(err, game.ErrUnsupportedCurrency):
		return fiber.StatusBadRequest
	case errors.Is(err, game.ErrInsufficientBalance):
		return fiber.StatusPaymentRequired
	case errors.Is(err, game.ErrWindowClosed), errors.Is(err, game.ErrDuplicateBet),
		errors.Is(err, game.ErrNoActiveBet), errors.Is(err, game.ErrAlreadyResolved),
		errors.Is(err, game.ErrRoundCrashed):
		return fiber.StatusConflict
	case errors.Is(err, game.ErrEngineStopped):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

func (s *FiberServer) getGameStateHandler(c *fiber.Ctx) error {
	return c.JSON(s.engine.Snapshot())
}

func (s *FiberServer) placeBetHandler(c *fiber.Ctx) error {
	var req game.BetRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	result, err := s.engine.PlaceBet(c.Context(), req)
	if err != nil {
		return c.Status(statusFor(err)).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(result)
}

func (s *FiberServer) cashOutHandler(c *fiber.Ctx) error {
	var req struct {
		PlayerID string `json:"player_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	result, err := s.engine.CashOut(c.Context(), req.PlayerID)
	if err != nil {
		return c.Status(statusFor(err)).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(result)
}

func (s *FiberServer) getPlayerBetHandler(c *fiber.Ctx) error {
	playerID := c.Params("playerId")
	bet, ok := s.engine.PlayerBet(playerID)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "No bet this round",
		})
	}
	return c.JSON(bet)
}

// verifyHandler recomputes a revealed round outcome so players can check
// the crash point was sealed before betting opened.
func (s *FiberServer) verifyHandler(c *fiber.Ctx) error {
	seed := c.Query("seed")
	seqStr := c.Query("sequence")
	claimedStr := c.Query("multiplier")
	if seed == "" || seqStr == "" || claimedStr == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "seed, sequence and multiplier are required",
		})
	}

	sequence, err := strconv.ParseUint(seqStr, 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid sequence",
		})
	}
	claimed, err := strconv.ParseFloat(claimedStr, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid multiplier",
		})
	}

	return c.JSON(fiber.Map{
		"seed":       seed,
		"sequence":   sequence,
		"multiplier": claimed,
		"commitment": game.HashCommitment(seed),
		"valid":      s.engine.Verify(seed, sequence, claimed),
	})
}

func (s *FiberServer) recentRoundsHandler(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 20)
	rounds, err := s.store.RecentRounds(c.Context(), limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load rounds",
		})
	}
	return c.JSON(fiber.Map{"rounds": rounds})
}

func (s *FiberServer) getUserBalanceHandler(c *fiber.Ctx) error {
	userID := c.Params("userId")
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "User ID is required",
		})
	}

	balance, err := s.wallet.Balance(c.Context(), userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to read balance",
		})
	}
	return c.JSON(fiber.Map{
		"user_id": userID,
		"balance": balance,
	})
}

// setUserBalanceHandler overwrites a balance. Testing/admin surface.
func (s *FiberServer) setUserBalanceHandler(c *fiber.Ctx) error {
	userID := c.Params("userId")
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "User ID is required",
		})
	}

	var body struct {
		Balance float64 `json:"balance"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := s.wallet.SetBalance(c.Context(), userID, body.Balance); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to set balance",
		})
	}
	return c.JSON(fiber.Map{
		"user_id": userID,
		"balance": body.Balance,
	})
}
