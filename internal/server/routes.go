package server

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

func (s *FiberServer) RegisterFiberRoutes() {
	s.App.Use(cors.New(cors.Config{
		AllowOrigins:     "*",
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH",
		AllowHeaders:     "Accept,Authorization,Content-Type",
		AllowCredentials: false, // credentials require explicit origins
		MaxAge:           300,
	}))

	s.App.Get("/health", s.healthHandler)

	api := s.App.Group("/api/v1")

	api.Get("/game/state", s.getGameStateHandler)
	api.Post("/game/bet", s.placeBetHandler)
	api.Post("/game/cashout", s.cashOutHandler)
	api.Get("/game/bet/:playerId", s.getPlayerBetHandler)
	api.Get("/fair/verify", s.verifyHandler)
	api.Get("/rounds/recent", s.recentRoundsHandler)
	api.Get("/user/:userId/balance", s.getUserBalanceHandler)
	api.Post("/user/:userId/balance", s.setUserBalanceHandler)

	s.App.Get("/ws", websocket.New(s.gameWebSocketHandler))
}

func (s *FiberServer) healthHandler(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"database": s.db.Health(),
		"cache":    s.cache.Health(),
		"game": fiber.Map{
			"state":             s.engine.Snapshot().State,
			"connected_clients": s.hub.ClientCount(),
		},
	})
}
