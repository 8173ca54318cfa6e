package server

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"rocket/internal/cache"
	"rocket/internal/database"
	"rocket/internal/game"
	"rocket/internal/oracle"
	"rocket/internal/wallet"
)

type FiberServer struct {
	*fiber.App

	db     database.Service
	cache  cache.Service
	store  *database.RoundStore
	wallet *wallet.Service
	hub    *game.Hub
	engine *game.Engine
}

func New() *FiberServer {
	db := database.New()

	redisService := cache.New()
	if redisService == nil {
		log.Fatal("[SERVER] Redis is required for wallet and game state")
	}

	store := database.NewRoundStore(db)
	walletService := wallet.New(redisService.GetClient())
	priceOracle := oracle.New(redisService.GetClient())
	hub := game.NewHub()
	engine := game.NewEngine(game.DefaultConfig(), game.NewScheduler(), hub, walletService, priceOracle, store)

	server := &FiberServer{
		App: fiber.New(fiber.Config{
			ServerHeader:  "rocket",
			AppName:       "rocket",
			ReadTimeout:   10 * time.Second,
			WriteTimeout:  10 * time.Second,
			IdleTimeout:   120 * time.Second,
			StrictRouting: false,
		}),

		db:     db,
		cache:  redisService,
		store:  store,
		wallet: walletService,
		hub:    hub,
		engine: engine,
	}

	server.App.Use(recover.New())
	server.App.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
	}))

	go hub.Run()
	engine.Start()

	log.Println("[SERVER] Round engine started")

	return server
}

// Shutdown stops the engine and closes all connections.
func (s *FiberServer) Shutdown() error {
	log.Println("[SERVER] Shutting down...")

	if s.engine != nil {
		s.engine.Stop()
	}
	if s.cache != nil {
		s.cache.Close()
	}
	if s.db != nil {
		s.db.Close()
	}
	return nil
}
