package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"rocket/internal/server"
)

func gracefulShutdown(fiberServer *server.FiberServer, done chan bool) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	log.Println("[SERVER] Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := fiberServer.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("[SERVER] Forced shutdown: %v", err)
	}
	fiberServer.Shutdown()

	done <- true
}

func main() {
	app := server.New()
	app.RegisterFiberRoutes()

	done := make(chan bool, 1)
	go gracefulShutdown(app, done)

	port, _ := strconv.Atoi(os.Getenv("PORT"))
	if port == 0 {
		port = 8080
	}
	if err := app.Listen(fmt.Sprintf(":%d", port)); err != nil {
		log.Fatalf("[SERVER] Listen failed: %v", err)
	}

	<-done
	log.Println("[SERVER] Shutdown complete")
}
