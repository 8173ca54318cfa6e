package database

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/joho/godotenv/autoload"
)

// Service is the durable persistence collaborator: rounds and bets are
// written through after each state change, off the engine's tick path.
type Service interface {
	Pool() *pgxpool.Pool
	Health() map[string]string
	Close() error
}

type service struct {
	pool *pgxpool.Pool
}

var (
	database = getenv("ROCKET_DB_DATABASE", "rocketdb")
	password = getenv("ROCKET_DB_PASSWORD", "postgres")
	username = getenv("ROCKET_DB_USERNAME", "postgres")
	port     = getenv("ROCKET_DB_PORT", "5432")
	host     = getenv("ROCKET_DB_HOST", "localhost")
	schema   = getenv("ROCKET_DB_SCHEMA", "public")

	dbInstance *service
)

func New() Service {
	if dbInstance != nil {
		return dbInstance
	}

	connStr := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable&search_path=%s",
		username, password, host, port, database, schema)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		log.Fatalf("[DB] Pool creation failed: %v", err)
	}
	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("[DB] Connection failed: %v", err)
	}

	log.Println("[DB] Postgres connected")
	dbInstance = &service{pool: pool}
	return dbInstance
}

func (s *service) Pool() *pgxpool.Pool {
	return s.pool
}

func (s *service) Health() map[string]string {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	stats := make(map[string]string)
	if err := s.pool.Ping(ctx); err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("db down: %v", err)
		return stats
	}

	stats["status"] = "up"
	stats["message"] = "It's healthy"

	pool := s.pool.Stat()
	stats["total_conns"] = strconv.FormatInt(int64(pool.TotalConns()), 10)
	stats["idle_conns"] = strconv.FormatInt(int64(pool.IdleConns()), 10)
	stats["acquired_conns"] = strconv.FormatInt(int64(pool.AcquiredConns()), 10)
	stats["acquire_count"] = strconv.FormatInt(pool.AcquireCount(), 10)
	return stats
}

func (s *service) Close() error {
	log.Printf("[DB] Disconnecting from %s", database)
	s.pool.Close()
	return nil
}

func getenv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
