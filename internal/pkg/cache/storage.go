package cache

import (
	"context"
	"log"
	"net"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/storage/redis"

	"github.com/ManuelReschke/BlogHub/internal/pkg/env"
)

// LimiterDatabase keeps rate limiter counters apart from cache keys (DB 0).
const LimiterDatabase = 1

// NewFiberStorage returns a fiber.Storage on the cache server's database db,
// or nil when the server is unreachable so callers fall back to memory.
func NewFiberStorage(db int) fiber.Storage {
	cacheClient := GetClient()
	host := "localhost"
	port := 6379
	password := env.GetEnv("CACHE_PASSWORD", "")
	if cacheClient != nil {
		addr := cacheClient.Options().Addr
		if h, p, err := net.SplitHostPort(addr); err == nil {
			host = h
			if v, err := strconv.Atoi(p); err == nil {
				port = v
			}
		}
		if p := cacheClient.Options().Password; p != "" {
			password = p
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if cacheClient == nil || cacheClient.Ping(ctx).Err() != nil {
		log.Printf("Warning: cache unreachable, using in-memory storage for database %d", db)
		return nil
	}

	return redis.New(redis.Config{
		Host:     host,
		Port:     port,
		Password: password,
		Database: db,
		Reset:    false,
	})
}
