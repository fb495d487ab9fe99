package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/keyxmakerx/librarium/internal/config"
)

// NewRedis creates the client backing the document and tree caches. It
// parses the URL, connects, and pings before returning; a viewer without
// its cache hammers the GitHub API, so a dead Redis fails startup.
func NewRedis(cfg config.RedisConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}

	// Shows up in CLIENT LIST when debugging a shared Redis.
	opts.ClientName = "librarium"
	// Cache reads sit on the request path; retry briefly, then let the
	// caller fall through to the upstream fetch.
	opts.MaxRetries = 2

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	return client, nil
}
