package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/campuskit/exam-scheduler-api/pkg/config"
)

const (
	pingTimeout = 5 * time.Second
	dialTimeout = 3 * time.Second
	readTimeout = 2 * time.Second
)

// NewRedis returns a client for the gateway availability cache. The client
// name shows up in CLIENT LIST, which helps when several services share the
// instance.
func NewRedis(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:    cfg.Password,
		DB:          cfg.DB,
		ClientName:  "exam-scheduler-api",
		DialTimeout: dialTimeout,
		ReadTimeout: readTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return client, nil
}
