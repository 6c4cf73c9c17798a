package relay

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/emilabos/scrappy-chat/internal/store"
)

// RedisTranscript keeps the transcript in a redis list so history
// survives relay restarts and can be shared across relay instances.
type RedisTranscript struct {
	client *redis.Client
	key    string
	cap    int64
}

func NewRedisTranscript(cfg store.RedisConfig, capacity int) (*RedisTranscript, error) {
	if capacity <= 0 {
		capacity = 500
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	key := "transcript"
	if cfg.Prefix != "" {
		key = cfg.Prefix + ":transcript"
	}

	return &RedisTranscript{client: client, key: key, cap: int64(capacity)}, nil
}

func (t *RedisTranscript) Append(ctx context.Context, line string) error {
	pipe := t.client.TxPipeline()
	pipe.RPush(ctx, t.key, line)
	pipe.LTrim(ctx, t.key, -t.cap, -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append transcript line: %w", err)
	}
	return nil
}

func (t *RedisTranscript) Lines(ctx context.Context) ([]string, error) {
	lines, err := t.client.LRange(ctx, t.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read transcript: %w", err)
	}
	return lines, nil
}

func (t *RedisTranscript) Close() error {
	return t.client.Close()
}
