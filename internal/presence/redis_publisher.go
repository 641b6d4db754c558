// Package presence mirrors live-status and viewer counts into Redis for
// read-side consumers (the catalog page, follower notifications). The
// in-memory registry stays authoritative; this mirror is best-effort.
package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Publisher mirrors coordinator state into a shared store. A nil
// Publisher disables mirroring.
type Publisher interface {
	SetStreamLive(ctx context.Context, streamID, broadcaster string) error
	SetStreamOffline(ctx context.Context, streamID string) error
	PublishViewerCount(ctx context.Context, streamID string, count int) error
	Close() error
}

// Config holds Redis connection configuration.
type Config struct {
	Address  string
	Password string
	DB       int
	Channel  string
}

type redisPublisher struct {
	client  *redis.Client
	channel string
}

// Redis key patterns:
// presence:live_streams              SET<stream_id>  - streams currently live
// presence:stream:{stream_id}:status HASH            - broadcaster, started_at, viewer_count

const liveStreamsKey = "presence:live_streams"

func streamStatusKey(streamID string) string {
	return fmt.Sprintf("presence:stream:%s:status", streamID)
}

// NewRedisPublisher connects to Redis and returns a publisher.
func NewRedisPublisher(cfg Config) (Publisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	channel := cfg.Channel
	if channel == "" {
		channel = "presence:stream_updates"
	}

	return &redisPublisher{client: client, channel: channel}, nil
}

func (p *redisPublisher) SetStreamLive(ctx context.Context, streamID, broadcaster string) error {
	pipe := p.client.TxPipeline()
	pipe.SAdd(ctx, liveStreamsKey, streamID)
	pipe.HSet(ctx, streamStatusKey(streamID), map[string]interface{}{
		"broadcaster":  broadcaster,
		"started_at":   strconv.FormatInt(time.Now().Unix(), 10),
		"viewer_count": "0",
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}
	return p.publishUpdate(ctx, streamID, true, 0)
}

func (p *redisPublisher) SetStreamOffline(ctx context.Context, streamID string) error {
	pipe := p.client.TxPipeline()
	pipe.SRem(ctx, liveStreamsKey, streamID)
	pipe.Del(ctx, streamStatusKey(streamID))
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}
	return p.publishUpdate(ctx, streamID, false, 0)
}

func (p *redisPublisher) PublishViewerCount(ctx context.Context, streamID string, count int) error {
	if err := p.client.HSet(ctx, streamStatusKey(streamID), "viewer_count", count).Err(); err != nil {
		return err
	}
	return p.publishUpdate(ctx, streamID, true, count)
}

func (p *redisPublisher) publishUpdate(ctx context.Context, streamID string, isLive bool, count int) error {
	payload := map[string]interface{}{
		"stream_id":    streamID,
		"is_live":      isLive,
		"viewer_count": count,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, p.channel, string(data)).Err()
}

func (p *redisPublisher) Close() error {
	return p.client.Close()
}
