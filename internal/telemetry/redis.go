package telemetry

import (
	"context"
	"encoding/json"
	"fmt"

	"reflow_oven/internal/models"

	"github.com/redis/go-redis/v9"
)

// RedisConfig selects the server and channel for published statuses.
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Channel  string `mapstructure:"channel"`
	// History is how many statuses are kept in the list key, 0 to disable.
	History int64 `mapstructure:"history"`
}

// RedisClient is the subset of *redis.Client the sink uses.
type RedisClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	LTrim(ctx context.Context, key string, start, stop int64) *redis.StatusCmd
	Close() error
}

// RedisSink publishes each status as JSON on a Pub/Sub channel and keeps a
// bounded history list beside it.
type RedisSink struct {
	client  RedisClient
	channel string
	history int64
}

type statusMessage struct {
	Line   string            `json:"line"`
	Status models.OvenStatus `json:"status"`
}

// NewRedisSink connects to the configured server.
func NewRedisSink(ctx context.Context, cfg RedisConfig) (*RedisSink, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", cfg.Addr, err)
	}
	return NewRedisSinkWithClient(client, cfg.Channel, cfg.History), nil
}

func NewRedisSinkWithClient(client RedisClient, channel string, history int64) *RedisSink {
	if channel == "" {
		channel = "oven:status"
	}
	return &RedisSink{client: client, channel: channel, history: history}
}

func (s *RedisSink) historyKey() string {
	return s.channel + ":history"
}

func (s *RedisSink) Publish(ctx context.Context, st models.OvenStatus) error {
	msg, err := json.Marshal(statusMessage{Line: StatusLine(st), Status: st})
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}
	if err := s.client.Publish(ctx, s.channel, msg).Err(); err != nil {
		return fmt.Errorf("publish status: %w", err)
	}
	if s.history <= 0 {
		return nil
	}
	if err := s.client.LPush(ctx, s.historyKey(), msg).Err(); err != nil {
		return fmt.Errorf("store status: %w", err)
	}
	return s.client.LTrim(ctx, s.historyKey(), 0, s.history-1).Err()
}

func (s *RedisSink) Close() error {
	return s.client.Close()
}
